// Package connection implements the realtime channel multiplexer.
//
// One persistent WebSocket carries every realtime stream. The multiplexer:
//   - runs the handshake/connect negotiation once a session bundle and an
//     open socket are both available
//   - keeps the connection alive with a long-poll style connect loop
//   - replays the subscription ledger on every authenticated transition
//   - forwards non-protocol frames to the caller's message stream
//
// Reconnection is the caller's responsibility: a closed socket ends Run,
// and the next Run starts a fresh handshake.
package connection
