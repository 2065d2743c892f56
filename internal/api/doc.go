// Package api provides the REST client for the brokerage's private web API.
//
// Two endpoint groups:
//   - authentication: credential login and TOTP confirmation, producing the
//     session bundle required by everything else
//   - authenticated resources: positions, overview, transactions, carrying
//     the X-AuthenticationSession and X-SecurityToken headers
//
// Realtime channel names shared with the socket layer live here too.
package api
