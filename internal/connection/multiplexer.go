package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/broker-stream/internal/api"
)

// protocolState tracks handshake progress on the current socket instance.
type protocolState int

const (
	stateUnauthenticated protocolState = iota
	stateHandshakeSent
	stateConnected
)

func (s protocolState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateHandshakeSent:
		return "handshake_sent"
	case stateConnected:
		return "connected"
	}
	return "unknown"
}

// Multiplexer owns one stream socket and the protocol state on it. It takes
// the session stream as a dependency and never drives authentication itself.
type Multiplexer struct {
	cfg    MultiplexerConfig
	logger *slog.Logger

	sessions <-chan api.SessionAuth

	ledger   *Ledger
	messages chan Message
	added    chan struct{}

	// Protocol state, owned by the Run loop. The message sequence counter
	// and the latest session survive across runs; handshake progress and
	// the client id do not.
	client        Client
	session       *api.SessionAuth
	state         protocolState
	clientID      string
	msgID         int
	authenticated bool
	flushed       int // ledger entries already sent on this socket
}

// NewMultiplexer creates a multiplexer fed by the given session stream.
func NewMultiplexer(cfg MultiplexerConfig, sessions <-chan api.SessionAuth, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Multiplexer{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		ledger:   NewLedger(),
		messages: make(chan Message, cfg.MessageBufferSize),
		added:    make(chan struct{}, 1),
	}
}

// Messages returns the stream of forwarded non-protocol frames. The channel
// persists across reconnects.
func (m *Multiplexer) Messages() <-chan Message {
	return m.messages
}

// Subscriptions returns the ledger of every requested subscription.
func (m *Multiplexer) Subscriptions() *Ledger {
	return m.ledger
}

// AddSubscription records a subscription request. It is sent immediately
// when the connection is already authenticated, otherwise on the next
// authenticated transition.
func (m *Multiplexer) AddSubscription(channel api.Channel, ids []string) {
	m.ledger.Append(Subscription{
		Channel: channel,
		IDs:     append([]string(nil), ids...),
	})

	// Wake the run loop; if nothing is running the next replay pass
	// covers the entry anyway.
	select {
	case m.added <- struct{}{}:
	default:
	}
}

// Run dials the stream endpoint and processes events until the socket
// closes or ctx is done. A closed socket returns ErrTransportClosed with
// handshake progress discarded; the caller decides whether to Run again,
// which starts a fresh handshake.
func (m *Multiplexer) Run(ctx context.Context) error {
	client := NewClient(ClientConfig{
		URL:          m.cfg.URL,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.SocketBufferSize,
	}, m.logger)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer client.Close()

	m.client = client
	m.resetProtocol()

	m.logger.Info("stream socket open", "url", m.cfg.URL)

	// Session already in hand from a previous run: handshake right away.
	if m.session != nil {
		m.sendHandshake()
	}

	for {
		select {
		case <-ctx.Done():
			m.resetProtocol()
			return ctx.Err()

		case s := <-m.sessions:
			m.handleSession(s)

		case <-m.added:
			if m.authenticated {
				m.replay()
			}

		case err := <-client.Errors():
			m.logger.Warn("stream socket closed", "error", err)
			m.resetProtocol()
			return fmt.Errorf("%w: %w", ErrTransportClosed, err)

		case msg, ok := <-client.Messages():
			if !ok {
				m.resetProtocol()
				return ErrTransportClosed
			}
			m.handleInbound(msg)
		}
	}
}

// resetProtocol discards per-socket negotiation state. The sequence counter
// and ledger deliberately survive.
func (m *Multiplexer) resetProtocol() {
	m.state = stateUnauthenticated
	m.clientID = ""
	m.authenticated = false
	m.flushed = 0
}

// handleSession stores the latest session bundle. A fresh session does not
// interrupt an already-negotiated socket; it only unblocks a waiting one.
func (m *Multiplexer) handleSession(s api.SessionAuth) {
	m.session = &s
	if m.state == stateUnauthenticated {
		m.sendHandshake()
	}
}

// handleInbound decodes one payload and dispatches its frames in order.
func (m *Multiplexer) handleInbound(msg TimestampedMessage) {
	frames, err := parseFrames(msg.Data)
	if err != nil {
		m.logger.Warn("unparseable stream payload", "error", err)
		return
	}

	for _, f := range frames {
		m.dispatch(f, msg.ReceivedAt)
	}
}

func (m *Multiplexer) dispatch(f frame, receivedAt time.Time) {
	switch f.Kind {
	case frameHandshake:
		m.handleHandshakeReply(f)

	case frameConnect:
		m.handleConnectReply(f)

	case frameSubscribeReply:
		m.logger.Debug("subscription acknowledged",
			"successful", f.Successful,
			"error", f.Error,
		)

	default:
		m.forward(f, receivedAt)
	}
}

// handleHandshakeReply stores the assigned client id and starts the connect
// loop. A rejected handshake is logged and left for the caller to resolve
// by reconnecting; this layer does not retry it.
func (m *Multiplexer) handleHandshakeReply(f frame) {
	if !f.Successful {
		m.logger.Error("stream handshake rejected",
			"error", fmt.Errorf("%w: %s", ErrHandshakeRejected, f.Error),
		)
		return
	}

	m.clientID = f.ClientID
	m.logger.Debug("stream handshake accepted", "client_id", m.clientID)
	m.sendConnect()
}

// handleConnectReply marks the socket authenticated, replays the ledger on
// the first success of this socket, and re-arms the long-poll connect loop.
func (m *Multiplexer) handleConnectReply(f frame) {
	if !f.Successful {
		m.logger.Warn("stream connect rejected", "error", f.Error)
		return
	}

	m.state = stateConnected

	if !m.authenticated {
		m.authenticated = true
		m.logger.Info("stream authenticated", "subscriptions", m.ledger.Len())
		m.replay()
	}

	m.sendConnect()
}

// replay sends every ledgered subscription not yet sent on this socket.
// Each entry goes out exactly once per authenticated socket no matter
// whether it arrived before or after the authenticated transition.
func (m *Multiplexer) replay() {
	entries := m.ledger.Entries()
	for _, sub := range entries[m.flushed:] {
		m.sendSubscription(sub)
	}
	m.flushed = len(entries)
}

// forward delivers a non-protocol frame to the caller's message stream.
// A full buffer drops with a warning; nothing is dropped silently.
func (m *Multiplexer) forward(f frame, receivedAt time.Time) {
	msg := Message{
		Channel:    f.Channel,
		Data:       f.Raw,
		ReceivedAt: receivedAt,
	}

	select {
	case m.messages <- msg:
	default:
		m.logger.Warn("message stream full, dropping frame", "channel", f.Channel)
	}
}

// nextID returns the shared sequence id: strictly increasing from 1, one
// per outbound frame regardless of type.
func (m *Multiplexer) nextID() int {
	m.msgID++
	return m.msgID
}

// send marshals one frame as a one-element batch and writes it.
func (m *Multiplexer) send(f any) {
	data, err := json.Marshal([]any{f})
	if err != nil {
		m.logger.Error("marshal outbound frame", "error", err)
		return
	}

	if err := m.client.Send(data); err != nil {
		m.logger.Warn("send outbound frame", "error", err)
	}
}

func (m *Multiplexer) sendHandshake() {
	m.send(handshakeRequest{
		ID:                       m.nextID(),
		Channel:                  channelHandshake,
		Version:                  protocolVersion,
		MinimumVersion:           protocolVersion,
		SupportedConnectionTypes: []string{connectionType, "long-polling", "callback-polling"},
		Advice: handshakeAdvice{
			Timeout:  60000,
			Interval: 0,
		},
		Ext: handshakeExt{
			SubscriptionID: m.session.PushSubscriptionID,
		},
	})
	m.state = stateHandshakeSent
}

func (m *Multiplexer) sendConnect() {
	m.send(connectRequest{
		ID:             m.nextID(),
		Channel:        channelConnect,
		ClientID:       m.clientID,
		ConnectionType: connectionType,
	})
}

// sendSubscription emits the subscribe frames for one ledger entry.
func (m *Multiplexer) sendSubscription(sub Subscription) {
	for _, path := range subscriptionPaths(sub) {
		m.send(subscribeRequest{
			ID:           m.nextID(),
			Channel:      channelSubscribe,
			ClientID:     m.clientID,
			Subscription: path,
		})
	}
}

// subscriptionPaths encodes a subscription into its wire paths. Account
// scoped channels take the whole id set on a single path; all others are
// subscribed one path per id.
func subscriptionPaths(sub Subscription) []string {
	if sub.Channel.AccountScoped() {
		return []string{"/" + string(sub.Channel) + strings.Join(sub.IDs, "")}
	}

	paths := make([]string, 0, len(sub.IDs))
	for _, id := range sub.IDs {
		paths = append(paths, "/"+string(sub.Channel)+"/"+id)
	}
	return paths
}
