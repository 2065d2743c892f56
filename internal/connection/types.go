package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrStaleConnection   = errors.New("connection stale (no ping)")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrTransportClosed   = errors.New("transport closed")
	ErrHandshakeRejected = errors.New("stream handshake rejected")
)

// TimestampedMessage wraps raw socket bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Message is a forwarded non-protocol frame delivered to the caller.
type Message struct {
	Channel    string          // Originating channel path, e.g. "/quotes/5479"
	Data       json.RawMessage // Complete frame as received
	ReceivedAt time.Time
}

// Protocol channel names of the handshake-connect-subscribe negotiation.
const (
	channelHandshake = "/meta/handshake"
	channelConnect   = "/meta/connect"
	channelSubscribe = "/meta/subscribe"
)

// Handshake negotiation constants.
const (
	protocolVersion = "1.0"
	connectionType  = "websocket"
)

// frameKind discriminates inbound frames by their channel field.
type frameKind int

const (
	frameData frameKind = iota
	frameHandshake
	frameConnect
	frameSubscribeReply
)

// frame is the decoded tagged variant of one inbound frame. Unknown
// channels decode as data frames and are forwarded verbatim.
type frame struct {
	Kind       frameKind
	Channel    string
	Successful bool
	ClientID   string
	Error      string
	Raw        json.RawMessage
}

// frameEnvelope is the wire shape shared by all protocol frames.
type frameEnvelope struct {
	Channel    string `json:"channel"`
	Successful *bool  `json:"successful"`
	ClientID   string `json:"clientId"`
	Error      string `json:"error"`
}

// parseFrames decodes one inbound payload: a JSON array of frames.
func parseFrames(data []byte) ([]frame, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode frame batch: %w", err)
	}

	frames := make([]frame, 0, len(raws))
	for _, raw := range raws {
		var env frameEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed elements are forwarded, not dropped.
			frames = append(frames, frame{Kind: frameData, Raw: raw})
			continue
		}

		f := frame{
			Kind:     frameData,
			Channel:  env.Channel,
			ClientID: env.ClientID,
			Error:    env.Error,
			Raw:      raw,
		}
		if env.Successful != nil {
			f.Successful = *env.Successful
		}

		switch env.Channel {
		case channelHandshake:
			f.Kind = frameHandshake
		case channelConnect:
			f.Kind = frameConnect
		case channelSubscribe:
			f.Kind = frameSubscribeReply
		}

		frames = append(frames, f)
	}

	return frames, nil
}

// Outbound frame shapes. Every frame carries the shared sequence id and is
// sent as a one-element batch.

type handshakeRequest struct {
	ID                       int             `json:"id"`
	Channel                  string          `json:"channel"`
	Version                  string          `json:"version"`
	MinimumVersion           string          `json:"minimumVersion"`
	SupportedConnectionTypes []string        `json:"supportedConnectionTypes"`
	Advice                   handshakeAdvice `json:"advice"`
	Ext                      handshakeExt    `json:"ext"`
}

type handshakeAdvice struct {
	Timeout  int `json:"timeout"`
	Interval int `json:"interval"`
}

type handshakeExt struct {
	SubscriptionID string `json:"subscriptionId"`
}

type connectRequest struct {
	ID             int    `json:"id"`
	Channel        string `json:"channel"`
	ClientID       string `json:"clientId"`
	ConnectionType string `json:"connectionType"`
}

type subscribeRequest struct {
	ID           int    `json:"id"`
	Channel      string `json:"channel"`
	ClientID     string `json:"clientId"`
	Subscription string `json:"subscription"`
}

// ClientConfig configures the WebSocket transport.
type ClientConfig struct {
	URL          string        // Stream endpoint (wss://...)
	PingTimeout  time.Duration // Max time without ping before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Inbound message channel buffer
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// MultiplexerConfig configures the channel multiplexer.
type MultiplexerConfig struct {
	URL               string        // Stream endpoint (wss://...)
	PingTimeout       time.Duration // Transport staleness threshold
	WriteTimeout      time.Duration // Transport write deadline
	SocketBufferSize  int           // Transport inbound buffer
	MessageBufferSize int           // Forwarded message stream buffer
}

// DefaultMultiplexerConfig returns sensible defaults.
func DefaultMultiplexerConfig() MultiplexerConfig {
	return MultiplexerConfig{
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		SocketBufferSize:  1000,
		MessageBufferSize: 10000,
	}
}
