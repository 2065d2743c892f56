package api

import "net/http"

// Header names attached to every authenticated request.
const (
	HeaderAuthenticationSession = "X-AuthenticationSession"
	HeaderSecurityToken         = "X-SecurityToken"

	// HeaderTransaction correlates the TOTP confirmation with the
	// credential login that produced it.
	HeaderTransaction = "X-AuthenticationTransaction"
)

// SessionAuth is the token bundle produced by a successful two-step login.
// It is an immutable snapshot: a fresh login supersedes it, never mutates it.
// Consumers must capture the value at the point of use.
type SessionAuth struct {
	// AuthenticationSession identifies the session on REST calls.
	AuthenticationSession string

	// SecurityToken accompanies the session on every call.
	SecurityToken string

	// PushSubscriptionID authenticates the realtime socket handshake.
	PushSubscriptionID string
}

// headers returns the authenticated-call header set.
func (s SessionAuth) headers() http.Header {
	h := http.Header{}
	h.Set(HeaderAuthenticationSession, s.AuthenticationSession)
	h.Set(HeaderSecurityToken, s.SecurityToken)
	return h
}
