// Package auth implements the session authenticator: the two-step login
// state machine and the self-scheduling session renewal loop.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/broker-stream/internal/api"
	"github.com/rickgao/broker-stream/internal/retry"
	"github.com/rickgao/broker-stream/internal/totp"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("username and password are required")
	ErrInvalidTimeout     = errors.New("authentication timeout outside allowed range")
	ErrNoCredentials      = errors.New("credentials not set")
)

// Session timeout bounds in minutes.
const (
	MinTimeoutMinutes     = 30
	MaxTimeoutMinutes     = 1440
	DefaultTimeoutMinutes = 1440
)

// methodTOTP is the second-factor method sent on the confirmation step.
const methodTOTP = "TOTP"

// State tracks login progress.
type State int

const (
	StateIdle State = iota
	StateLoggingIn
	StateAwaitingSecondFactor
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoggingIn:
		return "logging_in"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Credentials is one login attempt's input. Never persisted beyond process
// memory.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string

	// TimeoutMinutes is the requested server-side session lifetime.
	// Zero means DefaultTimeoutMinutes.
	TimeoutMinutes int
}

// Authenticator owns credential state and session production. One login
// sequence is in flight at a time; concurrent Authenticate calls join it.
type Authenticator struct {
	client *api.Client
	logger *slog.Logger

	loginRetry retry.Policy
	totpRetry  retry.Policy

	mu         sync.Mutex
	creds      *Credentials
	state      State
	session    api.SessionAuth
	hasSession bool

	group    singleflight.Group
	sessions chan api.SessionAuth

	// schedule arms the renewal timer, replaced in tests.
	schedule func(d time.Duration, fn func())
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithRetry sets the attempt budget for both login steps.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(a *Authenticator) {
		a.loginRetry.MaxAttempts = maxAttempts
		a.loginRetry.BaseDelay = baseDelay
		a.totpRetry.MaxAttempts = maxAttempts
		a.totpRetry.BaseDelay = baseDelay
	}
}

// New creates an Authenticator over the given REST client.
func New(client *api.Client, opts ...Option) *Authenticator {
	a := &Authenticator{
		client: client,
		logger: slog.Default(),
		loginRetry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			// 401 is a bad password, 400 a malformed credential request.
			ExcludedStatuses: []int{400, 401},
		},
		totpRetry: retry.Policy{
			MaxAttempts:      3,
			BaseDelay:        time.Second,
			ExcludedStatuses: []int{401},
		},
		sessions: make(chan api.SessionAuth, 8),
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	a.loginRetry.Logger = a.logger
	a.totpRetry.Logger = a.logger

	return a
}

// SetCredentials validates and stores the credentials used by the next
// login, overwriting any prior set.
func (a *Authenticator) SetCredentials(creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}

	if creds.TimeoutMinutes == 0 {
		creds.TimeoutMinutes = DefaultTimeoutMinutes
	}
	if creds.TimeoutMinutes < MinTimeoutMinutes || creds.TimeoutMinutes > MaxTimeoutMinutes {
		return fmt.Errorf("%w: %d minutes not in [%d, %d]",
			ErrInvalidTimeout, creds.TimeoutMinutes, MinTimeoutMinutes, MaxTimeoutMinutes)
	}

	a.mu.Lock()
	a.creds = &creds
	a.mu.Unlock()

	return nil
}

// Authenticate runs the two-step login and returns the session bundle.
// A call made while a login is already in flight joins that attempt instead
// of issuing duplicate network requests.
func (a *Authenticator) Authenticate(ctx context.Context) (api.SessionAuth, error) {
	v, err, _ := a.group.Do("login", func() (any, error) {
		return a.login(ctx)
	})
	if err != nil {
		return api.SessionAuth{}, err
	}
	return v.(api.SessionAuth), nil
}

// State returns the current login state.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Session returns the latest session bundle, if any. The value is a
// snapshot; a later login supersedes it.
func (a *Authenticator) Session() (api.SessionAuth, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.hasSession
}

// Sessions returns the stream of produced session bundles. Latest-wins:
// when no one is draining the channel, old bundles are dropped.
func (a *Authenticator) Sessions() <-chan api.SessionAuth {
	return a.sessions
}

// login performs one full two-step authentication sequence.
func (a *Authenticator) login(ctx context.Context) (api.SessionAuth, error) {
	a.mu.Lock()
	creds := a.creds
	a.mu.Unlock()

	if creds == nil {
		return api.SessionAuth{}, ErrNoCredentials
	}

	a.setState(StateLoggingIn)

	// Step 1: credential login, yielding the second-factor challenge.
	var challenge api.TwoFactorChallenge
	err := a.loginRetry.Do(ctx, func(ctx context.Context) error {
		resp, err := a.client.LoginCredentials(ctx, api.CredentialLoginRequest{
			Username:           creds.Username,
			Password:           creds.Password,
			MaxInactiveMinutes: creds.TimeoutMinutes,
		})
		if err != nil {
			return err
		}
		challenge = resp.TwoFactorLogin
		return nil
	})
	if err != nil {
		a.setState(StateFailed)
		return api.SessionAuth{}, err
	}

	a.setState(StateAwaitingSecondFactor)

	// Step 2: confirm with the current TOTP code. The code is recomputed
	// on every attempt so retries spanning a window boundary stay valid.
	var session api.SessionAuth
	err = a.totpRetry.Do(ctx, func(ctx context.Context) error {
		code, err := totp.Generate(creds.TOTPSecret)
		if err != nil {
			return err
		}

		resp, securityToken, err := a.client.ConfirmTOTP(ctx, challenge.TransactionID, api.TOTPLoginRequest{
			Method:   methodTOTP,
			TOTPCode: code,
		})
		if err != nil {
			return err
		}

		session = api.SessionAuth{
			AuthenticationSession: resp.AuthenticationSession,
			SecurityToken:         securityToken,
			PushSubscriptionID:    resp.PushSubscriptionID,
		}
		return nil
	})
	if err != nil {
		a.setState(StateFailed)
		return api.SessionAuth{}, err
	}

	a.mu.Lock()
	a.state = StateAuthenticated
	a.session = session
	a.hasSession = true
	a.mu.Unlock()

	a.publish(session)
	a.scheduleRenewal(creds.TimeoutMinutes)

	a.logger.Info("authenticated",
		"push_subscription_id", session.PushSubscriptionID,
		"timeout_minutes", creds.TimeoutMinutes,
	)

	return session, nil
}

func (a *Authenticator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// publish emits a session on the stream without ever blocking the login
// path. A full channel drops the oldest bundle.
func (a *Authenticator) publish(s api.SessionAuth) {
	for {
		select {
		case a.sessions <- s:
			return
		default:
		}
		select {
		case <-a.sessions:
		default:
		}
	}
}

// scheduleRenewal arms a one-shot re-authentication just before the
// server-side inactivity timeout would expire the session.
func (a *Authenticator) scheduleRenewal(timeoutMinutes int) {
	delay := time.Duration(timeoutMinutes-1) * time.Minute

	a.schedule(delay, func() {
		a.logger.Debug("renewing session")
		if _, err := a.Authenticate(context.Background()); err != nil {
			a.logger.Error("session renewal failed", "error", err)
		}
	})
}
