package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/broker-stream/internal/retry"
)

// Client provides access to the brokerage REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// Retry policy for authenticated resource calls. Login endpoints are
	// exposed raw; the authenticator owns their retry behavior.
	resourceRetry retry.Policy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		resourceRetry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			// Client-level failures are never worth repeating.
			ExcludedStatuses: []int{400, 401, 403, 404},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.resourceRetry.Logger = c.logger

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry budget for authenticated resource calls.
func WithRetries(maxAttempts int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.resourceRetry.MaxAttempts = maxAttempts
		c.resourceRetry.BaseDelay = baseDelay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
