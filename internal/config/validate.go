package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all fields a streamer needs are set and valid.
// Database settings are checked separately by ValidateDatabase since only
// the recorder uses them.
func (c *StreamerConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "https://") && !strings.HasPrefix(c.API.BaseURL, "http://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}

	if c.Stream.URL == "" {
		return errors.New("stream.url is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "wss://") && !strings.HasPrefix(c.Stream.URL, "ws://") {
		return fmt.Errorf("stream.url must be a ws(s) URL, got %q", c.Stream.URL)
	}

	if c.Credentials.Username == "" {
		return errors.New("BROKER_USERNAME is required")
	}
	if c.Credentials.Password == "" {
		return errors.New("BROKER_PASSWORD is required")
	}
	if c.Credentials.TOTPSecret == "" {
		return errors.New("BROKER_TOTP_SECRET is required")
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	return nil
}

// ValidateDatabase checks the recorder database settings.
func (c *StreamerConfig) ValidateDatabase() error {
	db := c.Database
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
