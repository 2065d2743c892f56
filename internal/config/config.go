package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DBConfig       `yaml:"database"`
	Writers  WritersConfig  `yaml:"writers"`

	// Credentials are environment-only, never part of the YAML file.
	Credentials CredentialsConfig `yaml:"-"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds broker REST API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// CredentialsConfig holds the login secrets, populated from BROKER_*
// environment variables.
type CredentialsConfig struct {
	Username       string `env:"USERNAME"`
	Password       string `env:"PASSWORD"`
	TOTPSecret     string `env:"TOTP_SECRET"`
	TimeoutMinutes int    `env:"SESSION_TIMEOUT_MINUTES"`
}

// StreamConfig holds realtime stream settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	SocketBufferSize   int           `yaml:"socket_buffer_size"`
	MessageBufferSize  int           `yaml:"message_buffer_size"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// DBConfig holds the recorder database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}
