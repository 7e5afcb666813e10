package config

import "time"

// ChatConfig is the root configuration for a chat client instance.
type ChatConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Retry   RetryConfig   `yaml:"retry"`
	Health  HealthConfig  `yaml:"health"`
	Stream  StreamConfig  `yaml:"stream"`
	Send    SendConfig    `yaml:"send"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the chat backend endpoint settings.
type ServerConfig struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	BufferSize     int           `yaml:"buffer_size"`
}

// RetryConfig holds reconnect backoff settings. An explicit MaxRetries of
// zero retries forever, so the field is a pointer: nil means unset and takes
// the default. LoadAndValidate always fills it.
type RetryConfig struct {
	MaxRetries *int          `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     time.Duration `yaml:"jitter"`
}

// HealthConfig holds application-level ping/pong settings.
type HealthConfig struct {
	Disabled     bool          `yaml:"disabled"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

// StreamConfig holds streamed-message reassembly and batching settings. An
// explicit MaxMessageLifetime of zero disables stall detection; nil takes the
// default.
type StreamConfig struct {
	BatchInterval      time.Duration  `yaml:"batch_interval"`
	MaxInFlight        int            `yaml:"max_in_flight"`
	MaxMessageLifetime *time.Duration `yaml:"max_message_lifetime"`
}

// SendConfig holds outbound message limits. An explicit RateLimit of zero
// disables rate limiting; nil takes the default.
type SendConfig struct {
	MaxLength  int           `yaml:"max_length"`
	RateLimit  *int          `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// HistoryConfig holds in-memory transcript settings. A negative MaxMessages
// disables history; zero means the default.
type HistoryConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}
