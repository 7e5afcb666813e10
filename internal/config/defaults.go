package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultConnectTimeout   = 30 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultBufferSize       = 1000
	DefaultMaxRetries       = 3
	DefaultRetryBaseDelay   = 1 * time.Second
	DefaultRetryMaxDelay    = 60 * time.Second
	DefaultRetryJitter      = 500 * time.Millisecond
	DefaultPingInterval     = 120 * time.Second
	DefaultPongTimeout      = 20 * time.Second
	DefaultBatchInterval    = 50 * time.Millisecond
	DefaultMaxInFlight      = 16
	DefaultMessageLifetime  = 120 * time.Second
	DefaultMaxMessageLength = 4000
	DefaultSendRateLimit    = 10
	DefaultSendRateWindow   = time.Minute
	DefaultMaxHistory       = 100
	DefaultLogLevel         = "info"
)

func (c *ChatConfig) applyDefaults() {
	// Server defaults
	if c.Server.ConnectTimeout == 0 {
		c.Server.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.BufferSize == 0 {
		c.Server.BufferSize = DefaultBufferSize
	}

	// Retry defaults. An explicit zero means "retry forever" and must
	// survive, so only a missing key defaults.
	if c.Retry.MaxRetries == nil {
		c.Retry.MaxRetries = intPtr(DefaultMaxRetries)
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if c.Retry.Jitter == 0 {
		c.Retry.Jitter = DefaultRetryJitter
	}

	// Health defaults
	if c.Health.PingInterval == 0 {
		c.Health.PingInterval = DefaultPingInterval
	}
	if c.Health.PongTimeout == 0 {
		c.Health.PongTimeout = DefaultPongTimeout
	}

	// Stream defaults
	if c.Stream.BatchInterval == 0 {
		c.Stream.BatchInterval = DefaultBatchInterval
	}
	if c.Stream.MaxInFlight == 0 {
		c.Stream.MaxInFlight = DefaultMaxInFlight
	}
	if c.Stream.MaxMessageLifetime == nil {
		c.Stream.MaxMessageLifetime = durationPtr(DefaultMessageLifetime)
	}

	// Send defaults
	if c.Send.MaxLength == 0 {
		c.Send.MaxLength = DefaultMaxMessageLength
	}
	if c.Send.RateLimit == nil {
		c.Send.RateLimit = intPtr(DefaultSendRateLimit)
	}
	if c.Send.RateWindow == 0 {
		c.Send.RateWindow = DefaultSendRateWindow
	}

	// History defaults
	if c.History.MaxMessages == 0 {
		c.History.MaxMessages = DefaultMaxHistory
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func intPtr(v int) *int { return &v }

func durationPtr(v time.Duration) *time.Duration { return &v }
