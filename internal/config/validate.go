package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ChatConfig) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server.url must use ws:// or wss:// scheme, got %q", c.Server.URL)
	}
	if c.Server.BufferSize < 1 {
		return errors.New("server.buffer_size must be >= 1")
	}

	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry.base_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%v) cannot be below base_delay (%v)",
			c.Retry.MaxDelay, c.Retry.BaseDelay)
	}

	if !c.Health.Disabled {
		if c.Health.PingInterval <= 0 {
			return errors.New("health.ping_interval must be positive")
		}
		if c.Health.PongTimeout <= 0 {
			return errors.New("health.pong_timeout must be positive")
		}
		if c.Health.PongTimeout >= c.Health.PingInterval {
			return fmt.Errorf("health.pong_timeout (%v) must be below ping_interval (%v)",
				c.Health.PongTimeout, c.Health.PingInterval)
		}
	}

	if c.Stream.BatchInterval <= 0 {
		return errors.New("stream.batch_interval must be positive")
	}
	if c.Stream.MaxInFlight < 1 {
		return errors.New("stream.max_in_flight must be >= 1")
	}
	if c.Stream.MaxMessageLifetime != nil && *c.Stream.MaxMessageLifetime < 0 {
		return errors.New("stream.max_message_lifetime must be >= 0")
	}

	if c.Send.MaxLength < 1 {
		return errors.New("send.max_length must be >= 1")
	}
	if c.Send.RateLimit != nil {
		if *c.Send.RateLimit < 0 {
			return errors.New("send.rate_limit must be >= 0")
		}
		if *c.Send.RateLimit > 0 && c.Send.RateWindow <= 0 {
			return errors.New("send.rate_window must be positive when rate_limit is set")
		}
	}

	if c.History.MaxMessages < -1 {
		return errors.New("history.max_messages must be >= -1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	return nil
}
