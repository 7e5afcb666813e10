package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyClosed  = errors.New("already closed")
	ErrConnectActive  = errors.New("connection already active")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
	ErrRateLimited    = errors.New("message rate limit exceeded")
)

// State is the connection lifecycle state. Exactly one instance exists per
// Manager; only the Manager mutates it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Events is the consumer-facing callback surface. Nil callbacks are skipped.
// Callbacks are invoked from the Manager's internal goroutines and must not
// block for long; heavy consumers should hand off to their own queue.
type Events struct {
	// OnConnectionStateChanged fires on every state transition.
	OnConnectionStateChanged func(state State)

	// OnTextDelta fires with coalesced incremental text for a message.
	OnTextDelta func(id, delta string)

	// OnMessageComplete fires once with the full reassembled text.
	OnMessageComplete func(id, fullText string)

	// OnMessageFailed fires once when a message resolves as a failure
	// (backend error, stall, or connection loss).
	OnMessageFailed func(id, reason string)
}

// Message wraps raw inbound bytes with the receive timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a single WebSocket transport.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g. ws://host:8000/ws/chat)
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound message channel buffer size
}

// ManagerConfig configures the Manager. Values are assumed validated
// upstream; see the config package.
type ManagerConfig struct {
	URL            string        // WebSocket URL
	ConnectTimeout time.Duration // Per-attempt dial timeout
	WriteTimeout   time.Duration // Write deadline for sends

	MaxRetries     int           // Reconnect attempt cap; 0 = retry forever
	RetryBaseDelay time.Duration // First backoff delay
	RetryMaxDelay  time.Duration // Backoff ceiling
	RetryJitter    time.Duration // Upper bound of random jitter added per delay

	HealthCheck   bool          // Enable the ping/pong monitor
	PingInterval  time.Duration // Time between pings while Connected
	HealthTimeout time.Duration // Pong deadline; must be < PingInterval

	BatchInterval      time.Duration // Delta flush interval
	MaxInFlight        int           // Concurrent pending message cap
	MaxMessageLifetime time.Duration // Stall deadline; 0 disables sweeping

	MaxMessageLength  int           // Outbound content cap in bytes; 0 = unlimited
	RateLimitMessages int           // Sends allowed per window; 0 disables limiting
	RateLimitWindow   time.Duration // Rate limit window

	BufferSize int // Transport inbound buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ConnectTimeout:     30 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRetries:         3,
		RetryBaseDelay:     1 * time.Second,
		RetryMaxDelay:      60 * time.Second,
		RetryJitter:        500 * time.Millisecond,
		HealthCheck:        true,
		PingInterval:       120 * time.Second,
		HealthTimeout:      20 * time.Second,
		BatchInterval:      50 * time.Millisecond,
		MaxInFlight:        16,
		MaxMessageLifetime: 120 * time.Second,
		MaxMessageLength:   4000,
		RateLimitMessages:  10,
		RateLimitWindow:    time.Minute,
		BufferSize:         1000,
	}
}
