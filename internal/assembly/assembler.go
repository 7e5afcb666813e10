package assembly

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrTooManyInFlight is returned when registering a message would exceed the
// configured in-flight cap.
var ErrTooManyInFlight = errors.New("too many in-flight messages")

// MessageState is the lifecycle state of a pending message.
type MessageState int

const (
	StateStreaming MessageState = iota
	StateCompleted
	StateFailed
)

// String returns the lowercase state name.
func (s MessageState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pendingMessage is one server-streamed response being assembled.
type pendingMessage struct {
	state     MessageState
	text      strings.Builder
	createdAt time.Time
	lastChunk time.Time
	reason    string
}

// Assembler accumulates ordered text fragments keyed by message identifier.
//
// Resolution is two-phase: Complete/Fail transition the entry and return its
// text, the caller flushes any trailing batch and notifies the consumer, and
// Evict removes the entry afterwards.
type Assembler struct {
	maxInFlight int
	maxLifetime time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingMessage
}

// NewAssembler creates an Assembler. maxInFlight bounds concurrent pending
// messages; maxLifetime is how long a Streaming message may go without a
// chunk before SweepStalled fails it (0 disables stall detection).
func NewAssembler(maxInFlight int, maxLifetime time.Duration, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		maxInFlight: maxInFlight,
		maxLifetime: maxLifetime,
		logger:      logger,
		pending:     make(map[string]*pendingMessage),
	}
}

// Register creates a Streaming entry for an outbound request before any
// chunk arrives. Fails when the id is already in flight or the cap is hit.
func (a *Assembler) Register(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.pending[id]; exists {
		return errors.New("message id already in flight: " + id)
	}
	if a.maxInFlight > 0 && len(a.pending) >= a.maxInFlight {
		return ErrTooManyInFlight
	}

	now := time.Now()
	a.pending[id] = &pendingMessage{
		state:     StateStreaming,
		createdAt: now,
		lastChunk: now,
	}
	return nil
}

// AddChunk appends a fragment to the identified message, creating the entry
// on first chunk. Returns false if the chunk was not accepted: chunks for a
// resolved message are a logged no-op (protocol violation, not fatal), and
// unknown ids beyond the in-flight cap are rejected and logged.
func (a *Assembler) AddChunk(id, text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, exists := a.pending[id]
	if !exists {
		if a.maxInFlight > 0 && len(a.pending) >= a.maxInFlight {
			a.logger.Warn("rejecting chunk, in-flight cap reached",
				"id", id,
				"max_in_flight", a.maxInFlight,
			)
			return false
		}
		now := time.Now()
		msg = &pendingMessage{
			state:     StateStreaming,
			createdAt: now,
			lastChunk: now,
		}
		a.pending[id] = msg
	}

	if msg.state != StateStreaming {
		a.logger.Warn("ignoring chunk for resolved message",
			"id", id,
			"state", msg.state.String(),
		)
		return false
	}

	msg.text.WriteString(text)
	msg.lastChunk = time.Now()
	return true
}

// Complete transitions a Streaming message to Completed and returns the full
// concatenated text. Returns false if the id is unknown or already resolved.
func (a *Assembler) Complete(id string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, exists := a.pending[id]
	if !exists || msg.state != StateStreaming {
		a.logger.Warn("completion for unknown or resolved message", "id", id)
		return "", false
	}

	msg.state = StateCompleted
	return msg.text.String(), true
}

// Fail transitions a Streaming message to Failed with a reason. Returns
// false if the id is unknown or already resolved.
func (a *Assembler) Fail(id, reason string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, exists := a.pending[id]
	if !exists || msg.state != StateStreaming {
		a.logger.Warn("failure for unknown or resolved message", "id", id, "reason", reason)
		return false
	}

	msg.state = StateFailed
	msg.reason = reason
	return true
}

// FailAll transitions every Streaming message to Failed with the given
// reason and returns their ids. Used when the transport drops so no message
// is left silently dangling.
func (a *Assembler) FailAll(reason string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var failed []string
	for id, msg := range a.pending {
		if msg.state != StateStreaming {
			continue
		}
		msg.state = StateFailed
		msg.reason = reason
		failed = append(failed, id)
	}
	return failed
}

// SweepStalled fails every Streaming message whose last chunk is older than
// the configured max lifetime and returns their ids.
func (a *Assembler) SweepStalled(now time.Time) []string {
	if a.maxLifetime <= 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var stalled []string
	for id, msg := range a.pending {
		if msg.state != StateStreaming {
			continue
		}
		if now.Sub(msg.lastChunk) <= a.maxLifetime {
			continue
		}
		msg.state = StateFailed
		msg.reason = "stalled"
		stalled = append(stalled, id)
		a.logger.Warn("message stalled",
			"id", id,
			"last_chunk", msg.lastChunk,
			"max_lifetime", a.maxLifetime,
		)
	}
	return stalled
}

// Evict removes a resolved message. Called after the final flush and
// consumer notification.
func (a *Assembler) Evict(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, id)
}

// Len returns the number of pending messages.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
