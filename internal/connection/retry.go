package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Schedule derives reconnect delays from the attempt count: exponential
// growth from Base capped at Max, plus uniform random jitter in [0, Jitter).
// Reset after any successful connection.
type Schedule struct {
	base   time.Duration
	max    time.Duration
	jitter time.Duration

	mu      sync.Mutex
	attempt int
}

// NewSchedule creates a retry schedule.
func NewSchedule(base, max, jitter time.Duration) *Schedule {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Schedule{base: base, max: max, jitter: jitter}
}

// Next returns the delay for the next attempt and advances the counter.
func (s *Schedule) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.delayLocked(s.attempt)
	s.attempt++

	if s.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.jitter)))
	}
	return d
}

// delayLocked computes the deterministic (pre-jitter) delay for an attempt.
func (s *Schedule) delayLocked(attempt int) time.Duration {
	// Shifting past 62 bits would overflow long before any sane max.
	if attempt > 32 {
		return s.max
	}
	d := s.base << uint(attempt)
	if d <= 0 || d > s.max {
		return s.max
	}
	return d
}

// Attempt returns the number of delays handed out since the last reset.
func (s *Schedule) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Reset restarts the schedule at the base delay.
func (s *Schedule) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = 0
}
