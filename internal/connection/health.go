package connection

import (
	"log/slog"
	"sync"
	"time"
)

// Monitor probes liveness of an open connection with application-level
// ping/pong frames. While running it sends a ping every interval and expects
// a pong within the timeout; a missed window signals the Unhealthy channel
// exactly once. Duplicate or stray pongs are ignored.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	send     func() error
	logger   *slog.Logger

	mu       sync.Mutex
	awaiting bool
	started  bool

	unhealthy chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
}

// NewMonitor creates a health monitor. send writes one ping frame to the
// transport. The caller reads Unhealthy and treats a signal as a
// transport-level disconnect.
func NewMonitor(interval, timeout time.Duration, send func() error, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		interval:  interval,
		timeout:   timeout,
		send:      send,
		logger:    logger,
		unhealthy: make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start launches the probe loop. Start and Stop must not be called
// concurrently with each other.
func (m *Monitor) Start() {
	m.logger.Debug("health monitor started",
		"ping_interval", m.interval,
		"pong_timeout", m.timeout,
	)
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.run()
}

// Stop halts the probe loop, discarding any pending window, and waits for it
// to exit. Idempotent, and safe without a prior Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.stopped
	}
}

// Unhealthy signals once per missed pong window.
func (m *Monitor) Unhealthy() <-chan struct{} {
	return m.unhealthy
}

// Pong records an inbound pong. The first pong of a window clears it; any
// further pong is a stray and is ignored.
func (m *Monitor) Pong() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.awaiting {
		m.logger.Debug("ignoring stray pong")
		return
	}
	m.awaiting = false
}

func (m *Monitor) run() {
	defer close(m.stopped)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		m.awaiting = true
		m.mu.Unlock()

		if err := m.send(); err != nil {
			m.logger.Warn("ping send failed", "error", err)
			m.signalUnhealthy()
			continue
		}

		timer := time.NewTimer(m.timeout)
		select {
		case <-m.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		m.mu.Lock()
		missed := m.awaiting
		m.awaiting = false
		m.mu.Unlock()

		if missed {
			m.logger.Warn("pong not received within timeout",
				"timeout", m.timeout,
			)
			m.signalUnhealthy()
		}
	}
}

func (m *Monitor) signalUnhealthy() {
	select {
	case m.unhealthy <- struct{}{}:
	default:
	}
}
