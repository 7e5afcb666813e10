package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jck411/chatstream/internal/assembly"
	"github.com/jck411/chatstream/internal/protocol"
)

// Manager owns one chat connection end to end: socket lifecycle, reconnect
// with backoff, health monitoring, and frame routing into reassembly and
// batching.
type Manager interface {
	// Connect moves Disconnected/Failed to Connecting and opens the
	// transport. On dial failure the Manager enters Reconnecting and keeps
	// retrying in the background; the first error is returned.
	Connect(ctx context.Context) error

	// Send transmits one text request and returns its generated message
	// identifier. Valid only while Connected; in any other state a
	// capability error is returned and nothing reaches the wire.
	Send(text string) (string, error)

	// State returns a snapshot of the current connection state.
	State() State

	// Shutdown cancels all timers and retries, fails any in-flight
	// messages, closes the transport, and moves to Disconnected.
	// Idempotent; no timer fires after it returns.
	Shutdown()
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	events Events
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	asm     *assembly.Assembler
	batch   *assembly.Batcher
	limiter *rate.Limiter

	mu     sync.Mutex
	state  State
	client Client
	health *Monitor
	sched  *Schedule
	gen    int // connection generation, guards stale read loops
	closed bool
}

// NewManager creates a Manager and starts its batching and stall-sweep
// timers. The configuration is assumed validated upstream.
func NewManager(cfg ManagerConfig, events Events, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &manager{
		cfg:    cfg,
		events: events,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  StateDisconnected,
		sched:  NewSchedule(cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryJitter),
		asm:    assembly.NewAssembler(cfg.MaxInFlight, cfg.MaxMessageLifetime, logger),
	}

	m.batch = assembly.NewBatcher(cfg.BatchInterval, m.emitDelta, logger)
	m.batch.Start()

	m.limiter = newSendLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)

	if cfg.MaxMessageLifetime > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}

	return m
}

// newSendLimiter builds the outbound rate limiter; a zero message count
// disables limiting.
func newSendLimiter(messages int, window time.Duration) *rate.Limiter {
	if messages <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(messages)/window.Seconds()), messages)
}

// Connect opens the transport from Disconnected or Failed.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.state != StateDisconnected && m.state != StateFailed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect while %s: %w", state, ErrConnectActive)
	}
	m.sched.Reset()
	// Holding a waitgroup slot for the whole call serializes it against
	// Shutdown: the dial and every state emission it produces finish
	// before Shutdown returns. The slot must be taken under m.mu so it
	// cannot race a Shutdown that already started waiting.
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	if err := m.dial(ctx); err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return err
		}
		m.enterReconnecting()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Send validates, encodes, and writes one outbound text request.
func (m *manager) Send(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	if m.cfg.MaxMessageLength > 0 && len(text) > m.cfg.MaxMessageLength {
		return "", fmt.Errorf("%d bytes exceeds limit of %d: %w",
			len(text), m.cfg.MaxMessageLength, ErrMessageTooLong)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrAlreadyClosed
	}
	if m.state != StateConnected {
		state := m.state
		m.mu.Unlock()
		return "", fmt.Errorf("send while %s: %w", state, ErrNotConnected)
	}
	client := m.client
	m.mu.Unlock()

	id := uuid.NewString()
	if err := m.asm.Register(id); err != nil {
		return "", err
	}

	data, err := protocol.EncodeText(id, text)
	if err != nil {
		m.asm.Evict(id)
		return "", err
	}

	// The rate token is taken last so a rejected send never burns budget.
	if !m.limiter.Allow() {
		m.asm.Evict(id)
		return "", ErrRateLimited
	}

	if err := client.Send(data); err != nil {
		m.asm.Evict(id)
		return "", fmt.Errorf("write message: %w", err)
	}

	m.logger.Debug("message sent", "id", id, "bytes", len(data))
	return id, nil
}

// State returns the current connection state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Shutdown tears the client down deterministically.
func (m *manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	health := m.health
	client := m.client
	m.health = nil
	m.client = nil
	wasDisconnected := m.state == StateDisconnected
	m.state = StateDisconnected
	m.mu.Unlock()

	m.logger.Info("shutting down")

	// Cancel reconnect waits, read loops, and the stall sweeper.
	m.cancel()

	if health != nil {
		health.Stop()
	}
	if client != nil {
		client.Close()
	}

	// In-flight sends resolve as failures rather than vanishing.
	m.resolveFailures(m.asm.FailAll("client shutdown"), "client shutdown")

	m.wg.Wait()
	m.batch.Stop()

	if !wasDisconnected {
		m.emitState(StateDisconnected)
	}
	m.logger.Info("shut down complete")
}

// dial performs one transport attempt: Connecting, then Connected on
// success. The caller handles the Reconnecting transition on failure.
func (m *manager) dial(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.state = StateConnecting
	m.mu.Unlock()
	m.emitState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	// Shutdown cancels the manager context; a dial driven by a
	// caller-supplied context must abort then too, or Shutdown would block
	// on it.
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	client := NewClient(ClientConfig{
		URL:              m.cfg.URL,
		HandshakeTimeout: m.cfg.ConnectTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.BufferSize,
	}, m.logger)

	if err := client.Connect(dialCtx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		client.Close()
		return ErrAlreadyClosed
	}
	m.client = client
	m.gen++
	gen := m.gen
	m.state = StateConnected
	m.sched.Reset()

	var health *Monitor
	if m.cfg.HealthCheck {
		health = NewMonitor(m.cfg.PingInterval, m.cfg.HealthTimeout, func() error {
			return client.Send(protocol.EncodePing())
		}, m.logger)
		health.Start()
	}
	m.health = health
	// The read loop's slot is taken before the lock is released so a
	// concurrent Shutdown either sees closed==false and waits for it, or
	// stops this dial at the closed check above. Adding after the unlock
	// could race a completed wg.Wait.
	m.wg.Add(1)
	m.mu.Unlock()

	m.emitState(StateConnected)
	m.logger.Info("connected", "url", m.cfg.URL)

	go m.readLoop(client, health, gen)

	return nil
}

// readLoop consumes one connection's inbound frames and failure signals.
// All frame routing happens on this single goroutine, serializing buffer
// mutation for the connection.
func (m *manager) readLoop(client Client, health *Monitor, gen int) {
	defer m.wg.Done()

	var unhealthy <-chan struct{}
	if health != nil {
		unhealthy = health.Unhealthy()
	}

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("transport error", "error", err)
			m.handleDisconnect(gen)
			return

		case <-unhealthy:
			m.logger.Warn("connection unhealthy, treating as disconnect")
			m.handleDisconnect(gen)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				m.handleDisconnect(gen)
				return
			}
			m.handleFrame(msg.Data, health)
		}
	}
}

// handleFrame decodes and routes one inbound frame. Decode failures are
// logged and dropped; they never fault the connection.
func (m *manager) handleFrame(raw []byte, health *Monitor) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			m.logger.Warn("dropping undecodable frame",
				"reason", de.Reason,
				"raw", string(de.Raw),
			)
		} else {
			m.logger.Warn("dropping undecodable frame", "error", err)
		}
		return
	}

	switch frame.Type {
	case protocol.TypeChunk:
		if m.asm.AddChunk(frame.ID, frame.Content) {
			m.batch.Append(frame.ID, frame.Content)
		}

	case protocol.TypeComplete:
		full, ok := m.asm.Complete(frame.ID)
		if !ok {
			return
		}
		m.batch.FlushNow(frame.ID)
		m.emitComplete(frame.ID, full)
		m.asm.Evict(frame.ID)
		m.batch.Remove(frame.ID)

	case protocol.TypeError:
		reason := frame.Reason
		if reason == "" {
			reason = "backend error"
			m.logger.Debug("error frame without reason", "raw", string(raw))
		}
		if !m.asm.Fail(frame.ID, reason) {
			return
		}
		m.batch.FlushNow(frame.ID)
		m.emitFailed(frame.ID, reason)
		m.asm.Evict(frame.ID)
		m.batch.Remove(frame.ID)

	case protocol.TypePong:
		if health != nil {
			health.Pong()
		}
	}
}

// handleDisconnect reacts to an unexpected transport loss while Connected:
// in-flight messages fail with "connection lost" before the Reconnecting
// state is announced, then the backoff loop starts.
func (m *manager) handleDisconnect(gen int) {
	m.mu.Lock()
	if m.closed || m.gen != gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	health := m.health
	client := m.client
	m.health = nil
	m.client = nil
	m.state = StateReconnecting
	m.wg.Add(1)
	m.mu.Unlock()

	if health != nil {
		health.Stop()
	}
	if client != nil {
		client.Close()
	}

	m.resolveFailures(m.asm.FailAll("connection lost"), "connection lost")

	m.emitState(StateReconnecting)

	go m.reconnectLoop()
}

// enterReconnecting starts the backoff loop after a failed initial dial.
func (m *manager) enterReconnecting() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.wg.Add(1)
	m.mu.Unlock()

	m.emitState(StateReconnecting)

	go m.reconnectLoop()
}

// reconnectLoop retries the transport with capped exponential backoff until
// success, shutdown, or the attempt cap.
func (m *manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		if m.cfg.MaxRetries > 0 && m.sched.Attempt() >= m.cfg.MaxRetries {
			m.logger.Error("reconnect attempts exhausted", "attempts", m.sched.Attempt())
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			m.state = StateFailed
			m.mu.Unlock()
			m.emitState(StateFailed)
			return
		}

		delay := m.sched.Next()
		m.logger.Info("reconnecting",
			"attempt", m.sched.Attempt(),
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := m.dial(m.ctx)
		if err == nil {
			m.logger.Info("reconnected", "attempts", m.sched.Attempt())
			return
		}
		if errors.Is(err, ErrAlreadyClosed) {
			return
		}

		m.logger.Warn("reconnect attempt failed",
			"attempt", m.sched.Attempt(),
			"error", err,
		)

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.state = StateReconnecting
		m.mu.Unlock()
		m.emitState(StateReconnecting)
	}
}

// sweepLoop periodically fails messages that stopped receiving chunks.
func (m *manager) sweepLoop() {
	defer m.wg.Done()

	interval := m.cfg.MaxMessageLifetime / 4
	if interval < time.Second {
		interval = m.cfg.MaxMessageLifetime
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.resolveFailures(m.asm.SweepStalled(time.Now()), "stalled")
		}
	}
}

// resolveFailures drains trailing deltas, notifies the consumer, and evicts
// each failed message.
func (m *manager) resolveFailures(ids []string, reason string) {
	for _, id := range ids {
		m.batch.FlushNow(id)
		m.emitFailed(id, reason)
		m.asm.Evict(id)
		m.batch.Remove(id)
	}
}

func (m *manager) emitState(state State) {
	m.logger.Info("connection state changed", "state", state.String())
	if cb := m.events.OnConnectionStateChanged; cb != nil {
		cb(state)
	}
}

func (m *manager) emitDelta(id, delta string) {
	if cb := m.events.OnTextDelta; cb != nil {
		cb(id, delta)
	}
}

func (m *manager) emitComplete(id, full string) {
	m.logger.Debug("message complete", "id", id, "chars", len(full))
	if cb := m.events.OnMessageComplete; cb != nil {
		cb(id, full)
	}
}

func (m *manager) emitFailed(id, reason string) {
	m.logger.Debug("message failed", "id", id, "reason", reason)
	if cb := m.events.OnMessageFailed; cb != nil {
		cb(id, reason)
	}
}
