package assembly

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FlushFunc receives the coalesced delta for one message identifier.
type FlushFunc func(id, delta string)

// batchWindow accumulates the unflushed delta for a single message.
type batchWindow struct {
	delta strings.Builder
}

// Batcher coalesces per-message text deltas and flushes them on a fixed
// interval. Appends never flush synchronously; each tick flushes every
// window with accumulated text at most once. FlushNow drains a window out of
// band when a message resolves so the consumer never misses trailing text.
type Batcher struct {
	interval time.Duration
	flush    FlushFunc
	logger   *slog.Logger

	mu      sync.Mutex
	windows map[string]*batchWindow
	started bool

	// emitMu orders emissions: a tick drain and a FlushNow drain for the
	// same identifier must not interleave, or deltas would reach the
	// consumer out of arrival order.
	emitMu sync.Mutex

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewBatcher creates a Batcher that emits through flush. Call Start to begin
// the flush ticker and Stop to halt it.
func NewBatcher(interval time.Duration, flush FlushFunc, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		interval: interval,
		flush:    flush,
		logger:   logger,
		windows:  make(map[string]*batchWindow),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the flush ticker. Start and Stop must not be called
// concurrently with each other.
func (b *Batcher) Start() {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	go b.run()
}

// Stop halts the ticker and waits for it to exit. No flush fires after Stop
// returns. Idempotent, and safe without a prior Start.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})

	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		<-b.stopped
	}
}

// Append adds a delta to the identifier's window. The text is emitted on the
// next tick, or earlier via FlushNow.
func (b *Batcher) Append(id, delta string) {
	if delta == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w, exists := b.windows[id]
	if !exists {
		w = &batchWindow{}
		b.windows[id] = w
	}
	w.delta.WriteString(delta)
}

// FlushNow immediately emits the identifier's accumulated delta, if any.
// Used on message completion or failure, regardless of timer phase.
func (b *Batcher) FlushNow(id string) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	w, exists := b.windows[id]
	var delta string
	if exists {
		delta = w.delta.String()
		w.delta.Reset()
	}
	b.mu.Unlock()

	if delta != "" {
		b.flush(id, delta)
	}
}

// Remove discards the identifier's window. Any unflushed delta is dropped,
// so resolve paths call FlushNow first.
func (b *Batcher) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, id)
}

// run flushes every non-empty window once per tick. Flush order across
// identifiers within one tick is unspecified; order within one identifier
// follows arrival order.
func (b *Batcher) run() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		type flushItem struct {
			id    string
			delta string
		}

		b.emitMu.Lock()
		b.mu.Lock()
		var items []flushItem
		for id, w := range b.windows {
			if w.delta.Len() == 0 {
				continue
			}
			items = append(items, flushItem{id: id, delta: w.delta.String()})
			w.delta.Reset()
		}
		b.mu.Unlock()

		// Emit outside the window lock so consumer callbacks cannot stall
		// appends.
		for _, item := range items {
			b.flush(item.id, item.delta)
		}
		b.emitMu.Unlock()
	}
}
