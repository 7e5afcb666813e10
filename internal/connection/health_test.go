package connection

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitor_HealthyWhilePongsArrive(t *testing.T) {
	var pings atomic.Int64
	m := NewMonitor(30*time.Millisecond, 10*time.Millisecond, func() error {
		pings.Add(1)
		return nil
	}, nil)
	m.Start()
	defer m.Stop()

	// Answer every ping promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		seen := int64(0)
		for {
			select {
			case <-done:
				return
			case <-time.After(2 * time.Millisecond):
			}
			if n := pings.Load(); n > seen {
				seen = n
				m.Pong()
			}
		}
	}()

	select {
	case <-m.Unhealthy():
		t.Fatal("unhealthy raised while pongs were arriving")
	case <-time.After(150 * time.Millisecond):
	}

	if pings.Load() == 0 {
		t.Error("expected pings to be sent")
	}
}

func TestMonitor_MissedPongRaisesOnce(t *testing.T) {
	m := NewMonitor(30*time.Millisecond, 10*time.Millisecond, func() error {
		return nil // pong never arrives
	}, nil)
	m.Start()
	defer m.Stop()

	select {
	case <-m.Unhealthy():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected unhealthy after missed pong")
	}

	// One signal per missed window: after draining, the next signal takes
	// at least another full window.
	select {
	case <-m.Unhealthy():
		t.Error("second unhealthy fired within the same window")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMonitor_DuplicatePongIgnored(t *testing.T) {
	m := NewMonitor(25*time.Millisecond, 15*time.Millisecond, func() error {
		return nil
	}, nil)
	m.Start()
	defer m.Stop()

	// Wait for the first ping window to open, then pong twice.
	time.Sleep(30 * time.Millisecond)
	m.Pong()
	m.Pong() // stray, ignored

	select {
	case <-m.Unhealthy():
		t.Error("unhealthy raised despite pong")
	case <-time.After(15 * time.Millisecond):
	}
}

func TestMonitor_SendFailureRaisesUnhealthy(t *testing.T) {
	m := NewMonitor(20*time.Millisecond, 10*time.Millisecond, func() error {
		return errors.New("broken pipe")
	}, nil)
	m.Start()
	defer m.Stop()

	select {
	case <-m.Unhealthy():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected unhealthy after ping send failure")
	}
}

func TestMonitor_StopDiscardsTimers(t *testing.T) {
	m := NewMonitor(20*time.Millisecond, 10*time.Millisecond, func() error {
		return nil
	}, nil)
	m.Start()
	m.Stop()

	select {
	case <-m.Unhealthy():
		t.Error("unhealthy fired after Stop")
	case <-time.After(80 * time.Millisecond):
	}

	// Stop is idempotent.
	m.Stop()
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m := NewMonitor(20*time.Millisecond, 10*time.Millisecond, func() error {
		return nil
	}, nil)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a prior Start")
	}
}
