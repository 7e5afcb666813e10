package assembly

import (
	"testing"
	"time"
)

func TestAssembler_ChunkConcatenation(t *testing.T) {
	a := NewAssembler(10, time.Minute, nil)

	chunks := []string{"Hel", "lo", " world"}
	for _, c := range chunks {
		if !a.AddChunk("m1", c) {
			t.Fatalf("AddChunk(%q) rejected", c)
		}
	}

	full, ok := a.Complete("m1")
	if !ok {
		t.Fatal("Complete failed")
	}
	if full != "Hello world" {
		t.Errorf("full text = %q, want %q", full, "Hello world")
	}

	a.Evict("m1")
	if a.Len() != 0 {
		t.Errorf("Len = %d after evict, want 0", a.Len())
	}
}

func TestAssembler_RegisterThenChunks(t *testing.T) {
	a := NewAssembler(10, time.Minute, nil)

	if err := a.Register("m1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := a.Register("m1"); err == nil {
		t.Error("expected error registering duplicate id")
	}

	a.AddChunk("m1", "hi")
	full, ok := a.Complete("m1")
	if !ok || full != "hi" {
		t.Errorf("Complete = %q, %v; want hi, true", full, ok)
	}
}

func TestAssembler_ChunkAfterResolveIsNoOp(t *testing.T) {
	a := NewAssembler(10, time.Minute, nil)

	a.AddChunk("m1", "done")
	if _, ok := a.Complete("m1"); !ok {
		t.Fatal("Complete failed")
	}

	if a.AddChunk("m1", "late") {
		t.Error("chunk after completion should be rejected")
	}

	// Second resolution attempts are rejected too.
	if _, ok := a.Complete("m1"); ok {
		t.Error("second Complete should fail")
	}
	if a.Fail("m1", "boom") {
		t.Error("Fail after Complete should fail")
	}
}

func TestAssembler_UnknownIDResolution(t *testing.T) {
	a := NewAssembler(10, time.Minute, nil)

	if _, ok := a.Complete("ghost"); ok {
		t.Error("Complete for unknown id should fail")
	}
	if a.Fail("ghost", "boom") {
		t.Error("Fail for unknown id should fail")
	}
}

func TestAssembler_InFlightCap(t *testing.T) {
	a := NewAssembler(2, time.Minute, nil)

	if !a.AddChunk("m1", "a") || !a.AddChunk("m2", "b") {
		t.Fatal("chunks under cap rejected")
	}

	if a.AddChunk("m3", "c") {
		t.Error("chunk beyond cap should be rejected")
	}
	if err := a.Register("m3"); err != ErrTooManyInFlight {
		t.Errorf("Register beyond cap: got %v, want ErrTooManyInFlight", err)
	}

	// Chunks for known ids still flow at the cap.
	if !a.AddChunk("m1", "a2") {
		t.Error("chunk for known id rejected at cap")
	}

	// Evicting frees a slot.
	a.Complete("m1")
	a.Evict("m1")
	if !a.AddChunk("m3", "c") {
		t.Error("chunk rejected after slot freed")
	}
}

func TestAssembler_FailAll(t *testing.T) {
	a := NewAssembler(10, time.Minute, nil)

	a.AddChunk("m1", "a")
	a.AddChunk("m2", "b")
	a.Complete("m2") // already resolved, must not be failed again

	failed := a.FailAll("connection lost")
	if len(failed) != 1 || failed[0] != "m1" {
		t.Errorf("FailAll = %v, want [m1]", failed)
	}

	// Entries remain until evicted so trailing flushes can drain.
	if a.Len() != 2 {
		t.Errorf("Len = %d, want 2", a.Len())
	}
}

func TestAssembler_SweepStalled(t *testing.T) {
	a := NewAssembler(10, 50*time.Millisecond, nil)

	a.AddChunk("slow", "x")
	a.AddChunk("fast", "y")

	// Nothing stalls within the lifetime.
	if ids := a.SweepStalled(time.Now()); len(ids) != 0 {
		t.Errorf("premature stall: %v", ids)
	}

	// Keep "fast" alive past the deadline, let "slow" stall.
	time.Sleep(60 * time.Millisecond)
	a.AddChunk("fast", "y2")

	ids := a.SweepStalled(time.Now())
	if len(ids) != 1 || ids[0] != "slow" {
		t.Errorf("SweepStalled = %v, want [slow]", ids)
	}

	// A stalled message is Failed; further chunks are no-ops.
	if a.AddChunk("slow", "late") {
		t.Error("chunk for stalled message should be rejected")
	}
}

func TestAssembler_SweepDisabled(t *testing.T) {
	a := NewAssembler(10, 0, nil)
	a.AddChunk("m1", "x")

	if ids := a.SweepStalled(time.Now().Add(time.Hour)); ids != nil {
		t.Errorf("sweep with zero lifetime = %v, want nil", ids)
	}
}
