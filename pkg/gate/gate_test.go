package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastPoller() Poller {
	return Poller{Tick: time.Millisecond, Second: 5 * time.Millisecond}
}

func TestTimer_ReturnsImmediatelyWhenDone(t *testing.T) {
	p := Poller{Tick: time.Hour, Second: time.Hour}
	calls := 0
	err := p.Timer(context.Background(), func() bool { calls++; return true }, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single check, got %d", calls)
	}
}

func TestTimer_ReturnsEarlyWhenConditionFlips(t *testing.T) {
	p := fastPoller()
	var checks int32
	done := func() bool { return atomic.AddInt32(&checks, 1) >= 3 }

	if err := p.Timer(context.Background(), done, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&checks); got != 3 {
		t.Errorf("expected to stop on the third check, got %d", got)
	}
}

func TestTimer_BoundedWhenNeverDone(t *testing.T) {
	p := fastPoller()
	checks := 0
	start := time.Now()
	if err := p.Timer(context.Background(), func() bool { checks++; return false }, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// one upfront check plus one per step
	if checks != 5 {
		t.Errorf("expected 5 checks, got %d", checks)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timer overran: %v", elapsed)
	}
}

func TestGate_ZeroDelayWhenOpen(t *testing.T) {
	p := Poller{Tick: time.Hour, Second: time.Hour}
	start := time.Now()
	if err := p.Gate(context.Background(), func() bool { return false }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("open gate should not wait, took %v", elapsed)
	}
}

func TestGate_HoldsWhileBlocked(t *testing.T) {
	p := fastPoller()
	var open atomic.Bool
	released := make(chan struct{})

	go func() {
		_ = p.Gate(context.Background(), func() bool { return !open.Load() })
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("gate released while still blocked")
	case <-time.After(30 * time.Millisecond):
	}

	open.Store(true)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("gate did not release after condition cleared")
	}
}

func TestGate_Cancelled(t *testing.T) {
	p := fastPoller()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Gate(ctx, func() bool { return true })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBuffer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Default().Buffer(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
