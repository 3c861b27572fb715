// Package gate provides the polling primitives the tour is built from.
//
// Every blocking step in the tour is one of three waits: a short buffer
// tick, a bounded wait for a condition to become true (Timer), or an
// unbounded wait for a condition to become false (Gate). All of them poll
// shared state rather than block on channels, so any goroutine can change
// the outcome just by writing that state.
package gate

import (
	"context"
	"time"
)

// Default polling intervals.
const (
	DefaultTick   = 100 * time.Millisecond
	DefaultSecond = time.Second
)

// Poller holds the intervals used by the primitives.
// Tests shrink both to keep blocking code fast.
type Poller struct {
	Tick   time.Duration // Buffer and Gate poll interval
	Second time.Duration // Timer poll interval
}

// Default returns the production poller (100ms tick, 1s timer step).
func Default() Poller {
	return Poller{Tick: DefaultTick, Second: DefaultSecond}
}

// Buffer suspends the caller for one tick.
func (p Poller) Buffer(ctx context.Context) error {
	return Sleep(ctx, p.Tick)
}

// Timer waits until done returns true, polling once per Second for at most
// n steps. It returns immediately if done is already true and returns
// silently when the steps run out; callers re-check the condition.
func (p Poller) Timer(ctx context.Context, done func() bool, n int) error {
	if done() {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := Sleep(ctx, p.Second); err != nil {
			return err
		}
		if done() {
			return nil
		}
	}
	return nil
}

// Gate blocks while blocked returns true, polling every tick.
// There is no timeout. A condition that never clears holds the caller
// until ctx is cancelled.
func (p Poller) Gate(ctx context.Context, blocked func() bool) error {
	for blocked() {
		if err := Sleep(ctx, p.Tick); err != nil {
			return err
		}
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
