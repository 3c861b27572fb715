package actor

import (
	"context"
	"sync/atomic"

	"github.com/teslashibe/go-temitour/pkg/gate"
)

// Slot runs at most one background task at a time. Starting while a task
// is in flight is refused, not queued.
type Slot struct {
	busy atomic.Bool
}

// TryStart runs fn in a new goroutine if the slot is free and reports
// whether it did.
func (s *Slot) TryStart(fn func()) bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.busy.Store(false)
		fn()
	}()
	return true
}

// Active reports whether a task is running.
func (s *Slot) Active() bool {
	return s.busy.Load()
}

// Wait blocks until the slot is free.
func (s *Slot) Wait(ctx context.Context, p gate.Poller) error {
	return p.Gate(ctx, s.Active)
}
