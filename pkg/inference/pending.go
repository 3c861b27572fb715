package inference

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
)

// Pending is a completion running in the background.
type Pending struct {
	mu    sync.Mutex
	done  bool
	reply string
	err   error
}

// Ask starts a completion and returns immediately.
func Ask(ctx context.Context, p Provider, system, user string) *Pending {
	pd := &Pending{}
	if p == nil {
		pd.finish("", ErrProviderUnavailable)
		return pd
	}
	go func() {
		start := time.Now()
		reply, err := Complete(ctx, p, system, user)
		metrics.ChatLatency.Observe(float64(time.Since(start).Milliseconds()))
		pd.finish(reply, err)
	}()
	return pd
}

func (p *Pending) finish(reply string, err error) {
	p.mu.Lock()
	p.done, p.reply, p.err = true, reply, err
	p.mu.Unlock()
}

// Done reports whether a reply or an error has arrived.
func (p *Pending) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Result returns the reply and error. Both are zero until Done.
func (p *Pending) Result() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reply, p.err
}

// Wait polls until the reply or an error arrives, or timeout passes. A
// zero timeout waits until ctx is done.
func (p *Pending) Wait(ctx context.Context, poller gate.Poller, timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	err := poller.Gate(ctx, func() bool {
		return !p.Done() && (deadline.IsZero() || time.Now().Before(deadline))
	})
	if err != nil {
		return "", err
	}
	if !p.Done() {
		return "", ErrReplyTimeout
	}
	return p.Result()
}
