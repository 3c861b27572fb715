// Package perception turns raw person-detection samples into the coarse
// directional state the rest of the tour reacts to.
package perception

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// Source supplies the latest detection sample.
type Source interface {
	Latest() Sample
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Sample

// Latest calls f.
func (f SourceFunc) Latest() Sample { return f() }

// StateSource reads samples from the robot status store.
// A sample is active while the detection state is DETECTED.
type StateSource struct {
	State *robot.State
}

// Latest implements Source.
func (s StateSource) Latest() Sample {
	raw, at := s.State.Sample()
	return Sample{
		Angle:    raw.Angle,
		Distance: raw.Distance,
		Active:   s.State.Detection() == robot.DetectionDetected,
		At:       at,
	}
}

// Config holds the classifier timing.
type Config struct {
	Interval   time.Duration // How often each axis is re-sampled
	StaleAfter time.Duration // Treat older samples as inactive (0 = never)
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{Interval: 500 * time.Millisecond}
}

// Classifier owns the directional snapshot and the two loops that update it.
type Classifier struct {
	src    Source
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a classifier reading from src.
func New(src Source, cfg Config, logger *slog.Logger) *Classifier {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		src:    src,
		cfg:    cfg,
		logger: logger.With("component", "perception"),
		now:    time.Now,
	}
}

// Run drives the X and Y loops until ctx is cancelled.
func (c *Classifier) Run(ctx context.Context) error {
	c.logger.Info("classifier started", "interval", c.cfg.Interval, "stale_after", c.cfg.StaleAfter)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.loop(ctx, c.tickY) })
	g.Go(func() error { return c.loop(ctx, c.tickX) })
	return g.Wait()
}

func (c *Classifier) loop(ctx context.Context, tick func(prev float64) float64) error {
	var prev float64
	for {
		if err := gate.Sleep(ctx, c.cfg.Interval); err != nil {
			return err
		}
		prev = tick(prev)
	}
}

// sample reads the source and applies the staleness rule.
func (c *Classifier) sample() Sample {
	s := c.src.Latest()
	if c.cfg.StaleAfter > 0 && s.Active && !s.At.IsZero() && c.now().Sub(s.At) > c.cfg.StaleAfter {
		s.Active = false
	}
	return s
}

// tickY runs one Y update and returns the raw distance to remember. An
// inactive sample leaves nothing to remember, so motion is only derived
// from two consecutive active samples.
func (c *Classifier) tickY(prev float64) float64 {
	s := c.sample()
	c.mu.Lock()
	old := c.snap.Y
	c.snap.Y, c.snap.YMotion = StepY(prev, s, c.snap.YMotion)
	y, m := c.snap.Y, c.snap.YMotion
	c.mu.Unlock()

	if y != old {
		c.logger.Debug("y position", "from", old, "to", y)
		metrics.SetOneHot(metrics.PerceptionY, yLabels, y.String())
	}
	if m != YNowhere && s.Active && prev != 0 {
		metrics.MotionEvents.WithLabelValues("y", m.String()).Inc()
	}
	if !s.Active {
		return 0
	}
	return s.Distance
}

// tickX runs one X update and returns the raw angle to remember, or 0
// after an inactive sample.
func (c *Classifier) tickX(prev float64) float64 {
	s := c.sample()
	c.mu.Lock()
	old := c.snap.X
	c.snap.X, c.snap.XMotion = StepX(prev, s, c.snap.Y, c.snap.XMotion)
	x, m := c.snap.X, c.snap.XMotion
	c.mu.Unlock()

	if x != old {
		c.logger.Debug("x position", "from", old, "to", x)
		metrics.SetOneHot(metrics.PerceptionX, xLabels, x.String())
	}
	if m != XNowhere && s.Active && prev != 0 {
		metrics.MotionEvents.WithLabelValues("x", m.String()).Inc()
	}
	if !s.Active {
		return 0
	}
	return s.Angle
}

var (
	yLabels = labels(YPositions)
	xLabels = labels(XPositions)
)

func labels[T interface{ String() string }](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

// Snapshot returns all four fields under one lock.
func (c *Classifier) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Y returns the distance band.
func (c *Classifier) Y() YPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Y
}

// YMotion returns the last distance-axis motion.
func (c *Classifier) YMotion() YMotion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.YMotion
}

// X returns the side.
func (c *Classifier) X() XPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.X
}

// XMotion returns the last cross-axis motion.
func (c *Classifier) XMotion() XMotion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.XMotion
}

// Reader is the read side of the classifier used by other packages.
type Reader interface {
	Y() YPosition
	X() XPosition
}

var _ Reader = (*Classifier)(nil)
