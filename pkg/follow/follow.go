// Package follow keeps the robot turned toward the visitor while it waits
// for a tour to start, without letting it wander off its post.
//
// A Follower runs a fixed-rate loop. While enabled and not in misuse, each
// tick either turns toward the detected person, sweeps toward the side the
// person was lost on, or turns back to the default heading. Turns are
// clamped so the body never leaves Boundary degrees either side of the
// default heading.
package follow

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// Config holds follower settings. Angles are in degrees.
type Config struct {
	// Rate is the control loop tick rate.
	Rate time.Duration

	// DefaultAngle is the heading the robot returns to, in the robot's
	// 0-360 frame (180 plus the body yaw).
	DefaultAngle float64

	// Boundary is how far the robot may turn either side of DefaultAngle.
	Boundary float64

	// AngleDivisor scales the person's relative angle down to a turn.
	AngleDivisor float64

	// Recenter is the heading error below which the robot stays put.
	Recenter float64

	// LostTurn and LostSpeed shape the sweep after losing the person.
	LostTurn  int
	LostSpeed float64

	Poller gate.Poller
	Logger *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Rate:         100 * time.Millisecond,
		DefaultAngle: 180,
		Boundary:     90,
		AngleDivisor: 1.70,
		Recenter:     2,
		LostTurn:     45,
		LostSpeed:    0.1,
		Poller:       gate.Default(),
	}
}

// Follower turns the robot toward a visitor within a bounded arc.
type Follower struct {
	robot robot.MotionController
	state *robot.State
	view  perception.Reader
	cfg   Config
	log   *slog.Logger

	enabled atomic.Bool

	mu       sync.Mutex
	lostSide perception.XPosition

	// Diagnostics
	tickCount  uint64
	turnCount  uint64
	errorCount uint64
	lastError  time.Time
}

// New creates a disabled follower.
func New(ctrl robot.MotionController, state *robot.State, view perception.Reader, cfg Config) *Follower {
	def := DefaultConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Boundary <= 0 {
		cfg.Boundary = def.Boundary
	}
	if cfg.AngleDivisor <= 0 {
		cfg.AngleDivisor = def.AngleDivisor
	}
	if cfg.Recenter <= 0 {
		cfg.Recenter = def.Recenter
	}
	if cfg.LostTurn == 0 {
		cfg.LostTurn = def.LostTurn
	}
	if cfg.LostSpeed <= 0 {
		cfg.LostSpeed = def.LostSpeed
	}
	if cfg.Poller.Tick <= 0 || cfg.Poller.Second <= 0 {
		cfg.Poller = def.Poller
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		robot: ctrl,
		state: state,
		view:  view,
		cfg:   cfg,
		log:   logger.With("component", "follow"),
	}
}

// SetEnabled turns following on or off. It takes effect on the next tick.
func (f *Follower) SetEnabled(on bool) {
	if f.enabled.Swap(on) != on {
		f.log.Info("constrained follow", "enabled", on)
	}
}

// Enabled reports whether following is on.
func (f *Follower) Enabled() bool {
	return f.enabled.Load()
}

// Run starts the control loop. Blocks until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !f.Enabled() || f.state.Misuse() {
				continue
			}
			if err := f.tick(ctx); err != nil {
				return err
			}
		}
	}
}

// heading returns the robot's heading in the 0-360 frame.
func (f *Follower) heading() float64 {
	return 180 + math.Round(degrees(f.state.Yaw()))
}

// tick runs one control cycle. Only context errors are returned; failed
// turns are counted and logged.
func (f *Follower) tick(ctx context.Context) error {
	f.tickCount++

	current := f.heading()
	sample, _ := f.state.Sample()
	relative := math.Round(degrees(sample.Angle)) / f.cfg.AngleDivisor
	turn := float64(int(relative))

	f.mu.Lock()
	switch {
	case relative > 0:
		f.lostSide = perception.XLeft
	case relative < 0:
		f.lostSide = perception.XRight
	}
	side := f.lostSide
	f.mu.Unlock()

	detection := f.state.Detection()
	adjusted := f.clampTurn(current, turn)

	switch {
	case detection == robot.DetectionDetected && math.Abs(adjusted) > 0.1 && f.view.Y() != perception.YClose:
		f.turn(int(adjusted), 1, "track")

	case detection == robot.DetectionLost && f.withinBounds(current):
		switch side {
		case perception.XLeft:
			f.turn(f.cfg.LostTurn, f.cfg.LostSpeed, "lost")
		case perception.XRight:
			f.turn(-f.cfg.LostTurn, f.cfg.LostSpeed, "lost")
		default:
			return nil
		}
		f.mu.Lock()
		f.lostSide = perception.XGone
		f.mu.Unlock()

	case detection == robot.DetectionIdle:
		if math.Abs(f.cfg.DefaultAngle-current) <= f.cfg.Recenter {
			return nil
		}
		f.turn(int(directedAngle(f.cfg.DefaultAngle, current)), 1, "recenter")
		return f.cfg.Poller.Gate(ctx, func() bool {
			return f.Enabled() && !f.state.Movement().Done()
		})
	}

	if f.tickCount%100 == 0 {
		f.log.Debug("follow heartbeat", "ticks", f.tickCount, "turns", f.turnCount, "errors", f.errorCount, "heading", current)
	}
	return nil
}

func (f *Follower) turn(deg int, speed float64, reason string) {
	f.turnCount++
	metrics.FollowTurns.WithLabelValues(reason).Inc()
	if err := f.robot.TurnBy(deg, speed); err != nil {
		// Log errors at most once per 5 seconds
		f.errorCount++
		if f.lastError.IsZero() || time.Since(f.lastError) > 5*time.Second {
			f.log.Warn("turn failed", "error", err, "total_errors", f.errorCount)
			f.lastError = time.Now()
		}
		return
	}
	f.log.Debug("turn", "degrees", deg, "reason", reason)
}

func (f *Follower) bounds() (lower, upper float64) {
	return normalizeAngle(f.cfg.DefaultAngle - f.cfg.Boundary), normalizeAngle(f.cfg.DefaultAngle + f.cfg.Boundary)
}

func (f *Follower) withinBounds(current float64) bool {
	return current < f.cfg.DefaultAngle+f.cfg.Boundary && current > f.cfg.DefaultAngle-f.cfg.Boundary
}

// clampTurn returns target when the resulting heading stays inside the
// arc, otherwise the turn that stops one degree inside the nearest edge.
func (f *Follower) clampTurn(current, target float64) float64 {
	lower, upper := f.bounds()
	next := normalizeAngle(current + target)

	switch {
	case lower < upper && next >= lower && next <= upper:
		return target
	case lower > upper && (next >= lower || next <= upper):
		return target
	case lower < upper:
		if next < lower {
			return lower + 1 - current
		}
		return upper - 1 - current
	default:
		if math.Abs(upper-current) < math.Abs(lower-current) {
			return upper - 1 - current
		}
		return lower + 1 - current
	}
}

// normalizeAngle maps angle into [0, 360).
func normalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// directedAngle returns a1-a2 folded into [-180, 180].
func directedAngle(a1, a2 float64) float64 {
	d := a1 - a2
	if d > 180 {
		d -= 360
	}
	if d < -180 {
		d += 360
	}
	return d
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
