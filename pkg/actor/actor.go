// Package actor wraps robot commands in the blocking, interrupt-aware
// calls the tour is written against.
//
// Every call issues a command, then polls robot.State until the robot
// reports completion or an armed interrupt fires. Interrupted calls wait
// for the latch to clear and then repeat the sentence or navigation that
// was in flight.
package actor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/interrupt"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// ErrNavigationTimeout is returned by GoTo when NavigationMaxWait elapses.
var ErrNavigationTimeout = errors.New("actor: navigation did not finish in time")

// Config holds actor settings.
type Config struct {
	Poller gate.Poller

	// NavigationMaxWait bounds a single go-to command. Zero waits forever.
	NavigationMaxWait time.Duration

	// SkidInterval is the delay between joystick pulses.
	SkidInterval time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Poller:       gate.Default(),
		SkidInterval: 500 * time.Millisecond,
	}
}

// Actor issues speech, navigation and conversation commands.
type Actor struct {
	robot robot.Controller
	state *robot.State
	sup   *interrupt.Supervisor
	cfg   Config
	log   *slog.Logger

	narration Slot
}

// New creates an actor.
func New(ctrl robot.Controller, state *robot.State, sup *interrupt.Supervisor, cfg Config) *Actor {
	if cfg.Poller.Tick <= 0 || cfg.Poller.Second <= 0 {
		cfg.Poller = gate.Default()
	}
	if cfg.SkidInterval <= 0 {
		cfg.SkidInterval = 5 * cfg.Poller.Tick
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		robot: ctrl,
		state: state,
		sup:   sup,
		cfg:   cfg,
		log:   logger.With("component", "actor"),
	}
}

// Poller returns the actor's polling intervals.
func (a *Actor) Poller() gate.Poller { return a.cfg.Poller }

// State returns the robot status store the actor polls.
func (a *Actor) State() *robot.State { return a.state }

// Supervisor returns the interrupt supervisor.
func (a *Actor) Supervisor() *interrupt.Supervisor { return a.sup }

// CallOption adjusts a single Speak or GoTo call.
type CallOption func(*call)

type call struct {
	flags     interrupt.Flags
	showFace  bool
	backwards bool
	narration string
}

func newCall(opts []CallOption) call {
	c := call{showFace: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// interruptible reports whether the call watches the latch.
func (c call) interruptible() bool { return c.flags.Any() }

// WithInterrupt arms the given conditions for the duration of the call.
func WithInterrupt(f interrupt.Flags) CallOption {
	return func(c *call) { c.flags = f }
}

// WithoutFace hides the speaking face while talking.
func WithoutFace() CallOption {
	return func(c *call) { c.showFace = false }
}

// Backwards approaches the location in reverse.
func Backwards() CallOption {
	return func(c *call) { c.backwards = true }
}

// WithNarration speaks text, fire-and-forget, while travelling.
func WithNarration(text string) CallOption {
	return func(c *call) { c.narration = text }
}

// send runs cmd until it succeeds. A command that cannot reach the robot
// is retried every timer step so the tour picks up where it left off once
// the link comes back. There is no retry limit: the only non-nil return is
// ctx.Err().
func (a *Actor) send(ctx context.Context, name string, cmd func() error) error {
	warned := false
	for {
		err := cmd()
		if err == nil {
			if warned {
				a.log.Info("command delivered after retry", "command", name)
			}
			return nil
		}
		metrics.CommandErrors.WithLabelValues(name).Inc()
		if !warned {
			a.log.Warn("command failed, retrying", "command", name, "error", err)
			warned = true
		}
		if err := gate.Sleep(ctx, a.cfg.Poller.Second); err != nil {
			return err
		}
	}
}

// SetSpeed sets the go-to speed preset.
func (a *Actor) SetSpeed(ctx context.Context, level robot.SpeedLevel) error {
	return a.send(ctx, "goto_speed", func() error { return a.robot.SetGoToSpeed(level) })
}

// SetMainButton enables or disables the hardware main button.
func (a *Actor) SetMainButton(ctx context.Context, enabled bool) error {
	return a.send(ctx, "main_button", func() error { return a.robot.SetMainButtonMode(enabled) })
}

// SetCliffSensor toggles cliff detection.
func (a *Actor) SetCliffSensor(ctx context.Context, on bool) error {
	return a.send(ctx, "cliff_sensor", func() error { return a.robot.SetCliffSensorOn(on) })
}

// Tilt points the screen to degrees.
func (a *Actor) Tilt(ctx context.Context, degrees int, speed float64) error {
	return a.send(ctx, "tilt", func() error { return a.robot.TiltAngle(degrees, speed) })
}

// StopMovement halts the robot.
func (a *Actor) StopMovement(ctx context.Context) error {
	return a.send(ctx, "stop_movement", a.robot.StopMovement)
}

// Locations asks the robot for its saved locations and waits up to n
// timer steps for the list to arrive.
func (a *Actor) Locations(ctx context.Context, n int) ([]string, error) {
	if err := a.send(ctx, "list_locations", a.robot.RequestLocations); err != nil {
		return nil, err
	}
	has := func() bool { return len(a.state.Locations()) > 0 }
	if err := a.cfg.Poller.Timer(ctx, has, n); err != nil {
		return nil, err
	}
	return a.state.Locations(), nil
}
