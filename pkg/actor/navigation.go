package actor

import (
	"context"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// GoTo drives to location and returns once the robot reports arrival.
//
// A narration given with WithNarration plays in the background during
// travel and GoTo waits for it before returning. Without one, GoTo leaves
// any narration started elsewhere alone. With WithInterrupt the
// navigation is abandoned while the latch is set and re-issued once it
// clears. An ABORT from the robot is retried.
func (a *Actor) GoTo(ctx context.Context, location string, opts ...CallOption) error {
	c := newCall(opts)
	if c.interruptible() {
		a.sup.Arm(c.flags)
		defer a.sup.Disarm()
	} else {
		a.sup.ConsumeRepeatGoTo()
	}

	if c.narration != "" {
		narrate := []CallOption{WithInterrupt(c.flags)}
		if !c.showFace {
			narrate = append(narrate, WithoutFace())
		}
		a.SpeakAsync(ctx, c.narration, narrate...)
	}

	log := a.log.With("location", location)
	began := time.Now()
	var deadline time.Time
	arrived := false
	for {
		if !arrived && !(c.interruptible() && a.sup.Triggered()) {
			if err := a.issueGoTo(ctx, location, c.backwards); err != nil {
				return err
			}
			if a.cfg.NavigationMaxWait > 0 {
				deadline = time.Now().Add(a.cfg.NavigationMaxWait)
			}
		}
		if err := a.cfg.Poller.Buffer(ctx); err != nil {
			return err
		}

		timedOut := func() bool { return !deadline.IsZero() && time.Now().After(deadline) }
		err := a.cfg.Poller.Gate(ctx, func() bool {
			if c.interruptible() && a.sup.Interrupted() {
				return false
			}
			return !a.state.Location().Done() && !timedOut()
		})
		if err != nil {
			return err
		}
		if timedOut() && !a.state.Location().Done() {
			log.Error("navigation timed out", "max_wait", a.cfg.NavigationMaxWait)
			if err := a.StopMovement(ctx); err != nil {
				log.Warn("stop after timeout failed", "error", err)
			}
			return ErrNavigationTimeout
		}

		if c.interruptible() {
			if err := a.sup.WaitResume(ctx); err != nil {
				return err
			}
		}

		switch a.state.Location() {
		case robot.LocationComplete:
			arrived = true
		case robot.LocationAbort:
			if !arrived {
				log.Warn("navigation aborted, retrying")
			}
		}
		if c.interruptible() && a.sup.ConsumeRepeatGoTo() {
			arrived = false
			metrics.Repeats.WithLabelValues("goto").Inc()
			log.Info("repeating navigation after interrupt")
		}
		if arrived {
			break
		}
		if err := a.cfg.Poller.Buffer(ctx); err != nil {
			return err
		}
	}

	metrics.Navigation.WithLabelValues(location).Observe(time.Since(began).Seconds())
	log.Debug("arrived", "elapsed", time.Since(began).Round(time.Millisecond))
	if c.narration == "" {
		return nil
	}
	return a.WaitNarration(ctx)
}

func (a *Actor) issueGoTo(ctx context.Context, location string, backwards bool) error {
	a.state.SetLocation(location, robot.LocationStart)
	a.log.Debug("goto", "location", location, "backwards", backwards)
	return a.send(ctx, "goto", func() error { return a.robot.GoTo(location, backwards) })
}

// TurnBy rotates the body and waits for the movement to finish.
func (a *Actor) TurnBy(ctx context.Context, degrees int, speed float64) error {
	a.state.SetMovement(robot.MovementStart)
	if err := a.send(ctx, "turn_by", func() error { return a.robot.TurnBy(degrees, speed) }); err != nil {
		return err
	}
	if err := a.cfg.Poller.Buffer(ctx); err != nil {
		return err
	}
	return a.cfg.Poller.Gate(ctx, func() bool { return !a.state.Movement().Done() })
}

// SkidJoy pushes the joystick (x, y) n times, one pulse per SkidInterval.
func (a *Actor) SkidJoy(ctx context.Context, x, y float64, n int) error {
	for i := 0; i < n; i++ {
		if err := a.send(ctx, "skid_joy", func() error { return a.robot.SkidJoy(x, y) }); err != nil {
			return err
		}
		if err := gate.Sleep(ctx, a.cfg.SkidInterval); err != nil {
			return err
		}
	}
	return nil
}
