// Package interrupt latches the tour when the person it is guiding walks
// away, crowds the robot, or the robot is physically moved.
//
// Speech and navigation calls arm the conditions they care about. A
// detector loop debounces the armed conditions and, once one has held for
// the trigger delay, sets the latch, asks the actors to repeat their
// current sentence and navigation, and stops the robot. The latch clears
// as soon as the condition does.
package interrupt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/perception"
)

// DefaultTriggerDelay is how long a condition must hold before latching.
const DefaultTriggerDelay = 10 * time.Second

// Reasons reported to metrics and recorders.
const (
	ReasonUserMissing  = "user_missing"
	ReasonUserTooClose = "user_too_close"
	ReasonDeviceMoved  = "device_moved"
)

// Flags selects which conditions may interrupt the current operation.
type Flags struct {
	UserMissing  bool `json:"user_missing" yaml:"user_missing"`
	UserTooClose bool `json:"user_too_close" yaml:"user_too_close"`
	DeviceMoved  bool `json:"device_moved" yaml:"device_moved"`
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return f.UserMissing || f.UserTooClose || f.DeviceMoved
}

// Common flag sets.
var (
	None        = Flags{}
	UserMissing = Flags{UserMissing: true}
)

// State is the supervisor's shared bundle.
type State struct {
	Triggered    bool  `json:"triggered"`
	Flags        Flags `json:"flags"`
	RepeatSpeech bool  `json:"repeat_speech"`
	RepeatGoTo   bool  `json:"repeat_goto"`
}

// Stopper halts any robot movement in progress.
type Stopper interface {
	StopMovement() error
}

// MisuseSource reports whether the robot is lifted or dragged.
type MisuseSource interface {
	Misuse() bool
}

// Recorder is notified of latch edges.
type Recorder interface {
	InterruptTriggered(reason string)
	InterruptCleared(paused time.Duration)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithTriggerDelay sets the debounce window.
func WithTriggerDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.delay = d }
}

// WithPoller sets the polling intervals.
func WithPoller(p gate.Poller) Option {
	return func(s *Supervisor) { s.poller = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithRecorder adds a latch edge recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Supervisor) { s.recorder = r }
}

// Supervisor owns the interrupt state for the life of the process.
type Supervisor struct {
	perception perception.Reader
	misuse     MisuseSource
	stopper    Stopper
	poller     gate.Poller
	delay      time.Duration
	recorder   Recorder
	logger     *slog.Logger

	mu sync.Mutex
	st State
}

// New creates a supervisor.
func New(p perception.Reader, misuse MisuseSource, stopper Stopper, opts ...Option) *Supervisor {
	s := &Supervisor{
		perception: p,
		misuse:     misuse,
		stopper:    stopper,
		poller:     gate.Default(),
		delay:      DefaultTriggerDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "interrupt")
	return s
}

// Run starts the detector and drain loops. Both exit when ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.detect(ctx) })
	g.Go(func() error { return s.drain(ctx) })
	return g.Wait()
}

// steps converts the trigger delay into Timer steps.
func (s *Supervisor) steps() int {
	if s.poller.Second <= 0 {
		return 0
	}
	n := int(s.delay / s.poller.Second)
	if s.delay%s.poller.Second != 0 {
		n++
	}
	return n
}

func (s *Supervisor) detect(ctx context.Context) error {
	for {
		if s.ShouldTrigger() {
			if !s.Triggered() {
				if err := s.poller.Timer(ctx, func() bool { return !s.ShouldTrigger() }, s.steps()); err != nil {
					return err
				}
				if reason, ok := s.condition(); ok {
					s.latch(reason)
				}
			}
		} else {
			s.unlatch()
		}
		if err := s.poller.Buffer(ctx); err != nil {
			return err
		}
	}
}

func (s *Supervisor) drain(ctx context.Context) error {
	for {
		if s.Triggered() {
			start := time.Now()
			if err := s.WaitResume(ctx); err != nil {
				return err
			}
			paused := time.Since(start)
			metrics.InterruptPause.Observe(paused.Seconds())
			s.logger.Info("interrupt cleared, resuming", "paused", paused.Round(time.Millisecond))
			if s.recorder != nil {
				s.recorder.InterruptCleared(paused)
			}
		}
		if err := s.poller.Buffer(ctx); err != nil {
			return err
		}
	}
}

// condition returns the first armed condition that currently holds.
func (s *Supervisor) condition() (string, bool) {
	flags := s.Flags()
	if !flags.Any() {
		return "", false
	}
	y := s.perception.Y()
	switch {
	case flags.UserMissing && y == perception.YMissing:
		return ReasonUserMissing, true
	case flags.UserTooClose && y == perception.YClose:
		return ReasonUserTooClose, true
	case flags.DeviceMoved && s.misuse != nil && s.misuse.Misuse():
		return ReasonDeviceMoved, true
	}
	return "", false
}

// ShouldTrigger reports whether an armed condition currently holds.
func (s *Supervisor) ShouldTrigger() bool {
	_, ok := s.condition()
	return ok
}

func (s *Supervisor) latch(reason string) {
	s.mu.Lock()
	if s.st.Triggered {
		s.mu.Unlock()
		return
	}
	s.st.Triggered = true
	s.st.RepeatSpeech = true
	s.st.RepeatGoTo = true
	s.mu.Unlock()

	s.logger.Warn("interrupt triggered", "reason", reason)
	metrics.InterruptsTriggered.WithLabelValues(reason).Inc()
	metrics.InterruptLatched.Set(1)
	if s.recorder != nil {
		s.recorder.InterruptTriggered(reason)
	}
	if s.stopper != nil {
		if err := s.stopper.StopMovement(); err != nil {
			s.logger.Error("stop movement failed", "error", err)
			metrics.CommandErrors.WithLabelValues("stop_movement").Inc()
		}
	}
}

func (s *Supervisor) unlatch() {
	s.mu.Lock()
	was := s.st.Triggered
	s.st.Triggered = false
	s.mu.Unlock()
	if was {
		metrics.InterruptLatched.Set(0)
	}
}

// WaitResume blocks while the latch is set.
func (s *Supervisor) WaitResume(ctx context.Context) error {
	for s.Triggered() {
		if err := s.poller.Timer(ctx, func() bool { return !s.Triggered() }, 1); err != nil {
			return err
		}
	}
	return nil
}

// Arm replaces the armed flags and clears any repeat request left over
// from an earlier operation.
func (s *Supervisor) Arm(f Flags) {
	s.mu.Lock()
	s.st.Flags = f
	s.st.RepeatSpeech = false
	s.st.RepeatGoTo = false
	s.mu.Unlock()
}

// Disarm clears all armed flags.
func (s *Supervisor) Disarm() {
	s.mu.Lock()
	s.st.Flags = Flags{}
	s.mu.Unlock()
}

// Flags returns the armed flags.
func (s *Supervisor) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Flags
}

// Armed reports whether any flag is armed.
func (s *Supervisor) Armed() bool {
	return s.Flags().Any()
}

// Triggered reports whether the latch is set.
func (s *Supervisor) Triggered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Triggered
}

// Interrupted reports whether the latch is set while something is armed.
// Actors stop waiting normally when this is true.
func (s *Supervisor) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Triggered && s.st.Flags.Any()
}

// ConsumeRepeatSpeech reports and clears the sentence repeat request.
func (s *Supervisor) ConsumeRepeatSpeech() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.st.RepeatSpeech
	s.st.RepeatSpeech = false
	return v
}

// ConsumeRepeatGoTo reports and clears the navigation repeat request.
func (s *Supervisor) ConsumeRepeatGoTo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.st.RepeatGoTo
	s.st.RepeatGoTo = false
	return v
}

// Snapshot returns a copy of the state.
func (s *Supervisor) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}
