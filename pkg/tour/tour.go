// Package tour runs the scripted guided tour.
//
// A Machine walks a sequence of stages forever. Each stage body is written
// against the blocking calls of the actor and dialog packages, so a stage
// reads top to bottom as the robot's script: go here, say this, wait for
// the visitor, ask a question.
package tour

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/teslashibe/go-temitour/pkg/actor"
	"github.com/teslashibe/go-temitour/pkg/dialog"
	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/inference"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// FollowMode turns constrained following on and off.
type FollowMode interface {
	SetEnabled(on bool)
}

// Journal records tour runs. All methods are called from the tour worker.
type Journal interface {
	StartRun(ctx context.Context) (string, error)
	RecordStage(ctx context.Context, runID, stage string, started time.Time, elapsed time.Duration, stageErr error) error
	SetUserName(ctx context.Context, runID, name string) error
	FinishRun(ctx context.Context, runID string) error
}

// Config holds tour settings.
type Config struct {
	Sequence []Stage
	Speed    robot.SpeedLevel

	// ValidateLocations checks the script against the robot's saved
	// locations during Init.
	ValidateLocations bool

	// LocationWait is how many timer steps Init waits for the location list.
	LocationWait int

	// ChatReplyTimeout bounds the wait for a chat reply. Zero waits forever.
	ChatReplyTimeout time.Duration

	// MaxCycles stops Run after that many passes. Zero runs forever.
	MaxCycles int

	Rand   *rand.Rand
	Logger *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Sequence:          DefaultSequence,
		Speed:             robot.SpeedHigh,
		ValidateLocations: true,
		LocationWait:      10,
		ChatReplyTimeout:  60 * time.Second,
	}
}

// Deps are the collaborators a Tour drives.
type Deps struct {
	Actor   *actor.Actor
	Dialog  *dialog.Dialog
	View    perception.Reader
	Display Display
	Script  *Script

	Follow  FollowMode         // may be nil
	Chat    inference.Provider // may be nil
	Journal Journal            // may be nil
}

// Status is the tour's externally visible state.
type Status struct {
	Stage    string `json:"stage"`
	Cycle    int    `json:"cycle"`
	RunID    string `json:"run_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// Tour owns the stage bodies and the machine that sequences them.
type Tour struct {
	act     *actor.Actor
	dlg     *dialog.Dialog
	view    perception.Reader
	display Display
	script  *Script
	follow  FollowMode
	chat    inference.Provider
	journal Journal

	cfg     Config
	poller  gate.Poller
	log     *slog.Logger
	rng     *rand.Rand
	machine *Machine

	mu       sync.RWMutex
	runID    string
	userName string
}

// New creates a tour.
func New(deps Deps, cfg Config) *Tour {
	if len(cfg.Sequence) == 0 {
		cfg.Sequence = DefaultSequence
	}
	if cfg.Speed == "" {
		cfg.Speed = robot.SpeedHigh
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	t := &Tour{
		act:     deps.Actor,
		dlg:     deps.Dialog,
		view:    deps.View,
		display: deps.Display,
		script:  deps.Script,
		follow:  deps.Follow,
		chat:    deps.Chat,
		journal: deps.Journal,
		cfg:     cfg,
		poller:  deps.Actor.Poller(),
		log:     logger.With("component", "tour"),
		rng:     rng,
	}
	t.machine = NewMachine(t.runStage, MachineConfig{
		Sequence:  cfg.Sequence,
		Poller:    t.poller,
		MaxCycles: cfg.MaxCycles,
		Logger:    logger,
		Hooks: Hooks{
			CycleStarted:  t.cycleStarted,
			StageFinished: t.stageFinished,
		},
	})
	return t
}

// Init prepares the robot: it sets the travel speed and, when enabled,
// checks every script location against the robot's map.
func (t *Tour) Init(ctx context.Context) error {
	if err := t.act.SetSpeed(ctx, t.cfg.Speed); err != nil {
		return err
	}
	if !t.cfg.ValidateLocations {
		return nil
	}
	known, err := t.act.Locations(ctx, t.cfg.LocationWait)
	if err != nil {
		return err
	}
	if len(known) == 0 {
		t.log.Warn("robot reported no saved locations, skipping script check")
		return nil
	}
	if err := t.script.Validate(known); err != nil {
		return err
	}
	t.log.Info("script locations verified", "count", len(t.script.LocationNames()))
	return nil
}

// Run drives the stage sequence until ctx is cancelled.
func (t *Tour) Run(ctx context.Context) error {
	err := t.machine.Run(ctx)
	if t.journal != nil {
		if id := t.RunID(); id != "" {
			if ferr := t.journal.FinishRun(context.WithoutCancel(ctx), id); ferr != nil {
				t.log.Warn("finish run failed", "error", ferr)
			}
		}
	}
	return err
}

// Machine returns the stage machine.
func (t *Tour) Machine() *Machine { return t.machine }

// Status returns the current stage, run and visitor.
func (t *Tour) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		Stage:    t.machine.Current().String(),
		Cycle:    t.machine.Cycle(),
		RunID:    t.runID,
		UserName: t.userName,
	}
}

// RunID returns the journal id of the current run, or "".
func (t *Tour) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runID
}

// UserName returns the visitor's captured name, or "".
func (t *Tour) UserName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userName
}

func (t *Tour) setUserName(ctx context.Context, name string) {
	t.mu.Lock()
	t.userName = name
	id := t.runID
	t.mu.Unlock()
	if t.journal != nil && id != "" && name != "" {
		if err := t.journal.SetUserName(ctx, id, name); err != nil {
			t.log.Warn("journal name failed", "error", err)
		}
	}
}

func (t *Tour) cycleStarted(ctx context.Context, cycle int) {
	if t.journal == nil {
		return
	}
	if id := t.RunID(); id != "" {
		if err := t.journal.FinishRun(ctx, id); err != nil {
			t.log.Warn("finish run failed", "error", err)
		}
	}
	id, err := t.journal.StartRun(ctx)
	if err != nil {
		t.log.Warn("start run failed", "error", err)
		id = ""
	}
	t.mu.Lock()
	t.runID = id
	t.mu.Unlock()
	t.log.Info("tour cycle started", "cycle", cycle, "run_id", id)
}

func (t *Tour) stageFinished(ctx context.Context, stage Stage, elapsed time.Duration, err error) {
	id := t.RunID()
	if t.journal == nil || id == "" {
		return
	}
	started := time.Now().Add(-elapsed)
	if jerr := t.journal.RecordStage(ctx, id, stage.String(), started, elapsed, err); jerr != nil {
		t.log.Warn("journal stage failed", "error", jerr)
	}
	if stage == StageTourEnd {
		t.finishRun(ctx)
	}
}

// finishRun closes the current journal run.
func (t *Tour) finishRun(ctx context.Context) {
	t.mu.Lock()
	id := t.runID
	t.runID = ""
	t.mu.Unlock()
	if t.journal == nil || id == "" {
		return
	}
	if err := t.journal.FinishRun(ctx, id); err != nil {
		t.log.Warn("finish run failed", "error", err)
	}
}

// runStage dispatches one stage body.
func (t *Tour) runStage(ctx context.Context, stage Stage) error {
	switch stage {
	case StageStartLocation:
		return t.startLocation(ctx)
	case StageIdle:
		return t.idle(ctx)
	case StageAlternateStart:
		return t.alternateStart(ctx)
	case Stage1:
		return t.stage1(ctx)
	case Stage1B:
		return t.stage1B(ctx)
	case Stage1_1:
		return t.distanceDemo(ctx, 4)
	case Stage1_1B:
		return t.distanceDemo(ctx, 1)
	case StageGetUserName:
		return t.getUserName(ctx)
	case Stage1_2B:
		return t.stops(ctx)
	case StageTourEnd:
		return t.tourEnd(ctx)
	case StageChatGPT:
		return t.chatGPT(ctx)
	case StageTerminate:
		return t.terminate(ctx)
	case StageNull, StageRamp, StageTesting, StageTemiV2, Stage1_2:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
}

// pick returns a random line.
func (t *Tour) pick(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[t.rng.Intn(len(lines))]
}

func (t *Tour) say(ctx context.Context, text string, opts ...actor.CallOption) error {
	if text == "" {
		return nil
	}
	return t.act.Speak(ctx, text, opts...)
}

func (t *Tour) closeCheck() dialog.CloseCheck {
	c := t.script.Common
	return dialog.CloseCheck{NotClose: c.BeginTour, Close: c.TooClose, Thanks: c.ThankYou}
}
