package tour

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
)

// errCyclesDone stops the driver after MaxCycles passes.
var errCyclesDone = errors.New("tour: cycle limit reached")

// Body runs one stage to completion.
type Body func(ctx context.Context, stage Stage) error

// Hooks observe the machine. Any field may be nil.
type Hooks struct {
	CycleStarted  func(ctx context.Context, cycle int)
	StageStarted  func(ctx context.Context, stage Stage)
	StageFinished func(ctx context.Context, stage Stage, elapsed time.Duration, err error)
}

// MachineConfig configures a Machine.
type MachineConfig struct {
	Sequence []Stage
	Poller   gate.Poller

	// MaxCycles stops Run after that many passes over Sequence. Zero runs
	// until the context is cancelled.
	MaxCycles int

	Hooks  Hooks
	Logger *slog.Logger
}

// Machine sequences the tour. A driver goroutine hands out stages in
// order and waits for each to finish; a worker goroutine runs whichever
// stage is current.
type Machine struct {
	cfg  MachineConfig
	body Body
	log  *slog.Logger

	mu       sync.Mutex
	current  Stage
	active   bool
	finished bool
	cycle    int
}

// NewMachine creates a machine that runs body for every stage.
func NewMachine(body Body, cfg MachineConfig) *Machine {
	if len(cfg.Sequence) == 0 {
		cfg.Sequence = DefaultSequence
	}
	if cfg.Poller.Tick <= 0 || cfg.Poller.Second <= 0 {
		cfg.Poller = gate.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:     cfg,
		body:    body,
		log:     logger.With("component", "tour"),
		current: StageNull,
	}
}

// Run starts the driver and the worker and blocks until ctx is cancelled
// or MaxCycles passes have completed.
func (m *Machine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.drive(ctx) })
	g.Go(func() error { return m.work(ctx) })
	err := g.Wait()
	if errors.Is(err, errCyclesDone) {
		return nil
	}
	return err
}

func (m *Machine) drive(ctx context.Context) error {
	for {
		m.mu.Lock()
		m.cycle++
		cycle := m.cycle
		m.mu.Unlock()

		if m.cfg.Hooks.CycleStarted != nil {
			m.cfg.Hooks.CycleStarted(ctx, cycle)
		}
		for _, stage := range m.cfg.Sequence {
			m.enter(stage)
			if err := m.cfg.Poller.Gate(ctx, func() bool { return !m.Finished() }); err != nil {
				return err
			}
			m.mu.Lock()
			m.finished = false
			m.mu.Unlock()
		}
		if m.cfg.MaxCycles > 0 && cycle >= m.cfg.MaxCycles {
			return errCyclesDone
		}
	}
}

func (m *Machine) work(ctx context.Context) error {
	for {
		if stage, ok := m.take(); ok {
			if err := m.dispatch(ctx, stage); err != nil {
				return err
			}
		}
		if err := m.cfg.Poller.Buffer(ctx); err != nil {
			return err
		}
	}
}

// dispatch runs one stage body. Errors other than cancellation are logged
// and the stage is treated as finished so the tour keeps going.
func (m *Machine) dispatch(ctx context.Context, stage Stage) error {
	log := m.log.With("stage", stage.String())
	log.Info("stage started")
	metrics.StageTransitions.WithLabelValues(stage.String()).Inc()
	if m.cfg.Hooks.StageStarted != nil {
		m.cfg.Hooks.StageStarted(ctx, stage)
	}

	start := time.Now()
	err := m.body(ctx, stage)
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Error("stage failed", "error", err, "elapsed", elapsed.Round(time.Millisecond))
	} else {
		log.Info("stage finished", "elapsed", elapsed.Round(time.Millisecond))
	}
	metrics.StageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
	if m.cfg.Hooks.StageFinished != nil {
		m.cfg.Hooks.StageFinished(ctx, stage, elapsed, err)
	}
	m.stateFinished()
	return nil
}

func (m *Machine) enter(stage Stage) {
	m.mu.Lock()
	m.current = stage
	m.active = true
	m.finished = false
	m.mu.Unlock()
}

// take claims the current stage for the worker.
func (m *Machine) take() (Stage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.finished {
		return StageNull, false
	}
	m.active = false
	return m.current, true
}

// stateFinished marks the current stage done and parks the worker on Null.
func (m *Machine) stateFinished() {
	m.mu.Lock()
	m.finished = true
	m.current = StageNull
	m.mu.Unlock()
}

// Current returns the stage being run.
func (m *Machine) Current() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Finished reports whether the current stage has completed.
func (m *Machine) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// Cycle returns how many passes over the sequence have started.
func (m *Machine) Cycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle
}
