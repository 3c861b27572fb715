package tour

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
)

func testPoller() gate.Poller {
	return gate.Poller{Tick: time.Millisecond, Second: 2 * time.Millisecond}
}

type stageLog struct {
	mu     sync.Mutex
	stages []Stage
	events []string
}

func (l *stageLog) add(s Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, s)
}

func (l *stageLog) event(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *stageLog) get() []Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Stage(nil), l.stages...)
}

func TestMachineRunsSequenceInOrder(t *testing.T) {
	log := &stageLog{}
	seq := []Stage{StageStartLocation, StageNull, StageTourEnd}
	m := NewMachine(func(ctx context.Context, s Stage) error {
		log.add(s)
		return nil
	}, MachineConfig{Sequence: seq, Poller: testPoller(), MaxCycles: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}

	want := append(append([]Stage{}, seq...), seq...)
	if got := log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("stages = %v, want %v", got, want)
	}
	if m.Cycle() != 2 {
		t.Errorf("Cycle() = %d", m.Cycle())
	}
	if m.Current() != StageNull {
		t.Errorf("Current() = %v after finish, want NULL", m.Current())
	}
}

func TestMachineContinuesAfterStageError(t *testing.T) {
	log := &stageLog{}
	var errs []error
	var mu sync.Mutex
	m := NewMachine(func(ctx context.Context, s Stage) error {
		log.add(s)
		if s == Stage1B {
			return errors.New("ramp blocked")
		}
		return nil
	}, MachineConfig{
		Sequence:  []Stage{Stage1B, StageTourEnd},
		Poller:    testPoller(),
		MaxCycles: 1,
		Hooks: Hooks{
			StageFinished: func(_ context.Context, _ Stage, _ time.Duration, err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := log.get(); !reflect.DeepEqual(got, []Stage{Stage1B, StageTourEnd}) {
		t.Errorf("stages = %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 2 || errs[0] == nil || errs[1] != nil {
		t.Errorf("finished errors = %v", errs)
	}
}

func TestMachineHooksOrder(t *testing.T) {
	log := &stageLog{}
	m := NewMachine(func(ctx context.Context, s Stage) error {
		log.event("body " + s.String())
		return nil
	}, MachineConfig{
		Sequence:  []Stage{StageIdle},
		Poller:    testPoller(),
		MaxCycles: 1,
		Hooks: Hooks{
			CycleStarted:  func(context.Context, int) { log.event("cycle") },
			StageStarted:  func(_ context.Context, s Stage) { log.event("start " + s.String()) },
			StageFinished: func(_ context.Context, s Stage, _ time.Duration, _ error) { log.event("end " + s.String()) },
		},
	})
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"cycle", "start IDLE", "body IDLE", "end IDLE"}
	if !reflect.DeepEqual(log.events, want) {
		t.Errorf("events = %v, want %v", log.events, want)
	}
}

func TestMachineStopsOnCancel(t *testing.T) {
	m := NewMachine(func(ctx context.Context, s Stage) error {
		<-ctx.Done()
		return ctx.Err()
	}, MachineConfig{Sequence: []Stage{StageTerminate}, Poller: testPoller()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for m.Current() != StageTerminate {
		if time.Now().After(deadline) {
			t.Fatal("stage never started")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMachineDefaultsToProductionSequence(t *testing.T) {
	m := NewMachine(func(context.Context, Stage) error { return nil }, MachineConfig{})
	if !reflect.DeepEqual(m.cfg.Sequence, DefaultSequence) {
		t.Errorf("sequence = %v", m.cfg.Sequence)
	}
	if m.Current() != StageNull || m.Finished() {
		t.Error("new machine should be parked on NULL")
	}
}
