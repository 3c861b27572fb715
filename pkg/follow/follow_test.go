package follow

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func newTestFollower() (*Follower, *robot.State, *robot.Mock, *perception.Static) {
	state := robot.NewState()
	mock := robot.NewMock(state)
	view := perception.NewStatic(perception.YMidrange, perception.XMiddle)
	cfg := DefaultConfig()
	cfg.Rate = time.Millisecond
	cfg.Poller = gate.Poller{Tick: time.Millisecond, Second: 2 * time.Millisecond}
	return New(mock, state, view, cfg), state, mock, view
}

func TestTick(t *testing.T) {
	tests := []struct {
		name      string
		yawDeg    float64
		angleDeg  float64
		detection robot.DetectionState
		y         perception.YPosition
		want      []string
	}{
		{"track left", 0, 30, robot.DetectionDetected, perception.YMidrange, []string{"17"}},
		{"track right", 0, -30, robot.DetectionDetected, perception.YMidrange, []string{"-17"}},
		{"clamped at upper edge", 80, 30, robot.DetectionDetected, perception.YMidrange, []string{"9"}},
		{"clamped at lower edge", -85, -30, robot.DetectionDetected, perception.YMidrange, []string{"-4"}},
		{"too close to turn", 0, 30, robot.DetectionDetected, perception.YClose, nil},
		{"straight ahead", 0, 0, robot.DetectionDetected, perception.YMidrange, nil},
		{"lost on the left", 0, 30, robot.DetectionLost, perception.YMissing, []string{"45"}},
		{"lost on the right", 0, -30, robot.DetectionLost, perception.YMissing, []string{"-45"}},
		{"recenter", 10, 0, robot.DetectionIdle, perception.YMissing, []string{"-10"}},
		{"recenter across the wrap", -170, 0, robot.DetectionIdle, perception.YMissing, []string{"170"}},
		{"already centred", 1, 0, robot.DetectionIdle, perception.YMissing, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, state, mock, view := newTestFollower()
			f.SetEnabled(true)
			state.SetYaw(radians(tt.yawDeg))
			state.SetSample(robot.DetectionSample{Angle: radians(tt.angleDeg)})
			state.SetDetection(tt.detection)
			view.SetY(tt.y)

			if err := f.tick(context.Background()); err != nil {
				t.Fatalf("tick: %v", err)
			}
			if got := mock.Args("TurnBy"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TurnBy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLostSweepsOnce(t *testing.T) {
	f, state, mock, _ := newTestFollower()
	state.SetSample(robot.DetectionSample{Angle: radians(20)})
	if err := f.tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The person has gone; the last sample is now straight ahead.
	state.SetSample(robot.DetectionSample{})
	state.SetDetection(robot.DetectionLost)
	for i := 0; i < 3; i++ {
		if err := f.tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := mock.Args("TurnBy"); !reflect.DeepEqual(got, []string{"45"}) {
		t.Errorf("TurnBy = %v, want a single sweep", got)
	}
}

func TestLostOutsideArcStaysPut(t *testing.T) {
	f, state, mock, _ := newTestFollower()
	state.SetYaw(radians(95))
	state.SetSample(robot.DetectionSample{Angle: radians(20)})
	state.SetDetection(robot.DetectionLost)
	if err := f.tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := mock.CallCount("TurnBy"); n != 0 {
		t.Errorf("TurnBy calls = %d, want 0", n)
	}
}

func TestClampTurn(t *testing.T) {
	f, _, _, _ := newTestFollower()
	tests := []struct {
		current, target, want float64
	}{
		{180, 20, 20},
		{180, -20, -20},
		{260, 20, 9},
		{100, -20, -9},
		{270, 0, 0},
	}
	for _, tt := range tests {
		if got := f.clampTurn(tt.current, tt.target); got != tt.want {
			t.Errorf("clampTurn(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}

	// An arc that wraps through 0.
	f.cfg.DefaultAngle = 0
	if got := f.clampTurn(10, 20); got != 20 {
		t.Errorf("wrapped clampTurn = %v, want 20", got)
	}
	if got := f.clampTurn(80, 30); got != 9 {
		t.Errorf("wrapped clampTurn at edge = %v, want 9", got)
	}
}

func TestDirectedAngle(t *testing.T) {
	tests := []struct{ a1, a2, want float64 }{
		{180, 190, -10},
		{180, 10, 170},
		{10, 350, 20},
		{350, 10, -20},
	}
	for _, tt := range tests {
		if got := directedAngle(tt.a1, tt.a2); got != tt.want {
			t.Errorf("directedAngle(%v, %v) = %v, want %v", tt.a1, tt.a2, got, tt.want)
		}
	}
}

func TestRunOnlyTurnsWhileEnabled(t *testing.T) {
	f, state, mock, _ := newTestFollower()
	state.SetSample(robot.DetectionSample{Angle: radians(30)})
	state.SetDetection(robot.DetectionDetected)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if n := mock.CallCount("TurnBy"); n != 0 {
		t.Fatalf("disabled follower turned %d times", n)
	}

	state.SetLifted(true)
	f.SetEnabled(true)
	time.Sleep(20 * time.Millisecond)
	if n := mock.CallCount("TurnBy"); n != 0 {
		t.Fatalf("follower turned %d times while lifted", n)
	}

	state.SetLifted(false)
	deadline := time.Now().Add(2 * time.Second)
	for mock.CallCount("TurnBy") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("enabled follower never turned")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestTurnErrorsAreAbsorbed(t *testing.T) {
	f, state, mock, _ := newTestFollower()
	mock.TurnByFunc = func(int, float64) error { return errors.New("motor fault") }
	state.SetSample(robot.DetectionSample{Angle: radians(30)})
	state.SetDetection(robot.DetectionDetected)

	for i := 0; i < 3; i++ {
		if err := f.tick(context.Background()); err != nil {
			t.Fatalf("tick returned %v", err)
		}
	}
	if f.errorCount != 3 {
		t.Errorf("errorCount = %d, want 3", f.errorCount)
	}
}
