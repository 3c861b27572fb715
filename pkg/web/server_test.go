package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-temitour/pkg/interrupt"
	"github.com/teslashibe/go-temitour/pkg/journal"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/tour"
)

type fakeTour struct{ st tour.Status }

func (f fakeTour) Status() tour.Status { return f.st }

type fakeView struct{ snap perception.Snapshot }

func (f fakeView) Snapshot() perception.Snapshot { return f.snap }

type fakeInterrupts struct{ st interrupt.State }

func (f fakeInterrupts) Snapshot() interrupt.State { return f.st }

type fakeLink bool

func (f fakeLink) Connected() bool { return bool(f) }

type fakeRuns struct {
	runs  []journal.Run
	err   error
	limit int
}

func (f *fakeRuns) RecentRuns(_ context.Context, limit int) ([]journal.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

func newTestServer(link bool) (*Server, *tour.SignalBoard) {
	board := tour.NewSignalBoard(nil)
	board.SetStaticImage("lobby")
	src := Sources{
		Tour: fakeTour{tour.Status{Stage: "STAGE_1_B", Cycle: 2, RunID: "run-1", UserName: "小明"}},
		View: fakeView{perception.Snapshot{Y: perception.YMidrange, X: perception.XMiddle}},
		Interrupts: fakeInterrupts{interrupt.State{
			Triggered: true,
			Flags:     interrupt.UserMissing,
		}},
		Display: board,
		Bridge:  fakeLink(link),
	}
	return NewServer(Config{}, src), board
}

func get(t *testing.T, s *Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(true)
	resp, body := get(t, s, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var v StatusView
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if v.Tour.Stage != "STAGE_1_B" || v.Tour.RunID != "run-1" || v.Tour.UserName != "小明" {
		t.Errorf("tour = %+v", v.Tour)
	}
	if v.Perception.Y != "MIDRANGE" || v.Perception.X != perception.XMiddle.String() {
		t.Errorf("perception = %+v", v.Perception)
	}
	if !v.Interrupt.Triggered || !v.Interrupt.Flags.UserMissing {
		t.Errorf("interrupt = %+v", v.Interrupt)
	}
	if v.Display.StaticImage != "lobby" {
		t.Errorf("display = %+v", v.Display)
	}
	if !v.BridgeConnected {
		t.Error("bridge_connected = false")
	}
	if v.Time == "" {
		t.Error("missing time")
	}
}

func TestStatusWithoutSources(t *testing.T) {
	s := NewServer(Config{}, Sources{})
	resp, body := get(t, s, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	resp, _ = get(t, s, "/api/display")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/api/display without a board = %d", resp.StatusCode)
	}
}

func TestDisplayEndpoint(t *testing.T) {
	s, board := newTestServer(true)
	board.PlayWaitingMusic(true)

	_, body := get(t, s, "/api/display")
	var sig tour.Signals
	if err := json.Unmarshal(body, &sig); err != nil {
		t.Fatal(err)
	}
	if !sig.WaitingMusic || sig.StaticImage != "lobby" {
		t.Errorf("signals = %+v", sig)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		link bool
		want int
	}{
		{"connected", true, http.StatusOK},
		{"robot offline", false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(tt.link)
			resp, _ := get(t, s, "/healthz")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(true)
	resp, body := get(t, s, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	s, _ := newTestServer(true)
	for _, path := range []string{"/ws/status", "/ws/display"} {
		resp, _ := get(t, s, path)
		if resp.StatusCode != http.StatusUpgradeRequired {
			t.Errorf("%s status = %d, want 426", path, resp.StatusCode)
		}
	}
}

func TestRunsEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		runs       *fakeRuns
		path       string
		wantStatus int
		wantLimit  int
		wantBody   string
	}{
		{"not configured", nil, "/api/runs", http.StatusServiceUnavailable, 0, ""},
		{"empty", &fakeRuns{}, "/api/runs", http.StatusOK, 20, "[]"},
		{"limit", &fakeRuns{runs: []journal.Run{{ID: "a", UserName: "小明"}}}, "/api/runs?limit=5", http.StatusOK, 5, ""},
		{"store error", &fakeRuns{err: errors.New("disk full")}, "/api/runs", http.StatusInternalServerError, 20, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Sources{}
			if tt.runs != nil {
				src.Runs = tt.runs
			}
			s := NewServer(Config{}, src)
			resp, body := get(t, s, tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.runs != nil && tt.runs.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", tt.runs.limit, tt.wantLimit)
			}
			if tt.wantBody != "" && string(body) != tt.wantBody {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
		})
	}
}
