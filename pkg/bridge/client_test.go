package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temitour/pkg/robot"
)

// fakeRobot is the app side of the bridge. It records the commands it
// receives and exposes the live connection so tests can push events.
type fakeRobot struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	commands []*Message
}

func newFakeRobot(t *testing.T) *fakeRobot {
	t.Helper()
	r := &fakeRobot{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		r.mu.Lock()
		r.conns = append(r.conns, conn)
		r.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := ParseMessage(data)
			if err != nil {
				t.Errorf("robot got bad command: %v", err)
				continue
			}
			r.mu.Lock()
			r.commands = append(r.commands, msg)
			r.mu.Unlock()
		}
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *fakeRobot) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func (r *fakeRobot) connCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *fakeRobot) last() *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[len(r.conns)-1]
}

func (r *fakeRobot) emit(t *testing.T, typ MessageType, data any) {
	t.Helper()
	msg, err := NewMessage(typ, data)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := msg.Bytes()
	if err := r.last().WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("emit %s: %v", typ, err)
	}
}

func (r *fakeRobot) received() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.commands...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func startClient(t *testing.T, url string) (*Client, *robot.State) {
	t.Helper()
	state := robot.NewState()
	c := New(state, Config{URL: url, ReconnectDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return c, state
}

func TestClientAppliesEvents(t *testing.T) {
	r := newFakeRobot(t)
	c, state := startClient(t, r.url())
	waitFor(t, "connection", c.Connected)

	r.emit(t, TypeTTS, StatusData{Status: "STARTED"})
	r.emit(t, TypeLocation, StatusData{Status: "going", Location: "r417"})
	r.emit(t, TypeMovement, StatusData{Status: "complete"})
	r.emit(t, TypeBeWithMe, StatusData{Status: "track"})
	r.emit(t, TypeDetectionState, DetectionStateData{State: 2})
	r.emit(t, TypeDetectionData, DetectionData{Angle: 0.25, Distance: 1.1})
	r.emit(t, TypeLifted, FlagData{Value: true})
	r.emit(t, TypeConversationAttached, FlagData{Value: true})
	r.emit(t, TypeYaw, YawData{Yaw: 1.5})
	r.emit(t, TypeLocations, LocationsData{Names: []string{"home base", "r417"}})
	r.emit(t, TypeASR, ASRData{Text: "是"})

	waitFor(t, "asr event", func() bool { return state.SpeechSeq() == 1 })

	if state.TTS() != robot.TTSStarted {
		t.Errorf("TTS = %v", state.TTS())
	}
	if state.Location() != robot.LocationGoing {
		t.Errorf("Location = %v", state.Location())
	}
	if state.Movement() != robot.MovementComplete {
		t.Errorf("Movement = %v", state.Movement())
	}
	if state.Follow() != robot.FollowTrack {
		t.Errorf("Follow = %v", state.Follow())
	}
	if state.Detection() != robot.DetectionDetected {
		t.Errorf("Detection = %v", state.Detection())
	}
	if s, _ := state.Sample(); s.Angle != 0.25 || s.Distance != 1.1 {
		t.Errorf("Sample = %+v", s)
	}
	if !state.Misuse() || !state.Attached() || state.Yaw() != 1.5 {
		t.Errorf("misuse=%v attached=%v yaw=%v", state.Misuse(), state.Attached(), state.Yaw())
	}
	if got := state.Locations(); len(got) != 2 || got[1] != "r417" {
		t.Errorf("Locations = %v", got)
	}
	if text, ok := state.TakeSpeech(); !ok || text != "是" {
		t.Errorf("TakeSpeech = %q, %v", text, ok)
	}
}

func TestClientSendsCommands(t *testing.T) {
	r := newFakeRobot(t)
	c, _ := startClient(t, r.url())
	waitFor(t, "connection", c.Connected)

	tests := []struct {
		name string
		call func() error
		typ  MessageType
		want any
		got  func(*Message) any
	}{
		{
			name: "speak",
			call: func() error { return c.Speak("Hello there.", false) },
			typ:  TypeSpeak,
			want: SpeakData{Text: "Hello there.", ShowFace: false},
			got:  func(m *Message) any { var d SpeakData; _ = m.ParseData(&d); return d },
		},
		{
			name: "goto",
			call: func() error { return c.GoTo("r405", true) },
			typ:  TypeGoTo,
			want: GoToData{Location: "r405", Backwards: true},
			got:  func(m *Message) any { var d GoToData; _ = m.ParseData(&d); return d },
		},
		{
			name: "speed",
			call: func() error { return c.SetGoToSpeed(robot.SpeedMedium) },
			typ:  TypeGoToSpeed,
			want: SpeedData{Level: "medium"},
			got:  func(m *Message) any { var d SpeedData; _ = m.ParseData(&d); return d },
		},
		{
			name: "turn",
			call: func() error { return c.TurnBy(-45, 0.1) },
			typ:  TypeTurnBy,
			want: TurnData{Degrees: -45, Speed: 0.1},
			got:  func(m *Message) any { var d TurnData; _ = m.ParseData(&d); return d },
		},
		{
			name: "main button",
			call: func() error { return c.SetMainButtonMode(true) },
			typ:  TypeMainButton,
			want: ToggleData{Enabled: true},
			got:  func(m *Message) any { var d ToggleData; _ = m.ParseData(&d); return d },
		},
		{
			name: "wake up",
			call: c.WakeUp,
			typ:  TypeWakeUp,
			want: nil,
			got:  func(m *Message) any { return nil },
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			waitFor(t, "command", func() bool { return len(r.received()) > i })
			msg := r.received()[i]
			if msg.Type != tt.typ {
				t.Errorf("type = %q, want %q", msg.Type, tt.typ)
			}
			if msg.Timestamp == 0 {
				t.Error("missing timestamp")
			}
			if got := tt.got(msg); got != tt.want {
				t.Errorf("data = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClientReconnects(t *testing.T) {
	r := newFakeRobot(t)
	c, state := startClient(t, r.url())
	waitFor(t, "first connection", c.Connected)

	r.last().Close()
	waitFor(t, "second connection", func() bool { return r.connCount() == 2 && c.Connected() })

	r.emit(t, TypeYaw, YawData{Yaw: -0.5})
	waitFor(t, "event after reconnect", func() bool { return state.Yaw() == -0.5 })
}

func TestCommandWhileDisconnected(t *testing.T) {
	c := New(robot.NewState(), Config{URL: "ws://127.0.0.1:1/none"})
	if err := c.Speak("hi", true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Speak = %v, want ErrNotConnected", err)
	}
}

func TestApplyRejectsUnknownEvents(t *testing.T) {
	c := New(robot.NewState(), Config{})
	if err := c.apply(&Message{Type: "teleport"}); err == nil {
		t.Error("expected an error for an unknown event")
	}
	bad := &Message{Type: TypeTTS, Data: []byte(`{"status": 7}`)}
	if err := c.apply(bad); err == nil {
		t.Error("expected an error for a malformed payload")
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"event", `{"type":"tts","ts":1,"data":{"status":"COMPLETED"}}`, false},
		{"no data", `{"type":"wake_up"}`, false},
		{"missing type", `{"data":{}}`, true},
		{"not json", `tts`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
