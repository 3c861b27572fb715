package robot

import (
	"fmt"
	"sync"
	"time"
)

// Mock implements Controller for testing.
//
// Each method calls its Func field when set. With a nil Func the method
// succeeds, and if State is non-nil it reports the request as finished
// right away (speech completed, navigation and turns complete).
type Mock struct {
	// State receives the simulated SDK status. May be nil.
	State *State

	SpeakFunc            func(text string, showFace bool) error
	GoToFunc             func(location string, backwards bool) error
	StopMovementFunc     func() error
	SetGoToSpeedFunc     func(level SpeedLevel) error
	SkidJoyFunc          func(x, y float64) error
	RequestLocationsFunc func() error
	TurnByFunc           func(degrees int, speed float64) error
	TiltAngleFunc        func(degrees int, speed float64) error
	WakeUpFunc           func() error
	FinishFunc           func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Arg    string
	Time   time.Time
}

// NewMock creates a mock that completes every request against state.
func NewMock(state *State) *Mock {
	return &Mock{State: state}
}

// Speak calls SpeakFunc and records the call.
func (m *Mock) Speak(text string, showFace bool) error {
	m.record("Speak", text)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(text, showFace)
	}
	if m.State != nil {
		m.State.SetTTS(TTSCompleted)
	}
	return nil
}

// GoTo calls GoToFunc and records the call.
func (m *Mock) GoTo(location string, backwards bool) error {
	m.record("GoTo", location)
	if m.GoToFunc != nil {
		return m.GoToFunc(location, backwards)
	}
	if m.State != nil {
		m.State.SetLocation(location, LocationComplete)
	}
	return nil
}

// StopMovement calls StopMovementFunc and records the call.
func (m *Mock) StopMovement() error {
	m.record("StopMovement", "")
	if m.StopMovementFunc != nil {
		return m.StopMovementFunc()
	}
	return nil
}

// SetGoToSpeed calls SetGoToSpeedFunc and records the call.
func (m *Mock) SetGoToSpeed(level SpeedLevel) error {
	m.record("SetGoToSpeed", string(level))
	if m.SetGoToSpeedFunc != nil {
		return m.SetGoToSpeedFunc(level)
	}
	return nil
}

// SkidJoy calls SkidJoyFunc and records the call.
func (m *Mock) SkidJoy(x, y float64) error {
	m.record("SkidJoy", fmt.Sprintf("%.2f,%.2f", x, y))
	if m.SkidJoyFunc != nil {
		return m.SkidJoyFunc(x, y)
	}
	return nil
}

// RequestLocations calls RequestLocationsFunc and records the call.
func (m *Mock) RequestLocations() error {
	m.record("RequestLocations", "")
	if m.RequestLocationsFunc != nil {
		return m.RequestLocationsFunc()
	}
	return nil
}

// TurnBy calls TurnByFunc and records the call.
func (m *Mock) TurnBy(degrees int, speed float64) error {
	m.record("TurnBy", fmt.Sprintf("%d", degrees))
	if m.TurnByFunc != nil {
		return m.TurnByFunc(degrees, speed)
	}
	if m.State != nil {
		m.State.SetMovement(MovementComplete)
	}
	return nil
}

// TiltAngle calls TiltAngleFunc and records the call.
func (m *Mock) TiltAngle(degrees int, speed float64) error {
	m.record("TiltAngle", fmt.Sprintf("%d", degrees))
	if m.TiltAngleFunc != nil {
		return m.TiltAngleFunc(degrees, speed)
	}
	return nil
}

// WakeUp calls WakeUpFunc and records the call.
func (m *Mock) WakeUp() error {
	m.record("WakeUp", "")
	if m.WakeUpFunc != nil {
		return m.WakeUpFunc()
	}
	return nil
}

// FinishConversation calls FinishFunc and records the call.
func (m *Mock) FinishConversation() error {
	m.record("FinishConversation", "")
	if m.FinishFunc != nil {
		return m.FinishFunc()
	}
	if m.State != nil {
		m.State.SetAttached(false)
	}
	return nil
}

// SetMainButtonMode records the call.
func (m *Mock) SetMainButtonMode(enabled bool) error {
	m.record("SetMainButtonMode", fmt.Sprintf("%t", enabled))
	return nil
}

// SetCliffSensorOn records the call.
func (m *Mock) SetCliffSensorOn(on bool) error {
	m.record("SetCliffSensorOn", fmt.Sprintf("%t", on))
	return nil
}

// SetVolume records the call.
func (m *Mock) SetVolume(level int) error {
	m.record("SetVolume", fmt.Sprintf("%d", level))
	return nil
}

func (m *Mock) record(method, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Arg: arg, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of calls to a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Args returns the recorded arguments of every call to method, in order.
func (m *Mock) Args(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c.Arg)
		}
	}
	return out
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
