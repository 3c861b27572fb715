// Package robot defines the boundary between the tour core and the Temi SDK.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use. Status reported by the
// SDK flows the other way, into a State store that the core polls.
package robot

// SpeechController issues text-to-speech requests.
// Completion is observed through State.TTS.
type SpeechController interface {
	Speak(text string, showFace bool) error
}

// NavigationController drives the robot between saved locations.
// Progress is observed through State.Location.
type NavigationController interface {
	GoTo(location string, backwards bool) error
	StopMovement() error
	SetGoToSpeed(level SpeedLevel) error
	SkidJoy(x, y float64) error
	RequestLocations() error
}

// MotionController turns the body and tilts the screen in place.
// Progress is observed through State.Movement.
type MotionController interface {
	TurnBy(degrees int, speed float64) error
	TiltAngle(degrees int, speed float64) error
}

// ConversationController opens and closes an ASR listening session.
// Results arrive through State.TakeSpeech.
type ConversationController interface {
	WakeUp() error
	FinishConversation() error
}

// SettingsController toggles hardware settings.
type SettingsController interface {
	SetMainButtonMode(enabled bool) error
	SetCliffSensorOn(on bool) error
	SetVolume(level int) error
}

// Controller is the composite interface for full robot control.
// Use this when you need complete robot control capabilities.
type Controller interface {
	SpeechController
	NavigationController
	MotionController
	ConversationController
	SettingsController
}

// Ensure Mock implements Controller
var _ Controller = (*Mock)(nil)
