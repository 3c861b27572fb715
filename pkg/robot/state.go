package robot

import (
	"sync"
	"time"
)

// State holds the latest status reported by the robot SDK.
// The bridge (or a test) writes it; the core only polls it.
type State struct {
	mu sync.RWMutex

	tts          TTSStatus
	location     LocationStatus
	locationName string
	movement     MovementStatus
	follow       FollowState

	detection DetectionState
	sample    DetectionSample
	sampleAt  time.Time

	lifted  bool
	dragged bool
	yaw     float64

	attached  bool
	speech    string
	hasSpeech bool
	speechSeq uint64

	locations []string

	now func() time.Time
}

// NewState returns a State in the SDK's idle configuration.
func NewState() *State {
	return &State{
		tts:       TTSCompleted,
		location:  LocationAbort,
		movement:  MovementAbort,
		follow:    FollowCalculating,
		detection: DetectionIdle,
		now:       time.Now,
	}
}

// Snapshot is a copy of State for serialization.
type Snapshot struct {
	TTS          string          `json:"tts"`
	Location     LocationStatus  `json:"location"`
	LocationName string          `json:"location_name"`
	Movement     MovementStatus  `json:"movement"`
	Follow       FollowState     `json:"follow"`
	Detection    string          `json:"detection"`
	Sample       DetectionSample `json:"sample"`
	Lifted       bool            `json:"lifted"`
	Dragged      bool            `json:"dragged"`
	Yaw          float64         `json:"yaw"`
	Attached     bool            `json:"attached"`
	Locations    []string        `json:"locations"`
}

// Snapshot returns a consistent copy of the current status.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		TTS:          s.tts.String(),
		Location:     s.location,
		LocationName: s.locationName,
		Movement:     s.movement,
		Follow:       s.follow,
		Detection:    s.detection.String(),
		Sample:       s.sample,
		Lifted:       s.lifted,
		Dragged:      s.dragged,
		Yaw:          s.yaw,
		Attached:     s.attached,
		Locations:    append([]string(nil), s.locations...),
	}
}

// TTS returns the status of the most recent speech request.
func (s *State) TTS() TTSStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tts
}

// SetTTS records a speech status change.
func (s *State) SetTTS(status TTSStatus) {
	s.mu.Lock()
	s.tts = status
	s.mu.Unlock()
}

// Location returns the go-to status of the current navigation.
func (s *State) Location() LocationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// SetLocation records a go-to status change for the named location.
func (s *State) SetLocation(name string, status LocationStatus) {
	s.mu.Lock()
	s.locationName = name
	s.location = status
	s.mu.Unlock()
}

// Movement returns the status of the current turn or joystick move.
func (s *State) Movement() MovementStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movement
}

// SetMovement records a movement status change.
func (s *State) SetMovement(status MovementStatus) {
	s.mu.Lock()
	s.movement = status
	s.mu.Unlock()
}

// Follow returns the BeWithMe state.
func (s *State) Follow() FollowState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follow
}

// SetFollow records a BeWithMe state change.
func (s *State) SetFollow(f FollowState) {
	s.mu.Lock()
	s.follow = f
	s.mu.Unlock()
}

// Detection returns the person-detection state.
func (s *State) Detection() DetectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detection
}

// SetDetection records a detection state change.
func (s *State) SetDetection(d DetectionState) {
	s.mu.Lock()
	s.detection = d
	s.mu.Unlock()
}

// Sample returns the latest detection sample and when it arrived.
func (s *State) Sample() (DetectionSample, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sample, s.sampleAt
}

// SetSample records a detection sample.
func (s *State) SetSample(sample DetectionSample) {
	s.mu.Lock()
	s.sample = sample
	s.sampleAt = s.now()
	s.mu.Unlock()
}

// SetLifted records the lift sensor.
func (s *State) SetLifted(v bool) {
	s.mu.Lock()
	s.lifted = v
	s.mu.Unlock()
}

// SetDragged records the drag sensor.
func (s *State) SetDragged(v bool) {
	s.mu.Lock()
	s.dragged = v
	s.mu.Unlock()
}

// Misuse reports whether the robot is lifted or being dragged.
func (s *State) Misuse() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lifted || s.dragged
}

// Yaw returns the body yaw in radians.
func (s *State) Yaw() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yaw
}

// SetYaw records the body yaw.
func (s *State) SetYaw(yaw float64) {
	s.mu.Lock()
	s.yaw = yaw
	s.mu.Unlock()
}

// Attached reports whether an ASR session is open.
func (s *State) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

// SetAttached records the ASR session state.
func (s *State) SetAttached(v bool) {
	s.mu.Lock()
	s.attached = v
	s.mu.Unlock()
}

// SetSpeech stores a recognized utterance until someone takes it.
func (s *State) SetSpeech(text string) {
	s.mu.Lock()
	s.speech = text
	s.hasSpeech = true
	s.speechSeq++
	s.mu.Unlock()
}

// TakeSpeech returns the pending utterance and clears it.
func (s *State) TakeSpeech() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.speech, s.hasSpeech
	s.speech, s.hasSpeech = "", false
	return text, ok
}

// SpeechSeq counts utterances received so far.
func (s *State) SpeechSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speechSeq
}

// Locations returns the saved location names reported by the robot.
func (s *State) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.locations...)
}

// SetLocations records the saved location names.
func (s *State) SetLocations(names []string) {
	s.mu.Lock()
	s.locations = append([]string(nil), names...)
	s.mu.Unlock()
}
