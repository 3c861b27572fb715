package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Core → robot commands
	TypeSpeak              MessageType = "speak"
	TypeGoTo               MessageType = "goto"
	TypeStopMovement       MessageType = "stop_movement"
	TypeGoToSpeed          MessageType = "goto_speed"
	TypeSkidJoy            MessageType = "skid_joy"
	TypeTurnBy             MessageType = "turn_by"
	TypeTilt               MessageType = "tilt"
	TypeWakeUp             MessageType = "wake_up"
	TypeFinishConversation MessageType = "finish_conversation"
	TypeMainButton         MessageType = "main_button"
	TypeCliffSensor        MessageType = "cliff_sensor"
	TypeVolume             MessageType = "volume"
	TypeListLocations      MessageType = "list_locations"

	// Robot → core events
	TypeTTS                  MessageType = "tts"
	TypeLocation             MessageType = "location"
	TypeMovement             MessageType = "movement"
	TypeDetectionState       MessageType = "detection_state"
	TypeDetectionData        MessageType = "detection_data"
	TypeLifted               MessageType = "lifted"
	TypeDragged              MessageType = "dragged"
	TypeASR                  MessageType = "asr"
	TypeConversationAttached MessageType = "conversation_attached"
	TypeBeWithMe             MessageType = "be_with_me"
	TypeYaw                  MessageType = "yaw"
	TypeLocations            MessageType = "locations"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Command payloads
// =============================================================================

// SpeakData asks the robot to say one sentence.
type SpeakData struct {
	Text     string `json:"text"`
	ShowFace bool   `json:"show_face"`
}

// GoToData sends the robot to a saved location.
type GoToData struct {
	Location  string `json:"location"`
	Backwards bool   `json:"backwards,omitempty"`
}

// SpeedData selects the go-to speed preset.
type SpeedData struct {
	Level string `json:"level"`
}

// JoystickData is one skid-joy pulse.
type JoystickData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TurnData rotates the body or tilts the screen.
type TurnData struct {
	Degrees int     `json:"degrees"`
	Speed   float64 `json:"speed"`
}

// ToggleData switches a hardware setting.
type ToggleData struct {
	Enabled bool `json:"enabled"`
}

// VolumeData sets the speaker volume.
type VolumeData struct {
	Level int `json:"level"`
}

// =============================================================================
// Event payloads
// =============================================================================

// StatusData carries a status string. Location events also name the
// location.
type StatusData struct {
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
}

// DetectionStateData carries the SDK detection state int.
type DetectionStateData struct {
	State int `json:"state"`
}

// DetectionData is the latest angle and distance of the tracked person.
type DetectionData struct {
	Angle    float64 `json:"angle"`    // Radians, positive = left
	Distance float64 `json:"distance"` // Meters
}

// FlagData carries a boolean sensor or session state.
type FlagData struct {
	Value bool `json:"value"`
}

// ASRData is a recognised utterance.
type ASRData struct {
	Text string `json:"text"`
}

// YawData is the body yaw in radians.
type YawData struct {
	Yaw float64 `json:"yaw"`
}

// LocationsData lists the robot's saved locations.
type LocationsData struct {
	Names []string `json:"names"`
}
