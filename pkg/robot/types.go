package robot

import "strings"

// TTSStatus is the lifecycle of a speech request.
type TTSStatus int

const (
	TTSPending TTSStatus = iota
	TTSStarted
	TTSCompleted
)

func (s TTSStatus) String() string {
	switch s {
	case TTSStarted:
		return "STARTED"
	case TTSCompleted:
		return "COMPLETED"
	default:
		return "PENDING"
	}
}

// ParseTTSStatus maps an SDK status name. Unknown names are pending.
func ParseTTSStatus(s string) TTSStatus {
	switch strings.ToUpper(s) {
	case "STARTED":
		return TTSStarted
	case "COMPLETED":
		return TTSCompleted
	default:
		return TTSPending
	}
}

// LocationStatus reports go-to-location progress.
// Values match the strings the SDK emits.
type LocationStatus string

const (
	LocationStart       LocationStatus = "start"
	LocationCalculating LocationStatus = "calculating"
	LocationGoing       LocationStatus = "going"
	LocationComplete    LocationStatus = "complete"
	LocationAbort       LocationStatus = "abort"
	LocationReposing    LocationStatus = "reposing"
)

// Done reports whether navigation has stopped, successfully or not.
func (s LocationStatus) Done() bool {
	return s == LocationComplete || s == LocationAbort
}

// MovementStatus reports turnBy / skidJoy progress.
type MovementStatus string

const (
	MovementStart            MovementStatus = "start"
	MovementGoing            MovementStatus = "going"
	MovementObstacleDetected MovementStatus = "obstacle detected"
	MovementNodeInactive     MovementStatus = "node inactive"
	MovementCalculating      MovementStatus = "calculating"
	MovementComplete         MovementStatus = "complete"
	MovementAbort            MovementStatus = "abort"
)

// Done reports whether the movement has stopped.
func (s MovementStatus) Done() bool {
	return s == MovementComplete || s == MovementAbort
}

// DetectionState is the person-detection state. Values match the SDK ints.
type DetectionState int

const (
	DetectionIdle     DetectionState = 0
	DetectionLost     DetectionState = 1
	DetectionDetected DetectionState = 2
)

func (d DetectionState) String() string {
	switch d {
	case DetectionLost:
		return "LOST"
	case DetectionDetected:
		return "DETECTED"
	default:
		return "IDLE"
	}
}

// FollowState is the BeWithMe (follow) state.
type FollowState string

const (
	FollowAbort       FollowState = "abort"
	FollowCalculating FollowState = "calculating"
	FollowLock        FollowState = "lock"
	FollowSearch      FollowState = "search"
	FollowStart       FollowState = "start"
	FollowTrack       FollowState = "track"
)

// SpeedLevel is the go-to speed preset.
type SpeedLevel string

const (
	SpeedHigh   SpeedLevel = "high"
	SpeedMedium SpeedLevel = "medium"
	SpeedSlow   SpeedLevel = "slow"
)

// DetectionSample is the latest angle/distance of the tracked person.
// Angle is in radians (positive = left), distance in meters.
type DetectionSample struct {
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}
