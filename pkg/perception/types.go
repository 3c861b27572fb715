package perception

import "time"

// YPosition is the distance band of the tracked person.
type YPosition int

const (
	YMissing YPosition = iota
	YClose
	YMidrange
	YFar
)

// YPositions lists every band, for metrics and tests.
var YPositions = []YPosition{YMissing, YClose, YMidrange, YFar}

func (p YPosition) String() string {
	switch p {
	case YClose:
		return "CLOSE"
	case YMidrange:
		return "MIDRANGE"
	case YFar:
		return "FAR"
	default:
		return "MISSING"
	}
}

// YMotion is the direction the person moved along the distance axis.
type YMotion int

const (
	YNowhere YMotion = iota
	YCloser
	YFurther
)

func (m YMotion) String() string {
	switch m {
	case YCloser:
		return "CLOSER"
	case YFurther:
		return "FURTHER"
	default:
		return "NOWHERE"
	}
}

// XPosition is the side of the robot the person is on.
type XPosition int

const (
	XGone XPosition = iota
	XLeft
	XMiddle
	XRight
)

// XPositions lists every position, for metrics and tests.
var XPositions = []XPosition{XGone, XLeft, XMiddle, XRight}

func (p XPosition) String() string {
	switch p {
	case XLeft:
		return "LEFT"
	case XMiddle:
		return "MIDDLE"
	case XRight:
		return "RIGHT"
	default:
		return "GONE"
	}
}

// XMotion is the direction the person moved across the robot.
type XMotion int

const (
	XNowhere XMotion = iota
	XLefter
	XRighter
)

func (m XMotion) String() string {
	switch m {
	case XLefter:
		return "LEFTER"
	case XRighter:
		return "RIGHTER"
	default:
		return "NOWHERE"
	}
}

// Sample is one reading from the detection subsystem.
// Angle is in radians (positive = left), Distance in meters.
type Sample struct {
	Angle    float64
	Distance float64
	Active   bool
	At       time.Time
}

// Snapshot is the directional state derived from recent samples.
type Snapshot struct {
	Y       YPosition
	YMotion YMotion
	X       XPosition
	XMotion XMotion
}

// SnapshotView is the JSON form of Snapshot.
type SnapshotView struct {
	Y       string `json:"y_position"`
	YMotion string `json:"y_motion"`
	X       string `json:"x_position"`
	XMotion string `json:"x_motion"`
}

// View returns the string form of s.
func (s Snapshot) View() SnapshotView {
	return SnapshotView{
		Y:       s.Y.String(),
		YMotion: s.YMotion.String(),
		X:       s.X.String(),
		XMotion: s.XMotion.String(),
	}
}
