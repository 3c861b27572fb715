package perception

import "math"

// Distance and angle breakpoints.
const (
	CloseDistance    = 1.0
	MidrangeDistance = 1.5
	SideAngle        = 0.1
)

// Motion thresholds per distance band. Closer bands are noisier, so a
// larger delta is required before motion registers.
const (
	FarThreshold      = 0.07
	MidrangeThreshold = 0.12
	CloseThreshold    = 0.17
)

// ClassifyY maps a sample to its distance band.
func ClassifyY(s Sample) YPosition {
	switch {
	case !s.Active:
		return YMissing
	case s.Distance < CloseDistance:
		return YClose
	case s.Distance < MidrangeDistance:
		return YMidrange
	default:
		return YFar
	}
}

// ClassifyX maps a sample to its side.
func ClassifyX(s Sample) XPosition {
	switch {
	case !s.Active:
		return XGone
	case s.Angle > SideAngle:
		return XLeft
	case s.Angle < -SideAngle:
		return XRight
	default:
		return XMiddle
	}
}

// Threshold returns the motion threshold for band y.
// MISSING has no threshold.
func Threshold(y YPosition) (float64, bool) {
	switch y {
	case YFar:
		return FarThreshold, true
	case YMidrange:
		return MidrangeThreshold, true
	case YClose:
		return CloseThreshold, true
	default:
		return 0, false
	}
}

// StepY derives the Y half of the snapshot from the previous raw distance
// and the current sample. A previous distance of exactly 0 means there is
// no history yet, so motion keeps its old value for that cycle.
func StepY(prevDistance float64, cur Sample, motion YMotion) (YPosition, YMotion) {
	pos := ClassifyY(cur)
	if !cur.Active || prevDistance == 0 {
		return pos, motion
	}
	th, _ := Threshold(pos)
	delta := cur.Distance - prevDistance
	switch {
	case math.Abs(delta) < th:
		return pos, YNowhere
	case delta < 0:
		return pos, YCloser
	default:
		return pos, YFurther
	}
}

// StepX derives the X half of the snapshot. The motion threshold follows
// the current Y band, so y is passed in.
func StepX(prevAngle float64, cur Sample, y YPosition, motion XMotion) (XPosition, XMotion) {
	pos := ClassifyX(cur)
	if !cur.Active || prevAngle == 0 {
		return pos, motion
	}
	th, ok := Threshold(y)
	if !ok {
		return pos, XNowhere
	}
	delta := cur.Angle - prevAngle
	switch {
	case math.Abs(delta) < th:
		return pos, XNowhere
	case delta > 0:
		return pos, XLefter
	default:
		return pos, XRighter
	}
}
