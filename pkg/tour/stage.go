package tour

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStage is returned by ParseStage for names that are not stages.
var ErrUnknownStage = errors.New("tour: unknown stage")

// Stage identifies one step of the tour.
type Stage int

const (
	StageStartLocation Stage = iota
	StageIdle
	StageAlternateStart
	StageRamp
	Stage1
	Stage1B
	Stage1_1
	Stage1_1B
	Stage1_2
	Stage1_2B
	StageTourEnd
	StageTerminate
	StageNull
	StageTesting
	StageGetUserName
	StageChatGPT
	StageTemiV2
)

var stageNames = [...]string{
	StageStartLocation:  "START_LOCATION",
	StageIdle:           "IDLE",
	StageAlternateStart: "ALTERNATE_START",
	StageRamp:           "RAMP",
	Stage1:              "STAGE_1",
	Stage1B:             "STAGE_1_B",
	Stage1_1:            "STAGE_1_1",
	Stage1_1B:           "STAGE_1_1_B",
	Stage1_2:            "STAGE_1_2",
	Stage1_2B:           "STAGE_1_2_B",
	StageTourEnd:        "TOUR_END",
	StageTerminate:      "TERMINATE",
	StageNull:           "NULL",
	StageTesting:        "TESTING",
	StageGetUserName:    "GET_USER_NAME",
	StageChatGPT:        "CHATGPT",
	StageTemiV2:         "TEMI_V2",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage maps a stage name, case-insensitively, to its Stage.
func ParseStage(name string) (Stage, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, s := range stageNames {
		if s == n {
			return Stage(i), nil
		}
	}
	return StageNull, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// ParseSequence parses a list of stage names.
func ParseSequence(names []string) ([]Stage, error) {
	seq := make([]Stage, 0, len(names))
	for _, n := range names {
		s, err := ParseStage(n)
		if err != nil {
			return nil, err
		}
		seq = append(seq, s)
	}
	return seq, nil
}

// DefaultSequence is the tour as it runs in production.
var DefaultSequence = []Stage{
	StageStartLocation,
	StageAlternateStart,
	Stage1B,
	Stage1_1B,
	StageGetUserName,
	Stage1_2B,
	StageTourEnd,
}
