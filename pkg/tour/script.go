package tour

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-temitour/pkg/interrupt"
)

//go:embed script.yaml
var defaultScript []byte

// Script holds every line the tour says and every place it goes.
type Script struct {
	Locations      Locations           `yaml:"locations"`
	Common         CommonLines         `yaml:"common"`
	Idle           IdleLines           `yaml:"idle"`
	AlternateStart AlternateStartLines `yaml:"alternate_start"`
	Stage1         Stage1Lines         `yaml:"stage_1"`
	Stage1B        Stage1BLines        `yaml:"stage_1_b"`
	Stage1_1B      DistanceDemoLines   `yaml:"stage_1_1_b"`
	GetUserName    NameLines           `yaml:"get_user_name"`
	Stops          []Stop              `yaml:"stops"`
	TourEnd        TourEndLines        `yaml:"tour_end"`
	ChatGPT        ChatLines           `yaml:"chatgpt"`
}

// Locations names the fixed map locations used outside the stop list.
type Locations struct {
	Home       string `yaml:"home"`
	Greet      string `yaml:"greet"`
	FrontDoor  string `yaml:"front_door"`
	BeforeRamp string `yaml:"before_ramp"`
	MiddleRamp string `yaml:"middle_ramp"`
	BackDoor   string `yaml:"back_door"`
}

type CommonLines struct {
	ThankYou      string        `yaml:"thank_you"`
	Excited       string        `yaml:"excited"`
	NotUnderstood string        `yaml:"not_understood"`
	Ignored       string        `yaml:"ignored"`
	BeginTour     string        `yaml:"begin_tour"`
	TooClose      string        `yaml:"too_close"`
	RejectedDelay time.Duration `yaml:"rejected_delay"`
}

type IdleLines struct {
	Question string `yaml:"question"`
	Rejected string `yaml:"rejected"`
}

type AlternateStartLines struct {
	Following     string   `yaml:"following"`
	Excitement    []string `yaml:"excitement"`
	HeadPats      string   `yaml:"head_pats"`
	Greeting      string   `yaml:"greeting"`
	TalkImage     string   `yaml:"talk_image"`
	IdleImage     string   `yaml:"idle_image"`
	ListenIcon    string   `yaml:"listen_icon"`
	ListenExplain string   `yaml:"listen_explain"`
	TestListening string   `yaml:"test_listening"`
	ReadyQuestion string   `yaml:"ready_question"`
	ReadyRejected string   `yaml:"ready_rejected"`
}

type Stage1Lines struct {
	FirstStop        string `yaml:"first_stop"`
	Arrived          string `yaml:"arrived"`
	Welcome          string `yaml:"welcome"`
	StandInFront     string `yaml:"stand_in_front"`
	NeedYouInFront   string `yaml:"need_you_in_front"`
	ContinueQuestion string `yaml:"continue_question"`
	WaitABit         string `yaml:"wait_a_bit"`
	BeginDemo        string `yaml:"begin_demo"`
	ComeBack         string `yaml:"come_back"`
}

type Stage1BLines struct {
	Ramp       string `yaml:"ramp"`
	SkidPulses int    `yaml:"skid_pulses"`
	FirstStop  string `yaml:"first_stop"`
	Arrived    string `yaml:"arrived"`
}

type DistanceDemoLines struct {
	Intro      string `yaml:"intro"`
	FarEnough  string `yaml:"far_enough"`
	StepBack   string `yaml:"step_back"`
	ComeCloser string `yaml:"come_closer"`
	Midrange   string `yaml:"midrange"`
}

type NameLines struct {
	Ask             string `yaml:"ask"`
	ConfirmName     string `yaml:"confirm_name"`
	TryAgain        string `yaml:"try_again"`
	Great           string `yaml:"great"`
	ConfirmNotHeard string `yaml:"confirm_not_heard"`
	NoNameFound     string `yaml:"no_name_found"`
	NotHeard        string `yaml:"not_heard"`
	Failed          string `yaml:"failed"`
	Greeting        string `yaml:"greeting"`
}

type TourEndLines struct {
	Thanks        string   `yaml:"thanks"`
	Especially    string   `yaml:"especially"`
	LookForward   string   `yaml:"look_forward"`
	GoodbyeRounds int      `yaml:"goodbye_rounds"`
	Goodbye       []string `yaml:"goodbye"`
	ReadyNext     string   `yaml:"ready_next"`
}

type ChatLines struct {
	SystemPrompt   string        `yaml:"system_prompt"`
	StartListening string        `yaml:"start_listening"`
	DidYouSay      string        `yaml:"did_you_say"`
	TryAgain       string        `yaml:"try_again"`
	Great          string        `yaml:"great"`
	NotUnderstood  string        `yaml:"not_understood"`
	HearingIssue   string        `yaml:"hearing_issue"`
	ThinkingImage  string        `yaml:"thinking_image"`
	IdleImage      string        `yaml:"idle_image"`
	Settle         time.Duration `yaml:"settle"`
	Apology        string        `yaml:"apology"`
}

// NarrationMode says when a stop's narration is spoken.
type NarrationMode string

const (
	NarrateDuring NarrationMode = "during" // while travelling
	NarrateAfter  NarrationMode = "after"  // once arrived
)

// Stop is one location of the main tour loop.
type Stop struct {
	Location  string          `yaml:"location"`
	Backwards bool            `yaml:"backwards"`
	Delay     time.Duration   `yaml:"delay"`
	Image     string          `yaml:"image"`
	HideFace  bool            `yaml:"hide_face"`
	Mode      NarrationMode   `yaml:"mode"`
	Interrupt interrupt.Flags `yaml:"interrupt"`
	Narration []string        `yaml:"narration"`
}

// DefaultScript returns the embedded script.
func DefaultScript() (*Script, error) {
	return ParseScript(defaultScript)
}

// LoadScript reads a script file. An empty path loads the embedded script.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return DefaultScript()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and checks a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script YAML: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) check() error {
	if s.Locations.Home == "" {
		return fmt.Errorf("script: locations.home is required")
	}
	for i, stop := range s.Stops {
		if stop.Location == "" {
			return fmt.Errorf("script: stop %d has no location", i)
		}
		switch stop.Mode {
		case "", NarrateDuring, NarrateAfter:
		default:
			return fmt.Errorf("script: stop %q has unknown mode %q", stop.Location, stop.Mode)
		}
	}
	return nil
}

// LocationNames returns every distinct map location the script visits.
func (s *Script) LocationNames() []string {
	seen := map[string]bool{}
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	l := s.Locations
	for _, n := range []string{l.Home, l.Greet, l.FrontDoor, l.BeforeRamp, l.MiddleRamp, l.BackDoor} {
		add(n)
	}
	for _, stop := range s.Stops {
		add(stop.Location)
	}
	return names
}

// LocationError reports a script location the robot does not know.
type LocationError struct {
	Name       string
	Suggestion string // closest known location, if any
}

func (e *LocationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("tour: unknown location %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("tour: unknown location %q", e.Name)
}

// Validate checks every location against the names saved on the robot.
// Matching ignores case and surrounding space.
func (s *Script) Validate(known []string) error {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[canonical(k)] = true
	}
	for _, name := range s.LocationNames() {
		if set[canonical(name)] {
			continue
		}
		return &LocationError{Name: name, Suggestion: closest(name, known)}
	}
	return nil
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// closest returns the known name with the smallest edit distance, or ""
// when nothing is near enough to be a plausible typo.
func closest(name string, known []string) string {
	type scored struct {
		val  string
		dist int
	}
	target := canonical(name)
	var results []scored
	for _, cand := range known {
		dist := levenshtein.ComputeDistance(target, canonical(cand))
		if dist > distanceLimit(len(cand)) {
			continue
		}
		results = append(results, scored{val: cand, dist: dist})
	}
	if len(results) == 0 {
		return ""
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].val < results[j].val
		}
		return results[i].dist < results[j].dist
	})
	return results[0].val
}

func distanceLimit(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}
