package dialog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-temitour/pkg/actor"
	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/perception"
)

type heard struct {
	text string
	ok   bool
}

func said(text string) heard { return heard{text: text, ok: true} }

var silence = heard{}

// fakeVoice replays scripted replies and records what was spoken.
type fakeVoice struct {
	mu      sync.Mutex
	replies []heard
	spoken  []string
	forced  []string
	listens int
	onSpeak func(text string)
}

func (v *fakeVoice) Speak(_ context.Context, text string, _ ...actor.CallOption) error {
	v.mu.Lock()
	v.spoken = append(v.spoken, text)
	hook := v.onSpeak
	v.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return nil
}

func (v *fakeVoice) ForcedSpeak(_ context.Context, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forced = append(v.forced, text)
	return nil
}

func (v *fakeVoice) Listen(context.Context) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listens++
	if len(v.replies) == 0 {
		return "", false, nil
	}
	h := v.replies[0]
	v.replies = v.replies[1:]
	return h.text, h.ok, nil
}

func (v *fakeVoice) Spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

func newDialog(voice *fakeVoice, view perception.Reader) *Dialog {
	return New(voice, view, gate.Poller{Tick: time.Millisecond, Second: time.Millisecond}, nil)
}

func TestContainsPhraseInOrder(t *testing.T) {
	tests := []struct {
		name     string
		response string
		phrases  []string
		want     bool
	}{
		{"single word", "yes please", []string{"yes"}, true},
		{"missing word", "please", []string{"yes"}, false},
		{"subsequence", "I will yes come", []string{"yes come"}, true},
		{"order violated", "come yes", []string{"yes come"}, false},
		{"any phrase", "sure thing", []string{"yes", "sure"}, true},
		{"case insensitive", "YES please", []string{"yes"}, true},
		{"empty response", "", []string{"yes"}, false},
		{"no phrases", "yes", nil, false},
		{"whole token only", "yesterday", []string{"yes"}, false},
		{"full width letters", "ＹＥＳ", []string{"yes"}, true},
		{"ideographic space", "我　愿意", []string{"我 愿意"}, true},
		{"mandarin confirm", "好的", Confirmation, true},
		{"mandarin reject", "不", Reject, true},
		{"mandarin unrelated", "今天天气很好", Confirmation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsPhraseInOrder(tt.response, tt.phrases); got != tt.want {
				t.Errorf("ContainsPhraseInOrder(%q, %q) = %v, want %v", tt.response, tt.phrases, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
		want Reply
	}{
		{"", false, ReplyNone},
		{"   ", true, ReplyNone},
		{"不", true, ReplyReject},
		{"好的", true, ReplyConfirm},
		{"嗯", true, ReplyOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.text, tt.ok); got != tt.want {
			t.Errorf("Classify(%q, %v) = %v, want %v", tt.text, tt.ok, got, tt.want)
		}
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"我叫小明", "小明", true},
		{"我的名字是李华", "李华", true},
		{"我是张伟", "张伟", true},
		{"这是王芳", "王芳", true},
		{"叫我小李", "小李", true},
		{"名字是陈琳", "陈琳", true},
		{"  李杰 ", "李杰", true},
		{"hello", "", false},
		{"my name is bob", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ExtractName(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractName(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func tourConfirmation(confirmed *int) UseConfirmation {
	return UseConfirmation{
		Prompt:        "would you like to take a tour",
		Rejected:      "okay, maybe another time",
		RejectedDelay: 2 * time.Millisecond,
		Confirmed:     "great, follow me",
		NotUnderstood: "sorry, I did not understand",
		Ignored:       "okay, bye",
		OnConfirmed: func(context.Context) error {
			*confirmed++
			return nil
		},
	}
}

func TestGetUseConfirmationRejectThenConfirm(t *testing.T) {
	voice := &fakeVoice{replies: []heard{said("不"), said("好的")}}
	d := newDialog(voice, perception.NewStatic(perception.YMidrange, perception.XMiddle))

	confirmed := 0
	c := tourConfirmation(&confirmed)
	if err := d.GetUseConfirmation(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	want := []string{c.Prompt, c.Rejected, c.Prompt, c.Confirmed}
	if got := voice.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoke %q, want %q", got, want)
	}
	if confirmed != 1 {
		t.Errorf("OnConfirmed called %d times", confirmed)
	}
}

func TestGetUseConfirmationNotUnderstood(t *testing.T) {
	voice := &fakeVoice{replies: []heard{said("嗯"), silence, said("是")}}
	d := newDialog(voice, perception.NewStatic(perception.YFar, perception.XLeft))

	confirmed := 0
	c := tourConfirmation(&confirmed)
	if err := d.GetUseConfirmation(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	want := []string{c.Prompt, c.NotUnderstood, c.NotUnderstood, c.Confirmed}
	if got := voice.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoke %q, want %q", got, want)
	}
}

func TestGetUseConfirmationUserLeft(t *testing.T) {
	view := perception.NewStatic(perception.YMissing, perception.XMiddle)
	voice := &fakeVoice{}
	voice.onSpeak = func(string) { view.SetX(perception.XGone) }
	d := newDialog(voice, view)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	confirmed := 0
	c := tourConfirmation(&confirmed)

	err := d.GetUseConfirmation(ctx, c)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetUseConfirmation() = %v, want to wait for a user", err)
	}
	if got := voice.Spoken(); !reflect.DeepEqual(got, []string{c.Prompt}) {
		t.Errorf("spoke %q", got)
	}
	if !reflect.DeepEqual(voice.forced, []string{c.Ignored}) {
		t.Errorf("forced %q, want the ignored line once", voice.forced)
	}
	if confirmed != 0 {
		t.Error("OnConfirmed should not run")
	}
}

func TestExitCaseCheckIfUserClose(t *testing.T) {
	check := CloseCheck{NotClose: "let's go", Close: "please step back", Thanks: "thank you"}

	t.Run("not close", func(t *testing.T) {
		voice := &fakeVoice{}
		d := newDialog(voice, perception.NewStatic(perception.YMidrange, perception.XMiddle))
		if err := d.ExitCaseCheckIfUserClose(context.Background(), check); err != nil {
			t.Fatal(err)
		}
		if got := voice.Spoken(); !reflect.DeepEqual(got, []string{"let's go"}) {
			t.Errorf("spoke %q", got)
		}
	})

	t.Run("steps back", func(t *testing.T) {
		view := perception.NewStatic(perception.YClose, perception.XMiddle)
		voice := &fakeVoice{}
		voice.onSpeak = func(text string) {
			if text == check.Close {
				view.SetY(perception.YMidrange)
			}
		}
		d := newDialog(voice, view)
		if err := d.ExitCaseCheckIfUserClose(context.Background(), check); err != nil {
			t.Fatal(err)
		}
		want := []string{"please step back", "thank you", "let's go"}
		if got := voice.Spoken(); !reflect.DeepEqual(got, want) {
			t.Errorf("spoke %q, want %q", got, want)
		}
	})

	t.Run("stays close", func(t *testing.T) {
		view := perception.NewStatic(perception.YClose, perception.XMiddle)
		voice := &fakeVoice{}
		asks := 0
		voice.onSpeak = func(text string) {
			if text == check.Close {
				asks++
				if asks == 2 {
					view.SetY(perception.YFar)
				}
			}
		}
		d := newDialog(voice, view)
		d.CloseWait = 3
		if err := d.ExitCaseCheckIfUserClose(context.Background(), check); err != nil {
			t.Fatal(err)
		}
		want := []string{"please step back", "please step back", "thank you", "let's go"}
		if got := voice.Spoken(); !reflect.DeepEqual(got, want) {
			t.Errorf("spoke %q, want %q", got, want)
		}
	})
}

var namePrompts = NamePrompts{
	ConfirmName:     "I think your name is %s, is that correct",
	TryAgain:        "okay let's try again",
	Great:           "great",
	ConfirmNotHeard: "sorry I did not hear you clearly, could you confirm your name",
	NoNameFound:     "sorry I didn't catch your name",
	NotHeard:        "sorry I didn't hear you",
}

func TestCaptureName(t *testing.T) {
	present := func() perception.Reader { return perception.NewStatic(perception.YFar, perception.XMiddle) }

	tests := []struct {
		name      string
		replies   []heard
		wantName  string
		wantOK    bool
		wantSpoke []string
	}{
		{
			name:     "confirmed",
			replies:  []heard{said("我叫小明"), said("是")},
			wantName: "小明", wantOK: true,
			wantSpoke: []string{fmt.Sprintf(namePrompts.ConfirmName, "小明"), "great"},
		},
		{
			name:      "declined",
			replies:   []heard{said("不")},
			wantSpoke: nil,
		},
		{
			name:     "second try",
			replies:  []heard{said("我叫小明"), said("不"), said("我是小红"), said("好的")},
			wantName: "小红", wantOK: true,
			wantSpoke: []string{
				fmt.Sprintf(namePrompts.ConfirmName, "小明"), "okay let's try again",
				fmt.Sprintf(namePrompts.ConfirmName, "小红"), "great",
			},
		},
		{
			name:     "not heard while confirming",
			replies:  []heard{said("李杰"), said("嗯"), said("当然")},
			wantName: "李杰", wantOK: true,
			wantSpoke: []string{
				fmt.Sprintf(namePrompts.ConfirmName, "李杰"), namePrompts.ConfirmNotHeard, "great",
			},
		},
		{
			name:      "no name in reply",
			replies:   []heard{said("hello there"), said("我叫小明"), said("是")},
			wantName:  "小明",
			wantOK:    true,
			wantSpoke: []string{namePrompts.NoNameFound, fmt.Sprintf(namePrompts.ConfirmName, "小明"), "great"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voice := &fakeVoice{replies: tt.replies}
			d := newDialog(voice, present())
			got, ok, err := d.CaptureName(context.Background(), namePrompts)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.wantName || ok != tt.wantOK {
				t.Errorf("CaptureName() = %q, %v, want %q, %v", got, ok, tt.wantName, tt.wantOK)
			}
			if spoke := voice.Spoken(); !reflect.DeepEqual(spoke, tt.wantSpoke) {
				t.Errorf("spoke %q, want %q", spoke, tt.wantSpoke)
			}
		})
	}
}

func TestCaptureNameGivesUp(t *testing.T) {
	voice := &fakeVoice{}
	d := newDialog(voice, perception.NewStatic(perception.YFar, perception.XMiddle))

	name, ok, err := d.CaptureName(context.Background(), namePrompts)
	if err != nil {
		t.Fatal(err)
	}
	if ok || name != "" {
		t.Errorf("CaptureName() = %q, %v", name, ok)
	}
	if voice.listens != 6 {
		t.Errorf("listened %d times, want 6", voice.listens)
	}
}

func TestCaptureNameUserWalksOff(t *testing.T) {
	view := perception.NewStatic(perception.YFar, perception.XMiddle)
	voice := &fakeVoice{replies: []heard{said("我叫小明")}}
	voice.onSpeak = func(string) { view.Set(perception.YMissing, perception.XGone) }
	d := newDialog(voice, view)
	d.MaxNameAttempts = 2

	_, ok, err := d.CaptureName(context.Background(), namePrompts)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no confirmed name")
	}
}

func TestConfirmUtterance(t *testing.T) {
	p := UtterancePrompts{
		StartListening: "I will start listening",
		DidYouSay:      "did you say %s? please just say yes or no",
		TryAgain:       "sorry, let's try this again",
		Great:          "great, let me think for a moment",
		NotUnderstood:  "sorry, I did not understand you",
		HearingIssue:   "sorry, I had an issue with hearing you",
	}
	voice := &fakeVoice{replies: []heard{
		silence,
		said("讲个笑话"), said("不"),
		said("讲个故事"), said("嗯"), said("是"),
	}}
	d := newDialog(voice, perception.NewStatic(perception.YFar, perception.XMiddle))

	got, err := d.ConfirmUtterance(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if got != "讲个故事" {
		t.Errorf("ConfirmUtterance() = %q", got)
	}
	want := []string{
		p.StartListening, p.HearingIssue,
		p.StartListening, fmt.Sprintf(p.DidYouSay, "讲个笑话"), p.TryAgain,
		p.StartListening, fmt.Sprintf(p.DidYouSay, "讲个故事"), p.NotUnderstood, p.Great,
	}
	if spoke := voice.Spoken(); !reflect.DeepEqual(spoke, want) {
		t.Errorf("spoke %q\nwant  %q", spoke, want)
	}
}
