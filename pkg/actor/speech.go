package actor

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// SplitSentences breaks text after '.', '!' or '?' followed by whitespace,
// and after the full-width 。！？ marks. Blank pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	for i, r := range text {
		end := i + utf8.RuneLen(r)
		switch r {
		case '.', '!', '?':
			next, _ := utf8.DecodeRuneInString(text[end:])
			if end < len(text) && unicode.IsSpace(next) {
				emit(text[start:end])
				start = end
			}
		case '。', '！', '？':
			emit(text[start:end])
			start = end
		}
	}
	emit(text[start:])
	return out
}

// Speak says text one sentence at a time and returns once the robot has
// finished. With WithInterrupt the conditions are armed for the whole
// utterance; an interrupted sentence is said again after the latch clears.
func (a *Actor) Speak(ctx context.Context, text string, opts ...CallOption) error {
	c := newCall(opts)
	if c.interruptible() {
		a.sup.Arm(c.flags)
		defer a.sup.Disarm()
	}
	return a.speak(ctx, text, c)
}

// SpeakAsync starts text in the background and returns whether it
// started. It is dropped if another narration is still playing. Armed
// flags are left to the caller.
func (a *Actor) SpeakAsync(ctx context.Context, text string, opts ...CallOption) bool {
	c := newCall(opts)
	started := a.narration.TryStart(func() {
		if err := a.speak(ctx, text, c); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("narration ended early", "error", err)
		}
	})
	if !started {
		metrics.NarrationsDropped.Inc()
		a.log.Debug("narration dropped, one already playing", "text", text)
	}
	return started
}

// NarrationActive reports whether a background narration is playing.
func (a *Actor) NarrationActive() bool {
	return a.narration.Active()
}

// WaitNarration blocks until any background narration has finished.
func (a *Actor) WaitNarration(ctx context.Context) error {
	return a.narration.Wait(ctx, a.cfg.Poller)
}

func (a *Actor) speak(ctx context.Context, text string, c call) error {
	for _, sentence := range SplitSentences(text) {
		a.sup.ConsumeRepeatSpeech()
		for {
			if err := a.issueSpeak(ctx, sentence, c.showFace); err != nil {
				return err
			}
			err := a.cfg.Poller.Gate(ctx, func() bool {
				if c.interruptible() && a.sup.Interrupted() {
					return false
				}
				return a.state.TTS() != robot.TTSCompleted
			})
			if err != nil {
				return err
			}
			if !c.interruptible() {
				break
			}
			if err := a.sup.WaitResume(ctx); err != nil {
				return err
			}
			if !a.sup.ConsumeRepeatSpeech() {
				break
			}
			metrics.Repeats.WithLabelValues("speech").Inc()
			a.log.Info("repeating sentence after interrupt", "sentence", sentence)
		}
	}
	return nil
}

func (a *Actor) issueSpeak(ctx context.Context, sentence string, showFace bool) error {
	a.state.SetTTS(robot.TTSPending)
	a.log.Debug("speak", "sentence", sentence)
	return a.send(ctx, "speak", func() error { return a.robot.Speak(sentence, showFace) })
}

// ForcedSpeak says text ignoring the interrupt latch. The request is
// re-sent until the robot reports it has started speaking.
func (a *Actor) ForcedSpeak(ctx context.Context, text string) error {
	for {
		if err := a.issueSpeak(ctx, text, true); err != nil {
			return err
		}
		err := a.cfg.Poller.Timer(ctx, func() bool { return a.state.TTS() != robot.TTSPending }, 1)
		if err != nil {
			return err
		}
		if a.state.TTS() != robot.TTSPending {
			break
		}
	}
	return a.cfg.Poller.Gate(ctx, func() bool { return a.state.TTS() != robot.TTSCompleted })
}
