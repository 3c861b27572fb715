package tour

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-temitour/pkg/actor"
	"github.com/teslashibe/go-temitour/pkg/dialog"
	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/inference"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// Step counts for the presence and goodbye waits.
const (
	excitementWait = 5
	presenceWait   = 5
	standWait      = 2
	goodbyeWait    = 5
	listenDemo     = 3
)

func (t *Tour) startLocation(ctx context.Context) error {
	t.display.PlayBackgroundMusic(false)
	return t.act.GoTo(ctx, t.script.Locations.Home)
}

func (t *Tour) idle(ctx context.Context) error {
	if t.follow != nil {
		t.follow.SetEnabled(true)
		defer t.follow.SetEnabled(false)
	}
	c := t.script.Common
	return t.dlg.GetUseConfirmation(ctx, dialog.UseConfirmation{
		Prompt:        t.script.Idle.Question,
		Rejected:      t.script.Idle.Rejected,
		RejectedDelay: c.RejectedDelay,
		Confirmed:     c.Excited,
		NotUnderstood: c.NotUnderstood,
		Ignored:       c.Ignored,
		OnConfirmed: func(ctx context.Context) error {
			return t.dlg.ExitCaseCheckIfUserClose(ctx, t.closeCheck())
		},
	})
}

func (t *Tour) alternateStart(ctx context.Context) error {
	s := t.script.AlternateStart
	c := t.script.Common
	state := t.act.State()

	if err := t.act.SetMainButton(ctx, true); err != nil {
		return err
	}
	if err := t.poller.Gate(ctx, func() bool { return state.Follow() != robot.FollowTrack }); err != nil {
		return err
	}
	if err := t.say(ctx, s.Following); err != nil {
		return err
	}

	aborted := func() bool { return state.Follow() == robot.FollowAbort }
	for !aborted() {
		if err := t.say(ctx, t.pick(s.Excitement)); err != nil {
			return err
		}
		if err := t.poller.Timer(ctx, aborted, excitementWait); err != nil {
			return err
		}
	}
	if err := t.say(ctx, s.HeadPats); err != nil {
		return err
	}

	t.display.PlayBackgroundMusic(true)
	if err := t.act.SetMainButton(ctx, false); err != nil {
		return err
	}
	if err := t.act.GoTo(ctx, t.script.Locations.Greet, actor.WithNarration(s.Greeting)); err != nil {
		return err
	}

	t.display.SetAnimatedImage(s.TalkImage)
	if err := t.say(ctx, s.ListenIcon, actor.WithoutFace()); err != nil {
		return err
	}
	if err := t.act.WakeUp(ctx); err != nil {
		return err
	}
	if err := gate.Sleep(ctx, listenDemo*t.poller.Second); err != nil {
		return err
	}
	if err := t.act.FinishConversation(ctx); err != nil {
		return err
	}
	for _, line := range []string{s.ListenExplain, s.TestListening} {
		if err := t.say(ctx, line, actor.WithoutFace()); err != nil {
			return err
		}
	}
	t.display.SetAnimatedImage(s.IdleImage)

	return t.dlg.GetUseConfirmation(ctx, dialog.UseConfirmation{
		Prompt:        s.ReadyQuestion,
		Rejected:      s.ReadyRejected,
		RejectedDelay: c.RejectedDelay,
		Confirmed:     c.Excited,
		NotUnderstood: c.NotUnderstood,
		Ignored:       c.Ignored,
		OnConfirmed: func(ctx context.Context) error {
			return t.dlg.ExitCaseCheckIfUserClose(ctx, t.closeCheck())
		},
	})
}

func (t *Tour) stage1(ctx context.Context) error {
	s := t.script.Stage1
	c := t.script.Common

	if err := t.act.SetSpeed(ctx, robot.SpeedMedium); err != nil {
		return err
	}
	if err := t.act.GoTo(ctx, t.script.Locations.FrontDoor, actor.WithNarration(s.FirstStop)); err != nil {
		return err
	}
	if err := t.act.SetSpeed(ctx, t.cfg.Speed); err != nil {
		return err
	}
	if err := t.say(ctx, s.Arrived); err != nil {
		return err
	}
	if err := t.waitForVisitor(ctx); err != nil {
		return err
	}

	return t.dlg.GetUseConfirmation(ctx, dialog.UseConfirmation{
		Prompt:        s.ContinueQuestion,
		Rejected:      s.WaitABit,
		RejectedDelay: c.RejectedDelay,
		Confirmed:     s.BeginDemo,
		NotUnderstood: c.NotUnderstood,
		Ignored:       s.ComeBack,
	})
}

// waitForVisitor loops until someone stands in front of the robot at a
// comfortable distance, turning around to look for them when nobody is
// there.
func (t *Tour) waitForVisitor(ctx context.Context) error {
	s := t.script.Stage1
	c := t.script.Common
	y := t.view.Y

	for {
		switch y() {
		case perception.YClose:
			if err := t.say(ctx, c.TooClose); err != nil {
				return err
			}
			if err := t.poller.Timer(ctx, func() bool { return y() != perception.YClose }, presenceWait); err != nil {
				return err
			}
			if y() != perception.YClose {
				if err := t.say(ctx, c.ThankYou); err != nil {
					return err
				}
			}
		case perception.YMissing:
			present := func() bool { return y() != perception.YMissing }
			if err := t.say(ctx, s.StandInFront); err != nil {
				return err
			}
			if err := t.poller.Timer(ctx, present, standWait); err != nil {
				return err
			}
			if !present() {
				if err := t.act.TurnBy(ctx, 180, 1); err != nil {
					return err
				}
				if err := t.say(ctx, s.NeedYouInFront); err != nil {
					return err
				}
				if err := t.act.TurnBy(ctx, 180, 1); err != nil {
					return err
				}
				if err := t.poller.Timer(ctx, present, presenceWait); err != nil {
					return err
				}
			}
			if present() {
				if err := t.say(ctx, c.ThankYou); err != nil {
					return err
				}
			}
		default:
			return t.say(ctx, s.Welcome)
		}
		if err := t.poller.Buffer(ctx); err != nil {
			return err
		}
	}
}

func (t *Tour) stage1B(ctx context.Context) error {
	s := t.script.Stage1B
	l := t.script.Locations

	t.act.SpeakAsync(ctx, s.Ramp)
	if err := t.act.GoTo(ctx, l.BeforeRamp); err != nil {
		return err
	}
	if err := t.act.SkidJoy(ctx, 1, 0, s.SkidPulses); err != nil {
		return err
	}
	if err := t.act.GoTo(ctx, l.MiddleRamp); err != nil {
		return err
	}
	if err := t.act.SkidJoy(ctx, 1, 0, s.SkidPulses); err != nil {
		return err
	}
	// The ramp talk must end or the first-stop narration is dropped.
	if err := t.act.WaitNarration(ctx); err != nil {
		return err
	}
	if err := t.act.GoTo(ctx, l.BackDoor, actor.WithNarration(s.FirstStop), actor.Backwards()); err != nil {
		return err
	}
	return t.say(ctx, s.Arrived)
}

// distanceDemo shows the far and midrange bands. wait is how many timer
// steps each prompt gives the group to move.
func (t *Tour) distanceDemo(ctx context.Context, wait int) error {
	s := t.script.Stage1_1B
	c := t.script.Common
	y := t.view.Y

	if err := t.say(ctx, s.Intro); err != nil {
		return err
	}

	far := func() bool { return y() == perception.YFar || y() == perception.YMissing }
	for !far() {
		if err := t.say(ctx, s.StepBack); err != nil {
			return err
		}
		if err := t.poller.Timer(ctx, far, wait); err != nil {
			return err
		}
		if far() {
			if err := t.say(ctx, c.ThankYou); err != nil {
				return err
			}
		}
		if err := t.poller.Buffer(ctx); err != nil {
			return err
		}
	}
	if err := t.say(ctx, s.FarEnough); err != nil {
		return err
	}

	midrange := func() bool { return y() == perception.YMidrange }
	for !midrange() {
		prompt := s.ComeCloser
		if y() == perception.YClose {
			prompt = s.StepBack
		}
		if err := t.say(ctx, prompt); err != nil {
			return err
		}
		if err := t.poller.Timer(ctx, midrange, wait); err != nil {
			return err
		}
		if midrange() {
			if err := t.say(ctx, c.ThankYou); err != nil {
				return err
			}
		}
		if err := t.poller.Buffer(ctx); err != nil {
			return err
		}
	}
	return t.say(ctx, s.Midrange)
}

func (t *Tour) getUserName(ctx context.Context) error {
	s := t.script.GetUserName
	t.setUserName(ctx, "")

	if err := t.say(ctx, s.Ask); err != nil {
		return err
	}
	name, ok, err := t.dlg.CaptureName(ctx, dialog.NamePrompts{
		ConfirmName:     s.ConfirmName,
		TryAgain:        s.TryAgain,
		Great:           s.Great,
		ConfirmNotHeard: s.ConfirmNotHeard,
		NoNameFound:     s.NoNameFound,
		NotHeard:        s.NotHeard,
	})
	if err != nil {
		return err
	}
	if !ok {
		return t.say(ctx, s.Failed)
	}
	t.setUserName(ctx, name)
	t.log.Info("visitor name captured", "name", name)
	return t.say(ctx, fmt.Sprintf(s.Greeting, name))
}

// stops visits each stop of the main loop in order.
func (t *Tour) stops(ctx context.Context) error {
	for _, stop := range t.script.Stops {
		if err := t.visit(ctx, stop); err != nil {
			return fmt.Errorf("stop %q: %w", stop.Location, err)
		}
	}
	return nil
}

func (t *Tour) visit(ctx context.Context, stop Stop) error {
	if err := gate.Sleep(ctx, stop.Delay); err != nil {
		return err
	}

	opts := []actor.CallOption{}
	if stop.Interrupt.Any() {
		opts = append(opts, actor.WithInterrupt(stop.Interrupt))
	}
	if stop.HideFace {
		opts = append(opts, actor.WithoutFace())
	}
	goOpts := opts
	if stop.Backwards {
		goOpts = append(append([]actor.CallOption{}, opts...), actor.Backwards())
	}

	showImage := func() {
		if stop.Image != "" {
			t.display.ShowAnimatedImage(false)
			t.display.SetStaticImage(stop.Image)
		}
	}
	if stop.Image != "" {
		defer t.display.ShowAnimatedImage(true)
	}

	log := t.log.With("location", stop.Location)
	text := joinNarration(stop.Narration)
	if text == "" {
		log.Debug("stop without narration")
		return t.act.GoTo(ctx, stop.Location, goOpts...)
	}

	if stop.Mode == NarrateAfter {
		if err := t.act.GoTo(ctx, stop.Location, goOpts...); err != nil {
			return err
		}
		showImage()
		if err := t.act.Speak(ctx, text, opts...); err != nil {
			return err
		}
		return t.poller.Buffer(ctx)
	}

	showImage()
	if err := t.act.GoTo(ctx, stop.Location, append(goOpts, actor.WithNarration(text))...); err != nil {
		return err
	}
	return t.poller.Buffer(ctx)
}

// joinNarration joins narration paragraphs into one utterance.
func joinNarration(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (t *Tour) tourEnd(ctx context.Context) error {
	s := t.script.TourEnd
	l := t.script.Locations
	state := t.act.State()

	if err := t.say(ctx, s.Thanks); err != nil {
		return err
	}
	if name := t.UserName(); name != "" {
		if err := t.say(ctx, fmt.Sprintf(s.Especially, name)); err != nil {
			return err
		}
	}
	if err := t.say(ctx, s.LookForward); err != nil {
		return err
	}
	if err := t.act.GoTo(ctx, l.FrontDoor); err != nil {
		return err
	}

	searching := func() bool { return state.Follow() == robot.FollowSearch }
	for i := 0; i < s.GoodbyeRounds; i++ {
		if err := t.say(ctx, t.pick(s.Goodbye)); err != nil {
			return err
		}
		if err := t.poller.Timer(ctx, searching, goodbyeWait); err != nil {
			return err
		}
	}

	if err := t.act.GoTo(ctx, l.Home); err != nil {
		return err
	}
	if err := t.say(ctx, s.ReadyNext); err != nil {
		return err
	}
	t.setUserName(ctx, "")
	return nil
}

func (t *Tour) chatGPT(ctx context.Context) error {
	s := t.script.ChatGPT

	question, err := t.dlg.ConfirmUtterance(ctx, dialog.UtterancePrompts{
		StartListening: s.StartListening,
		DidYouSay:      s.DidYouSay,
		TryAgain:       s.TryAgain,
		Great:          s.Great,
		NotUnderstood:  s.NotUnderstood,
		HearingIssue:   s.HearingIssue,
	})
	if err != nil {
		return err
	}

	pending := inference.Ask(ctx, t.chat, s.SystemPrompt, question)
	t.display.PlayWaitingMusic(true)
	t.display.SetAnimatedImage(s.ThinkingImage)

	reply, werr := pending.Wait(ctx, t.poller, t.cfg.ChatReplyTimeout)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := gate.Sleep(ctx, s.Settle); err != nil {
		return err
	}
	t.display.PlayWaitingMusic(false)
	t.display.SetAnimatedImage(s.IdleImage)

	if werr != nil {
		t.log.Warn("chat reply failed", "error", werr)
		return t.say(ctx, s.Apology)
	}
	return t.say(ctx, reply)
}

// terminate parks the tour until shutdown.
func (t *Tour) terminate(ctx context.Context) error {
	for {
		if err := t.poller.Buffer(ctx); err != nil {
			return err
		}
	}
}
