// Package dialog implements the short spoken exchanges of the tour: yes/no
// confirmation, backing the user off when they stand too close, capturing
// their name and confirming a free-form utterance.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-temitour/pkg/actor"
	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/perception"
)

// Voice speaks and listens. *actor.Actor implements it.
type Voice interface {
	Speak(ctx context.Context, text string, opts ...actor.CallOption) error
	ForcedSpeak(ctx context.Context, text string) error
	Listen(ctx context.Context) (string, bool, error)
}

var _ Voice = (*actor.Actor)(nil)

// Dialog runs the protocols against a voice and the perception state.
type Dialog struct {
	voice  Voice
	view   perception.Reader
	poller gate.Poller
	log    *slog.Logger

	// CloseWait is how many timer steps ExitCaseCheckIfUserClose waits for
	// the user to step back.
	CloseWait int

	// MaxNameAttempts bounds CaptureName.
	MaxNameAttempts int
}

// New creates a Dialog.
func New(voice Voice, view perception.Reader, poller gate.Poller, logger *slog.Logger) *Dialog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialog{
		voice:           voice,
		view:            view,
		poller:          poller,
		log:             logger.With("component", "dialog"),
		CloseWait:       50,
		MaxNameAttempts: 6,
	}
}

// say speaks text unless it is empty.
func (d *Dialog) say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return d.voice.Speak(ctx, text)
}

func (d *Dialog) listen(ctx context.Context) (string, Reply, error) {
	text, ok, err := d.voice.Listen(ctx)
	if err != nil {
		return "", ReplyNone, err
	}
	r := Classify(text, ok)
	metrics.DialogReplies.WithLabelValues(r.String()).Inc()
	d.log.Debug("reply", "text", text, "class", r)
	return text, r, nil
}

// UseConfirmation is the script for GetUseConfirmation.
type UseConfirmation struct {
	Prompt        string
	Rejected      string
	RejectedDelay time.Duration
	Confirmed     string
	NotUnderstood string
	Ignored       string

	// OnConfirmed runs after Confirmed has been spoken. May be nil.
	OnConfirmed func(ctx context.Context) error
}

// GetUseConfirmation asks Prompt while someone is in front of the robot
// and returns once they say yes.
//
// A "no" is acknowledged and the question asked again after
// RejectedDelay. Anything else is met with NotUnderstood while the user
// is still detected; once they have left, Ignored is spoken and the
// protocol waits for someone to come back.
func (d *Dialog) GetUseConfirmation(ctx context.Context, c UseConfirmation) error {
	for {
		if d.view.X() != perception.XGone {
			confirmed, err := d.askUntilAnswered(ctx, c)
			if err != nil {
				return err
			}
			if confirmed {
				if c.OnConfirmed != nil {
					return c.OnConfirmed(ctx)
				}
				return nil
			}
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return err
		}
	}
}

// askUntilAnswered runs one prompt and its listen loop.
func (d *Dialog) askUntilAnswered(ctx context.Context, c UseConfirmation) (bool, error) {
	if err := d.say(ctx, c.Prompt); err != nil {
		return false, err
	}
	for {
		_, reply, err := d.listen(ctx)
		if err != nil {
			return false, err
		}
		switch reply {
		case ReplyReject:
			if err := d.say(ctx, c.Rejected); err != nil {
				return false, err
			}
			return false, gate.Sleep(ctx, c.RejectedDelay)
		case ReplyConfirm:
			return true, d.say(ctx, c.Confirmed)
		}

		if d.view.Y() == perception.YMissing {
			if c.Ignored != "" {
				if err := d.voice.ForcedSpeak(ctx, c.Ignored); err != nil {
					return false, err
				}
			}
			return false, nil
		}
		if err := d.say(ctx, c.NotUnderstood); err != nil {
			return false, err
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return false, err
		}
	}
}

// CloseCheck is the script for ExitCaseCheckIfUserClose.
type CloseCheck struct {
	NotClose string
	Close    string
	Thanks   string
}

// ExitCaseCheckIfUserClose makes sure the user is not standing too close
// before the robot moves off. If they are, it asks them to step back and
// waits up to CloseWait timer steps, thanking them when they do.
func (d *Dialog) ExitCaseCheckIfUserClose(ctx context.Context, c CloseCheck) error {
	for d.view.Y() == perception.YClose {
		if err := d.say(ctx, c.Close); err != nil {
			return err
		}
		notClose := func() bool { return d.view.Y() != perception.YClose }
		if err := d.poller.Timer(ctx, notClose, d.CloseWait); err != nil {
			return err
		}
		if notClose() {
			if err := d.say(ctx, c.Thanks); err != nil {
				return err
			}
		}
	}
	return d.say(ctx, c.NotClose)
}

// NamePrompts is the script for CaptureName. ConfirmName takes the name
// as its only %s verb.
type NamePrompts struct {
	ConfirmName     string
	TryAgain        string
	Great           string
	ConfirmNotHeard string
	NoNameFound     string
	NotHeard        string
}

// CaptureName listens for the user's name and has them confirm it. It
// gives up after MaxNameAttempts or as soon as the user declines.
func (d *Dialog) CaptureName(ctx context.Context, p NamePrompts) (string, bool, error) {
	for attempt := 0; attempt < d.MaxNameAttempts; attempt++ {
		text, reply, err := d.listen(ctx)
		if err != nil {
			return "", false, err
		}
		switch {
		case reply == ReplyNone:
			if err := d.say(ctx, p.NotHeard); err != nil {
				return "", false, err
			}
		case reply == ReplyReject:
			d.log.Info("user declined to give a name")
			return "", false, nil
		default:
			name, ok := ExtractName(text)
			if !ok {
				if err := d.say(ctx, p.NoNameFound); err != nil {
					return "", false, err
				}
				break
			}
			confirmed, err := d.confirmName(ctx, name, p)
			if err != nil {
				return "", false, err
			}
			if confirmed {
				return name, true, nil
			}
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}

// confirmName repeats the name back until the user says yes or no.
// A user who walks off counts as no.
func (d *Dialog) confirmName(ctx context.Context, name string, p NamePrompts) (bool, error) {
	if err := d.say(ctx, fmt.Sprintf(p.ConfirmName, name)); err != nil {
		return false, err
	}
	for {
		_, reply, err := d.listen(ctx)
		if err != nil {
			return false, err
		}
		switch reply {
		case ReplyReject:
			return false, d.say(ctx, p.TryAgain)
		case ReplyConfirm:
			return true, d.say(ctx, p.Great)
		}
		if d.view.X() == perception.XGone && d.view.Y() == perception.YMissing {
			return false, nil
		}
		if err := d.say(ctx, p.ConfirmNotHeard); err != nil {
			return false, err
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return false, err
		}
	}
}

// UtterancePrompts is the script for ConfirmUtterance. DidYouSay takes the
// heard text as its only %s verb.
type UtterancePrompts struct {
	StartListening string
	DidYouSay      string
	TryAgain       string
	Great          string
	NotUnderstood  string
	HearingIssue   string
}

// ConfirmUtterance listens for a free-form request and reads it back
// until the user confirms it, then returns it.
func (d *Dialog) ConfirmUtterance(ctx context.Context, p UtterancePrompts) (string, error) {
	for {
		if err := d.say(ctx, p.StartListening); err != nil {
			return "", err
		}
		text, ok, err := d.voice.Listen(ctx)
		if err != nil {
			return "", err
		}
		if ok && strings.TrimSpace(text) != "" {
			confirmed, err := d.confirmUtterance(ctx, text, p)
			if err != nil {
				return "", err
			}
			if confirmed {
				return text, nil
			}
		} else if err := d.say(ctx, p.HearingIssue); err != nil {
			return "", err
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return "", err
		}
	}
}

func (d *Dialog) confirmUtterance(ctx context.Context, text string, p UtterancePrompts) (bool, error) {
	if err := d.say(ctx, fmt.Sprintf(p.DidYouSay, text)); err != nil {
		return false, err
	}
	for {
		_, reply, err := d.listen(ctx)
		if err != nil {
			return false, err
		}
		switch reply {
		case ReplyReject:
			return false, d.say(ctx, p.TryAgain)
		case ReplyConfirm:
			return true, d.say(ctx, p.Great)
		case ReplyOther:
			if err := d.say(ctx, p.NotUnderstood); err != nil {
				return false, err
			}
		}
		if err := d.poller.Buffer(ctx); err != nil {
			return false, err
		}
	}
}
