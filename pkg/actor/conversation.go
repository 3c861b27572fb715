package actor

import (
	"context"
)

// attachWait is how many timer steps Listen waits for the ASR session to
// open before gating on it.
const attachWait = 3

// Listen opens an ASR session and returns what the user said. The second
// result is false when the session closed without a recognised utterance.
func (a *Actor) Listen(ctx context.Context) (string, bool, error) {
	a.state.TakeSpeech()
	if err := a.send(ctx, "wake_up", a.robot.WakeUp); err != nil {
		return "", false, err
	}
	if err := a.cfg.Poller.Timer(ctx, a.state.Attached, attachWait); err != nil {
		return "", false, err
	}
	if err := a.cfg.Poller.Gate(ctx, a.state.Attached); err != nil {
		return "", false, err
	}
	text, ok := a.state.TakeSpeech()
	a.log.Debug("heard", "text", text, "ok", ok)
	return text, ok, nil
}

// FinishConversation closes the ASR session.
func (a *Actor) FinishConversation(ctx context.Context) error {
	return a.send(ctx, "finish_conversation", a.robot.FinishConversation)
}

// WakeUp opens an ASR session without waiting for a result.
func (a *Actor) WakeUp(ctx context.Context) error {
	return a.send(ctx, "wake_up", a.robot.WakeUp)
}

// RunConversationCloser ends each ASR session as soon as it has produced
// a result, so Listen gets one utterance per call.
func (a *Actor) RunConversationCloser(ctx context.Context) error {
	seen := a.state.SpeechSeq()
	for {
		if err := a.cfg.Poller.Buffer(ctx); err != nil {
			return err
		}
		seq := a.state.SpeechSeq()
		if seq == seen {
			continue
		}
		seen = seq
		if a.state.Attached() {
			if err := a.FinishConversation(ctx); err != nil {
				return err
			}
		}
	}
}
