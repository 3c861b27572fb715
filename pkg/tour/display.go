package tour

import "sync"

// Signals is what the robot's screen and speaker should be showing.
type Signals struct {
	ShowAnimated    bool   `json:"show_animated_image"`
	StaticImage     string `json:"static_image"`
	AnimatedImage   string `json:"animated_image"`
	BackgroundMusic bool   `json:"background_music"`
	WaitingMusic    bool   `json:"waiting_music"`
}

// Display receives the UI signals the tour raises.
type Display interface {
	ShowAnimatedImage(on bool)
	SetStaticImage(name string)
	SetAnimatedImage(name string)
	PlayBackgroundMusic(on bool)
	PlayWaitingMusic(on bool)
}

// SignalBoard is a Display that keeps the current signals and reports
// every change to an optional callback.
type SignalBoard struct {
	mu       sync.RWMutex
	sig      Signals
	onChange func(Signals)
}

// NewSignalBoard creates a board showing the animated idle face.
func NewSignalBoard(onChange func(Signals)) *SignalBoard {
	return &SignalBoard{
		sig:      Signals{ShowAnimated: true, AnimatedImage: "idle"},
		onChange: onChange,
	}
}

// Signals returns the current signals.
func (b *SignalBoard) Signals() Signals {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sig
}

func (b *SignalBoard) update(fn func(*Signals)) {
	b.mu.Lock()
	before := b.sig
	fn(&b.sig)
	after := b.sig
	b.mu.Unlock()
	if after != before && b.onChange != nil {
		b.onChange(after)
	}
}

func (b *SignalBoard) ShowAnimatedImage(on bool) {
	b.update(func(s *Signals) { s.ShowAnimated = on })
}

func (b *SignalBoard) SetStaticImage(name string) {
	b.update(func(s *Signals) { s.StaticImage = name })
}

func (b *SignalBoard) SetAnimatedImage(name string) {
	b.update(func(s *Signals) { s.AnimatedImage = name })
}

func (b *SignalBoard) PlayBackgroundMusic(on bool) {
	b.update(func(s *Signals) { s.BackgroundMusic = on })
}

func (b *SignalBoard) PlayWaitingMusic(on bool) {
	b.update(func(s *Signals) { s.WaitingMusic = on })
}

var _ Display = (*SignalBoard)(nil)
