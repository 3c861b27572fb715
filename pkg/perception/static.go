package perception

import "sync"

// Static is a Reader whose positions are set directly. It stands in for
// the classifier when a caller wants to script where the person is.
type Static struct {
	mu sync.RWMutex
	y  YPosition
	x  XPosition
}

// NewStatic returns a Static reporting y and x.
func NewStatic(y YPosition, x XPosition) *Static {
	return &Static{y: y, x: x}
}

// Set replaces both positions.
func (s *Static) Set(y YPosition, x XPosition) {
	s.mu.Lock()
	s.y, s.x = y, x
	s.mu.Unlock()
}

// SetY replaces the distance band.
func (s *Static) SetY(y YPosition) {
	s.mu.Lock()
	s.y = y
	s.mu.Unlock()
}

// SetX replaces the side.
func (s *Static) SetX(x XPosition) {
	s.mu.Lock()
	s.x = x
	s.mu.Unlock()
}

// Y implements Reader.
func (s *Static) Y() YPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.y
}

// X implements Reader.
func (s *Static) X() XPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.x
}

var _ Reader = (*Static)(nil)
