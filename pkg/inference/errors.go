package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrNoModel             = errors.New("inference: model required")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
	ErrEmptyReply          = errors.New("inference: empty reply")

	// ErrReplyTimeout is returned by Pending.Wait when no reply arrives in time.
	ErrReplyTimeout = errors.New("inference: reply timed out")
)

// StatusError is a non-2xx answer from a chat backend.
type StatusError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("inference %s: status %d: %s", e.Provider, e.Status, msg)
}

// Unauthorized reports a rejected API key. The chat stage cannot recover
// from it, so startup disables the provider instead.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Retryable reports throttling and server faults.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("inference %s: %w", provider, err)
}
