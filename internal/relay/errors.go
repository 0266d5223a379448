package relay

import "errors"

var (
	// ErrInvalidEvent is returned for events that can never be delivered
	ErrInvalidEvent = errors.New("invalid push event")

	// ErrPushDisabled is returned when the user turned push off after the event was published
	ErrPushDisabled = errors.New("push disabled for user")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
