package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrJobClosed means the job reached a terminal state (usually a
	// rejection) while the pipeline was running; its results are discarded.
	ErrJobClosed         = errors.New("generation job is closed")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// ValidationError describes why a draft was excluded from the result set.
type ValidationError struct {
	Field     string
	Message   string
	Retryable bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
