package activity

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Engine operations.
var (
	ErrUnknownActivity = errors.New("actlife: unknown activity")
	ErrUnknownTask     = errors.New("actlife: unknown task")
	ErrUnknownProcess  = errors.New("actlife: unknown process")
	ErrUnknownDisplay  = errors.New("actlife: unknown display")
	ErrNotTopActivity  = errors.New("actlife: not the top activity of its task")
	ErrInvalidConfig   = errors.New("actlife: invalid engine config")
	ErrEngineRunning   = errors.New("actlife: event loop already running")

	// ErrPrecondition is the panic value (wrapped) for caller bugs such as
	// completing a finish on a record that is not finishing.
	ErrPrecondition = errors.New("actlife: precondition violated")
)

// preconditionf panics with an error wrapping ErrPrecondition.
func preconditionf(format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{ErrPrecondition}, args...)...))
}
