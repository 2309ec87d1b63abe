package persist

import (
	"context"
	"errors"
)

// ErrIncompatibleVersion is returned when a state file was written by a
// newer, incompatible version.
var ErrIncompatibleVersion = errors.New("actlife: incompatible state version")

// Repository persists hierarchy state.
type Repository interface {
	// Load retrieves the last saved state. It returns an empty state and
	// nil error if nothing was saved yet.
	Load(ctx context.Context) (State, error)

	// Save persists state atomically.
	Save(ctx context.Context, state State) error
}
