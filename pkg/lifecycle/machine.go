package lifecycle

import (
	"errors"
	"fmt"

	"github.com/bft-labs/actlife/pkg/log"
)

// ErrInvalidTransition is returned for a move that is not an edge of the
// state graph.
var ErrInvalidTransition = errors.New("actlife: invalid state transition")

// Machine holds the lifecycle state of one activity and validates every
// move. It has no lock of its own; the owner serializes access.
type Machine struct {
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewMachine creates a machine in StateInitializing.
func NewMachine(logger log.Logger, emitter EventEmitter) *Machine {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Machine{
		state:        StateInitializing,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// TransitionTo moves to newState. Moving to the current state is a no-op
// that reports false and emits nothing.
func (m *Machine) TransitionTo(newState State, reason string) (bool, error) {
	oldState := m.state
	if oldState == newState {
		return false, nil
	}
	if !CanTransition(oldState, newState) {
		return false, fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, oldState, newState, reason)
	}

	m.state = newState

	m.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	if m.eventEmitter != nil {
		m.eventEmitter.OnStateChange(oldState, newState, reason)
	}
	return true, nil
}
