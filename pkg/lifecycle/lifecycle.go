package lifecycle

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an activity.
type State int

const (
	StateInitializing State = iota
	StateStarted
	StateResumed
	StatePausing
	StatePaused
	StateStopping
	StateStopped
	StateRestartingProcess
	StateFinishing
	StateDestroying
	StateDestroyed
)

var stateNames = [...]string{
	StateInitializing:      "INITIALIZING",
	StateStarted:           "STARTED",
	StateResumed:           "RESUMED",
	StatePausing:           "PAUSING",
	StatePaused:            "PAUSED",
	StateStopping:          "STOPPING",
	StateStopped:           "STOPPED",
	StateRestartingProcess: "RESTARTING_PROCESS",
	StateFinishing:         "FINISHING",
	StateDestroying:        "DESTROYING",
	StateDestroyed:         "DESTROYED",
}

// String returns the upper-case name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// ParseState maps a state name (any case) to a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle state %q", name)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsAnyOf reports whether s equals one of the given states.
func (s State) IsAnyOf(states ...State) bool {
	for _, o := range states {
		if s == o {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDestroyed }

// TearingDown reports whether s is on the FINISHING/DESTROYING/DESTROYED path.
func (s State) TearingDown() bool {
	return s == StateFinishing || s == StateDestroying || s == StateDestroyed
}

// teardown states are reachable from every state that is not already
// tearing down.
var teardown = []State{StateRestartingProcess, StateFinishing, StateDestroying, StateDestroyed}

var transitions = map[State][]State{
	StateInitializing:      {StateStarted, StateResumed, StatePaused, StateStopping},
	StateStarted:           {StateResumed, StatePausing, StatePaused, StateStopping},
	StateResumed:           {StatePausing, StatePaused},
	StatePausing:           {StatePaused, StateResumed},
	StatePaused:            {StateResumed, StateStarted, StateStopping},
	StateStopping:          {StateStopped, StateResumed, StateStarted, StatePaused},
	StateStopped:           {StateStarted, StateResumed, StatePaused, StateStopping},
	StateRestartingProcess: {StateInitializing, StateStopped},
}

// CanTransition reports whether from -> to is an edge of the state graph.
// Staying in the same state is not a transition.
func CanTransition(from, to State) bool {
	if from == to {
		return false
	}
	switch from {
	case StateDestroyed:
		return false
	case StateDestroying:
		return to == StateDestroyed
	case StateFinishing:
		return to == StateDestroying || to == StateDestroyed
	case StateRestartingProcess:
		// A restarting process can still be torn down but not restarted again.
		if to == StateFinishing || to == StateDestroying || to == StateDestroyed {
			return true
		}
	default:
		for _, t := range teardown {
			if t == to {
				return true
			}
		}
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// EventEmitter is called when an activity changes lifecycle state.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// EventEmitterFunc adapts a function to EventEmitter.
type EventEmitterFunc func(previous, current State, reason string)

func (f EventEmitterFunc) OnStateChange(previous, current State, reason string) {
	f(previous, current, reason)
}
