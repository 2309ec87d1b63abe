// Package lifecycle provides the activity state machine.
//
// An activity moves along the happy path
//
//	INITIALIZING -> STARTED -> RESUMED <-> PAUSING -> PAUSED -> STOPPING -> STOPPED
//
// with RESTARTING_PROCESS reachable from any non-terminal state and
// FINISHING -> DESTROYING -> DESTROYED reachable once a finish is requested.
// DESTROYED is terminal.
//
// # Usage
//
//	m := lifecycle.NewMachine(logger, emitter)
//	changed, err := m.TransitionTo(lifecycle.StateResumed, "launch")
//
// TransitionTo to the current state is a no-op: it reports false and the
// emitter is not called. Any move that is not an edge of the graph fails
// with ErrInvalidTransition.
//
// Group coordinates graceful shutdown of the goroutines that host an
// engine (event loop, transport server, watchers).
package lifecycle
