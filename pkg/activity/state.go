package activity

import (
	"time"

	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// setState moves r to s and runs the entry side effects of s. Moving to
// the current state does nothing. An invalid transition is a caller bug
// and panics.
func (e *Engine) setState(r *Record, s lifecycle.State, reason string) {
	prev := r.state()
	changed, err := r.machine.TransitionTo(s, reason)
	if err != nil {
		panic(err)
	}
	if !changed {
		return
	}
	e.metrics.StateTransition(prev, s)

	if t := e.tasks[r.task]; t != nil {
		if t.resumed == r.token {
			t.resumed = ""
		}
		if t.pausing == r.token {
			t.pausing = ""
		}
		switch s {
		case lifecycle.StateResumed:
			t.resumed = r.token
		case lifecycle.StatePausing:
			t.pausing = r.token
		}
	}
	e.observer.OnStateChanged(r.token, s)

	switch s {
	case lifecycle.StateResumed:
		delete(e.unresolvedVisibility, r.token)
		e.observer.OnActivityResumed(r.token, r.info.Component)
		e.updateProcessPriority(r.process)
	case lifecycle.StateStopped:
		delete(e.unresolvedVisibility, r.token)
	case lifecycle.StateDestroying, lifecycle.StateDestroyed:
		e.updateProcessPriority(r.process)
	default:
		if prev == lifecycle.StateResumed {
			e.updateProcessPriority(r.process)
		}
	}
}

// setVisibility changes the requested visibility of r.
func (e *Engine) setVisibility(r *Record, visible bool) {
	if r.visibleRequested == visible {
		return
	}
	r.visibleRequested = visible
	if visible {
		e.unresolvedVisibility[r.token] = struct{}{}
	}
	e.logger.Debug("visibility requested",
		log.String("token", r.token.String()),
		log.Bool("visible", visible),
	)
	e.observer.OnVisibilityChanged(r.token, visible)
}

// commitVisibility records what the client actually shows.
func (e *Engine) commitVisibility(r *Record, visible bool) {
	r.visible = visible
	if !visible {
		delete(e.unresolvedVisibility, r.token)
	}
}

func (e *Engine) armTimeout(r *Record, kind timeout.Kind) {
	e.timeouts.Arm(string(r.token), kind, e.timeoutFor(kind))
}

func (e *Engine) cancelTimeout(r *Record, kind timeout.Kind) {
	e.timeouts.Cancel(string(r.token), kind)
}

func (e *Engine) timeoutFor(kind timeout.Kind) time.Duration {
	switch kind {
	case timeout.KindPause:
		return e.cfg.PauseTimeout
	case timeout.KindStop:
		return e.cfg.StopTimeout
	case timeout.KindDestroy:
		return e.cfg.DestroyTimeout
	case timeout.KindIdle:
		return e.cfg.IdleTimeout
	case timeout.KindRelaunch:
		return e.cfg.RelaunchTimeout
	}
	return e.cfg.IdleTimeout
}

// scheduleIdle arms an immediate engine-wide idle pass.
func (e *Engine) scheduleIdle() {
	e.timeouts.Arm(engineIdleID, timeout.KindIdle, 0)
}

func containsToken(list []Token, tok Token) bool {
	for _, t := range list {
		if t == tok {
			return true
		}
	}
	return false
}

func removeToken(list []Token, tok Token) []Token {
	for i, t := range list {
		if t == tok {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// addToStopping queues r for the next idle pass. A pass is scheduled when
// asked for or when the list grows past MaxStoppingToForce.
func (e *Engine) addToStopping(r *Record, scheduleIdle bool) {
	if containsToken(e.stopping, r.token) {
		return
	}
	e.stopping = append(e.stopping, r.token)
	if scheduleIdle || len(e.stopping) > e.cfg.MaxStoppingToForce {
		e.scheduleIdle()
	}
}

func (e *Engine) removeFromStopping(r *Record) {
	e.stopping = removeToken(e.stopping, r.token)
}
