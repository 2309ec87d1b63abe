package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// stopIfPossible asks the client to stop an invisible record. When the
// request cannot be delivered the record is assumed stopped.
func (e *Engine) stopIfPossible(r *Record) {
	if r.info.NoHistory && !r.finishing {
		e.finishIfPossible(r, ResultCanceled, "", "no-history")
		return
	}
	if !r.attached() || r.visibleRequested {
		return
	}
	if !r.isState(lifecycle.StateStarted, lifecycle.StatePaused) {
		return
	}
	e.setState(r, lifecycle.StateStopping, "stop")
	if err := e.dispatch(r, client.Message{Kind: client.KindStop}); err != nil {
		e.setState(r, lifecycle.StateStopped, "stop dispatch failed")
		e.commitVisibility(r, false)
		if r.deferRelaunchUntilPaused {
			e.destroyImmediately(r, "stop failed with deferred relaunch")
		}
		return
	}
	e.armTimeout(r, timeout.KindStop)
}

// activityStopped completes a stop round trip, by ack or by timeout.
func (e *Engine) activityStopped(r *Record, payload AckPayload, timedOut bool) {
	if !r.isState(lifecycle.StateStopping, lifecycle.StateRestartingProcess) {
		return
	}
	e.cancelTimeout(r, timeout.KindStop)
	if timedOut {
		e.logger.Warn("stop timed out, forcing stopped", log.String("token", r.token.String()))
	}
	if payload.PersistentState != nil {
		r.persistentState = append([]byte(nil), payload.PersistentState...)
		e.observer.OnPersistentStateChanged(r.task)
	}
	if payload.SavedState != nil {
		r.savedState = append([]byte(nil), payload.SavedState...)
		r.hasSavedState = true
		r.launchCount = 0
	}

	restarting := r.isState(lifecycle.StateRestartingProcess)
	if r.isState(lifecycle.StateStopping) {
		e.setState(r, lifecycle.StateStopped, "stopped")
	}
	e.commitVisibility(r, false)

	if !r.finishing && r.deferRelaunchUntilPaused {
		e.destroyImmediately(r, "stop with deferred relaunch")
		e.resumeFocusedTasksTopActivities()
		return
	}
	if restarting && r.attached() {
		e.procs.KillProcess(r.process, "restart "+r.info.Component)
	}
}

// processStoppingAndFinishing is the idle pass: it stops or destroys every
// queued record that is no longer pausing or resumed.
func (e *Engine) processStoppingAndFinishing(reason string) {
	var ready []*Record
	kept := e.stopping[:0:0]
	for _, tok := range e.stopping {
		r := e.records[tok]
		if r == nil {
			continue
		}
		if r.isState(lifecycle.StatePausing, lifecycle.StateResumed) {
			kept = append(kept, tok)
			continue
		}
		ready = append(ready, r)
	}
	e.stopping = kept

	for _, r := range ready {
		if e.records[r.token] != r {
			continue
		}
		if r.finishing {
			e.destroyIfPossible(r, reason)
			continue
		}
		if r.visibleRequested || r.isState(lifecycle.StateStopping, lifecycle.StateStopped) {
			continue
		}
		e.stopIfPossible(r)
	}

	finishing := e.finishing
	e.finishing = nil
	for _, tok := range finishing {
		if r := e.records[tok]; r != nil {
			e.destroyImmediately(r, reason)
		}
	}
}

// activityIdle handles the idle ack of r or its idle timeout.
func (e *Engine) activityIdle(r *Record, timedOut bool) {
	e.cancelTimeout(r, timeout.KindIdle)
	r.idle = true
	reason := "idle"
	if timedOut {
		reason = "idle timeout"
	}
	e.processStoppingAndFinishing(reason)
}
