package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// startPausing asks the client to pause a resumed record. A pause that
// cannot be delivered completes at once.
func (e *Engine) startPausing(r *Record, reason string) bool {
	if !r.isState(lifecycle.StateResumed) {
		return false
	}
	e.setState(r, lifecycle.StatePausing, reason)
	if err := e.dispatch(r, client.Message{Kind: client.KindPause, Finishing: r.finishing}); err != nil {
		e.completePause(r, false)
		return false
	}
	e.armTimeout(r, timeout.KindPause)
	return true
}

// completePause finishes a pause round trip, by ack or by timeout.
func (e *Engine) completePause(r *Record, timedOut bool) {
	if !r.isState(lifecycle.StatePausing) {
		return
	}
	e.cancelTimeout(r, timeout.KindPause)
	reason := "paused"
	if timedOut {
		reason = "pause timeout"
		e.logger.Warn("pause timed out, forcing paused", log.String("token", r.token.String()))
	}
	e.setState(r, lifecycle.StatePaused, reason)

	switch {
	case r.finishing:
		e.completeFinishing(r, reason)
	case r.deferRelaunchUntilPaused:
		e.relaunch(r, r.deferredChanges, r.preserveWindowOnDeferredRelaunch)
	case !r.visibleRequested:
		e.addToStopping(r, true)
	}
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
}
