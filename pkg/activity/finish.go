package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// finishIfPossible starts finishing r. Results are delivered to the
// result target first. A visible record is hidden and destroyed once its
// successor shows; an invisible one is destroyed at once.
func (e *Engine) finishIfPossible(r *Record, resultCode int, data, reason string) FinishResult {
	t := e.tasks[r.task]
	if r.finishing || t == nil || e.records[r.token] != r {
		return FinishCancelled
	}
	r.finishing = true
	e.logger.Debug("finishing activity",
		log.String("token", r.token.String()),
		log.String("reason", reason),
	)

	if r.intent.ClearWhenTaskReset {
		if i := t.indexOf(r.token); i >= 0 && i+1 < len(t.records) {
			if above := e.records[t.records[i+1]]; above != nil {
				above.intent.ClearWhenTaskReset = true
			}
		}
	}
	e.finishActivityResults(r, resultCode, data)

	switch {
	case r.isState(lifecycle.StateDestroyed):
		// Retained without a client instance; nothing to tear down.
		if r.visibleRequested {
			e.setVisibility(r, false)
		}
		e.removeFromHistory(r, reason)
		e.resumeFocusedTasksTopActivities()
		return FinishRemoved
	case r.isState(lifecycle.StateDestroying):
		// activityDestroyed removes it now that it is finishing.
		return FinishRequested
	}

	if r.isState(lifecycle.StateResumed) {
		e.setVisibility(r, false)
		e.startPausing(r, "finish")
		return FinishRequested
	}
	if !r.isState(lifecycle.StatePausing) {
		if r.visibleRequested {
			e.setVisibility(r, false)
		}
		e.completeFinishing(r, reason)
		if e.records[r.token] != r {
			return FinishRemoved
		}
	}
	return FinishRequested
}

// finishActivityResults hands r's result to its target and forgets the
// target.
func (e *Engine) finishActivityResults(r *Record, resultCode int, data string) {
	if r.resultTo == "" {
		return
	}
	target := e.records[r.resultTo]
	r.resultTo = ""
	if target == nil {
		return
	}
	e.sendResult(target, client.Result{
		From:        r.info.Component,
		ResultWho:   r.resultWho,
		RequestCode: r.requestCode,
		ResultCode:  resultCode,
		Data:        data,
	}, r.info.ForceSendResult)
}

// sendResult delivers res to a resumed target immediately. With force set
// it is also delivered to a started, paused or stopped target, followed by
// the request that restores the target's own state. Anything else queues.
func (e *Engine) sendResult(target *Record, res client.Result, force bool) {
	msg := client.Message{Kind: client.KindDeliverResult, Results: []client.Result{res}}
	switch {
	case target.isState(lifecycle.StateResumed) && target.attached():
		if e.dispatch(target, msg) == nil {
			return
		}
	case force && target.attached():
		if final, ok := finalRequestFor(target.state()); ok {
			msg.Final = &final
			if e.dispatch(target, msg) == nil {
				return
			}
		}
	}
	target.results = append(target.results, res)
}

func finalRequestFor(s lifecycle.State) (client.Kind, bool) {
	switch s {
	case lifecycle.StateStarted:
		return client.KindStart, true
	case lifecycle.StatePausing, lifecycle.StatePaused:
		return client.KindPause, true
	case lifecycle.StateStopping, lifecycle.StateStopped:
		return client.KindStop, true
	}
	return 0, false
}

// completeFinishing decides how a finishing record goes away once it is
// paused: wait in the stopping list for the successor to show, wait in the
// finishing list for a resume elsewhere, or destroy now.
func (e *Engine) completeFinishing(r *Record, reason string) {
	if !r.finishing || r.isState(lifecycle.StateResumed) {
		preconditionf("complete finishing %s in state %s (finishing=%t)", r.token, r.state(), r.finishing)
	}
	if r.isState(lifecycle.StatePausing) {
		return
	}

	isCurrentVisible := r.visibleRequested || r.isState(lifecycle.StatePaused, lifecycle.StateStarted)
	if isCurrentVisible {
		e.ensureActivitiesVisible()
	}
	next := e.topRunningOnDisplay(e.displayOf(r))
	if isCurrentVisible && next != nil && next != r && !next.visible &&
		lifecycle.CanTransition(r.state(), lifecycle.StateStopping) {
		e.addToStopping(r, false)
		e.setState(r, lifecycle.StateStopping, "finishing, waiting for next")
		return
	}
	if e.addToFinishingAndWaitForIdle(r) {
		return
	}
	e.destroyIfPossible(r, reason)
}

func (e *Engine) addToFinishingAndWaitForIdle(r *Record) bool {
	if r.isState(lifecycle.StateDestroying, lifecycle.StateDestroyed) {
		return false
	}
	e.setState(r, lifecycle.StateFinishing, "finishing, waiting for idle")
	if !containsToken(e.finishing, r.token) {
		e.finishing = append(e.finishing, r.token)
	}
	return e.resumeFocusedTasksTopActivities()
}

// destroyIfPossible destroys a finishing record and resumes the next top
// when the record left the hierarchy.
func (e *Engine) destroyIfPossible(r *Record, reason string) {
	if !r.state().IsAnyOf(lifecycle.StateDestroying, lifecycle.StateDestroyed) {
		e.setState(r, lifecycle.StateFinishing, reason)
	}
	e.removeFromStopping(r)
	e.destroyImmediately(r, reason)
	if e.records[r.token] != r {
		e.resumeFocusedTasksTopActivities()
	}
}

// destroyImmediately tears r down. It is a no-op returning false on a
// record that is already destroying or destroyed.
func (e *Engine) destroyImmediately(r *Record, reason string) bool {
	if r.isState(lifecycle.StateDestroying, lifecycle.StateDestroyed) {
		return false
	}
	e.cleanUp(r, false, reason)

	if !r.attached() {
		if r.finishing {
			e.removeFromHistory(r, reason)
		} else {
			e.setState(r, lifecycle.StateDestroyed, reason)
		}
		return true
	}

	err := e.dispatch(r, client.Message{Kind: client.KindDestroy, Finishing: r.finishing})
	host := r.process
	r.process = ""
	e.updateProcessPriority(host)
	if err != nil {
		if r.finishing {
			e.removeFromHistory(r, reason+": client gone")
		} else {
			e.setState(r, lifecycle.StateDestroyed, reason+": client gone")
		}
		return true
	}
	e.setState(r, lifecycle.StateDestroying, reason)
	e.armTimeout(r, timeout.KindDestroy)
	return true
}

// activityDestroyed completes a destroy round trip, by ack or by timeout.
func (e *Engine) activityDestroyed(r *Record, timedOut bool) {
	if !r.isState(lifecycle.StateDestroying) {
		return
	}
	e.cancelTimeout(r, timeout.KindDestroy)
	reason := "destroyed"
	if timedOut {
		reason = "destroy timeout"
		e.logger.Warn("destroy timed out, forcing destroyed", log.String("token", r.token.String()))
	}
	if r.finishing {
		e.cleanUp(r, false, reason)
		e.removeFromHistory(r, reason)
	} else {
		e.setState(r, lifecycle.StateDestroyed, reason)
	}
	e.resumeFocusedTasksTopActivities()
}

// cleanUp drops every transient reference to r held by the engine.
func (e *Engine) cleanUp(r *Record, setState bool, reason string) {
	if t := e.tasks[r.task]; t != nil {
		if t.resumed == r.token {
			t.resumed = ""
		}
		if t.pausing == r.token {
			t.pausing = ""
		}
	}
	r.deferRelaunchUntilPaused = false
	if setState {
		e.setState(r, lifecycle.StateDestroyed, reason)
		host := r.process
		r.process = ""
		e.updateProcessPriority(host)
	}
	e.removeFromStopping(r)
	e.finishing = removeToken(e.finishing, r.token)
	e.timeouts.CancelAll(string(r.token))
	e.clearRelaunching(r)
	delete(e.unresolvedVisibility, r.token)
	e.commitVisibility(r, false)
}

// removeFromHistory unlinks r from its task and forgets it. Later
// requests for its token fail with ErrUnknownActivity.
func (e *Engine) removeFromHistory(r *Record, reason string) {
	e.finishActivityResults(r, ResultCanceled, "")
	r.finishing = true
	if t := e.tasks[r.task]; t != nil {
		t.remove(r.token)
		if t.resumed == r.token {
			t.resumed = ""
		}
		if t.pausing == r.token {
			t.pausing = ""
		}
		if len(t.records) == 0 {
			e.removeTaskLocked(t)
		}
	}
	e.timeouts.CancelAll(string(r.token))
	if !r.isState(lifecycle.StateDestroyed) {
		e.setState(r, lifecycle.StateDestroyed, reason)
	}
	host := r.process
	r.process = ""
	e.updateProcessPriority(host)
	e.removeFromStopping(r)
	e.finishing = removeToken(e.finishing, r.token)
	delete(e.unresolvedVisibility, r.token)
	delete(e.records, r.token)
	e.reportSizeCompat()
	e.logger.Debug("activity removed",
		log.String("token", r.token.String()),
		log.String("reason", reason),
	)
}
