package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// resumeFocusedTasksTopActivities resumes the top running record of the
// focused task, pausing any other resumed record first. It reports whether
// a resume or a pause was started.
func (e *Engine) resumeFocusedTasksTopActivities() bool {
	t := e.focusedTask()
	if t == nil || e.sleeping(t.displayID) {
		return false
	}
	next := e.topRunning(t)
	if next == nil || next.holdPaused || next.hidden {
		return false
	}
	if next.isState(lifecycle.StateResumed, lifecycle.StateRestartingProcess, lifecycle.StateFinishing, lifecycle.StateDestroying) {
		return false
	}

	pausing := false
	for _, r := range e.orderedRecords() {
		if r == next {
			continue
		}
		if r.isState(lifecycle.StateResumed) {
			e.startPausing(r, "resume "+next.info.Component)
		}
		if r.isState(lifecycle.StatePausing) {
			pausing = true
		}
	}
	if pausing {
		return true
	}
	// A pause that failed to dispatch completes synchronously and may have
	// resumed next already.
	if cur := e.records[next.token]; cur == nil || cur.isState(lifecycle.StateResumed) {
		return true
	}
	e.resumeActivity(e.records[next.token])
	return true
}

// resumeActivity brings r to RESUMED, launching or reviving it as needed.
func (e *Engine) resumeActivity(r *Record) {
	if r.isState(lifecycle.StateDestroyed) {
		r = e.revive(r)
	}
	e.setVisibility(r, true)
	e.removeFromStopping(r)

	if r.isState(lifecycle.StateInitializing) {
		e.realStart(r, true)
		return
	}
	if !r.attached() {
		r.launchPending = true
		return
	}

	results, intents := r.results, r.newIntents
	err := e.dispatch(r, client.Message{
		Kind:    client.KindResume,
		Results: results,
		Intents: intents,
	})
	if err != nil {
		if p := e.processes[r.process]; p != nil {
			e.appDied(p, "resume failed")
		}
		return
	}
	r.results, r.newIntents = nil, nil
	e.setState(r, lifecycle.StateResumed, "resume")
	r.idle = false
	e.armTimeout(r, timeout.KindIdle)
}

// realStart launches r in its host process. It reports whether the launch
// message was delivered.
func (e *Engine) realStart(r *Record, andResume bool) bool {
	p := e.processes[r.info.ProcessName]
	if p == nil {
		r.launchPending = true
		return false
	}
	r.launchPending = false
	r.launchCount++
	r.lastLaunchTime = e.now()
	r.process = p.name
	e.unresolvedVisibility[r.token] = struct{}{}

	cfg := r.fullConfig
	r.lastReportedConfig = cfg
	r.lastReportedDisplayID = e.displayOf(r)
	r.reported = true

	msg := client.Message{
		Kind:          client.KindLaunch,
		Configuration: &cfg,
		DisplayID:     r.lastReportedDisplayID,
		Intents:       append([]client.Intent{r.intent}, r.newIntents...),
		SavedState:    r.savedState,
		Resume:        andResume,
	}
	if andResume {
		msg.Results = r.results
	}
	if err := e.dispatch(r, msg); err != nil {
		r.process = ""
		if r.launchFailed {
			e.logger.Warn("second launch failure, finishing activity",
				log.String("token", r.token.String()),
				log.String("process", p.name),
			)
			e.finishIfPossible(r, ResultCanceled, "", "launch failed")
			return false
		}
		r.launchFailed = true
		r.launchPending = true
		e.procs.KillProcess(p.name, "launch failed for "+r.info.Component)
		return false
	}

	r.launchFailed = false
	r.newIntents = nil
	if andResume {
		r.results = nil
		e.setState(r, lifecycle.StateResumed, "launch")
		r.idle = false
		e.armTimeout(r, timeout.KindIdle)
	} else {
		e.setState(r, lifecycle.StatePaused, "launch")
	}
	return true
}

// revive replaces a retained DESTROYED record with a fresh INITIALIZING
// instance under the same token. Saved state, launch accounting, pending
// deliveries and size-compat insets carry over.
func (e *Engine) revive(old *Record) *Record {
	r := &Record{
		token:                old.token,
		task:                 old.task,
		info:                 old.info,
		intent:               old.intent,
		resultTo:             old.resultTo,
		requestCode:          old.requestCode,
		resultWho:            old.resultWho,
		results:              old.results,
		newIntents:           old.newIntents,
		visibleRequested:     old.visibleRequested,
		requestedOverride:    old.requestedOverride,
		parentConfig:         old.parentConfig,
		compatInsets:         old.compatInsets,
		sizeCompatScale:      old.sizeCompatScale,
		requestedOrientation: old.requestedOrientation,
		savedState:           old.savedState,
		hasSavedState:        old.hasSavedState,
		persistentState:      old.persistentState,
		launchCount:          old.launchCount,
		lastLaunchTime:       old.lastLaunchTime,
	}
	r.machine = e.newMachine(r)
	e.records[r.token] = r
	e.resolveOverride(r, old.parentConfig)
	e.logger.Debug("activity revived", log.String("token", r.token.String()))
	return r
}
