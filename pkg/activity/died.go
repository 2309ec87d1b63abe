package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// appDied cleans up every record hosted by p and forgets the process.
func (e *Engine) appDied(p *Process, reason string) {
	delete(e.processes, p.name)
	for _, r := range e.orderedRecords() {
		if e.records[r.token] != r || r.process != p.name {
			continue
		}
		e.handleAppDied(r, p.sandboxed, reason)
	}
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
}

// handleAppDied decides whether r survives the death of its process. A
// retained record stays in its task as DESTROYED and is relaunched the
// next time it is resumed.
func (e *Engine) handleAppDied(r *Record, sandboxed bool, reason string) bool {
	now := e.now()
	remove := false
	why := "retained"
	switch {
	case sandboxed:
		remove, why = true, "sandboxed process"
	case r.relaunchReason != RelaunchReasonNone && r.launchCount < e.cfg.ResizeRelaunchRetryLimit && !r.finishing:
		why = "died during resize relaunch"
	case (!r.hasSavedState && !r.info.StateNotNeeded && !r.isState(lifecycle.StateRestartingProcess)) || r.finishing:
		remove, why = true, "no saved state"
	case !r.visibleRequested && r.launchCount > e.cfg.CrashLoopLaunchCount &&
		now.Sub(r.lastLaunchTime) < e.cfg.CrashLoopWindow:
		remove, why = true, "crash loop"
	}
	e.metrics.AppDied(remove)

	level := e.logger.Debug
	if remove {
		level = e.logger.Warn
	}
	level("app died",
		log.String("token", r.token.String()),
		log.String("process", r.process),
		log.String("decision", why),
		log.String("reason", reason),
	)

	e.cleanUp(r, true, reason)
	if remove {
		e.removeFromHistory(r, why)
	}
	return remove
}

// restartProcessIfVisible restarts r's process so it picks up a fresh
// configuration. A visible record without saved state is stopped first so
// that its state survives the restart.
func (e *Engine) restartProcessIfVisible(r *Record) {
	e.dropSizeCompat(r)
	if !r.attached() || r.state().TearingDown() {
		return
	}
	e.setState(r, lifecycle.StateRestartingProcess, "restart process")
	if !r.visibleRequested || r.hasSavedState {
		e.procs.KillProcess(r.process, "restart "+r.info.Component)
		return
	}
	if err := e.dispatch(r, client.Message{Kind: client.KindStop}); err != nil {
		e.procs.KillProcess(r.process, "restart "+r.info.Component)
		return
	}
	e.armTimeout(r, timeout.KindStop)
}
