package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
)

// ensureActivitiesVisible walks every display top-down. A record is
// visible until an opaque record above it on the same display is; hidden
// records and records on sleeping displays are never visible.
func (e *Engine) ensureActivitiesVisible() {
	focusedTop := e.topRunning(e.focusedTask())
	behindOpaque := make(map[int]bool)
	order := append([]TaskID(nil), e.taskOrder...)
	for i := len(order) - 1; i >= 0; i-- {
		t := e.tasks[order[i]]
		if t == nil {
			continue
		}
		tokens := append([]Token(nil), t.records...)
		for j := len(tokens) - 1; j >= 0; j-- {
			r := e.records[tokens[j]]
			if r == nil || r.finishing || r.isState(lifecycle.StateDestroying, lifecycle.StateRestartingProcess) {
				continue
			}
			visible := !behindOpaque[t.displayID] && !r.hidden && !e.sleeping(t.displayID)
			if visible {
				e.makeVisible(r, r == focusedTop)
				if !r.info.Translucent {
					behindOpaque[t.displayID] = true
				}
			} else {
				e.makeInvisible(r)
			}
		}
	}
}

func (e *Engine) makeVisible(r *Record, focusedTop bool) {
	if r.isState(lifecycle.StateDestroyed) {
		// A retained record that becomes visible is launched again.
		r = e.revive(r)
	}
	e.setVisibility(r, true)
	e.removeFromStopping(r)
	switch {
	case r.isState(lifecycle.StateStopping, lifecycle.StateStopped) && r.attached():
		if e.dispatch(r, client.Message{Kind: client.KindStart}) == nil {
			e.setState(r, lifecycle.StateStarted, "made visible")
		}
	case r.isState(lifecycle.StateInitializing):
		// The focused top is launched resumed by the resume pass.
		if focusedTop {
			if e.processes[r.info.ProcessName] == nil {
				r.launchPending = true
			}
		} else {
			e.realStart(r, false)
		}
	}
	if cur := e.records[r.token]; cur == r && !r.finishing {
		e.ensureActivityConfiguration(r)
	}
}

func (e *Engine) makeInvisible(r *Record) {
	e.setVisibility(r, false)
	if !r.attached() {
		return
	}
	if r.isState(lifecycle.StateResumed, lifecycle.StatePausing, lifecycle.StatePaused, lifecycle.StateStarted) {
		e.addToStopping(r, true)
	}
}
