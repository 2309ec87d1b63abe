package activity

import (
	"fmt"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
)

// RequestFinish finishes an activity, handing resultCode and data to the
// activity that started it for a result. It returns FinishCancelled for an
// activity that is already finishing or no longer in the hierarchy.
func (e *Engine) RequestFinish(tok Token, resultCode int, data, reason string) (FinishResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[tok]
	if !ok {
		e.metrics.FinishRequested(FinishCancelled)
		return FinishCancelled, nil
	}
	res := e.finishIfPossible(r, resultCode, data, reason)
	e.metrics.FinishRequested(res)
	return res, nil
}

// RequestPause pauses a resumed activity and keeps it paused until
// RequestResume.
func (e *Engine) RequestPause(tok Token, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	if !r.isState(lifecycle.StateResumed) {
		return nil
	}
	r.holdPaused = true
	e.startPausing(r, reason)
	return nil
}

// RequestStop hides an activity and stops it once it is paused. It stays
// hidden until RequestResume.
func (e *Engine) RequestStop(tok Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	if r.finishing {
		return nil
	}
	r.hidden = true
	r.holdPaused = true
	if r.isState(lifecycle.StateResumed) {
		e.startPausing(r, "stop requested")
	}
	e.ensureActivitiesVisible()
	if cur := e.records[tok]; cur == r && containsToken(e.stopping, tok) &&
		!r.isState(lifecycle.StateResumed, lifecycle.StatePausing) {
		e.removeFromStopping(r)
		e.stopIfPossible(r)
	}
	return nil
}

// RequestResume resumes the top activity of a task, bringing the task to
// the front.
func (e *Engine) RequestResume(tok Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	t := e.tasks[r.task]
	if t == nil || e.topRunning(t) != r {
		return fmt.Errorf("%s: %w", tok, ErrNotTopActivity)
	}
	r.holdPaused = false
	r.hidden = false
	e.moveTaskToFrontLocked(t)
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
	return nil
}

// RequestDestroy destroys an activity's client instance without finishing
// it. It returns false when the activity is already destroying or
// destroyed.
func (e *Engine) RequestDestroy(tok Token, reason string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return false, err
	}
	done := e.destroyImmediately(r, reason)
	if done && e.records[tok] != r {
		e.resumeFocusedTasksTopActivities()
	}
	return done, nil
}

// ResolveConfiguration resolves an activity's configuration inside parent
// and reports it to the client, relaunching it when needed.
func (e *Engine) ResolveConfiguration(tok Token, parent configuration.Configuration) (Resolution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return Resolution{}, err
	}
	e.resolveOverride(r, parent)
	outcome := e.ensureActivityConfiguration(r)
	return Resolution{
		Resolved:         r.fullConfig,
		RelaunchRequired: outcome == configRelaunch || outcome == configRelaunchDeferred,
		InPlaceUpdate:    outcome == configInPlace,
	}, nil
}

// HandleAppDied cleans up after the death of a client process.
func (e *Engine) HandleAppDied(process string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[process]
	if !ok {
		return fmt.Errorf("%s: %w", process, ErrUnknownProcess)
	}
	e.appDied(p, "app died")
	return nil
}

// RestartProcessIfVisible restarts an activity's process, saving its state
// first if it is visible.
func (e *Engine) RestartProcessIfVisible(tok Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	e.restartProcessIfVisible(r)
	return nil
}

// ClearSizeCompatMode discards an activity's frozen size-compat state.
func (e *Engine) ClearSizeCompatMode(tok Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	e.clearSizeCompatMode(r)
	return nil
}

// SetRequestedOrientation changes the orientation an activity asks for.
func (e *Engine) SetRequestedOrientation(tok Token, o configuration.Orientation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	if r.requestedOrientation == o {
		return nil
	}
	r.requestedOrientation = o
	if r.compatInsets != nil {
		// Insets frozen for the old orientation no longer apply.
		e.dropSizeCompat(r)
	} else {
		e.resolveOverride(r, r.parentConfig)
	}
	e.ensureActivityConfiguration(r)
	return nil
}

// DeliverNewIntent hands intent to a running activity. It is delivered at
// once when the activity is resumed, paused, or on top of a sleeping
// display, and queued for its next resume otherwise.
func (e *Engine) DeliverNewIntent(tok Token, intent client.Intent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return err
	}
	t := e.tasks[r.task]
	topWhileSleeping := t != nil && e.sleeping(t.displayID) && e.topRunning(t) == r
	if (r.isState(lifecycle.StateResumed, lifecycle.StatePaused) || topWhileSleeping) && r.attached() {
		if e.dispatch(r, client.Message{Kind: client.KindNewIntent, Intents: []client.Intent{intent}}) == nil {
			return nil
		}
	}
	r.newIntents = append(r.newIntents, intent)
	return nil
}
