package activity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
)

// ErrInvalidRequest is returned for malformed start requests.
var ErrInvalidRequest = errors.New("actlife: invalid request")

// StartRequest describes a new activity.
type StartRequest struct {
	// TaskID selects the task to start in. Zero creates a new task on
	// DisplayID.
	TaskID    TaskID
	DisplayID int
	Info      Info
	Intent    client.Intent
	// ResultTo is the activity waiting for this one's result, if any.
	ResultTo    Token
	RequestCode int
	ResultWho   string
	SavedState  []byte
}

// SetDisplayConfiguration installs or replaces the configuration of a
// display and re-resolves every activity on it. A configuration whose
// sequence number is older than the current one is ignored.
func (e *Engine) SetDisplayConfiguration(displayID int, cfg configuration.Configuration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.displays[displayID]
	if !ok {
		d = &display{}
		e.displays[displayID] = d
	} else if cfg.Seq != 0 && d.config.Seq != 0 && !d.config.IsOtherSeqNewer(cfg) {
		e.logger.Debug("stale display configuration ignored",
			log.Int("display", displayID),
			log.Int("seq", cfg.Seq),
		)
		return nil
	}
	d.config = cfg
	for _, id := range e.taskOrder {
		if t := e.tasks[id]; t.displayID == displayID {
			e.resolveTask(t)
		}
	}
	e.ensureActivitiesVisible()
	return nil
}

func (e *Engine) resolveTask(t *Task) {
	parent := e.parentConfigOf(t)
	for _, tok := range t.records {
		if r := e.records[tok]; r != nil {
			e.resolveOverride(r, parent)
		}
	}
}

// SetSleeping puts a display to sleep or wakes it. Sleeping pauses the
// resumed activity of the display.
func (e *Engine) SetSleeping(displayID int, sleeping bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.displays[displayID]
	if !ok {
		return fmt.Errorf("display %d: %w", displayID, ErrUnknownDisplay)
	}
	if d.sleeping == sleeping {
		return nil
	}
	d.sleeping = sleeping
	if sleeping {
		for _, r := range e.orderedRecords() {
			if e.displayOf(r) == displayID && r.isState(lifecycle.StateResumed) {
				e.startPausing(r, "sleep")
			}
		}
	} else {
		e.resumeFocusedTasksTopActivities()
	}
	e.ensureActivitiesVisible()
	return nil
}

// CreateTask creates an empty task on top of the z-order.
func (e *Engine) CreateTask(displayID int) (TaskID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.createTaskLocked(displayID)
	if err != nil {
		return 0, err
	}
	return t.id, nil
}

func (e *Engine) createTaskLocked(displayID int) (*Task, error) {
	if _, ok := e.displays[displayID]; !ok {
		return nil, fmt.Errorf("display %d: %w", displayID, ErrUnknownDisplay)
	}
	e.lastTask++
	t := &Task{id: e.lastTask, displayID: displayID}
	e.tasks[t.id] = t
	e.taskOrder = append(e.taskOrder, t.id)
	return t, nil
}

func (e *Engine) removeTaskLocked(t *Task) {
	delete(e.tasks, t.id)
	for i, id := range e.taskOrder {
		if id == t.id {
			e.taskOrder = append(e.taskOrder[:i], e.taskOrder[i+1:]...)
			break
		}
	}
}

func (e *Engine) moveTaskToFrontLocked(t *Task) {
	for i, id := range e.taskOrder {
		if id == t.id {
			e.taskOrder = append(e.taskOrder[:i], e.taskOrder[i+1:]...)
			break
		}
	}
	e.taskOrder = append(e.taskOrder, t.id)
}

// MoveTaskToFront focuses a task and resumes its top activity.
func (e *Engine) MoveTaskToFront(id TaskID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	e.moveTaskToFrontLocked(t)
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
	return nil
}

// RemoveTask finishes every activity of a task, top first. The task goes
// away with its last activity.
func (e *Engine) RemoveTask(id TaskID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	if len(t.records) == 0 {
		e.removeTaskLocked(t)
		return nil
	}
	tokens := append([]Token(nil), t.records...)
	for i := len(tokens) - 1; i >= 0; i-- {
		if r := e.records[tokens[i]]; r != nil {
			e.finishIfPossible(r, ResultCanceled, "", "remove task")
		}
	}
	return nil
}

// SetTaskBounds resizes a task. Empty bounds make it fill its display.
func (e *Engine) SetTaskBounds(id TaskID, bounds configuration.Rect) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	t.bounds = bounds
	t.override = configuration.Configuration{}
	if !bounds.Empty() {
		density := 0
		if d := e.displays[t.displayID]; d != nil {
			density = d.config.DensityDPI
		}
		t.override = configuration.ComputeScreenOverrides(configuration.Configuration{}, bounds, bounds, density)
	}
	e.resolveTask(t)
	e.ensureActivitiesVisible()
	return nil
}

// StartActivity adds a new activity on top of a task and resumes it when
// its task is focused. The activity is launched as soon as its process is
// attached.
func (e *Engine) StartActivity(req StartRequest) (Token, error) {
	if req.Info.Component == "" || req.Info.ProcessName == "" {
		return "", fmt.Errorf("%w: component and process name are required", ErrInvalidRequest)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var t *Task
	if req.TaskID == 0 {
		var err error
		if t, err = e.createTaskLocked(req.DisplayID); err != nil {
			return "", err
		}
	} else if t = e.tasks[req.TaskID]; t == nil {
		return "", fmt.Errorf("task %d: %w", req.TaskID, ErrUnknownTask)
	}

	r := e.newRecord(NewToken(), t, req.Info, req.Intent)
	if _, ok := e.records[req.ResultTo]; ok {
		r.resultTo = req.ResultTo
		r.requestCode = req.RequestCode
		r.resultWho = req.ResultWho
	}
	r.savedState = req.SavedState
	e.records[r.token] = r
	t.records = append(t.records, r.token)
	e.moveTaskToFrontLocked(t)
	e.resolveOverride(r, e.parentConfigOf(t))

	e.logger.Info("activity started",
		log.String("token", r.token.String()),
		log.String("component", r.info.Component),
		log.Int("task", int(t.id)),
	)
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
	return r.token, nil
}

func (e *Engine) newRecord(tok Token, t *Task, info Info, intent client.Intent) *Record {
	r := &Record{
		token:             tok,
		task:              t.id,
		info:              info,
		intent:            intent,
		hasSavedState:     true,
		sizeCompatScale:   1,
		requestedOverride: configuration.Unset(info.SizeTraits.ActivityType),
	}
	r.machine = e.newMachine(r)
	e.unresolvedVisibility[tok] = struct{}{}
	return r
}

// AttachProcess registers a client process and launches the activities
// waiting for it.
func (e *Engine) AttachProcess(name string, handle client.Handle, sandboxed bool) error {
	if name == "" {
		return fmt.Errorf("%w: process name is required", ErrInvalidRequest)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processes[name] = &Process{name: name, handle: handle, sandboxed: sandboxed}
	e.logger.Info("process attached", log.String("process", name), log.Bool("sandboxed", sandboxed))

	focused := e.focusedTask()
	focusedTop := e.topRunning(focused)
	for _, r := range e.orderedRecords() {
		if e.records[r.token] != r || !r.isState(lifecycle.StateInitializing) || r.info.ProcessName != name {
			continue
		}
		if r == focusedTop {
			if e.canResume(r) {
				e.realStart(r, true)
			}
			continue
		}
		if r.visibleRequested {
			e.realStart(r, false)
		}
	}
	e.ensureActivitiesVisible()
	return nil
}

// canResume reports whether r could be resumed right now without pausing
// anything first.
func (e *Engine) canResume(r *Record) bool {
	if r.holdPaused || r.hidden || e.sleeping(e.displayOf(r)) {
		return false
	}
	for _, o := range e.records {
		if o != r && o.isState(lifecycle.StateResumed, lifecycle.StatePausing) {
			return false
		}
	}
	return true
}

// Activity returns a snapshot of an activity.
func (e *Engine) Activity(tok Token) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.record(tok)
	if err != nil {
		return Snapshot{}, err
	}
	return r.snapshot(), nil
}

// Task returns a snapshot of a task.
func (e *Engine) Task(id TaskID) (TaskSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return TaskSnapshot{}, fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	return t.snapshot(), nil
}

// Tasks returns every task, bottom of the z-order first.
func (e *Engine) Tasks() []TaskSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TaskSnapshot, 0, len(e.taskOrder))
	for _, id := range e.taskOrder {
		out = append(out, e.tasks[id].snapshot())
	}
	return out
}

// UnresolvedVisibility returns the activities whose visibility the client
// has not confirmed yet, sorted.
func (e *Engine) UnresolvedVisibility() []Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Token, 0, len(e.unresolvedVisibility))
	for tok := range e.unresolvedVisibility {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stopping returns the activities queued for the next idle pass.
func (e *Engine) Stopping() []Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Token(nil), e.stopping...)
}
