package activity

import (
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/persist"
)

// Resolver maps a persisted component name back to its declaration.
type Resolver func(component string) (Info, bool)

// PersistTask returns the durable shape of a task. Finishing activities
// are left out.
func (e *Engine) PersistTask(id TaskID) (persist.TaskSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return persist.TaskSnapshot{}, fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	return e.persistTaskLocked(t), nil
}

func (e *Engine) persistTaskLocked(t *Task) persist.TaskSnapshot {
	snap := persist.TaskSnapshot{
		TaskID:    int(t.id),
		DisplayID: t.displayID,
		SavedAt:   e.now().UTC(),
	}
	for _, tok := range t.records {
		r := e.records[tok]
		if r == nil || r.finishing {
			continue
		}
		snap.Activities = append(snap.Activities, persist.ActivitySnapshot{
			Token:               string(r.token),
			Component:           r.info.Component,
			Package:             r.info.Package,
			ProcessName:         r.info.ProcessName,
			LaunchedFromUID:     r.info.LaunchedFromUID,
			LaunchedFromPackage: r.info.LaunchedFromPackage,
			Intent:              r.intent,
			PersistentState:     append([]byte(nil), r.persistentState...),
		})
	}
	return snap
}

// PersistState returns the durable shape of every task that still has a
// live activity, bottom of the z-order first.
func (e *Engine) PersistState() persist.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := persist.State{Version: persist.Version}
	for _, id := range e.taskOrder {
		snap := e.persistTaskLocked(e.tasks[id])
		if len(snap.Activities) > 0 {
			st.Tasks = append(st.Tasks, snap)
		}
	}
	return st
}

// RestoreTask recreates a persisted task below every existing task. Its
// activities come back INITIALIZING and launch when they are resumed or
// made visible. Components the resolver does not know are skipped.
func (e *Engine) RestoreTask(snap persist.TaskSnapshot, resolve Resolver) (TaskID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.restoreTaskLocked(snap, resolve)
	if err != nil {
		return 0, err
	}
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
	return id, nil
}

// RestoreState restores every task of st, keeping their relative order.
// Tasks with no restorable activity are skipped.
func (e *Engine) RestoreState(st persist.State, resolve Resolver) ([]TaskID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []TaskID
	for i := len(st.Tasks) - 1; i >= 0; i-- {
		id, err := e.restoreTaskLocked(st.Tasks[i], resolve)
		if errors.Is(err, ErrInvalidRequest) {
			e.logger.Warn("task not restored", log.Err(err))
			continue
		}
		if err != nil {
			return ids, err
		}
		ids = append([]TaskID{id}, ids...)
	}
	e.resumeFocusedTasksTopActivities()
	e.ensureActivitiesVisible()
	return ids, nil
}

func (e *Engine) restoreTaskLocked(snap persist.TaskSnapshot, resolve Resolver) (TaskID, error) {
	if _, ok := e.displays[snap.DisplayID]; !ok {
		return 0, fmt.Errorf("display %d: %w", snap.DisplayID, ErrUnknownDisplay)
	}
	e.lastTask++
	t := &Task{id: e.lastTask, displayID: snap.DisplayID}
	e.tasks[t.id] = t
	e.taskOrder = append([]TaskID{t.id}, e.taskOrder...)

	parent := e.parentConfigOf(t)
	for _, a := range snap.Activities {
		info, ok := resolve(a.Component)
		if !ok {
			e.logger.Warn("skipping unknown component on restore",
				log.String("component", a.Component),
				log.Int("task", snap.TaskID),
			)
			continue
		}
		info.LaunchedFromUID = a.LaunchedFromUID
		info.LaunchedFromPackage = a.LaunchedFromPackage
		if info.ProcessName == "" {
			info.ProcessName = a.ProcessName
		}
		tok := Token(a.Token)
		if _, taken := e.records[tok]; tok == "" || taken {
			tok = NewToken()
		}
		r := e.newRecord(tok, t, info, a.Intent)
		r.persistentState = append([]byte(nil), a.PersistentState...)
		e.records[tok] = r
		t.records = append(t.records, tok)
		e.resolveOverride(r, parent)
	}
	if len(t.records) == 0 {
		e.removeTaskLocked(t)
		return 0, fmt.Errorf("task %d: no restorable activity: %w", snap.TaskID, ErrInvalidRequest)
	}
	e.logger.Info("task restored",
		log.Int("task", int(t.id)),
		log.Int("activities", len(t.records)),
		log.Duration("age", e.now().Sub(snap.SavedAt).Round(time.Second)),
	)
	return t.id, nil
}
