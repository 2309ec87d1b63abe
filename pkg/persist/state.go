package persist

import (
	"time"

	"github.com/bft-labs/actlife/pkg/client"
)

// Version is written into every state file.
const Version = 1

// ActivitySnapshot is the persisted shape of one activity.
type ActivitySnapshot struct {
	Token               string        `json:"token"`
	Component           string        `json:"component"`
	Package             string        `json:"package,omitempty"`
	ProcessName         string        `json:"process_name"`
	LaunchedFromUID     int           `json:"launched_from_uid,omitempty"`
	LaunchedFromPackage string        `json:"launched_from_package,omitempty"`
	Intent              client.Intent `json:"intent"`
	// PersistentState is the persistable extra state the client returned
	// with its last stop acknowledgement.
	PersistentState []byte `json:"persistent_state,omitempty"`
}

// TaskSnapshot is the persisted shape of one task. Activities are ordered
// bottom to top.
type TaskSnapshot struct {
	TaskID     int                `json:"task_id"`
	DisplayID  int                `json:"display_id"`
	Activities []ActivitySnapshot `json:"activities"`
	SavedAt    time.Time          `json:"saved_at"`
}

// State is everything stored in one file. Tasks are ordered bottom to top.
type State struct {
	Version int            `json:"version"`
	Tasks   []TaskSnapshot `json:"tasks"`
}

// IsEmpty reports whether the state holds no task.
func (s State) IsEmpty() bool {
	return len(s.Tasks) == 0
}

// Task returns the snapshot of a task by id.
func (s State) Task(id int) (TaskSnapshot, bool) {
	for _, t := range s.Tasks {
		if t.TaskID == id {
			return t, true
		}
	}
	return TaskSnapshot{}, false
}
