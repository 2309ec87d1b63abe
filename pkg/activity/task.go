package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
)

// Task is an ordered back stack of activity records.
type Task struct {
	id        TaskID
	displayID int
	// records are ordered bottom to top.
	records []Token
	bounds  configuration.Rect
	// override is applied on top of the display configuration.
	override configuration.Configuration

	resumed Token
	pausing Token
}

func (t *Task) indexOf(tok Token) int {
	for i, r := range t.records {
		if r == tok {
			return i
		}
	}
	return -1
}

func (t *Task) remove(tok Token) bool {
	i := t.indexOf(tok)
	if i < 0 {
		return false
	}
	t.records = append(t.records[:i], t.records[i+1:]...)
	return true
}

func (t *Task) top() Token {
	if len(t.records) == 0 {
		return ""
	}
	return t.records[len(t.records)-1]
}

func (t *Task) snapshot() TaskSnapshot {
	return TaskSnapshot{
		ID:         t.id,
		DisplayID:  t.displayID,
		Activities: append([]Token(nil), t.records...),
		Resumed:    t.resumed,
		Pausing:    t.pausing,
		Bounds:     t.bounds,
	}
}

// Process is a client process hosting activities.
type Process struct {
	name      string
	handle    client.Handle
	sandboxed bool
}

type display struct {
	config   configuration.Configuration
	sleeping bool
}
