package timeout

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Cancel stops the callback. It reports false if the callback already
	// ran or was cancelled.
	Cancel() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

// TimerScheduler schedules callbacks on runtime timers.
type TimerScheduler struct{}

// Schedule implements Scheduler with time.AfterFunc.
func (TimerScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return timerHandle{time.AfterFunc(delay, fn)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() bool { return h.t.Stop() }

// ManualScheduler is a deterministic Scheduler driven by Advance. Callbacks
// due at the same instant run in scheduling order.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*manualTask
}

type manualTask struct {
	s         *ManualScheduler
	due       time.Time
	seq       uint64
	fn        func()
	cancelled bool
	ran       bool
}

// NewManualScheduler creates a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the scheduler's clock.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{s: m, due: m.now.Add(delay), seq: m.seq, fn: fn}
	m.pending = append(m.pending, t)
	return t
}

func (t *manualTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.cancelled || t.ran {
		return false
	}
	t.cancelled = true
	t.s.remove(t)
	return true
}

func (m *ManualScheduler) remove(t *manualTask) {
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Pending returns the number of callbacks not yet run or cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and runs every callback that became
// due, including callbacks scheduled by callbacks within the window.
// Callbacks run without the scheduler lock held.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	ran := 0
	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return ran
		}
		m.remove(next)
		next.ran = true
		if next.due.After(m.now) {
			m.now = next.due
		}
		m.mu.Unlock()

		next.fn()
		ran++
	}
}

func (m *ManualScheduler) nextDue(target time.Time) *manualTask {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		a, b := m.pending[i], m.pending[j]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
	if m.pending[0].due.After(target) {
		return nil
	}
	return m.pending[0]
}
