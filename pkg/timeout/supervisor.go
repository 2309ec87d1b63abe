package timeout

import (
	"sync"
	"time"
)

// Kind identifies what round trip a timeout guards.
type Kind int

const (
	KindPause Kind = iota
	KindStop
	KindDestroy
	KindIdle
	KindRelaunch
)

func (k Kind) String() string {
	switch k {
	case KindPause:
		return "pause"
	case KindStop:
		return "stop"
	case KindDestroy:
		return "destroy"
	case KindIdle:
		return "idle"
	case KindRelaunch:
		return "relaunch"
	default:
		return "unknown"
	}
}

// Fired is delivered to the sink when an armed timeout expires.
type Fired struct {
	ID         string
	Kind       Kind
	Generation uint64
}

type key struct {
	id   string
	kind Kind
}

type armed struct {
	generation uint64
	handle     Handle
}

// Supervisor keeps at most one armed timeout per (id, kind). Arming again
// cancels the previous one. Expiry is reported to the sink, which must call
// Claim before acting so that a timeout cancelled after its timer fired is
// recognised as stale.
type Supervisor struct {
	mu         sync.Mutex
	scheduler  Scheduler
	sink       func(Fired)
	armed      map[key]armed
	generation uint64
}

// NewSupervisor creates a supervisor that reports expiries to sink.
func NewSupervisor(s Scheduler, sink func(Fired)) *Supervisor {
	if s == nil {
		s = TimerScheduler{}
	}
	return &Supervisor{
		scheduler: s,
		sink:      sink,
		armed:     make(map[key]armed),
	}
}

// Arm schedules a timeout of kind for id, replacing any armed one, and
// returns its generation.
func (s *Supervisor) Arm(id string, kind Kind, delay time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{id, kind}
	if prev, ok := s.armed[k]; ok {
		prev.handle.Cancel()
	}
	s.generation++
	f := Fired{ID: id, Kind: kind, Generation: s.generation}
	h := s.scheduler.Schedule(delay, func() {
		if s.sink != nil {
			s.sink(f)
		}
	})
	s.armed[k] = armed{generation: f.Generation, handle: h}
	return f.Generation
}

// Cancel disarms the timeout of kind for id. It reports whether one was armed.
func (s *Supervisor) Cancel(id string, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key{id, kind})
}

func (s *Supervisor) cancelLocked(k key) bool {
	a, ok := s.armed[k]
	if !ok {
		return false
	}
	a.handle.Cancel()
	delete(s.armed, k)
	return true
}

// CancelAll disarms every timeout of id.
func (s *Supervisor) CancelAll(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.armed {
		if k.id == id {
			s.cancelLocked(k)
		}
	}
}

// Armed reports whether a timeout of kind is armed for id.
func (s *Supervisor) Armed(id string, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[key{id, kind}]
	return ok
}

// Claim disarms f's timeout and reports true if f is still the armed
// generation. A false result means the timeout was cancelled or re-armed
// after it fired and must be ignored.
func (s *Supervisor) Claim(f Fired) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{f.ID, f.Kind}
	a, ok := s.armed[k]
	if !ok || a.generation != f.Generation {
		return false
	}
	delete(s.armed, k)
	return true
}

// Len returns the number of armed timeouts.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}
