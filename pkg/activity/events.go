package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// EventKind tags an engine event.
type EventKind int

const (
	EventPauseTimeout EventKind = iota
	EventStopTimeout
	EventDestroyTimeout
	EventIdleTimeout
	EventRelaunchTimeout
	EventClientAck
)

func (k EventKind) String() string {
	switch k {
	case EventPauseTimeout:
		return "pauseTimeout"
	case EventStopTimeout:
		return "stopTimeout"
	case EventDestroyTimeout:
		return "destroyTimeout"
	case EventIdleTimeout:
		return "idleTimeout"
	case EventRelaunchTimeout:
		return "relaunchTimeout"
	case EventClientAck:
		return "clientAck"
	default:
		return "unknown"
	}
}

// AckKind is the type of a client acknowledgement.
type AckKind int

const (
	AckPaused AckKind = iota
	AckStopped
	AckDestroyed
	AckRelaunched
	AckResumed
	AckIdle
	AckWindowsVisible
	AckResultDelivered
)

var ackNames = [...]string{
	AckPaused:          "paused",
	AckStopped:         "stopped",
	AckDestroyed:       "destroyed",
	AckRelaunched:      "relaunched",
	AckResumed:         "resumed",
	AckIdle:            "idle",
	AckWindowsVisible:  "windowsVisible",
	AckResultDelivered: "resultDelivered",
}

func (k AckKind) String() string {
	if k < 0 || int(k) >= len(ackNames) {
		return "unknown"
	}
	return ackNames[k]
}

// ParseAckKind maps an ack name to an AckKind, case-insensitively.
func ParseAckKind(s string) (AckKind, error) {
	for i, n := range ackNames {
		if strings.EqualFold(n, s) {
			return AckKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ack kind %q", s)
}

func (k AckKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AckKind) UnmarshalText(b []byte) error {
	v, err := ParseAckKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// AckPayload carries data returned with an acknowledgement. Nil slices
// mean "not provided".
type AckPayload struct {
	SavedState      []byte `json:"savedState,omitempty"`
	PersistentState []byte `json:"persistentState,omitempty"`
}

// Event is the single input type of the engine's state-transition
// function. Timeouts and client acks both arrive as events.
type Event struct {
	Kind    EventKind
	Token   Token
	Ack     AckKind
	Payload AckPayload

	fired *timeout.Fired
}

// timeoutEvent converts an expired timeout into an event.
func timeoutEvent(f timeout.Fired) Event {
	ev := Event{Token: Token(f.ID), fired: &f}
	if f.ID == engineIdleID {
		ev.Token = ""
	}
	switch f.Kind {
	case timeout.KindPause:
		ev.Kind = EventPauseTimeout
	case timeout.KindStop:
		ev.Kind = EventStopTimeout
	case timeout.KindDestroy:
		ev.Kind = EventDestroyTimeout
	case timeout.KindIdle:
		ev.Kind = EventIdleTimeout
	case timeout.KindRelaunch:
		ev.Kind = EventRelaunchTimeout
	}
	return ev
}

func (k EventKind) timeoutKind() (timeout.Kind, bool) {
	switch k {
	case EventPauseTimeout:
		return timeout.KindPause, true
	case EventStopTimeout:
		return timeout.KindStop, true
	case EventDestroyTimeout:
		return timeout.KindDestroy, true
	case EventIdleTimeout:
		return timeout.KindIdle, true
	case EventRelaunchTimeout:
		return timeout.KindRelaunch, true
	}
	return 0, false
}

// OnClientAcknowledged processes an acknowledgement from a client. Acks
// that no longer match the record's state are ignored.
func (e *Engine) OnClientAcknowledged(tok Token, kind AckKind, payload AckPayload) error {
	return e.Handle(Event{Kind: EventClientAck, Token: tok, Ack: kind, Payload: payload})
}

// Handle runs one event through the state-transition function under the
// hierarchy lock.
func (e *Engine) Handle(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handleLocked(ev)
}

func (e *Engine) handleLocked(ev Event) error {
	if kind, ok := ev.Kind.timeoutKind(); ok {
		return e.handleTimeout(ev, kind)
	}
	if ev.Kind != EventClientAck {
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	r, err := e.record(ev.Token)
	if err != nil {
		return err
	}
	e.logger.Debug("client ack",
		log.String("token", ev.Token.String()),
		log.Stringer("ack", ev.Ack),
		log.Stringer("state", r.state()),
	)
	switch ev.Ack {
	case AckPaused:
		e.completePause(r, false)
	case AckStopped:
		e.activityStopped(r, ev.Payload, false)
	case AckDestroyed:
		e.activityDestroyed(r, false)
	case AckRelaunched:
		e.activityRelaunched(r)
	case AckResumed:
		if r.isState(lifecycle.StateResumed) {
			r.savedState = nil
			r.hasSavedState = false
		}
	case AckIdle:
		e.activityIdle(r, false)
	case AckWindowsVisible:
		if r.visibleRequested {
			e.commitVisibility(r, true)
			delete(e.unresolvedVisibility, r.token)
			e.processStoppingAndFinishing("windows visible")
		}
	case AckResultDelivered:
		e.logger.Debug("result delivered", log.String("token", r.token.String()))
	default:
		return fmt.Errorf("unknown ack kind %d", ev.Ack)
	}
	return nil
}

func (e *Engine) handleTimeout(ev Event, kind timeout.Kind) error {
	id := string(ev.Token)
	if ev.Token == "" {
		id = engineIdleID
	}
	if ev.fired != nil {
		if !e.timeouts.Claim(*ev.fired) {
			return nil
		}
	} else {
		e.timeouts.Cancel(id, kind)
	}

	if id == engineIdleID {
		e.processStoppingAndFinishing("idle")
		return nil
	}
	e.metrics.TimeoutFired(kind)
	r := e.records[ev.Token]
	if r == nil {
		return nil
	}
	e.logger.Warn("timeout fired",
		log.String("token", ev.Token.String()),
		log.Stringer("kind", kind),
		log.Stringer("state", r.state()),
	)
	switch kind {
	case timeout.KindPause:
		e.completePause(r, true)
	case timeout.KindStop:
		e.activityStopped(r, AckPayload{}, true)
	case timeout.KindDestroy:
		e.activityDestroyed(r, true)
	case timeout.KindIdle:
		e.activityIdle(r, true)
	case timeout.KindRelaunch:
		e.clearRelaunching(r)
	}
	return nil
}

// Post delivers ev to the running event loop, or handles it on the
// calling goroutine when no loop runs. It must not be called with the
// hierarchy lock held.
func (e *Engine) Post(ev Event) {
	e.loopMu.Lock()
	ch, done := e.events, e.loopDone
	e.loopMu.Unlock()

	if ch != nil {
		select {
		case ch <- ev:
			return
		case <-done:
		}
	}
	if err := e.Handle(ev); err != nil {
		e.logger.Debug("event dropped", log.Stringer("event", ev.Kind), log.Err(err))
	}
}

// Run processes posted events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.loopMu.Lock()
	if e.events != nil {
		e.loopMu.Unlock()
		return ErrEngineRunning
	}
	events := make(chan Event, 64)
	done := make(chan struct{})
	e.events, e.loopDone = events, done
	e.loopMu.Unlock()

	defer func() {
		e.loopMu.Lock()
		e.events, e.loopDone = nil, nil
		close(done)
		e.loopMu.Unlock()
	}()

	e.logger.Info("engine event loop started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine event loop stopped")
			return ctx.Err()
		case ev := <-events:
			if err := e.Handle(ev); err != nil {
				e.logger.Debug("event dropped", log.Stringer("event", ev.Kind), log.Err(err))
			}
		}
	}
}
