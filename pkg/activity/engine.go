package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/sizecompat"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// engineIdleID is the timeout id of the engine-wide idle pass that drains
// the stopping and finishing lists.
const engineIdleID = "*"

// Engine owns the activity hierarchy. A single mutex (the hierarchy lock)
// serializes every state mutation, configuration resolution and timeout
// expiry. Messages to clients are handed to the Transport, which must not
// block on the client's reply.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	logger    log.Logger
	transport client.Transport
	geometry  sizecompat.Geometry
	observer  Observer
	metrics   Metrics
	procs     ProcessController
	extra     []RelaunchPolicy
	policies  []RelaunchPolicy
	now       func() time.Time
	timeouts  *timeout.Supervisor
	ctx       context.Context

	records   map[Token]*Record
	tasks     map[TaskID]*Task
	taskOrder []TaskID // bottom to top
	lastTask  TaskID
	processes map[string]*Process
	displays  map[int]*display

	stopping             []Token
	finishing            []Token
	unresolvedVisibility map[Token]struct{}

	loopMu   sync.Mutex
	events   chan Event
	loopDone chan struct{}
}

// New creates an engine. A zero Config selects DefaultConfig.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:                  cfg,
		logger:               o.logger,
		transport:            o.transport,
		geometry:             o.geometry,
		observer:             o.observer,
		metrics:              o.metrics,
		procs:                o.processes,
		extra:                o.policies,
		now:                  o.now,
		ctx:                  context.Background(),
		records:              make(map[Token]*Record),
		tasks:                make(map[TaskID]*Task),
		processes:            make(map[string]*Process),
		displays:             make(map[int]*display),
		unresolvedVisibility: make(map[Token]struct{}),
	}
	if e.geometry == nil {
		e.geometry = displayGeometry{e}
	}
	e.policies = e.buildPolicies()
	e.timeouts = timeout.NewSupervisor(o.scheduler, func(f timeout.Fired) {
		e.Post(timeoutEvent(f))
	})
	return e, nil
}

func (e *Engine) buildPolicies() []RelaunchPolicy {
	ps := append([]RelaunchPolicy(nil), e.extra...)
	if e.cfg.SkipRelaunchWhenDocking {
		ps = append(ps, DeskDockPolicy{})
	}
	return ps
}

// Config returns the active tunables.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig replaces the tunables. Armed timeouts keep their delay.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	becameResizeable := cfg.UniversalResizeable && !e.cfg.UniversalResizeable
	e.cfg = cfg
	e.policies = e.buildPolicies()
	if becameResizeable {
		for _, r := range e.orderedRecords() {
			if e.records[r.token] == r && r.compatInsets != nil {
				e.clearSizeCompatMode(r)
			}
		}
	}
	e.logger.Info("engine config updated",
		log.Duration("pause_timeout", cfg.PauseTimeout),
		log.Duration("stop_timeout", cfg.StopTimeout),
		log.Duration("destroy_timeout", cfg.DestroyTimeout),
	)
	return nil
}

func (e *Engine) newMachine(r *Record) *lifecycle.Machine {
	l := e.logger.With(log.String("token", r.token.String()), log.String("component", r.info.Component))
	return lifecycle.NewMachine(l, nil)
}

func (e *Engine) record(tok Token) (*Record, error) {
	r, ok := e.records[tok]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tok, ErrUnknownActivity)
	}
	return r, nil
}

// dispatch sends msg to the client hosting r. Failures are logged and
// counted; callers convert them into state transitions.
func (e *Engine) dispatch(r *Record, msg client.Message) error {
	msg.Token = string(r.token)
	p := e.processes[r.process]
	var err error
	switch {
	case p == nil:
		err = fmt.Errorf("%s to %s: no process: %w", msg.Kind, r.token, client.ErrClientGone)
	case e.transport == nil:
		err = fmt.Errorf("%s to %s: no transport: %w", msg.Kind, r.token, client.ErrClientGone)
	default:
		err = e.transport.Dispatch(e.ctx, p.handle, msg)
	}
	if err != nil {
		e.metrics.DispatchFailed(msg.Kind)
		e.logger.Warn("dispatch failed",
			log.String("token", r.token.String()),
			log.Stringer("kind", msg.Kind),
			log.Err(err),
		)
		return err
	}
	e.logger.Debug("dispatched", log.Stringer("message", msg))
	return nil
}

// orderedRecords returns every record in z-order, bottom task first and
// bottom record first within a task.
func (e *Engine) orderedRecords() []*Record {
	out := make([]*Record, 0, len(e.records))
	for _, id := range e.taskOrder {
		t := e.tasks[id]
		for _, tok := range t.records {
			if r := e.records[tok]; r != nil {
				out = append(out, r)
			}
		}
	}
	return out
}

// focusedTask is the topmost task holding at least one record.
func (e *Engine) focusedTask() *Task {
	for i := len(e.taskOrder) - 1; i >= 0; i-- {
		if t := e.tasks[e.taskOrder[i]]; len(t.records) > 0 {
			return t
		}
	}
	return nil
}

// topRunning returns the topmost record of t that is not finishing.
func (e *Engine) topRunning(t *Task) *Record {
	if t == nil {
		return nil
	}
	for i := len(t.records) - 1; i >= 0; i-- {
		if r := e.records[t.records[i]]; r != nil && !r.finishing {
			return r
		}
	}
	return nil
}

func (e *Engine) topRunningOnDisplay(displayID int) *Record {
	for i := len(e.taskOrder) - 1; i >= 0; i-- {
		t := e.tasks[e.taskOrder[i]]
		if t.displayID != displayID {
			continue
		}
		if r := e.topRunning(t); r != nil {
			return r
		}
	}
	return nil
}

func (e *Engine) displayOf(r *Record) int {
	if t := e.tasks[r.task]; t != nil {
		return t.displayID
	}
	return 0
}

func (e *Engine) sleeping(displayID int) bool {
	d := e.displays[displayID]
	return d != nil && d.sleeping
}

func (e *Engine) parentConfigOf(t *Task) configuration.Configuration {
	var base configuration.Configuration
	if d := e.displays[t.displayID]; d != nil {
		base = d.config
	}
	return base.Merge(t.override)
}

func (e *Engine) updateProcessPriority(name string) {
	if name == "" {
		return
	}
	foreground := false
	for _, r := range e.records {
		if r.process == name && r.isState(lifecycle.StateResumed) {
			foreground = true
			break
		}
	}
	e.procs.UpdateProcessPriority(name, foreground)
}

func (e *Engine) reportSizeCompat() {
	n := 0
	for _, r := range e.records {
		if r.inSizeCompatMode() {
			n++
		}
	}
	e.metrics.SizeCompatActivities(n)
}

// displayGeometry derives container geometry from display configurations,
// with no insets.
type displayGeometry struct{ e *Engine }

func (g displayGeometry) ResolveContainerGeometry(displayID int, rot configuration.Rotation) (sizecompat.ContainerGeometry, error) {
	d := g.e.displays[displayID]
	if d == nil || d.config.Window.Bounds.Empty() {
		return sizecompat.ContainerGeometry{}, fmt.Errorf("display %d: %w", displayID, sizecompat.ErrUnknownDisplay)
	}
	if !rot.Valid() {
		return sizecompat.ContainerGeometry{}, fmt.Errorf("display %d %s: %w", displayID, rot, sizecompat.ErrInvalidRotation)
	}
	b := d.config.Window.Bounds
	w, h := b.Width(), b.Height()
	if d.config.Window.Rotation.Quarter() {
		w, h = h, w
	}
	if rot.Quarter() {
		w, h = h, w
	}
	return sizecompat.ContainerGeometry{Bounds: configuration.NewRect(w, h)}, nil
}
