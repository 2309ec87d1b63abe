package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// maxSettleRounds bounds the ack ping-pong after one step.
const maxSettleRounds = 10000

// ErrNotSettled means the simulated client and the engine kept exchanging
// messages without reaching a quiet state.
var ErrNotSettled = errors.New("actlife: scenario did not settle")

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Runner executes scenarios. Every run gets a fresh engine.
type Runner struct {
	logger  log.Logger
	options []activity.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger handed to the engine.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEngineOptions adds engine options, e.g. a metrics sink.
func WithEngineOptions(opts ...activity.Option) Option {
	return func(r *Runner) { r.options = append(r.options, opts...) }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pending struct {
	handle client.Handle
	msg    client.Message
}

// run is the state of one scenario execution.
type run struct {
	sc     *Scenario
	eng    *activity.Engine
	rec    *client.Recorder
	sched  *timeout.ManualScheduler
	logger log.Logger

	tokens    map[string]activity.Token
	names     map[activity.Token]string
	component map[activity.Token]string
	tasks     map[string]activity.TaskID
	processes map[string]Process
	seq       map[int]int
	lastRes   *activity.FinishResult

	mu         sync.Mutex
	queue      []pending
	killed     []string
	transcript []string
}

// Run executes sc. Step failures are recorded in the report; the error is
// reserved for scenarios that cannot run at all.
func (rn *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	cfg, err := sc.EngineConfig()
	if err != nil {
		return nil, err
	}
	r := &run{
		sc:        sc,
		rec:       client.NewRecorder(),
		sched:     timeout.NewManualScheduler(epoch),
		logger:    rn.logger,
		tokens:    make(map[string]activity.Token),
		names:     make(map[activity.Token]string),
		component: make(map[activity.Token]string),
		tasks:     make(map[string]activity.TaskID),
		processes: make(map[string]Process),
		seq:       make(map[int]int),
	}
	r.rec.OnSend(r.enqueue)

	opts := append([]activity.Option{
		activity.WithLogger(rn.logger),
		activity.WithTransport(r.rec),
		activity.WithScheduler(r.sched),
		activity.WithClock(r.sched.Now),
		activity.WithObserver(&observer{run: r}),
		activity.WithProcessController(&processes{run: r}),
	}, rn.options...)
	r.eng, err = activity.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	for _, d := range sc.Displays {
		if err := r.setDisplay(d); err != nil {
			return nil, err
		}
	}
	for _, p := range sc.Processes {
		r.processes[p.Name] = p
		if p.Detached {
			continue
		}
		if err := r.eng.AttachProcess(p.Name, handleOf(p.Name), p.Sandboxed); err != nil {
			return nil, err
		}
	}

	report := &Report{Name: sc.Name}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.note("# %d %s", i+1, describeStep(st))
		sr := StepReport{Index: i + 1, Op: st.Op}
		sr.Err = r.exec(st)
		if err := r.settle(); err != nil {
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}
		sr.Failures = r.check(st, sr.Err)
		report.Steps = append(report.Steps, sr)
	}
	report.Transcript = r.transcriptCopy()
	return report, nil
}

func handleOf(process string) client.Handle { return client.Handle("sim://" + process) }

func (r *run) enqueue(h client.Handle, msg client.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, pending{h, msg})
}

func (r *run) note(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = append(r.transcript, fmt.Sprintf(format, args...))
}

// transcriptCopy returns the transcript with tokens replaced by the
// activity names used in the scenario.
func (r *run) transcriptCopy() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	pairs := make([]string, 0, 2*len(r.names))
	for tok, name := range r.names {
		pairs = append(pairs, tok.String(), name)
	}
	repl := strings.NewReplacer(pairs...)
	out := make([]string, len(r.transcript))
	for i, l := range r.transcript {
		out[i] = repl.Replace(l)
	}
	return out
}

func (r *run) name(tok activity.Token) string {
	if n, ok := r.names[tok]; ok {
		return n
	}
	return tok.String()
}

func (r *run) token(alias string) (activity.Token, error) {
	tok, ok := r.tokens[alias]
	if !ok {
		return "", fmt.Errorf("%w: activity %q not started", ErrInvalidScenario, alias)
	}
	return tok, nil
}

func (r *run) setDisplay(d Display) error {
	r.seq[d.ID]++
	return r.eng.SetDisplayConfiguration(d.ID, d.build(r.seq[d.ID]))
}

// settle lets the simulated client answer every message and runs
// zero-delay callbacks until nothing is left to do.
func (r *run) settle() error {
	for i := 0; i < maxSettleRounds; i++ {
		r.mu.Lock()
		var next *pending
		if len(r.queue) > 0 {
			p := r.queue[0]
			r.queue = r.queue[1:]
			next = &p
		}
		var kill string
		if next == nil && len(r.killed) > 0 {
			kill = r.killed[0]
			r.killed = r.killed[1:]
		}
		r.mu.Unlock()

		switch {
		case next != nil:
			r.reply(next.handle, next.msg)
		case kill != "":
			r.respawn(kill)
		case r.sched.Advance(0) == 0:
			return nil
		}
	}
	return ErrNotSettled
}

// reply acknowledges msg the way a well-behaved client would.
func (r *run) reply(h client.Handle, msg client.Message) {
	tok := activity.Token(msg.Token)
	r.note("-> %s %s", r.name(tok), describeMessage(msg))
	if r.ignores(tok, msg.Kind) {
		r.note("   %s ignores %s", r.name(tok), msg.Kind)
		return
	}

	var acks []activity.AckKind
	switch msg.Kind {
	case client.KindLaunch, client.KindRelaunch:
		if msg.Kind == client.KindRelaunch {
			acks = append(acks, activity.AckRelaunched)
		}
		if msg.Resume {
			acks = append(acks, activity.AckResumed, activity.AckWindowsVisible, activity.AckIdle)
		} else {
			acks = append(acks, activity.AckWindowsVisible)
		}
	case client.KindStart:
		acks = append(acks, activity.AckWindowsVisible)
	case client.KindResume:
		acks = append(acks, activity.AckResumed, activity.AckWindowsVisible, activity.AckIdle)
	case client.KindPause:
		acks = append(acks, activity.AckPaused)
	case client.KindStop:
		acks = append(acks, activity.AckStopped)
	case client.KindDestroy:
		acks = append(acks, activity.AckDestroyed)
	case client.KindDeliverResult:
		acks = append(acks, activity.AckResultDelivered)
		if msg.Final != nil {
			switch *msg.Final {
			case client.KindPause:
				acks = append(acks, activity.AckPaused)
			case client.KindStop:
				acks = append(acks, activity.AckStopped)
			}
		}
	}

	for _, kind := range acks {
		var payload activity.AckPayload
		if kind == activity.AckStopped {
			payload.SavedState = []byte(r.savedState(tok))
		}
		r.note("<- %s %s", r.name(tok), kind)
		if err := r.eng.OnClientAcknowledged(tok, kind, payload); err != nil {
			r.logger.Debug("scenario ack dropped",
				log.String("activity", r.name(tok)),
				log.Stringer("ack", kind),
				log.Err(err),
			)
			return
		}
	}
}

func (r *run) ignores(tok activity.Token, kind client.Kind) bool {
	c, ok := r.sc.Activities[r.component[tok]]
	if !ok {
		return false
	}
	for _, k := range c.Ignore {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *run) savedState(tok activity.Token) string {
	if r.sc.SavedState != "" {
		return r.sc.SavedState
	}
	return r.name(tok) + "-state"
}

// respawn simulates the death of a killed process and, unless the process
// opted out, its restart.
func (r *run) respawn(name string) {
	h := handleOf(name)
	r.rec.SetGone(h, true)
	r.note("   process %s killed", name)
	if err := r.eng.HandleAppDied(name); err != nil {
		r.logger.Debug("scenario app death dropped", log.String("process", name), log.Err(err))
	}
	p := r.processes[name]
	if p.NoRespawn {
		return
	}
	r.rec.SetGone(h, false)
	r.note("   process %s restarted", name)
	if err := r.eng.AttachProcess(name, h, p.Sandboxed); err != nil {
		r.logger.Debug("scenario attach dropped", log.String("process", name), log.Err(err))
	}
}

func (r *run) exec(st Step) error {
	reason := st.Reason
	if reason == "" {
		reason = "scenario"
	}
	switch st.Op {
	case "start":
		return r.start(st)
	case "advance":
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return err
		}
		r.sched.Advance(d)
		return nil
	case "attach":
		p, ok := r.processes[st.Process]
		if !ok {
			return fmt.Errorf("%w: unknown process %q", ErrInvalidScenario, st.Process)
		}
		r.rec.SetGone(handleOf(p.Name), false)
		return r.eng.AttachProcess(p.Name, handleOf(p.Name), p.Sandboxed)
	case "died":
		r.rec.SetGone(handleOf(st.Process), true)
		r.dropQueued(handleOf(st.Process))
		return r.eng.HandleAppDied(st.Process)
	case "display":
		return r.display(st)
	case "sleep", "wake":
		return r.eng.SetSleeping(st.Display, st.Op == "sleep")
	case "expect":
		return nil
	}

	tok, err := r.token(st.Activity)
	if err != nil {
		return err
	}
	switch st.Op {
	case "finish":
		res, err := r.eng.RequestFinish(tok, st.ResultCode, st.Data, reason)
		if err == nil {
			r.lastRes = &res
			r.note("   finish %s: %s", st.Activity, res)
		}
		return err
	case "pause":
		return r.eng.RequestPause(tok, reason)
	case "stop":
		return r.eng.RequestStop(tok)
	case "resume":
		return r.eng.RequestResume(tok)
	case "destroy":
		_, err := r.eng.RequestDestroy(tok, reason)
		return err
	case "ack":
		kind, err := activity.ParseAckKind(st.Ack)
		if err != nil {
			return err
		}
		var payload activity.AckPayload
		if st.SavedState != "" {
			payload.SavedState = []byte(st.SavedState)
		}
		return r.eng.OnClientAcknowledged(tok, kind, payload)
	case "restart":
		return r.eng.RestartProcessIfVisible(tok)
	case "new_intent":
		return r.eng.DeliverNewIntent(tok, client.Intent{Action: "VIEW", Data: st.Data})
	case "orientation":
		o, err := configuration.ParseOrientation(strings.ToLower(st.Orientation))
		if err != nil {
			return err
		}
		return r.eng.SetRequestedOrientation(tok, o)
	case "clear_size_compat":
		return r.eng.ClearSizeCompatMode(tok)
	case "task_front":
		return r.eng.MoveTaskToFront(r.tasks[st.Activity])
	case "remove_task":
		return r.eng.RemoveTask(r.tasks[st.Activity])
	case "task_bounds":
		var b configuration.Rect
		if st.Width > 0 && st.Height > 0 {
			b = configuration.NewRect(st.Width, st.Height)
		}
		return r.eng.SetTaskBounds(r.tasks[st.Activity], b)
	}
	return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, st.Op)
}

func (r *run) start(st Step) error {
	c := r.sc.Activities[st.Component]
	req := activity.StartRequest{
		DisplayID:   st.Display,
		Info:        c.Info,
		Intent:      client.Intent{Action: "MAIN", Component: c.Component, Data: st.Data},
		RequestCode: st.RequestCode,
	}
	if st.SavedState != "" {
		req.SavedState = []byte(st.SavedState)
	}
	if st.Task != "" {
		id, ok := r.tasks[st.Task]
		if !ok {
			return fmt.Errorf("%w: unknown task %q", ErrInvalidScenario, st.Task)
		}
		req.TaskID = id
	}
	if st.ResultTo != "" {
		tok, err := r.token(st.ResultTo)
		if err != nil {
			return err
		}
		req.ResultTo = tok
	}

	tok, err := r.eng.StartActivity(req)
	if err != nil {
		return err
	}
	r.tokens[st.As] = tok
	r.names[tok] = st.As
	r.component[tok] = st.Component
	if snap, err := r.eng.Activity(tok); err == nil {
		r.tasks[st.As] = snap.Task
	}
	return nil
}

func (r *run) display(st Step) error {
	var d *Display
	for i := range r.sc.Displays {
		if r.sc.Displays[i].ID == st.Display {
			d = &r.sc.Displays[i]
		}
	}
	if d == nil {
		return fmt.Errorf("%w: unknown display %d", ErrInvalidScenario, st.Display)
	}
	if st.Width > 0 && st.Height > 0 {
		d.Width, d.Height = st.Width, st.Height
	}
	if st.Density > 0 {
		d.Density = st.Density
	}
	if st.Rotation != "" {
		d.Rotation = st.Rotation
	}
	if st.UIMode != "" {
		d.UIMode = st.UIMode
	}
	if st.FontScale > 0 {
		d.FontScale = st.FontScale
	}
	return r.setDisplay(*d)
}

func (r *run) dropQueued(h client.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.queue[:0]
	for _, p := range r.queue {
		if p.handle != h {
			kept = append(kept, p)
		}
	}
	r.queue = kept
}

// observer records state changes in the transcript. It runs under the
// engine lock and only touches the run's own lock.
type observer struct {
	activity.NopObserver
	run *run
}

func (o *observer) OnStateChanged(tok activity.Token, s lifecycle.State) {
	o.run.mu.Lock()
	defer o.run.mu.Unlock()
	o.run.transcript = append(o.run.transcript, fmt.Sprintf("   %s is %s", tok, s))
}

// processes defers kills until the engine lock is released.
type processes struct {
	run *run
}

func (p *processes) KillProcess(name, reason string) {
	p.run.mu.Lock()
	defer p.run.mu.Unlock()
	p.run.killed = append(p.run.killed, name)
}

func (p *processes) UpdateProcessPriority(string, bool) {}

func describeStep(st Step) string {
	parts := []string{st.Op}
	for _, s := range []string{st.As, st.Activity, st.Component, st.Process, st.Ack, st.Duration} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func describeMessage(m client.Message) string {
	parts := []string{m.Kind.String()}
	if m.Resume {
		parts = append(parts, "resume")
	}
	if m.Changes != 0 {
		parts = append(parts, "changes="+m.Changes.String())
	}
	if m.PreserveWindow {
		parts = append(parts, "preserve-window")
	}
	if m.Finishing {
		parts = append(parts, "finishing")
	}
	if len(m.Results) > 0 {
		parts = append(parts, fmt.Sprintf("results=%d", len(m.Results)))
	}
	if len(m.Intents) > 0 {
		parts = append(parts, fmt.Sprintf("intents=%d", len(m.Intents)))
	}
	if len(m.SavedState) > 0 {
		parts = append(parts, fmt.Sprintf("saved=%q", m.SavedState))
	}
	if m.Final != nil {
		parts = append(parts, "then="+m.Final.String())
	}
	return strings.Join(parts, " ")
}
