package activity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/timeout"
)

type fakeProcesses struct {
	mu       sync.Mutex
	killed   []string
	priority map[string]bool
}

func (p *fakeProcesses) KillProcess(name, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = append(p.killed, name)
}

func (p *fakeProcesses) UpdateProcessPriority(name string, foreground bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.priority == nil {
		p.priority = make(map[string]bool)
	}
	p.priority[name] = foreground
}

func (p *fakeProcesses) Killed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.killed...)
}

func (p *fakeProcesses) Foreground(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.priority[name]
}

type stateChange struct {
	token Token
	state lifecycle.State
}

type fakeObserver struct {
	mu         sync.Mutex
	states     []stateChange
	resumed    []string
	persistent []TaskID
}

func (o *fakeObserver) OnStateChanged(tok Token, s lifecycle.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, stateChange{tok, s})
}

func (o *fakeObserver) OnVisibilityChanged(Token, bool) {}

func (o *fakeObserver) OnActivityResumed(_ Token, component string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumed = append(o.resumed, component)
}

func (o *fakeObserver) OnPersistentStateChanged(task TaskID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persistent = append(o.persistent, task)
}

func (o *fakeObserver) States(tok Token) []lifecycle.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []lifecycle.State
	for _, c := range o.states {
		if c.token == tok {
			out = append(out, c.state)
		}
	}
	return out
}

type fakeMetrics struct {
	nopMetrics
	mu         sync.Mutex
	appDied    map[bool]int
	relaunched int
	timeouts   map[timeout.Kind]int
	finishes   map[FinishResult]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		appDied:  make(map[bool]int),
		timeouts: make(map[timeout.Kind]int),
		finishes: make(map[FinishResult]int),
	}
}

func (m *fakeMetrics) AppDied(removed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appDied[removed]++
}

func (m *fakeMetrics) Relaunched(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relaunched++
}

func (m *fakeMetrics) TimeoutFired(k timeout.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts[k]++
}

func (m *fakeMetrics) FinishRequested(r FinishResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes[r]++
}

type fixture struct {
	t       *testing.T
	eng     *Engine
	rec     *client.Recorder
	sched   *timeout.ManualScheduler
	procs   *fakeProcesses
	obs     *fakeObserver
	metrics *fakeMetrics
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// portrait is a 1080x1920 phone display at 480dpi.
func portrait() configuration.Configuration {
	b := configuration.NewRect(1080, 1920)
	c := configuration.Configuration{
		Seq:       1,
		FontScale: 1,
		Locale:    "en-US",
		UIMode:    configuration.UIModeTypeNormal | configuration.UIModeNightNo,
	}
	c.Window.Rotation = configuration.Rotation0
	c.Window.WindowingMode = configuration.WindowingModeFullscreen
	c.Window.MaxBounds = b
	return configuration.ComputeScreenOverrides(c, b, b, 480)
}

// landscape is portrait rotated by 90 degrees.
func landscape() configuration.Configuration {
	b := configuration.NewRect(1920, 1080)
	c := portrait()
	c.Seq = 2
	c.Window.Rotation = configuration.Rotation90
	c.Window.MaxBounds = b
	return configuration.ComputeScreenOverrides(c, b, b, 480)
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		rec:     client.NewRecorder(),
		sched:   timeout.NewManualScheduler(epoch),
		procs:   &fakeProcesses{},
		obs:     &fakeObserver{},
		metrics: newFakeMetrics(),
	}
	all := append([]Option{
		WithTransport(f.rec),
		WithScheduler(f.sched),
		WithClock(f.sched.Now),
		WithProcessController(f.procs),
		WithObserver(f.obs),
		WithMetrics(f.metrics),
	}, opts...)
	eng, err := New(cfg, all...)
	require.NoError(t, err)
	f.eng = eng
	require.NoError(t, eng.SetDisplayConfiguration(0, portrait()))
	require.NoError(t, eng.AttachProcess("app", "h-app", false))
	return f
}

func appInfo(name string) Info {
	return Info{Component: "com.example/." + name, Package: "com.example", ProcessName: "app"}
}

func (f *fixture) start(info Info, task TaskID) Token {
	f.t.Helper()
	tok, err := f.eng.StartActivity(StartRequest{TaskID: task, Info: info, Intent: client.Intent{Action: "MAIN"}})
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) snap(tok Token) Snapshot {
	f.t.Helper()
	s, err := f.eng.Activity(tok)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) state(tok Token) lifecycle.State {
	f.t.Helper()
	return f.snap(tok).State
}

func (f *fixture) ack(tok Token, kind AckKind) {
	f.t.Helper()
	require.NoError(f.t, f.eng.OnClientAcknowledged(tok, kind, AckPayload{}))
}

func (f *fixture) ackStopped(tok Token, saved string) {
	f.t.Helper()
	require.NoError(f.t, f.eng.OnClientAcknowledged(tok, AckStopped, AckPayload{SavedState: []byte(saved)}))
}

func (f *fixture) kinds(tok Token) []client.Kind {
	return f.rec.Kinds(string(tok))
}

func (f *fixture) last(tok Token) client.Message {
	f.t.Helper()
	m, ok := f.rec.Last(string(tok))
	require.True(f.t, ok, "no message for %s", tok)
	return m
}

func (f *fixture) gone(tok Token) bool {
	_, err := f.eng.Activity(tok)
	return err != nil
}

// twoStacked starts A, then B on top of A in the same task, and drives A
// through pause and stop (saving "a-state").
func (f *fixture) twoStacked() (a, b Token) {
	f.t.Helper()
	a = f.start(appInfo("A"), 0)
	task := f.snap(a).Task
	b = f.start(appInfo("B"), task)
	f.ack(a, AckPaused)
	f.sched.Advance(0)
	f.ackStopped(a, "a-state")
	require.Equal(f.t, lifecycle.StateStopped, f.state(a))
	require.Equal(f.t, lifecycle.StateResumed, f.state(b))
	return a, b
}
