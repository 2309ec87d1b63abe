package scenario

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFile(t *testing.T, name string) *Report {
	t.Helper()
	sc, err := Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	rep, err := NewRunner().Run(context.Background(), sc)
	require.NoError(t, err)
	return rep
}

func TestRun_Testdata(t *testing.T) {
	for _, name := range []string{"stack.toml", "pause_timeout.toml", "rotation.toml", "died.toml"} {
		t.Run(name, func(t *testing.T) {
			rep := runFile(t, name)
			assert.True(t, rep.Passed(), "failures:\n%s", strings.Join(rep.Failures(), "\n"))
		})
	}
}

func TestRun_TranscriptUsesNames(t *testing.T) {
	rep := runFile(t, "stack.toml")
	out := strings.Join(rep.Transcript, "\n")
	assert.Contains(t, out, "-> A launch resume")
	assert.Contains(t, out, "<- A paused")
	assert.Contains(t, out, "A is STOPPED")
	assert.Contains(t, out, "-> B destroy")
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	sc, err := Parse([]byte(`
[[processes]]
name = "app"

[activities.main]
component = "com.example/.Main"
process = "app"

[[steps]]
op = "start"
as = "A"
component = "main"
expect = { state = "PAUSED", messages = ["launch", "pause"] }

[[steps]]
op = "stop"
activity = "nobody"
`))
	require.NoError(t, err)
	rep, err := NewRunner().Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	fails := rep.Failures()
	require.Len(t, fails, 3)
	assert.Contains(t, fails[0], "messages [launch], want [launch pause]")
	assert.Contains(t, fails[1], "state RESUMED, want PAUSED")
	assert.Contains(t, fails[2], "step 2 (stop)")

	var buf bytes.Buffer
	_, err = rep.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "FAIL step 1 (start)")
}

func TestRun_ExpectedErrorForUnknownActivity(t *testing.T) {
	sc, err := Parse([]byte(`
[[processes]]
name = "app"

[activities.main]
component = "com.example/.Main"
process = "app"

[[steps]]
op = "finish"
activity = "nobody"
expect = { error = "not started" }

[[steps]]
op = "finish"
activity = "nobody"
expect = { error = "not started", state = "RESUMED" }
`))
	require.NoError(t, err)
	rep, err := NewRunner().Run(context.Background(), sc)
	require.NoError(t, err)

	fails := rep.Failures()
	require.Len(t, fails, 1, strings.Join(fails, "\n"))
	assert.Contains(t, fails[0], "step 2 (finish)")
	assert.Contains(t, fails[0], "not started")
}

func TestRun_DetachedProcessLaunchesOnAttach(t *testing.T) {
	sc, err := Parse([]byte(`
[[processes]]
name = "late"
detached = true

[activities.main]
component = "com.example/.Main"
process = "late"

[[steps]]
op = "start"
as = "A"
component = "main"
expect = { state = "INITIALIZING", messages = [] }

[[steps]]
op = "attach"
process = "late"
expect = { activity = "A", state = "RESUMED", messages = ["launch"] }
`))
	require.NoError(t, err)
	rep, err := NewRunner().Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed(), strings.Join(rep.Failures(), "\n"))
}

func TestRun_Cancelled(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "stack.toml"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRunner().Run(ctx, sc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad toml", `name = `, "invalid scenario"},
		{"unknown op", `[[steps]]
op = "fly"`, `unknown op "fly"`},
		{"undeclared process", `[activities.a]
process = "ghost"`, "undeclared process"},
		{"unknown change", `[[processes]]
name = "app"
[activities.a]
process = "app"
handles = ["gravity"]`, "gravity"},
		{"unknown component", `[[steps]]
op = "start"
as = "A"
component = "nope"`, "unknown component"},
		{"bad duration", `[[steps]]
op = "advance"
duration = "soon"`, "step 1"},
		{"bad rotation", `[[displays]]
width = 10
height = 10
rotation = "45"`, "rotation"},
		{"bad engine", `[engine]
pause_timeout = "never"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.src))
			if err == nil {
				_, err = sc.EngineConfig()
			}
			require.ErrorIs(t, err, ErrInvalidScenario)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	sc, err := Parse([]byte(`
[[processes]]
name = "app"

[activities.main]
process = "app"
handles = ["orientation", "screenSize"]
`))
	require.NoError(t, err)
	require.Len(t, sc.Displays, 1)
	assert.Equal(t, 1080, sc.Displays[0].Width)

	c := sc.Activities["main"]
	assert.Equal(t, "main", c.Component)
	assert.Equal(t, "orientation|screenSize", c.HandledChanges.String())

	cfg, err := sc.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.PauseTimeout)
}
