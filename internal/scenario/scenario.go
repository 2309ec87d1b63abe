package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/actlife/internal/cliconfig"
	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
)

// ErrInvalidScenario wraps every problem found while loading a scenario.
var ErrInvalidScenario = errors.New("actlife: invalid scenario")

// Scenario is a parsed scenario file.
type Scenario struct {
	Name   string               `toml:"name"`
	Engine cliconfig.FileConfig `toml:"engine"`
	// SavedState is what the simulated client returns with stop acks.
	SavedState string `toml:"saved_state"`

	Displays   []Display            `toml:"displays"`
	Processes  []Process            `toml:"processes"`
	Activities map[string]Component `toml:"activities"`
	Steps      []Step               `toml:"steps"`
}

// Display declares a display configuration.
type Display struct {
	ID        int     `toml:"id"`
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	Density   int     `toml:"density"`
	Rotation  string  `toml:"rotation"`
	UIMode    string  `toml:"ui_mode"`
	FontScale float64 `toml:"font_scale"`
	Locale    string  `toml:"locale"`
}

// Process declares a client process. Processes attach when the scenario
// starts unless Detached is set. A process the engine kills is restarted
// and attached again unless NoRespawn is set.
type Process struct {
	Name      string `toml:"name"`
	Sandboxed bool   `toml:"sandboxed"`
	Detached  bool   `toml:"detached"`
	NoRespawn bool   `toml:"no_respawn"`
}

// Component declares an activity component. Handles lists the
// configuration axes it applies in place; Ignore lists lifecycle messages
// the simulated client never acknowledges.
type Component struct {
	activity.Info
	Handles []string      `toml:"handles"`
	Ignore  []client.Kind `toml:"ignore"`
}

// Step is one scenario instruction. Which fields apply depends on Op.
type Step struct {
	Op string `toml:"op"`

	// Activity names a started activity; As names the one a start step
	// creates.
	Activity  string `toml:"activity"`
	As        string `toml:"as"`
	Component string `toml:"component"`
	// Task names a task by the activity at its root. Empty starts a new
	// task.
	Task        string `toml:"task"`
	Display     int    `toml:"display"`
	ResultTo    string `toml:"result_to"`
	RequestCode int    `toml:"request_code"`
	ResultCode  int    `toml:"result_code"`
	Data        string `toml:"data"`
	Reason      string `toml:"reason"`

	Ack        string `toml:"ack"`
	SavedState string `toml:"saved_state"`
	Duration   string `toml:"duration"`
	Process    string `toml:"process"`

	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	Density     int     `toml:"density"`
	Rotation    string  `toml:"rotation"`
	UIMode      string  `toml:"ui_mode"`
	FontScale   float64 `toml:"font_scale"`
	Orientation string  `toml:"orientation"`

	Expect *Expect `toml:"expect"`
}

// Expect is checked after a step has settled. Unset fields are not checked.
type Expect struct {
	Activity string `toml:"activity"`

	State        string   `toml:"state"`
	Gone         *bool    `toml:"gone"`
	Finishing    *bool    `toml:"finishing"`
	Visible      *bool    `toml:"visible"`
	SizeCompat   *bool    `toml:"size_compat"`
	Messages     []string `toml:"messages"`
	LastMessage  string   `toml:"last_message"`
	SavedState   *string  `toml:"saved_state"`
	Top          string   `toml:"top"`
	FinishResult string   `toml:"finish_result"`
	// Error is a substring the step's error must contain. Without it a
	// failing step fails the scenario.
	Error string `toml:"error"`
}

// errorOnly reports whether e checks nothing besides the step error. The
// activity of a failed step may never have existed.
func (e *Expect) errorOnly() bool {
	return e.State == "" && e.Gone == nil && e.Finishing == nil && e.Visible == nil &&
		e.SizeCompat == nil && e.Messages == nil && e.LastMessage == "" &&
		e.SavedState == nil && e.Top == "" && e.FinishResult == ""
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := toml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

var ops = map[string]bool{
	"start": true, "finish": true, "pause": true, "stop": true, "resume": true,
	"destroy": true, "ack": true, "advance": true, "attach": true, "died": true,
	"restart": true, "display": true, "sleep": true, "wake": true,
	"new_intent": true, "task_front": true, "remove_task": true,
	"task_bounds": true, "orientation": true, "clear_size_compat": true,
	"expect": true,
}

func (sc *Scenario) validate() error {
	if len(sc.Displays) == 0 {
		sc.Displays = []Display{{Width: 1080, Height: 1920, Density: 480}}
	}
	for _, d := range sc.Displays {
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("%w: display %d has no size", ErrInvalidScenario, d.ID)
		}
		if _, err := parseRotation(d.Rotation); err != nil {
			return fmt.Errorf("%w: display %d: %v", ErrInvalidScenario, d.ID, err)
		}
	}
	procs := make(map[string]bool, len(sc.Processes))
	for _, p := range sc.Processes {
		if p.Name == "" {
			return fmt.Errorf("%w: process without name", ErrInvalidScenario)
		}
		procs[p.Name] = true
	}
	for name, c := range sc.Activities {
		if c.Component == "" {
			c.Component = name
		}
		if c.ProcessName == "" {
			return fmt.Errorf("%w: activity %s has no process", ErrInvalidScenario, name)
		}
		if !procs[c.ProcessName] {
			return fmt.Errorf("%w: activity %s uses undeclared process %s", ErrInvalidScenario, name, c.ProcessName)
		}
		handled, err := configuration.ParseChanges(strings.Join(c.Handles, "|"))
		if err != nil {
			return fmt.Errorf("%w: activity %s: %v", ErrInvalidScenario, name, err)
		}
		c.HandledChanges = handled
		sc.Activities[name] = c
	}

	started := map[string]bool{}
	for i, st := range sc.Steps {
		if !ops[st.Op] {
			return fmt.Errorf("%w: step %d: unknown op %q", ErrInvalidScenario, i+1, st.Op)
		}
		if st.Op == "start" {
			if _, ok := sc.Activities[st.Component]; !ok {
				return fmt.Errorf("%w: step %d: unknown component %q", ErrInvalidScenario, i+1, st.Component)
			}
			if st.As == "" {
				return fmt.Errorf("%w: step %d: start needs as", ErrInvalidScenario, i+1)
			}
			if started[st.As] {
				return fmt.Errorf("%w: step %d: %s already started", ErrInvalidScenario, i+1, st.As)
			}
			started[st.As] = true
		}
		if _, err := parseRotation(st.Rotation); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalidScenario, i+1, err)
		}
		if st.Op == "ack" {
			if _, err := activity.ParseAckKind(st.Ack); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidScenario, i+1, err)
			}
		}
		if st.Op == "orientation" {
			if _, err := configuration.ParseOrientation(strings.ToLower(st.Orientation)); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidScenario, i+1, err)
			}
		}
		if st.Op == "advance" {
			if _, err := time.ParseDuration(st.Duration); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidScenario, i+1, err)
			}
		}
		if st.Op == "expect" && st.Expect == nil {
			return fmt.Errorf("%w: step %d: expect without expectations", ErrInvalidScenario, i+1)
		}
	}
	return nil
}

// EngineConfig returns the engine tunables of the scenario.
func (sc *Scenario) EngineConfig() (activity.Config, error) {
	cfg := cliconfig.DefaultConfig()
	if err := cliconfig.ApplyFileConfig(&cfg, sc.Engine, nil); err != nil {
		return activity.Config{}, fmt.Errorf("%w: engine: %v", ErrInvalidScenario, err)
	}
	ec := cfg.EngineConfig(activity.DefaultConfig())
	if err := ec.Validate(); err != nil {
		return activity.Config{}, fmt.Errorf("%w: engine: %v", ErrInvalidScenario, err)
	}
	return ec, nil
}

// build returns the configuration of a display.
func (d Display) build(seq int) configuration.Configuration {
	rot, _ := parseRotation(d.Rotation)
	return configuration.Display{
		Width:     d.Width,
		Height:    d.Height,
		Density:   d.Density,
		Rotation:  rot,
		UIMode:    configuration.ParseUIModeType(d.UIMode),
		FontScale: d.FontScale,
		Locale:    d.Locale,
	}.Configuration(seq)
}

// parseRotation accepts a degree count; empty means no rotation.
func parseRotation(s string) (configuration.Rotation, error) {
	if s == "" {
		return configuration.Rotation0, nil
	}
	var r configuration.Rotation
	if err := r.UnmarshalText([]byte(s)); err != nil {
		return configuration.Rotation0, err
	}
	if !r.Valid() {
		return configuration.Rotation0, nil
	}
	return r, nil
}
