package scenario

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bft-labs/actlife/pkg/client"
)

// Report is the outcome of a scenario run.
type Report struct {
	Name       string
	Steps      []StepReport
	Transcript []string
}

// StepReport is the outcome of one step.
type StepReport struct {
	Index    int
	Op       string
	Err      error
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if len(s.Failures) > 0 {
			return false
		}
	}
	return true
}

// Failures lists every failed expectation, prefixed with its step.
func (r *Report) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", s.Index, s.Op, f))
		}
	}
	return out
}

// WriteTo writes the transcript followed by a summary.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	if r.Name != "" {
		fmt.Fprintf(&b, "scenario: %s\n", r.Name)
	}
	for _, l := range r.Transcript {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if r.Passed() {
		fmt.Fprintf(&b, "PASS (%d steps)\n", len(r.Steps))
	} else {
		for _, f := range r.Failures() {
			fmt.Fprintf(&b, "FAIL %s\n", f)
		}
	}
	return b.WriteTo(w)
}

// check evaluates the expectations of st after it settled.
func (r *run) check(st Step, stepErr error) []string {
	var fails []string
	e := st.Expect
	switch {
	case e != nil && e.Error != "":
		if stepErr == nil {
			fails = append(fails, fmt.Sprintf("expected error containing %q, got none", e.Error))
		} else if !strings.Contains(stepErr.Error(), e.Error) {
			fails = append(fails, fmt.Sprintf("expected error containing %q, got %v", e.Error, stepErr))
		}
	case stepErr != nil:
		fails = append(fails, stepErr.Error())
	}
	if e == nil || (e.Error != "" && e.errorOnly()) {
		return fails
	}

	if e.FinishResult != "" {
		switch {
		case r.lastRes == nil:
			fails = append(fails, "no finish result recorded")
		case r.lastRes.String() != e.FinishResult:
			fails = append(fails, fmt.Sprintf("finish result %s, want %s", r.lastRes, e.FinishResult))
		}
	}

	alias := e.Activity
	if alias == "" {
		alias = st.Activity
	}
	if alias == "" {
		alias = st.As
	}
	if alias == "" {
		if e.Top != "" {
			fails = append(fails, r.checkTop(r.focusedTop(), e.Top)...)
		}
		return fails
	}
	tok, err := r.token(alias)
	if err != nil {
		return append(fails, err.Error())
	}

	if e.Messages != nil {
		got := kindNames(r.rec.Kinds(tok.String()))
		if !slices.Equal(got, e.Messages) {
			fails = append(fails, fmt.Sprintf("%s messages %v, want %v", alias, got, e.Messages))
		}
	}
	if e.LastMessage != "" {
		m, ok := r.rec.Last(tok.String())
		switch {
		case !ok:
			fails = append(fails, fmt.Sprintf("%s received no message, want %s", alias, e.LastMessage))
		case !strings.EqualFold(m.Kind.String(), e.LastMessage):
			fails = append(fails, fmt.Sprintf("%s last message %s, want %s", alias, m.Kind, e.LastMessage))
		}
	}
	if e.Top != "" {
		top := ""
		if id, ok := r.tasks[alias]; ok {
			if t, err := r.eng.Task(id); err == nil && len(t.Activities) > 0 {
				top = r.name(t.Activities[len(t.Activities)-1])
			}
		}
		fails = append(fails, r.checkTop(top, e.Top)...)
	}

	snap, err := r.eng.Activity(tok)
	gone := err != nil
	if e.Gone != nil && *e.Gone != gone {
		fails = append(fails, fmt.Sprintf("%s gone=%t, want %t", alias, gone, *e.Gone))
	}
	if gone {
		if e.State != "" || e.Finishing != nil || e.Visible != nil || e.SizeCompat != nil || e.SavedState != nil {
			fails = append(fails, fmt.Sprintf("%s is gone", alias))
		}
		return fails
	}
	if e.State != "" && !strings.EqualFold(snap.State.String(), e.State) {
		fails = append(fails, fmt.Sprintf("%s state %s, want %s", alias, snap.State, strings.ToUpper(e.State)))
	}
	if e.Finishing != nil && snap.Finishing != *e.Finishing {
		fails = append(fails, fmt.Sprintf("%s finishing=%t, want %t", alias, snap.Finishing, *e.Finishing))
	}
	if e.Visible != nil && snap.Visible != *e.Visible {
		fails = append(fails, fmt.Sprintf("%s visible=%t, want %t", alias, snap.Visible, *e.Visible))
	}
	if e.SizeCompat != nil && snap.InSizeCompatMode != *e.SizeCompat {
		fails = append(fails, fmt.Sprintf("%s size compat=%t, want %t", alias, snap.InSizeCompatMode, *e.SizeCompat))
	}
	if e.SavedState != nil && string(snap.SavedState) != *e.SavedState {
		fails = append(fails, fmt.Sprintf("%s saved state %q, want %q", alias, snap.SavedState, *e.SavedState))
	}
	return fails
}

func (r *run) checkTop(got, want string) []string {
	if got == want {
		return nil
	}
	return []string{fmt.Sprintf("top activity %q, want %q", got, want)}
}

// focusedTop returns the name of the top activity of the focused task.
func (r *run) focusedTop() string {
	tasks := r.eng.Tasks()
	for i := len(tasks) - 1; i >= 0; i-- {
		if acts := tasks[i].Activities; len(acts) > 0 {
			return r.name(acts[len(acts)-1])
		}
	}
	return ""
}

func kindNames(kinds []client.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
