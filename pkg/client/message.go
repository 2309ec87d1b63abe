package client

import (
	"fmt"
	"strings"

	"github.com/bft-labs/actlife/pkg/configuration"
)

// Handle addresses a client process.
type Handle string

// Kind is the type of a lifecycle message.
type Kind int

const (
	KindLaunch Kind = iota
	KindStart
	KindResume
	KindPause
	KindStop
	KindDestroy
	KindRelaunch
	KindConfigurationChanged
	KindMovedToDisplay
	KindDeliverResult
	KindNewIntent
)

var kindNames = [...]string{
	KindLaunch:               "launch",
	KindStart:                "start",
	KindResume:               "resume",
	KindPause:                "pause",
	KindStop:                 "stop",
	KindDestroy:              "destroy",
	KindRelaunch:             "relaunch",
	KindConfigurationChanged: "configurationChanged",
	KindMovedToDisplay:       "movedToDisplay",
	KindDeliverResult:        "deliverResult",
	KindNewIntent:            "newIntent",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a message kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Intent describes what an activity was asked to do.
type Intent struct {
	Action    string            `json:"action,omitempty" toml:"action"`
	Component string            `json:"component,omitempty" toml:"component"`
	Data      string            `json:"data,omitempty" toml:"data"`
	Extras    map[string]string `json:"extras,omitempty" toml:"extras"`
	// ClearWhenTaskReset marks the activity and everything above it for
	// removal when the task is reset.
	ClearWhenTaskReset bool `json:"clearWhenTaskReset,omitempty" toml:"clear_when_task_reset"`
}

// Result is the outcome one activity hands back to the activity that
// started it.
type Result struct {
	From        string `json:"from"`
	ResultWho   string `json:"resultWho,omitempty"`
	RequestCode int    `json:"requestCode"`
	ResultCode  int    `json:"resultCode"`
	Data        string `json:"data,omitempty"`
}

// Message is a lifecycle request for one activity of a client.
type Message struct {
	Kind  Kind   `json:"kind"`
	Token string `json:"token"`

	Configuration *configuration.Configuration `json:"configuration,omitempty"`
	DisplayID     int                          `json:"displayId,omitempty"`
	Results       []Result                     `json:"results,omitempty"`
	Intents       []Intent                     `json:"intents,omitempty"`
	SavedState    []byte                       `json:"savedState,omitempty"`

	// Changes is the configuration diff that caused a relaunch.
	Changes        configuration.Change `json:"changes,omitempty"`
	PreserveWindow bool                 `json:"preserveWindow,omitempty"`
	// Resume asks a launched or relaunched activity to end up resumed.
	Resume    bool `json:"resume,omitempty"`
	Finishing bool `json:"finishing,omitempty"`
	// Final is the lifecycle request that follows a callback message, e.g.
	// the pause that restores a target after a forced result delivery.
	Final *Kind `json:"final,omitempty"`
}

func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s{%s", m.Kind, m.Token)
	if len(m.Results) > 0 {
		fmt.Fprintf(&b, " results=%d", len(m.Results))
	}
	if len(m.Intents) > 0 {
		fmt.Fprintf(&b, " intents=%d", len(m.Intents))
	}
	if m.Changes != 0 {
		fmt.Fprintf(&b, " changes=%s", m.Changes)
	}
	if m.PreserveWindow {
		b.WriteString(" preserveWindow")
	}
	if m.Finishing {
		b.WriteString(" finishing")
	}
	if m.Final != nil {
		fmt.Fprintf(&b, " then=%s", *m.Final)
	}
	b.WriteString("}")
	return b.String()
}
