package activity

import (
	"github.com/google/uuid"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/sizecompat"
)

// Token is the opaque identity clients use to address an activity.
type Token string

// NewToken returns a fresh random token.
func NewToken() Token { return Token(uuid.NewString()) }

func (t Token) String() string { return string(t) }

// TaskID identifies a task in the engine's arena. Zero is never assigned.
type TaskID int

// Result codes delivered with activity results.
const (
	ResultOK       = -1
	ResultCanceled = 0
)

// FinishResult is the outcome of a finish request.
type FinishResult int

const (
	// FinishCancelled means the record was already finishing or is not in
	// the hierarchy.
	FinishCancelled FinishResult = iota
	// FinishRequested means teardown started and completes asynchronously.
	FinishRequested
	// FinishRemoved means the record was removed synchronously.
	FinishRemoved
)

func (r FinishResult) String() string {
	switch r {
	case FinishCancelled:
		return "cancelled"
	case FinishRequested:
		return "requested"
	case FinishRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// RelaunchReason records why the last relaunch happened.
type RelaunchReason int

const (
	RelaunchReasonNone RelaunchReason = iota
	RelaunchReasonWindowingModeResize
	RelaunchReasonFreeResize
)

func (r RelaunchReason) String() string {
	switch r {
	case RelaunchReasonWindowingModeResize:
		return "windowing-mode-resize"
	case RelaunchReasonFreeResize:
		return "free-resize"
	default:
		return "none"
	}
}

// Info is the static declaration of an activity component.
type Info struct {
	Component   string `json:"component" toml:"component"`
	Package     string `json:"package,omitempty" toml:"package"`
	ProcessName string `json:"processName" toml:"process"`

	// HandledChanges are the configuration axes the activity applies in
	// place instead of being relaunched.
	HandledChanges configuration.Change       `json:"handledChanges,omitempty" toml:"-"`
	SizeTraits     sizecompat.Traits          `json:"sizeTraits" toml:"size"`
	SizeBuckets    *configuration.SizeBuckets `json:"sizeBuckets,omitempty" toml:"size_buckets"`

	// Translucent activities do not hide what is below them.
	Translucent      bool `json:"translucent,omitempty" toml:"translucent"`
	NoHistory        bool `json:"noHistory,omitempty" toml:"no_history"`
	StateNotNeeded   bool `json:"stateNotNeeded,omitempty" toml:"state_not_needed"`
	HasDeskResources bool `json:"hasDeskResources,omitempty" toml:"desk_resources"`
	// ForceSendResult delivers this activity's result to a target that is
	// not resumed, restoring the target's state afterwards.
	ForceSendResult  bool `json:"forceSendResult,omitempty" toml:"force_send_result"`

	LaunchedFromUID     int    `json:"launchedFromUid,omitempty" toml:"launched_from_uid"`
	LaunchedFromPackage string `json:"launchedFromPackage,omitempty" toml:"launched_from_package"`
}

// Snapshot is a copy of an activity record's observable state.
type Snapshot struct {
	Token                Token
	Task                 TaskID
	Component            string
	Process              string
	State                lifecycle.State
	Finishing            bool
	VisibleRequested     bool
	Visible              bool
	PendingRelaunchCount int
	RelaunchReason       RelaunchReason
	DeferredRelaunch     bool
	LaunchCount          int
	HasSavedState        bool
	SavedState           []byte
	PendingResults       []client.Result
	PendingIntents       []client.Intent
	LastReported         configuration.Configuration
	LastReportedDisplay  int
	Configuration        configuration.Configuration
	InSizeCompatMode     bool
	SizeCompatScale      float64
	SizeCompatBounds     *configuration.Rect
	HasCompatInsets      bool
	ResultTo             Token
	Intent               client.Intent
	Idle                 bool
	LaunchPending        bool
}

// TaskSnapshot is a copy of a task's observable state.
type TaskSnapshot struct {
	ID        TaskID
	DisplayID int
	// Activities are ordered bottom to top.
	Activities []Token
	Resumed    Token
	Pausing    Token
	Bounds     configuration.Rect
}
