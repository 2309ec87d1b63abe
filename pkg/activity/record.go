package activity

import (
	"time"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/sizecompat"
)

// Record is the lifecycle state of one activity instance. Records are only
// touched with the engine lock held.
type Record struct {
	token Token
	task  TaskID
	info  Info

	intent      client.Intent
	resultTo    Token
	requestCode int
	resultWho   string

	results    []client.Result
	newIntents []client.Intent

	machine          *lifecycle.Machine
	finishing        bool
	visibleRequested bool
	visible          bool
	idle             bool
	// holdPaused keeps the record from being resumed automatically after
	// an explicit pause request.
	holdPaused bool
	// hidden forces the record invisible after an explicit stop request.
	hidden bool

	pendingRelaunchCount             int
	relaunchReason                   RelaunchReason
	deferRelaunchUntilPaused         bool
	preserveWindowOnDeferredRelaunch bool
	deferredChanges                  configuration.Change

	parentConfig          configuration.Configuration
	requestedOverride     configuration.Configuration
	resolvedOverride      configuration.Configuration
	fullConfig            configuration.Configuration
	lastReportedConfig    configuration.Configuration
	lastReportedDisplayID int
	reported              bool

	compatInsets              *sizecompat.DisplayInsets
	sizeCompatScale           float64
	sizeCompatBounds          *configuration.Rect
	inSizeCompatModeForBounds bool
	requestedOrientation      configuration.Orientation

	savedState      []byte
	hasSavedState   bool
	persistentState []byte

	launchCount    int
	lastLaunchTime time.Time
	launchFailed   bool
	launchPending  bool

	process string
}

func (r *Record) state() lifecycle.State { return r.machine.State() }

func (r *Record) isState(states ...lifecycle.State) bool {
	return r.machine.State().IsAnyOf(states...)
}

func (r *Record) attached() bool { return r.process != "" }

// relaunching reports whether a relaunch is still awaiting its ack.
func (r *Record) relaunching() bool { return r.pendingRelaunchCount > 0 }

func (r *Record) takePending() ([]client.Result, []client.Intent) {
	res, in := r.results, r.newIntents
	r.results, r.newIntents = nil, nil
	return res, in
}

func (r *Record) inSizeCompatMode() bool {
	if r.compatInsets == nil {
		return false
	}
	res := sizecompat.Result{InSizeCompatModeForBounds: r.inSizeCompatModeForBounds}
	return res.InSizeCompatMode(r.compatInsets, r.parentConfig.DensityDPI)
}

func (r *Record) snapshot() Snapshot {
	s := Snapshot{
		Token:                r.token,
		Task:                 r.task,
		Component:            r.info.Component,
		Process:              r.process,
		State:                r.state(),
		Finishing:            r.finishing,
		VisibleRequested:     r.visibleRequested,
		Visible:              r.visible,
		PendingRelaunchCount: r.pendingRelaunchCount,
		RelaunchReason:       r.relaunchReason,
		DeferredRelaunch:     r.deferRelaunchUntilPaused,
		LaunchCount:          r.launchCount,
		HasSavedState:        r.hasSavedState,
		SavedState:           append([]byte(nil), r.savedState...),
		PendingResults:       append([]client.Result(nil), r.results...),
		PendingIntents:       append([]client.Intent(nil), r.newIntents...),
		LastReported:         r.lastReportedConfig,
		LastReportedDisplay:  r.lastReportedDisplayID,
		Configuration:        r.fullConfig,
		InSizeCompatMode:     r.inSizeCompatMode(),
		SizeCompatScale:      r.sizeCompatScale,
		HasCompatInsets:      r.compatInsets != nil,
		ResultTo:             r.resultTo,
		Intent:               r.intent,
		Idle:                 r.idle,
		LaunchPending:        r.launchPending,
	}
	if r.sizeCompatBounds != nil {
		b := *r.sizeCompatBounds
		s.SizeCompatBounds = &b
	}
	return s
}
