package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// Observer receives one-way notifications from the engine. Callbacks run
// with the hierarchy lock held and must not call back into the Engine.
type Observer interface {
	OnStateChanged(token Token, state lifecycle.State)
	OnVisibilityChanged(token Token, visible bool)
	// OnActivityResumed is the usage-tracking event.
	OnActivityResumed(token Token, component string)
	// OnPersistentStateChanged fires when a stop ack carried persistable
	// state for an activity of task.
	OnPersistentStateChanged(task TaskID)
}

// NopObserver implements Observer with no-ops. Embed it to override a
// subset of callbacks.
type NopObserver struct{}

func (NopObserver) OnStateChanged(Token, lifecycle.State) {}
func (NopObserver) OnVisibilityChanged(Token, bool)       {}
func (NopObserver) OnActivityResumed(Token, string)       {}
func (NopObserver) OnPersistentStateChanged(TaskID)       {}

// ProcessController manages the host processes of activities.
type ProcessController interface {
	KillProcess(name, reason string)
	// UpdateProcessPriority reports whether a process hosts a resumed
	// activity.
	UpdateProcessPriority(name string, foreground bool)
}

type nopProcesses struct{}

func (nopProcesses) KillProcess(string, string)         {}
func (nopProcesses) UpdateProcessPriority(string, bool) {}

// Metrics receives engine accounting. Implementations must be cheap; they
// are called with the hierarchy lock held.
type Metrics interface {
	StateTransition(from, to lifecycle.State)
	TimeoutFired(kind timeout.Kind)
	DispatchFailed(kind client.Kind)
	Relaunched(preserveWindow bool)
	FinishRequested(result FinishResult)
	AppDied(removed bool)
	SizeCompatActivities(n int)
}

type nopMetrics struct{}

func (nopMetrics) StateTransition(lifecycle.State, lifecycle.State) {}
func (nopMetrics) TimeoutFired(timeout.Kind)                        {}
func (nopMetrics) DispatchFailed(client.Kind)                       {}
func (nopMetrics) Relaunched(bool)                                  {}
func (nopMetrics) FinishRequested(FinishResult)                     {}
func (nopMetrics) AppDied(bool)                                     {}
func (nopMetrics) SizeCompatActivities(int)                         {}

// RelaunchContext is the input of a RelaunchPolicy.
type RelaunchContext struct {
	Info     Info
	Previous configuration.Configuration
	Next     configuration.Configuration
	Changes  configuration.Change
}

// RelaunchPolicy widens the set of changes an activity is treated as
// handling itself.
type RelaunchPolicy interface {
	ExtraHandled(c RelaunchContext) configuration.Change
}

// RelaunchPolicyFunc adapts a function to RelaunchPolicy.
type RelaunchPolicyFunc func(c RelaunchContext) configuration.Change

func (f RelaunchPolicyFunc) ExtraHandled(c RelaunchContext) configuration.Change { return f(c) }

// DeskDockPolicy exempts a UI-mode change that only toggles the desk type
// for activities without desk-specific resources.
type DeskDockPolicy struct{}

func (DeskDockPolicy) ExtraHandled(c RelaunchContext) configuration.Change {
	if !c.Changes.Has(configuration.ChangeUIMode) || c.Info.HasDeskResources {
		return 0
	}
	if c.Previous.InDeskUIMode() == c.Next.InDeskUIMode() {
		return 0
	}
	const rest = ^configuration.UIModeTypeMask
	if c.Previous.UIMode&rest != c.Next.UIMode&rest {
		return 0
	}
	return configuration.ChangeUIMode
}
