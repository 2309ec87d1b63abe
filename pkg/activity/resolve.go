package activity

import (
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/sizecompat"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// Resolution is the outcome of resolving an activity's configuration.
type Resolution struct {
	Resolved configuration.Configuration
	// RelaunchRequired is set when the change cannot be applied in place,
	// including relaunches deferred until the activity is paused.
	RelaunchRequired bool
	// InPlaceUpdate is set when a configuration update was sent to the
	// client without relaunching.
	InPlaceUpdate bool
}

type configOutcome int

const (
	configNoop configOutcome = iota
	configDeferred
	configInPlace
	configRelaunch
	configRelaunchDeferred
)

// resolveOverride recomputes r's full configuration inside parent,
// freezing size-compat insets the first time they are needed.
func (e *Engine) resolveOverride(r *Record, parent configuration.Configuration) configuration.Configuration {
	r.parentConfig = parent
	full := parent.Merge(r.requestedOverride)
	r.resolvedOverride = r.requestedOverride

	if r.compatInsets == nil && sizecompat.ShouldCreate(r.info.SizeTraits, e.cfg.UniversalResizeable) {
		d, err := sizecompat.NewDisplayInsets(e.geometry, e.displayOf(r), full, r.info.SizeTraits)
		if err != nil {
			e.logger.Warn("cannot freeze size-compat insets",
				log.String("token", r.token.String()),
				log.Err(err),
			)
		} else {
			r.compatInsets = d
		}
	}

	if r.compatInsets != nil {
		res := sizecompat.Resolve(r.compatInsets, sizecompat.Request{
			Parent:               parent,
			Traits:               r.info.SizeTraits,
			RequestedOrientation: r.requestedOrientation,
			AllowUpscaling:       e.cfg.AllowUpscaling,
		})
		r.sizeCompatScale = res.Scale
		r.sizeCompatBounds = res.CompatBounds
		r.inSizeCompatModeForBounds = res.InSizeCompatModeForBounds
		r.resolvedOverride = r.requestedOverride.Merge(res.Override)
		full = full.Merge(res.Override)
	} else {
		r.sizeCompatScale = 1
		r.sizeCompatBounds = nil
		r.inSizeCompatModeForBounds = false
	}
	r.fullConfig = full
	e.reportSizeCompat()
	return full
}

// ensureActivityConfiguration reports r's resolved configuration to its
// client, relaunching it when a changed axis is not handled in place.
func (e *Engine) ensureActivityConfiguration(r *Record) configOutcome {
	if r.finishing || r.state().TearingDown() ||
		r.isState(lifecycle.StateStopping, lifecycle.StateStopped) || !r.visibleRequested {
		return configDeferred
	}

	displayID := e.displayOf(r)
	displayChanged := r.reported && r.lastReportedDisplayID != displayID
	if r.reported && r.fullConfig.Equal(r.lastReportedConfig) && !displayChanged {
		return configNoop
	}

	prev, next := r.lastReportedConfig, r.fullConfig
	changes := prev.Diff(next)
	changes = r.info.SizeBuckets.FilterDiff(changes, prev, next)
	windowOnly := changes == configuration.ChangeWindowConfiguration
	changes = changes.Without(configuration.ChangeWindowConfiguration)

	r.lastReportedConfig = next
	r.lastReportedDisplayID = displayID
	r.reported = true

	if r.isState(lifecycle.StateInitializing) || !r.attached() {
		return configNoop
	}
	if changes == 0 {
		if displayChanged || windowOnly {
			if !e.sendConfiguration(r, displayChanged) {
				return configNoop
			}
			return configInPlace
		}
		return configNoop
	}

	handled := r.info.HandledChanges
	for _, p := range e.policies {
		handled |= p.ExtraHandled(RelaunchContext{Info: r.info, Previous: prev, Next: next, Changes: changes})
	}
	unhandled := changes.Without(handled)
	if unhandled == 0 {
		if !e.sendConfiguration(r, displayChanged) {
			return configNoop
		}
		return configInPlace
	}

	preserveWindow := changes.ResizeOnly() && !displayChanged &&
		prev.Window.Rotation == next.Window.Rotation
	switch {
	case !changes.ResizeOnly():
		r.relaunchReason = RelaunchReasonNone
	case next.Window.WindowingMode == configuration.WindowingModeFreeform:
		r.relaunchReason = RelaunchReasonFreeResize
	default:
		r.relaunchReason = RelaunchReasonWindowingModeResize
	}
	e.logger.Debug("configuration requires relaunch",
		log.String("token", r.token.String()),
		log.Stringer("changes", changes),
		log.Stringer("unhandled", unhandled),
	)

	if r.isState(lifecycle.StatePausing) {
		r.deferRelaunchUntilPaused = true
		r.preserveWindowOnDeferredRelaunch = preserveWindow
		r.deferredChanges |= changes
		return configRelaunchDeferred
	}
	e.relaunch(r, changes, preserveWindow)
	return configRelaunch
}

// sendConfiguration reports an in-place update. A client that cannot be
// reached is handled as the death of its process.
func (e *Engine) sendConfiguration(r *Record, moved bool) bool {
	cfg := r.fullConfig
	msg := client.Message{Kind: client.KindConfigurationChanged, Configuration: &cfg}
	if moved {
		msg.Kind = client.KindMovedToDisplay
		msg.DisplayID = r.lastReportedDisplayID
	}
	if err := e.dispatch(r, msg); err != nil {
		if p := e.processes[r.process]; p != nil {
			e.appDied(p, "configuration update failed")
		}
		return false
	}
	return true
}

// relaunch recreates r's client instance. Pending results and intents ride
// along when r ends up resumed.
func (e *Engine) relaunch(r *Record, changes configuration.Change, preserveWindow bool) {
	andResume := r.isState(lifecycle.StateResumed)
	r.pendingRelaunchCount++
	cfg := r.fullConfig
	msg := client.Message{
		Kind:           client.KindRelaunch,
		Configuration:  &cfg,
		Changes:        changes,
		PreserveWindow: preserveWindow,
		Resume:         andResume,
	}
	if andResume {
		msg.Results, msg.Intents = r.results, r.newIntents
	}
	err := e.dispatch(r, msg)
	if err != nil {
		// No ack will ever come for an undelivered relaunch.
		r.pendingRelaunchCount--
	} else if andResume {
		r.results, r.newIntents = nil, nil
	}
	if !andResume && lifecycle.CanTransition(r.state(), lifecycle.StatePaused) {
		e.setState(r, lifecycle.StatePaused, "relaunch")
	}
	e.cancelTimeout(r, timeout.KindPause)
	e.removeFromStopping(r)
	r.deferRelaunchUntilPaused = false
	r.preserveWindowOnDeferredRelaunch = false
	r.deferredChanges = 0
	if r.relaunching() {
		e.armTimeout(r, timeout.KindRelaunch)
	}
	e.metrics.Relaunched(preserveWindow)
}

// activityRelaunched handles one relaunch ack. Acks beyond the pending
// count are ignored.
func (e *Engine) activityRelaunched(r *Record) {
	if r.pendingRelaunchCount > 0 {
		r.pendingRelaunchCount--
	}
	if r.pendingRelaunchCount == 0 {
		e.cancelTimeout(r, timeout.KindRelaunch)
		r.relaunchReason = RelaunchReasonNone
	}
}

func (e *Engine) clearRelaunching(r *Record) {
	r.pendingRelaunchCount = 0
	r.relaunchReason = RelaunchReasonNone
}

// clearSizeCompatMode drops r's frozen insets and override, re-resolves
// it inside the current parent and reports the result.
func (e *Engine) clearSizeCompatMode(r *Record) {
	e.dropSizeCompat(r)
	e.ensureActivityConfiguration(r)
}

// dropSizeCompat forgets r's frozen insets and override and recomputes its
// configuration without telling the client.
func (e *Engine) dropSizeCompat(r *Record) {
	r.sizeCompatScale = 1
	r.sizeCompatBounds = nil
	r.inSizeCompatModeForBounds = false
	r.compatInsets = nil
	r.requestedOverride = configuration.Unset(r.requestedOverride.Window.ActivityType)
	e.resolveOverride(r, r.parentConfig)
}
