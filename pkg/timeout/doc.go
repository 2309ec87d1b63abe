// Package timeout guards remote round trips with deferred callbacks.
//
// A Supervisor arms at most one timeout per (activity, kind). When a timer
// expires the Supervisor hands a Fired value to its sink; the sink claims
// it before acting, which filters out timeouts cancelled or re-armed in the
// meantime:
//
//	sup := timeout.NewSupervisor(timeout.TimerScheduler{}, engine.PostTimeout)
//	sup.Arm(token, timeout.KindPause, 500*time.Millisecond)
//	...
//	if sup.Claim(fired) {
//	    // force the pause to complete
//	}
//
// ManualScheduler replaces wall-clock timers in tests and simulations.
package timeout
