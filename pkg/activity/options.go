package activity

import (
	"time"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/sizecompat"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger    log.Logger
	transport client.Transport
	scheduler timeout.Scheduler
	geometry  sizecompat.Geometry
	observer  Observer
	metrics   Metrics
	processes ProcessController
	policies  []RelaunchPolicy
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		logger:    log.NewNoopLogger(),
		observer:  NopObserver{},
		metrics:   nopMetrics{},
		processes: nopProcesses{},
		scheduler: timeout.TimerScheduler{},
		now:       time.Now,
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransport sets the client transport. Without one every dispatch
// fails as if the client were gone.
func WithTransport(t client.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithScheduler sets the deferred-callback queue backing timeouts.
func WithScheduler(s timeout.Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithGeometry sets the container geometry source used to freeze
// size-compat insets. By default it is derived from display configurations.
func WithGeometry(g sizecompat.Geometry) Option {
	return func(o *options) { o.geometry = g }
}

// WithObserver sets the hierarchy observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithProcessController sets the process controller.
func WithProcessController(p ProcessController) Option {
	return func(o *options) {
		if p != nil {
			o.processes = p
		}
	}
}

// WithRelaunchPolicy adds a relaunch policy.
func WithRelaunchPolicy(p RelaunchPolicy) Option {
	return func(o *options) { o.policies = append(o.policies, p) }
}

// WithClock sets the clock used for launch accounting.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
