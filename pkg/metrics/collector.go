package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/timeout"
)

const namespace = "actlife"

// Collector records engine events as Prometheus metrics.
type Collector struct {
	transitions    *prometheus.CounterVec
	timeouts       *prometheus.CounterVec
	dispatchFailed *prometheus.CounterVec
	relaunches     *prometheus.CounterVec
	finishes       *prometheus.CounterVec
	appDied        *prometheus.CounterVec
	sizeCompat     prometheus.Gauge
}

var _ activity.Metrics = (*Collector)(nil)

// NewCollector creates the engine metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Activity lifecycle transitions.",
		}, []string{"from", "to"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeouts_total",
			Help:      "Lifecycle timeouts that fired before the client acknowledged.",
		}, []string{"kind"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Lifecycle messages that could not be delivered to a client.",
		}, []string{"kind"}),
		relaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relaunches_total",
			Help:      "Activity relaunches caused by configuration changes.",
		}, []string{"preserve_window"}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finish_requests_total",
			Help:      "Finish requests by outcome.",
		}, []string{"result"}),
		appDied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_died_records_total",
			Help:      "Activities hosted by a dead process, by decision.",
		}, []string{"decision"}),
		sizeCompat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "size_compat_activities",
			Help:      "Activities currently shown in size-compat mode.",
		}),
	}
	for _, col := range []prometheus.Collector{
		c.transitions, c.timeouts, c.dispatchFailed, c.relaunches, c.finishes, c.appDied, c.sizeCompat,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("registering engine metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) StateTransition(from, to lifecycle.State) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *Collector) TimeoutFired(kind timeout.Kind) {
	c.timeouts.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) DispatchFailed(kind client.Kind) {
	c.dispatchFailed.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) Relaunched(preserveWindow bool) {
	c.relaunches.WithLabelValues(fmt.Sprint(preserveWindow)).Inc()
}

func (c *Collector) FinishRequested(result activity.FinishResult) {
	c.finishes.WithLabelValues(result.String()).Inc()
}

func (c *Collector) AppDied(removed bool) {
	decision := "retained"
	if removed {
		decision = "removed"
	}
	c.appDied.WithLabelValues(decision).Inc()
}

func (c *Collector) SizeCompatActivities(n int) {
	c.sizeCompat.Set(float64(n))
}

// NewRegistry returns a registry carrying the standard Go and process
// collectors.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("registering go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("registering process collector: %w", err)
	}
	return reg, nil
}

// Handler serves the metrics of g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
