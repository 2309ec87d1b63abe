// Package metrics exports engine accounting to Prometheus.
//
// Collector implements activity.Metrics. Register it with a registry and
// pass it to the engine:
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.NewCollector(reg)
//	eng, err := activity.New(cfg, activity.WithMetrics(m))
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics
