package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/timeout"
)

// value returns the value of the series of name whose labels include want.
func value(t *testing.T, g prometheus.Gatherer, name string, want map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, want)
	return 0
}

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.StateTransition(lifecycle.StateResumed, lifecycle.StatePausing)
	c.StateTransition(lifecycle.StateResumed, lifecycle.StatePausing)
	c.TimeoutFired(timeout.KindPause)
	c.DispatchFailed(client.KindStop)
	c.Relaunched(true)
	c.FinishRequested(activity.FinishRequested)
	c.AppDied(true)
	c.AppDied(false)
	c.SizeCompatActivities(3)

	assert.Equal(t, 2.0, value(t, reg, "actlife_state_transitions_total", map[string]string{"from": "RESUMED", "to": "PAUSING"}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_timeouts_total", map[string]string{"kind": timeout.KindPause.String()}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_dispatch_failures_total", map[string]string{"kind": client.KindStop.String()}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_relaunches_total", map[string]string{"preserve_window": "true"}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_finish_requests_total", map[string]string{"result": "requested"}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_app_died_records_total", map[string]string{"decision": "removed"}))
	assert.Equal(t, 1.0, value(t, reg, "actlife_app_died_records_total", map[string]string{"decision": "retained"}))
	assert.Equal(t, 3.0, value(t, reg, "actlife_size_compat_activities", nil))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestCollector_WiredIntoEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	eng, err := activity.New(activity.Config{},
		activity.WithMetrics(c),
		activity.WithTransport(client.NewRecorder()),
	)
	require.NoError(t, err)
	res, err := eng.RequestFinish("unknown", activity.ResultCanceled, "", "test")
	require.NoError(t, err)
	assert.Equal(t, activity.FinishCancelled, res)
	assert.Equal(t, 1.0, value(t, reg, "actlife_finish_requests_total", map[string]string{"result": "cancelled"}))
}

func TestHandler(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.SizeCompatActivities(1)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "actlife_size_compat_activities 1")
	assert.Contains(t, string(body), "go_goroutines")
}
