package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestTargetCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.TargetCreated("beanA")
	m.TargetCreated("beanA")
	m.TargetCreated("beanB")
	m.TargetDestroyed("beanA")

	created := gather(t, reg, "refreshscope_targets_created_total")
	require.NotNil(t, created)
	byLabel := map[string]float64{}
	for _, metric := range created.GetMetric() {
		byLabel[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, byLabel["beanA"])
	assert.Equal(t, 1.0, byLabel["beanB"])

	active := gather(t, reg, "refreshscope_targets_active")
	require.NotNil(t, active)
	require.Len(t, active.GetMetric(), 1)
	assert.Equal(t, 2.0, active.GetMetric()[0].GetGauge().GetValue())
}

func TestRefreshHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RefreshCompleted(25 * time.Millisecond)
	m.RefreshCompleted(75 * time.Millisecond)

	refreshes := gather(t, reg, "refreshscope_refreshes_total")
	require.NotNil(t, refreshes)
	assert.Equal(t, 2.0, refreshes.GetMetric()[0].GetCounter().GetValue())

	duration := gather(t, reg, "refreshscope_refresh_duration_seconds")
	require.NotNil(t, duration)
	hist := duration.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 0.1, hist.GetSampleSum(), 0.001)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TargetCreated("x")
		m.TargetDestroyed("x")
		m.RefreshCompleted(time.Second)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}
