package metrics_test

import (
	"testing"

	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebalanceObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	points := make([]models.Point, 7)
	labels := make([]int, 7)
	res, err := rebalance.New(m.RebalanceObserver()).Rebalance(labels, points, 4, 6)

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RebalanceActions.WithLabelValues("split")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RebalanceActions.WithLabelValues("merge")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.RebalanceActions.WithLabelValues("keep")), 0)
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.GroupSize.Observe(5)
	m.RunsSaved.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "convoy_group_size")
	assert.Contains(t, names, "convoy_runs_total")
}
