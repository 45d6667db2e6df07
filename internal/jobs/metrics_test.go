package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	assert.NoError(t, metrics.Track("audit:record").End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, metrics.Track("audit:record").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("audit:record", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("audit:record", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("audit:record")))
}

func TestTrackerCountsSkippedSeparately(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	err := fmt.Errorf("decode: %w", asynq.SkipRetry)
	assert.Equal(t, err, metrics.Track("audit:record").End(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("audit:record", "skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.failures.WithLabelValues("audit:record")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	assert.Equal(t, boom, metrics.Track("x").End(boom))
}
