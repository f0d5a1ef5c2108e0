package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/pan-validator/internal/pan"
)

func TestObserveResult(t *testing.T) {
	m := New(prometheus.NewRegistry())
	res, err := pan.NewPipeline(nil, pan.PipelineOptions{}).Run(context.Background(),
		pan.RawStrings("ABXCD1934F", "ABXCD1934F", "bad", "AABCD1923F"))
	require.NoError(t, err)

	m.ObserveResult(res)
	m.ObserveRun(StatusSucceeded, 250*time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("invalid_format")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(StatusSucceeded)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveResult(&pan.Result{})
	m.ObserveRun(StatusFailed, time.Second)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
