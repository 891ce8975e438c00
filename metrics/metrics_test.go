package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFetchAndTask(t *testing.T) {
	m := NewUnregistered()

	m.RecordFetch(OutcomeCacheHit, 0, 10)
	m.RecordFetch(OutcomeOK, 20*time.Millisecond, 100)
	m.RecordTask("download_listing", TaskRetried, time.Millisecond)
	m.RecordTask("download_listing", TaskSucceeded, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues(OutcomeCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 110.0, testutil.ToFloat64(m.FetchBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("download_listing", TaskSucceeded)))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err)
}
