package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(3)

	m.RecordAsk(10*time.Millisecond, nil)
	m.RecordAsk(30*time.Millisecond, nil)
	m.RecordAsk(time.Second, errors.New("boom"))
	m.RecordTrain()
	m.RecordEvictions(2)

	snap := m.GetSnapshot()
	require.Equal(t, int64(3), snap.AsksTotal)
	require.Equal(t, int64(1), snap.AsksFailed)
	require.Equal(t, int64(1), snap.TrainsTotal)
	require.Equal(t, int64(2), snap.Evictions)
	require.Equal(t, 2, snap.SampledAsks)
	require.InDelta(t, 20, snap.AvgAskMillis, 0.01)
}

func TestMetricsDurationWindow(t *testing.T) {
	m := NewMetrics(2)
	for i := 0; i < 5; i++ {
		m.RecordAsk(time.Duration(i+1)*time.Millisecond, nil)
	}

	snap := m.GetSnapshot()
	require.Equal(t, 2, snap.SampledAsks)
	// Only the two most recent samples (4ms, 5ms) remain.
	require.InDelta(t, 4.5, snap.AvgAskMillis, 0.01)
}
