package tracker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr
}

func TestRecord_FirstSuccessSetsBaseline(t *testing.T) {
	tr := newTracker(t)

	obs, ok := tr.Record(200, true)
	require.True(t, ok)
	assert.Equal(t, Observation{DegradationMs: 0, Leak: 0}, obs)

	base, set := tr.Baseline()
	assert.True(t, set)
	assert.Equal(t, 200.0, base)
}

func TestRecord_LeakAboveThreshold(t *testing.T) {
	tr := newTracker(t)
	tr.Record(200, true)

	obs, ok := tr.Record(1300, true)
	require.True(t, ok)
	assert.Equal(t, 1100.0, obs.DegradationMs)
	assert.Equal(t, 1, obs.Leak)

	// Exactly at the threshold is not a leak.
	obs, _ = tr.Record(1200, true)
	assert.Equal(t, 0, obs.Leak)

	assert.Equal(t, int64(3), tr.Leaks().Total())
	assert.Equal(t, int64(1), tr.Leaks().Hits())
	assert.Equal(t, int64(3), tr.Degradation().Count)
}

func TestRecord_FailureBeforeBaseline(t *testing.T) {
	tr := newTracker(t)

	obs, ok := tr.Record(50, false)
	assert.False(t, ok)
	assert.Equal(t, Observation{}, obs)

	_, set := tr.Baseline()
	assert.False(t, set)
	assert.Equal(t, int64(0), tr.Degradation().Count)
	assert.Equal(t, int64(0), tr.Leaks().Total())
}

func TestRecord_BaselineIsImmutable(t *testing.T) {
	tr := newTracker(t)
	tr.Record(300, false)
	tr.Record(120, true)

	for _, v := range []float64{1, 5000, 0, 119, 121} {
		tr.Record(v, true)
		tr.Record(v, false)
	}

	base, _ := tr.Baseline()
	assert.Equal(t, 120.0, base)
}

func TestRecord_FailureAfterBaselineStillRecorded(t *testing.T) {
	tr := newTracker(t)
	tr.Record(100, true)

	obs, ok := tr.Record(80, false)
	require.True(t, ok)
	assert.Equal(t, -20.0, obs.DegradationMs)
	assert.Equal(t, 0, obs.Leak)
}

func TestRecord_Concurrent(t *testing.T) {
	tr := newTracker(t)

	const workers, each = 32, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				tr.Record(float64(100+w), true)
			}
		}(w)
	}
	wg.Wait()

	base, ok := tr.Baseline()
	require.True(t, ok)
	assert.GreaterOrEqual(t, base, 100.0)
	assert.Less(t, base, float64(100+workers))
	assert.Equal(t, int64(workers*each), tr.Degradation().Count)
	assert.Equal(t, int64(workers*each), tr.Leaks().Total())
}

func TestTracker_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr, err := New(reg)
	require.NoError(t, err)

	tr.Record(100, true)
	tr.Record(1500, true)

	assert.Equal(t, 100.0, testutil.ToFloat64(tr.baselineGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.leaksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.leakGauge))

	// A second tracker cannot share the registry until the first is closed.
	_, err = New(reg)
	assert.Error(t, err)

	tr.Close()
	tr2, err := New(reg)
	require.NoError(t, err)
	tr2.Close()
}

func TestTracker_DegradationHistogram(t *testing.T) {
	tr := newTracker(t)
	tr.Record(300, false) // before baseline: not observed
	tr.Record(100, true)
	tr.Record(1500, true)
	tr.Record(50, false)

	var m dto.Metric
	require.NoError(t, tr.degradHist.Write(&m))
	h := m.GetHistogram()
	require.NotNil(t, h)
	assert.Equal(t, uint64(3), h.GetSampleCount())
	assert.InDelta(t, 1350.0, h.GetSampleSum(), 1e-9)
}
