package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]map[string]float64

func (f fakeSource) Stat(metric, stat string) (float64, bool) {
	m, ok := f[metric]
	if !ok {
		return 0, false
	}
	v, ok := m[stat]
	return v, ok
}

func TestParseThreshold(t *testing.T) {
	th, err := ParseThreshold("p(95)<800")
	require.NoError(t, err)
	assert.Equal(t, Threshold{Source: "p(95)<800", Stat: "p(95)", Op: "<", Value: 800}, th)

	th, err = ParseThreshold(" rate > 0.95 ")
	require.NoError(t, err)
	assert.Equal(t, "rate", th.Stat)
	assert.Equal(t, ">", th.Op)
	assert.Equal(t, 0.95, th.Value)

	th, err = ParseThreshold("p(99.9)<=1500")
	require.NoError(t, err)
	assert.Equal(t, "p(99.9)", th.Stat)
	assert.Equal(t, "<=", th.Op)

	for _, bad := range []string{"", "p95<1", "rate<", "avg~5", "median<3"} {
		_, err := ParseThreshold(bad)
		assert.Error(t, err, bad)
	}
}

func TestThreshold_Passes(t *testing.T) {
	lt := Threshold{Op: "<", Value: 10}
	assert.True(t, lt.Passes(9.99))
	assert.False(t, lt.Passes(10))

	ge := Threshold{Op: ">=", Value: 0.95}
	assert.True(t, ge.Passes(0.95))
	assert.False(t, ge.Passes(0.9))

	assert.False(t, Threshold{Op: "!"}.Passes(1))
}

func TestSoakThresholds_Evaluate(t *testing.T) {
	ts := SoakThresholds()
	require.NoError(t, ts.Validate())

	src := fakeSource{
		MetricReqDuration:                    {"p(95)": 900},
		MetricReqDuration + "{type:baseline}": {"p(95)": 850},
		MetricReqDuration + "{type:midpoint}": {"p(95)": 700},
		MetricReqFailed:                      {"rate": 0.001},
		MetricChecks:                         {"rate": 0.99},
		MetricDegradation:                    {"p(95)": 120},
	}

	results, err := ts.Evaluate(src)
	require.NoError(t, err)
	assert.Len(t, results, 7)
	assert.False(t, AllPassed(results))

	byMetric := make(map[string]Result)
	for _, r := range results {
		byMetric[r.Metric] = r
	}
	assert.False(t, byMetric[MetricReqDuration+"{type:baseline}"].Passed)
	assert.True(t, byMetric[MetricReqDuration+"{type:endgame}"].NoData)
	assert.True(t, byMetric[MetricReqDuration+"{type:endgame}"].Passed)
	assert.True(t, byMetric[MetricChecks].Passed)
}

func TestThresholds_InvalidExpression(t *testing.T) {
	ts := Thresholds{"x": {"nope"}}
	assert.Error(t, ts.Validate())

	_, err := ts.Evaluate(fakeSource{})
	assert.Error(t, err)
}

func TestThresholds_RejectsUnknownKeysAndStats(t *testing.T) {
	cases := []struct {
		name string
		ts   Thresholds
		want error
	}{
		{"misspelled metric", Thresholds{"http_req_durration": {"p(95)<1"}}, ErrUnknownMetric},
		{"rate on a trend", Thresholds{MetricReqDuration: {"rate<0.01"}}, ErrUnknownStat},
		{"percentile on a rate", Thresholds{MetricReqFailed: {"p(95)<1"}}, ErrUnknownStat},
		{"unknown phase tag", Thresholds{MetricReqDuration + "{type:soak}": {"p(95)<1"}}, ErrUnknownTag},
		{"unknown tag key", Thresholds{MetricReqDuration + "{status:200}": {"p(95)<1"}}, ErrUnknownTag},
		{"tag on untagged metric", Thresholds{MetricChecks + "{type:baseline}": {"rate>0.9"}}, ErrUnknownTag},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.ts.Validate(), tc.want)

			results, err := tc.ts.Evaluate(fakeSource{})
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, results)
		})
	}
}

func TestThresholds_KnownMetricWithoutSamples(t *testing.T) {
	ts := Thresholds{
		MetricDegradation:                    {"p(75)<500", "avg<100"},
		MetricReqDuration + "{phase:endgame}": {"med<300"},
	}
	require.NoError(t, ts.Validate())

	results, err := ts.Evaluate(fakeSource{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.NoData, r.Threshold)
		assert.True(t, r.Passed, r.Threshold)
	}
}

func TestParseThreshold_PercentileRange(t *testing.T) {
	_, err := ParseThreshold("p(101)<1")
	assert.Error(t, err)

	_, err = ParseThreshold("p(0)<1")
	assert.NoError(t, err)

	_, err = ParseThreshold("p(100)<1")
	assert.NoError(t, err)
}

func TestSplitMetric(t *testing.T) {
	name, tag, err := SplitMetric("http_req_duration{type:baseline}")
	require.NoError(t, err)
	assert.Equal(t, MetricReqDuration, name)
	assert.Equal(t, "baseline", tag)

	name, tag, err = SplitMetric("checks")
	require.NoError(t, err)
	assert.Equal(t, MetricChecks, name)
	assert.Empty(t, tag)

	_, _, err = SplitMetric("http_req_duration{type:baseline")
	assert.ErrorIs(t, err, ErrUnknownTag)

	_, _, err = SplitMetric("http_req_duration{type:}")
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestLevelThresholds(t *testing.T) {
	for _, level := range Levels {
		ts, err := LevelThresholds(level)
		require.NoError(t, err, level)
		assert.NoError(t, ts.Validate(), level)
		assert.Len(t, ts[MetricReqDuration], 2, level)
	}

	strict, _ := LevelThresholds(LevelStrict)
	assert.Equal(t, []string{"rate>0.99"}, strict[MetricChecks])

	_, err := LevelThresholds("lenient")
	assert.Error(t, err)
}

func TestPresetThresholds_Validate(t *testing.T) {
	for name, ts := range map[string]Thresholds{
		"soak":   SoakThresholds(),
		"stress": StressThresholds(),
		"spike":  SpikeThresholds(),
		"load":   LoadThresholds(),
	} {
		assert.NoError(t, ts.Validate(), name)
	}
}

func TestThresholds_Merge(t *testing.T) {
	relaxed, err := LevelThresholds(LevelRelaxed)
	require.NoError(t, err)

	base := SoakThresholds()
	merged := base.Merge(relaxed)

	assert.Equal(t, []string{"p(95)<1000", "p(99)<2000"}, merged[MetricReqDuration])
	assert.Equal(t, []string{"p(95)<800"}, merged[MetricReqDuration+"{type:baseline}"])
	assert.Equal(t, []string{"p(95)<500"}, merged[MetricDegradation])
	assert.Equal(t, []string{"p(95)<1000"}, base[MetricReqDuration])
}
