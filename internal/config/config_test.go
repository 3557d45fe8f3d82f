package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soakq/internal/check"
	"soakq/internal/profile"
	"soakq/internal/runner"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "https://test-api.k6.io", cfg.BaseURL)
	assert.Equal(t, "2m", cfg.RampUp)
	assert.Equal(t, "10m", cfg.SoakTime)
	assert.Equal(t, "2m", cfg.RampDown)
	assert.Equal(t, 50, cfg.VUs)
	assert.Equal(t, time.Second, cfg.ThinkMin)
	assert.Equal(t, 2*time.Second, cfg.ThinkMax)
	assert.Equal(t, runner.ClockWall, cfg.Clock)
	assert.False(t, cfg.KeepResults)
	assert.Equal(t, 14*time.Minute, cfg.TotalDuration())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("SOAK_TIME", "2h")
	t.Setenv("VUS", "7")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "2h", cfg.SoakTime)
	assert.Equal(t, 7, cfg.VUs)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soakq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base-url: http://staging.internal
vus: 5
clock: iteration
out: nightly
header:
  - "Authorization: Bearer abc"
thresholds:
  http_req_duration:
    - p(95)<2000
`), 0644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://staging.internal", cfg.BaseURL)
	assert.Equal(t, 5, cfg.VUs)
	assert.Equal(t, runner.ClockIteration, cfg.Clock)
	assert.True(t, cfg.KeepResults)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.Headers)

	ts, err := Thresholds(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"p(95)<2000"}, ts[check.MetricReqDuration])
	assert.Equal(t, []string{"rate>0.95"}, ts[check.MetricChecks])
}

func TestLoad_UnparseableDurationIsZero(t *testing.T) {
	v := newViper()
	v.Set(KeyRampDown, "soon")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Schedule().RampDown)
}

func TestValidate(t *testing.T) {
	good := runner.Config{BaseURL: "http://x", VUs: 1, TimeoutSec: 1, Clock: runner.ClockWall}
	assert.NoError(t, Validate(good))

	bad := good
	bad.BaseURL = "not a url"
	bad.VUs = 0
	bad.Clock = "sundial"
	bad.ThinkMin, bad.ThinkMax = 2*time.Second, time.Second
	err := Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base url")
	assert.Contains(t, err.Error(), "vus")
	assert.Contains(t, err.Error(), "clock")
	assert.Contains(t, err.Error(), "think time")
}

func TestThresholds_Invalid(t *testing.T) {
	v := newViper()
	v.Set(KeyThresholds, map[string]interface{}{"checks": []string{"rate??"}})
	_, err := Thresholds(v)
	assert.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders([]string{"X-A: 1", "bad", "X-B:two:parts"})
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "two:parts"}, h)
}

func TestThresholds_UnknownMetricInConfigFile(t *testing.T) {
	v := newViper()
	v.Set(KeyThresholds, map[string]interface{}{
		"http_req_durration":           []string{"p(95)<1"},
		"http_req_duration{type:soak}": []string{"p(95)<1"},
		"performance_degradation":      []string{"rate<0.1"},
	})
	_, err := Thresholds(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, check.ErrUnknownMetric)
	assert.ErrorIs(t, err, check.ErrUnknownTag)
	assert.ErrorIs(t, err, check.ErrUnknownStat)
}

func TestThresholds_ProfileAndLevel(t *testing.T) {
	v := newViper()
	v.Set(KeyProfile, profile.NameSpike)
	ts, err := Thresholds(v)
	require.NoError(t, err)
	assert.Equal(t, check.SpikeThresholds(), ts)

	v.Set(KeyThresholdLevel, check.LevelStrict)
	ts, err = Thresholds(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"p(95)<300", "p(99)<500"}, ts[check.MetricReqDuration])
	assert.Equal(t, []string{"rate>0.99"}, ts[check.MetricChecks])

	v.Set(KeyProfile, profile.NameSoak)
	v.Set(KeyThresholdLevel, check.LevelRelaxed)
	v.Set(KeyThresholds, map[string]interface{}{"checks": []string{"rate>0.5"}})
	ts, err = Thresholds(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"p(95)<1000", "p(99)<2000"}, ts[check.MetricReqDuration])
	assert.Equal(t, []string{"p(95)<1200"}, ts[check.MetricReqDuration+"{type:endgame}"])
	assert.Equal(t, []string{"rate>0.5"}, ts[check.MetricChecks])

	v.Set(KeyThresholdLevel, "lenient")
	_, err = Thresholds(v)
	assert.Error(t, err)
}

func TestLoad_Profiles(t *testing.T) {
	v := newViper()
	v.Set(KeyProfile, profile.NameStress)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, cfg.TotalDuration())

	v = newViper()
	v.Set(KeyProfile, profile.NameLoad)
	v.Set(KeyIntensity, profile.IntensityHeavy)
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.TotalDuration())

	v = newViper()
	v.Set(KeyStages, []string{"30s:10", "1m:10", "30s:0"})
	cfg, err = Load(v)
	require.NoError(t, err)
	require.Len(t, cfg.Stages, 3)
	assert.Equal(t, 2*time.Minute, cfg.TotalDuration())

	v = newViper()
	v.Set(KeyStages, []string{"30s"})
	_, err = Load(v)
	assert.Error(t, err)

	v = newViper()
	v.Set(KeyProfile, "marathon")
	v.Set(KeyIntensity, "extreme")
	_, err = Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile must be one of")

	v = newViper()
	v.Set(KeyProfile, profile.NameLoad)
	v.Set(KeyIntensity, "extreme")
	_, err = Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intensity")

	v = newViper()
	v.Set(KeyStages, []string{"30s:0"})
	_, err = Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages")
}
