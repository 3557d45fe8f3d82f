// Package config assembles a runner.Config from flags, environment
// variables and an optional config file, all resolved through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"soakq/internal/check"
	"soakq/internal/phase"
	"soakq/internal/profile"
	"soakq/internal/runner"
)

// Keys shared by flags, config file entries and defaults.
const (
	KeyBaseURL        = "base-url"
	KeyMainPath       = "main-path"
	KeyDetailPath     = "detail-path"
	KeyProfile        = "profile"
	KeyIntensity      = "intensity"
	KeyStages         = "stage"
	KeyRampUp         = "ramp-up"
	KeySoakTime       = "soak-time"
	KeyRampDown       = "ramp-down"
	KeyVUs            = "vus"
	KeyTimeout        = "timeout"
	KeyThinkMin       = "think-min"
	KeyThinkMax       = "think-max"
	KeyClock          = "clock"
	KeySecsPerIter    = "seconds-per-iteration"
	KeyInsecure       = "insecure"
	KeyHeaders        = "header"
	KeyOut            = "out"
	KeyThresholds     = "thresholds"
	KeyThresholdLevel = "threshold-level"
)

// envNames maps keys to the environment variables the soak scripts use.
var envNames = map[string]string{
	KeyBaseURL:  "BASE_URL",
	KeyRampUp:   "RAMP_UP",
	KeySoakTime: "SOAK_TIME",
	KeyRampDown: "RAMP_DOWN",
	KeyVUs:      "VUS",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "https://test-api.k6.io")
	v.SetDefault(KeyMainPath, "/public/crocodiles/")
	v.SetDefault(KeyDetailPath, "/public/crocodiles/{{randomInt 1 11}}/")
	v.SetDefault(KeyProfile, profile.NameSoak)
	v.SetDefault(KeyIntensity, profile.IntensityMedium)
	v.SetDefault(KeyRampUp, "2m")
	v.SetDefault(KeySoakTime, "10m")
	v.SetDefault(KeyRampDown, "2m")
	v.SetDefault(KeyVUs, 50)
	v.SetDefault(KeyTimeout, 60)
	v.SetDefault(KeyThinkMin, time.Second)
	v.SetDefault(KeyThinkMax, 2*time.Second)
	v.SetDefault(KeyClock, runner.ClockWall)
	v.SetDefault(KeySecsPerIter, phase.DefaultSecondsPerIteration)
	v.SetDefault(KeyInsecure, true)

	for key, env := range envNames {
		v.BindEnv(key, env)
	}
}

// Load builds and validates the runner config.
func Load(v *viper.Viper) (runner.Config, error) {
	stages, err := profile.ParseStages(v.GetStringSlice(KeyStages))
	if err != nil {
		return runner.Config{}, err
	}

	cfg := runner.Config{
		BaseURL:             strings.TrimSpace(v.GetString(KeyBaseURL)),
		MainPath:            v.GetString(KeyMainPath),
		DetailPath:          v.GetString(KeyDetailPath),
		Profile:             v.GetString(KeyProfile),
		Intensity:           v.GetString(KeyIntensity),
		Stages:              stages,
		RampUp:              v.GetString(KeyRampUp),
		SoakTime:            v.GetString(KeySoakTime),
		RampDown:            v.GetString(KeyRampDown),
		VUs:                 v.GetInt(KeyVUs),
		TimeoutSec:          v.GetInt(KeyTimeout),
		ThinkMin:            v.GetDuration(KeyThinkMin),
		ThinkMax:            v.GetDuration(KeyThinkMax),
		Clock:               v.GetString(KeyClock),
		SecondsPerIteration: v.GetInt64(KeySecsPerIter),
		InsecureSkipVerify:  v.GetBool(KeyInsecure),
		OutPrefix:           v.GetString(KeyOut),
		Headers:             ParseHeaders(v.GetStringSlice(KeyHeaders)),
	}
	cfg.KeepResults = cfg.OutPrefix != ""

	if err := Validate(cfg); err != nil {
		return runner.Config{}, err
	}
	return cfg, nil
}

// Thresholds layers, lowest first, the profile's defaults, the named
// threshold level and the "thresholds" map from the config file. Each
// layer replaces whole metric entries of the one below.
func Thresholds(v *viper.Viper) (check.Thresholds, error) {
	ts := profileThresholds(v.GetString(KeyProfile), len(v.GetStringSlice(KeyStages)) > 0)

	if level := v.GetString(KeyThresholdLevel); level != "" {
		lt, err := check.LevelThresholds(level)
		if err != nil {
			return nil, err
		}
		ts = ts.Merge(lt)
	}
	ts = ts.Merge(check.Thresholds(v.GetStringMapStringSlice(KeyThresholds)))

	if err := ts.Validate(); err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	return ts, nil
}

// profileThresholds picks the defaults for a profile. Explicit stages
// still produce soak phases, so they keep the soak defaults.
func profileThresholds(name string, custom bool) check.Thresholds {
	if custom {
		return check.SoakThresholds()
	}
	switch name {
	case profile.NameStress:
		return check.StressThresholds()
	case profile.NameSpike:
		return check.SpikeThresholds()
	case profile.NameLoad:
		return check.LoadThresholds()
	}
	return check.SoakThresholds()
}

// Validate rejects configurations the runner cannot execute. Soak stage
// durations are never rejected: unparseable ones count as zero.
func Validate(cfg runner.Config) error {
	var errs []error

	u, err := url.Parse(cfg.BaseURL)
	if cfg.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q is not an absolute URL", cfg.BaseURL))
	}
	if cfg.VUs <= 0 {
		errs = append(errs, fmt.Errorf("vus must be positive, got %d", cfg.VUs))
	}
	if cfg.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", cfg.TimeoutSec))
	}
	if cfg.ThinkMin < 0 || cfg.ThinkMax < cfg.ThinkMin {
		errs = append(errs, fmt.Errorf("think time range %s..%s is invalid", cfg.ThinkMin, cfg.ThinkMax))
	}
	if cfg.Clock != runner.ClockWall && cfg.Clock != runner.ClockIteration {
		errs = append(errs, fmt.Errorf("clock must be %q or %q, got %q", runner.ClockWall, runner.ClockIteration, cfg.Clock))
	}
	if cfg.Profile != "" && !slices.Contains(profile.Names, cfg.Profile) {
		errs = append(errs, fmt.Errorf("profile must be one of %s, got %q", strings.Join(profile.Names, ", "), cfg.Profile))
	}
	if cfg.Profile == profile.NameLoad && !slices.Contains(profile.Intensities, cfg.Intensity) {
		errs = append(errs, fmt.Errorf("intensity must be one of %s, got %q", strings.Join(profile.Intensities, ", "), cfg.Intensity))
	}
	if len(cfg.Stages) > 0 {
		if err := profile.Custom(cfg.Stages).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stages: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ParseHeaders turns "Key: Value" entries into a map; malformed ones are skipped.
func ParseHeaders(raw []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
