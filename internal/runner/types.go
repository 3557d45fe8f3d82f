package runner

import (
	"fmt"
	"time"

	"soakq/internal/phase"
	"soakq/internal/profile"
)

// Clock modes.
const (
	ClockWall      = "wall"
	ClockIteration = "iteration"
)

type Config struct {
	BaseURL    string            `json:"base_url"`
	MainPath   string            `json:"main_path"`
	DetailPath string            `json:"detail_path"` // template, see TemplateEngine
	Headers    map[string]string `json:"headers,omitempty"`

	// Load profile: soak (default), stress, spike or load. Explicit
	// Stages override the preset.
	Profile   string          `json:"profile,omitempty"`
	Intensity string          `json:"intensity,omitempty"`
	Stages    []profile.Stage `json:"stages,omitempty"`

	// Soak stage durations as "<int>[smh]"
	RampUp   string `json:"ramp_up"`
	SoakTime string `json:"soak_time"`
	RampDown string `json:"ramp_down"`

	VUs        int           `json:"vus"`
	TimeoutSec int           `json:"timeout_sec"`
	ThinkMin   time.Duration `json:"think_min"`
	ThinkMax   time.Duration `json:"think_max"`

	// Elapsed-time source for phase tagging: "wall" or "iteration"
	Clock               string `json:"clock"`
	SecondsPerIteration int64  `json:"seconds_per_iteration,omitempty"`

	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	OutPrefix          string `json:"out_prefix,omitempty"`
	KeepResults        bool   `json:"keep_results"`
}

// VUProfile resolves the configured load profile.
func (c Config) VUProfile() (profile.Profile, error) {
	if len(c.Stages) > 0 {
		return profile.Custom(c.Stages), nil
	}
	switch c.Profile {
	case "", profile.NameSoak:
		return profile.Soak(c.RampUp, c.SoakTime, c.RampDown, c.VUs), nil
	case profile.NameStress:
		return profile.Stress(), nil
	case profile.NameSpike:
		return profile.Spike(), nil
	case profile.NameLoad:
		return profile.Load(c.Intensity)
	}
	return profile.Profile{}, fmt.Errorf("unknown profile %q", c.Profile)
}

// Schedule derives the phase timeline from the load profile. An invalid
// profile yields an empty schedule.
func (c Config) Schedule() phase.Schedule {
	p, err := c.VUProfile()
	if err != nil {
		return phase.Schedule{}
	}
	return p.Schedule()
}

// TotalDuration is the nominal length of the run.
func (c Config) TotalDuration() time.Duration {
	p, err := c.VUProfile()
	if err != nil {
		return 0
	}
	return p.Total()
}

// Endpoint tags.
const (
	EndpointMain   = "main"
	EndpointDetail = "detail"
)

type ExperimentResult struct {
	TimeStamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency"`
	Status    int           `json:"status"`
	Success   bool          `json:"success"`
	Bytes     int64         `json:"bytes"`
	VU        int           `json:"vu"`
	Iteration int64         `json:"iteration"`
	Phase     phase.Phase   `json:"phase"`
	Endpoint  string        `json:"endpoint"`
	URL       string        `json:"url"`
	RequestID string        `json:"request_id"`
	Err       string        `json:"error,omitempty"`

	// Set once a baseline exists
	DegradationMs *float64 `json:"degradation_ms,omitempty"`
}
