package profile

import (
	"fmt"
	"time"

	"soakq/internal/phase"
)

// Soak ramps to vus, holds for the soak window and ramps back down.
// Durations use the "<int>[smh]" form; unparseable ones are zero-length.
func Soak(rampUp, soak, rampDown string, vus int) Profile {
	sec := func(s string) time.Duration {
		return time.Duration(phase.ParseDuration(s)) * time.Second
	}
	return Profile{
		Name: NameSoak,
		Stages: []Stage{
			{Duration: sec(rampUp), Target: vus},
			{Duration: sec(soak), Target: vus},
			{Duration: sec(rampDown), Target: 0},
		},
	}
}

// Stress climbs in steps to 200 VUs to find the breaking point, holds
// there, then recovers.
func Stress() Profile {
	return Profile{
		Name: NameStress,
		Stages: []Stage{
			{Duration: 30 * time.Second, Target: 10},
			{Duration: time.Minute, Target: 50},
			{Duration: time.Minute, Target: 100},
			{Duration: time.Minute, Target: 150},
			{Duration: time.Minute, Target: 200},
			{Duration: 2 * time.Minute, Target: 200},
			{Duration: 30 * time.Second, Target: 0},
		},
	}
}

// Spike jumps from a light load to 100 VUs within seconds, holds the
// burst, and drops back to check recovery.
func Spike() Profile {
	return Profile{
		Name: NameSpike,
		Stages: []Stage{
			{Duration: 10 * time.Second, Target: 10},
			{Duration: 5 * time.Second, Target: 100},
			{Duration: 30 * time.Second, Target: 100},
			{Duration: 5 * time.Second, Target: 10},
			{Duration: 20 * time.Second, Target: 10},
			{Duration: 10 * time.Second, Target: 0},
		},
	}
}

// Load holds a constant VU count for the duration the intensity names.
func Load(intensity string) (Profile, error) {
	var (
		vus int
		d   time.Duration
	)
	switch intensity {
	case IntensityLight:
		vus, d = 10, 30*time.Second
	case IntensityMedium:
		vus, d = 50, 2*time.Minute
	case IntensityHeavy:
		vus, d = 100, 5*time.Minute
	default:
		return Profile{}, fmt.Errorf("unknown load intensity %q", intensity)
	}
	return Constant(vus, d), nil
}

// Constant starts vus at once and keeps them for d.
func Constant(vus int, d time.Duration) Profile {
	return Profile{
		Name: NameLoad,
		Stages: []Stage{
			{Duration: 0, Target: vus},
			{Duration: d, Target: vus},
		},
	}
}

// Custom wraps explicit stages.
func Custom(stages []Stage) Profile {
	return Profile{Name: NameCustom, Stages: stages}
}
