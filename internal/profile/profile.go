// Package profile describes how many virtual users a run keeps busy over
// time. A profile is an ordered list of stages; each stage moves the VU
// count linearly from the previous stage's target to its own.
package profile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"soakq/internal/phase"
)

// Profile names.
const (
	NameSoak   = "soak"
	NameStress = "stress"
	NameSpike  = "spike"
	NameLoad   = "load"
	NameCustom = "custom"
)

// Names lists the presets that can be selected by name.
var Names = []string{NameSoak, NameStress, NameSpike, NameLoad}

// Load intensities.
const (
	IntensityLight  = "light"
	IntensityMedium = "medium"
	IntensityHeavy  = "heavy"
)

// Intensities lists the accepted load intensities.
var Intensities = []string{IntensityLight, IntensityMedium, IntensityHeavy}

type Stage struct {
	Duration time.Duration `json:"duration"`
	Target   int           `json:"target"`
}

func (s Stage) String() string {
	return fmt.Sprintf("%s:%d", s.Duration, s.Target)
}

type Profile struct {
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

// Total is the summed duration of every stage.
func (p Profile) Total() time.Duration {
	var d time.Duration
	for _, s := range p.Stages {
		d += s.Duration
	}
	return d
}

// MaxTarget is the peak VU count, which is also how many VU goroutines a
// run needs.
func (p Profile) MaxTarget() int {
	m := 0
	for _, s := range p.Stages {
		if s.Target > m {
			m = s.Target
		}
	}
	return m
}

// Target returns the VU count at elapsed. The count starts at zero,
// interpolates linearly within each stage, rounds up, and drops to zero
// once every stage has finished. Zero-length stages jump straight to
// their target.
func (p Profile) Target(elapsed time.Duration) int {
	var start time.Duration
	prev := 0
	for _, s := range p.Stages {
		end := start + s.Duration
		if elapsed < end {
			frac := float64(elapsed-start) / float64(s.Duration)
			if frac < 0 {
				frac = 0
			}
			v := float64(prev) + float64(s.Target-prev)*frac
			return int(math.Ceil(v))
		}
		prev = s.Target
		start = end
	}
	return 0
}

// Schedule derives the phase timeline. Ramp-up lasts until the peak is
// first reached, the soak window holds until the peak is last left, and
// whatever follows is ramp-down.
func (p Profile) Schedule() phase.Schedule {
	peak := p.MaxTarget()
	if peak == 0 {
		return phase.Schedule{}
	}

	var (
		elapsed   time.Duration
		firstPeak = time.Duration(-1)
		lastPeak  time.Duration
	)
	for _, s := range p.Stages {
		elapsed += s.Duration
		if s.Target == peak {
			if firstPeak < 0 {
				firstPeak = elapsed
			}
			lastPeak = elapsed
		}
	}

	secs := func(d time.Duration) int64 { return int64(d / time.Second) }
	return phase.Schedule{
		RampUp:   secs(firstPeak),
		Soak:     secs(lastPeak - firstPeak),
		RampDown: secs(p.Total() - lastPeak),
	}
}

// Validate rejects profiles that can never start a VU.
func (p Profile) Validate() error {
	if len(p.Stages) == 0 {
		return errors.New("profile has no stages")
	}
	var errs []error
	for i, s := range p.Stages {
		if s.Duration < 0 {
			errs = append(errs, fmt.Errorf("stage %d: negative duration %s", i+1, s.Duration))
		}
		if s.Target < 0 {
			errs = append(errs, fmt.Errorf("stage %d: negative target %d", i+1, s.Target))
		}
	}
	if p.MaxTarget() == 0 {
		errs = append(errs, errors.New("profile never targets any VUs"))
	}
	if p.Total() <= 0 {
		errs = append(errs, errors.New("profile has zero total duration"))
	}
	return errors.Join(errs...)
}

func (p Profile) String() string {
	parts := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		parts[i] = s.String()
	}
	return p.Name + " [" + strings.Join(parts, " ") + "]"
}

// ParseStages parses "<duration>:<target>" entries such as "30s:10" or
// "1m30s:50".
func ParseStages(raw []string) ([]Stage, error) {
	stages := make([]Stage, 0, len(raw))
	for _, r := range raw {
		d, t, ok := strings.Cut(strings.TrimSpace(r), ":")
		if !ok {
			return nil, fmt.Errorf("stage %q: want <duration>:<target>", r)
		}
		dur, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", r, err)
		}
		target, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", r, err)
		}
		stages = append(stages, Stage{Duration: dur, Target: target})
	}
	return stages, nil
}
