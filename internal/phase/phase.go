package phase

// Phase labels a point in the ramp-up / soak / ramp-down timeline.
// The soak stage is split into three equal windows.
type Phase string

const (
	RampUp   Phase = "ramp_up"
	Baseline Phase = "baseline"
	Midpoint Phase = "midpoint"
	Endgame  Phase = "endgame"
	RampDown Phase = "ramp_down"
)

// All lists the phases in timeline order.
var All = []Phase{RampUp, Baseline, Midpoint, Endgame, RampDown}

func (p Phase) String() string {
	return string(p)
}

// Schedule holds the stage durations in seconds.
type Schedule struct {
	RampUp   int64
	Soak     int64
	RampDown int64
}

// NewSchedule parses stage durations like "2m" or "10m".
// Unparseable values become zero-length stages.
func NewSchedule(rampUp, soak, rampDown string) Schedule {
	return Schedule{
		RampUp:   ParseDuration(rampUp),
		Soak:     ParseDuration(soak),
		RampDown: ParseDuration(rampDown),
	}
}

// Total is the nominal length of the whole run in seconds.
func (s Schedule) Total() int64 {
	return s.RampUp + s.Soak + s.RampDown
}

// Classify maps elapsed seconds onto a phase. First match wins; anything
// past the end of the soak window, including overtime, is RampDown.
func Classify(elapsed int64, s Schedule) Phase {
	e := float64(elapsed)
	rampUp := float64(s.RampUp)
	third := float64(s.Soak) / 3

	switch {
	case e < rampUp:
		return RampUp
	case e < rampUp+third:
		return Baseline
	case e < rampUp+2*third:
		return Midpoint
	case e < rampUp+float64(s.Soak):
		return Endgame
	default:
		return RampDown
	}
}
