package check

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"soakq/internal/phase"
)

// Metric names used by thresholds.
const (
	MetricReqDuration = "http_req_duration"
	MetricReqFailed   = "http_req_failed"
	MetricChecks      = "checks"
	MetricDegradation = "performance_degradation"
)

// Threshold levels, loosest last.
const (
	LevelStrict   = "strict"
	LevelModerate = "moderate"
	LevelRelaxed  = "relaxed"
)

// Levels lists the accepted threshold levels.
var Levels = []string{LevelStrict, LevelModerate, LevelRelaxed}

type metricKind int

const (
	kindTrend metricKind = iota
	kindRate
)

type metricSpec struct {
	kind   metricKind
	tagged bool
}

// known lists every metric a threshold can refer to. Only request
// duration is recorded per phase.
var known = map[string]metricSpec{
	MetricReqDuration: {kind: kindTrend, tagged: true},
	MetricDegradation: {kind: kindTrend},
	MetricReqFailed:   {kind: kindRate},
	MetricChecks:      {kind: kindRate},
}

var (
	ErrUnknownMetric = errors.New("unknown metric")
	ErrUnknownTag    = errors.New("unsupported tag")
	ErrUnknownStat   = errors.New("unsupported stat")
)

// Threshold is a parsed expression such as "p(95)<800" or "rate>0.95".
type Threshold struct {
	Source string
	Stat   string
	Op     string
	Value  float64
}

var thresholdRe = regexp.MustCompile(`^\s*(p\(\d+(?:\.\d+)?\)|avg|min|max|med|rate|count)\s*(<=|>=|<|>|==)\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseThreshold parses one threshold expression.
func ParseThreshold(expr string) (Threshold, error) {
	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q", expr)
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value in %q: %w", expr, err)
	}
	if q, ok := Percentile(m[1]); ok && (q < 0 || q > 100) {
		return Threshold{}, fmt.Errorf("percentile out of range in %q", expr)
	}
	return Threshold{Source: expr, Stat: m[1], Op: m[2], Value: v}, nil
}

// Percentile extracts N from a "p(N)" stat.
func Percentile(stat string) (float64, bool) {
	if !strings.HasPrefix(stat, "p(") || !strings.HasSuffix(stat, ")") {
		return 0, false
	}
	q, err := strconv.ParseFloat(stat[2:len(stat)-1], 64)
	if err != nil {
		return 0, false
	}
	return q, true
}

// SplitMetric turns "http_req_duration{type:baseline}" into the metric
// name and the phase tag value. Both "type" and "phase" are accepted as
// the tag key. Unknown metrics, unknown tag keys and tags on untagged
// metrics are errors.
func SplitMetric(key string) (name, tag string, err error) {
	name = key
	if i := strings.IndexByte(key, '{'); i >= 0 {
		if !strings.HasSuffix(key, "}") {
			return "", "", fmt.Errorf("%w: malformed key %q", ErrUnknownTag, key)
		}
		name = key[:i]
		k, v, ok := strings.Cut(key[i+1:len(key)-1], ":")
		if !ok || v == "" || (k != "type" && k != "phase") {
			return "", "", fmt.Errorf("%w: %q", ErrUnknownTag, key)
		}
		tag = v
	}

	spec, ok := known[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	if tag == "" {
		return name, "", nil
	}
	if !spec.tagged {
		return "", "", fmt.Errorf("%w: %s is not tagged", ErrUnknownTag, name)
	}
	for _, p := range phase.All {
		if string(p) == tag {
			return name, tag, nil
		}
	}
	return "", "", fmt.Errorf("%w: no phase %q", ErrUnknownTag, tag)
}

func statAllowed(kind metricKind, stat string) bool {
	if _, ok := Percentile(stat); ok {
		return kind == kindTrend
	}
	switch stat {
	case "avg", "min", "max", "med":
		return kind == kindTrend
	case "rate":
		return kind == kindRate
	case "count":
		return true
	}
	return false
}

func validate(key, expr string) (Threshold, error) {
	name, _, err := SplitMetric(key)
	if err != nil {
		return Threshold{}, err
	}
	th, err := ParseThreshold(expr)
	if err != nil {
		return Threshold{}, err
	}
	if !statAllowed(known[name].kind, th.Stat) {
		return Threshold{}, fmt.Errorf("%w: %s on %s", ErrUnknownStat, th.Stat, name)
	}
	return th, nil
}

// Passes compares an observed stat value against the threshold.
func (t Threshold) Passes(observed float64) bool {
	switch t.Op {
	case "<":
		return observed < t.Value
	case "<=":
		return observed <= t.Value
	case ">":
		return observed > t.Value
	case ">=":
		return observed >= t.Value
	case "==":
		return observed == t.Value
	}
	return false
}

// Source provides aggregated values for a metric key, for example
// "http_req_duration" or "http_req_duration{type:baseline}". stat is one
// of the Threshold stats such as "p(95)" or "rate". Keys and stats are
// validated before Stat is called, so ok is false only when the metric
// has no samples yet.
type Source interface {
	Stat(metric, stat string) (float64, bool)
}

// Result is the evaluation of one threshold.
type Result struct {
	Metric    string  `json:"metric"`
	Threshold string  `json:"threshold"`
	Observed  float64 `json:"observed"`
	Passed    bool    `json:"passed"`
	NoData    bool    `json:"no_data,omitempty"`
}

// Thresholds maps metric keys to their expressions.
type Thresholds map[string][]string

// SoakThresholds are the defaults for a soak run. Later soak phases get
// more headroom so that slow drift still passes while a leak does not.
func SoakThresholds() Thresholds {
	return Thresholds{
		MetricReqDuration:                    {"p(95)<1000"},
		MetricReqDuration + "{type:baseline}": {"p(95)<800"},
		MetricReqDuration + "{type:midpoint}": {"p(95)<1000"},
		MetricReqDuration + "{type:endgame}":  {"p(95)<1200"},
		MetricReqFailed:                      {"rate<0.01"},
		MetricChecks:                         {"rate>0.95"},
		MetricDegradation:                    {"p(95)<500"},
	}
}

// StressThresholds tolerate the failures expected near the breaking point.
func StressThresholds() Thresholds {
	return Thresholds{
		MetricReqDuration: {"p(95)<5000"},
		MetricReqFailed:   {"rate<0.20"},
	}
}

// SpikeThresholds allow slow responses during the burst but still expect
// most checks to pass.
func SpikeThresholds() Thresholds {
	return Thresholds{
		MetricReqDuration: {"p(95)<2000"},
		MetricReqFailed:   {"rate<0.05"},
		MetricChecks:      {"rate>0.90"},
	}
}

// LoadThresholds are the defaults for a constant-load run.
func LoadThresholds() Thresholds {
	return Thresholds{
		MetricReqDuration: {"p(95)<500"},
		MetricReqFailed:   {"rate<0.01"},
		MetricChecks:      {"rate>0.95"},
	}
}

// LevelThresholds returns the request-level thresholds for a named level.
func LevelThresholds(level string) (Thresholds, error) {
	switch level {
	case LevelStrict:
		return Thresholds{
			MetricReqDuration: {"p(95)<300", "p(99)<500"},
			MetricReqFailed:   {"rate<0.01"},
			MetricChecks:      {"rate>0.99"},
		}, nil
	case LevelModerate:
		return Thresholds{
			MetricReqDuration: {"p(95)<500", "p(99)<1000"},
			MetricReqFailed:   {"rate<0.05"},
			MetricChecks:      {"rate>0.95"},
		}, nil
	case LevelRelaxed:
		return Thresholds{
			MetricReqDuration: {"p(95)<1000", "p(99)<2000"},
			MetricReqFailed:   {"rate<0.10"},
			MetricChecks:      {"rate>0.90"},
		}, nil
	}
	return nil, fmt.Errorf("unknown threshold level %q", level)
}

// Merge returns a copy of ts with every key of o replacing its entry.
func (ts Thresholds) Merge(o Thresholds) Thresholds {
	out := make(Thresholds, len(ts)+len(o))
	for k, v := range ts {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Validate checks every key and expression without evaluating them.
// Unknown metrics, tags and stats that the metric cannot produce are
// all rejected.
func (ts Thresholds) Validate() error {
	var errs []error
	for _, metric := range ts.keys() {
		for _, e := range ts[metric] {
			if _, err := validate(metric, e); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", metric, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (ts Thresholds) keys() []string {
	keys := make([]string, 0, len(ts))
	for k := range ts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Evaluate checks every threshold against src. Thresholds are validated
// first, so a typo fails the evaluation instead of silently passing.
// Known metrics with no samples are reported as passing with NoData set.
// Results are sorted by metric key.
func (ts Thresholds) Evaluate(src Source) ([]Result, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}

	var results []Result
	for _, metric := range ts.keys() {
		for _, expr := range ts[metric] {
			th, err := ParseThreshold(expr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", metric, err)
			}
			v, ok := src.Stat(metric, th.Stat)
			res := Result{Metric: metric, Threshold: expr, Observed: v}
			if !ok {
				res.NoData = true
				res.Passed = true
			} else {
				res.Passed = th.Passes(v)
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
