package phase

import (
	"regexp"
	"strconv"
)

var durationRe = regexp.MustCompile(`(\d+)([smh])`)

// ParseDuration converts "<int>[smh]" into seconds. The first matching run
// anywhere in the string is used, so "1h30m" yields 3600. Anything else
// yields 0.
func ParseDuration(s string) int64 {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}

	switch m[2] {
	case "s":
		return v
	case "m":
		return v * 60
	case "h":
		return v * 3600
	default:
		return 0
	}
}
