package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := map[string]int64{
		"2m":    120,
		"10m":   600,
		"1h":    3600,
		"2h":    7200,
		"30s":   30,
		"0s":    0,
		"xyz":   0,
		"":      0,
		"15":    0,
		"m":     0,
		"1h30m": 3600,
		" 5s ":  5,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseDuration(in), "input %q", in)
	}
}

func TestParseDuration_Overflow(t *testing.T) {
	assert.Equal(t, int64(0), ParseDuration("99999999999999999999999s"))
}
