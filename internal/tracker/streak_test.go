package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreak_Track(t *testing.T) {
	var s Streak
	var got []int
	for _, ok := range []bool{false, false, true, false} {
		got = append(got, s.Track(ok))
	}
	assert.Equal(t, []int{1, 2, 0, 1}, got)
}

func TestStreak_Warn(t *testing.T) {
	var s Streak
	for i := 0; i < StreakWarnAt-1; i++ {
		s.Track(false)
	}
	assert.False(t, s.Warn())

	s.Track(false)
	assert.True(t, s.Warn())
	assert.Equal(t, StreakWarnAt, s.Current())

	s.Track(true)
	assert.False(t, s.Warn())
}
