package tracker

// StreakWarnAt is the streak length at which operators should be warned.
const StreakWarnAt = 5

// Streak counts consecutive failed checks for one virtual user.
// It is not safe for concurrent use; each VU owns its own.
type Streak struct {
	n int
}

// Track updates the streak and returns its new length.
func (s *Streak) Track(succeeded bool) int {
	if succeeded {
		s.n = 0
	} else {
		s.n++
	}
	return s.n
}

// Current is the streak length without updating it.
func (s *Streak) Current() int {
	return s.n
}

// Warn reports whether the streak has reached StreakWarnAt.
func (s *Streak) Warn() bool {
	return s.n >= StreakWarnAt
}
