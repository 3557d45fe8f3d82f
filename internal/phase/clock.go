package phase

import (
	"sync/atomic"
	"time"
)

// DefaultSecondsPerIteration approximates how long one iteration of the
// soak body takes (two requests plus two 1-2s think pauses).
const DefaultSecondsPerIteration = 3

// Clock reports elapsed seconds for a virtual user on its given iteration.
type Clock interface {
	Elapsed(iteration int64) int64
}

// IterationClock estimates elapsed time from the iteration counter alone.
type IterationClock struct {
	SecondsPerIteration int64
}

func (c IterationClock) Elapsed(iteration int64) int64 {
	step := c.SecondsPerIteration
	if step <= 0 {
		step = DefaultSecondsPerIteration
	}
	return iteration * step
}

// WallClock measures real time since the run started and ignores the
// iteration counter. Readings never go backwards.
type WallClock struct {
	start time.Time
	now   func() time.Time
	last  atomic.Int64
}

func NewWallClock(start time.Time) *WallClock {
	return &WallClock{start: start, now: time.Now}
}

func (c *WallClock) Elapsed(int64) int64 {
	e := int64(c.now().Sub(c.start) / time.Second)
	if e < 0 {
		e = 0
	}
	for {
		prev := c.last.Load()
		if e <= prev {
			return prev
		}
		if c.last.CompareAndSwap(prev, e) {
			return e
		}
	}
}
