package testutil

import (
	"sync"
	"time"

	"github.com/trickstertwo/xclock"
)

// Clock is an xclock.Clock whose timers fire at once. Every requested timer
// duration is recorded, so tests can assert a wait happened and how long it
// would have been without sleeping for it. Everything else defers to the
// system clock.
type Clock struct {
	xclock.Clock

	mu     sync.Mutex
	timers []time.Duration
}

func NewClock() *Clock {
	return &Clock{Clock: xclock.Default()}
}

// NewTimer records d and returns a timer that has already fired.
func (c *Clock) NewTimer(d time.Duration) xclock.Timer {
	c.mu.Lock()
	c.timers = append(c.timers, d)
	c.mu.Unlock()
	return newFiredTimer()
}

// Timers returns every duration passed to NewTimer, oldest first.
func (c *Clock) Timers() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	copy(out, c.timers)
	return out
}

type firedTimer struct {
	ch chan time.Time
}

func newFiredTimer() *firedTimer {
	t := &firedTimer{ch: make(chan time.Time, 1)}
	t.ch <- time.Now()
	return t
}

func (t *firedTimer) C() <-chan time.Time { return t.ch }

func (t *firedTimer) Stop() bool { return false }

func (t *firedTimer) Reset(time.Duration) bool {
	select {
	case t.ch <- time.Now():
	default:
	}
	return false
}
