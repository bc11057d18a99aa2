package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xrelay"
)

// Source is an in-memory FIFO of events (dev/testing).
type Source struct {
	mu    sync.Mutex
	queue []xrelay.Event

	reads atomic.Uint64
}

var _ xrelay.Source = (*Source)(nil)

// NewSource returns a Source preloaded with events.
func NewSource(events ...xrelay.Event) *Source {
	s := &Source{}
	s.Push(events...)
	return s
}

// Push appends events to the back of the queue.
func (s *Source) Push(events ...xrelay.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	s.mu.Unlock()
}

// Read pops the oldest event or returns Empty.
func (s *Source) Read(ctx context.Context) (xrelay.ReadOutcome, error) {
	if err := ctx.Err(); err != nil {
		return xrelay.Empty(), err
	}
	s.reads.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return xrelay.Empty(), nil
	}
	e := s.queue[0]
	s.queue[0] = xrelay.Event{}
	s.queue = s.queue[1:]
	return xrelay.Got(e), nil
}

// Len returns the number of queued events.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Reads returns how many times Read was called with a live context.
func (s *Source) Reads() uint64 { return s.reads.Load() }
