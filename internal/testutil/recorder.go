package testutil

import (
	"fmt"
	"sync"

	"github.com/trickstertwo/xrelay"
)

// Recorder is an xrelay.Observer that keeps every activity it sees.
type Recorder struct {
	mu   sync.Mutex
	acts []xrelay.Activity
}

func (r *Recorder) OnActivity(a xrelay.Activity) {
	r.mu.Lock()
	r.acts = append(r.acts, a)
	r.mu.Unlock()
}

func (r *Recorder) Activities() []xrelay.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xrelay.Activity, len(r.acts))
	copy(out, r.acts)
	return out
}

func (r *Recorder) Types() []xrelay.ActivityType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xrelay.ActivityType, 0, len(r.acts))
	for _, a := range r.acts {
		out = append(out, a.Type)
	}
	return out
}

// Count returns how many activities of type t were recorded.
func (r *Recorder) Count(t xrelay.ActivityType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.acts {
		if a.Type == t {
			n++
		}
	}
	return n
}

// Trace is an ordered, concurrency-safe log of interactions used to
// assert the exact call sequence of a run.
type Trace struct {
	mu    sync.Mutex
	steps []string
}

func (t *Trace) Add(format string, args ...any) {
	t.mu.Lock()
	t.steps = append(t.steps, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

func (t *Trace) Steps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.steps))
	copy(out, t.steps)
	return out
}

// Observer returns an observer that appends activity to the trace.
func (t *Trace) Observer() xrelay.Observer {
	return xrelay.ObserverFunc(func(a xrelay.Activity) {
		if a.Recipient != (xrelay.Address{}) {
			t.Add("%s %s", a.Type, a.Recipient)
			return
		}
		t.Add("%s", a.Type)
	})
}
