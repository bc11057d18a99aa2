package xrelay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrObserverPoolShutdownTimeout = errors.New("xrelay: observer pool shutdown timed out")

// ObserverPool moves observer work off the dispatch loop.
// Notify never blocks: activity is dropped when the buffer is full.
// A single worker keeps activity in loop order.
type ObserverPool struct {
	next Observer
	ch   chan Activity

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
}

var _ Observer = (*ObserverPool)(nil)

// NewObserverPool wraps next. bufferSize < 1 defaults to 1024.
func NewObserverPool(next Observer, bufferSize int) *ObserverPool {
	if bufferSize < 1 {
		bufferSize = 1024
	}
	op := &ObserverPool{
		next: next,
		ch:   make(chan Activity, bufferSize),
	}
	op.wg.Add(1)
	go op.worker()
	return op
}

// OnActivity queues a for the wrapped observer.
func (op *ObserverPool) OnActivity(a Activity) {
	if op.next == nil || op.closed.Load() {
		return
	}
	defer func() {
		// send on a channel closed by a concurrent Close
		if recover() != nil {
			op.dropped.Add(1)
		}
	}()
	select {
	case op.ch <- a:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for a := range op.ch {
		func() {
			defer func() { _ = recover() }()
			op.next.OnActivity(a)
		}()
		op.processed.Add(1)
	}
}

// Close stops accepting activity and waits up to timeout for the queue to drain.
func (op *ObserverPool) Close(timeout time.Duration) error {
	op.closeOnce.Do(func() {
		op.closed.Store(true)
		close(op.ch)
	})

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

type PoolStats struct {
	Dropped   uint64
	Processed uint64
}

func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:   op.dropped.Load(),
		Processed: op.processed.Load(),
	}
}
