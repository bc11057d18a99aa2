package xrelay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Dispatcher drains events from a Source and fans each payload out to its
// recipients through a Sink, backing off for a fixed interval whenever the
// source is empty or a recipient rejects.
type Dispatcher struct {
	source   Source
	sink     Sink
	interval time.Duration
	clock    xclock.Clock
	logger   *xlog.Logger

	observersMu sync.RWMutex
	observers   []Observer

	state   atomic.Int32
	running atomic.Bool
}

// IdleInterval returns the backoff applied on empty reads and rejections.
func (d *Dispatcher) IdleInterval() time.Duration { return d.interval }

// State reports where the loop currently is.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Run drives delivery until ctx is cancelled, then returns nil.
// Errors from the Source or Sink stop the loop and are returned wrapped;
// an error caused by ctx cancellation counts as cancellation.
// Stopped is terminal for one Run only: a Dispatcher may be restarted by
// calling Run again once the previous call has returned.
func (d *Dispatcher) Run(ctx context.Context) (err error) {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	d.setState(StateIdle)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		d.setState(StateStopped)
		if err != nil {
			d.notify(Activity{Type: ActivityFault, Err: err})
			return
		}
		d.notify(Activity{Type: ActivityStopped})
	}()

	ctx = InjectAll(ctx, d.logger, d.clock)

	for ctx.Err() == nil {
		d.setState(StateIdle)

		out, err := d.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("xrelay: read: %w", err)
		}

		evt, ok := out.Event()
		if !ok {
			d.notify(Activity{Type: ActivityIdle, Backoff: d.interval})
			if !d.wait(ctx) {
				return nil
			}
			continue
		}

		if !evt.Deliverable() {
			d.notify(Activity{Type: ActivitySkipped, Origin: evt.Payload.Origin})
			continue
		}

		if err := d.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends evt.Payload to each recipient in order. It returns nil when
// the event completes or ctx is cancelled part way through.
func (d *Dispatcher) deliver(ctx context.Context, evt Event) error {
	d.setState(StateDelivering)

	for _, addr := range evt.Recipients {
		if ctx.Err() != nil {
			return nil
		}

		start := d.clock.Now()
		res, err := d.sink.Send(ctx, addr, evt.Payload)
		took := d.clock.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("xrelay: send to %s: %w", addr, err)
		}

		switch res {
		case Accepted:
			d.notify(Activity{
				Type:      ActivityAccepted,
				Recipient: addr,
				Origin:    evt.Payload.Origin,
				Duration:  took,
			})
		case Rejected:
			d.notify(Activity{
				Type:      ActivityRejected,
				Recipient: addr,
				Origin:    evt.Payload.Origin,
				Duration:  took,
				Backoff:   d.interval,
			})
			// Throttles the rest of the event too, not only a retry of addr.
			if !d.wait(ctx) {
				return nil
			}
		default:
			return fmt.Errorf("xrelay: send to %s: %w: %s", addr, ErrInvalidSendResult, res)
		}
	}
	return nil
}

// wait suspends for the idle interval on the dispatcher's clock. It returns
// false if ctx was cancelled.
func (d *Dispatcher) wait(ctx context.Context) bool {
	if d.interval <= 0 {
		return ctx.Err() == nil
	}
	t := d.clock.NewTimer(d.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return ctx.Err() == nil
	}
}

func (d *Dispatcher) setState(s State) { d.state.Store(int32(s)) }

// AddObserver registers an observer (thread-safe).
func (d *Dispatcher) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, obs)
	d.observersMu.Unlock()
}

// RemoveObserver removes an observer. obs must be comparable; ObserverFunc values are not.
func (d *Dispatcher) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()

	for i, o := range d.observers {
		if o == obs {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

// notify dispatches activity synchronously, in loop order.
// Observer panics are swallowed so diagnostics never change control flow.
func (d *Dispatcher) notify(a Activity) {
	d.observersMu.RLock()
	if len(d.observers) == 0 {
		d.observersMu.RUnlock()
		return
	}
	obs := make([]Observer, len(d.observers))
	copy(obs, d.observers)
	d.observersMu.RUnlock()

	for _, o := range obs {
		func() {
			defer func() { _ = recover() }()
			o.OnActivity(a)
		}()
	}
}
