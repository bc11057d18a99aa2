package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"

	"github.com/trickstertwo/xrelay"
)

// Delivery is one recorded Send.
type Delivery struct {
	ID      string
	Address xrelay.Address
	Payload xrelay.Payload
	Result  xrelay.SendResult
	At      time.Time
}

// Sink records every Send (dev/testing). Results come from, in order:
// an injected fault, a scripted result, the per-address capacity.
type Sink struct {
	cfg Config

	mu         sync.Mutex
	deliveries []Delivery
	accepted   map[xrelay.Address]int
	scripts    map[xrelay.Address][]xrelay.SendResult
	faults     map[xrelay.Address]error
}

var _ xrelay.Sink = (*Sink)(nil)

// NewSink creates a new in-memory sink.
func NewSink(cfg Config) *Sink {
	return &Sink{
		cfg:      cfg,
		accepted: make(map[xrelay.Address]int),
		scripts:  make(map[xrelay.Address][]xrelay.SendResult),
		faults:   make(map[xrelay.Address]error),
	}
}

// Script queues results returned by the next sends to addr.
func (s *Sink) Script(addr xrelay.Address, results ...xrelay.SendResult) {
	s.mu.Lock()
	s.scripts[addr] = append(s.scripts[addr], results...)
	s.mu.Unlock()
}

// Fail makes every send to addr return err until Fail(addr, nil).
func (s *Sink) Fail(addr xrelay.Address, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, addr)
		return
	}
	s.faults[addr] = err
}

// Drain resets the accepted count of addr so it accepts again.
func (s *Sink) Drain(addr xrelay.Address) {
	s.mu.Lock()
	delete(s.accepted, addr)
	s.mu.Unlock()
}

// Send implements xrelay.Sink.
func (s *Sink) Send(ctx context.Context, addr xrelay.Address, p xrelay.Payload) (xrelay.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.cfg.Latency > 0 {
		t := clock(ctx).NewTimer(s.cfg.Latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.faults[addr]; err != nil {
		return 0, err
	}

	var res xrelay.SendResult
	if q := s.scripts[addr]; len(q) > 0 {
		res = q[0]
		s.scripts[addr] = q[1:]
	} else if s.cfg.Capacity > 0 && s.accepted[addr] >= s.cfg.Capacity {
		res = xrelay.Rejected
	} else {
		res = xrelay.Accepted
	}
	if res == xrelay.Accepted {
		s.accepted[addr]++
	}

	d := Delivery{
		Address: addr,
		Payload: p.Clone(),
		Result:  res,
		At:      now(ctx),
	}
	if s.cfg.AssignIDs {
		d.ID = uuid.NewString()
	}
	s.deliveries = append(s.deliveries, d)
	return res, nil
}

// Deliveries returns a copy of every recorded send, oldest first.
func (s *Sink) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

// Accepted returns how many payloads addr currently holds.
func (s *Sink) Accepted(addr xrelay.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[addr]
}

func now(ctx context.Context) time.Time { return clock(ctx).Now() }

// clock returns the dispatcher's clock when Send runs under one.
func clock(ctx context.Context) xclock.Clock {
	if c, ok := xrelay.ClockFromContext(ctx); ok {
		return c
	}
	return xclock.Default()
}
