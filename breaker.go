package xrelay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/trickstertwo/xlog"
)

// BreakerConfig controls the per-recipient circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker (default: 5).
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial send (default: 30s).
	OpenTimeout time.Duration
	// MaxRequests is the number of trial sends allowed while half-open (default: 1).
	MaxRequests uint32
	// Logger receives state transitions; nil disables them.
	Logger *xlog.Logger
}

// BreakerMiddleware keeps one gobreaker per recipient. Transport errors still
// propagate, but once a recipient trips its breaker further sends to it are
// answered Rejected without reaching next, so the dispatcher backs off and
// moves on instead of stopping. Place it inside RetryMiddleware so retries
// feed the failure count.
//
// Answering Rejected for an open breaker deliberately turns a transport
// condition into a rejection, which a plain Sink must never do. That is why
// the breaker is opt-in: the errors that tripped it were returned first, and
// once open the recipient is never contacted, so nothing is hidden except
// the repeat failure it is guarding against.
func BreakerMiddleware(cfg BreakerConfig) SinkMiddleware {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	return func(next Sink) Sink {
		bs := &breakers{cfg: cfg, m: make(map[Address]*gobreaker.CircuitBreaker)}
		return SinkFunc(func(ctx context.Context, addr Address, p Payload) (SendResult, error) {
			out, err := bs.get(addr).Execute(func() (interface{}, error) {
				return next.Send(ctx, addr, p)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return Rejected, nil
			}
			if err != nil {
				return 0, err
			}
			return out.(SendResult), nil
		})
	}
}

type breakers struct {
	cfg BreakerConfig

	mu sync.RWMutex
	m  map[Address]*gobreaker.CircuitBreaker
}

func (b *breakers) get(addr Address) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.m[addr]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok = b.m[addr]; ok {
		return cb
	}
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        addr.String(),
		MaxRequests: b.cfg.MaxRequests,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= b.cfg.ConsecutiveFailures
		},
		// Cancellation says nothing about the recipient's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if b.cfg.Logger == nil {
				return
			}
			b.cfg.Logger.Warn().
				Str("recipient", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("xrelay: recipient breaker changed state")
		},
	})
	b.m[addr] = cb
	return cb
}
