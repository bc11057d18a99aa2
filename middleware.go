package xrelay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/trickstertwo/xclock"
	"golang.org/x/time/rate"
)

// RetryConfig controls in-sink retry of transport errors.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first send.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
	// Jitter adds up to [0, Jitter) random delay to the base backoff.
	Jitter time.Duration
}

// RetryMiddleware retries sends that fail with an error. A Rejected result is
// an answer, not a failure, and is returned without retrying.
func RetryMiddleware(cfg RetryConfig) SinkMiddleware {
	return func(next Sink) Sink {
		return SinkFunc(func(ctx context.Context, addr Address, p Payload) (SendResult, error) {
			attempts := cfg.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			shouldRetry := cfg.RetryIf
			if shouldRetry == nil {
				shouldRetry = func(error) bool { return true }
			}

			var lastErr error
			for i := 1; i <= attempts; i++ {
				res, err := next.Send(ctx, addr, p)
				if err == nil {
					return res, nil
				}
				lastErr = err
				if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return 0, lastErr
				}
				if i == attempts || !shouldRetry(lastErr) {
					return 0, lastErr
				}
				if cfg.Backoff != nil {
					wait := cfg.Backoff(i)
					if cfg.Jitter > 0 {
						wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
					}
					t := clockFrom(ctx).NewTimer(wait)
					select {
					case <-ctx.Done():
						t.Stop()
						return 0, lastErr
					case <-t.C():
					}
				}
			}
			return 0, lastErr
		})
	}
}

// TimeoutMiddleware bounds each Send. An overrun returns context.DeadlineExceeded,
// which the dispatcher treats as a fault.
func TimeoutMiddleware(d time.Duration) SinkMiddleware {
	if d <= 0 {
		return func(next Sink) Sink { return next }
	}
	return func(next Sink) Sink {
		return SinkFunc(func(ctx context.Context, addr Address, p Payload) (SendResult, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type outcome struct {
				res SendResult
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- outcome{err: fmt.Errorf("%w: %v", ErrPanic, r)}
					}
				}()
				res, err := next.Send(tctx, addr, p)
				done <- outcome{res: res, err: err}
			}()

			select {
			case <-tctx.Done():
				return 0, tctx.Err()
			case o := <-done:
				return o.res, o.err
			}
		})
	}
}

// RateLimitMiddleware waits on lim before every send.
func RateLimitMiddleware(lim *rate.Limiter) SinkMiddleware {
	if lim == nil {
		return func(next Sink) Sink { return next }
	}
	return func(next Sink) Sink {
		return SinkFunc(func(ctx context.Context, addr Address, p Payload) (SendResult, error) {
			if err := lim.Wait(ctx); err != nil {
				return 0, err
			}
			return next.Send(ctx, addr, p)
		})
	}
}

// clockFrom returns the dispatcher's clock when running under one.
func clockFrom(ctx context.Context) xclock.Clock {
	if c, ok := ClockFromContext(ctx); ok {
		return c
	}
	return xclock.Default()
}

// Chain composes middlewares around a sink in order.
func Chain(s Sink, mws ...SinkMiddleware) Sink {
	if len(mws) == 0 {
		return s
	}
	wrapped := s
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
