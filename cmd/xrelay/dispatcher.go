package main

import (
	"io"
	"math"
	"time"

	"github.com/trickstertwo/xlog"
	"golang.org/x/time/rate"

	"github.com/trickstertwo/xrelay"
	"github.com/trickstertwo/xrelay/internal/config"
)

const observerDrainTimeout = 2 * time.Second

// buildDispatcher wires the configured adapters and sink middleware. The
// returned func releases adapter connections and flushes async logging.
func buildDispatcher(cfg *config.Config, logger *xlog.Logger) (*xrelay.Dispatcher, func(), error) {
	src, err := xrelay.NewSource(cfg.Source.Name, cfg.Source.Options)
	if err != nil {
		return nil, nil, err
	}
	snk, err := xrelay.NewSink(cfg.Sink.Name, cfg.Sink.Options)
	if err != nil {
		closeIfCloser(src)
		return nil, nil, err
	}

	bb := xrelay.NewDispatcherBuilder().
		WithIdleInterval(cfg.IdleInterval()).
		WithSource(src).
		WithSink(snk).
		WithLogger(logger).
		WithMiddleware(sinkMiddleware(cfg.Sink, logger)...)

	var pool *xrelay.ObserverPool
	if cfg.Log.AsyncBuffer > 0 {
		pool = xrelay.NewObserverPool(xrelay.LoggingObserver{Logger: logger}, cfg.Log.AsyncBuffer)
		bb.WithObserver(pool)
	}

	closeFn := func() {
		if pool != nil {
			if err := pool.Close(observerDrainTimeout); err != nil {
				logger.Warn().Err(err).Msg("observer pool did not drain")
			}
		}
		closeIfCloser(snk)
		closeIfCloser(src)
	}

	d, err := bb.Build()
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return d, closeFn, nil
}

// sinkMiddleware orders rate limiting outermost so retries share the budget
// of a single send. The breaker sits inside retry so every attempt counts, and
// the timeout is innermost so it bounds each attempt.
func sinkMiddleware(c config.SinkConfig, logger *xlog.Logger) []xrelay.SinkMiddleware {
	var mws []xrelay.SinkMiddleware
	if c.RatePerSec > 0 {
		burst := c.Burst
		if burst < 1 {
			burst = int(math.Max(1, math.Ceil(c.RatePerSec)))
		}
		mws = append(mws, xrelay.RateLimitMiddleware(rate.NewLimiter(rate.Limit(c.RatePerSec), burst)))
	}
	if c.Retry.MaxAttempts > 1 {
		base := c.Retry.BackoffDuration()
		mws = append(mws, xrelay.RetryMiddleware(xrelay.RetryConfig{
			MaxAttempts: c.Retry.MaxAttempts,
			Backoff:     func(attempt int) time.Duration { return base * time.Duration(1<<(attempt-1)) },
			Jitter:      c.Retry.JitterDuration(),
		}))
	}
	if c.Breaker.ConsecutiveFailures > 0 {
		mws = append(mws, xrelay.BreakerMiddleware(xrelay.BreakerConfig{
			ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
			OpenTimeout:         c.Breaker.OpenTimeoutDuration(),
			Logger:              logger,
		}))
	}
	if d := c.TimeoutDuration(); d > 0 {
		mws = append(mws, xrelay.TimeoutMiddleware(d))
	}
	return mws
}

func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
