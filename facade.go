package xrelay

import (
	"context"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// WithLogger is an Option form of DispatcherBuilder.WithLogger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *DispatcherBuilder) { b.WithLogger(l) }
}

// WithClock is an Option form of DispatcherBuilder.WithClock.
func WithClock(c xclock.Clock) Option {
	return func(b *DispatcherBuilder) { b.WithClock(c) }
}

// WithObservers is an Option form of DispatcherBuilder.WithObserver.
func WithObservers(obs ...Observer) Option {
	return func(b *DispatcherBuilder) { b.WithObserver(obs...) }
}

// WithMiddleware is an Option form of DispatcherBuilder.WithMiddleware.
func WithMiddleware(mw ...SinkMiddleware) Option {
	return func(b *DispatcherBuilder) { b.WithMiddleware(mw...) }
}

// Relay builds a Dispatcher and runs it until ctx is cancelled.
func Relay(ctx context.Context, idleInterval time.Duration, source Source, sink Sink, opts ...Option) error {
	d, err := New(idleInterval, source, sink, opts...)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
