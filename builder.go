package xrelay

import (
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultIdleInterval is used when the builder is not given an interval.
const DefaultIdleInterval = time.Second

// DispatcherBuilder constructs Dispatcher instances (Builder pattern).
type DispatcherBuilder struct {
	sourceName string
	sourceCfg  map[string]any
	sourceInst Source

	sinkName string
	sinkCfg  map[string]any
	sinkInst Sink

	interval    time.Duration
	middlewares []SinkMiddleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
}

// Option configures a DispatcherBuilder; used by New.
type Option func(b *DispatcherBuilder)

// NewDispatcherBuilder returns a new builder with sensible defaults.
func NewDispatcherBuilder() *DispatcherBuilder {
	return &DispatcherBuilder{
		interval: DefaultIdleInterval,
	}
}

// WithIdleInterval sets the backoff used for empty reads and rejections.
// Zero is allowed and disables the wait; negative values fail Build.
func (bb *DispatcherBuilder) WithIdleInterval(d time.Duration) *DispatcherBuilder {
	bb.interval = d
	return bb
}

// WithSource uses a ready Source instance.
func (bb *DispatcherBuilder) WithSource(s Source) *DispatcherBuilder {
	bb.sourceInst = s
	return bb
}

// WithSourceName builds the Source from the registry at Build time.
func (bb *DispatcherBuilder) WithSourceName(name string, cfg map[string]any) *DispatcherBuilder {
	bb.sourceName = name
	bb.sourceCfg = cfg
	return bb
}

// WithSink uses a ready Sink instance.
func (bb *DispatcherBuilder) WithSink(s Sink) *DispatcherBuilder {
	bb.sinkInst = s
	return bb
}

// WithSinkName builds the Sink from the registry at Build time.
func (bb *DispatcherBuilder) WithSinkName(name string, cfg map[string]any) *DispatcherBuilder {
	bb.sinkName = name
	bb.sinkCfg = cfg
	return bb
}

// WithMiddleware wraps the sink; the first middleware is outermost.
func (bb *DispatcherBuilder) WithMiddleware(mw ...SinkMiddleware) *DispatcherBuilder {
	if len(mw) == 0 {
		return bb
	}
	bb.middlewares = append(bb.middlewares, mw...)
	return bb
}

func (bb *DispatcherBuilder) WithObserver(obs ...Observer) *DispatcherBuilder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

func (bb *DispatcherBuilder) WithLogger(l *xlog.Logger) *DispatcherBuilder {
	bb.logger = l
	return bb
}

func (bb *DispatcherBuilder) WithClock(c xclock.Clock) *DispatcherBuilder {
	bb.clock = c
	return bb
}

func (bb *DispatcherBuilder) Build() (*Dispatcher, error) {
	if bb.interval < 0 {
		return nil, ErrNegativeInterval
	}

	var (
		src Source
		snk Sink
		err error
	)

	switch {
	case bb.sourceInst != nil:
		src = bb.sourceInst
	case bb.sourceName != "":
		src, err = NewSource(bb.sourceName, bb.sourceCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSource
	}

	switch {
	case bb.sinkInst != nil:
		snk = bb.sinkInst
	case bb.sinkName != "":
		snk, err = NewSink(bb.sinkName, bb.sinkCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSink
	}

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	d := &Dispatcher{
		source:   src,
		sink:     Chain(snk, bb.middlewares...),
		interval: bb.interval,
		clock:    clk,
		logger:   lg,
	}

	// Attach the logging observer first unless one was supplied.
	hasLoggingObserver := false
	for _, o := range bb.observers {
		if isLoggingObserver(o) {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		d.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range bb.observers {
		d.AddObserver(o)
	}

	return d, nil
}

func isLoggingObserver(o Observer) bool {
	switch v := o.(type) {
	case LoggingObserver:
		return true
	case *ObserverPool:
		return isLoggingObserver(v.next)
	}
	return false
}

// New constructs a Dispatcher from an interval, a source and a sink.
// Options may add middleware, observers, a logger or a clock.
func New(idleInterval time.Duration, source Source, sink Sink, opts ...Option) (*Dispatcher, error) {
	bb := NewDispatcherBuilder().
		WithIdleInterval(idleInterval).
		WithSource(source).
		WithSink(sink)
	for _, o := range opts {
		if o != nil {
			o(bb)
		}
	}
	return bb.Build()
}
