package xrelay

import (
	"context"
	"time"
)

// Source is the Strategy interface for event providers.
// Read must return Empty() when nothing is available; acknowledgement and
// redelivery semantics belong to the implementation.
type Source interface {
	Read(ctx context.Context) (ReadOutcome, error)
}

// Sink is the Strategy interface for per-recipient delivery.
// Send must return Accepted or Rejected; transport failures are returned as errors.
type Sink interface {
	Send(ctx context.Context, addr Address, p Payload) (SendResult, error)
}

// SourceFunc is an Adapter that lets a plain function satisfy Source.
type SourceFunc func(ctx context.Context) (ReadOutcome, error)

func (f SourceFunc) Read(ctx context.Context) (ReadOutcome, error) { return f(ctx) }

// SinkFunc is an Adapter that lets a plain function satisfy Sink.
type SinkFunc func(ctx context.Context, addr Address, p Payload) (SendResult, error)

func (f SinkFunc) Send(ctx context.Context, addr Address, p Payload) (SendResult, error) {
	return f(ctx, addr, p)
}

// SinkMiddleware composes delivery concerns around a Sink.
type SinkMiddleware func(next Sink) Sink

// Codec is the Strategy for encoding/decoding events on the wire.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Observer receives dispatcher activity. It is called on the loop goroutine
// and should return quickly.
type Observer interface {
	OnActivity(a Activity)
}

// Runner is the surface the process entrypoint depends on: run in cmd/xrelay
// drives it and maps its outcome to an exit code.
type Runner interface {
	Run(ctx context.Context) error
	State() State
	IdleInterval() time.Duration
}

var _ Runner = (*Dispatcher)(nil)
