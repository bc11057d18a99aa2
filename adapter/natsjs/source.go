package natsjs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/trickstertwo/xrelay"
)

// Source pulls events one at a time from a JetStream durable consumer.
type Source struct {
	cfg   Config
	nc    *nats.Conn
	js    nats.JetStreamContext
	sub   *nats.Subscription
	codec xrelay.Codec
	owned bool

	closed atomic.Bool
}

var _ xrelay.Source = (*Source)(nil)

// NewSource connects to NATS and returns a Source that owns the connection.
func NewSource(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewSourceWithConn(nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSourceWithConn uses an existing connection; Close leaves it open.
func NewSourceWithConn(nc *nats.Conn, cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := xrelay.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	if cfg.AutoCreate {
		if err := ensureStream(js, cfg); err != nil {
			return nil, err
		}
	}

	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable)
	if err != nil {
		return nil, fmt.Errorf("natsjs: pull subscribe %s: %w", cfg.Subject, err)
	}

	return &Source{cfg: cfg, nc: nc, js: js, sub: sub, codec: codec}, nil
}

func ensureStream(js nats.JetStreamContext, cfg Config) error {
	_, err := js.StreamInfo(cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  cfg.storageType(),
	})
	if err != nil {
		return fmt.Errorf("natsjs: create stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// Read fetches one message, waiting at most FetchWait. The message is
// acknowledged once decoded; undecodable messages are terminated.
func (s *Source) Read(ctx context.Context) (xrelay.ReadOutcome, error) {
	if s.closed.Load() {
		return xrelay.Empty(), nats.ErrConnectionClosed
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchWait)
	defer cancel()

	msgs, err := s.sub.Fetch(1, nats.Context(fctx))
	if err != nil {
		if ctx.Err() != nil {
			return xrelay.Empty(), ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return xrelay.Empty(), nil
		}
		return xrelay.Empty(), err
	}
	if len(msgs) == 0 {
		return xrelay.Empty(), nil
	}
	m := msgs[0]

	evt, derr := xrelay.DecodeEvent(s.codec, m.Data)
	if derr != nil {
		if err := m.Term(); err != nil {
			return xrelay.Empty(), err
		}
		if lg, ok := xrelay.LoggerFromContext(ctx); ok {
			lg.Warn().Err(derr).Str("subject", m.Subject).Msg("natsjs: malformed message terminated")
		}
		// Surfaces as a non-deliverable event so the loop re-polls without waiting.
		return xrelay.Got(xrelay.Event{}), nil
	}

	if err := m.Ack(); err != nil {
		return xrelay.Empty(), err
	}
	return xrelay.Got(evt), nil
}

// Enqueue publishes evt to the source subject and waits for the stream to store it.
func (s *Source) Enqueue(ctx context.Context, evt xrelay.Event) error {
	b, err := xrelay.EncodeEvent(s.codec, evt)
	if err != nil {
		return err
	}
	_, err = s.js.Publish(s.cfg.Subject, b, nats.MsgId(nuid.Next()), nats.Context(ctx))
	return err
}

// Close releases the connection if the Source opened it.
func (s *Source) Close() error {
	if s.closed.Swap(true) || !s.owned {
		return nil
	}
	s.nc.Close()
	return nil
}
