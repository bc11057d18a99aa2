package redisstream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xrelay"
)

// appendBounded appends to KEYS[1] unless it already holds ARGV[1] entries
// (ARGV[1] == 0 disables the bound). Returns 1 when appended, 0 when full.
var appendBounded = redis.NewScript(`
local max = tonumber(ARGV[1])
if max > 0 and redis.call('XLEN', KEYS[1]) >= max then
	return 0
end
redis.call('XADD', KEYS[1], '*', unpack(ARGV, 2))
return 1
`)

// Sink appends payloads to per-recipient Redis streams.
type Sink struct {
	cfg    Config
	client *redis.Client
	owned  bool
	closed atomic.Bool
}

var _ xrelay.Sink = (*Sink)(nil)

// NewSink connects to Redis and returns a Sink that owns the connection.
func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	s := NewSinkWithClient(client, cfg)
	s.owned = true
	return s, nil
}

// NewSinkWithClient uses an existing client; Close leaves it open.
func NewSinkWithClient(client *redis.Client, cfg Config) *Sink {
	return &Sink{cfg: cfg, client: client}
}

// StreamFor returns the stream a recipient reads from.
func (s *Sink) StreamFor(addr xrelay.Address) string {
	return s.cfg.Prefix + ":" + addr.DataCenter + ":" + addr.Node
}

// Send appends p to the recipient's stream. A full stream is Rejected.
func (s *Sink) Send(ctx context.Context, addr xrelay.Address, p xrelay.Payload) (xrelay.SendResult, error) {
	if s.closed.Load() {
		return 0, redis.ErrClosed
	}

	data := p.Data
	if data == nil {
		data = []byte{}
	}
	args := []any{
		s.cfg.MaxLen,
		fieldID, uuid.NewString(),
		fieldOrigin, p.Origin,
		fieldData, data,
		fieldProducedAt, now(ctx).UnixNano(),
	}

	n, err := appendBounded.Run(ctx, s.client, []string{s.StreamFor(addr)}, args...).Int()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return xrelay.Rejected, nil
	}
	return xrelay.Accepted, nil
}

// Close releases the connection if the Sink opened it.
func (s *Sink) Close() error {
	if s.closed.Swap(true) || !s.owned {
		return nil
	}
	return s.client.Close()
}

func now(ctx context.Context) time.Time {
	if c, ok := xrelay.ClockFromContext(ctx); ok {
		return c.Now()
	}
	return time.Now()
}
