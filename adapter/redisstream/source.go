package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xrelay"
)

// Source reads events from a Redis stream through a consumer group.
type Source struct {
	cfg    Config
	client *redis.Client
	codec  xrelay.Codec
	owned  bool

	groupMu    sync.Mutex
	groupReady bool

	closed atomic.Bool
}

var _ xrelay.Source = (*Source)(nil)

// NewSource connects to Redis and returns a Source that owns the connection.
func NewSource(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewSourceWithClient(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSourceWithClient uses an existing client; Close leaves it open.
func NewSourceWithClient(client *redis.Client, cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := xrelay.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, client: client, codec: codec}, nil
}

// Read takes the next entry from the stream. A reclaimed stale entry wins over
// a new one. The entry is acknowledged once decoded.
func (s *Source) Read(ctx context.Context) (xrelay.ReadOutcome, error) {
	if s.closed.Load() {
		return xrelay.Empty(), redis.ErrClosed
	}
	if err := s.ensureGroup(ctx); err != nil {
		return xrelay.Empty(), err
	}

	msg, ok, err := s.next(ctx)
	if err != nil || !ok {
		return xrelay.Empty(), err
	}

	evt, derr := decodeEntry(s.codec, msg.Values)
	if derr != nil {
		if s.cfg.DeadLetter == "" {
			return xrelay.Empty(), fmt.Errorf("redisstream: entry %s: %w", msg.ID, derr)
		}
		if err := s.deadLetter(ctx, msg, derr); err != nil {
			return xrelay.Empty(), err
		}
		if lg, ok := xrelay.LoggerFromContext(ctx); ok {
			lg.Warn().Err(derr).Str("id", msg.ID).Str("dead_letter", s.cfg.DeadLetter).Msg("redisstream: malformed entry moved")
		}
		// Surfaces as a non-deliverable event so the loop re-polls without waiting.
		return xrelay.Got(xrelay.Event{}), nil
	}

	if err := s.ack(ctx, msg.ID); err != nil {
		return xrelay.Empty(), err
	}
	return xrelay.Got(evt), nil
}

func (s *Source) next(ctx context.Context) (redis.XMessage, bool, error) {
	if s.cfg.ClaimMinIdle > 0 {
		msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.cfg.Stream,
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			MinIdle:  s.cfg.ClaimMinIdle,
			Start:    "0-0",
			Count:    1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return redis.XMessage{}, false, err
		}
		if len(msgs) > 0 {
			return msgs[0], true, nil
		}
	}

	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    1,
		Block:    s.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.XMessage{}, false, nil
		}
		return redis.XMessage{}, false, err
	}
	for _, stream := range res {
		if len(stream.Messages) > 0 {
			return stream.Messages[0], true, nil
		}
	}
	return redis.XMessage{}, false, nil
}

// ensureGroup creates the consumer group (and stream) once. Failures are retried on the next Read.
func (s *Source) ensureGroup(ctx context.Context) error {
	if !s.cfg.AutoCreate {
		return nil
	}
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	if s.groupReady {
		return nil
	}
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redisstream: create group %s on %s: %w", s.cfg.Group, s.cfg.Stream, err)
	}
	s.groupReady = true
	return nil
}

func (s *Source) ack(ctx context.Context, id string) error {
	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, id).Err(); err != nil {
		return err
	}
	// Optionally delete from stream after ack (saves memory)
	if s.cfg.AutoDeleteOnAck {
		_ = s.client.XDel(ctx, s.cfg.Stream, id).Err()
	}
	return nil
}

// deadLetter copies msg to the dead-letter stream and acknowledges the original
// to avoid poison loops.
func (s *Source) deadLetter(ctx context.Context, msg redis.XMessage, reason error) error {
	values := make(map[string]any, len(msg.Values)+3)
	for k, v := range msg.Values {
		values[k] = v
	}
	values[fieldDeadStream] = s.cfg.Stream
	values[fieldDeadID] = msg.ID
	values[fieldDeadReason] = reason.Error()

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.DeadLetter,
		ID:     "*",
		Values: values,
	}).Err(); err != nil {
		return err
	}
	return s.ack(ctx, msg.ID)
}

// Enqueue appends evt to the source stream and returns the entry ID.
func (s *Source) Enqueue(ctx context.Context, evt xrelay.Event) (string, error) {
	vals, err := encodeEntry(s.codec, evt)
	if err != nil {
		return "", err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		ID:     "*",
		Values: vals,
	}).Result()
}

// Close releases the connection if the Source opened it.
func (s *Source) Close() error {
	if s.closed.Swap(true) || !s.owned {
		return nil
	}
	return s.client.Close()
}

// decodeEntry reconstructs an Event from stream entry values.
func decodeEntry(codec xrelay.Codec, vals map[string]any) (xrelay.Event, error) {
	var evt xrelay.Event

	if v, ok := vals[fieldOrigin]; ok {
		evt.Payload.Origin = fieldString(v)
	}
	if v, ok := vals[fieldData]; ok {
		evt.Payload.Data = fieldBytes(v)
	}

	raw, ok := vals[fieldRecipients]
	if !ok {
		return evt, nil
	}
	addrs, err := xrelay.DecodeRecipients(codec, fieldBytes(raw))
	if err != nil {
		return xrelay.Event{}, err
	}
	evt.Recipients = addrs
	return evt, nil
}

// encodeEntry is the inverse of decodeEntry.
func encodeEntry(codec xrelay.Codec, evt xrelay.Event) (map[string]any, error) {
	rcpt, err := xrelay.EncodeRecipients(codec, evt.Recipients)
	if err != nil {
		return nil, err
	}
	vals := map[string]any{
		fieldOrigin:     evt.Payload.Origin,
		fieldRecipients: rcpt,
	}
	if evt.Payload.Data != nil {
		vals[fieldData] = evt.Payload.Data
	}
	return vals, nil
}
