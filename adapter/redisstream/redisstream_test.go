package redisstream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xrelay"
)

var (
	dc1n1 = xrelay.Address{DataCenter: "dc1", Node: "n1"}
	dc2n7 = xrelay.Address{DataCenter: "dc2", Node: "n7"}
)

// testClient returns a client connected to an in-process Redis.
func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testConfig(addr string) Config {
	cfg := Defaults()
	cfg.Addr = addr
	cfg.Consumer = "test-consumer"
	cfg.Block = 10 * time.Millisecond
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Defaults().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"addr", func(c *Config) { c.Addr = "" }},
		{"stream", func(c *Config) { c.Stream = "" }},
		{"group", func(c *Config) { c.Group = "" }},
		{"consumer", func(c *Config) { c.Consumer = "" }},
		{"block", func(c *Config) { c.Block = 0 }},
		{"claim", func(c *Config) { c.ClaimMinIdle = -time.Second }},
		{"prefix", func(c *Config) { c.Prefix = "" }},
		{"max_len", func(c *Config) { c.MaxLen = -1 }},
		{"codec", func(c *Config) { c.Codec = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"addr":           "redis:6380",
		"db":             2,
		"stream":         "billing:outbox",
		"block":          "250ms",
		"claim_min_idle": 30 * time.Second,
		"max_len":        500,
		"codec":          "msgpack",
		"dead_letter":    "billing:dlq",
	})
	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, "billing:outbox", cfg.Stream)
	assert.Equal(t, 250*time.Millisecond, cfg.Block)
	assert.Equal(t, 30*time.Second, cfg.ClaimMinIdle)
	assert.Equal(t, int64(500), cfg.MaxLen)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, "billing:dlq", cfg.DeadLetter)
	assert.Equal(t, Defaults().Group, cfg.Group)

	// unparsable values fall back to defaults
	cfg = ConfigFromMap(map[string]any{"block": "soon", "max_len": "lots"})
	assert.Equal(t, Defaults().Block, cfg.Block)
	assert.Zero(t, cfg.MaxLen)

	orig := Defaults()
	orig.MaxLen = 9
	orig.DeadLetter = "dlq"
	assert.Equal(t, orig, ConfigFromMap(orig.toMap()))
}

func TestSource_EmptyStream(t *testing.T) {
	mr, client := testClient(t)
	src, err := NewSourceWithClient(client, testConfig(mr.Addr()))
	require.NoError(t, err)

	out, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestSource_ReadsInOrderAndAcks(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			mr, client := testClient(t)
			cfg := testConfig(mr.Addr())
			cfg.Codec = codec
			src, err := NewSourceWithClient(client, cfg)
			require.NoError(t, err)
			ctx := context.Background()

			first := xrelay.Event{
				Payload:    xrelay.Payload{Origin: "billing", Data: []byte{0x01, 0x02}},
				Recipients: []xrelay.Address{dc1n1, dc2n7},
			}
			second := xrelay.Event{
				Payload:    xrelay.Payload{Origin: "audit", Data: []byte("second")},
				Recipients: []xrelay.Address{dc2n7},
			}
			// first read creates the group at the start of the stream
			out, err := src.Read(ctx)
			require.NoError(t, err)
			require.True(t, out.IsEmpty())

			_, err = src.Enqueue(ctx, first)
			require.NoError(t, err)
			_, err = src.Enqueue(ctx, second)
			require.NoError(t, err)

			out, err = src.Read(ctx)
			require.NoError(t, err)
			got, ok := out.Event()
			require.True(t, ok)
			assert.Equal(t, first, got)

			out, err = src.Read(ctx)
			require.NoError(t, err)
			got, ok = out.Event()
			require.True(t, ok)
			assert.Equal(t, second, got)

			out, err = src.Read(ctx)
			require.NoError(t, err)
			assert.True(t, out.IsEmpty())

			pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
			require.NoError(t, err)
			assert.Zero(t, pending.Count)
		})
	}
}

func TestSource_EventWithoutDataStaysAbsent(t *testing.T) {
	mr, client := testClient(t)
	src, err := NewSourceWithClient(client, testConfig(mr.Addr()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = src.Read(ctx)
	require.NoError(t, err)
	_, err = src.Enqueue(ctx, xrelay.Event{Recipients: []xrelay.Address{dc1n1}})
	require.NoError(t, err)

	out, err := src.Read(ctx)
	require.NoError(t, err)
	got, ok := out.Event()
	require.True(t, ok)
	assert.False(t, got.Deliverable())
}

func TestSource_MalformedEntry(t *testing.T) {
	t.Run("fault without dead letter", func(t *testing.T) {
		mr, client := testClient(t)
		cfg := testConfig(mr.Addr())
		src, err := NewSourceWithClient(client, cfg)
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, src.ensureGroup(ctx))
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: cfg.Stream,
			Values: map[string]any{fieldOrigin: "x", fieldRecipients: "{broken"},
		}).Err())

		_, err = src.Read(ctx)
		assert.ErrorIs(t, err, xrelay.ErrMalformedEvent)
	})

	t.Run("moved to dead letter", func(t *testing.T) {
		mr, client := testClient(t)
		cfg := testConfig(mr.Addr())
		cfg.DeadLetter = "xrelay:dlq"
		src, err := NewSourceWithClient(client, cfg)
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, src.ensureGroup(ctx))
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: cfg.Stream,
			Values: map[string]any{fieldOrigin: "x", fieldRecipients: "{broken"},
		}).Err())

		out, err := src.Read(ctx)
		require.NoError(t, err)
		got, ok := out.Event()
		require.True(t, ok)
		assert.False(t, got.Deliverable())

		dead, err := client.XRange(ctx, "xrelay:dlq", "-", "+").Result()
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, cfg.Stream, dead[0].Values[fieldDeadStream])
		assert.Contains(t, dead[0].Values[fieldDeadReason], "malformed")

		pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
		require.NoError(t, err)
		assert.Zero(t, pending.Count)
	})
}

func TestSource_AutoDeleteOnAck(t *testing.T) {
	mr, client := testClient(t)
	cfg := testConfig(mr.Addr())
	cfg.AutoDeleteOnAck = true
	src, err := NewSourceWithClient(client, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, src.ensureGroup(ctx))
	_, err = src.Enqueue(ctx, xrelay.Event{Payload: xrelay.Payload{Origin: "o"}, Recipients: []xrelay.Address{dc1n1}})
	require.NoError(t, err)

	out, err := src.Read(ctx)
	require.NoError(t, err)
	assert.False(t, out.IsEmpty())

	n, err := client.XLen(ctx, cfg.Stream).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSource_ReclaimsStaleEntries(t *testing.T) {
	mr, client := testClient(t)
	cfg := testConfig(mr.Addr())
	cfg.ClaimMinIdle = time.Millisecond
	src, err := NewSourceWithClient(client, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, src.ensureGroup(ctx))
	evt := xrelay.Event{Payload: xrelay.Payload{Origin: "orphan"}, Recipients: []xrelay.Address{dc1n1}}
	_, err = src.Enqueue(ctx, evt)
	require.NoError(t, err)

	// a consumer that reads and dies before acknowledging
	_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    cfg.Group,
		Consumer: "crashed",
		Streams:  []string{cfg.Stream, ">"},
		Count:    1,
	}).Result()
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	out, err := src.Read(ctx)
	require.NoError(t, err)
	got, ok := out.Event()
	require.True(t, ok)
	assert.Equal(t, evt, got)
}

func TestSink_AppendsToRecipientStream(t *testing.T) {
	mr, client := testClient(t)
	snk := NewSinkWithClient(client, testConfig(mr.Addr()))
	ctx := context.Background()

	res, err := snk.Send(ctx, dc1n1, xrelay.Payload{Origin: "billing", Data: []byte("invoice")})
	require.NoError(t, err)
	assert.Equal(t, xrelay.Accepted, res)

	assert.Equal(t, "xrelay:inbox:dc1:n1", snk.StreamFor(dc1n1))
	entries, err := client.XRange(ctx, snk.StreamFor(dc1n1), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "billing", entries[0].Values[fieldOrigin])
	assert.Equal(t, "invoice", entries[0].Values[fieldData])
	assert.NotEmpty(t, entries[0].Values[fieldID])
	assert.NotEmpty(t, entries[0].Values[fieldProducedAt])
}

func TestSink_RejectsWhenBacklogFull(t *testing.T) {
	mr, client := testClient(t)
	cfg := testConfig(mr.Addr())
	cfg.MaxLen = 1
	snk := NewSinkWithClient(client, cfg)
	ctx := context.Background()
	p := xrelay.Payload{Origin: "o", Data: []byte("d")}

	res, err := snk.Send(ctx, dc1n1, p)
	require.NoError(t, err)
	assert.Equal(t, xrelay.Accepted, res)

	res, err = snk.Send(ctx, dc1n1, p)
	require.NoError(t, err)
	assert.Equal(t, xrelay.Rejected, res)

	// other recipients are unaffected
	res, err = snk.Send(ctx, dc2n7, p)
	require.NoError(t, err)
	assert.Equal(t, xrelay.Accepted, res)

	n, err := client.XLen(ctx, snk.StreamFor(dc1n1)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSink_TransportErrorIsNotRejection(t *testing.T) {
	mr, client := testClient(t)
	snk := NewSinkWithClient(client, testConfig(mr.Addr()))

	mr.SetError("ERR injected failure")
	res, err := snk.Send(context.Background(), dc1n1, xrelay.Payload{Origin: "o"})
	assert.Error(t, err)
	assert.NotEqual(t, xrelay.Rejected, res)
}

func TestClose(t *testing.T) {
	mr, client := testClient(t)
	snk := NewSinkWithClient(client, testConfig(mr.Addr()))
	require.NoError(t, snk.Close())
	_, err := snk.Send(context.Background(), dc1n1, xrelay.Payload{Origin: "o"})
	assert.ErrorIs(t, err, redis.ErrClosed)

	src, err := NewSourceWithClient(client, testConfig(mr.Addr()))
	require.NoError(t, err)
	require.NoError(t, src.Close())
	_, err = src.Read(context.Background())
	assert.ErrorIs(t, err, redis.ErrClosed)

	// borrowed clients stay usable
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestRegisteredFactories(t *testing.T) {
	mr := miniredis.RunT(t)

	snk, err := xrelay.NewSink(AdapterName, map[string]any{"addr": mr.Addr()})
	require.NoError(t, err)
	defer snk.(*Sink).Close()

	src, err := xrelay.NewSource(AdapterName, map[string]any{"addr": mr.Addr(), "block": "5ms"})
	require.NoError(t, err)
	defer src.(*Source).Close()

	_, err = xrelay.NewSource(AdapterName, map[string]any{"addr": mr.Addr(), "codec": "xml"})
	assert.Error(t, err)
}

func TestBuilder(t *testing.T) {
	mr := miniredis.RunT(t)
	d, err := Builder(testConfig(mr.Addr())).WithIdleInterval(5 * time.Millisecond).Build()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, d.IdleInterval())
}

func TestDispatcher_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	cfg.MaxLen = 1

	src, err := NewSource(cfg)
	require.NoError(t, err)
	defer src.Close()
	snk, err := NewSink(cfg)
	require.NoError(t, err)
	defer snk.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, src.ensureGroup(ctx))
	for _, origin := range []string{"a", "b"} {
		_, err := src.Enqueue(ctx, xrelay.Event{
			Payload:    xrelay.Payload{Origin: origin, Data: []byte(origin)},
			Recipients: []xrelay.Address{dc1n1, dc2n7},
		})
		require.NoError(t, err)
	}

	var accepted, rejected atomic.Int32
	obs := xrelay.ObserverFunc(func(a xrelay.Activity) {
		switch a.Type {
		case xrelay.ActivityAccepted:
			accepted.Add(1)
		case xrelay.ActivityRejected:
			rejected.Add(1)
		case xrelay.ActivityIdle:
			cancel()
		}
	})

	d, err := xrelay.New(5*time.Millisecond, src, snk, xrelay.WithObservers(obs))
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx))

	// max_len 1: the second event is rejected by both recipients
	assert.Equal(t, int32(2), accepted.Load())
	assert.Equal(t, int32(2), rejected.Load())
	for _, addr := range []xrelay.Address{dc1n1, dc2n7} {
		n, err := snk.client.XLen(context.Background(), snk.StreamFor(addr)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}
}

func TestClientOptions(t *testing.T) {
	assert.Nil(t, ClientOptions(Defaults()).TLSConfig)

	cfg := Defaults()
	cfg.Addr = "redis.internal:6380"
	cfg.DB = 2
	cfg.TLS = true
	cfg.TLSServerName = "redis.internal"
	o := ClientOptions(cfg)
	assert.Equal(t, "redis.internal:6380", o.Addr)
	assert.Equal(t, 2, o.DB)
	require.NotNil(t, o.TLSConfig)
	assert.Equal(t, "redis.internal", o.TLSConfig.ServerName)
}

func TestDial_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewSink(testConfig(addr))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}
