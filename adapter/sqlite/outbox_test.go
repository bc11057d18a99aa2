package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xrelay"
	"github.com/trickstertwo/xrelay/adapter/memory"
)

var (
	a1 = xrelay.Address{DataCenter: "ams", Node: "1"}
	f2 = xrelay.Address{DataCenter: "fra", Node: "2"}
)

func openTest(t *testing.T, mutate ...func(*Config)) *Outbox {
	t.Helper()
	cfg := Defaults()
	cfg.Path = filepath.Join(t.TempDir(), "nested", "outbox.db")
	for _, m := range mutate {
		m(&cfg)
	}
	o, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestConfig(t *testing.T) {
	require.NoError(t, Defaults().Validate())
	assert.Error(t, Config{Path: " ", Codec: "json"}.Validate())
	assert.Error(t, Config{Path: "x.db", Codec: "json", Retention: -time.Second}.Validate())
	assert.Error(t, Config{Path: "x.db", Codec: "cbor"}.Validate())

	cfg := ConfigFromMap(map[string]any{"path": "/var/lib/xrelay.db", "retention": "24h", "codec": "msgpack"})
	assert.Equal(t, "/var/lib/xrelay.db", cfg.Path)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, Defaults().BusyTimeout, cfg.BusyTimeout)

	assert.Equal(t, cfg, ConfigFromMap(cfg.toMap()))
}

func TestOutbox_ReadsOldestFirst(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			o := openTest(t, func(c *Config) { c.Codec = codec })
			ctx := context.Background()

			out, err := o.Read(ctx)
			require.NoError(t, err)
			assert.True(t, out.IsEmpty())

			first := xrelay.Event{Payload: xrelay.Payload{Origin: "orders", Data: []byte("1")}, Recipients: []xrelay.Address{a1, f2}}
			second := xrelay.Event{Payload: xrelay.Payload{Origin: "orders", Data: []byte("2")}, Recipients: []xrelay.Address{f2}}
			id1, err := o.Enqueue(ctx, first)
			require.NoError(t, err)
			id2, err := o.Enqueue(ctx, second)
			require.NoError(t, err)
			assert.NotEqual(t, id1, id2)

			n, err := o.Pending(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			for _, want := range []xrelay.Event{first, second} {
				out, err := o.Read(ctx)
				require.NoError(t, err)
				got, ok := out.Event()
				require.True(t, ok)
				assert.Equal(t, want, got)
			}

			n, err = o.Pending(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			out, err = o.Read(ctx)
			require.NoError(t, err)
			assert.True(t, out.IsEmpty())
		})
	}
}

func TestOutbox_AbsentPayloadStaysAbsent(t *testing.T) {
	o := openTest(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, xrelay.Event{Recipients: []xrelay.Address{a1}})
	require.NoError(t, err)

	out, err := o.Read(ctx)
	require.NoError(t, err)
	got, ok := out.Event()
	require.True(t, ok)
	assert.True(t, got.Payload.IsZero())
	assert.False(t, got.Deliverable())
}

func TestOutbox_EnqueueTx(t *testing.T) {
	o := openTest(t)
	ctx := context.Background()
	evt := xrelay.Event{Payload: xrelay.Payload{Origin: "tx"}, Recipients: []xrelay.Address{a1}}

	tx, err := o.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = o.EnqueueTx(ctx, tx, evt)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	n, err := o.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	tx, err = o.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = o.EnqueueTx(ctx, tx, evt)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	n, err = o.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_MalformedRowSetAside(t *testing.T) {
	o := openTest(t)
	ctx := context.Background()

	_, err := o.DB().ExecContext(ctx,
		`INSERT INTO outbox(id, origin, data, recipients, status, created_at) VALUES('bad', 'x', NULL, ?, 'pending', 0)`,
		[]byte("{nope"))
	require.NoError(t, err)

	out, err := o.Read(ctx)
	require.NoError(t, err)
	got, ok := out.Event()
	require.True(t, ok)
	assert.False(t, got.Deliverable())

	var status string
	require.NoError(t, o.DB().QueryRowContext(ctx, `SELECT status FROM outbox WHERE id = 'bad'`).Scan(&status))
	assert.Equal(t, statusMalformed, status)
}

func TestOutbox_Prune(t *testing.T) {
	o := openTest(t, func(c *Config) { c.Retention = time.Hour })
	ctx := context.Background()

	_, err := o.Enqueue(ctx, xrelay.Event{Payload: xrelay.Payload{Origin: "old"}, Recipients: []xrelay.Address{a1}})
	require.NoError(t, err)
	_, err = o.Read(ctx)
	require.NoError(t, err)

	n, err := o.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = o.DB().ExecContext(ctx, `UPDATE outbox SET dispatched_at = ?`, time.Now().Add(-2*time.Hour).UnixMilli())
	require.NoError(t, err)
	n, err = o.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	off := openTest(t)
	n, err = off.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutbox_Registered(t *testing.T) {
	src, err := xrelay.NewSource(AdapterName, map[string]any{"path": filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	require.NoError(t, src.(*Outbox).Close())

	_, err = xrelay.NewSource(AdapterName, map[string]any{"path": "x.db", "codec": "cbor"})
	assert.Error(t, err)
}

func TestDispatcher_DrainsOutbox(t *testing.T) {
	o := openTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, origin := range []string{"a", "b", "c"} {
		_, err := o.Enqueue(ctx, xrelay.Event{Payload: xrelay.Payload{Origin: origin}, Recipients: []xrelay.Address{a1, f2}})
		require.NoError(t, err)
	}

	snk := memory.NewSink(memory.Defaults())
	stopOnIdle := xrelay.ObserverFunc(func(a xrelay.Activity) {
		if a.Type == xrelay.ActivityIdle {
			cancel()
		}
	})
	d, err := xrelay.New(10*time.Millisecond, o, snk, xrelay.WithObservers(stopOnIdle))
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx))

	got := snk.Deliveries()
	require.Len(t, got, 6)
	assert.Equal(t, "a", got[0].Payload.Origin)
	assert.Equal(t, "c", got[5].Payload.Origin)

	n, err := o.Pending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
