package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/trickstertwo/xrelay"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const (
	statusPending    = "pending"
	statusDispatched = "dispatched"
	statusMalformed  = "malformed"

	pruneEvery = 500
)

// Executor is the subset shared by *sql.DB and *sql.Tx, so producers can
// enqueue inside their own transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Outbox is a transactional outbox table read as an xrelay.Source.
// Each Read claims the oldest pending row and marks it dispatched.
type Outbox struct {
	cfg   Config
	db    *sql.DB
	codec xrelay.Codec

	reads atomic.Uint64
}

var _ xrelay.Source = (*Outbox)(nil)

// Open creates (if needed) and migrates the database at cfg.Path.
func Open(cfg Config) (*Outbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := xrelay.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	o := &Outbox{cfg: cfg, db: db, codec: codec}
	if err := o.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = o.db.ExecContext(ctx, string(b))
	return err
}

// DB exposes the handle so producers can open transactions for EnqueueTx.
func (o *Outbox) DB() *sql.DB { return o.db }

func (o *Outbox) Close() error {
	if o == nil || o.db == nil {
		return nil
	}
	return o.db.Close()
}

// Enqueue stores evt as a pending row and returns its id.
func (o *Outbox) Enqueue(ctx context.Context, evt xrelay.Event) (string, error) {
	return o.EnqueueTx(ctx, o.db, evt)
}

// EnqueueTx stores evt through exec; the row becomes visible when exec's transaction commits.
func (o *Outbox) EnqueueTx(ctx context.Context, exec Executor, evt xrelay.Event) (string, error) {
	rcpt, err := xrelay.EncodeRecipients(o.codec, evt.Recipients)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = exec.ExecContext(ctx,
		`INSERT INTO outbox(id, origin, data, recipients, status, created_at) VALUES(?,?,?,?,?,?)`,
		id, evt.Payload.Origin, evt.Payload.Data, rcpt, statusPending, now(ctx).UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Read claims the oldest pending row.
func (o *Outbox) Read(ctx context.Context) (xrelay.ReadOutcome, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return xrelay.Empty(), err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		seq    int64
		id     string
		origin string
		data   []byte
		rcpt   []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, id, origin, data, recipients FROM outbox WHERE status = ? ORDER BY seq LIMIT 1`,
		statusPending,
	).Scan(&seq, &id, &origin, &data, &rcpt)
	if errors.Is(err, sql.ErrNoRows) {
		// release the only connection before pruning
		_ = tx.Rollback()
		o.maybePrune(ctx)
		return xrelay.Empty(), nil
	}
	if err != nil {
		return xrelay.Empty(), err
	}

	evt := xrelay.Event{Payload: xrelay.Payload{Origin: origin, Data: data}}
	status := statusDispatched
	addrs, derr := xrelay.DecodeRecipients(o.codec, rcpt)
	if derr != nil {
		status = statusMalformed
	} else {
		evt.Recipients = addrs
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET status = ?, dispatched_at = ? WHERE seq = ?`,
		status, now(ctx).UnixMilli(), seq,
	); err != nil {
		return xrelay.Empty(), err
	}
	if err := tx.Commit(); err != nil {
		return xrelay.Empty(), err
	}

	if derr != nil {
		if lg, ok := xrelay.LoggerFromContext(ctx); ok {
			lg.Warn().Err(derr).Str("id", id).Msg("sqlite: malformed outbox row set aside")
		}
		return xrelay.Got(xrelay.Event{}), nil
	}
	return xrelay.Got(evt), nil
}

// Pending counts rows not yet read.
func (o *Outbox) Pending(ctx context.Context) (int, error) {
	var n int
	err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = ?`, statusPending).Scan(&n)
	return n, err
}

// Prune deletes dispatched rows older than the retention window.
func (o *Outbox) Prune(ctx context.Context) (int64, error) {
	if o.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := now(ctx).Add(-o.cfg.Retention).UnixMilli()
	res, err := o.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = ? AND dispatched_at < ?`, statusDispatched, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (o *Outbox) maybePrune(ctx context.Context) {
	if o.cfg.Retention <= 0 || o.reads.Add(1)%pruneEvery != 0 {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, _ = o.Prune(pctx)
}

func now(ctx context.Context) time.Time {
	if c, ok := xrelay.ClockFromContext(ctx); ok {
		return c.Now()
	}
	return time.Now()
}
