package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the SQLite driver.
type SQLiteConfig struct {
	// Path is the database file. Empty or ":memory:" uses an in-memory
	// database.
	Path string
	// Table is the cache table name. Defaults to "cache".
	Table string
	// SweepInterval is how often expired rows are removed in the
	// background. Defaults to DefaultSweepInterval.
	SweepInterval time.Duration
	// QueryTimeout bounds each query. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// SQLite emulates TTL entirely: the deadline lives in a nullable expires_at
// column (NULL = never expires), checked lazily by the caller and swept by a
// background goroutine.
type sqliteDriver struct {
	db           *sql.DB
	table        string
	queryTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	waitGroup    sync.WaitGroup
	once         sync.Once
}

var _ Driver = (*sqliteDriver)(nil)

func validTableName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return name != "" && name[0] != '_' && (name[0] < '0' || name[0] > '9')
}

// NewSQLite returns a Driver backed by a SQLite database (pure Go, no CGO).
// WAL mode is enabled for concurrent read performance.
func NewSQLite(parent context.Context, cfg SQLiteConfig) (Driver, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Table == "" {
		cfg.Table = "cache"
	}
	if !validTableName(cfg.Table) {
		return nil, &ConfigError{Driver: "sqlite", Field: "Table", Reason: "not a valid identifier"}
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &ConfigError{Driver: "sqlite", Field: "Path", Reason: err.Error()}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, wrapOp("sqlite", "init", "", err)
	}

	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER
	)`, cfg.Table)); err != nil {
		db.Close()
		return nil, wrapOp("sqlite", "init", "", err)
	}

	// Index for the background sweep.
	if _, err := db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at)`,
		cfg.Table, cfg.Table,
	)); err != nil {
		db.Close()
		return nil, wrapOp("sqlite", "init", "", err)
	}

	childCtx, cancel := context.WithCancel(parent)
	d := &sqliteDriver{
		db:           db,
		table:        cfg.Table,
		queryTimeout: cfg.QueryTimeout,
		ctx:          childCtx,
		cancel:       cancel,
	}

	d.waitGroup.Add(1)
	go d.sweep(cfg.SweepInterval)

	return d, nil
}

func (d *sqliteDriver) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.queryTimeout)
}

func (d *sqliteDriver) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var payload []byte
	var createdAt int64
	var expiresAt sql.NullInt64
	err := d.db.QueryRowContext(qctx, fmt.Sprintf(
		`SELECT payload, created_at, expires_at FROM %s WHERE key = ?`, d.table,
	), key).Scan(&payload, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapOp("sqlite", "get", key, err)
	}
	entry := &Entry{Key: key, Payload: payload, CreatedAt: time.Unix(0, createdAt)}
	if expiresAt.Valid {
		entry.ExpiresAt = time.Unix(0, expiresAt.Int64)
	}
	return entry, nil
}

func (d *sqliteDriver) Put(ctx context.Context, entry *Entry) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var expiresAt sql.NullInt64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = sql.NullInt64{Int64: entry.ExpiresAt.UnixNano(), Valid: true}
	}
	_, err := d.db.ExecContext(qctx, fmt.Sprintf(
		`INSERT INTO %s (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload,
			created_at = excluded.created_at, expires_at = excluded.expires_at`,
		d.table,
	), entry.Key, entry.Payload, entry.CreatedAt.UnixNano(), expiresAt)
	if err != nil {
		return wrapOp("sqlite", "put", entry.Key, err)
	}
	return nil
}

func (d *sqliteDriver) Delete(ctx context.Context, key string) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if _, err := d.db.ExecContext(qctx, fmt.Sprintf(
		`DELETE FROM %s WHERE key = ?`, d.table,
	), key); err != nil {
		return wrapOp("sqlite", "delete", key, err)
	}
	return nil
}

func (d *sqliteDriver) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var one int
	err := d.db.QueryRowContext(qctx, fmt.Sprintf(
		`SELECT 1 FROM %s WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		d.table,
	), key, time.Now().UnixNano()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapOp("sqlite", "exists", key, err)
	}
	return true, nil
}

func (d *sqliteDriver) Flush(ctx context.Context) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if _, err := d.db.ExecContext(qctx, fmt.Sprintf(`DELETE FROM %s`, d.table)); err != nil {
		return wrapOp("sqlite", "flush", "", err)
	}
	return nil
}

func (d *sqliteDriver) Close(context.Context) error {
	var dbErr error
	d.once.Do(func() {
		d.cancel()
		d.waitGroup.Wait()
		dbErr = d.db.Close()
	})
	return dbErr
}

func (d *sqliteDriver) sweep(interval time.Duration) {
	defer d.waitGroup.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			_, _ = d.db.Exec(fmt.Sprintf(
				`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < ?`, d.table,
			), time.Now().UnixNano())
		}
	}
}
