package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the Postgres driver. Exactly one of URL or Pool
// is required.
type PostgresConfig struct {
	// URL is a postgres:// connection URL. When set, the driver owns the
	// resulting pool and closes it on Close.
	URL string
	// Pool is a pre-built connection pool whose lifecycle the caller owns;
	// Close leaves it open.
	Pool *pgxpool.Pool
	// Table is the cache table name. Defaults to "cache".
	Table string
	// SweepInterval is how often expired rows are removed in the
	// background. Defaults to DefaultSweepInterval.
	SweepInterval time.Duration
	// QueryTimeout bounds each query. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// Postgres emulates TTL the same way SQLite does: a nullable timestamptz
// expires_at column, a lazy check by the caller, and a background sweep.
type postgresDriver struct {
	pool         *pgxpool.Pool
	table        string
	queryTimeout time.Duration
	ownsPool     bool
	ctx          context.Context
	cancel       context.CancelFunc
	waitGroup    sync.WaitGroup
	once         sync.Once
}

var _ Driver = (*postgresDriver)(nil)

// NewPostgres returns a Driver backed by a Postgres table with schema
// {key text primary key, payload bytea, created_at timestamptz,
// expires_at timestamptz null}. The table is created if missing.
func NewPostgres(parent context.Context, cfg PostgresConfig) (Driver, error) {
	if cfg.Table == "" {
		cfg.Table = "cache"
	}
	if !validTableName(cfg.Table) {
		return nil, &ConfigError{Driver: "postgres", Field: "Table", Reason: "not a valid identifier"}
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	pool := cfg.Pool
	ownsPool := false
	if pool == nil {
		if cfg.URL == "" {
			return nil, &ConfigError{Driver: "postgres", Field: "URL", Reason: "required when no pool is provided"}
		}
		poolCfg, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, &ConfigError{Driver: "postgres", Field: "URL", Reason: err.Error()}
		}
		pool, err = pgxpool.NewWithConfig(parent, poolCfg)
		if err != nil {
			return nil, wrapOp("postgres", "connect", "", err)
		}
		ownsPool = true
	}

	initCtx, cancel := context.WithTimeout(parent, cfg.QueryTimeout)
	defer cancel()
	if _, err := pool.Exec(initCtx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ
	)`, cfg.Table)); err != nil {
		if ownsPool {
			pool.Close()
		}
		return nil, wrapOp("postgres", "init", "", err)
	}
	if _, err := pool.Exec(initCtx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at)`,
		cfg.Table, cfg.Table,
	)); err != nil {
		if ownsPool {
			pool.Close()
		}
		return nil, wrapOp("postgres", "init", "", err)
	}

	childCtx, cancelChild := context.WithCancel(parent)
	d := &postgresDriver{
		pool:         pool,
		table:        cfg.Table,
		queryTimeout: cfg.QueryTimeout,
		ownsPool:     ownsPool,
		ctx:          childCtx,
		cancel:       cancelChild,
	}

	d.waitGroup.Add(1)
	go d.sweep(cfg.SweepInterval)

	return d, nil
}

func (d *postgresDriver) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.queryTimeout)
}

func (d *postgresDriver) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var payload []byte
	var createdAt time.Time
	var expiresAt *time.Time
	err := d.pool.QueryRow(qctx, fmt.Sprintf(
		`SELECT payload, created_at, expires_at FROM %s WHERE key = $1`, d.table,
	), key).Scan(&payload, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapOp("postgres", "get", key, err)
	}
	entry := &Entry{Key: key, Payload: payload, CreatedAt: createdAt}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	return entry, nil
}

func (d *postgresDriver) Put(ctx context.Context, entry *Entry) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		expiresAt = &entry.ExpiresAt
	}
	_, err := d.pool.Exec(qctx, fmt.Sprintf(
		`INSERT INTO %s (key, payload, created_at, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		d.table,
	), entry.Key, entry.Payload, entry.CreatedAt, expiresAt)
	if err != nil {
		return wrapOp("postgres", "put", entry.Key, err)
	}
	return nil
}

func (d *postgresDriver) Delete(ctx context.Context, key string) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if _, err := d.pool.Exec(qctx, fmt.Sprintf(
		`DELETE FROM %s WHERE key = $1`, d.table,
	), key); err != nil {
		return wrapOp("postgres", "delete", key, err)
	}
	return nil
}

func (d *postgresDriver) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	var exists bool
	err := d.pool.QueryRow(qctx, fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1
			AND (expires_at IS NULL OR expires_at > now()))`, d.table,
	), key).Scan(&exists)
	if err != nil {
		return false, wrapOp("postgres", "exists", key, err)
	}
	return exists, nil
}

func (d *postgresDriver) Flush(ctx context.Context) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if _, err := d.pool.Exec(qctx, fmt.Sprintf(`DELETE FROM %s`, d.table)); err != nil {
		return wrapOp("postgres", "flush", "", err)
	}
	return nil
}

func (d *postgresDriver) Close(context.Context) error {
	d.once.Do(func() {
		d.cancel()
		d.waitGroup.Wait()
		if d.ownsPool {
			d.pool.Close()
		}
	})
	return nil
}

func (d *postgresDriver) sweep(interval time.Duration) {
	defer d.waitGroup.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			sctx, cancel := context.WithTimeout(context.Background(), d.queryTimeout)
			_, _ = d.pool.Exec(sctx, fmt.Sprintf(
				`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < now()`, d.table,
			))
			cancel()
		}
	}
}
