package driver

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueryTimeout is the per-operation timeout applied by drivers that
// perform I/O. Prevents indefinite hangs on slow or unresponsive backends.
const DefaultQueryTimeout = 5 * time.Second

// RedisConfig configures the Redis driver. Exactly one of URL or Client is
// required.
type RedisConfig struct {
	// URL is a redis:// connection URL. When set, the driver owns the
	// resulting client and closes it on Close.
	URL string
	// Client is a pre-built client whose lifecycle the caller owns; Close
	// leaves it open.
	Client *redis.Client
	// Prefix namespaces keys as "<prefix>:<key>". Empty means no prefix.
	Prefix string
	// QueryTimeout bounds each backend operation. Defaults to
	// DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// Redis stores entries as hashes with fields "v" (payload), "c" (created,
// unix nanos) and "e" (deadline, unix nanos; 0 = never). TTL is native: the
// hash carries a Redis EXPIRE matching the entry's deadline, so Redis evicts
// on its own. The deadline is still stored in the hash for the caller's lazy
// check.
type redisDriver struct {
	client     *redis.Client
	cfg        RedisConfig
	ownsClient bool
}

var _ Driver = (*redisDriver)(nil)

// NewRedis returns a Driver backed by Redis. When constructed from a URL the
// connection is verified with a ping before the driver is returned.
func NewRedis(ctx context.Context, cfg RedisConfig) (Driver, error) {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	d := &redisDriver{client: cfg.Client, cfg: cfg}
	if d.client == nil {
		if cfg.URL == "" {
			return nil, &ConfigError{Driver: "redis", Field: "URL", Reason: "required when no client is provided"}
		}
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, &ConfigError{Driver: "redis", Field: "URL", Reason: err.Error()}
		}
		d.client = redis.NewClient(opts)
		d.ownsClient = true
		pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
		if err := d.client.Ping(pingCtx).Err(); err != nil {
			d.client.Close()
			return nil, wrapOp("redis", "ping", "", err)
		}
	}
	return d, nil
}

func (d *redisDriver) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.cfg.QueryTimeout)
}

func (d *redisDriver) prefixKey(key string) string {
	if d.cfg.Prefix == "" {
		return key
	}
	return d.cfg.Prefix + ":" + key
}

func (d *redisDriver) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	fields, err := d.client.HGetAll(qctx, d.prefixKey(key)).Result()
	if err != nil {
		return nil, wrapOp("redis", "get", key, err)
	}
	if len(fields) == 0 {
		// Absent (or natively expired) is not an error.
		return nil, nil
	}
	entry := &Entry{Key: key, Payload: []byte(fields["v"])}
	if ns, err := strconv.ParseInt(fields["c"], 10, 64); err == nil && ns > 0 {
		entry.CreatedAt = time.Unix(0, ns)
	}
	if ns, err := strconv.ParseInt(fields["e"], 10, 64); err == nil && ns > 0 {
		entry.ExpiresAt = time.Unix(0, ns)
	}
	return entry, nil
}

func (d *redisDriver) Put(ctx context.Context, entry *Entry) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	k := d.prefixKey(entry.Key)
	var expires int64
	if !entry.ExpiresAt.IsZero() {
		expires = entry.ExpiresAt.UnixNano()
	}
	pipe := d.client.Pipeline()
	pipe.HSet(qctx, k, "v", entry.Payload, "c", entry.CreatedAt.UnixNano(), "e", expires)
	if entry.ExpiresAt.IsZero() {
		// Overwriting may inherit a previous native TTL; clear it.
		pipe.Persist(qctx, k)
	} else {
		pipe.PExpireAt(qctx, k, entry.ExpiresAt)
	}
	if _, err := pipe.Exec(qctx); err != nil {
		return wrapOp("redis", "put", entry.Key, err)
	}
	return nil
}

func (d *redisDriver) Delete(ctx context.Context, key string) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if err := d.client.Del(qctx, d.prefixKey(key)).Err(); err != nil {
		return wrapOp("redis", "delete", key, err)
	}
	return nil
}

func (d *redisDriver) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	n, err := d.client.Exists(qctx, d.prefixKey(key)).Result()
	if err != nil {
		return false, wrapOp("redis", "exists", key, err)
	}
	return n > 0, nil
}

func (d *redisDriver) Flush(ctx context.Context) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if d.cfg.Prefix == "" {
		if err := d.client.FlushDB(qctx).Err(); err != nil {
			return wrapOp("redis", "flush", "", err)
		}
		return nil
	}
	// Prefixed caches share the database with other tenants, so only the
	// prefix's keys are removed.
	iter := d.client.Scan(qctx, 0, d.cfg.Prefix+":*", 100).Iterator()
	for iter.Next(qctx) {
		if err := d.client.Del(qctx, iter.Val()).Err(); err != nil {
			return wrapOp("redis", "flush", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return wrapOp("redis", "flush", "", err)
	}
	return nil
}

func (d *redisDriver) Close(context.Context) error {
	if !d.ownsClient {
		return nil
	}
	return d.client.Close()
}
