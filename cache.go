package cache

import (
	"context"
	"time"

	"github.com/keyfold/cache/codec"
	"github.com/keyfold/cache/driver"
)

// NoTTL stores an entry without an expiry deadline.
const NoTTL time.Duration = 0

// Cache is the typed façade over a storage driver. A Cache owns exactly one
// driver and one codec for its lifetime and is safe for concurrent use; it
// holds no lock across operations.
//
// Typed operations are the package-level generic functions (Get, Put,
// Remember, ...) because Go does not allow generic methods.
type Cache struct {
	drv   driver.Driver
	codec codec.Codec
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithCodec replaces the default Msgpack codec.
func WithCodec(c codec.Codec) Option {
	return func(ca *Cache) { ca.codec = c }
}

// WithClock replaces the time source used for expiry decisions. For tests.
func WithClock(now func() time.Time) Option {
	return func(ca *Cache) { ca.now = now }
}

// New returns a Cache over the given driver. The Cache takes ownership of
// the driver; Close releases it.
func New(drv driver.Driver, opts ...Option) *Cache {
	c := &Cache{
		drv:   drv,
		codec: codec.Msgpack{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Has reports whether a live entry exists for key, without decoding it.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	return c.drv.Exists(ctx, key)
}

// Forget removes the entry for key. Forgetting an absent key is not an
// error.
func (c *Cache) Forget(ctx context.Context, key string) error {
	return c.drv.Delete(ctx, key)
}

// Flush removes every entry. Drivers that cannot enumerate their keyspace
// return driver.ErrFlushNotSupported.
func (c *Cache) Flush(ctx context.Context) error {
	return c.drv.Flush(ctx)
}

// Close releases the driver and its backend connection.
func (c *Cache) Close(ctx context.Context) error {
	return c.drv.Close(ctx)
}

// Get retrieves the value stored under key. It returns false when the key is
// absent or its entry has expired — expiry is checked here, uniformly across
// all drivers, so native and emulated TTL behave identically. An expired
// entry is deleted best-effort so emulated-TTL backends reclaim the space.
func Get[T any](ctx context.Context, c *Cache, key string) (bool, T, error) {
	var zero T
	entry, err := c.drv.Get(ctx, key)
	if err != nil {
		return false, zero, err
	}
	if entry == nil {
		return false, zero, nil
	}
	if entry.Expired(c.now()) {
		_ = c.drv.Delete(ctx, key)
		return false, zero, nil
	}
	var v T
	if err := c.codec.Unmarshal(entry.Payload, &v); err != nil {
		return false, zero, err
	}
	return true, v, nil
}

// Put stores val under key for ttl. NoTTL (or any ttl <= 0) stores it
// without an expiry deadline. The relative ttl is translated into an
// absolute deadline once, here.
func Put[T any](ctx context.Context, c *Cache, key string, val T, ttl time.Duration) error {
	payload, err := c.codec.Marshal(val)
	if err != nil {
		return err
	}
	now := c.now()
	return c.drv.Put(ctx, &driver.Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: driver.ExpiryFrom(now, ttl),
	})
}

// Forever stores val under key without an expiry deadline.
func Forever[T any](ctx context.Context, c *Cache, key string, val T) error {
	return Put(ctx, c, key, val, NoTTL)
}

// Producer computes a value on a cache miss.
type Producer[T any] func(ctx context.Context) (T, error)

// Remember returns the value stored under key, or computes it with produce,
// stores it for ttl and returns it.
//
// Remember is not atomic across concurrent callers: two simultaneous misses
// may both invoke produce and both write, last write wins. That is a
// documented trade-off, not a bug — the worst case is a redundant recompute,
// never corruption, since every write is a full-key overwrite. A produce
// failure aborts the call without writing.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce Producer[T]) (T, error) {
	found, v, err := Get[T](ctx, c, key)
	if err != nil || found {
		return v, err
	}
	v, err = produce(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := Put(ctx, c, key, v, ttl); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// RememberForever is Remember without an expiry deadline.
func RememberForever[T any](ctx context.Context, c *Cache, key string, produce Producer[T]) (T, error) {
	return Remember(ctx, c, key, NoTTL, produce)
}

// Pull retrieves the value stored under key and removes it.
func Pull[T any](ctx context.Context, c *Cache, key string) (bool, T, error) {
	found, v, err := Get[T](ctx, c, key)
	if err != nil || !found {
		return false, v, err
	}
	if err := c.Forget(ctx, key); err != nil {
		var zero T
		return false, zero, err
	}
	return true, v, nil
}

// Add stores val under key only if no live entry exists yet, and reports
// whether it wrote. Like Remember, the probe-then-write sequence is not a
// critical section; concurrent Adds may both write.
func Add[T any](ctx context.Context, c *Cache, key string, val T, ttl time.Duration) (bool, error) {
	found, err := c.Has(ctx, key)
	if err != nil || found {
		return false, err
	}
	if err := Put(ctx, c, key, val, ttl); err != nil {
		return false, err
	}
	return true, nil
}
