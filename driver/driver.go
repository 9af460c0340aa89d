// Package driver defines the storage backend contract for the cache façade
// and provides implementations for in-process memory, Redis, SQLite,
// Postgres, and DynamoDB, plus a no-op Null driver and a tiered Composite.
//
// A driver stores opaque Entry values. It never decodes payloads and never
// decides logical expiry on the read path — Get returns whatever the backend
// holds, and the façade applies the expiry check uniformly. Native backend
// TTL (Redis, DynamoDB) is storage reclamation, not a substitute for that
// check.
package driver

import (
	"context"
	"time"
)

// Entry is a single stored cache value plus its expiry metadata.
// A zero ExpiresAt means the entry never expires.
type Entry struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry's deadline has passed at now.
// Entries without a deadline never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// ExpiryFrom translates a relative TTL into an absolute deadline.
// A ttl <= 0 means "never expires" and yields the zero time.
// The translation happens once, at write time; the deadline is never
// re-derived afterwards.
func ExpiryFrom(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Driver is the raw storage contract implemented by every backend variant.
// One Driver instance is owned by exactly one cache for its lifetime; the
// backend connection it holds is released by Close.
//
// Absence is not an error: Get returns (nil, nil) and Exists returns false
// for keys the backend does not hold.
type Driver interface {
	// Get returns the stored entry for key, or nil if absent. Entries past
	// their deadline may still be returned; the caller filters them.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores the entry, atomically overwriting any previous entry for
	// the same key. Backends with native TTL translate the entry's deadline
	// into their own expiry mechanism here.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes the entry for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a live entry is stored for key, without
	// reading its payload.
	Exists(ctx context.Context, key string) (bool, error)

	// Flush removes every entry. Backends that cannot enumerate their
	// keyspace return ErrFlushNotSupported.
	Flush(ctx context.Context) error

	// Close releases the backend connection owned by the driver and stops
	// any background sweeping. Safe to call more than once.
	Close(ctx context.Context) error
}
