// Package cache provides a uniform caching API over interchangeable storage
// backends: in-process memory, Redis, SQLite, Postgres, and DynamoDB.
//
// # Façade and drivers
//
// A [Cache] pairs one [driver.Driver] with one [codec.Codec]. Application
// code talks only to the façade; swapping the backend never changes call
// sites:
//
//	drv := driver.NewMemory(ctx, driver.MemoryConfig{})
//	c := cache.New(drv)
//	defer c.Close(ctx)
//
//	err := cache.Put(ctx, c, "user:123", user, 10*time.Minute)
//	found, user, err := cache.Get[User](ctx, c, "user:123")
//
// Because Go does not allow generic methods, the typed operations are
// package-level generic functions: [Get], [Put], [Forever], [Remember],
// [RememberForever], [Pull], and [Add]. Untyped operations ([Cache.Has],
// [Cache.Forget], [Cache.Flush], [Cache.Close]) are plain methods.
//
// # TTL semantics
//
// A TTL is translated into an absolute deadline once, at write time. On
// every read the façade rejects entries past their deadline before decoding,
// regardless of the backend: drivers with native TTL (Redis, DynamoDB) use
// it only to reclaim storage, drivers without it (memory, SQLite, Postgres)
// store the deadline alongside the payload and sweep expired entries in the
// background. Callers therefore reason about expiry identically across all
// five backends. [NoTTL] stores an entry that never expires.
//
// # Errors
//
// Absence is never an error — misses are reported as found=false. Backend
// failures surface wrapped with driver and operation context and can be
// classified with errors.Is against [driver.ErrUnavailable] and
// [driver.ErrTimeout]; the façade never retries and never falls back to
// another driver. Serialization failures carry [codec.ErrEncode] or
// [codec.ErrDecode] and are not retryable. Bad driver configuration fails at
// construction with a [driver.ConfigError], not at first use.
//
// # Concurrency
//
// A Cache may be shared freely across goroutines. The façade holds no lock
// across operations, so [Remember]'s read-then-write sequence is racy by
// design: concurrent misses may compute the value more than once, and the
// last write wins. Writes are full-key overwrites, so the race can waste
// work but never corrupt state.
package cache
