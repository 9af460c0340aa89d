package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable marks errors caused by lost backend connectivity.
	// Callers may retry with backoff; the driver itself never retries.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout marks errors caused by an exceeded deadline, either the
	// operation context's or the backend client's own.
	ErrTimeout = errors.New("backend timeout")

	// ErrFlushNotSupported is returned by Flush on backends that cannot
	// enumerate their keyspace (DynamoDB).
	ErrFlushNotSupported = errors.New("flush not supported")
)

// ConfigError reports invalid or missing driver configuration. It is
// returned by driver constructors, never by operations: bad configuration
// fails fast at construction.
type ConfigError struct {
	Driver string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s driver config: %s: %s", e.Driver, e.Field, e.Reason)
}

// wrapOp wraps a backend error with driver and operation context, tagging it
// with ErrTimeout or ErrUnavailable where the cause is recognizable so
// callers can branch with errors.Is. The original error stays in the chain.
func wrapOp(driver, op, key string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &netErr):
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if key == "" {
		return fmt.Errorf("%s: %s: %w", driver, op, err)
	}
	return fmt.Errorf("%s: %s %q: %w", driver, op, key, err)
}
