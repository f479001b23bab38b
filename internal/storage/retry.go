package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	mirrorMaxRetries = 3
	mirrorRetryDelay = 100 * time.Millisecond
)

// isRetriable returns true for Postgres error codes that indicate a
// transient failure worth retrying against the mirror: serialization
// conflicts with the replication writer, and connection drops during a
// mirror failover.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure
		return true
	case "40P01": // deadlock_detected
		return true
	case "57P03": // cannot_connect_now (mirror restarting)
		return true
	default:
		return false
	}
}

// withRetry executes fn, retrying up to maxRetries times on transient
// mirror errors with jittered exponential backoff starting at baseDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := range maxRetries + 1 {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}
