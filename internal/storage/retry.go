package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Resolution writes contend on shared rows: every delta touches the
// variable table and every round advance touches the singleton state
// row. Under concurrent resolutions Postgres can fail such statements
// with a serialization or deadlock error; both are transient and the
// statements are single self-contained writes, so replaying them is
// safe.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	writeRetries   = 3
	writeBaseDelay = 25 * time.Millisecond
)

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// retryWrite runs fn, replaying it on transient conflicts with jittered
// exponential backoff. Any other error, including the storage sentinels,
// returns immediately.
func retryWrite(ctx context.Context, fn func() error) error {
	delay := writeBaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || attempt == writeRetries {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(delay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}
