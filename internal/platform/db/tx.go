package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConcurrentUpdate is returned when a transaction kept losing to
// concurrent writers on the same rows and ran out of attempts.
var ErrConcurrentUpdate = errors.New("platform/db: concurrent update")

const (
	maxTxAttempts = 3
	txRetryDelay  = 20 * time.Millisecond
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, letting a
// repository run the same statements inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level. A serialization failure, a deadlock or ErrConcurrentUpdate
// from fn reruns fn on a fresh snapshot, so fn must not leak state between
// attempts.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return RetryConflicts(ctx, func() error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// RetryConflicts runs attempt until it stops failing with a conflict, at most
// three times. The last conflict is returned wrapped in ErrConcurrentUpdate.
func RetryConflicts(ctx context.Context, attempt func() error) error {
	var err error
	for i := range maxTxAttempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * txRetryDelay):
			}
		}
		err = attempt()
		if !IsConflict(err) {
			return err
		}
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
}

// IsConflict reports whether err means the transaction lost a race and can
// be retried.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
