package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

// ReadRetry bounds the retries of read queries on transient failures.
// Writes are never retried here.
type ReadRetry struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultReadRetry() ReadRetry {
	return ReadRetry{MaxRetries: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
}

type Option func(*BaseRepository)

func WithReadRetry(r ReadRetry) Option {
	return func(b *BaseRepository) { b.retry = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *BaseRepository) { b.metrics = m }
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db      *sqlx.DB
	retry   ReadRetry
	metrics *metrics.Metrics
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB, opts ...Option) BaseRepository {
	b := BaseRepository{db: db, retry: DefaultReadRetry()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// read runs fn, retrying with exponential backoff while the error is transient.
func (r *BaseRepository) read(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		if attempt > 0 && r.metrics != nil {
			r.metrics.DatabaseRetries.WithLabelValues(op).Inc()
		}
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.retry.MaxRetries), ctx))

	r.observe(op, err)
	return err
}

func (r *BaseRepository) observe(op string, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	r.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
}

// isTransient reports connection-level failures worth retrying on a read.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// mapError converts driver errors into repository sentinels.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// staleOnNoRows reports a conditional write that matched nothing as ErrStaleState.
func staleOnNoRows(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrStaleState)
	}
	return mapError(err, op)
}

// requireRows turns a zero-row write into ErrNotFound.
func requireRows(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}
