package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
)

// UnitOfWork runs a multi-statement write atomically. fn receives a DBTX
// bound to the transaction; repositories built from it join the transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

const (
	defaultTxAttempts = 3
	txRetryDelay      = 20 * time.Millisecond
	sqliteBusy        = 5 // SQLITE_BUSY primary result code
)

// SQLiteUnitOfWork implements UnitOfWork with database/sql transactions.
// A transaction that fails with SQLITE_BUSY is rerun from the start, at
// most attempts times in total.
type SQLiteUnitOfWork struct {
	db        *sql.DB
	attempts  int
	retryable func(error) bool
}

func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db, attempts: defaultTxAttempts, retryable: IsBusy}
}

// WithRetry overrides how often and on which errors WithinTx reruns fn.
func (u *SQLiteUnitOfWork) WithRetry(attempts int, retryable func(error) bool) *SQLiteUnitOfWork {
	if attempts < 1 {
		attempts = 1
	}
	u.attempts = attempts
	u.retryable = retryable
	return u
}

// WithinTx commits when fn returns nil and rolls back on error or panic.
// fn may run more than once and must not keep state between runs.
func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err = u.runOnce(ctx, fn)
		if err == nil || u.retryable == nil || !u.retryable(err) || attempt == u.attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * txRetryDelay):
		}
	}
	return err
}

func (u *SQLiteUnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite refusing a lock held by another
// connection.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqliteBusy
	}
	return false
}
