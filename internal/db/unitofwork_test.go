package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestUoW(t *testing.T) *db.SQLiteUnitOfWork {
	t.Helper()
	database, err := db.OpenDB(db.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return db.NewSQLiteUnitOfWork(database)
}

// budgetCount reads inside a fresh transaction so it sees committed state only.
func budgetCount(t *testing.T, uow *db.SQLiteUnitOfWork) int {
	t.Helper()
	var n int
	require.NoError(t, uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE kind = 'budget'`).Scan(&n)
	}))
	return n
}

func insertBudget(ctx context.Context, tx db.DBTX) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO nodes (kind, created_at, updated_at) VALUES ('budget', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	return err
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow := openTestUoW(t)

	err := uow.WithinTx(context.Background(), insertBudget)
	require.NoError(t, err)

	assert.Equal(t, 1, budgetCount(t, uow))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow := openTestUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertBudget(ctx, tx); err != nil {
			return err
		}
		return fmt.Errorf("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")
	assert.Zero(t, budgetCount(t, uow))
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow := openTestUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertBudget(ctx, tx)
			panic("boom")
		})
	})
	assert.Zero(t, budgetCount(t, uow))
}

var errLocked = errors.New("locked")

func TestWithinTx_RetriesRetryableErrors(t *testing.T) {
	uow := openTestUoW(t).WithRetry(3, func(err error) bool { return errors.Is(err, errLocked) })

	runs := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		runs++
		if err := insertBudget(ctx, tx); err != nil {
			return err
		}
		if runs == 1 {
			return errLocked
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, budgetCount(t, uow), "the failed run must be rolled back")
}

func TestWithinTx_GivesUpAfterAttempts(t *testing.T) {
	uow := openTestUoW(t).WithRetry(2, func(err error) bool { return errors.Is(err, errLocked) })

	runs := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		runs++
		return errLocked
	})
	require.ErrorIs(t, err, errLocked)
	assert.Equal(t, 2, runs)
}

func TestWithinTx_DoesNotRetryOtherErrors(t *testing.T) {
	uow := openTestUoW(t)

	runs := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		runs++
		return fmt.Errorf("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, runs)
	assert.False(t, db.IsBusy(err))
}
