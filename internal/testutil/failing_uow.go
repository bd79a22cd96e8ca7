package testutil

import (
	"context"
	"database/sql"
	"strings"

	"github.com/alexanderramin/budgetcore/internal/db"
)

// FailingWriteUoW runs WithinTx on a real unit of work but makes the first
// write whose SQL contains Match return Err. An empty Match fails the first
// write of the transaction. Reads always go through.
type FailingWriteUoW struct {
	DB    *sql.DB
	Match string
	Err   error
}

func (u *FailingWriteUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	// No retries: the injected error must reach the caller as is.
	inner := db.NewSQLiteUnitOfWork(u.DB).WithRetry(1, nil)
	return inner.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &failingWrites{DBTX: tx, match: u.Match, err: u.Err})
	})
}

type failingWrites struct {
	db.DBTX
	match string
	err   error
	fired bool
}

func (f *failingWrites) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !f.fired && strings.Contains(query, f.match) {
		f.fired = true
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
