package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// ErrNotFound is returned, wrapped, when a row does not exist.
var ErrNotFound = domain.ErrNotFound

// nullableFloat converts a *float64 to a value suitable for SQLite storage.
func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// floatPtr converts a scanned REAL column back to a *float64.
func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// nullableID stores zero as SQL NULL.
func nullableID(id domain.ID) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func idOrZero(v sql.NullInt64) domain.ID {
	if !v.Valid {
		return 0
	}
	return domain.ID(v.Int64)
}

// nowUTC returns the current UTC time formatted as RFC3339.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// insertID runs an INSERT and returns the generated row id.
func insertID(ctx context.Context, conn db.DBTX, what, query string, args ...any) (domain.ID, error) {
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading %s id: %w", what, err)
	}
	return domain.ID(id), nil
}

// mustAffect turns an UPDATE or DELETE that touched no row into ErrNotFound.
func mustAffect(res sql.Result, what string, id domain.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

// queryIDs runs a query returning one integer column.
func queryIDs(ctx context.Context, conn db.DBTX, query string, args ...any) ([]domain.ID, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []domain.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.ID(id))
	}
	return ids, rows.Err()
}

// replaceLinks rewrites a (owner, member, position) link table for owner.
func replaceLinks(ctx context.Context, conn db.DBTX, table, ownerCol, memberCol string, owner domain.ID, members []domain.ID) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = ?`, int64(owner)); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	for i, m := range members {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO `+table+` (`+ownerCol+`, `+memberCol+`, position) VALUES (?, ?, ?)`,
			int64(owner), int64(m), i)
		if err != nil {
			return fmt.Errorf("linking %s %d: %w", table, m, err)
		}
	}
	return nil
}
