package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

const fringeColumns = `id, budget_id, name, color, unit, rate, cutoff`

// SQLiteFringeRepo implements FringeRepo using a SQLite database.
type SQLiteFringeRepo struct {
	db db.DBTX
}

func NewSQLiteFringeRepo(conn db.DBTX) *SQLiteFringeRepo {
	return &SQLiteFringeRepo{db: conn}
}

func (r *SQLiteFringeRepo) Create(ctx context.Context, f *domain.Fringe) error {
	now := nowUTC()
	id, err := insertID(ctx, r.db, "fringe",
		`INSERT INTO fringes (budget_id, name, color, unit, rate, cutoff, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(f.BudgetID), f.Name, f.Color, string(f.Unit),
		nullableFloat(f.Rate), nullableFloat(f.Cutoff), now, now)
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (r *SQLiteFringeRepo) GetByID(ctx context.Context, id domain.ID) (*domain.Fringe, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fringeColumns+` FROM fringes WHERE id = ?`, int64(id))
	f, err := scanFringe(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("fringe %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning fringe: %w", err)
	}
	return f, nil
}

func (r *SQLiteFringeRepo) ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Fringe, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fringeColumns+` FROM fringes WHERE budget_id = ? ORDER BY id`, int64(budgetID))
	if err != nil {
		return nil, fmt.Errorf("listing fringes: %w", err)
	}
	defer rows.Close()
	var fringes []*domain.Fringe
	for rows.Next() {
		f, err := scanFringe(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fringe row: %w", err)
		}
		fringes = append(fringes, f)
	}
	return fringes, rows.Err()
}

func (r *SQLiteFringeRepo) Update(ctx context.Context, f *domain.Fringe) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE fringes SET name = ?, color = ?, unit = ?, rate = ?, cutoff = ?, updated_at = ?
		WHERE id = ?`,
		f.Name, f.Color, string(f.Unit), nullableFloat(f.Rate), nullableFloat(f.Cutoff), nowUTC(), int64(f.ID))
	if err != nil {
		return fmt.Errorf("updating fringe: %w", err)
	}
	return mustAffect(res, "fringe", f.ID)
}

// Delete removes a fringe and detaches it from every node.
func (r *SQLiteFringeRepo) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fringes WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting fringe: %w", err)
	}
	return mustAffect(res, "fringe", id)
}

func scanFringe(s scanner) (*domain.Fringe, error) {
	var (
		f            domain.Fringe
		id, budgetID int64
		unit         string
		rate, cutoff sql.NullFloat64
	)
	if err := s.Scan(&id, &budgetID, &f.Name, &f.Color, &unit, &rate, &cutoff); err != nil {
		return nil, err
	}
	f.ID = domain.ID(id)
	f.BudgetID = domain.ID(budgetID)
	f.Unit = domain.Unit(unit)
	f.Rate = floatPtr(rate)
	f.Cutoff = floatPtr(cutoff)
	return &f, nil
}
