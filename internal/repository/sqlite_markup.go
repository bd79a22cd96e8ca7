package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

const markupColumns = `id, parent_id, identifier, description, unit, rate, actual`

// SQLiteMarkupRepo implements MarkupRepo using a SQLite database.
type SQLiteMarkupRepo struct {
	db db.DBTX
}

func NewSQLiteMarkupRepo(conn db.DBTX) *SQLiteMarkupRepo {
	return &SQLiteMarkupRepo{db: conn}
}

func (r *SQLiteMarkupRepo) Create(ctx context.Context, budgetID domain.ID, m *domain.Markup) error {
	now := nowUTC()
	id, err := insertID(ctx, r.db, "markup",
		`INSERT INTO markups (budget_id, parent_id, identifier, description, unit, rate, actual, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(budgetID), int64(m.ParentID), m.Identifier, m.Description,
		string(m.Unit), nullableFloat(m.Rate), m.Actual, now, now)
	if err != nil {
		return err
	}
	m.ID = id
	if len(m.Children) > 0 {
		return r.SetChildren(ctx, id, m.Children)
	}
	return nil
}

func (r *SQLiteMarkupRepo) GetByID(ctx context.Context, id domain.ID) (*domain.Markup, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+markupColumns+` FROM markups WHERE id = ?`, int64(id))
	m, err := scanMarkup(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("markup %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning markup: %w", err)
	}
	m.Children, err = queryIDs(ctx, r.db,
		`SELECT node_id FROM markup_children WHERE markup_id = ? ORDER BY position`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("listing children of markup %d: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteMarkupRepo) ListByParent(ctx context.Context, parentID domain.ID) ([]*domain.Markup, error) {
	markups, err := r.list(ctx,
		`SELECT `+markupColumns+` FROM markups WHERE parent_id = ? ORDER BY id`, int64(parentID))
	if err != nil {
		return nil, err
	}
	return markups, r.attachChildren(ctx, markups,
		`SELECT mc.markup_id, mc.node_id FROM markup_children mc
		JOIN markups m ON m.id = mc.markup_id
		WHERE m.parent_id = ? ORDER BY mc.markup_id, mc.position`, int64(parentID))
}

func (r *SQLiteMarkupRepo) ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Markup, error) {
	markups, err := r.list(ctx,
		`SELECT `+markupColumns+` FROM markups WHERE budget_id = ? ORDER BY parent_id, id`, int64(budgetID))
	if err != nil {
		return nil, err
	}
	return markups, r.attachChildren(ctx, markups,
		`SELECT mc.markup_id, mc.node_id FROM markup_children mc
		JOIN markups m ON m.id = mc.markup_id
		WHERE m.budget_id = ? ORDER BY mc.markup_id, mc.position`, int64(budgetID))
}

func (r *SQLiteMarkupRepo) Update(ctx context.Context, m *domain.Markup) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE markups SET identifier = ?, description = ?, unit = ?, rate = ?, actual = ?, updated_at = ?
		WHERE id = ?`,
		m.Identifier, m.Description, string(m.Unit), nullableFloat(m.Rate), m.Actual, nowUTC(), int64(m.ID))
	if err != nil {
		return fmt.Errorf("updating markup: %w", err)
	}
	return mustAffect(res, "markup", m.ID)
}

func (r *SQLiteMarkupRepo) SetChildren(ctx context.Context, markupID domain.ID, nodeIDs []domain.ID) error {
	return replaceLinks(ctx, r.db, "markup_children", "markup_id", "node_id", markupID, nodeIDs)
}

func (r *SQLiteMarkupRepo) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM markups WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting markup: %w", err)
	}
	return mustAffect(res, "markup", id)
}

func (r *SQLiteMarkupRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Markup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing markups: %w", err)
	}
	defer rows.Close()
	var markups []*domain.Markup
	for rows.Next() {
		m, err := scanMarkup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning markup row: %w", err)
		}
		markups = append(markups, m)
	}
	return markups, rows.Err()
}

func (r *SQLiteMarkupRepo) attachChildren(ctx context.Context, markups []*domain.Markup, query string, args ...any) error {
	if len(markups) == 0 {
		return nil
	}
	byID := make(map[domain.ID]*domain.Markup, len(markups))
	for _, m := range markups {
		byID[m.ID] = m
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing markup children: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var markupID, nodeID int64
		if err := rows.Scan(&markupID, &nodeID); err != nil {
			return fmt.Errorf("scanning markup child: %w", err)
		}
		if m, ok := byID[domain.ID(markupID)]; ok {
			m.Children = append(m.Children, domain.ID(nodeID))
		}
	}
	return rows.Err()
}

func scanMarkup(s scanner) (*domain.Markup, error) {
	var (
		m            domain.Markup
		id, parentID int64
		unit         string
		rate         sql.NullFloat64
	)
	if err := s.Scan(&id, &parentID, &m.Identifier, &m.Description, &unit, &rate, &m.Actual); err != nil {
		return nil, err
	}
	m.ID = domain.ID(id)
	m.ParentID = domain.ID(parentID)
	m.Unit = domain.Unit(unit)
	m.Rate = floatPtr(rate)
	return &m, nil
}
