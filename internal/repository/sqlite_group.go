package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// SQLiteGroupRepo implements GroupRepo. Membership lives on nodes.group_id,
// so a node belongs to at most one group and members are read back in
// sibling order.
type SQLiteGroupRepo struct {
	db db.DBTX
}

func NewSQLiteGroupRepo(conn db.DBTX) *SQLiteGroupRepo {
	return &SQLiteGroupRepo{db: conn}
}

func (r *SQLiteGroupRepo) Create(ctx context.Context, budgetID domain.ID, g *domain.Group) error {
	now := nowUTC()
	id, err := insertID(ctx, r.db, "group",
		`INSERT INTO budget_groups (budget_id, parent_id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64(budgetID), int64(g.ParentID), g.Name, g.Color, now, now)
	if err != nil {
		return err
	}
	g.ID = id
	if len(g.Children) > 0 {
		return r.SetMembers(ctx, id, g.Children)
	}
	return nil
}

func (r *SQLiteGroupRepo) GetByID(ctx context.Context, id domain.ID) (*domain.Group, error) {
	var (
		g        domain.Group
		parentID int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT parent_id, name, color FROM budget_groups WHERE id = ?`, int64(id),
	).Scan(&parentID, &g.Name, &g.Color)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning group: %w", err)
	}
	g.ID = id
	g.ParentID = domain.ID(parentID)
	g.Children, err = queryIDs(ctx, r.db,
		`SELECT id FROM nodes WHERE group_id = ? ORDER BY order_index, id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("listing members of group %d: %w", id, err)
	}
	return &g, nil
}

func (r *SQLiteGroupRepo) ListByParent(ctx context.Context, parentID domain.ID) ([]*domain.Group, error) {
	groups, err := r.list(ctx,
		`SELECT id, parent_id, name, color FROM budget_groups WHERE parent_id = ? ORDER BY id`, int64(parentID))
	if err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups,
		`SELECT group_id, id FROM nodes WHERE parent_id = ? AND group_id IS NOT NULL
		ORDER BY order_index, id`, int64(parentID))
}

func (r *SQLiteGroupRepo) ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Group, error) {
	groups, err := r.list(ctx,
		`SELECT id, parent_id, name, color FROM budget_groups WHERE budget_id = ? ORDER BY parent_id, id`, int64(budgetID))
	if err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups,
		`SELECT group_id, id FROM nodes WHERE budget_id = ? AND group_id IS NOT NULL
		ORDER BY order_index, id`, int64(budgetID))
}

func (r *SQLiteGroupRepo) Update(ctx context.Context, g *domain.Group) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budget_groups SET name = ?, color = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Color, nowUTC(), int64(g.ID))
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	return mustAffect(res, "group", g.ID)
}

// SetMembers replaces the member list of a group. Nodes listed here leave any
// group they were in before.
func (r *SQLiteGroupRepo) SetMembers(ctx context.Context, groupID domain.ID, nodeIDs []domain.ID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET group_id = NULL WHERE group_id = ?`, int64(groupID)); err != nil {
		return fmt.Errorf("clearing group %d: %w", groupID, err)
	}
	for _, id := range nodeIDs {
		res, err := r.db.ExecContext(ctx,
			`UPDATE nodes SET group_id = ?, updated_at = ? WHERE id = ?`,
			int64(groupID), nowUTC(), int64(id))
		if err != nil {
			return fmt.Errorf("adding node %d to group %d: %w", id, groupID, err)
		}
		if err := mustAffect(res, "node", id); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteGroupRepo) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_groups WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return mustAffect(res, "group", id)
}

func (r *SQLiteGroupRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()
	var groups []*domain.Group
	for rows.Next() {
		var (
			g            domain.Group
			id, parentID int64
		)
		if err := rows.Scan(&id, &parentID, &g.Name, &g.Color); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		g.ID = domain.ID(id)
		g.ParentID = domain.ID(parentID)
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

func (r *SQLiteGroupRepo) attachMembers(ctx context.Context, groups []*domain.Group, query string, args ...any) error {
	if len(groups) == 0 {
		return nil
	}
	byID := make(map[domain.ID]*domain.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var groupID, nodeID int64
		if err := rows.Scan(&groupID, &nodeID); err != nil {
			return fmt.Errorf("scanning group member: %w", err)
		}
		if g, ok := byID[domain.ID(groupID)]; ok {
			g.Children = append(g.Children, domain.ID(nodeID))
		}
	}
	return rows.Err()
}
