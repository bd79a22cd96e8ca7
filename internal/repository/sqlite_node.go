package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// nodeColumns is the canonical SELECT column list for nodes.
const nodeColumns = `id, parent_id, kind, identifier, description,
		quantity, rate, multiplier, actual, fringe_contribution, group_id`

// SQLiteNodeRepo implements NodeRepo using a SQLite database.
type SQLiteNodeRepo struct {
	db db.DBTX
}

func NewSQLiteNodeRepo(conn db.DBTX) *SQLiteNodeRepo {
	return &SQLiteNodeRepo{db: conn}
}

// Create inserts n as the last child of its parent and sets n.ID. A budget
// row is its own budget and budgetID is ignored.
func (r *SQLiteNodeRepo) Create(ctx context.Context, budgetID domain.ID, n *domain.Node) error {
	now := nowUTC()
	var order int
	if n.ParentID != 0 {
		err := r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index), -1) + 1 FROM nodes WHERE parent_id = ?`,
			int64(n.ParentID)).Scan(&order)
		if err != nil {
			return fmt.Errorf("computing order for node: %w", err)
		}
	}
	id, err := insertID(ctx, r.db, "node",
		`INSERT INTO nodes (budget_id, parent_id, kind, identifier, description,
			quantity, rate, multiplier, actual, fringe_contribution, order_index, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(budgetID),
		nullableID(n.ParentID),
		string(n.Kind),
		n.Identifier,
		n.Description,
		nullableFloat(n.Quantity),
		nullableFloat(n.Rate),
		nullableFloat(n.Multiplier),
		n.Actual,
		n.FringeContribution,
		order,
		now, now,
	)
	if err != nil {
		return err
	}
	n.ID = id
	if n.Kind == domain.NodeBudget {
		if _, err := r.db.ExecContext(ctx, `UPDATE nodes SET budget_id = id WHERE id = ?`, int64(id)); err != nil {
			return fmt.Errorf("linking budget %d: %w", id, err)
		}
	}
	if len(n.Fringes) > 0 {
		return r.SetFringes(ctx, id, n.Fringes)
	}
	return nil
}

// GetByID returns the node with its child ids, group and fringes.
func (r *SQLiteNodeRepo) GetByID(ctx context.Context, id domain.ID) (*domain.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, int64(id))
	n, err := scanNode(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	n.Children, err = queryIDs(ctx, r.db, `SELECT id FROM nodes WHERE parent_id = ? ORDER BY order_index, id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("listing children of node %d: %w", id, err)
	}
	n.Fringes, err = queryIDs(ctx, r.db, `SELECT fringe_id FROM node_fringes WHERE node_id = ? ORDER BY position`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("listing fringes of node %d: %w", id, err)
	}
	return n, nil
}

// BudgetOf returns the id of the budget a node belongs to.
func (r *SQLiteNodeRepo) BudgetOf(ctx context.Context, id domain.ID) (domain.ID, error) {
	var budget sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT budget_id FROM nodes WHERE id = ?`, int64(id)).Scan(&budget)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("node %d: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("reading budget of node %d: %w", id, err)
	}
	return idOrZero(budget), nil
}

func (r *SQLiteNodeRepo) ListBudgets(ctx context.Context) ([]*domain.Node, error) {
	return r.list(ctx, "listing budgets",
		`SELECT `+nodeColumns+` FROM nodes WHERE kind = 'budget' ORDER BY id`)
}

func (r *SQLiteNodeRepo) ListChildren(ctx context.Context, parentID domain.ID) ([]*domain.Node, error) {
	nodes, err := r.list(ctx, "listing child nodes",
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? ORDER BY order_index, id`, int64(parentID))
	if err != nil {
		return nil, err
	}
	return nodes, r.attachFringes(ctx, nodes,
		`SELECT nf.node_id, nf.fringe_id FROM node_fringes nf
		JOIN nodes n ON n.id = nf.node_id
		WHERE n.parent_id = ? ORDER BY nf.node_id, nf.position`, int64(parentID))
}

// ListByBudget returns every non-root node of a budget, ordered by parent
// and then by position among its siblings.
func (r *SQLiteNodeRepo) ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Node, error) {
	nodes, err := r.list(ctx, "listing budget nodes",
		`SELECT `+nodeColumns+` FROM nodes WHERE budget_id = ? AND kind != 'budget'
		ORDER BY parent_id, order_index, id`, int64(budgetID))
	if err != nil {
		return nil, err
	}
	return nodes, r.attachFringes(ctx, nodes,
		`SELECT nf.node_id, nf.fringe_id FROM node_fringes nf
		JOIN nodes n ON n.id = nf.node_id
		WHERE n.budget_id = ? ORDER BY nf.node_id, nf.position`, int64(budgetID))
}

// Search matches query against identifier and description of the children
// of parentID, case-insensitively.
func (r *SQLiteNodeRepo) Search(ctx context.Context, parentID domain.ID, query string) ([]*domain.Node, error) {
	pattern := "%" + query + "%"
	return r.list(ctx, "searching nodes",
		`SELECT `+nodeColumns+` FROM nodes
		WHERE parent_id = ? AND (identifier LIKE ? OR description LIKE ?)
		ORDER BY order_index, id`, int64(parentID), pattern, pattern)
}

// Update writes the user-editable fields of n. Parent, kind and group are
// not changed.
func (r *SQLiteNodeRepo) Update(ctx context.Context, n *domain.Node) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET identifier = ?, description = ?, quantity = ?, rate = ?,
			multiplier = ?, actual = ?, fringe_contribution = ?, updated_at = ?
		WHERE id = ?`,
		n.Identifier,
		n.Description,
		nullableFloat(n.Quantity),
		nullableFloat(n.Rate),
		nullableFloat(n.Multiplier),
		n.Actual,
		n.FringeContribution,
		nowUTC(),
		int64(n.ID),
	)
	if err != nil {
		return fmt.Errorf("updating node: %w", err)
	}
	return mustAffect(res, "node", n.ID)
}

func (r *SQLiteNodeRepo) SetFringes(ctx context.Context, nodeID domain.ID, fringeIDs []domain.ID) error {
	return replaceLinks(ctx, r.db, "node_fringes", "node_id", "fringe_id", nodeID, fringeIDs)
}

// Subtree returns id and every descendant of it.
func (r *SQLiteNodeRepo) Subtree(ctx context.Context, id domain.ID) ([]domain.ID, error) {
	ids, err := queryIDs(ctx, r.db,
		`WITH RECURSIVE sub(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN sub ON n.parent_id = sub.id
		)
		SELECT id FROM sub`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("walking subtree of node %d: %w", id, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return ids, nil
}

// Delete removes a node. Its subtree, fringe links and markup memberships go
// with it through foreign key cascades.
func (r *SQLiteNodeRepo) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}
	return mustAffect(res, "node", id)
}

func (r *SQLiteNodeRepo) list(ctx context.Context, what, query string, args ...any) ([]*domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()
	var nodes []*domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

// attachFringes fills Fringes from a (node_id, fringe_id) query.
func (r *SQLiteNodeRepo) attachFringes(ctx context.Context, nodes []*domain.Node, query string, args ...any) error {
	if len(nodes) == 0 {
		return nil
	}
	byID := make(map[domain.ID]*domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing node fringes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var nodeID, fringeID int64
		if err := rows.Scan(&nodeID, &fringeID); err != nil {
			return fmt.Errorf("scanning node fringe: %w", err)
		}
		if n, ok := byID[domain.ID(nodeID)]; ok {
			n.Fringes = append(n.Fringes, domain.ID(fringeID))
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*domain.Node, error) {
	var (
		n                        domain.Node
		id                       int64
		parentID, groupID        sql.NullInt64
		kind                     string
		quantity, rate, multiple sql.NullFloat64
	)
	err := s.Scan(&id, &parentID, &kind, &n.Identifier, &n.Description,
		&quantity, &rate, &multiple, &n.Actual, &n.FringeContribution, &groupID)
	if err != nil {
		return nil, err
	}
	n.ID = domain.ID(id)
	n.ParentID = idOrZero(parentID)
	n.Kind = domain.NodeKind(kind)
	n.Quantity = floatPtr(quantity)
	n.Rate = floatPtr(rate)
	n.Multiplier = floatPtr(multiple)
	if groupID.Valid {
		g := domain.ID(groupID.Int64)
		n.Group = &g
	}
	return &n, nil
}
