package repository

import (
	"context"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// NodeRepo stores budgets, accounts and subaccounts. Children, group
// membership and fringe attachments are read back with the node; they are
// written through SetFringes and GroupRepo.SetMembers.
type NodeRepo interface {
	Create(ctx context.Context, budgetID domain.ID, n *domain.Node) error
	GetByID(ctx context.Context, id domain.ID) (*domain.Node, error)
	BudgetOf(ctx context.Context, id domain.ID) (domain.ID, error)
	ListBudgets(ctx context.Context) ([]*domain.Node, error)
	ListChildren(ctx context.Context, parentID domain.ID) ([]*domain.Node, error)
	ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Node, error)
	Search(ctx context.Context, parentID domain.ID, query string) ([]*domain.Node, error)
	Update(ctx context.Context, n *domain.Node) error
	SetFringes(ctx context.Context, nodeID domain.ID, fringeIDs []domain.ID) error
	Subtree(ctx context.Context, id domain.ID) ([]domain.ID, error)
	Delete(ctx context.Context, id domain.ID) error
}

type GroupRepo interface {
	Create(ctx context.Context, budgetID domain.ID, g *domain.Group) error
	GetByID(ctx context.Context, id domain.ID) (*domain.Group, error)
	ListByParent(ctx context.Context, parentID domain.ID) ([]*domain.Group, error)
	ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Group, error)
	Update(ctx context.Context, g *domain.Group) error
	SetMembers(ctx context.Context, groupID domain.ID, nodeIDs []domain.ID) error
	Delete(ctx context.Context, id domain.ID) error
}

type MarkupRepo interface {
	Create(ctx context.Context, budgetID domain.ID, m *domain.Markup) error
	GetByID(ctx context.Context, id domain.ID) (*domain.Markup, error)
	ListByParent(ctx context.Context, parentID domain.ID) ([]*domain.Markup, error)
	ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Markup, error)
	Update(ctx context.Context, m *domain.Markup) error
	SetChildren(ctx context.Context, markupID domain.ID, nodeIDs []domain.ID) error
	Delete(ctx context.Context, id domain.ID) error
}

type FringeRepo interface {
	Create(ctx context.Context, f *domain.Fringe) error
	GetByID(ctx context.Context, id domain.ID) (*domain.Fringe, error)
	ListByBudget(ctx context.Context, budgetID domain.ID) ([]*domain.Fringe, error)
	Update(ctx context.Context, f *domain.Fringe) error
	Delete(ctx context.Context, id domain.ID) error
}
