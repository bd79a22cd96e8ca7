package service

import (
	"context"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
)

// BudgetAPI is the SQLite-backed persistence collaborator of the engine,
// plus the budget-level calls the CLI needs before a budget is loaded.
type BudgetAPI interface {
	engine.API
	CreateBudget(ctx context.Context, identifier, description string) (*domain.Node, error)
	ListBudgets(ctx context.Context) ([]*domain.Node, error)
	// ImportBudget persists a whole budget listing with local ids in one
	// transaction and returns the new budget node.
	ImportBudget(ctx context.Context, c domain.BudgetContents) (*domain.Node, error)
}
