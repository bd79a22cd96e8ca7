package engine

import (
	"context"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// API is the persistence collaborator. Calls may fail with transport or
// validation errors; the processor never aborts one in flight, it only
// discards results that have been superseded.
type API interface {
	Create(ctx context.Context, kind domain.EntityKind, parent domain.ID, p domain.Patch) (domain.Entity, error)
	Update(ctx context.Context, kind domain.EntityKind, id domain.ID, p domain.Patch) (domain.Entity, error)
	Delete(ctx context.Context, kind domain.EntityKind, id domain.ID) error
	List(ctx context.Context, kind domain.EntityKind, parent domain.ID, search string) ([]domain.Entity, error)
	LoadBudget(ctx context.Context, budgetID domain.ID) (domain.BudgetContents, error)
}
