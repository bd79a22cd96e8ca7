package service

import (
	"context"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// applyNodePatch assigns p to n. Leaf inputs are only accepted on
// subaccounts.
func applyNodePatch(n *domain.Node, p domain.Patch) error {
	for _, f := range p.Fields() {
		if f.IsLeafOnly() && n.Kind != domain.NodeSubAccount {
			return domain.Invalid("field %s does not apply to a %s", f, n.Kind)
		}
		if f == domain.FieldFringes && n.Kind == domain.NodeBudget {
			return domain.Invalid("fringes cannot be attached to a budget")
		}
		if err := n.SetField(f, p[f]); err != nil {
			return err
		}
	}
	return nil
}

// node loads id and checks that it is of the entity kind the caller named.
func (r txRepos) node(ctx context.Context, kind domain.EntityKind, id domain.ID) (*domain.Node, error) {
	n, err := r.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if domain.EntityKindFor(n.Kind) != kind {
		return nil, domain.NotFound(string(kind), id)
	}
	return n, nil
}

// checkParentKind enforces the tree shape: accounts sit directly under the
// budget and subaccounts under an account or another subaccount.
func (r txRepos) checkParentKind(ctx context.Context, kind domain.NodeKind, parent domain.ID) error {
	p, err := r.nodes.GetByID(ctx, parent)
	if err != nil {
		return err
	}
	if kind == domain.NodeAccount && p.Kind != domain.NodeBudget {
		return domain.Invalid("an account must be created under a budget, not a %s", p.Kind)
	}
	if kind == domain.NodeSubAccount && p.Kind == domain.NodeBudget {
		return domain.Invalid("a subaccount must be created under an account or subaccount")
	}
	return nil
}

// checkSiblings requires every id to be a direct child of parent.
func (r txRepos) checkSiblings(ctx context.Context, parent domain.ID, ids []domain.ID) error {
	for _, id := range ids {
		n, err := r.nodes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if n.ParentID != parent {
			return domain.Invalid("node %d is not a child of %d", id, parent)
		}
	}
	return nil
}

// checkFringes requires every fringe to belong to budgetID.
func (r txRepos) checkFringes(ctx context.Context, budgetID domain.ID, ids []domain.ID) error {
	for _, id := range ids {
		f, err := r.fringes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if f.BudgetID != budgetID {
			return domain.Invalid("fringe %d belongs to another budget", id)
		}
	}
	return nil
}
