package service

import (
	"context"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/db"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/repository"
	"golang.org/x/sync/errgroup"
)

type budgetAPI struct {
	nodes   repository.NodeRepo
	groups  repository.GroupRepo
	markups repository.MarkupRepo
	fringes repository.FringeRepo
	uow     db.UnitOfWork
}

func NewBudgetAPI(
	nodes repository.NodeRepo,
	groups repository.GroupRepo,
	markups repository.MarkupRepo,
	fringes repository.FringeRepo,
	uow db.UnitOfWork,
) BudgetAPI {
	return &budgetAPI{
		nodes:   nodes,
		groups:  groups,
		markups: markups,
		fringes: fringes,
		uow:     uow,
	}
}

// txRepos are repositories bound to one transaction.
type txRepos struct {
	nodes   *repository.SQLiteNodeRepo
	groups  *repository.SQLiteGroupRepo
	markups *repository.SQLiteMarkupRepo
	fringes *repository.SQLiteFringeRepo
}

func bind(tx db.DBTX) txRepos {
	return txRepos{
		nodes:   repository.NewSQLiteNodeRepo(tx),
		groups:  repository.NewSQLiteGroupRepo(tx),
		markups: repository.NewSQLiteMarkupRepo(tx),
		fringes: repository.NewSQLiteFringeRepo(tx),
	}
}

func (s *budgetAPI) CreateBudget(ctx context.Context, identifier, description string) (*domain.Node, error) {
	n := &domain.Node{Kind: domain.NodeBudget, Identifier: identifier, Description: description}
	if err := s.nodes.Create(ctx, 0, n); err != nil {
		return nil, fmt.Errorf("creating budget: %w", err)
	}
	return n, nil
}

func (s *budgetAPI) ListBudgets(ctx context.Context) ([]*domain.Node, error) {
	return s.nodes.ListBudgets(ctx)
}

func (s *budgetAPI) ImportBudget(ctx context.Context, c domain.BudgetContents) (*domain.Node, error) {
	if c.Budget == nil {
		return nil, domain.Invalid("import requires a budget")
	}
	var budget *domain.Node
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bind(tx)
		budget = &domain.Node{Kind: domain.NodeBudget, Identifier: c.Budget.Identifier, Description: c.Budget.Description}
		if err := r.nodes.Create(ctx, 0, budget); err != nil {
			return fmt.Errorf("creating budget: %w", err)
		}

		fringeIDs := map[domain.ID]domain.ID{}
		for _, f := range c.Fringes {
			ent, err := r.create(ctx, domain.EntityFringe, budget.ID, budget.ID, f.Patch())
			if err != nil {
				return fmt.Errorf("importing fringe %q: %w", f.Name, err)
			}
			fringeIDs[f.ID] = ent.Fringe.ID
		}

		nodeIDs := map[domain.ID]domain.ID{c.Budget.ID: budget.ID}
		remap := func(ids []domain.ID, m map[domain.ID]domain.ID, what string) ([]domain.ID, error) {
			out := make([]domain.ID, 0, len(ids))
			for _, id := range ids {
				to, ok := m[id]
				if !ok {
					return nil, domain.Invalid("import references unknown %s %d", what, id)
				}
				out = append(out, to)
			}
			return out, nil
		}

		for _, n := range c.Nodes {
			parent, ok := nodeIDs[n.ParentID]
			if !ok {
				return domain.Invalid("import references unknown node %d", n.ParentID)
			}
			p := n.Patch()
			if len(n.Fringes) > 0 {
				fringes, err := remap(n.Fringes, fringeIDs, "fringe")
				if err != nil {
					return err
				}
				p[domain.FieldFringes] = fringes
			}
			ent, err := r.create(ctx, domain.EntityKindFor(n.Kind), budget.ID, parent, p)
			if err != nil {
				return fmt.Errorf("importing %s %q: %w", n.Kind, n.Label(), err)
			}
			nodeIDs[n.ID] = ent.Node.ID
		}

		for _, g := range c.Groups {
			parent, ok := nodeIDs[g.ParentID]
			if !ok {
				return domain.Invalid("import references unknown node %d", g.ParentID)
			}
			members, err := remap(g.Children, nodeIDs, "node")
			if err != nil {
				return err
			}
			p := g.Patch()
			p[domain.FieldChildren] = members
			if _, err := r.create(ctx, domain.EntityGroup, budget.ID, parent, p); err != nil {
				return fmt.Errorf("importing group %q: %w", g.Name, err)
			}
		}

		for _, m := range c.Markups {
			parent, ok := nodeIDs[m.ParentID]
			if !ok {
				return domain.Invalid("import references unknown node %d", m.ParentID)
			}
			children, err := remap(m.Children, nodeIDs, "node")
			if err != nil {
				return err
			}
			p := m.Patch()
			p[domain.FieldChildren] = children
			if _, err := r.create(ctx, domain.EntityMarkup, budget.ID, parent, p); err != nil {
				return fmt.Errorf("importing markup %q: %w", m.Identifier, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func (s *budgetAPI) Create(ctx context.Context, kind domain.EntityKind, parent domain.ID, p domain.Patch) (domain.Entity, error) {
	if kind == domain.EntityBudget {
		n, err := s.CreateBudget(ctx, p.Text(domain.FieldIdentifier), p.Text(domain.FieldDescription))
		if err != nil {
			return domain.Entity{}, err
		}
		return domain.Entity{Kind: kind, Node: n}, nil
	}

	var ent domain.Entity
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bind(tx)
		budgetID, err := r.nodes.BudgetOf(ctx, parent)
		if err != nil {
			return fmt.Errorf("resolving parent: %w", err)
		}
		ent, err = r.create(ctx, kind, budgetID, parent, p)
		return err
	})
	if err != nil {
		return domain.Entity{}, err
	}
	return ent, nil
}

func (r txRepos) create(ctx context.Context, kind domain.EntityKind, budgetID, parent domain.ID, p domain.Patch) (domain.Entity, error) {
	ent := domain.Entity{Kind: kind}
	switch kind {
	case domain.EntityAccount, domain.EntitySubAccount:
		n := &domain.Node{Kind: domain.NodeAccount, ParentID: parent}
		if kind == domain.EntitySubAccount {
			n.Kind = domain.NodeSubAccount
		}
		if err := r.checkParentKind(ctx, n.Kind, parent); err != nil {
			return ent, err
		}
		if err := applyNodePatch(n, p); err != nil {
			return ent, err
		}
		if err := r.checkFringes(ctx, budgetID, n.Fringes); err != nil {
			return ent, err
		}
		if err := r.nodes.Create(ctx, budgetID, n); err != nil {
			return ent, err
		}
		ent.Node = n
	case domain.EntityGroup:
		g := &domain.Group{ParentID: parent}
		if err := g.Apply(p); err != nil {
			return ent, err
		}
		if err := r.checkSiblings(ctx, parent, g.Children); err != nil {
			return ent, err
		}
		if err := r.groups.Create(ctx, budgetID, g); err != nil {
			return ent, err
		}
		ent.Group = g
	case domain.EntityMarkup:
		m := &domain.Markup{ParentID: parent}
		if err := m.Apply(p); err != nil {
			return ent, err
		}
		if err := m.Validate(); err != nil {
			return ent, err
		}
		if err := r.checkSiblings(ctx, parent, m.Children); err != nil {
			return ent, err
		}
		if err := r.markups.Create(ctx, budgetID, m); err != nil {
			return ent, err
		}
		ent.Markup = m
	case domain.EntityFringe:
		if parent != budgetID {
			return ent, domain.Invalid("fringes belong to a budget, not node %d", parent)
		}
		f := &domain.Fringe{BudgetID: budgetID}
		if err := f.Apply(p); err != nil {
			return ent, err
		}
		if err := f.Validate(); err != nil {
			return ent, err
		}
		if err := r.fringes.Create(ctx, f); err != nil {
			return ent, err
		}
		ent.Fringe = f
	default:
		return ent, domain.Invalid("cannot create %s", kind)
	}
	return ent, nil
}

func (s *budgetAPI) Update(ctx context.Context, kind domain.EntityKind, id domain.ID, p domain.Patch) (domain.Entity, error) {
	ent := domain.Entity{Kind: kind}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bind(tx)
		switch kind {
		case domain.EntityBudget, domain.EntityAccount, domain.EntitySubAccount:
			n, err := r.node(ctx, kind, id)
			if err != nil {
				return err
			}
			if err := applyNodePatch(n, p); err != nil {
				return err
			}
			budgetID, err := r.nodes.BudgetOf(ctx, id)
			if err != nil {
				return err
			}
			if p.Has(domain.FieldFringes) {
				if err := r.checkFringes(ctx, budgetID, n.Fringes); err != nil {
					return err
				}
				if err := r.nodes.SetFringes(ctx, id, n.Fringes); err != nil {
					return err
				}
			}
			if err := r.nodes.Update(ctx, n); err != nil {
				return err
			}
			ent.Node, err = r.nodes.GetByID(ctx, id)
			return err
		case domain.EntityGroup:
			g, err := r.groups.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := g.Apply(p); err != nil {
				return err
			}
			if err := r.groups.Update(ctx, g); err != nil {
				return err
			}
			if p.Has(domain.FieldChildren) {
				if err := r.checkSiblings(ctx, g.ParentID, g.Children); err != nil {
					return err
				}
				if err := r.groups.SetMembers(ctx, id, g.Children); err != nil {
					return err
				}
			}
			ent.Group, err = r.groups.GetByID(ctx, id)
			return err
		case domain.EntityMarkup:
			m, err := r.markups.GetByID(ctx, id)
			if err != nil {
				return err
			}
			prev := m.Clone()
			if err := m.Apply(p); err != nil {
				return err
			}
			if err := m.ValidateChange(prev); err != nil {
				return err
			}
			if err := r.markups.Update(ctx, m); err != nil {
				return err
			}
			if p.Has(domain.FieldChildren) {
				if err := r.checkSiblings(ctx, m.ParentID, m.Children); err != nil {
					return err
				}
				if err := r.markups.SetChildren(ctx, id, m.Children); err != nil {
					return err
				}
			}
			ent.Markup, err = r.markups.GetByID(ctx, id)
			return err
		case domain.EntityFringe:
			f, err := r.fringes.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := f.Apply(p); err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}
			if err := r.fringes.Update(ctx, f); err != nil {
				return err
			}
			ent.Fringe = f
			return nil
		}
		return domain.Invalid("cannot update %s", kind)
	})
	if err != nil {
		return domain.Entity{}, err
	}
	return ent, nil
}

// Delete removes one entity. Deleting a node takes its subtree with it and
// drops it from every group and markup.
func (s *budgetAPI) Delete(ctx context.Context, kind domain.EntityKind, id domain.ID) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := bind(tx)
		switch kind {
		case domain.EntityBudget, domain.EntityAccount, domain.EntitySubAccount:
			if _, err := r.node(ctx, kind, id); err != nil {
				return err
			}
			return r.nodes.Delete(ctx, id)
		case domain.EntityGroup:
			return r.groups.Delete(ctx, id)
		case domain.EntityMarkup:
			return r.markups.Delete(ctx, id)
		case domain.EntityFringe:
			return r.fringes.Delete(ctx, id)
		}
		return domain.Invalid("cannot delete %s", kind)
	})
}

// List returns the entities of kind under parent. For fringes parent is the
// budget. A non-empty search narrows accounts and subaccounts by identifier
// or description; other kinds ignore it.
func (s *budgetAPI) List(ctx context.Context, kind domain.EntityKind, parent domain.ID, search string) ([]domain.Entity, error) {
	var out []domain.Entity
	switch kind {
	case domain.EntityBudget:
		budgets, err := s.nodes.ListBudgets(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range budgets {
			out = append(out, domain.Entity{Kind: kind, Node: n})
		}
	case domain.EntityAccount, domain.EntitySubAccount:
		var (
			nodes []*domain.Node
			err   error
		)
		if search != "" {
			nodes, err = s.nodes.Search(ctx, parent, search)
		} else {
			nodes, err = s.nodes.ListChildren(ctx, parent)
		}
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if domain.EntityKindFor(n.Kind) == kind {
				out = append(out, domain.Entity{Kind: kind, Node: n})
			}
		}
	case domain.EntityGroup:
		groups, err := s.groups.ListByParent(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			out = append(out, domain.Entity{Kind: kind, Group: g})
		}
	case domain.EntityMarkup:
		markups, err := s.markups.ListByParent(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, m := range markups {
			out = append(out, domain.Entity{Kind: kind, Markup: m})
		}
	case domain.EntityFringe:
		fringes, err := s.fringes.ListByBudget(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, f := range fringes {
			out = append(out, domain.Entity{Kind: kind, Fringe: f})
		}
	default:
		return nil, domain.Invalid("cannot list %s", kind)
	}
	return out, nil
}

// LoadBudget reads the four tables of a budget concurrently.
func (s *budgetAPI) LoadBudget(ctx context.Context, budgetID domain.ID) (domain.BudgetContents, error) {
	budget, err := s.nodes.GetByID(ctx, budgetID)
	if err != nil {
		return domain.BudgetContents{}, err
	}
	if budget.Kind != domain.NodeBudget {
		return domain.BudgetContents{}, domain.NotFound("budget", budgetID)
	}

	c := domain.BudgetContents{Budget: budget}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c.Nodes, err = s.nodes.ListByBudget(gctx, budgetID)
		return err
	})
	g.Go(func() error {
		var err error
		c.Groups, err = s.groups.ListByBudget(gctx, budgetID)
		return err
	})
	g.Go(func() error {
		var err error
		c.Markups, err = s.markups.ListByBudget(gctx, budgetID)
		return err
	})
	g.Go(func() error {
		var err error
		c.Fringes, err = s.fringes.ListByBudget(gctx, budgetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.BudgetContents{}, fmt.Errorf("loading budget %d: %w", budgetID, err)
	}
	return c, nil
}
