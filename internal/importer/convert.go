package importer

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// Convert transforms a validated BudgetFile into budget contents with local
// ids: the budget is 1 and every other entity is numbered in file order.
// Call ValidateBudgetFile first; Convert assumes the file is valid.
func Convert(f *BudgetFile) (domain.BudgetContents, error) {
	var next domain.ID
	newID := func() domain.ID {
		next++
		return next
	}

	budget := &domain.Node{
		ID:          newID(),
		Kind:        domain.NodeBudget,
		Identifier:  f.Budget.Identifier,
		Description: f.Budget.Description,
	}
	c := domain.BudgetContents{Budget: budget}

	fringeIDs := make(map[string]domain.ID, len(f.Fringes))
	for _, fr := range f.Fringes {
		id := newID()
		fringeIDs[fr.Ref] = id
		c.Fringes = append(c.Fringes, &domain.Fringe{
			ID:       id,
			BudgetID: budget.ID,
			Name:     fr.Name,
			Color:    fr.Color,
			Unit:     domain.Unit(fr.Unit),
			Rate:     fr.Rate,
			Cutoff:   fr.Cutoff,
		})
	}

	nodeIDs := make(map[string]domain.ID, len(f.Nodes))
	resolve := func(ref string) (domain.ID, error) {
		if ref == "" {
			return budget.ID, nil
		}
		id, ok := nodeIDs[ref]
		if !ok {
			return 0, fmt.Errorf("unknown node ref %q", ref)
		}
		return id, nil
	}
	resolveAll := func(refs []string) ([]domain.ID, error) {
		ids := make([]domain.ID, 0, len(refs))
		for _, ref := range refs {
			id, err := resolve(ref)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	for _, n := range f.Nodes {
		parent, err := resolve(parentRef(n.ParentRef))
		if err != nil {
			return domain.BudgetContents{}, fmt.Errorf("node %q: %w", n.Ref, err)
		}
		kind := domain.NodeSubAccount
		if parent == budget.ID {
			kind = domain.NodeAccount
		}
		node := &domain.Node{
			ID:          newID(),
			Kind:        kind,
			ParentID:    parent,
			Identifier:  n.Identifier,
			Description: n.Description,
			Quantity:    n.Quantity,
			Rate:        n.Rate,
			Multiplier:  n.Multiplier,
		}
		if n.Actual != nil {
			node.Actual = *n.Actual
		}
		for _, ref := range n.Fringes {
			fid, ok := fringeIDs[ref]
			if !ok {
				return domain.BudgetContents{}, fmt.Errorf("node %q: unknown fringe ref %q", n.Ref, ref)
			}
			node.Fringes = append(node.Fringes, fid)
		}
		nodeIDs[n.Ref] = node.ID
		c.Nodes = append(c.Nodes, node)
	}

	for i, g := range f.Groups {
		parent, err := resolve(parentRef(g.ParentRef))
		if err != nil {
			return domain.BudgetContents{}, fmt.Errorf("groups[%d]: %w", i, err)
		}
		members, err := resolveAll(g.Members)
		if err != nil {
			return domain.BudgetContents{}, fmt.Errorf("groups[%d]: %w", i, err)
		}
		c.Groups = append(c.Groups, &domain.Group{
			ID:       newID(),
			ParentID: parent,
			Name:     g.Name,
			Color:    g.Color,
			Children: members,
		})
	}

	for i, m := range f.Markups {
		parent, err := resolve(parentRef(m.ParentRef))
		if err != nil {
			return domain.BudgetContents{}, fmt.Errorf("markups[%d]: %w", i, err)
		}
		children, err := resolveAll(m.Children)
		if err != nil {
			return domain.BudgetContents{}, fmt.Errorf("markups[%d]: %w", i, err)
		}
		mk := &domain.Markup{
			ID:          newID(),
			ParentID:    parent,
			Identifier:  m.Identifier,
			Description: m.Description,
			Unit:        domain.Unit(m.Unit),
			Rate:        m.Rate,
			Children:    children,
		}
		if m.Actual != nil {
			mk.Actual = *m.Actual
		}
		c.Markups = append(c.Markups, mk)
	}

	return c, nil
}

// Source is the read side of a budget tree that Export walks.
type Source interface {
	Root() domain.ID
	Node(id domain.ID) (*domain.Node, bool)
	Descendants(id domain.ID) []domain.ID
	GroupsAt(parent domain.ID) []*domain.Group
	MarkupsAt(parent domain.ID) []*domain.Markup
	Fringes() []*domain.Fringe
}

// Export writes the persisted part of a budget tree as a BudgetFile.
// Placeholder rows are left out along with any reference to them.
func Export(src Source) *BudgetFile {
	root, _ := src.Node(src.Root())
	f := &BudgetFile{Nodes: []NodeImport{}}
	if root == nil {
		return f
	}
	f.Budget = BudgetImport{Identifier: root.Identifier, Description: root.Description}

	for _, fr := range src.Fringes() {
		f.Fringes = append(f.Fringes, FringeImport{
			Ref:    fringeRef(fr.ID),
			Name:   fr.Name,
			Color:  fr.Color,
			Unit:   string(fr.Unit),
			Rate:   fr.Rate,
			Cutoff: fr.Cutoff,
		})
	}

	levels := []domain.ID{root.ID}
	exported := map[domain.ID]bool{}
	for _, id := range src.Descendants(root.ID) {
		n, ok := src.Node(id)
		if !ok || n.IsPlaceholder || (n.ParentID != root.ID && !exported[n.ParentID]) {
			continue
		}
		exported[id] = true
		ni := NodeImport{
			Ref:         nodeRef(id),
			ParentRef:   levelRef(root.ID, n.ParentID),
			Identifier:  n.Identifier,
			Description: n.Description,
		}
		if n.Kind == domain.NodeSubAccount && n.IsLeaf() {
			ni.Quantity, ni.Rate, ni.Multiplier = n.Quantity, n.Rate, n.Multiplier
			for _, fid := range n.Fringes {
				ni.Fringes = append(ni.Fringes, fringeRef(fid))
			}
		}
		// Actuals above the leaves are rollups.
		if n.IsLeaf() && n.Actual != 0 {
			ni.Actual = domain.Float(n.Actual)
		}
		f.Nodes = append(f.Nodes, ni)
		if !n.IsLeaf() {
			levels = append(levels, id)
		}
	}

	refs := func(ids []domain.ID) []string {
		var out []string
		for _, id := range ids {
			if exported[id] {
				out = append(out, nodeRef(id))
			}
		}
		return out
	}

	for _, level := range levels {
		for _, g := range src.GroupsAt(level) {
			f.Groups = append(f.Groups, GroupImport{
				ParentRef: levelRef(root.ID, level),
				Name:      g.Name,
				Color:     g.Color,
				Members:   refs(g.Children),
			})
		}
		for _, m := range src.MarkupsAt(level) {
			mi := MarkupImport{
				ParentRef:   levelRef(root.ID, level),
				Identifier:  m.Identifier,
				Description: m.Description,
				Unit:        string(m.Unit),
				Rate:        m.Rate,
				Children:    refs(m.Children),
			}
			if m.Actual != 0 {
				mi.Actual = domain.Float(m.Actual)
			}
			// A percent markup left with only placeholder children has
			// nothing it could be persisted with.
			if m.Unit == domain.UnitPercent && len(mi.Children) == 0 {
				continue
			}
			f.Markups = append(f.Markups, mi)
		}
	}
	return f
}

func nodeRef(id domain.ID) string   { return fmt.Sprintf("n%d", id) }
func fringeRef(id domain.ID) string { return fmt.Sprintf("f%d", id) }

func levelRef(root, parent domain.ID) *string {
	if parent == root {
		return nil
	}
	ref := nodeRef(parent)
	return &ref
}
