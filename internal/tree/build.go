package tree

import (
	"github.com/alexanderramin/budgetcore/internal/aggregate"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// Build assembles a store from a full budget listing and computes every
// aggregate bottom-up. References that cannot be resolved are reported to
// sink and dropped rather than failing the load.
func Build(c domain.BudgetContents, sink InconsistencySink) (*Store, error) {
	s := New(sink)
	if c.Budget == nil {
		return nil, domain.Invalid("budget contents require a root node")
	}
	root := c.Budget.Clone()
	root.ParentID = 0
	root.Children = nil
	if root.Kind != domain.NodeBudget {
		return nil, domain.Invalid("node %d is not a budget", root.ID)
	}
	s.root = root.ID
	s.nodes[root.ID] = root

	for _, f := range c.Fringes {
		if err := f.Validate(); err != nil {
			s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingFringe, Message: err.Error(), IDs: []domain.ID{f.ID}})
			continue
		}
		s.fringes[f.ID] = f.Clone()
	}

	for _, n := range c.Nodes {
		cp := n.Clone()
		cp.Children = nil
		cp.Group = nil
		cp.Fringes = cp.Fringes[:0]
		for _, fid := range n.Fringes {
			if _, ok := s.fringes[fid]; ok {
				cp.Fringes = append(cp.Fringes, fid)
				continue
			}
			s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingFringe, Message: "node references unknown fringe", IDs: []domain.ID{n.ID, fid}})
		}
		s.nodes[cp.ID] = cp
	}
	for _, n := range c.Nodes {
		parent, ok := s.nodes[n.ParentID]
		if !ok || n.ParentID == n.ID {
			s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingNode, Message: "node parent is absent", IDs: []domain.ID{n.ID, n.ParentID}})
			delete(s.nodes, n.ID)
			continue
		}
		parent.Children = domain.AppendUniqueID(parent.Children, n.ID)
	}

	for _, g := range c.Groups {
		cp := g.Clone()
		cp.Children = nil
		if _, ok := s.nodes[g.ParentID]; !ok {
			s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingNode, Message: "group parent is absent", IDs: []domain.ID{g.ID, g.ParentID}})
			continue
		}
		s.groups[cp.ID] = cp
		for _, cid := range g.Children {
			if err := s.checkSiblings(g.ParentID, []domain.ID{cid}); err != nil {
				s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingChild, Message: err.Error(), IDs: []domain.ID{g.ID, cid}})
				continue
			}
			s.joinGroup(cp, cid)
		}
	}

	for _, m := range c.Markups {
		cp := m.Clone()
		cp.Children = nil
		if _, ok := s.nodes[m.ParentID]; !ok {
			s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingNode, Message: "markup parent is absent", IDs: []domain.ID{m.ID, m.ParentID}})
			continue
		}
		for _, cid := range m.Children {
			if err := s.checkSiblings(m.ParentID, []domain.ID{cid}); err != nil {
				s.Report(domain.Inconsistency{Code: domain.InconsistencyMissingChild, Message: err.Error(), IDs: []domain.ID{m.ID, cid}})
				continue
			}
			cp.Children = append(cp.Children, cid)
		}
		s.markups[cp.ID] = cp
	}

	if err := aggregate.RecomputeAll(s, s.root); err != nil {
		return nil, err
	}
	return s, nil
}
