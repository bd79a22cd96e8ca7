package aggregate

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/finance"
)

// Tree is the view of the budget arena the aggregation engine needs. Node
// pointers returned by Node are written to in place.
type Tree interface {
	Node(id domain.ID) (*domain.Node, bool)
	Fringe(id domain.ID) (*domain.Fringe, bool)
	// MarkupsAt returns the markups attached at the level below parent.
	MarkupsAt(parent domain.ID) []*domain.Markup
	// MarkupsOf returns the percent markups that reference child.
	MarkupsOf(child domain.ID) []*domain.Markup
	Report(domain.Inconsistency)
}

// Result lists the nodes whose cached aggregates were rewritten, starting at
// the mutated node and ending at the root.
type Result struct {
	Path []domain.ID
}

// Recompute refreshes the cached aggregates of id and every ancestor up to
// the root. Sibling subtrees are read but never written, so an edit costs
// O(depth) node recomputations.
func Recompute(t Tree, id domain.ID) (Result, error) {
	var res Result
	n, ok := t.Node(id)
	if !ok {
		return res, domain.NotFound("node", id)
	}

	seen := make(map[domain.ID]bool)
	for n != nil {
		if seen[n.ID] {
			t.Report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingNode,
				Message: "cycle detected while walking to root",
				IDs:     res.Path,
			})
			return res, fmt.Errorf("node %d: ancestor cycle: %w", n.ID, domain.ErrInvalidMutation)
		}
		seen[n.ID] = true

		recomputeNode(t, n)
		res.Path = append(res.Path, n.ID)

		if n.ParentID == 0 {
			break
		}
		parent, ok := t.Node(n.ParentID)
		if !ok {
			t.Report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingNode,
				Message: "parent missing while walking to root",
				IDs:     []domain.ID{n.ID, n.ParentID},
			})
			break
		}
		n = parent
	}
	return res, nil
}

// RecomputeAll refreshes every node below and including root, children
// before parents. Used after a bulk load when no cached value can be trusted.
func RecomputeAll(t Tree, root domain.ID) error {
	n, ok := t.Node(root)
	if !ok {
		return domain.NotFound("node", root)
	}
	return recomputeSubtree(t, n, make(map[domain.ID]bool))
}

func recomputeSubtree(t Tree, n *domain.Node, seen map[domain.ID]bool) error {
	if seen[n.ID] {
		return fmt.Errorf("node %d: subtree cycle: %w", n.ID, domain.ErrInvalidMutation)
	}
	seen[n.ID] = true
	for _, cid := range n.Children {
		child, ok := t.Node(cid)
		if !ok {
			continue // reported by recomputeNode below
		}
		if err := recomputeSubtree(t, child, seen); err != nil {
			return err
		}
	}
	recomputeNode(t, n)
	return nil
}

// recomputeNode rewrites the cached fields of a single node from its inputs
// and its children's already-current values.
func recomputeNode(t Tree, n *domain.Node) {
	// 1. nominal value and actual
	if n.IsLeaf() {
		n.NominalValue = finance.NominalValue(n.Quantity, n.Multiplier, n.Rate)
	} else {
		estimates := make([]float64, 0, len(n.Children))
		actuals := make([]float64, 0, len(n.Children))
		for _, cid := range n.Children {
			child, ok := t.Node(cid)
			if !ok {
				t.Report(domain.Inconsistency{
					Code:    domain.InconsistencyMissingChild,
					Message: "child listed on parent is absent",
					IDs:     []domain.ID{n.ID, cid},
				})
				continue
			}
			estimates = append(estimates, child.Estimated())
			actuals = append(actuals, child.Actual)
		}
		n.NominalValue = finance.Sum(estimates)
		n.Actual = finance.Sum(actuals)
	}

	// 2. fringes attached to this node, applied to its own nominal value
	fringes := make([]float64, 0, len(n.Fringes))
	for _, fid := range n.Fringes {
		f, ok := t.Fringe(fid)
		if !ok {
			t.Report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingFringe,
				Message: "fringe attached to node is absent",
				IDs:     []domain.ID{n.ID, fid},
			})
			continue
		}
		fringes = append(fringes, finance.FringeContribution(n.NominalValue, *f))
	}
	n.AccumulatedFringeContribution = finance.Sum(fringes)

	// 3. markups attached at this node's level
	markups := t.MarkupsAt(n.ID)
	amounts := make([]float64, 0, len(markups))
	for _, m := range markups {
		amounts = append(amounts, finance.MarkupContribution(Bases(t, m), *m))
	}
	n.AccumulatedMarkupContribution = finance.Sum(amounts)

	// this node's own share of the percent markups that reference it
	base := n.Estimated()
	shares := make([]float64, 0)
	for _, m := range t.MarkupsOf(n.ID) {
		shares = append(shares, finance.MarkupShare(base, *m))
	}
	n.MarkupContribution = finance.Sum(shares)
}

// Bases returns the base value of every child of m still present in the
// tree. Absent children are excluded silently.
func Bases(t Tree, m *domain.Markup) []float64 {
	bases := make([]float64, 0, len(m.Children))
	for _, cid := range m.Children {
		if child, ok := t.Node(cid); ok {
			bases = append(bases, child.Estimated())
		}
	}
	return bases
}
