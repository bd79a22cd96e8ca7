package aggregate

import (
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/finance"
)

// NodeTotals returns the displayed triple of a node.
func NodeTotals(n *domain.Node) domain.Totals {
	return domain.Totals{
		Estimated: n.Estimated(),
		Actual:    n.Actual,
		Variance:  n.Variance(),
	}
}

// GroupTotals sums the totals of the group's children that are still present.
// Missing children are reported and skipped; an empty group totals zero.
func GroupTotals(t Tree, g *domain.Group) domain.Totals {
	var est, act []float64
	for _, cid := range g.Children {
		n, ok := t.Node(cid)
		if !ok {
			t.Report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingChild,
				Message: "group references absent node",
				IDs:     []domain.ID{g.ID, cid},
			})
			continue
		}
		est = append(est, n.Estimated())
		act = append(act, n.Actual)
	}
	return totals(finance.Sum(est), finance.Sum(act))
}

// MarkupTotals returns a markup row's own estimated and actual. Flat markups
// estimate their rate; percent markups the sum of their children's
// contributions.
func MarkupTotals(t Tree, m *domain.Markup) domain.Totals {
	est := finance.MarkupContribution(Bases(t, m), *m)
	return totals(est, m.Actual)
}

func totals(estimated, actual float64) domain.Totals {
	return domain.Totals{
		Estimated: estimated,
		Actual:    actual,
		Variance:  finance.Sum([]float64{estimated, -actual}),
	}
}
