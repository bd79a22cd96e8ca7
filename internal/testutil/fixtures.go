package testutil

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// Node options
type NodeOption func(*domain.Node)

func WithQuantity(v float64) NodeOption {
	return func(n *domain.Node) {
		n.Quantity = &v
	}
}

func WithRate(v float64) NodeOption {
	return func(n *domain.Node) {
		n.Rate = &v
	}
}

func WithMultiplier(v float64) NodeOption {
	return func(n *domain.Node) {
		n.Multiplier = &v
	}
}

func WithActual(v float64) NodeOption {
	return func(n *domain.Node) {
		n.Actual = v
	}
}

func WithIdentifier(s string) NodeOption {
	return func(n *domain.Node) {
		n.Identifier = s
	}
}

func WithDescription(s string) NodeOption {
	return func(n *domain.Node) {
		n.Description = s
	}
}

func WithFringes(ids ...domain.ID) NodeOption {
	return func(n *domain.Node) {
		n.Fringes = ids
	}
}

func NewTestBudget(id domain.ID, opts ...NodeOption) *domain.Node {
	n := &domain.Node{
		ID:          id,
		Kind:        domain.NodeBudget,
		Description: fmt.Sprintf("Budget %d", id),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func NewTestAccount(id, parent domain.ID, opts ...NodeOption) *domain.Node {
	n := &domain.Node{
		ID:         id,
		Kind:       domain.NodeAccount,
		ParentID:   parent,
		Identifier: fmt.Sprintf("%04d", id),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func NewTestSubAccount(id, parent domain.ID, opts ...NodeOption) *domain.Node {
	n := &domain.Node{
		ID:         id,
		Kind:       domain.NodeSubAccount,
		ParentID:   parent,
		Identifier: fmt.Sprintf("%04d", id),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func NewTestGroup(id, parent domain.ID, children ...domain.ID) *domain.Group {
	return &domain.Group{
		ID:       id,
		ParentID: parent,
		Name:     fmt.Sprintf("Group %d", id),
		Color:    "#8ec07c",
		Children: children,
	}
}

func NewTestPercentMarkup(id, parent domain.ID, rate float64, children ...domain.ID) *domain.Markup {
	return &domain.Markup{
		ID:         id,
		ParentID:   parent,
		Identifier: fmt.Sprintf("M%d", id),
		Unit:       domain.UnitPercent,
		Rate:       &rate,
		Children:   children,
	}
}

func NewTestFlatMarkup(id, parent domain.ID, rate float64) *domain.Markup {
	return &domain.Markup{
		ID:         id,
		ParentID:   parent,
		Identifier: fmt.Sprintf("M%d", id),
		Unit:       domain.UnitFlat,
		Rate:       &rate,
	}
}

// Fringe options
type FringeOption func(*domain.Fringe)

func WithCutoff(v float64) FringeOption {
	return func(f *domain.Fringe) {
		f.Cutoff = &v
	}
}

func NewTestFringe(id domain.ID, unit domain.Unit, rate float64, opts ...FringeOption) *domain.Fringe {
	f := &domain.Fringe{
		ID:   id,
		Name: fmt.Sprintf("Fringe %d", id),
		Unit: unit,
		Rate: &rate,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ids of the entities returned by NewScenario.
const (
	ScenarioBudget  domain.ID = 1
	ScenarioAccount domain.ID = 10
	ScenarioS1      domain.ID = 100
	ScenarioS2      domain.ID = 101
	ScenarioGroup   domain.ID = 500
)

// NewScenario returns the reference budget: one account with two leaf subaccounts,
// S1 (2 × 1 × 10) and S2 (1 × 5), both members of one group.
func NewScenario() domain.BudgetContents {
	return domain.BudgetContents{
		Budget: NewTestBudget(ScenarioBudget),
		Nodes: []*domain.Node{
			NewTestAccount(ScenarioAccount, ScenarioBudget),
			NewTestSubAccount(ScenarioS1, ScenarioAccount, WithQuantity(2), WithRate(10), WithMultiplier(1)),
			NewTestSubAccount(ScenarioS2, ScenarioAccount, WithQuantity(1), WithRate(5)),
		},
		Groups: []*domain.Group{
			NewTestGroup(ScenarioGroup, ScenarioAccount, ScenarioS1, ScenarioS2),
		},
	}
}

// Collector accumulates inconsistencies for assertions.
type Collector struct {
	Items []domain.Inconsistency
}

func (c *Collector) Sink() func(domain.Inconsistency) {
	return func(inc domain.Inconsistency) {
		c.Items = append(c.Items, inc)
	}
}

// Codes returns the codes of every collected inconsistency in order.
func (c *Collector) Codes() []domain.InconsistencyCode {
	out := make([]domain.InconsistencyCode, 0, len(c.Items))
	for _, inc := range c.Items {
		out = append(out, inc.Code)
	}
	return out
}
