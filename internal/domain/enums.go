package domain

type NodeKind string

const (
	NodeBudget     NodeKind = "budget"
	NodeAccount    NodeKind = "account"
	NodeSubAccount NodeKind = "subaccount"
)

// ValidNodeKinds is the canonical set of accepted node kind strings.
var ValidNodeKinds = map[string]bool{
	"budget": true, "account": true, "subaccount": true,
}

// ChildKind returns the kind of node that may be created under a node of kind k.
func (k NodeKind) ChildKind() NodeKind {
	if k == NodeBudget {
		return NodeAccount
	}
	return NodeSubAccount
}

type Unit string

const (
	UnitPercent Unit = "percent"
	UnitFlat    Unit = "flat"
)

// ValidUnits is the canonical set of accepted markup and fringe units.
var ValidUnits = map[string]bool{
	"percent": true, "flat": true,
}

// EntityKind identifies what an API collaborator call operates on.
type EntityKind string

const (
	EntityBudget     EntityKind = "budget"
	EntityAccount    EntityKind = "account"
	EntitySubAccount EntityKind = "subaccount"
	EntityGroup      EntityKind = "group"
	EntityMarkup     EntityKind = "markup"
	EntityFringe     EntityKind = "fringe"
)

// EntityKindFor maps a node kind to the API entity kind used to persist it.
func EntityKindFor(k NodeKind) EntityKind {
	switch k {
	case NodeBudget:
		return EntityBudget
	case NodeAccount:
		return EntityAccount
	default:
		return EntitySubAccount
	}
}

type RowKind string

const (
	RowData        RowKind = "data"
	RowPlaceholder RowKind = "placeholder"
	RowGroup       RowKind = "group"
	RowMarkup      RowKind = "markup"
)
