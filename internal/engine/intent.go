package engine

import (
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/google/uuid"
)

// IntentKind names a user action emitted by the rendering layer.
type IntentKind string

const (
	IntentDataChange         IntentKind = "dataChange"
	IntentRowAdd             IntentKind = "rowAdd"
	IntentRowDelete          IntentKind = "rowDelete"
	IntentRowAddToGroup      IntentKind = "rowAddToGroup"
	IntentRowRemoveFromGroup IntentKind = "rowRemoveFromGroup"
	IntentGroupAdded         IntentKind = "groupAdded"
	IntentGroupDelete        IntentKind = "groupDelete"
	IntentMarkupAdded        IntentKind = "markupAdded"
	IntentMarkupUpdated      IntentKind = "markupUpdated"
	IntentMarkupDelete       IntentKind = "markupDelete"
	IntentFringeAdded        IntentKind = "fringeAdded"
	IntentFringeUpdated      IntentKind = "fringeUpdated"
	IntentFringeDelete       IntentKind = "fringeDelete"
)

// Intent is one user action. ID correlates asynchronous failures back to the
// action that caused them. Which of the remaining fields are read depends on
// Kind; the constructors below fill the right ones.
type Intent struct {
	ID   uuid.UUID
	Kind IntentKind

	// Target is the node of a data change, or the group of a membership change.
	Target domain.ID
	// IDs lists the rows of a delete or membership change.
	IDs     []domain.ID
	Changes []domain.FieldChange

	// Row insertion.
	Parent   domain.ID
	NodeKind domain.NodeKind
	Index    int

	Group  *domain.Group
	Markup *domain.Markup
	Fringe *domain.Fringe
}

func newIntent(kind IntentKind) Intent {
	return Intent{ID: uuid.New(), Kind: kind}
}

// DataChange edits fields of one row.
func DataChange(id domain.ID, changes ...domain.FieldChange) Intent {
	in := newIntent(IntentDataChange)
	in.Target = id
	in.Changes = changes
	return in
}

// SetField is a DataChange of a single field with an unknown old value.
func SetField(id domain.ID, field domain.Field, value any) Intent {
	return DataChange(id, domain.FieldChange{Field: field, New: value})
}

// RowAdd inserts a placeholder row of kind under parent at index (-1
// appends). An empty kind means the parent's child kind.
func RowAdd(parent domain.ID, kind domain.NodeKind, index int) Intent {
	in := newIntent(IntentRowAdd)
	in.Parent = parent
	in.NodeKind = kind
	in.Index = index
	return in
}

func RowDelete(ids ...domain.ID) Intent {
	in := newIntent(IntentRowDelete)
	in.IDs = ids
	return in
}

func RowAddToGroup(group domain.ID, ids ...domain.ID) Intent {
	in := newIntent(IntentRowAddToGroup)
	in.Target = group
	in.IDs = ids
	return in
}

func RowRemoveFromGroup(group domain.ID, ids ...domain.ID) Intent {
	in := newIntent(IntentRowRemoveFromGroup)
	in.Target = group
	in.IDs = ids
	return in
}

// GroupAdded creates g when its ID is zero, or mirrors a group that was
// already persisted elsewhere.
func GroupAdded(g *domain.Group) Intent {
	in := newIntent(IntentGroupAdded)
	in.Group = g
	return in
}

func GroupDelete(id domain.ID) Intent {
	in := newIntent(IntentGroupDelete)
	in.Target = id
	return in
}

// MarkupAdded creates m when its ID is zero, or mirrors a persisted markup.
func MarkupAdded(m *domain.Markup) Intent {
	in := newIntent(IntentMarkupAdded)
	in.Markup = m
	return in
}

func MarkupUpdated(m *domain.Markup) Intent {
	in := newIntent(IntentMarkupUpdated)
	in.Markup = m
	return in
}

func MarkupDelete(id domain.ID) Intent {
	in := newIntent(IntentMarkupDelete)
	in.Target = id
	return in
}

// FringeAdded creates f when its ID is zero, or mirrors a persisted fringe.
func FringeAdded(f *domain.Fringe) Intent {
	in := newIntent(IntentFringeAdded)
	in.Fringe = f
	return in
}

func FringeUpdated(f *domain.Fringe) Intent {
	in := newIntent(IntentFringeUpdated)
	in.Fringe = f
	return in
}

func FringeDelete(id domain.ID) Intent {
	in := newIntent(IntentFringeDelete)
	in.Target = id
	return in
}
