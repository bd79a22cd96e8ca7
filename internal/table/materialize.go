package table

import (
	"reflect"

	"github.com/alexanderramin/budgetcore/internal/aggregate"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// Source is the read view of one budget the materializer works against.
// tree.Store satisfies it.
type Source interface {
	aggregate.Tree
	Children(parent domain.ID) []*domain.Node
	GroupsAt(parent domain.ID) []*domain.Group
}

var (
	parentSpan  = domain.ColumnSpan{Column: domain.FieldDescription, Across: domain.CalculatedColumns}
	overlaySpan = domain.ColumnSpan{Column: domain.FieldIdentifier, Across: []domain.Field{domain.FieldDescription}}
)

// Materialize flattens the level below parent into display rows:
//
//  1. node rows in declaration order, each group's footer row directly after
//     its last member;
//  2. footer rows of groups with no present member, by group id;
//  3. one row per markup attached at the level, by markup id.
//
// Output depends only on the source contents, never on map iteration.
func Materialize(src Source, parent domain.ID) []domain.Row {
	nodes := src.Children(parent)
	groups := src.GroupsAt(parent)

	byID := make(map[domain.ID]*domain.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	member := make([]domain.ID, len(nodes))
	last := make(map[domain.ID]int, len(groups))
	for i, n := range nodes {
		if gid, ok := groupOf(src, n, byID); ok {
			member[i] = gid
			last[gid] = i
		}
	}

	rows := make([]domain.Row, 0, len(nodes)+len(groups))
	for i, n := range nodes {
		rows = append(rows, dataRow(n))
		if gid := member[i]; gid != 0 && last[gid] == i {
			rows = append(rows, groupRow(src, byID[gid]))
		}
	}
	for _, g := range groups {
		if _, emitted := last[g.ID]; !emitted {
			rows = append(rows, groupRow(src, g))
		}
	}
	for _, m := range src.MarkupsAt(parent) {
		rows = append(rows, markupRow(src, m))
	}
	return rows
}

// groupOf returns the group n belongs to at this level. A back-reference to a
// group that is not attached here is reported and ignored.
func groupOf(src Source, n *domain.Node, groups map[domain.ID]*domain.Group) (domain.ID, bool) {
	if n.Group == nil {
		return 0, false
	}
	g, ok := groups[*n.Group]
	if !ok || !domain.ContainsID(g.Children, n.ID) {
		src.Report(domain.Inconsistency{
			Code:    domain.InconsistencyMissingChild,
			Message: "node references a group that does not list it",
			IDs:     []domain.ID{n.ID, *n.Group},
		})
		return 0, false
	}
	return g.ID, true
}

func dataRow(n *domain.Node) domain.Row {
	kind := domain.RowData
	if n.IsPlaceholder {
		kind = domain.RowPlaceholder
	}
	row := domain.Row{
		ID:       domain.DataRowID(n.ID),
		Kind:     kind,
		Node:     n.Clone(),
		Children: append([]domain.ID(nil), n.Children...),
		Totals:   aggregate.NodeTotals(n),
	}
	if !n.IsLeaf() {
		row.Spans = []domain.ColumnSpan{parentSpan}
	}
	return row
}

func groupRow(src Source, g *domain.Group) domain.Row {
	return domain.Row{
		ID:       domain.GroupRowID(g.ID),
		Kind:     domain.RowGroup,
		Group:    g.Clone(),
		Children: present(src, g.Children),
		Totals:   aggregate.GroupTotals(src, g),
		Spans:    []domain.ColumnSpan{overlaySpan},
	}
}

func markupRow(src Source, m *domain.Markup) domain.Row {
	return domain.Row{
		ID:       domain.MarkupRowID(m.ID),
		Kind:     domain.RowMarkup,
		Markup:   m.Clone(),
		Children: present(src, m.Children),
		Totals:   aggregate.MarkupTotals(src, m),
		Spans:    []domain.ColumnSpan{overlaySpan},
	}
}

func present(src Source, ids []domain.ID) []domain.ID {
	out := make([]domain.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := src.Node(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// Equal reports whether two materializations are identical, letting a
// subscriber skip re-rendering an unchanged level.
func Equal(a, b []domain.Row) bool {
	return reflect.DeepEqual(a, b)
}

// IDs returns the row ids of rows in order.
func IDs(rows []domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
