package domain

import "fmt"

// Totals are the displayed estimated/actual/variance triple of a row.
type Totals struct {
	Estimated float64
	Actual    float64
	Variance  float64
}

// Add accumulates o into t.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Estimated: t.Estimated + o.Estimated,
		Actual:    t.Actual + o.Actual,
		Variance:  t.Variance + o.Variance,
	}
}

// ColumnSpan marks Column as visually absorbing the Across columns.
type ColumnSpan struct {
	Column Field
	Across []Field
}

// Row is the UI-facing projection of one table line. Exactly one of Node,
// Group or Markup is set, matching Kind.
type Row struct {
	ID       string
	Kind     RowKind
	Node     *Node
	Group    *Group
	Markup   *Markup
	Children []ID
	Totals   Totals
	Spans    []ColumnSpan
}

// DataRowID returns the row id of a node row.
func DataRowID(id ID) string { return id.String() }

// GroupRowID returns the namespaced row id of a group footer row.
func GroupRowID(id ID) string { return fmt.Sprintf("group-%d", id) }

// MarkupRowID returns the namespaced row id of a markup row.
func MarkupRowID(id ID) string { return fmt.Sprintf("markup-%d", id) }

// IsPlaceholder reports whether the row is an unpersisted placeholder.
func (r Row) IsPlaceholder() bool { return r.Kind == RowPlaceholder }
