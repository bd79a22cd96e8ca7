package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

var rowHeaders = []string{"ROW", "ID", "DESCRIPTION", "QTY", "MULT", "RATE", "ESTIMATED", "ACTUAL", "VARIANCE"}

var rowAligns = []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight}

// FormatRows renders a materialized level. Placeholder rows are marked with
// an asterisk, group rows show their member count and markup rows their
// rate.
func FormatRows(rows []domain.Row) string {
	if len(rows) == 0 {
		return Dim("No rows.") + "\n"
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		totals := []string{
			FormatAmount(r.Totals.Estimated),
			FormatAmount(r.Totals.Actual),
			VarianceStyle(r.Totals.Variance).Render(FormatAmount(r.Totals.Variance)),
		}
		var cells []string
		switch r.Kind {
		case domain.RowData, domain.RowPlaceholder:
			n := r.Node
			id := r.ID
			if r.IsPlaceholder() {
				id = StyleYellow.Render(id + "*")
			}
			cells = []string{id, n.Identifier, n.Description,
				FormatOptional(n.Quantity), FormatOptional(n.Multiplier), FormatOptional(n.Rate)}
		case domain.RowGroup:
			g := r.Group
			label := fmt.Sprintf("%s %s (%d)", Swatch(g.Color), g.Name, len(r.Children))
			cells = []string{Dim(r.ID), "", StylePurple.Render(label), "", "", ""}
		case domain.RowMarkup:
			m := r.Markup
			cells = []string{Dim(r.ID), m.Identifier, StyleBlue.Render(m.Description), "", "", FormatRate(m.Unit, m.Rate)}
		}
		out = append(out, append(cells, totals...))
	}
	return RenderTable(rowHeaders, out, rowAligns...)
}

// FormatBudgets renders the budget list.
func FormatBudgets(budgets []*domain.Node) string {
	if len(budgets) == 0 {
		return Dim("No budgets yet. Create one with: budgetctl budget create IDENTIFIER") + "\n"
	}
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, []string{b.ID.String(), b.Identifier, b.Description})
	}
	return RenderTable([]string{"ID", "IDENTIFIER", "DESCRIPTION"}, rows)
}

// FormatFringes renders the fringes of a budget.
func FormatFringes(fringes []*domain.Fringe) string {
	if len(fringes) == 0 {
		return Dim("No fringes.") + "\n"
	}
	rows := make([][]string, 0, len(fringes))
	for _, f := range fringes {
		cutoff := ""
		if f.Cutoff != nil {
			cutoff = FormatAmount(*f.Cutoff)
		}
		rows = append(rows, []string{f.ID.String(), Swatch(f.Color) + " " + f.Name, string(f.Unit), FormatRate(f.Unit, f.Rate), cutoff})
	}
	return RenderTable([]string{"ID", "NAME", "UNIT", "RATE", "CUTOFF"}, rows,
		AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight)
}

// FormatSummary renders the headline totals of a budget.
func FormatSummary(budget *domain.Node) string {
	var b strings.Builder
	title := budget.Label()
	b.WriteString(Header(title) + "\n")
	fmt.Fprintf(&b, "  %s  %s\n", Dim("ESTIMATED"), Bold(FormatAmount(budget.Estimated())))
	fmt.Fprintf(&b, "  %s  %s\n", Dim("ACTUAL   "), FormatAmount(budget.Actual))
	v := budget.Variance()
	fmt.Fprintf(&b, "  %s  %s\n", Dim("VARIANCE "), VarianceStyle(v).Render(FormatAmount(v)))
	return b.String()
}

// FormatDiagnostics lists inconsistencies observed while loading.
func FormatDiagnostics(items []domain.Inconsistency) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleYellow.Render(fmt.Sprintf("%d inconsistencies skipped:", len(items))) + "\n")
	for _, inc := range items {
		b.WriteString("  " + Dim(inc.String()) + "\n")
	}
	return b.String()
}

// FormatValidationErrors renders the problems found in an import file.
func FormatValidationErrors(errs []error) string {
	var b strings.Builder
	b.WriteString(StyleRed.Render(fmt.Sprintf("Validation failed (%d errors):", len(errs))))
	b.WriteString("\n")
	for _, e := range errs {
		b.WriteString(StyleRed.Render("  - ") + e.Error() + "\n")
	}
	return b.String()
}
