package importer

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// ValidateBudgetFile checks a budget file for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateBudgetFile(f *BudgetFile) []error {
	var errs []error

	if f.Budget.Identifier == "" {
		errs = append(errs, fmt.Errorf("budget.identifier is required"))
	}

	fringeRefs := make(map[string]bool)
	errs = append(errs, validateFringes(f.Fringes, fringeRefs)...)

	// parentOf maps each node ref to its parent ref ("" for the budget).
	parentOf := make(map[string]string)
	errs = append(errs, validateNodes(f.Nodes, fringeRefs, parentOf)...)

	errs = append(errs, validateGroups(f.Groups, parentOf)...)
	errs = append(errs, validateMarkups(f.Markups, parentOf)...)

	return errs
}

func validateFringes(fringes []FringeImport, refs map[string]bool) []error {
	var errs []error
	for i, fr := range fringes {
		prefix := fmt.Sprintf("fringes[%d]", i)
		if fr.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[fr.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, fr.Ref))
		} else {
			refs[fr.Ref] = true
		}
		if fr.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		errs = append(errs, validateUnit(prefix, fr.Unit, fr.Rate)...)
		if fr.Cutoff != nil && *fr.Cutoff <= 0 {
			errs = append(errs, fmt.Errorf("%s.cutoff must be positive", prefix))
		}
	}
	return errs
}

func validateUnit(prefix, unit string, rate *float64) []error {
	var errs []error
	if !domain.ValidUnits[unit] {
		errs = append(errs, fmt.Errorf("%s.unit: invalid value %q (expected percent or flat)", prefix, unit))
	}
	if rate == nil {
		errs = append(errs, fmt.Errorf("%s.rate is required", prefix))
	}
	return errs
}

func validateNodes(nodes []NodeImport, fringeRefs map[string]bool, parentOf map[string]string) []error {
	var errs []error

	hasChildren := make(map[string]bool)
	for _, n := range nodes {
		if n.ParentRef != nil {
			hasChildren[*n.ParentRef] = true
		}
	}

	for i, n := range nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		if n.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if _, dup := parentOf[n.Ref]; dup {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, n.Ref))
		}

		parent := ""
		if n.ParentRef != nil {
			parent = *n.ParentRef
			if _, ok := parentOf[parent]; !ok {
				errs = append(errs, fmt.Errorf("%s.parent_ref %q must name an earlier node", prefix, parent))
			}
		}
		if n.Ref != "" {
			parentOf[n.Ref] = parent
		}

		if parent == "" && n.Identifier == "" {
			errs = append(errs, fmt.Errorf("%s.identifier is required for accounts", prefix))
		}

		leaf := parent != "" && !hasChildren[n.Ref]
		if !leaf {
			for _, in := range []struct {
				field string
				v     *float64
			}{{"quantity", n.Quantity}, {"rate", n.Rate}, {"multiplier", n.Multiplier}} {
				if in.v != nil {
					errs = append(errs, fmt.Errorf("%s.%s is only allowed on leaf subaccounts", prefix, in.field))
				}
			}
			if len(n.Fringes) > 0 {
				errs = append(errs, fmt.Errorf("%s.fringes are only allowed on leaf subaccounts", prefix))
			}
		}
		for _, ref := range n.Fringes {
			if !fringeRefs[ref] {
				errs = append(errs, fmt.Errorf("%s.fringes: unknown fringe ref %q", prefix, ref))
			}
		}
	}
	return errs
}

// checkSiblings reports refs that are unknown or do not sit under parent.
func checkSiblings(prefix, field, parent string, refs []string, parentOf map[string]string) []error {
	var errs []error
	for _, ref := range refs {
		p, ok := parentOf[ref]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%s.%s: unknown node ref %q", prefix, field, ref))
		case p != parent:
			errs = append(errs, fmt.Errorf("%s.%s: node %q is not a child of %q", prefix, field, ref, levelName(parent)))
		}
	}
	return errs
}

func levelName(parent string) string {
	if parent == "" {
		return "budget"
	}
	return parent
}

func parentRef(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func validateGroups(groups []GroupImport, parentOf map[string]string) []error {
	var errs []error
	member := make(map[string]int)
	for i, g := range groups {
		prefix := fmt.Sprintf("groups[%d]", i)
		parent := parentRef(g.ParentRef)
		if _, ok := parentOf[parent]; parent != "" && !ok {
			errs = append(errs, fmt.Errorf("%s.parent_ref: unknown node ref %q", prefix, parent))
			continue
		}
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		errs = append(errs, checkSiblings(prefix, "members", parent, g.Members, parentOf)...)
		for _, ref := range g.Members {
			if prev, ok := member[ref]; ok && prev != i {
				errs = append(errs, fmt.Errorf("%s.members: node %q already belongs to groups[%d]", prefix, ref, prev))
				continue
			}
			member[ref] = i
		}
	}
	return errs
}

func validateMarkups(markups []MarkupImport, parentOf map[string]string) []error {
	var errs []error
	for i, m := range markups {
		prefix := fmt.Sprintf("markups[%d]", i)
		parent := parentRef(m.ParentRef)
		if _, ok := parentOf[parent]; parent != "" && !ok {
			errs = append(errs, fmt.Errorf("%s.parent_ref: unknown node ref %q", prefix, parent))
			continue
		}
		errs = append(errs, validateUnit(prefix, m.Unit, m.Rate)...)
		switch domain.Unit(m.Unit) {
		case domain.UnitPercent:
			if len(m.Children) == 0 {
				errs = append(errs, fmt.Errorf("%s.children: percent markups need at least one child", prefix))
			}
		case domain.UnitFlat:
			if len(m.Children) > 0 {
				errs = append(errs, fmt.Errorf("%s.children: flat markups cannot reference children", prefix))
			}
		}
		errs = append(errs, checkSiblings(prefix, "children", parent, m.Children, parentOf)...)
	}
	return errs
}
