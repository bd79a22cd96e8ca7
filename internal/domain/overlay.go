package domain

// Group is a named, colored cluster of sibling nodes. It holds no numeric
// state; its totals are always recomputed from the current children.
type Group struct {
	ID       ID
	ParentID ID
	Name     string
	Color    string
	Children []ID
}

// Clone returns a deep copy of g.
func (g *Group) Clone() *Group {
	c := *g
	c.Children = append([]ID(nil), g.Children...)
	return &c
}

// Markup is a surcharge attached at one tree level. Flat markups carry no
// children and contribute their rate once; percent markups contribute
// rate × Σ base over the referenced siblings.
type Markup struct {
	ID          ID
	ParentID    ID
	Identifier  string
	Description string
	Unit        Unit
	Rate        *float64
	Actual      float64
	Children    []ID
}

// Clone returns a deep copy of m.
func (m *Markup) Clone() *Markup {
	c := *m
	c.Children = append([]ID(nil), m.Children...)
	c.Rate = cloneFloat(m.Rate)
	return &c
}

// Validate checks the rules a new or edited markup must satisfy: a known
// unit, a finite rate, and a non-empty child list for percent markups.
func (m *Markup) Validate() error {
	if err := m.ValidateStored(); err != nil {
		return err
	}
	if m.Unit == UnitPercent && len(m.Children) == 0 {
		return Invalid("percent markup %d requires at least one child", m.ID)
	}
	return nil
}

// ValidateChange is Validate for a replacement of prev. A percent markup
// whose rows were all removed keeps its empty child list and stays
// editable; a change cannot empty it on purpose.
func (m *Markup) ValidateChange(prev *Markup) error {
	if prev != nil && prev.Unit == UnitPercent && len(prev.Children) == 0 {
		return m.ValidateStored()
	}
	return m.Validate()
}

// ValidateStored checks what every stored markup satisfies, including one
// left childless by row removals.
func (m *Markup) ValidateStored() error {
	switch m.Unit {
	case UnitFlat:
		if len(m.Children) > 0 {
			return Invalid("flat markup %d cannot reference children", m.ID)
		}
	case UnitPercent:
	default:
		return Invalid("markup %d has unknown unit %q", m.ID, m.Unit)
	}
	if err := checkFinite(FieldRate, m.Rate); err != nil {
		return err
	}
	return checkFinite(FieldActual, &m.Actual)
}

// Fringe is a per-node rate modifier. Percent fringes apply to the node's
// nominal value, capped at Cutoff when set; flat fringes contribute Rate once.
type Fringe struct {
	ID       ID
	BudgetID ID
	Name     string
	Color    string
	Unit     Unit
	Rate     *float64
	Cutoff   *float64
}

// Clone returns a deep copy of f.
func (f *Fringe) Clone() *Fringe {
	c := *f
	c.Rate = cloneFloat(f.Rate)
	c.Cutoff = cloneFloat(f.Cutoff)
	return &c
}

// Validate checks that the fringe has a known unit and finite numbers.
func (f *Fringe) Validate() error {
	if !ValidUnits[string(f.Unit)] {
		return Invalid("fringe %d has unknown unit %q", f.ID, f.Unit)
	}
	if err := checkFinite(FieldRate, f.Rate); err != nil {
		return err
	}
	return checkFinite(FieldCutoff, f.Cutoff)
}
