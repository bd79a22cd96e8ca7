package domain

// Entity is what the API collaborator returns. Exactly one of the pointers
// is set, matching Kind.
type Entity struct {
	Kind   EntityKind
	Node   *Node
	Group  *Group
	Markup *Markup
	Fringe *Fringe
}

// ID returns the id of whichever entity is set.
func (e Entity) ID() ID {
	switch {
	case e.Node != nil:
		return e.Node.ID
	case e.Group != nil:
		return e.Group.ID
	case e.Markup != nil:
		return e.Markup.ID
	case e.Fringe != nil:
		return e.Fringe.ID
	}
	return 0
}

// BudgetContents is a full listing of one budget. Nodes are ordered by
// declaration order within each parent.
type BudgetContents struct {
	Budget  *Node
	Nodes   []*Node
	Groups  []*Group
	Markups []*Markup
	Fringes []*Fringe
}

// Patch returns the group's persisted fields. Placeholder children are left
// out since they have no server identity yet.
func (g *Group) Patch() Patch {
	return Patch{
		FieldName:     g.Name,
		FieldColor:    g.Color,
		FieldChildren: PersistedIDs(g.Children),
	}
}

// Apply assigns the group fields present in p.
func (g *Group) Apply(p Patch) error {
	for _, f := range p.Fields() {
		switch f {
		case FieldName:
			s, err := stringValue(f, p[f])
			if err != nil {
				return err
			}
			g.Name = s
		case FieldColor:
			s, err := stringValue(f, p[f])
			if err != nil {
				return err
			}
			g.Color = s
		case FieldChildren:
			ids, err := idsValue(f, p[f])
			if err != nil {
				return err
			}
			g.Children = ids
		default:
			return Invalid("unknown group field %q", f)
		}
	}
	return nil
}

// Patch returns the markup's persisted fields.
func (m *Markup) Patch() Patch {
	return Patch{
		FieldIdentifier:  m.Identifier,
		FieldDescription: m.Description,
		FieldUnit:        string(m.Unit),
		FieldRate:        cloneFloat(m.Rate),
		FieldActual:      Float(m.Actual),
		FieldChildren:    PersistedIDs(m.Children),
	}
}

// Apply assigns the markup fields present in p.
func (m *Markup) Apply(p Patch) error {
	for _, f := range p.Fields() {
		switch f {
		case FieldIdentifier, FieldDescription:
			s, err := stringValue(f, p[f])
			if err != nil {
				return err
			}
			if f == FieldIdentifier {
				m.Identifier = s
			} else {
				m.Description = s
			}
		case FieldUnit:
			u, err := unitValue(f, p[f])
			if err != nil {
				return err
			}
			m.Unit = u
		case FieldRate:
			r, err := FloatPtrValue(f, p[f])
			if err != nil {
				return err
			}
			m.Rate = r
		case FieldActual:
			a, err := FloatPtrValue(f, p[f])
			if err != nil {
				return err
			}
			m.Actual = FloatOr(a, 0)
		case FieldChildren:
			ids, err := idsValue(f, p[f])
			if err != nil {
				return err
			}
			m.Children = ids
		default:
			return Invalid("unknown markup field %q", f)
		}
	}
	return nil
}

// Patch returns the fringe's persisted fields.
func (fr *Fringe) Patch() Patch {
	return Patch{
		FieldName:   fr.Name,
		FieldColor:  fr.Color,
		FieldUnit:   string(fr.Unit),
		FieldRate:   cloneFloat(fr.Rate),
		FieldCutoff: cloneFloat(fr.Cutoff),
	}
}

// Apply assigns the fringe fields present in p.
func (fr *Fringe) Apply(p Patch) error {
	for _, f := range p.Fields() {
		var err error
		switch f {
		case FieldName:
			fr.Name, err = stringValue(f, p[f])
		case FieldColor:
			fr.Color, err = stringValue(f, p[f])
		case FieldUnit:
			fr.Unit, err = unitValue(f, p[f])
		case FieldRate:
			fr.Rate, err = FloatPtrValue(f, p[f])
		case FieldCutoff:
			fr.Cutoff, err = FloatPtrValue(f, p[f])
		default:
			err = Invalid("unknown fringe field %q", f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PersistedIDs returns ids without placeholder ids.
func PersistedIDs(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if !id.IsTemp() {
			out = append(out, id)
		}
	}
	return out
}

func idsValue(f Field, v any) ([]ID, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []ID:
		return append([]ID(nil), x...), nil
	}
	return nil, Invalid("field %s expects []ID, got %T", f, v)
}

func unitValue(f Field, v any) (Unit, error) {
	var u Unit
	switch x := v.(type) {
	case Unit:
		u = x
	case string:
		u = Unit(x)
	default:
		return "", Invalid("field %s expects a unit, got %T", f, v)
	}
	if !ValidUnits[string(u)] {
		return "", Invalid("field %s has unknown unit %q", f, u)
	}
	return u, nil
}
