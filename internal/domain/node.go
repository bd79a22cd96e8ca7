package domain

import "fmt"

// Node is an Account or SubAccount (or the Budget root) in the recursive
// budget tree. Children are referenced by id; the tree store owns the arena.
type Node struct {
	ID          ID
	Kind        NodeKind
	ParentID    ID // zero for the budget root
	Identifier  string
	Description string
	Children    []ID

	// Leaf inputs. Nil means "not entered yet".
	Quantity   *float64
	Rate       *float64
	Multiplier *float64

	Actual float64

	// Derived values maintained by the aggregation engine.
	NominalValue                  float64
	FringeContribution            float64
	AccumulatedFringeContribution float64
	MarkupContribution            float64
	AccumulatedMarkupContribution float64

	Group   *ID
	Fringes []ID

	IsPlaceholder bool
}

// IsLeaf reports whether the node has no children of its own.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Estimated returns nominal value plus every markup and fringe contribution.
func (n *Node) Estimated() float64 {
	return n.NominalValue + n.AccumulatedMarkupContribution + n.AccumulatedFringeContribution + n.FringeContribution
}

// Variance returns Estimated minus Actual.
func (n *Node) Variance() float64 {
	return n.Estimated() - n.Actual
}

// Clone returns a deep copy that shares no slices or pointers with n.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = append([]ID(nil), n.Children...)
	c.Fringes = append([]ID(nil), n.Fringes...)
	c.Quantity = cloneFloat(n.Quantity)
	c.Rate = cloneFloat(n.Rate)
	c.Multiplier = cloneFloat(n.Multiplier)
	if n.Group != nil {
		g := *n.Group
		c.Group = &g
	}
	return &c
}

// Label returns the identifier, falling back to the description.
func (n *Node) Label() string {
	return firstNonEmpty(n.Identifier, n.Description, fmt.Sprintf("#%d", n.ID))
}

// SetField assigns a single user-editable field, type checking the value.
// Computed fields are rejected with ErrInvalidMutation. Whether the field is
// meaningful for the node's current shape is decided by the tree store.
func (n *Node) SetField(f Field, v any) error {
	switch f {
	case FieldIdentifier:
		s, err := stringValue(f, v)
		if err != nil {
			return err
		}
		n.Identifier = s
	case FieldDescription:
		s, err := stringValue(f, v)
		if err != nil {
			return err
		}
		n.Description = s
	case FieldQuantity, FieldRate, FieldMultiplier:
		p, err := FloatPtrValue(f, v)
		if err != nil {
			return err
		}
		switch f {
		case FieldQuantity:
			n.Quantity = p
		case FieldRate:
			n.Rate = p
		default:
			n.Multiplier = p
		}
	case FieldActual:
		p, err := FloatPtrValue(f, v)
		if err != nil {
			return err
		}
		n.Actual = FloatOr(p, 0)
	case FieldFringes:
		ids, ok := v.([]ID)
		if !ok && v != nil {
			return Invalid("field %s expects []ID, got %T", f, v)
		}
		n.Fringes = append([]ID(nil), ids...)
	default:
		if f.IsComputed() {
			return Invalid("field %s is computed and read-only", f)
		}
		return Invalid("unknown field %q", f)
	}
	return nil
}

// FieldValue returns the current value of a field as a Patch value.
func (n *Node) FieldValue(f Field) any {
	switch f {
	case FieldIdentifier:
		return n.Identifier
	case FieldDescription:
		return n.Description
	case FieldQuantity:
		return cloneFloat(n.Quantity)
	case FieldRate:
		return cloneFloat(n.Rate)
	case FieldMultiplier:
		return cloneFloat(n.Multiplier)
	case FieldActual:
		a := n.Actual
		return &a
	case FieldFringes:
		return append([]ID(nil), n.Fringes...)
	case FieldNominalValue:
		return n.NominalValue
	case FieldEstimated:
		return n.Estimated()
	case FieldVariance:
		return n.Variance()
	}
	return nil
}

// Patch returns the node's user-editable state as a patch, suitable for a
// creation payload.
func (n *Node) Patch() Patch {
	p := Patch{
		FieldIdentifier:  n.Identifier,
		FieldDescription: n.Description,
	}
	if n.Kind == NodeSubAccount {
		p[FieldQuantity] = cloneFloat(n.Quantity)
		p[FieldRate] = cloneFloat(n.Rate)
		p[FieldMultiplier] = cloneFloat(n.Multiplier)
		a := n.Actual
		p[FieldActual] = &a
		if len(n.Fringes) > 0 {
			p[FieldFringes] = append([]ID(nil), n.Fringes...)
		}
	}
	return p
}

// FloatPtrValue normalizes the accepted numeric encodings of a nullable field.
func FloatPtrValue(f Field, v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *float64:
		if err := checkFinite(f, x); err != nil {
			return nil, err
		}
		return cloneFloat(x), nil
	case float64:
		if err := checkFinite(f, &x); err != nil {
			return nil, err
		}
		return &x, nil
	case int:
		y := float64(x)
		return &y, nil
	case int64:
		y := float64(x)
		return &y, nil
	}
	return nil, Invalid("field %s expects a number, got %T", f, v)
}

func stringValue(f Field, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}
	return "", Invalid("field %s expects a string, got %T", f, v)
}

