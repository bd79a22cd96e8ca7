package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_EstimatedAndVariance(t *testing.T) {
	n := &Node{
		NominalValue:                  100,
		AccumulatedMarkupContribution: 10,
		AccumulatedFringeContribution: 5,
		FringeContribution:            2,
		MarkupContribution:            99, // share only, never summed
		Actual:                        120,
	}
	assert.Equal(t, 117.0, n.Estimated())
	assert.Equal(t, -3.0, n.Variance())
}

func TestNode_CloneSharesNothing(t *testing.T) {
	g := ID(7)
	n := &Node{ID: 1, Children: []ID{2, 3}, Fringes: []ID{4}, Quantity: Float(2), Group: &g}
	c := n.Clone()

	c.Children[0] = 99
	c.Fringes[0] = 99
	*c.Quantity = 5
	*c.Group = 8

	assert.Equal(t, []ID{2, 3}, n.Children)
	assert.Equal(t, []ID{4}, n.Fringes)
	assert.Equal(t, 2.0, *n.Quantity)
	assert.Equal(t, ID(7), *n.Group)
}

func TestNode_Label(t *testing.T) {
	assert.Equal(t, "0010", (&Node{ID: 3, Identifier: "0010", Description: "Crew"}).Label())
	assert.Equal(t, "Crew", (&Node{ID: 3, Description: "Crew"}).Label())
	assert.Equal(t, "#3", (&Node{ID: 3}).Label())
}

func TestNode_SetField(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   any
		check   func(t *testing.T, n *Node)
		wantErr bool
	}{
		{
			name: "identifier", field: FieldIdentifier, value: "0100",
			check: func(t *testing.T, n *Node) { assert.Equal(t, "0100", n.Identifier) },
		},
		{
			name: "quantity from int", field: FieldQuantity, value: 3,
			check: func(t *testing.T, n *Node) { assert.Equal(t, 3.0, *n.Quantity) },
		},
		{
			name: "rate cleared with nil", field: FieldRate, value: nil,
			check: func(t *testing.T, n *Node) { assert.Nil(t, n.Rate) },
		},
		{
			name: "actual from pointer", field: FieldActual, value: Float(12.5),
			check: func(t *testing.T, n *Node) { assert.Equal(t, 12.5, n.Actual) },
		},
		{
			name: "fringes", field: FieldFringes, value: []ID{1, 2},
			check: func(t *testing.T, n *Node) { assert.Equal(t, []ID{1, 2}, n.Fringes) },
		},
		{name: "computed field", field: FieldEstimated, value: 1.0, wantErr: true},
		{name: "unknown field", field: Field("colour"), value: "red", wantErr: true},
		{name: "string for number", field: FieldQuantity, value: "two", wantErr: true},
		{name: "NaN", field: FieldMultiplier, value: math.NaN(), wantErr: true},
		{name: "NaN pointer", field: FieldRate, value: Float(math.NaN()), wantErr: true},
		{name: "infinite pointer", field: FieldQuantity, value: Float(math.Inf(-1)), wantErr: true},
		{name: "number for string", field: FieldDescription, value: 4.0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{ID: 1, Rate: Float(9)}
			err := n.SetField(tt.field, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidMutation))
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}

func TestPatch_MergeAndChanges(t *testing.T) {
	var p Patch
	p = p.Merge(Patch{FieldRate: 2.0, FieldIdentifier: "a"})
	p = p.Merge(Patch{FieldRate: 3.0})

	assert.Equal(t, []Field{FieldIdentifier, FieldRate}, p.Fields())
	assert.Equal(t, 3.0, *p.Float(FieldRate))
	assert.Equal(t, "a", p.Text(FieldIdentifier))
	assert.Nil(t, p.Float(FieldIdentifier))
	assert.False(t, p.Has(FieldQuantity))

	back := PatchOf(p.Changes())
	assert.Equal(t, p, back)

	clone := p.Clone()
	clone[FieldRate] = 4.0
	assert.Equal(t, 3.0, p[FieldRate])
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs("3, 4,,-2")
	require.NoError(t, err)
	assert.Equal(t, []ID{3, 4, -2}, ids)
	assert.True(t, ids[2].IsTemp())

	_, err = ParseIDs("3,x")
	assert.Error(t, err)
}

func TestIDListHelpers(t *testing.T) {
	ids := []ID{1, 2, 1}
	assert.Equal(t, []ID{1, 2, 1}, AppendUniqueID(ids, 2))

	out, removed := RemoveID(ids, 1)
	assert.True(t, removed)
	assert.Equal(t, []ID{2}, out)
	assert.Equal(t, []ID{1, 2, 1}, ids)

	assert.True(t, ReplaceID(ids, 1, 5))
	assert.Equal(t, []ID{5, 2, 5}, ids)
	assert.False(t, ReplaceID(ids, 1, 6))
}

func TestMarkupValidate(t *testing.T) {
	assert.NoError(t, (&Markup{Unit: UnitFlat}).Validate())
	assert.NoError(t, (&Markup{Unit: UnitPercent, Children: []ID{1}}).Validate())
	assert.ErrorIs(t, (&Markup{Unit: UnitFlat, Children: []ID{1}}).Validate(), ErrInvalidMutation)
	assert.ErrorIs(t, (&Markup{Unit: UnitPercent}).Validate(), ErrInvalidMutation)
	assert.ErrorIs(t, (&Markup{Unit: "weekly"}).Validate(), ErrInvalidMutation)
	assert.ErrorIs(t, (&Markup{Unit: UnitPercent, Children: []ID{1}, Rate: Float(math.Inf(1))}).Validate(), ErrInvalidMutation)
}

func TestMarkupValidateChange(t *testing.T) {
	emptied := &Markup{ID: 4, Unit: UnitPercent}
	full := &Markup{ID: 4, Unit: UnitPercent, Children: []ID{1}}

	assert.NoError(t, (&Markup{ID: 4, Unit: UnitPercent, Rate: Float(0.2)}).ValidateChange(emptied))
	assert.ErrorIs(t, (&Markup{ID: 4, Unit: UnitPercent}).ValidateChange(full), ErrInvalidMutation)
	assert.ErrorIs(t, (&Markup{ID: 4, Unit: UnitPercent}).ValidateChange(nil), ErrInvalidMutation)
	assert.NoError(t, (&Markup{ID: 4, Unit: UnitPercent}).ValidateStored())
}

func TestFringeValidate_Finite(t *testing.T) {
	assert.NoError(t, (&Fringe{Unit: UnitPercent, Rate: Float(0.1), Cutoff: Float(100)}).Validate())
	assert.ErrorIs(t, (&Fringe{Unit: UnitFlat, Rate: Float(math.NaN())}).Validate(), ErrInvalidMutation)
	assert.ErrorIs(t, (&Fringe{Unit: UnitPercent, Cutoff: Float(math.Inf(1))}).Validate(), ErrInvalidMutation)
}

func TestFloatOr(t *testing.T) {
	assert.Equal(t, 4.0, FloatOr(nil, 4))
	assert.Equal(t, 0.0, FloatOr(Float(0), 4))
}
