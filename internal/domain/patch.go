package domain

import "sort"

// Field names a column of a node row.
type Field string

const (
	FieldIdentifier  Field = "identifier"
	FieldDescription Field = "description"
	FieldQuantity    Field = "quantity"
	FieldRate        Field = "rate"
	FieldMultiplier  Field = "multiplier"
	FieldActual      Field = "actual"
	FieldFringes     Field = "fringes"

	// Overlay fields for groups, markups and fringes.
	FieldName     Field = "name"
	FieldColor    Field = "color"
	FieldUnit     Field = "unit"
	FieldCutoff   Field = "cutoff"
	FieldChildren Field = "children"

	FieldNominalValue       Field = "nominal_value"
	FieldEstimated          Field = "estimated"
	FieldVariance           Field = "variance"
	FieldFringeContribution Field = "fringe_contribution"
	FieldAccumulatedFringe  Field = "accumulated_fringe_contribution"
	FieldMarkupContribution Field = "markup_contribution"
	FieldAccumulatedMarkup  Field = "accumulated_markup_contribution"
)

// CalculatedColumns are the value columns a parent row's description cell
// spans across in the materialized table.
var CalculatedColumns = []Field{FieldEstimated, FieldActual, FieldVariance}

// IsComputed reports whether f is maintained by the aggregation engine.
func (f Field) IsComputed() bool {
	switch f {
	case FieldNominalValue, FieldEstimated, FieldVariance,
		FieldFringeContribution, FieldAccumulatedFringe,
		FieldMarkupContribution, FieldAccumulatedMarkup:
		return true
	}
	return false
}

// IsLeafOnly reports whether f only means something on a leaf SubAccount.
func (f Field) IsLeafOnly() bool {
	switch f {
	case FieldQuantity, FieldRate, FieldMultiplier, FieldActual:
		return true
	}
	return false
}

// Patch is a sparse set of field assignments. Later merges win.
type Patch map[Field]any

// Merge copies every entry of other into p, allocating p if needed.
func (p Patch) Merge(other Patch) Patch {
	if p == nil {
		p = Patch{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Clone returns a shallow copy of p.
func (p Patch) Clone() Patch {
	if p == nil {
		return nil
	}
	return Patch{}.Merge(p)
}

// Fields returns the patch keys in a stable order.
func (p Patch) Fields() []Field {
	fields := make([]Field, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Text returns the value for f when it is a string.
func (p Patch) Text(f Field) string {
	s, _ := p[f].(string)
	return s
}

// Float returns the value for f as a nullable number.
func (p Patch) Float(f Field) *float64 {
	v, err := FloatPtrValue(f, p[f])
	if err != nil {
		return nil
	}
	return v
}

// IDs returns the value for f when it is an id list.
func (p Patch) IDs(f Field) []ID {
	ids, _ := p[f].([]ID)
	return ids
}

// Has reports whether f is present in p.
func (p Patch) Has(f Field) bool {
	_, ok := p[f]
	return ok
}

// FieldChange is one field edit together with the value the editor saw
// before changing it. Old may be nil when unknown.
type FieldChange struct {
	Field Field
	Old   any
	New   any
}

// Changes returns p as field changes with unknown old values, ordered by field.
func (p Patch) Changes() []FieldChange {
	out := make([]FieldChange, 0, len(p))
	for _, f := range p.Fields() {
		out = append(out, FieldChange{Field: f, New: p[f]})
	}
	return out
}

// PatchOf collects the new values of changes into a patch. Later changes to
// the same field win.
func PatchOf(changes []FieldChange) Patch {
	p := make(Patch, len(changes))
	for _, c := range changes {
		p[c.Field] = c.New
	}
	return p
}
