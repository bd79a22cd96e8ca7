package finance

import (
	"math"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/shopspring/decimal"
)

// FringeContribution returns the amount a fringe adds on top of base.
// Percent: rate × min(base, cutoff), with a nil cutoff meaning base itself.
// Flat: rate, independent of base. A nil rate contributes nothing.
func FringeContribution(base float64, f domain.Fringe) float64 {
	if f.Rate == nil {
		return 0
	}
	rate := dec(*f.Rate)
	if f.Unit == domain.UnitFlat {
		return rate.InexactFloat64()
	}
	b := dec(base)
	if f.Cutoff != nil {
		b = decimal.Min(b, dec(*f.Cutoff))
	}
	return rate.Mul(b).InexactFloat64()
}

// MarkupContribution returns the amount a markup adds to its parent.
// bases must already be filtered to the markup's referenced children.
// Flat: rate once. Percent: rate × Σ bases. A nil rate contributes nothing.
func MarkupContribution(bases []float64, m domain.Markup) float64 {
	rate := dec(domain.FloatOr(m.Rate, 0))
	if m.Unit == domain.UnitFlat {
		return rate.InexactFloat64()
	}
	return rate.Mul(sum(bases)).InexactFloat64()
}

// MarkupShare returns the part of a percent markup attributable to a single
// child with the given base. Flat markups are not apportioned.
func MarkupShare(base float64, m domain.Markup) float64 {
	if m.Unit != domain.UnitPercent || m.Rate == nil {
		return 0
	}
	return dec(*m.Rate).Mul(dec(base)).InexactFloat64()
}

// NominalValue returns quantity × multiplier × rate for a leaf. A missing
// quantity or rate yields 0; a missing multiplier counts as 1.
func NominalValue(quantity, multiplier, rate *float64) float64 {
	if quantity == nil || rate == nil {
		return 0
	}
	v := dec(*quantity).Mul(dec(*rate))
	if multiplier != nil {
		v = v.Mul(dec(*multiplier))
	}
	return v.InexactFloat64()
}

// Sum adds values without accumulating binary rounding error.
func Sum(values []float64) float64 {
	return sum(values).InexactFloat64()
}

func sum(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(dec(v))
	}
	return total
}

// dec converts v for exact arithmetic. Non-finite input is rejected before
// it reaches the store; here it counts as zero so a calculation never panics.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
