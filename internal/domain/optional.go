package domain

import "math"

// Optional numeric fields are *float64: nil means "not entered", which the
// calculators treat differently from an explicit zero.

// Float returns a pointer to v. Convenience for building patches.
func Float(v float64) *float64 { return &v }

// FloatOr dereferences p, or returns fallback when p is unset.
func FloatOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// checkFinite rejects NaN and infinities, which no calculation can carry.
func checkFinite(f Field, p *float64) error {
	if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
		return Invalid("field %s must be finite", f)
	}
	return nil
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
