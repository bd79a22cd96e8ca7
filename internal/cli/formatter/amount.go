package formatter

import (
	"strings"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/shopspring/decimal"
)

// FormatAmount renders v rounded to cents with thousands separators,
// e.g. -1234.5 becomes "-1,234.50".
func FormatAmount(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg && out != "0.00" {
		out = "-" + out
	}
	return out
}

// FormatOptional renders a nullable leaf input, empty when unset.
func FormatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).String()
}

// FormatRate renders a markup or fringe rate according to its unit: percent
// rates are stored as fractions and shown as "12.5%".
func FormatRate(unit domain.Unit, rate *float64) string {
	if rate == nil {
		return ""
	}
	if unit == domain.UnitPercent {
		return decimal.NewFromFloat(*rate).Shift(2).String() + "%"
	}
	return FormatAmount(*rate)
}
