package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/spf13/pflag"
)

// parseFieldValue converts a command-line value into the Patch value the
// field expects. "-" or an empty string clears a numeric field.
func parseFieldValue(field domain.Field, raw string) (any, error) {
	switch field {
	case domain.FieldIdentifier, domain.FieldDescription:
		return raw, nil
	case domain.FieldQuantity, domain.FieldRate, domain.FieldMultiplier, domain.FieldActual:
		return parseOptionalFloat(raw)
	case domain.FieldFringes:
		return domain.ParseIDs(raw)
	}
	if field.IsComputed() {
		return nil, fmt.Errorf("field %s is computed and cannot be set", field)
	}
	return nil, fmt.Errorf("unknown field %q (want identifier, description, quantity, rate, multiplier, actual or fringes)", field)
}

func parseOptionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &v, nil
}

func parseUnit(raw string) (domain.Unit, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if !domain.ValidUnits[u] {
		return "", fmt.Errorf("invalid unit %q (want percent or flat)", raw)
	}
	return domain.Unit(u), nil
}

func parseIDArgs(args []string) ([]domain.ID, error) {
	var ids []domain.ID
	for _, a := range args {
		more, err := domain.ParseIDs(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, more...)
	}
	return ids, nil
}

// idsValue is a flag holding a comma separated id list. Repeating the flag
// appends.
type idsValue struct {
	ids *[]domain.ID
}

var _ pflag.Value = idsValue{}

func newIDsValue(p *[]domain.ID) idsValue { return idsValue{ids: p} }

func (v idsValue) String() string {
	parts := make([]string, len(*v.ids))
	for i, id := range *v.ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func (v idsValue) Set(s string) error {
	ids, err := domain.ParseIDs(s)
	if err != nil {
		return err
	}
	*v.ids = append(*v.ids, ids...)
	return nil
}

func (v idsValue) Type() string { return "ids" }
