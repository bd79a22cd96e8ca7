package aggregate

import "github.com/alexanderramin/budgetcore/internal/domain"

// Reader is the read-only view an export pass works against. A tree store
// snapshot satisfies it.
type Reader interface {
	Node(id domain.ID) (*domain.Node, bool)
}

// Estimated returns the estimated value of id in r.
func Estimated(r Reader, id domain.ID) (float64, error) {
	n, ok := r.Node(id)
	if !ok {
		return 0, domain.NotFound("node", id)
	}
	return n.Estimated(), nil
}

// Actual returns the actual value of id in r.
func Actual(r Reader, id domain.ID) (float64, error) {
	n, ok := r.Node(id)
	if !ok {
		return 0, domain.NotFound("node", id)
	}
	return n.Actual, nil
}

// Variance returns the variance of id in r.
func Variance(r Reader, id domain.ID) (float64, error) {
	n, ok := r.Node(id)
	if !ok {
		return 0, domain.NotFound("node", id)
	}
	return n.Variance(), nil
}
