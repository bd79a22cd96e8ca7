package stream

import (
	"fmt"
	"sync"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// Generations hands out a monotonically increasing version per logical
// stream. A result is applied only if the generation it was started under is
// still the stream's current one; starting a newer operation on the same key
// supersedes every older one without aborting it.
type Generations struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{gens: make(map[string]uint64)}
}

// Begin starts a new operation on key and returns its generation.
func (g *Generations) Begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens[key]++
	return g.gens[key]
}

// Current reports whether gen is still the latest generation of key.
func (g *Generations) Current(key string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[key] == gen
}

// Cancel supersedes any in-flight operation on key without starting one.
func (g *Generations) Cancel(key string) {
	g.mu.Lock()
	g.gens[key]++
	g.mu.Unlock()
}

// FetchKey names the take-latest stream for listing one entity kind.
// Fetches for different parents share a key so switching parent supersedes
// the previous fetch.
func FetchKey(kind domain.EntityKind) string {
	return "fetch:" + string(kind)
}

// EntityKey names the per-entity stream for a mutating operation, so that a
// second op on the same id supersedes the first while other ids proceed.
func EntityKey(op string, id domain.ID) string {
	return fmt.Sprintf("%s:%d", op, id)
}

// SearchKey names the take-latest stream of debounced searches over kind.
func SearchKey(kind domain.EntityKind) string {
	return "search:" + string(kind)
}
