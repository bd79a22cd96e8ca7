package tree

import (
	"sort"

	"github.com/alexanderramin/budgetcore/internal/aggregate"
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// InconsistencySink receives invariant violations observed on read.
type InconsistencySink func(domain.Inconsistency)

// Store owns every entity of one budget, indexed by id, with parent/child
// adjacency kept on the nodes. It is not safe for concurrent use; a single
// owner must serialize access.
type Store struct {
	root    domain.ID
	nodes   map[domain.ID]*domain.Node
	groups  map[domain.ID]*domain.Group
	markups map[domain.ID]*domain.Markup
	fringes map[domain.ID]*domain.Fringe
	sink    InconsistencySink
}

// New returns an empty store. A nil sink discards inconsistencies.
func New(sink InconsistencySink) *Store {
	return &Store{
		nodes:   make(map[domain.ID]*domain.Node),
		groups:  make(map[domain.ID]*domain.Group),
		markups: make(map[domain.ID]*domain.Markup),
		fringes: make(map[domain.ID]*domain.Fringe),
		sink:    sink,
	}
}

// SetSink replaces the inconsistency sink.
func (s *Store) SetSink(sink InconsistencySink) { s.sink = sink }

// Report forwards an inconsistency to the sink.
func (s *Store) Report(inc domain.Inconsistency) {
	if s.sink != nil {
		s.sink(inc)
	}
}

// Root returns the id of the budget node, or zero when none is loaded.
func (s *Store) Root() domain.ID { return s.root }

func (s *Store) Node(id domain.ID) (*domain.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *Store) Group(id domain.ID) (*domain.Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

func (s *Store) Markup(id domain.ID) (*domain.Markup, bool) {
	m, ok := s.markups[id]
	return m, ok
}

func (s *Store) Fringe(id domain.ID) (*domain.Fringe, bool) {
	f, ok := s.fringes[id]
	return f, ok
}

// Len returns the number of nodes in the store, the root included.
func (s *Store) Len() int { return len(s.nodes) }

// Children returns the nodes under parent in declaration order. Dangling
// child ids are reported and skipped.
func (s *Store) Children(parent domain.ID) []*domain.Node {
	p, ok := s.nodes[parent]
	if !ok {
		return nil
	}
	out := make([]*domain.Node, 0, len(p.Children))
	for _, cid := range p.Children {
		c, ok := s.nodes[cid]
		if !ok {
			s.Report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingChild,
				Message: "child listed on parent is absent",
				IDs:     []domain.ID{parent, cid},
			})
			continue
		}
		out = append(out, c)
	}
	return out
}

// GroupsAt returns the groups whose members are children of parent, ordered by id.
func (s *Store) GroupsAt(parent domain.ID) []*domain.Group {
	var out []*domain.Group
	for _, g := range s.groups {
		if g.ParentID == parent {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkupsAt returns the markups attached at the level below parent, ordered by id.
func (s *Store) MarkupsAt(parent domain.ID) []*domain.Markup {
	var out []*domain.Markup
	for _, m := range s.markups {
		if m.ParentID == parent {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkupsOf returns the percent markups referencing child, ordered by id.
func (s *Store) MarkupsOf(child domain.ID) []*domain.Markup {
	var out []*domain.Markup
	for _, m := range s.markups {
		if m.Unit == domain.UnitPercent && domain.ContainsID(m.Children, child) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Fringes returns every fringe ordered by id.
func (s *Store) Fringes() []*domain.Fringe {
	out := make([]*domain.Fringe, 0, len(s.fringes))
	for _, f := range s.fringes {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Descendants returns every node id below id, depth first in declaration order.
func (s *Store) Descendants(id domain.ID) []domain.ID {
	var out []domain.ID
	var walk func(domain.ID)
	seen := map[domain.ID]bool{id: true}
	walk = func(cur domain.ID) {
		n, ok := s.nodes[cur]
		if !ok {
			return
		}
		for _, cid := range n.Children {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Ancestors returns the ids from id's parent up to the root.
func (s *Store) Ancestors(id domain.ID) []domain.ID {
	var out []domain.ID
	n, ok := s.nodes[id]
	seen := map[domain.ID]bool{}
	for ok && n.ParentID != 0 && !seen[n.ParentID] {
		seen[n.ParentID] = true
		out = append(out, n.ParentID)
		n, ok = s.nodes[n.ParentID]
	}
	return out
}

// Snapshot returns a deep copy of the store for read-only consumers such as
// an export pass. Inconsistencies seen on the copy are discarded.
func (s *Store) Snapshot() *Store {
	c := New(nil)
	c.root = s.root
	for id, n := range s.nodes {
		c.nodes[id] = n.Clone()
	}
	for id, g := range s.groups {
		c.groups[id] = g.Clone()
	}
	for id, m := range s.markups {
		c.markups[id] = m.Clone()
	}
	for id, f := range s.fringes {
		c.fringes[id] = f.Clone()
	}
	return c
}

func (s *Store) recompute(id domain.ID) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	// Recompute only fails for a missing start node or a cycle, both of
	// which the mutators have already ruled out or reported.
	_, _ = aggregate.Recompute(s, id)
}

var _ aggregate.Tree = (*Store)(nil)
