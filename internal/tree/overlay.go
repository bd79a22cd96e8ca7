package tree

import (
	"github.com/alexanderramin/budgetcore/internal/domain"
)

// UpsertGroup inserts or replaces a group. Every child must be a present
// child of the group's parent. Children already in another group are moved.
// Groups carry no aggregates, so nothing is recomputed.
func (s *Store) UpsertGroup(g *domain.Group) error {
	if g == nil || g.ID == 0 {
		return domain.Invalid("group requires an id")
	}
	if _, ok := s.nodes[g.ParentID]; !ok {
		return domain.NotFound("group parent", g.ParentID)
	}
	if err := s.checkSiblings(g.ParentID, g.Children); err != nil {
		return err
	}

	incoming := g.Clone()
	if existing, ok := s.groups[g.ID]; ok {
		for _, cid := range existing.Children {
			if n, ok := s.nodes[cid]; ok && !domain.ContainsID(incoming.Children, cid) {
				n.Group = nil
			}
		}
	}
	s.groups[incoming.ID] = incoming
	incoming.Children = incoming.Children[:0]
	for _, cid := range g.Children {
		s.joinGroup(incoming, cid)
	}
	return nil
}

// RemoveGroup deletes a group and clears its members' back-references.
func (s *Store) RemoveGroup(id domain.ID) error {
	g, ok := s.groups[id]
	if !ok {
		return domain.NotFound("group", id)
	}
	for _, cid := range g.Children {
		if n, ok := s.nodes[cid]; ok && n.Group != nil && *n.Group == id {
			n.Group = nil
		}
	}
	delete(s.groups, id)
	return nil
}

// AddToGroup makes ids members of group gid, moving them out of any other
// group. All ids are validated before anything changes.
func (s *Store) AddToGroup(gid domain.ID, ids []domain.ID) error {
	g, ok := s.groups[gid]
	if !ok {
		return domain.NotFound("group", gid)
	}
	if err := s.checkSiblings(g.ParentID, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.joinGroup(g, id)
	}
	return nil
}

// RemoveFromGroup drops ids from group gid. Every id must be a member.
func (s *Store) RemoveFromGroup(gid domain.ID, ids []domain.ID) error {
	g, ok := s.groups[gid]
	if !ok {
		return domain.NotFound("group", gid)
	}
	for _, id := range ids {
		if !domain.ContainsID(g.Children, id) {
			return domain.Invalid("node %d is not a member of group %d", id, gid)
		}
	}
	for _, id := range ids {
		g.Children, _ = domain.RemoveID(g.Children, id)
		if n, ok := s.nodes[id]; ok {
			n.Group = nil
		}
	}
	return nil
}

func (s *Store) joinGroup(g *domain.Group, id domain.ID) {
	n := s.nodes[id]
	if n.Group != nil && *n.Group != g.ID {
		if prev, ok := s.groups[*n.Group]; ok {
			prev.Children, _ = domain.RemoveID(prev.Children, id)
		}
	}
	gid := g.ID
	n.Group = &gid
	g.Children = domain.AppendUniqueID(g.Children, id)
}

// checkSiblings verifies that every id is a present child of parent.
func (s *Store) checkSiblings(parent domain.ID, ids []domain.ID) error {
	p := s.nodes[parent]
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			return domain.NotFound("node", id)
		}
		if p == nil || !domain.ContainsID(p.Children, id) {
			return domain.Invalid("node %d is not a child of %d", id, parent)
		}
	}
	return nil
}

// UpsertMarkup inserts or replaces a markup and recomputes the level it is
// attached to. A percent markup needs children unless the stored copy was
// already left without any.
func (s *Store) UpsertMarkup(m *domain.Markup) error {
	if m == nil || m.ID == 0 {
		return domain.Invalid("markup requires an id")
	}
	if err := m.ValidateChange(s.markups[m.ID]); err != nil {
		return err
	}
	return s.putMarkup(m)
}

// SyncMarkup replaces a markup with the collaborator's copy. Unlike
// UpsertMarkup it accepts a percent markup whose rows are all gone, since the
// listing is authoritative.
func (s *Store) SyncMarkup(m *domain.Markup) error {
	if m == nil || m.ID == 0 {
		return domain.Invalid("markup requires an id")
	}
	if err := m.ValidateStored(); err != nil {
		return err
	}
	return s.putMarkup(m)
}

func (s *Store) putMarkup(m *domain.Markup) error {
	if _, ok := s.nodes[m.ParentID]; !ok {
		return domain.NotFound("markup parent", m.ParentID)
	}
	if err := s.checkSiblings(m.ParentID, m.Children); err != nil {
		return err
	}

	affected := append([]domain.ID(nil), m.Children...)
	if existing, ok := s.markups[m.ID]; ok {
		for _, cid := range existing.Children {
			affected = domain.AppendUniqueID(affected, cid)
		}
		if existing.ParentID != m.ParentID {
			defer s.recompute(existing.ParentID)
		}
	}
	s.markups[m.ID] = m.Clone()
	s.recomputeLevel(m.ParentID, affected)
	return nil
}

// RemoveMarkup deletes a markup and recomputes the level it was attached to.
func (s *Store) RemoveMarkup(id domain.ID) error {
	m, ok := s.markups[id]
	if !ok {
		return domain.NotFound("markup", id)
	}
	delete(s.markups, id)
	s.recomputeLevel(m.ParentID, m.Children)
	return nil
}

func (s *Store) recomputeLevel(parent domain.ID, children []domain.ID) {
	for _, cid := range children {
		s.recompute(cid)
	}
	s.recompute(parent)
}

// UpsertFringe inserts or replaces a fringe and recomputes every node that
// has it attached.
func (s *Store) UpsertFringe(f *domain.Fringe) error {
	if f == nil || f.ID == 0 {
		return domain.Invalid("fringe requires an id")
	}
	if err := f.Validate(); err != nil {
		return err
	}
	s.fringes[f.ID] = f.Clone()
	for _, n := range s.nodesWithFringe(f.ID) {
		s.recompute(n.ID)
	}
	return nil
}

// RemoveFringe deletes a fringe, detaches it from every node, and recomputes them.
func (s *Store) RemoveFringe(id domain.ID) error {
	if _, ok := s.fringes[id]; !ok {
		return domain.NotFound("fringe", id)
	}
	delete(s.fringes, id)
	for _, n := range s.nodesWithFringe(id) {
		n.Fringes, _ = domain.RemoveID(n.Fringes, id)
		s.recompute(n.ID)
	}
	return nil
}

func (s *Store) nodesWithFringe(id domain.ID) []*domain.Node {
	var out []*domain.Node
	for _, n := range s.nodes {
		if domain.ContainsID(n.Fringes, id) {
			out = append(out, n)
		}
	}
	return out
}

// RemapID replaces from with to everywhere it is referenced: the node key,
// its parent's children, its children's parent pointers, group and markup
// child lists, and the parent pointers of overlays attached below it. The
// swap happens in one call so no reader can observe both ids.
func (s *Store) RemapID(from, to domain.ID) error {
	n, ok := s.nodes[from]
	if !ok {
		return domain.NotFound("node", from)
	}
	if to == 0 || to.IsTemp() {
		return domain.Invalid("node %d cannot be remapped to id %d", from, to)
	}
	if _, taken := s.nodes[to]; taken {
		return domain.Invalid("node id %d is already in use", to)
	}

	delete(s.nodes, from)
	n.ID = to
	n.IsPlaceholder = false
	s.nodes[to] = n
	if s.root == from {
		s.root = to
	}

	if parent, ok := s.nodes[n.ParentID]; ok {
		domain.ReplaceID(parent.Children, from, to)
	}
	for _, cid := range n.Children {
		if c, ok := s.nodes[cid]; ok {
			c.ParentID = to
		}
	}
	for _, g := range s.groups {
		domain.ReplaceID(g.Children, from, to)
		if g.ParentID == from {
			g.ParentID = to
		}
	}
	for _, m := range s.markups {
		domain.ReplaceID(m.Children, from, to)
		if m.ParentID == from {
			m.ParentID = to
		}
	}
	return nil
}

// RemapGroup replaces a group id and every member's back-reference to it.
func (s *Store) RemapGroup(from, to domain.ID) error {
	g, ok := s.groups[from]
	if !ok {
		return domain.NotFound("group", from)
	}
	if to == 0 || to.IsTemp() {
		return domain.Invalid("group %d cannot be remapped to id %d", from, to)
	}
	if _, taken := s.groups[to]; taken {
		return domain.Invalid("group id %d is already in use", to)
	}
	delete(s.groups, from)
	g.ID = to
	s.groups[to] = g
	for _, cid := range g.Children {
		if n, ok := s.nodes[cid]; ok && n.Group != nil && *n.Group == from {
			gid := to
			n.Group = &gid
		}
	}
	return nil
}

// RemapMarkup replaces a markup id. Markup ids are referenced only by the
// markup itself, so no aggregate changes.
func (s *Store) RemapMarkup(from, to domain.ID) error {
	m, ok := s.markups[from]
	if !ok {
		return domain.NotFound("markup", from)
	}
	if to == 0 || to.IsTemp() {
		return domain.Invalid("markup %d cannot be remapped to id %d", from, to)
	}
	if _, taken := s.markups[to]; taken {
		return domain.Invalid("markup id %d is already in use", to)
	}
	delete(s.markups, from)
	m.ID = to
	s.markups[to] = m
	return nil
}

// RemapFringe replaces a fringe id on the fringe and every node it is
// attached to.
func (s *Store) RemapFringe(from, to domain.ID) error {
	f, ok := s.fringes[from]
	if !ok {
		return domain.NotFound("fringe", from)
	}
	if to == 0 || to.IsTemp() {
		return domain.Invalid("fringe %d cannot be remapped to id %d", from, to)
	}
	if _, taken := s.fringes[to]; taken {
		return domain.Invalid("fringe id %d is already in use", to)
	}
	delete(s.fringes, from)
	f.ID = to
	s.fringes[to] = f
	for _, n := range s.nodesWithFringe(from) {
		domain.ReplaceID(n.Fringes, from, to)
	}
	return nil
}
