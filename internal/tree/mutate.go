package tree

import (
	"math"
	"reflect"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

// UpsertNode inserts or replaces a node, appending new nodes to their
// parent's children. See InsertNode.
func (s *Store) UpsertNode(n *domain.Node) error {
	return s.InsertNode(n, -1)
}

// InsertNode inserts or replaces a node. A new node is placed at index among
// its parent's children (-1 appends). Children and group membership of an
// existing node are owned by the store and preserved. A parent change moves
// the node and drops it from its old level's group and markups.
func (s *Store) InsertNode(n *domain.Node, index int) error {
	if n == nil || n.ID == 0 {
		return domain.Invalid("node requires an id")
	}
	if !domain.ValidNodeKinds[string(n.Kind)] {
		return domain.Invalid("node %d has unknown kind %q", n.ID, n.Kind)
	}
	if n.ParentID == 0 {
		return s.setRoot(n)
	}
	parent, ok := s.nodes[n.ParentID]
	if !ok {
		return domain.NotFound("parent node", n.ParentID)
	}
	if parent.Kind.ChildKind() != n.Kind {
		return domain.Invalid("a %s cannot be placed under a %s", n.Kind, parent.Kind)
	}
	if n.ParentID == n.ID || domain.ContainsID(s.Ancestors(n.ParentID), n.ID) {
		return domain.Invalid("node %d cannot be its own ancestor", n.ID)
	}
	for _, fid := range n.Fringes {
		if _, ok := s.fringes[fid]; !ok {
			return domain.NotFound("fringe", fid)
		}
	}

	incoming := n.Clone()
	existing, exists := s.nodes[n.ID]
	if exists {
		incoming.Children = existing.Children
		incoming.Group = existing.Group
		if existing.ParentID != incoming.ParentID {
			s.detach(existing)
			incoming.Group = nil
		}
	} else {
		incoming.Children = nil
		incoming.Group = nil
	}
	s.nodes[incoming.ID] = incoming

	if !domain.ContainsID(parent.Children, incoming.ID) {
		parent.Children = insertAt(parent.Children, incoming.ID, index)
	}
	s.recompute(incoming.ID)
	return nil
}

func (s *Store) setRoot(n *domain.Node) error {
	if n.Kind != domain.NodeBudget {
		return domain.Invalid("node %d has no parent but is a %s", n.ID, n.Kind)
	}
	if s.root != 0 && s.root != n.ID {
		return domain.Invalid("store already holds budget %d", s.root)
	}
	incoming := n.Clone()
	if existing, ok := s.nodes[n.ID]; ok {
		incoming.Children = existing.Children
	} else {
		incoming.Children = nil
	}
	incoming.Group = nil
	incoming.Fringes = nil
	s.root = incoming.ID
	s.nodes[incoming.ID] = incoming
	s.recompute(incoming.ID)
	return nil
}

// RemoveNode deletes a node and its subtree, strips every group and markup
// reference to them, and recomputes the old parent. Removing an absent id is
// a no-op reported as an inconsistency, since an equivalent removal may
// already have been processed.
func (s *Store) RemoveNode(id domain.ID) bool {
	n, ok := s.nodes[id]
	if !ok {
		s.Report(domain.Inconsistency{
			Code:    domain.InconsistencyDuplicateRemove,
			Message: "remove of absent node",
			IDs:     []domain.ID{id},
		})
		return false
	}
	if id == s.root {
		s.root = 0
	}

	parentID := n.ParentID
	s.detach(n)

	removed := append(s.Descendants(id), id)
	for _, rid := range removed {
		for gid, g := range s.groups {
			if g.ParentID == rid {
				delete(s.groups, gid)
			}
		}
		for mid, m := range s.markups {
			if m.ParentID == rid {
				delete(s.markups, mid)
			}
		}
		delete(s.nodes, rid)
	}
	s.recompute(parentID)
	return true
}

// detach unlinks n from its parent, its group and any percent markup at its
// level without deleting it. Siblings that shared a markup with n are
// recomputed so their markup shares stay current.
func (s *Store) detach(n *domain.Node) {
	if parent, ok := s.nodes[n.ParentID]; ok {
		parent.Children, _ = domain.RemoveID(parent.Children, n.ID)
	}
	if n.Group != nil {
		if g, ok := s.groups[*n.Group]; ok {
			g.Children, _ = domain.RemoveID(g.Children, n.ID)
		}
		n.Group = nil
	}
	for _, g := range s.groups {
		g.Children, _ = domain.RemoveID(g.Children, n.ID)
	}
	for _, m := range s.markups {
		var removed bool
		m.Children, removed = domain.RemoveID(m.Children, n.ID)
		if removed {
			for _, cid := range m.Children {
				s.recompute(cid)
			}
		}
	}
	s.recompute(n.ParentID)
}

// ApplyFieldChange assigns one user-editable field. old is the value the
// caller believed was current; a mismatch is reported as an inconsistency
// but the new value still wins.
func (s *Store) ApplyFieldChange(id domain.ID, field domain.Field, old, value any) error {
	return s.ApplyChanges(id, []domain.FieldChange{{Field: field, Old: old, New: value}})
}

// ApplyPatch applies every field of p with unknown old values.
func (s *Store) ApplyPatch(id domain.ID, p domain.Patch) error {
	return s.ApplyChanges(id, p.Changes())
}

// ApplyChanges validates every change against node id and then applies them
// together with a single recompute. Nothing is applied on error.
func (s *Store) ApplyChanges(id domain.ID, changes []domain.FieldChange) error {
	n, ok := s.nodes[id]
	if !ok {
		return domain.NotFound("node", id)
	}
	scratch := n.Clone()
	for _, c := range changes {
		if err := s.checkField(n, c.Field, c.New); err != nil {
			return err
		}
		if err := scratch.SetField(c.Field, c.New); err != nil {
			return err
		}
	}
	for _, c := range changes {
		if c.Old != nil && !sameValue(c.Field, n.FieldValue(c.Field), c.Old) {
			s.Report(domain.Inconsistency{
				Code:    domain.InconsistencyStaleValue,
				Message: "field change based on stale value: " + string(c.Field),
				IDs:     []domain.ID{id},
			})
		}
		_ = n.SetField(c.Field, c.New)
	}
	s.recompute(id)
	return nil
}

// checkField decides whether field is mutable for n in its current shape.
func (s *Store) checkField(n *domain.Node, field domain.Field, value any) error {
	if field.IsComputed() {
		return domain.Invalid("field %s of node %d is computed and read-only", field, n.ID)
	}
	if n.Kind == domain.NodeBudget && field != domain.FieldIdentifier && field != domain.FieldDescription {
		return domain.Invalid("field %s cannot be set on the budget", field)
	}
	if field.IsLeafOnly() && (n.Kind != domain.NodeSubAccount || !n.IsLeaf()) {
		return domain.Invalid("field %s is only editable on leaf subaccounts, node %d is not one", field, n.ID)
	}
	if field == domain.FieldFringes {
		if n.Kind != domain.NodeSubAccount {
			return domain.Invalid("fringes can only be attached to subaccounts")
		}
		ids, _ := value.([]domain.ID)
		for _, fid := range ids {
			if _, ok := s.fringes[fid]; !ok {
				return domain.NotFound("fringe", fid)
			}
		}
	}
	return nil
}

func sameValue(field domain.Field, current, old any) bool {
	switch field {
	case domain.FieldQuantity, domain.FieldRate, domain.FieldMultiplier, domain.FieldActual:
		a, errA := domain.FloatPtrValue(field, current)
		b, errB := domain.FloatPtrValue(field, old)
		if errA != nil || errB != nil {
			return false
		}
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return math.Abs(*a-*b) < 1e-9
	}
	return reflect.DeepEqual(current, old)
}

func insertAt(ids []domain.ID, id domain.ID, index int) []domain.ID {
	if index < 0 || index >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, 0)
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}
