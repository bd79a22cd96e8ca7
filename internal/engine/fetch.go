package engine

import (
	"context"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/stream"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/google/uuid"
)

// Load replaces the store with a full listing of budgetID. A newer Load
// supersedes an older one still in flight; the superseded call reports
// ErrSuperseded on its channel and leaves the store untouched.
func (p *Processor) Load(ctx context.Context, budgetID domain.ID) <-chan error {
	done := make(chan error, 1)
	ref := EntityRef{Kind: domain.EntityBudget, ID: budgetID}
	key := stream.FetchKey(domain.EntityBudget)
	gen := p.gens.Begin(key)

	p.spawn(func() {
		var contents domain.BudgetContents
		err := p.call(ctx, OpLoad, ref, func(ctx context.Context) error {
			var err error
			contents, err = p.api.LoadBudget(ctx, budgetID)
			return err
		})
		var result error
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				result = ErrSuperseded
				return
			}
			if err != nil {
				p.fail(uuid.Nil, "", OpLoad, ref, err)
				result = err
				return
			}
			store, berr := tree.Build(contents, p.report)
			if berr != nil {
				p.fail(uuid.Nil, "", OpLoad, ref, berr)
				result = berr
				return
			}
			p.reset(store)
			p.logger.Info("budget loaded", "budget_id", int64(budgetID), "nodes", store.Len())
		})
		done <- result
	})
	return done
}

// Fetch lists one kind of entity under parent and mirrors the result into
// the store. Entities with unconfirmed local changes keep their local state,
// and placeholders are never touched. Persisted entities of that kind that
// the listing no longer contains are removed.
//
// Fetches of the same kind are take-latest: switching parent before a fetch
// returns discards the older result.
func (p *Processor) Fetch(ctx context.Context, kind domain.EntityKind, parent domain.ID) <-chan error {
	done := make(chan error, 1)
	ref := EntityRef{Kind: kind, ID: parent}
	key := stream.FetchKey(kind)
	gen := p.gens.Begin(key)

	p.spawn(func() {
		var ents []domain.Entity
		err := p.call(ctx, OpList, ref, func(ctx context.Context) error {
			var err error
			ents, err = p.api.List(ctx, kind, parent, "")
			return err
		})
		var result error
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				result = ErrSuperseded
				return
			}
			if err != nil {
				p.fail(uuid.Nil, "", OpList, ref, err)
				result = err
				return
			}
			result = p.mirrorLevel(kind, parent, ents)
		})
		done <- result
	})
	return done
}

// Search runs a debounced List with a free-text query. Only the last query
// within the debounce window is sent, and only the result of the most
// recently sent query reaches fn. Search results are not mirrored into the
// store.
func (p *Processor) Search(ctx context.Context, kind domain.EntityKind, parent domain.ID, query string, fn func([]domain.Entity, error)) {
	key := stream.SearchKey(kind)
	ctx = detach(ctx)
	p.search.Trigger(func() {
		gen := p.gens.Begin(key)
		p.spawn(func() {
			var ents []domain.Entity
			err := p.call(ctx, OpList, EntityRef{Kind: kind, ID: parent}, func(ctx context.Context) error {
				var err error
				ents, err = p.api.List(ctx, kind, parent, query)
				return err
			})
			if !p.gens.Current(key, gen) {
				p.logger.Debug("discarding superseded search", "query", query)
				return
			}
			fn(ents, err)
		})
	})
}

func (p *Processor) mirrorLevel(kind domain.EntityKind, parent domain.ID, ents []domain.Entity) error {
	if _, ok := p.store.Node(parent); !ok && kind != domain.EntityFringe {
		return domain.NotFound("parent node", parent)
	}
	listed := make(map[domain.ID]bool, len(ents))
	for _, e := range ents {
		listed[e.ID()] = true
	}
	switch kind {
	case domain.EntityAccount, domain.EntitySubAccount:
		p.mirrorNodes(kind, parent, ents, listed)
	case domain.EntityGroup:
		p.mirrorGroups(parent, ents, listed)
	case domain.EntityMarkup:
		p.mirrorMarkups(parent, ents, listed)
	case domain.EntityFringe:
		p.mirrorFringes(ents, listed)
	default:
		return domain.Invalid("cannot fetch %s entities", kind)
	}
	return nil
}

func (p *Processor) localOnly(ref EntityRef) bool {
	if _, ok := p.unsynced[ref]; ok {
		return true
	}
	_, ok := p.inflight[ref]
	return ok
}

func (p *Processor) mirrorNodes(kind domain.EntityKind, parent domain.ID, ents []domain.Entity, listed map[domain.ID]bool) {
	for _, e := range ents {
		n := e.Node
		if n == nil || p.localOnly(EntityRef{Kind: kind, ID: n.ID}) {
			continue
		}
		if cur, ok := p.store.Node(n.ID); ok && cur.IsPlaceholder {
			continue
		}
		cp := n.Clone()
		cp.ParentID = parent
		cp.Fringes = cp.Fringes[:0]
		for _, fid := range n.Fringes {
			if _, ok := p.store.Fringe(fid); ok {
				cp.Fringes = append(cp.Fringes, fid)
				continue
			}
			p.report(domain.Inconsistency{
				Code:    domain.InconsistencyMissingFringe,
				Message: "fetched node references unknown fringe",
				IDs:     []domain.ID{n.ID, fid},
			})
		}
		if err := p.store.UpsertNode(cp); err != nil {
			p.logger.Warn("mirror failed", "entity", n.ID.String(), "error", err)
		}
	}
	var stale []domain.ID
	for _, c := range p.store.Children(parent) {
		if c.IsPlaceholder || c.ID.IsTemp() || listed[c.ID] {
			continue
		}
		if p.localOnly(EntityRef{Kind: kind, ID: c.ID}) {
			continue
		}
		stale = append(stale, c.ID)
	}
	for _, id := range stale {
		p.store.RemoveNode(id)
	}
}

// present keeps the ids that are children of parent in the store, reporting
// the rest.
func (p *Processor) present(owner, parent domain.ID, ids []domain.ID) []domain.ID {
	out := make([]domain.ID, 0, len(ids))
	for _, id := range ids {
		if n, ok := p.store.Node(id); ok && n.ParentID == parent {
			out = append(out, id)
			continue
		}
		p.report(domain.Inconsistency{
			Code:    domain.InconsistencyMissingChild,
			Message: "fetched overlay references absent child",
			IDs:     []domain.ID{owner, id},
		})
	}
	return out
}

// tempChildren returns the placeholder members an overlay holds locally,
// which the server cannot know about yet.
func tempChildren(ids []domain.ID) []domain.ID {
	var out []domain.ID
	for _, id := range ids {
		if id.IsTemp() {
			out = append(out, id)
		}
	}
	return out
}

func (p *Processor) mirrorGroups(parent domain.ID, ents []domain.Entity, listed map[domain.ID]bool) {
	for _, e := range ents {
		g := e.Group
		if g == nil || p.localOnly(EntityRef{Kind: domain.EntityGroup, ID: g.ID}) {
			continue
		}
		cp := g.Clone()
		cp.ParentID = parent
		cp.Children = p.present(g.ID, parent, g.Children)
		if cur, ok := p.store.Group(g.ID); ok {
			for _, id := range tempChildren(cur.Children) {
				cp.Children = domain.AppendUniqueID(cp.Children, id)
			}
		}
		if err := p.store.UpsertGroup(cp); err != nil {
			p.logger.Warn("mirror failed", "entity", "group "+g.ID.String(), "error", err)
		}
	}
	for _, g := range p.store.GroupsAt(parent) {
		if g.ID.IsTemp() || listed[g.ID] || p.localOnly(EntityRef{Kind: domain.EntityGroup, ID: g.ID}) {
			continue
		}
		_ = p.store.RemoveGroup(g.ID)
	}
}

func (p *Processor) mirrorMarkups(parent domain.ID, ents []domain.Entity, listed map[domain.ID]bool) {
	for _, e := range ents {
		m := e.Markup
		if m == nil || p.localOnly(EntityRef{Kind: domain.EntityMarkup, ID: m.ID}) {
			continue
		}
		cp := m.Clone()
		cp.ParentID = parent
		cp.Children = p.present(m.ID, parent, m.Children)
		if cur, ok := p.store.Markup(m.ID); ok {
			for _, id := range tempChildren(cur.Children) {
				cp.Children = domain.AppendUniqueID(cp.Children, id)
			}
		}
		if err := p.store.SyncMarkup(cp); err != nil {
			p.logger.Warn("mirror failed", "entity", "markup "+m.ID.String(), "error", err)
		}
	}
	for _, m := range p.store.MarkupsAt(parent) {
		if m.ID.IsTemp() || listed[m.ID] || p.localOnly(EntityRef{Kind: domain.EntityMarkup, ID: m.ID}) {
			continue
		}
		_ = p.store.RemoveMarkup(m.ID)
	}
}

func (p *Processor) mirrorFringes(ents []domain.Entity, listed map[domain.ID]bool) {
	for _, e := range ents {
		f := e.Fringe
		if f == nil || p.localOnly(EntityRef{Kind: domain.EntityFringe, ID: f.ID}) {
			continue
		}
		if err := p.store.UpsertFringe(f); err != nil {
			p.logger.Warn("mirror failed", "entity", "fringe "+f.ID.String(), "error", err)
		}
	}
	for _, f := range p.store.Fringes() {
		if f.ID.IsTemp() || listed[f.ID] || p.localOnly(EntityRef{Kind: domain.EntityFringe, ID: f.ID}) {
			continue
		}
		_ = p.store.RemoveFringe(f.ID)
	}
}
