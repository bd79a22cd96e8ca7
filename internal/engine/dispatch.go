package engine

import (
	"context"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch applies an intent to the store synchronously and starts at most
// one persistence call per affected entity. NotFound and InvalidMutation
// errors are returned before anything is applied; persistence failures
// arrive later through Subscribe.
func (p *Processor) Dispatch(ctx context.Context, in Intent) error {
	_, err := p.dispatch(ctx, in)
	return err
}

// AddRow dispatches a RowAdd intent and returns the placeholder's temp id.
func (p *Processor) AddRow(ctx context.Context, parent domain.ID, kind domain.NodeKind, index int) (domain.ID, error) {
	return p.dispatch(ctx, RowAdd(parent, kind, index))
}

func (p *Processor) dispatch(ctx context.Context, in Intent) (domain.ID, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	ctx, span := p.tracer.Start(ctx, "engine.Dispatch", trace.WithAttributes(
		attribute.String("intent.kind", string(in.Kind)),
		attribute.String("intent.id", in.ID.String()),
	))
	defer span.End()

	start := time.Now()
	var (
		id  domain.ID
		err error
	)
	p.locked(func() {
		id, err = p.handle(ctx, in)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:     "dispatch." + string(in.Kind),
		IntentID: in.ID,
		Ref:      EntityRef{ID: in.Target},
		Duration: time.Since(start),
		Err:      err,
	})
	return id, err
}

func (p *Processor) handle(ctx context.Context, in Intent) (domain.ID, error) {
	switch in.Kind {
	case IntentDataChange:
		return 0, p.onDataChange(ctx, in)
	case IntentRowAdd:
		return p.onRowAdd(in)
	case IntentRowDelete:
		return 0, p.onRowDelete(ctx, in)
	case IntentRowAddToGroup, IntentRowRemoveFromGroup:
		return 0, p.onGroupMembership(ctx, in)
	case IntentGroupAdded:
		return p.onGroupAdded(ctx, in)
	case IntentGroupDelete:
		return 0, p.onOverlayDelete(ctx, in, EntityRef{Kind: domain.EntityGroup, ID: in.Target})
	case IntentMarkupAdded:
		return p.onMarkupAdded(ctx, in)
	case IntentMarkupUpdated:
		return 0, p.onMarkupUpdated(ctx, in)
	case IntentMarkupDelete:
		return 0, p.onOverlayDelete(ctx, in, EntityRef{Kind: domain.EntityMarkup, ID: in.Target})
	case IntentFringeAdded:
		return p.onFringeAdded(ctx, in)
	case IntentFringeUpdated:
		return 0, p.onFringeUpdated(ctx, in)
	case IntentFringeDelete:
		return 0, p.onOverlayDelete(ctx, in, EntityRef{Kind: domain.EntityFringe, ID: in.Target})
	}
	return 0, domain.Invalid("unknown intent kind %q", in.Kind)
}

func (p *Processor) onDataChange(ctx context.Context, in Intent) error {
	id := p.recon.Resolve(in.Target)
	n, ok := p.store.Node(id)
	if !ok {
		return domain.NotFound("node", id)
	}
	if len(in.Changes) == 0 {
		return domain.Invalid("data change for node %d carries no fields", id)
	}
	for _, c := range in.Changes {
		if c.Field != domain.FieldFringes {
			continue
		}
		ids, _ := c.New.([]domain.ID)
		for _, fid := range ids {
			if fid.IsTemp() {
				return domain.Invalid("fringe %d is still being created", fid)
			}
		}
	}

	if n.IsPlaceholder {
		act, err := p.recon.Edit(id, domain.PatchOf(in.Changes))
		if err != nil {
			return err
		}
		if act != nil {
			p.startCreate(ctx, in.ID, in.Kind, *act)
		}
		return nil
	}

	if err := p.store.ApplyChanges(id, in.Changes); err != nil {
		return err
	}
	ref := EntityRef{Kind: domain.EntityKindFor(n.Kind), ID: id}
	p.queueUpdate(ctx, in.ID, in.Kind, ref, domain.PatchOf(in.Changes))
	return nil
}

func (p *Processor) onRowAdd(in Intent) (domain.ID, error) {
	parent := p.recon.Resolve(in.Parent)
	pn, ok := p.store.Node(parent)
	if !ok {
		return 0, domain.NotFound("parent node", parent)
	}
	kind := in.NodeKind
	if kind == "" {
		kind = pn.Kind.ChildKind()
	}
	return p.recon.Add(parent, kind, in.Index)
}

func (p *Processor) onRowDelete(ctx context.Context, in Intent) error {
	ids := in.IDs
	if len(ids) == 0 && in.Target != 0 {
		ids = []domain.ID{in.Target}
	}
	if len(ids) == 0 {
		return domain.Invalid("row delete names no rows")
	}
	resolved := make([]domain.ID, 0, len(ids))
	for _, raw := range ids {
		id := p.recon.Resolve(raw)
		if _, ok := p.store.Node(id); !ok {
			return domain.NotFound("node", id)
		}
		if id == p.store.Root() {
			return domain.Invalid("the budget root cannot be deleted as a row")
		}
		for _, rid := range append(p.store.Descendants(id), id) {
			if p.recon.IsPending(rid) {
				return domain.Invalid("node %d is being created and cannot be deleted yet", rid)
			}
			if ov, locked := p.lockedBy(rid); locked {
				return domain.Invalid("node %d is referenced by %s which is still being created", rid, ov)
			}
		}
		resolved = append(resolved, id)
	}

	for _, id := range resolved {
		n, ok := p.store.Node(id)
		if !ok {
			continue // removed with an ancestor earlier in the list
		}
		if n.IsPlaceholder {
			if err := p.recon.Discard(id); err != nil {
				return err
			}
			delete(p.origins, id)
			continue
		}
		removed := append(p.store.Descendants(id), id)
		kinds := make(map[domain.ID]domain.NodeKind, len(removed))
		for _, rid := range removed {
			if rn, ok := p.store.Node(rid); ok {
				kinds[rid] = rn.Kind
			}
		}
		p.store.RemoveNode(id)
		for rid, kind := range kinds {
			p.recon.Forget(rid)
			ref := EntityRef{Kind: domain.EntityKindFor(kind), ID: rid}
			delete(p.unsynced, ref)
			p.gens.Cancel(opKey(OpUpdate, ref))
		}
		p.queueDelete(ctx, in.ID, in.Kind, EntityRef{Kind: domain.EntityKindFor(n.Kind), ID: id})
	}
	return nil
}

// lockedBy reports the in-flight overlay creation that references node id.
func (p *Processor) lockedBy(id domain.ID) (EntityRef, bool) {
	for ref, ov := range p.inflight {
		if domain.ContainsID(ov.children, id) {
			return ref, true
		}
	}
	return EntityRef{}, false
}

func (p *Processor) onGroupMembership(ctx context.Context, in Intent) error {
	gid := in.Target
	g, ok := p.store.Group(gid)
	if !ok {
		return domain.NotFound("group", gid)
	}
	ref := EntityRef{Kind: domain.EntityGroup, ID: gid}
	if _, creating := p.inflight[ref]; creating {
		return domain.Invalid("group %d is still being created", gid)
	}
	ids := p.resolveAll(in.IDs)
	if len(ids) == 0 {
		return domain.Invalid("membership change names no rows")
	}
	var err error
	if in.Kind == IntentRowAddToGroup {
		err = p.store.AddToGroup(gid, ids)
	} else {
		err = p.store.RemoveFromGroup(gid, ids)
	}
	if err != nil {
		return err
	}
	p.queueUpdate(ctx, in.ID, in.Kind, ref, domain.Patch{
		domain.FieldChildren: domain.PersistedIDs(g.Children),
	})
	return nil
}

func (p *Processor) onGroupAdded(ctx context.Context, in Intent) (domain.ID, error) {
	if in.Group == nil {
		return 0, domain.Invalid("group intent carries no group")
	}
	g := in.Group.Clone()
	g.ParentID = p.recon.Resolve(g.ParentID)
	g.Children = p.resolveAll(g.Children)
	if g.ID != 0 {
		return g.ID, p.store.UpsertGroup(g)
	}
	g.ID = p.allocTemp()
	if err := p.store.UpsertGroup(g); err != nil {
		p.nextTemp++
		return 0, err
	}
	ref := EntityRef{Kind: domain.EntityGroup, ID: g.ID}
	p.startOverlayCreate(ctx, in, ref, g.ParentID, g.Children, g.Patch())
	return g.ID, nil
}

func (p *Processor) onMarkupAdded(ctx context.Context, in Intent) (domain.ID, error) {
	if in.Markup == nil {
		return 0, domain.Invalid("markup intent carries no markup")
	}
	m := in.Markup.Clone()
	m.ParentID = p.recon.Resolve(m.ParentID)
	m.Children = p.resolveAll(m.Children)
	if m.ID != 0 {
		return m.ID, p.store.UpsertMarkup(m)
	}
	if err := checkPersistedChildren(m); err != nil {
		return 0, err
	}
	m.ID = p.allocTemp()
	if err := p.store.UpsertMarkup(m); err != nil {
		p.nextTemp++
		return 0, err
	}
	ref := EntityRef{Kind: domain.EntityMarkup, ID: m.ID}
	p.startOverlayCreate(ctx, in, ref, m.ParentID, m.Children, m.Patch())
	return m.ID, nil
}

func (p *Processor) onMarkupUpdated(ctx context.Context, in Intent) error {
	if in.Markup == nil {
		return domain.Invalid("markup intent carries no markup")
	}
	m := in.Markup.Clone()
	ref := EntityRef{Kind: domain.EntityMarkup, ID: m.ID}
	if _, ok := p.store.Markup(m.ID); !ok {
		return domain.NotFound("markup", m.ID)
	}
	if _, creating := p.inflight[ref]; creating {
		return domain.Invalid("markup %d is still being created", m.ID)
	}
	m.ParentID = p.recon.Resolve(m.ParentID)
	m.Children = p.resolveAll(m.Children)
	if err := checkPersistedChildren(m); err != nil {
		return err
	}
	if err := p.store.UpsertMarkup(m); err != nil {
		return err
	}
	p.queueUpdate(ctx, in.ID, in.Kind, ref, m.Patch())
	return nil
}

// checkPersistedChildren rejects a percent markup whose only children are
// unsaved placeholders, since its persisted form would have none.
func checkPersistedChildren(m *domain.Markup) error {
	if m.Unit == domain.UnitPercent && len(m.Children) > 0 && len(domain.PersistedIDs(m.Children)) == 0 {
		return domain.Invalid("percent markup needs at least one saved row")
	}
	return nil
}

func (p *Processor) onFringeAdded(ctx context.Context, in Intent) (domain.ID, error) {
	if in.Fringe == nil {
		return 0, domain.Invalid("fringe intent carries no fringe")
	}
	f := in.Fringe.Clone()
	if f.BudgetID == 0 {
		f.BudgetID = p.store.Root()
	}
	if f.ID != 0 {
		return f.ID, p.store.UpsertFringe(f)
	}
	f.ID = p.allocTemp()
	if err := p.store.UpsertFringe(f); err != nil {
		p.nextTemp++
		return 0, err
	}
	ref := EntityRef{Kind: domain.EntityFringe, ID: f.ID}
	p.startOverlayCreate(ctx, in, ref, f.BudgetID, nil, f.Patch())
	return f.ID, nil
}

func (p *Processor) onFringeUpdated(ctx context.Context, in Intent) error {
	if in.Fringe == nil {
		return domain.Invalid("fringe intent carries no fringe")
	}
	f := in.Fringe.Clone()
	ref := EntityRef{Kind: domain.EntityFringe, ID: f.ID}
	existing, ok := p.store.Fringe(f.ID)
	if !ok {
		return domain.NotFound("fringe", f.ID)
	}
	if _, creating := p.inflight[ref]; creating {
		return domain.Invalid("fringe %d is still being created", f.ID)
	}
	if f.BudgetID == 0 {
		f.BudgetID = existing.BudgetID
	}
	if err := p.store.UpsertFringe(f); err != nil {
		return err
	}
	p.queueUpdate(ctx, in.ID, in.Kind, ref, f.Patch())
	return nil
}

func (p *Processor) onOverlayDelete(ctx context.Context, in Intent, ref EntityRef) error {
	if _, creating := p.inflight[ref]; creating {
		return domain.Invalid("%s is still being created", ref)
	}
	var err error
	switch ref.Kind {
	case domain.EntityGroup:
		err = p.store.RemoveGroup(ref.ID)
	case domain.EntityMarkup:
		err = p.store.RemoveMarkup(ref.ID)
	case domain.EntityFringe:
		err = p.store.RemoveFringe(ref.ID)
	}
	if err != nil {
		return err
	}
	delete(p.unsynced, ref)
	p.gens.Cancel(opKey(OpUpdate, ref))
	p.queueDelete(ctx, in.ID, in.Kind, ref)
	return nil
}

func (p *Processor) resolveAll(ids []domain.ID) []domain.ID {
	out := make([]domain.ID, len(ids))
	for i, id := range ids {
		out[i] = p.recon.Resolve(id)
	}
	return out
}
