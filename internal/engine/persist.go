package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/placeholder"
	"github.com/alexanderramin/budgetcore/internal/stream"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func opKey(op Op, ref EntityRef) string {
	return stream.EntityKey(string(ref.Kind)+"/"+string(op), ref.ID)
}

// call runs one API request inside its own span and reports it to the
// use-case observer.
func (p *Processor) call(ctx context.Context, op Op, ref EntityRef, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "engine.api."+string(op), trace.WithAttributes(
		attribute.String("entity.kind", string(ref.Kind)),
		attribute.Int64("entity.id", int64(ref.ID)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:     "api." + string(op),
		Ref:      ref,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

// fail queues a persistence failure for the next notification. Runs under p.mu.
func (p *Processor) fail(intentID uuid.UUID, intent IntentKind, op Op, ref EntityRef, err error) {
	p.logger.Error("persistence failed",
		"operation", string(op),
		"entity", ref.String(),
		"intent_id", intentID.String(),
		"error", err,
	)
	p.outFailures = append(p.outFailures, Failure{
		IntentID: intentID,
		Intent:   intent,
		Op:       op,
		Ref:      ref,
		Err:      fmt.Errorf("%w: %w", domain.ErrPersistence, err),
	})
}

// queueUpdate merges patch into the entity's unsynced update and sends the
// merged patch. A newer update on the same entity supersedes older ones,
// which is safe because each carries every field not yet confirmed.
func (p *Processor) queueUpdate(ctx context.Context, intentID uuid.UUID, intent IntentKind, ref EntityRef, patch domain.Patch) {
	u, ok := p.unsynced[ref]
	if !ok || u.Op != OpUpdate {
		u = &Unsynced{Ref: ref, Op: OpUpdate}
		p.unsynced[ref] = u
	}
	u.Patch = u.Patch.Merge(patch)
	u.IntentID = intentID
	u.Intent = intent
	u.Err = nil
	p.sendUpdate(ctx, u)
}

func (p *Processor) sendUpdate(ctx context.Context, u *Unsynced) {
	ref := u.Ref
	key := opKey(OpUpdate, ref)
	gen := p.gens.Begin(key)
	patch := u.Patch.Clone()
	intentID, intent := u.IntentID, u.Intent
	ctx = detach(ctx)

	p.spawn(func() {
		var ent domain.Entity
		err := p.call(ctx, OpUpdate, ref, func(ctx context.Context) error {
			var err error
			ent, err = p.api.Update(ctx, ref.Kind, ref.ID, patch)
			return err
		})
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				p.logger.Debug("discarding superseded result", "operation", string(OpUpdate), "entity", ref.String())
				return
			}
			if err != nil {
				if cur, ok := p.unsynced[ref]; ok {
					cur.Err = err
				}
				p.fail(intentID, intent, OpUpdate, ref, err)
				return
			}
			delete(p.unsynced, ref)
			p.mirrorNode(ent)
		})
	})
}

func (p *Processor) queueDelete(ctx context.Context, intentID uuid.UUID, intent IntentKind, ref EntityRef) {
	u := &Unsynced{Ref: ref, Op: OpDelete, IntentID: intentID, Intent: intent}
	p.unsynced[ref] = u
	p.sendDelete(ctx, u)
}

func (p *Processor) sendDelete(ctx context.Context, u *Unsynced) {
	ref := u.Ref
	key := opKey(OpDelete, ref)
	gen := p.gens.Begin(key)
	intentID, intent := u.IntentID, u.Intent
	ctx = detach(ctx)

	p.spawn(func() {
		err := p.call(ctx, OpDelete, ref, func(ctx context.Context) error {
			return p.api.Delete(ctx, ref.Kind, ref.ID)
		})
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				return
			}
			cur, ok := p.unsynced[ref]
			if err != nil {
				if ok {
					cur.Err = err
				}
				p.fail(intentID, intent, OpDelete, ref, err)
				return
			}
			if ok && cur.Op == OpDelete {
				delete(p.unsynced, ref)
			}
		})
	})
}

// mirrorNode copies a confirmed node into the store. Children and group
// membership stay as the store has them.
func (p *Processor) mirrorNode(ent domain.Entity) {
	if ent.Node == nil {
		return
	}
	if _, ok := p.store.Node(ent.Node.ID); !ok {
		return
	}
	if err := p.store.UpsertNode(ent.Node); err != nil {
		p.logger.Warn("mirror failed", "entity", ent.Node.ID.String(), "error", err)
	}
}

func (p *Processor) startCreate(ctx context.Context, intentID uuid.UUID, intent IntentKind, act placeholder.Action) {
	ref := EntityRef{Kind: act.Kind, ID: act.TempID}
	key := opKey(OpCreate, ref)
	gen := p.gens.Begin(key)
	ctx = detach(ctx)
	if _, ok := p.origins[act.TempID]; !ok {
		p.origins[act.TempID] = origin{id: intentID, kind: intent}
	}

	p.spawn(func() {
		var ent domain.Entity
		err := p.call(ctx, OpCreate, ref, func(ctx context.Context) error {
			var err error
			ent, err = p.api.Create(ctx, act.Kind, act.ParentID, act.Payload)
			return err
		})
		if err == nil && ent.Node == nil {
			err = fmt.Errorf("create %s returned no node", act.Kind)
		}
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				return
			}
			p.finishCreate(ctx, intentID, intent, ref, ent, err)
		})
	})
}

func (p *Processor) finishCreate(ctx context.Context, intentID uuid.UUID, intent IntentKind, ref EntityRef, ent domain.Entity, err error) {
	temp := ref.ID
	if err != nil {
		if ferr := p.recon.Fail(temp, err); ferr != nil {
			p.logger.Warn("placeholder failure not recorded", "entity", ref.String(), "error", ferr)
		}
		p.fail(intentID, intent, OpCreate, ref, err)
		return
	}

	realID := ent.Node.ID
	if n, dup := p.store.Node(realID); dup && !n.IsPlaceholder {
		// A fetch mirrored the new row before the create returned.
		p.store.RemoveNode(realID)
	}
	act, err := p.recon.Activate(temp, realID)
	if err != nil {
		p.fail(intentID, intent, OpCreate, ref, err)
		return
	}
	delete(p.origins, temp)
	if act.Repeat {
		return
	}
	p.outRemaps[domain.DataRowID(temp)] = domain.DataRowID(realID)

	if len(act.Followup) > 0 {
		p.queueUpdate(ctx, intentID, intent, EntityRef{Kind: ref.Kind, ID: realID}, act.Followup)
	}
	p.syncMemberships(ctx, intentID, intent, realID)
}

// syncMemberships persists the group and markup child lists that tracked a
// node while it only had a temp id.
func (p *Processor) syncMemberships(ctx context.Context, intentID uuid.UUID, intent IntentKind, id domain.ID) {
	n, ok := p.store.Node(id)
	if !ok {
		return
	}
	if n.Group != nil && !n.Group.IsTemp() {
		if g, ok := p.store.Group(*n.Group); ok {
			p.queueUpdate(ctx, intentID, intent, EntityRef{Kind: domain.EntityGroup, ID: g.ID}, domain.Patch{
				domain.FieldChildren: domain.PersistedIDs(g.Children),
			})
		}
	}
	for _, m := range p.store.MarkupsOf(id) {
		if m.ID.IsTemp() {
			continue
		}
		p.queueUpdate(ctx, intentID, intent, EntityRef{Kind: domain.EntityMarkup, ID: m.ID}, m.Patch())
	}
}

func (p *Processor) startOverlayCreate(ctx context.Context, in Intent, ref EntityRef, parent domain.ID, children []domain.ID, payload domain.Patch) {
	p.inflight[ref] = overlayCreate{children: append([]domain.ID(nil), children...)}
	key := opKey(OpCreate, ref)
	gen := p.gens.Begin(key)
	sent := payload.IDs(domain.FieldChildren)
	ctx = detach(ctx)

	p.spawn(func() {
		var ent domain.Entity
		err := p.call(ctx, OpCreate, ref, func(ctx context.Context) error {
			var err error
			ent, err = p.api.Create(ctx, ref.Kind, parent, payload)
			return err
		})
		if err == nil && ent.ID() == 0 {
			err = fmt.Errorf("create %s returned no entity", ref.Kind)
		}
		p.locked(func() {
			if !p.gens.Current(key, gen) {
				return
			}
			p.finishOverlayCreate(ctx, in, ref, sent, ent, err)
		})
	})
}

func (p *Processor) finishOverlayCreate(ctx context.Context, in Intent, ref EntityRef, sent []domain.ID, ent domain.Entity, err error) {
	delete(p.inflight, ref)
	if err != nil {
		p.removeOverlay(ref)
		p.fail(in.ID, in.Kind, OpCreate, ref, err)
		return
	}

	realID := ent.ID()
	realRef := EntityRef{Kind: ref.Kind, ID: realID}
	switch ref.Kind {
	case domain.EntityGroup:
		if err := p.store.RemapGroup(ref.ID, realID); err != nil {
			p.logger.Warn("overlay activation failed", "entity", ref.String(), "error", err)
			return
		}
		p.outRemaps[domain.GroupRowID(ref.ID)] = domain.GroupRowID(realID)
		g, _ := p.store.Group(realID)
		if now := domain.PersistedIDs(g.Children); !sameIDs(now, sent) {
			p.queueUpdate(ctx, in.ID, in.Kind, realRef, domain.Patch{domain.FieldChildren: now})
		}
	case domain.EntityMarkup:
		if err := p.store.RemapMarkup(ref.ID, realID); err != nil {
			p.logger.Warn("overlay activation failed", "entity", ref.String(), "error", err)
			return
		}
		p.outRemaps[domain.MarkupRowID(ref.ID)] = domain.MarkupRowID(realID)
		m, _ := p.store.Markup(realID)
		if !sameIDs(domain.PersistedIDs(m.Children), sent) {
			p.queueUpdate(ctx, in.ID, in.Kind, realRef, m.Patch())
		}
	case domain.EntityFringe:
		if err := p.store.RemapFringe(ref.ID, realID); err != nil {
			p.logger.Warn("overlay activation failed", "entity", ref.String(), "error", err)
		}
	}
}

func (p *Processor) removeOverlay(ref EntityRef) {
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
		p.logger.Warn("overlay rollback failed", "entity", ref.String(), "error", err)
	}
}

func sameIDs(a, b []domain.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !domain.ContainsID(b, id) {
			return false
		}
	}
	return true
}

// Retry re-sends an unsynced change, or resubmits the creation of a
// placeholder that failed.
func (p *Processor) Retry(ctx context.Context, ref EntityRef) error {
	var err error
	p.locked(func() {
		if n, ok := p.store.Node(ref.ID); ok && n.IsPlaceholder {
			act, rerr := p.recon.Resubmit(ref.ID)
			if rerr != nil {
				err = rerr
				return
			}
			if act == nil {
				err = domain.Invalid("placeholder %d is missing required fields", ref.ID)
				return
			}
			o, ok := p.origins[ref.ID]
			if !ok {
				o = origin{id: uuid.New(), kind: IntentDataChange}
			}
			p.startCreate(ctx, o.id, o.kind, *act)
			return
		}
		u, ok := p.unsynced[ref]
		if !ok {
			err = domain.NotFound("unsynced "+string(ref.Kind), ref.ID)
			return
		}
		u.Err = nil
		if u.Op == OpDelete {
			p.sendDelete(ctx, u)
			return
		}
		p.sendUpdate(ctx, u)
	})
	return err
}
