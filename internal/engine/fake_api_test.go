package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/alexanderramin/budgetcore/internal/domain"
)

var errBoom = errors.New("boom")

type listCall struct {
	kind   domain.EntityKind
	parent domain.ID
	search string
}

type updateCall struct {
	ref   EntityRef
	patch domain.Patch
}

// fakeAPI is an in-memory collaborator. Hooks replace the default behavior
// of one operation; they run outside the fake's mutex so they may block.
type fakeAPI struct {
	mu       sync.Mutex
	nextID   domain.ID
	contents domain.BudgetContents
	nodes    map[domain.ID]*domain.Node

	creates []updateCall
	updates []updateCall
	deletes []EntityRef
	lists   []listCall

	updateErr error
	createErr error

	onCreate func(kind domain.EntityKind, parent domain.ID, p domain.Patch) (domain.Entity, error)
	onUpdate func(kind domain.EntityKind, id domain.ID, p domain.Patch) (domain.Entity, error)
	onList   func(kind domain.EntityKind, parent domain.ID, search string) ([]domain.Entity, error)
	onLoad   func(id domain.ID) (domain.BudgetContents, error)
}

func newFakeAPI(contents domain.BudgetContents) *fakeAPI {
	f := &fakeAPI{nextID: 1000, contents: contents, nodes: make(map[domain.ID]*domain.Node)}
	for _, n := range contents.Nodes {
		f.nodes[n.ID] = n.Clone()
	}
	return f
}

func (f *fakeAPI) setUpdateErr(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

func (f *fakeAPI) setCreateErr(err error) {
	f.mu.Lock()
	f.createErr = err
	f.mu.Unlock()
}

func (f *fakeAPI) Create(_ context.Context, kind domain.EntityKind, parent domain.ID, p domain.Patch) (domain.Entity, error) {
	f.mu.Lock()
	f.creates = append(f.creates, updateCall{ref: EntityRef{Kind: kind, ID: parent}, patch: p.Clone()})
	hook, failErr := f.onCreate, f.createErr
	f.mu.Unlock()
	if hook != nil {
		return hook(kind, parent, p)
	}
	if failErr != nil {
		return domain.Entity{}, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ent := domain.Entity{Kind: kind}
	switch kind {
	case domain.EntityAccount, domain.EntitySubAccount:
		n := &domain.Node{ID: id, Kind: domain.NodeSubAccount, ParentID: parent}
		if kind == domain.EntityAccount {
			n.Kind = domain.NodeAccount
		}
		for _, fld := range p.Fields() {
			if err := n.SetField(fld, p[fld]); err != nil {
				return domain.Entity{}, err
			}
		}
		f.nodes[id] = n
		ent.Node = n.Clone()
	case domain.EntityGroup:
		g := &domain.Group{ID: id, ParentID: parent}
		if err := g.Apply(p); err != nil {
			return domain.Entity{}, err
		}
		ent.Group = g
	case domain.EntityMarkup:
		m := &domain.Markup{ID: id, ParentID: parent}
		if err := m.Apply(p); err != nil {
			return domain.Entity{}, err
		}
		ent.Markup = m
	case domain.EntityFringe:
		fr := &domain.Fringe{ID: id, BudgetID: parent}
		if err := fr.Apply(p); err != nil {
			return domain.Entity{}, err
		}
		ent.Fringe = fr
	}
	return ent, nil
}

func (f *fakeAPI) Update(_ context.Context, kind domain.EntityKind, id domain.ID, p domain.Patch) (domain.Entity, error) {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{ref: EntityRef{Kind: kind, ID: id}, patch: p.Clone()})
	hook, failErr := f.onUpdate, f.updateErr
	f.mu.Unlock()
	if hook != nil {
		return hook(kind, id, p)
	}
	if failErr != nil {
		return domain.Entity{}, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok || (kind != domain.EntityAccount && kind != domain.EntitySubAccount) {
		return domain.Entity{Kind: kind}, nil
	}
	for _, fld := range p.Fields() {
		if err := n.SetField(fld, p[fld]); err != nil {
			return domain.Entity{}, err
		}
	}
	cp := n.Clone()
	cp.Children = nil
	return domain.Entity{Kind: kind, Node: cp}, nil
}

func (f *fakeAPI) Delete(_ context.Context, kind domain.EntityKind, id domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, EntityRef{Kind: kind, ID: id})
	delete(f.nodes, id)
	return nil
}

func (f *fakeAPI) List(_ context.Context, kind domain.EntityKind, parent domain.ID, search string) ([]domain.Entity, error) {
	f.mu.Lock()
	f.lists = append(f.lists, listCall{kind: kind, parent: parent, search: search})
	hook := f.onList
	f.mu.Unlock()
	if hook != nil {
		return hook(kind, parent, search)
	}
	return nil, nil
}

func (f *fakeAPI) LoadBudget(_ context.Context, id domain.ID) (domain.BudgetContents, error) {
	f.mu.Lock()
	hook, contents := f.onLoad, f.contents
	f.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	if contents.Budget == nil || contents.Budget.ID != id {
		return domain.BudgetContents{}, domain.NotFound("budget", id)
	}
	return contents, nil
}

func (f *fakeAPI) createCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.creates...)
}

func (f *fakeAPI) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.updates...)
}

func (f *fakeAPI) deleteCalls() []EntityRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EntityRef(nil), f.deletes...)
}

func (f *fakeAPI) listCalls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.lists...)
}
