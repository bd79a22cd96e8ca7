package placeholder

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/tree"
)

// State is the lifecycle position of one placeholder row.
type State int

const (
	Editing State = iota
	PendingCreate
	Activated
	Discarded
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case PendingCreate:
		return "pending_create"
	case Activated:
		return "activated"
	case Discarded:
		return "discarded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Row tracks a placeholder from creation to activation.
type Row struct {
	TempID   domain.ID
	RealID   domain.ID
	Kind     domain.NodeKind
	ParentID domain.ID
	State    State
	// Pending holds edits received while the creation call is in flight.
	Pending domain.Patch
	LastErr error
}

// Action is the single creation request a placeholder emits when its
// required fields are first complete.
type Action struct {
	Kind     domain.EntityKind
	TempID   domain.ID
	ParentID domain.ID
	Payload  domain.Patch
}

// Activation describes the result of Activate. Followup is the merged patch
// of edits made while creation was in flight and must be sent as an update
// against RealID. Repeat is set when the placeholder was already activated
// with the same id and nothing changed.
type Activation struct {
	TempID   domain.ID
	RealID   domain.ID
	Followup domain.Patch
	Repeat   bool
}

// Reconciler owns the placeholder rows of one tree store. Like the store it
// is not safe for concurrent use.
type Reconciler struct {
	store *tree.Store
	next  domain.ID
	rows  map[domain.ID]*Row
}

func New(store *tree.Store) *Reconciler {
	return &Reconciler{
		store: store,
		next:  -1,
		rows:  make(map[domain.ID]*Row),
	}
}

// Add inserts an empty placeholder node of kind under parent at index
// (-1 appends) and returns its temp id. No outbound call is made.
func (r *Reconciler) Add(parent domain.ID, kind domain.NodeKind, index int) (domain.ID, error) {
	if parent.IsTemp() {
		return 0, domain.Invalid("cannot add a row under unsaved placeholder %d", parent)
	}
	if kind == domain.NodeBudget {
		return 0, domain.Invalid("a budget cannot be added as a row")
	}
	id := r.next
	n := &domain.Node{
		ID:            id,
		Kind:          kind,
		ParentID:      parent,
		IsPlaceholder: true,
	}
	if err := r.store.InsertNode(n, index); err != nil {
		return 0, err
	}
	r.next--
	r.rows[id] = &Row{TempID: id, Kind: kind, ParentID: parent, State: Editing}
	return id, nil
}

// Edit applies p to the placeholder. While editing, the first edit that
// completes the required fields moves the row to PendingCreate and returns
// the creation action; every other call returns nil. Edits made during
// PendingCreate are applied locally and queued for the follow-up update.
func (r *Reconciler) Edit(temp domain.ID, p domain.Patch) (*Action, error) {
	row, err := r.live(temp)
	if err != nil {
		return nil, err
	}
	if row.State == Activated {
		return nil, domain.Invalid("placeholder %d was activated as %d", temp, row.RealID)
	}
	if err := r.store.ApplyPatch(temp, p); err != nil {
		return nil, err
	}
	if row.State == PendingCreate {
		row.Pending = row.Pending.Merge(p)
		return nil, nil
	}
	return r.submit(row), nil
}

// Resubmit returns the creation action for a row that is back in Editing
// after a failure and still has its required fields.
func (r *Reconciler) Resubmit(temp domain.ID) (*Action, error) {
	row, err := r.live(temp)
	if err != nil {
		return nil, err
	}
	if row.State != Editing {
		return nil, domain.Invalid("placeholder %d is %s", temp, row.State)
	}
	return r.submit(row), nil
}

func (r *Reconciler) submit(row *Row) *Action {
	n, ok := r.store.Node(row.TempID)
	if !ok || !Ready(n) {
		return nil
	}
	row.State = PendingCreate
	row.LastErr = nil
	row.Pending = nil
	return &Action{
		Kind:     domain.EntityKindFor(row.Kind),
		TempID:   row.TempID,
		ParentID: row.ParentID,
		Payload:  n.Patch(),
	}
}

// Activate swaps the placeholder's temp id for the server id everywhere in
// the store in one step. Activating again with the same id is a no-op.
func (r *Reconciler) Activate(temp, realID domain.ID) (Activation, error) {
	row, ok := r.rows[temp]
	if !ok {
		return Activation{}, domain.NotFound("placeholder", temp)
	}
	switch row.State {
	case Activated:
		if row.RealID != realID {
			return Activation{}, domain.Invalid("placeholder %d already activated as %d, not %d", temp, row.RealID, realID)
		}
		return Activation{TempID: temp, RealID: realID, Repeat: true}, nil
	case PendingCreate:
	default:
		return Activation{}, domain.Invalid("placeholder %d is %s, not awaiting creation", temp, row.State)
	}

	if err := r.store.RemapID(temp, realID); err != nil {
		return Activation{}, err
	}
	act := Activation{TempID: temp, RealID: realID, Followup: row.Pending}
	row.State = Activated
	row.RealID = realID
	row.Pending = nil
	return act, nil
}

// Fail returns a pending placeholder to Editing. The data entered so far,
// including edits queued during the attempt, stays on the row.
func (r *Reconciler) Fail(temp domain.ID, cause error) error {
	row, ok := r.rows[temp]
	if !ok {
		return domain.NotFound("placeholder", temp)
	}
	if row.State != PendingCreate {
		return domain.Invalid("placeholder %d is %s, not awaiting creation", temp, row.State)
	}
	row.State = Editing
	row.Pending = nil
	row.LastErr = cause
	return nil
}

// Discard removes a placeholder that was never submitted. A row whose
// creation is in flight cannot be discarded.
func (r *Reconciler) Discard(temp domain.ID) error {
	row, err := r.live(temp)
	if err != nil {
		return err
	}
	if row.State != Editing {
		return domain.Invalid("placeholder %d is %s and cannot be discarded", temp, row.State)
	}
	r.store.RemoveNode(temp)
	row.State = Discarded
	delete(r.rows, temp)
	return nil
}

// Resolve maps an activated temp id to its server id. Any other id is
// returned unchanged.
func (r *Reconciler) Resolve(id domain.ID) domain.ID {
	if row, ok := r.rows[id]; ok && row.State == Activated {
		return row.RealID
	}
	return id
}

// Get returns a copy of the tracking row for temp.
func (r *Reconciler) Get(temp domain.ID) (Row, bool) {
	row, ok := r.rows[temp]
	if !ok {
		return Row{}, false
	}
	cp := *row
	cp.Pending = row.Pending.Clone()
	return cp, true
}

// IsPending reports whether id is a placeholder with a creation in flight.
func (r *Reconciler) IsPending(id domain.ID) bool {
	row, ok := r.rows[id]
	return ok && row.State == PendingCreate
}

// Forget drops every row tracked under the removed nodes, used when a parent
// subtree is deleted or the store is reloaded.
func (r *Reconciler) Forget(ids ...domain.ID) {
	for _, id := range ids {
		delete(r.rows, id)
	}
}

func (r *Reconciler) live(temp domain.ID) (*Row, error) {
	row, ok := r.rows[temp]
	if !ok {
		return nil, domain.NotFound("placeholder", temp)
	}
	return row, nil
}

// Ready reports whether a placeholder node has the fields its kind requires
// before it can be created: an identifier for accounts, quantity and rate
// for subaccounts.
func Ready(n *domain.Node) bool {
	switch n.Kind {
	case domain.NodeAccount:
		return n.Identifier != ""
	case domain.NodeSubAccount:
		return n.Quantity != nil && n.Rate != nil
	}
	return false
}
