package engine

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/google/uuid"
)

// ErrSuperseded is delivered to a fetch whose result was discarded because a
// newer fetch of the same stream started.
var ErrSuperseded = errors.New("superseded by a newer request")

// EntityRef names one persisted entity. Ids of different kinds may collide.
type EntityRef struct {
	Kind domain.EntityKind
	ID   domain.ID
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// Op is an outbound persistence operation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpLoad   Op = "load"
	OpList   Op = "list"
)

// Failure reports a persistence call that failed, tagged with the intent
// that caused it.
type Failure struct {
	IntentID uuid.UUID
	Intent   IntentKind
	Op       Op
	Ref      EntityRef
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s (intent %s): %v", f.Op, f.Ref, f.IntentID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Update is delivered to a subscriber after a change. Rows is nil when the
// subscribed level did not change. Remaps maps old row ids to new ones for
// placeholders and overlays that were activated in this change; it arrives
// in the same update as the rows carrying the new ids.
type Update struct {
	ParentID domain.ID
	Rows     []domain.Row
	Remaps   map[string]string
	Failures []Failure
}

// Unsynced is a local change that the API collaborator has not confirmed.
type Unsynced struct {
	Ref      EntityRef
	Op       Op
	Patch    domain.Patch
	IntentID uuid.UUID
	Intent   IntentKind
	// Err is the last failure, nil while a call is in flight.
	Err error
}
