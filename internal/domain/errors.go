package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an operation referenced an id absent from the store.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMutation indicates an operation would violate a tree invariant
	// and was rejected before anything was applied.
	ErrInvalidMutation = errors.New("invalid mutation")

	// ErrPersistence indicates the API collaborator failed to persist a change.
	ErrPersistence = errors.New("persistence failure")
)

// NotFound wraps ErrNotFound with the entity and id that were missing.
func NotFound(what string, id ID) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}

// Invalid wraps ErrInvalidMutation with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidMutation)
}

// InconsistencyCode classifies an already-broken invariant observed on read.
type InconsistencyCode string

const (
	InconsistencyMissingNode     InconsistencyCode = "missing_node"
	InconsistencyMissingChild    InconsistencyCode = "missing_child"
	InconsistencyMissingFringe   InconsistencyCode = "missing_fringe"
	InconsistencyDuplicateRemove InconsistencyCode = "duplicate_remove"
	InconsistencyStaleValue      InconsistencyCode = "stale_value"
)

// Inconsistency is recorded for diagnostics only. It never propagates as an
// error value; readers exclude the broken reference and carry on.
type Inconsistency struct {
	Code    InconsistencyCode
	Message string
	IDs     []ID
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s: %s %v", i.Code, i.Message, i.IDs)
}
