// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvariant indicates an attempted state transition violates an entity invariant
// (e.g. claiming a step that isn't PENDING, approving a proposal that isn't PENDING).
var ErrInvariant = errors.New("invariant violation")

// ErrInvalidTrigger indicates a trigger action carries an unrecognized tag.
var ErrInvalidTrigger = errors.New("invalid trigger action")
