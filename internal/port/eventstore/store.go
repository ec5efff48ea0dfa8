// Package eventstore defines the append-only event log port.
package eventstore

import (
	"context"
	"time"

	"github.com/forgewright/orchestrator/internal/domain/event"
)

// Store is the port interface for appending and loading orchestration events.
type Store interface {
	// Append persists a new event.
	Append(ctx context.Context, e *event.Event) error

	// Since returns all events created at or after the given time,
	// across all projects, ordered by created_at ascending. The
	// trigger evaluator uses this for its 5-minute window.
	Since(ctx context.Context, since time.Time) ([]event.Event, error)

	// LoadByProject returns all events for a project, newest first.
	LoadByProject(ctx context.Context, projectID string, limit int) ([]event.Event, error)

	// DeleteOlderThan removes events with created_at before cutoff and
	// returns the number of rows deleted, as part of retention cleanup.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
