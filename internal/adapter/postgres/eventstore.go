package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/idgen"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event into the events table.
func (s *EventStore) Append(ctx context.Context, e *event.Event) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if e.ID == "" {
		e.ID = idgen.New()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, project_id, event_type, source_agent_id, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		e.ID, e.ProjectID, string(e.EventType), nullIfEmpty(e.SourceAgentID), payloadJSON)

	if err := row.Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Since returns all events created at or after the given time, across
// all projects, ordered by created_at ascending.
func (s *EventStore) Since(ctx context.Context, since time.Time) ([]event.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, event_type, COALESCE(source_agent_id, ''), payload, created_at
		 FROM events WHERE created_at >= $1 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("events since %s: %w", since, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LoadByProject returns events for a project, newest first, capped at limit.
func (s *EventStore) LoadByProject(ctx context.Context, projectID string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, event_type, COALESCE(source_agent_id, ''), payload, created_at
		 FROM events WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("load events by project %s: %w", projectID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteOlderThan removes events with created_at before cutoff, the
// retention phase's reclaim step.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete events older than %s: %w", cutoff, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEvents(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var e event.Event
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.EventType, &e.SourceAgentID, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal event payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
