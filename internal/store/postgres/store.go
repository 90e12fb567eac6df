package postgres

import (
	"context"

	"github.com/zull0910/tunos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS call_events (
			event_id     UUID PRIMARY KEY,
			channel      TEXT NOT NULL,
			kind         TEXT NOT NULL,
			ticket_id    BIGINT NOT NULL,
			patient_name TEXT NOT NULL DEFAULT '',
			room         TEXT NOT NULL DEFAULT '',
			observed_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS call_events_observed_at_idx ON call_events (observed_at DESC);
	`)
	return err
}

func (s *Store) RecordEvent(ctx context.Context, event store.Event) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO call_events (event_id, channel, kind, ticket_id, patient_name, room, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.Channel, event.Kind, event.TicketID, event.PatientName, event.Room, event.ObservedAt)
	return err
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id::text, channel, kind, ticket_id, patient_name, room, observed_at
		FROM call_events
		ORDER BY observed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var event store.Event
		if err := rows.Scan(&event.EventID, &event.Channel, &event.Kind, &event.TicketID, &event.PatientName, &event.Room, &event.ObservedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
