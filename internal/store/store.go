package store

import (
	"context"
	"time"
)

// Event is one observed protocol message. Cancel and complete keep their
// distinct kind here even though displays treat them alike.
type Event struct {
	EventID     string    `json:"event_id"`
	Channel     string    `json:"channel"`
	Kind        string    `json:"kind"`
	TicketID    int64     `json:"ticket_id"`
	PatientName string    `json:"patient_name,omitempty"`
	Room        string    `json:"room,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

type AuditStore interface {
	EnsureSchema(ctx context.Context) error
	RecordEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}
