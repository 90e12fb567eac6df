package store

import (
	"context"
	"expvar"
	"log"
	"sync"
	"time"
)

var auditDropped = expvar.NewInt("audit_events_dropped_total")

// Recorder writes audit events from a buffered queue so the relay never
// waits on the database.
type Recorder struct {
	store   AuditStore
	events  chan Event
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(store AuditStore, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	return &Recorder{
		store:   store,
		events:  make(chan Event, buffer),
		timeout: 5 * time.Second,
	}
}

func (r *Recorder) Offer(event Event) error {
	if r == nil || r.store == nil {
		return ErrAuditDisabled
	}
	select {
	case r.events <- event:
		return nil
	default:
		auditDropped.Add(1)
		return ErrAuditFull
	}
}

func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				r.drain()
				return
			case event := <-r.events:
				r.write(event)
			}
		}
	}()
}

// Wait blocks until the worker has drained after its context was cancelled.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func (r *Recorder) drain() {
	for {
		select {
		case event := <-r.events:
			r.write(event)
		default:
			return
		}
	}
}

func (r *Recorder) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.RecordEvent(ctx, event); err != nil {
		log.Printf("audit record error kind=%s ticket=%d: %v", event.Kind, event.TicketID, err)
	}
}
