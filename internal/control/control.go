package control

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zull0910/tunos/internal/protocol"
)

type Publisher interface {
	Publish(msg protocol.Message) error
}

// Hook runs after a call has been published. Hooks must not block; the
// voice announcer hands its work to a goroutine.
type Hook func(ticket protocol.Ticket)

type Options struct {
	Rooms []string
	IDs   *protocol.IDSource
	Hooks []Hook
}

// Controller owns the single active ticket of one control context.
type Controller struct {
	mu        sync.Mutex
	publisher Publisher
	ids       *protocol.IDSource
	rooms     []string
	hooks     []Hook
	active    *protocol.Ticket
}

func New(publisher Publisher, options Options) *Controller {
	ids := options.IDs
	if ids == nil {
		ids = protocol.NewIDSource(nil)
	}
	return &Controller{
		publisher: publisher,
		ids:       ids,
		rooms:     append([]string(nil), options.Rooms...),
		hooks:     append([]Hook(nil), options.Hooks...),
	}
}

func (c *Controller) Rooms() []string {
	return append([]string(nil), c.rooms...)
}

func (c *Controller) Active() (protocol.Ticket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return protocol.Ticket{}, false
	}
	return *c.active, true
}

// IssueCall moves the controller from idle to active and publishes the
// call. A publish failure keeps the transition, skips the hooks and is
// reported wrapped in ErrNotDelivered.
func (c *Controller) IssueCall(name, room string) (protocol.Ticket, error) {
	name = strings.TrimSpace(name)
	room = strings.TrimSpace(room)
	if name == "" {
		return protocol.Ticket{}, &ValidationError{Field: "patient_name", Message: "patient name is required"}
	}
	if room == "" {
		return protocol.Ticket{}, &ValidationError{Field: "room", Message: "room is required"}
	}
	if len(c.rooms) > 0 && !contains(c.rooms, room) {
		return protocol.Ticket{}, &ValidationError{Field: "room", Message: fmt.Sprintf("unknown room %q", room)}
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return protocol.Ticket{}, ErrTicketActive
	}
	ticket := protocol.Ticket{ID: c.ids.Next(), PatientName: name, Room: room}
	c.active = &ticket
	err := c.publish(protocol.Call(ticket))
	c.mu.Unlock()
	if err != nil {
		return ticket, err
	}

	for _, hook := range c.hooks {
		runHook(hook, ticket)
	}
	return ticket, err
}

func (c *Controller) Cancel() (protocol.Ticket, bool, error) {
	return c.finish(protocol.Cancel)
}

func (c *Controller) Complete() (protocol.Ticket, bool, error) {
	return c.finish(protocol.Complete)
}

func (c *Controller) finish(build func(int64) protocol.Message) (protocol.Ticket, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return protocol.Ticket{}, false, nil
	}
	ticket := *c.active
	c.active = nil
	return ticket, true, c.publish(build(ticket.ID))
}

func (c *Controller) publish(msg protocol.Message) error {
	if c.publisher == nil {
		return fmt.Errorf("%w: no publisher", ErrNotDelivered)
	}
	if err := c.publisher.Publish(msg); err != nil {
		log.Printf("control publish type=%s ticket=%d error=%v", msg.Type, msg.TicketID, err)
		return fmt.Errorf("%w: %v", ErrNotDelivered, err)
	}
	return nil
}

func runHook(hook Hook, ticket protocol.Ticket) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("control hook panic ticket=%d: %v", ticket.ID, r)
		}
	}()
	hook(ticket)
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}
