package display

import "github.com/zull0910/tunos/internal/protocol"

// Board is the set of tickets a display shows, newest first. The zero
// value is an empty board. Boards are values: Reduce never mutates its
// input.
type Board struct {
	order   []int64
	tickets map[int64]protocol.Ticket
}

func (b Board) Len() int {
	return len(b.order)
}

func (b Board) Get(id int64) (protocol.Ticket, bool) {
	ticket, ok := b.tickets[id]
	return ticket, ok
}

// Tickets returns the visible tickets in render order.
func (b Board) Tickets() []protocol.Ticket {
	out := make([]protocol.Ticket, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.tickets[id])
	}
	return out
}

func Reduce(b Board, msg protocol.Message) Board {
	switch {
	case msg.Type == protocol.KindCall:
		return b.insert(msg.Ticket)
	case msg.Removes():
		return b.remove(msg.TicketID)
	default:
		return b
	}
}

func (b Board) insert(ticket protocol.Ticket) Board {
	next := Board{
		order:   make([]int64, 0, len(b.order)+1),
		tickets: make(map[int64]protocol.Ticket, len(b.tickets)+1),
	}
	next.order = append(next.order, ticket.ID)
	next.tickets[ticket.ID] = ticket
	for _, id := range b.order {
		if id == ticket.ID {
			continue
		}
		next.order = append(next.order, id)
		next.tickets[id] = b.tickets[id]
	}
	return next
}

func (b Board) remove(id int64) Board {
	if _, ok := b.tickets[id]; !ok {
		return b
	}
	next := Board{
		order:   make([]int64, 0, len(b.order)-1),
		tickets: make(map[int64]protocol.Ticket, len(b.tickets)-1),
	}
	for _, existing := range b.order {
		if existing == id {
			continue
		}
		next.order = append(next.order, existing)
		next.tickets[existing] = b.tickets[existing]
	}
	return next
}
