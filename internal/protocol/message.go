package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KindCall     = "call"
	KindCancel   = "cancel"
	KindComplete = "complete"
)

var ErrMalformedMessage = errors.New("malformed message")

type Ticket struct {
	ID          int64  `json:"id"`
	PatientName string `json:"patientName"`
	Room        string `json:"room"`
}

// Message is one frame exchanged on the broadcast channel. Ticket is set
// only for call, TicketID for cancel and complete. Data keeps the raw
// payload so frames of unknown kinds can be forwarded untouched.
type Message struct {
	Type     string
	Ticket   Ticket
	TicketID int64
	Data     json.RawMessage
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func Call(ticket Ticket) Message {
	return Message{Type: KindCall, Ticket: ticket, TicketID: ticket.ID}
}

func Cancel(id int64) Message {
	return Message{Type: KindCancel, TicketID: id}
}

func Complete(id int64) Message {
	return Message{Type: KindComplete, TicketID: id}
}

// Known reports whether the message kind is one this protocol version acts on.
func (m Message) Known() bool {
	switch m.Type {
	case KindCall, KindCancel, KindComplete:
		return true
	default:
		return false
	}
}

// Removes reports whether the message withdraws a ticket from displays.
// Cancel and complete are identical for display purposes.
func (m Message) Removes() bool {
	return m.Type == KindCancel || m.Type == KindComplete
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	var data any
	switch msg.Type {
	case KindCall:
		data = msg.Ticket
	case KindCancel, KindComplete:
		data = msg.TicketID
	default:
		if len(msg.Data) > 0 {
			data = msg.Data
		}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: msg.Type, Data: data})
}

func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	msg := Message{Type: env.Type, Data: env.Data}
	switch env.Type {
	case KindCall:
		ticket, err := decodeTicket(env.Data)
		if err != nil {
			return Message{}, err
		}
		msg.Ticket = ticket
		msg.TicketID = ticket.ID
	case KindCancel, KindComplete:
		id, err := decodeID(env.Data)
		if err != nil {
			return Message{}, err
		}
		msg.TicketID = id
	}
	return msg, nil
}

func decodeTicket(data json.RawMessage) (Ticket, error) {
	if isNull(data) {
		return Ticket{}, fmt.Errorf("%w: call without ticket", ErrMalformedMessage)
	}
	var fields struct {
		ID          *int64  `json:"id"`
		PatientName *string `json:"patientName"`
		Room        *string `json:"room"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields.ID == nil || fields.PatientName == nil || fields.Room == nil {
		return Ticket{}, fmt.Errorf("%w: ticket requires id, patientName and room", ErrMalformedMessage)
	}
	return Ticket{ID: *fields.ID, PatientName: *fields.PatientName, Room: *fields.Room}, nil
}

func decodeID(data json.RawMessage) (int64, error) {
	if isNull(data) {
		return 0, fmt.Errorf("%w: missing ticket id", ErrMalformedMessage)
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return 0, fmt.Errorf("%w: ticket id must be an integer", ErrMalformedMessage)
	}
	return id, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
