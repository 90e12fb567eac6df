package hub

import (
	"expvar"
	"log"
	"sync"

	"github.com/zull0910/tunos/internal/protocol"
)

var (
	messagesDelivered = expvar.NewInt("hub_messages_delivered_total")
	messagesDropped   = expvar.NewInt("hub_messages_dropped_total")
)

type Client struct {
	ID      string
	Channel string
	Send    chan []byte
}

// Hub fans frames out to every other client on the same channel. Delivery
// is at most once: a client whose buffer is full misses the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if client.Send != nil {
		close(client.Send)
	}
}

// Publish delivers payload to all clients on channel except senderID and
// returns the number of clients that accepted it.
func (h *Hub) Publish(channel, senderID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if client.ID == senderID || client.Channel != channel || client.Send == nil {
			continue
		}
		select {
		case client.Send <- payload:
			delivered++
		default:
			messagesDropped.Add(1)
			log.Printf("drop message for client %s", client.ID)
		}
	}
	messagesDelivered.Add(int64(delivered))
	return delivered
}

func (h *Hub) Count(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, client := range h.clients {
		if client.Channel == channel {
			count++
		}
	}
	return count
}

// Publisher lets an in-process context, such as the relay's own control
// role, publish on a channel as if it were a connected client.
type Publisher struct {
	Hub      *Hub
	Channel  string
	SenderID string
}

func (p Publisher) Publish(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	p.Hub.Publish(p.Channel, p.SenderID, payload)
	return nil
}
