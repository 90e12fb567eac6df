package relay

import (
	"context"
	"errors"
	"expvar"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/zull0910/tunos/internal/hub"
	"github.com/zull0910/tunos/internal/protocol"
	"github.com/zull0910/tunos/internal/store"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	framesRelayed  = expvar.NewInt("relay_frames_total")
	framesRejected = expvar.NewInt("relay_frames_malformed_total")
	sessionsOpen   = expvar.NewInt("relay_sessions_open")
)

const (
	closeWrongChannel = 4001
	closeMalformed    = 4002
)

type Options struct {
	Prefix       string
	Channel      string
	ClientBuffer int
	// MaxMalformed closes a session after this many consecutive malformed
	// frames. Zero keeps the session open forever.
	MaxMalformed int
}

// Relay turns SockJS sessions into contexts attached to the hub. Every
// session is an independent context: it receives what others publish and
// never its own frames.
type Relay struct {
	hub      *hub.Hub
	recorder *store.Recorder
	options  Options
	now      func() time.Time
}

func New(h *hub.Hub, recorder *store.Recorder, options Options) *Relay {
	if options.Prefix == "" {
		options.Prefix = "/realtime"
	}
	if options.ClientBuffer <= 0 {
		options.ClientBuffer = 16
	}
	return &Relay{hub: h, recorder: recorder, options: options, now: time.Now}
}

func (r *Relay) Prefix() string {
	return r.options.Prefix
}

// Handler serves the SockJS transports plus a raw WebSocket endpoint at
// <prefix>/websocket for terminal clients.
func (r *Relay) Handler() http.Handler {
	opts := sockjs.DefaultOptions
	opts.RawWebsocket = true
	return sockjs.NewHandler(r.options.Prefix, opts, r.serve)
}

func (r *Relay) serve(session sockjs.Session) {
	channel := channelFromRequest(session.Request())
	if channel != r.options.Channel {
		_ = session.Close(closeWrongChannel, "unknown channel")
		return
	}

	client := &hub.Client{ID: uuid.NewString(), Channel: channel, Send: make(chan []byte, r.options.ClientBuffer)}
	r.hub.Register(client)
	defer r.hub.Unregister(client)
	sessionsOpen.Add(1)
	defer sessionsOpen.Add(-1)
	log.Printf("relay session open id=%s channel=%s", client.ID, channel)
	defer log.Printf("relay session closed id=%s", client.ID)

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	malformed := 0
	for {
		raw, err := session.Recv()
		if err != nil {
			return
		}
		if !r.Forward(client.ID, channel, []byte(raw)) {
			malformed++
			if r.options.MaxMalformed > 0 && malformed >= r.options.MaxMalformed {
				_ = session.Close(closeMalformed, "too many malformed frames")
				return
			}
			continue
		}
		malformed = 0
	}
}

// Forward validates one frame from senderID and fans it out. Malformed
// frames are dropped. Unknown kinds are forwarded so newer displays keep
// working against an older relay.
func (r *Relay) Forward(senderID, channel string, raw []byte) bool {
	_, span := otel.Tracer("tunos/relay").Start(context.Background(), "relay.forward")
	defer span.End()

	msg, err := protocol.Decode(raw)
	if err != nil {
		framesRejected.Add(1)
		span.SetAttributes(attribute.Bool("relay.malformed", true))
		log.Printf("relay drop frame sender=%s: %v", senderID, err)
		return false
	}
	span.SetAttributes(attribute.String("relay.type", msg.Type), attribute.Int64("relay.ticket_id", msg.TicketID))

	delivered := r.hub.Publish(channel, senderID, raw)
	framesRelayed.Add(1)
	span.SetAttributes(attribute.Int("relay.delivered", delivered))
	r.Observe(channel, msg)
	return true
}

// Observe offers a known message to the audit trail.
func (r *Relay) Observe(channel string, msg protocol.Message) {
	if !msg.Known() || r.recorder == nil {
		return
	}
	event := store.Event{
		EventID:    uuid.NewString(),
		Channel:    channel,
		Kind:       msg.Type,
		TicketID:   msg.TicketID,
		ObservedAt: r.now().UTC(),
	}
	if msg.Type == protocol.KindCall {
		event.PatientName = msg.Ticket.PatientName
		event.Room = msg.Ticket.Room
	}
	if err := r.recorder.Offer(event); err != nil && !errors.Is(err, store.ErrAuditDisabled) {
		log.Printf("relay audit offer kind=%s ticket=%d: %v", msg.Type, msg.TicketID, err)
	}
}

func channelFromRequest(req *http.Request) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.URL.Query().Get("channel"))
}

// ControlPublisher publishes on behalf of a control role hosted inside the
// relay process. Its frames reach every session and the audit trail.
type ControlPublisher struct {
	relay *Relay
	inner hub.Publisher
}

func (r *Relay) ControlPublisher(senderID string) ControlPublisher {
	return ControlPublisher{
		relay: r,
		inner: hub.Publisher{Hub: r.hub, Channel: r.options.Channel, SenderID: senderID},
	}
}

func (p ControlPublisher) Publish(msg protocol.Message) error {
	if err := p.inner.Publish(msg); err != nil {
		return err
	}
	framesRelayed.Add(1)
	p.relay.Observe(p.inner.Channel, msg)
	return nil
}
