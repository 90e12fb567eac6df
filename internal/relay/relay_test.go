package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zull0910/tunos/internal/client"
	"github.com/zull0910/tunos/internal/control"
	"github.com/zull0910/tunos/internal/display"
	"github.com/zull0910/tunos/internal/httpapi"
	"github.com/zull0910/tunos/internal/hub"
	"github.com/zull0910/tunos/internal/protocol"
	"github.com/zull0910/tunos/internal/store"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type fakeAudit struct {
	mu     sync.Mutex
	events []store.Event
}

func (f *fakeAudit) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeAudit) RecordEvent(ctx context.Context, event store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) ListEvents(ctx context.Context, limit int) ([]store.Event, error) {
	return nil, nil
}

func startRelay(t *testing.T, h *hub.Hub, recorder *store.Recorder) string {
	t.Helper()
	r := New(h, recorder, Options{Channel: "tunos"})
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/websocket"
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func nextFrame(t *testing.T, conn *client.Conn) protocol.Message {
	t.Helper()
	select {
	case raw, ok := <-conn.Frames():
		if !ok {
			t.Fatalf("connection closed: %v", conn.Err())
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return protocol.Message{}
}

func TestRelayCallReachesDisplays(t *testing.T) {
	h := hub.New()
	url := startRelay(t, h, nil)
	ctx := context.Background()

	controlConn, err := client.Dial(ctx, url, "tunos")
	if err != nil {
		t.Fatalf("dial control: %v", err)
	}
	defer controlConn.Close()
	screens := make([]*client.Conn, 2)
	for i := range screens {
		conn, err := client.Dial(ctx, url, "tunos")
		if err != nil {
			t.Fatalf("dial display %d: %v", i, err)
		}
		defer conn.Close()
		screens[i] = conn
	}
	waitFor(t, "three sessions", func() bool { return h.Count("tunos") == 3 })

	ctrl := control.New(controlConn, control.Options{})
	ticket, err := ctrl.IssueCall("Maria Lopez", "3")
	if err != nil {
		t.Fatalf("IssueCall: %v", err)
	}

	for i, screen := range screens {
		board := display.Reduce(display.Board{}, nextFrame(t, screen))
		got, ok := board.Get(ticket.ID)
		if !ok || got.PatientName != "Maria Lopez" || got.Room != "3" {
			t.Fatalf("display %d: unexpected board %+v", i, board.Tickets())
		}
	}

	if _, _, err := ctrl.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for i, screen := range screens {
		msg := nextFrame(t, screen)
		if msg.Type != protocol.KindComplete || msg.TicketID != ticket.ID {
			t.Fatalf("display %d: unexpected message %+v", i, msg)
		}
	}

	select {
	case raw := <-controlConn.Frames():
		t.Fatalf("sender received its own frame %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayRejectsOtherChannel(t *testing.T) {
	h := hub.New()
	url := startRelay(t, h, nil)
	conn, err := client.Dial(context.Background(), url, "lab")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	select {
	case _, ok := <-conn.Frames():
		if ok {
			t.Fatalf("expected no frames on a rejected session")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected session on unknown channel to be closed")
	}
	if h.Count("lab") != 0 {
		t.Fatalf("rejected session must not join the hub")
	}
}

func TestForwardDropsMalformedAndAudits(t *testing.T) {
	h := hub.New()
	screen := &hub.Client{ID: "screen", Channel: "tunos", Send: make(chan []byte, 4)}
	h.Register(screen)
	audit := &fakeAudit{}
	recorder := store.NewRecorder(audit, 8)
	r := New(h, recorder, Options{Channel: "tunos"})
	r.now = func() time.Time { return time.Unix(100, 0) }

	frames := []struct {
		raw  string
		want bool
	}{
		{`{"type":"call","data":{"id":1,"patientName":"Ana","room":"2"}}`, true},
		{`{"type":"call","data":{"id":1}}`, false},
		{`garbage`, false},
		{`{"type":"recall","data":1}`, true},
		{`{"type":"cancel","data":1}`, true},
	}
	for _, frame := range frames {
		if got := r.Forward("control", "tunos", []byte(frame.raw)); got != frame.want {
			t.Fatalf("Forward(%s)=%v, want %v", frame.raw, got, frame.want)
		}
	}
	if len(screen.Send) != 3 {
		t.Fatalf("expected 3 forwarded frames, got %d", len(screen.Send))
	}

	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)
	cancel()
	recorder.Wait()

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.events) != 2 {
		t.Fatalf("expected call and cancel audited, got %+v", audit.events)
	}
	if audit.events[0].Kind != "call" || audit.events[0].PatientName != "Ana" || audit.events[1].Kind != "cancel" {
		t.Fatalf("unexpected audit events %+v", audit.events)
	}
}

func TestControlPublisherReachesSessions(t *testing.T) {
	h := hub.New()
	screen := &hub.Client{ID: "screen", Channel: "tunos", Send: make(chan []byte, 1)}
	h.Register(screen)
	r := New(h, nil, Options{Channel: "tunos"})
	ctrl := control.New(r.ControlPublisher("relay-control"), control.Options{})
	if _, err := ctrl.IssueCall("Ana", "1"); err != nil {
		t.Fatalf("IssueCall: %v", err)
	}
	msg, err := protocol.Decode(<-screen.Send)
	if err != nil || msg.Type != protocol.KindCall || msg.Ticket.PatientName != "Ana" {
		t.Fatalf("unexpected frame %+v (%v)", msg, err)
	}
}

func TestRawWebsocketThroughServerStack(t *testing.T) {
	h := hub.New()
	r := New(h, nil, Options{Channel: "tunos"})
	ctrl := control.New(r.ControlPublisher("relay-control"), control.Options{Rooms: []string{"1"}})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{IPPerMinute: 60, IPBurst: 5})

	mux := http.NewServeMux()
	httpapi.NewHandler(ctrl, httpapi.Options{Channel: "tunos"}).Register(mux)
	mux.Handle(r.Prefix()+"/", r.Handler())
	srv := httptest.NewServer(otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "tunos-relay"))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/websocket"
	conn, err := client.Dial(context.Background(), url, "tunos")
	if err != nil {
		t.Fatalf("dial through server stack: %v", err)
	}
	defer conn.Close()
	waitFor(t, "display session", func() bool { return h.Count("tunos") == 1 })

	resp, err := http.Post(srv.URL+"/api/control/call", "application/json", strings.NewReader(`{"patient_name":"Ana","room":"1"}`))
	if err != nil {
		t.Fatalf("post call: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	msg := nextFrame(t, conn)
	if msg.Type != protocol.KindCall || msg.Ticket.PatientName != "Ana" || msg.Ticket.Room != "1" {
		t.Fatalf("unexpected frame %+v", msg)
	}
}
