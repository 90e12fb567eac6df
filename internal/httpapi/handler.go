package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zull0910/tunos/internal/control"
	"github.com/zull0910/tunos/internal/protocol"
	"github.com/zull0910/tunos/internal/store"
)

type Controller interface {
	IssueCall(name, room string) (protocol.Ticket, error)
	Cancel() (protocol.Ticket, bool, error)
	Complete() (protocol.Ticket, bool, error)
	Active() (protocol.Ticket, bool)
	Rooms() []string
}

type Handler struct {
	control Controller
	audit   store.AuditStore
	channel string
}

type Options struct {
	Channel string
	Audit   store.AuditStore
}

type callRequest struct {
	PatientName string `json:"patient_name"`
	Room        string `json:"room"`
}

type controlState struct {
	Active  *protocol.Ticket `json:"active"`
	Rooms   []string         `json:"rooms"`
	Channel string           `json:"channel"`
}

type finishResponse struct {
	Ticket  *protocol.Ticket `json:"ticket"`
	Changed bool             `json:"changed"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(ctrl Controller, options Options) *Handler {
	return &Handler{control: ctrl, audit: options.Audit, channel: options.Channel}
}

// Register mounts the control and audit routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/control", h.handleState)
	mux.HandleFunc("/api/control/call", h.handleCall)
	mux.HandleFunc("/api/control/cancel", h.handleFinish(h.control.Cancel))
	mux.HandleFunc("/api/control/complete", h.handleFinish(h.control.Complete))
	mux.HandleFunc("/api/audit", h.handleAudit)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state := controlState{Rooms: h.control.Rooms(), Channel: h.channel}
	if ticket, ok := h.control.Active(); ok {
		state.Active = &ticket
	}
	if state.Rooms == nil {
		state.Rooms = []string{}
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := requestIDFrom(r)
	var req callRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	ticket, err := h.control.IssueCall(req.PatientName, req.Room)
	if err != nil && !errors.Is(err, control.ErrNotDelivered) {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleFinish(finish func() (protocol.Ticket, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ticket, changed, err := finish()
		if err != nil && !errors.Is(err, control.ErrNotDelivered) {
			status, code, msg := mapError(err)
			writeError(w, requestIDFrom(r), status, code, msg)
			return
		}
		resp := finishResponse{Changed: changed}
		if changed {
			resp.Ticket = &ticket
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFrom(r)
	if h.audit == nil {
		status, code, msg := mapError(store.ErrAuditDisabled)
		writeError(w, requestID, status, code, msg)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = value
	}
	events, err := h.audit.ListEvents(r.Context(), limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func requestIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func mapError(err error) (int, string, string) {
	var verr *control.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed", verr.Error()
	case errors.Is(err, control.ErrTicketActive):
		return http.StatusConflict, "ticket_active", "a ticket is already being called"
	case errors.Is(err, store.ErrAuditDisabled):
		return http.StatusServiceUnavailable, "audit_disabled", "audit trail is not configured"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}
