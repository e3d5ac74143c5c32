package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/queue"

	"github.com/google/uuid"
)

// QueueService is the facade surface this API translates to HTTP.
type QueueService interface {
	Enqueue(ctx context.Context, input queue.EnqueueInput) (models.Ticket, error)
	Get(ctx context.Context, ticketID string) (models.Ticket, error)
	Serve(ctx context.Context, ticketID string) (models.Ticket, error)
	Complete(ctx context.Context, ticketID string) (models.Ticket, error)
	Cancel(ctx context.Context, ticketID string) (models.Ticket, error)
	Skip(ctx context.Context, ticketID string) (models.Ticket, error)
	Requeue(ctx context.Context, ticketID string) (models.Ticket, error)
	MarkNoShow(ctx context.Context, ticketID string) (models.Ticket, error)
	Alert(ctx context.Context, ticketID string) (models.Ticket, error)
	ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error)
	GetMetrics(ctx context.Context, businessID string, start, end time.Time) (queue.MetricsReport, error)
}

type Handler struct {
	service QueueService
}

type enqueueRequest struct {
	BusinessID   string `json:"business_id"`
	QueuePointID string `json:"queue_point_id"`
	ServiceType  string `json:"service_type"`
	Priority     bool   `json:"priority"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(service QueueService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleEnqueue)
	mux.HandleFunc("/api/tickets/", h.handleTicket)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/metrics", h.handleMetrics)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.QueuePointID = strings.TrimSpace(req.QueuePointID)
	req.ServiceType = strings.TrimSpace(req.ServiceType)

	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}
	if !isValidUUID(req.BusinessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}
	if req.QueuePointID != "" && !isValidUUID(req.QueuePointID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "queue_point_id must be a UUID when provided")
		return
	}

	ticket, err := h.service.Enqueue(r.Context(), queue.EnqueueInput{
		BusinessID:   req.BusinessID,
		QueuePointID: req.QueuePointID,
		ServiceType:  req.ServiceType,
		Priority:     req.Priority,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}
	ticket, err := h.service.Get(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	var apply func(context.Context, string) (models.Ticket, error)
	switch action {
	case "serve":
		apply = h.service.Serve
	case "complete":
		apply = h.service.Complete
	case "cancel":
		apply = h.service.Cancel
	case "skip":
		apply = h.service.Skip
	case "requeue":
		apply = h.service.Requeue
	case "no-show":
		apply = h.service.MarkNoShow
	case "alert":
		apply = h.service.Alert
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ticket, err := apply(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	queuePointID := strings.TrimSpace(r.URL.Query().Get("queue_point_id"))
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}
	if !isValidUUID(businessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}
	if queuePointID != "" && !isValidUUID(queuePointID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "queue_point_id must be a UUID when provided")
		return
	}

	tickets, err := h.service.ListWaiting(r.Context(), businessID, queuePointID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" || !isValidUUID(businessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required and must be a UUID")
		return
	}

	from := time.Now().UTC().Add(-24 * time.Hour)
	to := time.Now().UTC()
	if fromRaw := strings.TrimSpace(r.URL.Query().Get("from")); fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		from = parsed
	}
	if toRaw := strings.TrimSpace(r.URL.Query().Get("to")); toRaw != "" {
		parsed, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		to = parsed
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_request", "to must be after from")
		return
	}

	report, err := h.service.GetMetrics(r.Context(), businessID, from, to)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, queue.ErrIntegrity):
		return http.StatusConflict, "integrity_violation", err.Error()
	case errors.Is(err, queue.ErrNotAlertable):
		return http.StatusConflict, "not_alertable", err.Error()
	case errors.Is(err, queue.ErrAllocation):
		return http.StatusConflict, "allocation_failed", err.Error()
	case errors.Is(err, queue.ErrDependency):
		return http.StatusBadGateway, "dependency_error", "upstream dependency failed"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
