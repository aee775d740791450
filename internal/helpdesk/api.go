package helpdesk

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/metrics"
)

// Handler provides HTTP handlers for help-desk tickets
type Handler struct {
	client *Client
}

// NewHandler creates a new help-desk handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Routes registers the help-desk routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/motives", h.GetMotives)
	r.Post("/tickets", h.CreateTicket)
	r.Get("/tickets/{ticketID}", h.GetTicket)
	r.Get("/health", h.HealthCheck)

	return r
}

// GetMotives returns the ticket motive catalog
func (h *Handler) GetMotives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"motives": MotiveCatalog,
	})
}

// CreateTicket opens a ticket with the external help-desk service
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if !user.Can(auth.CapHelpdeskTicket) {
		writeError(w, errors.Forbidden("provider cannot open help-desk tickets"))
		return
	}

	var req TicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	if appErr := req.Validate(); appErr != nil {
		writeError(w, appErr)
		return
	}
	if req.Facility == "" {
		req.Facility = user.Facility
	}

	ticket, err := h.client.CreateTicket(r.Context(), user.Name, req)
	if err != nil {
		writeError(w, errors.Unavailable("help-desk service unavailable", err))
		return
	}

	metrics.RecordHelpdeskTicket(string(ticket.Motive), string(ticket.Status))
	writeJSON(w, http.StatusCreated, ticket)
}

// GetTicket returns the current state of a ticket
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	ticket, err := h.client.GetTicket(r.Context(), ticketID)
	if err != nil {
		writeError(w, errors.Unavailable("help-desk service unavailable", err))
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// HealthCheck checks help-desk service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
