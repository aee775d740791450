package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the activity trail
type Handler struct {
	repo *Repository
}

// NewHandler creates a new activity trail handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the activity trail routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListEntries)
	r.Get("/verify", h.VerifyChain)

	return r
}

// ListEntries returns trail entries, newest first
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if !user.Can(auth.CapAuditRead) {
		writeError(w, errors.Forbidden("provider cannot read the activity trail"))
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// VerifyChain checks the integrity of the whole trail
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if !user.Can(auth.CapAuditRead) {
		writeError(w, errors.Forbidden("provider cannot read the activity trail"))
		return
	}

	broken, ok, err := h.repo.Verify(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	result := map[string]any{"intact": ok}
	if !ok {
		result["broken_at_sequence"] = broken
	}

	writeJSON(w, http.StatusOK, result)
}

func filterFromQuery(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
	}

	if raw := q.Get("actor_id"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			return filter, errors.BadRequest("invalid actor_id")
		}
		filter.ActorID = id
	}
	if raw := q.Get("resource_id"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			return filter, errors.BadRequest("invalid resource_id")
		}
		filter.ResourceID = id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.BadRequest("invalid from timestamp")
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.BadRequest("invalid to timestamp")
		}
		filter.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.BadRequest("invalid limit")
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.BadRequest("invalid offset")
		}
		filter.Offset = n
	}

	return filter, nil
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
