package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/dates"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/events"
	"github.com/teleatencion/platform/internal/shared/metrics"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the roster module
type Handler struct {
	repo domain.Repository
	bus  events.EventBus
}

// NewHandler creates a new roster handler
func NewHandler(repo domain.Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the roster routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRoster)
	r.Get("/desertion-reasons", h.ListDesertionReasons)

	r.Route("/{assignmentID}", func(r chi.Router) {
		r.Get("/", h.GetAssignment)
		r.Patch("/", h.PatchAssignment)

		// Condition transitions
		r.Post("/attend", h.RecordAttention)
		r.Post("/desercion", h.MarkDesercion)
		r.Post("/reset", h.ResetPendiente)

		r.Get("/events", h.GetTimeline)
	})

	return r
}

// --- Request/Response types ---

type PatchAssignmentRequest struct {
	Consent   *domain.ConsentState `json:"consent,omitempty"`
	OnsetBand *domain.OnsetBand    `json:"onset_band,omitempty"`
}

type RecordAttentionRequest struct {
	Outcome domain.Outcome `json:"outcome"`
}

type MarkDesercionRequest struct {
	ReasonCode string `json:"reason_code"`
}

// AssignmentResponse wraps an assignment with its derived roster fields
type AssignmentResponse struct {
	*domain.PatientAssignment
	Priority    domain.Priority `json:"priority"`
	ServiceDate string          `json:"service_date,omitempty"`
	DueDate     string          `json:"due_date,omitempty"`
}

func toResponse(a *domain.PatientAssignment) AssignmentResponse {
	resp := AssignmentResponse{
		PatientAssignment: a,
		Priority:          a.Priority(),
	}
	if d := a.ServiceDate(); !d.IsZero() {
		resp.ServiceDate = d.String()
	}
	if due, ok := a.RescheduleDueDate(); ok {
		resp.DueDate = due.String()
	}
	return resp
}

// --- Handlers ---

// ListRoster lists the authenticated provider's roster with filters applied
func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if !user.Can(auth.CapRosterRead) {
		writeError(w, errors.Forbidden("provider cannot read the roster"))
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	roster, err := h.repo.FindByProvider(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	visible := domain.ApplyFilter(roster, filter)

	data := make([]AssignmentResponse, 0, len(visible))
	for i := range visible {
		data = append(data, toResponse(&visible[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// filterFromQuery builds the filter state from query parameters. An absent
// parameter means no restriction.
func filterFromQuery(r *http.Request) (domain.FilterState, error) {
	q := r.URL.Query()

	filter := domain.FilterState{
		Search:   q.Get("search"),
		Facility: q.Get("facility"),
		DateMode: domain.DateRangeMode(q.Get("date_mode")),
		Sort:     domain.SortMode(q.Get("sort")),
	}

	if c := q.Get("condition"); c != "" {
		condition := domain.Condition(c)
		filter.Condition = &condition
	}
	if b := q.Get("bag"); b != "" {
		bag := domain.BagCategory(b)
		filter.Bag = &bag
	}

	if from := q.Get("from"); from != "" {
		d, err := dates.ToFacilityDate(from)
		if err != nil {
			return filter, errors.BadRequest("invalid from date")
		}
		filter.From = d
	}
	if to := q.Get("to"); to != "" {
		d, err := dates.ToFacilityDate(to)
		if err != nil {
			return filter, errors.BadRequest("invalid to date")
		}
		filter.To = d
	}

	return filter, nil
}

// GetAssignment returns one assignment with derived fields
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(a))
}

// PatchAssignment updates Pendiente-only fields
func (h *Handler) PatchAssignment(w http.ResponseWriter, r *http.Request) {
	a, user, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}

	var req PatchAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Consent != nil {
		if err := a.SetConsent(*req.Consent, user.ID); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.OnsetBand != nil {
		if err := a.SetOnsetBand(*req.OnsetBand, user.ID); err != nil {
			writeError(w, err)
			return
		}
	}

	h.persist(w, r, a, user)
}

// RecordAttention validates and records an attention outcome, transitioning
// the assignment to Atendido
func (h *Handler) RecordAttention(w http.ResponseWriter, r *http.Request) {
	a, user, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}

	var req RecordAttentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	req.Outcome.RecordedBy = user.Name

	recorder := domain.NewRecorder(user.Capabilities)
	if err := recorder.Record(a, req.Outcome); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAttention(string(a.Bag), a.Facility)
	metrics.RecordConditionChange(string(domain.ConditionPendiente), string(domain.ConditionAtendido))

	h.persist(w, r, a, user)
}

// MarkDesercion transitions the assignment to Deserción with a catalog reason
func (h *Handler) MarkDesercion(w http.ResponseWriter, r *http.Request) {
	a, user, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}

	var req MarkDesercionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if !user.Can(auth.CapConditionManage) {
		writeError(w, errors.Forbidden("provider cannot change assignment conditions"))
		return
	}

	if err := a.MarkDesercion(req.ReasonCode, user.ID); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordConditionChange(string(domain.ConditionPendiente), string(domain.ConditionDesercion))
	if a.DesertionReason != nil {
		metrics.RecordDesertion(string(a.DesertionReason.Group))
	}

	h.persist(w, r, a, user)
}

// ResetPendiente applies the explicit Pendiente reset
func (h *Handler) ResetPendiente(w http.ResponseWriter, r *http.Request) {
	a, user, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}

	if !user.Can(auth.CapConditionManage) {
		writeError(w, errors.Forbidden("provider cannot change assignment conditions"))
		return
	}

	if err := a.ResetPendiente(user.ID); err != nil {
		writeError(w, err)
		return
	}

	h.persist(w, r, a, user)
}

// GetTimeline returns the assignment's event timeline
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.loadAssignment(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  a.Events,
		"total": len(a.Events),
	})
}

// ListDesertionReasons serves the desertion reason catalog grouped for the
// console's reason picker
func (h *Handler) ListDesertionReasons(w http.ResponseWriter, r *http.Request) {
	if g := r.URL.Query().Get("group"); g != "" {
		reasons := domain.DesertionReasonsByGroup(domain.ReasonGroup(g))
		writeJSON(w, http.StatusOK, map[string]any{"data": reasons, "total": len(reasons)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  domain.DesertionReasons,
		"total": len(domain.DesertionReasons),
	})
}

// --- Helpers ---

func (h *Handler) loadAssignment(w http.ResponseWriter, r *http.Request) (*domain.PatientAssignment, *auth.User, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, nil, false
	}

	id, err := types.ParseID(chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid assignment ID"))
		return nil, nil, false
	}

	a, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}

	return a, user, true
}

func (h *Handler) persist(w http.ResponseWriter, r *http.Request, a *domain.PatientAssignment, user *auth.User) {
	if err := h.repo.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		for _, domainEvent := range a.GetDomainEvents() {
			event := events.NewEvent("roster."+domainEvent.Type, "roster", map[string]any{
				"assignment_id":    domainEvent.AssignmentID,
				"patient_document": a.PatientDocument.Masked(),
				"event":            domainEvent.AssignmentEvent,
			}).WithActor(user.ID, "provider", user.Facility)
			h.bus.Publish(r.Context(), event)
		}
	}

	writeJSON(w, http.StatusOK, toResponse(a))
}

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
