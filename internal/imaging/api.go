package imaging

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/events"
	"github.com/teleatencion/platform/internal/shared/metrics"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the imaging module
type Handler struct {
	repo    *Repository
	cache   *SummaryCache
	fetcher *BatchFetcher
	bus     events.EventBus
}

// NewHandler creates a new imaging handler
func NewHandler(repo *Repository, cache *SummaryCache, bus events.EventBus) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		fetcher: NewBatchFetcher(repo),
		bus:     bus,
	}
}

// Routes registers the imaging routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/summaries", h.BatchSummaries)

	r.Route("/patients/{document}", func(r chi.Router) {
		r.Get("/", h.ListPatientImages)
		r.Get("/summary", h.GetSummary)
	})

	r.Route("/{imageID}", func(r chi.Router) {
		r.Post("/evaluate", h.EvaluateImage)
		r.Post("/reject", h.RejectImage)
		r.Post("/resubmit", h.ResubmitImage)
	})

	return r
}

// ListPatientImages lists a patient's diagnostic images
func (h *Handler) ListPatientImages(w http.ResponseWriter, r *http.Request) {
	document, err := types.ParseDocument(chi.URLParam(r, "document"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient document"))
		return
	}

	images, err := h.repo.FindByDocument(r.Context(), document)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  images,
		"total": len(images),
	})
}

// GetSummary returns the per-patient image summary the roster displays
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	document, err := types.ParseDocument(chi.URLParam(r, "document"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient document"))
		return
	}

	if cached := h.cache.Get(r.Context(), document); cached != nil {
		metrics.RecordSummaryCacheLookup(true)
		writeJSON(w, http.StatusOK, cached)
		return
	}
	metrics.RecordSummaryCacheLookup(false)

	images, err := h.repo.FindByDocument(r.Context(), document)
	if err != nil {
		writeError(w, err)
		return
	}

	summary := Summarize(document, images)
	h.cache.Set(r.Context(), summary)

	writeJSON(w, http.StatusOK, summary)
}

// BatchSummariesRequest is the batch summary request body
type BatchSummariesRequest struct {
	Documents []types.Document `json:"documents"`
}

// BatchSummaries folds summaries for many patients at once. Failed documents
// are reported alongside the successes instead of failing the whole request.
func (h *Handler) BatchSummaries(w http.ResponseWriter, r *http.Request) {
	var req BatchSummariesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if len(req.Documents) == 0 {
		writeError(w, errors.Validation("at least one document is required", nil))
		return
	}

	result := h.fetcher.FetchSummaries(r.Context(), req.Documents)

	failures := make(map[string]string, len(result.Failures))
	for doc, err := range result.Failures {
		failures[doc.String()] = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summaries": result.Summaries,
		"failures":  failures,
	})
}

// EvaluateRequest is the evaluate request body
type EvaluateRequest struct {
	Verdict Verdict `json:"verdict"`
	Note    string  `json:"note"`
}

// EvaluateImage records or amends a clinical reading
func (h *Handler) EvaluateImage(w http.ResponseWriter, r *http.Request) {
	img, user, ok := h.loadImageAndUser(w, r)
	if !ok {
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	siblings, err := h.repo.FindByDocument(r.Context(), img.PatientDocument)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := GuardEvaluable(siblings); err != nil {
		writeError(w, err)
		return
	}

	evaluator := NewEvaluator(user.ID, user.Capabilities)
	if err := evaluator.Evaluate(img, req.Verdict, req.Note); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordImageEvaluation(string(req.Verdict))
	h.persistTransition(w, r, img, user)
}

// RejectRequest is the reject request body
type RejectRequest struct {
	Note string `json:"note"`
}

// RejectImage marks an unevaluated image as unusable
func (h *Handler) RejectImage(w http.ResponseWriter, r *http.Request) {
	img, user, ok := h.loadImageAndUser(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	evaluator := NewEvaluator(user.ID, user.Capabilities)
	if err := evaluator.Reject(img, req.Note); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordImageRejection()
	h.persistTransition(w, r, img, user)
}

// ResubmitRequest is the resubmit request body
type ResubmitRequest struct {
	StoragePath string `json:"storage_path"`
	CapturedAt  string `json:"captured_at"`
}

// ResubmitImage replaces a rejected image with a fresh upload
func (h *Handler) ResubmitImage(w http.ResponseWriter, r *http.Request) {
	img, user, ok := h.loadImageAndUser(w, r)
	if !ok {
		return
	}

	var req ResubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := img.Resubmit(req.StoragePath, req.CapturedAt); err != nil {
		writeError(w, err)
		return
	}

	h.persistTransition(w, r, img, user)
}

func (h *Handler) loadImageAndUser(w http.ResponseWriter, r *http.Request) (*DiagnosticImage, *auth.User, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, nil, false
	}

	id, err := types.ParseID(chi.URLParam(r, "imageID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid image ID"))
		return nil, nil, false
	}

	img, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}

	return img, user, true
}

func (h *Handler) persistTransition(w http.ResponseWriter, r *http.Request, img *DiagnosticImage, user *auth.User) {
	if err := h.repo.Update(r.Context(), img); err != nil {
		writeError(w, err)
		return
	}

	h.cache.Invalidate(r.Context(), img.PatientDocument)

	if h.bus != nil {
		for _, domainEvent := range img.GetDomainEvents() {
			event := events.NewEvent(string(domainEvent.Type), "imaging", map[string]any{
				"image_id":         domainEvent.ImageID,
				"patient_document": img.PatientDocument.Masked(),
				"data":             domainEvent.Data,
			}).WithActor(user.ID, "provider", user.Facility)
			h.bus.Publish(r.Context(), event)
		}
	}

	writeJSON(w, http.StatusOK, img)
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
