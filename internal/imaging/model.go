package imaging

import (
	"time"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// EvaluationState is the lifecycle state of a diagnostic image
type EvaluationState string

const (
	StateUnevaluated EvaluationState = "Unevaluated"
	StateEvaluated   EvaluationState = "Evaluated"
	StateRejected    EvaluationState = "Rejected"
)

// Verdict is the clinical reading attached to an evaluated image
type Verdict string

const (
	VerdictNormal       Verdict = "Normal"
	VerdictAbnormal     Verdict = "Anormal"
	VerdictInconclusive Verdict = "No concluyente"
)

// ValidVerdict reports whether v is one of the three accepted readings
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictNormal, VerdictAbnormal, VerdictInconclusive:
		return true
	}
	return false
}

// Modality identifies the kind of study uploaded from the facility
type Modality string

const (
	ModalityFundus Modality = "Fondo de ojo"
	ModalityECG    Modality = "Electrocardiograma"
	ModalityDerma  Modality = "Dermatoscopia"
)

// DiagnosticImage is an uploaded study awaiting or carrying an evaluation.
// CapturedAt is stored exactly as the upstream system delivered it; only
// the shared dates package ever parses it.
type DiagnosticImage struct {
	ID              types.ID        `json:"id"`
	PatientDocument types.Document  `json:"patient_document"`
	Modality        Modality        `json:"modality"`
	StoragePath     string          `json:"storage_path"`
	CapturedAt      string          `json:"captured_at"`
	State           EvaluationState `json:"state"`
	Verdict         Verdict         `json:"verdict,omitempty"`
	EvaluationNote  string          `json:"evaluation_note,omitempty"`
	RejectionNote   string          `json:"rejection_note,omitempty"`
	EvaluatedBy     types.ID        `json:"evaluated_by,omitempty"`
	EvaluatedAt     string          `json:"evaluated_at,omitempty"`
	Version         int             `json:"version"`

	domainEvents []ImageEvent
}

// NewDiagnosticImage creates an image record from an upstream upload. The ID
// is derived from the upstream row so re-polling the feed cannot duplicate it.
func NewDiagnosticImage(sourceID string, document types.Document, modality Modality, storagePath, capturedAt string) (*DiagnosticImage, error) {
	if sourceID == "" {
		return nil, errors.Validation("source ID is required", nil)
	}
	if document.IsZero() {
		return nil, errors.Validation("patient document is required", nil)
	}
	if storagePath == "" {
		return nil, errors.Validation("storage path is required", nil)
	}

	img := &DiagnosticImage{
		ID:              types.NewDeterministicID("imagen_diagnostica", sourceID),
		PatientDocument: document,
		Modality:        modality,
		StoragePath:     storagePath,
		CapturedAt:      capturedAt,
		State:           StateUnevaluated,
		Version:         1,
	}

	img.addEvent(ImageEventUploaded, map[string]any{
		"modality": string(modality),
	})

	return img, nil
}

// evaluate records or amends a clinical reading. A rejected image stays
// blocked until the facility resubmits it.
func (img *DiagnosticImage) evaluate(verdict Verdict, note string, by types.ID, now time.Time) error {
	if !ValidVerdict(verdict) {
		return errors.Validation("unknown verdict", nil)
	}
	if img.State == StateRejected {
		return errors.Conflict("a rejected image must be resubmitted before evaluation")
	}

	amendment := img.State == StateEvaluated

	img.State = StateEvaluated
	img.Verdict = verdict
	img.EvaluationNote = note
	img.EvaluatedBy = by
	img.EvaluatedAt = now.UTC().Format(time.RFC3339)

	eventType := ImageEventEvaluated
	if amendment {
		eventType = ImageEventAmended
	}
	img.addEvent(eventType, map[string]any{
		"verdict": string(verdict),
	})

	return nil
}

// reject marks an image as unusable. Only an unevaluated image can be
// rejected; amending an evaluation into a rejection is not allowed.
func (img *DiagnosticImage) reject(note string, by types.ID, now time.Time) error {
	if note == "" {
		return errors.Validation("rejection note is required", nil)
	}
	if img.State != StateUnevaluated {
		return errors.Conflict("only an unevaluated image can be rejected")
	}

	img.State = StateRejected
	img.RejectionNote = note
	img.EvaluatedBy = by
	img.EvaluatedAt = now.UTC().Format(time.RFC3339)

	img.addEvent(ImageEventRejected, nil)

	return nil
}

// Resubmit replaces a rejected image with a fresh upload from the facility
// and returns it to the unevaluated state.
func (img *DiagnosticImage) Resubmit(storagePath, capturedAt string) error {
	if img.State != StateRejected {
		return errors.Conflict("only a rejected image can be resubmitted")
	}
	if storagePath == "" {
		return errors.Validation("storage path is required", nil)
	}

	img.State = StateUnevaluated
	img.StoragePath = storagePath
	img.CapturedAt = capturedAt
	img.Verdict = ""
	img.EvaluationNote = ""
	img.RejectionNote = ""
	img.EvaluatedBy = ""
	img.EvaluatedAt = ""
	img.Version++

	img.addEvent(ImageEventResubmitted, map[string]any{
		"version": img.Version,
	})

	return nil
}

// ImageEventType identifies image lifecycle events
type ImageEventType string

const (
	ImageEventUploaded    ImageEventType = "image.uploaded"
	ImageEventEvaluated   ImageEventType = "image.evaluated"
	ImageEventAmended     ImageEventType = "image.evaluation_amended"
	ImageEventRejected    ImageEventType = "image.rejected"
	ImageEventResubmitted ImageEventType = "image.resubmitted"
)

// ImageEvent is a domain event raised by an image transition
type ImageEvent struct {
	Type    ImageEventType `json:"type"`
	ImageID types.ID       `json:"image_id"`
	Data    map[string]any `json:"data,omitempty"`
}

func (img *DiagnosticImage) addEvent(eventType ImageEventType, data map[string]any) {
	img.domainEvents = append(img.domainEvents, ImageEvent{
		Type:    eventType,
		ImageID: img.ID,
		Data:    data,
	})
}

// GetDomainEvents returns and clears pending domain events
func (img *DiagnosticImage) GetDomainEvents() []ImageEvent {
	events := img.domainEvents
	img.domainEvents = nil
	return events
}
