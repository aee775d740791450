package imaging

import (
	"github.com/teleatencion/platform/internal/shared/types"
)

// PatientImageSummary is the per-patient view the roster shows. A rejected
// image anywhere in the set blocks further evaluation until resubmission.
type PatientImageSummary struct {
	PatientDocument types.Document `json:"patient_document"`
	TotalImages     int            `json:"total_images"`
	HasRejected     bool           `json:"has_rejected"`
	LastVerdict     Verdict        `json:"last_verdict,omitempty"`
	LastNote        string         `json:"last_note,omitempty"`
	LastEvaluatedAt string         `json:"last_evaluated_at,omitempty"`
}

// CanEvaluate reports whether the evaluate action is available for this patient
func (s PatientImageSummary) CanEvaluate() bool {
	return !s.HasRejected
}

// Summarize folds a patient's images into the roster summary. The most
// recently evaluated image supplies the verdict and note; evaluation
// timestamps are written by this package in RFC3339 UTC, so lexicographic
// comparison orders them correctly.
func Summarize(document types.Document, images []DiagnosticImage) PatientImageSummary {
	summary := PatientImageSummary{
		PatientDocument: document,
		TotalImages:     len(images),
	}

	for _, img := range images {
		switch img.State {
		case StateRejected:
			summary.HasRejected = true
		case StateEvaluated:
			if img.EvaluatedAt > summary.LastEvaluatedAt {
				summary.LastEvaluatedAt = img.EvaluatedAt
				summary.LastVerdict = img.Verdict
				summary.LastNote = img.EvaluationNote
			}
		}
	}

	return summary
}
