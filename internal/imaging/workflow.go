package imaging

import (
	"time"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Evaluator applies clinical readings to diagnostic images on behalf of a
// provider. The capability set is fixed when the evaluator is built.
type Evaluator struct {
	providerID types.ID
	caps       auth.CapabilitySet
	now        func() time.Time
}

// NewEvaluator creates an evaluator for a provider
func NewEvaluator(providerID types.ID, caps auth.CapabilitySet) *Evaluator {
	return &Evaluator{
		providerID: providerID,
		caps:       caps,
		now:        time.Now,
	}
}

// WithClock overrides the evaluator clock, for tests
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate records a verdict on an image, or amends an existing one
func (e *Evaluator) Evaluate(img *DiagnosticImage, verdict Verdict, note string) error {
	if !e.caps.Has(auth.CapImageEvaluate) {
		return errors.Forbidden("provider cannot evaluate diagnostic images")
	}
	return img.evaluate(verdict, note, e.providerID, e.now())
}

// Reject marks an unevaluated image as unusable
func (e *Evaluator) Reject(img *DiagnosticImage, note string) error {
	if !e.caps.Has(auth.CapImageEvaluate) {
		return errors.Forbidden("provider cannot evaluate diagnostic images")
	}
	return img.reject(note, e.providerID, e.now())
}

// GuardEvaluable returns a Conflict while any of the patient's images is
// Rejected. A rejected upload blocks evaluation for the whole patient until
// it is resubmitted, not just for the rejected image itself.
func GuardEvaluable(images []DiagnosticImage) error {
	for _, img := range images {
		if img.State == StateRejected {
			return errors.Conflict("patient has a rejected image pending resubmission")
		}
	}
	return nil
}
