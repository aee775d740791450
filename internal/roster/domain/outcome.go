package domain

import (
	"fmt"
	"time"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
)

// ReschedulingDays is the fixed set of allowed follow-up intervals; free
// integers are rejected.
var ReschedulingDays = []int{7, 15, 30, 60, 90, 180}

// Rescheduling requests a follow-up consultation. The due date is the
// normalized attendance date plus Days.
type Rescheduling struct {
	Days int `json:"days"`
}

// Referral routes the patient to a different specialty. TargetSpecialty is
// required only when Enabled is set; an empty specialty with the flag off is
// not an error.
type Referral struct {
	Enabled         bool   `json:"enabled"`
	TargetSpecialty string `json:"target_specialty,omitempty"`
}

// Outcome captures the structured result of an attention. All action blocks
// are independently optional; the nursing block additionally requires the
// nursing capability.
type Outcome struct {
	Rescheduling        *Rescheduling      `json:"rescheduling,omitempty"`
	Referral            *Referral          `json:"referral,omitempty"`
	ChronicRegistration []ChronicTag       `json:"chronic_registration,omitempty"`
	Nursing             *NursingAssessment `json:"nursing,omitempty"`
	NursingSummary      *NursingSummary    `json:"nursing_summary,omitempty"`
	Note                string             `json:"note,omitempty"`
	RecordedBy          string             `json:"recorded_by,omitempty"`
}

// Recorder validates attention outcomes and applies the Pendiente -> Atendido
// transition. The capability set is resolved once at session start and
// injected here; the recorder never re-derives it.
type Recorder struct {
	caps auth.CapabilitySet
	now  func() time.Time
}

// NewRecorder creates a recorder bound to a session capability set
func NewRecorder(caps auth.CapabilitySet) *Recorder {
	return &Recorder{caps: caps, now: time.Now}
}

// WithClock overrides the recorder clock, for tests
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record validates the outcome and, only on success, transitions the
// assignment to Atendido with the outcome attached. On failure the
// assignment is left untouched.
func (r *Recorder) Record(a *PatientAssignment, outcome Outcome) error {
	if !r.caps.Has(auth.CapAttentionRecord) {
		return errors.Forbidden("recording an attention requires the attention capability")
	}
	if a.Condition.IsTerminal() {
		return errors.Conflict("assignment is already " + string(a.Condition))
	}

	if err := r.validate(a, &outcome); err != nil {
		return err
	}

	if outcome.Nursing != nil {
		summary := outcome.Nursing.Summarize()
		outcome.NursingSummary = &summary
	}

	a.markAtendido(outcome, r.now())
	return nil
}

func (r *Recorder) validate(a *PatientAssignment, outcome *Outcome) error {
	if outcome.Rescheduling != nil {
		if !allowedReschedulingDays(outcome.Rescheduling.Days) {
			return errors.Validation(
				fmt.Sprintf("rescheduling interval must be one of %v days", ReschedulingDays),
				map[string]string{"rescheduling.days": fmt.Sprintf("%d", outcome.Rescheduling.Days)},
			)
		}
	}

	if outcome.Referral != nil && outcome.Referral.Enabled && outcome.Referral.TargetSpecialty == "" {
		return errors.Validation("referral requires a target specialty", map[string]string{
			"referral.target_specialty": "required when referral is enabled",
		})
	}

	// Chronic registration submits the full desired tag set; previously
	// registered tags are locked and must all still be present.
	if outcome.ChronicRegistration != nil {
		submitted := make(map[ChronicTag]bool, len(outcome.ChronicRegistration))
		for _, tag := range outcome.ChronicRegistration {
			submitted[tag] = true
		}
		for _, existing := range a.ChronicConditions {
			if !submitted[existing] {
				return errors.Validation("cannot unregister existing chronic condition", map[string]string{
					"chronic_registration": string(existing),
				})
			}
		}
	}

	if outcome.Nursing != nil {
		if !r.caps.Has(auth.CapNursingAssessment) {
			return errors.Forbidden("nursing assessment requires the nursing capability")
		}
		if err := outcome.Nursing.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func allowedReschedulingDays(days int) bool {
	for _, d := range ReschedulingDays {
		if d == days {
			return true
		}
	}
	return false
}
