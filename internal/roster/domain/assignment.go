package domain

import (
	"fmt"
	"time"

	"github.com/teleatencion/platform/internal/shared/dates"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Condition is the attention condition of a patient assignment.
// Pendiente is the initial state; Atendido and Desercion are terminal.
type Condition string

const (
	ConditionPendiente Condition = "Pendiente"
	ConditionAtendido  Condition = "Atendido"
	ConditionDesercion Condition = "Deserción"
)

// IsTerminal reports whether no further transition leaves the condition
func (c Condition) IsTerminal() bool {
	return c == ConditionAtendido || c == ConditionDesercion
}

// ConsentState is the patient's teleconsultation consent, editable only
// while the assignment is Pendiente
type ConsentState string

const (
	ConsentUnknown ConsentState = ""
	ConsentGiven   ConsentState = "given"
	ConsentDenied  ConsentState = "denied"
)

// OnsetBand classifies how long ago symptoms started; it drives the
// priority indicator on the roster
type OnsetBand string

const (
	OnsetUnknown  OnsetBand = ""
	OnsetUnder24h OnsetBand = "<24h"
	Onset24To72h  OnsetBand = "24-72h"
	OnsetOver72h  OnsetBand = ">72h"
)

// Priority is the roster priority indicator derived from the onset band
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// BagCategory is the coarse queue/campaign classification used for filtering
type BagCategory string

const (
	BagModule107     BagCategory = "module-107"
	BagDengue        BagCategory = "dengue"
	BagHomeVisit     BagCategory = "home-visit"
	BagReferralQueue BagCategory = "referral-queue"
)

// ChronicTag is a registered chronic-condition tag. Tags are append-only:
// once registered they can never be removed from an assignment.
type ChronicTag string

const (
	ChronicHipertension ChronicTag = "Hipertensión"
	ChronicDiabetes     ChronicTag = "Diabetes"
	ChronicAsma         ChronicTag = "Asma"
	ChronicEPOC         ChronicTag = "EPOC"
	ChronicObesidad     ChronicTag = "Obesidad"
)

// PatientAssignment is the aggregate root for one unit of provider work.
// It is created by the upstream allocation feed and mutated only through
// the transition methods below, so illegal states (an Atendido assignment
// with no outcome, a Desercion with no reason) are unrepresentable.
type PatientAssignment struct {
	ID              types.ID       `json:"id"`
	ProviderID      types.ID       `json:"provider_id"`
	PatientDocument types.Document `json:"patient_document"`
	PatientName     string         `json:"patient_name"`
	Condition       Condition      `json:"condition"`

	// Raw upstream timestamps; only the dates package parses them
	AssignedAt string `json:"assigned_at"`
	AttendedAt string `json:"attended_at,omitempty"`

	Facility string      `json:"facility"`
	Bag      BagCategory `json:"bag"`

	// Pendiente-only editable fields
	Consent   ConsentState `json:"consent"`
	OnsetBand OnsetBand    `json:"onset_band"`

	DesertionReason   *DesertionReason `json:"desertion_reason,omitempty"`
	ChronicConditions []ChronicTag     `json:"chronic_conditions,omitempty"`
	Outcome           *Outcome         `json:"outcome,omitempty"`

	// Scratch note shown while the actor works the assignment; cleared by
	// the explicit Pendiente reset
	Note string `json:"note,omitempty"`

	Events []AssignmentEvent `json:"events,omitempty"`

	// Domain events pending publication (not persisted)
	domainEvents []Event
}

// NewPatientAssignment creates an assignment in the initial Pendiente state.
// sourceTable and sourceID identify the upstream allocation row; both
// upstream tables are normalized into one deterministic ID space.
func NewPatientAssignment(sourceTable, sourceID string, providerID types.ID, document types.Document, name, assignedAt string, facility string, bag BagCategory) (*PatientAssignment, error) {
	if document.IsZero() {
		return nil, fmt.Errorf("patient document is required")
	}
	if providerID.IsZero() {
		return nil, fmt.Errorf("provider is required")
	}
	if name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if sourceTable == "" || sourceID == "" {
		return nil, fmt.Errorf("upstream source reference is required")
	}
	if _, err := dates.ToFacilityDate(assignedAt); err != nil {
		return nil, fmt.Errorf("invalid assignment timestamp: %w", err)
	}

	a := &PatientAssignment{
		ID:              types.NewDeterministicID(sourceTable, sourceID),
		ProviderID:      providerID,
		PatientDocument: document,
		PatientName:     name,
		Condition:       ConditionPendiente,
		AssignedAt:      assignedAt,
		Facility:        facility,
		Bag:             bag,
	}

	a.addEvent(EventTypeAllocated, fmt.Sprintf("Allocated from %s", sourceTable), nil)
	return a, nil
}

// SetConsent records the patient's consent; allowed only while Pendiente
func (a *PatientAssignment) SetConsent(consent ConsentState, actorID types.ID) error {
	if a.Condition.IsTerminal() {
		return errors.Conflict("consent is read-only once the assignment is " + string(a.Condition))
	}

	a.Consent = consent
	a.addEvent(EventTypeFieldPatched, "Consent updated", map[string]any{
		"field": "consent", "value": consent, "actor_id": actorID,
	})
	return nil
}

// SetOnsetBand records the symptom-onset band; allowed only while Pendiente
func (a *PatientAssignment) SetOnsetBand(band OnsetBand, actorID types.ID) error {
	if a.Condition.IsTerminal() {
		return errors.Conflict("onset band is read-only once the assignment is " + string(a.Condition))
	}

	a.OnsetBand = band
	a.addEvent(EventTypeFieldPatched, "Onset band updated", map[string]any{
		"field": "onset_band", "value": band, "actor_id": actorID,
	})
	return nil
}

// MarkDesercion transitions Pendiente -> Desercion with a catalog reason
func (a *PatientAssignment) MarkDesercion(reasonCode string, actorID types.ID) error {
	if a.Condition.IsTerminal() {
		return errors.Conflict("assignment is already " + string(a.Condition))
	}

	reason, ok := DesertionReasonByCode(reasonCode)
	if !ok {
		return errors.Validation("desertion requires a reason from the catalog", map[string]string{
			"reason": reasonCode,
		})
	}

	a.Condition = ConditionDesercion
	a.DesertionReason = &reason
	a.addEvent(EventTypeConditionChanged, "Marked as desertion: "+reason.Label, map[string]any{
		"old_condition": ConditionPendiente,
		"new_condition": ConditionDesercion,
		"reason_code":   reason.Code,
		"actor_id":      actorID,
	})
	return nil
}

// ResetPendiente is the explicit reset action offered as the default
// selection. From Pendiente it is an idempotent no-op that clears the
// scratch note; it is not a reverse edge out of a terminal condition.
func (a *PatientAssignment) ResetPendiente(actorID types.ID) error {
	if a.Condition.IsTerminal() {
		return errors.Conflict("assignment is already " + string(a.Condition))
	}

	a.Note = ""
	return nil
}

// markAtendido applies the terminal Atendido transition. Only the Recorder
// calls it, after outcome validation succeeded, which keeps the invariant
// that Atendido always carries an outcome.
func (a *PatientAssignment) markAtendido(outcome Outcome, now time.Time) {
	a.Condition = ConditionAtendido
	a.AttendedAt = now.UTC().Format(time.RFC3339)
	a.Outcome = &outcome

	for _, tag := range outcome.ChronicRegistration {
		if !a.HasChronic(tag) {
			a.ChronicConditions = append(a.ChronicConditions, tag)
		}
	}

	a.addEvent(EventTypeConditionChanged, "Attention recorded", map[string]any{
		"old_condition": ConditionPendiente,
		"new_condition": ConditionAtendido,
	})
}

// HasChronic reports whether the tag is already registered on the assignment
func (a *PatientAssignment) HasChronic(tag ChronicTag) bool {
	for _, t := range a.ChronicConditions {
		if t == tag {
			return true
		}
	}
	return false
}

// Priority derives the roster priority indicator from the onset band
func (a *PatientAssignment) Priority() Priority {
	switch a.OnsetBand {
	case OnsetUnder24h:
		return PriorityHigh
	case Onset24To72h:
		return PriorityMedium
	case OnsetOver72h:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// ServiceDate is the facility-local date that represents when a provider
// must see this patient: the attended date when present, else the assigned
// date. A zero date means neither timestamp was usable.
func (a *PatientAssignment) ServiceDate() dates.Date {
	if a.AttendedAt != "" {
		if d, err := dates.ToFacilityDate(a.AttendedAt); err == nil {
			return d
		}
	}
	if a.AssignedAt != "" {
		if d, err := dates.ToFacilityDate(a.AssignedAt); err == nil {
			return d
		}
	}
	return dates.Date{}
}

// RescheduleDueDate returns the follow-up due date when the recorded outcome
// requested one: attended date plus the rescheduling interval.
func (a *PatientAssignment) RescheduleDueDate() (dates.Date, bool) {
	if a.Outcome == nil || a.Outcome.Rescheduling == nil || a.AttendedAt == "" {
		return dates.Date{}, false
	}
	attended, err := dates.ToFacilityDate(a.AttendedAt)
	if err != nil {
		return dates.Date{}, false
	}
	return attended.AddDays(a.Outcome.Rescheduling.Days), true
}

// Invariant checks the structural invariants of the aggregate; repositories
// run it on load to reject corrupt upstream rows.
func (a *PatientAssignment) Invariant() error {
	if (a.Condition == ConditionDesercion) != (a.DesertionReason != nil) {
		return fmt.Errorf("desertion reason must be present exactly when condition is Deserción")
	}
	if (a.Condition == ConditionAtendido) != (a.AttendedAt != "") {
		return fmt.Errorf("attended timestamp must be set exactly when condition is Atendido")
	}
	if a.Condition == ConditionAtendido && a.Outcome == nil {
		return fmt.Errorf("attended assignment must carry an outcome")
	}
	return nil
}

// GetDomainEvents returns and clears pending domain events
func (a *PatientAssignment) GetDomainEvents() []Event {
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

// addEvent records a timeline entry and queues it for publication
func (a *PatientAssignment) addEvent(eventType AssignmentEventType, description string, data map[string]any) {
	event := AssignmentEvent{
		ID:           types.NewID(),
		AssignmentID: a.ID,
		Type:         eventType,
		Description:  description,
		Data:         data,
		Timestamp:    time.Now(),
	}

	a.Events = append(a.Events, event)
	a.domainEvents = append(a.domainEvents, Event{
		Type:            string(eventType),
		AssignmentID:    a.ID,
		AssignmentEvent: event,
	})
}

// AssignmentEventType defines types of assignment timeline events
type AssignmentEventType string

const (
	EventTypeAllocated        AssignmentEventType = "allocated"
	EventTypeConditionChanged AssignmentEventType = "condition_changed"
	EventTypeFieldPatched     AssignmentEventType = "field_patched"
	EventTypeOutcomeRecorded  AssignmentEventType = "outcome_recorded"
)

// AssignmentEvent is an entry in the assignment timeline
type AssignmentEvent struct {
	ID           types.ID            `json:"id"`
	AssignmentID types.ID            `json:"assignment_id"`
	Type         AssignmentEventType `json:"type"`
	Description  string              `json:"description"`
	Data         map[string]any      `json:"data,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Event is a domain event for publishing
type Event struct {
	Type            string          `json:"type"`
	AssignmentID    types.ID        `json:"assignment_id"`
	AssignmentEvent AssignmentEvent `json:"assignment_event"`
}
