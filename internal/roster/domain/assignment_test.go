package domain

import (
	"testing"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

func newTestAssignment(t *testing.T) *PatientAssignment {
	t.Helper()
	a, err := NewPatientAssignment(
		"teleconsulta_asignaciones", "48213",
		types.NewID(),
		types.Document("12345678"),
		"María Quispe",
		"2026-02-13T00:20:00Z",
		"CAP-III-Surquillo",
		BagModule107,
	)
	if err != nil {
		t.Fatalf("NewPatientAssignment: %v", err)
	}
	return a
}

// TestNewPatientAssignment tests allocation into the initial state
func TestNewPatientAssignment(t *testing.T) {
	a := newTestAssignment(t)

	if a.Condition != ConditionPendiente {
		t.Errorf("expected condition %s, got %s", ConditionPendiente, a.Condition)
	}
	if a.ID.IsZero() {
		t.Error("expected non-zero ID")
	}
	if len(a.Events) != 1 || a.Events[0].Type != EventTypeAllocated {
		t.Errorf("expected a single allocation event, got %v", a.Events)
	}

	// Same upstream row always normalizes to the same ID
	b, err := NewPatientAssignment("teleconsulta_asignaciones", "48213", types.NewID(),
		types.Document("12345678"), "María Quispe", "2026-02-13T00:20:00Z", "CAP-III-Surquillo", BagModule107)
	if err != nil {
		t.Fatalf("NewPatientAssignment: %v", err)
	}
	if a.ID != b.ID {
		t.Error("expected deterministic ID for the same upstream row")
	}

	// Different upstream table yields a different ID for the same row key
	c, _ := NewPatientAssignment("padomi_visitas", "48213", types.NewID(),
		types.Document("12345678"), "María Quispe", "2026-02-13T00:20:00Z", "CAP-III-Surquillo", BagHomeVisit)
	if a.ID == c.ID {
		t.Error("expected distinct IDs for distinct upstream tables")
	}
}

// TestNewPatientAssignmentValidation tests constructor validation
func TestNewPatientAssignmentValidation(t *testing.T) {
	providerID := types.NewID()

	tests := []struct {
		name       string
		document   types.Document
		patient    string
		assignedAt string
	}{
		{"empty document", "", "María Quispe", "2026-02-13T00:20:00Z"},
		{"empty name", "12345678", "", "2026-02-13T00:20:00Z"},
		{"bad timestamp", "12345678", "María Quispe", "13/02/2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatientAssignment("teleconsulta_asignaciones", "1", providerID,
				tt.document, tt.patient, tt.assignedAt, "CAP-III-Surquillo", BagModule107)
			if err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

// TestMarkDesercion tests the desertion transition and its reason catalog
func TestMarkDesercion(t *testing.T) {
	actor := types.NewID()

	t.Run("requires a catalog reason", func(t *testing.T) {
		a := newTestAssignment(t)

		err := a.MarkDesercion("", actor)
		if !errors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}

		err = a.MarkDesercion("made_up_reason", actor)
		if !errors.IsValidation(err) {
			t.Fatalf("expected validation error for unknown code, got %v", err)
		}

		if a.Condition != ConditionPendiente {
			t.Error("failed transition must not change the condition")
		}
	})

	t.Run("stores the reason", func(t *testing.T) {
		a := newTestAssignment(t)

		if err := a.MarkDesercion("no_answer", actor); err != nil {
			t.Fatalf("MarkDesercion: %v", err)
		}
		if a.Condition != ConditionDesercion {
			t.Errorf("expected condition %s, got %s", ConditionDesercion, a.Condition)
		}
		if a.DesertionReason == nil || a.DesertionReason.Code != "no_answer" {
			t.Errorf("expected stored reason no_answer, got %v", a.DesertionReason)
		}
		if a.DesertionReason.Group != ReasonGroupContact {
			t.Errorf("expected contact group, got %s", a.DesertionReason.Group)
		}
		if err := a.Invariant(); err != nil {
			t.Errorf("invariant violated: %v", err)
		}
	})

	t.Run("terminal state is final", func(t *testing.T) {
		a := newTestAssignment(t)
		a.MarkDesercion("deceased", actor)

		if err := a.MarkDesercion("no_answer", actor); !errors.IsConflict(err) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

// TestPendienteFieldGating tests that consent and onset band are editable
// only while Pendiente
func TestPendienteFieldGating(t *testing.T) {
	actor := types.NewID()

	a := newTestAssignment(t)
	if err := a.SetConsent(ConsentGiven, actor); err != nil {
		t.Fatalf("SetConsent while Pendiente: %v", err)
	}
	if err := a.SetOnsetBand(OnsetUnder24h, actor); err != nil {
		t.Fatalf("SetOnsetBand while Pendiente: %v", err)
	}

	a.MarkDesercion("declines_teleconsult", actor)

	if err := a.SetConsent(ConsentDenied, actor); !errors.IsConflict(err) {
		t.Errorf("expected conflict editing consent after desertion, got %v", err)
	}
	if err := a.SetOnsetBand(OnsetOver72h, actor); !errors.IsConflict(err) {
		t.Errorf("expected conflict editing onset band after desertion, got %v", err)
	}

	// Values recorded before the transition are preserved
	if a.Consent != ConsentGiven || a.OnsetBand != OnsetUnder24h {
		t.Error("terminal transition must not alter previously recorded fields")
	}
}

// TestResetPendiente tests the explicit reset action
func TestResetPendiente(t *testing.T) {
	actor := types.NewID()

	a := newTestAssignment(t)
	a.Note = "draft note"

	if err := a.ResetPendiente(actor); err != nil {
		t.Fatalf("ResetPendiente from Pendiente: %v", err)
	}
	if a.Note != "" {
		t.Error("reset must clear the scratch note")
	}
	if a.Condition != ConditionPendiente {
		t.Error("reset must be a no-op on the condition")
	}

	a.MarkDesercion("hospitalized", actor)
	if err := a.ResetPendiente(actor); !errors.IsConflict(err) {
		t.Errorf("expected conflict resetting a terminal assignment, got %v", err)
	}
}

// TestPriorityIndicator tests the onset-band derived priority
func TestPriorityIndicator(t *testing.T) {
	tests := []struct {
		band OnsetBand
		want Priority
	}{
		{OnsetUnder24h, PriorityHigh},
		{Onset24To72h, PriorityMedium},
		{OnsetOver72h, PriorityLow},
		{OnsetUnknown, PriorityNone},
	}

	for _, tt := range tests {
		a := newTestAssignment(t)
		a.OnsetBand = tt.band
		if got := a.Priority(); got != tt.want {
			t.Errorf("Priority() with band %q = %s, want %s", tt.band, got, tt.want)
		}
	}
}

// TestServiceDateFallback tests the attended-then-assigned date fallback
func TestServiceDateFallback(t *testing.T) {
	a := newTestAssignment(t)

	// Assigned at 00:20 UTC on Feb 13 -> facility date Feb 12
	if got := a.ServiceDate().String(); got != "2026-02-12" {
		t.Errorf("ServiceDate from assignment = %s, want 2026-02-12", got)
	}

	a.AttendedAt = "2026-02-14T15:00:00Z"
	if got := a.ServiceDate().String(); got != "2026-02-14" {
		t.Errorf("ServiceDate with attendance = %s, want 2026-02-14", got)
	}

	a.AttendedAt = ""
	a.AssignedAt = ""
	if !a.ServiceDate().IsZero() {
		t.Error("expected zero service date with no usable timestamps")
	}
}

// TestInvariant tests structural invariant checks on loaded rows
func TestInvariant(t *testing.T) {
	reason := DesertionReasons[0]

	tests := []struct {
		name    string
		mutate  func(*PatientAssignment)
		wantErr bool
	}{
		{"fresh pendiente", func(a *PatientAssignment) {}, false},
		{"desertion without reason", func(a *PatientAssignment) {
			a.Condition = ConditionDesercion
		}, true},
		{"reason without desertion", func(a *PatientAssignment) {
			a.DesertionReason = &reason
		}, true},
		{"atendido without timestamp", func(a *PatientAssignment) {
			a.Condition = ConditionAtendido
			a.Outcome = &Outcome{}
		}, true},
		{"atendido without outcome", func(a *PatientAssignment) {
			a.Condition = ConditionAtendido
			a.AttendedAt = "2026-02-14T15:00:00Z"
		}, true},
		{"complete atendido", func(a *PatientAssignment) {
			a.Condition = ConditionAtendido
			a.AttendedAt = "2026-02-14T15:00:00Z"
			a.Outcome = &Outcome{}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssignment(t)
			tt.mutate(a)
			err := a.Invariant()
			if tt.wantErr && err == nil {
				t.Error("expected invariant violation")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected invariant violation: %v", err)
			}
		})
	}
}

// TestDesertionCatalog tests catalog lookups and grouping
func TestDesertionCatalog(t *testing.T) {
	for _, r := range DesertionReasons {
		found, ok := DesertionReasonByCode(r.Code)
		if !ok || found.Label != r.Label {
			t.Errorf("catalog lookup failed for %s", r.Code)
		}
	}

	if _, ok := DesertionReasonByCode("nope"); ok {
		t.Error("unknown code must not resolve")
	}

	contact := DesertionReasonsByGroup(ReasonGroupContact)
	if len(contact) == 0 {
		t.Fatal("expected contact-failure reasons in the catalog")
	}
	for _, r := range contact {
		if r.Group != ReasonGroupContact {
			t.Errorf("reason %s leaked into the contact group", r.Code)
		}
	}
}
