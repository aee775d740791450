package imaging

import (
	"testing"
	"time"

	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

func testClock() time.Time {
	return time.Date(2026, 2, 14, 20, 30, 0, 0, time.UTC)
}

func newTestImage(t *testing.T) *DiagnosticImage {
	t.Helper()
	img, err := NewDiagnosticImage("IMG-9001", "12345678", ModalityFundus, "s3://studies/IMG-9001.png", "2026-02-13T15:10:00Z")
	if err != nil {
		t.Fatalf("NewDiagnosticImage: %v", err)
	}
	return img
}

func specialistEvaluator() *Evaluator {
	caps := auth.ResolveCapabilities([]auth.Role{auth.RoleImagingSpecialist})
	return NewEvaluator(types.NewID(), caps).WithClock(testClock)
}

func nurseEvaluator() *Evaluator {
	caps := auth.ResolveCapabilities([]auth.Role{auth.RoleNurse})
	return NewEvaluator(types.NewID(), caps).WithClock(testClock)
}

func TestNewDiagnosticImage(t *testing.T) {
	img := newTestImage(t)

	if img.State != StateUnevaluated {
		t.Errorf("State = %s, want %s", img.State, StateUnevaluated)
	}
	if img.Version != 1 {
		t.Errorf("Version = %d, want 1", img.Version)
	}

	// Same upstream row always maps to the same ID
	again, err := NewDiagnosticImage("IMG-9001", "12345678", ModalityFundus, "s3://studies/IMG-9001.png", "2026-02-13T15:10:00Z")
	if err != nil {
		t.Fatalf("NewDiagnosticImage: %v", err)
	}
	if again.ID != img.ID {
		t.Errorf("deterministic ID mismatch: %s vs %s", again.ID, img.ID)
	}
}

func TestNewDiagnosticImageValidation(t *testing.T) {
	tests := []struct {
		name        string
		sourceID    string
		document    types.Document
		storagePath string
	}{
		{"missing source", "", "12345678", "s3://x"},
		{"missing document", "IMG-1", "", "s3://x"},
		{"missing storage path", "IMG-1", "12345678", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDiagnosticImage(tt.sourceID, tt.document, ModalityFundus, tt.storagePath, "")
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	img := newTestImage(t)
	eval := specialistEvaluator()

	if err := eval.Evaluate(img, VerdictNormal, "sin hallazgos"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if img.State != StateEvaluated {
		t.Errorf("State = %s, want %s", img.State, StateEvaluated)
	}
	if img.Verdict != VerdictNormal {
		t.Errorf("Verdict = %s, want %s", img.Verdict, VerdictNormal)
	}
	if img.EvaluatedAt != "2026-02-14T20:30:00Z" {
		t.Errorf("EvaluatedAt = %s", img.EvaluatedAt)
	}
}

func TestEvaluateAmendment(t *testing.T) {
	img := newTestImage(t)
	eval := specialistEvaluator()

	if err := eval.Evaluate(img, VerdictNormal, "sin hallazgos"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if err := eval.Evaluate(img, VerdictAbnormal, "microaneurismas en cuadrante temporal"); err != nil {
		t.Fatalf("amendment: %v", err)
	}

	if img.Verdict != VerdictAbnormal {
		t.Errorf("Verdict = %s, want %s", img.Verdict, VerdictAbnormal)
	}

	events := img.GetDomainEvents()
	var sawAmended bool
	for _, e := range events {
		if e.Type == ImageEventAmended {
			sawAmended = true
		}
	}
	if !sawAmended {
		t.Error("expected an amendment event")
	}
}

func TestEvaluateGuards(t *testing.T) {
	t.Run("unknown verdict", func(t *testing.T) {
		img := newTestImage(t)
		err := specialistEvaluator().Evaluate(img, Verdict("Dudoso"), "")
		if !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("rejected image stays blocked", func(t *testing.T) {
		img := newTestImage(t)
		eval := specialistEvaluator()
		if err := eval.Reject(img, "imagen borrosa"); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		err := eval.Evaluate(img, VerdictNormal, "")
		if !errors.IsConflict(err) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("capability gate", func(t *testing.T) {
		img := newTestImage(t)
		err := nurseEvaluator().Evaluate(img, VerdictNormal, "")
		appErr, ok := err.(*errors.AppError)
		if !ok || appErr.Code != "FORBIDDEN" {
			t.Errorf("expected forbidden, got %v", err)
		}
		if img.State != StateUnevaluated {
			t.Errorf("State changed to %s", img.State)
		}
	})
}

func TestGuardEvaluable(t *testing.T) {
	pending := newTestImage(t)
	rejected, err := NewDiagnosticImage("IMG-9002", "12345678", ModalityECG, "s3://studies/IMG-9002.png", "2026-02-13T16:00:00Z")
	if err != nil {
		t.Fatalf("NewDiagnosticImage: %v", err)
	}
	if err := specialistEvaluator().Reject(rejected, "trazo ilegible"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	// A rejected image blocks evaluating any of the patient's images, even
	// ones still unevaluated.
	err = GuardEvaluable([]DiagnosticImage{*pending, *rejected})
	if !errors.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}

	if err := GuardEvaluable([]DiagnosticImage{*pending}); err != nil {
		t.Errorf("expected no guard error, got %v", err)
	}
}

func TestReject(t *testing.T) {
	img := newTestImage(t)
	eval := specialistEvaluator()

	if err := eval.Reject(img, "imagen borrosa"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if img.State != StateRejected {
		t.Errorf("State = %s, want %s", img.State, StateRejected)
	}

	t.Run("requires a note", func(t *testing.T) {
		fresh := newTestImage(t)
		if err := eval.Reject(fresh, ""); !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("evaluated image cannot be rejected", func(t *testing.T) {
		fresh := newTestImage(t)
		if err := eval.Evaluate(fresh, VerdictNormal, ""); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if err := eval.Reject(fresh, "tarde"); !errors.IsConflict(err) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

func TestResubmit(t *testing.T) {
	img := newTestImage(t)
	eval := specialistEvaluator()

	if err := eval.Reject(img, "imagen borrosa"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if err := img.Resubmit("s3://studies/IMG-9001-v2.png", "2026-02-15T09:00:00Z"); err != nil {
		t.Fatalf("Resubmit: %v", err)
	}

	if img.State != StateUnevaluated {
		t.Errorf("State = %s, want %s", img.State, StateUnevaluated)
	}
	if img.Version != 2 {
		t.Errorf("Version = %d, want 2", img.Version)
	}
	if img.RejectionNote != "" || img.Verdict != "" {
		t.Error("resubmission must clear the previous outcome")
	}

	// And it can be evaluated again
	if err := eval.Evaluate(img, VerdictNormal, ""); err != nil {
		t.Errorf("Evaluate after resubmit: %v", err)
	}

	t.Run("only rejected images", func(t *testing.T) {
		fresh := newTestImage(t)
		if err := fresh.Resubmit("s3://x", ""); !errors.IsConflict(err) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}
