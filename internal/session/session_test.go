package session

import (
	"context"
	"testing"

	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

type stubFetcher struct {
	roster []domain.PatientAssignment
	err    error
	calls  int
}

func (f *stubFetcher) FindByProvider(ctx context.Context, providerID types.ID) ([]domain.PatientAssignment, error) {
	f.calls++
	return f.roster, f.err
}

type stubSubmitter struct {
	err           error
	authoritative *domain.PatientAssignment
	submitted     []types.ID
}

func (s *stubSubmitter) Submit(ctx context.Context, a *domain.PatientAssignment) (*domain.PatientAssignment, error) {
	s.submitted = append(s.submitted, a.ID)
	if s.err != nil {
		return nil, s.err
	}
	if s.authoritative != nil {
		return s.authoritative, nil
	}
	return a, nil
}

var testProviderID = types.MustParseID("3e8e6b8e-9a2f-4aa1-8f2e-6d2a3b1c5d4e")

func makeAssignment(t *testing.T, sourceID string, document types.Document, name string) domain.PatientAssignment {
	t.Helper()
	a, err := domain.NewPatientAssignment(
		"teleconsulta_asignaciones", sourceID,
		testProviderID, document, name,
		"2026-02-13T00:20:00Z", "CAP-III-Surquillo", domain.BagModule107,
	)
	if err != nil {
		t.Fatalf("NewPatientAssignment: %v", err)
	}
	return *a
}

func newTestSession(t *testing.T, submitter *stubSubmitter) (*Session, []domain.PatientAssignment) {
	t.Helper()

	roster := []domain.PatientAssignment{
		makeAssignment(t, "48213", "12345678", "María Quispe"),
		makeAssignment(t, "48214", "87654321", "Jorge Huamán"),
	}

	fetcher := &stubFetcher{roster: roster}
	sess := New(testProviderID, fetcher, submitter)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return sess, roster
}

func TestSubmitReconcilesSingleRecord(t *testing.T) {
	submitter := &stubSubmitter{}
	sess, roster := newTestSession(t, submitter)

	// The upstream response is authoritative and carries state the local
	// mutation did not produce
	authoritative := roster[0]
	authoritative.Note = "contactar por la tarde"
	submitter.authoritative = &authoritative

	err := sess.Submit(context.Background(), roster[0].ID, func(a *domain.PatientAssignment) error {
		return a.SetConsent(domain.ConsentGiven, testProviderID)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := sess.Get(roster[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Note != "contactar por la tarde" {
		t.Errorf("Note = %q, want authoritative payload", got.Note)
	}

	// The other record is untouched
	other, _ := sess.Get(roster[1].ID)
	if other.Note != "" || other.Consent != "" {
		t.Errorf("unrelated record changed: %+v", other)
	}

	if len(submitter.submitted) != 1 {
		t.Errorf("submissions = %d, want 1", len(submitter.submitted))
	}
}

func TestSubmitRollsBackOnFailure(t *testing.T) {
	submitter := &stubSubmitter{err: errors.Unavailable("upstream timeout", context.DeadlineExceeded)}
	sess, roster := newTestSession(t, submitter)

	err := sess.Submit(context.Background(), roster[0].ID, func(a *domain.PatientAssignment) error {
		return a.MarkDesercion("no_answer", testProviderID)
	})
	if !errors.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	got, _ := sess.Get(roster[0].ID)
	if got.Condition != domain.ConditionPendiente {
		t.Errorf("Condition = %s, want rollback to %s", got.Condition, domain.ConditionPendiente)
	}
	if got.DesertionReason != nil {
		t.Error("desertion reason survived the rollback")
	}
}

func TestSubmitValidationNeverReachesUpstream(t *testing.T) {
	submitter := &stubSubmitter{}
	sess, roster := newTestSession(t, submitter)

	err := sess.Submit(context.Background(), roster[0].ID, func(a *domain.PatientAssignment) error {
		return a.MarkDesercion("not_a_reason", testProviderID)
	})
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(submitter.submitted) != 0 {
		t.Errorf("validation failure was submitted upstream")
	}

	got, _ := sess.Get(roster[0].ID)
	if got.Condition != domain.ConditionPendiente {
		t.Errorf("snapshot changed on validation failure")
	}
}

func TestSubmitUnknownAssignment(t *testing.T) {
	sess, _ := newTestSession(t, &stubSubmitter{})

	err := sess.Submit(context.Background(), types.NewID(), func(a *domain.PatientAssignment) error {
		return nil
	})
	if appErr, ok := err.(*errors.AppError); !ok || appErr.Code != "NOT_FOUND" {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestQueryGenerationSupersession(t *testing.T) {
	sess, _ := newTestSession(t, &stubSubmitter{})

	pendiente := domain.ConditionPendiente
	first := sess.SetFilter(domain.FilterState{Condition: &pendiente})
	second := sess.SetFilter(domain.FilterState{Search: "quispe"})

	staleRoster := []domain.PatientAssignment{makeAssignment(t, "99999", "11112222", "Resultado Viejo")}
	if sess.DeliverQuery(first, staleRoster) {
		t.Error("stale generation was accepted")
	}

	freshRoster := []domain.PatientAssignment{makeAssignment(t, "48213", "12345678", "María Quispe")}
	if !sess.DeliverQuery(second, freshRoster) {
		t.Error("current generation was rejected")
	}

	view := sess.View()
	if len(view) != 1 || view[0].PatientName != "María Quispe" {
		t.Errorf("view = %+v", view)
	}
}

func TestViewAppliesFilter(t *testing.T) {
	sess, roster := newTestSession(t, &stubSubmitter{})

	sess.SetFilter(domain.FilterState{Search: "huamán"})

	view := sess.View()
	if len(view) != 1 || view[0].ID != roster[1].ID {
		t.Errorf("view = %+v", view)
	}

	// Clearing the filter restores the full roster
	sess.SetFilter(domain.FilterState{})
	if got := len(sess.View()); got != 2 {
		t.Errorf("unfiltered view = %d records, want 2", got)
	}
}
