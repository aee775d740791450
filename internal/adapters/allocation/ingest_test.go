package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/teleatencion/platform/internal/imaging"
	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

type stubAssignmentRepo struct {
	saved   []*domain.PatientAssignment
	saveErr error
	updated []*domain.PatientAssignment
	byID    map[types.ID]*domain.PatientAssignment
}

func (s *stubAssignmentRepo) Save(ctx context.Context, a *domain.PatientAssignment) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, a)
	return nil
}

func (s *stubAssignmentRepo) FindByID(ctx context.Context, id types.ID) (*domain.PatientAssignment, error) {
	if a, ok := s.byID[id]; ok {
		return a, nil
	}
	return nil, errors.NotFound("assignment", id.String())
}

func (s *stubAssignmentRepo) Update(ctx context.Context, a *domain.PatientAssignment) error {
	s.updated = append(s.updated, a)
	return nil
}

func (s *stubAssignmentRepo) FindByProvider(ctx context.Context, providerID types.ID) ([]domain.PatientAssignment, error) {
	return nil, nil
}

func (s *stubAssignmentRepo) FindByDocument(ctx context.Context, document types.Document) ([]domain.PatientAssignment, error) {
	return nil, nil
}

type stubImageStore struct {
	saved    []*imaging.DiagnosticImage
	saveErr  error
	existing *imaging.DiagnosticImage
	updated  []*imaging.DiagnosticImage
}

func (s *stubImageStore) Save(ctx context.Context, img *imaging.DiagnosticImage) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, img)
	return nil
}

func (s *stubImageStore) FindByID(ctx context.Context, id types.ID) (*imaging.DiagnosticImage, error) {
	if s.existing != nil && s.existing.ID == id {
		return s.existing, nil
	}
	return nil, errors.NotFound("image", id.String())
}

func (s *stubImageStore) Update(ctx context.Context, img *imaging.DiagnosticImage) error {
	s.updated = append(s.updated, img)
	return nil
}

func assignmentRow() AssignmentRow {
	return AssignmentRow{
		SourceID:        "ASG-4401",
		ProviderID:      "3e8e6b8e-9a2f-4aa1-8f2e-6d2a3b1c5d4e",
		PatientDocument: "45678123",
		PatientName:     "Rosa Quispe Mamani",
		AssignedAt:      time.Date(2026, 2, 13, 5, 20, 0, 0, time.UTC),
		Facility:        "CAP-III-Surquillo",
		BagCode:         "107",
	}
}

func imageRow() ImageRow {
	return ImageRow{
		SourceID:        "IMG-9001",
		PatientDocument: "45678123",
		ModalityCode:    "FO",
		StoragePath:     "s3://teleatencion/fundus/IMG-9001.png",
		CapturedAt:      time.Date(2026, 2, 13, 14, 0, 0, 0, time.UTC),
	}
}

func TestIngestAssignmentNormalizesRow(t *testing.T) {
	repo := &stubAssignmentRepo{}
	in := NewIngestor(repo, &stubImageStore{}, nil)

	in.IngestAssignment(context.Background(), assignmentRow())

	if len(repo.saved) != 1 {
		t.Fatalf("expected 1 saved assignment, got %d", len(repo.saved))
	}

	a := repo.saved[0]
	if a.PatientDocument != "45678123" {
		t.Errorf("document = %q", a.PatientDocument)
	}
	if a.Bag != domain.BagModule107 {
		t.Errorf("bag = %q", a.Bag)
	}
	if a.AssignedAt != "2026-02-13T05:20:00Z" {
		t.Errorf("assigned at = %q", a.AssignedAt)
	}
	if a.Condition != domain.ConditionPendiente {
		t.Errorf("condition = %q", a.Condition)
	}

	// Same upstream row must resolve to the same record.
	want := types.NewDeterministicID("teleconsulta_asignaciones", "ASG-4401")
	if a.ID != want {
		t.Errorf("id = %s, want %s", a.ID, want)
	}
}

func TestIngestAssignmentRejectsUnknownBag(t *testing.T) {
	repo := &stubAssignmentRepo{}
	in := NewIngestor(repo, &stubImageStore{}, nil)

	row := assignmentRow()
	row.BagCode = "BOLSA_MISTERIOSA"
	in.IngestAssignment(context.Background(), row)

	if len(repo.saved) != 0 {
		t.Fatalf("expected no saved assignments, got %d", len(repo.saved))
	}
}

func TestIngestAssignmentDuplicateIsSilent(t *testing.T) {
	repo := &stubAssignmentRepo{saveErr: errors.Conflict("assignment already exists")}
	in := NewIngestor(repo, &stubImageStore{}, nil)

	in.IngestAssignment(context.Background(), assignmentRow())

	if len(repo.saved) != 0 || len(repo.updated) != 0 {
		t.Fatal("duplicate row must not persist anything")
	}
}

func TestIngestImageSavesNewUpload(t *testing.T) {
	store := &stubImageStore{}
	in := NewIngestor(&stubAssignmentRepo{}, store, nil)

	in.IngestImage(context.Background(), imageRow())

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 saved image, got %d", len(store.saved))
	}
	if store.saved[0].Modality != imaging.ModalityFundus {
		t.Errorf("modality = %q", store.saved[0].Modality)
	}
	if store.saved[0].CapturedAt != "2026-02-13T14:00:00Z" {
		t.Errorf("captured at = %q", store.saved[0].CapturedAt)
	}
}

func TestIngestImageResubmitsRejected(t *testing.T) {
	existing := rejectedImage(t)
	store := &stubImageStore{
		saveErr:  errors.Conflict("image already exists"),
		existing: existing,
	}
	in := NewIngestor(&stubAssignmentRepo{}, store, nil)

	row := imageRow()
	row.StoragePath = "s3://teleatencion/fundus/IMG-9001-v2.png"
	in.IngestImage(context.Background(), row)

	if len(store.updated) != 1 {
		t.Fatalf("expected 1 updated image, got %d", len(store.updated))
	}
	got := store.updated[0]
	if got.State != imaging.StateUnevaluated {
		t.Errorf("state = %q, want %q", got.State, imaging.StateUnevaluated)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if got.StoragePath != row.StoragePath {
		t.Errorf("storage path = %q", got.StoragePath)
	}
}

func TestIngestImageReplayOfLiveImageIsDuplicate(t *testing.T) {
	row := imageRow()
	existing, err := imaging.NewDiagnosticImage(row.SourceID, "45678123", imaging.ModalityFundus, row.StoragePath, "2026-02-13T14:00:00Z")
	if err != nil {
		t.Fatal(err)
	}

	store := &stubImageStore{
		saveErr:  errors.Conflict("image already exists"),
		existing: existing,
	}
	in := NewIngestor(&stubAssignmentRepo{}, store, nil)

	in.IngestImage(context.Background(), row)

	if len(store.updated) != 0 {
		t.Fatalf("replayed row must not update, got %d updates", len(store.updated))
	}
}

func rejectedImage(t *testing.T) *imaging.DiagnosticImage {
	t.Helper()

	row := imageRow()
	img, err := imaging.NewDiagnosticImage(row.SourceID, "45678123", imaging.ModalityFundus, row.StoragePath, "2026-02-13T14:00:00Z")
	if err != nil {
		t.Fatal(err)
	}

	specialist := imaging.NewEvaluator(
		types.MustParseID("9b4f2c6a-1d3e-4f5a-8b7c-2e1d0f9a8b7c"),
		auth.ResolveCapabilities([]auth.Role{auth.RoleImagingSpecialist}),
	)
	if err := specialist.Reject(img, "imagen borrosa, repetir captura"); err != nil {
		t.Fatal(err)
	}
	img.GetDomainEvents()
	return img
}
