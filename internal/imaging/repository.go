package imaging

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Repository provides database operations for diagnostic images
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new imaging repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save saves a new diagnostic image
func (r *Repository) Save(ctx context.Context, img *DiagnosticImage) error {
	query := `
		INSERT INTO imaging.diagnostic_images (
			id, patient_document, modality, storage_path, captured_at,
			state, verdict, evaluation_note, rejection_note,
			evaluated_by, evaluated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		img.ID, img.PatientDocument, img.Modality, img.StoragePath, img.CapturedAt,
		img.State, img.Verdict, img.EvaluationNote, img.RejectionNote,
		img.EvaluatedBy, img.EvaluatedAt, img.Version,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("image already registered")
		}
		return errors.Wrap(err, "failed to save image")
	}

	return nil
}

// FindByID finds an image by ID
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*DiagnosticImage, error) {
	query := `
		SELECT id, patient_document, modality, storage_path, captured_at,
			state, verdict, evaluation_note, rejection_note,
			evaluated_by, evaluated_at, version
		FROM imaging.diagnostic_images
		WHERE id = $1`

	img := &DiagnosticImage{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.PatientDocument, &img.Modality, &img.StoragePath, &img.CapturedAt,
		&img.State, &img.Verdict, &img.EvaluationNote, &img.RejectionNote,
		&img.EvaluatedBy, &img.EvaluatedAt, &img.Version,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("image", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find image")
	}

	return img, nil
}

// Update updates an image after a workflow transition
func (r *Repository) Update(ctx context.Context, img *DiagnosticImage) error {
	query := `
		UPDATE imaging.diagnostic_images SET
			storage_path = $2, captured_at = $3, state = $4, verdict = $5,
			evaluation_note = $6, rejection_note = $7,
			evaluated_by = $8, evaluated_at = $9, version = $10
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		img.ID, img.StoragePath, img.CapturedAt, img.State, img.Verdict,
		img.EvaluationNote, img.RejectionNote,
		img.EvaluatedBy, img.EvaluatedAt, img.Version,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update image")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("image", img.ID.String())
	}

	return nil
}

// FindByDocument finds all images for a patient, newest upload first
func (r *Repository) FindByDocument(ctx context.Context, document types.Document) ([]DiagnosticImage, error) {
	query := `
		SELECT id, patient_document, modality, storage_path, captured_at,
			state, verdict, evaluation_note, rejection_note,
			evaluated_by, evaluated_at, version
		FROM imaging.diagnostic_images
		WHERE patient_document = $1
		ORDER BY captured_at DESC`

	rows, err := r.pool.Query(ctx, query, document)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query images")
	}
	defer rows.Close()

	var images []DiagnosticImage
	for rows.Next() {
		var img DiagnosticImage
		err := rows.Scan(
			&img.ID, &img.PatientDocument, &img.Modality, &img.StoragePath, &img.CapturedAt,
			&img.State, &img.Verdict, &img.EvaluationNote, &img.RejectionNote,
			&img.EvaluatedBy, &img.EvaluatedAt, &img.Version,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan image")
		}
		images = append(images, img)
	}

	return images, nil
}
