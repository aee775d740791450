package infrastructure

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// PostgresRepository provides database operations for patient assignments
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new assignment repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ domain.Repository = (*PostgresRepository)(nil)

const assignmentColumns = `id, provider_id, patient_document, patient_name, condition,
	assigned_at, attended_at, facility, bag, consent, onset_band,
	desertion_reason, chronic_conditions, outcome, note, events`

// Save saves a new assignment
func (r *PostgresRepository) Save(ctx context.Context, a *domain.PatientAssignment) error {
	query := `
		INSERT INTO roster.patient_assignments (
			id, provider_id, patient_document, patient_name, condition,
			assigned_at, attended_at, facility, bag, consent, onset_band,
			desertion_reason, chronic_conditions, outcome, note, events
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.ProviderID, a.PatientDocument, a.PatientName, a.Condition,
		a.AssignedAt, a.AttendedAt, a.Facility, a.Bag, a.Consent, a.OnsetBand,
		a.DesertionReason, a.ChronicConditions, a.Outcome, a.Note, a.Events,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("assignment already exists")
		}
		return errors.Wrap(err, "failed to save assignment")
	}

	return nil
}

// FindByID finds an assignment by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.PatientAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM roster.patient_assignments
		WHERE id = $1`

	a, err := r.scanAssignment(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("assignment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find assignment")
	}

	if err := a.Invariant(); err != nil {
		return nil, errors.Wrap(err, "corrupt assignment row")
	}

	return a, nil
}

// Update updates an assignment after a transition
func (r *PostgresRepository) Update(ctx context.Context, a *domain.PatientAssignment) error {
	query := `
		UPDATE roster.patient_assignments SET
			condition = $2, attended_at = $3, consent = $4, onset_band = $5,
			desertion_reason = $6, chronic_conditions = $7, outcome = $8,
			note = $9, events = $10, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		a.ID, a.Condition, a.AttendedAt, a.Consent, a.OnsetBand,
		a.DesertionReason, a.ChronicConditions, a.Outcome,
		a.Note, a.Events,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update assignment")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("assignment", a.ID.String())
	}

	return nil
}

// FindByProvider returns the provider's full roster. Rows that violate the
// aggregate invariants are skipped with a warning instead of failing the
// whole roster load.
func (r *PostgresRepository) FindByProvider(ctx context.Context, providerID types.ID) ([]domain.PatientAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM roster.patient_assignments
		WHERE provider_id = $1
		ORDER BY assigned_at DESC`

	return r.queryAssignments(ctx, query, providerID)
}

// FindByDocument returns all assignments for a patient across providers
func (r *PostgresRepository) FindByDocument(ctx context.Context, document types.Document) ([]domain.PatientAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM roster.patient_assignments
		WHERE patient_document = $1
		ORDER BY assigned_at DESC`

	return r.queryAssignments(ctx, query, document)
}

func (r *PostgresRepository) queryAssignments(ctx context.Context, query string, arg any) ([]domain.PatientAssignment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query assignments")
	}
	defer rows.Close()

	var assignments []domain.PatientAssignment
	for rows.Next() {
		a, err := r.scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan assignment")
		}
		if err := a.Invariant(); err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID.String()).Msg("skipping corrupt assignment row")
			continue
		}
		assignments = append(assignments, *a)
	}

	return assignments, nil
}

func (r *PostgresRepository) scanAssignment(row pgx.Row) (*domain.PatientAssignment, error) {
	a := &domain.PatientAssignment{}
	err := row.Scan(
		&a.ID, &a.ProviderID, &a.PatientDocument, &a.PatientName, &a.Condition,
		&a.AssignedAt, &a.AttendedAt, &a.Facility, &a.Bag, &a.Consent, &a.OnsetBand,
		&a.DesertionReason, &a.ChronicConditions, &a.Outcome, &a.Note, &a.Events,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
