package allocation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/imaging"
	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/events"
	"github.com/teleatencion/platform/internal/shared/metrics"
	"github.com/teleatencion/platform/internal/shared/types"
)

// ImageStore is the slice of the imaging repository the ingestor needs
type ImageStore interface {
	Save(ctx context.Context, img *imaging.DiagnosticImage) error
	FindByID(ctx context.Context, id types.ID) (*imaging.DiagnosticImage, error)
	Update(ctx context.Context, img *imaging.DiagnosticImage) error
}

// Ingestor normalizes upstream rows into platform aggregates. Rows carry
// their upstream identifier, so replays resolve to the same record and are
// counted as duplicates instead of creating copies.
type Ingestor struct {
	assignments domain.Repository
	images      ImageStore
	bus         events.EventBus
}

// NewIngestor creates an ingestor over the platform repositories
func NewIngestor(assignments domain.Repository, images ImageStore, bus events.EventBus) *Ingestor {
	return &Ingestor{assignments: assignments, images: images, bus: bus}
}

// IngestAssignment persists a new upstream assignment row
func (in *Ingestor) IngestAssignment(ctx context.Context, row AssignmentRow) {
	table := "teleconsulta_asignaciones"

	providerID, err := types.ParseID(row.ProviderID)
	if err != nil {
		log.Warn().Str("source_id", row.SourceID).Str("provider_id", row.ProviderID).Msg("upstream assignment has invalid provider id")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	document, err := types.ParseDocument(row.PatientDocument)
	if err != nil {
		log.Warn().Str("source_id", row.SourceID).Msg("upstream assignment has invalid patient document")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	bag, ok := mapBag(row.BagCode)
	if !ok {
		log.Warn().Str("source_id", row.SourceID).Str("bag_code", row.BagCode).Msg("upstream assignment has unknown bag code")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	a, err := domain.NewPatientAssignment(
		table, row.SourceID, providerID, document,
		row.PatientName, row.AssignedAt.UTC().Format(time.RFC3339),
		row.Facility, bag,
	)
	if err != nil {
		log.Warn().Err(err).Str("source_id", row.SourceID).Msg("upstream assignment row rejected")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	if err := in.assignments.Save(ctx, a); err != nil {
		if errors.IsConflict(err) {
			metrics.RecordAllocationRow(table, "duplicate")
			return
		}
		log.Error().Err(err).Str("source_id", row.SourceID).Msg("failed to save ingested assignment")
		metrics.RecordAllocationRow(table, "error")
		return
	}

	metrics.RecordAllocationRow(table, "ingested")
	in.publishAssignmentEvents(ctx, a)
}

// IngestImage persists a new upstream image row, or resubmits a rejected
// image when the facility re-uploads under the same upstream identifier
func (in *Ingestor) IngestImage(ctx context.Context, row ImageRow) {
	table := "teleconsulta_imagenes"

	document, err := types.ParseDocument(row.PatientDocument)
	if err != nil {
		log.Warn().Str("source_id", row.SourceID).Msg("upstream image has invalid patient document")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	modality, ok := mapModality(row.ModalityCode)
	if !ok {
		log.Warn().Str("source_id", row.SourceID).Str("modality_code", row.ModalityCode).Msg("upstream image has unknown modality code")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	capturedAt := row.CapturedAt.UTC().Format(time.RFC3339)

	img, err := imaging.NewDiagnosticImage(row.SourceID, document, modality, row.StoragePath, capturedAt)
	if err != nil {
		log.Warn().Err(err).Str("source_id", row.SourceID).Msg("upstream image row rejected")
		metrics.RecordAllocationRow(table, "invalid")
		return
	}

	err = in.images.Save(ctx, img)
	if err == nil {
		metrics.RecordAllocationRow(table, "ingested")
		in.publishImageEvents(ctx, img)
		return
	}
	if !errors.IsConflict(err) {
		log.Error().Err(err).Str("source_id", row.SourceID).Msg("failed to save ingested image")
		metrics.RecordAllocationRow(table, "error")
		return
	}

	// Known upstream identifier. A re-upload only matters for rejected
	// images, which it moves back to unevaluated.
	existing, err := in.images.FindByID(ctx, img.ID)
	if err != nil {
		log.Error().Err(err).Str("source_id", row.SourceID).Msg("failed to load existing image for re-upload")
		metrics.RecordAllocationRow(table, "error")
		return
	}

	if err := existing.Resubmit(row.StoragePath, capturedAt); err != nil {
		metrics.RecordAllocationRow(table, "duplicate")
		return
	}

	if err := in.images.Update(ctx, existing); err != nil {
		log.Error().Err(err).Str("source_id", row.SourceID).Msg("failed to update resubmitted image")
		metrics.RecordAllocationRow(table, "error")
		return
	}

	metrics.RecordAllocationRow(table, "resubmitted")
	in.publishImageEvents(ctx, existing)
}

func (in *Ingestor) publishAssignmentEvents(ctx context.Context, a *domain.PatientAssignment) {
	if in.bus == nil {
		return
	}
	for _, domainEvent := range a.GetDomainEvents() {
		event := events.NewEvent("roster."+domainEvent.Type, "roster", map[string]any{
			"assignment_id":    a.ID.String(),
			"patient_document": a.PatientDocument.Masked(),
			"event":            domainEvent,
		})
		if err := in.bus.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID.String()).Msg("failed to publish assignment event")
		}
	}
}

func (in *Ingestor) publishImageEvents(ctx context.Context, img *imaging.DiagnosticImage) {
	if in.bus == nil {
		return
	}
	for _, domainEvent := range img.GetDomainEvents() {
		event := events.NewEvent(string(domainEvent.Type), "imaging", map[string]any{
			"image_id":         img.ID.String(),
			"patient_document": img.PatientDocument.Masked(),
			"event":            domainEvent,
		})
		if err := in.bus.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("image_id", img.ID.String()).Msg("failed to publish image event")
		}
	}
}

// mapBag maps the upstream bolsa code to a roster bag category
func mapBag(code string) (domain.BagCategory, bool) {
	switch code {
	case "107", "BOLSA_107", "MODULO_107":
		return domain.BagModule107, true
	case "DENGUE", "BOLSA_DENGUE":
		return domain.BagDengue, true
	case "VISITA", "VISITA_DOMICILIARIA":
		return domain.BagHomeVisit, true
	case "REFERENCIA", "INTERCONSULTA":
		return domain.BagReferralQueue, true
	default:
		return "", false
	}
}

// mapModality maps the upstream tipo_examen code to an imaging modality
func mapModality(code string) (imaging.Modality, bool) {
	switch code {
	case "FO", "FONDO_OJO":
		return imaging.ModalityFundus, true
	case "ECG", "EKG":
		return imaging.ModalityECG, true
	case "DERMA", "DERMATOSCOPIA":
		return imaging.ModalityDerma, true
	default:
		return "", false
	}
}
