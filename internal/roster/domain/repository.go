package domain

import (
	"context"

	"github.com/teleatencion/platform/internal/shared/types"
)

// Repository defines the interface for assignment persistence
type Repository interface {
	Save(ctx context.Context, a *PatientAssignment) error
	FindByID(ctx context.Context, id types.ID) (*PatientAssignment, error)
	Update(ctx context.Context, a *PatientAssignment) error

	// FindByProvider returns the provider's roster, unfiltered; filtering is
	// applied in memory by ApplyFilter
	FindByProvider(ctx context.Context, providerID types.ID) ([]PatientAssignment, error)
	FindByDocument(ctx context.Context, document types.Document) ([]PatientAssignment, error)
}
