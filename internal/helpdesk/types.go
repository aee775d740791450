package helpdesk

import (
	"time"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Motive classifies why a provider opens a support ticket
type Motive string

const (
	MotiveConnectivity Motive = "problema_conectividad"
	MotivePatientData  Motive = "error_datos_paciente"
	MotiveEquipment    Motive = "falla_equipo"
	MotiveSystemAccess Motive = "acceso_sistema"
	MotiveImageUpload  Motive = "carga_imagenes"
	MotiveOther        Motive = "otro"
)

// MotiveCatalog lists the ticket motives shown to providers, with labels
// as the help-desk service displays them
var MotiveCatalog = []MotiveEntry{
	{Motive: MotiveConnectivity, Label: "Problema de conectividad"},
	{Motive: MotivePatientData, Label: "Error en datos del paciente"},
	{Motive: MotiveEquipment, Label: "Falla de equipo"},
	{Motive: MotiveSystemAccess, Label: "Acceso al sistema"},
	{Motive: MotiveImageUpload, Label: "Carga de imágenes"},
	{Motive: MotiveOther, Label: "Otro"},
}

// MotiveEntry is one row of the motive catalog
type MotiveEntry struct {
	Motive Motive `json:"motive"`
	Label  string `json:"label"`
}

// ValidMotive reports whether m is in the catalog
func ValidMotive(m Motive) bool {
	for _, entry := range MotiveCatalog {
		if entry.Motive == m {
			return true
		}
	}
	return false
}

// TicketStatus is the lifecycle state reported by the help-desk service
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// TicketRequest is what a provider submits to open a ticket. Every ticket
// references the patient whose attention the problem interrupted.
type TicketRequest struct {
	PatientDocument types.Document `json:"patient_document"`
	Motive          Motive         `json:"motive"`
	Description     string         `json:"description"`
	Facility        string         `json:"facility,omitempty"`
}

// Validate checks the request before it is forwarded to the help-desk service
func (r TicketRequest) Validate() *errors.AppError {
	if _, err := types.ParseDocument(string(r.PatientDocument)); err != nil {
		return errors.Validation("invalid patient document", map[string]string{
			"patient_document": err.Error(),
		})
	}
	if !ValidMotive(r.Motive) {
		return errors.Validation("unknown ticket motive", map[string]string{
			"motive": string(r.Motive),
		})
	}
	if r.Description == "" {
		return errors.Validation("description is required", nil)
	}
	return nil
}

// Ticket is a help-desk ticket as reported by the external service
type Ticket struct {
	ID              string         `json:"id"`
	PatientDocument types.Document `json:"patient_document"`
	Motive          Motive         `json:"motive"`
	Description     string         `json:"description"`
	Facility        string         `json:"facility,omitempty"`
	ReportedBy      string         `json:"reported_by"`
	Status          TicketStatus   `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
