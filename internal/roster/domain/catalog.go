package domain

// ReasonGroup groups desertion reasons for display
type ReasonGroup string

const (
	ReasonGroupContact ReasonGroup = "contact_failure"
	ReasonGroupRefusal ReasonGroup = "refusal"
	ReasonGroupMedical ReasonGroup = "medical_blocker"
	ReasonGroupOther   ReasonGroup = "other"
)

// DesertionReason is a catalog entry explaining why an assignment was
// marked Desercion. The catalog is fixed; free-text reasons are rejected.
type DesertionReason struct {
	Code  string      `json:"code"`
	Group ReasonGroup `json:"group"`
	Label string      `json:"label"`
}

// DesertionReasons is the fixed reason catalog, grouped for the selector
var DesertionReasons = []DesertionReason{
	{Code: "no_answer", Group: ReasonGroupContact, Label: "No contesta llamadas"},
	{Code: "phone_off", Group: ReasonGroupContact, Label: "Celular apagado o fuera de servicio"},
	{Code: "wrong_number", Group: ReasonGroupContact, Label: "Número de contacto equivocado"},
	{Code: "no_phone", Group: ReasonGroupContact, Label: "Paciente sin teléfono registrado"},

	{Code: "declines_teleconsult", Group: ReasonGroupRefusal, Label: "Rechaza la teleconsulta"},
	{Code: "prefers_in_person", Group: ReasonGroupRefusal, Label: "Prefiere atención presencial"},
	{Code: "no_consent", Group: ReasonGroupRefusal, Label: "No otorga consentimiento informado"},

	{Code: "hospitalized", Group: ReasonGroupMedical, Label: "Paciente hospitalizado"},
	{Code: "deceased", Group: ReasonGroupMedical, Label: "Paciente fallecido"},
	{Code: "communication_barrier", Group: ReasonGroupMedical, Label: "Limitación auditiva o del habla"},

	{Code: "duplicate_assignment", Group: ReasonGroupOther, Label: "Asignación duplicada"},
	{Code: "already_attended_elsewhere", Group: ReasonGroupOther, Label: "Atendido por otro servicio"},
	{Code: "other", Group: ReasonGroupOther, Label: "Otro motivo"},
}

var desertionReasonIndex = func() map[string]DesertionReason {
	idx := make(map[string]DesertionReason, len(DesertionReasons))
	for _, r := range DesertionReasons {
		idx[r.Code] = r
	}
	return idx
}()

// DesertionReasonByCode looks up a catalog reason by code
func DesertionReasonByCode(code string) (DesertionReason, bool) {
	r, ok := desertionReasonIndex[code]
	return r, ok
}

// DesertionReasonsByGroup returns the catalog entries for one group,
// preserving catalog order
func DesertionReasonsByGroup(group ReasonGroup) []DesertionReason {
	var out []DesertionReason
	for _, r := range DesertionReasons {
		if r.Group == group {
			out = append(out, r)
		}
	}
	return out
}
