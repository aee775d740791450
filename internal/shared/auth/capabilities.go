package auth

// Role represents a user role in the telemedicine center.
type Role string

const (
	RoleCoordinator       Role = "coordinator"        // Manages queues, allocations
	RolePhysician         Role = "physician"          // Attends patients, evaluates images
	RoleNurse             Role = "nurse"              // Attends patients, nursing assessment
	RoleImagingSpecialist Role = "imaging_specialist" // Evaluates diagnostic images
	RoleViewer            Role = "viewer"             // Read-only roster access
)

// Capability represents a specific workflow action. Capabilities are resolved
// once at session start from the actor's roles and passed into the workflow
// components; no component re-derives them from specialty strings.
type Capability string

const (
	CapRosterRead        Capability = "roster.read"
	CapConditionManage   Capability = "roster.condition.manage"
	CapAttentionRecord   Capability = "attention.record"
	CapNursingAssessment Capability = "attention.nursing_assessment"
	CapImageEvaluate     Capability = "imaging.evaluate"
	CapHelpdeskTicket    Capability = "helpdesk.ticket.create"
	CapAuditRead         Capability = "audit.read"
)

// RoleCapabilities maps roles to their capabilities.
var RoleCapabilities = map[Role][]Capability{
	RoleCoordinator: {
		CapRosterRead, CapConditionManage, CapHelpdeskTicket, CapAuditRead,
	},
	RolePhysician: {
		CapRosterRead, CapConditionManage, CapAttentionRecord,
		CapImageEvaluate, CapHelpdeskTicket,
	},
	RoleNurse: {
		CapRosterRead, CapConditionManage, CapAttentionRecord,
		CapNursingAssessment, CapHelpdeskTicket,
	},
	RoleImagingSpecialist: {
		CapRosterRead, CapImageEvaluate,
	},
	RoleViewer: {
		CapRosterRead,
	},
}

// CapabilitySet is the resolved capability set for one session.
type CapabilitySet map[Capability]bool

// ResolveCapabilities builds the session capability set from roles.
func ResolveCapabilities(roles []Role) CapabilitySet {
	set := make(CapabilitySet)
	for _, role := range roles {
		for _, cap := range RoleCapabilities[role] {
			set[cap] = true
		}
	}
	return set
}

// Has reports whether the session holds a capability.
func (s CapabilitySet) Has(cap Capability) bool {
	return s[cap]
}

// List returns the capabilities in the set, for serialization into claims.
func (s CapabilitySet) List() []Capability {
	caps := make([]Capability, 0, len(s))
	for cap, ok := range s {
		if ok {
			caps = append(caps, cap)
		}
	}
	return caps
}
