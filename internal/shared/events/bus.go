// Package events carries clinical workflow events between modules over
// KurrentDB. Each module writes to its own stream and the audit trail
// consumes them through persistent subscriptions.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teleatencion/platform/internal/shared/types"
)

// Event represents a domain event
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// Actor information
	ActorID       types.ID `json:"actor_id"`
	ActorType     string   `json:"actor_type"` // provider, patient, system
	ActorFacility string   `json:"actor_facility,omitempty"`

	// Event data
	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, actorType, facility string) Event {
	e.ActorID = actorID
	e.ActorType = actorType
	e.ActorFacility = facility
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// EventBus defines the interface for event publishing and subscription
type EventBus interface {
	// Publish appends an event to its module stream
	Publish(ctx context.Context, event Event) error

	// Subscribe delivers events matching a pattern to a named consumer group
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}

// streamPrefix namespaces every stream this platform writes. Event types are
// "<module>.<action>" ("roster.attended", "image.evaluated") and all events
// of one module share one stream, so a module's history reads back in order.
const streamPrefix = "clinical"

// StreamForType maps an event type to the module stream it is appended to.
// Events with no module segment land in the shared stream.
func StreamForType(eventType string) string {
	module, _, found := strings.Cut(eventType, ".")
	if !found || module == "" {
		return streamPrefix
	}
	return streamPrefix + "-" + module
}

// MatchesPattern reports whether an event type matches a subscription
// pattern. A trailing "*" segment matches any remainder, so "roster.*"
// matches "roster.attended" but not "image.evaluated".
func MatchesPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	typeParts := strings.Split(eventType, ".")

	for i, part := range patternParts {
		if part == "*" {
			return i < len(typeParts)
		}
		if i >= len(typeParts) || part != typeParts[i] {
			return false
		}
	}

	return len(patternParts) == len(typeParts)
}
