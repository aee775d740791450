package audit

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/shared/events"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Subscriber appends an activity entry for every roster and imaging event
// on the bus. The trail is built from events rather than handler code so a
// module cannot change state without leaving a row.
type Subscriber struct {
	repo *Repository
	bus  events.EventBus
}

// NewSubscriber creates a new trail subscriber
func NewSubscriber(repo *Repository, bus events.EventBus) *Subscriber {
	return &Subscriber{repo: repo, bus: bus}
}

// Start subscribes to the clinical event streams
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, "roster.*", "audit-trail-roster", s.handle); err != nil {
		return err
	}
	return s.bus.Subscribe(ctx, "image.*", "audit-trail-imaging", s.handle)
}

func (s *Subscriber) handle(ctx context.Context, event events.Event) error {
	resourceType, resourceID := resourceRef(event)

	detail, _ := event.Data.(map[string]any)

	_, err := s.repo.Append(ctx,
		event.ActorID, "", event.ActorFacility,
		event.Type, resourceType, resourceID,
		detail,
	)
	if err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Msg("failed to append activity entry")
		return err
	}

	return nil
}

// resourceRef pulls the resource reference out of the event payload
func resourceRef(event events.Event) (string, types.ID) {
	data, ok := event.Data.(map[string]any)
	if !ok {
		return event.Source, ""
	}

	if raw, ok := data["assignment_id"].(string); ok {
		if id, err := types.ParseID(raw); err == nil {
			return "assignment", id
		}
	}
	if raw, ok := data["image_id"].(string); ok {
		if id, err := types.ParseID(raw); err == nil {
			return "image", id
		}
	}

	return event.Source, ""
}
