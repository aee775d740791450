package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/shared/config"
)

// Bus publishes and consumes clinical events over KurrentDB. Publishing
// appends to the module stream for the event's type; consuming uses a
// persistent subscription per consumer group, so the audit trail keeps its
// position across restarts.
type Bus struct {
	client *esdb.Client
}

var _ EventBus = (*Bus)(nil)

// NewEventBus connects to KurrentDB and verifies the connection before
// returning. The console runs without a bus when this fails.
func NewEventBus(ctx context.Context, cfg config.KurrentDBConfig) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create KurrentDB client: %w", err)
	}

	bus := &Bus{client: client}
	if err := bus.Health(); err != nil {
		bus.Close()
		return nil, err
	}

	return bus, nil
}

func connectionString(cfg config.KurrentDBConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := "?keepAliveInterval=10000&keepAliveTimeout=10000"
	if cfg.Insecure {
		params += "&tls=false&tlsVerifyCert=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Publish appends the event to its module stream
func (b *Bus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	_, err = b.client.AppendToStream(ctx, StreamForType(event.Type), esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdb.EventData{
		EventID:     eventID,
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe creates (or joins) the consumer group for the pattern's module
// stream and delivers matching events to the handler until ctx is cancelled.
// Events the handler rejects are retried by the subscription.
func (b *Bus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	stream := StreamForType(pattern)

	settings := esdb.SubscriptionSettingsDefault()
	settings.ResolveLinkTos = true

	err := b.client.CreatePersistentSubscription(ctx, stream, consumerName, esdb.PersistentStreamSubscriptionOptions{
		Settings:  &settings,
		StartFrom: esdb.End{},
	})
	if err != nil {
		esdbErr, ok := esdb.FromError(err)
		if !ok || esdbErr.Code() != esdb.ErrorCodeResourceAlreadyExists {
			return fmt.Errorf("failed to create consumer group %s on %s: %w", consumerName, stream, err)
		}
	}

	sub, err := b.client.SubscribeToPersistentSubscription(ctx, stream, consumerName, esdb.SubscribeToPersistentSubscriptionOptions{})
	if err != nil {
		return fmt.Errorf("failed to join consumer group %s on %s: %w", consumerName, stream, err)
	}

	go b.consume(ctx, sub, pattern, handler)
	return nil
}

func (b *Bus) consume(ctx context.Context, sub *esdb.PersistentSubscription, pattern string, handler Handler) {
	defer sub.Close()

	for ctx.Err() == nil {
		subEvent := sub.Recv()

		if subEvent.SubscriptionDropped != nil {
			log.Warn().Err(subEvent.SubscriptionDropped.Error).
				Str("pattern", pattern).
				Msg("event subscription dropped")
			return
		}
		if subEvent.EventAppeared == nil {
			continue
		}

		resolved := subEvent.EventAppeared.Event
		if resolved == nil || resolved.Event == nil {
			continue
		}
		recorded := resolved.Event

		if !MatchesPattern(recorded.EventType, pattern) {
			sub.Ack(resolved)
			continue
		}

		var event Event
		if err := json.Unmarshal(recorded.Data, &event); err != nil {
			log.Warn().Err(err).Str("event_type", recorded.EventType).Msg("failed to decode event")
			sub.Nack("decode error", esdb.NackActionPark, resolved)
			continue
		}
		if event.ID == "" {
			event.ID = recorded.EventID.String()
		}

		if err := handler(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("event handler failed")
			sub.Nack("handler error", esdb.NackActionRetry, resolved)
			continue
		}

		sub.Ack(resolved)
	}
}

// Close closes the event bus connection
func (b *Bus) Close() {
	if b.client != nil {
		b.client.Close()
	}
}

// Health checks the KurrentDB connection by reading stream metadata
func (b *Bus) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := b.client.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("KurrentDB health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}
