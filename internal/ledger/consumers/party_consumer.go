package consumers

import (
	"context"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/messaging"
)

// PartyEventConsumer keeps the local party cache in sync with the party
// service. The ledger never calls the party service directly.
type PartyEventConsumer struct {
	consumer  *messaging.Consumer
	cacheRepo *repository.PartyCacheRepository
	logger    *logger.Logger
}

// NewPartyEventConsumer creates a new party event consumer
func NewPartyEventConsumer(rmq *messaging.RabbitMQ, cacheRepo *repository.PartyCacheRepository, log *logger.Logger) (*PartyEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "ledger-service.party-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePartyEvents, "party.#"); err != nil {
		return nil, err
	}

	c := &PartyEventConsumer{
		consumer:  consumer,
		cacheRepo: cacheRepo,
		logger:    log,
	}

	consumer.RegisterHandler(messaging.EventPartyCreated, c.handlePartyCreated)
	consumer.RegisterHandler(messaging.EventPartyUpdated, c.handlePartyUpdated)
	consumer.RegisterHandler(messaging.EventPartyDeactivated, c.handlePartyDeactivated)

	return c, nil
}

// Start starts consuming messages
func (c *PartyEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *PartyEventConsumer) handlePartyCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.PartyCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("party_id", data.PartyID).
		Str("role", data.Role).
		Msg("received party created event")

	return c.cacheRepo.Upsert(ctx, &repository.CachedParty{
		ID:     data.PartyID,
		Name:   data.Name,
		Role:   data.Role,
		Active: true,
	})
}

func (c *PartyEventConsumer) handlePartyUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.PartyUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("party_id", data.PartyID).
		Msg("received party updated event")

	existing, err := c.cacheRepo.GetByID(ctx, data.PartyID)
	if err != nil {
		// Not cached yet; a later created/updated event will fill it in.
		return nil
	}

	MergePartyFields(existing, data.Fields)

	return c.cacheRepo.Upsert(ctx, existing)
}

// MergePartyFields applies the fields carried by a party.updated event onto
// a cached row. Reactivation arrives this way: an update with active=true.
func MergePartyFields(p *repository.CachedParty, fields map[string]any) {
	if name, ok := fields["name"].(string); ok {
		p.Name = name
	}
	if role, ok := fields["role"].(string); ok {
		p.Role = role
	}
	if active, ok := fields["active"].(bool); ok {
		p.Active = active
	}
}

func (c *PartyEventConsumer) handlePartyDeactivated(ctx context.Context, event *messaging.Event) error {
	var data messaging.PartyDeactivatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("party_id", data.PartyID).
		Msg("received party deactivated event")

	return c.cacheRepo.Deactivate(ctx, data.PartyID)
}
