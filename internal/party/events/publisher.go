package events

import (
	"context"

	"github.com/pharmachain/pharmachain-backend/internal/party/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/messaging"
)

// PartyEventPublisher publishes party lifecycle events for downstream
// services to mirror into their local caches.
type PartyEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPartyEventPublisher creates a new party event publisher
func NewPartyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PartyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePartyEvents, "party-service", log)
	if err != nil {
		return nil, err
	}

	return &PartyEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishPartyCreated publishes a party created event
func (p *PartyEventPublisher) PublishPartyCreated(ctx context.Context, party *repository.Party) {
	if p == nil {
		return
	}
	organization := ""
	if party.Organization != nil {
		organization = *party.Organization
	}

	data := messaging.PartyCreatedEvent{
		PartyID:      party.ID,
		Name:         party.Name,
		Email:        party.Email,
		Role:         party.Role,
		Organization: organization,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPartyCreated, data); err != nil {
		p.logger.Error().Err(err).Str("party_id", party.ID).Msg("failed to publish party created event")
	}
}

// PublishPartyUpdated publishes a party updated event
func (p *PartyEventPublisher) PublishPartyUpdated(ctx context.Context, partyID string, fields map[string]any) {
	if p == nil {
		return
	}
	data := messaging.PartyUpdatedEvent{
		PartyID: partyID,
		Fields:  fields,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPartyUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("party_id", partyID).Msg("failed to publish party updated event")
	}
}

// PublishPartyDeactivated publishes a party deactivated event
func (p *PartyEventPublisher) PublishPartyDeactivated(ctx context.Context, partyID, deactivatedBy string) {
	if p == nil {
		return
	}
	data := messaging.PartyDeactivatedEvent{
		PartyID:       partyID,
		DeactivatedBy: deactivatedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPartyDeactivated, data); err != nil {
		p.logger.Error().Err(err).Str("party_id", partyID).Msg("failed to publish party deactivated event")
	}
}
