package events

import (
	"context"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/messaging"
)

// LedgerEventPublisher publishes ledger-related events. Publishing is
// best-effort: the ledger transaction has already committed, so failures
// are logged and swallowed.
type LedgerEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewLedgerEventPublisher creates a new ledger event publisher
func NewLedgerEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*LedgerEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLedgerEvents, "ledger-service", log)
	if err != nil {
		return nil, err
	}

	return &LedgerEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishItemCreated publishes an item created event
func (p *LedgerEventPublisher) PublishItemCreated(ctx context.Context, item *repository.Item, initialStock int64) {
	if p == nil {
		return
	}
	lotNumber := ""
	if item.LotNumber != nil {
		lotNumber = *item.LotNumber
	}

	data := messaging.ItemCreatedEvent{
		ItemID:       item.ID,
		Kind:         item.Kind,
		Name:         item.Name,
		LotNumber:    lotNumber,
		OriginatorID: item.OriginatorID,
		InitialStock: initialStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemCreated, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item created event")
	}
}

// PublishTransferProposed publishes a transfer proposed event
func (p *LedgerEventPublisher) PublishTransferProposed(ctx context.Context, t *repository.Transfer) {
	if p == nil {
		return
	}
	data := messaging.TransferProposedEvent{
		TransferID: t.ID,
		ItemID:     t.ItemID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Quantity:   t.Quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferProposed, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to publish transfer proposed event")
	}
}

// PublishTransferCommitted publishes a transfer committed event
func (p *LedgerEventPublisher) PublishTransferCommitted(ctx context.Context, t *repository.Transfer) {
	if p == nil {
		return
	}
	data := messaging.TransferCommittedEvent{
		TransferID: t.ID,
		ItemID:     t.ItemID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Quantity:   t.Quantity,
		UnitPrice:  t.UnitPrice,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferCommitted, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to publish transfer committed event")
	}
}

// PublishTransferRejected publishes a transfer rejected event
func (p *LedgerEventPublisher) PublishTransferRejected(ctx context.Context, t *repository.Transfer) {
	if p == nil {
		return
	}
	reason := ""
	if t.RejectReason != nil {
		reason = *t.RejectReason
	}

	data := messaging.TransferRejectedEvent{
		TransferID: t.ID,
		ItemID:     t.ItemID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Reason:     reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferRejected, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to publish transfer rejected event")
	}
}

// PublishRequestCreated publishes a supply request created event
func (p *LedgerEventPublisher) PublishRequestCreated(ctx context.Context, req *repository.SupplyRequest) {
	if p == nil {
		return
	}
	data := messaging.RequestCreatedEvent{
		RequestID:      req.ID,
		RequesterID:    req.RequesterID,
		CounterpartyID: req.CounterpartyID,
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		RequiredBy:     req.RequiredBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRequestCreated, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish request created event")
	}
}

// PublishRequestDecided publishes a supply request decided event
func (p *LedgerEventPublisher) PublishRequestDecided(ctx context.Context, req *repository.SupplyRequest) {
	if p == nil {
		return
	}
	decidedBy := ""
	if req.DecidedBy != nil {
		decidedBy = *req.DecidedBy
	}

	data := messaging.RequestDecidedEvent{
		RequestID: req.ID,
		Decision:  req.Status,
		DecidedBy: decidedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRequestDecided, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish request decided event")
	}
}
