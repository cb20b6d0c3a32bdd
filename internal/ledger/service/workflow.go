package service

import (
	"context"
	"time"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/events"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// RequestWorkflow handles supply requests: a party asks an upstream
// counterparty for stock, the counterparty approves or rejects. Approval
// does not move stock; the counterparty follows up with a transfer.
type RequestWorkflow struct {
	requests  *repository.RequestRepository
	items     *repository.ItemRepository
	parties   *repository.PartyCacheRepository
	publisher *events.LedgerEventPublisher
	logger    *logger.Logger
}

// NewRequestWorkflow creates a new request workflow
func NewRequestWorkflow(
	requests *repository.RequestRepository,
	items *repository.ItemRepository,
	parties *repository.PartyCacheRepository,
	publisher *events.LedgerEventPublisher,
	log *logger.Logger,
) *RequestWorkflow {
	return &RequestWorkflow{
		requests:  requests,
		items:     items,
		parties:   parties,
		publisher: publisher,
		logger:    log,
	}
}

// CreateRequestInput describes a new supply request.
type CreateRequestInput struct {
	CounterpartyID string     `json:"counterparty_id" validate:"required,uuid"`
	ItemID         string     `json:"item_id" validate:"required,uuid"`
	Quantity       int64      `json:"quantity" validate:"required,gt=0"`
	RequiredBy     *time.Time `json:"required_by,omitempty"`
	Note           *string    `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// Create files a pending supply request against a counterparty.
func (s *RequestWorkflow) Create(ctx context.Context, requesterID string, input *CreateRequestInput) (*repository.SupplyRequest, error) {
	if requesterID == input.CounterpartyID {
		return nil, errors.BadRequest("cannot request supply from yourself")
	}

	if _, err := s.items.GetByID(ctx, input.ItemID); err != nil {
		return nil, err
	}

	counterparty, err := s.parties.GetByID(ctx, input.CounterpartyID)
	if err != nil {
		return nil, errors.BadRequest("counterparty is not known to the ledger")
	}
	if !counterparty.Active {
		return nil, errors.InvalidState("counterparty is deactivated")
	}

	req := &repository.SupplyRequest{
		RequesterID:    requesterID,
		CounterpartyID: input.CounterpartyID,
		ItemID:         input.ItemID,
		Quantity:       input.Quantity,
		RequiredBy:     input.RequiredBy,
		Note:           input.Note,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.ID).
		Str("counterparty_id", req.CounterpartyID).
		Int64("quantity", req.Quantity).
		Msg("supply request created")

	s.publisher.PublishRequestCreated(ctx, req)

	return req, nil
}

// Decide approves or rejects a pending request. Only the counterparty the
// request was addressed to may decide it.
func (s *RequestWorkflow) Decide(ctx context.Context, requestID, actorID, decision string) (*repository.SupplyRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if actorID != req.CounterpartyID {
		return nil, errors.Forbidden("only the addressed counterparty can decide this request")
	}

	decided, err := s.requests.Decide(ctx, requestID, decision, actorID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", decided.ID).
		Str("decision", decided.Status).
		Msg("supply request decided")

	s.publisher.PublishRequestDecided(ctx, decided)

	return decided, nil
}

// Get retrieves a supply request by ID
func (s *RequestWorkflow) Get(ctx context.Context, id string) (*repository.SupplyRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// ListForParty lists requests the party filed or has to decide
func (s *RequestWorkflow) ListForParty(ctx context.Context, partyID, status string, limit, offset int) ([]*repository.SupplyRequest, error) {
	return s.requests.ListByParty(ctx, partyID, status, limit, offset)
}
