package service

import (
	"context"
	"fmt"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/cache"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/events"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

// maxCommitAttempts bounds the retry loop around lost version races.
const maxCommitAttempts = 3

// TransferOrchestrator drives the transfer lifecycle: propose, then commit
// or reject. Only the commit touches the ledger.
type TransferOrchestrator struct {
	transfers *repository.TransferRepository
	items     *repository.ItemRepository
	parties   *repository.PartyCacheRepository
	cache     *cache.HoldingCache
	publisher *events.LedgerEventPublisher
	logger    *logger.Logger
}

// NewTransferOrchestrator creates a new transfer orchestrator
func NewTransferOrchestrator(
	transfers *repository.TransferRepository,
	items *repository.ItemRepository,
	parties *repository.PartyCacheRepository,
	holdingCache *cache.HoldingCache,
	publisher *events.LedgerEventPublisher,
	log *logger.Logger,
) *TransferOrchestrator {
	return &TransferOrchestrator{
		transfers: transfers,
		items:     items,
		parties:   parties,
		cache:     holdingCache,
		publisher: publisher,
		logger:    log,
	}
}

// ProposeTransferInput describes a proposed movement of stock.
type ProposeTransferInput struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
	ItemID     string `json:"item_id" validate:"required,uuid"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice  int64  `json:"unit_price" validate:"gte=0"`
}

// chainFlows lists which role pairs may move each item kind downstream.
var chainFlows = map[string][][2]string{
	repository.KindRawMaterial: {
		{permissions.RoleSupplier, permissions.RoleManufacturer},
	},
	repository.KindDrugBatch: {
		{permissions.RoleManufacturer, permissions.RoleDistributor},
		{permissions.RoleDistributor, permissions.RoleDistributor},
		{permissions.RoleDistributor, permissions.RolePharmacy},
	},
	repository.KindDrugUnit: {
		{permissions.RolePharmacy, permissions.RolePharmacy},
	},
}

func flowAllowed(kind, senderRole, receiverRole string) bool {
	if senderRole == permissions.RoleAdmin || receiverRole == permissions.RoleAdmin {
		return true
	}
	for _, flow := range chainFlows[kind] {
		if flow[0] == senderRole && flow[1] == receiverRole {
			return true
		}
	}
	return false
}

// Propose records a transfer in proposed state. No balance check happens
// here; stock may still change hands before the commit, which is where the
// decision is made.
func (s *TransferOrchestrator) Propose(ctx context.Context, senderID string, input *ProposeTransferInput) (*repository.Transfer, error) {
	if senderID == input.ReceiverID {
		return nil, errors.BadRequest("sender and receiver must differ")
	}

	item, err := s.items.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	sender, err := s.parties.GetByID(ctx, senderID)
	if err != nil {
		return nil, errors.BadRequest("sender party is not known to the ledger")
	}
	receiver, err := s.parties.GetByID(ctx, input.ReceiverID)
	if err != nil {
		return nil, errors.BadRequest("receiver party is not known to the ledger")
	}
	if !sender.Active || !receiver.Active {
		return nil, errors.InvalidState("both parties must be active")
	}

	if !flowAllowed(item.Kind, sender.Role, receiver.Role) {
		return nil, errors.Forbidden(fmt.Sprintf("%s cannot move %s to %s", sender.Role, item.Kind, receiver.Role))
	}

	unitPrice := input.UnitPrice
	if unitPrice == 0 {
		unitPrice = item.UnitPrice
	}

	transfer := &repository.Transfer{
		ItemID:     input.ItemID,
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		Quantity:   input.Quantity,
		UnitPrice:  unitPrice,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("item_id", transfer.ItemID).
		Int64("quantity", transfer.Quantity).
		Msg("transfer proposed")

	s.publisher.PublishTransferProposed(ctx, transfer)

	return transfer, nil
}

// Commit settles a proposed transfer. Committing an already committed
// transfer is a no-op returning the stored result; a rejected transfer
// fails. After exhausting retries on version races it gives up with a
// contention error, leaving the transfer proposed and retryable.
func (s *TransferOrchestrator) Commit(ctx context.Context, transferID, actorID string) (*repository.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeDecision(ctx, transfer, actorID); err != nil {
		return nil, err
	}

	// Idempotent replay: no ledger work, no side effects.
	if transfer.Status == repository.StatusCommitted {
		return transfer, nil
	}

	var committed *repository.Transfer
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		committed, err = s.transfers.CommitAttempt(ctx, transferID)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Warn().
				Str("transfer_id", transferID).
				Int("attempt", attempt).
				Msg("commit lost version race, retrying")
			continue
		}
		return nil, err
	}
	if err != nil {
		return nil, errors.Contention("transfer commit kept losing the version race")
	}

	s.logger.Info().
		Str("transfer_id", committed.ID).
		Str("sender_id", committed.SenderID).
		Str("receiver_id", committed.ReceiverID).
		Int64("quantity", committed.Quantity).
		Msg("transfer committed")

	s.cache.Invalidate(ctx, committed.ItemID, committed.SenderID, committed.ReceiverID)
	s.publisher.PublishTransferCommitted(ctx, committed)

	return committed, nil
}

// Reject declines a proposed transfer. The ledger is untouched.
func (s *TransferOrchestrator) Reject(ctx context.Context, transferID, actorID, reason string) (*repository.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeDecision(ctx, transfer, actorID); err != nil {
		return nil, err
	}

	rejected, err := s.transfers.MarkRejected(ctx, transferID, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", rejected.ID).
		Str("reason", reason).
		Msg("transfer rejected")

	s.publisher.PublishTransferRejected(ctx, rejected)

	return rejected, nil
}

// authorizeDecision allows the receiver to settle the transfer, the sender
// to withdraw it, and admins to do either.
func (s *TransferOrchestrator) authorizeDecision(ctx context.Context, transfer *repository.Transfer, actorID string) error {
	if actorID == transfer.ReceiverID || actorID == transfer.SenderID {
		return nil
	}
	actor, err := s.parties.GetByID(ctx, actorID)
	if err == nil && actor.Role == permissions.RoleAdmin {
		return nil
	}
	return errors.Forbidden("only the transfer parties can decide it")
}

// Get retrieves a transfer by ID
func (s *TransferOrchestrator) Get(ctx context.Context, id string) (*repository.Transfer, error) {
	return s.transfers.GetByID(ctx, id)
}

// List lists transfers matching the filter
func (s *TransferOrchestrator) List(ctx context.Context, filter repository.TransferFilter) ([]*repository.Transfer, error) {
	return s.transfers.List(ctx, filter)
}

// SendFIFOInput asks to move a quantity of a named drug, drawn from the
// sender's batch lots oldest receipt first.
type SendFIFOInput struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=255"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
}

// SendFIFO proposes one transfer per lot until the requested quantity is
// covered. The proposals are returned uncommitted; settle them with
// CommitLots.
func (s *TransferOrchestrator) SendFIFO(ctx context.Context, senderID string, input *SendFIFOInput) ([]*repository.Transfer, error) {
	lots, err := s.items.ListLotsByHolder(ctx, senderID, input.Name)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, lot := range lots {
		total += lot.Quantity
	}
	if total < input.Quantity {
		return nil, errors.InsufficientBalance(input.Name, input.Quantity, total)
	}

	var transfers []*repository.Transfer
	remaining := input.Quantity
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}

		transfer, err := s.Propose(ctx, senderID, &ProposeTransferInput{
			ReceiverID: input.ReceiverID,
			ItemID:     lot.ItemID,
			Quantity:   take,
		})
		if err != nil {
			return nil, err
		}

		transfers = append(transfers, transfer)
		remaining -= take
	}

	return transfers, nil
}

// LotCommitResult reports the outcome of one transfer in a multi-lot commit.
type LotCommitResult struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// CommitLots settles a set of transfers independently. One lot failing does
// not roll back the others; each committed lot stands on its own entries.
func (s *TransferOrchestrator) CommitLots(ctx context.Context, transferIDs []string, actorID string) []LotCommitResult {
	results := make([]LotCommitResult, 0, len(transferIDs))

	for _, id := range transferIDs {
		result := LotCommitResult{TransferID: id, Status: repository.StatusCommitted}
		if _, err := s.Commit(ctx, id, actorID); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
		}
		results = append(results, result)
	}

	return results
}
