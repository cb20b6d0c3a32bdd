package service

import (
	"context"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/cache"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// HoldingService derives holdings from the ledger. The Redis projection is
// purely an accelerator for reads; every decision that moves stock reads
// the ledger inside the commit transaction instead.
type HoldingService struct {
	ledger *repository.LedgerRepository
	cache  *cache.HoldingCache
	logger *logger.Logger
}

// NewHoldingService creates a new holding service
func NewHoldingService(ledger *repository.LedgerRepository, holdingCache *cache.HoldingCache, log *logger.Logger) *HoldingService {
	return &HoldingService{
		ledger: ledger,
		cache:  holdingCache,
		logger: log,
	}
}

// Current returns the holding of one item for one party, serving from the
// projection when possible.
func (s *HoldingService) Current(ctx context.Context, partyID, itemID string) (int64, error) {
	if qty, ok := s.cache.Get(ctx, partyID, itemID); ok {
		return qty, nil
	}

	qty, err := s.ledger.SumHolding(ctx, partyID, itemID)
	if err != nil {
		return 0, err
	}

	s.cache.Set(ctx, partyID, itemID, qty)
	return qty, nil
}

// List returns all nonzero holdings of a party straight from the ledger.
func (s *HoldingService) List(ctx context.Context, partyID string) ([]*repository.Holding, error) {
	return s.ledger.ListHoldings(ctx, partyID)
}

// History returns a party's ledger entries, newest first.
func (s *HoldingService) History(ctx context.Context, partyID, itemID string, limit int) ([]*repository.Entry, error) {
	return s.ledger.ListEntries(ctx, partyID, itemID, limit)
}

// Rebuild refreshes the projection for every holding of a party. Used after
// cache flushes; the ledger needs no repair, only the projection.
func (s *HoldingService) Rebuild(ctx context.Context, partyID string) (int, error) {
	holdings, err := s.ledger.ListHoldings(ctx, partyID)
	if err != nil {
		return 0, err
	}

	for _, h := range holdings {
		s.cache.Set(ctx, partyID, h.ItemID, h.Quantity)
	}

	s.logger.Info().
		Str("party_id", partyID).
		Int("holdings", len(holdings)).
		Msg("holding projection rebuilt")

	return len(holdings), nil
}
