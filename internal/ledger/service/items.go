package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/events"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

// ItemService handles the item catalog and initial stock.
type ItemService struct {
	db        *database.DB
	itemRepo  *repository.ItemRepository
	ledger    *repository.LedgerRepository
	parties   *repository.PartyCacheRepository
	publisher *events.LedgerEventPublisher
	logger    *logger.Logger
}

// NewItemService creates a new item service
func NewItemService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	ledger *repository.LedgerRepository,
	parties *repository.PartyCacheRepository,
	publisher *events.LedgerEventPublisher,
	log *logger.Logger,
) *ItemService {
	return &ItemService{
		db:        db,
		itemRepo:  itemRepo,
		ledger:    ledger,
		parties:   parties,
		publisher: publisher,
		logger:    log,
	}
}

// CreateItemInput describes a new item and its opening stock.
type CreateItemInput struct {
	Kind              string     `json:"kind" validate:"required,oneof=raw_material drug_batch drug_unit"`
	Name              string     `json:"name" validate:"required,max=255"`
	Unit              string     `json:"unit" validate:"required,max=50"`
	UnitPrice         int64      `json:"unit_price" validate:"gte=0"`
	InitialQuantity   int64      `json:"initial_quantity" validate:"required,gt=0"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
}

// Create registers an item and credits the originator with its opening
// stock. Both writes land in one transaction so an item never exists
// without its opening entry.
func (s *ItemService) Create(ctx context.Context, originatorID string, input *CreateItemInput) (*repository.Item, error) {
	party, err := s.parties.GetByID(ctx, originatorID)
	if err != nil {
		return nil, errors.BadRequest("originator party is not known to the ledger")
	}
	if !party.Active {
		return nil, errors.InvalidState("originator party is deactivated")
	}

	if input.Kind == repository.KindDrugBatch && input.ExpiryDate == nil {
		return nil, errors.BadRequest("drug batches require an expiry date")
	}

	item := &repository.Item{
		Kind:              input.Kind,
		Name:              input.Name,
		Unit:              input.Unit,
		UnitPrice:         input.UnitPrice,
		OriginatorID:      originatorID,
		ManufacturingDate: input.ManufacturingDate,
		ExpiryDate:        input.ExpiryDate,
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.itemRepo.CreateTx(ctx, tx, item); err != nil {
			return err
		}

		opening := &repository.Entry{
			ItemID:    item.ID,
			PartyID:   originatorID,
			Quantity:  input.InitialQuantity,
			UnitPrice: input.UnitPrice,
		}
		return s.ledger.AppendTx(ctx, tx, opening)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", item.ID).
		Str("kind", item.Kind).
		Int64("initial_quantity", input.InitialQuantity).
		Msg("item registered")

	s.publisher.PublishItemCreated(ctx, item, input.InitialQuantity)

	return item, nil
}

// CorrectPriceInput carries a reference price correction.
type CorrectPriceInput struct {
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
}

// CorrectPrice updates an item's reference unit price. Only the originator
// or an admin may correct it; everything else about an item stays immutable.
func (s *ItemService) CorrectPrice(ctx context.Context, actorID, actorRole, itemID string, input *CorrectPriceInput) (*repository.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if actorID != item.OriginatorID && actorRole != permissions.RoleAdmin {
		return nil, errors.Forbidden("only the originator can correct the price")
	}

	updated, err := s.itemRepo.UpdatePrice(ctx, itemID, input.UnitPrice)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", itemID).
		Int64("old_price", item.UnitPrice).
		Int64("new_price", updated.UnitPrice).
		Msg("item price corrected")

	return updated, nil
}

// Get retrieves an item by ID
func (s *ItemService) Get(ctx context.Context, id string) (*repository.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// List lists items filtered by kind and originator
func (s *ItemService) List(ctx context.Context, kind, originatorID string, limit, offset int) ([]*repository.Item, error) {
	return s.itemRepo.List(ctx, kind, originatorID, limit, offset)
}

// ExpiringReport lists lots expiring within the given number of days that
// are still held in nonzero quantity.
func (s *ItemService) ExpiringReport(ctx context.Context, withinDays int) ([]*repository.ExpiringLot, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	return s.itemRepo.ListExpiring(ctx, time.Duration(withinDays)*24*time.Hour)
}
