package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createBatch inserts a drug batch with an expiry and credits the holder.
func createBatch(t *testing.T, ctx context.Context, holderID, name string, opening int64, expiry time.Time) *repository.Item {
	t.Helper()

	itemRepo := repository.NewItemRepository(suite.DB)
	ledgerRepo := repository.NewLedgerRepository(suite.DB)

	item := &repository.Item{
		Kind:         repository.KindDrugBatch,
		Name:         name,
		Unit:         "pack",
		UnitPrice:    120,
		OriginatorID: holderID,
		ExpiryDate:   &expiry,
	}

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := itemRepo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		return ledgerRepo.AppendTx(ctx, tx, &repository.Entry{
			ItemID:    item.ID,
			PartyID:   holderID,
			Quantity:  opening,
			UnitPrice: item.UnitPrice,
		})
	})
	require.NoError(t, err)
	return item
}

func TestItemRepository_CreateTx_AssignsLotNumber(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	manufacturer := createTestParty(t, ctx, "manufacturer")
	expiry := time.Now().AddDate(1, 0, 0)

	first := createBatch(t, ctx, manufacturer, "Amoxicillin 500mg", 50, expiry)
	second := createBatch(t, ctx, manufacturer, "Amoxicillin 500mg", 50, expiry)

	require.NotNil(t, first.LotNumber)
	require.NotNil(t, second.LotNumber)
	assert.Regexp(t, `^L\d{4}-\d{4}$`, *first.LotNumber)
	assert.NotEqual(t, *first.LotNumber, *second.LotNumber)

	// Raw materials never draw a lot number.
	raw := createTestItem(t, ctx, manufacturer, repository.KindRawMaterial, "Amoxicillin API", 10)
	assert.Nil(t, raw.LotNumber)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewItemRepository(suite.DB)
	_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestItemRepository_List_FiltersByKindAndOriginator(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Filter API A", 10)
	createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Filter API B", 10)

	repo := repository.NewItemRepository(suite.DB)

	items, err := repo.List(ctx, repository.KindRawMaterial, supplier, 50, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	batches, err := repo.List(ctx, repository.KindDrugBatch, supplier, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestItemRepository_ListExpiring(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	pharmacy := createTestParty(t, ctx, "pharmacy")
	soon := createBatch(t, ctx, pharmacy, "Expiring Syrup", 20, time.Now().AddDate(0, 0, 10))
	later := createBatch(t, ctx, pharmacy, "Fresh Syrup", 20, time.Now().AddDate(2, 0, 0))
	drained := createBatch(t, ctx, pharmacy, "Drained Syrup", 20, time.Now().AddDate(0, 0, 5))

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	other := createTestParty(t, ctx, "pharmacy")
	require.NoError(t, ledgerRepo.Append(ctx, &repository.Entry{
		ItemID: drained.ID, PartyID: pharmacy, CounterpartyID: &other, Quantity: -20,
	}))
	require.NoError(t, ledgerRepo.Append(ctx, &repository.Entry{
		ItemID: drained.ID, PartyID: other, CounterpartyID: &pharmacy, Quantity: 20,
	}))

	repo := repository.NewItemRepository(suite.DB)
	lots, err := repo.ListExpiring(ctx, 30*24*time.Hour)
	require.NoError(t, err)

	byItem := map[string][]*repository.ExpiringLot{}
	for _, lot := range lots {
		byItem[lot.ItemID] = append(byItem[lot.ItemID], lot)
	}

	require.Len(t, byItem[soon.ID], 1)
	assert.Equal(t, pharmacy, byItem[soon.ID][0].PartyID)
	assert.Equal(t, int64(20), byItem[soon.ID][0].Quantity)
	assert.Equal(t, *soon.LotNumber, byItem[soon.ID][0].LotNumber)

	// Not within the window.
	assert.Empty(t, byItem[later.ID])

	// Drained at the original holder, now held by the counterparty.
	require.Len(t, byItem[drained.ID], 1)
	assert.Equal(t, other, byItem[drained.ID][0].PartyID)
}

func TestItemRepository_ListLotsByHolder_OldestFirst(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	distributor := createTestParty(t, ctx, "distributor")
	expiry := time.Now().AddDate(1, 0, 0)

	oldest := createBatch(t, ctx, distributor, "Ibuprofen 200mg", 40, expiry)
	middle := createBatch(t, ctx, distributor, "Ibuprofen 200mg", 25, expiry)
	newest := createBatch(t, ctx, distributor, "Ibuprofen 200mg", 10, expiry)

	// A drained lot must not show up.
	drained := createBatch(t, ctx, distributor, "Ibuprofen 200mg", 15, expiry)
	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	sink := createTestParty(t, ctx, "pharmacy")
	require.NoError(t, ledgerRepo.Append(ctx, &repository.Entry{
		ItemID: drained.ID, PartyID: distributor, CounterpartyID: &sink, Quantity: -15,
	}))
	require.NoError(t, ledgerRepo.Append(ctx, &repository.Entry{
		ItemID: drained.ID, PartyID: sink, CounterpartyID: &distributor, Quantity: 15,
	}))

	repo := repository.NewItemRepository(suite.DB)
	lots, err := repo.ListLotsByHolder(ctx, distributor, "Ibuprofen 200mg")
	require.NoError(t, err)
	require.Len(t, lots, 3)

	assert.Equal(t, oldest.ID, lots[0].ItemID)
	assert.Equal(t, middle.ID, lots[1].ItemID)
	assert.Equal(t, newest.ID, lots[2].ItemID)
	assert.Equal(t, int64(40), lots[0].Quantity)
}
