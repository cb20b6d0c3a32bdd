package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposeTransfer(t *testing.T, ctx context.Context, repo *repository.TransferRepository, itemID, senderID, receiverID string, quantity int64) *repository.Transfer {
	t.Helper()
	transfer := &repository.Transfer{
		ItemID:     itemID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Quantity:   quantity,
		UnitPrice:  50,
	}
	require.NoError(t, repo.Create(ctx, transfer))
	assert.Equal(t, repository.StatusProposed, transfer.Status)
	return transfer
}

func TestTransferRepository_CommitAttempt_MovesStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	manufacturer := createTestParty(t, ctx, "manufacturer")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Commit API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	transfer := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 60)

	// Proposing alone must not touch the ledger.
	total, err := ledgerRepo.SumHolding(ctx, supplier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)

	committed, err := transferRepo.CommitAttempt(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCommitted, committed.Status)

	total, err = ledgerRepo.SumHolding(ctx, supplier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), total)

	total, err = ledgerRepo.SumHolding(ctx, manufacturer, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	// The entry pair shares the transfer id and nets to zero.
	entries, err := ledgerRepo.ListByTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-60), entries[0].Quantity)
	assert.Equal(t, int64(60), entries[1].Quantity)
	assert.Equal(t, supplier, entries[0].PartyID)
	assert.Equal(t, manufacturer, entries[1].PartyID)
}

func TestTransferRepository_CommitAttempt_InsufficientBalance(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	manufacturer := createTestParty(t, ctx, "manufacturer")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Shortfall API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	first := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 60)
	second := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 60)

	_, err := transferRepo.CommitAttempt(ctx, first.ID)
	require.NoError(t, err)

	// Only 40 left, the second 60 must be refused whole.
	_, err = transferRepo.CommitAttempt(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_BALANCE", appErr.Code)
	assert.Equal(t, "40", appErr.Details["available"])

	// The failed attempt left no trace: no entries, transfer still proposed.
	total, err := ledgerRepo.SumHolding(ctx, supplier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), total)

	reloaded, err := transferRepo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusProposed, reloaded.Status)

	entries, err := ledgerRepo.ListByTransfer(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransferRepository_CommitAttempt_Idempotent(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	manufacturer := createTestParty(t, ctx, "manufacturer")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Replay API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	transfer := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 30)

	_, err := transferRepo.CommitAttempt(ctx, transfer.ID)
	require.NoError(t, err)

	replay, err := transferRepo.CommitAttempt(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCommitted, replay.Status)

	// No double movement.
	total, err := ledgerRepo.SumHolding(ctx, supplier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), total)

	entries, err := ledgerRepo.ListByTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTransferRepository_CommitAttempt_Rejected(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	manufacturer := createTestParty(t, ctx, "manufacturer")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Refused API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	transfer := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 30)

	rejected, err := transferRepo.MarkRejected(ctx, transfer.ID, "wrong shipment window")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectReason)
	assert.Equal(t, "wrong shipment window", *rejected.RejectReason)
	assert.NotNil(t, rejected.DecidedAt)

	_, err = transferRepo.CommitAttempt(ctx, transfer.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	// Rejecting again is also refused.
	_, err = transferRepo.MarkRejected(ctx, transfer.ID, "again")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestTransferRepository_CommitAttempt_NotFound(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	_, err := transferRepo.CommitAttempt(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// TestTransferRepository_ConcurrentCommits races five 30-unit transfers
// against an opening stock of 100. Exactly three can land; the ledger must
// never go negative and every unit must stay accounted for.
func TestTransferRepository_ConcurrentCommits(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Contended API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	receivers := make([]string, 5)
	transfers := make([]*repository.Transfer, 5)
	for i := range transfers {
		receivers[i] = createTestParty(t, ctx, "manufacturer")
		transfers[i] = proposeTransfer(t, ctx, transferRepo, item.ID, supplier, receivers[i], 30)
	}

	commitWithRetry := func(id string) error {
		for attempt := 0; attempt < 20; attempt++ {
			_, err := transferRepo.CommitAttempt(ctx, id)
			if err != nil && errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return err
		}
		return repository.ErrVersionConflict
	}

	results := make([]error, len(transfers))
	var wg sync.WaitGroup
	for i, transfer := range transfers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = commitWithRetry(id)
		}(i, transfer.ID)
	}
	wg.Wait()

	var committed, refused int
	for _, err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, errors.ErrInsufficientBalance):
			refused++
		default:
			t.Fatalf("unexpected commit outcome: %v", err)
		}
	}
	assert.Equal(t, 3, committed)
	assert.Equal(t, 2, refused)

	total, err := ledgerRepo.SumHolding(ctx, supplier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	// Conservation: what left the supplier arrived somewhere.
	var received int64
	for _, receiver := range receivers {
		got, err := ledgerRepo.SumHolding(ctx, receiver, item.ID)
		require.NoError(t, err)
		assert.True(t, got == 0 || got == 30)
		received += got
	}
	assert.Equal(t, int64(90), received)
}

func TestTransferRepository_List_MatchesEitherSide(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	supplier := createTestParty(t, ctx, "supplier")
	manufacturer := createTestParty(t, ctx, "manufacturer")
	item := createTestItem(t, ctx, supplier, repository.KindRawMaterial, "Listing API", 100)

	ledgerRepo := repository.NewLedgerRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB, ledgerRepo)

	outbound := proposeTransfer(t, ctx, transferRepo, item.ID, supplier, manufacturer, 10)
	inbound := proposeTransfer(t, ctx, transferRepo, item.ID, manufacturer, supplier, 5)

	forSupplier, err := transferRepo.List(ctx, repository.TransferFilter{PartyID: supplier, ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, forSupplier, 2)

	forManufacturer, err := transferRepo.List(ctx, repository.TransferFilter{PartyID: manufacturer, ItemID: item.ID, Status: repository.StatusProposed})
	require.NoError(t, err)
	require.Len(t, forManufacturer, 2)

	ids := []string{forSupplier[0].ID, forSupplier[1].ID}
	assert.Contains(t, ids, outbound.ID)
	assert.Contains(t, ids, inbound.ID)

	sent, err := transferRepo.List(ctx, repository.TransferFilter{
		PartyID:   supplier,
		Direction: repository.DirectionSent,
		ItemID:    item.ID,
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, outbound.ID, sent[0].ID)

	future := time.Now().Add(time.Hour)
	none, err := transferRepo.List(ctx, repository.TransferFilter{
		PartyID: supplier,
		ItemID:  item.ID,
		From:    &future,
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}
