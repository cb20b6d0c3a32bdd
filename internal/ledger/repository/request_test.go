package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRepository_CreateAndDecide(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	pharmacy := createTestParty(t, ctx, "pharmacy")
	distributor := createTestParty(t, ctx, "distributor")
	item := createTestItem(t, ctx, distributor, repository.KindRawMaterial, "Requested API", 100)

	repo := repository.NewRequestRepository(suite.DB)

	note := "need before friday"
	deadline := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	req := &repository.SupplyRequest{
		RequesterID:    pharmacy,
		CounterpartyID: distributor,
		ItemID:         item.ID,
		Quantity:       25,
		RequiredBy:     &deadline,
		Note:           &note,
	}
	require.NoError(t, repo.Create(ctx, req))
	assert.Equal(t, repository.RequestPending, req.Status)
	assert.NotEmpty(t, req.ID)

	fetched, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.RequiredBy)
	assert.Equal(t, deadline.Format("2006-01-02"), fetched.RequiredBy.Format("2006-01-02"))

	decided, err := repo.Decide(ctx, req.ID, repository.RequestApproved, distributor)
	require.NoError(t, err)
	assert.Equal(t, repository.RequestApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, distributor, *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)
}

func TestRequestRepository_Decide_OnlyOnce(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	pharmacy := createTestParty(t, ctx, "pharmacy")
	distributor := createTestParty(t, ctx, "distributor")
	item := createTestItem(t, ctx, distributor, repository.KindRawMaterial, "Single Decision API", 100)

	repo := repository.NewRequestRepository(suite.DB)

	req := &repository.SupplyRequest{
		RequesterID:    pharmacy,
		CounterpartyID: distributor,
		ItemID:         item.ID,
		Quantity:       10,
	}
	require.NoError(t, repo.Create(ctx, req))

	_, err := repo.Decide(ctx, req.ID, repository.RequestRejected, distributor)
	require.NoError(t, err)

	// The second decision loses against the conditional update.
	_, err = repo.Decide(ctx, req.ID, repository.RequestApproved, distributor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestRequestRepository_Decide_InvalidStatus(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewRequestRepository(suite.DB)

	_, err := repo.Decide(ctx, "00000000-0000-0000-0000-000000000000", "maybe", "nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestRequestRepository_ListByParty(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	pharmacy := createTestParty(t, ctx, "pharmacy")
	distributor := createTestParty(t, ctx, "distributor")
	item := createTestItem(t, ctx, distributor, repository.KindRawMaterial, "Listed Request API", 100)

	repo := repository.NewRequestRepository(suite.DB)

	outgoing := &repository.SupplyRequest{
		RequesterID:    pharmacy,
		CounterpartyID: distributor,
		ItemID:         item.ID,
		Quantity:       5,
	}
	require.NoError(t, repo.Create(ctx, outgoing))

	incoming := &repository.SupplyRequest{
		RequesterID:    distributor,
		CounterpartyID: pharmacy,
		ItemID:         item.ID,
		Quantity:       8,
	}
	require.NoError(t, repo.Create(ctx, incoming))

	// Both directions show up for the pharmacy.
	requests, err := repo.ListByParty(ctx, pharmacy, "", 50, 0)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	_, err = repo.Decide(ctx, outgoing.ID, repository.RequestApproved, distributor)
	require.NoError(t, err)

	pending, err := repo.ListByParty(ctx, pharmacy, repository.RequestPending, 50, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, incoming.ID, pending[0].ID)
}
