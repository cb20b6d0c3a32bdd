package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(mockDB *testutil.MockDB) *service.RequestWorkflow {
	log := logger.New("ledger-service-test", "test")
	return service.NewRequestWorkflow(
		repository.NewRequestRepository(mockDB.Wrapped),
		repository.NewItemRepository(mockDB.Wrapped),
		repository.NewPartyCacheRepository(mockDB.Wrapped),
		nil,
		log,
	)
}

func requestRow(r *repository.SupplyRequest) *sqlmock.Rows {
	return testutil.MockRows("id", "requester_id", "counterparty_id", "item_id", "quantity", "required_by", "note", "status", "decided_by", "created_at", "decided_at").
		AddRow(r.ID, r.RequesterID, r.CounterpartyID, r.ItemID, r.Quantity, r.RequiredBy, r.Note, r.Status, r.DecidedBy, r.CreatedAt, r.DecidedAt)
}

func TestWorkflow_Create_SelfRequest(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	wf := newWorkflow(mockDB)

	requester := uuid.New().String()
	_, err := wf.Create(context.Background(), requester, &service.CreateRequestInput{
		CounterpartyID: requester,
		ItemID:         uuid.New().String(),
		Quantity:       10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	mockDB.ExpectationsWereMet(t)
}

func TestWorkflow_Create_InactiveCounterparty(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	wf := newWorkflow(mockDB)

	requester := uuid.New().String()
	counterparty := uuid.New().String()
	itemID := uuid.New().String()

	mockDB.ExpectQuery(`SELECT * FROM items WHERE id = $1`).
		WithArgs(itemID).
		WillReturnRows(itemRow(itemID, repository.KindRawMaterial, 50))
	mockDB.ExpectQuery(`SELECT * FROM party_cache WHERE id = $1`).
		WithArgs(counterparty).
		WillReturnRows(partyRow(counterparty, "distributor", false))

	_, err := wf.Create(context.Background(), requester, &service.CreateRequestInput{
		CounterpartyID: counterparty,
		ItemID:         itemID,
		Quantity:       10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	mockDB.ExpectationsWereMet(t)
}

func TestWorkflow_Create_Pending(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	wf := newWorkflow(mockDB)

	requester := uuid.New().String()
	counterparty := uuid.New().String()
	itemID := uuid.New().String()

	mockDB.ExpectQuery(`SELECT * FROM items WHERE id = $1`).
		WithArgs(itemID).
		WillReturnRows(itemRow(itemID, repository.KindRawMaterial, 50))
	mockDB.ExpectQuery(`SELECT * FROM party_cache WHERE id = $1`).
		WithArgs(counterparty).
		WillReturnRows(partyRow(counterparty, "distributor", true))
	mockDB.ExpectQuery(`INSERT INTO supply_requests`).
		WithArgs(testutil.AnyUUID{}, requester, counterparty, itemID, int64(10), nil, nil, repository.RequestPending).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	req, err := wf.Create(context.Background(), requester, &service.CreateRequestInput{
		CounterpartyID: counterparty,
		ItemID:         itemID,
		Quantity:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.RequestPending, req.Status)
	assert.NotEmpty(t, req.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestWorkflow_Decide_OnlyCounterparty(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	wf := newWorkflow(mockDB)

	req := &repository.SupplyRequest{
		ID:             uuid.New().String(),
		RequesterID:    uuid.New().String(),
		CounterpartyID: uuid.New().String(),
		ItemID:         uuid.New().String(),
		Quantity:       10,
		Status:         repository.RequestPending,
		CreatedAt:      time.Now(),
	}

	mockDB.ExpectQuery(`SELECT * FROM supply_requests WHERE id = $1`).
		WithArgs(req.ID).
		WillReturnRows(requestRow(req))

	// The requester cannot decide their own request.
	_, err := wf.Decide(context.Background(), req.ID, req.RequesterID, repository.RequestApproved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	mockDB.ExpectationsWereMet(t)
}
