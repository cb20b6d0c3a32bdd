package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/handler"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
)

func newTransferRouter(mockDB *testutil.MockDB) http.Handler {
	log := logger.New("ledger-service-test", "test")
	ledgerRepo := repository.NewLedgerRepository(mockDB.Wrapped)
	orch := service.NewTransferOrchestrator(
		repository.NewTransferRepository(mockDB.Wrapped, ledgerRepo),
		repository.NewItemRepository(mockDB.Wrapped),
		repository.NewPartyCacheRepository(mockDB.Wrapped),
		nil,
		nil,
		log,
	)
	h := handler.NewTransferHandler(orch, log)

	r := chi.NewRouter()
	r.Use(httputil.PartyContext)
	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", h.Propose)
		r.Post("/commit-lots", h.CommitLots)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/commit", h.Commit)
		r.Post("/{id}/reject", h.Reject)
	})
	return r
}

func expectTransferSelect(mockDB *testutil.MockDB, t *repository.Transfer) {
	mockDB.ExpectQuery(`SELECT * FROM transfers WHERE id = $1`).
		WithArgs(t.ID).
		WillReturnRows(testutil.MockRows("id", "item_id", "sender_id", "receiver_id", "quantity", "unit_price", "status", "reject_reason", "proposed_at", "decided_at").
			AddRow(t.ID, t.ItemID, t.SenderID, t.ReceiverID, t.Quantity, t.UnitPrice, t.Status, t.RejectReason, t.ProposedAt, t.DecidedAt))
}

func TestTransferHandler_Get_OutsiderForbidden(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	transfer := &repository.Transfer{
		ID:         uuid.New().String(),
		ItemID:     uuid.New().String(),
		SenderID:   uuid.New().String(),
		ReceiverID: uuid.New().String(),
		Quantity:   30,
		Status:     repository.StatusProposed,
		ProposedAt: time.Now(),
	}
	expectTransferSelect(mockDB, transfer)

	req := testutil.NewHTTPRequest(http.MethodGet, "/transfers/"+transfer.ID, nil)
	req = testutil.WithPartyHeaders(req, uuid.New().String(), "other@example.com", "pharmacy")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferHandler_Get_SenderSeesIt(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	transfer := &repository.Transfer{
		ID:         uuid.New().String(),
		ItemID:     uuid.New().String(),
		SenderID:   uuid.New().String(),
		ReceiverID: uuid.New().String(),
		Quantity:   30,
		Status:     repository.StatusProposed,
		ProposedAt: time.Now(),
	}
	expectTransferSelect(mockDB, transfer)

	req := testutil.NewHTTPRequest(http.MethodGet, "/transfers/"+transfer.ID, nil)
	req = testutil.WithPartyHeaders(req, transfer.SenderID, "sender@example.com", "supplier")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, transfer.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferHandler_Propose_MissingFields(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	req := testutil.NewHTTPRequest(http.MethodPost, "/transfers", map[string]interface{}{
		"receiver_id": uuid.New().String(),
	})
	req = testutil.WithPartyHeaders(req, uuid.New().String(), "sender@example.com", "supplier")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "ItemID")

	mockDB.ExpectationsWereMet(t)
}

func TestTransferHandler_Propose_NegativeQuantity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	req := testutil.NewHTTPRequest(http.MethodPost, "/transfers", map[string]interface{}{
		"receiver_id": uuid.New().String(),
		"item_id":     uuid.New().String(),
		"quantity":    -5,
	})
	req = testutil.WithPartyHeaders(req, uuid.New().String(), "sender@example.com", "supplier")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferHandler_CommitLots_EmptyList(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	req := testutil.NewHTTPRequest(http.MethodPost, "/transfers/commit-lots", map[string]interface{}{
		"transfer_ids": []string{},
	})
	req = testutil.WithPartyHeaders(req, uuid.New().String(), "actor@example.com", "distributor")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferHandler_MissingIdentity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newTransferRouter(mockDB)

	req := testutil.NewHTTPRequest(http.MethodGet, "/transfers/"+uuid.New().String(), nil)

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	mockDB.ExpectationsWereMet(t)
}
