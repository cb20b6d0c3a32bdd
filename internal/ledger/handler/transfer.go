package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

// TransferHandler handles transfer endpoints
type TransferHandler struct {
	orchestrator *service.TransferOrchestrator
	logger       *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(orchestrator *service.TransferOrchestrator, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		orchestrator: orchestrator,
		logger:       log,
	}
}

// Propose proposes a transfer from the caller to a receiver
func (h *TransferHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var input service.ProposeTransferInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.orchestrator.Propose(r.Context(), httputil.GetPartyID(r.Context()), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, transfer)
}

// Commit settles a proposed transfer
func (h *TransferHandler) Commit(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.orchestrator.Commit(r.Context(), chi.URLParam(r, "id"), httputil.GetPartyID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// rejectRequest carries the optional rejection reason
type rejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// Reject declines a proposed transfer
func (h *TransferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var input rejectRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &input); err != nil {
			httputil.Error(w, err)
			return
		}
		if err := httputil.Validate(&input); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	transfer, err := h.orchestrator.Reject(r.Context(), chi.URLParam(r, "id"), httputil.GetPartyID(r.Context()), input.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// Get gets a transfer by ID. Only the parties involved (or admins) see it.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transfer, err := h.orchestrator.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	partyID := httputil.GetPartyID(ctx)
	if partyID != transfer.SenderID && partyID != transfer.ReceiverID &&
		httputil.GetPartyRole(ctx) != permissions.RoleAdmin {
		httputil.Error(w, errors.Forbidden("not a party to this transfer"))
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// List lists transfers involving the caller
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filter := repository.TransferFilter{
		PartyID:   httputil.GetPartyID(ctx),
		Direction: r.URL.Query().Get("direction"),
		ItemID:    r.URL.Query().Get("item_id"),
		Status:    r.URL.Query().Get("status"),
		Limit:     limit,
		Offset:    offset,
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		filter.To = &to
	}
	if httputil.GetPartyRole(ctx) == permissions.RoleAdmin {
		if partyID := r.URL.Query().Get("party_id"); partyID != "" {
			filter.PartyID = partyID
		}
	}

	transfers, err := h.orchestrator.List(ctx, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfers)
}

// SendFIFO proposes per-lot transfers for a named drug, oldest lots first
func (h *TransferHandler) SendFIFO(w http.ResponseWriter, r *http.Request) {
	var input service.SendFIFOInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	transfers, err := h.orchestrator.SendFIFO(r.Context(), httputil.GetPartyID(r.Context()), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, transfers)
}

// commitLotsRequest names the transfers to settle together
type commitLotsRequest struct {
	TransferIDs []string `json:"transfer_ids" validate:"required,min=1,dive,uuid"`
}

// CommitLots settles a set of transfers independently, reporting per-lot
// outcomes instead of failing the whole batch
func (h *TransferHandler) CommitLots(w http.ResponseWriter, r *http.Request) {
	var input commitLotsRequest
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	results := h.orchestrator.CommitLots(r.Context(), input.TransferIDs, httputil.GetPartyID(r.Context()))

	httputil.JSON(w, http.StatusOK, results)
}
