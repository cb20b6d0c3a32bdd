package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

// HoldingHandler handles holding and ledger history endpoints
type HoldingHandler struct {
	service *service.HoldingService
	logger  *logger.Logger
}

// NewHoldingHandler creates a new holding handler
func NewHoldingHandler(svc *service.HoldingService, log *logger.Logger) *HoldingHandler {
	return &HoldingHandler{
		service: svc,
		logger:  log,
	}
}

// partyScope resolves which party the caller may inspect. Admins can pass
// ?party_id to look at anyone; everyone else sees only themselves.
func partyScope(r *http.Request) string {
	ctx := r.Context()
	if httputil.GetPartyRole(ctx) == permissions.RoleAdmin {
		if partyID := r.URL.Query().Get("party_id"); partyID != "" {
			return partyID
		}
	}
	return httputil.GetPartyID(ctx)
}

// List lists the caller's nonzero holdings
func (h *HoldingHandler) List(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.List(r.Context(), partyScope(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, holdings)
}

// Get returns the caller's holding of one item
func (h *HoldingHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	partyID := partyScope(r)

	quantity, err := h.service.Current(r.Context(), partyID, itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"party_id": partyID,
		"item_id":  itemID,
		"quantity": quantity,
	})
}

// History lists the caller's ledger entries, newest first
func (h *HoldingHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.History(r.Context(), partyScope(r), r.URL.Query().Get("item_id"), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// Rebuild refreshes the Redis projection for a party's holdings
func (h *HoldingHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	partyID := partyScope(r)

	count, err := h.service.Rebuild(r.Context(), partyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"party_id": partyID,
		"rebuilt":  count,
	})
}
