package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// ItemHandler handles item catalog endpoints
type ItemHandler struct {
	service *service.ItemService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.ItemService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// Create registers a new item with its opening stock
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateItemInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.Create(r.Context(), httputil.GetPartyID(r.Context()), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// CorrectPrice updates an item's reference unit price
func (h *ItemHandler) CorrectPrice(w http.ResponseWriter, r *http.Request) {
	var input service.CorrectPriceInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.CorrectPrice(r.Context(),
		httputil.GetPartyID(r.Context()),
		httputil.GetPartyRole(r.Context()),
		chi.URLParam(r, "id"),
		&input,
	)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// List lists items, optionally filtered by kind and originator
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.List(r.Context(),
		r.URL.Query().Get("kind"),
		r.URL.Query().Get("originator_id"),
		limit, offset,
	)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Expiring reports lots expiring within ?days (default 30)
func (h *ItemHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	lots, err := h.service.ExpiringReport(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}
