package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/party/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// PartyHandler handles the party directory endpoints
type PartyHandler struct {
	service *service.PartyService
	logger  *logger.Logger
}

// NewPartyHandler creates a new party handler
func NewPartyHandler(svc *service.PartyService, log *logger.Logger) *PartyHandler {
	return &PartyHandler{
		service: svc,
		logger:  log,
	}
}

// Me returns the caller's own party record
func (h *PartyHandler) Me(w http.ResponseWriter, r *http.Request) {
	party, err := h.service.Get(r.Context(), httputil.GetPartyID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, party)
}

// Get gets a party by ID
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	party, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, party)
}

// List lists parties, optionally filtered by role
func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	parties, err := h.service.List(r.Context(), r.URL.Query().Get("role"), limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, parties)
}

// UpdateMe updates the caller's own profile
func (h *PartyHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	party, err := h.service.UpdateProfile(r.Context(), httputil.GetPartyID(r.Context()), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, party)
}

// Deactivate marks a party inactive
func (h *PartyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.service.Deactivate(ctx, chi.URLParam(r, "id"), httputil.GetPartyID(ctx), httputil.GetPartyRole(ctx))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Reactivate flips a deactivated party back to active
func (h *PartyHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.service.Reactivate(ctx, chi.URLParam(r, "id"), httputil.GetPartyRole(ctx))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
