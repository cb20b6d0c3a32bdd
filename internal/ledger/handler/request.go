package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// RequestHandler handles supply request endpoints
type RequestHandler struct {
	workflow *service.RequestWorkflow
	logger   *logger.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(workflow *service.RequestWorkflow, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		workflow: workflow,
		logger:   log,
	}
}

// Create files a supply request against a counterparty
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRequestInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	req, err := h.workflow.Create(r.Context(), httputil.GetPartyID(r.Context()), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, req)
}

// decideRequest carries the approval decision
type decideRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

// Decide approves or rejects a pending request
func (h *RequestHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var input decideRequest
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	req, err := h.workflow.Decide(r.Context(), chi.URLParam(r, "id"), httputil.GetPartyID(r.Context()), input.Decision)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Get gets a supply request by ID
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// List lists requests involving the caller
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	requests, err := h.workflow.ListForParty(r.Context(),
		httputil.GetPartyID(r.Context()),
		r.URL.Query().Get("status"),
		limit, offset,
	)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requests)
}
