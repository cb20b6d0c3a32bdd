package handler

import (
	"net/http"

	"github.com/pharmachain/pharmachain-backend/internal/party/service"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	service *service.PartyService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.PartyService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Register creates a new party account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	party, err := h.service.Register(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, party)
}

// Login verifies credentials and returns a token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// refreshRequest carries the refresh token
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
