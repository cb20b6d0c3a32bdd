package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmachain/pharmachain-backend/internal/party/events"
	"github.com/pharmachain/pharmachain-backend/internal/party/jwt"
	"github.com/pharmachain/pharmachain-backend/internal/party/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

// PartyService handles registration, login, and the party directory.
type PartyService struct {
	repo      *repository.PartyRepository
	jwtMgr    *jwt.Manager
	publisher *events.PartyEventPublisher
	logger    *logger.Logger
}

// NewPartyService creates a new party service
func NewPartyService(
	repo *repository.PartyRepository,
	jwtMgr *jwt.Manager,
	publisher *events.PartyEventPublisher,
	log *logger.Logger,
) *PartyService {
	return &PartyService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		publisher: publisher,
		logger:    log,
	}
}

// RegisterInput describes a new party registration.
type RegisterInput struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	Role         string  `json:"role" validate:"required,oneof=supplier manufacturer distributor pharmacy"`
	Organization *string `json:"organization,omitempty" validate:"omitempty,max=255"`
}

// Register creates a party account. The admin role cannot be self-assigned.
func (s *PartyService) Register(ctx context.Context, input *RegisterInput) (*repository.Party, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	party := &repository.Party{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
		Organization: input.Organization,
		Active:       true,
	}
	if err := s.repo.Create(ctx, party); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("party_id", party.ID).
		Str("role", party.Role).
		Msg("party registered")

	s.publisher.PublishPartyCreated(ctx, party)

	return party, nil
}

// LoginInput describes a login attempt.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the tokens and the authenticated party.
type LoginResult struct {
	Party  *repository.Party `json:"party"`
	Tokens *jwt.TokenPair    `json:"tokens"`
}

// Login verifies credentials and issues a token pair. Deactivated parties
// cannot log in.
func (s *PartyService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	party, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(party.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	if !party.Active {
		return nil, errors.Forbidden("account is deactivated")
	}

	tokens, err := s.jwtMgr.GenerateTokenPair(&jwt.PartyInfo{
		ID:    party.ID,
		Email: party.Email,
		Name:  party.Name,
		Role:  party.Role,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	s.logger.Info().Str("party_id", party.ID).Msg("party logged in")

	return &LoginResult{Party: party, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *PartyService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwtMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	party, err := s.repo.GetByID(ctx, claims.PartyID)
	if err != nil {
		return nil, errors.TokenInvalid()
	}
	if !party.Active {
		return nil, errors.Forbidden("account is deactivated")
	}

	tokens, err := s.jwtMgr.GenerateTokenPair(&jwt.PartyInfo{
		ID:    party.ID,
		Email: party.Email,
		Name:  party.Name,
		Role:  party.Role,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	return &LoginResult{Party: party, Tokens: tokens}, nil
}

// Get retrieves a party by ID
func (s *PartyService) Get(ctx context.Context, id string) (*repository.Party, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists parties, optionally filtered by role
func (s *PartyService) List(ctx context.Context, role string, limit, offset int) ([]*repository.Party, error) {
	return s.repo.List(ctx, role, limit, offset)
}

// UpdateProfileInput describes profile changes.
type UpdateProfileInput struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Organization *string `json:"organization,omitempty" validate:"omitempty,max=255"`
}

// UpdateProfile changes a party's own profile.
func (s *PartyService) UpdateProfile(ctx context.Context, partyID string, input *UpdateProfileInput) (*repository.Party, error) {
	party, err := s.repo.GetByID(ctx, partyID)
	if err != nil {
		return nil, err
	}

	party.Name = input.Name
	party.Organization = input.Organization
	if err := s.repo.Update(ctx, party); err != nil {
		return nil, err
	}

	s.publisher.PublishPartyUpdated(ctx, party.ID, map[string]any{"name": party.Name})

	return party, nil
}

// Deactivate marks a party inactive. Admin only; admins cannot deactivate
// themselves.
func (s *PartyService) Deactivate(ctx context.Context, partyID, actorID, actorRole string) error {
	if actorRole != permissions.RoleAdmin {
		return errors.Forbidden("only admins can deactivate parties")
	}
	if partyID == actorID {
		return errors.BadRequest("cannot deactivate yourself")
	}

	if err := s.repo.SetActive(ctx, partyID, false); err != nil {
		return err
	}

	s.logger.Info().
		Str("party_id", partyID).
		Str("actor_id", actorID).
		Msg("party deactivated")

	s.publisher.PublishPartyDeactivated(ctx, partyID, actorID)

	return nil
}

// Reactivate flips a deactivated party back to active. Admin only.
func (s *PartyService) Reactivate(ctx context.Context, partyID, actorRole string) error {
	if actorRole != permissions.RoleAdmin {
		return errors.Forbidden("only admins can reactivate parties")
	}

	if err := s.repo.SetActive(ctx, partyID, true); err != nil {
		return err
	}

	s.publisher.PublishPartyUpdated(ctx, partyID, map[string]any{"active": true})

	return nil
}
