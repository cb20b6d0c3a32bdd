package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
)

// Party is a supply chain participant: a supplier, manufacturer,
// distributor, pharmacy, or admin.
type Party struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Organization *string   `db:"organization" json:"organization,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PartyRepository handles party persistence
type PartyRepository struct {
	db *database.DB
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *database.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// Create inserts a new party
func (r *PartyRepository) Create(ctx context.Context, party *Party) error {
	if party.ID == "" {
		party.ID = uuid.New().String()
	}

	query := `
		INSERT INTO parties (id, name, email, password_hash, role, organization, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		party.ID, party.Name, party.Email, party.PasswordHash,
		party.Role, party.Organization, party.Active,
	).Scan(&party.CreatedAt, &party.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID retrieves a party by its ID
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*Party, error) {
	var party Party
	query := `SELECT * FROM parties WHERE id = $1`
	if err := r.db.GetContext(ctx, &party, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("party")
		}
		return nil, err
	}
	return &party, nil
}

// GetByEmail retrieves a party by email
func (r *PartyRepository) GetByEmail(ctx context.Context, email string) (*Party, error) {
	var party Party
	query := `SELECT * FROM parties WHERE email = $1`
	if err := r.db.GetContext(ctx, &party, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("party")
		}
		return nil, err
	}
	return &party, nil
}

// List lists parties, optionally filtered by role
func (r *PartyRepository) List(ctx context.Context, role string, limit, offset int) ([]*Party, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM parties WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if role != "" {
		query += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, role)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var parties []*Party
	if err := r.db.SelectContext(ctx, &parties, query, args...); err != nil {
		return nil, err
	}
	return parties, nil
}

// Update changes a party's profile fields
func (r *PartyRepository) Update(ctx context.Context, party *Party) error {
	query := `
		UPDATE parties
		SET name = $1, organization = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, party.Name, party.Organization, party.ID).Scan(&party.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("party")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// SetActive toggles a party's active flag
func (r *PartyRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE parties SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("party")
	}
	return nil
}
