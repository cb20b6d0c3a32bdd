package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
)

// CachedParty is a local copy of party data owned by the party service,
// kept fresh by the party event consumer. The ledger service never calls
// the party service synchronously.
type CachedParty struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PartyCacheRepository handles the local party cache
type PartyCacheRepository struct {
	db *database.DB
}

// NewPartyCacheRepository creates a new party cache repository
func NewPartyCacheRepository(db *database.DB) *PartyCacheRepository {
	return &PartyCacheRepository{db: db}
}

// Upsert writes a party into the cache, replacing any previous copy.
func (r *PartyCacheRepository) Upsert(ctx context.Context, party *CachedParty) error {
	query := `
		INSERT INTO party_cache (id, name, role, active, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, role = EXCLUDED.role, active = EXCLUDED.active, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, party.ID, party.Name, party.Role, party.Active)
	return err
}

// GetByID retrieves a cached party by its ID
func (r *PartyCacheRepository) GetByID(ctx context.Context, id string) (*CachedParty, error) {
	var party CachedParty
	query := `SELECT * FROM party_cache WHERE id = $1`
	if err := r.db.GetContext(ctx, &party, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("party")
		}
		return nil, err
	}
	return &party, nil
}

// Deactivate marks a cached party inactive without removing it, so history
// lookups keep resolving the name.
func (r *PartyCacheRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE party_cache SET active = false, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
