package repository

import (
	"context"
	"fmt"

	"github.com/pharmachain/pharmachain-backend/pkg/database"
)

// Migrations returns the party service schema in apply order.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS parties (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE CONSTRAINT email_format CHECK (email LIKE '%@%'),
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL CONSTRAINT role_valid CHECK (role IN ('admin', 'supplier', 'manufacturer', 'distributor', 'pharmacy')),
			organization VARCHAR(255),
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_parties_role ON parties (role)`,
	}
}

// EnsureSchema applies the party schema. Statements are idempotent, so
// running it on every startup is safe.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	for _, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply party schema: %w", err)
		}
	}
	return nil
}
