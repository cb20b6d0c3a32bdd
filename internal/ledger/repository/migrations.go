package repository

import (
	"context"
	"fmt"

	"github.com/pharmachain/pharmachain-backend/pkg/database"
)

// Migrations returns the ledger service schema in apply order.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY,
			kind VARCHAR(20) NOT NULL CONSTRAINT kind_valid CHECK (kind IN ('raw_material', 'drug_batch', 'drug_unit')),
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			unit_price BIGINT NOT NULL DEFAULT 0,
			originator_id UUID NOT NULL,
			lot_number VARCHAR(50) UNIQUE,
			manufacturing_date DATE,
			expiry_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE SEQUENCE IF NOT EXISTS lot_number_seq`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES items(id),
			party_id UUID NOT NULL,
			counterparty_id UUID,
			transfer_id UUID,
			quantity BIGINT NOT NULL CONSTRAINT quantity_nonzero CHECK (quantity <> 0),
			unit_price BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_party_item
			ON ledger_entries (party_id, item_id, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_transfer
			ON ledger_entries (transfer_id)`,

		`CREATE TABLE IF NOT EXISTS holding_versions (
			party_id UUID NOT NULL,
			item_id UUID NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (party_id, item_id)
		)`,

		`CREATE TABLE IF NOT EXISTS transfers (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES items(id),
			sender_id UUID NOT NULL,
			receiver_id UUID NOT NULL,
			quantity BIGINT NOT NULL CONSTRAINT quantity_positive CHECK (quantity > 0),
			unit_price BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'proposed' CONSTRAINT status_valid CHECK (status IN ('proposed', 'committed', 'rejected')),
			reject_reason TEXT,
			proposed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			decided_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers (sender_id, proposed_at)`,

		`CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers (receiver_id, proposed_at)`,

		`CREATE TABLE IF NOT EXISTS supply_requests (
			id UUID PRIMARY KEY,
			requester_id UUID NOT NULL,
			counterparty_id UUID NOT NULL,
			item_id UUID NOT NULL REFERENCES items(id),
			quantity BIGINT NOT NULL CONSTRAINT quantity_positive CHECK (quantity > 0),
			required_by DATE,
			note TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'pending' CONSTRAINT status_valid CHECK (status IN ('pending', 'approved', 'rejected')),
			decided_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			decided_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_supply_requests_counterparty
			ON supply_requests (counterparty_id, status)`,

		`CREATE TABLE IF NOT EXISTS party_cache (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
}

// EnsureSchema applies the ledger schema. Statements are idempotent, so
// running it on every startup is safe.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	for _, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply ledger schema: %w", err)
		}
	}
	return nil
}
