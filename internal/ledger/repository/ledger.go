package repository

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
)

// Entry is one immutable quantity movement. Positive quantity credits the
// party, negative debits it. Entries are only ever appended; corrections are
// new offsetting entries.
type Entry struct {
	ID             string    `db:"id" json:"id"`
	ItemID         string    `db:"item_id" json:"item_id"`
	PartyID        string    `db:"party_id" json:"party_id"`
	CounterpartyID *string   `db:"counterparty_id" json:"counterparty_id,omitempty"`
	TransferID     *string   `db:"transfer_id" json:"transfer_id,omitempty"`
	Quantity       int64     `db:"quantity" json:"quantity"`
	UnitPrice      int64     `db:"unit_price" json:"unit_price"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Holding is the derived on-hand quantity of one item for one party.
type Holding struct {
	ItemID   string `db:"item_id" json:"item_id"`
	ItemName string `db:"item_name" json:"item_name"`
	Kind     string `db:"kind" json:"kind"`
	Unit     string `db:"unit" json:"unit"`
	Quantity int64  `db:"quantity" json:"quantity"`
}

// ErrVersionConflict is returned when the optimistic check on a holding
// version row fails. Callers retry the whole commit attempt.
var ErrVersionConflict = errors.New("VERSION_CONFLICT", "holding version changed during commit", http.StatusConflict)

// LedgerRepository handles the append-only ledger and the per-(party,item)
// version rows used to serialize debits.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append appends a single entry outside any transfer (initial stock,
// corrections). The counterparty is nil for initial stock.
func (r *LedgerRepository) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO ledger_entries (id, item_id, party_id, counterparty_id, transfer_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.ItemID, entry.PartyID, entry.CounterpartyID,
		entry.TransferID, entry.Quantity, entry.UnitPrice,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// AppendTx appends a single entry inside an open transaction.
func (r *LedgerRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO ledger_entries (id, item_id, party_id, counterparty_id, transfer_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		entry.ID, entry.ItemID, entry.PartyID, entry.CounterpartyID,
		entry.TransferID, entry.Quantity, entry.UnitPrice,
	).Scan(&entry.CreatedAt)
}

// SumHolding folds the ledger for one (party, item) pair.
func (r *LedgerRepository) SumHolding(ctx context.Context, partyID, itemID string) (int64, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM ledger_entries WHERE party_id = $1 AND item_id = $2`
	if err := r.db.GetContext(ctx, &total, query, partyID, itemID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// SumHoldingTx reads the authoritative holding inside an open transaction.
// CommitAttempt uses this after winning the version race, never a cache.
func (r *LedgerRepository) SumHoldingTx(ctx context.Context, tx *sqlx.Tx, partyID, itemID string) (int64, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity) FROM ledger_entries WHERE party_id = $1 AND item_id = $2`
	if err := tx.GetContext(ctx, &total, query, partyID, itemID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// ListHoldings groups the ledger by item for one party, joining item
// metadata. Zero holdings are filtered out.
func (r *LedgerRepository) ListHoldings(ctx context.Context, partyID string) ([]*Holding, error) {
	var holdings []*Holding
	query := `
		SELECT e.item_id, i.name AS item_name, i.kind, i.unit, SUM(e.quantity) AS quantity
		FROM ledger_entries e
		JOIN items i ON i.id = e.item_id
		WHERE e.party_id = $1
		GROUP BY e.item_id, i.name, i.kind, i.unit
		HAVING SUM(e.quantity) <> 0
		ORDER BY i.name
	`
	if err := r.db.SelectContext(ctx, &holdings, query, partyID); err != nil {
		return nil, err
	}
	return holdings, nil
}

// ListEntries lists ledger entries for a party, newest first.
func (r *LedgerRepository) ListEntries(ctx context.Context, partyID string, itemID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []*Entry
	if itemID != "" {
		query := `
			SELECT * FROM ledger_entries
			WHERE party_id = $1 AND item_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		`
		if err := r.db.SelectContext(ctx, &entries, query, partyID, itemID, limit); err != nil {
			return nil, err
		}
		return entries, nil
	}

	query := `
		SELECT * FROM ledger_entries
		WHERE party_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &entries, query, partyID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByTransfer returns the entry pair appended by one transfer.
func (r *LedgerRepository) ListByTransfer(ctx context.Context, transferID string) ([]*Entry, error) {
	var entries []*Entry
	query := `SELECT * FROM ledger_entries WHERE transfer_id = $1 ORDER BY quantity`
	if err := r.db.SelectContext(ctx, &entries, query, transferID); err != nil {
		return nil, err
	}
	return entries, nil
}

// EnsureVersionRowTx makes sure the (party, item) version row exists so the
// subsequent compare-and-swap has something to race on.
func (r *LedgerRepository) EnsureVersionRowTx(ctx context.Context, tx *sqlx.Tx, partyID, itemID string) error {
	query := `
		INSERT INTO holding_versions (party_id, item_id, version)
		VALUES ($1, $2, 0)
		ON CONFLICT (party_id, item_id) DO NOTHING
	`
	_, err := tx.ExecContext(ctx, query, partyID, itemID)
	return err
}

// GetVersionTx reads the current version of a holding row.
func (r *LedgerRepository) GetVersionTx(ctx context.Context, tx *sqlx.Tx, partyID, itemID string) (int64, error) {
	var version int64
	query := `SELECT version FROM holding_versions WHERE party_id = $1 AND item_id = $2`
	if err := tx.GetContext(ctx, &version, query, partyID, itemID); err != nil {
		return 0, err
	}
	return version, nil
}

// BumpVersionTx performs the compare-and-swap on the holding version row.
// Zero rows affected means another commit won the race.
func (r *LedgerRepository) BumpVersionTx(ctx context.Context, tx *sqlx.Tx, partyID, itemID string, expected int64) error {
	query := `
		UPDATE holding_versions
		SET version = version + 1
		WHERE party_id = $1 AND item_id = $2 AND version = $3
	`
	result, err := tx.ExecContext(ctx, query, partyID, itemID, expected)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrVersionConflict
	}

	return nil
}
