package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
)

// Item kinds. One catalog table covers the whole chain; the kind tag says
// which stage of it the item belongs to.
const (
	KindRawMaterial = "raw_material"
	KindDrugBatch   = "drug_batch"
	KindDrugUnit    = "drug_unit"
)

// Item is a tracked good. Quantities live in the ledger, never here.
type Item struct {
	ID                string     `db:"id" json:"id"`
	Kind              string     `db:"kind" json:"kind"`
	Name              string     `db:"name" json:"name"`
	Unit              string     `db:"unit" json:"unit"`
	UnitPrice         int64      `db:"unit_price" json:"unit_price"`
	OriginatorID      string     `db:"originator_id" json:"originator_id"`
	LotNumber         *string    `db:"lot_number" json:"lot_number,omitempty"`
	ManufacturingDate *time.Time `db:"manufacturing_date" json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ExpiringLot is one row of the expiry report: an item with a lot number,
// the party still holding it, and how much is left.
type ExpiringLot struct {
	ItemID     string    `db:"item_id" json:"item_id"`
	ItemName   string    `db:"item_name" json:"item_name"`
	LotNumber  string    `db:"lot_number" json:"lot_number"`
	ExpiryDate time.Time `db:"expiry_date" json:"expiry_date"`
	PartyID    string    `db:"party_id" json:"party_id"`
	Quantity   int64     `db:"quantity" json:"quantity"`
}

// ItemRepository handles item catalog persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// NextLotNumber draws the next lot number from the database sequence and
// formats it as L<YYMM>-<seq>, e.g. L2608-0001.
func (r *ItemRepository) NextLotNumber(ctx context.Context, tx *sqlx.Tx) (string, error) {
	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('lot_number_seq')`); err != nil {
		return "", err
	}
	return fmt.Sprintf("L%s-%04d", time.Now().Format("0601"), seq), nil
}

// CreateTx inserts an item inside an open transaction. Batch kinds get a
// lot number from the sequence; raw materials and units do not.
func (r *ItemRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	if item.Kind == KindDrugBatch && item.LotNumber == nil {
		lot, err := r.NextLotNumber(ctx, tx)
		if err != nil {
			return err
		}
		item.LotNumber = &lot
	}

	query := `
		INSERT INTO items (id, kind, name, unit, unit_price, originator_id, lot_number, manufacturing_date, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		item.ID, item.Kind, item.Name, item.Unit, item.UnitPrice,
		item.OriginatorID, item.LotNumber, item.ManufacturingDate, item.ExpiryDate,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID retrieves an item by its ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	query := `SELECT * FROM items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// UpdatePrice corrects the reference unit price. The only mutable item
// field besides updated_at; existing ledger entries keep the price they
// were written with.
func (r *ItemRepository) UpdatePrice(ctx context.Context, id string, unitPrice int64) (*Item, error) {
	query := `UPDATE items SET unit_price = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, unitPrice, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, errors.NotFound("item")
	}
	return r.GetByID(ctx, id)
}

// List returns items, optionally filtered by kind and originator.
func (r *ItemRepository) List(ctx context.Context, kind, originatorID string, limit, offset int) ([]*Item, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM items WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, kind)
		argIdx++
	}
	if originatorID != "" {
		query += fmt.Sprintf(" AND originator_id = $%d", argIdx)
		args = append(args, originatorID)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var items []*Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// ListExpiring reports lots that expire within the window and are still held
// somewhere in nonzero quantity, soonest expiry first.
func (r *ItemRepository) ListExpiring(ctx context.Context, within time.Duration) ([]*ExpiringLot, error) {
	var lots []*ExpiringLot
	query := `
		SELECT i.id AS item_id, i.name AS item_name, i.lot_number, i.expiry_date,
		       e.party_id, SUM(e.quantity) AS quantity
		FROM items i
		JOIN ledger_entries e ON e.item_id = i.id
		WHERE i.lot_number IS NOT NULL
		  AND i.expiry_date IS NOT NULL
		  AND i.expiry_date <= $1
		GROUP BY i.id, i.name, i.lot_number, i.expiry_date, e.party_id
		HAVING SUM(e.quantity) > 0
		ORDER BY i.expiry_date, i.lot_number
	`
	if err := r.db.SelectContext(ctx, &lots, query, time.Now().Add(within)); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListLotsByHolder returns the batch items a party currently holds for one
// drug name, oldest receipt first. SendFIFO drains lots in this order.
func (r *ItemRepository) ListLotsByHolder(ctx context.Context, partyID, name string) ([]*Holding, error) {
	var holdings []*Holding
	query := `
		SELECT e.item_id, i.name AS item_name, i.kind, i.unit, SUM(e.quantity) AS quantity
		FROM ledger_entries e
		JOIN items i ON i.id = e.item_id
		WHERE e.party_id = $1 AND i.name = $2 AND i.kind = $3
		GROUP BY e.item_id, i.name, i.kind, i.unit, i.created_at
		HAVING SUM(e.quantity) > 0
		ORDER BY MIN(e.created_at)
	`
	if err := r.db.SelectContext(ctx, &holdings, query, partyID, name, KindDrugBatch); err != nil {
		return nil, err
	}
	return holdings, nil
}
