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

// Transfer statuses
const (
	StatusProposed  = "proposed"
	StatusCommitted = "committed"
	StatusRejected  = "rejected"
)

// Transfer is a proposed movement of quantity between two parties. It stays
// inert until committed; only the commit touches the ledger.
type Transfer struct {
	ID           string     `db:"id" json:"id"`
	ItemID       string     `db:"item_id" json:"item_id"`
	SenderID     string     `db:"sender_id" json:"sender_id"`
	ReceiverID   string     `db:"receiver_id" json:"receiver_id"`
	Quantity     int64      `db:"quantity" json:"quantity"`
	UnitPrice    int64      `db:"unit_price" json:"unit_price"`
	Status       string     `db:"status" json:"status"`
	RejectReason *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	ProposedAt   time.Time  `db:"proposed_at" json:"proposed_at"`
	DecidedAt    *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// Listing directions relative to the filtered party.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// TransferFilter narrows transfer listings.
type TransferFilter struct {
	PartyID   string
	Direction string
	ItemID    string
	Status    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// TransferRepository handles transfer persistence and the commit protocol.
type TransferRepository struct {
	db     *database.DB
	ledger *LedgerRepository
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB, ledger *LedgerRepository) *TransferRepository {
	return &TransferRepository{db: db, ledger: ledger}
}

// Create inserts a transfer in proposed state.
func (r *TransferRepository) Create(ctx context.Context, transfer *Transfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}
	transfer.Status = StatusProposed

	query := `
		INSERT INTO transfers (id, item_id, sender_id, receiver_id, quantity, unit_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING proposed_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		transfer.ID, transfer.ItemID, transfer.SenderID, transfer.ReceiverID,
		transfer.Quantity, transfer.UnitPrice, transfer.Status,
	).Scan(&transfer.ProposedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*Transfer, error) {
	var transfer Transfer
	query := `SELECT * FROM transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &transfer, nil
}

// List returns transfers matching the filter, newest first. PartyID matches
// either side of the transfer.
func (r *TransferRepository) List(ctx context.Context, filter TransferFilter) ([]*Transfer, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT * FROM transfers WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.PartyID != "" {
		switch filter.Direction {
		case DirectionSent:
			query += fmt.Sprintf(" AND sender_id = $%d", argIdx)
		case DirectionReceived:
			query += fmt.Sprintf(" AND receiver_id = $%d", argIdx)
		default:
			query += fmt.Sprintf(" AND (sender_id = $%d OR receiver_id = $%d)", argIdx, argIdx)
		}
		args = append(args, filter.PartyID)
		argIdx++
	}
	if filter.ItemID != "" {
		query += fmt.Sprintf(" AND item_id = $%d", argIdx)
		args = append(args, filter.ItemID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND proposed_at >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND proposed_at < $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY proposed_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	var transfers []*Transfer
	if err := r.db.SelectContext(ctx, &transfers, query, args...); err != nil {
		return nil, err
	}
	return transfers, nil
}

// MarkRejected flips a proposed transfer to rejected. Zero rows affected
// means the transfer was not in proposed state anymore.
func (r *TransferRepository) MarkRejected(ctx context.Context, id, reason string) (*Transfer, error) {
	query := `
		UPDATE transfers
		SET status = $1, reject_reason = $2, decided_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, StatusRejected, reason, id, StatusProposed)
	if err != nil {
		return nil, err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		transfer, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.InvalidState(fmt.Sprintf("transfer is %s, only proposed transfers can be rejected", transfer.Status))
	}

	return r.GetByID(ctx, id)
}

// CommitAttempt runs one commit attempt in a single transaction:
//
//  1. load the transfer; committed is an idempotent no-op, rejected fails
//  2. compare-and-swap the sender's holding version row
//  3. fold the sender's ledger and check the balance covers the quantity
//  4. flip the transfer to committed
//  5. append the debit and credit entries
//
// A lost version race surfaces as ErrVersionConflict; the caller retries.
func (r *TransferRepository) CommitAttempt(ctx context.Context, id string) (*Transfer, error) {
	var committed *Transfer

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var t Transfer
		if err := tx.GetContext(ctx, &t, `SELECT * FROM transfers WHERE id = $1`, id); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("transfer")
			}
			return err
		}

		switch t.Status {
		case StatusCommitted:
			committed = &t
			return nil
		case StatusRejected:
			return errors.InvalidState("transfer is rejected")
		}

		if err := r.ledger.EnsureVersionRowTx(ctx, tx, t.SenderID, t.ItemID); err != nil {
			return err
		}
		version, err := r.ledger.GetVersionTx(ctx, tx, t.SenderID, t.ItemID)
		if err != nil {
			return err
		}
		if err := r.ledger.BumpVersionTx(ctx, tx, t.SenderID, t.ItemID, version); err != nil {
			return err
		}

		available, err := r.ledger.SumHoldingTx(ctx, tx, t.SenderID, t.ItemID)
		if err != nil {
			return err
		}
		if available < t.Quantity {
			return errors.InsufficientBalance(t.ItemID, t.Quantity, available)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE transfers SET status = $1, decided_at = NOW() WHERE id = $2 AND status = $3`,
			StatusCommitted, id, StatusProposed,
		)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return ErrVersionConflict
		}

		debit := &Entry{
			ItemID:         t.ItemID,
			PartyID:        t.SenderID,
			CounterpartyID: &t.ReceiverID,
			TransferID:     &t.ID,
			Quantity:       -t.Quantity,
			UnitPrice:      t.UnitPrice,
		}
		credit := &Entry{
			ItemID:         t.ItemID,
			PartyID:        t.ReceiverID,
			CounterpartyID: &t.SenderID,
			TransferID:     &t.ID,
			Quantity:       t.Quantity,
			UnitPrice:      t.UnitPrice,
		}
		if err := r.ledger.AppendTx(ctx, tx, debit); err != nil {
			return err
		}
		if err := r.ledger.AppendTx(ctx, tx, credit); err != nil {
			return err
		}

		t.Status = StatusCommitted
		committed = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return committed, nil
}
