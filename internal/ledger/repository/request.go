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

// Supply request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// SupplyRequest asks a counterparty to send stock. Approving one is a
// bookkeeping decision; actual movement still goes through a transfer.
type SupplyRequest struct {
	ID             string     `db:"id" json:"id"`
	RequesterID    string     `db:"requester_id" json:"requester_id"`
	CounterpartyID string     `db:"counterparty_id" json:"counterparty_id"`
	ItemID         string     `db:"item_id" json:"item_id"`
	Quantity       int64      `db:"quantity" json:"quantity"`
	RequiredBy     *time.Time `db:"required_by" json:"required_by,omitempty"`
	Note           *string    `db:"note" json:"note,omitempty"`
	Status         string     `db:"status" json:"status"`
	DecidedBy      *string    `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	DecidedAt      *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// RequestRepository handles supply request persistence
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a request in pending state.
func (r *RequestRepository) Create(ctx context.Context, req *SupplyRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = RequestPending

	query := `
		INSERT INTO supply_requests (id, requester_id, counterparty_id, item_id, quantity, required_by, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.RequesterID, req.CounterpartyID, req.ItemID,
		req.Quantity, req.RequiredBy, req.Note, req.Status,
	).Scan(&req.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID retrieves a supply request by its ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*SupplyRequest, error) {
	var req SupplyRequest
	query := `SELECT * FROM supply_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supply request")
		}
		return nil, err
	}
	return &req, nil
}

// Decide flips a pending request to approved or rejected. The conditional
// update makes concurrent decisions lose instead of overwriting.
func (r *RequestRepository) Decide(ctx context.Context, id, status, decidedBy string) (*SupplyRequest, error) {
	if status != RequestApproved && status != RequestRejected {
		return nil, errors.BadRequest(fmt.Sprintf("invalid decision %q", status))
	}

	query := `
		UPDATE supply_requests
		SET status = $1, decided_by = $2, decided_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, decidedBy, id, RequestPending)
	if err != nil {
		return nil, err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		req, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.InvalidState(fmt.Sprintf("request is %s, only pending requests can be decided", req.Status))
	}

	return r.GetByID(ctx, id)
}

// ListByParty returns requests the party made or has to decide, newest first.
func (r *RequestRepository) ListByParty(ctx context.Context, partyID, status string, limit, offset int) ([]*SupplyRequest, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM supply_requests WHERE (requester_id = $1 OR counterparty_id = $1)`
	args := []interface{}{partyID}
	argIdx := 2

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var requests []*SupplyRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, err
	}
	return requests, nil
}
