package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"fmt"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// HallRepo reads halls and applies lifecycle changes.  Halls are never
// physically deleted; INACTIVE is the end of the line for an owner who
// stops renting seats.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

const hallColumns = `id, owner_id, name, seat_count, default_price_cents, status, created_at, updated_at`

// CreateHall inserts a new hall, in DRAFT status unless set.  The ID and
// timestamps are populated from the stored row.
func (r *HallRepo) CreateHall(ctx context.Context, h *model.Hall) error {
	const qInsert = `INSERT INTO halls (owner_id, name, seat_count, default_price_cents, status)
	                 VALUES (?, ?, ?, ?, ?)`
	if h.Status == "" {
		h.Status = model.HallDraft
	}
	res, err := r.db.ExecContext(ctx, qInsert, h.OwnerID, h.Name, h.SeatCount, h.DefaultPriceCents, h.Status)
	if err != nil {
		return fmt.Errorf("insert hall: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetHall(ctx, uint64(id))
	if err != nil {
		return err
	}
	*h = *stored
	return nil
}

// GetHall retrieves a hall by its ID regardless of owner.
func (r *HallRepo) GetHall(ctx context.Context, id uint64) (*model.Hall, error) {
	q := `SELECT ` + hallColumns + ` FROM halls WHERE id = ?`
	var h model.Hall
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&h.ID, &h.OwnerID, &h.Name, &h.SeatCount, &h.DefaultPriceCents, &h.Status, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(fmt.Sprintf("get hall %d", id), err)
	}
	return &h, nil
}

// UpdateHallStatus performs a conditional update so that two owners
// racing on the same hall cannot both apply a transition.  Zero affected
// rows means either the hall is gone or its status moved on.
func (r *HallRepo) UpdateHallStatus(ctx context.Context, id uint64, from, to model.HallStatus) error {
	const q = `UPDATE halls
	           SET status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return fmt.Errorf("update hall %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var current model.HallStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM halls WHERE id = ?`, id).Scan(&current)
	if err != nil {
		return notFound(fmt.Sprintf("update hall %d status", id), err)
	}
	return fmt.Errorf("update hall %d: status is %s: %w", id, current, model.ErrInvalidTransition)
}
