package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// BookingRepo reads bookings and applies cancellations.  Inserts happen
// only through SeatRepo.InSeatTx so that they are serialized with the
// overlap check on the same seat.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, seat_id, hall_id, user_id, start_at, end_at, amount_cents, status, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	if err := row.Scan(
		&b.ID, &b.SeatID, &b.HallID, &b.UserID, &b.Start, &b.End,
		&b.AmountCents, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Start, b.End = b.Start.UTC(), b.End.UTC()
	return &b, nil
}

// collectBookings drains rows and closes them.
func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(fmt.Sprintf("get booking %d", id), err)
	}
	return b, nil
}

// CancelBooking flips CONFIRMED to CANCELLED in one conditional UPDATE.
// When no row changes the booking is either missing (ErrNotFound) or
// already cancelled (false, nil).
func (r *BookingRepo) CancelBooking(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE bookings
	           SET status = 'CANCELLED', updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = 'CONFIRMED'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	var exists uint64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, id).Scan(&exists); err != nil {
		return false, notFound(fmt.Sprintf("cancel booking %d", id), err)
	}
	return false, nil
}

func (r *BookingRepo) ConfirmedOverlapping(ctx context.Context, seatID uint64, start, end time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE seat_id = ? AND status = 'CONFIRMED' AND start_at < ? AND end_at > ?
	      ORDER BY start_at, id`
	rows, err := r.db.QueryContext(ctx, q, seatID, end, start)
	if err != nil {
		return nil, fmt.Errorf("overlapping bookings of seat %d: %w", seatID, err)
	}
	return collectBookings(rows)
}

func (r *BookingRepo) ActiveForSeat(ctx context.Context, seatID uint64, at time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE seat_id = ? AND status = 'CONFIRMED' AND end_at > ?
	      ORDER BY start_at, id`
	rows, err := r.db.QueryContext(ctx, q, seatID, at)
	if err != nil {
		return nil, fmt.Errorf("active bookings of seat %d: %w", seatID, err)
	}
	return collectBookings(rows)
}

// InRange is a single statement, so the report is computed from one
// consistent snapshot under InnoDB's consistent read.
func (r *BookingRepo) InRange(ctx context.Context, hallID uint64, start, end time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE hall_id = ? AND start_at < ? AND end_at > ?
	      ORDER BY start_at, id`
	rows, err := r.db.QueryContext(ctx, q, hallID, end, start)
	if err != nil {
		return nil, fmt.Errorf("bookings of hall %d in range: %w", hallID, err)
	}
	return collectBookings(rows)
}

// ListByUser returns the user's bookings, most recent start first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE user_id = ?
	      ORDER BY start_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("bookings of user %d: %w", userID, err)
	}
	return collectBookings(rows)
}
