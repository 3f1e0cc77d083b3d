package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"fmt"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// SeatRepo provides methods to work with seats in the database.  Deleted
// seats keep their row (deleted_at is set) so that bookings referencing
// them stay readable; every lookup here ignores them.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, hall_id, seat_number, pos_row, pos_col, custom_price_cents, ladies_only,
	maint_reason, maint_started_at, maint_until, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*model.Seat, error) {
	var (
		s           model.Seat
		posRow      sql.NullInt32 // seats.pos_row
		posCol      sql.NullInt32 // seats.pos_col
		customPrice sql.NullInt64 // seats.custom_price_cents
		reason      sql.NullString
		startedAt   sql.NullTime
		until       sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.HallID, &s.SeatNumber, &posRow, &posCol, &customPrice, &s.LadiesOnly,
		&reason, &startedAt, &until, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if posRow.Valid && posCol.Valid {
		s.Position = &model.Position{Row: int(posRow.Int32), Col: int(posCol.Int32)}
	}
	if customPrice.Valid {
		p := customPrice.Int64
		s.CustomPriceCents = &p
	}
	if reason.Valid && startedAt.Valid {
		s.Maintenance = &model.Maintenance{
			Reason:    model.MaintenanceReason(reason.String),
			StartedAt: startedAt.Time.UTC(),
		}
		if until.Valid {
			u := until.Time.UTC()
			s.Maintenance.Until = &u
		}
	}
	return &s, nil
}

// CreateSeat inserts a single seat record. On success the seat's ID is populated.
func (r *SeatRepo) CreateSeat(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (hall_id, seat_number, pos_row, pos_col, custom_price_cents, ladies_only)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var posRow, posCol, price any
	if s.Position != nil {
		posRow, posCol = s.Position.Row, s.Position.Col
	}
	if s.CustomPriceCents != nil {
		price = *s.CustomPriceCents
	}
	res, err := r.db.ExecContext(ctx, q, s.HallID, s.SeatNumber, posRow, posCol, price, s.LadiesOnly)
	if isDuplicateKey(err) {
		return fmt.Errorf("insert seat %d: %w", s.SeatNumber, model.ErrDuplicateSeatNumber)
	}
	if err != nil {
		return fmt.Errorf("insert seat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetSeat retrieves a live seat by its id (no ownership check).
func (r *SeatRepo) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id = ? AND deleted_at IS NULL`
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(fmt.Sprintf("get seat %d", id), err)
	}
	return s, nil
}

// ListSeats retrieves all live seats of a hall ordered by seat_number.
func (r *SeatRepo) ListSeats(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + `
	      FROM seats
	      WHERE hall_id = ? AND deleted_at IS NULL
	      ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, hallID)
	if err != nil {
		return nil, fmt.Errorf("list seats of hall %d: %w", hallID, err)
	}
	defer rows.Close()

	result := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InSeatTx opens a transaction, locks the seat row with SELECT ... FOR
// UPDATE and runs fn.  The row lock is held until commit or rollback, so
// concurrent units of work on the same seat (in this process or another)
// are serialized by MySQL.
func (r *SeatRepo) InSeatTx(ctx context.Context, seatID uint64, fn func(ctx context.Context, tx SeatTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seat tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q := `SELECT ` + seatColumns + ` FROM seats WHERE id = ? AND deleted_at IS NULL FOR UPDATE`
	seat, err := scanSeat(tx.QueryRowContext(ctx, q, seatID))
	if err != nil {
		return notFound(fmt.Sprintf("lock seat %d", seatID), err)
	}
	if err := fn(ctx, &mysqlSeatTx{tx: tx, seat: seat}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seat tx: %w", err)
	}
	committed = true
	return nil
}

// mysqlSeatTx runs statements on the transaction that holds the seat lock.
type mysqlSeatTx struct {
	tx   *sql.Tx
	seat *model.Seat
}

func (t *mysqlSeatTx) Seat() *model.Seat { return t.seat }

func (t *mysqlSeatTx) ConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE seat_id = ? AND status = 'CONFIRMED' AND start_at < ? AND end_at > ?
	      ORDER BY start_at, id`
	rows, err := t.tx.QueryContext(ctx, q, t.seat.ID, end, start)
	if err != nil {
		return nil, fmt.Errorf("overlapping bookings of seat %d: %w", t.seat.ID, err)
	}
	return collectBookings(rows)
}

func (t *mysqlSeatTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (seat_id, hall_id, user_id, start_at, end_at, amount_cents, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, b.SeatID, b.HallID, b.UserID, b.Start, b.End, b.AmountCents, b.Status)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps.
	stored, err := scanBooking(t.tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return fmt.Errorf("reload booking %d: %w", id, err)
	}
	*b = *stored
	return nil
}

func (t *mysqlSeatTx) SetMaintenance(ctx context.Context, m *model.Maintenance) error {
	const q = `UPDATE seats
	           SET maint_reason = ?, maint_started_at = ?, maint_until = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	var reason, startedAt, until any
	if m != nil {
		reason, startedAt = string(m.Reason), m.StartedAt
		if m.Until != nil {
			until = *m.Until
		}
	}
	if _, err := t.tx.ExecContext(ctx, q, reason, startedAt, until, t.seat.ID); err != nil {
		return fmt.Errorf("set maintenance on seat %d: %w", t.seat.ID, err)
	}
	t.seat.Maintenance = m
	return nil
}

func (t *mysqlSeatTx) SoftDelete(ctx context.Context) error {
	const q = `UPDATE seats SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`
	if _, err := t.tx.ExecContext(ctx, q, t.seat.ID); err != nil {
		return fmt.Errorf("delete seat %d: %w", t.seat.ID, err)
	}
	return nil
}
