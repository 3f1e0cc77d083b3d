package repository

import (
	"context"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// HallStore reads halls and applies owner-driven lifecycle changes.
type HallStore interface {
	// CreateHall stores a new hall and fills its ID and timestamps.
	CreateHall(ctx context.Context, h *model.Hall) error
	GetHall(ctx context.Context, id uint64) (*model.Hall, error)
	// UpdateHallStatus moves the hall from one status to another.  It
	// returns model.ErrInvalidTransition when the hall is no longer in
	// the expected from state.
	UpdateHallStatus(ctx context.Context, id uint64, from, to model.HallStatus) error
}

// SeatStore reads seats and opens per-seat units of work.  Every write
// to a seat's maintenance state, every deletion and every booking
// insert happens inside InSeatTx.
type SeatStore interface {
	// CreateSeat stores a new seat.  A seat number already used by a live
	// seat of the hall yields model.ErrDuplicateSeatNumber.
	CreateSeat(ctx context.Context, s *model.Seat) error
	GetSeat(ctx context.Context, id uint64) (*model.Seat, error)
	// ListSeats returns the hall's seats ordered by seat number.
	ListSeats(ctx context.Context, hallID uint64) ([]model.Seat, error)
	// InSeatTx runs fn while holding the storage-level lock of the seat
	// row.  fn's error rolls the unit back.  A missing or deleted seat
	// yields model.ErrNotFound without calling fn.
	InSeatTx(ctx context.Context, seatID uint64, fn func(ctx context.Context, tx SeatTx) error) error
}

// SeatTx is a unit of work scoped to one locked seat.
type SeatTx interface {
	// Seat is the seat row as read under the lock.
	Seat() *model.Seat
	ConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	// SetMaintenance replaces all maintenance fields at once; nil clears them.
	SetMaintenance(ctx context.Context, m *model.Maintenance) error
	// SoftDelete hides the seat while keeping its booking history.
	SoftDelete(ctx context.Context) error
}

// BookingStore reads bookings and applies cancellations.
type BookingStore interface {
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	// CancelBooking transitions CONFIRMED to CANCELLED.  It reports
	// whether a row changed; an already cancelled booking is not an error.
	CancelBooking(ctx context.Context, id uint64) (bool, error)
	ConfirmedOverlapping(ctx context.Context, seatID uint64, start, end time.Time) ([]model.Booking, error)
	// ActiveForSeat returns confirmed bookings of the seat ending after at.
	ActiveForSeat(ctx context.Context, seatID uint64, at time.Time) ([]model.Booking, error)
	// InRange returns every booking of the hall whose interval overlaps
	// [start, end), whatever its status, as one consistent snapshot.
	InRange(ctx context.Context, hallID uint64, start, end time.Time) ([]model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
