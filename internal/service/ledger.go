// Package service holds the booking core: the seat registry, the booking
// ledger, availability resolution, the booking workflow and reporting.
// It depends on the store interfaces of package repository only.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

// Precheck runs inside the seat's locked region, after the seat row has
// been read and before the overlap check.  Returning an error aborts the
// insert.
type Precheck func(ctx context.Context, seat *model.Seat) error

// Ledger owns the set of bookings and enforces that confirmed bookings
// on one seat never overlap.  Inserts are serialized per seat twice: by
// an in-process mutex keyed by seat ID and by the store's seat unit of
// work (a row lock in MySQL), which also covers other processes.
type Ledger struct {
	seats    repository.SeatStore
	bookings repository.BookingStore
	locks    *SeatLocks
	log      *zap.Logger
	strict   bool
}

// NewLedger builds a ledger.  With strict set, an invariant fault panics
// instead of being logged and returned.
func NewLedger(seats repository.SeatStore, bookings repository.BookingStore, locks *SeatLocks, log *zap.Logger, strict bool) *Ledger {
	return &Ledger{seats: seats, bookings: bookings, locks: locks, log: log, strict: strict}
}

// Insert stores b as CONFIRMED.  It fails with model.ErrOverlapConflict
// when the seat already holds a confirmed booking overlapping b.
func (l *Ledger) Insert(ctx context.Context, b *model.Booking) error {
	return l.InsertChecked(ctx, b, nil)
}

// InsertChecked is Insert with a precheck evaluated against the locked
// seat row.  On success b carries its ID, hall and timestamps.
func (l *Ledger) InsertChecked(ctx context.Context, b *model.Booking, precheck Precheck) error {
	if !b.Start.Before(b.End) {
		return model.ErrInvalidInterval
	}
	unlock := l.locks.Lock(b.SeatID)
	defer unlock()

	return l.seats.InSeatTx(ctx, b.SeatID, func(ctx context.Context, tx repository.SeatTx) error {
		seat := tx.Seat()
		if precheck != nil {
			if err := precheck(ctx, seat); err != nil {
				return err
			}
		}
		existing, err := tx.ConfirmedOverlapping(ctx, b.Start, b.End)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("seat %d already booked by %d: %w", b.SeatID, existing[0].ID, model.ErrOverlapConflict)
		}

		b.HallID = seat.HallID
		b.Status = model.BookingConfirmed
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		return l.verify(ctx, tx, b)
	})
}

// verify re-reads the seat's confirmed bookings overlapping b inside the
// same unit of work; anything besides b itself is a broken invariant.
func (l *Ledger) verify(ctx context.Context, tx repository.SeatTx, b *model.Booking) error {
	after, err := tx.ConfirmedOverlapping(ctx, b.Start, b.End)
	if err != nil {
		return err
	}
	if len(after) == 1 && after[0].ID == b.ID {
		return nil
	}
	fault := fmt.Errorf("seat %d: %d confirmed bookings overlap [%s, %s): %w",
		b.SeatID, len(after), b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339), model.ErrInvariantViolation)
	if l.strict {
		panic(fault)
	}
	l.log.Error("booking ledger invariant violated",
		zap.Uint64("seat_id", b.SeatID),
		zap.Uint64("booking_id", b.ID),
		zap.Int("overlapping", len(after)),
		zap.Error(fault),
	)
	return fault
}

// Cancel moves the booking to CANCELLED.  Cancelling an already
// cancelled booking is a no-op; changed reports whether this call did
// the transition.
func (l *Ledger) Cancel(ctx context.Context, id uint64) (b *model.Booking, changed bool, err error) {
	changed, err = l.bookings.CancelBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}
	b, err = l.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return b, changed, nil
}

func (l *Ledger) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return l.bookings.GetBooking(ctx, id)
}

// ActiveBookingsFor returns confirmed bookings of the seat that end after at.
func (l *Ledger) ActiveBookingsFor(ctx context.Context, seatID uint64, at time.Time) ([]model.Booking, error) {
	return l.bookings.ActiveForSeat(ctx, seatID, at)
}

// BookingsInRange returns every booking of the hall overlapping
// [start, end), confirmed or cancelled, read as one snapshot.
func (l *Ledger) BookingsInRange(ctx context.Context, hallID uint64, start, end time.Time) ([]model.Booking, error) {
	if !start.Before(end) {
		return nil, model.ErrInvalidInterval
	}
	return l.bookings.InRange(ctx, hallID, start, end)
}

func (l *Ledger) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return l.bookings.ListByUser(ctx, userID)
}

// isOverlap reports the ledger's lost-race signal.
func isOverlap(err error) bool { return errors.Is(err, model.ErrOverlapConflict) }
