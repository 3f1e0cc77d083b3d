package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

// Resolver answers whether a seat is free for an interval by combining
// hall lifecycle, seat maintenance and ledger occupancy.  It never
// writes.
type Resolver struct {
	halls    repository.HallStore
	seats    repository.SeatStore
	bookings repository.BookingStore
	// horizon bounds open-ended maintenance windows; zero blocks indefinitely.
	horizon time.Duration
}

func NewResolver(halls repository.HallStore, seats repository.SeatStore, bookings repository.BookingStore, horizon time.Duration) *Resolver {
	return &Resolver{halls: halls, seats: seats, bookings: bookings, horizon: horizon}
}

// Check returns nil when the seat can be booked for [start, end).
// Otherwise it returns model.ErrNotFound for an unknown seat or hall,
// model.ErrInvalidInterval for an empty interval, model.ErrSeatUnavailable
// (wrapped with the reason) for a blocked seat, or an infrastructure error.
func (r *Resolver) Check(ctx context.Context, seatID uint64, start, end time.Time) error {
	if !start.Before(end) {
		return model.ErrInvalidInterval
	}
	seat, err := r.seats.GetSeat(ctx, seatID)
	if err != nil {
		return err
	}
	hall, err := r.halls.GetHall(ctx, seat.HallID)
	if err != nil {
		return err
	}
	if err := r.checkSeat(hall, seat, start, end); err != nil {
		return err
	}
	taken, err := r.bookings.ConfirmedOverlapping(ctx, seatID, start, end)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("seat %d is booked: %w", seatID, model.ErrSeatUnavailable)
	}
	return nil
}

// checkSeat applies the state-only rules: the hall must be ACTIVE and no
// maintenance window may intersect the interval.
func (r *Resolver) checkSeat(hall *model.Hall, seat *model.Seat, start, end time.Time) error {
	if !hall.Bookable() {
		return fmt.Errorf("hall %d is %s: %w", hall.ID, hall.Status, model.ErrSeatUnavailable)
	}
	if seat.Maintenance.Blocks(start, end, r.horizon) {
		return fmt.Errorf("seat %d is under maintenance (%s): %w", seat.ID, seat.Maintenance.Reason, model.ErrSeatUnavailable)
	}
	return nil
}

// IsAvailable reports whether the seat is free for [start, end).  A
// missing seat or an empty interval is simply unavailable; only
// infrastructure failures are returned as errors.
func (r *Resolver) IsAvailable(ctx context.Context, seatID uint64, start, end time.Time) (bool, error) {
	err := r.Check(ctx, seatID, start, end)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrSeatUnavailable),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrInvalidInterval):
		return false, nil
	default:
		return false, err
	}
}

// SeatMap lists the hall's seats ordered by seat number with their
// display status at the given instant.  A seat with a confirmed booking
// covering at (started, not yet ended) is OCCUPIED; otherwise a
// maintenance window covering at makes it MAINTENANCE.  Bookings that
// start later do not show.
func (r *Resolver) SeatMap(ctx context.Context, hallID uint64, at time.Time) ([]model.SeatMapEntry, error) {
	if _, err := r.halls.GetHall(ctx, hallID); err != nil {
		return nil, err
	}
	seats, err := r.seats.ListSeats(ctx, hallID)
	if err != nil {
		return nil, err
	}
	// one second keeps the window exact at the store's timestamp precision
	around, err := r.bookings.InRange(ctx, hallID, at, at.Add(time.Second))
	if err != nil {
		return nil, err
	}
	occupied := make(map[uint64]bool, len(around))
	for i := range around {
		if around[i].Covers(at) {
			occupied[around[i].SeatID] = true
		}
	}

	out := make([]model.SeatMapEntry, 0, len(seats))
	for i := range seats {
		s := &seats[i]
		entry := model.SeatMapEntry{SeatID: s.ID, SeatNumber: s.SeatNumber, Position: s.Position, Status: model.SeatAvailable}
		switch {
		case occupied[s.ID]:
			entry.Status = model.SeatOccupied
		case s.Maintenance.Covers(at, r.horizon):
			entry.Status = model.SeatMaintenance
		}
		out = append(out, entry)
	}
	return out, nil
}
