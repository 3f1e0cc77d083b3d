package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/queue"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

// Registry owns seat attributes, maintenance state and the hall
// lifecycle.  Seat writes take the same per-seat lock as ledger inserts
// so availability checks never observe a half-applied change.
type Registry struct {
	halls    repository.HallStore
	seats    repository.SeatStore
	bookings repository.BookingStore
	locks    *SeatLocks
	events   EventPublisher
	log      *zap.Logger
	Now      func() time.Time
}

func NewRegistry(halls repository.HallStore, seats repository.SeatStore, bookings repository.BookingStore,
	locks *SeatLocks, events EventPublisher, log *zap.Logger) *Registry {
	return &Registry{
		halls:    halls,
		seats:    seats,
		bookings: bookings,
		locks:    locks,
		events:   events,
		log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateHall registers a new hall for ownerID in DRAFT status.  Seats are
// numbered 1..seatCount.
func (r *Registry) CreateHall(ctx context.Context, ownerID uint64, name string, seatCount int, defaultPriceCents int64) (*model.Hall, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, fmt.Errorf("name is required: %w", model.ErrInvalidHall)
	case seatCount < 1:
		return nil, fmt.Errorf("seat count %d: %w", seatCount, model.ErrInvalidHall)
	case defaultPriceCents < 0:
		return nil, fmt.Errorf("negative price: %w", model.ErrInvalidHall)
	}
	h := &model.Hall{
		OwnerID:           ownerID,
		Name:              name,
		SeatCount:         seatCount,
		DefaultPriceCents: defaultPriceCents,
		Status:            model.HallDraft,
	}
	if err := r.halls.CreateHall(ctx, h); err != nil {
		return nil, err
	}
	r.log.Info("hall created", zap.Uint64("hall_id", h.ID), zap.Uint64("owner_id", ownerID))
	return h, nil
}

// AddSeat adds a seat to a hall owned by ownerID.  The seat number must
// lie within the hall's seat count and be unused.
func (r *Registry) AddSeat(ctx context.Context, ownerID uint64, seat model.Seat) (*model.Seat, error) {
	hall, err := r.halls.GetHall(ctx, seat.HallID)
	if err != nil {
		return nil, err
	}
	if hall.OwnerID != ownerID {
		return nil, fmt.Errorf("hall %d: %w", hall.ID, model.ErrForbidden)
	}
	if seat.SeatNumber < 1 || int(seat.SeatNumber) > hall.SeatCount {
		return nil, fmt.Errorf("seat number %d outside 1..%d: %w", seat.SeatNumber, hall.SeatCount, model.ErrInvalidSeat)
	}
	if seat.CustomPriceCents != nil && *seat.CustomPriceCents < 0 {
		return nil, fmt.Errorf("negative price: %w", model.ErrInvalidSeat)
	}
	seat.ID = 0
	seat.Maintenance = nil
	if err := r.seats.CreateSeat(ctx, &seat); err != nil {
		return nil, err
	}
	r.log.Info("seat added", zap.Uint64("seat_id", seat.ID), zap.Uint64("hall_id", seat.HallID))
	publish(ctx, r.events, r.log, seatEvent(queue.EventSeatAdded, &seat, r.Now()))
	return &seat, nil
}

func (r *Registry) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	return r.seats.GetSeat(ctx, id)
}

// ListSeats returns the hall's seats ordered by seat number.
func (r *Registry) ListSeats(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	if _, err := r.halls.GetHall(ctx, hallID); err != nil {
		return nil, err
	}
	return r.seats.ListSeats(ctx, hallID)
}

func (r *Registry) GetHall(ctx context.Context, id uint64) (*model.Hall, error) {
	return r.halls.GetHall(ctx, id)
}

// SetMaintenance starts a maintenance window now.  until is the optional
// estimated end and must lie in the future.  An existing window is
// replaced.
func (r *Registry) SetMaintenance(ctx context.Context, seatID uint64, reason model.MaintenanceReason, until *time.Time) (*model.Seat, error) {
	if !model.ValidMaintenanceReason(reason) {
		return nil, fmt.Errorf("reason %q: %w", reason, model.ErrInvalidMaintenance)
	}
	now := r.Now()
	if until != nil {
		u := until.UTC()
		if !u.After(now) {
			return nil, fmt.Errorf("until must be after now: %w", model.ErrInvalidMaintenance)
		}
		until = &u
	}
	m := &model.Maintenance{Reason: reason, StartedAt: now, Until: until}
	seat, err := r.withSeat(ctx, seatID, func(ctx context.Context, tx repository.SeatTx) error {
		return tx.SetMaintenance(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("seat maintenance set",
		zap.Uint64("seat_id", seat.ID),
		zap.String("reason", string(reason)),
	)
	publish(ctx, r.events, r.log, seatEvent(queue.EventMaintenanceSet, seat, now))
	return seat, nil
}

// ClearMaintenance nulls the reason, start and end of the seat's window
// in one write.  Clearing a seat without maintenance is a no-op.
func (r *Registry) ClearMaintenance(ctx context.Context, seatID uint64) (*model.Seat, error) {
	cleared := false
	seat, err := r.withSeat(ctx, seatID, func(ctx context.Context, tx repository.SeatTx) error {
		if tx.Seat().Maintenance == nil {
			return nil
		}
		cleared = true
		return tx.SetMaintenance(ctx, nil)
	})
	if err != nil {
		return nil, err
	}
	if cleared {
		r.log.Info("seat maintenance cleared", zap.Uint64("seat_id", seat.ID))
		publish(ctx, r.events, r.log, seatEvent(queue.EventMaintenanceCleared, seat, r.Now()))
	}
	return seat, nil
}

// DeleteSeat removes the seat from its hall.  It fails with
// model.ErrSeatInUse while any active booking references the seat.
// Booking history is kept.
func (r *Registry) DeleteSeat(ctx context.Context, seatID uint64) error {
	now := r.Now()
	seat, err := r.withSeat(ctx, seatID, func(ctx context.Context, tx repository.SeatTx) error {
		active, err := r.bookings.ActiveForSeat(ctx, seatID, now)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("seat %d has %d active bookings: %w", seatID, len(active), model.ErrSeatInUse)
		}
		return tx.SoftDelete(ctx)
	})
	if err != nil {
		return err
	}
	r.log.Info("seat deleted", zap.Uint64("seat_id", seatID), zap.Uint64("hall_id", seat.HallID))
	publish(ctx, r.events, r.log, seatEvent(queue.EventSeatDeleted, seat, now))
	return nil
}

// SetHallStatus applies an owner-driven lifecycle transition.  Only the
// hall's owner may change it.  The change waits for bookings that are
// between their hall check and commit.
func (r *Registry) SetHallStatus(ctx context.Context, hallID, ownerID uint64, to model.HallStatus) (*model.Hall, error) {
	unlock := r.locks.ExclusiveHall(hallID)
	defer unlock()

	hall, err := r.halls.GetHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	if hall.OwnerID != ownerID {
		return nil, fmt.Errorf("hall %d: %w", hallID, model.ErrForbidden)
	}
	if !model.CanTransition(hall.Status, to) {
		return nil, fmt.Errorf("hall %d %s -> %s: %w", hallID, hall.Status, to, model.ErrInvalidTransition)
	}
	if err := r.halls.UpdateHallStatus(ctx, hallID, hall.Status, to); err != nil {
		return nil, err
	}
	r.log.Info("hall status changed",
		zap.Uint64("hall_id", hallID),
		zap.String("from", string(hall.Status)),
		zap.String("to", string(to)),
	)
	return r.halls.GetHall(ctx, hallID)
}

// OwnsSeat reports whether ownerID owns the hall of the seat.
func (r *Registry) OwnsSeat(ctx context.Context, seatID, ownerID uint64) (bool, error) {
	seat, err := r.seats.GetSeat(ctx, seatID)
	if err != nil {
		return false, err
	}
	hall, err := r.halls.GetHall(ctx, seat.HallID)
	if err != nil {
		return false, err
	}
	return hall.OwnerID == ownerID, nil
}

// withSeat runs fn under the seat lock and returns the seat as left by fn.
func (r *Registry) withSeat(ctx context.Context, seatID uint64, fn func(ctx context.Context, tx repository.SeatTx) error) (*model.Seat, error) {
	unlock := r.locks.Lock(seatID)
	defer unlock()

	var seat model.Seat
	err := r.seats.InSeatTx(ctx, seatID, func(ctx context.Context, tx repository.SeatTx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		seat = *tx.Seat()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &seat, nil
}
