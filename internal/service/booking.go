package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/queue"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

// UserDirectory resolves the attributes the booking policy needs.
type UserDirectory interface {
	GetUser(ctx context.Context, id uint64) (*model.User, error)
}

// Pricer computes the amount charged for booking seat over [start, end).
type Pricer interface {
	Price(hall *model.Hall, seat *model.Seat, start, end time.Time) int64
}

// HallRatePricer charges the seat's custom hourly rate, or the hall
// default when the seat has none, prorated per started minute and
// rounded half up to the cent.
type HallRatePricer struct{}

func (HallRatePricer) Price(hall *model.Hall, seat *model.Seat, start, end time.Time) int64 {
	rate := hall.DefaultPriceCents
	if seat.CustomPriceCents != nil {
		rate = *seat.CustomPriceCents
	}
	d := end.Sub(start)
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return (rate*minutes + 30) / 60
}

// BookingService orchestrates booking creation and cancellation on top
// of the resolver and the ledger.
type BookingService struct {
	halls    repository.HallStore
	seats    repository.SeatStore
	users    UserDirectory
	ledger   *Ledger
	resolver *Resolver
	pricer   Pricer
	events   EventPublisher
	log      *zap.Logger
	Now      func() time.Time
}

func NewBookingService(halls repository.HallStore, seats repository.SeatStore, users UserDirectory,
	ledger *Ledger, resolver *Resolver, pricer Pricer, events EventPublisher, log *zap.Logger) *BookingService {
	return &BookingService{
		halls:    halls,
		seats:    seats,
		users:    users,
		ledger:   ledger,
		resolver: resolver,
		pricer:   pricer,
		events:   events,
		log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking reserves seatID for userID over [start, end).  Business
// failures are model.ErrInvalidInterval, model.ErrRetroactiveBooking,
// model.ErrNotFound, model.ErrPolicyViolation and
// model.ErrSeatUnavailable.  A lost race against a concurrent booking is
// reported as model.ErrSeatUnavailable too.
func (s *BookingService) CreateBooking(ctx context.Context, seatID, userID uint64, start, end time.Time) (*model.Booking, error) {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return nil, model.ErrInvalidInterval
	}
	if start.Before(s.Now()) {
		return nil, model.ErrRetroactiveBooking
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seat, err := s.seats.GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if err := checkPolicy(seat, user); err != nil {
		return nil, err
	}
	if err := s.resolver.Check(ctx, seatID, start, end); err != nil {
		return nil, err
	}
	hall, err := s.halls.GetHall(ctx, seat.HallID)
	if err != nil {
		return nil, err
	}

	b := &model.Booking{
		SeatID:      seatID,
		UserID:      userID,
		Start:       start,
		End:         end,
		AmountCents: s.pricer.Price(hall, seat, start, end),
	}
	// The seat row may have changed since the first check; repeat the
	// state rules against the locked row.  The shared hall gate keeps a
	// lifecycle change from landing between that check and the commit.
	// It only spans this process; across processes a status change can
	// still interleave with an in-flight insert.
	release := s.ledger.locks.ShareHall(seat.HallID)
	defer release()
	err = s.ledger.InsertChecked(ctx, b, func(ctx context.Context, locked *model.Seat) error {
		hall, err := s.halls.GetHall(ctx, locked.HallID)
		if err != nil {
			return err
		}
		if err := checkPolicy(locked, user); err != nil {
			return err
		}
		return s.resolver.checkSeat(hall, locked, start, end)
	})
	if err != nil {
		if isOverlap(err) {
			return nil, fmt.Errorf("seat %d: %w", seatID, model.ErrSeatUnavailable)
		}
		return nil, err
	}

	s.log.Info("booking created",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("seat_id", b.SeatID),
		zap.Uint64("user_id", b.UserID),
		zap.Int64("amount_cents", b.AmountCents),
	)
	publish(ctx, s.events, s.log, bookingEvent(queue.EventBookingCreated, b, s.Now()))
	return b, nil
}

// checkPolicy enforces the ladies-only rule.  A user without a recorded
// gender cannot book a ladies-only seat.
func checkPolicy(seat *model.Seat, user *model.User) error {
	if !seat.LadiesOnly {
		return nil
	}
	if user.Gender == nil {
		return fmt.Errorf("seat %d is ladies-only and user gender is unknown: %w", seat.ID, model.ErrPolicyViolation)
	}
	if *user.Gender != model.GenderFemale {
		return fmt.Errorf("seat %d is ladies-only: %w", seat.ID, model.ErrPolicyViolation)
	}
	return nil
}

// CancelBooking cancels a booking on behalf of requesterID, who must be
// the booking's user or the owner of its hall.  Cancelling twice is not
// an error.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requesterID uint64) (*model.Booking, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, b, requesterID); err != nil {
		if errors.Is(err, model.ErrForbidden) {
			return nil, fmt.Errorf("booking %d: %w", bookingID, model.ErrForbiddenCancellation)
		}
		return nil, err
	}
	b, changed, err := s.ledger.Cancel(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("booking cancelled",
			zap.Uint64("booking_id", b.ID),
			zap.Uint64("seat_id", b.SeatID),
			zap.Uint64("requester_id", requesterID),
		)
		publish(ctx, s.events, s.log, bookingEvent(queue.EventBookingCancelled, b, s.Now()))
	}
	return b, nil
}

// GetBooking returns a booking visible to requesterID: its user or the
// owner of its hall.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, requesterID uint64) (*model.Booking, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, b, requesterID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListMyBookings returns the user's bookings, most recent first.
func (s *BookingService) ListMyBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.ledger.ListByUser(ctx, userID)
}

func (s *BookingService) authorize(ctx context.Context, b *model.Booking, requesterID uint64) error {
	if b.UserID == requesterID {
		return nil
	}
	hall, err := s.halls.GetHall(ctx, b.HallID)
	if err != nil {
		return err
	}
	if hall.OwnerID != requesterID {
		return model.ErrForbidden
	}
	return nil
}
