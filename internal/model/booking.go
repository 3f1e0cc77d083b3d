package model

import "time"

// BookingStatus is the state of a booking.  CONFIRMED is initial and
// CANCELLED is terminal.
type BookingStatus string

const (
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
)

// Booking records a user's reservation of one seat for a time interval.
// Cancellation is a status transition; rows are never deleted so that
// revenue history is preserved.
//
// Fields:
//  ID          – primary key identifier.
//  SeatID      – seat being reserved.
//  HallID      – hall of the seat, denormalized for range queries.
//  UserID      – user who made the booking.
//  Start, End  – half-open interval [Start, End).
//  AmountCents – price charged for the interval.
//  Status      – CONFIRMED or CANCELLED.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Booking struct {
    ID          uint64        `json:"id"`
    SeatID      uint64        `json:"seat_id"`
    HallID      uint64        `json:"hall_id"`
    UserID      uint64        `json:"user_id"`
    Start       time.Time     `json:"start"`
    End         time.Time     `json:"end"`
    AmountCents int64         `json:"amount_cents"`
    Status      BookingStatus `json:"status"`
    CreatedAt   time.Time     `json:"created_at"`
    UpdatedAt   time.Time     `json:"updated_at"`
}

// Confirmed reports whether the booking holds its seat.
func (b *Booking) Confirmed() bool { return b.Status == BookingConfirmed }

// IsActive reports whether the booking still holds its seat at now, either
// running or upcoming.  Active bookings keep a seat from being deleted.
func (b *Booking) IsActive(now time.Time) bool {
    return b.Confirmed() && b.End.After(now)
}

// Covers reports whether the booking holds its seat at the instant at:
// confirmed, already started and not yet ended.
func (b *Booking) Covers(at time.Time) bool {
    return b.Confirmed() && !b.Start.After(at) && b.End.After(at)
}

// Overlaps reports whether the booking's interval shares any instant
// with [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
    return Overlap(b.Start, b.End, start, end)
}

// Overlap reports whether the half-open intervals [s1, e1) and [s2, e2)
// share any instant.  Touching intervals do not overlap.
func Overlap(s1, e1, s2, e2 time.Time) bool {
    return s1.Before(e2) && s2.Before(e1)
}
