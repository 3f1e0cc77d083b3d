// Package queue defines message payloads exchanged over the message broker
// and the consumer that reacts to them.
package queue

import "time"

// SeatEventsQueue is the durable queue carrying SeatEvent messages.
const SeatEventsQueue = "studyhall.seat-events"

// Seat event types.
const (
    EventBookingCreated     = "booking.created"
    EventBookingCancelled   = "booking.cancelled"
    EventMaintenanceSet     = "seat.maintenance_set"
    EventMaintenanceCleared = "seat.maintenance_cleared"
    EventSeatAdded          = "seat.added"
    EventSeatDeleted        = "seat.deleted"
)

// SeatEvent is published after a change to a seat's occupancy or
// service state has been committed.  It carries enough information for
// downstream consumers to invalidate cached seat maps and write an audit
// trail without querying the primary database.  Booking fields are zero
// for seat-only events.
type SeatEvent struct {
    Type        string     `json:"type"`
    HallID      uint64     `json:"hall_id"`
    SeatID      uint64     `json:"seat_id"`
    BookingID   uint64     `json:"booking_id,omitempty"`
    UserID      uint64     `json:"user_id,omitempty"`
    Start       *time.Time `json:"start,omitempty"`
    End         *time.Time `json:"end,omitempty"`
    AmountCents int64      `json:"amount_cents,omitempty"`
    Reason      string     `json:"reason,omitempty"`
    At          time.Time  `json:"at"`
}
