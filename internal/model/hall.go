package model

import "time"

// HallStatus is the lifecycle state of a study hall.  Halls are never
// physically deleted; an owner moves them between states instead.
type HallStatus string

const (
    HallDraft    HallStatus = "DRAFT"
    HallActive   HallStatus = "ACTIVE"
    HallInactive HallStatus = "INACTIVE"
)

// Hall represents a study-hall venue owned by a single owner.  Seats
// may only be booked while the hall is ACTIVE.
//
// Fields:
//  ID                – primary key identifier.
//  OwnerID           – user ID of the hall owner.
//  Name              – display name of the hall.
//  SeatCount         – number of seats configured for the hall.
//  DefaultPriceCents – hourly rate used when a seat has no custom price.
//  Status            – lifecycle state (DRAFT, ACTIVE, INACTIVE).
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Hall struct {
    ID                uint64     // halls.id
    OwnerID           uint64     // halls.owner_id
    Name              string     // halls.name
    SeatCount         int        // halls.seat_count
    DefaultPriceCents int64      // halls.default_price_cents
    Status            HallStatus // halls.status
    CreatedAt         time.Time  // halls.created_at
    UpdatedAt         time.Time  // halls.updated_at
}

// Bookable reports whether seats of the hall accept new bookings.
func (h *Hall) Bookable() bool { return h.Status == HallActive }

// ParseHallStatus normalizes a client supplied status string.
func ParseHallStatus(s string) (HallStatus, bool) {
    switch HallStatus(s) {
    case HallDraft, HallActive, HallInactive:
        return HallStatus(s), true
    }
    return "", false
}

// CanTransition reports whether an owner may move a hall from one
// lifecycle state to another.  A hall never returns to DRAFT once it
// has been activated.
func CanTransition(from, to HallStatus) bool {
    switch from {
    case HallDraft:
        return to == HallActive
    case HallActive:
        return to == HallInactive
    case HallInactive:
        return to == HallActive
    }
    return false
}
