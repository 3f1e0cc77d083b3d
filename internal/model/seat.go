package model

import "time"

// MaintenanceReason explains why a seat is taken out of service.
type MaintenanceReason string

const (
    ReasonCleaning   MaintenanceReason = "Cleaning"
    ReasonRepair     MaintenanceReason = "Repair"
    ReasonInspection MaintenanceReason = "Inspection"
    ReasonOther      MaintenanceReason = "Other"
)

// ValidMaintenanceReason reports whether r is one of the accepted reasons.
func ValidMaintenanceReason(r MaintenanceReason) bool {
    switch r {
    case ReasonCleaning, ReasonRepair, ReasonInspection, ReasonOther:
        return true
    }
    return false
}

// Position is the optional coordinate of a seat on the hall floor plan.
type Position struct {
    Row int `json:"row"`
    Col int `json:"col"`
}

// Maintenance is the active maintenance window of a seat.  StartedAt is
// recorded when maintenance begins; Until is the owner's estimate and
// may be nil for an open-ended window.
type Maintenance struct {
    Reason    MaintenanceReason
    StartedAt time.Time
    Until     *time.Time
}

// end returns the exclusive end of the window.  An open-ended window
// extends by horizon when horizon is positive and indefinitely otherwise.
func (m *Maintenance) end(horizon time.Duration) (time.Time, bool) {
    if m.Until != nil {
        return *m.Until, true
    }
    if horizon > 0 {
        return m.StartedAt.Add(horizon), true
    }
    return time.Time{}, false
}

// Blocks reports whether the window intersects the half-open interval
// [start, end).
func (m *Maintenance) Blocks(start, end time.Time, horizon time.Duration) bool {
    if m == nil {
        return false
    }
    mEnd, bounded := m.end(horizon)
    if !bounded {
        return end.After(m.StartedAt)
    }
    return Overlap(m.StartedAt, mEnd, start, end)
}

// Covers reports whether the instant at falls inside the window.
func (m *Maintenance) Covers(at time.Time, horizon time.Duration) bool {
    if m == nil || at.Before(m.StartedAt) {
        return false
    }
    mEnd, bounded := m.end(horizon)
    return !bounded || at.Before(mEnd)
}

// Seat describes a bookable seat in a hall.  Seat numbers are unique
// within their hall.  A seat belongs to exactly one hall for its
// lifetime.
//
// Fields:
//  ID               – primary key identifier.
//  HallID           – hall to which this seat belongs.
//  SeatNumber       – number of the seat within the hall.
//  Position         – optional floor plan coordinate.
//  CustomPriceCents – hourly rate overriding the hall default (nil if unset).
//  LadiesOnly       – restricts bookings to female users.
//  Maintenance      – active maintenance window (nil when in service).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Seat struct {
    ID               uint64       // seats.id
    HallID           uint64       // seats.hall_id
    SeatNumber       uint32       // seats.seat_number
    Position         *Position    // seats.pos_row, seats.pos_col (nullable)
    CustomPriceCents *int64       // seats.custom_price_cents (nullable)
    LadiesOnly       bool         // seats.ladies_only
    Maintenance      *Maintenance // seats.maint_* (nullable)
    CreatedAt        time.Time    // seats.created_at
    UpdatedAt        time.Time    // seats.updated_at
}

// SeatState is the display status of a seat on the seat map.
type SeatState string

const (
    SeatAvailable   SeatState = "AVAILABLE"
    SeatOccupied    SeatState = "OCCUPIED"
    SeatMaintenance SeatState = "MAINTENANCE"
)

// SeatMapEntry is one row of the seat-map query.
type SeatMapEntry struct {
    SeatID     uint64    `json:"seat_id"`
    SeatNumber uint32    `json:"seat_number"`
    Position   *Position `json:"coordinates,omitempty"`
    Status     SeatState `json:"status"`
}
