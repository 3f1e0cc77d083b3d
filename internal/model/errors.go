package model

import "errors"

// Business outcomes returned by the booking core.  Callers classify
// them with errors.Is; the HTTP layer maps each kind to a status code.
var (
    ErrNotFound              = errors.New("not found")
    ErrSeatUnavailable       = errors.New("seat unavailable for the requested interval")
    ErrPolicyViolation       = errors.New("seat policy violation")
    ErrForbiddenCancellation = errors.New("not allowed to cancel this booking")
    ErrSeatInUse             = errors.New("seat has active bookings")
    ErrForbidden             = errors.New("forbidden")
    ErrDuplicateSeatNumber   = errors.New("seat number already used in this hall")
)

// ErrOverlapConflict is the ledger's signal that the seat already holds
// a confirmed booking overlapping the interval.  The booking workflow
// re-presents it as ErrSeatUnavailable.
var ErrOverlapConflict = errors.New("overlapping confirmed booking")

// Input validation failures.
var (
    ErrInvalidInterval    = errors.New("start must be before end")
    ErrRetroactiveBooking = errors.New("start must not be in the past")
    ErrInvalidMaintenance = errors.New("invalid maintenance request")
    ErrInvalidTransition  = errors.New("invalid hall status transition")
    ErrInvalidHall        = errors.New("invalid hall attributes")
    ErrInvalidSeat        = errors.New("invalid seat attributes")
)

// ErrInvariantViolation marks a programming fault: state that the ledger
// guarantees can never exist was observed.  It is not a business outcome.
var ErrInvariantViolation = errors.New("ledger invariant violated")

// IsValidationError checks if the error is an input validation error.
func IsValidationError(err error) bool {
    return errors.Is(err, ErrInvalidInterval) ||
        errors.Is(err, ErrRetroactiveBooking) ||
        errors.Is(err, ErrInvalidMaintenance) ||
        errors.Is(err, ErrInvalidHall) ||
        errors.Is(err, ErrInvalidSeat)
}

// IsConflictError checks if the error is a conflict with current state.
func IsConflictError(err error) bool {
    return errors.Is(err, ErrSeatUnavailable) ||
        errors.Is(err, ErrOverlapConflict) ||
        errors.Is(err, ErrSeatInUse) ||
        errors.Is(err, ErrInvalidTransition) ||
        errors.Is(err, ErrDuplicateSeatNumber)
}
