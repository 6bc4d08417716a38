package hold

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConflict means a seat is already held or booked.  It is an
	// expected outcome of contention and is never retried.
	ErrConflict = errors.New("seat unavailable")
	// ErrPartialFailure is returned by BlockSeats when some seat could
	// not be taken; nothing stays held.
	ErrPartialFailure = errors.New("seats partially unavailable")
	// ErrUnauthorized means the caller's holder or session does not own
	// the lock or hold.
	ErrUnauthorized = errors.New("hold owned by another session")
	// ErrNotFound means no live lock or hold exists.
	ErrNotFound = errors.New("hold not found")
	// ErrExpired means a hold being committed is gone or past expiry.
	ErrExpired = errors.New("hold expired")
	// ErrFlightClosed means the flight no longer accepts holds.
	ErrFlightClosed = errors.New("flight not open for holds")
	// ErrInvalid reports a malformed request (no seats, no holder).
	ErrInvalid = errors.New("invalid hold request")
)

// ConflictError describes who is in the way of a seat.  Holder and
// ExpiresAt are empty when the seat is already booked.
type ConflictError struct {
	FlightID  string
	SeatID    string
	Holder    string
	ExpiresAt time.Time
	Booked    bool
}

func (e *ConflictError) Error() string {
	if e.Booked {
		return fmt.Sprintf("seat %s/%s already booked", e.FlightID, e.SeatID)
	}
	return fmt.Sprintf("seat %s/%s held until %s", e.FlightID, e.SeatID, e.ExpiresAt.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PartialFailureError lists the seat that stopped a multi-seat hold and
// the seats that were taken and then given back.
type PartialFailureError struct {
	Failed   []string
	Released []string
	Cause    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("hold failed on %s (released %s): %v",
		strings.Join(e.Failed, ","), strings.Join(e.Released, ","), e.Cause)
}

func (e *PartialFailureError) Unwrap() []error { return []error{ErrPartialFailure, e.Cause} }
