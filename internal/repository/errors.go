// Package repository defines the seat inventory and booking storage
// contract together with its MySQL and in-memory implementations.  The
// sentinel values below allow higher layers such as the hold manager and
// the booking coordinator to distinguish between failure scenarios.
package repository

import (
    "errors"
    "fmt"
)

// ErrNotFound is the root of every lookup miss.  Use errors.Is to test
// for it regardless of which entity was missing.
var ErrNotFound = errors.New("not found")

var (
    ErrFlightNotFound  = fmt.Errorf("flight %w", ErrNotFound)
    ErrSeatNotFound    = fmt.Errorf("seat %w", ErrNotFound)
    ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
    ErrRouteNotFound   = fmt.Errorf("route %w", ErrNotFound)
)

// ErrConflict is returned when a write cannot be applied because of
// conflicting state, such as a duplicate booking reference or a second
// booking for the same hold session.  Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
