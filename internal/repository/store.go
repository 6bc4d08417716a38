package repository

import (
	"context"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Store is the seat inventory and booking store.  It is the single
// source of truth for seat state; every mutation that must be atomic
// with another one goes through WithTx.
type Store interface {
	// WithTx runs fn inside a transaction.  If fn returns an error every
	// write made through tx is discarded.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetFlight(ctx context.Context, flightID string) (*model.Flight, error)
	// UpdateFlight persists the admin-editable fields of a flight: base
	// price, departure, arrival and status.
	UpdateFlight(ctx context.Context, f *model.Flight) error
	GetRoute(ctx context.Context, origin, destination string) (*model.Route, error)

	// GetSeatState returns ErrFlightNotFound or ErrSeatNotFound when the
	// seat does not exist.
	GetSeatState(ctx context.Context, flightID, seatID string) (model.SeatState, error)
	// SetSeatState changes one seat's state in its own transaction.
	SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error
	ListSeats(ctx context.Context, flightID string) ([]model.Seat, error)
	// ListHeldSeats returns up to limit seats, across all flights,
	// currently in the held state, ordered by flight and seat id and
	// starting after the given cursor.  The zero cursor starts at the
	// beginning.
	ListHeldSeats(ctx context.Context, after SeatCursor, limit int) ([]model.Seat, error)
	ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error)

	GetBooking(ctx context.Context, reference string) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error)
}

// SeatCursor is a position in the (flight id, seat id) ordering used to
// page through held seats.
type SeatCursor struct {
	FlightID string
	SeatID   string
}

// After reports whether seat sorts strictly after the cursor.
func (c SeatCursor) After(flightID, seatID string) bool {
	if flightID != c.FlightID {
		return flightID > c.FlightID
	}
	return seatID > c.SeatID
}

// Tx is the transactional view of a Store.  Reads of seats and
// bookings lock the rows they return until the transaction ends.
type Tx interface {
	GetFlight(ctx context.Context, flightID string) (*model.Flight, error)

	GetSeat(ctx context.Context, flightID, seatID string) (*model.Seat, error)
	// SaveSeat writes the state, hold session and price snapshot of
	// seat and recomputes the class inventory counters.
	SaveSeat(ctx context.Context, seat *model.Seat) error
	SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error

	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, reference string) (*model.Booking, error)
	// GetBookingBySession returns ErrBookingNotFound when no booking was
	// committed from the session.
	GetBookingBySession(ctx context.Context, sessionID string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
	BookingReferenceExists(ctx context.Context, reference string) (bool, error)
}

// setSeatState applies a bare state change through tx.  Leaving the held
// state clears the hold session; returning to available clears the
// price snapshot.
func setSeatState(ctx context.Context, tx Tx, flightID, seatID string, state model.SeatState) error {
	seat, err := tx.GetSeat(ctx, flightID, seatID)
	if err != nil {
		return err
	}
	seat.State = state
	if state != model.SeatHeld {
		seat.HoldSession = ""
	}
	if state == model.SeatAvailable {
		seat.PriceCents = 0
	}
	return tx.SaveSeat(ctx, seat)
}
