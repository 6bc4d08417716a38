package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// SQLStore is the MySQL-backed Store.  It composes the flight, seat and
// booking repositories and exposes them through the Store contract.
type SQLStore struct {
	db       *sql.DB
	Flights  *FlightRepo
	Seats    *SeatRepo
	Bookings *BookingRepo
}

// NewSQLStore wires the repositories around one connection pool.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:       db,
		Flights:  NewFlightRepo(db),
		Seats:    NewSeatRepo(db),
		Bookings: NewBookingRepo(db),
	}
}

// DB exposes the underlying sql.DB.
func (s *SQLStore) DB() *sql.DB { return s.db }

// WithTx begins a transaction, runs fn and commits when fn succeeds.
// Any error from fn, or a panic, rolls the transaction back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *SQLStore) GetFlight(ctx context.Context, flightID string) (*model.Flight, error) {
	return s.Flights.GetByID(ctx, flightID)
}

func (s *SQLStore) UpdateFlight(ctx context.Context, f *model.Flight) error {
	return s.Flights.Update(ctx, f)
}

func (s *SQLStore) GetRoute(ctx context.Context, origin, destination string) (*model.Route, error) {
	return s.Flights.GetRoute(ctx, origin, destination)
}

func (s *SQLStore) GetSeatState(ctx context.Context, flightID, seatID string) (model.SeatState, error) {
	return s.Seats.GetState(ctx, flightID, seatID)
}

func (s *SQLStore) SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error {
	return s.WithTx(ctx, func(tx Tx) error {
		return tx.SetSeatState(ctx, flightID, seatID, state)
	})
}

func (s *SQLStore) ListSeats(ctx context.Context, flightID string) ([]model.Seat, error) {
	return s.Seats.ListByFlight(ctx, flightID)
}

func (s *SQLStore) ListHeldSeats(ctx context.Context, after SeatCursor, limit int) ([]model.Seat, error) {
	return s.Seats.ListHeld(ctx, after, limit)
}

func (s *SQLStore) ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error) {
	return s.Seats.ClassInventory(ctx, flightID, class)
}

func (s *SQLStore) GetBooking(ctx context.Context, reference string) (*model.Booking, error) {
	return s.Bookings.Get(ctx, reference)
}

func (s *SQLStore) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.Bookings.ListByUser(ctx, userID)
}

// sqlTx adapts a *sql.Tx to the Tx interface.
type sqlTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlTx) GetFlight(ctx context.Context, flightID string) (*model.Flight, error) {
	return t.s.Flights.GetByIDTx(ctx, t.tx, flightID)
}

func (t *sqlTx) GetSeat(ctx context.Context, flightID, seatID string) (*model.Seat, error) {
	return t.s.Seats.GetTx(ctx, t.tx, flightID, seatID)
}

func (t *sqlTx) SaveSeat(ctx context.Context, seat *model.Seat) error {
	return t.s.Seats.SaveTx(ctx, t.tx, seat)
}

func (t *sqlTx) SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error {
	return setSeatState(ctx, t, flightID, seatID, state)
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.CreateTx(ctx, t.tx, b)
}

func (t *sqlTx) GetBooking(ctx context.Context, reference string) (*model.Booking, error) {
	return t.s.Bookings.GetTx(ctx, t.tx, reference)
}

func (t *sqlTx) GetBookingBySession(ctx context.Context, sessionID string) (*model.Booking, error) {
	return t.s.Bookings.GetBySessionTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.UpdateTx(ctx, t.tx, b)
}

func (t *sqlTx) BookingReferenceExists(ctx context.Context, reference string) (bool, error) {
	return t.s.Bookings.ExistsTx(ctx, t.tx, reference)
}
