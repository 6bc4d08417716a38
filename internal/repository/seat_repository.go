package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// SeatRepo provides methods to work with seats and the derived
// flight_inventory counters.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// GetTx loads a seat and locks its row until tx ends.  Concurrent
// writers of the same seat queue behind the lock, which is what makes
// the check-then-write sequences of the hold manager and the booking
// coordinator safe across server instances.
func (r *SeatRepo) GetTx(ctx context.Context, tx *sql.Tx, flightID, seatID string) (*model.Seat, error) {
	const q = `SELECT flight_id, seat_id, class, status, hold_session, price_cents
	           FROM seats WHERE flight_id = ? AND seat_id = ? FOR UPDATE`
	s, err := scanSeat(tx.QueryRowContext(ctx, q, flightID, seatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missing(ctx, tx, flightID)
		}
		return nil, err
	}
	return s, nil
}

// GetState returns the state of one seat without locking it.
func (r *SeatRepo) GetState(ctx context.Context, flightID, seatID string) (model.SeatState, error) {
	const q = `SELECT status FROM seats WHERE flight_id = ? AND seat_id = ?`
	var st string
	if err := r.db.QueryRowContext(ctx, q, flightID, seatID).Scan(&st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", r.missing(ctx, r.db, flightID)
		}
		return "", err
	}
	return model.SeatState(st), nil
}

// missing tells a missing flight apart from a missing seat.
func (r *SeatRepo) missing(ctx context.Context, q querier, flightID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM flights WHERE id = ?`, flightID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFlightNotFound
	}
	if err != nil {
		return err
	}
	return ErrSeatNotFound
}

// SaveTx writes state, hold session and price snapshot of a seat and
// recomputes the counters for the seat's class in the same transaction.
func (r *SeatRepo) SaveTx(ctx context.Context, tx *sql.Tx, s *model.Seat) error {
	const q = `UPDATE seats SET status = ?, hold_session = ?, price_cents = ?
	           WHERE flight_id = ? AND seat_id = ?`
	var session sql.NullString
	if s.HoldSession != "" {
		session = sql.NullString{String: s.HoldSession, Valid: true}
	}
	var price sql.NullInt64
	if s.PriceCents > 0 {
		price = sql.NullInt64{Int64: s.PriceCents, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, q, string(s.State), session, price, s.FlightID, s.SeatID); err != nil {
		return err
	}
	return r.RecountTx(ctx, tx, s.FlightID, s.Class)
}

// RecountTx rebuilds the flight_inventory row of one class from the
// seats table.  The row is created on first use.
func (r *SeatRepo) RecountTx(ctx context.Context, tx *sql.Tx, flightID string, class model.SeatClass) error {
	const q = `INSERT INTO flight_inventory (flight_id, class, capacity, available, held, booked)
	           SELECT ?, ?, COUNT(*),
	                  COALESCE(SUM(status = 'available'), 0),
	                  COALESCE(SUM(status = 'held'), 0),
	                  COALESCE(SUM(status = 'booked'), 0)
	           FROM seats WHERE flight_id = ? AND class = ?
	           ON DUPLICATE KEY UPDATE
	               capacity = VALUES(capacity),
	               available = VALUES(available),
	               held = VALUES(held),
	               booked = VALUES(booked)`
	_, err := tx.ExecContext(ctx, q, flightID, string(class), flightID, string(class))
	return err
}

// ListByFlight returns every seat of a flight ordered by seat id.
func (r *SeatRepo) ListByFlight(ctx context.Context, flightID string) ([]model.Seat, error) {
	const q = `SELECT flight_id, seat_id, class, status, hold_session, price_cents
	           FROM seats WHERE flight_id = ? ORDER BY seat_id`
	seats, err := r.list(ctx, q, flightID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		if _, err := getFlight(ctx, r.db, flightID); err != nil {
			return nil, err
		}
	}
	return seats, nil
}

// ListHeld returns up to limit seats in the held state across all
// flights, after the cursor in (flight_id, seat_id) order.  The expiry
// sweeper pages through it to find holds whose lock has vanished.
func (r *SeatRepo) ListHeld(ctx context.Context, after SeatCursor, limit int) ([]model.Seat, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `SELECT flight_id, seat_id, class, status, hold_session, price_cents
	           FROM seats
	           WHERE status = 'held' AND (flight_id > ? OR (flight_id = ? AND seat_id > ?))
	           ORDER BY flight_id, seat_id LIMIT ?`
	return r.list(ctx, q, after.FlightID, after.FlightID, after.SeatID, limit)
}

func (r *SeatRepo) list(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ClassInventory reads the derived counters of one class.  A class with
// no seats yields a zero-valued inventory.
func (r *SeatRepo) ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error) {
	const q = `SELECT capacity, available, held, booked
	           FROM flight_inventory WHERE flight_id = ? AND class = ?`
	inv := model.ClassInventory{FlightID: flightID, Class: class}
	err := r.db.QueryRowContext(ctx, q, flightID, string(class)).Scan(&inv.Capacity, &inv.Available, &inv.Held, &inv.Booked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := getFlight(ctx, r.db, flightID); err != nil {
				return nil, err
			}
			return &inv, nil
		}
		return nil, err
	}
	return &inv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*model.Seat, error) {
	var s model.Seat
	var class, status string
	var session sql.NullString
	var price sql.NullInt64
	if err := row.Scan(&s.FlightID, &s.SeatID, &class, &status, &session, &price); err != nil {
		return nil, err
	}
	s.Class = model.SeatClass(class)
	s.State = model.SeatState(status)
	s.HoldSession = session.String
	s.PriceCents = price.Int64
	return &s, nil
}
