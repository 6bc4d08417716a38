package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FlightRepo manages persistence for flights and route pricing
// configuration.
type FlightRepo struct {
	db *sql.DB
}

// NewFlightRepo constructs a FlightRepo with the given DB handle.
func NewFlightRepo(db *sql.DB) *FlightRepo {
	return &FlightRepo{db: db}
}

const flightColumns = `id, number, origin, destination, departure_at, arrival_at,
                       base_price_cents, currency, status, created_at, updated_at`

// GetByID retrieves a flight by its ID.  It returns ErrFlightNotFound if
// there is no matching row.
func (r *FlightRepo) GetByID(ctx context.Context, id string) (*model.Flight, error) {
	return getFlight(ctx, r.db, id)
}

// GetByIDTx is like GetByID but runs inside tx.
func (r *FlightRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Flight, error) {
	return getFlight(ctx, tx, id)
}

func getFlight(ctx context.Context, q querier, id string) (*model.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE id = ?`
	var f model.Flight
	err := q.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Number, &f.Origin, &f.Destination, &f.DepartureAt, &f.ArrivalAt,
		&f.BasePriceCents, &f.Currency, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFlightNotFound
		}
		return nil, err
	}
	f.DepartureAt = f.DepartureAt.UTC()
	f.ArrivalAt = f.ArrivalAt.UTC()
	return &f, nil
}

// Update writes the admin-editable fields of a flight.  ErrFlightNotFound
// is returned when no row has the given ID.
func (r *FlightRepo) Update(ctx context.Context, f *model.Flight) error {
	const q = `UPDATE flights
	           SET base_price_cents = ?, departure_at = ?, arrival_at = ?, status = ?, updated_at = ?
	           WHERE id = ?`
	updatedAt := f.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		f.BasePriceCents, f.DepartureAt.UTC(), f.ArrivalAt.UTC(), f.Status, updatedAt, f.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows when values are unchanged, so
		// confirm the flight exists before reporting a miss.
		if _, err := r.GetByID(ctx, f.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetRoute loads the popularity score and seasonal ranges of a route.
// It returns ErrRouteNotFound when the route has no configuration.
func (r *FlightRepo) GetRoute(ctx context.Context, origin, destination string) (*model.Route, error) {
	const q = `SELECT origin, destination, popularity_score FROM routes WHERE origin = ? AND destination = ?`
	var rt model.Route
	if err := r.db.QueryRowContext(ctx, q, origin, destination).Scan(&rt.Origin, &rt.Destination, &rt.PopularityScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	const sq = `SELECT start_month, start_day, end_month, end_day, multiplier
	            FROM route_seasons
	            WHERE origin = ? AND destination = ?
	            ORDER BY id`
	rows, err := r.db.QueryContext(ctx, sq, origin, destination)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Season
		var sm, em int
		if err := rows.Scan(&sm, &s.StartDay, &em, &s.EndDay, &s.Multiplier); err != nil {
			return nil, err
		}
		s.StartMonth = time.Month(sm)
		s.EndMonth = time.Month(em)
		rt.Seasons = append(rt.Seasons, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rt, nil
}
