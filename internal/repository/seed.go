package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Seed is the JSON document used to load flights, seat maps and route
// pricing configuration into a store.  Flights may give an absolute
// departure or one relative to load time, which keeps development seeds
// bookable without editing dates.
type Seed struct {
	Routes  []model.Route `json:"routes"`
	Flights []SeedFlight  `json:"flights"`
}

// SeedFlight is a flight with its seat map.  Seats are listed explicitly,
// generated from cabins, or both.
type SeedFlight struct {
	model.Flight
	DepartsIn string       `json:"departs_in,omitempty"` // e.g. "72h"; overrides departure_at
	Duration  string       `json:"duration,omitempty"`   // e.g. "8h30m"; overrides arrival_at
	Cabins    []SeedCabin  `json:"cabins,omitempty"`
	Seats     []model.Seat `json:"seats,omitempty"`
}

// SeedCabin generates seats FirstRow..LastRow × Letters, e.g. rows 10-12
// with letters "ABC" give 10A..12C.
type SeedCabin struct {
	Class    model.SeatClass `json:"class"`
	FirstRow int             `json:"first_row"`
	LastRow  int             `json:"last_row"`
	Letters  string          `json:"letters"`
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return &s, nil
}

// resolve fills relative times, defaults and generated seats, and checks
// the flight is usable.
func (f *SeedFlight) resolve(now time.Time) (model.Flight, []model.Seat, error) {
	fl := f.Flight
	if f.DepartsIn != "" {
		d, err := time.ParseDuration(f.DepartsIn)
		if err != nil {
			return fl, nil, fmt.Errorf("flight %s: departs_in: %w", fl.ID, err)
		}
		fl.DepartureAt = now.Add(d).Truncate(time.Minute)
	}
	if f.Duration != "" {
		d, err := time.ParseDuration(f.Duration)
		if err != nil {
			return fl, nil, fmt.Errorf("flight %s: duration: %w", fl.ID, err)
		}
		fl.ArrivalAt = fl.DepartureAt.Add(d)
	}
	fl.DepartureAt = fl.DepartureAt.UTC()
	fl.ArrivalAt = fl.ArrivalAt.UTC()
	if fl.ID == "" || fl.DepartureAt.IsZero() || !fl.ArrivalAt.After(fl.DepartureAt) {
		return fl, nil, fmt.Errorf("flight %q: id, departure and a later arrival are required", fl.ID)
	}
	if fl.BasePriceCents <= 0 {
		return fl, nil, fmt.Errorf("flight %s: base_price_cents must be positive", fl.ID)
	}
	if fl.Status == "" {
		fl.Status = model.FlightScheduled
	}
	if fl.Currency == "" {
		fl.Currency = "USD"
	}
	if fl.CreatedAt.IsZero() {
		fl.CreatedAt = now
	}
	fl.UpdatedAt = now

	seats := make([]model.Seat, 0, len(f.Seats))
	seen := make(map[string]bool)
	add := func(s model.Seat) error {
		if _, err := model.ParseSeatClass(string(s.Class)); err != nil {
			return fmt.Errorf("flight %s seat %s: %w", fl.ID, s.SeatID, err)
		}
		if s.SeatID == "" || seen[s.SeatID] {
			return fmt.Errorf("flight %s: empty or duplicate seat %q", fl.ID, s.SeatID)
		}
		seen[s.SeatID] = true
		s.FlightID = fl.ID
		s.State = model.SeatAvailable
		s.HoldSession = ""
		s.PriceCents = 0
		seats = append(seats, s)
		return nil
	}
	for _, c := range f.Cabins {
		for row := c.FirstRow; row <= c.LastRow; row++ {
			for _, l := range c.Letters {
				if err := add(model.Seat{SeatID: fmt.Sprintf("%d%c", row, l), Class: c.Class}); err != nil {
					return fl, nil, err
				}
			}
		}
	}
	for _, s := range f.Seats {
		if err := add(s); err != nil {
			return fl, nil, err
		}
	}
	if len(seats) == 0 {
		return fl, nil, fmt.Errorf("flight %s: no seats", fl.ID)
	}
	return fl, seats, nil
}

// Apply loads the seed into the memory store, replacing flights with
// the same id.
func (s *MemoryStore) Apply(ctx context.Context, seed *Seed, now time.Time) error {
	for _, r := range seed.Routes {
		s.AddRoute(r)
	}
	for i := range seed.Flights {
		f, seats, err := seed.Flights[i].resolve(now)
		if err != nil {
			return err
		}
		s.AddFlight(f, seats)
	}
	return nil
}

// Apply loads the seed into MySQL in one transaction.  Existing flights
// and their seats are left untouched, so a restart never resets live
// inventory; route configuration is replaced.
func (s *SQLStore) Apply(ctx context.Context, seed *Seed, now time.Time) error {
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

	for _, r := range seed.Routes {
		if err := upsertRoute(ctx, tx, r); err != nil {
			return err
		}
	}
	for i := range seed.Flights {
		f, seats, err := seed.Flights[i].resolve(now)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT IGNORE INTO flights (`+flightColumns+`)
		        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Number, f.Origin, f.Destination, f.DepartureAt, f.ArrivalAt,
			f.BasePriceCents, f.Currency, f.Status, f.CreatedAt, f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("seed flight %s: %w", f.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		classes := make(map[model.SeatClass]bool)
		for _, seat := range seats {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO seats (flight_id, seat_id, class, status) VALUES (?, ?, ?, 'available')`,
				f.ID, seat.SeatID, string(seat.Class)); err != nil {
				return fmt.Errorf("seed seat %s/%s: %w", f.ID, seat.SeatID, err)
			}
			classes[seat.Class] = true
		}
		for _, c := range model.SeatClasses {
			if classes[c] {
				if err := s.Seats.RecountTx(ctx, tx, f.ID, c); err != nil {
					return err
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func upsertRoute(ctx context.Context, tx *sql.Tx, r model.Route) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO routes (origin, destination, popularity_score) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE popularity_score = VALUES(popularity_score)`,
		r.Origin, r.Destination, r.PopularityScore); err != nil {
		return fmt.Errorf("seed route %s-%s: %w", r.Origin, r.Destination, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM route_seasons WHERE origin = ? AND destination = ?`,
		r.Origin, r.Destination); err != nil {
		return err
	}
	for _, sn := range r.Seasons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO route_seasons (origin, destination, start_month, start_day, end_month, end_day, multiplier)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Origin, r.Destination, int(sn.StartMonth), sn.StartDay, int(sn.EndMonth), sn.EndDay, sn.Multiplier); err != nil {
			return err
		}
	}
	return nil
}
