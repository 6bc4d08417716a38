package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// MemoryStore is an in-process Store.  Transactions are serialised and
// applied to a copy of the data that replaces the live copy only when fn
// succeeds.  It coordinates a single process only and is meant for local
// development and tests; production deployments use SQLStore.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	flights   map[string]model.Flight
	seats     map[string]map[string]model.Seat
	inventory map[string]map[model.SeatClass]model.ClassInventory
	routes    map[string]model.Route
	bookings  map[string]model.Booking
	sessions  map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		flights:   map[string]model.Flight{},
		seats:     map[string]map[string]model.Seat{},
		inventory: map[string]map[model.SeatClass]model.ClassInventory{},
		routes:    map[string]model.Route{},
		bookings:  map[string]model.Booking{},
		sessions:  map[string]string{},
	}}
}

// AddFlight registers a flight and its seats.  Seats without a state
// start available.
func (s *MemoryStore) AddFlight(f model.Flight, seats []model.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.flights[f.ID] = f
	m := make(map[string]model.Seat, len(seats))
	for _, seat := range seats {
		seat.FlightID = f.ID
		if seat.State == "" {
			seat.State = model.SeatAvailable
		}
		m[seat.SeatID] = seat
	}
	s.data.seats[f.ID] = m
	for _, c := range model.SeatClasses {
		s.data.recount(f.ID, c)
	}
}

// AddRoute registers pricing configuration for a route.
func (s *MemoryStore) AddRoute(r model.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.routes[r.Origin+"-"+r.Destination] = r
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) GetFlight(ctx context.Context, flightID string) (*model.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.flight(flightID)
}

func (s *MemoryStore) UpdateFlight(ctx context.Context, f *model.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data.flights[f.ID]
	if !ok {
		return ErrFlightNotFound
	}
	cur.BasePriceCents = f.BasePriceCents
	cur.DepartureAt = f.DepartureAt
	cur.ArrivalAt = f.ArrivalAt
	cur.Status = f.Status
	cur.UpdatedAt = f.UpdatedAt
	s.data.flights[f.ID] = cur
	return nil
}

func (s *MemoryStore) GetRoute(ctx context.Context, origin, destination string) (*model.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.routes[origin+"-"+destination]
	if !ok {
		return nil, ErrRouteNotFound
	}
	r.Seasons = append([]model.Season(nil), r.Seasons...)
	return &r, nil
}

func (s *MemoryStore) GetSeatState(ctx context.Context, flightID, seatID string) (model.SeatState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, err := s.data.seat(flightID, seatID)
	if err != nil {
		return "", err
	}
	return seat.State, nil
}

func (s *MemoryStore) SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error {
	return s.WithTx(ctx, func(tx Tx) error {
		return tx.SetSeatState(ctx, flightID, seatID, state)
	})
}

func (s *MemoryStore) ListSeats(ctx context.Context, flightID string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.data.seats[flightID]
	if !ok {
		return nil, ErrFlightNotFound
	}
	out := make([]model.Seat, 0, len(seats))
	for _, seat := range seats {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out, nil
}

func (s *MemoryStore) ListHeldSeats(ctx context.Context, after SeatCursor, limit int) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Seat
	for _, seats := range s.data.seats {
		for _, seat := range seats {
			if seat.State == model.SeatHeld && after.After(seat.FlightID, seat.SeatID) {
				out = append(out, seat)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FlightID != out[j].FlightID {
			return out[i].FlightID < out[j].FlightID
		}
		return out[i].SeatID < out[j].SeatID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.flights[flightID]; !ok {
		return nil, ErrFlightNotFound
	}
	inv, ok := s.data.inventory[flightID][class]
	if !ok {
		return &model.ClassInventory{FlightID: flightID, Class: class}, nil
	}
	return &inv, nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, reference string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.booking(reference)
}

func (s *MemoryStore) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.data.bookings {
		if b.UserID == userID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// memTx operates on a private copy of the store data.
type memTx struct {
	d *memData
}

func (t *memTx) GetFlight(ctx context.Context, flightID string) (*model.Flight, error) {
	return t.d.flight(flightID)
}

func (t *memTx) GetSeat(ctx context.Context, flightID, seatID string) (*model.Seat, error) {
	return t.d.seat(flightID, seatID)
}

func (t *memTx) SaveSeat(ctx context.Context, seat *model.Seat) error {
	cur, err := t.d.seat(seat.FlightID, seat.SeatID)
	if err != nil {
		return err
	}
	cur.State = seat.State
	cur.HoldSession = seat.HoldSession
	cur.PriceCents = seat.PriceCents
	t.d.seats[seat.FlightID][seat.SeatID] = *cur
	t.d.recount(cur.FlightID, cur.Class)
	return nil
}

func (t *memTx) SetSeatState(ctx context.Context, flightID, seatID string, state model.SeatState) error {
	return setSeatState(ctx, t, flightID, seatID, state)
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := t.d.bookings[b.Reference]; ok {
		return ErrConflict
	}
	if _, ok := t.d.sessions[b.HoldSession]; ok {
		return ErrConflict
	}
	t.d.bookings[b.Reference] = copyBooking(*b)
	t.d.sessions[b.HoldSession] = b.Reference
	return nil
}

func (t *memTx) GetBooking(ctx context.Context, reference string) (*model.Booking, error) {
	return t.d.booking(reference)
}

func (t *memTx) GetBookingBySession(ctx context.Context, sessionID string) (*model.Booking, error) {
	ref, ok := t.d.sessions[sessionID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return t.d.booking(ref)
}

func (t *memTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := t.d.bookings[b.Reference]; !ok {
		return ErrBookingNotFound
	}
	t.d.bookings[b.Reference] = copyBooking(*b)
	return nil
}

func (t *memTx) BookingReferenceExists(ctx context.Context, reference string) (bool, error) {
	_, ok := t.d.bookings[reference]
	return ok, nil
}

func (d *memData) flight(id string) (*model.Flight, error) {
	f, ok := d.flights[id]
	if !ok {
		return nil, ErrFlightNotFound
	}
	return &f, nil
}

func (d *memData) seat(flightID, seatID string) (*model.Seat, error) {
	seats, ok := d.seats[flightID]
	if !ok {
		return nil, ErrFlightNotFound
	}
	seat, ok := seats[seatID]
	if !ok {
		return nil, ErrSeatNotFound
	}
	return &seat, nil
}

func (d *memData) booking(ref string) (*model.Booking, error) {
	b, ok := d.bookings[ref]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := copyBooking(b)
	return &cp, nil
}

// recount rebuilds the counters of one class from the seat map.
func (d *memData) recount(flightID string, class model.SeatClass) {
	inv := model.ClassInventory{FlightID: flightID, Class: class}
	for _, seat := range d.seats[flightID] {
		if seat.Class != class {
			continue
		}
		inv.Capacity++
		switch seat.State {
		case model.SeatAvailable:
			inv.Available++
		case model.SeatHeld:
			inv.Held++
		case model.SeatBooked:
			inv.Booked++
		}
	}
	if d.inventory[flightID] == nil {
		d.inventory[flightID] = map[model.SeatClass]model.ClassInventory{}
	}
	d.inventory[flightID][class] = inv
}

func (d *memData) clone() *memData {
	c := &memData{
		flights:   make(map[string]model.Flight, len(d.flights)),
		seats:     make(map[string]map[string]model.Seat, len(d.seats)),
		inventory: make(map[string]map[model.SeatClass]model.ClassInventory, len(d.inventory)),
		routes:    d.routes,
		bookings:  make(map[string]model.Booking, len(d.bookings)),
		sessions:  make(map[string]string, len(d.sessions)),
	}
	for k, v := range d.flights {
		c.flights[k] = v
	}
	for fid, seats := range d.seats {
		m := make(map[string]model.Seat, len(seats))
		for k, v := range seats {
			m[k] = v
		}
		c.seats[fid] = m
	}
	for fid, inv := range d.inventory {
		m := make(map[model.SeatClass]model.ClassInventory, len(inv))
		for k, v := range inv {
			m[k] = v
		}
		c.inventory[fid] = m
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	return c
}

func copyBooking(b model.Booking) model.Booking {
	b.SeatIDs = append([]string(nil), b.SeatIDs...)
	b.Passengers = append([]model.Passenger(nil), b.Passengers...)
	return b
}
