package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	dep := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	s.AddFlight(model.Flight{
		ID: "F1", Number: "XY100", Origin: "AAA", Destination: "BBB",
		DepartureAt: dep, ArrivalAt: dep.Add(2 * time.Hour),
		BasePriceCents: 10000, Currency: "EUR", Status: model.FlightScheduled,
	}, []model.Seat{
		{SeatID: "1A", Class: model.ClassBusiness},
		{SeatID: "12A", Class: model.ClassEconomy},
		{SeatID: "12B", Class: model.ClassEconomy},
	})
	return s
}

func TestAddFlightBuildsInventory(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	inv, err := s.ClassInventory(ctx, "F1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Capacity)
	assert.Equal(t, 2, inv.Available)

	inv, err = s.ClassInventory(ctx, "F1", model.ClassFirst)
	require.NoError(t, err)
	assert.Zero(t, inv.Capacity)

	_, err = s.ClassInventory(ctx, "nope", model.ClassEconomy)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupsWrapNotFound(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.GetSeatState(ctx, "F1", "99Z")
	assert.ErrorIs(t, err, ErrSeatNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetSeatState(ctx, "F9", "1A")
	assert.ErrorIs(t, err, ErrFlightNotFound)

	_, err = s.GetBooking(ctx, "ABCDEF1234")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = s.GetRoute(ctx, "AAA", "BBB")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestSetSeatStateRecountsAndClearsSession(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		seat, err := tx.GetSeat(ctx, "F1", "12A")
		if err != nil {
			return err
		}
		seat.State = model.SeatHeld
		seat.HoldSession = "s1"
		return tx.SaveSeat(ctx, seat)
	}))
	inv, _ := s.ClassInventory(ctx, "F1", model.ClassEconomy)
	assert.Equal(t, 1, inv.Held)
	assert.Equal(t, 1, inv.Available)

	held, err := s.ListHeldSeats(ctx, SeatCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "s1", held[0].HoldSession)

	require.NoError(t, s.SetSeatState(ctx, "F1", "12A", model.SeatAvailable))
	seats, err := s.ListSeats(ctx, "F1")
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Equal(t, "12A", seats[0].SeatID)
	assert.Equal(t, model.SeatAvailable, seats[0].State)
	assert.Empty(t, seats[0].HoldSession)

	inv, _ = s.ClassInventory(ctx, "F1", model.ClassEconomy)
	assert.Equal(t, 2, inv.Available)
	assert.Zero(t, inv.Held)
}

func TestWithTxDiscardsWritesOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.SetSeatState(ctx, "F1", "12A", model.SeatBooked); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &model.Booking{Reference: "AAAAAA0001", HoldSession: "s1", FlightID: "F1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, err := s.GetSeatState(ctx, "F1", "12A")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, st)
	_, err = s.GetBooking(ctx, "AAAAAA0001")
	assert.ErrorIs(t, err, ErrNotFound)
	inv, _ := s.ClassInventory(ctx, "F1", model.ClassEconomy)
	assert.Zero(t, inv.Booked)
}

func TestInsertBookingRejectsDuplicates(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	b := &model.Booking{Reference: "AAAAAA0001", HoldSession: "s1", FlightID: "F1", UserID: "u1",
		SeatIDs: []string{"12A"}, CreatedAt: time.Now()}

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.InsertBooking(ctx, b) }))

	err := s.WithTx(ctx, func(tx Tx) error {
		dup := *b
		dup.HoldSession = "s2"
		return tx.InsertBooking(ctx, &dup)
	})
	assert.ErrorIs(t, err, ErrConflict)

	err = s.WithTx(ctx, func(tx Tx) error {
		dup := *b
		dup.Reference = "AAAAAA0002"
		return tx.InsertBooking(ctx, &dup)
	})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		got, err := tx.GetBookingBySession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "AAAAAA0001", got.Reference)
		ok, err := tx.BookingReferenceExists(ctx, "AAAAAA0001")
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))

	list, err := s.ListBookingsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	// returned bookings are copies
	list[0].SeatIDs[0] = "XX"
	got, err := s.GetBooking(ctx, "AAAAAA0001")
	require.NoError(t, err)
	assert.Equal(t, []string{"12A"}, got.SeatIDs)
}

func TestUpdateFlight(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	f, err := s.GetFlight(ctx, "F1")
	require.NoError(t, err)
	f.BasePriceCents = 15000
	f.Status = model.FlightCancelled
	require.NoError(t, s.UpdateFlight(ctx, f))

	got, err := s.GetFlight(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got.BasePriceCents)
	assert.Equal(t, model.FlightCancelled, got.Status)

	assert.ErrorIs(t, s.UpdateFlight(ctx, &model.Flight{ID: "F9"}), ErrFlightNotFound)
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	s := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithTx(ctx, func(Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestListHeldSeatsPagesAfterCursor(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	for _, id := range []string{"1A", "12A", "12B"} {
		require.NoError(t, s.SetSeatState(ctx, "F1", id, model.SeatHeld))
	}

	var got []string
	var cursor SeatCursor
	for {
		page, err := s.ListHeldSeats(ctx, cursor, 2)
		require.NoError(t, err)
		for _, seat := range page {
			got = append(got, seat.SeatID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		cursor = SeatCursor{FlightID: last.FlightID, SeatID: last.SeatID}
	}
	assert.Equal(t, []string{"12A", "12B", "1A"}, got)

	page, err := s.ListHeldSeats(ctx, SeatCursor{FlightID: "F1", SeatID: "1A"}, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}
