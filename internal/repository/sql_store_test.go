package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

var (
	seatCols    = []string{"flight_id", "seat_id", "class", "status", "hold_session", "price_cents"}
	flightCols  = []string{"id", "number", "origin", "destination", "departure_at", "arrival_at", "base_price_cents", "currency", "status", "created_at", "updated_at"}
	bookingCols = []string{"reference", "hold_session", "flight_id", "user_id", "amount_cents", "currency",
		"status", "payment_status", "payment_ref", "cancel_reason", "cancelled_by",
		"passengers", "created_at", "updated_at", "cancelled_at", "checked_in_at"}
	sqlNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func flightRow() *sqlmock.Rows {
	dep := sqlNow.Add(48 * time.Hour)
	return sqlmock.NewRows(flightCols).AddRow("F1", "XY100", "AMS", "LIS", dep, dep.Add(3*time.Hour),
		int64(10000), "EUR", model.FlightScheduled, sqlNow, sqlNow)
}

func TestSeatGetTxLocksRow(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	repo := NewSeatRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM seats WHERE flight_id = ? AND seat_id = ? FOR UPDATE")).
		WithArgs("F1", "12A").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("F1", "12A", "economy", "held", "s1", nil))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	seat, err := repo.GetTx(ctx, tx, "F1", "12A")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, model.ClassEconomy, seat.Class)
	assert.Equal(t, model.SeatHeld, seat.State)
	assert.Equal(t, "s1", seat.HoldSession)
	assert.Zero(t, seat.PriceCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatGetTxTellsMissingFlightFromMissingSeat(t *testing.T) {
	cases := []struct {
		name         string
		flightExists bool
		want         error
	}{
		{"missing seat", true, ErrSeatNotFound},
		{"missing flight", false, ErrFlightNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSeatRepo(db)

			mock.ExpectBegin()
			mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(seatCols))
			flights := sqlmock.NewRows([]string{"1"})
			if tc.flightExists {
				flights.AddRow(1)
			}
			mock.ExpectQuery(q("SELECT 1 FROM flights WHERE id = ?")).WithArgs("F1").WillReturnRows(flights)
			mock.ExpectRollback()

			tx, err := db.Begin()
			require.NoError(t, err)
			_, err = repo.GetTx(context.Background(), tx, "F1", "99Z")
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, tx.Rollback())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSeatSaveTxRecountsClass(t *testing.T) {
	cases := []struct {
		name    string
		seat    model.Seat
		session interface{}
		price   interface{}
	}{
		{
			name: "released seat stores nulls",
			seat: model.Seat{FlightID: "F1", SeatID: "12A", Class: model.ClassEconomy, State: model.SeatAvailable},
		},
		{
			name:    "held seat keeps session and price",
			seat:    model.Seat{FlightID: "F1", SeatID: "12A", Class: model.ClassEconomy, State: model.SeatHeld, HoldSession: "s1", PriceCents: 12000},
			session: "s1",
			price:   int64(12000),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSeatRepo(db)

			mock.ExpectBegin()
			mock.ExpectExec(q("UPDATE seats SET status = ?, hold_session = ?, price_cents = ?")).
				WithArgs(string(tc.seat.State), tc.session, tc.price, "F1", "12A").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(q("INSERT INTO flight_inventory")).
				WithArgs("F1", "economy", "F1", "economy").
				WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectCommit()

			tx, err := db.Begin()
			require.NoError(t, err)
			seat := tc.seat
			require.NoError(t, repo.SaveTx(context.Background(), tx, &seat))
			require.NoError(t, tx.Commit())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListHeldStartsAfterCursor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSeatRepo(db)

	mock.ExpectQuery(q("WHERE status = 'held' AND (flight_id > ? OR (flight_id = ? AND seat_id > ?))")).
		WithArgs("F1", "F1", "12A", 2).
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("F1", "12B", "economy", "held", "s2", nil).
			AddRow("F2", "1A", "business", "held", "s3", nil))

	seats, err := repo.ListHeld(context.Background(), SeatCursor{FlightID: "F1", SeatID: "12A"}, 2)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "s3", seats[1].HoldSession)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassInventoryWithoutRowIsEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSeatRepo(db)

	mock.ExpectQuery(q("FROM flight_inventory WHERE flight_id = ? AND class = ?")).
		WithArgs("F1", "first").
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "available", "held", "booked"}))
	mock.ExpectQuery(q("FROM flights WHERE id = ?")).WithArgs("F1").WillReturnRows(flightRow())

	inv, err := repo.ClassInventory(context.Background(), "F1", model.ClassFirst)
	require.NoError(t, err)
	assert.Equal(t, model.ClassInventory{FlightID: "F1", Class: model.ClassFirst}, *inv)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateTxMapsDuplicateKey(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO bookings")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 's1' for key 'hold_session'"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.CreateTx(context.Background(), tx, &model.Booking{
		Reference: "ABC123WXYZ", HoldSession: "s1", FlightID: "F1", SeatIDs: []string{"12A"},
		CreatedAt: sqlNow, UpdatedAt: sqlNow,
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateTxInsertsSeatsInOneStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO booking_seats (booking_ref, flight_id, seat_id) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs("ABC123WXYZ", "F1", "12A", "ABC123WXYZ", "F1", "12B").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(context.Background(), tx, &model.Booking{
		Reference: "ABC123WXYZ", HoldSession: "s1", FlightID: "F1", UserID: "u1",
		SeatIDs: []string{"12A", "12B"}, Status: model.BookingConfirmed, Payment: model.PaymentCompleted,
		CreatedAt: sqlNow, UpdatedAt: sqlNow,
	}))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetHandlesNullColumns(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	cancelled := sqlNow.Add(time.Hour)

	mock.ExpectQuery(q("FROM bookings WHERE reference = ?")).
		WithArgs("ABC123WXYZ").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(
			"ABC123WXYZ", "s1", "F1", "u1", int64(20000), "EUR",
			"cancelled", "refunded", nil, nil, "u1",
			[]byte(`[{"first_name":"Ada","last_name":"Lovelace","seat_id":"12A"}]`),
			sqlNow, cancelled, cancelled, nil))
	mock.ExpectQuery(q("SELECT seat_id FROM booking_seats WHERE booking_ref = ?")).
		WithArgs("ABC123WXYZ").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow("12A"))

	b, err := repo.Get(context.Background(), "ABC123WXYZ")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Empty(t, b.PaymentRef)
	assert.Empty(t, b.CancelReason)
	assert.Equal(t, "u1", b.CancelledBy)
	require.NotNil(t, b.CancelledAt)
	assert.True(t, cancelled.Equal(*b.CancelledAt))
	assert.Nil(t, b.CheckedInAt)
	assert.Equal(t, []string{"12A"}, b.SeatIDs)
	require.Len(t, b.Passengers, 1)
	assert.Equal(t, "Ada", b.Passengers[0].FirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM bookings WHERE reference = ?")).WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := NewBookingRepo(db).Get(context.Background(), "NOPE000000")
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateTxWithoutRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE bookings")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = NewBookingRepo(db).UpdateTx(context.Background(), tx, &model.Booking{Reference: "NOPE000000", UpdatedAt: sqlNow})
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlightUpdateWithUnchangedValues(t *testing.T) {
	cases := []struct {
		name   string
		exists bool
		want   error
	}{
		{"unchanged row", true, nil},
		{"missing flight", false, ErrFlightNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(q("UPDATE flights")).WillReturnResult(sqlmock.NewResult(0, 0))
			rows := sqlmock.NewRows(flightCols)
			if tc.exists {
				rows = flightRow()
			}
			mock.ExpectQuery(q("FROM flights WHERE id = ?")).WithArgs("F1").WillReturnRows(rows)

			err := NewFlightRepo(db).Update(context.Background(), &model.Flight{ID: "F1", UpdatedAt: sqlNow})
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetRouteLoadsSeasons(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM routes WHERE origin = ? AND destination = ?")).
		WithArgs("FRA", "JFK").
		WillReturnRows(sqlmock.NewRows([]string{"origin", "destination", "popularity_score"}).AddRow("FRA", "JFK", 1.4))
	mock.ExpectQuery(q("FROM route_seasons")).
		WithArgs("FRA", "JFK").
		WillReturnRows(sqlmock.NewRows([]string{"start_month", "start_day", "end_month", "end_day", "multiplier"}).
			AddRow(12, 15, 1, 5, 1.3))

	r, err := NewFlightRepo(db).GetRoute(context.Background(), "FRA", "JFK")
	require.NoError(t, err)
	assert.Equal(t, 1.4, r.PopularityScore)
	require.Len(t, r.Seasons, 1)
	assert.Equal(t, time.December, r.Seasons[0].StartMonth)
	assert.Equal(t, time.January, r.Seasons[0].EndMonth)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWithTx(t *testing.T) {
	db, mock := newMock(t)
	s := NewSQLStore(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := s.WithTx(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, s.WithTx(context.Background(), func(tx Tx) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}
