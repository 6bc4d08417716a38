package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/booking"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/hold"
	"github.com/iliyamo/flight-seat-reservation/internal/lock"
	"github.com/iliyamo/flight-seat-reservation/internal/logger"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/pricing"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

const secret = "test-secret"

var start = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

type server struct {
	e     *echo.Echo
	store *repository.MemoryStore
	mr    *miniredis.Miniredis
	clock *clockwork.FakeClock
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := repository.NewMemoryStore()
	dep := start.Add(10 * 24 * time.Hour)
	store.AddFlight(model.Flight{
		ID: "F", Number: "XY1", Origin: "AMS", Destination: "LIS", Status: model.FlightScheduled,
		DepartureAt: dep, ArrivalAt: dep.Add(3 * time.Hour), BasePriceCents: 10000, Currency: "EUR",
	}, []model.Seat{
		{SeatID: "12A", Class: model.ClassEconomy},
		{SeatID: "12B", Class: model.ClassEconomy},
		{SeatID: "1A", Class: model.ClassBusiness},
	})

	clock := clockwork.NewFakeClockAt(start)
	log := logger.Discard()
	prices := pricing.NewEngine(store, pricing.NewRedisCache(config.PricingConfig{CacheEnabled: true, CacheTTL: time.Minute}, rdb), clock, log)
	holds := hold.NewManager(store, lock.NewRedisLocker(rdb), hold.NewRedisRecords(rdb, "hold"), prices, clock,
		config.HoldConfig{DefaultTTL: 5 * time.Minute, MaxTTL: 15 * time.Minute, RetryAttempts: 1}, log)
	coord := booking.NewCoordinator(store, holds, prices, nil, clock, config.BookingConfig{
		CancelCutoff: 2 * time.Hour, CheckInOpens: 24 * time.Hour, CheckInCloses: time.Hour,
	}, log)

	e := echo.New()
	e.Validator = handler.NewValidator()
	RegisterRoutes(e, handler.Ready(map[string]handler.Check{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}))
	flights := handler.NewFlightHandler(store, prices, log)
	bookings := handler.NewBookingHandler(coord, log)
	RegisterPublic(e, flights)
	RegisterCustomer(e, handler.NewHoldHandler(holds, log), bookings, secret,
		middleware.NewTokenBucket(config.RateLimitConfig{Enabled: false}, rdb, log))
	RegisterAdmin(e, flights, bookings, secret)
	return &server{e: e, store: store, mr: mr, clock: clock}
}

func token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, user, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (s *server) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func passengers(seats ...string) []model.Passenger {
	out := make([]model.Passenger, 0, len(seats))
	for _, s := range seats {
		out = append(out, model.Passenger{FirstName: "Ada", LastName: "Lovelace", SeatID: s})
	}
	return out
}

func TestProbes(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.mr.Close()
	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPublicSeatMapAndPrice(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/v1/flights/F/seats?class=economy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seatMap struct {
		Seats     []model.Seat           `json:"seats"`
		Inventory []model.ClassInventory `json:"inventory"`
	}
	decode(t, rec, &seatMap)
	assert.Len(t, seatMap.Seats, 2)
	assert.Len(t, seatMap.Inventory, 2)

	rec = s.do(t, http.MethodGet, "/v1/flights/F/price?class=business", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var q model.Quote
	decode(t, rec, &q)
	assert.Equal(t, int64(25000), q.FinalPriceCents)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/flights/F/price?class=premium", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/flights/NOPE/price?class=economy", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/flights/F/seats?state=gone", "", nil).Code)
}

func TestHoldRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/v1/flights/F/holds", "", map[string]interface{}{"seat_ids": []string{"12A"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad, err := utils.NewAccessToken("other-secret", "u1", middleware.RoleCustomer, time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/v1/flights/F/holds", bad.Token, map[string]interface{}{"seat_ids": []string{"12A"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/flights/F/holds", token(t, "u1", "GUEST"), map[string]interface{}{"seat_ids": []string{"12A"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHoldConflictCommitCancelFlow(t *testing.T) {
	s := newServer(t)
	u1, u2 := token(t, "u1", middleware.RoleCustomer), token(t, "u2", middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/flights/F/holds", u1, map[string]interface{}{"seat_ids": []string{"12A"}, "hold_seconds": 300})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var h model.Hold
	decode(t, rec, &h)
	assert.NotEmpty(t, h.SessionID)
	assert.True(t, start.Add(5*time.Minute).Equal(h.ExpiresAt), h.ExpiresAt)
	assert.Equal(t, int64(10000), h.TotalCents)

	rec = s.do(t, http.MethodPost, "/v1/flights/F/holds", u2, map[string]interface{}{"seat_ids": []string{"12A", "12B"}})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict map[string]interface{}
	decode(t, rec, &conflict)
	assert.Equal(t, "12A", conflict["seat_id"])
	assert.Equal(t, "u1", conflict["holder_id"])
	assert.Equal(t, []interface{}{"12A"}, conflict["failed"])

	// u2 cannot read or release u1's hold
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/holds/"+h.SessionID, u2, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/v1/flights/F/holds/12A?session="+h.SessionID, u2, nil).Code)

	rec = s.do(t, http.MethodPost, "/v1/bookings", u1, map[string]interface{}{
		"session_id": h.SessionID,
		"passengers": passengers("12A"),
		"payment":    map[string]string{"status": "completed", "reference": "pay_1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b model.Booking
	decode(t, rec, &b)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Len(t, b.Reference, 10)

	rec = s.do(t, http.MethodGet, "/v1/bookings/"+b.Reference, u2, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/bookings", u1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Bookings []model.Booking `json:"bookings"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Bookings, 1)

	rec = s.do(t, http.MethodPost, "/v1/bookings/"+b.Reference+"/cancel", u1, map[string]string{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &b)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, model.PaymentRefunded, b.Payment)

	rec = s.do(t, http.MethodPost, "/v1/flights/F/holds", u2, map[string]interface{}{"seat_ids": []string{"12A"}})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHoldExtendAndRelease(t *testing.T) {
	s := newServer(t)
	u1 := token(t, "u1", middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/flights/F/holds", u1, map[string]interface{}{"seat_ids": []string{"12B", "12A"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var h model.Hold
	decode(t, rec, &h)
	assert.Equal(t, []string{"12A", "12B"}, h.SeatIDs)

	rec = s.do(t, http.MethodPatch, "/v1/flights/F/holds/12A", u1, map[string]interface{}{"session_id": h.SessionID, "extra_seconds": 120})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPatch, "/v1/holds/"+h.SessionID, u1, map[string]interface{}{"extra_seconds": 60})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &h)
	assert.True(t, start.Add(6*time.Minute).Equal(h.ExpiresAt), h.ExpiresAt)

	rec = s.do(t, http.MethodDelete, "/v1/flights/F/holds/12A?session="+h.SessionID, u1, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/v1/flights/F/holds/12A", u1, nil).Code)

	rec = s.do(t, http.MethodDelete, "/v1/holds/"+h.SessionID, u1, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/holds/"+h.SessionID, u1, nil).Code)

	st, err := s.store.GetSeatState(context.Background(), "F", "12B")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, st)
}

func TestValidationErrors(t *testing.T) {
	s := newServer(t)
	u1 := token(t, "u1", middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/flights/F/holds", u1, map[string]interface{}{"seat_ids": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &body)
	assert.Contains(t, body.Fields, "seat_ids")

	rec = s.do(t, http.MethodPost, "/v1/bookings", u1, map[string]interface{}{
		"session_id": "s",
		"passengers": []map[string]string{{"seat_id": "12A"}},
		"payment":    map[string]string{"status": "completed"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "required", body.Fields["passengers[0].first_name"])

	rec = s.do(t, http.MethodPost, "/v1/bookings", u1, map[string]interface{}{
		"session_id": "missing",
		"passengers": passengers("12A"),
		"payment":    map[string]string{"status": "completed"},
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	admin, u1 := token(t, "root", middleware.RoleAdmin), token(t, "u1", middleware.RoleCustomer)

	patch := map[string]interface{}{"base_price_cents": 20000}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, "/v1/admin/flights/F", u1, patch).Code)

	// prime the cache, then make sure the update drops it
	rec := s.do(t, http.MethodGet, "/v1/flights/F/price?class=economy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/admin/flights/F", admin, patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/flights/F/price?class=economy", "", nil)
	var q model.Quote
	decode(t, rec, &q)
	assert.Equal(t, int64(20000), q.FinalPriceCents)

	rec = s.do(t, http.MethodPatch, "/v1/admin/flights/F", admin, map[string]interface{}{"status": "grounded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/admin/bookings/NOPE000000/complete", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPendingPaymentSettledOverHTTP(t *testing.T) {
	s := newServer(t)
	u1 := token(t, "u1", middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/flights/F/holds", u1, map[string]interface{}{"seat_ids": []string{"1A"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var h model.Hold
	decode(t, rec, &h)

	rec = s.do(t, http.MethodPost, "/v1/bookings", u1, map[string]interface{}{
		"session_id": h.SessionID,
		"passengers": passengers("1A"),
		"payment":    map[string]string{"status": "pending"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b model.Booking
	decode(t, rec, &b)
	assert.Equal(t, model.BookingPending, b.Status)

	rec = s.do(t, http.MethodPost, "/v1/bookings/"+b.Reference+"/payment", u1, map[string]string{"status": "completed", "reference": "pay_9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &b)
	assert.Equal(t, model.BookingConfirmed, b.Status)

	// check-in is not open ten days out
	rec = s.do(t, http.MethodPost, "/v1/bookings/"+b.Reference+"/check-in", u1, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
