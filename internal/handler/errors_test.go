package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/flight-seat-reservation/internal/booking"
	"github.com/iliyamo/flight-seat-reservation/internal/hold"
	"github.com/iliyamo/flight-seat-reservation/internal/logger"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

func status(err error) (int, string) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = writeError(c, logger.Discard(), err)
	return rec.Code, rec.Body.String()
}

func TestWriteErrorStatusCodes(t *testing.T) {
	conflict := &hold.ConflictError{FlightID: "F", SeatID: "12A", Holder: "u1", ExpiresAt: time.Now().Add(time.Minute)}
	cases := []struct {
		err  error
		want int
	}{
		{repository.ErrFlightNotFound, http.StatusNotFound},
		{fmt.Errorf("pricing: %w", repository.ErrFlightNotFound), http.StatusNotFound},
		{hold.ErrNotFound, http.StatusNotFound},
		{conflict, http.StatusConflict},
		{&hold.PartialFailureError{Failed: []string{"12A"}, Cause: conflict}, http.StatusConflict},
		{booking.ErrInventoryConflict, http.StatusConflict},
		{booking.ErrHoldExpired, http.StatusGone},
		{booking.ErrHoldMismatch, http.StatusForbidden},
		{booking.ErrForbidden, http.StatusForbidden},
		{hold.ErrUnauthorized, http.StatusForbidden},
		{booking.ErrNotCancellable, http.StatusUnprocessableEntity},
		{booking.ErrNotCheckinWindow, http.StatusUnprocessableEntity},
		{booking.ErrPaymentFailed, http.StatusUnprocessableEntity},
		{booking.ErrInvalidState, http.StatusUnprocessableEntity},
		{hold.ErrFlightClosed, http.StatusUnprocessableEntity},
		{hold.ErrInvalid, http.StatusBadRequest},
		{booking.ErrInvalid, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, _ := status(tc.err)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestWriteErrorConflictBody(t *testing.T) {
	_, body := status(&hold.ConflictError{FlightID: "F", SeatID: "12A", Booked: true})
	assert.JSONEq(t, `{"error":"seat unavailable","seat_id":"12A","booked":true}`, body)

	_, body = status(errors.New("secret detail"))
	assert.NotContains(t, body, "secret detail")
}
