package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/booking"
	"github.com/iliyamo/flight-seat-reservation/internal/hold"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// writeError maps domain errors to HTTP responses.  Seat contention is an
// expected outcome and is only logged at debug; unmapped errors are
// logged and reported as 500 without their detail.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	if log == nil {
		log = slog.Default()
	}
	var conflict *hold.ConflictError
	var partial *hold.PartialFailureError
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fieldErrors(verrs)})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, hold.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.As(err, &partial):
		log.Debug("hold rejected", "failed", partial.Failed, "released", partial.Released, "cause", partial.Cause)
		body := echo.Map{"error": hold.ErrPartialFailure.Error(), "failed": partial.Failed, "released": partial.Released}
		if errors.As(partial.Cause, &conflict) {
			addConflict(body, conflict)
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &conflict):
		log.Debug("seat conflict", "flight_id", conflict.FlightID, "seat_id", conflict.SeatID)
		body := echo.Map{"error": hold.ErrConflict.Error()}
		addConflict(body, conflict)
		return c.JSON(http.StatusConflict, body)
	case errors.Is(err, booking.ErrInventoryConflict):
		log.Error("inventory conflict", "err", err)
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, booking.ErrHoldExpired), errors.Is(err, hold.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrHoldMismatch), errors.Is(err, booking.ErrForbidden), errors.Is(err, hold.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNotCancellable), errors.Is(err, booking.ErrNotCheckinWindow),
		errors.Is(err, booking.ErrPaymentFailed), errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, hold.ErrFlightClosed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalid), errors.Is(err, hold.ErrInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func addConflict(body echo.Map, e *hold.ConflictError) {
	body["seat_id"] = e.SeatID
	if e.Booked {
		body["booked"] = true
		return
	}
	if e.Holder != "" {
		body["holder_id"] = e.Holder
	}
	if !e.ExpiresAt.IsZero() {
		body["held_until"] = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
}
