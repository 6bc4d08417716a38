package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/booking"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// BookingService is the booking coordinator as seen by HTTP handlers.
type BookingService interface {
	Commit(ctx context.Context, req booking.CommitRequest) (*model.Booking, error)
	Get(ctx context.Context, reference string, actor model.Actor) (*model.Booking, error)
	ListForUser(ctx context.Context, userID string) ([]model.Booking, error)
	Cancel(ctx context.Context, reference string, actor model.Actor, reason string) (*model.Booking, error)
	CheckIn(ctx context.Context, reference string, actor model.Actor) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, reference string, actor model.Actor, p model.PaymentResult) (*model.Booking, error)
	Complete(ctx context.Context, reference string) (*model.Booking, error)
}

// BookingHandler turns holds into bookings and drives the booking
// lifecycle.
type BookingHandler struct {
	bookings BookingService
	log      *slog.Logger
}

func NewBookingHandler(bookings BookingService, log *slog.Logger) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookingHandler{bookings: bookings, log: log.With("component", "http")}
}

type commitRequest struct {
	SessionID  string              `json:"session_id" validate:"required,max=64"`
	Passengers []model.Passenger   `json:"passengers" validate:"required,min=1,max=9,dive"`
	Payment    model.PaymentResult `json:"payment" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// Commit handles POST /v1/bookings.  Retrying with the same session
// returns the booking created by the first successful call.
func (h *BookingHandler) Commit(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body commitRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	b, err := h.bookings.Commit(c.Request().Context(), booking.CommitRequest{
		SessionID:  body.SessionID,
		HolderID:   a.ID,
		Passengers: body.Passengers,
		Payment:    body.Payment,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// List handles GET /v1/bookings.  Admins may list another user's
// bookings with ?user_id=.
func (h *BookingHandler) List(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	userID := a.ID
	if q := c.QueryParam("user_id"); q != "" && q != a.ID {
		if !a.Admin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		userID = q
	}
	list, err := h.bookings.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Get handles GET /v1/bookings/:ref.
func (h *BookingHandler) Get(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	b, err := h.bookings.Get(c.Request().Context(), c.Param("ref"), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:ref/cancel.  The body is optional.
func (h *BookingHandler) Cancel(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body cancelRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	b, err := h.bookings.Cancel(c.Request().Context(), c.Param("ref"), a, body.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CheckIn handles POST /v1/bookings/:ref/check-in.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	b, err := h.bookings.CheckIn(c.Request().Context(), c.Param("ref"), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Payment handles POST /v1/bookings/:ref/payment, reporting the outcome
// of a payment that was still pending at commit time.
func (h *BookingHandler) Payment(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body model.PaymentResult
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	b, err := h.bookings.ConfirmPayment(c.Request().Context(), c.Param("ref"), a, body)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Complete handles POST /v1/admin/bookings/:ref/complete.
func (h *BookingHandler) Complete(c echo.Context) error {
	b, err := h.bookings.Complete(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}
