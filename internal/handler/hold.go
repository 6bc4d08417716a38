package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// HoldService is the part of the hold manager exposed over HTTP.
type HoldService interface {
	BlockSeats(ctx context.Context, flightID string, seatIDs []string, holderID string, holdTime time.Duration) (*model.Hold, error)
	GetHold(ctx context.Context, sessionID, holderID string) (*model.Hold, error)
	ReleaseHold(ctx context.Context, sessionID, holderID string) error
	ReleaseSeat(ctx context.Context, flightID, seatID, holderID, sessionID string) error
	ExtendSeatBlock(ctx context.Context, flightID, seatID, holderID, sessionID string, extra time.Duration) (time.Time, error)
	ExtendHold(ctx context.Context, sessionID, holderID string, extra time.Duration) (*model.Hold, error)
}

// HoldHandler serves seat holds.  The authenticated user is always the
// holder; a hold can only be read, extended or released by its holder.
type HoldHandler struct {
	holds HoldService
	log   *slog.Logger
}

func NewHoldHandler(holds HoldService, log *slog.Logger) *HoldHandler {
	if holds == nil {
		panic("nil hold service passed to NewHoldHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &HoldHandler{holds: holds, log: log.With("component", "http")}
}

type createHoldRequest struct {
	SeatIDs     []string `json:"seat_ids" validate:"required,min=1,max=9,dive,required,max=8"`
	HoldSeconds int      `json:"hold_seconds" validate:"omitempty,min=1,max=3600"`
}

type extendRequest struct {
	SessionID    string `json:"session_id"`
	ExtraSeconds int    `json:"extra_seconds" validate:"required,min=1,max=3600"`
}

// Create handles POST /v1/flights/:id/holds.  All requested seats are
// held under one session or none are; a 409 names the seat that could
// not be taken.
func (h *HoldHandler) Create(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body createHoldRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	held, err := h.holds.BlockSeats(c.Request().Context(), c.Param("id"), body.SeatIDs, a.ID, seconds(body.HoldSeconds))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, held)
}

// Get handles GET /v1/holds/:session.
func (h *HoldHandler) Get(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	held, err := h.holds.GetHold(c.Request().Context(), c.Param("session"), a.ID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, held)
}

// Extend handles PATCH /v1/holds/:session and extends every seat of the
// hold.
func (h *HoldHandler) Extend(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body extendRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	held, err := h.holds.ExtendHold(c.Request().Context(), c.Param("session"), a.ID, seconds(body.ExtraSeconds))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, held)
}

// Release handles DELETE /v1/holds/:session.
func (h *HoldHandler) Release(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	if err := h.holds.ReleaseHold(c.Request().Context(), c.Param("session"), a.ID); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReleaseSeat handles DELETE /v1/flights/:id/holds/:seat?session=.
// Releasing a seat whose hold already expired succeeds.
func (h *HoldHandler) ReleaseSeat(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	session := c.QueryParam("session")
	if session == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session is required"})
	}
	if err := h.holds.ReleaseSeat(c.Request().Context(), c.Param("id"), c.Param("seat"), a.ID, session); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExtendSeat handles PATCH /v1/flights/:id/holds/:seat.
func (h *HoldHandler) ExtendSeat(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body extendRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	if body.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}
	exp, err := h.holds.ExtendSeatBlock(c.Request().Context(), c.Param("id"), c.Param("seat"), a.ID, body.SessionID, seconds(body.ExtraSeconds))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"flight_id":  c.Param("id"),
		"seat_id":    c.Param("seat"),
		"session_id": body.SessionID,
		"expires_at": exp,
	})
}
