package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// FlightStore is the read side of the seat inventory plus the admin
// flight update.
type FlightStore interface {
	GetFlight(ctx context.Context, flightID string) (*model.Flight, error)
	UpdateFlight(ctx context.Context, f *model.Flight) error
	ListSeats(ctx context.Context, flightID string) ([]model.Seat, error)
	ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error)
}

// PriceService quotes seat classes and drops cached quotes.
type PriceService interface {
	CalculatePrice(ctx context.Context, flightID string, class model.SeatClass) (*model.Quote, error)
	Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass)
}

// FlightHandler serves seat maps, price quotes and admin flight edits.
type FlightHandler struct {
	store  FlightStore
	prices PriceService
	log    *slog.Logger
}

func NewFlightHandler(store FlightStore, prices PriceService, log *slog.Logger) *FlightHandler {
	if store == nil || prices == nil {
		panic("nil dependency passed to NewFlightHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &FlightHandler{store: store, prices: prices, log: log.With("component", "http")}
}

type seatMapResponse struct {
	Flight    *model.Flight          `json:"flight"`
	Inventory []model.ClassInventory `json:"inventory"`
	Seats     []model.Seat           `json:"seats"`
}

// Seats handles GET /v1/flights/:id/seats.  Optional ?class= and ?state=
// filters narrow the seat list; inventory counters always cover every
// class the flight has.
func (h *FlightHandler) Seats(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	f, err := h.store.GetFlight(ctx, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var class model.SeatClass
	if q := c.QueryParam("class"); q != "" {
		if class, err = model.ParseSeatClass(q); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	state := model.SeatState(c.QueryParam("state"))
	switch state {
	case "", model.SeatAvailable, model.SeatHeld, model.SeatBooked:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state filter"})
	}

	seats, err := h.store.ListSeats(ctx, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	filtered := seats[:0]
	for _, s := range seats {
		if (class == "" || s.Class == class) && (state == "" || s.State == state) {
			filtered = append(filtered, s)
		}
	}

	inv := make([]model.ClassInventory, 0, len(model.SeatClasses))
	for _, cl := range model.SeatClasses {
		ci, err := h.store.ClassInventory(ctx, id, cl)
		if err != nil {
			return writeError(c, h.log, err)
		}
		if ci.Capacity > 0 {
			inv = append(inv, *ci)
		}
	}
	return c.JSON(http.StatusOK, seatMapResponse{Flight: f, Inventory: inv, Seats: filtered})
}

// Price handles GET /v1/flights/:id/price?class=.
func (h *FlightHandler) Price(c echo.Context) error {
	class, err := model.ParseSeatClass(c.QueryParam("class"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	q, err := h.prices.CalculatePrice(c.Request().Context(), c.Param("id"), class)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, q)
}

type updateFlightRequest struct {
	BasePriceCents *int64     `json:"base_price_cents" validate:"omitempty,gt=0"`
	DepartureAt    *time.Time `json:"departure_at"`
	ArrivalAt      *time.Time `json:"arrival_at"`
	Status         *string    `json:"status" validate:"omitempty,oneof=scheduled cancelled departed"`
}

// Update handles PATCH /v1/admin/flights/:id.  Every change can move
// prices, so all cached quotes of the flight are dropped afterwards.
func (h *FlightHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	var body updateFlightRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	f, err := h.store.GetFlight(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if body.BasePriceCents != nil {
		f.BasePriceCents = *body.BasePriceCents
	}
	if body.DepartureAt != nil {
		f.DepartureAt = body.DepartureAt.UTC()
	}
	if body.ArrivalAt != nil {
		f.ArrivalAt = body.ArrivalAt.UTC()
	}
	if body.Status != nil {
		f.Status = *body.Status
	}
	if !f.ArrivalAt.After(f.DepartureAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrival_at must be after departure_at"})
	}
	f.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateFlight(ctx, f); err != nil {
		return writeError(c, h.log, err)
	}
	h.prices.Invalidate(ctx, f.ID)
	h.log.Info("flight updated", "flight_id", f.ID, "status", f.Status, "base_price_cents", f.BasePriceCents)
	return c.JSON(http.StatusOK, f)
}
