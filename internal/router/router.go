package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/handler"
)

// RegisterRoutes registers the probes.  /healthz reports liveness and
// /readyz checks the store and Redis.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterPublic registers unauthenticated flight browsing: the seat map
// and price quotes.  Guests can look before they sign in to hold seats.
func RegisterPublic(e *echo.Echo, f *handler.FlightHandler) {
	e.GET("/v1/flights/:id/seats", f.Seats)
	e.GET("/v1/flights/:id/price", f.Price)
}
