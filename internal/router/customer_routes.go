package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
)

// RegisterCustomer registers hold and booking endpoints under /v1.  All
// routes require a valid JWT; admins may use them too.  holdLimit guards
// hold creation, the route that takes seat locks.
func RegisterCustomer(e *echo.Echo, h *handler.HoldHandler, b *handler.BookingHandler, jwtSecret string, holdLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
	)

	// ---- Holds ----
	if holdLimit != nil {
		g.POST("/flights/:id/holds", h.Create, holdLimit)
	} else {
		g.POST("/flights/:id/holds", h.Create)
	}
	g.DELETE("/flights/:id/holds/:seat", h.ReleaseSeat)
	g.PATCH("/flights/:id/holds/:seat", h.ExtendSeat)
	g.GET("/holds/:session", h.Get)
	g.PATCH("/holds/:session", h.Extend)
	g.DELETE("/holds/:session", h.Release)

	// ---- Bookings ----
	g.POST("/bookings", b.Commit)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:ref", b.Get)
	g.POST("/bookings/:ref/cancel", b.Cancel)
	g.POST("/bookings/:ref/check-in", b.CheckIn)
	g.POST("/bookings/:ref/payment", b.Payment)
}
