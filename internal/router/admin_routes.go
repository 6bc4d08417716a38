package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
)

// RegisterAdmin registers ADMIN-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, f *handler.FlightHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.PATCH("/flights/:id", f.Update)
	g.POST("/bookings/:ref/complete", b.Complete)
}
