package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// actor returns the authenticated caller, or writes 401 and ok=false.
func actor(c echo.Context) (model.Actor, bool, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return a, true, nil
}

// bindValid binds the request body into dst and validates it.  On
// failure it writes the 400 response and returns ok=false.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		return false, writeError(c, nil, err)
	}
	return true, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
