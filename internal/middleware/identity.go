package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/flight-seat-reservation/internal/model"
)

const actorKey = "actor"

// ActorFrom returns the caller placed in the context by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    a, ok := c.Get(actorKey).(model.Actor)
    if !ok || a.ID == "" {
        return model.Actor{}, false
    }
    return a, true
}

// userID returns the caller's id, or "anon" on unauthenticated routes.
func userID(c echo.Context) string {
    if a, ok := ActorFrom(c); ok {
        return a.ID
    }
    return "anon"
}
