package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is a liveness endpoint used by load balancers.  It returns a
// plain text "ok" with 200 as long as the process serves requests.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Check probes one dependency and returns nil when it is usable.
type Check func(ctx context.Context) error

// Ready returns a readiness endpoint that runs every check with a short
// timeout.  Any failing check turns the response into 503 and names
// the dependency.
func Ready(checks map[string]Check) echo.HandlerFunc {
    names := make([]string, 0, len(checks))
    for name := range checks {
        names = append(names, name)
    }
    sort.Strings(names)
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        status := http.StatusOK
        out := make(map[string]string, len(names))
        for _, name := range names {
            if err := checks[name](ctx); err != nil {
                status = http.StatusServiceUnavailable
                out[name] = err.Error()
                continue
            }
            out[name] = "ok"
        }
        return c.JSON(status, out)
    }
}
