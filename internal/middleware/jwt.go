package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Roles carried in the "role" claim.
const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer access
// token and injects the caller into the request context.  Tokens are
// issued elsewhere; this service only verifies them.  Downstream code
// reads the caller with ActorFrom, or the raw claims via c.Get("user_id")
// and c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            sub, ok := subject(claims["sub"])
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            role, _ := claims["role"].(string)
            role = strings.ToUpper(role)

            c.Set("user_id", sub)
            c.Set("role", role)
            c.Set(actorKey, model.Actor{ID: sub, Admin: role == RoleAdmin})
            return next(c)
        }
    }
}

// subject accepts both string subjects and the numeric user ids older
// tokens carry.
func subject(v interface{}) (string, bool) {
    switch s := v.(type) {
    case string:
        return s, s != ""
    case float64:
        if s <= 0 || s != float64(int64(s)) {
            return "", false
        }
        return strconv.FormatInt(int64(s), 10), true
    case nil:
        return "", false
    default:
        str := fmt.Sprint(s)
        return str, str != ""
    }
}
