package utils // package utils provides helpers for minting access tokens

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT carrying the sub, role,
// exp and iat claims verified by middleware.JWTAuth.  Production tokens
// come from the identity provider; this is used by the devtoken command
// and by tests.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
    if secret == "" || userID == "" {
        return AccessToken{}, errors.New("secret and user id are required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
