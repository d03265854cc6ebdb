package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. Subject is the username.
type RefreshClaims struct {
	SessionID string `json:"session"`
	jwt.RegisteredClaims
}

// Token is a signed token and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// User identifies the token holder: ID selects keys, Username goes into claims.
type User struct {
	ID       string
	Username string
}
