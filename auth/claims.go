package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Skew is subtracted from a token's expiry before it is considered usable.
const Skew = 30 * time.Second

// Claims are the identity fields carried by an access token.
// They are recomputed from the token on demand and never stored on their own.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	OrgID int    `json:"org_id,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// DecodeClaims reads the payload of a JWT without verifying its signature.
// The CLI is not the token's audience; the API verifies it on every call.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// IsExpired reports whether token is unusable at now: undecodable, without exp,
// or expiring within Skew.
func IsExpired(token string, now time.Time) bool {
	claims, err := DecodeClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Time.Before(now.Add(Skew))
}

// ErrNotLoggedIn is returned when no usable session exists.
var ErrNotLoggedIn = errors.New("not logged in, run \"eolscan auth login\" first")
