package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mint returns a signed (HS256, test key) access token expiring at exp.
func mint(subject string, exp time.Time) string {
	claims := Claims{
		Email: subject + "@example.com",
		OrgID: 7,
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		panic(err)
	}
	return token
}
