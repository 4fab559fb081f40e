package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
)

// Code is a structured GraphQL error code, from the "extensions.code" field.
type Code string

const (
	CodeSessionExpired      Code = "SESSION_EXPIRED"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
)

var (
	authorizationCodes = []Code{CodeSessionExpired, CodeInvalidToken, CodeUnauthenticated, CodeForbidden}
	transientCodes     = []Code{CodeInternalServerError, CodeServiceUnavailable}
)

// Error is a GraphQL error returned by the API.
type Error struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code Code `json:"code"`
	} `json:"extensions"`
}

// Code returns the structured code, empty when the server sent none.
func (e *Error) Code() Code {
	return e.Extensions.Code
}

func (e *Error) Error() string {
	if e.Code() == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Message)
}

// HTTPError is a non-2xx response that did not carry a GraphQL body.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api returned %d %s", e.Status, http.StatusText(e.Status))
}

// IsAuthorization reports whether err means the credential was rejected.
// Retrying such a call with the same credential cannot succeed.
func IsAuthorization(err error) bool {
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return lo.Contains(authorizationCodes, gqlErr.Code())
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden
	}

	return false
}

// IsTransient reports whether err is a server-side failure worth retrying.
func IsTransient(err error) bool {
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return lo.Contains(transientCodes, gqlErr.Code())
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == http.StatusTooManyRequests
	}

	return false
}
