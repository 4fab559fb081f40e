package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/eolscan/eolscan/log"
)

// TokenFunc yields the bearer token for a request. With force set it must bypass
// any still-valid shortcut and obtain a new token.
type TokenFunc func(ctx context.Context, force bool) (string, error)

// tokenPathSuffix identifies token-issuing endpoints, which never receive a bearer token.
const tokenPathSuffix = "/token"

// AuthTransport sets "Authorization: Bearer <token>" on outgoing requests.
// A 401 on a GET or POST triggers one forced refresh and one replay of the request.
// The replay's response is returned as is.
type AuthTransport struct {
	Base  http.RoundTripper
	Token TokenFunc
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isTokenEndpoint(req) {
		return t.base().RoundTrip(req)
	}

	token, err := t.Token(req.Context(), false)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || !retryable(req) {
		return resp, nil
	}

	replay, err := rewind(req)
	if err != nil {
		log.Debugf("cannot replay %s %s: %v", req.Method, req.URL.Path, err)
		return resp, nil
	}

	fresh, err := t.Token(req.Context(), true)
	if err != nil {
		log.Debugf("forced token refresh failed: %v", err)
		return resp, nil
	}

	drain(resp)
	return t.base().RoundTrip(withBearer(replay, fresh))
}

func isTokenEndpoint(req *http.Request) bool {
	return req.URL != nil && strings.HasSuffix(req.URL.Path, tokenPathSuffix)
}

func retryable(req *http.Request) bool {
	switch req.Method {
	case "", http.MethodGet, http.MethodPost:
		return true
	default:
		return false
	}
}

// withBearer clones req, since a RoundTripper must not modify the caller's request.
func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// rewind returns a copy of req with a fresh body, for a second round trip.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
