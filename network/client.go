// Package network provides the shared HTTP client and the bearer-token transport layered on top of it.
package network

import (
	"net/http"
	"time"
)

// Client is the plain HTTP client shared across the application.
// OAuth endpoints and anonymous API calls use it directly.
var Client = &http.Client{
	Timeout:   time.Minute,
	Transport: newTransport(),
}

// newTransport clones the default transport with tighter idle and header timeouts.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 20
	t.MaxIdleConnsPerHost = 10
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = time.Second
	return t
}

// NewAuthClient returns a client that authenticates every request with tokens from token.
func NewAuthClient(token TokenFunc) *http.Client {
	return &http.Client{
		Timeout: Client.Timeout,
		Transport: &AuthTransport{
			Base:  Client.Transport,
			Token: token,
		},
	}
}
