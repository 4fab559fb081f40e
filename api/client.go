// Package api is a small client for the eolscan GraphQL API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/network"
)

// SessionHeader carries the per-process session id on every request.
const SessionHeader = "X-Eolscan-Session"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// Client posts GraphQL documents to a single endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	session  string
	bearer   string
}

// Option customizes a Client.
type Option func(*Client)

// WithSession tags requests with the given session id.
func WithSession(id string) Option {
	return func(c *Client) { c.session = id }
}

// New returns a client for endpoint. A nil httpClient means network.Client.
func New(endpoint string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = network.Client
	}
	c := &Client{endpoint: endpoint, http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBearer returns a copy of c that sends a fixed bearer token.
func (c *Client) WithBearer(token string) *Client {
	clone := *c
	clone.bearer = token
	return &clone
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []*Error        `json:"errors"`
}

// Do runs query with vars and decodes the data field into out.
// The first GraphQL error, if any, is returned as *Error.
// A non-2xx response without a GraphQL body is returned as *HTTPError.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constant.UserAgent)
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil || (decoded.Data == nil && len(decoded.Errors) == 0) {
		if resp.StatusCode/100 != 2 {
			return &HTTPError{Status: resp.StatusCode, Body: string(body)}
		}
		return fmt.Errorf("api: malformed response: %s", truncate(body))
	}

	if len(decoded.Errors) > 0 {
		gqlErr := decoded.Errors[0]
		log.WithFields(log.Fields{"status": resp.StatusCode, "code": gqlErr.Code()}).Debugf("api error: %s", gqlErr.Message)
		return gqlErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Data, out)
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
