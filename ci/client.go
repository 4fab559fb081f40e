// Package ci trades long-lived CI tokens for short-lived org-scoped access tokens.
package ci

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/eolscan/eolscan/api"
	"github.com/eolscan/eolscan/auth"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/key"
	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/retry"
	"github.com/samber/mo"
)

const keyToken = "refresh_token"

// Policy applies to every remote call made by the client.
var Policy = retry.Policy{
	Attempts:  3,
	BaseDelay: 500 * time.Millisecond,
}

// SessionTokens yields the interactive session's access token.
type SessionTokens interface {
	RequireAccessToken(ctx context.Context) (string, error)
}

// TokenStore holds the CI token. *tokenstore.Store implements it.
type TokenStore interface {
	Get(key string) mo.Option[string]
	Set(key, value string) error
	Delete(keys ...string) error
}

// Orgs remembers the organization of the stored CI token. *OrgStore implements it.
type Orgs interface {
	Load() mo.Option[int]
	Save(orgID int) error
	Clear() error
}

// Env is the externally supplied CI configuration.
type Env struct {
	AccessToken  mo.Option[string]
	RefreshToken mo.Option[string]
	OrgID        mo.Option[int]
}

// EnvFromConfig reads Env from the process environment.
// A non-numeric organization id is treated as unset.
func EnvFromConfig() Env {
	return Env{
		AccessToken:  config.LookupEnv(key.CIAccessToken),
		RefreshToken: config.LookupEnv(key.CIToken),
		OrgID:        parseOrgID(config.LookupEnv(key.CIOrgID)),
	}
}

func parseOrgID(raw mo.Option[string]) mo.Option[int] {
	v, ok := raw.Get()
	if !ok {
		return mo.None[int]()
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("ignoring non-numeric %s", envName(key.CIOrgID))
		return mo.None[int]()
	}
	return mo.Some(id)
}

func envName(k string) string {
	field := config.Default[k]
	return field.Env()
}

// ExchangeInput is a CI token and the organization to scope the access token to.
// AccessToken, when still valid, authenticates the call.
type ExchangeInput struct {
	RefreshToken string
	OrgID        int
	AccessToken  string
}

// Tokens is the result of an exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// Rotated is set when the server issued a new CI token.
	Rotated bool
}

// Source tells where the credentials of a Resolution came from.
type Source string

const (
	SourceEnvAccessToken Source = "env-access-token"
	SourceEnv            Source = "env"
	SourceStore          Source = "store"
)

// Resolution is a usable CI access token.
type Resolution struct {
	AccessToken string
	OrgID       mo.Option[int]
	Tokens      *Tokens
	Source      Source
}

// Client resolves CI credentials. Every rotated CI token it sees is persisted,
// so the last successful exchange wins.
type Client struct {
	api    *api.Client
	tokens SessionTokens
	store  TokenStore
	orgs   Orgs
	env    Env
	now    func() time.Time

	// sessionAPI authenticates with the interactive session on its own and replays after a 401.
	sessionAPI *api.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithSessionAPI makes Provision call the API through a client that authenticates
// with the interactive session, such as the one built on network.NewAuthClient.
func WithSessionAPI(c *api.Client) Option {
	return func(client *Client) { client.sessionAPI = c }
}

// NewClient returns a client. apiClient must not authenticate on its own.
func NewClient(apiClient *api.Client, tokens SessionTokens, store TokenStore, orgs Orgs, env Env, opts ...Option) *Client {
	c := &Client{
		api:    apiClient,
		tokens: tokens,
		store:  store,
		orgs:   orgs,
		env:    env,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StoredToken returns the CI token from the token store.
func (c *Client) StoredToken() mo.Option[string] {
	return c.store.Get(keyToken)
}

// Clear forgets the stored CI token and organization.
func (c *Client) Clear() error {
	return errors.Join(c.store.Delete(keyToken), c.orgs.Clear())
}

// Provision creates a CI token for orgID using the interactive session and stores it.
// The session token is checked up front so a missing login fails before any request.
func (c *Client) Provision(ctx context.Context, orgID int) (string, error) {
	session, err := c.tokens.RequireAccessToken(ctx)
	if err != nil {
		return "", err
	}

	authed := c.sessionAPI
	if authed == nil {
		authed = c.api.WithBearer(session)
	}
	tokens, err := retry.Do(ctx, "provision CI token", func(ctx context.Context) (*api.OrgTokens, error) {
		tokens, err := authed.ExchangeOrgAccessToken(ctx, orgID, nil)
		return tokens, classify(err)
	}, Policy)
	if err != nil {
		return "", err
	}

	refreshToken := strings.TrimSpace(tokens.RefreshToken)
	if refreshToken == "" {
		return "", errors.New("provisioning did not return a CI token")
	}

	if err := c.persist(refreshToken, orgID); err != nil {
		return "", err
	}
	return refreshToken, nil
}

// Exchange trades in.RefreshToken for an access token scoped to in.OrgID.
// A rotated CI token is persisted before Exchange returns.
func (c *Client) Exchange(ctx context.Context, in ExchangeInput) (*Tokens, error) {
	client := c.api
	if in.AccessToken != "" {
		client = client.WithBearer(in.AccessToken)
	}

	previous := in.RefreshToken
	res, err := retry.Do(ctx, "exchange CI token", func(ctx context.Context) (*api.OrgTokens, error) {
		tokens, err := client.ExchangeOrgAccessToken(ctx, in.OrgID, &previous)
		return tokens, classify(err)
	}, Policy)
	if err != nil {
		return nil, &ExchangeError{OrgID: in.OrgID, Err: err}
	}
	if res.AccessToken == "" {
		return nil, &ExchangeError{OrgID: in.OrgID, Err: errors.New("no access token in response")}
	}

	tokens := &Tokens{AccessToken: res.AccessToken, RefreshToken: in.RefreshToken}
	if rotated := strings.TrimSpace(res.RefreshToken); rotated != "" && rotated != in.RefreshToken {
		tokens.RefreshToken = rotated
		tokens.Rotated = true
		if err := c.persist(rotated, in.OrgID); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"org_id": in.OrgID}).Info("CI token rotated")
	}
	return tokens, nil
}

// RequireAccessToken returns a CI access token: the externally supplied one while it is valid,
// otherwise a fresh one exchanged from the CI token.
func (c *Client) RequireAccessToken(ctx context.Context) (*Resolution, error) {
	if at, ok := c.env.AccessToken.Get(); ok && !auth.IsExpired(at, c.now()) {
		return &Resolution{
			AccessToken: at,
			OrgID:       c.orgID(SourceEnv),
			Source:      SourceEnvAccessToken,
		}, nil
	}

	refreshToken, source, ok := c.refreshToken()
	if !ok {
		return nil, &MissingTokenError{EnvVar: envName(key.CIToken)}
	}

	orgID, ok := c.orgID(source).Get()
	if !ok {
		return nil, &MissingOrgError{EnvVar: envName(key.CIOrgID)}
	}

	tokens, err := c.Exchange(ctx, ExchangeInput{RefreshToken: refreshToken, OrgID: orgID})
	if err != nil {
		return nil, err
	}

	return &Resolution{
		AccessToken: tokens.AccessToken,
		OrgID:       mo.Some(orgID),
		Tokens:      tokens,
		Source:      source,
	}, nil
}

func (c *Client) refreshToken() (string, Source, bool) {
	if token, ok := c.env.RefreshToken.Get(); ok {
		return token, SourceEnv, true
	}
	if token, ok := c.store.Get(keyToken).Get(); ok {
		return token, SourceStore, true
	}
	return "", "", false
}

// orgID prefers the source the token came from.
func (c *Client) orgID(source Source) mo.Option[int] {
	stored := c.orgs.Load()
	if source == SourceEnv {
		if id, ok := c.env.OrgID.Get(); ok {
			return mo.Some(id)
		}
		return stored
	}
	if stored.IsPresent() {
		return stored
	}
	return c.env.OrgID
}

func (c *Client) persist(refreshToken string, orgID int) error {
	if err := c.store.Set(keyToken, refreshToken); err != nil {
		return err
	}
	return c.orgs.Save(orgID)
}

// classify stops retries on errors another attempt cannot fix.
func classify(err error) error {
	if err != nil && api.IsAuthorization(err) {
		return retry.Permanent(err)
	}
	return err
}
