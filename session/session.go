// Package session builds the per-process set of credentials, stores and clients.
// A Session is constructed once per invocation and handed to the commands that need it.
package session

import (
	"context"
	"strings"

	"github.com/eolscan/eolscan/api"
	"github.com/eolscan/eolscan/auth"
	"github.com/eolscan/eolscan/ci"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/network"
	"github.com/eolscan/eolscan/secret"
	"github.com/eolscan/eolscan/tokenstore"
	"github.com/eolscan/eolscan/where"
	"github.com/google/uuid"
)

// Session owns everything the auth commands share within one invocation.
type Session struct {
	ID       string
	Settings config.Settings

	Tokens   *tokenstore.Store
	CITokens *tokenstore.Store

	OAuth *auth.OAuthClient
	Auth  *auth.Service

	// API authenticates with the interactive session and refreshes on 401.
	API *api.Client
	// Anonymous sends no credentials of its own.
	Anonymous *api.Client

	Orgs *ci.OrgStore
	CI   *ci.Client
}

// New opens the token stores and wires the clients for settings.
func New(ctx context.Context, settings config.Settings) (*Session, error) {
	sealer, err := secret.NewSealer()
	if err != nil {
		return nil, err
	}

	backend, err := tokenstore.NewBackend(settings.Store, where.Tokens())
	if err != nil {
		return nil, err
	}

	endpoints, err := resolveEndpoints(ctx, settings)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Settings: settings,
		Tokens:   tokenstore.Open(tokenstore.Session, backend, sealer),
		CITokens: tokenstore.Open(tokenstore.CI, backend, sealer),
		OAuth:    auth.NewOAuthClient(settings.ClientID, settings.RedirectURI, endpoints, network.Client),
		Orgs:     ci.NewOrgStore(where.CIOrg()),
	}

	s.Auth = auth.NewService(s.Tokens, s.OAuth)
	s.API = api.New(settings.APIURL, network.NewAuthClient(s.Auth.Token), api.WithSession(s.ID))
	s.Anonymous = api.New(settings.APIURL, network.Client, api.WithSession(s.ID))
	s.CI = ci.NewClient(s.Anonymous, s.Auth, s.CITokens, s.Orgs, ci.EnvFromConfig(), ci.WithSessionAPI(s.API))

	log.WithFields(log.Fields{"session": s.ID, "store": settings.Store}).Debug("session opened")
	return s, nil
}

// resolveEndpoints uses OpenID Connect discovery when enabled, the realm URL layout otherwise.
func resolveEndpoints(ctx context.Context, settings config.Settings) (auth.Endpoints, error) {
	if !settings.Discovery {
		return auth.RealmEndpoints(settings.Issuer, settings.Realm), nil
	}

	issuer := strings.TrimSuffix(settings.Issuer, "/") + "/realms/" + settings.Realm
	return auth.Discover(ctx, network.Client, issuer)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the Session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
