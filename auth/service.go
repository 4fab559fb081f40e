package auth

import (
	"context"
	"errors"
	"time"

	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/tokenstore"
	"github.com/samber/mo"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// Credentials is the interactive session pair. At least one field is set;
// a session with neither is represented as absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// TokenProvider is the access token contract command handlers and remote clients depend on.
type TokenProvider interface {
	GetAccessToken(ctx context.Context) (mo.Option[string], error)
	RequireAccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
	PersistTokenResponse(tok *oauth2.Token) error
	LogoutLocally() error
}

// Refresher runs the refresh_token grant. *OAuthClient implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Service resolves usable access tokens from the session namespace of the token store.
type Service struct {
	store     *tokenstore.Store
	refresher Refresher
	now       func() time.Time
	inflight  singleflight.Group
}

var _ TokenProvider = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a provider reading and writing store.
func NewService(store *tokenstore.Store, refresher Refresher, opts ...Option) *Service {
	s := &Service{store: store, refresher: refresher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the stored pair, absent when neither token is stored.
func (s *Service) Credentials() mo.Option[Credentials] {
	creds := Credentials{
		AccessToken:  s.store.Get(keyAccessToken).OrEmpty(),
		RefreshToken: s.store.Get(keyRefreshToken).OrEmpty(),
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return mo.None[Credentials]()
	}
	return mo.Some(creds)
}

// GetAccessToken returns the stored access token while it is valid, otherwise refreshes it.
// It is absent when nothing usable is stored. Refresh failures are returned as is;
// a stale token is never handed out instead.
func (s *Service) GetAccessToken(ctx context.Context) (mo.Option[string], error) {
	creds, ok := s.Credentials().Get()
	if !ok {
		return mo.None[string](), nil
	}

	if creds.AccessToken != "" && !IsExpired(creds.AccessToken, s.now()) {
		return mo.Some(creds.AccessToken), nil
	}

	if creds.RefreshToken == "" {
		return mo.None[string](), nil
	}

	token, err := s.refresh(ctx, creds.RefreshToken)
	if err != nil {
		return mo.None[string](), err
	}
	return mo.Some(token), nil
}

// RequireAccessToken is GetAccessToken with ErrNotLoggedIn instead of an absent value.
func (s *Service) RequireAccessToken(ctx context.Context) (string, error) {
	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}
	if t, ok := token.Get(); ok {
		return t, nil
	}
	return "", ErrNotLoggedIn
}

// ForceRefresh refreshes even if the stored access token still looks valid,
// for callers that were just told by the server that it is not.
func (s *Service) ForceRefresh(ctx context.Context) (string, error) {
	creds, ok := s.Credentials().Get()
	if !ok || creds.RefreshToken == "" {
		return "", ErrNotLoggedIn
	}
	return s.refresh(ctx, creds.RefreshToken)
}

// Token adapts the provider to network.TokenFunc. An absent session yields an empty token.
func (s *Service) Token(ctx context.Context, force bool) (string, error) {
	if force {
		return s.ForceRefresh(ctx)
	}
	token, err := s.GetAccessToken(ctx)
	return token.OrEmpty(), err
}

// refresh shares one in-flight refresh between concurrent callers of this process.
// The shared call ignores the first caller's cancellation, since later callers wait on it too.
func (s *Service) refresh(ctx context.Context, refreshToken string) (string, error) {
	shared := context.WithoutCancel(ctx)
	v, err, joined := s.inflight.Do(keyRefreshToken, func() (interface{}, error) {
		tok, err := s.refresher.Refresh(shared, refreshToken)
		if err != nil {
			return "", err
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = refreshToken
		}
		if err := s.PersistTokenResponse(tok); err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		log.Debugf("access token refresh failed: %v", err)
		return "", err
	}
	if joined {
		log.Debug("joined an in-flight access token refresh")
	}
	return v.(string), nil
}

// PersistTokenResponse stores the pair carried by a provider token response.
// A response without a refresh token clears any previously stored one.
func (s *Service) PersistTokenResponse(tok *oauth2.Token) error {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return errors.New("token response carries neither an access nor a refresh token")
	}

	values := map[string]string{}
	if tok.AccessToken != "" {
		values[keyAccessToken] = tok.AccessToken
	}
	if tok.RefreshToken != "" {
		values[keyRefreshToken] = tok.RefreshToken
	}

	if err := s.store.SetAll(values); err != nil {
		return err
	}

	var stale []string
	if tok.AccessToken == "" {
		stale = append(stale, keyAccessToken)
	}
	if tok.RefreshToken == "" {
		stale = append(stale, keyRefreshToken)
	}
	if len(stale) > 0 {
		return s.store.Delete(stale...)
	}
	return nil
}

// LogoutLocally forgets the session. It never calls the provider.
func (s *Service) LogoutLocally() error {
	return s.store.Clear()
}
