package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/log"
	"golang.org/x/oauth2"
)

// Endpoints locates the provider.
type Endpoints struct {
	AuthURL   string
	TokenURL  string
	LogoutURL string
}

// RealmEndpoints derives the endpoints of a realm-based provider:
// <issuer>/realms/<realm>/protocol/openid-connect/{auth,token,logout}.
func RealmEndpoints(issuer, realm string) Endpoints {
	base := strings.TrimRight(issuer, "/") + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect"
	return Endpoints{
		AuthURL:   base + "/auth",
		TokenURL:  base + "/token",
		LogoutURL: base + "/logout",
	}
}

// Discover resolves the endpoints from the issuer's OpenID Connect discovery document.
func Discover(ctx context.Context, client *http.Client, issuer string) (Endpoints, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("discover %s: %w", issuer, err)
	}

	var extra struct {
		EndSession string `json:"end_session_endpoint"`
		Revocation string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return Endpoints{}, fmt.Errorf("discover %s: %w", issuer, err)
	}

	ep := provider.Endpoint()
	logout := extra.EndSession
	if logout == "" {
		logout = extra.Revocation
	}

	return Endpoints{AuthURL: ep.AuthURL, TokenURL: ep.TokenURL, LogoutURL: logout}, nil
}

// TokenEndpointError is a non-2xx answer from the token or logout endpoint.
// Body is kept verbatim so the operator sees what the provider said.
type TokenEndpointError struct {
	Status int
	Body   string
}

func (e *TokenEndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Body)
}

// OAuthClient is a public OAuth2 client: no secret, client id in the form body.
type OAuthClient struct {
	cfg       oauth2.Config
	logoutURL string
	http      *http.Client
}

// NewOAuthClient builds a client for the given endpoints.
// httpClient must not inject bearer tokens; it is used for the token endpoint itself.
func NewOAuthClient(clientID, redirectURI string, ep Endpoints, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OAuthClient{
		cfg: oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Scopes:      []string{oidc.ScopeOpenID, "email", "profile", "offline_access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   ep.AuthURL,
				TokenURL:  ep.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logoutURL: ep.LogoutURL,
		http:      httpClient,
	}
}

func (c *OAuthClient) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// RedirectURI is the callback the provider sends the browser back to.
func (c *OAuthClient) RedirectURI() string {
	return c.cfg.RedirectURL
}

// AuthCodeURL builds the authorization URL carrying state and the S256 challenge of verifier.
func (c *OAuthClient) AuthCodeURL(state, verifier string) string {
	return c.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code and its PKCE verifier for tokens.
func (c *OAuthClient) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	tok, err := c.cfg.Exchange(c.ctx(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, endpointError(err)
	}
	return tok, nil
}

// Refresh runs the refresh_token grant.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := c.cfg.TokenSource(c.ctx(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, endpointError(err)
	}
	return tok, nil
}

// Revoke ends the provider-side session of refreshToken.
// A 400 invalid_grant means the session is already gone and counts as success.
func (c *OAuthClient) Revoke(ctx context.Context, refreshToken string) error {
	if c.logoutURL == "" {
		return errors.New("provider has no logout endpoint")
	}

	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", constant.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "invalid_grant"):
		log.Debug("refresh token already invalid at the provider, treating logout as done")
		return nil
	default:
		return &TokenEndpointError{Status: resp.StatusCode, Body: string(body)}
	}
}

func endpointError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &TokenEndpointError{Status: re.Response.StatusCode, Body: string(re.Body)}
	}
	return err
}
