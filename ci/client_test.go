package ci

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/eolscan/eolscan/api"
	"github.com/eolscan/eolscan/auth"
	"github.com/eolscan/eolscan/filesystem"
	"github.com/eolscan/eolscan/network"
	"github.com/eolscan/eolscan/retry"
	"github.com/eolscan/eolscan/secret"
	"github.com/eolscan/eolscan/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
)

type exchangeCall struct {
	OrgID         float64
	PreviousToken *string
	Authorization string
}

// backend answers exchange mutations with scripted bodies, repeating the last one.
type backend struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
	calls  []exchangeCall
}

func newBackend(bodies ...string) *backend {
	b := &backend{bodies: bodies}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Input struct {
					OrgID         float64 `json:"orgId"`
					PreviousToken *string `json:"previousToken"`
				} `json:"input"`
			} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		b.calls = append(b.calls, exchangeCall{
			OrgID:         req.Variables.Input.OrgID,
			PreviousToken: req.Variables.Input.PreviousToken,
			Authorization: r.Header.Get("Authorization"),
		})
		body := b.bodies[len(b.bodies)-1]
		if len(b.calls) <= len(b.bodies) {
			body = b.bodies[len(b.calls)-1]
		}
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	return b
}

func tokensBody(access, refresh string) string {
	return `{"data":{"exchangeOrgAccessToken":{"accessToken":"` + access + `","refreshToken":"` + refresh + `"}}}`
}

func errorBody(code string) string {
	return `{"errors":[{"message":"` + code + `","extensions":{"code":"` + code + `"}}]}`
}

type sessionFunc func(ctx context.Context) (string, error)

func (f sessionFunc) RequireAccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

func loggedIn(context.Context) (string, error) { return "SESSION", nil }

func jwtExpiring(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	if err != nil {
		panic(err)
	}
	return token
}

func TestRequireAccessToken(t *testing.T) {
	Policy.BaseDelay = time.Millisecond

	Convey("Given a CI client", t, func() {
		filesystem.SetMemMapFs()
		store := tokenstore.Open(tokenstore.CI, tokenstore.FileBackend{Dir: "/cfg/tokens"}, secret.NewSealerFor("host", "user"))
		orgs := NewOrgStore("/cfg/ci-org.json")
		b := newBackend(tokensBody("ACCESS", "CI-1"))
		defer b.Close()

		var env Env
		client := func() *Client {
			return NewClient(api.New(b.URL, b.Client()), sessionFunc(loggedIn), store, orgs, env)
		}
		ctx := context.Background()

		Convey("Nothing configured is a missing token", func() {
			_, err := client().RequireAccessToken(ctx)

			var missing *MissingTokenError
			So(errors.As(err, &missing), ShouldBeTrue)
			So(missing.Remediation(), ShouldContainSubstring, ProvisionCommand)
			So(missing.Remediation(), ShouldContainSubstring, "EOLSCAN_CI_TOKEN")
			So(b.calls, ShouldBeEmpty)
		})

		Convey("A token from the environment without any org id is a missing org", func() {
			env.RefreshToken = mo.Some("CI-1")

			_, err := client().RequireAccessToken(ctx)

			var missing *MissingOrgError
			So(errors.As(err, &missing), ShouldBeTrue)
			So(missing.Remediation(), ShouldContainSubstring, "EOLSCAN_CI_ORG_ID")
			So(b.calls, ShouldBeEmpty)
		})

		Convey("A stored token without any org id is a missing org", func() {
			So(store.Set(keyToken, "CI-1"), ShouldBeNil)

			_, err := client().RequireAccessToken(ctx)

			var missing *MissingOrgError
			So(errors.As(err, &missing), ShouldBeTrue)
		})

		Convey("A valid external access token is used as is", func() {
			at := jwtExpiring(time.Now().Add(time.Hour))
			env.AccessToken = mo.Some(at)
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.AccessToken, ShouldEqual, at)
			So(res.Source, ShouldEqual, SourceEnvAccessToken)
			So(res.OrgID.MustGet(), ShouldEqual, 3)
			So(b.calls, ShouldBeEmpty)
		})

		Convey("An expired external access token falls back to the exchange", func() {
			env.AccessToken = mo.Some(jwtExpiring(time.Now().Add(10 * time.Second)))
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.AccessToken, ShouldEqual, "ACCESS")
			So(res.Source, ShouldEqual, SourceEnv)
			So(b.calls, ShouldHaveLength, 1)
			So(*b.calls[0].PreviousToken, ShouldEqual, "CI-1")
			So(b.calls[0].Authorization, ShouldBeEmpty)
		})

		Convey("With a token from the environment, the environment org id wins", func() {
			So(orgs.Save(5), ShouldBeNil)
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.OrgID.MustGet(), ShouldEqual, 3)
			So(b.calls[0].OrgID, ShouldEqual, float64(3))
		})

		Convey("With a stored token, the stored org id wins", func() {
			So(store.Set(keyToken, "CI-1"), ShouldBeNil)
			So(orgs.Save(5), ShouldBeNil)
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.Source, ShouldEqual, SourceStore)
			So(b.calls[0].OrgID, ShouldEqual, float64(5))
		})

		Convey("An environment org id completes a stored token", func() {
			So(store.Set(keyToken, "CI-1"), ShouldBeNil)
			env.OrgID = mo.Some(3)

			_, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(b.calls[0].OrgID, ShouldEqual, float64(3))
		})

		Convey("A rotated token is persisted", func() {
			b.bodies = []string{tokensBody("ACCESS", "CI-2")}
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.Tokens.Rotated, ShouldBeTrue)
			So(res.Tokens.RefreshToken, ShouldEqual, "CI-2")
			So(store.Get(keyToken).MustGet(), ShouldEqual, "CI-2")
			So(orgs.Load().MustGet(), ShouldEqual, 3)
		})

		Convey("An unchanged token is not rewritten", func() {
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.Tokens.Rotated, ShouldBeFalse)
			So(store.Get(keyToken).IsPresent(), ShouldBeFalse)
		})

		Convey("Transient failures are retried", func() {
			b.bodies = []string{errorBody("SERVICE_UNAVAILABLE"), tokensBody("ACCESS", "CI-1")}
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			res, err := client().RequireAccessToken(ctx)
			So(err, ShouldBeNil)
			So(res.AccessToken, ShouldEqual, "ACCESS")
			So(b.calls, ShouldHaveLength, 2)
		})

		Convey("Authorization failures are not retried", func() {
			b.bodies = []string{errorBody("INVALID_TOKEN")}
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			_, err := client().RequireAccessToken(ctx)

			var exchangeErr *ExchangeError
			So(errors.As(err, &exchangeErr), ShouldBeTrue)
			So(exchangeErr.Remediation(), ShouldContainSubstring, ProvisionCommand)
			So(api.IsAuthorization(err), ShouldBeTrue)
			So(b.calls, ShouldHaveLength, 1)
		})

		Convey("Exhausted retries are an exchange failure", func() {
			b.bodies = []string{errorBody("INTERNAL_SERVER_ERROR")}
			env.RefreshToken = mo.Some("CI-1")
			env.OrgID = mo.Some(3)

			_, err := client().RequireAccessToken(ctx)

			var exchangeErr *ExchangeError
			So(errors.As(err, &exchangeErr), ShouldBeTrue)
			var retryErr *retry.Error
			So(errors.As(err, &retryErr), ShouldBeTrue)
			So(retryErr.Attempts, ShouldEqual, 3)
			So(b.calls, ShouldHaveLength, 3)
		})
	})
}

func TestProvision(t *testing.T) {
	Policy.BaseDelay = time.Millisecond

	Convey("Given a logged in user", t, func() {
		filesystem.SetMemMapFs()
		store := tokenstore.Open(tokenstore.CI, tokenstore.FileBackend{Dir: "/cfg/tokens"}, secret.NewSealerFor("host", "user"))
		orgs := NewOrgStore("/cfg/ci-org.json")
		b := newBackend(tokensBody("ACCESS", "CI-NEW"))
		defer b.Close()
		ctx := context.Background()

		Convey("Provisioning uses the session and stores the new token", func() {
			client := NewClient(api.New(b.URL, b.Client()), sessionFunc(loggedIn), store, orgs, Env{})

			token, err := client.Provision(ctx, 7)
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "CI-NEW")

			So(b.calls, ShouldHaveLength, 1)
			So(b.calls[0].Authorization, ShouldEqual, "Bearer SESSION")
			So(b.calls[0].PreviousToken, ShouldBeNil)
			So(b.calls[0].OrgID, ShouldEqual, float64(7))

			So(client.StoredToken().MustGet(), ShouldEqual, "CI-NEW")
			So(store.Get("refresh_token").MustGet(), ShouldEqual, "CI-NEW")
			So(orgs.Load().MustGet(), ShouldEqual, 7)

			Convey("And Clear forgets both", func() {
				So(client.Clear(), ShouldBeNil)
				So(client.StoredToken().IsPresent(), ShouldBeFalse)
				So(orgs.Load().IsPresent(), ShouldBeFalse)
			})
		})

		Convey("A blank token in the response fails", func() {
			b.bodies = []string{tokensBody("ACCESS", " ")}
			client := NewClient(api.New(b.URL, b.Client()), sessionFunc(loggedIn), store, orgs, Env{})

			_, err := client.Provision(ctx, 7)
			So(err, ShouldNotBeNil)
			So(client.StoredToken().IsPresent(), ShouldBeFalse)
		})

		Convey("A rejected session token is refreshed and the call replayed once", func() {
			var (
				mu    sync.Mutex
				seen  []string
				force int
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				seen = append(seen, r.Header.Get("Authorization"))
				mu.Unlock()

				if r.Header.Get("Authorization") != "Bearer FRESH" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tokensBody("ACCESS", "CI-NEW")))
			}))
			defer srv.Close()

			token := func(_ context.Context, forced bool) (string, error) {
				if forced {
					force++
					return "FRESH", nil
				}
				return "STALE", nil
			}
			sessionAPI := api.New(srv.URL, network.NewAuthClient(token))
			client := NewClient(api.New(b.URL, b.Client()), sessionFunc(loggedIn), store, orgs, Env{}, WithSessionAPI(sessionAPI))

			got, err := client.Provision(ctx, 7)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "CI-NEW")
			So(seen, ShouldResemble, []string{"Bearer STALE", "Bearer FRESH"})
			So(force, ShouldEqual, 1)
			So(b.calls, ShouldBeEmpty)
			So(client.StoredToken().MustGet(), ShouldEqual, "CI-NEW")
		})

		Convey("Without a session nothing is sent", func() {
			notLoggedIn := sessionFunc(func(context.Context) (string, error) { return "", auth.ErrNotLoggedIn })
			client := NewClient(api.New(b.URL, b.Client()), notLoggedIn, store, orgs, Env{})

			_, err := client.Provision(ctx, 7)
			So(errors.Is(err, auth.ErrNotLoggedIn), ShouldBeTrue)
			So(b.calls, ShouldBeEmpty)
		})
	})
}

func TestEnvFromConfig(t *testing.T) {
	Convey("Env is read from EOLSCAN_CI_* variables", t, func() {
		t.Setenv("EOLSCAN_CI_TOKEN", "CI-1")
		t.Setenv("EOLSCAN_CI_ORG_ID", "12")
		t.Setenv("EOLSCAN_CI_ACCESS_TOKEN", "")

		env := EnvFromConfig()
		So(env.RefreshToken.MustGet(), ShouldEqual, "CI-1")
		So(env.OrgID.MustGet(), ShouldEqual, 12)
		So(env.AccessToken.IsPresent(), ShouldBeFalse)

		Convey("A non-numeric org id is ignored", func() {
			t.Setenv("EOLSCAN_CI_ORG_ID", "acme")
			So(EnvFromConfig().OrgID.IsPresent(), ShouldBeFalse)
		})
	})
}
