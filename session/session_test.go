package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/filesystem"
	"github.com/eolscan/eolscan/tokenstore"
	"github.com/eolscan/eolscan/where"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given file-backed settings", t, func() {
		filesystem.SetMemMapFs()
		t.Setenv(where.EnvConfigPath, "/cfg")
		t.Setenv("USER", "tester")

		settings := config.Settings{
			Issuer:      "https://login.example.com",
			Realm:       "eolscan",
			ClientID:    "eolscan-cli",
			RedirectURI: "http://localhost:4000/oauth2/callback",
			Store:       "file",
			APIURL:      "https://api.example.com/graphql",
		}

		Convey("A session wires both namespaces and a fresh id", func() {
			s, err := New(context.Background(), settings)
			So(err, ShouldBeNil)
			So(s.ID, ShouldNotBeEmpty)
			So(s.Tokens.Namespace(), ShouldEqual, tokenstore.Session)
			So(s.CITokens.Namespace(), ShouldEqual, tokenstore.CI)
			So(s.OAuth.RedirectURI(), ShouldEqual, settings.RedirectURI)
			So(s.Auth.Credentials().IsPresent(), ShouldBeFalse)

			other, err := New(context.Background(), settings)
			So(err, ShouldBeNil)
			So(other.ID, ShouldNotEqual, s.ID)

			Convey("And travels in a context", func() {
				got, ok := FromContext(NewContext(context.Background(), s))
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, s)

				_, ok = FromContext(context.Background())
				So(ok, ShouldBeFalse)
			})
		})

		Convey("An unknown store kind fails", func() {
			settings.Store = "vault"
			_, err := New(context.Background(), settings)
			So(err, ShouldNotBeNil)
		})

		Convey("Discovery reads the realm's OpenID configuration", func() {
			var srv *httptest.Server
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/realms/eolscan/.well-known/openid-configuration" {
					http.NotFound(w, r)
					return
				}
				issuer := srv.URL + "/realms/eolscan"
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"issuer":                 issuer,
					"authorization_endpoint": issuer + "/auth",
					"token_endpoint":         issuer + "/token",
					"jwks_uri":               issuer + "/certs",
					"end_session_endpoint":   issuer + "/logout",
				})
			}))
			defer srv.Close()

			settings.Discovery = true
			settings.Issuer = srv.URL
			s, err := New(context.Background(), settings)
			So(err, ShouldBeNil)
			So(s.OAuth, ShouldNotBeNil)
		})
	})
}
