package config

import (
	"fmt"
	"time"

	"github.com/eolscan/eolscan/key"
	"github.com/spf13/viper"
)

// Settings is an immutable snapshot of the configuration the auth subsystem needs.
type Settings struct {
	Issuer       string
	Realm        string
	ClientID     string
	Discovery    bool
	CallbackPort int
	RedirectURI  string
	LoginTimeout time.Duration
	Store        string
	APIURL       string
}

// Current reads the active viper state into a Settings value.
func Current() Settings {
	s := Settings{
		Issuer:       viper.GetString(key.AuthIssuer),
		Realm:        viper.GetString(key.AuthRealm),
		ClientID:     viper.GetString(key.AuthClientID),
		Discovery:    viper.GetBool(key.AuthDiscovery),
		CallbackPort: viper.GetInt(key.AuthCallbackPort),
		RedirectURI:  viper.GetString(key.AuthRedirectURI),
		LoginTimeout: time.Duration(viper.GetInt(key.AuthLoginTimeout)) * time.Second,
		Store:        viper.GetString(key.AuthStore),
		APIURL:       viper.GetString(key.APIURL),
	}

	if s.RedirectURI == "" {
		s.RedirectURI = fmt.Sprintf("http://localhost:%d/oauth2/callback", s.CallbackPort)
	}

	return s
}
