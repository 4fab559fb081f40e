package cmd

import (
	"context"
	"errors"
	"net"

	"github.com/eolscan/eolscan/api"
	"github.com/eolscan/eolscan/auth"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/login"
	"github.com/eolscan/eolscan/secret"
	"github.com/eolscan/eolscan/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

// authCmd groups the commands that manage credentials. Each invocation opens one session.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in, log out and manage CI credentials",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		s, err := session.New(ctx, config.Current())
		if err != nil {
			return err
		}

		cmd.SetContext(session.NewContext(ctx, s))
		return nil
	},
}

// sessionOf returns the session opened for cmd.
func sessionOf(cmd *cobra.Command) *session.Session {
	s, ok := session.FromContext(cmd.Context())
	if !ok {
		handleErr(errors.New("no session for " + cmd.CommandPath()))
	}
	return s
}

const loginHint = `Run "eolscan auth login" to start a new session.`

// genericRemediation covers errors that do not carry their own remediation.
func genericRemediation(err error) string {
	var (
		tokenErr *auth.TokenEndpointError
		netErr   net.Error
	)

	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		return loginHint
	case errors.Is(err, secret.ErrDecryption):
		return "Stored credentials cannot be read on this machine. " + loginHint
	case errors.As(err, &tokenErr):
		return "The identity provider rejected the request. " + loginHint
	case api.IsAuthorization(err):
		return "The session is no longer accepted by the API. " + loginHint
	case errors.Is(err, api.ErrNoOrganization):
		return "Your account is not part of an organization yet. Ask an administrator to invite you, then log in again."
	case errors.Is(err, login.ErrTimeout), errors.Is(err, login.ErrStateMismatch),
		errors.Is(err, login.ErrNoCode), errors.Is(err, login.ErrMissingState),
		errors.Is(err, login.ErrInvalidRequest), errors.Is(err, login.ErrInvalidCallbackURL):
		return "The login did not complete. " + loginHint
	case api.IsTransient(err), errors.As(err, &netErr):
		return "The service could not be reached. Check your connection and try again."
	default:
		return ""
	}
}
