package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eolscan/eolscan/auth"
	"github.com/eolscan/eolscan/color"
	"github.com/eolscan/eolscan/login"
	"github.com/eolscan/eolscan/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	authCmd.AddCommand(authLoginCmd)
	authLoginCmd.Flags().Bool("no-browser", false, "Print the login URL instead of opening a browser")
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the browser",
	Long:  "Log in through the browser using the authorization code flow with PKCE.\nThe provider redirects back to a listener on the loopback interface.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)

		opts := []login.Option{
			login.WithPort(s.Settings.CallbackPort),
			login.WithTimeout(s.Settings.LoginTimeout),
			login.WithOutput(cmd.ErrOrStderr()),
		}
		if lo.Must(cmd.Flags().GetBool("no-browser")) {
			opts = append(opts, login.WithBrowser(func(string) error {
				return errors.New("disabled by --no-browser")
			}))
		}

		res, err := login.NewFlow(s.OAuth, s.Auth, s.API, opts...).Run(cmd.Context())
		handleErr(err)

		success(cmd, "Logged in to organization %s", style.Fg(color.Purple)(itoa(res.OrgID)))
	},
}

func init() {
	authCmd.AddCommand(authLogoutCmd)
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the local session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)

		if creds, ok := s.Auth.Credentials().Get(); ok && creds.RefreshToken != "" {
			if err := s.OAuth.Revoke(cmd.Context(), creds.RefreshToken); err != nil {
				warn("could not end the session at the identity provider: %v", err)
			}
		}

		handleErr(s.Auth.LogoutLocally())
		success(cmd, "Logged out")
	},
}

func init() {
	authCmd.AddCommand(authWhoamiCmd)
	authWhoamiCmd.Flags().BoolP("json", "j", false, "Print the identity as JSON")
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the current session belongs to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)

		token, err := s.Auth.RequireAccessToken(cmd.Context())
		handleErr(err)

		claims, err := auth.DecodeClaims(token)
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(claims))
			return
		}

		label := style.Fg(color.Blue)
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s %s\n", label("Email:  "), claims.Email)
		if claims.Name != "" {
			_, _ = fmt.Fprintf(out, "%s %s\n", label("Name:   "), claims.Name)
		}
		_, _ = fmt.Fprintf(out, "%s %d\n", label("Org:    "), claims.OrgID)
		if claims.Role != "" {
			_, _ = fmt.Fprintf(out, "%s %s\n", label("Role:   "), claims.Role)
		}
		if claims.ExpiresAt != nil {
			_, _ = fmt.Fprintf(out, "%s %s\n", label("Expires:"), claims.ExpiresAt.Time.Local().Format(time.RFC1123))
		}
	},
}
