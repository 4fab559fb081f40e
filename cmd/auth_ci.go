package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eolscan/eolscan/color"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/icon"
	"github.com/eolscan/eolscan/key"
	"github.com/eolscan/eolscan/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func itoa(n int) string { return strconv.Itoa(n) }

func envOf(k string) string {
	field := config.Default[k]
	return field.Env()
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func init() {
	authCmd.AddCommand(authProvisionCmd)
	authProvisionCmd.Flags().Int("org-id", 0, "Organization the CI token is scoped to (defaults to your organization)")
}

var authProvisionCmd = &cobra.Command{
	Use:   "provision-ci-token",
	Short: "Create a long-lived token for CI pipelines",
	Long: "Create a long-lived token for CI pipelines using the current login session.\n" +
		"The token is stored locally and printed once; set it as " + envOf(key.CIToken) + " in your pipeline.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)
		ctx := cmd.Context()

		orgID := lo.Must(cmd.Flags().GetInt("org-id"))
		if !cmd.Flags().Changed("org-id") {
			var err error
			orgID, err = s.API.EnsureUserSetup(ctx)
			handleErr(err)
		}

		token, err := s.CI.Provision(ctx, orgID)
		handleErr(err)

		success(cmd, "Provisioned a CI token for organization %s", style.Fg(color.Purple)(itoa(orgID)))
		cmd.PrintErrf("%s Store these in your CI secrets, the token is not shown again:\n", icon.Get(icon.Lock))
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s=%s\n", envOf(key.CIToken), token)
		_, _ = fmt.Fprintf(out, "%s=%d\n", envOf(key.CIOrgID), orgID)
	},
}

func init() {
	authCmd.AddCommand(authCILoginCmd)
}

var authCILoginCmd = &cobra.Command{
	Use:   "ci-login",
	Short: "Exchange the CI token for an access token and print shell exports",
	Long: "Exchange the CI token for an access token and print shell exports.\n\n" +
		"  eval \"$(eolscan auth ci-login)\"",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)

		res, err := s.CI.RequireAccessToken(cmd.Context())
		handleErr(err)

		export := func(name, value string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", name, shellQuote(value))
		}

		export(envOf(key.CIAccessToken), res.AccessToken)
		if orgID, ok := res.OrgID.Get(); ok {
			export(envOf(key.CIOrgID), itoa(orgID))
		}
		if res.Tokens != nil && res.Tokens.Rotated {
			export(envOf(key.CIToken), res.Tokens.RefreshToken)
			warn("the CI token was rotated; update %s in your CI secrets", envOf(key.CIToken))
		}
	},
}

func init() {
	authCmd.AddCommand(authClearCICmd)
}

var authClearCICmd = &cobra.Command{
	Use:   "clear-ci-token",
	Short: "Forget the locally stored CI token",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := sessionOf(cmd)
		handleErr(s.CI.Clear())
		success(cmd, "Cleared the stored CI token")
	},
}
