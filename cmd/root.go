// Package cmd implements the command-line interface for eolscan.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eolscan/eolscan/color"
	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/icon"
	"github.com/eolscan/eolscan/key"
	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/style"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Run is assigned here rather than in the literal to avoid an
	// initialization cycle through versionCmd and handleErr.
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}
		_ = cmd.Help()
	}

	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Icons variant (emoji, nerd, plain, kaomoji, squares)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))
}

// rootCmd is the entry point of the eolscan CLI.
var rootCmd = &cobra.Command{
	Use:           constant.App,
	Short:         "Scan your dependencies for end-of-life software",
	Long:          style.New().Italic(true).Foreground(color.HiRed).Render("eolscan - scan your dependencies for end-of-life software"),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	handleErr(rootCmd.Execute())
}

// exit ends the process after a failure.
var exit = os.Exit

// remediator is implemented by errors that know how the operator can fix them.
type remediator interface {
	Remediation() string
}

// handleErr prints err with its remediation and exits non-zero. A nil err is a no-op.
func handleErr(err error) {
	if err == nil {
		return
	}

	log.Error(err)
	stderr := rootCmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "%s %s\n", style.Fg(color.Red)(icon.Get(icon.Fail)), strings.Trim(err.Error(), " \n"))
	if hint := remediation(err); hint != "" {
		_, _ = fmt.Fprintf(stderr, "%s %s\n", style.Fg(color.Yellow)(icon.Get(icon.Link)), hint)
	}
	exit(1)
}

func remediation(err error) string {
	var r remediator
	if errors.As(err, &r) {
		return r.Remediation()
	}
	return genericRemediation(err)
}

// warn prints a non-fatal problem.
func warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn(msg)
	_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "%s %s\n", style.Fg(color.Yellow)(icon.Get(icon.Warn)), msg)
}

// success reports a completed step on stderr, keeping stdout for the command's data.
func success(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), fmt.Sprintf(format, args...))
}
