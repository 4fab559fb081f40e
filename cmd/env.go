package cmd

import (
	"os"

	"github.com/eolscan/eolscan/color"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/open"
	"github.com/eolscan/eolscan/style"
	"github.com/eolscan/eolscan/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().BoolP("set-only", "s", false, "Display only environment variables that are currently defined")
	envCmd.Flags().BoolP("unset-only", "u", false, "Display only environment variables that are currently undefined")

	envCmd.MarkFlagsMutuallyExclusive("set-only", "unset-only")

	envCmd.SetOut(os.Stdout)
}

// envCmd displays the current process values for all supported environment variables.
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Display the collection of supported environment variables",
	Long:  `Display the collection of supported environment variables and their current process values.`,
	Run: func(cmd *cobra.Command, args []string) {
		setOnly := lo.Must(cmd.Flags().GetBool("set-only"))
		unsetOnly := lo.Must(cmd.Flags().GetBool("unset-only"))

		names := []string{where.EnvConfigPath, open.EnvBrowser}
		for _, k := range config.EnvExposed {
			field := config.Default[k]
			names = append(names, field.Env())
		}
		slices.Sort(names)

		for _, env := range names {
			value := os.Getenv(env)
			present := value != ""

			if setOnly || unsetOnly {
				if !present && setOnly {
					continue
				}

				if present && unsetOnly {
					continue
				}
			}

			cmd.Print(style.New().Bold(true).Foreground(color.Purple).Render(env))
			cmd.Print("=")

			if present && secretEnv(env) {
				cmd.Println(style.Fg(color.Green)("<set>"))
			} else if present {
				cmd.Println(style.Fg(color.Green)(value))
			} else {
				cmd.Println(style.Fg(color.Red)("unset"))
			}
		}
	},
}

// secretEnv reports whether the variable holds a credential that must not be echoed.
func secretEnv(name string) bool {
	return lo.ContainsBy(secretKeys, func(k string) bool { return envOf(k) == name })
}
