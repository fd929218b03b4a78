package cli

import (
	"github.com/spf13/cobra"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	Config  string
	Verbose int
	Quiet   bool
}

// NewRootCmd creates the top-level nuver command. Persistent flags are parsed
// into globals. Errors are returned to the caller unprinted.
func NewRootCmd(version string, globals *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nuver",
		Short: "Semantic version detection for NuGet packages",
		Long: "Nuver compares a library project with its latest published NuGet package " +
			"and computes the next semantic version from the public API changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&globals.Config, "config", "", "Path to a config file (default: .nuver.* in the project directory)")
	cmd.PersistentFlags().CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	cmd.PersistentFlags().BoolVar(&globals.Quiet, "quiet", false, "Suppress all log output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}
