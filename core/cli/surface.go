package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// SurfaceOptions holds the parsed flags for "surface".
type SurfaceOptions struct {
	Project    string
	Package    string
	Version    string
	Framework  string
	Prerelease bool
}

// SurfaceRunFunc is the function signature for the surface command handler.
type SurfaceRunFunc func(ctx context.Context, opts SurfaceOptions) error

// NewSurfaceCmd creates the "surface" command, which dumps the exported
// surface of either a candidate project or a published package.
func NewSurfaceCmd(runFunc SurfaceRunFunc) *cobra.Command {
	var opts SurfaceOptions

	cmd := &cobra.Command{
		Use:   "surface",
		Short: "Print the public API surface as YAML",
		Long: "Print the exported types of a project (--project) or of a published " +
			"package (--package, optionally --version) for one target framework.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateSurfaceFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "Path to the .csproj file")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Published package id")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Published package version (default: latest)")
	cmd.Flags().StringVar(&opts.Framework, "framework", "", "Target framework (required)")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Let prerelease versions count as the latest")

	cmd.MarkFlagRequired("framework")

	return cmd
}

func validateSurfaceFlags(opts SurfaceOptions) error {
	if opts.Framework == "" {
		return fmt.Errorf("--framework is required")
	}
	switch {
	case opts.Project == "" && opts.Package == "":
		return fmt.Errorf("one of --project or --package is required")
	case opts.Project != "" && opts.Package != "":
		return fmt.Errorf("--project and --package cannot be combined")
	case opts.Project != "":
		if opts.Version != "" {
			return fmt.Errorf("--version requires --package")
		}
		return checkProject(opts.Project)
	}
	return nil
}
