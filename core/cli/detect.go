package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emenda-labs/nuver/core/version"
)

// DetectOptions holds the parsed flags for "detect".
type DetectOptions struct {
	Project        string
	PackageID      string
	AssemblyName   string
	Frameworks     []string
	Prerelease     bool
	DefaultVersion string
	Output         string
	NoColor        bool
}

// DetectRunFunc is the function signature for the detect command handler.
// It is injected by the wiring layer (cmd/nuver/main.go).
type DetectRunFunc func(ctx context.Context, opts DetectOptions) error

// NewDetectCmd creates the "detect" command.
func NewDetectCmd(runFunc DetectRunFunc) *cobra.Command {
	var opts DetectOptions

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the next version of a package",
		Long: "Compile the project for each target framework, compare its public surface " +
			"with the latest published package and print the next semantic version.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateDetectFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "Path to the .csproj file (required)")
	cmd.Flags().StringVar(&opts.PackageID, "package-id", "", "Package id (default: from the project)")
	cmd.Flags().StringVar(&opts.AssemblyName, "assembly-name", "", "Assembly file name (default: from the project)")
	cmd.Flags().StringSliceVar(&opts.Frameworks, "framework", nil, "Target frameworks to compare (default: from the project)")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Let prerelease versions count as the latest published version")
	cmd.Flags().StringVar(&opts.DefaultVersion, "default-version", "", "Version used when the package was never published")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Also write the report to a .json or .yaml file")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	cmd.MarkFlagRequired("project")

	return cmd
}

func validateDetectFlags(opts DetectOptions) error {
	if opts.Project == "" {
		return fmt.Errorf("--project is required")
	}
	if err := checkProject(opts.Project); err != nil {
		return err
	}
	if opts.DefaultVersion != "" {
		if _, err := version.Parse(opts.DefaultVersion); err != nil {
			return fmt.Errorf("--default-version: %w", err)
		}
	}
	for _, f := range opts.Frameworks {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("--framework must not be empty")
		}
	}
	if opts.Output != "" {
		switch strings.ToLower(filepath.Ext(opts.Output)) {
		case ".json", ".yaml", ".yml":
		default:
			return fmt.Errorf("--output must end in .json, .yaml or .yml")
		}
	}
	return nil
}

func checkProject(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("project file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access project file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("project path is a directory: %s", path)
	}
	return nil
}
