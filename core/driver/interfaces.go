package driver

import (
	"context"

	"github.com/emenda-labs/nuver/core/changespec"
)

// PackageSpec identifies a package and the candidate build to compare against
// its latest published version.
type PackageSpec struct {
	// ID is the package id in the feed.
	ID string
	// AssemblyName is the candidate's assembly file name, with or without
	// its .dll/.exe extension.
	AssemblyName string
	// ProjectPath is the absolute path of the project to compile.
	ProjectPath string
	// Targets lists the desired target frameworks in order.
	Targets []changespec.Target
	// IncludePrerelease lets prerelease versions count as the latest.
	IncludePrerelease bool
	// DefaultVersion is used when the package was never published. Empty
	// means 1.0.0.
	DefaultVersion string
}

// VersionDriver is the interface each package ecosystem implements to detect
// how a candidate build changes the public surface of a published package.
type VersionDriver interface {
	// ComputeChanges resolves the latest published version, compares its
	// surface with freshly compiled candidates for every desired target and
	// returns the aggregated changes. Any failure aborts the whole run; no
	// partial summary is returned.
	ComputeChanges(ctx context.Context, spec PackageSpec) (*changespec.Summary, error)
}

// SpecResolver reads a PackageSpec from a project file.
type SpecResolver interface {
	// ResolveSpec returns the package identity and targets declared by the
	// project. Callers may override fields afterwards.
	ResolveSpec(projectPath string) (PackageSpec, error)
}
