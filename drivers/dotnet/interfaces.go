package dotnet

import (
	"context"
	"errors"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
)

// ErrCompilationFailed wraps any failure to produce symbols for a queued
// target.
var ErrCompilationFailed = errors.New("compilation failed")

// Registry resolves and downloads published packages.
type Registry interface {
	// LatestVersion returns the latest published version of id, or "" when
	// it was never published.
	LatestVersion(ctx context.Context, id string, includePrerelease bool) (string, error)
	// Download returns the package archive for id and version.
	Download(ctx context.Context, id, version string) ([]byte, error)
}

// PublishedProvider opens a published package version.
type PublishedProvider interface {
	Open(ctx context.Context, id, version string) (PublishedPackage, error)
}

// PublishedPackage exposes the per-target surfaces of a published package.
type PublishedPackage interface {
	// Targets lists the target frameworks the package ships.
	Targets() []changespec.Target
	// Surface reads the exported surface of the target's assembly. The
	// surface's AssemblyName is the assembly's declared name.
	Surface(ctx context.Context, target changespec.Target) (*surface.Surface, error)
	// Close releases any extracted files.
	Close() error
}

// Compiler produces symbol information for a project and target.
type Compiler interface {
	Compile(ctx context.Context, projectPath, target string) (*symbols.Compilation, error)
}

// PackageCache stores downloaded package archives.
type PackageCache interface {
	Get(ctx context.Context, id, version string) ([]byte, bool, error)
	Put(ctx context.Context, id, version string, data []byte) error
}
