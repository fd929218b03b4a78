// Package dotnet detects how a candidate build of a .NET library changes the
// public surface of its latest published NuGet package.
package dotnet

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/core/driver"
	"github.com/emenda-labs/nuver/core/version"
	"github.com/emenda-labs/nuver/drivers/dotnet/apidiff"
	"github.com/emenda-labs/nuver/drivers/dotnet/candidate"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
	"github.com/emenda-labs/nuver/pkg/logging"
	"github.com/emenda-labs/nuver/pkg/msbuild"
)

var (
	_ driver.VersionDriver = (*Driver)(nil)
	_ driver.SpecResolver  = (*Driver)(nil)
)

// Options configures a Driver.
type Options struct {
	Registry Registry
	// Provider opens published packages. Nil means a PackageProvider over
	// Registry without a cache.
	Provider PublishedProvider
	Compiler Compiler
	// Policy classifies added types. The zero value means
	// apidiff.DefaultPolicy.
	Policy apidiff.Policy
	// Parallelism bounds how many targets are compiled and compared at once.
	// Values below 2 keep the comparison sequential.
	Parallelism int
	Logger      *slog.Logger
}

// Driver implements driver.VersionDriver for NuGet packages.
type Driver struct {
	registry    Registry
	provider    PublishedProvider
	compiler    Compiler
	policy      apidiff.Policy
	parallelism int
	logger      *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(opts Options) *Driver {
	d := &Driver{
		registry:    opts.Registry,
		provider:    opts.Provider,
		compiler:    opts.Compiler,
		policy:      opts.Policy,
		parallelism: opts.Parallelism,
		logger:      logging.OrDiscard(opts.Logger),
	}
	if d.provider == nil {
		d.provider = NewPackageProvider(opts.Registry, nil, d.logger)
	}
	if !d.policy.AddedType.Recordable() {
		d.policy = apidiff.DefaultPolicy()
	}
	return d
}

// ResolveSpec reads the package id, assembly file name and target frameworks
// from a project file.
func (d *Driver) ResolveSpec(projectPath string) (driver.PackageSpec, error) {
	proj, err := msbuild.Load(projectPath)
	if err != nil {
		return driver.PackageSpec{}, err
	}
	assembly, err := proj.AssemblyFileName()
	if err != nil {
		return driver.PackageSpec{}, fmt.Errorf("reading %s: %w", proj.Path, err)
	}

	spec := driver.PackageSpec{
		ID:           proj.PackageID,
		AssemblyName: assembly,
		ProjectPath:  proj.Path,
	}
	for _, f := range proj.Frameworks {
		spec.Targets = append(spec.Targets, changespec.NormalizeTarget(f))
	}
	return spec, nil
}

// ComputeChanges compares the latest published version of spec.ID with the
// candidate project. A package that was never published yields a summary
// with severity New.
func (d *Driver) ComputeChanges(ctx context.Context, spec driver.PackageSpec) (*changespec.Summary, error) {
	defaultVersion := spec.DefaultVersion
	if defaultVersion == "" {
		defaultVersion = version.DefaultVersion
	}
	if _, err := version.Parse(defaultVersion); err != nil {
		return nil, fmt.Errorf("default version: %w", err)
	}

	latest, err := d.registry.LatestVersion(ctx, spec.ID, spec.IncludePrerelease)
	if err != nil {
		return nil, fmt.Errorf("resolving latest version of %s: %w", spec.ID, err)
	}

	b := changespec.NewBuilder()
	if latest == "" {
		d.logger.Info("package has not been published", "package", spec.ID)
		return b.Finalize("")
	}
	if _, err := version.Parse(latest); err != nil {
		return nil, fmt.Errorf("latest published version of %s: %w", spec.ID, err)
	}
	d.logger.Info("resolved latest published version", "package", spec.ID, "version", latest)

	pkg, err := d.provider.Open(ctx, spec.ID, latest)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	published := make(map[changespec.Target]*surface.Surface)
	for _, target := range pkg.Targets() {
		s, err := pkg.Surface(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("reading published surface of %s %s: %w", spec.ID, latest, err)
		}
		published[target] = s
	}

	desired := make([]changespec.Target, 0, len(spec.Targets))
	for _, t := range spec.Targets {
		desired = append(desired, changespec.NormalizeTarget(string(t)))
	}

	queue, err := apidiff.CompareFrameworks(desired, published, spec.AssemblyName, b)
	if err != nil {
		return nil, err
	}

	if err := d.compareTargets(ctx, spec.ProjectPath, queue, b); err != nil {
		return nil, err
	}
	return b.Finalize(latest)
}

func (d *Driver) compareTargets(ctx context.Context, projectPath string, queue []apidiff.Pair, b *changespec.Builder) error {
	if d.parallelism < 2 || len(queue) < 2 {
		for _, pair := range queue {
			if err := d.compareTarget(ctx, projectPath, pair, b); err != nil {
				return err
			}
		}
		return nil
	}

	// Each target records into its own log; logs are replayed in desired
	// order so the summary does not depend on scheduling.
	logs := make([]changespec.Log, len(queue))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for i := range queue {
		g.Go(func() error {
			return d.compareTarget(gctx, projectPath, queue[i], &logs[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range logs {
		if err := logs[i].Replay(b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) compareTarget(ctx context.Context, projectPath string, pair apidiff.Pair, rec changespec.Recorder) error {
	candidateSurface, err := d.CandidateSurface(ctx, projectPath, pair.Target)
	if err != nil {
		return err
	}
	d.logger.Debug("comparing surfaces", "target", pair.Target,
		"published", len(pair.Published.Types), "candidate", len(candidateSurface.Types))
	return apidiff.CompareSurfaces(ctx, pair.Target, pair.Published, candidateSurface, d.policy, rec)
}

// CandidateSurface compiles the project for target and returns its exported
// surface.
func (d *Driver) CandidateSurface(ctx context.Context, projectPath string, target changespec.Target) (*surface.Surface, error) {
	comp, err := d.compiler.Compile(ctx, projectPath, string(target))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w for %s: %w", ErrCompilationFailed, target, err)
	}
	return candidate.New(comp).Surface(ctx)
}

// PublishedSurface returns the exported surface of a published package for
// target. An empty ver resolves the latest version.
func (d *Driver) PublishedSurface(ctx context.Context, id, ver string, target changespec.Target, includePrerelease bool) (*surface.Surface, error) {
	if ver == "" {
		latest, err := d.registry.LatestVersion(ctx, id, includePrerelease)
		if err != nil {
			return nil, fmt.Errorf("resolving latest version of %s: %w", id, err)
		}
		if latest == "" {
			return nil, fmt.Errorf("package %s has not been published", id)
		}
		ver = latest
	}

	pkg, err := d.provider.Open(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()
	return pkg.Surface(ctx, changespec.NormalizeTarget(string(target)))
}
