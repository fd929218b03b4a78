package dotnet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/drivers/dotnet/metadata"
	"github.com/emenda-labs/nuver/drivers/dotnet/published"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
	"github.com/emenda-labs/nuver/pkg/archive"
	"github.com/emenda-labs/nuver/pkg/logging"
)

var _ PublishedProvider = (*PackageProvider)(nil)

// PackageProvider opens published packages by downloading and unpacking
// their archives. Cache is optional.
type PackageProvider struct {
	registry Registry
	cache    PackageCache
	logger   *slog.Logger
}

// NewPackageProvider creates a PackageProvider. cache may be nil.
func NewPackageProvider(registry Registry, cache PackageCache, logger *slog.Logger) *PackageProvider {
	return &PackageProvider{registry: registry, cache: cache, logger: logging.OrDiscard(logger)}
}

// Open downloads (or loads from cache) the archive for id and version and
// validates its lib/ layout.
func (p *PackageProvider) Open(ctx context.Context, id, version string) (PublishedPackage, error) {
	data, err := p.archive(ctx, id, version)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := archive.ExtractPackage(ctx, data, id+"-"+version)
	if err != nil {
		return nil, fmt.Errorf("extracting %s %s: %w", id, version, err)
	}

	libs, err := archive.LibAssemblies(dir)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("reading %s %s: %w", id, version, err)
	}

	pkg := &extractedPackage{cleanup: cleanup, libs: make(map[changespec.Target]string, len(libs))}
	for folder, path := range libs {
		pkg.libs[changespec.NormalizeTarget(folder)] = path
	}
	p.logger.Debug("opened published package", "package", id, "version", version, "targets", len(pkg.libs))
	return pkg, nil
}

func (p *PackageProvider) archive(ctx context.Context, id, version string) ([]byte, error) {
	if p.cache != nil {
		data, ok, err := p.cache.Get(ctx, id, version)
		if err != nil {
			p.logger.Warn("package cache read failed", "package", id, "version", version, "error", err)
		} else if ok {
			p.logger.Debug("package cache hit", "package", id, "version", version)
			return data, nil
		}
	}

	data, err := p.registry.Download(ctx, id, version)
	if err != nil {
		return nil, fmt.Errorf("downloading %s %s: %w", id, version, err)
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, id, version, data); err != nil {
			p.logger.Warn("package cache write failed", "package", id, "version", version, "error", err)
		}
	}
	return data, nil
}

type extractedPackage struct {
	cleanup func()
	libs    map[changespec.Target]string
}

func (e *extractedPackage) Targets() []changespec.Target {
	targets := make([]changespec.Target, 0, len(e.libs))
	for t := range e.libs {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

func (e *extractedPackage) Surface(ctx context.Context, target changespec.Target) (*surface.Surface, error) {
	path, ok := e.libs[target]
	if !ok {
		return nil, fmt.Errorf("package has no assembly for %s", target)
	}
	asm, err := metadata.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading assembly for %s: %w", target, err)
	}
	return published.New(asm).Surface(ctx)
}

func (e *extractedPackage) Close() error {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	return nil
}
