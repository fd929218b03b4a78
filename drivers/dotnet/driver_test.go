package dotnet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/core/driver"
	"github.com/emenda-labs/nuver/core/version"
	"github.com/emenda-labs/nuver/drivers/dotnet/apidiff"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
	"github.com/emenda-labs/nuver/pkg/nuget"
)

type fakeRegistry struct {
	latest    string
	err       error
	downloads int
	data      []byte
}

func (r *fakeRegistry) LatestVersion(ctx context.Context, id string, includePrerelease bool) (string, error) {
	return r.latest, r.err
}

func (r *fakeRegistry) Download(ctx context.Context, id, version string) ([]byte, error) {
	r.downloads++
	if r.data == nil {
		return nil, nuget.ErrNotFound
	}
	return r.data, nil
}

type fakePackage struct {
	surfaces map[changespec.Target]*surface.Surface
	closed   bool
}

func (p *fakePackage) Targets() []changespec.Target {
	var out []changespec.Target
	for t := range p.surfaces {
		out = append(out, t)
	}
	return out
}

func (p *fakePackage) Surface(ctx context.Context, target changespec.Target) (*surface.Surface, error) {
	return p.surfaces[target], nil
}

func (p *fakePackage) Close() error {
	p.closed = true
	return nil
}

type fakeProvider struct {
	pkg    *fakePackage
	opened string
}

func (p *fakeProvider) Open(ctx context.Context, id, version string) (PublishedPackage, error) {
	p.opened = id + "@" + version
	return p.pkg, nil
}

type fakeCompiler struct {
	mu       sync.Mutex
	results  map[string]*symbols.Compilation
	compiled []string
	err      error
}

func (c *fakeCompiler) Compile(ctx context.Context, projectPath, target string) (*symbols.Compilation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiled = append(c.compiled, target)
	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp, ok := c.results[target]
	if !ok {
		return nil, fmt.Errorf("no result for %s", target)
	}
	return comp, nil
}

func publishedSurface(types ...*surface.Type) *surface.Surface {
	s := surface.New("Acme.Core")
	for _, t := range types {
		s.Add(t)
	}
	return s
}

func compilation(types ...*symbols.NamedType) *symbols.Compilation {
	return &symbols.Compilation{
		AssemblyName: "Acme.Core",
		GlobalNamespace: &symbols.Namespace{Namespaces: []*symbols.Namespace{
			{Name: "Acme", Types: types},
		}},
	}
}

var fooSig = surface.Signature{Namespace: "Acme", Name: "Foo"}

func spec(targets ...changespec.Target) driver.PackageSpec {
	return driver.PackageSpec{
		ID:           "Acme.Core",
		AssemblyName: "Acme.Core.dll",
		ProjectPath:  "/src/Acme.Core/Acme.Core.csproj",
		Targets:      targets,
	}
}

func TestComputeChanges_NewPackage(t *testing.T) {
	compiler := &fakeCompiler{}
	d := NewDriver(Options{Registry: &fakeRegistry{}, Provider: &fakeProvider{}, Compiler: compiler})

	s, err := d.ComputeChanges(context.Background(), spec("net8.0"))
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	assert.Equal(t, changespec.SeverityNew, s.Severity())
	assert.Empty(t, compiler.compiled)

	next, err := version.Next(s.Severity(), s.CurrentVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", next)
}

func TestComputeChanges_InvalidVersions(t *testing.T) {
	d := NewDriver(Options{Registry: &fakeRegistry{}, Compiler: &fakeCompiler{}})
	sp := spec("net8.0")
	sp.DefaultVersion = "1.0"
	_, err := d.ComputeChanges(context.Background(), sp)
	assert.ErrorIs(t, err, version.ErrInvalidVersion)

	d = NewDriver(Options{Registry: &fakeRegistry{latest: "1.2.3.4"}, Compiler: &fakeCompiler{}})
	_, err = d.ComputeChanges(context.Background(), spec("net8.0"))
	assert.ErrorIs(t, err, version.ErrInvalidVersion)
}

func TestComputeChanges_AmbiguousVersion(t *testing.T) {
	reg := &fakeRegistry{err: fmt.Errorf("%w for Acme.Core", nuget.ErrAmbiguousVersion)}
	d := NewDriver(Options{Registry: reg, Compiler: &fakeCompiler{}})

	_, err := d.ComputeChanges(context.Background(), spec("net8.0"))
	assert.ErrorIs(t, err, nuget.ErrAmbiguousVersion)
}

func TestComputeChanges_ClassSealed(t *testing.T) {
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{
		"net6.0": publishedSurface(&surface.Type{Signature: fooSig, Decl: surface.Class{}}),
	}}
	provider := &fakeProvider{pkg: pkg}
	compiler := &fakeCompiler{results: map[string]*symbols.Compilation{
		"net6.0": compilation(&symbols.NamedType{Name: "Foo", Kind: symbols.TypeClass, Accessibility: symbols.Public, IsSealed: true}),
	}}
	d := NewDriver(Options{Registry: &fakeRegistry{latest: "2.3.1"}, Provider: provider, Compiler: compiler})

	s, err := d.ComputeChanges(context.Background(), spec("net6.0"))
	require.NoError(t, err)
	assert.Equal(t, "Acme.Core@2.3.1", provider.opened)
	assert.True(t, pkg.closed)

	assert.Equal(t, changespec.SeverityMajor, s.Severity())
	require.Len(t, s.All(), 1)
	change := s.All()[0]
	assert.Equal(t, "Class Acme.Foo is now sealed", change.Description)
	assert.Equal(t, []changespec.Target{"net6.0"}, change.Targets)

	next, err := version.Next(s.Severity(), s.CurrentVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", next)
}

func TestComputeChanges_TargetAdded(t *testing.T) {
	foo := &surface.Type{Signature: fooSig, Decl: surface.Class{}}
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{"net6.0": publishedSurface(foo)}}
	compiler := &fakeCompiler{results: map[string]*symbols.Compilation{
		"net6.0": compilation(&symbols.NamedType{Name: "Foo", Kind: symbols.TypeClass, Accessibility: symbols.Public}),
	}}
	d := NewDriver(Options{Registry: &fakeRegistry{latest: "2.3.1"}, Provider: &fakeProvider{pkg: pkg}, Compiler: compiler})

	s, err := d.ComputeChanges(context.Background(), spec("NET6.0", "net7.0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"net6.0"}, compiler.compiled)

	assert.Equal(t, changespec.SeverityMinor, s.Severity())
	minor := s.Changes(changespec.SeverityMinor)
	require.Len(t, minor, 1)
	assert.Equal(t, "Target framework net7.0 was added", minor[0].Description)

	next, err := version.Next(s.Severity(), s.CurrentVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", next)
}

func TestComputeChanges_Idempotent(t *testing.T) {
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{
		"net8.0": publishedSurface(&surface.Type{Signature: fooSig, Decl: surface.Class{}}),
	}}
	compiler := &fakeCompiler{results: map[string]*symbols.Compilation{
		"net8.0": compilation(&symbols.NamedType{Name: "Foo", Kind: symbols.TypeClass, Accessibility: symbols.Public}),
	}}
	d := NewDriver(Options{Registry: &fakeRegistry{latest: "1.0.0"}, Provider: &fakeProvider{pkg: pkg}, Compiler: compiler})

	s, err := d.ComputeChanges(context.Background(), spec("net8.0"))
	require.NoError(t, err)
	assert.Equal(t, changespec.SeverityNone, s.Severity())
	assert.Zero(t, s.Len())
}

func TestComputeChanges_MergesAcrossTargets(t *testing.T) {
	point := surface.Signature{Namespace: "Acme", Name: "Point"}
	targets := []changespec.Target{"net6.0", "net7.0", "net8.0"}

	for _, parallelism := range []int{1, 3} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{}}
			compiler := &fakeCompiler{results: map[string]*symbols.Compilation{}}
			for _, target := range targets {
				pkg.surfaces[target] = publishedSurface(&surface.Type{Signature: point, Decl: surface.Struct{ReadOnly: true}})
				compiler.results[string(target)] = compilation(&symbols.NamedType{Name: "Point", Kind: symbols.TypeStruct, Accessibility: symbols.Public})
			}
			d := NewDriver(Options{
				Registry:    &fakeRegistry{latest: "1.0.0"},
				Provider:    &fakeProvider{pkg: pkg},
				Compiler:    compiler,
				Parallelism: parallelism,
			})

			s, err := d.ComputeChanges(context.Background(), spec(targets...))
			require.NoError(t, err)
			require.Len(t, s.All(), 1)
			change := s.All()[0]
			assert.Equal(t, changespec.SeverityMajor, change.Severity)
			assert.Equal(t, "Struct Acme.Point is no longer readonly", change.Description)
			assert.Equal(t, targets, change.Targets)
		})
	}
}

func TestComputeChanges_AddedTypePolicy(t *testing.T) {
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{"net8.0": publishedSurface()}}
	compiler := &fakeCompiler{results: map[string]*symbols.Compilation{
		"net8.0": compilation(&symbols.NamedType{Name: "Foo", Kind: symbols.TypeClass, Accessibility: symbols.Public}),
	}}
	d := NewDriver(Options{
		Registry: &fakeRegistry{latest: "1.0.0"},
		Provider: &fakeProvider{pkg: pkg},
		Compiler: compiler,
		Policy:   apidiff.Policy{AddedType: changespec.SeverityMinor},
	})

	s, err := d.ComputeChanges(context.Background(), spec("net8.0"))
	require.NoError(t, err)
	assert.Equal(t, changespec.SeverityMinor, s.Severity())
}

func TestComputeChanges_CompilationFailed(t *testing.T) {
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{
		"net6.0": publishedSurface(),
		"net8.0": publishedSurface(),
	}}
	for _, parallelism := range []int{1, 2} {
		compiler := &fakeCompiler{err: errors.New("CS1002: ; expected")}
		d := NewDriver(Options{
			Registry:    &fakeRegistry{latest: "1.0.0"},
			Provider:    &fakeProvider{pkg: pkg},
			Compiler:    compiler,
			Parallelism: parallelism,
		})
		_, err := d.ComputeChanges(context.Background(), spec("net6.0", "net8.0"))
		assert.ErrorIs(t, err, ErrCompilationFailed)
		assert.ErrorContains(t, err, "CS1002")
	}
}

func TestComputeChanges_Canceled(t *testing.T) {
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{"net8.0": publishedSurface()}}
	compiler := &fakeCompiler{results: map[string]*symbols.Compilation{"net8.0": compilation()}}
	d := NewDriver(Options{Registry: &fakeRegistry{latest: "1.0.0"}, Provider: &fakeProvider{pkg: pkg}, Compiler: compiler})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.ComputeChanges(ctx, spec("net8.0"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCompilationFailed)
}

func TestResolveSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Acme.Core.csproj")
	require.NoError(t, os.WriteFile(path, []byte(`<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFrameworks>net6.0;NET8.0</TargetFrameworks>
    <PackageId>Acme.Core.Package</PackageId>
  </PropertyGroup>
</Project>`), 0o644))

	got, err := NewDriver(Options{}).ResolveSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme.Core.Package", got.ID)
	assert.Equal(t, "Acme.Core.dll", got.AssemblyName)
	assert.Equal(t, path, got.ProjectPath)
	assert.Equal(t, []changespec.Target{"net6.0", "net8.0"}, got.Targets)
}

func TestPublishedSurface(t *testing.T) {
	want := publishedSurface(&surface.Type{Signature: fooSig, Decl: surface.Class{}})
	pkg := &fakePackage{surfaces: map[changespec.Target]*surface.Surface{"net8.0": want}}
	provider := &fakeProvider{pkg: pkg}
	d := NewDriver(Options{Registry: &fakeRegistry{latest: "1.4.0"}, Provider: provider})

	got, err := d.PublishedSurface(context.Background(), "Acme.Core", "", "NET8.0", false)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, "Acme.Core@1.4.0", provider.opened)
	assert.True(t, pkg.closed)

	_, err = NewDriver(Options{Registry: &fakeRegistry{}}).PublishedSurface(context.Background(), "Acme.Core", "", "net8.0", false)
	assert.ErrorContains(t, err, "has not been published")
}
