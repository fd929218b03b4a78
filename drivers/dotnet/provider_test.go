package dotnet

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/pkg/archive"
)

type memoryCache struct {
	entries map[string][]byte
	puts    int
	getErr  error
}

func (c *memoryCache) Get(ctx context.Context, id, version string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	data, ok := c.entries[id+"@"+version]
	return data, ok, nil
}

func (c *memoryCache) Put(ctx context.Context, id, version string, data []byte) error {
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[id+"@"+version] = data
	c.puts++
	return nil
}

func nupkg(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestPackageProvider_DownloadsAndCaches(t *testing.T) {
	reg := &fakeRegistry{data: nupkg(t, map[string]string{
		"Acme.Core.nuspec":                 "<package/>",
		"lib/NET6.0/Acme.Core.dll":         "MZ",
		"lib/netstandard2.0/Acme.Core.dll": "MZ",
	})}
	cache := &memoryCache{}
	p := NewPackageProvider(reg, cache, nil)

	pkg, err := p.Open(context.Background(), "Acme.Core", "1.0.0")
	require.NoError(t, err)
	defer pkg.Close()

	assert.Equal(t, []changespec.Target{"net6.0", "netstandard2.0"}, pkg.Targets())
	assert.Equal(t, 1, reg.downloads)
	assert.Equal(t, 1, cache.puts)

	_, err = pkg.Surface(context.Background(), "net8.0")
	assert.ErrorContains(t, err, "no assembly for net8.0")
}

func TestPackageProvider_PlatformTargets(t *testing.T) {
	reg := &fakeRegistry{data: nupkg(t, map[string]string{
		"lib/net8.0-windows7.0/Acme.Core.dll": "MZ",
		"lib/net8.0/Acme.Core.dll":            "MZ",
	})}
	p := NewPackageProvider(reg, nil, nil)

	pkg, err := p.Open(context.Background(), "Acme.Core", "1.0.0")
	require.NoError(t, err)
	defer pkg.Close()

	assert.Equal(t, []changespec.Target{"net8.0", "net8.0-windows"}, pkg.Targets())
	assert.Equal(t, changespec.NormalizeTarget("net8.0-windows"), pkg.Targets()[1])
}

func TestPackageProvider_CacheHit(t *testing.T) {
	cache := &memoryCache{entries: map[string][]byte{
		"Acme.Core@1.0.0": nupkg(t, map[string]string{"lib/net8.0/Acme.Core.dll": "MZ"}),
	}}
	reg := &fakeRegistry{}
	p := NewPackageProvider(reg, cache, nil)

	pkg, err := p.Open(context.Background(), "Acme.Core", "1.0.0")
	require.NoError(t, err)
	defer pkg.Close()

	assert.Zero(t, reg.downloads)
	assert.Equal(t, []changespec.Target{"net8.0"}, pkg.Targets())
}

func TestPackageProvider_CacheErrorFallsBack(t *testing.T) {
	cache := &memoryCache{getErr: errors.New("database is locked")}
	reg := &fakeRegistry{data: nupkg(t, map[string]string{"lib/net8.0/Acme.Core.dll": "MZ"})}
	p := NewPackageProvider(reg, cache, nil)

	pkg, err := p.Open(context.Background(), "Acme.Core", "1.0.0")
	require.NoError(t, err)
	defer pkg.Close()
	assert.Equal(t, 1, reg.downloads)
}

func TestPackageProvider_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{"missing lib", map[string]string{"content/readme.txt": "hi"}, archive.ErrMissingLib},
		{"two assemblies", map[string]string{
			"lib/net8.0/Acme.Core.dll":  "MZ",
			"lib/net8.0/Acme.Extra.dll": "MZ",
		}, archive.ErrUnexpectedAssemblies},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPackageProvider(&fakeRegistry{data: nupkg(t, tt.files)}, nil, nil)
			_, err := p.Open(context.Background(), "Acme.Core", "1.0.0")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	p := NewPackageProvider(&fakeRegistry{}, nil, nil)
	_, err := p.Open(context.Background(), "Acme.Core", "9.9.9")
	assert.ErrorContains(t, err, "downloading Acme.Core 9.9.9")
}
