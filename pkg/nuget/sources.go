package nuget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

const packageBaseAddressType = "PackageBaseAddress/3.0.0"

// httpSource is a NuGet V3 feed. The flat container base address is read
// from the service index on first use.
type httpSource struct {
	client *Client
	index  string

	mu   sync.Mutex
	base string
}

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

type versionList struct {
	Versions []string `json:"versions"`
}

func (s *httpSource) String() string { return s.index }

func (s *httpSource) baseAddress(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != "" {
		return s.base, nil
	}

	data, _, err := s.client.fetch(ctx, s.index)
	if err != nil {
		return "", fmt.Errorf("reading service index: %w", err)
	}
	var idx serviceIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return "", fmt.Errorf("decoding service index %s: %w", s.index, err)
	}
	for _, r := range idx.Resources {
		if r.Type == packageBaseAddressType && r.ID != "" {
			s.base = strings.TrimSuffix(r.ID, "/")
			return s.base, nil
		}
	}
	return "", fmt.Errorf("service index %s has no %s resource", s.index, packageBaseAddressType)
}

func (s *httpSource) versions(ctx context.Context, id string) ([]string, error) {
	base, err := s.baseAddress(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(id)
	data, _, err := s.client.fetch(ctx, fmt.Sprintf("%s/%s/index.json", base, lower))
	if err != nil {
		if errors.Is(err, errMissing) {
			return nil, nil
		}
		return nil, err
	}
	var list versionList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding version list for %s: %w", id, err)
	}
	return list.Versions, nil
}

func (s *httpSource) download(ctx context.Context, id, version string) ([]byte, bool, error) {
	base, err := s.baseAddress(ctx)
	if err != nil {
		return nil, true, err
	}
	lower := strings.ToLower(id)
	v := NormalizeVersion(version)
	return s.client.fetch(ctx, fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", base, lower, v, lower, v))
}

// localSource is a folder feed, either flat ({id}.{version}.nupkg) or
// hierarchical ({id}/{version}/{id}.{version}.nupkg).
type localSource struct {
	dir string
}

func (s localSource) String() string { return s.dir }

func (s localSource) versions(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(s.dir), "**/*.nupkg")
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.dir, err)
	}

	prefix := strings.ToLower(id) + "."
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		name := strings.ToLower(filepath.Base(m))
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		v := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".nupkg")
		if !ValidVersion(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

func (s localSource) download(ctx context.Context, id, version string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	lower := strings.ToLower(id)
	v := NormalizeVersion(version)
	candidates := []string{
		filepath.Join(s.dir, id+"."+version+".nupkg"),
		filepath.Join(s.dir, lower+"."+v+".nupkg"),
		filepath.Join(s.dir, lower, v, lower+"."+v+".nupkg"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, false, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return nil, true, fmt.Errorf("%w: %s %s not in %s", errMissing, id, version, s.dir)
}
