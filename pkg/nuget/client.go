// Package nuget resolves and downloads packages from NuGet V3 feeds and
// local folder feeds.
package nuget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emenda-labs/nuver/pkg/archive"
	"github.com/emenda-labs/nuver/pkg/logging"
)

const (
	// DefaultSource is the public nuget.org service index.
	DefaultSource     = "https://api.nuget.org/v3/index.json"
	httpClientTimeout = 30 * time.Second
	defaultUserAgent  = "nuver/0.1.0"
	statusNotFound    = http.StatusNotFound
	statusGone        = http.StatusGone
)

var (
	// ErrAmbiguousVersion is returned when two sources report different
	// latest versions for the same package.
	ErrAmbiguousVersion = errors.New("ambiguous latest version")
	// ErrNotFound is returned when no source has the requested package.
	ErrNotFound = errors.New("package not found")

	errMissing = errors.New("resource missing")
)

// Options configures a Client.
type Options struct {
	// Sources are service index URLs or local folder paths, consulted in
	// order. Empty means DefaultSource.
	Sources    []string
	HTTPClient *http.Client
	UserAgent  string
	// MaxResponseSize bounds every response body. Zero means
	// archive.MaxPackageSize.
	MaxResponseSize int64
	Logger          *slog.Logger
}

// Client talks to an ordered chain of package sources.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxSize    int64
	sources    []source
	logger     *slog.Logger
}

type source interface {
	// versions lists every version of id the source has, including
	// unlisted ones. A source without the package returns nil.
	versions(ctx context.Context, id string) ([]string, error)
	// download returns the package bytes; tryNext reports that the source
	// does not have it.
	download(ctx context.Context, id, version string) (data []byte, tryNext bool, err error)
	String() string
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		maxSize:    opts.MaxResponseSize,
		logger:     logging.OrDiscard(opts.Logger),
	}
	if c.maxSize <= 0 {
		c.maxSize = archive.MaxPackageSize
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: httpClientTimeout}
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources = []string{DefaultSource}
	}
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if isRemote(s) {
			c.sources = append(c.sources, &httpSource{client: c, index: s})
		} else {
			c.sources = append(c.sources, localSource{dir: s})
		}
	}
	return c
}

func isRemote(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LatestVersion returns the highest version of id across all sources, or ""
// when no source has a matching version. Prerelease versions are ignored
// unless includePrerelease is set. Every source is consulted; if two report
// different latest versions the result is ErrAmbiguousVersion.
func (c *Client) LatestVersion(ctx context.Context, id string, includePrerelease bool) (string, error) {
	var latest, from string
	for _, src := range c.sources {
		versions, err := src.versions(ctx, id)
		if err != nil {
			return "", fmt.Errorf("listing versions of %s from %s: %w", id, src, err)
		}

		sourceLatest := ""
		for _, v := range versions {
			if !ValidVersion(v) || (!includePrerelease && IsPrerelease(v)) {
				continue
			}
			if sourceLatest == "" || CompareVersions(v, sourceLatest) > 0 {
				sourceLatest = v
			}
		}
		if sourceLatest == "" {
			continue
		}

		c.logger.Debug("source latest version", "package", id, "source", src.String(), "version", sourceLatest)
		if latest != "" && CompareVersions(latest, sourceLatest) != 0 {
			return "", fmt.Errorf("%w for %s: %s reports %s, %s reports %s",
				ErrAmbiguousVersion, id, from, latest, src, sourceLatest)
		}
		latest, from = sourceLatest, src.String()
	}
	return latest, nil
}

// Download fetches the .nupkg for id and version from the first source that
// has it.
func (c *Client) Download(ctx context.Context, id, version string) ([]byte, error) {
	for i, src := range c.sources {
		data, tryNext, err := src.download(ctx, id, version)
		if err == nil {
			c.logger.Debug("downloaded package", "package", id, "version", version, "source", src.String(), "bytes", len(data))
			return data, nil
		}
		if tryNext && i < len(c.sources)-1 {
			continue
		}
		if errors.Is(err, errMissing) {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrNotFound, id, version, err)
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s %s", ErrNotFound, id, version)
}

// fetch performs a single HTTP GET for the given URL.
// It returns (data, tryNext, error).
// tryNext signals that the caller may attempt the next source; errMissing
// marks a resource the source reported as absent.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level error; let the caller decide whether to try the next source.
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == statusNotFound || resp.StatusCode == statusGone {
		return nil, true, fmt.Errorf("%w: source returned %d for %s", errMissing, resp.StatusCode, url)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, false, fmt.Errorf("reading response body from %s: %w", url, err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, false, fmt.Errorf("response from %s exceeds maximum size of %d bytes", url, c.maxSize)
	}

	return data, false, nil
}
