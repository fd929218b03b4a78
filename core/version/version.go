// Package version parses package versions and computes the next version for
// a detected change severity.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/emenda-labs/nuver/core/changespec"
)

// DefaultVersion is used for packages that were never published when no
// default is configured.
const DefaultVersion = "1.0.0"

// ErrInvalidVersion is returned for versions that are not well-formed
// three-part semantic versions.
var ErrInvalidVersion = errors.New("invalid semantic version")

// Version is a semantic version. Build metadata is parsed but never carried
// into a bumped version.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Build      string
}

// Parse parses a semantic version such as "2.3.1" or "1.0.0-beta.2+sha.5".
// Legacy versions with a fourth component, missing components or a leading
// "v" are rejected.
func Parse(s string) (Version, error) {
	if s == "" || strings.HasPrefix(s, "v") || !semver.IsValid("v"+s) {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	rest := s
	var v Version
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v.Build = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		v.Prerelease = rest[i+1:]
		rest = rest[:i]
	}

	// semver accepts "v1" and "v1.2" shorthands.
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q must have major, minor and patch components", ErrInvalidVersion, s)
	}

	nums := make([]uint64, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// String renders the version without a leading "v".
func (v Version) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		sb.WriteByte('-')
		sb.WriteString(v.Prerelease)
	}
	if v.Build != "" {
		sb.WriteByte('+')
		sb.WriteString(v.Build)
	}
	return sb.String()
}

// Bump returns the version following v for the given change severity. The
// prerelease label is kept; build metadata is dropped.
func (v Version) Bump(severity changespec.Severity) (Version, error) {
	next := Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch, Prerelease: v.Prerelease}
	switch severity {
	case changespec.SeverityNone, changespec.SeverityPatch:
		next.Patch++
	case changespec.SeverityMinor:
		next.Minor++
		next.Patch = 0
	case changespec.SeverityMajor:
		next.Major++
		next.Minor = 0
		next.Patch = 0
	default:
		return Version{}, fmt.Errorf("cannot bump %s for severity %s: %w", v, severity, changespec.ErrUnknownSeverity)
	}
	return next, nil
}

// Next computes the next version string. For SeverityNew the default version
// is returned verbatim (DefaultVersion when empty); otherwise current is
// parsed and bumped.
func Next(severity changespec.Severity, current, defaultVersion string) (string, error) {
	if severity == changespec.SeverityNew {
		if defaultVersion == "" {
			defaultVersion = DefaultVersion
		}
		if _, err := Parse(defaultVersion); err != nil {
			return "", fmt.Errorf("default version: %w", err)
		}
		return defaultVersion, nil
	}

	v, err := Parse(current)
	if err != nil {
		return "", fmt.Errorf("current version: %w", err)
	}
	next, err := v.Bump(severity)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}
