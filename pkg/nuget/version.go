package nuget

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// packageVersion is a NuGet version: up to four numeric parts, an optional
// prerelease label and optional build metadata.
type packageVersion struct {
	parts      [4]uint64
	prerelease string
}

func parseVersion(v string) (packageVersion, bool) {
	var pv packageVersion
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	if i := strings.IndexByte(v, '-'); i >= 0 {
		pv.prerelease = strings.ToLower(v[i+1:])
		if pv.prerelease == "" || !semver.IsValid("v0.0.0-"+pv.prerelease) {
			return pv, false
		}
		v = v[:i]
	}

	nums := strings.Split(v, ".")
	if len(nums) < 1 || len(nums) > 4 {
		return pv, false
	}
	for i, n := range nums {
		x, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return pv, false
		}
		pv.parts[i] = x
	}
	return pv, true
}

// ValidVersion reports whether v is a NuGet version string.
func ValidVersion(v string) bool {
	_, ok := parseVersion(v)
	return ok
}

// IsPrerelease reports whether v carries a prerelease label.
func IsPrerelease(v string) bool {
	pv, ok := parseVersion(v)
	return ok && pv.prerelease != ""
}

// CompareVersions orders two NuGet versions: numerically by part, then a
// release above any prerelease, then prerelease labels by semver rules
// (case-insensitive). Build metadata is ignored. Invalid versions sort
// below valid ones.
func CompareVersions(a, b string) int {
	va, okA := parseVersion(a)
	vb, okB := parseVersion(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	for i := range va.parts {
		if va.parts[i] != vb.parts[i] {
			if va.parts[i] < vb.parts[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case va.prerelease == vb.prerelease:
		return 0
	case va.prerelease == "":
		return 1
	case vb.prerelease == "":
		return -1
	}
	return semver.Compare("v0.0.0-"+va.prerelease, "v0.0.0-"+vb.prerelease)
}

// NormalizeVersion renders v the way flat containers name it: lower case,
// without build metadata or leading zeros, and without a zero fourth part.
func NormalizeVersion(v string) string {
	pv, ok := parseVersion(v)
	if !ok {
		return strings.ToLower(strings.TrimSpace(v))
	}
	n := 3
	if pv.parts[3] != 0 {
		n = 4
	}
	nums := make([]string, n)
	for i := range nums {
		nums[i] = strconv.FormatUint(pv.parts[i], 10)
	}
	out := strings.Join(nums, ".")
	if pv.prerelease != "" {
		out += "-" + pv.prerelease
	}
	return out
}
