package apidiff

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
)

// Pair is a target whose published surface must be compared against a
// freshly compiled candidate.
type Pair struct {
	Target    changespec.Target
	Published *surface.Surface
}

// CompareFrameworks compares the desired targets with the published ones.
// Added, removed and renamed targets are recorded into rec; targets that need
// a type-level comparison are returned in desired order. No compilation is
// required for this pass.
func CompareFrameworks(desired []changespec.Target, published map[changespec.Target]*surface.Surface, assemblyName string, rec changespec.Recorder) ([]Pair, error) {
	var queue []Pair
	wanted := make(map[changespec.Target]bool, len(desired))

	for _, target := range desired {
		if wanted[target] {
			continue
		}
		wanted[target] = true

		pub, ok := published[target]
		if !ok {
			if err := rec.Add(changespec.SeverityMinor, "Target framework "+string(target)+" was added", target); err != nil {
				return nil, err
			}
			continue
		}

		if !SameAssembly(pub.AssemblyName, assemblyName) {
			desc := "Assembly renamed from " + stripAssemblyExt(pub.AssemblyName) + " to " + stripAssemblyExt(assemblyName)
			if err := rec.Add(changespec.SeverityMajor, desc, target); err != nil {
				return nil, err
			}
			continue
		}

		queue = append(queue, Pair{Target: target, Published: pub})
	}

	removed := make([]changespec.Target, 0)
	for target := range published {
		if !wanted[target] {
			removed = append(removed, target)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	for _, target := range removed {
		if err := rec.Add(changespec.SeverityMajor, "Target framework "+string(target)+" was removed", target); err != nil {
			return nil, err
		}
	}

	return queue, nil
}

// SameAssembly compares assembly names, ignoring a .dll or .exe extension on
// either side.
func SameAssembly(a, b string) bool {
	return stripAssemblyExt(a) == stripAssemblyExt(b)
}

func stripAssemblyExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dll", ".exe":
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
