package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrMissingLib is returned when a package has no lib/ directory.
	ErrMissingLib = errors.New("package has no lib directory")
	// ErrNoTargets is returned when lib/ has no target framework directories.
	ErrNoTargets = errors.New("package lib directory has no target frameworks")
	// ErrUnexpectedAssemblies is returned when a target directory does not
	// hold exactly one assembly.
	ErrUnexpectedAssemblies = errors.New("unexpected number of assemblies")
)

// assemblyPattern is matched against lower-cased file names.
const assemblyPattern = "*.{dll,exe}"

// LibAssemblies maps each target framework folder under dir/lib to the single
// assembly it contains.
func LibAssemblies(dir string) (map[string]string, error) {
	libDir := filepath.Join(dir, "lib")
	info, err := os.Stat(libDir)
	if err != nil || !info.IsDir() {
		return nil, ErrMissingLib
	}

	entries, err := os.ReadDir(libDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", libDir, err)
	}

	libs := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		targetDir := filepath.Join(libDir, e.Name())
		matches, err := assemblies(targetDir)
		if err != nil {
			return nil, err
		}
		if len(matches) != 1 {
			return nil, fmt.Errorf("%w: lib/%s contains %d", ErrUnexpectedAssemblies, e.Name(), len(matches))
		}
		libs[e.Name()] = filepath.Join(targetDir, matches[0])
	}

	if len(libs) == 0 {
		return nil, ErrNoTargets
	}
	return libs, nil
}

func assemblies(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(assemblyPattern, strings.ToLower(e.Name())); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
