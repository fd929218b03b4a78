// Package msbuild reads the handful of SDK-style project properties needed to
// identify a package and its build targets.
package msbuild

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidOutputType is returned when OutputType names something other than
// a library or an executable.
var ErrInvalidOutputType = errors.New("invalid output type")

// Project holds the properties of a project file relevant to versioning.
type Project struct {
	Path         string
	PackageID    string
	AssemblyName string
	OutputType   string
	Frameworks   []string
}

type projectXML struct {
	PropertyGroups []propertyGroup `xml:"PropertyGroup"`
}

type propertyGroup struct {
	Condition        string `xml:"Condition,attr"`
	PackageID        string `xml:"PackageId"`
	AssemblyName     string `xml:"AssemblyName"`
	OutputType       string `xml:"OutputType"`
	TargetFramework  string `xml:"TargetFramework"`
	TargetFrameworks string `xml:"TargetFrameworks"`
}

// Load reads the project file at path. PackageId and AssemblyName default to
// the file name without extension; OutputType defaults to Library.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no project file found at %s", path)
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	p.Path = abs

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if p.AssemblyName == "" {
		p.AssemblyName = base
	}
	if p.PackageID == "" {
		p.PackageID = p.AssemblyName
	}
	return p, nil
}

// Parse decodes project XML. Property groups with a Condition are ignored
// since they cannot be evaluated without MSBuild; the last unconditional
// value of each property wins.
func Parse(data []byte) (*Project, error) {
	var doc projectXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	p := &Project{OutputType: "Library"}
	var single, multi string
	for _, g := range doc.PropertyGroups {
		if strings.TrimSpace(g.Condition) != "" {
			continue
		}
		setIf(&p.PackageID, g.PackageID)
		setIf(&p.AssemblyName, g.AssemblyName)
		setIf(&p.OutputType, g.OutputType)
		setIf(&single, g.TargetFramework)
		setIf(&multi, g.TargetFrameworks)
	}

	// TargetFrameworks takes precedence over TargetFramework.
	if multi != "" {
		p.Frameworks = splitList(multi)
	} else if single != "" {
		p.Frameworks = []string{strings.TrimSpace(single)}
	}
	return p, nil
}

// AssemblyExtension maps OutputType to the file extension of the built
// assembly.
func (p *Project) AssemblyExtension() (string, error) {
	switch strings.ToLower(p.OutputType) {
	case "library":
		return ".dll", nil
	case "exe", "winexe":
		return ".exe", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutputType, p.OutputType)
}

// AssemblyFileName is the assembly name plus its extension.
func (p *Project) AssemblyFileName() (string, error) {
	ext, err := p.AssemblyExtension()
	if err != nil {
		return "", err
	}
	return p.AssemblyName + ext, nil
}

// Dir is the directory containing the project file.
func (p *Project) Dir() string {
	return filepath.Dir(p.Path)
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
