// Package report renders version detection results for terminals and for
// machine consumption.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/emenda-labs/nuver/core/changespec"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the outcome of one detection run.
type Report struct {
	Package        string              `json:"package" yaml:"package"`
	CurrentVersion string              `json:"currentVersion,omitempty" yaml:"currentVersion,omitempty"`
	NextVersion    string              `json:"nextVersion" yaml:"nextVersion"`
	Severity       changespec.Severity `json:"severity" yaml:"severity"`
	Changes        []Change            `json:"changes" yaml:"changes"`
}

// Change is a rendered code change.
type Change struct {
	Severity    changespec.Severity `json:"severity" yaml:"severity"`
	Description string              `json:"description" yaml:"description"`
	Targets     []changespec.Target `json:"targets" yaml:"targets"`
}

// New builds a report from a finalized summary and the computed next version.
func New(packageID string, s *changespec.Summary, nextVersion string) *Report {
	r := &Report{
		Package:        packageID,
		CurrentVersion: s.CurrentVersion(),
		NextVersion:    nextVersion,
		Severity:       s.Severity(),
		Changes:        []Change{},
	}
	for _, c := range s.All() {
		r.Changes = append(r.Changes, Change{Severity: c.Severity, Description: c.Description, Targets: c.Targets})
	}
	return r
}

// Encode writes r to w as JSON or YAML.
func Encode(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// FormatFromPath picks the encoding for an output file by extension.
func FormatFromPath(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Renderer formats reports as human-readable text.
type Renderer struct {
	pretty bool
}

// NewRenderer creates a renderer. pretty enables colors.
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Text renders the change list followed by the detected version.
func (r *Renderer) Text(rep *Report) string {
	var sb strings.Builder

	if rep.Severity == changespec.SeverityNew {
		fmt.Fprintf(&sb, "Package %s has not been published, using version %s\n", rep.Package, r.version(rep.NextVersion))
		return sb.String()
	}

	for _, sev := range []changespec.Severity{changespec.SeverityMajor, changespec.SeverityMinor, changespec.SeverityPatch} {
		var lines []Change
		for _, c := range rep.Changes {
			if c.Severity == sev {
				lines = append(lines, c)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sb.WriteString(r.header(sev))
		for _, c := range lines {
			fmt.Fprintf(&sb, "  %s: %s\n", changespec.JoinTargets(c.Targets), c.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(summaryLine(rep.Severity) + "\n")
	fmt.Fprintf(&sb, "Version detected: %s (current %s)\n", r.version(rep.NextVersion), rep.CurrentVersion)
	return sb.String()
}

func (r *Renderer) header(sev changespec.Severity) string {
	title := strings.ToUpper(sev.String()[:1]) + sev.String()[1:] + " changes"
	if !r.pretty {
		return title + ":\n"
	}
	switch sev {
	case changespec.SeverityMajor:
		return color.RedString(title) + "\n" + strings.Repeat("─", len(title)) + "\n"
	case changespec.SeverityMinor:
		return color.YellowString(title) + "\n" + strings.Repeat("─", len(title)) + "\n"
	default:
		return color.CyanString(title) + "\n" + strings.Repeat("─", len(title)) + "\n"
	}
}

func (r *Renderer) version(v string) string {
	if r.pretty {
		return color.GreenString(v)
	}
	return v
}

func summaryLine(sev changespec.Severity) string {
	switch sev {
	case changespec.SeverityMajor:
		return "Breaking changes detected, a major version bump is required"
	case changespec.SeverityMinor:
		return "Backwards compatible changes detected, a minor version bump is required"
	case changespec.SeverityPatch:
		return "Only patch level changes detected"
	default:
		return "No public API changes detected"
	}
}
