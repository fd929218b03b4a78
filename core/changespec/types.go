package changespec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownSeverity is returned when a severity outside the known set is
// recorded or parsed.
var ErrUnknownSeverity = errors.New("unknown severity")

// Severity classifies how a detected API difference affects consumers.
// None, Patch, Minor and Major are totally ordered. New is a separate state
// meaning no version was ever published; it is never compared.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityPatch
	SeverityMinor
	SeverityMajor
	SeverityNew
)

var severityNames = [...]string{
	SeverityNone:  "none",
	SeverityPatch: "patch",
	SeverityMinor: "minor",
	SeverityMajor: "major",
	SeverityNew:   "new",
}

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Valid reports whether s is one of the declared severities.
func (s Severity) Valid() bool {
	return s >= SeverityNone && s <= SeverityNew
}

// Recordable reports whether a code change may carry s.
func (s Severity) Recordable() bool {
	return s == SeverityPatch || s == SeverityMinor || s == SeverityMajor
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(name string) (Severity, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range severityNames {
		if candidate == n {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

// Target identifies a runtime target framework, e.g. "net6.0".
type Target string

// platformVersion matches a net5+ platform moniker with an optional platform
// version, e.g. net8.0-windows7.0.
var platformVersion = regexp.MustCompile(`^(net\d+\.\d+-[a-z]+)[\d.]*$`)

// NormalizeTarget trims and lower-cases a target framework moniker so that
// values read from project files and package folders compare equal. The
// platform version is dropped, since packing writes net8.0-windows as
// lib/net8.0-windows7.0.
func NormalizeTarget(s string) Target {
	t := strings.ToLower(strings.TrimSpace(s))
	if m := platformVersion.FindStringSubmatch(t); m != nil {
		t = m[1]
	}
	return Target(t)
}

// JoinTargets renders targets separated by "/".
func JoinTargets(targets []Target) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = string(t)
	}
	return strings.Join(parts, "/")
}

// Change is a single classified difference, scoped to the targets on which it
// was observed.
type Change struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
	Targets     []Target `json:"targets" yaml:"targets"`
}

// HasTarget reports whether the change was observed on t.
func (c Change) HasTarget(t Target) bool {
	for _, existing := range c.Targets {
		if existing == t {
			return true
		}
	}
	return false
}

func (c Change) clone() Change {
	out := c
	out.Targets = append([]Target(nil), c.Targets...)
	return out
}
