package changespec

// reportOrder lists change severities from most to least severe.
var reportOrder = []Severity{SeverityMajor, SeverityMinor, SeverityPatch}

// Summary is the immutable result of a comparison run.
type Summary struct {
	currentVersion string
	severity       Severity
	changes        map[Severity][]Change
}

// CurrentVersion returns the latest published version, or "" if none exists.
func (s *Summary) CurrentVersion() string { return s.currentVersion }

// IsNew reports whether the package has never been published.
func (s *Summary) IsNew() bool { return s.currentVersion == "" }

// Severity returns the overall severity: New when there is no current
// version, None when nothing changed, otherwise the highest recorded severity.
func (s *Summary) Severity() Severity { return s.severity }

// Changes returns a copy of the changes recorded at severity, in the order
// they were first observed.
func (s *Summary) Changes(severity Severity) []Change {
	src := s.changes[severity]
	out := make([]Change, len(src))
	for i, c := range src {
		out[i] = c.clone()
	}
	return out
}

// All returns every change, most severe first.
func (s *Summary) All() []Change {
	var out []Change
	for _, sev := range reportOrder {
		out = append(out, s.Changes(sev)...)
	}
	return out
}

// Len returns the total number of distinct changes.
func (s *Summary) Len() int {
	n := 0
	for _, list := range s.changes {
		n += len(list)
	}
	return n
}
