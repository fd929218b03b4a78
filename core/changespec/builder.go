package changespec

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFinalized is returned when a Builder is used after Finalize.
var ErrFinalized = errors.New("change summary already finalized")

// Recorder accepts classified changes. Builder and Log implement it.
type Recorder interface {
	Add(severity Severity, description string, targets ...Target) error
}

type changeKey struct {
	severity    Severity
	description string
}

// Builder accumulates changes. Changes with the same severity and description
// are merged into one entry whose targets are the union of all observations.
// Builder is safe for concurrent use.
type Builder struct {
	mu        sync.Mutex
	order     []changeKey
	byKey     map[changeKey]*Change
	finalized bool
}

var _ Recorder = (*Builder)(nil)

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byKey: make(map[changeKey]*Change)}
}

// Add records a change observed on the given targets.
func (b *Builder) Add(severity Severity, description string, targets ...Target) error {
	if !severity.Recordable() {
		return fmt.Errorf("%w: %s cannot be recorded as a change", ErrUnknownSeverity, severity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return ErrFinalized
	}

	key := changeKey{severity: severity, description: description}
	existing, ok := b.byKey[key]
	if !ok {
		existing = &Change{Severity: severity, Description: description}
		b.byKey[key] = existing
		b.order = append(b.order, key)
	}
	for _, t := range targets {
		if !existing.HasTarget(t) {
			existing.Targets = append(existing.Targets, t)
		}
	}
	return nil
}

// Finalize freezes the builder and returns the summary. currentVersion is the
// latest published version, or "" when the package was never published.
// Finalize may only be called once.
func (b *Builder) Finalize(currentVersion string) (*Summary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	s := &Summary{
		currentVersion: currentVersion,
		changes:        make(map[Severity][]Change),
	}
	for _, key := range b.order {
		c := b.byKey[key]
		s.changes[key.severity] = append(s.changes[key.severity], c.clone())
		if key.severity > s.severity {
			s.severity = key.severity
		}
	}
	if currentVersion == "" {
		s.severity = SeverityNew
	}

	b.byKey = nil
	b.order = nil
	return s, nil
}

type logEntry struct {
	severity    Severity
	description string
	targets     []Target
}

// Log records changes in insertion order without merging so they can be
// replayed into another Recorder later. It is not safe for concurrent use.
type Log struct {
	entries []logEntry
}

var _ Recorder = (*Log)(nil)

// Add appends a change to the log.
func (l *Log) Add(severity Severity, description string, targets ...Target) error {
	if !severity.Recordable() {
		return fmt.Errorf("%w: %s cannot be recorded as a change", ErrUnknownSeverity, severity)
	}
	l.entries = append(l.entries, logEntry{
		severity:    severity,
		description: description,
		targets:     append([]Target(nil), targets...),
	})
	return nil
}

// Len returns the number of recorded entries.
func (l *Log) Len() int { return len(l.entries) }

// Replay adds every logged change to r in the order it was recorded.
func (l *Log) Replay(r Recorder) error {
	for _, e := range l.entries {
		if err := r.Add(e.severity, e.description, e.targets...); err != nil {
			return err
		}
	}
	return nil
}
