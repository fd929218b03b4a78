// Package apidiff classifies differences between two exported surfaces.
package apidiff

import (
	"context"
	"fmt"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
)

// Policy holds the configurable classification rules.
type Policy struct {
	// AddedType is the severity recorded for a type present only in the
	// candidate surface.
	AddedType changespec.Severity
}

// DefaultPolicy classifies added public types as Major.
func DefaultPolicy() Policy {
	return Policy{AddedType: changespec.SeverityMajor}
}

// differ accumulates changes for one target.
type differ struct {
	target changespec.Target
	rec    changespec.Recorder
}

func (d *differ) emit(severity changespec.Severity, format string, args ...any) error {
	return d.rec.Add(severity, fmt.Sprintf(format, args...), d.target)
}

// CompareSurfaces matches the types of before and after by signature and
// records every classified difference for target into rec. Types are visited
// in signature order so the recorded sequence is stable.
func CompareSurfaces(ctx context.Context, target changespec.Target, before, after *surface.Surface, policy Policy, rec changespec.Recorder) error {
	d := &differ{target: target, rec: rec}

	remaining := make(map[surface.Signature]*surface.Type, len(after.Types))
	for sig, t := range after.Types {
		remaining[sig] = t
	}

	for _, sig := range before.Sorted() {
		if err := ctx.Err(); err != nil {
			return err
		}

		old := before.Types[sig]
		cur, ok := remaining[sig]
		if !ok {
			if err := d.emit(changespec.SeverityMajor, "Type %s was removed", sig); err != nil {
				return err
			}
			continue
		}
		delete(remaining, sig)

		if old.Kind() != cur.Kind() {
			if err := d.emit(changespec.SeverityMajor, "Type %s changed from %s to %s", sig, old.Kind(), cur.Kind()); err != nil {
				return err
			}
			continue
		}

		if err := d.declaration(sig, old.Decl, cur.Decl); err != nil {
			return fmt.Errorf("comparing %s: %w", sig, err)
		}
	}

	for _, sig := range after.Sorted() {
		if _, ok := remaining[sig]; !ok {
			continue
		}
		if err := d.emit(policy.AddedType, "Type %s was added", sig); err != nil {
			return err
		}
	}

	return nil
}

// declaration dispatches to the differ for the matched declaration kind.
// Member, interface and base type comparisons are not performed.
func (d *differ) declaration(sig surface.Signature, before, after surface.Declaration) error {
	switch old := before.(type) {
	case surface.Class:
		cur, err := as[surface.Class](after)
		if err != nil {
			return err
		}
		return d.class(sig, old, cur)
	case surface.Struct:
		cur, err := as[surface.Struct](after)
		if err != nil {
			return err
		}
		return d.structure(sig, old, cur)
	case surface.Enum:
		cur, err := as[surface.Enum](after)
		if err != nil {
			return err
		}
		return d.enum(sig, old, cur)
	case surface.Interface, surface.Delegate:
		return nil
	default:
		return fmt.Errorf("%w: %T", surface.ErrUnknownKind, before)
	}
}

func as[T surface.Declaration](decl surface.Declaration) (T, error) {
	v, ok := decl.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: expected %T, got %T", surface.ErrUnknownKind, zero, decl)
	}
	return v, nil
}

func (d *differ) structure(sig surface.Signature, before, after surface.Struct) error {
	if before.ReadOnly != after.ReadOnly {
		wording := "is now readonly"
		if !after.ReadOnly {
			wording = "is no longer readonly"
		}
		if err := d.emit(changespec.SeverityMajor, "Struct %s %s", sig, wording); err != nil {
			return err
		}
	}
	if before.ByRefLike != after.ByRefLike {
		wording := "is now a ref struct"
		if !after.ByRefLike {
			wording = "is no longer a ref struct"
		}
		if err := d.emit(changespec.SeverityMajor, "Struct %s %s", sig, wording); err != nil {
			return err
		}
	}
	return nil
}

func (d *differ) enum(sig surface.Signature, before, after surface.Enum) error {
	if before.UnderlyingType == after.UnderlyingType {
		return nil
	}
	return d.emit(changespec.SeverityMajor, "Enum %s underlying type changed from %s to %s", sig, before.UnderlyingType, after.UnderlyingType)
}

func (d *differ) class(sig surface.Signature, before, after surface.Class) error {
	if before.Static != after.Static {
		if after.Static {
			return d.emit(changespec.SeverityMajor, "Class %s is now static", sig)
		}
		return d.emit(changespec.SeverityMinor, "Class %s is no longer static", sig)
	}
	if after.Static {
		return nil
	}

	if err := d.toggle(sig, "abstract", before.Abstract, after.Abstract); err != nil {
		return err
	}
	return d.toggle(sig, "sealed", before.Sealed, after.Sealed)
}

// toggle records Major when a class gains a restricting modifier and Minor
// when it loses one.
func (d *differ) toggle(sig surface.Signature, modifier string, before, after bool) error {
	switch {
	case !before && after:
		return d.emit(changespec.SeverityMajor, "Class %s is now %s", sig, modifier)
	case before && !after:
		return d.emit(changespec.SeverityMinor, "Class %s is no longer %s", sig, modifier)
	}
	return nil
}
