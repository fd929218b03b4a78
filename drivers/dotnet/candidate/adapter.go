// Package candidate extracts the exported surface of a freshly compiled
// project from its symbol tree.
package candidate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
)

var _ surface.Adapter = (*Adapter)(nil)

// Adapter reads the exported surface of a compilation.
type Adapter struct {
	comp *symbols.Compilation
}

// New returns an Adapter for comp.
func New(comp *symbols.Compilation) *Adapter {
	return &Adapter{comp: comp}
}

// Surface walks the global namespace, then nested namespaces, named types
// and their members.
func (a *Adapter) Surface(ctx context.Context) (*surface.Surface, error) {
	s := surface.New(a.comp.AssemblyName)
	if a.comp.GlobalNamespace == nil {
		return s, nil
	}
	if err := a.visitNamespace(ctx, s, a.comp.GlobalNamespace, ""); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *Adapter) visitNamespace(ctx context.Context, s *surface.Surface, ns *symbols.Namespace, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full := ns.Name
	if parent != "" && ns.Name != "" {
		full = parent + "." + ns.Name
	} else if parent != "" {
		full = parent
	}

	for _, child := range ns.Namespaces {
		if err := a.visitNamespace(ctx, s, child, full); err != nil {
			return err
		}
	}
	for _, t := range ns.Types {
		if err := a.visitType(ctx, s, t, full, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) visitType(ctx context.Context, s *surface.Surface, nt *symbols.NamedType, namespace string, outer *surface.Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !nt.Accessibility.Exported() {
		return nil
	}

	sig := surface.Signature{Namespace: namespace, Name: nt.Name, Arity: nt.TypeParameters}
	if outer != nil {
		prefix := outer.Name
		if outer.Arity > 0 {
			prefix += "`" + strconv.Itoa(outer.Arity)
		}
		sig = surface.Signature{Namespace: outer.Namespace, Name: prefix + "+" + nt.Name, Arity: nt.TypeParameters}
	}
	if s.Has(sig) {
		return nil
	}

	decl, err := declarationOf(nt)
	if err != nil {
		return fmt.Errorf("type %s: %w", sig, err)
	}

	t := &surface.Type{Signature: sig, Decl: decl}
	if decl.Kind() != surface.KindDelegate {
		for _, m := range nt.Members {
			if err := ctx.Err(); err != nil {
				return err
			}
			visitMember(&t.Members, m)
		}
	}
	s.Add(t)

	for _, nested := range nt.Types {
		if err := a.visitType(ctx, s, nested, namespace, &sig); err != nil {
			return err
		}
	}
	return nil
}

func declarationOf(nt *symbols.NamedType) (surface.Declaration, error) {
	switch nt.Kind {
	case symbols.TypeClass:
		return surface.Class{Static: nt.IsStatic, Abstract: nt.IsAbstract, Sealed: nt.IsSealed}, nil
	case symbols.TypeStruct:
		return surface.Struct{ReadOnly: nt.IsReadOnly, ByRefLike: nt.IsRefLike}, nil
	case symbols.TypeEnum:
		underlying := nt.EnumUnderlyingType
		if underlying == "" {
			underlying = "Int32"
		}
		return surface.Enum{UnderlyingType: underlying}, nil
	case symbols.TypeInterface:
		return surface.Interface{}, nil
	case symbols.TypeDelegate:
		return surface.Delegate{}, nil
	}
	return nil, fmt.Errorf("%w: %q", surface.ErrUnknownKind, nt.Kind)
}

func visitMember(ms *surface.MemberSet, m symbols.Member) {
	if !m.Accessibility.Exported() {
		return
	}
	member := surface.Member{Name: m.Name, Parameters: m.Parameters, Static: m.IsStatic}
	switch m.Kind {
	case symbols.MemberMethod:
		ms.Add(surface.MemberMethod, member)
	case symbols.MemberProperty:
		ms.Add(surface.MemberProperty, member)
	case symbols.MemberField:
		ms.Add(surface.MemberField, member)
	case symbols.MemberEvent:
		ms.Add(surface.MemberEvent, member)
	}
}
