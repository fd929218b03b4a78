// Package published extracts the exported surface of a shipped assembly from
// its metadata.
package published

import (
	"context"
	"strconv"

	"github.com/emenda-labs/nuver/drivers/dotnet/metadata"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
)

const (
	baseEnum              = "System.Enum"
	baseValueType         = "System.ValueType"
	baseMulticastDelegate = "System.MulticastDelegate"
	baseDelegate          = "System.Delegate"

	isReadOnlyAttribute  = "System.Runtime.CompilerServices.IsReadOnlyAttribute"
	isByRefLikeAttribute = "System.Runtime.CompilerServices.IsByRefLikeAttribute"

	enumValueField = "value__"
	maxBaseDepth   = 64
)

var _ surface.Adapter = (*Adapter)(nil)

// Adapter reads the exported surface of one assembly.
type Adapter struct {
	asm *metadata.Assembly
}

// New returns an Adapter for asm.
func New(asm *metadata.Assembly) *Adapter {
	return &Adapter{asm: asm}
}

// Surface walks the public top-level types and their externally visible
// nested types.
func (a *Adapter) Surface(ctx context.Context) (*surface.Surface, error) {
	s := surface.New(a.asm.Name)
	for _, td := range a.asm.Types {
		if td.Enclosing != nil || td.Visibility() != metadata.TypePublic {
			continue
		}
		if err := a.visit(ctx, s, td, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *Adapter) visit(ctx context.Context, s *surface.Surface, td *metadata.TypeDef, outer *surface.Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sig := signatureOf(td, outer)
	if s.Has(sig) {
		return nil
	}

	t := &surface.Type{Signature: sig, Decl: declarationOf(td)}
	if t.Kind() != surface.KindDelegate {
		collectMembers(td, &t.Members)
	}
	s.Add(t)

	for _, nested := range td.Nested {
		if !exportedNested(nested.Visibility()) {
			continue
		}
		if err := a.visit(ctx, s, nested, &sig); err != nil {
			return err
		}
	}
	return nil
}

func signatureOf(td *metadata.TypeDef, outer *surface.Signature) surface.Signature {
	name, arity := metadata.SplitArity(td.Name)
	if outer == nil {
		return surface.Signature{Namespace: td.Namespace, Name: name, Arity: arity}
	}
	prefix := outer.Name
	if outer.Arity > 0 {
		prefix += "`" + strconv.Itoa(outer.Arity)
	}
	return surface.Signature{Namespace: outer.Namespace, Name: prefix + "+" + name, Arity: arity}
}

func exportedNested(v metadata.TypeAttributes) bool {
	switch v {
	case metadata.TypeNestedPublic, metadata.TypeNestedFamily, metadata.TypeNestedFamORAssem:
		return true
	}
	return false
}

func exportedMember(a metadata.MemberAccess) bool {
	switch a {
	case metadata.AccessPublic, metadata.AccessFamily, metadata.AccessFamORAssem:
		return true
	}
	return false
}

func declarationOf(td *metadata.TypeDef) surface.Declaration {
	if td.IsInterface() {
		return surface.Interface{}
	}

	switch rootBase(td) {
	case baseEnum:
		return surface.Enum{UnderlyingType: enumUnderlyingType(td)}
	case baseValueType:
		return surface.Struct{
			ReadOnly:  td.HasAttribute(isReadOnlyAttribute),
			ByRefLike: td.HasAttribute(isByRefLikeAttribute),
		}
	case baseMulticastDelegate, baseDelegate:
		return surface.Delegate{}
	}

	return surface.Class{
		Static:   td.IsAbstract() && td.IsSealed(),
		Abstract: td.IsAbstract(),
		Sealed:   td.IsSealed(),
	}
}

// rootBase follows base types defined in the same assembly and returns the
// first well-known framework base it reaches, or "".
func rootBase(td *metadata.TypeDef) string {
	for cur, depth := td, 0; cur != nil && depth < maxBaseDepth; cur, depth = cur.ExtendsDef, depth+1 {
		switch cur.Extends {
		case baseEnum, baseValueType, baseMulticastDelegate, baseDelegate:
			return cur.Extends
		}
	}
	return ""
}

func enumUnderlyingType(td *metadata.TypeDef) string {
	for _, f := range td.Fields {
		if f.Name == enumValueField && !f.IsStatic() {
			return metadata.ElementTypeName(f.ElementType)
		}
	}
	return "Int32"
}

func collectMembers(td *metadata.TypeDef, ms *surface.MemberSet) {
	for _, f := range td.Fields {
		if f.IsRTSpecialName() || !exportedMember(f.Access()) {
			continue
		}
		ms.Add(surface.MemberField, surface.Member{Name: f.Name, Static: f.IsStatic()})
	}

	for _, m := range td.Methods {
		if m.Accessor || !exportedMember(m.Access()) {
			continue
		}
		ms.Add(surface.MemberMethod, surface.Member{Name: m.Name, Parameters: m.ParamCount, Static: m.IsStatic()})
	}

	for _, p := range td.Properties {
		if !anyExported(p.Accessors) {
			continue
		}
		ms.Add(surface.MemberProperty, surface.Member{Name: p.Name, Parameters: p.ParamCount, Static: p.Static})
	}

	for _, e := range td.Events {
		if !anyExported(e.Accessors) {
			continue
		}
		ms.Add(surface.MemberEvent, surface.Member{Name: e.Name, Static: e.Accessors[0].IsStatic()})
	}
}

func anyExported(accessors []*metadata.Method) bool {
	for _, m := range accessors {
		if exportedMember(m.Access()) {
			return true
		}
	}
	return false
}
