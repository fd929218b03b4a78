package published

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/nuver/drivers/dotnet/metadata"
	"github.com/emenda-labs/nuver/drivers/dotnet/surface"
)

const (
	publicAccess  = uint16(metadata.AccessPublic)
	privateAccess = uint16(metadata.AccessPrivate)
	familyAccess  = uint16(metadata.AccessFamily)
	staticFlag    = 0x10
)

func sampleAssembly() *metadata.Assembly {
	getter := &metadata.Method{Name: "get_Size", Flags: publicAccess, Accessor: true}
	privateGetter := &metadata.Method{Name: "get_Secret", Flags: privateAccess, Accessor: true}

	widget := &metadata.TypeDef{
		Namespace: "Acme", Name: "Widget", Flags: metadata.TypePublic,
		Extends: "System.Object",
		Fields: []*metadata.Field{
			{Name: "_count", Flags: privateAccess},
			{Name: "Limit", Flags: publicAccess | staticFlag},
			{Name: "Prot", Flags: familyAccess},
		},
		Methods: []*metadata.Method{
			{Name: ".ctor", Flags: publicAccess | 0x1800},
			getter,
			privateGetter,
			{Name: "Run", Flags: publicAccess, ParamCount: 0},
			{Name: "Run", Flags: publicAccess, ParamCount: 1},
			{Name: "Hidden", Flags: uint16(metadata.AccessAssembly)},
		},
		Properties: []*metadata.Property{
			{Name: "Size", Accessors: []*metadata.Method{getter}},
			{Name: "Secret", Accessors: []*metadata.Method{privateGetter}},
		},
	}
	base := &metadata.TypeDef{Namespace: "Acme", Name: "CustomDelegateBase", Flags: metadata.TypeNotPublic | metadata.TypeAbstract, Extends: "System.MulticastDelegate"}

	types := []*metadata.TypeDef{
		widget,
		{Namespace: "Acme", Name: "Point", Flags: metadata.TypePublic | metadata.TypeSealed, Extends: "System.ValueType",
			Attributes: []string{"System.Runtime.CompilerServices.IsReadOnlyAttribute", "System.Runtime.CompilerServices.IsByRefLikeAttribute"}},
		{Namespace: "Acme", Name: "Color", Flags: metadata.TypePublic | metadata.TypeSealed, Extends: "System.Enum",
			Fields: []*metadata.Field{
				{Name: "value__", Flags: publicAccess | 0x600, ElementType: 0x0a},
				{Name: "Red", Flags: publicAccess | staticFlag | 0x40},
			}},
		{Namespace: "Acme", Name: "Handler", Flags: metadata.TypePublic | metadata.TypeSealed, Extends: "System.MulticastDelegate",
			Methods: []*metadata.Method{{Name: "Invoke", Flags: publicAccess}}},
		{Namespace: "Acme", Name: "IShape", Flags: metadata.TypePublic | metadata.TypeInterface | metadata.TypeAbstract},
		{Namespace: "Acme", Name: "Helpers", Flags: metadata.TypePublic | metadata.TypeAbstract | metadata.TypeSealed, Extends: "System.Object"},
		{Namespace: "Acme", Name: "Internal", Flags: metadata.TypeNotPublic, Extends: "System.Object"},
		{Namespace: "Acme", Name: "List`1", Flags: metadata.TypePublic, Extends: "System.Object"},
		base,
		{Namespace: "Acme", Name: "Derived", Flags: metadata.TypePublic | metadata.TypeSealed, Extends: "Acme.CustomDelegateBase", ExtendsDef: base},
	}

	list := types[7]
	inner := &metadata.TypeDef{Name: "Node", Flags: metadata.TypeNestedPublic, Enclosing: list, Extends: "System.Object"}
	private := &metadata.TypeDef{Name: "Secret", Flags: metadata.TypeNestedPrivate, Enclosing: list}
	protected := &metadata.TypeDef{Name: "Entry`1", Flags: metadata.TypeNestedFamily, Enclosing: list, Extends: "System.ValueType"}
	list.Nested = []*metadata.TypeDef{inner, private, protected}
	types = append(types, inner, private, protected)

	return &metadata.Assembly{Name: "Acme.Core", Version: "1.0.0.0", Types: types}
}

func TestAdapter_Surface(t *testing.T) {
	s, err := New(sampleAssembly()).Surface(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Acme.Core", s.AssemblyName)

	var names []string
	for _, sig := range s.Sorted() {
		names = append(names, sig.String())
	}
	assert.Equal(t, []string{
		"Acme.Color",
		"Acme.Derived",
		"Acme.Handler",
		"Acme.Helpers",
		"Acme.IShape",
		"Acme.List`1",
		"Acme.List`1+Entry`1",
		"Acme.List`1+Node",
		"Acme.Point",
		"Acme.Widget",
	}, names)
}

func TestAdapter_Declarations(t *testing.T) {
	s, err := New(sampleAssembly()).Surface(context.Background())
	require.NoError(t, err)

	decl := func(ns, name string, arity int) surface.Declaration {
		t.Helper()
		ty, ok := s.Types[surface.Signature{Namespace: ns, Name: name, Arity: arity}]
		require.True(t, ok, "%s.%s", ns, name)
		return ty.Decl
	}

	assert.Equal(t, surface.Class{}, decl("Acme", "Widget", 0))
	assert.Equal(t, surface.Class{Static: true, Abstract: true, Sealed: true}, decl("Acme", "Helpers", 0))
	assert.Equal(t, surface.Struct{ReadOnly: true, ByRefLike: true}, decl("Acme", "Point", 0))
	assert.Equal(t, surface.Enum{UnderlyingType: "Int64"}, decl("Acme", "Color", 0))
	assert.Equal(t, surface.Delegate{}, decl("Acme", "Handler", 0))
	assert.Equal(t, surface.Delegate{}, decl("Acme", "Derived", 0))
	assert.Equal(t, surface.Interface{}, decl("Acme", "IShape", 0))
	assert.Equal(t, surface.Struct{}, decl("Acme", "List`1+Entry", 1))
}

func TestAdapter_Members(t *testing.T) {
	s, err := New(sampleAssembly()).Surface(context.Background())
	require.NoError(t, err)

	widget := s.Types[surface.Signature{Namespace: "Acme", Name: "Widget"}]
	require.NotNil(t, widget)

	memberNames := func(ms []surface.Member) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Limit", "Prot"}, memberNames(widget.Members.Fields))
	assert.Equal(t, []string{".ctor", "Run", "Run"}, memberNames(widget.Members.Methods))
	assert.Equal(t, []string{"Size"}, memberNames(widget.Members.Properties))
	assert.True(t, widget.Members.Fields[0].Static)

	color := s.Types[surface.Signature{Namespace: "Acme", Name: "Color"}]
	assert.Equal(t, []string{"Red"}, memberNames(color.Members.Fields))

	handler := s.Types[surface.Signature{Namespace: "Acme", Name: "Handler"}]
	assert.Equal(t, 0, handler.Members.Len())
}

func TestAdapter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(sampleAssembly()).Surface(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_EnumDefaultsToInt32(t *testing.T) {
	asm := &metadata.Assembly{Name: "X", Types: []*metadata.TypeDef{
		{Namespace: "X", Name: "E", Flags: metadata.TypePublic, Extends: "System.Enum"},
	}}
	s, err := New(asm).Surface(context.Background())
	require.NoError(t, err)
	assert.Equal(t, surface.Enum{UnderlyingType: "Int32"}, s.Types[surface.Signature{Namespace: "X", Name: "E"}].Decl)
}
