package surface

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_String(t *testing.T) {
	tests := []struct {
		sig  Signature
		want string
	}{
		{sig: Signature{Namespace: "Foo", Name: "Bar", Arity: 1}, want: "Foo.Bar`1"},
		{sig: Signature{Namespace: "Foo.Baz", Name: "Qux"}, want: "Foo.Baz.Qux"},
		{sig: Signature{Name: "Global"}, want: "Global"},
		{sig: Signature{Namespace: "Acme", Name: "Outer`1+Inner", Arity: 2}, want: "Acme.Outer`1+Inner`2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sig.String())
		})
	}
}

func TestSignature_EqualityIgnoresNothingElse(t *testing.T) {
	a := Signature{Namespace: "A", Name: "T", Arity: 1}
	b := Signature{Namespace: "A", Name: "T", Arity: 1}
	c := Signature{Namespace: "A", Name: "T", Arity: 2}

	m := map[Signature]int{a: 1}
	assert.Contains(t, m, b)
	assert.NotContains(t, m, c)
}

func TestDeclaration_Kinds(t *testing.T) {
	decls := map[Declaration]Kind{
		Class{}:     KindClass,
		Struct{}:    KindStruct,
		Enum{}:      KindEnum,
		Interface{}: KindInterface,
		Delegate{}:  KindDelegate,
	}
	for decl, want := range decls {
		assert.Equal(t, want, decl.Kind())
	}

	_, err := Kind(0).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSurface_AddDeduplicates(t *testing.T) {
	s := New("Acme")
	sig := Signature{Namespace: "Acme", Name: "Widget"}

	assert.True(t, s.Add(&Type{Signature: sig, Decl: Class{}}))
	assert.False(t, s.Add(&Type{Signature: sig, Decl: Struct{}}))
	assert.True(t, s.Has(sig))
	assert.Equal(t, KindClass, s.Types[sig].Kind())
}

func TestMemberSet_Add(t *testing.T) {
	var ms MemberSet
	assert.True(t, ms.Add(MemberMethod, Member{Name: "Run", Parameters: 0}))
	assert.True(t, ms.Add(MemberMethod, Member{Name: "Run", Parameters: 1}))
	assert.False(t, ms.Add(MemberMethod, Member{Name: "Run", Parameters: 1}))
	assert.True(t, ms.Add(MemberProperty, Member{Name: "Run"}))
	assert.False(t, ms.Add(MemberKind("indexer"), Member{Name: "Item"}))

	assert.Equal(t, 3, ms.Len())
	assert.Len(t, ms.Methods, 2)
}

func TestSurface_Sorted(t *testing.T) {
	s := New("Acme")
	s.Add(&Type{Signature: Signature{Namespace: "B", Name: "Z"}, Decl: Class{}})
	s.Add(&Type{Signature: Signature{Namespace: "A", Name: "Y"}, Decl: Class{}})

	sorted := s.Sorted()
	assert.Equal(t, "A.Y", sorted[0].String())
	assert.Equal(t, "B.Z", sorted[1].String())
}

func TestSurface_WriteYAML(t *testing.T) {
	s := New("Acme.Core")
	widget := &Type{Signature: Signature{Namespace: "Acme", Name: "Widget"}, Decl: Class{Sealed: true}}
	widget.Members.Add(MemberMethod, Member{Name: "Run", Parameters: 1})
	widget.Members.Add(MemberMethod, Member{Name: "Reset"})
	s.Add(widget)
	s.Add(&Type{Signature: Signature{Namespace: "Acme", Name: "Color"}, Decl: Enum{UnderlyingType: "Byte"}})

	var buf bytes.Buffer
	require.NoError(t, s.WriteYAML(&buf, "net8.0"))

	want := `assembly: Acme.Core
target: net8.0
types:
  - type: Acme.Color
    kind: enum
    declaration:
      underlyingType: Byte
  - type: Acme.Widget
    kind: class
    declaration:
      sealed: true
    members:
      methods:
        - name: Reset
        - name: Run
          parameters: 1
`
	assert.Equal(t, want, buf.String())
}
