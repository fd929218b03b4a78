// Package symbols models the semantic symbol tree a compiler produces for a
// candidate build: namespaces, named types and their members.
package symbols

// TypeKind is the compiler's classification of a named type.
type TypeKind string

const (
	TypeClass     TypeKind = "class"
	TypeStruct    TypeKind = "struct"
	TypeEnum      TypeKind = "enum"
	TypeInterface TypeKind = "interface"
	TypeDelegate  TypeKind = "delegate"
)

// Accessibility is the declared accessibility of a symbol.
type Accessibility string

const (
	Public            Accessibility = "public"
	Protected         Accessibility = "protected"
	ProtectedInternal Accessibility = "protectedInternal"
	Internal          Accessibility = "internal"
	PrivateProtected  Accessibility = "privateProtected"
	Private           Accessibility = "private"
)

// Exported reports whether code outside the assembly can see a symbol with
// this accessibility.
func (a Accessibility) Exported() bool {
	return a == Public || a == Protected || a == ProtectedInternal
}

// MemberKind is the kind of a type member.
type MemberKind string

const (
	MemberMethod   MemberKind = "method"
	MemberProperty MemberKind = "property"
	MemberField    MemberKind = "field"
	MemberEvent    MemberKind = "event"
)

// Member is a member symbol. Property and event accessors are not listed
// separately.
type Member struct {
	Name          string        `json:"name"`
	Kind          MemberKind    `json:"kind"`
	Accessibility Accessibility `json:"accessibility"`
	IsStatic      bool          `json:"isStatic,omitempty"`
	Parameters    int           `json:"parameters,omitempty"`
}

// NamedType is a class, struct, enum, interface or delegate symbol.
type NamedType struct {
	Name string `json:"name"`
	// TypeParameters counts the type's own type parameters, excluding those of
	// enclosing types.
	TypeParameters     int           `json:"typeParameters,omitempty"`
	Kind               TypeKind      `json:"kind"`
	Accessibility      Accessibility `json:"accessibility"`
	IsStatic           bool          `json:"isStatic,omitempty"`
	IsAbstract         bool          `json:"isAbstract,omitempty"`
	IsSealed           bool          `json:"isSealed,omitempty"`
	IsReadOnly         bool          `json:"isReadOnly,omitempty"`
	IsRefLike          bool          `json:"isRefLike,omitempty"`
	EnumUnderlyingType string        `json:"enumUnderlyingType,omitempty"`
	Members            []Member      `json:"members,omitempty"`
	Types              []*NamedType  `json:"types,omitempty"`
}

// Namespace is a namespace symbol. The global namespace has an empty name.
type Namespace struct {
	Name       string       `json:"name"`
	Namespaces []*Namespace `json:"namespaces,omitempty"`
	Types      []*NamedType `json:"types,omitempty"`
}

// Compilation is the symbol information for one project and target.
type Compilation struct {
	AssemblyName    string     `json:"assemblyName"`
	Target          string     `json:"target"`
	GlobalNamespace *Namespace `json:"globalNamespace"`
}
