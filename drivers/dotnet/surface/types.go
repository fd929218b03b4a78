// Package surface defines the canonical exported-API model shared by the
// published (metadata) and candidate (compiler symbol) readers.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownKind is returned when a type cannot be mapped to a declaration kind.
var ErrUnknownKind = errors.New("unknown declaration kind")

// Signature identifies a type independently of where it was read from.
// Nested types carry their enclosing chain in Name, joined with "+".
type Signature struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name      string `json:"name" yaml:"name"`
	Arity     int    `json:"arity,omitempty" yaml:"arity,omitempty"`
}

// String renders the signature as Namespace.Name with a `N suffix for
// generic types.
func (s Signature) String() string {
	name := s.Name
	if s.Namespace != "" {
		name = s.Namespace + "." + name
	}
	if s.Arity > 0 {
		name += "`" + strconv.Itoa(s.Arity)
	}
	return name
}

// Kind is the structural category of a type.
type Kind int

const (
	KindClass Kind = iota + 1
	KindStruct
	KindEnum
	KindInterface
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindInterface:
		return "interface"
	case KindDelegate:
		return "delegate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindClass || k > KindDelegate {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// Declaration is the kind-specific part of a type. The set of variants is
// closed: Class, Struct, Enum, Interface and Delegate.
type Declaration interface {
	Kind() Kind
	declaration()
}

// Class describes a reference type.
type Class struct {
	Static   bool `json:"static,omitempty" yaml:"static,omitempty"`
	Abstract bool `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Sealed   bool `json:"sealed,omitempty" yaml:"sealed,omitempty"`
}

// Struct describes a value type.
type Struct struct {
	ReadOnly  bool `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	ByRefLike bool `json:"byRefLike,omitempty" yaml:"byRefLike,omitempty"`
}

// Enum describes an enumeration. UnderlyingType is the CLR primitive name,
// e.g. "Int32".
type Enum struct {
	UnderlyingType string `json:"underlyingType" yaml:"underlyingType"`
}

// Interface describes an interface type.
type Interface struct{}

// Delegate describes a delegate type.
type Delegate struct{}

func (Class) Kind() Kind     { return KindClass }
func (Struct) Kind() Kind    { return KindStruct }
func (Enum) Kind() Kind      { return KindEnum }
func (Interface) Kind() Kind { return KindInterface }
func (Delegate) Kind() Kind  { return KindDelegate }

func (Class) declaration()     {}
func (Struct) declaration()    {}
func (Enum) declaration()      {}
func (Interface) declaration() {}
func (Delegate) declaration()  {}

// MemberKind is the category of a type member.
type MemberKind string

const (
	MemberEvent    MemberKind = "event"
	MemberField    MemberKind = "field"
	MemberMethod   MemberKind = "method"
	MemberProperty MemberKind = "property"
)

// Member is an exported member of a type.
type Member struct {
	Name       string `json:"name" yaml:"name"`
	Parameters int    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Static     bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

// Type is one exported type with its declaration and members.
type Type struct {
	Signature Signature   `json:"signature" yaml:"signature"`
	Decl      Declaration `json:"declaration" yaml:"declaration"`
	Members   MemberSet   `json:"members" yaml:"members"`
}

// Kind returns the declaration kind of t.
func (t *Type) Kind() Kind { return t.Decl.Kind() }

// Surface is the exported API of one assembly for one target.
type Surface struct {
	AssemblyName string
	Types        map[Signature]*Type
}

// New returns an empty surface for the named assembly.
func New(assemblyName string) *Surface {
	return &Surface{AssemblyName: assemblyName, Types: make(map[Signature]*Type)}
}

// Add inserts t unless a type with the same signature is already present.
// It reports whether t was inserted.
func (s *Surface) Add(t *Type) bool {
	if _, ok := s.Types[t.Signature]; ok {
		return false
	}
	s.Types[t.Signature] = t
	return true
}

// Has reports whether sig is already part of the surface.
func (s *Surface) Has(sig Signature) bool {
	_, ok := s.Types[sig]
	return ok
}

// Adapter extracts an exported surface from a source-specific representation.
type Adapter interface {
	Surface(ctx context.Context) (*Surface, error)
}
