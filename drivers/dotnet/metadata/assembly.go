package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoAssembly is returned for metadata without an Assembly row, such as a
// bare netmodule.
var ErrNoAssembly = errors.New("metadata has no assembly manifest")

// TypeAttributes are the TypeDef flags.
type TypeAttributes uint32

const (
	TypeVisibilityMask    TypeAttributes = 0x07
	TypeNotPublic         TypeAttributes = 0x00
	TypePublic            TypeAttributes = 0x01
	TypeNestedPublic      TypeAttributes = 0x02
	TypeNestedPrivate     TypeAttributes = 0x03
	TypeNestedFamily      TypeAttributes = 0x04
	TypeNestedAssembly    TypeAttributes = 0x05
	TypeNestedFamANDAssem TypeAttributes = 0x06
	TypeNestedFamORAssem  TypeAttributes = 0x07
	TypeInterface         TypeAttributes = 0x20
	TypeAbstract          TypeAttributes = 0x80
	TypeSealed            TypeAttributes = 0x100
)

// MemberAccess is the accessibility encoded in the low bits of field and
// method flags.
type MemberAccess uint16

const (
	AccessCompilerControlled MemberAccess = iota
	AccessPrivate
	AccessFamANDAssem
	AccessAssembly
	AccessFamily
	AccessFamORAssem
	AccessPublic
)

const (
	memberAccessMask   = 0x07
	memberStatic       = 0x10
	fieldRTSpecialName = 0x400
	methodSpecialName  = 0x800
	methodRTSpecial    = 0x1000
)

// Assembly is the decoded manifest and type definitions of one assembly.
type Assembly struct {
	Name    string
	Version string
	// Types holds every TypeDef except the <Module> pseudo type, in table order.
	Types []*TypeDef
}

// TypeDef is one type definition.
type TypeDef struct {
	Namespace string
	// Name is the metadata name, including any `N generic suffix.
	Name  string
	Flags TypeAttributes
	// Extends is the full name of the base type, or "" for interfaces and
	// System.Object.
	Extends string
	// ExtendsDef is set when the base type is defined in the same assembly.
	ExtendsDef *TypeDef
	Enclosing  *TypeDef
	Nested     []*TypeDef
	// Attributes holds the full names of the custom attribute types applied
	// to the type.
	Attributes []string
	Fields     []*Field
	Methods    []*Method
	Properties []*Property
	Events     []*Event
}

// Visibility returns the visibility bits of the type.
func (t *TypeDef) Visibility() TypeAttributes { return t.Flags & TypeVisibilityMask }

func (t *TypeDef) IsInterface() bool { return t.Flags&TypeInterface != 0 }
func (t *TypeDef) IsAbstract() bool  { return t.Flags&TypeAbstract != 0 }
func (t *TypeDef) IsSealed() bool    { return t.Flags&TypeSealed != 0 }

// FullName renders Namespace.Name, with nested types joined by "+".
func (t *TypeDef) FullName() string {
	if t.Enclosing != nil {
		return t.Enclosing.FullName() + "+" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// HasAttribute reports whether a custom attribute of the given full type name
// is applied to t.
func (t *TypeDef) HasAttribute(fullName string) bool {
	for _, a := range t.Attributes {
		if a == fullName {
			return true
		}
	}
	return false
}

// Field is a field definition.
type Field struct {
	Name  string
	Flags uint16
	// ElementType is the ECMA-335 element type of the field signature.
	ElementType byte
}

func (f *Field) Access() MemberAccess  { return MemberAccess(f.Flags & memberAccessMask) }
func (f *Field) IsStatic() bool        { return f.Flags&memberStatic != 0 }
func (f *Field) IsRTSpecialName() bool { return f.Flags&fieldRTSpecialName != 0 }

// Method is a method definition.
type Method struct {
	Name       string
	Flags      uint16
	ParamCount int
	// Accessor marks property and event accessors.
	Accessor bool
}

func (m *Method) Access() MemberAccess { return MemberAccess(m.Flags & memberAccessMask) }
func (m *Method) IsStatic() bool       { return m.Flags&memberStatic != 0 }
func (m *Method) IsSpecialName() bool  { return m.Flags&(methodSpecialName|methodRTSpecial) != 0 }

// Property is a property definition. Its accessibility is that of its most
// visible accessor.
type Property struct {
	Name       string
	ParamCount int
	Static     bool
	Accessors  []*Method
}

// Event is an event definition.
type Event struct {
	Name      string
	Accessors []*Method
}

// ElementTypeName maps a primitive element type to its CLR type name.
func ElementTypeName(et byte) string {
	switch et {
	case 0x02:
		return "Boolean"
	case 0x03:
		return "Char"
	case 0x04:
		return "SByte"
	case 0x05:
		return "Byte"
	case 0x06:
		return "Int16"
	case 0x07:
		return "UInt16"
	case 0x08:
		return "Int32"
	case 0x09:
		return "UInt32"
	case 0x0a:
		return "Int64"
	case 0x0b:
		return "UInt64"
	case 0x18:
		return "IntPtr"
	case 0x19:
		return "UIntPtr"
	}
	return fmt.Sprintf("ElementType(0x%02x)", et)
}

type reader struct {
	ts          *tableStream
	h           *heaps
	defs        []*TypeDef // 1-based
	methods     []*Method  // 1-based by MethodDef row
	methodOwner []*TypeDef // 1-based by MethodDef row
	properties  []*Property
	events      []*Event
}

func newReader(ts *tableStream, h *heaps) *reader {
	return &reader{ts: ts, h: h}
}

func (r *reader) assembly() (*Assembly, error) {
	ts := r.ts
	if ts.rows[tAssembly] == 0 {
		return nil, ErrNoAssembly
	}

	asm := &Assembly{
		Name: r.h.str(ts.cell(tAssembly, 1, 7)),
		Version: fmt.Sprintf("%d.%d.%d.%d",
			ts.cell(tAssembly, 1, 1), ts.cell(tAssembly, 1, 2),
			ts.cell(tAssembly, 1, 3), ts.cell(tAssembly, 1, 4)),
	}

	r.readTypeDefs()
	r.readPropertiesAndEvents()
	r.readSemantics()
	r.readNesting()
	r.resolveBaseTypes()
	r.readCustomAttributes()

	for i := 1; i < len(r.defs); i++ {
		if i == 1 && r.defs[i].Name == "<Module>" {
			continue
		}
		asm.Types = append(asm.Types, r.defs[i])
	}
	return asm, nil
}

// listRange returns the rows [start, end) owned by row of owner through the
// list column col, resolving indirection through ptr when present.
func (r *reader) listRange(owner tableID, row uint32, col int, target, ptr tableID) []uint32 {
	ts := r.ts
	limit := ts.rows[target]
	if ts.rows[ptr] > 0 {
		limit = ts.rows[ptr]
	}

	start := ts.cell(owner, row, col)
	end := limit + 1
	if row < ts.rows[owner] {
		end = ts.cell(owner, row+1, col)
	}
	if start == 0 || end > limit+1 {
		end = limit + 1
	}

	var out []uint32
	for i := start; i > 0 && i < end; i++ {
		if ts.rows[ptr] > 0 {
			out = append(out, ts.cell(ptr, i, 0))
		} else {
			out = append(out, i)
		}
	}
	return out
}

func (r *reader) readTypeDefs() {
	ts := r.ts
	n := ts.rows[tTypeDef]
	r.defs = make([]*TypeDef, n+1)
	r.methods = make([]*Method, ts.rows[tMethodDef]+1)
	r.methodOwner = make([]*TypeDef, ts.rows[tMethodDef]+1)

	for i := uint32(1); i <= n; i++ {
		td := &TypeDef{
			Flags:     TypeAttributes(ts.cell(tTypeDef, i, 0)),
			Name:      r.h.str(ts.cell(tTypeDef, i, 1)),
			Namespace: r.h.str(ts.cell(tTypeDef, i, 2)),
		}
		r.defs[i] = td

		for _, f := range r.listRange(tTypeDef, i, 4, tField, tFieldPtr) {
			td.Fields = append(td.Fields, &Field{
				Flags:       uint16(ts.cell(tField, f, 0)),
				Name:        r.h.str(ts.cell(tField, f, 1)),
				ElementType: fieldElementType(r.h.blobAt(ts.cell(tField, f, 2))),
			})
		}

		for _, m := range r.listRange(tTypeDef, i, 5, tMethodDef, tMethodPtr) {
			if m == 0 || int(m) >= len(r.methods) {
				continue
			}
			method := &Method{
				Flags:      uint16(ts.cell(tMethodDef, m, 2)),
				Name:       r.h.str(ts.cell(tMethodDef, m, 3)),
				ParamCount: methodParamCount(r.h.blobAt(ts.cell(tMethodDef, m, 4))),
			}
			r.methods[m] = method
			r.methodOwner[m] = td
			td.Methods = append(td.Methods, method)
		}
	}
}

func (r *reader) readPropertiesAndEvents() {
	ts := r.ts
	r.properties = make([]*Property, ts.rows[tProperty]+1)
	r.events = make([]*Event, ts.rows[tEvent]+1)

	for row := uint32(1); row <= ts.rows[tPropertyMap]; row++ {
		owner := r.def(ts.cell(tPropertyMap, row, 0))
		if owner == nil {
			continue
		}
		for _, p := range r.listRange(tPropertyMap, row, 1, tProperty, tPropertyPtr) {
			if p == 0 || int(p) >= len(r.properties) {
				continue
			}
			sig := r.h.blobAt(ts.cell(tProperty, p, 2))
			prop := &Property{
				Name:       r.h.str(ts.cell(tProperty, p, 1)),
				ParamCount: propertyParamCount(sig),
				Static:     len(sig) > 0 && sig[0]&0x20 == 0,
			}
			r.properties[p] = prop
			owner.Properties = append(owner.Properties, prop)
		}
	}

	for row := uint32(1); row <= ts.rows[tEventMap]; row++ {
		owner := r.def(ts.cell(tEventMap, row, 0))
		if owner == nil {
			continue
		}
		for _, e := range r.listRange(tEventMap, row, 1, tEvent, tEventPtr) {
			if e == 0 || int(e) >= len(r.events) {
				continue
			}
			ev := &Event{Name: r.h.str(ts.cell(tEvent, e, 1))}
			r.events[e] = ev
			owner.Events = append(owner.Events, ev)
		}
	}
}

func (r *reader) readSemantics() {
	ts := r.ts
	for row := uint32(1); row <= ts.rows[tMethodSemantics]; row++ {
		m := ts.cell(tMethodSemantics, row, 1)
		if m == 0 || int(m) >= len(r.methods) || r.methods[m] == nil {
			continue
		}
		method := r.methods[m]
		method.Accessor = true

		table, assoc := cHasSemantics.decode(ts.cell(tMethodSemantics, row, 2))
		switch table {
		case tProperty:
			if int(assoc) < len(r.properties) && r.properties[assoc] != nil {
				r.properties[assoc].Accessors = append(r.properties[assoc].Accessors, method)
			}
		case tEvent:
			if int(assoc) < len(r.events) && r.events[assoc] != nil {
				r.events[assoc].Accessors = append(r.events[assoc].Accessors, method)
			}
		}
	}
}

func (r *reader) readNesting() {
	ts := r.ts
	for row := uint32(1); row <= ts.rows[tNestedClass]; row++ {
		nested := r.def(ts.cell(tNestedClass, row, 0))
		enclosing := r.def(ts.cell(tNestedClass, row, 1))
		if nested == nil || enclosing == nil || nested == enclosing {
			continue
		}
		nested.Enclosing = enclosing
		enclosing.Nested = append(enclosing.Nested, nested)
	}
}

func (r *reader) resolveBaseTypes() {
	ts := r.ts
	for i := uint32(1); i < uint32(len(r.defs)); i++ {
		td := r.defs[i]
		table, row := cTypeDefOrRef.decode(ts.cell(tTypeDef, i, 3))
		if row == 0 {
			continue
		}
		if table == tTypeDef {
			td.ExtendsDef = r.def(row)
		}
		td.Extends = r.typeName(table, row, 0)
	}
}

func (r *reader) readCustomAttributes() {
	ts := r.ts
	for row := uint32(1); row <= ts.rows[tCustomAttribute]; row++ {
		parentTable, parent := cHasCustomAttribute.decode(ts.cell(tCustomAttribute, row, 0))
		if parentTable != tTypeDef {
			continue
		}
		td := r.def(parent)
		if td == nil {
			continue
		}
		if name := r.attributeType(ts.cell(tCustomAttribute, row, 1)); name != "" {
			td.Attributes = append(td.Attributes, name)
		}
	}
}

// attributeType resolves a CustomAttributeType value (a constructor) to the
// full name of the type declaring it.
func (r *reader) attributeType(v uint32) string {
	table, row := cCustomAttributeType.decode(v)
	switch table {
	case tMethodDef:
		if int(row) < len(r.methodOwner) && r.methodOwner[row] != nil {
			return r.methodOwner[row].FullName()
		}
	case tMemberRef:
		parentTable, parent := cMemberRefParent.decode(r.ts.cell(tMemberRef, row, 0))
		return r.typeName(parentTable, parent, 0)
	}
	return ""
}

const maxTypeNameDepth = 32

// typeName renders the full name of a TypeDef, TypeRef or TypeSpec row.
func (r *reader) typeName(table tableID, row uint32, depth int) string {
	if depth > maxTypeNameDepth {
		return ""
	}
	ts := r.ts
	switch table {
	case tTypeDef:
		if td := r.def(row); td != nil {
			return td.FullName()
		}
	case tTypeRef:
		name := r.h.str(ts.cell(tTypeRef, row, 1))
		ns := r.h.str(ts.cell(tTypeRef, row, 2))
		scopeTable, scope := cResolutionScope.decode(ts.cell(tTypeRef, row, 0))
		if scopeTable == tTypeRef && scope != 0 {
			return r.typeName(tTypeRef, scope, depth+1) + "+" + name
		}
		if ns == "" {
			return name
		}
		return ns + "." + name
	case tTypeSpec:
		t, inner := typeSpecTarget(r.h.blobAt(ts.cell(tTypeSpec, row, 0)))
		if inner != 0 {
			return r.typeName(t, inner, depth+1)
		}
	}
	return ""
}

func (r *reader) def(row uint32) *TypeDef {
	if row == 0 || int(row) >= len(r.defs) {
		return nil
	}
	return r.defs[row]
}

// Signature blob decoding.

const (
	sigGeneric     = 0x10
	sigField       = 0x06
	sigCModReqd    = 0x1F
	sigCModOpt     = 0x20
	sigGenericInst = 0x15
	sigClass       = 0x12
	sigValueType   = 0x11
)

func methodParamCount(sig []byte) int {
	if len(sig) == 0 {
		return 0
	}
	pos := 1
	if sig[0]&sigGeneric != 0 {
		_, n, ok := readCompressed(sig[pos:])
		if !ok {
			return 0
		}
		pos += n
	}
	count, _, ok := readCompressed(sig[pos:])
	if !ok {
		return 0
	}
	return int(count)
}

func propertyParamCount(sig []byte) int {
	if len(sig) < 2 {
		return 0
	}
	count, _, ok := readCompressed(sig[1:])
	if !ok {
		return 0
	}
	return int(count)
}

func fieldElementType(sig []byte) byte {
	if len(sig) < 2 || sig[0] != sigField {
		return 0
	}
	pos := 1
	for pos < len(sig) && (sig[pos] == sigCModReqd || sig[pos] == sigCModOpt) {
		_, n, ok := readCompressed(sig[pos+1:])
		if !ok {
			return 0
		}
		pos += 1 + n
	}
	if pos >= len(sig) {
		return 0
	}
	return sig[pos]
}

// typeSpecTarget returns the generic type definition referenced by a
// GENERICINST type spec, or the class referenced by a plain CLASS spec.
func typeSpecTarget(sig []byte) (tableID, uint32) {
	pos := 0
	if len(sig) > 0 && sig[0] == sigGenericInst {
		pos = 1
	}
	if pos >= len(sig) || (sig[pos] != sigClass && sig[pos] != sigValueType) {
		return noTable, 0
	}
	v, _, ok := readCompressed(sig[pos+1:])
	if !ok {
		return noTable, 0
	}
	return cTypeDefOrRef.decode(v)
}

// SplitArity strips a `N suffix from a metadata type name.
func SplitArity(name string) (string, int) {
	i := strings.LastIndexByte(name, '`')
	if i < 0 {
		return name, 0
	}
	n := 0
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name, 0
		}
		n = n*10 + int(c-'0')
	}
	if i+1 == len(name) {
		return name, 0
	}
	return name[:i], n
}
