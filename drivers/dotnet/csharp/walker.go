package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
)

type typeKey struct {
	name  string
	arity int
}

type nsEntry struct {
	ns       *symbols.Namespace
	children map[string]*nsEntry
	types    map[typeKey]*typeEntry
}

type typeEntry struct {
	t        *symbols.NamedType
	explicit bool // accessibility was written in source
	hasCtor  bool
	nested   map[typeKey]*typeEntry
}

// builder accumulates declarations across files, merging partial types.
type builder struct {
	global *nsEntry
	all    []*typeEntry
}

func newBuilder() *builder {
	return &builder{global: newNsEntry("")}
}

func newNsEntry(name string) *nsEntry {
	return &nsEntry{
		ns:       &symbols.Namespace{Name: name},
		children: map[string]*nsEntry{},
		types:    map[typeKey]*typeEntry{},
	}
}

func (e *nsEntry) child(name string) *nsEntry {
	c, ok := e.children[name]
	if !ok {
		c = newNsEntry(name)
		e.children[name] = c
		e.ns.Namespaces = append(e.ns.Namespaces, c.ns)
	}
	return c
}

func (e *nsEntry) descend(qualified string) *nsEntry {
	cur := e
	for _, part := range strings.Split(qualified, ".") {
		if part = strings.TrimSpace(part); part != "" {
			cur = cur.child(part)
		}
	}
	return cur
}

// container is where a type declaration lands: a namespace or an enclosing
// type.
type container struct {
	ns    *nsEntry
	outer *typeEntry
}

func (c container) lookup(k typeKey) (*typeEntry, bool) {
	if c.outer != nil {
		e, ok := c.outer.nested[k]
		return e, ok
	}
	e, ok := c.ns.types[k]
	return e, ok
}

func (c container) insert(k typeKey, e *typeEntry) {
	if c.outer != nil {
		c.outer.nested[k] = e
		c.outer.t.Types = append(c.outer.t.Types, e.t)
		return
	}
	c.ns.types[k] = e
	c.ns.ns.Types = append(c.ns.ns.Types, e.t)
}

func (c container) defaultAccess() symbols.Accessibility {
	if c.outer == nil {
		return symbols.Internal
	}
	if c.outer.t.Kind == symbols.TypeInterface {
		return symbols.Public
	}
	return symbols.Private
}

func (b *builder) file(root *sitter.Node, src []byte) {
	scope := b.global
	for i := 0; i < int(root.ChildCount()); i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		if n.Type() == "file_scoped_namespace_declaration" {
			scope = b.global.descend(nameOf(n, src))
			// Older grammars nest the following declarations inside the node.
			b.declarations(n, src, container{ns: scope})
			continue
		}
		b.declaration(n, src, container{ns: scope})
	}
}

func (b *builder) declarations(list *sitter.Node, src []byte, c container) {
	for i := 0; i < int(list.ChildCount()); i++ {
		if n := list.Child(i); n != nil {
			b.declaration(n, src, c)
		}
	}
}

func (b *builder) declaration(n *sitter.Node, src []byte, c container) {
	switch n.Type() {
	case "namespace_declaration":
		if c.outer != nil {
			return
		}
		inner := c.ns.descend(nameOf(n, src))
		if body := bodyOf(n); body != nil {
			b.declarations(body, src, container{ns: inner})
		}
	case "class_declaration", "struct_declaration", "interface_declaration", "enum_declaration",
		"delegate_declaration", "record_declaration", "record_struct_declaration":
		b.typeDeclaration(n, src, c)
	case "field_declaration", "event_field_declaration", "event_declaration", "property_declaration",
		"indexer_declaration", "method_declaration", "constructor_declaration", "destructor_declaration",
		"operator_declaration", "conversion_operator_declaration":
		if c.outer != nil {
			b.member(n, src, c.outer)
		}
	default:
		if strings.HasPrefix(n.Type(), "preproc_") || n.Type() == "declaration_list" {
			b.declarations(n, src, c)
		}
	}
}

func (b *builder) typeDeclaration(n *sitter.Node, src []byte, c container) {
	name := nameOf(n, src)
	if name == "" {
		return
	}
	kind := kindOf(n)
	key := typeKey{name: name, arity: typeParameterCount(n)}
	mods := modifiersOf(n, src)
	access, explicit := mods.accessibility(c.defaultAccess())

	e, ok := c.lookup(key)
	if !ok {
		e = &typeEntry{
			t: &symbols.NamedType{
				Name:           name,
				TypeParameters: key.arity,
				Kind:           kind,
				Accessibility:  access,
			},
			explicit: explicit,
			nested:   map[typeKey]*typeEntry{},
		}
		c.insert(key, e)
		b.all = append(b.all, e)
	} else if explicit && !e.explicit {
		e.t.Accessibility = access
		e.explicit = true
	}

	t := e.t
	switch kind {
	case symbols.TypeClass:
		t.IsStatic = t.IsStatic || mods.has("static")
		t.IsAbstract = t.IsAbstract || mods.has("abstract")
		t.IsSealed = t.IsSealed || mods.has("sealed")
	case symbols.TypeStruct:
		t.IsReadOnly = t.IsReadOnly || mods.has("readonly")
		t.IsRefLike = t.IsRefLike || mods.has("ref")
	case symbols.TypeEnum:
		if underlying := enumUnderlying(n, src); underlying != "" {
			t.EnumUnderlyingType = underlying
		}
	}

	if params := parameterList(n); params != nil && kind != symbols.TypeDelegate {
		e.hasCtor = true
		t.Members = append(t.Members, symbols.Member{
			Name: ".ctor", Kind: symbols.MemberMethod, Accessibility: symbols.Public,
			Parameters: countParameters(params),
		})
		if strings.HasPrefix(n.Type(), "record") {
			t.Members = append(t.Members, positionalProperties(params, src)...)
		}
	}

	body := bodyOf(n)
	if body == nil {
		return
	}
	if kind == symbols.TypeEnum {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			if m == nil || m.Type() != "enum_member_declaration" {
				continue
			}
			if mname := nameOf(m, src); mname != "" {
				t.Members = append(t.Members, symbols.Member{
					Name: mname, Kind: symbols.MemberField, Accessibility: symbols.Public, IsStatic: true,
				})
			}
		}
		return
	}
	b.declarations(body, src, container{ns: c.ns, outer: e})
}

func (b *builder) member(n *sitter.Node, src []byte, owner *typeEntry) {
	if hasChild(n, "explicit_interface_specifier") {
		return
	}
	mods := modifiersOf(n, src)
	def := symbols.Private
	if owner.t.Kind == symbols.TypeInterface {
		def = symbols.Public
	}
	access, _ := mods.accessibility(def)
	static := mods.has("static") || mods.has("const")

	add := func(name string, kind symbols.MemberKind, params int) {
		owner.t.Members = append(owner.t.Members, symbols.Member{
			Name: name, Kind: kind, Accessibility: access, IsStatic: static, Parameters: params,
		})
	}

	switch n.Type() {
	case "field_declaration", "event_field_declaration":
		kind := symbols.MemberField
		if n.Type() == "event_field_declaration" {
			kind = symbols.MemberEvent
		}
		for _, name := range declaratorNames(n, src) {
			add(name, kind, 0)
		}
	case "event_declaration":
		add(nameOf(n, src), symbols.MemberEvent, 0)
	case "property_declaration":
		add(nameOf(n, src), symbols.MemberProperty, 0)
	case "indexer_declaration":
		add("Item", symbols.MemberProperty, countParameters(parameterList(n)))
	case "method_declaration":
		add(nameOf(n, src), symbols.MemberMethod, countParameters(parameterList(n)))
	case "constructor_declaration":
		if static {
			return
		}
		owner.hasCtor = true
		add(".ctor", symbols.MemberMethod, countParameters(parameterList(n)))
	case "destructor_declaration":
		access, static = symbols.Protected, false
		add("Finalize", symbols.MemberMethod, 0)
	case "operator_declaration":
		params := countParameters(parameterList(n))
		if name := operatorName(operatorToken(n, src), params); name != "" {
			add(name, symbols.MemberMethod, params)
		}
	case "conversion_operator_declaration":
		name := "op_Implicit"
		if hasChild(n, "explicit") {
			name = "op_Explicit"
		}
		add(name, symbols.MemberMethod, 1)
	}
}

// finish synthesizes default constructors and returns the global namespace.
func (b *builder) finish() *symbols.Namespace {
	for _, e := range b.all {
		t := e.t
		if t.Kind != symbols.TypeClass || t.IsStatic || e.hasCtor {
			continue
		}
		access := symbols.Public
		if t.IsAbstract {
			access = symbols.Protected
		}
		t.Members = append(t.Members, symbols.Member{Name: ".ctor", Kind: symbols.MemberMethod, Accessibility: access})
	}
	return b.global.ns
}

// positionalProperties lists the public properties a positional record
// declares for its parameters.
func positionalProperties(params *sitter.Node, src []byte) []symbols.Member {
	var props []symbols.Member
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil || p.Type() != "parameter" {
			continue
		}
		if name := nameOf(p, src); name != "" {
			props = append(props, symbols.Member{Name: name, Kind: symbols.MemberProperty, Accessibility: symbols.Public})
		}
	}
	return props
}

func kindOf(n *sitter.Node) symbols.TypeKind {
	switch n.Type() {
	case "struct_declaration", "record_struct_declaration":
		return symbols.TypeStruct
	case "interface_declaration":
		return symbols.TypeInterface
	case "enum_declaration":
		return symbols.TypeEnum
	case "delegate_declaration":
		return symbols.TypeDelegate
	case "record_declaration":
		if hasChild(n, "struct") {
			return symbols.TypeStruct
		}
	}
	return symbols.TypeClass
}

func nameOf(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return stripSpace(name.Content(src))
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "identifier", "qualified_name":
			return stripSpace(c.Content(src))
		}
	}
	return ""
}

func bodyOf(n *sitter.Node) *sitter.Node {
	if body := n.ChildByFieldName("body"); body != nil {
		return body
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "declaration_list", "enum_member_declaration_list":
			return c
		}
	}
	return nil
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == typ {
			return true
		}
	}
	return false
}

func typeParameterCount(n *sitter.Node) int {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() != "type_parameter_list" {
			continue
		}
		count := 0
		for j := 0; j < int(c.NamedChildCount()); j++ {
			if p := c.NamedChild(j); p != nil && p.Type() == "type_parameter" {
				count++
			}
		}
		return count
	}
	return 0
}

func parameterList(n *sitter.Node) *sitter.Node {
	if p := n.ChildByFieldName("parameters"); p != nil {
		return p
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "parameter_list", "bracketed_parameter_list":
			return c
		}
	}
	return nil
}

func countParameters(list *sitter.Node) int {
	if list == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "parameter", "parameter_array":
			count++
		}
	}
	return count
}

func declaratorNames(n *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl == nil || decl.Type() != "variable_declaration" {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			v := decl.NamedChild(j)
			if v == nil || v.Type() != "variable_declarator" {
				continue
			}
			if name := nameOf(v, src); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func enumUnderlying(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() != "base_list" || c.NamedChildCount() == 0 {
			continue
		}
		return clrTypeName(stripSpace(c.NamedChild(0).Content(src)))
	}
	return ""
}

func operatorToken(n *sitter.Node, src []byte) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Content(src)
	}
	seen := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if seen {
			return c.Content(src)
		}
		seen = c.Type() == "operator"
	}
	return ""
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
