package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
)

var modifierKeywords = map[string]bool{
	"abstract": true, "async": true, "const": true, "extern": true, "file": true,
	"fixed": true, "internal": true, "new": true, "override": true, "partial": true,
	"private": true, "protected": true, "public": true, "readonly": true, "ref": true,
	"required": true, "sealed": true, "static": true, "unsafe": true, "virtual": true,
	"volatile": true,
}

type modifiers map[string]bool

// modifiersOf collects modifier keywords written directly on a declaration,
// whether the grammar wraps them in modifier nodes or leaves bare tokens.
func modifiersOf(n *sitter.Node, src []byte) modifiers {
	mods := modifiers{}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch {
		case c.Type() == "modifier":
			mods[strings.TrimSpace(c.Content(src))] = true
		case !c.IsNamed() && modifierKeywords[c.Type()]:
			mods[c.Type()] = true
		}
	}
	return mods
}

func (m modifiers) has(keyword string) bool { return m[keyword] }

// accessibility resolves the declared accessibility, reporting false when no
// access modifier was written and def applies.
func (m modifiers) accessibility(def symbols.Accessibility) (symbols.Accessibility, bool) {
	switch {
	case m["protected"] && m["internal"]:
		return symbols.ProtectedInternal, true
	case m["private"] && m["protected"]:
		return symbols.PrivateProtected, true
	case m["public"]:
		return symbols.Public, true
	case m["protected"]:
		return symbols.Protected, true
	case m["internal"], m["file"]:
		return symbols.Internal, true
	case m["private"]:
		return symbols.Private, true
	}
	return def, false
}

var unaryOperators = map[string]string{
	"+":     "op_UnaryPlus",
	"-":     "op_UnaryNegation",
	"!":     "op_LogicalNot",
	"~":     "op_OnesComplement",
	"++":    "op_Increment",
	"--":    "op_Decrement",
	"true":  "op_True",
	"false": "op_False",
}

var binaryOperators = map[string]string{
	"+":   "op_Addition",
	"-":   "op_Subtraction",
	"*":   "op_Multiply",
	"/":   "op_Division",
	"%":   "op_Modulus",
	"&":   "op_BitwiseAnd",
	"|":   "op_BitwiseOr",
	"^":   "op_ExclusiveOr",
	"<<":  "op_LeftShift",
	">>":  "op_RightShift",
	">>>": "op_UnsignedRightShift",
	"==":  "op_Equality",
	"!=":  "op_Inequality",
	"<":   "op_LessThan",
	">":   "op_GreaterThan",
	"<=":  "op_LessThanOrEqual",
	">=":  "op_GreaterThanOrEqual",
}

// operatorName returns the metadata name of a user-defined operator, or ""
// for tokens that are not overloadable with that many parameters.
func operatorName(token string, params int) string {
	token = strings.TrimSpace(token)
	if params == 1 {
		return unaryOperators[token]
	}
	return binaryOperators[token]
}

var builtinTypes = map[string]string{
	"sbyte":  "SByte",
	"byte":   "Byte",
	"short":  "Int16",
	"ushort": "UInt16",
	"int":    "Int32",
	"uint":   "UInt32",
	"long":   "Int64",
	"ulong":  "UInt64",
	"char":   "Char",
	"nint":   "IntPtr",
	"nuint":  "UIntPtr",
}

// clrTypeName maps a C# keyword or System-qualified name to the simple CLR
// name used in metadata.
func clrTypeName(name string) string {
	if clr, ok := builtinTypes[name]; ok {
		return clr
	}
	name = strings.TrimPrefix(name, "global::")
	return strings.TrimPrefix(name, "System.")
}
