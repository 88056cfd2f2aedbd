// Package sema defines the typed, read-only input contract the codegen
// core consumes: semantic types and declarations produced by an external
// front-end (lexer, parser, type checker). Nothing in this package is
// mutated by codegen.
package sema

import "strings"

// PrimitiveKind enumerates the built-in scalar kinds.
type PrimitiveKind string

const (
	I8     PrimitiveKind = "I8"
	I16    PrimitiveKind = "I16"
	I32    PrimitiveKind = "I32"
	I64    PrimitiveKind = "I64"
	I128   PrimitiveKind = "I128"
	U8     PrimitiveKind = "U8"
	U16    PrimitiveKind = "U16"
	U32    PrimitiveKind = "U32"
	U64    PrimitiveKind = "U64"
	U128   PrimitiveKind = "U128"
	F32    PrimitiveKind = "F32"
	F64    PrimitiveKind = "F64"
	Bool   PrimitiveKind = "Bool"
	Char   PrimitiveKind = "Char"
	Str    PrimitiveKind = "Str"
	Unit   PrimitiveKind = "Unit"
	Never  PrimitiveKind = "Never"
)

// Type is the SemanticType variant from the spec's data model. Each
// concrete type below (Primitive, Named, Generic, Ref, Ptr, Tuple,
// Function) is one case.
type Type interface {
	isType()
	String() string
}

// Primitive is a built-in scalar type.
type Primitive struct {
	Kind PrimitiveKind
}

func (*Primitive) isType() {}
func (p *Primitive) String() string { return string(p.Kind) }

// Named is a reference to a user or builtin declared type, optionally
// instantiated with type arguments.
type Named struct {
	Base       string
	ModulePath string
	TypeArgs   []Type
}

func (*Named) isType() {}

func (n *Named) String() string {
	if len(n.TypeArgs) == 0 {
		return n.Base
	}
	parts := make([]string, len(n.TypeArgs))
	for i, a := range n.TypeArgs {
		parts[i] = a.String()
	}
	return n.Base + "[" + strings.Join(parts, ", ") + "]"
}

// Generic is an unresolved template placeholder. It must never appear
// inside an emitted function body (see InternalInvariant in diag).
type Generic struct {
	Param string
}

func (*Generic) isType() {}
func (g *Generic) String() string { return g.Param }

// Ref is a borrowed reference, `&T` / `&mut T`.
type Ref struct {
	IsMut bool
	Inner Type
}

func (*Ref) isType() {}

func (r *Ref) String() string {
	if r.IsMut {
		return "&mut " + r.Inner.String()
	}
	return "&" + r.Inner.String()
}

// Ptr is a raw pointer, `*T` / `*mut T`.
type Ptr struct {
	IsMut bool
	Inner Type
}

func (*Ptr) isType() {}

func (p *Ptr) String() string {
	if p.IsMut {
		return "*mut " + p.Inner.String()
	}
	return "*" + p.Inner.String()
}

// Tuple is a fixed-arity product type.
type Tuple struct {
	Elements []Type
}

func (*Tuple) isType() {}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Function is a function type; IsAsync marks the declared (pre-Poll-wrap)
// source signature.
type Function struct {
	Params  []Type
	Return  Type
	IsAsync bool
}

func (*Function) isType() {}

func (f *Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	prefix := "func"
	if f.IsAsync {
		prefix = "async func"
	}
	ret := "Unit"
	if f.Return != nil {
		ret = f.Return.String()
	}
	return prefix + "(" + strings.Join(parts, ", ") + ") -> " + ret
}

// IsPrimitiveKind reports whether name names a builtin primitive kind.
func IsPrimitiveKind(name string) (PrimitiveKind, bool) {
	switch PrimitiveKind(name) {
	case I8, I16, I32, I64, I128, U8, U16, U32, U64, U128, F32, F64, Bool, Char, Str, Unit, Never:
		return PrimitiveKind(name), true
	}
	return "", false
}

// IsSignedInt reports whether k is a signed integer kind.
func IsSignedInt(k PrimitiveKind) bool {
	switch k {
	case I8, I16, I32, I64, I128:
		return true
	}
	return false
}

// IsUnsignedInt reports whether k is an unsigned integer kind.
func IsUnsignedInt(k PrimitiveKind) bool {
	switch k {
	case U8, U16, U32, U64, U128:
		return true
	}
	return false
}

// IsFloat reports whether k is a floating-point kind.
func IsFloat(k PrimitiveKind) bool {
	return k == F32 || k == F64
}

// IsInteger reports whether k is any integer kind.
func IsInteger(k PrimitiveKind) bool {
	return IsSignedInt(k) || IsUnsignedInt(k)
}
