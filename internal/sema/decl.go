package sema

// Visibility controls linkage decisions downstream in DeclEmitter.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// TypeParam is a generic parameter with its behavior bounds.
type TypeParam struct {
	Name   string
	Bounds []string // behavior names the argument must implement
}

// Field is an ordered struct field.
type Field struct {
	Name string
	Type Type
}

// StructDef is a struct declaration, generic or not.
type StructDef struct {
	Name       string
	TypeParams []TypeParam
	Fields     []Field // declaration order is significant
}

// VariantFields distinguishes tuple-style payloads from struct-style ones;
// an enum variant carries at most one of the two.
type VariantFields struct {
	Tuple  []Type
	Struct []Field
}

// IsEmpty reports whether the variant carries no data (a unit variant).
func (v VariantFields) IsEmpty() bool {
	return len(v.Tuple) == 0 && len(v.Struct) == 0
}

// Variant is one case of an enum. Its tag is its index in EnumDef.Variants.
type Variant struct {
	Name   string
	Fields VariantFields
}

// EnumDef is a tagged-union declaration, generic or not.
type EnumDef struct {
	Name       string
	TypeParams []TypeParam
	Variants   []Variant // declaration order fixes tag assignment
}

// MethodSig is a behavior method signature (no body).
type MethodSig struct {
	Name       string
	TypeParams []TypeParam
	Params     []Field
	Return     Type
}

// BehaviorDef is a trait-like contract.
type BehaviorDef struct {
	Name            string
	TypeParams      []TypeParam
	AssociatedTypes []string // associated-type names declared by this behavior
	Methods         []MethodSig
	SuperBehaviors  []string
}

// ExternInfo carries @extern("abi", name="symbol") decorator data.
type ExternInfo struct {
	ABI    string // "c", "c++", "stdcall", "fastcall", "thiscall"
	Symbol string
}

// Decorators bundles the recognized source-level decorators on a FuncDecl.
type Decorators struct {
	ShouldPanic bool
	Extern      *ExternInfo
	LinkLibs    []string // accumulated @link("lib") names
	Test        bool
}

// WhereConstraint records a where-clause bound for ExprLowerer to consult
// during bounded-generic method dispatch.
type WhereConstraint struct {
	TypeParam           string
	RequiredBehaviors   []string
	ParameterizedBounds map[string][]string // e.g. T: Container<Item: Eq>
}

// Param is a function/method parameter: a binding pattern (by name only,
// destructuring patterns are an upstream concern) plus its type.
type Param struct {
	Name string
	Type Type
}

// FuncDecl is a function, method, or extern declaration.
type FuncDecl struct {
	Visibility    Visibility
	Name          string
	GenericParams []TypeParam
	Where         []WhereConstraint
	Params        []Param
	Return        Type // nil means Unit
	IsAsync       bool // Return is wrapped in Poll[T] at the ABI boundary
	Body          Expr // nil for extern / body-less declarations
	Decorators    Decorators
	ReceiverName  string // "this" or "self" for impl methods, "" for free functions
	ReceiverIsMut bool
}

// IsExtern reports whether the declaration has no body and must be
// lowered as a `declare`.
func (f *FuncDecl) IsExtern() bool {
	return f.Body == nil
}

// IsMethod reports whether the first parameter binds a receiver.
func (f *FuncDecl) IsMethod() bool {
	return f.ReceiverName == "this" || f.ReceiverName == "self"
}

// ImplBlock attaches methods to a (possibly generic) target type, optionally
// implementing a named behavior.
type ImplBlock struct {
	TargetType      Type
	BehaviorName    string // "" for an inherent impl
	GenericParams   []TypeParam
	AssociatedTypes map[string]Type // behavior associated-type assignments
	Methods         []*FuncDecl
}

// Module is the full typed input handed to the codegen core by the
// front-end for one translation unit.
type Module struct {
	Name       string
	Structs    []*StructDef
	Enums      []*EnumDef
	Behaviors  []*BehaviorDef
	Impls      []*ImplBlock
	Funcs      []*FuncDecl
}
