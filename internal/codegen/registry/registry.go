// Package registry implements spec §4.1 TypeRegistry: it maps source
// type names to semantic types and stores struct field maps, enum
// variant tag maps, registered behavior impls, and builtin function
// signatures.
package registry

import (
	"sort"

	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// FieldInfo is one entry of a struct's field table: name, declaration
// index, and the field's semantic type.
type FieldInfo struct {
	Name  string
	Index int
	Type  sema.Type
}

// FuncSig is a builtin function signature (possibly overloaded).
type FuncSig struct {
	Name   string
	Params []sema.Type
	Return sema.Type
}

// Registry is the TypeRegistry. It is populated once at startup with
// builtins (see builtins.go) and then incrementally with user
// declarations as a Module is processed.
type Registry struct {
	structs   map[string]*sema.StructDef
	enums     map[string]*sema.EnumDef
	behaviors map[string]*sema.BehaviorDef

	// enum name -> variant name -> tag (declaration order, zero-based).
	enumTags map[string]map[string]int

	// type name -> set of behavior names implemented, for method
	// dispatch and where-clause satisfaction.
	impls map[string]map[string]bool

	// builtin function name -> overload list.
	builtinFuncs map[string][]FuncSig
}

// New creates an empty Registry. Callers normally use NewWithBuiltins.
func New() *Registry {
	return &Registry{
		structs:      make(map[string]*sema.StructDef),
		enums:        make(map[string]*sema.EnumDef),
		behaviors:    make(map[string]*sema.BehaviorDef),
		enumTags:     make(map[string]map[string]int),
		impls:        make(map[string]map[string]bool),
		builtinFuncs: make(map[string][]FuncSig),
	}
}

// NewWithBuiltins creates a Registry with all deterministic builtin
// registrations from spec §4.1 already applied.
func NewWithBuiltins() *Registry {
	r := New()
	registerBuiltins(r)
	return r
}

// RegisterStruct adds (or idempotently re-adds) a struct declaration.
func (r *Registry) RegisterStruct(s *sema.StructDef) {
	r.structs[s.Name] = s
}

// RegisterEnum adds an enum declaration and assigns tags in declaration
// order (spec §4.1 tag stability: "zero-based in source declaration
// order and MUST be stable across re-exports").
func (r *Registry) RegisterEnum(e *sema.EnumDef) {
	r.enums[e.Name] = e
	tags := make(map[string]int, len(e.Variants))
	for i, v := range e.Variants {
		tags[v.Name] = i
	}
	r.enumTags[e.Name] = tags
}

// RegisterBehavior adds a behavior declaration.
func (r *Registry) RegisterBehavior(b *sema.BehaviorDef) {
	r.behaviors[b.Name] = b
}

// RegisterImpl records that typeName implements behaviorName. Idempotent:
// repeated registration of the same pair is a no-op, per spec §4.1.
func (r *Registry) RegisterImpl(typeName, behaviorName string) {
	set, ok := r.impls[typeName]
	if !ok {
		set = make(map[string]bool)
		r.impls[typeName] = set
	}
	set[behaviorName] = true
}

// RegisterBuiltinFunc appends an overload for a builtin function.
func (r *Registry) RegisterBuiltinFunc(sig FuncSig) {
	r.builtinFuncs[sig.Name] = append(r.builtinFuncs[sig.Name], sig)
}

// LookupType resolves a type name to its declaration kind. Builtins are
// registered the same way as user types so this is a single lookup path.
func (r *Registry) LookupType(name string) (any, bool) {
	if s, ok := r.structs[name]; ok {
		return s, true
	}
	if e, ok := r.enums[name]; ok {
		return e, true
	}
	if b, ok := r.behaviors[name]; ok {
		return b, true
	}
	return nil, false
}

// Struct returns the registered struct declaration, if any.
func (r *Registry) Struct(name string) (*sema.StructDef, bool) {
	s, ok := r.structs[name]
	return s, ok
}

// Enum returns the registered enum declaration, if any.
func (r *Registry) Enum(name string) (*sema.EnumDef, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Behavior returns the registered behavior declaration, if any.
func (r *Registry) Behavior(name string) (*sema.BehaviorDef, bool) {
	b, ok := r.behaviors[name]
	return b, ok
}

// StructFields returns the ordered field table for a non-generic struct.
func (r *Registry) StructFields(name string) ([]FieldInfo, *diag.CodegenError) {
	s, ok := r.structs[name]
	if !ok {
		return nil, diag.New(diag.UnknownSymbol, "unknown struct %q", name)
	}
	out := make([]FieldInfo, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = FieldInfo{Name: f.Name, Index: i, Type: f.Type}
	}
	return out, nil
}

// EnumTag resolves a variant name to its stable tag integer.
func (r *Registry) EnumTag(enumName, variantName string) (int, *diag.CodegenError) {
	tags, ok := r.enumTags[enumName]
	if !ok {
		return 0, diag.New(diag.UnknownSymbol, "unknown enum %q", enumName)
	}
	tag, ok := tags[variantName]
	if !ok {
		return 0, diag.New(diag.UnknownSymbol, "unknown variant %s::%s", enumName, variantName)
	}
	return tag, nil
}

// BehaviorsImplementedBy returns the sorted set of behavior names a type
// implements, for method dispatch and where-clause satisfaction.
func (r *Registry) BehaviorsImplementedBy(typeName string) []string {
	set := r.impls[typeName]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Implements reports whether typeName implements behaviorName.
func (r *Registry) Implements(typeName, behaviorName string) bool {
	return r.impls[typeName] != nil && r.impls[typeName][behaviorName]
}

// BuiltinFunctionOverloads returns the registered overloads for a builtin
// function name (see §4.1 `builtin_function_overloads`).
func (r *Registry) BuiltinFunctionOverloads(name string) ([]FuncSig, *diag.CodegenError) {
	sigs, ok := r.builtinFuncs[name]
	if !ok {
		return nil, diag.New(diag.UnknownSymbol, "unknown builtin %q", name)
	}
	return sigs, nil
}

// ResolveOverload picks the single builtin overload whose parameter
// kinds match argTypes exactly, used by e.g. assert_eq/assert_ne which
// are overloaded per concrete argument type.
func (r *Registry) ResolveOverload(name string, argTypes []sema.Type) (FuncSig, *diag.CodegenError) {
	sigs, err := r.BuiltinFunctionOverloads(name)
	if err != nil {
		return FuncSig{}, err
	}
	for _, sig := range sigs {
		if len(sig.Params) != len(argTypes) {
			continue
		}
		match := true
		for i, p := range sig.Params {
			if p.String() != argTypes[i].String() {
				match = false
				break
			}
		}
		if match {
			return sig, nil
		}
	}
	return FuncSig{}, diag.New(diag.UnknownSymbol, "no overload of %q matches argument types %v", name, argTypesString(argTypes))
}

func argTypesString(ts []sema.Type) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s
}

// EnsureBehaviorKnown is a small guard used by where-clause checking
// before consulting BehaviorsImplementedBy, matching spec §4.1's
// "unknown builtin lookup fails with UnknownSymbol" failure semantics
// generalized to behaviors.
func (r *Registry) EnsureBehaviorKnown(name string) *diag.CodegenError {
	if _, ok := r.behaviors[name]; !ok {
		return diag.New(diag.UnknownSymbol, "unknown behavior %q", name)
	}
	return nil
}
