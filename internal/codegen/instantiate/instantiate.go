// Package instantiate implements spec §4.6 GenericInstantiator: on-demand
// monomorphization of generic structs, enums, and functions/methods,
// cached by mangled name in a GenericInstantiationTable (spec §3).
package instantiate

import (
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/codegen/layout"
	"github.com/tmlang/tmlc/internal/codegen/mangle"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// entryState tracks the pre-insert/generated lifecycle spec §4.6 step 3
// requires: "Register the entry as to-be-generated = true (pre-insert to
// handle recursive references)". The transition not-generated->generated
// is monotonic (spec §3 GenericInstantiationTable invariant).
type entryState int

const (
	statePending entryState = iota
	stateGenerated
)

type tableEntry struct {
	base      string
	typeArgs  []sema.Type
	state     entryState
}

// BodyEmitterFunc emits a function or method body once its signature has
// been materialized. It is supplied by the top-level orchestrator
// (package codegen) to avoid an import cycle between instantiate (which
// drives body emission on demand) and lower (which, while lowering a
// body, drives further instantiation on demand).
type BodyEmitterFunc func(recv ReceiverContext) *diag.CodegenError

// ReceiverContext is everything BodyEmitterFunc needs to lower one
// function or method body.
type ReceiverContext struct {
	Decl          *sema.FuncDecl
	MangledName   string
	Subst         map[string]sema.Type // type-param -> type-arg, includes method-level params
	ReceiverType  sema.Type             // left nil by every Require*Instantiation entry point
	Where         []sema.WhereConstraint
}

// Instantiator is the GenericInstantiator.
type Instantiator struct {
	reg    *registry.Registry
	layout *layout.Engine
	mod    *emit.Module
	body   BodyEmitterFunc

	table map[string]*tableEntry

	// base -> generic declaration lookup, populated from the module so
	// instantiation works across modules per spec §4.6 step 4 ("Look up
	// the generic declaration (local or via module registry)").
	structDecls map[string]*sema.StructDef
	enumDecls   map[string]*sema.EnumDef
	funcDecls   map[string]*sema.FuncDecl

	// unmangled receiver type name -> method name -> FuncDecl, for impl
	// methods. The mangled receiver and method-type suffix only enter the
	// mangled name RequireMethodInstantiation builds for its table key.
	methodDecls map[string]map[string]*sema.FuncDecl

	// recursion-depth guard, spec §5: "implementers should guard against
	// deeply nested generics by capping instantiation depth".
	depth    int
	maxDepth int
}

const defaultMaxDepth = 256

// New creates a GenericInstantiator. bodyEmitter is called exactly once
// per newly-generated function/method entry, after its signature and
// any required types have been materialized.
func New(reg *registry.Registry, eng *layout.Engine, mod *emit.Module, bodyEmitter BodyEmitterFunc) *Instantiator {
	return &Instantiator{
		reg:         reg,
		layout:      eng,
		mod:         mod,
		body:        bodyEmitter,
		table:       make(map[string]*tableEntry),
		structDecls: make(map[string]*sema.StructDef),
		enumDecls:   make(map[string]*sema.EnumDef),
		funcDecls:   make(map[string]*sema.FuncDecl),
		methodDecls: make(map[string]map[string]*sema.FuncDecl),
		maxDepth:    defaultMaxDepth,
	}
}

// RegisterStructDecl makes a generic struct declaration available for
// on-demand instantiation.
func (in *Instantiator) RegisterStructDecl(s *sema.StructDef) { in.structDecls[s.Name] = s }

// RegisterEnumDecl makes a generic enum declaration available.
func (in *Instantiator) RegisterEnumDecl(e *sema.EnumDef) { in.enumDecls[e.Name] = e }

// RegisterFuncDecl makes a generic function declaration available.
func (in *Instantiator) RegisterFuncDecl(f *sema.FuncDecl) { in.funcDecls[f.Name] = f }

// RegisterMethodDecl makes a generic impl method available, keyed by the
// (unmangled) receiver type name.
func (in *Instantiator) RegisterMethodDecl(receiverTypeName string, f *sema.FuncDecl) {
	m, ok := in.methodDecls[receiverTypeName]
	if !ok {
		m = make(map[string]*sema.FuncDecl)
		in.methodDecls[receiverTypeName] = m
	}
	m[f.Name] = f
}

// RequireStructInstantiation implements spec §4.6's
// require_struct_instantiation entry point.
func (in *Instantiator) RequireStructInstantiation(base string, typeArgs []sema.Type) (string, *diag.CodegenError) {
	mangled := mangle.Instantiation(base, typeArgs)

	if e, ok := in.table[mangled]; ok && e.state == stateGenerated {
		return mangled, nil
	}

	if err := in.enterRecursion(); err != nil {
		return "", err
	}
	defer in.exitRecursion()

	// Step 3: pre-insert as to-be-generated before recursing into field
	// types, so mutually-referential generics (A uses B uses A-through-
	// pointer) terminate instead of looping.
	if _, ok := in.table[mangled]; !ok {
		in.table[mangled] = &tableEntry{base: base, typeArgs: typeArgs, state: statePending}
	}

	decl, ok := in.structDecls[base]
	if !ok {
		return "", diag.New(diag.UnknownSymbol, "unknown generic struct %q", base)
	}

	subst, serr := buildSubst(decl.TypeParams, typeArgs)
	if serr != nil {
		return "", serr
	}

	// The named type is registered before its field types are resolved, so
	// a field that refers back to this struct through a pointer finds it;
	// the body is filled in once every field type is known.
	st := in.mod.EnsureStructType(mangled, nil)
	fields := make([]types.Type, len(decl.Fields))
	for i, f := range decl.Fields {
		resolved := substitute(f.Type, subst)
		llvmT, err := in.llvmTypeOf(resolved)
		if err != nil {
			return "", err
		}
		fields[i] = llvmT
	}

	st.Fields = fields
	in.table[mangled].state = stateGenerated
	return mangled, nil
}

// RequireEnumInstantiation implements the enum analogue of spec §4.6.
func (in *Instantiator) RequireEnumInstantiation(base string, typeArgs []sema.Type) (string, *diag.CodegenError) {
	mangled := mangle.Instantiation(base, typeArgs)

	if e, ok := in.table[mangled]; ok && e.state == stateGenerated {
		return mangled, nil
	}

	if err := in.enterRecursion(); err != nil {
		return "", err
	}
	defer in.exitRecursion()

	if _, ok := in.table[mangled]; !ok {
		in.table[mangled] = &tableEntry{base: base, typeArgs: typeArgs, state: statePending}
	}

	decl, ok := in.enumDecls[base]
	if !ok {
		return "", diag.New(diag.UnknownSymbol, "unknown generic enum %q", base)
	}

	_, payloadElems, err := in.layout.EnumLayout(decl, typeArgs, nil)
	if err != nil {
		return "", err
	}

	in.mod.EnsureEnumType(mangled, payloadElems)
	in.table[mangled].state = stateGenerated
	return mangled, nil
}

// RequireFuncInstantiation materializes a generic free function's
// specialized body, returning its mangled name. The body is emitted at
// most once (idempotent by mangled name, spec §4.5).
func (in *Instantiator) RequireFuncInstantiation(base string, typeArgs []sema.Type) (string, *diag.CodegenError) {
	mangled := mangle.Instantiation(base, typeArgs)
	if e, ok := in.table[mangled]; ok && e.state == stateGenerated {
		return mangled, nil
	}
	if err := in.enterRecursion(); err != nil {
		return "", err
	}
	defer in.exitRecursion()

	if _, ok := in.table[mangled]; !ok {
		in.table[mangled] = &tableEntry{base: base, typeArgs: typeArgs, state: statePending}
	}

	decl, ok := in.funcDecls[base]
	if !ok {
		return "", diag.New(diag.UnknownSymbol, "unknown generic function %q", base)
	}

	subst, serr := buildSubst(decl.GenericParams, typeArgs)
	if serr != nil {
		return "", serr
	}

	if in.body != nil {
		if err := in.body(ReceiverContext{Decl: decl, MangledName: mangled, Subst: subst, Where: decl.Where}); err != nil {
			return "", err
		}
	}
	in.table[mangled].state = stateGenerated
	return mangled, nil
}

// RequireMethodInstantiation materializes a generic impl method on a
// generic (or non-generic) receiver, keyed by mangled-receiver +
// method-name + method-type-suffix, allowing a method with its own
// generic parameters on a generic receiver (spec §4.6).
func (in *Instantiator) RequireMethodInstantiation(receiverTypeName, mangledReceiver, methodName string, receiverSubst map[string]sema.Type, methodTypeArgs []sema.Type) (string, *diag.CodegenError) {
	mangled := mangle.Method(mangledReceiver, methodName, methodTypeArgs)
	if e, ok := in.table[mangled]; ok && e.state == stateGenerated {
		return mangled, nil
	}
	if err := in.enterRecursion(); err != nil {
		return "", err
	}
	defer in.exitRecursion()

	if _, ok := in.table[mangled]; !ok {
		in.table[mangled] = &tableEntry{base: mangled, state: statePending}
	}

	methods, ok := in.methodDecls[receiverTypeName]
	if !ok {
		return "", diag.New(diag.UnknownSymbol, "no methods registered for %q", receiverTypeName)
	}
	decl, ok := methods[methodName]
	if !ok {
		return "", diag.New(diag.UnknownSymbol, "unknown method %s::%s", receiverTypeName, methodName)
	}

	methodSubst, serr := buildSubst(decl.GenericParams, methodTypeArgs)
	if serr != nil {
		return "", serr
	}
	full := mergeSubst(receiverSubst, methodSubst)

	if in.body != nil {
		if err := in.body(ReceiverContext{Decl: decl, MangledName: mangled, Subst: full, Where: decl.Where}); err != nil {
			return "", err
		}
	}
	in.table[mangled].state = stateGenerated
	return mangled, nil
}

// MethodDecl returns the raw (unsubstituted) declaration registered for
// receiverTypeName's method, so a caller that already holds the receiver
// substitution (e.g. ExprLowerer resolving a call's result type) can
// resolve its signature without re-driving instantiation.
func (in *Instantiator) MethodDecl(receiverTypeName, methodName string) (*sema.FuncDecl, bool) {
	methods, ok := in.methodDecls[receiverTypeName]
	if !ok {
		return nil, false
	}
	decl, ok := methods[methodName]
	return decl, ok
}

// Generated reports whether mangledName has already completed
// generation (used by tests and by ExprLowerer's idempotent-instantiation
// property checks).
func (in *Instantiator) Generated(mangledName string) bool {
	e, ok := in.table[mangledName]
	return ok && e.state == stateGenerated
}

func (in *Instantiator) llvmTypeOf(t sema.Type) (types.Type, *diag.CodegenError) {
	return emit.LLVMType(t, func(mangledName string) (types.Type, bool) {
		return in.mod.TypeDefined(mangledName)
	})
}

func (in *Instantiator) enterRecursion() *diag.CodegenError {
	in.depth++
	if in.depth > in.maxDepth {
		in.depth--
		return diag.New(diag.InternalInvariant, "generic instantiation depth exceeded %d; aborting to avoid unbounded recursion", in.maxDepth)
	}
	return nil
}

func (in *Instantiator) exitRecursion() { in.depth-- }

func buildSubst(params []sema.TypeParam, args []sema.Type) (map[string]sema.Type, *diag.CodegenError) {
	if len(params) != len(args) {
		return nil, diag.New(diag.InternalInvariant, "type-param/type-arg arity mismatch: %d params, %d args", len(params), len(args))
	}
	m := make(map[string]sema.Type, len(params))
	for i, p := range params {
		m[p.Name] = args[i]
	}
	return m, nil
}

func mergeSubst(a, b map[string]sema.Type) map[string]sema.Type {
	out := make(map[string]sema.Type, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// substitute resolves Generic placeholders in t using subst, recursing
// through structural types. Exported as Substitute for use by package
// lower when it needs to resolve a parameter/return type outside the
// instantiation entry points above.
func substitute(t sema.Type, subst map[string]sema.Type) sema.Type {
	switch v := t.(type) {
	case *sema.Generic:
		if r, ok := subst[v.Param]; ok {
			return r
		}
		return t
	case *sema.Ptr:
		return &sema.Ptr{IsMut: v.IsMut, Inner: substitute(v.Inner, subst)}
	case *sema.Ref:
		return &sema.Ref{IsMut: v.IsMut, Inner: substitute(v.Inner, subst)}
	case *sema.Tuple:
		elems := make([]sema.Type, len(v.Elements))
		for i, e := range v.Elements {
			elems[i] = substitute(e, subst)
		}
		return &sema.Tuple{Elements: elems}
	case *sema.Named:
		args := make([]sema.Type, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			args[i] = substitute(a, subst)
		}
		return &sema.Named{Base: v.Base, ModulePath: v.ModulePath, TypeArgs: args}
	case *sema.Function:
		params := make([]sema.Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = substitute(p, subst)
		}
		var ret sema.Type
		if v.Return != nil {
			ret = substitute(v.Return, subst)
		}
		return &sema.Function{Params: params, Return: ret, IsAsync: v.IsAsync}
	default:
		return t
	}
}

// Substitute is the exported form of substitute, used by package lower.
func Substitute(t sema.Type, subst map[string]sema.Type) sema.Type {
	return substitute(t, subst)
}
