// Package codegen implements the top-level orchestrator: it wires
// TypeRegistry, NameMangler, LayoutEngine, TypeEmitter/DeclEmitter,
// GenericInstantiator, and ExprLowerer together for one translation
// unit (spec §2).
package codegen

import (
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/codegen/instantiate"
	"github.com/tmlang/tmlc/internal/codegen/layout"
	"github.com/tmlang/tmlc/internal/codegen/lower"
	"github.com/tmlang/tmlc/internal/codegen/mangle"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// Result is one translation unit's completed emission: the rendered IR
// text plus every diagnostic collected along the way (spec §7: "emission
// continues so multiple errors surface in one pass").
type Result struct {
	IR     string
	Errors diag.ErrorList
}

// Emit drives the seven codegen components over mod and renders the
// resulting LLVM IR module text.
func Emit(mod *sema.Module, opts emit.Options) Result {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)
	out := emit.NewModule(mod.Name, opts)

	o := &orchestrator{
		mod:             mod,
		reg:             reg,
		eng:             eng,
		out:             out,
		funcReturnTypes: make(map[string]sema.Type),
	}
	o.inst = instantiate.New(reg, eng, out, o.emitBody)

	o.registerDecls()
	o.declareNonGeneric()

	return Result{IR: out.Render(), Errors: out.Errors}
}

// orchestrator holds the shared state one Emit call threads through
// DeclEmitter's eager pass and every BodyEmitterFunc callback the
// GenericInstantiator drives afterward.
type orchestrator struct {
	mod *sema.Module
	reg *registry.Registry
	eng *layout.Engine
	out *emit.Module

	inst *instantiate.Instantiator

	// mangled function/method name -> declared return type, shared by
	// every Lowerer this orchestrator constructs (see lower.New).
	funcReturnTypes map[string]sema.Type
}

// registerDecls makes every declaration in mod available to the
// registry (for dispatch/layout lookups) and the instantiator (for
// on-demand and eager instantiation), before anything is emitted.
func (o *orchestrator) registerDecls() {
	// Built-in generic enums (Maybe, Outcome, Poll) are known to the
	// Registry from NewWithBuiltins, but the Instantiator keeps its own
	// decl table; without this it would reject every on-demand
	// instantiation of a builtin generic enum with "unknown generic
	// enum", including the Poll[T] wrap emitBody applies to async
	// functions.
	for _, name := range []string{"Maybe", "Outcome", "Poll"} {
		if e, ok := o.reg.Enum(name); ok {
			o.inst.RegisterEnumDecl(e)
		}
	}
	for _, s := range o.mod.Structs {
		o.reg.RegisterStruct(s)
		o.inst.RegisterStructDecl(s)
	}
	for _, e := range o.mod.Enums {
		o.reg.RegisterEnum(e)
		o.inst.RegisterEnumDecl(e)
	}
	for _, b := range o.mod.Behaviors {
		o.reg.RegisterBehavior(b)
	}
	for _, impl := range o.mod.Impls {
		base, ok := namedBase(impl.TargetType)
		if !ok {
			o.out.Errors.Add(diag.New(diag.InternalInvariant, "impl target %s is not a named type", impl.TargetType.String()))
			continue
		}
		if impl.BehaviorName != "" {
			o.reg.RegisterImpl(base, impl.BehaviorName)
		}
		for _, m := range impl.Methods {
			o.inst.RegisterMethodDecl(base, m)
		}
	}
	for _, f := range o.mod.Funcs {
		o.inst.RegisterFuncDecl(f)
	}
}

// declareNonGeneric eagerly materializes everything that needs no
// caller-supplied type arguments: non-generic struct/enum layouts,
// extern declarations, non-generic free functions, and non-generic
// inherent/behavior methods. Anything generic is left to be
// instantiated on demand, the first time a call site names concrete
// type arguments (spec §4.6).
func (o *orchestrator) declareNonGeneric() {
	for _, s := range o.mod.Structs {
		if len(s.TypeParams) == 0 {
			if _, err := o.inst.RequireStructInstantiation(s.Name, nil); err != nil {
				o.out.Errors.Add(err)
			}
		}
	}
	for _, e := range o.mod.Enums {
		if len(e.TypeParams) == 0 {
			if _, err := o.inst.RequireEnumInstantiation(e.Name, nil); err != nil {
				o.out.Errors.Add(err)
			}
		}
	}
	for _, f := range o.mod.Funcs {
		if f.IsExtern() {
			o.declareExtern(f)
			continue
		}
		if len(f.GenericParams) == 0 {
			if _, err := o.inst.RequireFuncInstantiation(f.Name, nil); err != nil {
				o.out.Errors.Add(err)
			}
		}
	}
	for _, impl := range o.mod.Impls {
		base, ok := namedBase(impl.TargetType)
		if !ok {
			continue
		}
		for _, m := range impl.Methods {
			if m.IsExtern() {
				o.out.Errors.Add(diag.New(diag.InternalInvariant, "extern methods are not supported; %s::%s must be a free function", base, m.Name))
				continue
			}
			if len(impl.GenericParams) != 0 || len(m.GenericParams) != 0 || o.receiverIsGeneric(base) {
				continue // instantiated on demand by the first call site that names it
			}
			mangledReceiver := mangle.Instantiation(base, nil)
			if _, err := o.inst.RequireMethodInstantiation(base, mangledReceiver, m.Name, nil, nil); err != nil {
				o.out.Errors.Add(err)
			}
		}
	}
}

// llvmType resolves a generic-free sema.Type to its LLVM type, adapting
// Module.TypeDefined's *types.StructType result to the func(string)
// (types.Type, bool) shape emit.LLVMType expects (mirrors
// instantiate.Instantiator.llvmTypeOf and lower.Lowerer.llvmType). A
// top-level Named struct or enum type that is not yet emitted is
// instantiated first; a Named type nested inside a pointer, reference,
// tuple or function type must already be emitted.
func (o *orchestrator) llvmType(t sema.Type) (types.Type, *diag.CodegenError) {
	if n, ok := t.(*sema.Named); ok {
		if _, defined := o.out.TypeDefined(mangle.Instantiation(n.Base, n.TypeArgs)); !defined {
			var err *diag.CodegenError
			if _, isStruct := o.reg.Struct(n.Base); isStruct {
				_, err = o.inst.RequireStructInstantiation(n.Base, n.TypeArgs)
			} else if _, isEnum := o.reg.Enum(n.Base); isEnum {
				_, err = o.inst.RequireEnumInstantiation(n.Base, n.TypeArgs)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return emit.LLVMType(t, func(mangledName string) (types.Type, bool) {
		return o.out.TypeDefined(mangledName)
	})
}

func (o *orchestrator) receiverIsGeneric(base string) bool {
	if s, ok := o.reg.Struct(base); ok {
		return len(s.TypeParams) > 0
	}
	if e, ok := o.reg.Enum(base); ok {
		return len(e.TypeParams) > 0
	}
	return false
}

// declareExtern emits `declare <callconv> <ret> @<symbol>(...)` for an
// extern free function (spec §4.5/§8 S4), honoring @extern's custom ABI
// and linked-symbol name while keeping the source call name as the
// lookup key for call sites.
func (o *orchestrator) declareExtern(f *sema.FuncDecl) {
	symbol := f.Name
	abi := "c"
	if info := f.Decorators.Extern; info != nil {
		if info.Symbol != "" {
			symbol = info.Symbol
		}
		if info.ABI != "" {
			abi = info.ABI
		}
	}
	params := make([]types.Type, len(f.Params))
	for i, p := range f.Params {
		pt, err := o.llvmType(p.Type)
		if err != nil {
			o.out.Errors.Add(err)
			return
		}
		params[i] = pt
	}
	retSema := returnTypeOf(f)
	var retT types.Type = types.Void
	if !isUnitType(retSema) {
		rt, err := o.llvmType(retSema)
		if err != nil {
			o.out.Errors.Add(err)
			return
		}
		retT = rt
	}
	o.out.DeclareExtern(f.Name, symbol, params, retT, emit.CallConv(abi))
	o.funcReturnTypes[f.Name] = retSema
}

// emitBody is the BodyEmitterFunc the GenericInstantiator drives exactly
// once per newly-generated function or method: it declares the
// specialized signature and lowers its body, recursively driving further
// instantiation through the *same* Instantiator as the body is lowered
// (spec §4.6 "emit the body, which may itself require instantiations").
func (o *orchestrator) emitBody(ctx instantiate.ReceiverContext) *diag.CodegenError {
	params := make([]emit.ParamSpec, len(ctx.Decl.Params))
	for i, p := range ctx.Decl.Params {
		pt, err := o.llvmType(instantiate.Substitute(p.Type, ctx.Subst))
		if err != nil {
			return err
		}
		params[i] = emit.ParamSpec{Name: p.Name, Type: pt}
	}

	retSema := instantiate.Substitute(returnTypeOf(ctx.Decl), ctx.Subst)
	wrapped := sema.Type(retSema)
	if ctx.Decl.IsAsync {
		if _, err := o.inst.RequireEnumInstantiation("Poll", []sema.Type{retSema}); err != nil {
			return err
		}
		wrapped = &sema.Named{Base: "Poll", TypeArgs: []sema.Type{retSema}}
	}
	var retT types.Type = types.Void
	if !isUnitType(wrapped) {
		rt, err := o.llvmType(wrapped)
		if err != nil {
			return err
		}
		retT = rt
	}

	linkage := o.out.Linkage(ctx.Decl.Visibility, ctx.Decl.Decorators.ShouldPanic)
	f, created := o.out.DeclareFunc(ctx.MangledName, params, retT, linkage)
	if !created {
		return nil
	}
	o.funcReturnTypes[ctx.MangledName] = retSema

	lw := lower.New(o.out, o.reg, o.inst, ctx.Subst, o.funcReturnTypes)
	lw.SetFunc(f)
	entry := f.NewBlock("entry")
	lw.SetBlock(entry)
	lw.SetReturnType(retSema, ctx.Decl.IsAsync)
	o.out.EmitFunctionEntry(entry, ctx.MangledName)

	for i, p := range ctx.Decl.Params {
		if err := lw.BindParam(p.Name, instantiate.Substitute(p.Type, ctx.Subst), f.Params[i]); err != nil {
			lw.Errors.Add(err)
		}
	}

	bodyResult := lw.Lower(ctx.Decl.Body)
	if b := lw.Block(); b.Term == nil {
		// The body fell through without an explicit `return`: its
		// trailing-expression value (spec's implicit-return form, `{ x }`)
		// is the function's result, coerced the same way an explicit
		// `return` would be — not a zero value.
		b.NewRet(lw.FinalizeReturn(bodyResult))
	}

	o.out.Errors.Add(lw.Errors.CodegenErrors()...)
	return nil
}

func returnTypeOf(f *sema.FuncDecl) sema.Type {
	if f.Return == nil {
		return &sema.Primitive{Kind: sema.Unit}
	}
	return f.Return
}

func isUnitType(t sema.Type) bool {
	p, ok := t.(*sema.Primitive)
	return ok && p.Kind == sema.Unit
}

func namedBase(t sema.Type) (string, bool) {
	n, ok := t.(*sema.Named)
	if !ok {
		return "", false
	}
	return n.Base, true
}
