// Package lower implements spec §4.7 ExprLowerer: lowers expressions and
// statements to SSA values, driving GenericInstantiator for every
// polymorphic reference and managing drop scopes as it goes.
package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/codegen/instantiate"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// local is one entry in the locals table: its storage (an alloca) plus
// its semantic type, needed to decide drop eligibility and to interpret
// loads/GEPs correctly.
type local struct {
	slot *ir.InstAlloca
	typ  sema.Type
}

// dropScope is one entry of the drop-scope stack (spec §3): locals
// introduced since the scope was pushed, in declaration order so exit
// can synthesize drops in reverse.
type dropScope struct {
	names []string
}

// loopCtx tracks the blocks a break/continue inside the innermost loop
// must branch to, and where a `break value` should store its result.
type loopCtx struct {
	breakBlock    *ir.Block
	continueBlock *ir.Block
	resultSlot    *ir.InstAlloca // non-nil when the loop is used as a value
}

// Lowerer is the ExprLowerer. One Lowerer instance lowers exactly one
// function body; DeclEmitter (package codegen) constructs a fresh
// Lowerer per function.
type Lowerer struct {
	Mod  *emit.Module
	Reg  *registry.Registry
	Inst *instantiate.Instantiator

	// FuncReturnTypes maps a mangled function name to its declared return
	// type, populated by the top-level orchestrator as each non-generic
	// function's signature is declared, so a later call site can type its
	// result without re-deriving it from the registry.
	FuncReturnTypes map[string]sema.Type

	Errors diag.ErrorList

	fn         *ir.Func
	block      *ir.Block
	locals     map[string]*local
	subst      map[string]sema.Type // active type-param substitution for this instantiation
	dropScopes []dropScope
	loops      []loopCtx
	returnType sema.Type // declared (pre-Poll-wrap) return type
	isAsync    bool
}

// New creates a Lowerer for one function body. subst carries the active
// generic substitution (nil for non-generic functions). funcReturnTypes
// is shared across every Lowerer the top-level orchestrator constructs
// for one module, so a call site can type a call to any function
// declared earlier in the same emission.
func New(mod *emit.Module, reg *registry.Registry, inst *instantiate.Instantiator, subst map[string]sema.Type, funcReturnTypes map[string]sema.Type) *Lowerer {
	if funcReturnTypes == nil {
		funcReturnTypes = make(map[string]sema.Type)
	}
	return &Lowerer{
		Mod:             mod,
		Reg:             reg,
		Inst:            inst,
		FuncReturnTypes: funcReturnTypes,
		locals:          make(map[string]*local),
		subst:           subst,
	}
}

// SetBlock points the lowerer at the block instructions are appended to.
func (lw *Lowerer) SetBlock(b *ir.Block) { lw.block = b }

// Block returns the block currently receiving instructions.
func (lw *Lowerer) Block() *ir.Block { return lw.block }

// SetReturnType records the function's declared return type (for
// trailing-expression coercion and async wrapping) and async-ness.
func (lw *Lowerer) SetReturnType(t sema.Type, isAsync bool) {
	lw.returnType = t
	lw.isAsync = isAsync
}

// BindParam registers a parameter as a local: allocate a stack slot,
// store the incoming value, and register it in the locals table (spec
// §4.5 "Parameter marshalling").
func (lw *Lowerer) BindParam(name string, typ sema.Type, value ir.Value) *diag.CodegenError {
	llvmT, err := lw.llvmType(typ)
	if err != nil {
		return err
	}
	slot := lw.block.NewAlloca(llvmT)
	slot.SetName(name + ".addr")
	lw.block.NewStore(value, slot)
	lw.locals[name] = &local{slot: slot, typ: typ}
	return nil
}

func (lw *Lowerer) llvmType(t sema.Type) (types.Type, *diag.CodegenError) {
	resolved := instantiate.Substitute(t, lw.subst)
	return emit.LLVMType(resolved, func(mangledName string) (types.Type, bool) {
		return lw.Mod.TypeDefined(mangledName)
	})
}

func (lw *Lowerer) resolvedType(t sema.Type) sema.Type {
	return instantiate.Substitute(t, lw.subst)
}

// result pairs an SSA value with its semantic type, the ExprLowerer
// contract from spec §4.7 ("Lowers expressions producing an SSA value
// and a semantic type").
type result struct {
	value ir.Value
	typ   sema.Type
}

func unitResult() result {
	return result{value: constant.NewZeroInitializer(emit.UnitType), typ: &sema.Primitive{Kind: sema.Unit}}
}

// Lower dispatches on the expression's concrete type. It never panics on
// an unhandled case; it reports an InternalInvariant CodegenError and
// returns a best-effort Unit value so emission can continue (spec §7:
// "emission continues so multiple errors surface in one pass").
func (lw *Lowerer) Lower(e sema.Expr) result {
	switch v := e.(type) {
	case *sema.IntLit:
		return lw.lowerIntLit(v)
	case *sema.FloatLit:
		return lw.lowerFloatLit(v)
	case *sema.BoolLit:
		return result{value: constant.NewBool(v.Value), typ: &sema.Primitive{Kind: sema.Bool}}
	case *sema.CharLit:
		return result{value: constant.NewInt(types.I32, int64(v.Value)), typ: &sema.Primitive{Kind: sema.Char}}
	case *sema.UnitLit:
		return unitResult()
	case *sema.StrLit:
		return lw.lowerStrLit(v)
	case *sema.Ident:
		return lw.lowerIdent(v)
	case *sema.BinOp:
		return lw.lowerBinOp(v)
	case *sema.UnaryOp:
		return lw.lowerUnaryOp(v)
	case *sema.Let:
		return lw.lowerLet(v)
	case *sema.Assign:
		return lw.lowerAssign(v)
	case *sema.Block:
		return lw.lowerBlock(v)
	case *sema.If:
		return lw.lowerIf(v)
	case *sema.Loop:
		return lw.lowerLoop(v)
	case *sema.While:
		return lw.lowerWhile(v)
	case *sema.For:
		return lw.lowerFor(v)
	case *sema.Break:
		return lw.lowerBreak(v)
	case *sema.Continue:
		lw.lowerContinue(v)
		return unitResult()
	case *sema.Return:
		lw.lowerReturn(v)
		return unitResult()
	case *sema.ConstructStruct:
		return lw.lowerConstructStruct(v)
	case *sema.ConstructEnum:
		return lw.lowerConstructEnum(v)
	case *sema.FieldAccess:
		return lw.lowerFieldAccess(v)
	case *sema.Call:
		return lw.lowerCall(v)
	case *sema.MethodCall:
		return lw.lowerMethodCall(v)
	case *sema.When:
		return lw.lowerWhen(v)
	case *sema.Await:
		return lw.lowerAwait(v)
	case *sema.Try:
		return lw.lowerTry(v)
	default:
		lw.Errors.Add(diag.New(diag.InternalInvariant, "unhandled expression type %T", e))
		return unitResult()
	}
}

func (lw *Lowerer) lowerIntLit(v *sema.IntLit) result {
	kind := sema.I32 // spec §4.7: "integer types default to I32 when unconstrained"
	if v.Kind != nil {
		kind = *v.Kind
	}
	llvmT, err := lw.llvmType(&sema.Primitive{Kind: kind})
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	it, ok := llvmT.(*types.IntType)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "integer literal resolved to non-integer LLVM type"))
		return unitResult()
	}
	return result{value: constant.NewInt(it, v.Value), typ: &sema.Primitive{Kind: kind}}
}

func (lw *Lowerer) lowerFloatLit(v *sema.FloatLit) result {
	kind := sema.F64 // spec §4.7: "float literals default to F64 when unconstrained"
	if v.Kind != nil {
		kind = *v.Kind
	}
	llvmT, err := lw.llvmType(&sema.Primitive{Kind: kind})
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	ft, ok := llvmT.(*types.FloatType)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "float literal resolved to non-float LLVM type"))
		return unitResult()
	}
	return result{value: constant.NewFloat(ft, v.Value), typ: &sema.Primitive{Kind: kind}}
}

func (lw *Lowerer) lowerStrLit(v *sema.StrLit) result {
	g := lw.Mod.InternString(v.Value)
	ptr := lw.block.NewGetElementPtr(g.ContentType, g, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	return result{value: ptr, typ: &sema.Primitive{Kind: sema.Str}}
}

func (lw *Lowerer) lowerIdent(v *sema.Ident) result {
	l, ok := lw.locals[v.Name]
	if !ok {
		lw.Errors.Add(diag.NewAt(diag.UnknownSymbol, toDiagSpan(v.Span), "unknown local %q", v.Name))
		return unitResult()
	}
	loaded := lw.block.NewLoad(l.slot.ElemType, l.slot)
	return result{value: loaded, typ: l.typ}
}

func toDiagSpan(s sema.Span) diag.Span {
	return diag.Span{Filename: s.File, Line: s.Line, Column: s.Column}
}
