package lower_test

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/codegen/instantiate"
	"github.com/tmlang/tmlc/internal/codegen/layout"
	"github.com/tmlang/tmlc/internal/codegen/lower"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

func i32() sema.Type   { return &sema.Primitive{Kind: sema.I32} }
func i64() sema.Type   { return &sema.Primitive{Kind: sema.I64} }
func i8() sema.Type    { return &sema.Primitive{Kind: sema.I8} }
func f64() sema.Type   { return &sema.Primitive{Kind: sema.F64} }
func strT() sema.Type  { return &sema.Primitive{Kind: sema.Str} }
func boolT() sema.Type { return &sema.Primitive{Kind: sema.Bool} }
func unit() sema.Type  { return &sema.Primitive{Kind: sema.Unit} }

// harness bundles the pieces a Lowerer test needs: a populated registry,
// the instantiator it drives, and one function body ready to receive
// instructions at its entry block.
type harness struct {
	lw  *lower.Lowerer
	mod *emit.Module
	reg *registry.Registry
	in  *instantiate.Instantiator
}

// newHarness declares a single niladic function named "test_fn" returning
// ret, and points a fresh Lowerer at its entry block. A Unit return uses
// LLVM void, matching what the top-level orchestrator declares for a
// non-async Unit-returning function (ExprLowerer's Return handling emits
// a bare `ret void` in that case, never a `{}` value).
func newHarness(t *testing.T, ret sema.Type) *harness {
	t.Helper()
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)
	mod := emit.NewModule("test.tml", emit.Options{})
	in := instantiate.New(reg, eng, mod, stubBodyEmitter(mod))
	lw := lower.New(mod, reg, in, nil, nil)

	// A builtin generic enum return type (e.g. Outcome[I32, Str]) is
	// instantiated first, so its LLVM type exists when ret is resolved.
	if named, ok := ret.(*sema.Named); ok {
		if def, ok := reg.Enum(named.Base); ok {
			in.RegisterEnumDecl(def)
			if _, err := in.RequireEnumInstantiation(named.Base, named.TypeArgs); err != nil {
				t.Fatalf("instantiating return type: %v", err)
			}
		}
	}

	var retT types.Type = types.Void
	if !isUnit(ret) {
		var err *diag.CodegenError
		retT, err = emit.LLVMType(ret, func(name string) (types.Type, bool) { return mod.TypeDefined(name) })
		if err != nil {
			t.Fatalf("resolving return type: %v", err)
		}
	}
	f, _ := mod.DeclareFunc("test_fn", nil, retT, enum.LinkageExternal)
	lw.SetFunc(f)
	lw.SetBlock(f.NewBlock("entry"))
	lw.SetReturnType(ret, false)
	return &harness{lw: lw, mod: mod, reg: reg, in: in}
}

// stubBodyEmitter mimics just enough of the top-level orchestrator's
// BodyEmitterFunc for these tests: declare the instantiated signature
// with a trivial body, so a subsequent call site finds a real callee.
// Lowering the actual body is the orchestrator's job, exercised by the
// orchestrator's own tests, not ExprLowerer's.
func stubBodyEmitter(mod *emit.Module) instantiate.BodyEmitterFunc {
	return func(ctx instantiate.ReceiverContext) *diag.CodegenError {
		params := make([]emit.ParamSpec, len(ctx.Decl.Params))
		for i, p := range ctx.Decl.Params {
			pt, err := emit.LLVMType(instantiate.Substitute(p.Type, ctx.Subst), func(name string) (types.Type, bool) { return mod.TypeDefined(name) })
			if err != nil {
				return err
			}
			params[i] = emit.ParamSpec{Name: p.Name, Type: pt}
		}
		var retT types.Type = types.Void
		if ctx.Decl.Return != nil {
			rt, err := emit.LLVMType(instantiate.Substitute(ctx.Decl.Return, ctx.Subst), func(name string) (types.Type, bool) { return mod.TypeDefined(name) })
			if err != nil {
				return err
			}
			retT = rt
		}
		f, created := mod.DeclareFunc(ctx.MangledName, params, retT, enum.LinkageInternal)
		if created {
			b := f.NewBlock("entry")
			if retT == types.Void {
				b.NewRet(nil)
			} else {
				b.NewRet(constant.NewZeroInitializer(retT))
			}
		}
		return nil
	}
}

func isUnit(t sema.Type) bool {
	p, ok := t.(*sema.Primitive)
	return ok && p.Kind == sema.Unit
}

func (h *harness) requireNoErrors(t *testing.T) {
	t.Helper()
	if !h.lw.Errors.Empty() {
		t.Fatalf("unexpected codegen errors: %v", h.lw.Errors.Errors())
	}
}

func kindPtr(k sema.PrimitiveKind) *sema.PrimitiveKind { return &k }

func TestLowerIntArithmeticUsesIntegerOps(t *testing.T) {
	h := newHarness(t, i32())
	h.lw.Lower(&sema.Return{Value: &sema.BinOp{
		Op: "+", Left: &sema.IntLit{Value: 2}, Right: &sema.IntLit{Value: 3},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "add i32") {
		t.Fatalf("expected an `add i32` instruction, got:\n%s", out)
	}
	if !strings.Contains(out, "ret i32") {
		t.Fatalf("expected `ret i32`, got:\n%s", out)
	}
}

func TestLowerFloatArithmeticUsesFloatOps(t *testing.T) {
	h := newHarness(t, f64())
	h.lw.Lower(&sema.Return{Value: &sema.BinOp{
		Op: "+", Left: &sema.FloatLit{Value: 1.5}, Right: &sema.FloatLit{Value: 2.5},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "fadd double") {
		t.Fatalf("expected `fadd double`, got:\n%s", out)
	}
}

func TestLowerComparisonSignedVsUnsigned(t *testing.T) {
	u32 := kindPtr(sema.U32)

	h := newHarness(t, boolT())
	h.lw.Lower(&sema.Return{Value: &sema.BinOp{
		Op:    "<",
		Left:  &sema.IntLit{Value: 1, Kind: u32},
		Right: &sema.IntLit{Value: 2, Kind: u32},
	}})
	h.requireNoErrors(t)
	if out := h.mod.Render(); !strings.Contains(out, "icmp ult") {
		t.Fatalf("expected unsigned `icmp ult` for U32 operands, got:\n%s", out)
	}

	h2 := newHarness(t, boolT())
	h2.lw.Lower(&sema.Return{Value: &sema.BinOp{
		Op: "<", Left: &sema.IntLit{Value: 1}, Right: &sema.IntLit{Value: 2},
	}})
	h2.requireNoErrors(t)
	if out := h2.mod.Render(); !strings.Contains(out, "icmp slt") {
		t.Fatalf("expected signed `icmp slt` for default I32 operands, got:\n%s", out)
	}
}

func TestLowerShortCircuitBranchesInsteadOfEvaluatingEagerly(t *testing.T) {
	h := newHarness(t, boolT())
	h.lw.Lower(&sema.Return{Value: &sema.BinOp{
		Op:    "&&",
		Left:  &sema.BoolLit{Value: true},
		Right: &sema.BoolLit{Value: false},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"sc.rhs", "sc.join", "br i1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected short-circuit scaffolding %q in:\n%s", want, out)
		}
	}
}

func TestLowerLetAndIdentRoundTrip(t *testing.T) {
	h := newHarness(t, i32())
	h.lw.Lower(&sema.Block{Body: []sema.Expr{
		&sema.Let{Name: "x", Init: &sema.IntLit{Value: 41}},
		&sema.Return{Value: &sema.BinOp{
			Op: "+", Left: &sema.Ident{Name: "x"}, Right: &sema.IntLit{Value: 1},
		}},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "x.addr = alloca i32") {
		t.Fatalf("expected `x` to be allocated, got:\n%s", out)
	}
	if !strings.Contains(out, "add i32") {
		t.Fatalf("expected the load of `x` to feed an add, got:\n%s", out)
	}
}

func TestLowerIfJoinsBothBranches(t *testing.T) {
	h := newHarness(t, i32())
	h.lw.Lower(&sema.Return{Value: &sema.If{
		Cond: &sema.BoolLit{Value: true},
		Then: &sema.Block{Body: []sema.Expr{&sema.IntLit{Value: 1}}},
		Else: &sema.Block{Body: []sema.Expr{&sema.IntLit{Value: 2}}},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"if.then", "if.else", "if.end", "if.result.addr"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered if-expression, got:\n%s", want, out)
		}
	}
}

func TestLowerWhileLoopStructure(t *testing.T) {
	h := newHarness(t, unit())
	h.lw.Lower(&sema.While{
		Cond: &sema.BoolLit{Value: false},
		Body: &sema.Block{Body: []sema.Expr{}},
	})
	h.lw.Lower(&sema.Return{})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"while.header", "while.body", "while.after"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered while-loop, got:\n%s", want, out)
		}
	}
}

func TestLowerBreakAndContinueTargetLoopBlocks(t *testing.T) {
	h := newHarness(t, unit())
	h.lw.Lower(&sema.Loop{
		Body: &sema.Block{Body: []sema.Expr{
			&sema.If{
				Cond: &sema.BoolLit{Value: true},
				Then: &sema.Block{Body: []sema.Expr{&sema.Break{}}},
				Else: &sema.Block{Body: []sema.Expr{&sema.Continue{}}},
			},
		}},
	})
	h.lw.Lower(&sema.Return{})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "loop.header") || !strings.Contains(out, "loop.after") {
		t.Fatalf("expected loop header/after blocks, got:\n%s", out)
	}
}

func TestLowerBreakOutsideLoopIsReported(t *testing.T) {
	h := newHarness(t, unit())
	h.lw.Lower(&sema.Break{})
	if h.lw.Errors.Empty() {
		t.Fatalf("expected an error lowering `break` outside a loop")
	}
	errs := h.lw.Errors.CodegenErrors()
	if errs[0].Kind != diag.InternalInvariant {
		t.Fatalf("expected InternalInvariant, got %s", errs[0].Kind)
	}
}

func TestLowerUnknownIdentIsUnknownSymbol(t *testing.T) {
	h := newHarness(t, i32())
	h.lw.Lower(&sema.Return{Value: &sema.Ident{Name: "nope"}})
	errs := h.lw.Errors.CodegenErrors()
	if len(errs) == 0 || errs[0].Kind != diag.UnknownSymbol {
		t.Fatalf("expected UnknownSymbol for an unbound identifier, got %v", errs)
	}
}

func TestLowerStructConstructAndFieldAccess(t *testing.T) {
	h := newHarness(t, i32())
	point := &sema.StructDef{Name: "Point", Fields: []sema.Field{
		{Name: "x", Type: i32()}, {Name: "y", Type: i32()},
	}}
	h.reg.RegisterStruct(point)
	h.in.RegisterStructDecl(point)

	h.lw.Lower(&sema.Block{Body: []sema.Expr{
		&sema.Let{Name: "p", Init: &sema.ConstructStruct{
			TypeName: "Point",
			Fields:   []sema.Expr{&sema.IntLit{Value: 3}, &sema.IntLit{Value: 4}},
		}},
		&sema.Return{Value: &sema.FieldAccess{Receiver: &sema.Ident{Name: "p"}, Field: "y"}},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "%struct.Point") {
		t.Fatalf("expected a struct.Point type def, got:\n%s", out)
	}
	if !strings.Contains(out, "getelementptr") {
		t.Fatalf("expected a getelementptr for the field access, got:\n%s", out)
	}
}

func TestLowerEnumConstructAndWhenMatch(t *testing.T) {
	h := newHarness(t, i32())
	maybeDef, ok := h.reg.Enum("Maybe")
	if !ok {
		t.Fatalf("builtin Maybe enum missing from registry")
	}
	h.in.RegisterEnumDecl(maybeDef)

	h.lw.Lower(&sema.Block{Body: []sema.Expr{
		&sema.Let{Name: "m", Init: &sema.ConstructEnum{
			TypeName: "Maybe", TypeArgs: []sema.Type{i32()},
			VariantName: "Just", Args: []sema.Expr{&sema.IntLit{Value: 9}},
		}},
		&sema.Return{Value: &sema.When{
			Subject: &sema.Ident{Name: "m"},
			Arms: []sema.MatchArm{
				{VariantName: "Just", Bindings: []string{"v"}, Body: &sema.Ident{Name: "v"}},
				{VariantName: "", Body: &sema.IntLit{Value: 0}},
			},
		}},
	}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"when.arm", "when.end", "extractvalue", "bitcast"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered `when`, got:\n%s", want, out)
		}
	}
}

func TestLowerTryUnwrapsOkAndPropagatesErr(t *testing.T) {
	outcomeTyp := &sema.Named{Base: "Outcome", TypeArgs: []sema.Type{i32(), strT()}}
	h := newHarness(t, outcomeTyp)
	outcomeDef, ok := h.reg.Enum("Outcome")
	if !ok {
		t.Fatalf("builtin Outcome enum missing from registry")
	}
	h.in.RegisterEnumDecl(outcomeDef)

	h.lw.Lower(&sema.Return{Value: &sema.Try{Value: &sema.ConstructEnum{
		TypeName: "Outcome", TypeArgs: []sema.Type{i32(), strT()},
		VariantName: "Ok", Args: []sema.Expr{&sema.IntLit{Value: 5}},
	}}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"try.ok", "try.err"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered `!`, got:\n%s", want, out)
		}
	}
}

func TestLowerReturnSignExtendsNarrowerInt(t *testing.T) {
	h := newHarness(t, i64())
	h.lw.Lower(&sema.Return{Value: &sema.IntLit{Value: 5}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "sext i32") {
		t.Fatalf("expected a sign-extension from I32 to I64, got:\n%s", out)
	}
}

func TestLowerReturnTruncatesWiderInt(t *testing.T) {
	h := newHarness(t, i8())
	wide := sema.I64
	h.lw.Lower(&sema.Return{Value: &sema.IntLit{Value: 9, Kind: &wide}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "trunc i64") {
		t.Fatalf("expected a truncation from I64 to I8, got:\n%s", out)
	}
}

func TestLowerReturnUnitEmitsVoidRet(t *testing.T) {
	h := newHarness(t, unit())
	h.lw.Lower(&sema.Return{})
	h.requireNoErrors(t)

	if out := h.mod.Render(); !strings.Contains(out, "ret void") {
		t.Fatalf("expected `ret void` for a Unit-returning function, got:\n%s", out)
	}
}

func TestBindParamAllocatesAndStores(t *testing.T) {
	h := newHarness(t, i32())
	if err := h.lw.BindParam("x", i32(), constant.NewInt(types.I32, 10)); err != nil {
		t.Fatalf("BindParam: %v", err)
	}
	h.lw.Lower(&sema.Return{Value: &sema.Ident{Name: "x"}})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "x.addr = alloca i32") || !strings.Contains(out, "store i32 10") {
		t.Fatalf("expected parameter %q to be spilled to a stack slot, got:\n%s", "x", out)
	}
}

func TestDropScopeFiresDropOnBlockExit(t *testing.T) {
	h := newHarness(t, unit())
	res := &sema.StructDef{Name: "Res"}
	h.reg.RegisterStruct(res)
	h.reg.RegisterImpl("Res", "Drop")
	h.in.RegisterStructDecl(res)
	h.in.RegisterMethodDecl("Res", &sema.FuncDecl{
		Name:         "drop",
		ReceiverName: "this",
		Params: []sema.Param{
			{Name: "this", Type: &sema.Ref{IsMut: true, Inner: &sema.Named{Base: "Res"}}},
		},
		Return: unit(),
	})

	h.lw.Lower(&sema.Block{Body: []sema.Expr{
		&sema.Let{Name: "r", Init: &sema.ConstructStruct{TypeName: "Res"}},
	}})
	h.lw.Lower(&sema.Return{})
	h.requireNoErrors(t)

	out := h.mod.Render()
	if !strings.Contains(out, "Res__drop") {
		t.Fatalf("expected a call to Res__drop on scope exit, got:\n%s", out)
	}
}

func TestLowerForDesugarsToNextCalls(t *testing.T) {
	h := newHarness(t, unit())
	rangeDef := &sema.StructDef{Name: "Range", Fields: []sema.Field{{Name: "cur", Type: i32()}}}
	h.reg.RegisterStruct(rangeDef)
	h.in.RegisterStructDecl(rangeDef)

	maybeDef, ok := h.reg.Enum("Maybe")
	if !ok {
		t.Fatalf("builtin Maybe enum missing from registry")
	}
	h.in.RegisterEnumDecl(maybeDef)
	if _, err := h.in.RequireEnumInstantiation("Maybe", []sema.Type{i32()}); err != nil {
		t.Fatalf("pre-instantiating Maybe[I32]: %v", err)
	}

	h.in.RegisterMethodDecl("Range", &sema.FuncDecl{
		Name:         "next",
		ReceiverName: "this",
		Params: []sema.Param{
			{Name: "this", Type: &sema.Ref{IsMut: true, Inner: &sema.Named{Base: "Range"}}},
		},
		Return: &sema.Named{Base: "Maybe", TypeArgs: []sema.Type{i32()}},
	})

	h.lw.Lower(&sema.For{
		Binding: "item",
		Iter:    &sema.ConstructStruct{TypeName: "Range", Fields: []sema.Expr{&sema.IntLit{Value: 0}}},
		Body:    &sema.Block{Body: []sema.Expr{}},
	})
	h.lw.Lower(&sema.Return{})
	h.requireNoErrors(t)

	out := h.mod.Render()
	for _, want := range []string{"for.header", "for.body", "for.after", "Range__next"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered `for`, got:\n%s", want, out)
		}
	}
}
