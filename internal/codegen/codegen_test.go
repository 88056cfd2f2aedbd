package codegen_test

import (
	"strings"
	"testing"

	"github.com/tmlang/tmlc/internal/codegen"
	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/sema"
)

func i32() sema.Type { return &sema.Primitive{Kind: sema.I32} }
func i64() sema.Type { return &sema.Primitive{Kind: sema.I64} }
func strT() sema.Type { return &sema.Primitive{Kind: sema.Str} }
func unit() sema.Type { return &sema.Primitive{Kind: sema.Unit} }

func TestEmitNonGenericFunction(t *testing.T) {
	mod := &sema.Module{
		Name: "add.tml",
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "add",
				Params:     []sema.Param{{Name: "a", Type: i32()}, {Name: "b", Type: i32()}},
				Return:     i32(),
				Body: &sema.Block{Body: []sema.Expr{
					&sema.Return{Value: &sema.BinOp{Op: "+", Left: &sema.Ident{Name: "a"}, Right: &sema.Ident{Name: "b"}}},
				}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "define") || !strings.Contains(result.IR, "@add") {
		t.Fatalf("expected a definition for @add, got:\n%s", result.IR)
	}
}

func TestEmitExternDeclaration(t *testing.T) {
	mod := &sema.Module{
		Name: "extern.tml",
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "puts",
				Params:     []sema.Param{{Name: "s", Type: strT()}},
				Return:     i32(),
				Decorators: sema.Decorators{Extern: &sema.ExternInfo{ABI: "c", Symbol: "puts"}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "declare") || !strings.Contains(result.IR, "@puts") {
		t.Fatalf("expected a `declare ... @puts`, got:\n%s", result.IR)
	}
}

func TestEmitGenericStructInstantiation(t *testing.T) {
	mod := &sema.Module{
		Name: "box.tml",
		Structs: []*sema.StructDef{
			{
				Name:       "Box",
				TypeParams: []sema.TypeParam{{Name: "T"}},
				Fields:     []sema.Field{{Name: "value", Type: &sema.Generic{Param: "T"}}},
			},
		},
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "make_box",
				Return:     &sema.Named{Base: "Box", TypeArgs: []sema.Type{i64()}},
				Body: &sema.Block{Body: []sema.Expr{
					&sema.Return{Value: &sema.ConstructStruct{
						TypeName: "Box",
						TypeArgs: []sema.Type{i64()},
						Fields:   []sema.Expr{&sema.IntLit{Value: 7}},
					}},
				}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "%struct.Box__I64") {
		t.Fatalf("expected a monomorphized Box__I64 struct type, got:\n%s", result.IR)
	}
}

func TestEmitAsyncFunctionWrapsReturnInPoll(t *testing.T) {
	mod := &sema.Module{
		Name: "fut.tml",
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "ready_now",
				Return:     i32(),
				IsAsync:    true,
				Body: &sema.Block{Body: []sema.Expr{
					&sema.Return{Value: &sema.IntLit{Value: 1}},
				}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "%enum.Poll__I32") {
		t.Fatalf("expected the async return type to be wrapped in Poll__I32, got:\n%s", result.IR)
	}
	if !strings.Contains(result.IR, "store i32 1") {
		t.Fatalf("expected the Ready(1) payload to be stored into the Poll tagged union, got:\n%s", result.IR)
	}
}

func TestEmitImplicitTrailingExpressionReturn(t *testing.T) {
	mod := &sema.Module{
		Name: "trail.tml",
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "answer",
				Return:     i32(),
				// No explicit Return statement: the block's trailing
				// expression is the function's implicit result.
				Body: &sema.Block{Body: []sema.Expr{&sema.IntLit{Value: 42}}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "ret i32 42") {
		t.Fatalf("expected the trailing expression 42 to be returned, got:\n%s", result.IR)
	}
}

func TestEmitReportsUnknownImplTarget(t *testing.T) {
	mod := &sema.Module{
		Name: "bad.tml",
		Impls: []*sema.ImplBlock{
			{TargetType: &sema.Generic{Param: "T"}},
		},
	}

	result := codegen.Emit(mod, emit.Options{})
	if result.Errors.Empty() {
		t.Fatalf("expected an error for a non-named impl target")
	}
}

func TestEmitCoverageInstrumentsFunctionEntry(t *testing.T) {
	mod := &sema.Module{
		Name: "cov.tml",
		Funcs: []*sema.FuncDecl{
			{
				Visibility: sema.Public,
				Name:       "noop",
				Return:     unit(),
				Body:       &sema.Block{Body: []sema.Expr{&sema.Return{}}},
			},
		},
	}

	result := codegen.Emit(mod, emit.Options{CoverageEnabled: true})
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Err())
	}
	if !strings.Contains(result.IR, "tml_cover_func") {
		t.Fatalf("expected a tml_cover_func call with coverage enabled, got:\n%s", result.IR)
	}
}
