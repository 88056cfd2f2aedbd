package emit_test

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/sema"
)

func TestEnsureStructTypeIsMemoized(t *testing.T) {
	m := emit.NewModule("test.tml", emit.Options{})
	fields := []emit.FieldSpec{{Name: "x", Type: types.I32}, {Name: "y", Type: types.I32}}

	first := m.EnsureStructType("Point", fields)
	second := m.EnsureStructType("Point", fields)
	if first != second {
		t.Fatalf("expected the same *types.StructType on repeated EnsureStructType calls")
	}
	if len(m.Module.TypeDefs) != 1 {
		t.Fatalf("expected exactly one type def emitted, got %d", len(m.Module.TypeDefs))
	}
}

func TestEnsureEnumTypeShapes(t *testing.T) {
	m := emit.NewModule("test.tml", emit.Options{})

	dataless := m.EnsureEnumType("Ordering", 0)
	if len(dataless.Fields) != 1 {
		t.Fatalf("data-less enum should have exactly one field (the tag), got %d", len(dataless.Fields))
	}

	withPayload := m.EnsureEnumType("Outcome__I64__Unit", 1)
	if len(withPayload.Fields) != 2 {
		t.Fatalf("payload enum should have two fields (tag, payload array), got %d", len(withPayload.Fields))
	}
}

func TestDeclareFuncIsEmittedAtMostOnce(t *testing.T) {
	m := emit.NewModule("test.tml", emit.Options{})
	f1, created1 := m.DeclareFunc("tml_id__I32", []emit.ParamSpec{{Name: "x", Type: types.I32}}, types.I32, enum.LinkageExternal)
	f2, created2 := m.DeclareFunc("tml_id__I32", []emit.ParamSpec{{Name: "x", Type: types.I32}}, types.I32, enum.LinkageExternal)

	if f1 != f2 {
		t.Fatalf("expected the same *ir.Func on repeated DeclareFunc calls")
	}
	if !created1 || created2 {
		t.Fatalf("expected created=true only on first call, got %v then %v", created1, created2)
	}
}

func TestLinkageForcedInternalInSuiteMode(t *testing.T) {
	m := emit.NewModule("test.tml", emit.Options{ForceInternalLinkage: true})
	if got := m.Linkage(sema.Public, false); got != enum.LinkageInternal {
		t.Fatalf("expected internal linkage in suite mode, got %v", got)
	}
	if got := m.Linkage(sema.Public, true); got != enum.LinkageExternal {
		t.Fatalf("expected @should_panic function to retain external linkage, got %v", got)
	}
}

func TestCallConvMapsFourABIs(t *testing.T) {
	cases := map[string]enum.CallConv{
		"stdcall":  enum.CallConvX86StdCall,
		"fastcall": enum.CallConvX86FastCall,
		"thiscall": enum.CallConvX86ThisCall,
		"c":        enum.CallConvNone,
	}
	for abi, want := range cases {
		if got := emit.CallConv(abi); got != want {
			t.Fatalf("CallConv(%q) = %v, want %v", abi, got, want)
		}
	}
}

func TestRenderPlacesTypeDefsBeforeFuncs(t *testing.T) {
	m := emit.NewModule("test.tml", emit.Options{})
	m.EnsureStructType("Point", []emit.FieldSpec{{Name: "x", Type: types.I32}})
	f, _ := m.DeclareFunc("main", nil, types.Void, enum.LinkageExternal)
	block := f.NewBlock("entry")
	block.NewRet(nil)

	out := m.Render()
	typeIdx := strings.Index(out, "%struct.Point")
	funcIdx := strings.Index(out, "define")
	if typeIdx == -1 || funcIdx == -1 || typeIdx > funcIdx {
		t.Fatalf("expected struct.Point type def before function define in rendered output:\n%s", out)
	}
}
