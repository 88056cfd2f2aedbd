package layout_test

import (
	"testing"

	"github.com/tmlang/tmlc/internal/codegen/layout"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/sema"
)

func TestEnumLayoutDataless(t *testing.T) {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	def, _ := reg.Enum("Ordering")
	total, n, err := eng.EnumLayout(def, nil, nil)
	if err != nil {
		t.Fatalf("EnumLayout: %v", err)
	}
	if total != 4 || n != 0 {
		t.Fatalf("got total=%d n=%d, want total=4 n=0 for a data-less enum", total, n)
	}
}

func TestEnumLayoutOutcomeI64Unit(t *testing.T) {
	// S1 scenario: Outcome[I64, E] Ok(42) -> { i32, [1 x i64] }.
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	def, _ := reg.Enum("Outcome")
	total, n, err := eng.EnumLayout(def, []sema.Type{&sema.Primitive{Kind: sema.I64}, &sema.Primitive{Kind: sema.Unit}}, nil)
	if err != nil {
		t.Fatalf("EnumLayout: %v", err)
	}
	if n != 1 {
		t.Fatalf("payload elems = %d, want 1", n)
	}
	if total != 12 {
		t.Fatalf("total size = %d, want 12 (4 tag + 8 payload)", total)
	}
}

func TestEnumLayoutRoundsPayloadUpToMultipleOf8(t *testing.T) {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	reg.RegisterEnum(&sema.EnumDef{
		Name: "Small",
		Variants: []sema.Variant{
			{Name: "A", Fields: sema.VariantFields{Tuple: []sema.Type{&sema.Primitive{Kind: sema.I8}}}},
			{Name: "B"},
		},
	})
	def, _ := reg.Enum("Small")
	total, n, err := eng.EnumLayout(def, nil, nil)
	if err != nil {
		t.Fatalf("EnumLayout: %v", err)
	}
	if n != 1 || total != 12 {
		t.Fatalf("got total=%d n=%d, want total=12 n=1 (1 byte rounds up to 8)", total, n)
	}
}

func TestEnumLayoutOverflow(t *testing.T) {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	fields := make([]sema.Type, 0, 9000)
	for i := 0; i < 9000; i++ {
		fields = append(fields, &sema.Primitive{Kind: sema.I64})
	}
	reg.RegisterEnum(&sema.EnumDef{
		Name: "Huge",
		Variants: []sema.Variant{
			{Name: "Big", Fields: sema.VariantFields{Tuple: fields}},
		},
	})
	def, _ := reg.Enum("Huge")
	if _, _, err := eng.EnumLayout(def, nil, nil); err == nil || err.Kind != "LayoutOverflow" {
		t.Fatalf("expected LayoutOverflow, got %v", err)
	}
}

func TestSizeOfStructSumsFields(t *testing.T) {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	reg.RegisterStruct(&sema.StructDef{
		Name: "Point",
		Fields: []sema.Field{
			{Name: "x", Type: &sema.Primitive{Kind: sema.I32}},
			{Name: "y", Type: &sema.Primitive{Kind: sema.I32}},
		},
	})
	sz, err := eng.SizeOf(&sema.Named{Base: "Point"}, nil)
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if sz != 8 {
		t.Fatalf("SizeOf(Point) = %d, want 8", sz)
	}
}

func TestSizeOfGenericStructRecursesThroughSubstitution(t *testing.T) {
	reg := registry.NewWithBuiltins()
	eng := layout.New(reg)

	reg.RegisterStruct(&sema.StructDef{
		Name:       "Box",
		TypeParams: []sema.TypeParam{{Name: "T"}},
		Fields: []sema.Field{
			{Name: "value", Type: &sema.Generic{Param: "T"}},
		},
	})
	sz, err := eng.SizeOf(&sema.Named{Base: "Box", TypeArgs: []sema.Type{&sema.Primitive{Kind: sema.I64}}}, nil)
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if sz != 8 {
		t.Fatalf("SizeOf(Box[I64]) = %d, want 8", sz)
	}
}
