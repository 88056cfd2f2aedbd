package mangle_test

import (
	"testing"

	"github.com/tmlang/tmlc/internal/codegen/mangle"
	"github.com/tmlang/tmlc/internal/sema"
)

func TestInstantiationMatchesSpecExample(t *testing.T) {
	// Maybe[Ptr[Node[I32]]] -> Maybe__ptr_Node__I32 (spec §4.2)
	typ := &sema.Named{
		Base: "Maybe",
		TypeArgs: []sema.Type{
			&sema.Ptr{Inner: &sema.Named{Base: "Node", TypeArgs: []sema.Type{&sema.Primitive{Kind: sema.I32}}}},
		},
	}
	got := mangle.Type(typ)
	want := "Maybe__ptr_Node__I32"
	if got != want {
		t.Fatalf("Type() = %q, want %q", got, want)
	}
}

func TestDemangleRoundTripPrimitiveArgs(t *testing.T) {
	cases := [][]sema.Type{
		{&sema.Primitive{Kind: sema.I32}},
		{&sema.Primitive{Kind: sema.I64}, &sema.Primitive{Kind: sema.F64}},
		{&sema.Primitive{Kind: sema.Bool}, &sema.Primitive{Kind: sema.Str}, &sema.Primitive{Kind: sema.Char}},
	}
	for _, args := range cases {
		mangled := mangle.Instantiation("Outcome", args)
		base, got, err := mangle.Demangle(mangled)
		if err != nil {
			t.Fatalf("Demangle(%q): %v", mangled, err)
		}
		if base != "Outcome" {
			t.Fatalf("base = %q, want Outcome", base)
		}
		if len(got) != len(args) {
			t.Fatalf("got %d args, want %d", len(got), len(args))
		}
		for i := range args {
			if got[i].String() != args[i].String() {
				t.Fatalf("arg %d = %s, want %s", i, got[i], args[i])
			}
		}
	}
}

func TestDemangleSingleParamDoesNotSplitNestedArg(t *testing.T) {
	mangled := mangle.Instantiation("Maybe", []sema.Type{
		&sema.Named{Base: "Pair", TypeArgs: []sema.Type{&sema.Primitive{Kind: sema.I32}, &sema.Primitive{Kind: sema.I64}}},
	})
	remainder, err := mangle.DemangleSingleParam(mangled, "Maybe")
	if err != nil {
		t.Fatalf("DemangleSingleParam: %v", err)
	}
	want := "Pair__I32__I64"
	if remainder != want {
		t.Fatalf("remainder = %q, want %q (naive splitting would fragment it)", remainder, want)
	}
}

func TestBracketedRoundTrip(t *testing.T) {
	b := mangle.Bracketed("Pair", []sema.Type{
		&sema.Primitive{Kind: sema.I32},
		&sema.Named{Base: "Pair", TypeArgs: []sema.Type{&sema.Primitive{Kind: sema.I64}}},
	})
	want := "Pair(I32)(Pair(I64))"
	if b != want {
		t.Fatalf("Bracketed = %q, want %q", b, want)
	}

	base, args, err := mangle.ParseBracketed(b)
	if err != nil {
		t.Fatalf("ParseBracketed: %v", err)
	}
	if base != "Pair" || len(args) != 2 {
		t.Fatalf("base=%q args=%v", base, args)
	}
	if args[0] != "I32" || args[1] != "Pair(I64)" {
		t.Fatalf("unexpected args %v", args)
	}
}
