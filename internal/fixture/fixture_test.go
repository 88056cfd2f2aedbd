package fixture_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tmlang/tmlc/internal/fixture"
	"github.com/tmlang/tmlc/internal/sema"
)

const addModuleJSON = `{
	"name": "add.tml",
	"funcs": [
		{
			"visibility": "public",
			"name": "add",
			"params": [
				{"name": "a", "type": {"kind": "primitive", "primitive_kind": "I32"}},
				{"name": "b", "type": {"kind": "primitive", "primitive_kind": "I32"}}
			],
			"return": {"kind": "primitive", "primitive_kind": "I32"},
			"body": {
				"kind": "block",
				"body": [
					{
						"kind": "return",
						"value": {
							"kind": "bin_op",
							"op": "+",
							"left": {"kind": "ident", "name": "a"},
							"right": {"kind": "ident", "name": "b"}
						}
					}
				]
			}
		}
	]
}`

func TestDecodeSimpleFunction(t *testing.T) {
	mod, err := fixture.Decode(strings.NewReader(addModuleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if mod.Name != "add.tml" {
		t.Fatalf("expected module name %q, got %q", "add.tml", mod.Name)
	}
	if len(mod.Funcs) != 1 {
		t.Fatalf("expected 1 func, got %d", len(mod.Funcs))
	}

	f := mod.Funcs[0]
	if f.Visibility != sema.Public {
		t.Fatalf("expected public visibility")
	}
	if len(f.Params) != 2 || f.Params[0].Name != "a" || f.Params[1].Name != "b" {
		t.Fatalf("unexpected params: %+v", f.Params)
	}
	ret, ok := f.Return.(*sema.Primitive)
	if !ok || ret.Kind != sema.I32 {
		t.Fatalf("expected I32 return type, got %#v", f.Return)
	}

	block, ok := f.Body.(*sema.Block)
	if !ok || len(block.Body) != 1 {
		t.Fatalf("expected a one-statement block body, got %#v", f.Body)
	}
	ret1, ok := block.Body[0].(*sema.Return)
	if !ok {
		t.Fatalf("expected a Return statement, got %#v", block.Body[0])
	}
	bin, ok := ret1.Value.(*sema.BinOp)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected a `+` BinOp, got %#v", ret1.Value)
	}
}

func TestDecodeGenericStructAndConstruct(t *testing.T) {
	const doc = `{
		"name": "box.tml",
		"structs": [
			{
				"name": "Box",
				"type_params": [{"name": "T"}],
				"fields": [{"name": "value", "type": {"kind": "generic", "param": "T"}}]
			}
		],
		"funcs": [
			{
				"visibility": "public",
				"name": "make_box",
				"return": {"kind": "named", "base": "Box", "type_args": [{"kind": "primitive", "primitive_kind": "I64"}]},
				"body": {
					"kind": "block",
					"body": [{
						"kind": "return",
						"value": {
							"kind": "construct_struct",
							"type_name": "Box",
							"type_args": [{"kind": "primitive", "primitive_kind": "I64"}],
							"fields": [{"kind": "int_lit", "int_value": 7}]
						}
					}]
				}
			}
		]
	}`

	mod, err := fixture.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(mod.Structs) != 1 || mod.Structs[0].Name != "Box" {
		t.Fatalf("expected one Box struct, got %+v", mod.Structs)
	}
	if len(mod.Structs[0].TypeParams) != 1 || mod.Structs[0].TypeParams[0].Name != "T" {
		t.Fatalf("expected one type param T, got %+v", mod.Structs[0].TypeParams)
	}

	named, ok := mod.Funcs[0].Return.(*sema.Named)
	if !ok || named.Base != "Box" || len(named.TypeArgs) != 1 {
		t.Fatalf("expected Box[I64] return type, got %#v", mod.Funcs[0].Return)
	}
}

func TestDecodeStructFieldsMatchExactly(t *testing.T) {
	const doc = `{
		"name": "point.tml",
		"structs": [{
			"name": "Point",
			"fields": [
				{"name": "x", "type": {"kind": "primitive", "primitive_kind": "I32"}},
				{"name": "y", "type": {"kind": "primitive", "primitive_kind": "I32"}}
			]
		}]
	}`

	mod, err := fixture.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []sema.Field{
		{Name: "x", Type: &sema.Primitive{Kind: sema.I32}},
		{Name: "y", Type: &sema.Primitive{Kind: sema.I32}},
	}
	if diff := cmp.Diff(want, mod.Structs[0].Fields); diff != "" {
		t.Fatalf("decoded fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownExprKind(t *testing.T) {
	const doc = `{"name": "bad.tml", "funcs": [{"visibility": "public", "name": "f", "body": {"kind": "nonsense"}}]}`
	if _, err := fixture.Decode(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected an error decoding an unknown expr kind")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := fixture.Decode(strings.NewReader("{not json")); err == nil {
		t.Fatalf("expected an error decoding malformed JSON")
	}
}
