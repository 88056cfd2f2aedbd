package emit

import (
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/mangle"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// FieldSpec is one field to materialize into an LLVM struct body, in
// emission order.
type FieldSpec struct {
	Name string
	Type types.Type
}

// EnsureStructType emits `%struct.<mangledName> = type { ... }` into
// TypeDefs unless already emitted (spec §4.4 memoization). Unit fields
// must already have been mapped to an empty struct `{}` by the caller
// (LLVMType does this) — LLVM forbids void inside an aggregate.
func (m *Module) EnsureStructType(mangledName string, fields []FieldSpec) *types.StructType {
	if t, ok := m.typeDefs[mangledName]; ok {
		return t
	}
	elemTypes := make([]types.Type, len(fields))
	for i, f := range fields {
		elemTypes[i] = f.Type
	}
	st := types.NewStruct(elemTypes...)
	m.Module.NewTypeDef("struct."+mangledName, st)
	m.typeDefs[mangledName] = st
	return st
}

// EnsureEnumType emits the tagged-union shape from spec §4.3/§4.5:
// `{ i32 }` for a data-less enum, or `{ i32, [N x i64] }` otherwise.
func (m *Module) EnsureEnumType(mangledName string, payloadElems int) *types.StructType {
	if t, ok := m.typeDefs[mangledName]; ok {
		return t
	}
	var st *types.StructType
	if payloadElems == 0 {
		st = types.NewStruct(types.I32)
	} else {
		st = types.NewStruct(types.I32, types.NewArray(uint64(payloadElems), types.I64))
	}
	m.Module.NewTypeDef("enum."+mangledName, st)
	m.typeDefs[mangledName] = st
	return st
}

// UnitType is `{}`, the representation for sema's Unit primitive when it
// must occupy a struct field position (spec §4.5: "Unit fields are
// represented as {} (empty struct), never as void").
var UnitType = types.NewStruct()

// LLVMType maps a resolved (generic-free) sema.Type to its LLVM type.
// structLookup resolves a Named struct/enum reference to its
// already-emitted LLVM type by mangled name (the caller is expected to
// have driven GenericInstantiator first so the entry exists).
func LLVMType(t sema.Type, structLookup func(mangledName string) (types.Type, bool)) (types.Type, *diag.CodegenError) {
	switch v := t.(type) {
	case *sema.Primitive:
		return primitiveLLVMType(v.Kind)
	case *sema.Ptr:
		inner, err := LLVMType(v.Inner, structLookup)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(inner), nil
	case *sema.Ref:
		inner, err := LLVMType(v.Inner, structLookup)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(inner), nil
	case *sema.Tuple:
		elems := make([]types.Type, len(v.Elements))
		for i, e := range v.Elements {
			et, err := LLVMType(e, structLookup)
			if err != nil {
				return nil, err
			}
			elems[i] = et
		}
		return types.NewStruct(elems...), nil
	case *sema.Function:
		params := make([]types.Type, len(v.Params))
		for i, p := range v.Params {
			pt, err := LLVMType(p, structLookup)
			if err != nil {
				return nil, err
			}
			params[i] = pt
		}
		var ret types.Type = types.Void
		if v.Return != nil {
			rt, err := LLVMType(v.Return, structLookup)
			if err != nil {
				return nil, err
			}
			ret = rt
		}
		return types.NewPointer(types.NewFunc(ret, params...)), nil
	case *sema.Named:
		if lt, ok := structLookup(mangle.Instantiation(v.Base, v.TypeArgs)); ok {
			return lt, nil
		}
		return nil, diag.New(diag.UnknownSymbol, "no emitted LLVM type for %q; GenericInstantiator must run first", v.Base)
	case *sema.Generic:
		return nil, diag.New(diag.UnresolvedGeneric, "unresolved generic parameter %q reached TypeEmitter", v.Param)
	default:
		return nil, diag.New(diag.InternalInvariant, "unhandled semantic type in LLVMType: %T", t)
	}
}

func primitiveLLVMType(k sema.PrimitiveKind) (types.Type, *diag.CodegenError) {
	switch k {
	case sema.I8, sema.U8:
		return types.I8, nil
	case sema.I16, sema.U16:
		return types.I16, nil
	case sema.I32, sema.U32:
		return types.I32, nil
	case sema.I64, sema.U64:
		return types.I64, nil
	case sema.I128, sema.U128:
		return types.I128, nil
	case sema.F32:
		return types.Float, nil
	case sema.F64:
		return types.Double, nil
	case sema.Bool:
		return types.I1, nil
	case sema.Char:
		return types.I32, nil
	case sema.Str:
		return types.NewPointer(types.I8), nil
	case sema.Unit:
		return UnitType, nil
	case sema.Never:
		return types.Void, nil
	default:
		return nil, diag.New(diag.InternalInvariant, "unhandled primitive kind %q", k)
	}
}
