// Package layout implements spec §4.3 LayoutEngine: size/alignment
// computation for semantic types, including tagged-enum payload sizing
// recursed across nested generic instantiations.
package layout

import (
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// MaxPayloadBytes is the implementation cap named by spec §7
// (LayoutOverflow: "enum payload exceeds implementation cap (e.g. > 64 KiB)").
const MaxPayloadBytes = 64 * 1024

// sizeTable is the spec §4.3 byte-size table for primitive kinds.
var sizeTable = map[sema.PrimitiveKind]int{
	sema.Unit:  0,
	sema.I8:    1,
	sema.U8:    1,
	sema.Bool:  1,
	sema.I16:   2,
	sema.U16:   2,
	sema.I32:   4,
	sema.U32:   4,
	sema.F32:   4,
	sema.I64:   8,
	sema.U64:   8,
	sema.F64:   8,
	sema.I128:  16,
	sema.U128:  16,
	sema.Char:  4,
	sema.Never: 0,
}

const ptrSize = 8 // Ptr/Ref size, per spec §4.3.

// Engine is the LayoutEngine. It consults a Registry to resolve generic
// declarations during recursive sizing.
type Engine struct {
	reg *registry.Registry
}

// New creates a LayoutEngine backed by reg.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// SizeOf computes the size in bytes of t, substituting subst (may be nil)
// for any Generic placeholders encountered.
func (e *Engine) SizeOf(t sema.Type, subst map[string]sema.Type) (int, *diag.CodegenError) {
	t = resolve(t, subst)
	switch v := t.(type) {
	case *sema.Primitive:
		if v.Kind == sema.Str {
			return ptrSize, nil // fat-pointer-free str: ptr+len modeled as opaque ptr size here
		}
		sz, ok := sizeTable[v.Kind]
		if !ok {
			return 0, diag.New(diag.InternalInvariant, "no size table entry for primitive %q", v.Kind)
		}
		return sz, nil
	case *sema.Ptr:
		return ptrSize, nil
	case *sema.Ref:
		return ptrSize, nil
	case *sema.Tuple:
		total := 0
		for _, el := range v.Elements {
			sz, err := e.SizeOf(el, subst)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case *sema.Function:
		return ptrSize, nil
	case *sema.Named:
		return e.sizeOfNamed(v, subst)
	case *sema.Generic:
		return 0, diag.New(diag.UnresolvedGeneric, "unresolved generic parameter %q during layout", v.Param)
	default:
		return 0, diag.New(diag.InternalInvariant, "unhandled semantic type in SizeOf: %T", t)
	}
}

func (e *Engine) sizeOfNamed(n *sema.Named, outerSubst map[string]sema.Type) (int, *diag.CodegenError) {
	if s, ok := e.reg.Struct(n.Base); ok {
		innerSubst, err := substMap(s.TypeParams, n.TypeArgs, outerSubst)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, f := range s.Fields {
			sz, err := e.SizeOf(f.Type, innerSubst)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	}
	if en, ok := e.reg.Enum(n.Base); ok {
		sz, _, err := e.EnumLayout(en, n.TypeArgs, outerSubst)
		return sz, err
	}
	return 0, diag.New(diag.UnknownSymbol, "unknown named type %q during layout", n.Base)
}

// EnumLayout computes an enum's payload size and element count per spec
// §4.3: "payload size = max over variants of (sum of field sizes).
// Rounded up to multiple of 8" and "N = ceil(max_payload / 8)". It
// returns (totalSize, payloadElemCount, error); totalSize is 4 (the tag)
// plus 8*payloadElemCount, matching the `{ i32 tag, [N x i64] payload }`
// shape, or just 4 for a data-less enum (`{ i32 }`).
func (e *Engine) EnumLayout(def *sema.EnumDef, typeArgs []sema.Type, outerSubst map[string]sema.Type) (totalSize int, payloadElems int, err *diag.CodegenError) {
	subst, serr := substMap(def.TypeParams, typeArgs, outerSubst)
	if serr != nil {
		return 0, 0, serr
	}

	hasData := false
	maxPayload := 0
	for _, v := range def.Variants {
		if v.Fields.IsEmpty() {
			continue
		}
		hasData = true
		sum := 0
		for _, t := range v.Fields.Tuple {
			sz, err := e.SizeOf(t, subst)
			if err != nil {
				return 0, 0, err
			}
			sum += sz
		}
		for _, f := range v.Fields.Struct {
			sz, err := e.SizeOf(f.Type, subst)
			if err != nil {
				return 0, 0, err
			}
			sum += sz
		}
		if sum > maxPayload {
			maxPayload = sum
		}
	}

	if !hasData {
		return 4, 0, nil
	}
	if maxPayload > MaxPayloadBytes {
		return 0, 0, diag.New(diag.LayoutOverflow, "enum %q payload size %d exceeds cap of %d bytes", def.Name, maxPayload, MaxPayloadBytes)
	}
	n := (maxPayload + 7) / 8
	return 4 + n*8, n, nil
}

// resolve substitutes a Generic placeholder using subst, recursing into
// structural types so a nested `Ptr[T]` under a substitution for T also
// resolves.
func resolve(t sema.Type, subst map[string]sema.Type) sema.Type {
	if subst == nil {
		return t
	}
	switch v := t.(type) {
	case *sema.Generic:
		if r, ok := subst[v.Param]; ok {
			return r
		}
		return t
	case *sema.Ptr:
		return &sema.Ptr{IsMut: v.IsMut, Inner: resolve(v.Inner, subst)}
	case *sema.Ref:
		return &sema.Ref{IsMut: v.IsMut, Inner: resolve(v.Inner, subst)}
	case *sema.Tuple:
		elems := make([]sema.Type, len(v.Elements))
		for i, e := range v.Elements {
			elems[i] = resolve(e, subst)
		}
		return &sema.Tuple{Elements: elems}
	case *sema.Named:
		args := make([]sema.Type, len(v.TypeArgs))
		for i, a := range v.TypeArgs {
			args[i] = resolve(a, subst)
		}
		return &sema.Named{Base: v.Base, ModulePath: v.ModulePath, TypeArgs: args}
	default:
		return t
	}
}

// substMap builds a type-param -> type-arg substitution map for one
// generic declaration's parameters, resolving each argument against any
// outer (enclosing) substitution first so nested generics compose.
func substMap(params []sema.TypeParam, args []sema.Type, outer map[string]sema.Type) (map[string]sema.Type, *diag.CodegenError) {
	if len(params) != len(args) {
		return nil, diag.New(diag.InternalInvariant, "type-param/type-arg arity mismatch: %d params, %d args", len(params), len(args))
	}
	m := make(map[string]sema.Type, len(params))
	for i, p := range params {
		m[p.Name] = resolve(args[i], outer)
	}
	return m, nil
}
