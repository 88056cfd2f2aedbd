// Package fixture decodes a front-end-shaped JSON document into a
// *sema.Module. No real front-end ships with this repository (see
// SPEC_FULL.md §6), so cmd/tmlc reads fixtures in this wire format as
// its input instead of lexing/parsing source text itself.
package fixture

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tmlang/tmlc/internal/sema"
)

// Decode reads one JSON module document from r and converts it to a
// *sema.Module. The JSON shape mirrors internal/sema's own types field
// for field, with union types (sema.Type, sema.Expr) disambiguated by a
// "kind" string.
func Decode(r io.Reader) (*sema.Module, error) {
	var w wireModule
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("fixture: decoding module: %w", err)
	}
	return w.toSema()
}

type wireModule struct {
	Name      string         `json:"name"`
	Structs   []wireStruct   `json:"structs"`
	Enums     []wireEnum     `json:"enums"`
	Behaviors []wireBehavior `json:"behaviors"`
	Impls     []wireImpl     `json:"impls"`
	Funcs     []wireFunc     `json:"funcs"`
}

func (w *wireModule) toSema() (*sema.Module, error) {
	mod := &sema.Module{Name: w.Name}
	for i := range w.Structs {
		s, err := w.Structs[i].toSema()
		if err != nil {
			return nil, fmt.Errorf("struct %d: %w", i, err)
		}
		mod.Structs = append(mod.Structs, s)
	}
	for i := range w.Enums {
		e, err := w.Enums[i].toSema()
		if err != nil {
			return nil, fmt.Errorf("enum %d: %w", i, err)
		}
		mod.Enums = append(mod.Enums, e)
	}
	for i := range w.Behaviors {
		b, err := w.Behaviors[i].toSema()
		if err != nil {
			return nil, fmt.Errorf("behavior %d: %w", i, err)
		}
		mod.Behaviors = append(mod.Behaviors, b)
	}
	for i := range w.Impls {
		impl, err := w.Impls[i].toSema()
		if err != nil {
			return nil, fmt.Errorf("impl %d: %w", i, err)
		}
		mod.Impls = append(mod.Impls, impl)
	}
	for i := range w.Funcs {
		f, err := w.Funcs[i].toSema()
		if err != nil {
			return nil, fmt.Errorf("func %d: %w", i, err)
		}
		mod.Funcs = append(mod.Funcs, f)
	}
	return mod, nil
}

// --- types ---

type wireTypeParam struct {
	Name   string   `json:"name"`
	Bounds []string `json:"bounds,omitempty"`
}

func (w wireTypeParam) toSema() sema.TypeParam {
	return sema.TypeParam{Name: w.Name, Bounds: w.Bounds}
}

func toTypeParams(ws []wireTypeParam) []sema.TypeParam {
	out := make([]sema.TypeParam, len(ws))
	for i, w := range ws {
		out[i] = w.toSema()
	}
	return out
}

// wireType is a tagged union over every sema.Type variant, disambiguated
// by Kind: "primitive", "named", "generic", "ref", "ptr", "tuple", "function".
type wireType struct {
	Kind string `json:"kind"`

	PrimitiveKind string `json:"primitive_kind,omitempty"`

	Base       string      `json:"base,omitempty"`
	ModulePath string      `json:"module_path,omitempty"`
	TypeArgs   []*wireType `json:"type_args,omitempty"`

	Param string `json:"param,omitempty"`

	IsMut bool      `json:"is_mut,omitempty"`
	Inner *wireType `json:"inner,omitempty"`

	Elements []*wireType `json:"elements,omitempty"`

	Params  []*wireType `json:"params,omitempty"`
	Return  *wireType   `json:"return,omitempty"`
	IsAsync bool        `json:"is_async,omitempty"`
}

func (w *wireType) toSema() (sema.Type, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case "primitive":
		kind, ok := sema.IsPrimitiveKind(w.PrimitiveKind)
		if !ok {
			return nil, fmt.Errorf("unknown primitive kind %q", w.PrimitiveKind)
		}
		return &sema.Primitive{Kind: kind}, nil
	case "named":
		args, err := toTypeSlice(w.TypeArgs)
		if err != nil {
			return nil, err
		}
		return &sema.Named{Base: w.Base, ModulePath: w.ModulePath, TypeArgs: args}, nil
	case "generic":
		return &sema.Generic{Param: w.Param}, nil
	case "ref":
		inner, err := w.Inner.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Ref{IsMut: w.IsMut, Inner: inner}, nil
	case "ptr":
		inner, err := w.Inner.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Ptr{IsMut: w.IsMut, Inner: inner}, nil
	case "tuple":
		elems, err := toTypeSlice(w.Elements)
		if err != nil {
			return nil, err
		}
		return &sema.Tuple{Elements: elems}, nil
	case "function":
		params, err := toTypeSlice(w.Params)
		if err != nil {
			return nil, err
		}
		ret, err := w.Return.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Function{Params: params, Return: ret, IsAsync: w.IsAsync}, nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", w.Kind)
	}
}

func toTypeSlice(ws []*wireType) ([]sema.Type, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]sema.Type, len(ws))
	for i, w := range ws {
		t, err := w.toSema()
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// --- declarations ---

type wireField struct {
	Name string    `json:"name"`
	Type *wireType `json:"type"`
}

func (w wireField) toSema() (sema.Field, error) {
	t, err := w.Type.toSema()
	if err != nil {
		return sema.Field{}, err
	}
	return sema.Field{Name: w.Name, Type: t}, nil
}

type wireStruct struct {
	Name       string          `json:"name"`
	TypeParams []wireTypeParam `json:"type_params,omitempty"`
	Fields     []wireField     `json:"fields,omitempty"`
}

func (w *wireStruct) toSema() (*sema.StructDef, error) {
	fields := make([]sema.Field, len(w.Fields))
	for i, wf := range w.Fields {
		f, err := wf.toSema()
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return &sema.StructDef{Name: w.Name, TypeParams: toTypeParams(w.TypeParams), Fields: fields}, nil
}

type wireVariantFields struct {
	Tuple  []*wireType `json:"tuple,omitempty"`
	Struct []wireField `json:"struct,omitempty"`
}

func (w wireVariantFields) toSema() (sema.VariantFields, error) {
	tuple, err := toTypeSlice(w.Tuple)
	if err != nil {
		return sema.VariantFields{}, err
	}
	fields := make([]sema.Field, len(w.Struct))
	for i, wf := range w.Struct {
		f, err := wf.toSema()
		if err != nil {
			return sema.VariantFields{}, err
		}
		fields[i] = f
	}
	return sema.VariantFields{Tuple: tuple, Struct: fields}, nil
}

type wireVariant struct {
	Name   string            `json:"name"`
	Fields wireVariantFields `json:"fields,omitempty"`
}

func (w wireVariant) toSema() (sema.Variant, error) {
	fields, err := w.Fields.toSema()
	if err != nil {
		return sema.Variant{}, err
	}
	return sema.Variant{Name: w.Name, Fields: fields}, nil
}

type wireEnum struct {
	Name       string          `json:"name"`
	TypeParams []wireTypeParam `json:"type_params,omitempty"`
	Variants   []wireVariant   `json:"variants,omitempty"`
}

func (w *wireEnum) toSema() (*sema.EnumDef, error) {
	variants := make([]sema.Variant, len(w.Variants))
	for i, wv := range w.Variants {
		v, err := wv.toSema()
		if err != nil {
			return nil, err
		}
		variants[i] = v
	}
	return &sema.EnumDef{Name: w.Name, TypeParams: toTypeParams(w.TypeParams), Variants: variants}, nil
}

type wireMethodSig struct {
	Name       string          `json:"name"`
	TypeParams []wireTypeParam `json:"type_params,omitempty"`
	Params     []wireField     `json:"params,omitempty"`
	Return     *wireType       `json:"return,omitempty"`
}

func (w wireMethodSig) toSema() (sema.MethodSig, error) {
	params := make([]sema.Field, len(w.Params))
	for i, wf := range w.Params {
		f, err := wf.toSema()
		if err != nil {
			return sema.MethodSig{}, err
		}
		params[i] = f
	}
	ret, err := w.Return.toSema()
	if err != nil {
		return sema.MethodSig{}, err
	}
	return sema.MethodSig{Name: w.Name, TypeParams: toTypeParams(w.TypeParams), Params: params, Return: ret}, nil
}

type wireBehavior struct {
	Name            string          `json:"name"`
	TypeParams      []wireTypeParam `json:"type_params,omitempty"`
	AssociatedTypes []string        `json:"associated_types,omitempty"`
	Methods         []wireMethodSig `json:"methods,omitempty"`
	SuperBehaviors  []string        `json:"super_behaviors,omitempty"`
}

func (w *wireBehavior) toSema() (*sema.BehaviorDef, error) {
	methods := make([]sema.MethodSig, len(w.Methods))
	for i, wm := range w.Methods {
		m, err := wm.toSema()
		if err != nil {
			return nil, err
		}
		methods[i] = m
	}
	return &sema.BehaviorDef{
		Name:            w.Name,
		TypeParams:      toTypeParams(w.TypeParams),
		AssociatedTypes: w.AssociatedTypes,
		Methods:         methods,
		SuperBehaviors:  w.SuperBehaviors,
	}, nil
}

type wireWhereConstraint struct {
	TypeParam           string              `json:"type_param"`
	RequiredBehaviors   []string            `json:"required_behaviors,omitempty"`
	ParameterizedBounds map[string][]string `json:"parameterized_bounds,omitempty"`
}

func (w wireWhereConstraint) toSema() sema.WhereConstraint {
	return sema.WhereConstraint{
		TypeParam:           w.TypeParam,
		RequiredBehaviors:   w.RequiredBehaviors,
		ParameterizedBounds: w.ParameterizedBounds,
	}
}

type wireExternInfo struct {
	ABI    string `json:"abi"`
	Symbol string `json:"symbol,omitempty"`
}

type wireDecorators struct {
	ShouldPanic bool            `json:"should_panic,omitempty"`
	Extern      *wireExternInfo `json:"extern,omitempty"`
	LinkLibs    []string        `json:"link_libs,omitempty"`
	Test        bool            `json:"test,omitempty"`
}

func (w wireDecorators) toSema() sema.Decorators {
	d := sema.Decorators{ShouldPanic: w.ShouldPanic, LinkLibs: w.LinkLibs, Test: w.Test}
	if w.Extern != nil {
		d.Extern = &sema.ExternInfo{ABI: w.Extern.ABI, Symbol: w.Extern.Symbol}
	}
	return d
}

type wireParam struct {
	Name string    `json:"name"`
	Type *wireType `json:"type"`
}

func (w wireParam) toSema() (sema.Param, error) {
	t, err := w.Type.toSema()
	if err != nil {
		return sema.Param{}, err
	}
	return sema.Param{Name: w.Name, Type: t}, nil
}

type wireFunc struct {
	Visibility    string              `json:"visibility"` // "public" or "private"
	Name          string              `json:"name"`
	GenericParams []wireTypeParam     `json:"generic_params,omitempty"`
	Where         []wireWhereConstraint `json:"where,omitempty"`
	Params        []wireParam         `json:"params,omitempty"`
	Return        *wireType           `json:"return,omitempty"`
	IsAsync       bool                `json:"is_async,omitempty"`
	Body          *wireExpr           `json:"body,omitempty"`
	Decorators    wireDecorators      `json:"decorators,omitempty"`
	ReceiverName  string              `json:"receiver_name,omitempty"`
	ReceiverIsMut bool                `json:"receiver_is_mut,omitempty"`
}

func (w *wireFunc) toSema() (*sema.FuncDecl, error) {
	params := make([]sema.Param, len(w.Params))
	for i, wp := range w.Params {
		p, err := wp.toSema()
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	ret, err := w.Return.toSema()
	if err != nil {
		return nil, err
	}
	body, err := w.Body.toSema()
	if err != nil {
		return nil, err
	}
	where := make([]sema.WhereConstraint, len(w.Where))
	for i, ww := range w.Where {
		where[i] = ww.toSema()
	}
	vis := sema.Private
	if w.Visibility == "public" {
		vis = sema.Public
	}
	return &sema.FuncDecl{
		Visibility:    vis,
		Name:          w.Name,
		GenericParams: toTypeParams(w.GenericParams),
		Where:         where,
		Params:        params,
		Return:        ret,
		IsAsync:       w.IsAsync,
		Body:          body,
		Decorators:    w.Decorators.toSema(),
		ReceiverName:  w.ReceiverName,
		ReceiverIsMut: w.ReceiverIsMut,
	}, nil
}

type wireImpl struct {
	TargetType      *wireType            `json:"target_type"`
	BehaviorName    string               `json:"behavior_name,omitempty"`
	GenericParams   []wireTypeParam      `json:"generic_params,omitempty"`
	AssociatedTypes map[string]*wireType `json:"associated_types,omitempty"`
	Methods         []wireFunc           `json:"methods,omitempty"`
}

func (w *wireImpl) toSema() (*sema.ImplBlock, error) {
	target, err := w.TargetType.toSema()
	if err != nil {
		return nil, err
	}
	assoc := make(map[string]sema.Type, len(w.AssociatedTypes))
	for name, wt := range w.AssociatedTypes {
		t, err := wt.toSema()
		if err != nil {
			return nil, err
		}
		assoc[name] = t
	}
	methods := make([]*sema.FuncDecl, len(w.Methods))
	for i := range w.Methods {
		m, err := w.Methods[i].toSema()
		if err != nil {
			return nil, err
		}
		methods[i] = m
	}
	return &sema.ImplBlock{
		TargetType:      target,
		BehaviorName:    w.BehaviorName,
		GenericParams:   toTypeParams(w.GenericParams),
		AssociatedTypes: assoc,
		Methods:         methods,
	}, nil
}
