package fixture

import (
	"fmt"

	"github.com/tmlang/tmlc/internal/sema"
)

type wireSpan struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (w wireSpan) toSema() sema.Span {
	return sema.Span{File: w.File, Line: w.Line, Column: w.Column}
}

type wireMatchArm struct {
	VariantName string    `json:"variant_name,omitempty"`
	Bindings    []string  `json:"bindings,omitempty"`
	Body        *wireExpr `json:"body"`
}

func (w wireMatchArm) toSema() (sema.MatchArm, error) {
	body, err := w.Body.toSema()
	if err != nil {
		return sema.MatchArm{}, err
	}
	return sema.MatchArm{VariantName: w.VariantName, Bindings: w.Bindings, Body: body}, nil
}

// wireExpr is a tagged union over every sema.Expr variant. Only the
// fields relevant to Kind are populated by the encoder on the other
// side; the rest are left zero.
type wireExpr struct {
	Kind string   `json:"kind"`
	Span wireSpan `json:"span,omitempty"`

	// literals
	IntValue    int64  `json:"int_value,omitempty"`
	FloatValue  float64 `json:"float_value,omitempty"`
	BoolValue   bool   `json:"bool_value,omitempty"`
	StrValue    string `json:"str_value,omitempty"`
	CharValue   rune   `json:"char_value,omitempty"`
	LitKind     string `json:"lit_kind,omitempty"` // constrains IntLit/FloatLit, "" means unconstrained

	Name string `json:"name,omitempty"` // Ident, Let, For.Binding

	Op      string    `json:"op,omitempty"` // BinOp, UnaryOp
	Left    *wireExpr `json:"left,omitempty"`
	Right   *wireExpr `json:"right,omitempty"`
	Operand *wireExpr `json:"operand,omitempty"`

	Type *wireType `json:"type,omitempty"` // Let
	Init *wireExpr `json:"init,omitempty"` // Let

	Target *wireExpr `json:"target,omitempty"` // Assign
	Value  *wireExpr `json:"value,omitempty"`  // Assign, Break, Return, Await, Try

	Body  []*wireExpr `json:"body,omitempty"`  // Block.Body
	Block *wireExpr   `json:"block,omitempty"` // If.Then, Loop/While/For.Body (always kind "block")

	Cond *wireExpr `json:"cond,omitempty"` // If.Cond, While.Cond
	Else *wireExpr `json:"else,omitempty"`

	Iter *wireExpr `json:"iter,omitempty"` // For.Iter

	TypeName    string      `json:"type_name,omitempty"` // ConstructStruct/Enum
	TypeArgs    []*wireType `json:"type_args,omitempty"`
	Fields      []*wireExpr `json:"fields,omitempty"` // ConstructStruct
	VariantName string      `json:"variant_name,omitempty"`
	Args        []*wireExpr `json:"args,omitempty"` // ConstructEnum, Call, MethodCall

	Receiver *wireExpr `json:"receiver,omitempty"` // FieldAccess, MethodCall
	Field    string    `json:"field,omitempty"`

	Callee string `json:"callee,omitempty"` // Call

	Method      string      `json:"method,omitempty"` // MethodCall
	MethodArgs  []*wireType `json:"method_args,omitempty"`
	SuperCall   bool        `json:"super_call,omitempty"`
	SuperTarget string      `json:"super_target,omitempty"`

	Subject *wireExpr      `json:"subject,omitempty"` // When
	Arms    []wireMatchArm `json:"arms,omitempty"`
}

func (w *wireExpr) toSema() (sema.Expr, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case "int_lit":
		var kindPtr *sema.PrimitiveKind
		if w.LitKind != "" {
			k, ok := sema.IsPrimitiveKind(w.LitKind)
			if !ok {
				return nil, fmt.Errorf("unknown int literal kind %q", w.LitKind)
			}
			kindPtr = &k
		}
		return &sema.IntLit{Value: w.IntValue, Kind: kindPtr, Span: w.Span.toSema()}, nil
	case "float_lit":
		var kindPtr *sema.PrimitiveKind
		if w.LitKind != "" {
			k, ok := sema.IsPrimitiveKind(w.LitKind)
			if !ok {
				return nil, fmt.Errorf("unknown float literal kind %q", w.LitKind)
			}
			kindPtr = &k
		}
		return &sema.FloatLit{Value: w.FloatValue, Kind: kindPtr, Span: w.Span.toSema()}, nil
	case "bool_lit":
		return &sema.BoolLit{Value: w.BoolValue, Span: w.Span.toSema()}, nil
	case "str_lit":
		return &sema.StrLit{Value: w.StrValue, Span: w.Span.toSema()}, nil
	case "char_lit":
		return &sema.CharLit{Value: w.CharValue, Span: w.Span.toSema()}, nil
	case "unit_lit":
		return &sema.UnitLit{Span: w.Span.toSema()}, nil
	case "ident":
		return &sema.Ident{Name: w.Name, Span: w.Span.toSema()}, nil
	case "bin_op":
		left, err := w.Left.toSema()
		if err != nil {
			return nil, err
		}
		right, err := w.Right.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.BinOp{Op: w.Op, Left: left, Right: right, Span: w.Span.toSema()}, nil
	case "unary_op":
		operand, err := w.Operand.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.UnaryOp{Op: w.Op, Operand: operand, Span: w.Span.toSema()}, nil
	case "let":
		typ, err := w.Type.toSema()
		if err != nil {
			return nil, err
		}
		init, err := w.Init.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Let{Name: w.Name, Type: typ, Init: init, Span: w.Span.toSema()}, nil
	case "assign":
		target, err := w.Target.toSema()
		if err != nil {
			return nil, err
		}
		value, err := w.Value.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Assign{Target: target, Value: value, Span: w.Span.toSema()}, nil
	case "block":
		body := make([]sema.Expr, len(w.Body))
		for i, e := range w.Body {
			se, err := e.toSema()
			if err != nil {
				return nil, err
			}
			body[i] = se
		}
		return &sema.Block{Body: body, Span: w.Span.toSema()}, nil
	case "if":
		cond, err := w.Cond.toSema()
		if err != nil {
			return nil, err
		}
		then, err := w.Block.toSema()
		if err != nil {
			return nil, err
		}
		thenBlock, ok := then.(*sema.Block)
		if !ok {
			return nil, fmt.Errorf("if.block must encode a block expression")
		}
		elseExpr, err := w.Else.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.If{Cond: cond, Then: thenBlock, Else: elseExpr, Span: w.Span.toSema()}, nil
	case "loop":
		body, err := w.Block.toSema()
		if err != nil {
			return nil, err
		}
		b, ok := body.(*sema.Block)
		if !ok {
			return nil, fmt.Errorf("loop.block must encode a block expression")
		}
		return &sema.Loop{Body: b, Span: w.Span.toSema()}, nil
	case "while":
		cond, err := w.Cond.toSema()
		if err != nil {
			return nil, err
		}
		body, err := w.Block.toSema()
		if err != nil {
			return nil, err
		}
		b, ok := body.(*sema.Block)
		if !ok {
			return nil, fmt.Errorf("while.block must encode a block expression")
		}
		return &sema.While{Cond: cond, Body: b, Span: w.Span.toSema()}, nil
	case "for":
		iter, err := w.Iter.toSema()
		if err != nil {
			return nil, err
		}
		body, err := w.Block.toSema()
		if err != nil {
			return nil, err
		}
		b, ok := body.(*sema.Block)
		if !ok {
			return nil, fmt.Errorf("for.block must encode a block expression")
		}
		return &sema.For{Binding: w.Name, Iter: iter, Body: b, Span: w.Span.toSema()}, nil
	case "break":
		value, err := w.Value.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Break{Value: value, Span: w.Span.toSema()}, nil
	case "continue":
		return &sema.Continue{Span: w.Span.toSema()}, nil
	case "return":
		value, err := w.Value.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Return{Value: value, Span: w.Span.toSema()}, nil
	case "construct_struct":
		args, err := toTypeSlice(w.TypeArgs)
		if err != nil {
			return nil, err
		}
		fields := make([]sema.Expr, len(w.Fields))
		for i, e := range w.Fields {
			se, err := e.toSema()
			if err != nil {
				return nil, err
			}
			fields[i] = se
		}
		return &sema.ConstructStruct{TypeName: w.TypeName, TypeArgs: args, Fields: fields, Span: w.Span.toSema()}, nil
	case "construct_enum":
		args, err := toTypeSlice(w.TypeArgs)
		if err != nil {
			return nil, err
		}
		exprArgs := make([]sema.Expr, len(w.Args))
		for i, e := range w.Args {
			se, err := e.toSema()
			if err != nil {
				return nil, err
			}
			exprArgs[i] = se
		}
		return &sema.ConstructEnum{TypeName: w.TypeName, TypeArgs: args, VariantName: w.VariantName, Args: exprArgs, Span: w.Span.toSema()}, nil
	case "field_access":
		recv, err := w.Receiver.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.FieldAccess{Receiver: recv, Field: w.Field, Span: w.Span.toSema()}, nil
	case "call":
		args, err := toTypeSlice(w.TypeArgs)
		if err != nil {
			return nil, err
		}
		exprArgs := make([]sema.Expr, len(w.Args))
		for i, e := range w.Args {
			se, err := e.toSema()
			if err != nil {
				return nil, err
			}
			exprArgs[i] = se
		}
		return &sema.Call{Callee: w.Callee, TypeArgs: args, Args: exprArgs, Span: w.Span.toSema()}, nil
	case "method_call":
		recv, err := w.Receiver.toSema()
		if err != nil {
			return nil, err
		}
		methodArgs, err := toTypeSlice(w.MethodArgs)
		if err != nil {
			return nil, err
		}
		exprArgs := make([]sema.Expr, len(w.Args))
		for i, e := range w.Args {
			se, err := e.toSema()
			if err != nil {
				return nil, err
			}
			exprArgs[i] = se
		}
		return &sema.MethodCall{
			Receiver:    recv,
			Method:      w.Method,
			MethodArgs:  methodArgs,
			Args:        exprArgs,
			SuperCall:   w.SuperCall,
			SuperTarget: w.SuperTarget,
			Span:        w.Span.toSema(),
		}, nil
	case "when":
		subject, err := w.Subject.toSema()
		if err != nil {
			return nil, err
		}
		arms := make([]sema.MatchArm, len(w.Arms))
		for i, wa := range w.Arms {
			a, err := wa.toSema()
			if err != nil {
				return nil, err
			}
			arms[i] = a
		}
		return &sema.When{Subject: subject, Arms: arms, Span: w.Span.toSema()}, nil
	case "await":
		value, err := w.Value.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Await{Value: value, Span: w.Span.toSema()}, nil
	case "try":
		value, err := w.Value.toSema()
		if err != nil {
			return nil, err
		}
		return &sema.Try{Value: value, Span: w.Span.toSema()}, nil
	default:
		return nil, fmt.Errorf("unknown expr kind %q", w.Kind)
	}
}
