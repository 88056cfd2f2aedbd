package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/codegen/instantiate"
	"github.com/tmlang/tmlc/internal/codegen/mangle"
	"github.com/tmlang/tmlc/internal/codegen/registry"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

func constantI32(v int64) *constant.Int { return constant.NewInt(types.I32, v) }

// lowerBinOp dispatches arithmetic/comparison by operand primitive kind
// (spec §4.7: "signed/unsigned/float dispatch per primitive kind") and
// lowers && / || with real short-circuit control flow.
func (lw *Lowerer) lowerBinOp(v *sema.BinOp) result {
	if v.Op == "&&" || v.Op == "||" {
		return lw.lowerShortCircuit(v)
	}

	left := lw.Lower(v.Left)
	right := lw.Lower(v.Right)
	kind := primitiveKindOf(left.typ)

	switch v.Op {
	case "+":
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFAdd(left.value, right.value), typ: left.typ}
		}
		return result{value: lw.block.NewAdd(left.value, right.value), typ: left.typ}
	case "-":
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFSub(left.value, right.value), typ: left.typ}
		}
		return result{value: lw.block.NewSub(left.value, right.value), typ: left.typ}
	case "*":
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFMul(left.value, right.value), typ: left.typ}
		}
		return result{value: lw.block.NewMul(left.value, right.value), typ: left.typ}
	case "/":
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFDiv(left.value, right.value), typ: left.typ}
		}
		if sema.IsUnsignedInt(kind) {
			return result{value: lw.block.NewUDiv(left.value, right.value), typ: left.typ}
		}
		return result{value: lw.block.NewSDiv(left.value, right.value), typ: left.typ}
	case "%":
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFRem(left.value, right.value), typ: left.typ}
		}
		if sema.IsUnsignedInt(kind) {
			return result{value: lw.block.NewURem(left.value, right.value), typ: left.typ}
		}
		return result{value: lw.block.NewSRem(left.value, right.value), typ: left.typ}
	case "==", "!=", "<", "<=", ">", ">=":
		return lw.lowerComparison(v.Op, left, right, kind)
	default:
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "unhandled binary operator %q", v.Op))
		return unitResult()
	}
}

func (lw *Lowerer) lowerComparison(op string, left, right result, kind sema.PrimitiveKind) result {
	boolTyp := sema.Type(&sema.Primitive{Kind: sema.Bool})
	if sema.IsFloat(kind) {
		pred, ok := fpreds[op]
		if !ok {
			lw.Errors.Add(diag.New(diag.InternalInvariant, "unhandled float comparison %q", op))
			return unitResult()
		}
		return result{value: lw.block.NewFCmp(pred, left.value, right.value), typ: boolTyp}
	}
	preds := ipredsSigned
	if sema.IsUnsignedInt(kind) || kind == sema.Bool || kind == sema.Char {
		preds = ipredsUnsigned
	}
	pred, ok := preds[op]
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "unhandled comparison %q", op))
		return unitResult()
	}
	return result{value: lw.block.NewICmp(pred, left.value, right.value), typ: boolTyp}
}

var fpreds = map[string]enum.FPred{
	"==": enum.FPredOEQ, "!=": enum.FPredONE,
	"<": enum.FPredOLT, "<=": enum.FPredOLE,
	">": enum.FPredOGT, ">=": enum.FPredOGE,
}

var ipredsSigned = map[string]enum.IPred{
	"==": enum.IPredEQ, "!=": enum.IPredNE,
	"<": enum.IPredSLT, "<=": enum.IPredSLE,
	">": enum.IPredSGT, ">=": enum.IPredSGE,
}

var ipredsUnsigned = map[string]enum.IPred{
	"==": enum.IPredEQ, "!=": enum.IPredNE,
	"<": enum.IPredULT, "<=": enum.IPredULE,
	">": enum.IPredUGT, ">=": enum.IPredUGE,
}

func primitiveKindOf(t sema.Type) sema.PrimitiveKind {
	if p, ok := t.(*sema.Primitive); ok {
		return p.Kind
	}
	return sema.I32
}

// lowerShortCircuit lowers && and || with real branching so the right
// operand is only evaluated when it can affect the result.
func (lw *Lowerer) lowerShortCircuit(v *sema.BinOp) result {
	left := lw.Lower(v.Left)
	rhsBlock := lw.newBlock("sc.rhs")
	joinBlock := lw.newBlock("sc.join")
	entryBlock := lw.block

	resultSlot := entryBlock.NewAlloca(types.I1)
	resultSlot.SetName("sc.result.addr")

	if v.Op == "&&" {
		lw.block.NewStore(constant.False, resultSlot)
		lw.block.NewCondBr(left.value, rhsBlock, joinBlock)
	} else {
		lw.block.NewStore(constant.True, resultSlot)
		lw.block.NewCondBr(left.value, joinBlock, rhsBlock)
	}

	lw.block = rhsBlock
	right := lw.Lower(v.Right)
	lw.block.NewStore(right.value, resultSlot)
	lw.block.NewBr(joinBlock)

	lw.block = joinBlock
	loaded := lw.block.NewLoad(types.I1, resultSlot)
	return result{value: loaded, typ: &sema.Primitive{Kind: sema.Bool}}
}

// lowerUnaryOp handles negation, logical not, address-of (shared/mut),
// and pointer dereference.
func (lw *Lowerer) lowerUnaryOp(v *sema.UnaryOp) result {
	switch v.Op {
	case "&", "&mut":
		addr, typ, err := lw.addressOf(v.Operand)
		if err != nil {
			lw.Errors.Add(err)
			return unitResult()
		}
		return result{value: addr, typ: &sema.Ref{IsMut: v.Op == "&mut", Inner: typ}}
	case "*":
		operand := lw.Lower(v.Operand)
		inner := operand.typ
		var pointee sema.Type
		switch it := inner.(type) {
		case *sema.Ptr:
			pointee = it.Inner
		case *sema.Ref:
			pointee = it.Inner
		default:
			lw.Errors.Add(diag.New(diag.InternalInvariant, "cannot dereference non-pointer type %s", inner.String()))
			return unitResult()
		}
		pointeeT, terr := lw.llvmType(pointee)
		if terr != nil {
			lw.Errors.Add(terr)
			return unitResult()
		}
		loaded := lw.block.NewLoad(pointeeT, operand.value)
		return result{value: loaded, typ: pointee}
	case "-":
		operand := lw.Lower(v.Operand)
		kind := primitiveKindOf(operand.typ)
		if sema.IsFloat(kind) {
			return result{value: lw.block.NewFNeg(operand.value), typ: operand.typ}
		}
		zero := constant.NewInt(operand.value.Type().(*types.IntType), 0)
		return result{value: lw.block.NewSub(zero, operand.value), typ: operand.typ}
	case "!":
		operand := lw.Lower(v.Operand)
		return result{value: lw.block.NewXor(operand.value, constant.True), typ: &sema.Primitive{Kind: sema.Bool}}
	default:
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "unhandled unary operator %q", v.Op))
		return unitResult()
	}
}

// addressOf returns the pointer (an existing alloca slot) backing e,
// along with e's semantic type, without loading it.
func (lw *Lowerer) addressOf(e sema.Expr) (ir.Value, sema.Type, *diag.CodegenError) {
	switch t := e.(type) {
	case *sema.Ident:
		l, ok := lw.locals[t.Name]
		if !ok {
			return nil, nil, diag.NewAt(diag.UnknownSymbol, toDiagSpan(t.Span), "unknown local %q", t.Name)
		}
		return l.slot, l.typ, nil
	case *sema.FieldAccess:
		return lw.fieldAddr(t)
	default:
		return nil, nil, diag.New(diag.InternalInvariant, "cannot take address of %T", e)
	}
}

// fieldAddr resolves a FieldAccess to the GEP address of the field and
// its semantic type, used by both reads and assignment targets.
func (lw *Lowerer) fieldAddr(fa *sema.FieldAccess) (ir.Value, sema.Type, *diag.CodegenError) {
	recvAddr, recvTyp, err := lw.addressOf(fa.Receiver)
	if err != nil {
		// Receiver isn't itself an lvalue (e.g. a call result); fall back
		// to lowering it as a value and spilling to a temporary so the
		// field can still be addressed.
		recvVal := lw.Lower(fa.Receiver)
		recvTyp = recvVal.typ
		recvAddr = lw.storeFresh(recvVal.value, "field.recv", recvTyp)
	}
	named, ok := derefNamed(recvTyp)
	if !ok {
		return nil, nil, diag.New(diag.InternalInvariant, "field access on non-struct type %s", recvTyp.String())
	}
	fields, ferr := lw.Reg.StructFields(named.Base)
	if ferr != nil {
		return nil, nil, ferr
	}
	for _, f := range fields {
		if f.Name == fa.Field {
			structT, terr := lw.llvmType(recvTyp)
			if terr != nil {
				return nil, nil, terr
			}
			gep := lw.block.NewGetElementPtr(elemTypeOfPointerOrSelf(structT), recvAddr,
				constantI32(0), constantI32(int64(f.Index)))
			return gep, lw.resolvedType(f.Type), nil
		}
	}
	return nil, nil, diag.New(diag.UnknownSymbol, "unknown field %s on %s", fa.Field, named.Base)
}

func elemTypeOfPointerOrSelf(t types.Type) types.Type {
	if pt, ok := t.(*types.PointerType); ok {
		return pt.ElemType
	}
	return t
}

func derefNamed(t sema.Type) (*sema.Named, bool) {
	switch v := t.(type) {
	case *sema.Named:
		return v, true
	case *sema.Ptr:
		return derefNamed(v.Inner)
	case *sema.Ref:
		return derefNamed(v.Inner)
	default:
		return nil, false
	}
}

func (lw *Lowerer) lowerFieldAccess(v *sema.FieldAccess) result {
	addr, typ, err := lw.fieldAddr(v)
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	llvmT, terr := lw.llvmType(typ)
	if terr != nil {
		lw.Errors.Add(terr)
		return unitResult()
	}
	loaded := lw.block.NewLoad(llvmT, addr)
	return result{value: loaded, typ: typ}
}

// lowerConstructStruct drives GenericInstantiator to materialize the
// (possibly generic) struct type, then stores each field initializer in
// declaration order and returns the aggregate loaded by value.
func (lw *Lowerer) lowerConstructStruct(v *sema.ConstructStruct) result {
	typeArgs := lw.resolveAll(v.TypeArgs)
	mangled, err := lw.Inst.RequireStructInstantiation(v.TypeName, typeArgs)
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	structT, ok := lw.Mod.TypeDefined(mangled)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "struct %q missing after instantiation", mangled))
		return unitResult()
	}
	slot := lw.block.NewAlloca(structT)
	slot.SetName("struct." + mangled + ".addr")
	for i, fieldExpr := range v.Fields {
		val := lw.Lower(fieldExpr)
		gep := lw.block.NewGetElementPtr(structT, slot, constantI32(0), constantI32(int64(i)))
		lw.block.NewStore(val.value, gep)
	}
	loaded := lw.block.NewLoad(structT, slot)
	return result{value: loaded, typ: &sema.Named{Base: v.TypeName, TypeArgs: typeArgs}}
}

// lowerConstructEnum builds the `{ i32 tag, [N x i64] payload }` value
// (spec §4.3/§4.7): store the tag, then bitcast the payload array to the
// variant's actual field layout and store each argument.
func (lw *Lowerer) lowerConstructEnum(v *sema.ConstructEnum) result {
	typeArgs := lw.resolveAll(v.TypeArgs)
	mangled, err := lw.Inst.RequireEnumInstantiation(v.TypeName, typeArgs)
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	enumT, ok := lw.Mod.TypeDefined(mangled)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "enum %q missing after instantiation", mangled))
		return unitResult()
	}
	tag, terr := lw.Reg.EnumTag(v.TypeName, v.VariantName)
	if terr != nil {
		lw.Errors.Add(terr)
		return unitResult()
	}

	slot := lw.block.NewAlloca(enumT)
	slot.SetName("enum." + mangled + ".addr")
	tagGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(0))
	lw.block.NewStore(constantI32(int64(tag)), tagGEP)

	if len(v.Args) > 0 && len(enumT.Fields) > 1 {
		argVals := make([]ir.Value, len(v.Args))
		argTypes := make([]types.Type, len(v.Args))
		for i, a := range v.Args {
			av := lw.Lower(a)
			argVals[i] = av.value
			argTypes[i] = av.value.Type()
		}
		payloadGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(1))
		variantStruct := types.NewStruct(argTypes...)
		typedPtr := lw.block.NewBitCast(payloadGEP, types.NewPointer(variantStruct))
		for i, av := range argVals {
			fieldGEP := lw.block.NewGetElementPtr(variantStruct, typedPtr, constantI32(0), constantI32(int64(i)))
			lw.block.NewStore(av, fieldGEP)
		}
	}

	loaded := lw.block.NewLoad(enumT, slot)
	return result{value: loaded, typ: &sema.Named{Base: v.TypeName, TypeArgs: typeArgs}}
}

// wrapPollReady builds a Poll[T]::Ready(val) tagged-union value for an
// async function's return path (spec §4.7: an `async fn` declared to
// return T actually has ABI return type Poll[T]; every exit produces
// Ready(v), never a bare T). No sema.ConstructEnum node exists for this
// implicit wrap, so the tag/payload store mirrors lowerConstructEnum
// directly instead of synthesizing one.
func (lw *Lowerer) wrapPollReady(val result) result {
	inner := lw.returnType
	if inner == nil {
		inner = &sema.Primitive{Kind: sema.Unit}
	}
	mangled, err := lw.Inst.RequireEnumInstantiation("Poll", []sema.Type{inner})
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	enumT, ok := lw.Mod.TypeDefined(mangled)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "enum %q missing after instantiation", mangled))
		return unitResult()
	}
	tag, terr := lw.Reg.EnumTag("Poll", "Ready")
	if terr != nil {
		lw.Errors.Add(terr)
		return unitResult()
	}

	slot := lw.block.NewAlloca(enumT)
	slot.SetName("enum." + mangled + ".addr")
	tagGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(0))
	lw.block.NewStore(constantI32(int64(tag)), tagGEP)

	if !val.isUnit() && len(enumT.Fields) > 1 {
		payloadGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(1))
		variantStruct := types.NewStruct(val.value.Type())
		typedPtr := lw.block.NewBitCast(payloadGEP, types.NewPointer(variantStruct))
		fieldGEP := lw.block.NewGetElementPtr(variantStruct, typedPtr, constantI32(0), constantI32(0))
		lw.block.NewStore(val.value, fieldGEP)
	}

	loaded := lw.block.NewLoad(enumT, slot)
	return result{value: loaded, typ: &sema.Named{Base: "Poll", TypeArgs: []sema.Type{inner}}}
}

func (lw *Lowerer) resolveAll(ts []sema.Type) []sema.Type {
	out := make([]sema.Type, len(ts))
	for i, t := range ts {
		out[i] = lw.resolvedType(t)
	}
	return out
}

// extractTag reads field 0 (the i32 discriminant) out of an in-register
// tagged-union value.
func (lw *Lowerer) extractTag(enumVal ir.Value) ir.Value {
	return lw.block.NewExtractValue(enumVal, 0)
}

// extractPayloadField spills enumVal to a temporary, bitcasts its payload
// array field to a single-field struct of want, and loads it -- the
// inverse of lowerConstructEnum's store side.
func (lw *Lowerer) extractPayloadField(enumVal ir.Value, index int, want types.Type) ir.Value {
	slot := lw.storeFreshRaw(enumVal)
	enumT := enumVal.Type()
	payloadGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(1))
	variantStruct := types.NewStruct(want)
	typedPtr := lw.block.NewBitCast(payloadGEP, types.NewPointer(variantStruct))
	fieldGEP := lw.block.NewGetElementPtr(variantStruct, typedPtr, constantI32(0), constantI32(int64(index)))
	return lw.block.NewLoad(want, fieldGEP)
}

func (lw *Lowerer) storeFreshRaw(v ir.Value) *ir.InstAlloca {
	slot := lw.block.NewAlloca(v.Type())
	lw.block.NewStore(v, slot)
	return slot
}

// lowerCall handles a free-function or builtin invocation, driving
// GenericInstantiator when Callee names a registered generic function.
func (lw *Lowerer) lowerCall(v *sema.Call) result {
	typeArgs := lw.resolveAll(v.TypeArgs)
	argVals := make([]ir.Value, len(v.Args))
	argTypes := make([]sema.Type, len(v.Args))
	for i, a := range v.Args {
		r := lw.Lower(a)
		argVals[i] = r.value
		argTypes[i] = r.typ
	}

	if len(typeArgs) > 0 {
		mangled, err := lw.Inst.RequireFuncInstantiation(v.Callee, typeArgs)
		if err != nil {
			lw.Errors.Add(err)
			return unitResult()
		}
		return lw.emitCall(mangled, argVals)
	}

	if f, ok := lw.Mod.FuncDefined(v.Callee); ok {
		retTyp := lw.FuncReturnTypes[v.Callee]
		if retTyp == nil {
			retTyp = &sema.Primitive{Kind: sema.Unit}
		}
		return result{value: lw.block.NewCall(f, argVals...), typ: retTyp}
	}

	if sig, err := lw.Reg.ResolveOverload(v.Callee, argTypes); err == nil {
		return lw.emitCall(v.Callee, argVals, withBuiltinReturn(sig.Return))
	}

	lw.Errors.Add(diag.NewAt(diag.UnknownSymbol, toDiagSpan(v.Span), "unknown callee %q", v.Callee))
	return unitResult()
}

type callOpt func(*callOpts)
type callOpts struct{ ret sema.Type }

func withBuiltinReturn(t sema.Type) callOpt { return func(o *callOpts) { o.ret = t } }

func (lw *Lowerer) emitCall(mangledName string, args []ir.Value, opts ...callOpt) result {
	o := &callOpts{ret: &sema.Primitive{Kind: sema.Unit}}
	for _, opt := range opts {
		opt(o)
	}
	f, ok := lw.Mod.FuncDefined(mangledName)
	if !ok {
		lw.Errors.Add(diag.New(diag.UnknownSymbol, "call to undeclared function %q", mangledName))
		return unitResult()
	}
	call := lw.block.NewCall(f, args...)
	return result{value: call, typ: o.ret}
}

// lowerMethodCall resolves dispatch per spec §4.7: a super-call is
// statically bound to the mangled supertype method; otherwise it
// resolves against the receiver's concrete named type.
func (lw *Lowerer) lowerMethodCall(v *sema.MethodCall) result {
	recv := lw.Lower(v.Receiver)
	argVals := make([]ir.Value, 0, len(v.Args)+1)
	recvSlot := lw.storeFresh(recv.value, "recv", recv.typ)
	argVals = append(argVals, recvSlot)
	for _, a := range v.Args {
		r := lw.Lower(a)
		argVals = append(argVals, r.value)
	}

	if v.SuperCall {
		mangled := mangle.Method(v.SuperTarget, v.Method, lw.resolveAll(v.MethodArgs))
		return lw.emitCall(mangled, argVals)
	}

	named, ok := derefNamed(recv.typ)
	if !ok {
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "method call on non-struct/enum receiver type %s", recv.typ.String()))
		return unitResult()
	}
	res, err := lw.callMethodByName(named, v.Method, argVals)
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	return res
}

// callMethodByName resolves and emits a call to named.Base's method,
// instantiating it (and its receiver type) first if needed.
func (lw *Lowerer) callMethodByName(named *sema.Named, method string, args []ir.Value) (result, *diag.CodegenError) {
	mangledReceiver := mangle.Instantiation(named.Base, lw.resolveAll(named.TypeArgs))
	receiverSubst, serr := buildReceiverSubst(lw.Reg, named)
	if serr != nil {
		return result{}, serr
	}
	mangled, err := lw.Inst.RequireMethodInstantiation(named.Base, mangledReceiver, method, receiverSubst, nil)
	if err != nil {
		return result{}, err
	}
	retTyp := sema.Type(&sema.Primitive{Kind: sema.Unit})
	if decl, ok := lw.Inst.MethodDecl(named.Base, method); ok && decl.Return != nil {
		retTyp = instantiate.Substitute(decl.Return, receiverSubst)
	}
	return lw.emitCall(mangled, args, withBuiltinReturn(retTyp)), nil
}

func buildReceiverSubst(reg *registry.Registry, named *sema.Named) (map[string]sema.Type, *diag.CodegenError) {
	s, ok := reg.Struct(named.Base)
	if !ok || len(s.TypeParams) == 0 {
		return nil, nil
	}
	if len(s.TypeParams) != len(named.TypeArgs) {
		return nil, diag.New(diag.InternalInvariant, "receiver %q type-arg arity mismatch", named.Base)
	}
	m := make(map[string]sema.Type, len(s.TypeParams))
	for i, p := range s.TypeParams {
		m[p.Name] = named.TypeArgs[i]
	}
	return m, nil
}

// dropIfNeeded emits `call void @<Base>__drop(ptr %local.addr)` when
// local's type is a Named type implementing the Drop behavior.
func (lw *Lowerer) dropIfNeeded(l *local) {
	named, ok := derefNamed(l.typ)
	if !ok {
		return
	}
	if !lw.Reg.Implements(named.Base, "Drop") {
		return
	}
	if _, err := lw.callMethodByName(named, "drop", []ir.Value{l.slot}); err != nil {
		lw.Errors.Add(err)
	}
}

// lowerAwait unwraps a Poll[T] value synchronously (spec §4.7/§9:
// "await is synchronous; there is no scheduler"): it extracts the payload
// as if the tag were Ready (0). The tag is not checked, so a Pending value
// is not propagated; its payload bytes are read instead. block_on is identical at the
// expression-lowering level since there is nothing to schedule.
func (lw *Lowerer) lowerAwait(v *sema.Await) result {
	val := lw.Lower(v.Value)
	itemTyp := lw.elementTypeOf(val.typ)
	itemT := mustLLVMType(lw, itemTyp)
	payload := lw.extractPayloadField(val.value, 0, itemT)
	return result{value: payload, typ: itemTyp}
}

// lowerTry implements `expr!` (spec §4.7): on Err, return early with the
// error re-wrapped in the function's own Outcome return type; on Ok,
// unwrap and continue.
func (lw *Lowerer) lowerTry(v *sema.Try) result {
	val := lw.Lower(v.Value)
	named, ok := val.typ.(*sema.Named)
	if !ok || named.Base != "Outcome" || len(named.TypeArgs) != 2 {
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "`!` applied to non-Outcome type %s", val.typ.String()))
		return unitResult()
	}
	okTyp, errTyp := named.TypeArgs[0], named.TypeArgs[1]

	tag := lw.extractTag(val.value)
	isOk := lw.block.NewICmp(enum.IPredEQ, tag, constantI32(0))
	okBlock := lw.newBlock("try.ok")
	errBlock := lw.newBlock("try.err")
	lw.block.NewCondBr(isOk, okBlock, errBlock)

	lw.block = errBlock
	errVal := lw.extractPayloadField(val.value, 0, mustLLVMType(lw, errTyp))
	lw.unwindAllScopes()
	wrapped := lw.wrapOutcomeErr(errVal, errTyp)
	lw.block.NewRet(wrapped)

	lw.block = okBlock
	okVal := lw.extractPayloadField(val.value, 0, mustLLVMType(lw, okTyp))
	return result{value: okVal, typ: okTyp}
}

// wrapOutcomeErr rebuilds an Outcome[_, E]::Err(errVal) matching the
// enclosing function's declared return type, for `!`'s early-return path.
func (lw *Lowerer) wrapOutcomeErr(errVal ir.Value, errTyp sema.Type) ir.Value {
	retNamed, ok := lw.returnType.(*sema.Named)
	if !ok {
		return errVal
	}
	mangled, ierr := lw.Inst.RequireEnumInstantiation(retNamed.Base, lw.resolveAll(retNamed.TypeArgs))
	if ierr != nil {
		lw.Errors.Add(ierr)
		return errVal
	}
	enumT, ok := lw.Mod.TypeDefined(mangled)
	if !ok {
		return errVal
	}
	tag, terr := lw.Reg.EnumTag(retNamed.Base, "Err")
	if terr != nil {
		lw.Errors.Add(terr)
		return errVal
	}
	slot := lw.block.NewAlloca(enumT)
	tagGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(0))
	lw.block.NewStore(constantI32(int64(tag)), tagGEP)
	if len(enumT.Fields) > 1 {
		payloadGEP := lw.block.NewGetElementPtr(enumT, slot, constantI32(0), constantI32(1))
		variantStruct := types.NewStruct(errVal.Type())
		typedPtr := lw.block.NewBitCast(payloadGEP, types.NewPointer(variantStruct))
		fieldGEP := lw.block.NewGetElementPtr(variantStruct, typedPtr, constantI32(0), constantI32(0))
		lw.block.NewStore(errVal, fieldGEP)
	}
	return lw.block.NewLoad(enumT, slot)
}

// coerceTo applies sign/zero-extension or truncation between integer
// kinds, and substitutes a struct/pointer zero value when val is Unit but
// target expects a zero-initialized aggregate (spec §4.7 "return-type
// coercion").
func (lw *Lowerer) coerceTo(val result, target sema.Type) ir.Value {
	if target == nil {
		return val.value
	}
	targetT, err := lw.llvmType(target)
	if err != nil {
		lw.Errors.Add(err)
		return val.value
	}
	if val.isUnit() {
		return constant.NewZeroInitializer(targetT)
	}
	srcIT, srcOK := val.value.Type().(*types.IntType)
	dstIT, dstOK := targetT.(*types.IntType)
	if srcOK && dstOK && srcIT.BitSize != dstIT.BitSize {
		srcKind := primitiveKindOf(val.typ)
		if srcIT.BitSize < dstIT.BitSize {
			if sema.IsSignedInt(srcKind) {
				return lw.block.NewSExt(val.value, dstIT)
			}
			return lw.block.NewZExt(val.value, dstIT)
		}
		return lw.block.NewTrunc(val.value, dstIT)
	}
	return val.value
}

// wrappedReturnType returns the function's declared return type, wrapped
// in Poll[T] for async functions (spec §4.7 "Poll[T] return-type
// wrapping"); ExprLowerer's caller (the top-level orchestrator) is
// responsible for declaring the function itself with the wrapped type,
// this just keeps Return-coercion consistent with it.
func (lw *Lowerer) wrappedReturnType() sema.Type {
	if !lw.isAsync {
		return lw.returnType
	}
	inner := lw.returnType
	if inner == nil {
		inner = &sema.Primitive{Kind: sema.Unit}
	}
	return &sema.Named{Base: "Poll", TypeArgs: []sema.Type{inner}}
}
