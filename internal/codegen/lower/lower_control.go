package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// SetFunc points the lowerer at the function whose blocks it appends new
// basic blocks to (every control-flow construct below needs to allocate
// fresh blocks).
func (lw *Lowerer) SetFunc(f *ir.Func) { lw.fn = f }

func (lw *Lowerer) newBlock(name string) *ir.Block {
	return lw.fn.NewBlock(name)
}

// lowerLet allocates a stack slot for the binding, stores the
// initializer's value, and registers the local in both the locals table
// and the innermost drop scope (spec §3: "locals introduced since the
// scope was pushed, in declaration order").
func (lw *Lowerer) lowerLet(v *sema.Let) result {
	init := lw.Lower(v.Init)
	declared := init.typ
	if v.Type != nil {
		declared = lw.resolvedType(v.Type)
	}
	llvmT, err := lw.llvmType(declared)
	if err != nil {
		lw.Errors.Add(err)
		return unitResult()
	}
	slot := lw.block.NewAlloca(llvmT)
	slot.SetName(v.Name + ".addr")
	lw.block.NewStore(init.value, slot)
	lw.locals[v.Name] = &local{slot: slot, typ: declared}
	lw.pushDropCandidate(v.Name)
	return unitResult()
}

// lowerAssign stores into an existing place. Only simple identifier and
// field-access targets are supported, matching what the front-end's Let
// binding / struct-literal forms can produce as an lvalue.
func (lw *Lowerer) lowerAssign(v *sema.Assign) result {
	val := lw.Lower(v.Value)
	switch t := v.Target.(type) {
	case *sema.Ident:
		l, ok := lw.locals[t.Name]
		if !ok {
			lw.Errors.Add(diag.NewAt(diag.UnknownSymbol, toDiagSpan(t.Span), "unknown assignment target %q", t.Name))
			return unitResult()
		}
		lw.block.NewStore(val.value, l.slot)
	case *sema.FieldAccess:
		addr, _, err := lw.fieldAddr(t)
		if err != nil {
			lw.Errors.Add(err)
			return unitResult()
		}
		lw.block.NewStore(val.value, addr)
	default:
		lw.Errors.Add(diag.New(diag.InternalInvariant, "unsupported assignment target %T", v.Target))
	}
	return unitResult()
}

// lowerBlock pushes a drop scope, lowers each statement in order, and
// pops the scope on normal (fall-through) exit, firing drop calls in
// reverse declaration order (spec §3 drop-scope invariant). Early exits
// (break/continue/return) fire their own unwinding via unwindAllScopes.
func (lw *Lowerer) lowerBlock(b *sema.Block) result {
	lw.pushScope()
	last := unitResult()
	for _, stmt := range b.Body {
		last = lw.Lower(stmt)
	}
	lw.popScopeWithDrops()
	return last
}

func (lw *Lowerer) pushScope() {
	lw.dropScopes = append(lw.dropScopes, dropScope{})
}

// pushDropCandidate records name in the innermost scope; whether a drop
// call is actually emitted at scope-exit time is decided per-local by
// dropIfNeeded (only types implementing Drop get a call).
func (lw *Lowerer) pushDropCandidate(name string) {
	if len(lw.dropScopes) == 0 {
		lw.pushScope()
	}
	top := &lw.dropScopes[len(lw.dropScopes)-1]
	top.names = append(top.names, name)
}

func (lw *Lowerer) popScopeWithDrops() {
	if len(lw.dropScopes) == 0 {
		return
	}
	top := lw.dropScopes[len(lw.dropScopes)-1]
	lw.dropScopes = lw.dropScopes[:len(lw.dropScopes)-1]
	lw.emitDropsReverse(top)
}

// emitDropsReverse calls `drop` on every local in scope that has one, in
// reverse declaration order, per spec §3 ("locals ... dropped in reverse
// declaration order on scope exit").
func (lw *Lowerer) emitDropsReverse(scope dropScope) {
	for i := len(scope.names) - 1; i >= 0; i-- {
		name := scope.names[i]
		l, ok := lw.locals[name]
		if !ok {
			continue
		}
		lw.dropIfNeeded(l)
	}
}

// unwindAllScopes fires drops for every open scope, innermost first, used
// when a break/continue/return exits through multiple nested blocks at
// once without falling through each one's normal popScopeWithDrops.
func (lw *Lowerer) unwindAllScopes() {
	for i := len(lw.dropScopes) - 1; i >= 0; i-- {
		lw.emitDropsReverse(lw.dropScopes[i])
	}
}

func (lw *Lowerer) lowerIf(v *sema.If) result {
	cond := lw.Lower(v.Cond)
	thenBlock := lw.newBlock("if.then")
	elseBlock := lw.newBlock("if.else")
	joinBlock := lw.newBlock("if.end")

	lw.block.NewCondBr(cond.value, thenBlock, elseBlock)

	entryBlock := lw.block
	resultTyp := sema.Type(&sema.Primitive{Kind: sema.Unit})

	lw.block = thenBlock
	thenRes := lw.Lower(v.Then)
	if !thenRes.isUnit() {
		resultTyp = thenRes.typ
	}

	var resultSlot *ir.InstAlloca
	if !thenRes.isUnit() {
		if t, err := lw.llvmType(resultTyp); err == nil {
			resultSlot = entryBlock.NewAlloca(t)
			resultSlot.SetName("if.result.addr")
		}
	}
	if resultSlot != nil {
		lw.block.NewStore(thenRes.value, resultSlot)
	}
	if lw.block.Term == nil {
		lw.block.NewBr(joinBlock)
	}

	lw.block = elseBlock
	var elseRes result
	if v.Else != nil {
		elseRes = lw.Lower(v.Else)
	} else {
		elseRes = unitResult()
	}
	if resultSlot != nil && !elseRes.isUnit() {
		lw.block.NewStore(elseRes.value, resultSlot)
	}
	if lw.block.Term == nil {
		lw.block.NewBr(joinBlock)
	}

	lw.block = joinBlock
	if resultSlot != nil {
		loaded := lw.block.NewLoad(resultSlot.ElemType, resultSlot)
		return result{value: loaded, typ: resultTyp}
	}
	return unitResult()
}

func (lw *Lowerer) lowerLoop(v *sema.Loop) result {
	headerBlock := lw.newBlock("loop.header")
	afterBlock := lw.newBlock("loop.after")

	lw.loops = append(lw.loops, loopCtx{breakBlock: afterBlock, continueBlock: headerBlock})

	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}
	lw.block = headerBlock
	lw.Lower(v.Body)
	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}

	lw.loops = lw.loops[:len(lw.loops)-1]
	lw.block = afterBlock
	return unitResult()
}

func (lw *Lowerer) lowerWhile(v *sema.While) result {
	headerBlock := lw.newBlock("while.header")
	bodyBlock := lw.newBlock("while.body")
	afterBlock := lw.newBlock("while.after")

	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}
	lw.block = headerBlock
	cond := lw.Lower(v.Cond)
	lw.block.NewCondBr(cond.value, bodyBlock, afterBlock)

	lw.loops = append(lw.loops, loopCtx{breakBlock: afterBlock, continueBlock: headerBlock})
	lw.block = bodyBlock
	lw.Lower(v.Body)
	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}
	lw.loops = lw.loops[:len(lw.loops)-1]

	lw.block = afterBlock
	return unitResult()
}

// lowerFor desugars `for x in iter` against the Iterator behavior (spec
// §4.7: "For is lowered to repeated next() calls by ExprLowerer"): each
// pass calls <IterType>'s `next(&iter)`, which returns a Maybe[Item] --
// tag 0 (Just) binds x and runs the body, tag 1 (Nothing) exits the loop.
func (lw *Lowerer) lowerFor(v *sema.For) result {
	iterVal := lw.Lower(v.Iter)
	iterSlot := lw.storeFresh(iterVal.value, "iter", iterVal.typ)

	headerBlock := lw.newBlock("for.header")
	bodyBlock := lw.newBlock("for.body")
	afterBlock := lw.newBlock("for.after")

	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}
	lw.block = headerBlock

	named, ok := iterVal.typ.(*sema.Named)
	if !ok {
		lw.Errors.Add(diag.New(diag.InternalInvariant, "for-loop iterator type %s is not a named type", iterVal.typ.String()))
		lw.block.NewBr(afterBlock)
		lw.block = afterBlock
		return unitResult()
	}
	nextVal, err := lw.callMethodByName(named, "next", []ir.Value{iterSlot})
	if err != nil {
		lw.Errors.Add(err)
		lw.block.NewBr(afterBlock)
		lw.block = afterBlock
		return unitResult()
	}

	tag := lw.extractTag(nextVal.value)
	isJust := lw.block.NewICmp(enum.IPredEQ, tag, constantI32(0))
	lw.block.NewCondBr(isJust, bodyBlock, afterBlock)

	itemTyp := lw.elementTypeOf(nextVal.typ)
	lw.loops = append(lw.loops, loopCtx{breakBlock: afterBlock, continueBlock: headerBlock})
	lw.block = bodyBlock
	payload := lw.extractPayloadField(nextVal.value, 0, mustLLVMType(lw, itemTyp))
	lw.pushScope()
	lw.locals[v.Binding] = &local{slot: lw.storeFresh(payload, v.Binding, itemTyp), typ: itemTyp}
	lw.Lower(v.Body)
	lw.popScopeWithDrops()
	if lw.block.Term == nil {
		lw.block.NewBr(headerBlock)
	}
	lw.loops = lw.loops[:len(lw.loops)-1]

	lw.block = afterBlock
	return unitResult()
}

func (lw *Lowerer) storeFresh(v ir.Value, name string, typ sema.Type) *ir.InstAlloca {
	slot := lw.block.NewAlloca(mustLLVMType(lw, typ))
	slot.SetName(name + ".addr")
	lw.block.NewStore(v, slot)
	return slot
}

// elementTypeOf extracts Maybe[T]/Poll[T]'s T, used for both `for`
// desugaring and Await. Falls back to Unit if typ isn't single-arg.
func (lw *Lowerer) elementTypeOf(typ sema.Type) sema.Type {
	if n, ok := typ.(*sema.Named); ok && len(n.TypeArgs) == 1 {
		return n.TypeArgs[0]
	}
	return &sema.Primitive{Kind: sema.Unit}
}

func mustLLVMType(lw *Lowerer, t sema.Type) types.Type {
	lt, err := lw.llvmType(t)
	if err != nil {
		lw.Errors.Add(err)
		return types.Void
	}
	return lt
}

func (lw *Lowerer) lowerBreak(v *sema.Break) result {
	if len(lw.loops) == 0 {
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "break outside of a loop"))
		return unitResult()
	}
	top := lw.loops[len(lw.loops)-1]
	if v.Value != nil {
		val := lw.Lower(v.Value)
		if top.resultSlot != nil {
			lw.block.NewStore(val.value, top.resultSlot)
		}
	}
	if lw.block.Term == nil {
		lw.block.NewBr(top.breakBlock)
	}
	return unitResult()
}

func (lw *Lowerer) lowerContinue(v *sema.Continue) {
	if len(lw.loops) == 0 {
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "continue outside of a loop"))
		return
	}
	top := lw.loops[len(lw.loops)-1]
	if lw.block.Term == nil {
		lw.block.NewBr(top.continueBlock)
	}
}

// lowerReturn fires every open drop scope (spec: "Return exits the
// enclosing function, firing all open drop scopes") before emitting the
// terminator, coercing the value to the function's declared return type
// (sign/zero-extension or zero-value substitution, spec §4.7).
func (lw *Lowerer) lowerReturn(v *sema.Return) {
	var val result
	if v.Value != nil {
		val = lw.Lower(v.Value)
	} else {
		val = unitResult()
	}
	lw.unwindAllScopes()
	lw.block.NewRet(lw.FinalizeReturn(val))
}

// FinalizeReturn produces the ir.Value (nil for `ret void`) a function
// exit should return for val: for an async function it first builds the
// Poll.Ready(val) tagged union (spec §4.7), then applies the same
// int-width/zero-value coercion as a synchronous return. Shared between
// lowerReturn's explicit `return` path and the top-level orchestrator's
// implicit trailing-expression exit so both produce identically-shaped
// values against the function's declared (and, if async, Poll-wrapped)
// return type.
func (lw *Lowerer) FinalizeReturn(val result) ir.Value {
	isUnitReturn := !lw.isAsync && (lw.returnType == nil || isUnitType(lw.returnType))
	if isUnitReturn {
		return nil
	}
	if lw.isAsync {
		val = lw.wrapPollReady(val)
	}
	return lw.coerceTo(val, lw.wrappedReturnType())
}

func isUnitType(t sema.Type) bool {
	p, ok := t.(*sema.Primitive)
	return ok && p.Kind == sema.Unit
}

func (r result) isUnit() bool {
	if r.typ == nil {
		return true
	}
	return isUnitType(r.typ)
}
