package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"

	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/sema"
)

// lowerWhen lowers tagged pattern matching (spec's `when`): extract the
// subject's tag field, branch arm-by-arm comparing it against each
// variant's stable tag, binding payload fields by declared order inside
// the matched arm, and joining to a single result value.
func (lw *Lowerer) lowerWhen(v *sema.When) result {
	subject := lw.Lower(v.Subject)
	named, ok := derefNamed(subject.typ)
	if !ok {
		lw.Errors.Add(diag.NewAt(diag.InternalInvariant, toDiagSpan(v.Span), "`when` subject is not an enum type: %s", subject.typ.String()))
		return unitResult()
	}
	def, ok := lw.Reg.Enum(named.Base)
	if !ok {
		lw.Errors.Add(diag.NewAt(diag.UnknownSymbol, toDiagSpan(v.Span), "unknown enum %q in `when`", named.Base))
		return unitResult()
	}
	subst := namedTypeArgSubst(def, named)

	tag := lw.extractTag(subject.value)
	joinBlock := lw.newBlock("when.end")
	entryBlock := lw.block

	var resultSlot *ir.InstAlloca
	var resultTyp sema.Type = &sema.Primitive{Kind: sema.Unit}

	next := lw.block
	for i, arm := range v.Arms {
		armBlock := lw.newBlock("when.arm")
		var fallthroughBlock *ir.Block
		isLast := i == len(v.Arms)-1
		if arm.VariantName == "" {
			fallthroughBlock = armBlock // wildcard: always matches
			lw.block = next
			if lw.block.Term == nil {
				lw.block.NewBr(armBlock)
			}
		} else {
			variantTag, terr := lw.Reg.EnumTag(named.Base, arm.VariantName)
			if terr != nil {
				lw.Errors.Add(terr)
				continue
			}
			lw.block = next
			cmp := lw.block.NewICmp(enum.IPredEQ, tag, constantI32(int64(variantTag)))
			if isLast {
				fallthroughBlock = armBlock
				lw.block.NewCondBr(cmp, armBlock, armBlock)
			} else {
				elseBlock := lw.newBlock("when.next")
				lw.block.NewCondBr(cmp, armBlock, elseBlock)
				next = elseBlock
				fallthroughBlock = armBlock
			}
		}

		lw.block = fallthroughBlock
		lw.pushScope()
		bindArmPayload(lw, subject.value, named, arm, subst)
		armRes := lw.Lower(arm.Body)
		lw.popScopeWithDrops()
		if !armRes.isUnit() {
			resultTyp = armRes.typ
		}
		if resultSlot == nil && !armRes.isUnit() {
			if t, err := lw.llvmType(resultTyp); err == nil {
				resultSlot = entryBlock.NewAlloca(t)
				resultSlot.SetName("when.result.addr")
			}
		}
		if resultSlot != nil && !armRes.isUnit() {
			lw.block.NewStore(armRes.value, resultSlot)
		}
		if lw.block.Term == nil {
			lw.block.NewBr(joinBlock)
		}
	}

	lw.block = joinBlock
	if resultSlot != nil {
		loaded := lw.block.NewLoad(resultSlot.ElemType, resultSlot)
		return result{value: loaded, typ: resultTyp}
	}
	return unitResult()
}

func namedTypeArgSubst(def *sema.EnumDef, named *sema.Named) map[string]sema.Type {
	if len(def.TypeParams) == 0 {
		return nil
	}
	m := make(map[string]sema.Type, len(def.TypeParams))
	for i, p := range def.TypeParams {
		if i < len(named.TypeArgs) {
			m[p.Name] = named.TypeArgs[i]
		}
	}
	return m
}

// bindArmPayload binds arm.Bindings, in declared field order, to the
// matched variant's payload fields extracted out of subject.
func bindArmPayload(lw *Lowerer, subject ir.Value, named *sema.Named, arm sema.MatchArm, subst map[string]sema.Type) {
	if arm.VariantName == "" || len(arm.Bindings) == 0 {
		return
	}
	def, ok := lw.Reg.Enum(named.Base)
	if !ok {
		return
	}
	var fieldTypes []sema.Type
	for _, variant := range def.Variants {
		if variant.Name != arm.VariantName {
			continue
		}
		if len(variant.Fields.Tuple) > 0 {
			fieldTypes = variant.Fields.Tuple
		} else {
			for _, f := range variant.Fields.Struct {
				fieldTypes = append(fieldTypes, f.Type)
			}
		}
	}
	for i, bindName := range arm.Bindings {
		if i >= len(fieldTypes) {
			break
		}
		fieldTyp := instantiateFieldType(fieldTypes[i], subst)
		fieldT := mustLLVMType(lw, fieldTyp)
		payload := lw.extractPayloadField(subject, i, fieldT)
		lw.locals[bindName] = &local{slot: lw.storeFresh(payload, bindName, fieldTyp), typ: fieldTyp}
		lw.pushDropCandidate(bindName)
	}
}

func instantiateFieldType(t sema.Type, subst map[string]sema.Type) sema.Type {
	if subst == nil {
		return t
	}
	if g, ok := t.(*sema.Generic); ok {
		if r, ok := subst[g.Param]; ok {
			return r
		}
	}
	return t
}
