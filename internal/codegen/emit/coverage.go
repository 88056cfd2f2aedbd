package emit

import (
	"hash/fnv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// coverageEmitter emits the optional coverage instrumentation from spec
// §6: a call to tml_cover_func(name) (coverage_enabled) and/or
// llvm.instrprof.increment keyed by a per-function FNV-1a 64-bit hash
// (llvm_source_coverage). FNV-1a is the exact algorithm spec §4.5 names,
// and hash/fnv is its standard-library implementation — no ecosystem
// hashing library is a better fit for reproducing a named, fixed
// algorithm.
type coverageEmitter struct {
	m            *Module
	coverFunc    *ir.Func
	instrProfInc *ir.Func
	profileNames map[string]*ir.Global
}

func newCoverageEmitter(m *Module) *coverageEmitter {
	return &coverageEmitter{m: m, profileNames: make(map[string]*ir.Global)}
}

// FNV1a64 hashes name with 64-bit FNV-1a, the function-name-hash keying
// spec §4.5 specifies for coverage counters.
func FNV1a64(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// EmitFunctionEntry inserts the configured coverage instrumentation at
// the first instruction point of a function's entry block.
func (m *Module) EmitFunctionEntry(block *ir.Block, funcName string) {
	if m.coverage == nil {
		return
	}
	if m.Options.CoverageEnabled {
		m.coverage.emitCoverFuncCall(block, funcName)
	}
	if m.Options.LLVMSourceCoverage {
		m.coverage.emitInstrProfIncrement(block, funcName)
	}
}

func (c *coverageEmitter) ensureCoverFunc() *ir.Func {
	if c.coverFunc != nil {
		return c.coverFunc
	}
	c.coverFunc = c.m.DeclareExtern("tml_cover_func", "tml_cover_func", []types.Type{types.NewPointer(types.I8)}, types.Void, enum.CallConvNone)
	return c.coverFunc
}

func (c *coverageEmitter) emitCoverFuncCall(block *ir.Block, funcName string) {
	fn := c.ensureCoverFunc()
	nameGlobal := c.m.InternString(funcName)
	ptr := block.NewGetElementPtr(nameGlobal.ContentType, nameGlobal, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	block.NewCall(fn, ptr)
}

func (c *coverageEmitter) ensureInstrProfIncrement() *ir.Func {
	if c.instrProfInc != nil {
		return c.instrProfInc
	}
	params := []types.Type{
		types.NewPointer(types.I8), // name
		types.I64,                  // hash
		types.I32,                  // num counters
		types.I32,                  // counter index
	}
	c.instrProfInc = c.m.DeclareExtern("llvm.instrprof.increment", "llvm.instrprof.increment", params, types.Void, enum.CallConvNone)
	return c.instrProfInc
}

func (c *coverageEmitter) emitInstrProfIncrement(block *ir.Block, funcName string) {
	fn := c.ensureInstrProfIncrement()
	nameGlobal := c.m.InternString(funcName)
	ptr := block.NewGetElementPtr(nameGlobal.ContentType, nameGlobal, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	hash := constant.NewInt(types.I64, int64(FNV1a64(funcName)))
	block.NewCall(fn, ptr, hash, constant.NewInt(types.I32, 1), constant.NewInt(types.I32, 0))
}
