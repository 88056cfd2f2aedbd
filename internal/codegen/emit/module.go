// Package emit implements spec §4.4 TypeEmitter and §4.5 DeclEmitter. It
// wraps github.com/llir/llvm's *ir.Module so the "type_defs before body"
// ordering spec §3/§6 describes falls out of llir's own TypeDefs/Funcs
// slices rather than hand-maintained string buffers: Module.Render walks
// TypeDefs (populated in topological order by the GenericInstantiator,
// see internal/codegen/instantiate) ahead of Funcs.
package emit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/diag"
)

// Options mirrors spec §6's option-flag table.
type Options struct {
	CoverageEnabled      bool
	LLVMSourceCoverage   bool
	ForceInternalLinkage bool // suite mode
	SuiteTestIndex       int  // -1 means disabled
	DLLExport            bool
	EmitDebugInfo        int // 0, 1, 2
}

// Module is one translation unit's emission state: the llir module being
// built, memoization tables that make TypeEmitter/DeclEmitter idempotent
// (spec §4.4/§4.5 invariants), and the collected error list.
type Module struct {
	*ir.Module

	Options Options
	Errors  diag.ErrorList

	// mangled struct/enum name -> already-emitted LLVM struct type.
	typeDefs map[string]*types.StructType

	// extern symbol -> already-declared function, so "subsequent
	// references are silent" (spec §4.5).
	externs map[string]*ir.Func

	// mangled function/method name -> already-emitted function, so a
	// function is emitted at most once (spec §4.5 invariant).
	funcs map[string]*ir.Func

	// interned string literal content -> global constant.
	stringGlobals map[string]*ir.Global

	coverage *coverageEmitter
}

// NewModule creates an empty translation-unit emitter.
func NewModule(sourceName string, opts Options) *Module {
	m := &Module{
		Module:        ir.NewModule(),
		Options:       opts,
		typeDefs:      make(map[string]*types.StructType),
		externs:       make(map[string]*ir.Func),
		funcs:         make(map[string]*ir.Func),
		stringGlobals: make(map[string]*ir.Global),
	}
	m.Module.SourceFilename = sourceName
	if opts.CoverageEnabled || opts.LLVMSourceCoverage {
		m.coverage = newCoverageEmitter(m)
	}
	return m
}

// Render produces the final textual IR. Type definitions precede
// functions/declares because they were appended to m.TypeDefs before any
// referencing function was appended to m.Funcs — spec property 2
// (type-before-use) holds structurally, not by convention.
func (m *Module) Render() string {
	return m.Module.String()
}

// TypeDefined reports whether a mangled type name has already been
// emitted, the TypeEmitter memoization spec §4.4 requires ("encountering
// an already-emitted name is a no-op").
func (m *Module) TypeDefined(mangledName string) (*types.StructType, bool) {
	t, ok := m.typeDefs[mangledName]
	return t, ok
}

// FuncDefined reports whether a mangled function name has already been
// emitted (spec §4.5 invariant: "a function is emitted at most once").
func (m *Module) FuncDefined(mangledName string) (*ir.Func, bool) {
	f, ok := m.funcs[mangledName]
	return f, ok
}

func (m *Module) rememberFunc(mangledName string, f *ir.Func) {
	m.funcs[mangledName] = f
}
