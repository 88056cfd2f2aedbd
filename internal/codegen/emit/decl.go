package emit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/tmlang/tmlc/internal/sema"
)

// Linkage decides external vs internal linkage for a mangled function
// name per spec §4.5: "public -> external, unless suite-mode forces
// internal... functions with a @should_panic decorator retain external
// linkage because they are called via function pointer".
func (m *Module) Linkage(vis sema.Visibility, shouldPanic bool) enum.Linkage {
	if m.Options.ForceInternalLinkage && !shouldPanic {
		return enum.LinkageInternal
	}
	if vis == sema.Public {
		return enum.LinkageExternal
	}
	return enum.LinkageInternal
}

// CallConv maps an extern ABI string to llir's calling-convention enum,
// the four spec §4.5 supports: "c" / "c++" (default), "stdcall",
// "fastcall", "thiscall".
func CallConv(abi string) enum.CallConv {
	switch abi {
	case "stdcall":
		return enum.CallConvX86StdCall
	case "fastcall":
		return enum.CallConvX86FastCall
	case "thiscall":
		return enum.CallConvX86ThisCall
	default: // "c", "c++", or unspecified
		return enum.CallConvNone
	}
}

// SuitePrefix returns the `s<index>_` prefix spec §6 assigns to
// test-local functions when suite_test_index >= 0, empty otherwise.
func (m *Module) SuitePrefix() string {
	if m.Options.SuiteTestIndex < 0 {
		return ""
	}
	return suitePrefixFor(m.Options.SuiteTestIndex)
}

func suitePrefixFor(idx int) string {
	return "s" + itoa(idx) + "_"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DeclareFunc emits `define <linkage> <ret> @<mangledName>(<params>)`
// (without a body — the caller populates blocks) unless mangledName was
// already emitted, in which case the existing *ir.Func is returned
// (spec §4.5 invariant: a function is emitted at most once).
func (m *Module) DeclareFunc(mangledName string, params []ParamSpec, ret types.Type, linkage enum.Linkage) (*ir.Func, bool) {
	if f, ok := m.funcs[mangledName]; ok {
		return f, false
	}
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		irParams[i] = ir.NewParam(p.Name, p.Type)
	}
	f := m.Module.NewFunc(mangledName, ret, irParams...)
	f.Linkage = linkage
	if m.Options.DLLExport && linkage == enum.LinkageExternal {
		f.DLLStorageClass = enum.DLLStorageClassDLLExport
	}
	m.rememberFunc(mangledName, f)
	return f, true
}

// ParamSpec is one function parameter to declare.
type ParamSpec struct {
	Name string
	Type types.Type
}

// DeclareExtern emits exactly one `declare <callconv> <ret> @<symbol>(...)`
// per external symbol; subsequent references to the same symbol are
// silent (spec §4.5). callName additionally remembers the function under
// the source-level call name, so a source call through a name distinct
// from its linked symbol (spec §8 S4: "@extern(..., name = \"MyWinFunc\")
// ... every call through the source name `bind` targets `@MyWinFunc`")
// still resolves via Module.FuncDefined.
func (m *Module) DeclareExtern(callName, symbol string, params []types.Type, ret types.Type, callConv enum.CallConv) *ir.Func {
	if f, ok := m.externs[symbol]; ok {
		if _, seen := m.funcs[callName]; !seen {
			m.rememberFunc(callName, f)
		}
		return f
	}
	irParams := make([]*ir.Param, len(params))
	for i, t := range params {
		irParams[i] = ir.NewParam("", t)
	}
	f := m.Module.NewFunc(symbol, ret, irParams...)
	f.Linkage = enum.LinkageExternal
	f.CallingConv = callConv
	m.externs[symbol] = f
	m.rememberFunc(callName, f)
	return f
}
