package emit

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
)

// InternString emits (or reuses) a global string constant for s, per
// spec §4.7: "string literals are interned globals". Repeated interning
// of the same content returns the same global.
func (m *Module) InternString(s string) *ir.Global {
	if g, ok := m.stringGlobals[s]; ok {
		return g
	}
	name := fmt.Sprintf(".str.%d", len(m.stringGlobals))
	data := constant.NewCharArrayFromString(s + "\x00")
	g := m.Module.NewGlobalDef(name, data)
	g.Immutable = true
	m.stringGlobals[s] = g
	return g
}
