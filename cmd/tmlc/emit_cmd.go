package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/tmlang/tmlc/internal/codegen"
	"github.com/tmlang/tmlc/internal/codegen/emit"
	"github.com/tmlang/tmlc/internal/diag"
	"github.com/tmlang/tmlc/internal/fixture"
	"github.com/tmlang/tmlc/internal/sema"
)

// emitCmd implements `tmlc emit <module.json>`: render one translation
// unit's LLVM IR to stdout or -o.
type emitCmd struct {
	out                string
	coverage           bool
	llvmSourceCoverage bool
	internalLinkage    bool
	suiteIndex         int
	dllExport          bool
	debugInfo          int
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "emit LLVM IR for a module fixture" }
func (*emitCmd) Usage() string {
	return "emit [flags] <module.json>\n  Lowers a front-end-shaped JSON module fixture to LLVM IR text.\n"
}

func (c *emitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output file (default: stdout)")
	f.BoolVar(&c.coverage, "coverage", false, "instrument with tml_cover_func calls")
	f.BoolVar(&c.llvmSourceCoverage, "llvm-source-coverage", false, "instrument with llvm.instrprof.increment")
	f.BoolVar(&c.internalLinkage, "suite-mode", false, "force internal linkage (suite/test mode)")
	f.IntVar(&c.suiteIndex, "suite-test-index", -1, "test index for suite-local name prefixing, -1 disables")
	f.BoolVar(&c.dllExport, "dllexport", false, "mark external functions __declspec(dllexport)")
	f.IntVar(&c.debugInfo, "g", 0, "debug info level (0, 1, or 2)")
}

func (c *emitCmd) options() emit.Options {
	return emit.Options{
		CoverageEnabled:      c.coverage,
		LLVMSourceCoverage:   c.llvmSourceCoverage,
		ForceInternalLinkage: c.internalLinkage,
		SuiteTestIndex:       c.suiteIndex,
		DLLExport:            c.dllExport,
		EmitDebugInfo:        c.debugInfo,
	}
}

func (c *emitCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	mod, err := loadFixture(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	result := codegen.Emit(mod, c.options())
	if !result.Errors.Empty() {
		printDiagnostics(result.Errors, globalJSON)
		return subcommands.ExitFailure
	}

	if c.out == "" {
		fmt.Print(result.IR)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.out, []byte(result.IR), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func loadFixture(path string) (*sema.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	mod, err := fixture.Decode(f)
	if err != nil {
		return nil, err
	}
	return mod, nil
}

func printDiagnostics(errs diag.ErrorList, asJSON bool) {
	diags := make([]diag.Diagnostic, 0, len(errs.CodegenErrors()))
	for _, e := range errs.CodegenErrors() {
		diags = append(diags, diag.FromCodegenError(e))
	}
	diag.NewFormatter(asJSON).Write(os.Stderr, diags)
}
