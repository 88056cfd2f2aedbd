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
)

// checkCmd implements `tmlc check <module.json>`: run the full emission
// pipeline and report only the collected diagnostics, discarding the
// rendered IR. Exit status reflects whether the error list was empty.
type checkCmd struct {
	json bool
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "report diagnostics for a module fixture without emitting IR" }
func (*checkCmd) Usage() string {
	return "check [-json] <module.json>\n  Runs the codegen pipeline and prints diagnostics only.\n"
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print diagnostics as JSON")
}

func (c *checkCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	mod, err := loadFixture(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	result := codegen.Emit(mod, emit.Options{})
	if result.Errors.Empty() {
		if c.json || globalJSON {
			diag.NewFormatter(true).Write(os.Stdout, []diag.Diagnostic{})
		} else {
			fmt.Println("ok")
		}
		return subcommands.ExitSuccess
	}

	printDiagnostics(result.Errors, c.json || globalJSON)
	return subcommands.ExitFailure
}
