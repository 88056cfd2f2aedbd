package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/tmlang/tmlc/internal/codegen"
	"github.com/tmlang/tmlc/internal/codegen/emit"
)

// compileCmd implements `tmlc compile <module.json>`: emit IR, then
// shell out to llc/opt to produce an object file, the same two-tool
// handoff the teacher compiler used for code generation and register
// allocation, both explicitly out of scope for this core (spec §1 /
// SPEC_FULL.md §9 Non-goals).
type compileCmd struct {
	out    string
	triple string
	optLvl string
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "emit IR and compile it to an object file via llc" }
func (*compileCmd) Usage() string {
	return "compile [-o out.o] [-triple t] [-opt level] <module.json>\n" +
		"  Emits IR for the fixture, runs opt (if found) and llc to produce an object file.\n"
}

func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output object file (default: <module>.o)")
	f.StringVar(&c.triple, "triple", "", "LLVM target triple (default: llc's host default)")
	f.StringVar(&c.optLvl, "opt", "2", "opt optimization level: none, 1, 2, 3")
}

func (c *compileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	if !result.Errors.Empty() {
		printDiagnostics(result.Errors, globalJSON)
		return subcommands.ExitFailure
	}

	irFile, err := os.CreateTemp("", "tmlc-*.ll")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer os.Remove(irFile.Name())
	if _, err := irFile.WriteString(result.IR); err != nil {
		irFile.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	irFile.Close()

	irPath := irFile.Name()
	if optPath, err := findLLVMTool("opt"); err == nil {
		if optimized, err := runOpt(optPath, irPath, c.optLvl); err == nil {
			defer os.Remove(optimized)
			irPath = optimized
		}
	}

	llcPath, err := findLLVMTool("llc")
	if err != nil {
		fmt.Fprintln(os.Stderr, "tmlc compile: llc not found; leaving IR at", irFile.Name())
		return subcommands.ExitFailure
	}

	out := c.out
	if out == "" {
		out = strings.TrimSuffix(f.Arg(0), filepath.Ext(f.Arg(0))) + ".o"
	}

	args := []string{"-filetype=obj", "-o", out}
	if c.triple != "" {
		args = append(args, "-mtriple="+c.triple)
	}
	args = append(args, irPath)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, llcPath, args...)
	cmd.Stdout = os.Stdout
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "llc failed: %v\n%s", err, stderrBuf.String())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// findLLVMTool locates an LLVM binary by name, checking PATH and the
// Homebrew LLVM keg locations the teacher compiler also searched.
func findLLVMTool(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	prefixes := []string{os.Getenv("HOMEBREW_PREFIX"), "/opt/homebrew", "/usr/local"}
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		candidate := filepath.Join(prefix, "opt/llvm/bin", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH or common LLVM installation locations", name)
}

// runOpt runs the LLVM optimizer over irPath at the requested level,
// writing the result alongside it with a ".opt" suffix.
func runOpt(optPath, irPath, level string) (string, error) {
	var pipeline string
	switch level {
	case "0", "none":
		return irPath, nil
	case "1":
		pipeline = "default<O1>"
	case "3":
		pipeline = "default<O3>"
	default:
		pipeline = "default<O2>"
	}

	outPath := irPath + ".opt"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, optPath, "-S", "-o", outPath, "-passes="+pipeline, irPath)
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("opt: %w: %s", err, stderrBuf.String())
	}
	return outPath, nil
}
