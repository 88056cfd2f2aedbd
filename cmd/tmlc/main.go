// Command tmlc drives the codegen core from a front-end-shaped JSON
// fixture (no real tml front-end ships with this repository; see
// SPEC_FULL.md §6). Subcommand dispatch is github.com/google/subcommands;
// flag parsing is github.com/spf13/pflag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/spf13/pflag"
)

// globalJSON forces every subcommand's diagnostic output to JSON,
// overriding each subcommand's own -json flag default. It is parsed
// ahead of subcommand dispatch with pflag so it can be given either
// before or interleaved with a subcommand name (`tmlc --json check x`
// and `tmlc check --json x` both work).
var globalJSON bool

func main() {
	global := pflag.NewFlagSet("tmlc", pflag.ContinueOnError)
	global.BoolVar(&globalJSON, "json", false, "emit all diagnostics as JSON")
	global.ParseErrorsWhitelist.UnknownFlags = true
	if err := global.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	os.Args = append(os.Args[:1], global.Args()...)

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&emitCmd{}, "")
	subcommands.Register(&checkCmd{}, "")
	subcommands.Register(&compileCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
