// Stencilc CLI - the template compiler's command line entry point
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stencilc [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles template projects into Go source.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  build              Compile the project of the nearest stencil.toml\n")
		fmt.Fprintf(os.Stderr, "  compile <files>    Compile template files into one unit on stdout\n")
		fmt.Fprintf(os.Stderr, "  transpile <file>   Print a template's intermediate form\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stencilc build                     # build using stencil.toml\n")
		fmt.Fprintf(os.Stderr, "  stencilc build --no-cache          # force a full recompile\n")
		fmt.Fprintf(os.Stderr, "  stencilc compile -p views a.tmpl   # one-off compile to stdout\n")
		fmt.Fprintf(os.Stderr, "  stencilc transpile page.tmpl       # inspect the front end\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	switch args[0] {
	case "build":
		handleBuildCommand(args[1:], *verbose)
	case "compile":
		handleCompileCommand(args[1:])
	case "transpile":
		handleTranspileCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}
