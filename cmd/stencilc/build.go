package main

import (
	"fmt"
	"os"

	"github.com/stencil-lang/stencil/builder"
	"github.com/stencil-lang/stencil/manifest"
)

// handleBuildCommand processes the `stencilc build` subcommand.
// Usage:
//
//	stencilc build             # build the nearest stencil.toml project
//	stencilc build -C dir      # build the project at dir
//	stencilc build --no-cache  # skip the compile cache
func handleBuildCommand(args []string, verbose bool) {
	start := "."
	noCache := false

	// Parse flags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-C", "--chdir":
			if i+1 < len(args) {
				start = args[i+1]
				i++
			} else {
				fmt.Fprintln(os.Stderr, "Error: -C requires a directory")
				os.Exit(1)
			}
		case "--no-cache":
			noCache = true
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown build flag %s\n", args[i])
			os.Exit(1)
		}
	}

	// Load manifest
	m, err := manifest.FindAndLoad(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		fmt.Fprintln(os.Stderr, "Error: no stencil.toml found")
		fmt.Fprintln(os.Stderr, "stencilc build requires a stencil.toml at or above the project directory")
		os.Exit(1)
	}

	var store *builder.Store
	if !noCache {
		store, err = builder.OpenStore(m.CachePath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening compile cache: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	res, err := builder.BuildProject(m, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := builder.WriteOutput(m, res); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		if res.FromCache {
			fmt.Printf("Wrote %s (cached, unit %.12s)\n", m.OutputPath(), res.Hash)
		} else {
			fmt.Printf("Wrote %s (%d classes)\n", m.OutputPath(), len(res.Classes))
		}
	}
}
