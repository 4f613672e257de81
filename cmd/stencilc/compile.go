package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stencil-lang/stencil/builder"
	"github.com/stencil-lang/stencil/codegen"
	"github.com/stencil-lang/stencil/compiler"
)

// handleCompileCommand processes the `stencilc compile` subcommand: a one-off
// compile of the named template files into a single unit, without a manifest.
// Usage:
//
//	stencilc compile page.tmpl            # unit on stdout
//	stencilc compile -p views *.tmpl      # custom package name
//	stencilc compile -o out.go page.tmpl  # write to a file
func handleCompileCommand(args []string) {
	pkg := "templates"
	output := ""
	var files []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p", "--package":
			if i+1 < len(args) {
				pkg = args[i+1]
				i++
			} else {
				fmt.Fprintln(os.Stderr, "Error: -p requires a package name")
				os.Exit(1)
			}
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			} else {
				fmt.Fprintln(os.Stderr, "Error: -o requires an output path")
				os.Exit(1)
			}
		default:
			files = append(files, args[i])
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: compile requires at least one template file")
		os.Exit(1)
	}

	var templates []*builder.Template
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		src := string(data)
		sum := sha256.Sum256(data)
		base := filepath.Base(path)
		templates = append(templates, &builder.Template{
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Path:   path,
			Source: src,
			Super:  builder.ScanSuperclass(src),
			Hash:   hex.EncodeToString(sum[:]),
		})
	}

	ordered, err := builder.SortByExtends(templates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	u := codegen.NewUnit(pkg)
	if err := builder.CompileTemplates(u, ordered); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	source, err := u.Source()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if output == "" {
		fmt.Print(source)
		return
	}
	if err := os.WriteFile(output, []byte(source), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// handleTranspileCommand processes the `stencilc transpile` subcommand: it
// prints the intermediate form the front end produces for one template, for
// inspecting what the later stages will see.
func handleTranspileCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: transpile takes exactly one template file")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	out, err := compiler.Transpile(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out.Source)
}
