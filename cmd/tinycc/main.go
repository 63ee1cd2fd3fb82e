// Command tinycc is the command-line driver for the TinyCompiled
// compiler. It reads a single source file, compiles it, and writes the
// generated NASM assembly to stdout or, with -o, to a file. It never
// invokes nasm or the system linker itself.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/LilConsul/tinycompiled/compiler"
	"github.com/LilConsul/tinycompiled/internal/clilog"
)

func main() {
	debug := flag.Bool("debug", false, "Insert a breakpoint (int3) at the top of the generated program.")
	out := flag.String("o", "", "Write assembly to this file instead of stdout.")
	verbose := flag.Bool("v", false, "Enable verbose (debug-level) logging.")
	flag.Parse()

	logger := clilog.DefaultLogger(os.Stderr)
	if *verbose {
		clilog.LevelVar.Set(slog.LevelDebug)
	}

	if len(flag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "usage: tinycc [-debug] [-o file] [-v] source.tc")
		os.Exit(1)
	}

	path := flag.Args()[0]
	src, err := os.ReadFile(path)
	if err != nil {
		logger.Error("reading source file", "path", path, "err", err)
		os.Exit(1)
	}

	c := compiler.New(string(src))
	c.SetDebug(*debug)

	logger.Debug("compiling", "path", path)
	asm, err := c.Compile()
	if err != nil {
		logger.Error("compile failed", "err", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Print(asm)
		return
	}
	if err := os.WriteFile(*out, []byte(asm), 0o644); err != nil {
		logger.Error("writing output file", "path", *out, "err", err)
		os.Exit(1)
	}
}
