// Package compiler chains the scanner, parser, and emitter into the full
// TinyCompiled pipeline.
//
// A Compiler is built from a source string, carries a debug toggle, and
// exposes a single Compile method; each stage is also independently
// callable (Tokenize, Parse, Emit), and the intermediate token list and
// AST remain inspectable after a successful compile for callers such as
// a future visualizer.
package compiler

import (
	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/emitter"
	"github.com/LilConsul/tinycompiled/lexer"
	"github.com/LilConsul/tinycompiled/parser"
	"github.com/LilConsul/tinycompiled/token"
)

// Compiler holds the state of a single compile invocation.
type Compiler struct {
	source string
	debug  bool

	tokens  []token.Token
	program *ast.Program
}

// New creates a Compiler for the given TinyCompiled source text.
func New(source string) *Compiler {
	return &Compiler{source: source}
}

// SetDebug toggles emission of a breakpoint at the top of the program.
func (c *Compiler) SetDebug(v bool) { c.debug = v }

// Tokens returns the token sequence from the most recent successful
// Compile or Tokenize call.
func (c *Compiler) Tokens() []token.Token { return c.tokens }

// Program returns the AST from the most recent successful Compile or
// Parse call.
func (c *Compiler) Program() *ast.Program { return c.program }

// Compile runs the full pipeline: scan, parse, emit. The first error from
// any stage aborts the whole compile.
func (c *Compiler) Compile() (string, error) {
	if err := c.Tokenize(); err != nil {
		return "", err
	}
	if err := c.Parse(); err != nil {
		return "", err
	}
	return c.Emit()
}

// Tokenize scans c.source, populating Tokens().
func (c *Compiler) Tokenize() error {
	toks, err := lexer.Tokenize(c.source)
	if err != nil {
		return err
	}
	c.tokens = toks
	return nil
}

// Parse parses the token sequence produced by Tokenize into Program().
func (c *Compiler) Parse() error {
	prog, err := parser.Parse(c.tokens)
	if err != nil {
		return err
	}
	c.program = prog
	return nil
}

// Emit walks Program() and returns the assembly text.
func (c *Compiler) Emit() (string, error) {
	e := emitter.New()
	e.SetDebug(c.debug)
	return e.Emit(c.program)
}

// Compile is the package-level convenience form of New(source).Compile().
func Compile(source string) (string, error) {
	return New(source).Compile()
}

// Tokenize is the package-level convenience form of scanning alone.
func Tokenize(source string) ([]token.Token, error) {
	return lexer.Tokenize(source)
}

// Parse is the package-level convenience form of parsing alone.
func Parse(tokens []token.Token) (*ast.Program, error) {
	return parser.Parse(tokens)
}

// Emit is the package-level convenience form of emission alone.
func Emit(program *ast.Program) (string, error) {
	return emitter.Emit(program)
}
