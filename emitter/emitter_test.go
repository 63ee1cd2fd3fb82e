package emitter

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LilConsul/tinycompiled/lexer"
	"github.com/LilConsul/tinycompiled/parser"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	out, err := Emit(prog)
	require.NoError(t, err)
	return out
}

func TestEmitSectionOrder(t *testing.T) {
	out := compile(t, "VAR x, 1\nPRINT x\nHALT\n")
	dataIdx := regexp.MustCompile(`section \.data`).FindStringIndex(out)
	bssIdx := regexp.MustCompile(`section \.bss`).FindStringIndex(out)
	textIdx := regexp.MustCompile(`section \.text`).FindStringIndex(out)
	require.NotNil(t, dataIdx)
	require.NotNil(t, bssIdx)
	require.NotNil(t, textIdx)
	require.Less(t, dataIdx[0], bssIdx[0])
	require.Less(t, bssIdx[0], textIdx[0])
	require.Contains(t, out, "global _start")
}

func TestEmitVarDeclInitialized(t *testing.T) {
	out := compile(t, "VAR x, 42\nHALT\n")
	require.Contains(t, out, "x dq 42")
}

func TestEmitVarDeclUninitialized(t *testing.T) {
	out := compile(t, "VAR x\nHALT\n")
	require.Contains(t, out, "x resq 1")
}

func TestEmitRedeclarationConflictIsError(t *testing.T) {
	toks, err := lexer.Tokenize("VAR x, 1\nVAR x, 2\nHALT\n")
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = Emit(prog)
	require.Error(t, err)
}

func TestEmitRedeclarationSameInitializerIsIdempotent(t *testing.T) {
	out := compile(t, "VAR x, 1\nVAR x, 1\nHALT\n")
	require.Equal(t, 1, strings.Count(out, "x dq 1"))
}

func TestEmitForImplicitlyDeclaresCounter(t *testing.T) {
	out := compile(t, "FOR i FROM 1 TO 3\nENDFOR\nHALT\n")
	require.Contains(t, out, "i resq 1")
}

func TestEmitLabelsAreUnique(t *testing.T) {
	out := compile(t, `
IF R1 > R2
ENDIF
IF R1 > R2
ENDIF
WHILE R1 > R2
ENDWHILE
`)
	labelRe := regexp.MustCompile(`(?m)^[A-Za-z_][A-Za-z0-9_]*:$`)
	seen := map[string]bool{}
	for _, m := range labelRe.FindAllString(out, -1) {
		require.Falsef(t, seen[m], "duplicate label %q", m)
		seen[m] = true
	}
	require.NotEmpty(t, seen)
}

func TestEmitDivSavesAndRestoresClobberedRegisters(t *testing.T) {
	out := compile(t, "LOAD R1, 20\nLOAD R2, 6\nDIV R3, R1, R2\nPRINT R3\nHALT\n")
	require.Contains(t, out, "push rax")
	require.Contains(t, out, "push rdx")
	require.Contains(t, out, "pop rax")
	require.Contains(t, out, "pop rdx")
	require.Contains(t, out, "cqo")
	require.Contains(t, out, "idiv")
}

func TestEmitPrintAndInputPullInHelpersOnlyWhenUsed(t *testing.T) {
	withPrint := compile(t, "LOAD R1, 1\nPRINT R1\nHALT\n")
	require.Contains(t, withPrint, "print_int:")
	require.NotContains(t, withPrint, "read_int:")

	plain := compile(t, "HALT\n")
	require.NotContains(t, plain, "print_int:")
	require.NotContains(t, plain, "read_int:")
}

func TestEmitFunctionPlacedAfterEpilogue(t *testing.T) {
	out := compile(t, "FUNC add\nRET R1\nENDFUNC\nCALL add\nHALT\n")
	exitIdx := strings.Index(out, "syscall")
	funcIdx := strings.Index(out, "add:")
	require.GreaterOrEqual(t, exitIdx, 0)
	require.GreaterOrEqual(t, funcIdx, 0)
	require.Less(t, exitIdx, funcIdx)
}

func TestEmitNoScratchLeaksOutsideItsRole(t *testing.T) {
	out := compile(t, "IF R1 > R2\nLOAD R3, 1\nENDIF\nHALT\n")
	// Here r10/r11 appear only in the condition lowering (cmp-adjacent);
	// the LOAD into R3 (physical rcx) neither reads nor writes them.
	require.Contains(t, out, "mov r10, ")
	require.Contains(t, out, "mov r11, ")
	require.NotContains(t, out, "mov r10, rcx")
	require.NotContains(t, out, "mov rcx, r10")
}

func TestEmitDebugFlagInsertsBreakpoint(t *testing.T) {
	toks, err := lexer.Tokenize("HALT\n")
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)

	e := New()
	e.SetDebug(true)
	out, err := e.Emit(prog)
	require.NoError(t, err)
	require.Contains(t, out, "int3")
}

func TestEmitMulMaterializesOversizedImmediate(t *testing.T) {
	out := compile(t, "LOAD R1, 2\nMUL R2, R1, 9999999999\nHALT\n")
	require.Contains(t, out, "mov r10, 9999999999")
	require.Contains(t, out, "imul rbx, r10")
}

func TestEmitMulSmallImmediateUsesThreeOperandForm(t *testing.T) {
	out := compile(t, "LOAD R1, 2\nMUL R2, R1, 5\nHALT\n")
	require.Contains(t, out, "imul rbx, rax, 5")
}
