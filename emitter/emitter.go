// Package emitter walks a TinyCompiled AST once and produces NASM x86-64
// assembly text for the Linux ELF toolchain.
package emitter

import (
	"fmt"
	"strings"

	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/internal/compileerr"
	"github.com/LilConsul/tinycompiled/internal/labels"
	"github.com/LilConsul/tinycompiled/internal/stack"
)

// physRegs maps a virtual register (1..8) to its physical x86-64 name.
// Index 0 is unused.
var physRegs = [9]string{"", "rax", "rbx", "rcx", "rdx", "rsi", "rdi", "r8", "r9"}

func phys(v int) string { return physRegs[v] }

// Emitter accumulates the .data, .bss, and .text sections while walking a
// Program. It is used once per compile via Emit or New+Emit.
type Emitter struct {
	data  strings.Builder
	bss   strings.Builder
	text  strings.Builder
	funcs strings.Builder // function bodies, placed after the epilogue

	vars         map[string]*int64 // declared name -> initializer (nil if .bss)
	labelCounter labels.Counter

	needPrint bool
	needInput bool
	debug     bool
}

// New returns an empty Emitter.
func New() *Emitter {
	return &Emitter{vars: make(map[string]*int64)}
}

// SetDebug toggles emission of a single int3 breakpoint immediately after
// the program prologue.
func (e *Emitter) SetDebug(v bool) { e.debug = v }

// Emit is the package-level convenience form of New().Emit(prog).
func Emit(prog *ast.Program) (string, error) {
	return New().Emit(prog)
}

// Emit walks prog once, producing the full assembly text. Semantic errors
// (currently: a variable redeclared with a conflicting initializer) are
// returned as a *compileerr.Error of stage Semantic; AST nodes carry no
// source positions, so its Line and Column are 0. A clean Program
// otherwise never fails. Emission is the only stage that can raise this
// particular error, since only the emitter tracks declared variables.
func (e *Emitter) Emit(prog *ast.Program) (string, error) {
	if err := e.emitStmts(&e.text, prog.Statements); err != nil {
		return "", err
	}
	e.text.WriteString(epilogue)

	if e.funcs.Len() > 0 {
		e.text.WriteString(e.funcs.String())
	}
	if e.needPrint {
		e.text.WriteString(printIntHelper)
	}
	if e.needInput {
		e.text.WriteString(readIntHelper)
	}

	var out strings.Builder
	out.WriteString("section .data\n")
	out.WriteString(e.data.String())
	out.WriteString("\nsection .bss\n")
	if e.needPrint || e.needInput {
		out.WriteString("    digit_buffer resb 32\n")
	}
	if e.needInput {
		out.WriteString("    input_buffer resb 32\n")
	}
	out.WriteString(e.bss.String())
	out.WriteString("\nsection .text\n    global _start\n_start:\n")
	if e.debug {
		out.WriteString("    int3\n")
	}
	out.WriteString(e.text.String())

	return out.String(), nil
}

const epilogue = `    mov rax, 60
    mov rdi, 0
    syscall
`

func (e *Emitter) emitStmts(buf *strings.Builder, stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := e.emitStmt(buf, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitStmt(buf *strings.Builder, s ast.Stmt) error {
	switch v := s.(type) {
	case ast.VarDecl:
		return e.declareVar(v.Name, v.Init)
	case ast.Load:
		e.emitLoad(buf, v)
	case ast.Set:
		e.emitSet(buf, v)
	case ast.Move:
		fmt.Fprintf(buf, "    mov %s, %s\n", phys(v.DestReg), phys(v.SrcReg))
	case ast.BinaryArith:
		e.emitBinaryArith(buf, v)
	case ast.UnaryArith:
		e.emitUnaryArith(buf, v)
	case ast.BinaryBitwise:
		e.emitBinaryBitwise(buf, v)
	case ast.Not:
		fmt.Fprintf(buf, "    not %s\n", phys(v.Reg))
	case ast.Shift:
		e.emitShift(buf, v)
	case ast.If:
		return e.emitIf(buf, v)
	case ast.While:
		return e.emitWhile(buf, v)
	case ast.For:
		return e.emitFor(buf, v)
	case ast.Loop:
		if err := e.declareIfAbsent(v.Counter); err != nil {
			return err
		}
		return e.emitLoop(buf, v)
	case ast.Repeat:
		return e.emitRepeat(buf, v)
	case ast.FuncDef:
		return e.emitFuncDef(v)
	case ast.Call:
		fmt.Fprintf(buf, "    call %s\n", v.Name)
	case ast.Return:
		if v.Value != nil {
			fmt.Fprintf(buf, "    mov rax, %s\n", phys(*v.Value))
		}
		buf.WriteString("    ret\n")
	case ast.Push:
		fmt.Fprintf(buf, "    push %s\n", phys(v.Reg))
	case ast.Pop:
		fmt.Fprintf(buf, "    pop %s\n", phys(v.Reg))
	case ast.Print:
		e.needPrint = true
		e.loadOperandInto(buf, "r15", v.Value)
		buf.WriteString("    call print_int\n")
	case ast.Input:
		e.needInput = true
		buf.WriteString("    call read_int\n")
		e.storeInto(buf, v.Target, "r15")
	case ast.Halt:
		buf.WriteString(epilogue)
	case ast.Nop:
		buf.WriteString("    nop\n")
	default:
		panic(fmt.Sprintf("emitter: unhandled statement type %T", s))
	}
	return nil
}

// declareVar registers a variable in .data (initialized) or .bss
// (uninitialized). A redeclaration with a different initializer is a
// semantic error; redeclaring with the same initializer is idempotent.
func (e *Emitter) declareVar(name string, init *int64) error {
	if existing, ok := e.vars[name]; ok {
		if !sameInit(existing, init) {
			return compileerr.New(compileerr.Semantic, 0, 0, compileerr.ErrRedeclared,
				fmt.Sprintf("variable %q redeclared with a conflicting initializer", name))
		}
		return nil
	}
	e.vars[name] = init
	if init != nil {
		fmt.Fprintf(&e.data, "    %s dq %d\n", name, *init)
	} else {
		fmt.Fprintf(&e.bss, "    %s resq 1\n", name)
	}
	return nil
}

// declareIfAbsent implicitly declares a FOR/LOOP counter in .bss if it has
// not already been declared. LOOP follows the same rule as FOR even
// though only FOR's implicit-declaration behavior was pinned down up
// front; see DESIGN.md for why LOOP was extended to match.
func (e *Emitter) declareIfAbsent(name string) error {
	if _, ok := e.vars[name]; ok {
		return nil
	}
	return e.declareVar(name, nil)
}

func sameInit(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// loadOperandInto emits a single mov loading op's value into the physical
// register named dst.
func (e *Emitter) loadOperandInto(buf *strings.Builder, dst string, op ast.Operand) {
	switch v := op.(type) {
	case ast.Reg:
		fmt.Fprintf(buf, "    mov %s, %s\n", dst, phys(v.Index))
	case ast.Ident:
		fmt.Fprintf(buf, "    mov %s, [%s]\n", dst, v.Name)
	case ast.Immediate:
		fmt.Fprintf(buf, "    mov %s, %d\n", dst, v.Value)
	}
}

// storeInto emits a single mov storing the physical register src into
// op, which must be a Reg or an Ident.
func (e *Emitter) storeInto(buf *strings.Builder, op ast.Operand, src string) {
	switch v := op.(type) {
	case ast.Reg:
		fmt.Fprintf(buf, "    mov %s, %s\n", phys(v.Index), src)
	case ast.Ident:
		fmt.Fprintf(buf, "    mov qword [%s], %s\n", v.Name, src)
	}
}

func (e *Emitter) emitLoad(buf *strings.Builder, l ast.Load) {
	e.loadOperandInto(buf, phys(l.DestReg), l.Src)
}

func (e *Emitter) emitSet(buf *strings.Builder, s ast.Set) {
	switch v := s.Src.(type) {
	case ast.Reg:
		fmt.Fprintf(buf, "    mov qword [%s], %s\n", s.DestName, phys(v.Index))
	case ast.Immediate:
		fmt.Fprintf(buf, "    mov qword [%s], %d\n", s.DestName, v.Value)
	}
}

func (e *Emitter) emitUnaryArith(buf *strings.Builder, u ast.UnaryArith) {
	mnemonic := "inc"
	if u.Op == ast.Dec {
		mnemonic = "dec"
	}
	switch v := u.Target.(type) {
	case ast.Reg:
		fmt.Fprintf(buf, "    %s %s\n", mnemonic, phys(v.Index))
	case ast.Ident:
		fmt.Fprintf(buf, "    %s qword [%s]\n", mnemonic, v.Name)
	}
}

func (e *Emitter) emitBinaryBitwise(buf *strings.Builder, b ast.BinaryBitwise) {
	mnemonic := map[ast.BitwiseOp]string{ast.BitAnd: "and", ast.BitOr: "or", ast.BitXor: "xor"}[b.Op]
	if b.DestReg != b.LeftReg {
		fmt.Fprintf(buf, "    mov %s, %s\n", phys(b.DestReg), phys(b.LeftReg))
	}
	fmt.Fprintf(buf, "    %s %s, %s\n", mnemonic, phys(b.DestReg), phys(b.RightReg))
}

func (e *Emitter) emitShift(buf *strings.Builder, sh ast.Shift) {
	mnemonic := "shl"
	if sh.Op == ast.Shr {
		mnemonic = "shr"
	}
	if sh.DestReg != sh.SrcReg {
		fmt.Fprintf(buf, "    mov %s, %s\n", phys(sh.DestReg), phys(sh.SrcReg))
	}
	fmt.Fprintf(buf, "    %s %s, %d\n", mnemonic, phys(sh.DestReg), sh.Count)
}

// emitBinaryArith lowers ADD/SUB/MUL/DIV.
func (e *Emitter) emitBinaryArith(buf *strings.Builder, b ast.BinaryArith) {
	switch b.Op {
	case ast.Add, ast.Sub:
		mnemonic := "add"
		if b.Op == ast.Sub {
			mnemonic = "sub"
		}
		if b.DestReg != b.LeftReg {
			fmt.Fprintf(buf, "    mov %s, %s\n", phys(b.DestReg), phys(b.LeftReg))
		}
		fmt.Fprintf(buf, "    %s %s, %s\n", mnemonic, phys(b.DestReg), operandText(b.Right))

	case ast.Mul:
		e.emitMul(buf, b)

	case ast.Div:
		e.emitDiv(buf, b)
	}
}

func operandText(op ast.Operand) string {
	switch v := op.(type) {
	case ast.Reg:
		return phys(v.Index)
	case ast.Immediate:
		return fmt.Sprintf("%d", v.Value)
	}
	return ""
}

// emitMul uses the three-operand imul form when the right operand is an
// immediate that fits imm32, the two-operand form when it's a register,
// and otherwise materializes an oversized immediate into r10 first.
func (e *Emitter) emitMul(buf *strings.Builder, b ast.BinaryArith) {
	dest, left := phys(b.DestReg), phys(b.LeftReg)

	switch v := b.Right.(type) {
	case ast.Reg:
		if b.DestReg != b.LeftReg {
			fmt.Fprintf(buf, "    mov %s, %s\n", dest, left)
		}
		fmt.Fprintf(buf, "    imul %s, %s\n", dest, phys(v.Index))

	case ast.Immediate:
		if fitsInt32(v.Value) {
			fmt.Fprintf(buf, "    imul %s, %s, %d\n", dest, left, v.Value)
			return
		}
		fmt.Fprintf(buf, "    mov r10, %d\n", v.Value)
		if b.DestReg != b.LeftReg {
			fmt.Fprintf(buf, "    mov %s, %s\n", dest, left)
		}
		fmt.Fprintf(buf, "    imul %s, r10\n", dest)
	}
}

func fitsInt32(v int64) bool {
	return v >= -(1<<31) && v <= (1<<31)-1
}

// emitDiv lowers DIV, navigating the rax:rdx dividend/remainder pair that
// x86-64 hardwires into the div/idiv instructions.
//
// Division is signed: the emitter uses cqo (sign-extend rax into rdx:rax)
// and idiv rather than xor rdx,rdx/div, since TinyCompiled's variables
// are 64-bit signed and an unsigned divide would corrupt negative
// operands (see DESIGN.md).
func (e *Emitter) emitDiv(buf *strings.Builder, b ast.BinaryArith) {
	dest, left := phys(b.DestReg), phys(b.LeftReg)

	saved := stack.New[string]()
	if dest != "rdx" {
		buf.WriteString("    push rdx\n")
		saved.Push("rdx")
	}
	if dest != "rax" {
		buf.WriteString("    push rax\n")
		saved.Push("rax")
	}
	if left != "rax" {
		fmt.Fprintf(buf, "    mov rax, %s\n", left)
	}
	buf.WriteString("    cqo\n")

	if v, ok := b.Right.(ast.Immediate); ok {
		fmt.Fprintf(buf, "    mov r10, %d\n", v.Value)
		buf.WriteString("    idiv r10\n")
	} else {
		fmt.Fprintf(buf, "    idiv %s\n", operandText(b.Right))
	}

	if dest != "rax" {
		fmt.Fprintf(buf, "    mov %s, rax\n", dest)
	}
	for !saved.Empty() {
		fmt.Fprintf(buf, "    pop %s\n", saved.Pop())
	}
}

// emitCondition lowers a Condition, jumping to falseLabel when the
// condition does not hold.
func (e *Emitter) emitCondition(buf *strings.Builder, cond ast.Condition, falseLabel string) error {
	e.loadOperandInto(buf, "r10", cond.Left)
	e.loadOperandInto(buf, "r11", cond.Right)
	buf.WriteString("    cmp r10, r11\n")

	jump, ok := map[ast.RelOp]string{
		ast.EQ: "jne", ast.NEQ: "je", ast.GT: "jle", ast.LT: "jge", ast.GTE: "jl", ast.LTE: "jg",
	}[cond.Op]
	if !ok {
		return compileerr.New(compileerr.Semantic, 0, 0, compileerr.ErrBadCondition, "unknown relational operator")
	}
	fmt.Fprintf(buf, "    %s %s\n", jump, falseLabel)
	return nil
}

func (e *Emitter) emitIf(buf *strings.Builder, s ast.If) error {
	n := e.labelCounter.Next()
	elseLabel := labels.Name("else_", n)
	endLabel := labels.Name("endif_", n)

	falseTarget := elseLabel
	if !s.HasElse {
		falseTarget = endLabel
	}
	if err := e.emitCondition(buf, s.Cond, falseTarget); err != nil {
		return err
	}
	if err := e.emitStmts(buf, s.Then); err != nil {
		return err
	}

	if s.HasElse {
		fmt.Fprintf(buf, "    jmp %s\n", endLabel)
		fmt.Fprintf(buf, "%s:\n", elseLabel)
		if err := e.emitStmts(buf, s.Else); err != nil {
			return err
		}
	}
	fmt.Fprintf(buf, "%s:\n", endLabel)
	return nil
}

func (e *Emitter) emitWhile(buf *strings.Builder, s ast.While) error {
	n := e.labelCounter.Next()
	start := labels.Name("while_start_", n)
	end := labels.Name("while_end_", n)

	fmt.Fprintf(buf, "%s:\n", start)
	if err := e.emitCondition(buf, s.Cond, end); err != nil {
		return err
	}
	if err := e.emitStmts(buf, s.Body); err != nil {
		return err
	}
	fmt.Fprintf(buf, "    jmp %s\n", start)
	fmt.Fprintf(buf, "%s:\n", end)
	return nil
}

// emitFor lowers FOR with compile-time-known start/end/step. The counter
// is implicitly declared in .bss if not already declared.
func (e *Emitter) emitFor(buf *strings.Builder, s ast.For) error {
	if err := e.declareIfAbsent(s.Var); err != nil {
		return err
	}

	n := e.labelCounter.Next()
	start := labels.Name("for_start_", n)
	end := labels.Name("for_end_", n)

	fmt.Fprintf(buf, "    mov qword [%s], %d\n", s.Var, s.Start)
	fmt.Fprintf(buf, "%s:\n", start)
	fmt.Fprintf(buf, "    mov r10, [%s]\n", s.Var)
	fmt.Fprintf(buf, "    mov r11, %d\n", s.End)
	buf.WriteString("    cmp r10, r11\n")

	exitJump := "jg"
	if s.Step < 0 {
		exitJump = "jl"
	}
	fmt.Fprintf(buf, "    %s %s\n", exitJump, end)

	if err := e.emitStmts(buf, s.Body); err != nil {
		return err
	}

	switch s.Step {
	case 1:
		fmt.Fprintf(buf, "    inc qword [%s]\n", s.Var)
	case -1:
		fmt.Fprintf(buf, "    dec qword [%s]\n", s.Var)
	default:
		fmt.Fprintf(buf, "    add qword [%s], %d\n", s.Var, s.Step)
	}
	fmt.Fprintf(buf, "    jmp %s\n", start)
	fmt.Fprintf(buf, "%s:\n", end)
	return nil
}

func (e *Emitter) emitLoop(buf *strings.Builder, s ast.Loop) error {
	n := e.labelCounter.Next()
	start := labels.Name("loop_start_", n)
	end := labels.Name("loop_end_", n)

	fmt.Fprintf(buf, "%s:\n", start)
	fmt.Fprintf(buf, "    mov r10, [%s]\n", s.Counter)
	fmt.Fprintf(buf, "    mov r11, %d\n", s.Limit)
	buf.WriteString("    cmp r10, r11\n")
	fmt.Fprintf(buf, "    jge %s\n", end)

	if err := e.emitStmts(buf, s.Body); err != nil {
		return err
	}
	fmt.Fprintf(buf, "    jmp %s\n", start)
	fmt.Fprintf(buf, "%s:\n", end)
	return nil
}

func (e *Emitter) emitRepeat(buf *strings.Builder, s ast.Repeat) error {
	n := e.labelCounter.Next()
	start := labels.Name("repeat_start_", n)

	fmt.Fprintf(buf, "%s:\n", start)
	if err := e.emitStmts(buf, s.Body); err != nil {
		return err
	}
	return e.emitCondition(buf, s.Cond, start)
}

// emitFuncDef appends the function's body to a buffer emitted after the
// program epilogue, so straight-line execution from _start never falls
// into function code.
func (e *Emitter) emitFuncDef(s ast.FuncDef) error {
	fmt.Fprintf(&e.funcs, "%s:\n", s.Name)
	return e.emitStmts(&e.funcs, s.Body)
}
