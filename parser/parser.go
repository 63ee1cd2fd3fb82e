// Package parser implements TinyCompiled's recursive-descent parser:
// single-token lookahead, no backtracking, dispatching on the first
// non-newline token of a statement.
package parser

import (
	"fmt"

	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/internal/compileerr"
	"github.com/LilConsul/tinycompiled/token"
)

// Parser consumes a token sequence produced by the lexer and builds an
// ast.Program.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New builds a Parser over a token sequence that must end in token.EOF.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse runs the full grammar, returning the Program or the first
// syntactic error encountered. Parsing does not attempt error recovery:
// the first error aborts immediately.
func Parse(tokens []token.Token) (*ast.Program, error) {
	p := New(tokens)
	return p.parseProgram()
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() token.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

// expect consumes the current token if it has the given kind, otherwise
// reports a syntactic error at its position.
func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	t := p.cur()
	if t.Kind != kind {
		return token.Token{}, p.unexpected(t, kind)
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(t token.Token, want ...token.Kind) error {
	if t.Kind == token.EOF {
		return compileerr.New(compileerr.Syntax, t.Line, t.Column, compileerr.ErrUnterminatedBlock,
			"reached end of input inside an unclosed block")
	}
	msg := fmt.Sprintf("unexpected %s", t.Kind)
	if len(want) > 0 {
		msg = fmt.Sprintf("%s, want %v", msg, want)
	}
	return compileerr.New(compileerr.Syntax, t.Line, t.Column, compileerr.ErrUnexpectedToken, msg)
}

// skipNewlines consumes zero or more NEWLINE tokens between statements.
func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.NEWLINE {
		p.advance()
	}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	p.skipNewlines()
	for p.cur().Kind != token.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		p.skipNewlines()
	}
	return prog, nil
}

// parseBody reads statements until the current token's kind is in until,
// implementing the shared block-parsing pattern.
func (p *Parser) parseBody(until map[token.Kind]bool) ([]ast.Stmt, error) {
	var body []ast.Stmt
	p.skipNewlines()
	for !until[p.cur().Kind] && p.cur().Kind != token.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		p.skipNewlines()
	}
	return body, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	t := p.cur()
	switch t.Kind {
	case token.VAR:
		return p.parseVarDecl()
	case token.LOAD:
		return p.parseLoad()
	case token.SET:
		return p.parseSet()
	case token.MOVE:
		return p.parseMove()
	case token.ADD, token.SUB, token.MUL, token.DIV:
		return p.parseBinaryArith()
	case token.INC, token.DEC:
		return p.parseUnaryArith()
	case token.AND, token.OR, token.XOR:
		return p.parseBinaryBitwise()
	case token.NOT:
		return p.parseNot()
	case token.SHL, token.SHR:
		return p.parseShift()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.LOOP:
		return p.parseLoop()
	case token.REPEAT:
		return p.parseRepeat()
	case token.FUNC:
		return p.parseFuncDef()
	case token.CALL:
		return p.parseCall()
	case token.RET:
		return p.parseReturn()
	case token.PUSH:
		return p.parsePush()
	case token.POP:
		return p.parsePop()
	case token.PRINT:
		return p.parsePrint()
	case token.INPUT:
		return p.parseInput()
	case token.HALT:
		p.advance()
		return ast.Halt{}, nil
	case token.NOP:
		p.advance()
		return ast.Nop{}, nil
	default:
		return nil, p.unexpected(t)
	}
}

// parseOperand expects one of {REGISTER, IDENTIFIER, NUMBER}.
func (p *Parser) parseOperand() (ast.Operand, error) {
	t := p.cur()
	switch t.Kind {
	case token.REGISTER:
		p.advance()
		return ast.Reg{Index: t.Register()}, nil
	case token.IDENTIFIER:
		p.advance()
		return ast.Ident{Name: t.Ident()}, nil
	case token.NUMBER:
		p.advance()
		return ast.Immediate{Value: t.Int()}, nil
	default:
		return nil, p.unexpected(t, token.REGISTER, token.IDENTIFIER, token.NUMBER)
	}
}

// parseRegOrIdent expects a REGISTER or IDENTIFIER, used by targets that
// forbid immediates (INC/DEC/INPUT targets).
func (p *Parser) parseRegOrIdent() (ast.Operand, error) {
	t := p.cur()
	switch t.Kind {
	case token.REGISTER:
		p.advance()
		return ast.Reg{Index: t.Register()}, nil
	case token.IDENTIFIER:
		p.advance()
		return ast.Ident{Name: t.Ident()}, nil
	default:
		return nil, p.unexpected(t, token.REGISTER, token.IDENTIFIER)
	}
}

// parseRegOrImmediate expects a REGISTER or NUMBER, used by SET's source.
func (p *Parser) parseRegOrImmediate() (ast.Operand, error) {
	t := p.cur()
	switch t.Kind {
	case token.REGISTER:
		p.advance()
		return ast.Reg{Index: t.Register()}, nil
	case token.NUMBER:
		p.advance()
		return ast.Immediate{Value: t.Int()}, nil
	default:
		return nil, p.unexpected(t, token.REGISTER, token.NUMBER)
	}
}

func (p *Parser) parseRegister() (int, error) {
	t, err := p.expect(token.REGISTER)
	if err != nil {
		return 0, err
	}
	return t.Register(), nil
}

func (p *Parser) parseIdentifier() (string, error) {
	t, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return "", err
	}
	return t.Ident(), nil
}

func (p *Parser) parseNumber() (int64, error) {
	t, err := p.expect(token.NUMBER)
	if err != nil {
		return 0, err
	}
	return t.Int(), nil
}

// parseCondition parses left(register|identifier) relop right(register|
// identifier|number).
func (p *Parser) parseCondition() (ast.Condition, error) {
	left, err := p.parseRegOrIdent()
	if err != nil {
		return ast.Condition{}, err
	}

	opTok := p.cur()
	var op ast.RelOp
	switch opTok.Kind {
	case token.EQ:
		op = ast.EQ
	case token.NEQ:
		op = ast.NEQ
	case token.GT:
		op = ast.GT
	case token.LT:
		op = ast.LT
	case token.GTE:
		op = ast.GTE
	case token.LTE:
		op = ast.LTE
	default:
		return ast.Condition{}, p.unexpected(opTok, token.EQ, token.NEQ, token.GT, token.LT, token.GTE, token.LTE)
	}
	p.advance()

	right, err := p.parseOperand()
	if err != nil {
		return ast.Condition{}, err
	}

	return ast.Condition{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	p.advance() // VAR
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	decl := ast.VarDecl{Name: name}
	if p.cur().Kind == token.COMMA {
		p.advance()
		n, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		decl.Init = &n
	}
	return decl, nil
}

func (p *Parser) parseLoad() (ast.Stmt, error) {
	p.advance() // LOAD
	dest, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.Load{DestReg: dest, Src: src}, nil
}

func (p *Parser) parseSet() (ast.Stmt, error) {
	p.advance() // SET
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseRegOrImmediate()
	if err != nil {
		return nil, err
	}
	return ast.Set{DestName: name, Src: src}, nil
}

func (p *Parser) parseMove() (ast.Stmt, error) {
	p.advance() // MOVE
	dest, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	return ast.Move{DestReg: dest, SrcReg: src}, nil
}

func (p *Parser) parseBinaryArith() (ast.Stmt, error) {
	kind := p.cur().Kind
	p.advance()

	dest, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	left, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if _, ok := right.(ast.Ident); ok {
		return nil, compileerr.New(compileerr.Syntax, p.cur().Line, p.cur().Column,
			compileerr.ErrUnexpectedToken, "arithmetic's right operand must be a register or immediate")
	}

	var op ast.ArithOp
	switch kind {
	case token.ADD:
		op = ast.Add
	case token.SUB:
		op = ast.Sub
	case token.MUL:
		op = ast.Mul
	case token.DIV:
		op = ast.Div
	}
	return ast.BinaryArith{Op: op, DestReg: dest, LeftReg: left, Right: right}, nil
}

func (p *Parser) parseUnaryArith() (ast.Stmt, error) {
	kind := p.cur().Kind
	p.advance()

	target, err := p.parseRegOrIdent()
	if err != nil {
		return nil, err
	}

	op := ast.Inc
	if kind == token.DEC {
		op = ast.Dec
	}
	return ast.UnaryArith{Op: op, Target: target}, nil
}

func (p *Parser) parseBinaryBitwise() (ast.Stmt, error) {
	kind := p.cur().Kind
	p.advance()

	dest, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	left, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	right, err := p.parseRegister()
	if err != nil {
		return nil, err
	}

	var op ast.BitwiseOp
	switch kind {
	case token.AND:
		op = ast.BitAnd
	case token.OR:
		op = ast.BitOr
	case token.XOR:
		op = ast.BitXor
	}
	return ast.BinaryBitwise{Op: op, DestReg: dest, LeftReg: left, RightReg: right}, nil
}

func (p *Parser) parseNot() (ast.Stmt, error) {
	p.advance() // NOT
	reg, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	return ast.Not{Reg: reg}, nil
}

func (p *Parser) parseShift() (ast.Stmt, error) {
	kind := p.cur().Kind
	p.advance()

	dest, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	countTok := p.cur()
	count, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > 63 {
		return nil, compileerr.New(compileerr.Syntax, countTok.Line, countTok.Column,
			compileerr.ErrUnexpectedToken, "shift count must be in 0..63")
	}

	op := ast.Shl
	if kind == token.SHR {
		op = ast.Shr
	}
	return ast.Shift{Op: op, DestReg: dest, SrcReg: src, Count: count}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	p.advance() // IF
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}

	then, err := p.parseBody(map[token.Kind]bool{token.ENDIF: true, token.ELSE: true})
	if err != nil {
		return nil, err
	}

	stmt := ast.If{Cond: cond, Then: then}

	if p.cur().Kind == token.ELSE {
		p.advance()
		elseBody, err := p.parseBody(map[token.Kind]bool{token.ENDIF: true})
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
		stmt.HasElse = true
	}

	if _, err := p.expect(token.ENDIF); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	p.advance() // WHILE
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[token.Kind]bool{token.ENDWHILE: true})
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDWHILE); err != nil {
		return nil, err
	}
	return ast.While{Cond: cond, Body: body}, nil
}

// parseFor parses FOR ident FROM int TO int (STEP int)? body ENDFOR.
// STEP defaults to +1; a zero step is rejected here with a syntax-stage
// error wrapping compileerr.ErrZeroStep.
func (p *Parser) parseFor() (ast.Stmt, error) {
	p.advance() // FOR
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}
	start, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	end, err := p.parseNumber()
	if err != nil {
		return nil, err
	}

	step := int64(1)
	if p.cur().Kind == token.STEP {
		p.advance()
		step, err = p.parseNumber()
		if err != nil {
			return nil, err
		}
	}
	if step == 0 {
		t := p.cur()
		return nil, compileerr.New(compileerr.Syntax, t.Line, t.Column, compileerr.ErrZeroStep, "FOR step must not be zero")
	}

	body, err := p.parseBody(map[token.Kind]bool{token.ENDFOR: true})
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDFOR); err != nil {
		return nil, err
	}
	return ast.For{Var: name, Start: start, End: end, Step: step, Body: body}, nil
}

// parseLoop parses LOOP counter, limit body ENDLOOP.
func (p *Parser) parseLoop() (ast.Stmt, error) {
	p.advance() // LOOP
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	limit, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[token.Kind]bool{token.ENDLOOP: true})
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDLOOP); err != nil {
		return nil, err
	}
	return ast.Loop{Counter: name, Limit: limit, Body: body}, nil
}

func (p *Parser) parseRepeat() (ast.Stmt, error) {
	p.advance() // REPEAT
	body, err := p.parseBody(map[token.Kind]bool{token.UNTIL: true})
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.UNTIL); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	return ast.Repeat{Body: body, Cond: cond}, nil
}

func (p *Parser) parseFuncDef() (ast.Stmt, error) {
	p.advance() // FUNC
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[token.Kind]bool{token.ENDFUNC: true})
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDFUNC); err != nil {
		return nil, err
	}
	return ast.FuncDef{Name: name, Body: body}, nil
}

func (p *Parser) parseCall() (ast.Stmt, error) {
	p.advance() // CALL
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	return ast.Call{Name: name}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	p.advance() // RET
	if p.cur().Kind == token.REGISTER {
		r := p.cur().Register()
		p.advance()
		return ast.Return{Value: &r}, nil
	}
	return ast.Return{}, nil
}

func (p *Parser) parsePush() (ast.Stmt, error) {
	p.advance() // PUSH
	reg, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	return ast.Push{Reg: reg}, nil
}

func (p *Parser) parsePop() (ast.Stmt, error) {
	p.advance() // POP
	reg, err := p.parseRegister()
	if err != nil {
		return nil, err
	}
	return ast.Pop{Reg: reg}, nil
}

func (p *Parser) parsePrint() (ast.Stmt, error) {
	p.advance() // PRINT
	val, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.Print{Value: val}, nil
}

func (p *Parser) parseInput() (ast.Stmt, error) {
	p.advance() // INPUT
	target, err := p.parseRegOrIdent()
	if err != nil {
		return nil, err
	}
	return ast.Input{Target: target}, nil
}
