// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser builds pattern trees from source text.
//
// The grammar is C-like:
//
//	declare [type] A[N][];      ## parameter, [] is a size inferred at instantiation
//	local tmp[8];               ## scratch array
//	for [(i, >=1, <=N, +=2), j] {
//	  A[i][j] = A[i-1][j] @op@ #e:expr#;
//	  $s:stmt$
//	}
//
// Holes are written `name:family` (name), $name:family$ (statement),
// #name:family# (expression), and @name:family@ (operator).
// The family is optional. Comments start with ## and end with the line.
package parser

import (
	"go/scanner"
	"go/token"
	"strconv"
	"strings"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/fmterr"
	"github.com/loopgen/loopgen/internal/exprdeps"
	"github.com/pkg/errors"
)

const maxErrors = 10

// bailout is raised to abandon the current statement after an error.
type bailout struct{}

type tokenInfo struct {
	pos token.Pos
	tok token.Token
	lit string
}

type parser struct {
	file *token.File
	sc   scanner.Scanner
	errs *fmterr.Appender

	// Current token.
	pos token.Pos
	tok token.Token
	lit string

	// Tokens read but not consumed yet.
	pending []tokenInfo
}

// stripComments blanks ## comments, keeping offsets unchanged.
func stripComments(src string) []byte {
	buf := []byte(src)
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] != '#' || buf[i+1] != '#' {
			continue
		}
		for ; i < len(buf) && buf[i] != '\n'; i++ {
			buf[i] = ' '
		}
	}
	return buf
}

func newParser(fset *token.FileSet, name, src string) *parser {
	buf := stripComments(src)
	p := &parser{
		file: fset.AddFile(name, -1, len(buf)),
		errs: (&fmterr.Errors{}).NewAppender(fset, maxErrors),
	}
	// Illegal characters ($, #, @, ?) are part of the grammar:
	// no error handler is set and they are read as ILLEGAL tokens.
	p.sc.Init(p.file, buf, nil, 0)
	p.next()
	return p
}

// split maps Go tokens absent from the grammar to two grammar tokens:
// a--b is a - -b and a<-b is a < -b.
var split = map[token.Token][2]token.Token{
	token.DEC:   {token.SUB, token.SUB},
	token.INC:   {token.ADD, token.ADD},
	token.ARROW: {token.LSS, token.SUB},
}

func (p *parser) scan() {
	for {
		pos, tok, lit := p.sc.Scan()
		// Skip semicolons inserted automatically at the end of lines.
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		if pair, ok := split[tok]; ok {
			p.pending = append(p.pending,
				tokenInfo{pos: pos, tok: pair[0]},
				tokenInfo{pos: pos + 1, tok: pair[1]},
			)
			return
		}
		p.pending = append(p.pending, tokenInfo{pos: pos, tok: tok, lit: lit})
		return
	}
}

func (p *parser) next() {
	if len(p.pending) == 0 {
		p.scan()
	}
	cur := p.pending[0]
	p.pending = p.pending[1:]
	p.pos, p.tok, p.lit = cur.pos, cur.tok, cur.lit
}

func (p *parser) peek() token.Token {
	if len(p.pending) == 0 {
		p.scan()
	}
	return p.pending[0].tok
}

func (p *parser) errorf(pos token.Pos, format string, a ...any) {
	p.errs.Appendf(fmterr.At(pos), format, a...)
	panic(bailout{})
}

func (p *parser) text() string {
	switch {
	case p.tok == token.EOF:
		return "end of file"
	case p.lit != "":
		return strconv.Quote(p.lit)
	}
	return strconv.Quote(p.tok.String())
}

func (p *parser) expect(tok token.Token) token.Pos {
	pos := p.pos
	if p.tok != tok {
		p.errorf(pos, "expected %q but got %s", tok.String(), p.text())
	}
	p.next()
	return pos
}

// is returns true if the current token is an illegal character used by the grammar.
func (p *parser) is(delim string) bool {
	return p.tok == token.ILLEGAL && p.lit == delim
}

// isName returns true if the current token can be used as a name.
// Go keywords other than for are valid names.
func (p *parser) isName() bool {
	return p.tok == token.IDENT || (p.tok.IsKeyword() && p.tok != token.FOR)
}

func (p *parser) name() (token.Pos, string) {
	pos, name := p.pos, p.lit
	if !p.isName() {
		p.errorf(pos, "expected a name but got %s", p.text())
	}
	if p.tok.IsKeyword() {
		name = p.tok.String()
	}
	p.next()
	return pos, name
}

// sync skips tokens until the end of the current top-level statement.
func (p *parser) sync() {
	depth := 0
	for ; p.tok != token.EOF; p.next() {
		switch p.tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth <= 0 {
				p.next()
				return
			}
		case token.SEMICOLON:
			if depth == 0 {
				p.next()
				return
			}
		}
	}
}

// guard parses an element, recording errors and skipping to the next statement on failure.
func guard[T any](p *parser, f func() T) (res T, ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, isBailout := r.(bailout); !isBailout {
			panic(r)
		}
		ok = false
		if !p.errs.Full() {
			p.sync()
		}
	}()
	return f(), true
}

func (p *parser) err() error {
	return p.errs.Errors().ToError()
}

// ----------------------------------------------------------------------------
// Entry points.

// ParseFile parses a complete pattern program.
// The position of the file is registered in fset.
func ParseFile(fset *token.FileSet, name, src string) (*ast.Program, error) {
	p := newParser(fset, name, src)
	prog := p.program()
	if err := p.err(); err != nil {
		return nil, err
	}
	return exprdeps.Infer(prog), nil
}

// Parse parses a complete pattern program.
func Parse(src string) (*ast.Program, error) {
	return ParseFile(token.NewFileSet(), "pattern", src)
}

// ParseStmts parses a sequence of statements.
func ParseStmts(src string) ([]ast.Stmt, error) {
	p := newParser(token.NewFileSet(), "statements", src)
	var stmts []ast.Stmt
	for p.tok != token.EOF && !p.errs.Full() {
		if stmt, ok := guard(p, p.stmt); ok {
			ast.Link(stmt)
			stmts = append(stmts, stmt)
		}
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, errors.Errorf("no statement")
	}
	return stmts, nil
}

// ParseStmt parses a single statement.
func ParseStmt(src string) (ast.Stmt, error) {
	stmts, err := ParseStmts(src)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, errors.Errorf("expected one statement but got %d", len(stmts))
	}
	return stmts[0], nil
}

// ParseExpr parses an expression.
func ParseExpr(src string) (ast.Expr, error) {
	p := newParser(token.NewFileSet(), "expression", src)
	x, ok := guard(p, func() ast.Expr {
		x := p.expr()
		if p.tok != token.EOF {
			p.errorf(p.pos, "unexpected %s after expression", p.text())
		}
		return x
	})
	if err := p.err(); err != nil || !ok {
		return nil, err
	}
	return x, nil
}

// ----------------------------------------------------------------------------
// Declarations and statements.

func (p *parser) isDecl() bool {
	if p.tok != token.IDENT || (p.lit != "declare" && p.lit != "local") {
		return false
	}
	next := p.peek()
	return next == token.IDENT || next.IsKeyword()
}

func (p *parser) program() *ast.Program {
	prog := &ast.Program{Info: ast.Info{Src: p.pos}}
	for p.tok != token.EOF && !p.errs.Full() {
		if p.isDecl() {
			if decl, ok := guard(p, p.decl); ok {
				prog.Decls = append(prog.Decls, decl)
			}
			continue
		}
		if stmt, ok := guard(p, p.stmt); ok {
			prog.Body = append(prog.Body, stmt)
		}
	}
	if len(prog.Body) == 0 && p.errs.Errors() == nil {
		p.errs.Appendf(fmterr.At(p.pos), "a program requires at least one statement")
	}
	ast.Link(prog)
	return prog
}

func (p *parser) decl() *ast.Declaration {
	decl := &ast.Declaration{Info: ast.Info{Src: p.pos}, Local: p.lit == "local"}
	p.next()
	_, name := p.name()
	if p.isName() {
		decl.Type = name
		_, name = p.name()
	}
	decl.Name = name
	for p.tok == token.LBRACK {
		p.next()
		var size ast.Expr
		if p.tok != token.RBRACK {
			size = p.expr()
		}
		decl.Sizes = append(decl.Sizes, size)
		p.expect(token.RBRACK)
	}
	p.expect(token.SEMICOLON)
	return decl
}

func (p *parser) stmt() ast.Stmt {
	pos := p.pos
	switch {
	case p.tok == token.FOR:
		return p.loop()
	case p.tok == token.SEMICOLON:
		p.next()
		return &ast.NoOp{Info: ast.Info{Src: pos}}
	case p.is("$"):
		name, family := p.hole("$")
		return &ast.StatementHole{Info: ast.Info{Src: pos}, Name: name, Family: family}
	}
	lhs := p.expr()
	acc, ok := lhs.(*ast.Access)
	if !ok {
		p.errorf(pos, "cannot assign to %s", lhs.String())
	}
	p.expect(token.ASSIGN)
	rhs := p.expr()
	p.expect(token.SEMICOLON)
	return &ast.Assignment{Info: ast.Info{Src: pos}, LHS: acc, RHS: rhs}
}

func (p *parser) loop() *ast.Loop {
	loop := &ast.Loop{Info: ast.Info{Src: p.expect(token.FOR)}}
	p.expect(token.LBRACK)
	for {
		loop.LoopShapes = append(loop.LoopShapes, p.shape())
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.RBRACK)
	p.expect(token.LBRACE)
	for p.tok != token.RBRACE && p.tok != token.EOF {
		loop.Body = append(loop.Body, p.stmt())
	}
	if len(loop.Body) == 0 {
		p.errorf(p.pos, "a loop requires at least one statement")
	}
	p.expect(token.RBRACE)
	return loop
}

func (p *parser) loopVar(x ast.Expr) *ast.Access {
	acc, ok := x.(*ast.Access)
	if !ok || !acc.IsScalar() || acc.Hole != nil {
		p.errorf(x.Pos(), "loop variable %s is not a scalar", x.String())
	}
	return acc
}

func (p *parser) shape() *ast.LoopShape {
	pos := p.pos
	if p.tok != token.LPAREN {
		acc := p.loopVar(p.expr())
		shape := ast.NewLoopShape(acc.Var)
		shape.Src = pos
		shape.Var = acc
		return shape
	}
	p.next()
	var (
		shape   *ast.LoopShape
		hasGE   bool
		hasLE   bool
		hasStep bool
	)
	for {
		partPos, prefix := p.pos, p.tok
		switch prefix {
		case token.GEQ, token.LEQ, token.ADD_ASSIGN:
			if shape == nil {
				p.errorf(partPos, "a loop dimension starts with its variable")
			}
			p.next()
		}
		x := p.expr()
		switch prefix {
		case token.GEQ:
			if hasGE {
				p.errorf(partPos, "lower bound defined twice")
			}
			hasGE = true
			shape.GreaterEq = x
		case token.LEQ:
			if !hasLE {
				shape.LessEq = nil
			}
			hasLE = true
			shape.LessEq = append(shape.LessEq, x)
		case token.ADD_ASSIGN:
			if hasStep {
				p.errorf(partPos, "step defined twice")
			}
			hasStep = true
			shape.Step = x
		default:
			if shape != nil {
				p.errorf(partPos, "loop variable defined twice")
			}
			acc := p.loopVar(x)
			shape = ast.NewLoopShape(acc.Var)
			shape.Src = pos
			shape.Var = acc
		}
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.RPAREN)
	return shape
}

// ----------------------------------------------------------------------------
// Holes.

// hole parses delim name[:family] delim.
// Backticks are read by the scanner as a raw string and handled by nameHole.
func (p *parser) hole(delim string) (name, family string) {
	p.next()
	_, name = p.name()
	family = ast.Wildcard
	if p.tok == token.COLON {
		p.next()
		_, family = p.name()
	}
	if !p.is(delim) {
		p.errorf(p.pos, "expected %q to close the hole but got %s", delim, p.text())
	}
	p.next()
	return name, family
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			continue
		}
		if i > 0 && '0' <= r && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func (p *parser) nameHole() *ast.NameHole {
	pos, lit := p.pos, p.lit
	if !strings.HasPrefix(lit, "`") {
		p.errorf(pos, "unexpected string %s", lit)
	}
	p.next()
	name, family, found := strings.Cut(strings.Trim(lit, "`"), ":")
	if !found {
		family = ast.Wildcard
	}
	if !isIdent(name) || !isIdent(family) {
		p.errorf(pos, "invalid name hole %s", lit)
	}
	return &ast.NameHole{Info: ast.Info{Src: pos}, Name: name, Family: family}
}

// ----------------------------------------------------------------------------
// Expressions.

func (p *parser) expr() ast.Expr {
	return p.conditional()
}

func (p *parser) conditional() ast.Expr {
	cond := p.binary(ast.PrecTernary + 1)
	if !p.is("?") {
		return cond
	}
	pos := p.pos
	p.next()
	x := p.binary(ast.PrecTernary + 1)
	p.expect(token.COLON)
	y := p.conditional()
	return &ast.Op{Info: ast.Info{Src: pos}, Operator: "?:", Args: []ast.Expr{cond, x, y}}
}

// binaryOp returns the operator of the current token and its precedence.
// An empty string is returned if the token is not a binary operator
// and "@" for an operator hole.
func (p *parser) binaryOp() (string, int) {
	if p.is("@") {
		return "@", ast.PrecMul
	}
	var op string
	switch p.tok {
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM,
		token.SHL, token.SHR,
		token.LSS, token.GTR, token.LEQ, token.GEQ,
		token.EQL, token.NEQ,
		token.AND, token.XOR, token.OR,
		token.LAND, token.LOR:
		op = p.tok.String()
	default:
		return "", 0
	}
	prec, _ := ast.BinaryPrecedence(op)
	return op, prec
}

// binary parses binary operators with a precedence of at least minPrec.
// All binary operators are left-associative.
func (p *parser) binary(minPrec int) ast.Expr {
	x := p.unary()
	for {
		op, prec := p.binaryOp()
		if op == "" || prec < minPrec {
			return x
		}
		pos := p.pos
		bin := &ast.Op{Info: ast.Info{Src: pos}, Operator: op}
		if op == "@" {
			name, family := p.hole("@")
			bin.Operator = ""
			bin.Hole = &ast.OpHole{Info: ast.Info{Src: pos}, Name: name, Family: family}
		} else {
			p.next()
		}
		bin.Args = []ast.Expr{x, p.binary(prec + 1)}
		x = bin
	}
}

func (p *parser) unary() ast.Expr {
	pos := p.pos
	switch p.tok {
	case token.ADD, token.SUB, token.NOT, token.TILDE:
	default:
		return p.atom()
	}
	op := p.tok.String()
	p.next()
	return &ast.Op{Info: ast.Info{Src: pos}, Operator: op, Args: []ast.Expr{p.unary()}}
}

func (p *parser) atom() ast.Expr {
	pos := p.pos
	switch {
	case p.tok == token.LPAREN:
		p.next()
		x := p.expr()
		p.expect(token.RPAREN)
		return x
	case p.is("#"):
		name, family := p.hole("#")
		return &ast.ExpressionHole{Info: ast.Info{Src: pos}, Name: name, Family: family}
	case p.tok == token.INT:
		return p.intLiteral()
	case p.tok == token.FLOAT:
		lit := p.lit
		p.next()
		v, err := strconv.ParseFloat(strings.ReplaceAll(lit, "_", ""), 64)
		if err != nil {
			p.errorf(pos, "invalid float literal %s: %v", lit, err)
		}
		return &ast.Literal{Info: ast.Info{Src: pos}, Kind: ast.FloatLit, Float: v, Text: lit}
	case p.tok == token.STRING:
		hole := p.nameHole()
		return p.indices(&ast.Access{Info: ast.Info{Src: pos}, Hole: hole})
	case p.isName():
		_, name := p.name()
		return p.indices(&ast.Access{Info: ast.Info{Src: pos}, Var: name})
	}
	p.errorf(pos, "expected an expression but got %s", p.text())
	return nil
}

func (p *parser) intLiteral() *ast.Literal {
	pos, lit := p.pos, p.lit
	p.next()
	digits := strings.ReplaceAll(lit, "_", "")
	if hex, ok := strings.CutPrefix(strings.ToLower(digits), "0x"); ok {
		v, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			p.errorf(pos, "invalid hexadecimal literal %s: %v", lit, err)
		}
		return &ast.Literal{Info: ast.Info{Src: pos}, Kind: ast.HexLit, Int: int64(v), Text: lit}
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		p.errorf(pos, "invalid integer literal %s: %v", lit, err)
	}
	return &ast.Literal{Info: ast.Info{Src: pos}, Kind: ast.IntLit, Int: v}
}

func (p *parser) indices(acc *ast.Access) *ast.Access {
	for p.tok == token.LBRACK {
		p.next()
		acc.Indices = append(acc.Indices, p.expr())
		p.expect(token.RBRACK)
	}
	return acc
}
