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

package ast

import (
	"fmt"
	"strconv"
	"strings"

	lgfmt "github.com/loopgen/loopgen/base/fmt"
	"github.com/loopgen/loopgen/build/fmterr"
	"github.com/pkg/errors"
)

// Options of the printer.
type Options struct {
	// ArrayAsPointer prints array accesses as dereferenced pointers: (*A)[i].
	ArrayAsPointer bool
	// Highlight returns true for accesses to mark in the output.
	Highlight func(*Access) bool
	// Color marks highlighted accesses with terminal colors instead of braces.
	Color bool
}

const (
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

type printer struct {
	opts Options
	b    strings.Builder
}

// Print returns the text representation of a node.
func Print(n Node, opts Options) string {
	p := &printer{opts: opts}
	p.node(0, n)
	return p.b.String()
}

func (p *printer) write(ss ...string) {
	for _, s := range ss {
		p.b.WriteString(s)
	}
}

func (p *printer) node(depth int, n Node) {
	switch nT := n.(type) {
	case *Program:
		p.program(depth, nT)
	case Stmt:
		p.stmt(depth, nT)
	case Expr:
		p.expr(nT)
	case *Declaration:
		p.decl(depth, nT)
	case *Const:
		p.write(lgfmt.Prefix(depth), "const ", nT.Name, ";")
	case *LoopShape:
		p.shape(nT)
	case *NameHole:
		p.hole("`", nT)
	case *OpHole:
		p.hole("@", nT)
	default:
		unknown("node", n)
	}
}

func (p *printer) program(depth int, prog *Program) {
	for i, decl := range prog.Decls {
		if i > 0 {
			p.write("\n")
		}
		p.decl(depth, decl)
	}
	for i, stmt := range prog.Body {
		if i > 0 || len(prog.Decls) > 0 {
			p.write("\n")
		}
		p.stmt(depth, stmt)
	}
}

// unknown panics: all node kinds are defined in this package.
func unknown(kind string, n Node) {
	panic(fmterr.Internal(errors.Errorf("cannot print %s of type %T", kind, n)))
}

func (p *printer) decl(depth int, decl *Declaration) {
	p.write(lgfmt.Prefix(depth))
	if decl.Local {
		p.write("local ")
	} else {
		p.write("declare ")
	}
	if decl.Type != "" {
		p.write(decl.Type, " ")
	}
	p.write(decl.Name)
	for _, size := range decl.Sizes {
		p.write("[")
		if size != nil {
			p.expr(size)
		}
		p.write("]")
	}
	p.write(";")
}

func (p *printer) stmt(depth int, stmt Stmt) {
	p.write(lgfmt.Prefix(depth))
	switch stmtT := stmt.(type) {
	case *Assignment:
		p.expr(stmtT.LHS)
		p.write(" = ")
		p.expr(stmtT.RHS)
		p.write(";")
	case *NoOp:
		p.write(";")
	case *StatementHole:
		p.hole("$", stmtT)
	case *Loop:
		p.write("for [")
		for i, shape := range stmtT.LoopShapes {
			if i > 0 {
				p.write(", ")
			}
			p.shape(shape)
		}
		p.write("] {")
		for _, child := range stmtT.Body {
			p.write("\n")
			p.stmt(depth+1, child)
		}
		p.write("\n", lgfmt.Prefix(depth), "}")
	default:
		unknown("statement", stmt)
	}
}

func (p *printer) hole(delim string, h Hole) {
	p.write(delim, h.HoleName())
	if h.FamilyName() != Wildcard {
		p.write(":", h.FamilyName())
	}
	p.write(delim)
}

func isDefaultGreaterEq(loopVar string, x Expr) bool {
	acc, ok := x.(*Access)
	return ok && acc.Hole == nil && acc.IsScalar() && acc.Var == GreaterEqName(loopVar)
}

func isDefaultLessEq(loopVar string, xs []Expr) bool {
	if len(xs) != 1 {
		return false
	}
	acc, ok := xs[0].(*Access)
	return ok && acc.Hole == nil && acc.IsScalar() && acc.Var == LessEqName(loopVar)
}

func isDefaultStep(x Expr) bool {
	lit, ok := x.(*Literal)
	return ok && lit.Kind == IntLit && lit.Int == 1
}

func (p *printer) shape(shape *LoopShape) {
	loopVar := shape.VarName()
	var parts []func()
	if shape.GreaterEq != nil && !isDefaultGreaterEq(loopVar, shape.GreaterEq) {
		parts = append(parts, func() {
			p.write(">=")
			p.expr(shape.GreaterEq)
		})
	}
	if !isDefaultLessEq(loopVar, shape.LessEq) {
		for _, bound := range shape.LessEq {
			parts = append(parts, func() {
				p.write("<=")
				p.expr(bound)
			})
		}
	}
	if shape.Step != nil && !isDefaultStep(shape.Step) {
		parts = append(parts, func() {
			p.write("+=")
			p.expr(shape.Step)
		})
	}
	if len(parts) == 0 {
		p.expr(shape.Var)
		return
	}
	p.write("(")
	p.expr(shape.Var)
	for _, part := range parts {
		p.write(", ")
		part()
	}
	p.write(")")
}

func (p *printer) literal(lit *Literal) {
	switch lit.Kind {
	case FloatLit:
		if lit.Text != "" {
			p.write(lit.Text)
			return
		}
		s := strconv.FormatFloat(lit.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		p.write(s)
	case HexLit:
		if lit.Text != "" {
			p.write(lit.Text)
			return
		}
		p.write("0x" + strconv.FormatInt(lit.Int, 16))
	default:
		p.write(strconv.FormatInt(lit.Int, 10))
	}
}

func (p *printer) access(acc *Access) {
	highlight := p.opts.Highlight != nil && p.opts.Highlight(acc)
	if highlight {
		if p.opts.Color {
			p.write(colorGreen)
		} else {
			p.write("{")
		}
	}
	name := acc.Var
	if acc.Hole != nil {
		var b strings.Builder
		b.WriteString("`" + acc.Hole.Name)
		if acc.Hole.Family != Wildcard {
			b.WriteString(":" + acc.Hole.Family)
		}
		b.WriteString("`")
		name = b.String()
	}
	if p.opts.ArrayAsPointer && !acc.IsScalar() {
		name = "(*" + name + ")"
	}
	p.write(name)
	for _, index := range acc.Indices {
		p.write("[")
		p.expr(index)
		p.write("]")
	}
	if highlight {
		if p.opts.Color {
			p.write(colorReset)
		} else {
			p.write("}")
		}
	}
}

func (p *printer) operand(parent *Op, arg Expr) {
	paren := !IsAtom(arg) && parent.Precedence() >= arg.Precedence()
	if paren {
		p.write("(")
	}
	p.expr(arg)
	if paren {
		p.write(")")
	}
}

func (p *printer) op(op *Op) {
	switch len(op.Args) {
	case 1:
		p.write(op.Operator)
		p.operand(op, op.Args[0])
	case 2:
		p.operand(op, op.Args[0])
		p.write(" ")
		if op.Hole != nil {
			p.hole("@", op.Hole)
		} else {
			p.write(op.Operator)
		}
		p.write(" ")
		p.operand(op, op.Args[1])
	case 3:
		p.operand(op, op.Args[0])
		p.write(" ? ")
		p.operand(op, op.Args[1])
		p.write(" : ")
		p.operand(op, op.Args[2])
	default:
		p.write(fmt.Sprintf("<operator %s with %d arguments>", op.Operator, len(op.Args)))
	}
}

func (p *printer) expr(x Expr) {
	switch xT := x.(type) {
	case *Literal:
		p.literal(xT)
	case *Access:
		p.access(xT)
	case *Op:
		p.op(xT)
	case *ExpressionHole:
		p.hole("#", xT)
	case nil:
	default:
		unknown("expression", x)
	}
}

func (n *Declaration) String() string    { return Print(n, Options{}) }
func (n *Const) String() string          { return Print(n, Options{}) }
func (n *Literal) String() string        { return Print(n, Options{}) }
func (n *Access) String() string         { return Print(n, Options{}) }
func (n *Op) String() string             { return Print(n, Options{}) }
func (n *Assignment) String() string     { return Print(n, Options{}) }
func (n *NoOp) String() string           { return Print(n, Options{}) }
func (n *LoopShape) String() string      { return Print(n, Options{}) }
func (n *Loop) String() string           { return Print(n, Options{}) }
func (n *Program) String() string        { return Print(n, Options{}) }
func (n *NameHole) String() string       { return Print(n, Options{}) }
func (n *StatementHole) String() string  { return Print(n, Options{}) }
func (n *ExpressionHole) String() string { return Print(n, Options{}) }
func (n *OpHole) String() string         { return Print(n, Options{}) }
