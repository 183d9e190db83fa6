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

// Package ast defines the tree representing loop patterns and skeletons.
//
// A tree owns its children. Back-references from a child to its
// enclosing statement or block are unexported non-owning pointers
// rebuilt by Link after any structural change.
package ast

import (
	"go/token"
)

// Wildcard is the hole name (or family name) matching anything.
// A hole named with the wildcard is always filled independently.
const Wildcard = "_"

// NodeID identifies a node across clones of a tree.
// Zero means that the node has not been tagged.
type NodeID int

// ----------------------------------------------------------------------------
// Types of node in the tree.
type (
	// Node in the tree.
	Node interface {
		// node marks a structure as a node structure.
		// It prevents external implementations of the interface.
		node()
		// Pos returns the position of the node in the source, if any.
		Pos() token.Pos
		// String returns the node printed with the default options.
		String() string
	}

	// Expr is an expression.
	Expr interface {
		Node
		// Precedence returns the precedence of the expression
		// used to parenthesize operands when printing.
		Precedence() int
		expr()
	}

	// Stmt is a statement in the body of a program or a loop.
	Stmt interface {
		Node
		// ID returns the identifier assigned by Tag.
		ID() NodeID
		// Surrounding returns the loop or program containing the statement.
		Surrounding() Block
		setSurrounding(Block)
		stmt()
	}

	// Block is a node owning a list of statements: a program or a loop.
	Block interface {
		Node
		ID() NodeID
		// Stmts returns the statements of the block.
		Stmts() []Stmt
		// Shapes returns the loop dimensions introduced by the block.
		Shapes() []*LoopShape
		// Surrounding returns the block containing this block.
		// Nil for a program.
		Surrounding() Block
	}

	// Hole is a placeholder for a node filled by a skeleton populator.
	Hole interface {
		Node
		// HoleName returns the name of the hole. Holes with the same name
		// and the same family are filled with the same value.
		HoleName() string
		// FamilyName returns the family of candidates filling the hole.
		FamilyName() string
	}
)

// Info about a node stored on all nodes.
type Info struct {
	// Src is the position of the node in the source.
	Src token.Pos

	// id is assigned by Tag and preserved by Clone.
	id NodeID
}

// Pos returns the position of the node in the source.
func (n *Info) Pos() token.Pos {
	return n.Src
}

// ID returns the identifier assigned by Tag.
func (n *Info) ID() NodeID {
	return n.id
}

// ----------------------------------------------------------------------------
// Declarations.
type (
	// Declaration of a parameter or a local array or scalar.
	Declaration struct {
		Info
		Name string
		// Type is the optional element type.
		Type string
		// Sizes has one element per dimension.
		// A nil element is a size inferred when creating an instance.
		Sizes []Expr
		// Local is true for scratch arrays that are not program parameters.
		Local bool
	}

	// Const is a free scalar variable of a program.
	Const struct {
		Info
		Name string
	}
)

// NumDims returns the number of dimensions of the declared variable.
func (d *Declaration) NumDims() int {
	return len(d.Sizes)
}

// IsScalar returns true if the declaration has no dimension.
func (d *Declaration) IsScalar() bool {
	return len(d.Sizes) == 0
}

// ----------------------------------------------------------------------------
// Expressions.
type (
	// LiteralKind is the kind of a literal.
	LiteralKind int

	// Literal is an int, float, or hexadecimal constant.
	Literal struct {
		Info
		Kind LiteralKind
		// Int is the value of Int and Hex literals.
		Int int64
		// Float is the value of Float literals.
		Float float64
		// Text is the source text of Float and Hex literals.
		Text string
	}

	// Access reads or writes a scalar or an array element.
	Access struct {
		Info
		// Var is the name of the variable.
		Var string
		// Hole replaces Var when the name is still to be filled.
		Hole *NameHole
		// Indices is empty for scalars.
		Indices []Expr
		// IsWrite is set by Link when the access is on the left-hand side of an assignment.
		IsWrite bool

		parent Stmt
	}

	// Op applies an operator to one (unary), two (binary), or three (?:) arguments.
	Op struct {
		Info
		Operator string
		// Hole replaces Operator when the operator is still to be filled.
		Hole *OpHole
		Args []Expr
	}
)

const (
	// IntLit is a decimal integer literal.
	IntLit LiteralKind = iota
	// FloatLit is a floating-point literal.
	FloatLit
	// HexLit is a hexadecimal integer literal.
	HexLit
)

// NewInt returns a new integer literal.
func NewInt(v int64) *Literal {
	return &Literal{Kind: IntLit, Int: v}
}

// IsInt returns true if the literal is an integer (decimal or hexadecimal).
func (l *Literal) IsInt() bool {
	return l.Kind == IntLit || l.Kind == HexLit
}

// NewScalar returns a new access to a scalar variable.
func NewScalar(name string) *Access {
	return &Access{Var: name}
}

// NewAccess returns a new access to an array element.
func NewAccess(name string, indices ...Expr) *Access {
	return &Access{Var: name, Indices: indices}
}

// IsScalar returns true if the access has no index.
func (a *Access) IsScalar() bool {
	return len(a.Indices) == 0
}

// Parent returns the assignment containing the access,
// or the loop if the access is part of a loop shape.
func (a *Access) Parent() Stmt {
	return a.parent
}

// NewOp returns a new operator node.
func NewOp(op string, args ...Expr) *Op {
	return &Op{Operator: op, Args: args}
}

// ----------------------------------------------------------------------------
// Statements.
type (
	// Assignment of an expression to a scalar or an array element.
	Assignment struct {
		Info
		LHS *Access
		RHS Expr

		surrounding Block
	}

	// NoOp is the empty statement.
	NoOp struct {
		Info
		surrounding Block
	}

	// LoopShape is one dimension of a loop.
	LoopShape struct {
		Info
		// Var is the induction variable.
		Var *Access
		// GreaterEq is the lower bound (inclusive).
		GreaterEq Expr
		// LessEq are the upper bounds (inclusive).
		// The effective bound is the minimum of all expressions.
		LessEq []Expr
		// Step is the increment of the induction variable.
		Step Expr
	}

	// Loop is a nest of loop dimensions with a body.
	Loop struct {
		Info
		LoopShapes []*LoopShape
		Body       []Stmt

		surrounding Block
	}

	// Program is the top-level node.
	Program struct {
		Info
		Decls []*Declaration
		Body  []Stmt
		// Consts are the free scalar variables.
		Consts []*Const
	}
)

// GreaterEqName returns the name of the implicit lower bound of a loop variable.
func GreaterEqName(loopVar string) string {
	return loopVar + "_greater_eq"
}

// LessEqName returns the name of the implicit upper bound of a loop variable.
func LessEqName(loopVar string) string {
	return loopVar + "_less_eq"
}

// NewLoopShape returns a loop dimension with default bounds and step.
func NewLoopShape(loopVar string) *LoopShape {
	return &LoopShape{
		Var:       NewScalar(loopVar),
		GreaterEq: NewScalar(GreaterEqName(loopVar)),
		LessEq:    []Expr{NewScalar(LessEqName(loopVar))},
		Step:      NewInt(1),
	}
}

// VarName returns the name of the induction variable.
func (s *LoopShape) VarName() string {
	return s.Var.Var
}

// StepValue returns the step if it is an integer literal.
func (s *LoopShape) StepValue() (int64, bool) {
	lit, ok := s.Step.(*Literal)
	if !ok || !lit.IsInt() {
		return 0, false
	}
	return lit.Int, true
}

// NewLoop returns a new loop. Back-references of the body are set.
func NewLoop(shapes []*LoopShape, body ...Stmt) *Loop {
	loop := &Loop{LoopShapes: shapes, Body: body}
	Link(loop)
	return loop
}

// NewProgram returns a new program. Back-references are set.
func NewProgram(decls []*Declaration, body []Stmt, consts []*Const) *Program {
	prog := &Program{Decls: decls, Body: body, Consts: consts}
	Link(prog)
	return prog
}

// NewAssignment returns a new assignment with back-references set.
func NewAssignment(lhs *Access, rhs Expr) *Assignment {
	a := &Assignment{LHS: lhs, RHS: rhs}
	Link(a)
	return a
}

// Decl returns the declaration of a variable or nil if the variable is not declared.
func (p *Program) Decl(name string) *Declaration {
	for _, decl := range p.Decls {
		if decl.Name == name {
			return decl
		}
	}
	return nil
}

// IsLocal returns true if a variable is declared as local.
func (p *Program) IsLocal(name string) bool {
	decl := p.Decl(name)
	return decl != nil && decl.Local
}

// ConstNames returns the names of the free scalar variables.
func (p *Program) ConstNames() []string {
	names := make([]string, len(p.Consts))
	for i, c := range p.Consts {
		names[i] = c.Name
	}
	return names
}

// ----------------------------------------------------------------------------
// Holes.
type (
	// NameHole is a variable name to fill.
	NameHole struct {
		Info
		Name, Family string
	}

	// StatementHole is a statement to fill.
	StatementHole struct {
		Info
		Name, Family string

		surrounding Block
	}

	// ExpressionHole is an expression to fill.
	ExpressionHole struct {
		Info
		Name, Family string
	}

	// OpHole is an operator to fill.
	OpHole struct {
		Info
		Name, Family string
	}
)

// ----------------------------------------------------------------------------
// Node markers and accessors.

func (*Declaration) node()    {}
func (*Const) node()          {}
func (*Literal) node()        {}
func (*Access) node()         {}
func (*Op) node()             {}
func (*Assignment) node()     {}
func (*NoOp) node()           {}
func (*LoopShape) node()      {}
func (*Loop) node()           {}
func (*Program) node()        {}
func (*NameHole) node()       {}
func (*StatementHole) node()  {}
func (*ExpressionHole) node() {}
func (*OpHole) node()         {}

func (*Literal) expr()        {}
func (*Access) expr()         {}
func (*Op) expr()             {}
func (*ExpressionHole) expr() {}

func (*Assignment) stmt()    {}
func (*NoOp) stmt()          {}
func (*Loop) stmt()          {}
func (*StatementHole) stmt() {}

// Surrounding block of the statement.
func (s *Assignment) Surrounding() Block { return s.surrounding }

// Surrounding block of the statement.
func (s *NoOp) Surrounding() Block { return s.surrounding }

// Surrounding block of the loop.
func (s *Loop) Surrounding() Block { return s.surrounding }

// Surrounding block of the hole.
func (s *StatementHole) Surrounding() Block { return s.surrounding }

// Surrounding always returns nil for a program.
func (p *Program) Surrounding() Block { return nil }

func (s *Assignment) setSurrounding(b Block)    { s.surrounding = b }
func (s *NoOp) setSurrounding(b Block)          { s.surrounding = b }
func (s *Loop) setSurrounding(b Block)          { s.surrounding = b }
func (s *StatementHole) setSurrounding(b Block) { s.surrounding = b }

// Stmts returns the body of the loop.
func (s *Loop) Stmts() []Stmt { return s.Body }

// Shapes returns the dimensions of the loop.
func (s *Loop) Shapes() []*LoopShape { return s.LoopShapes }

// Stmts returns the body of the program.
func (p *Program) Stmts() []Stmt { return p.Body }

// Shapes returns nil: a program does not introduce any loop dimension.
func (p *Program) Shapes() []*LoopShape { return nil }

// HoleName returns the name of the hole.
func (h *NameHole) HoleName() string { return h.Name }

// FamilyName returns the family of the hole.
func (h *NameHole) FamilyName() string { return h.Family }

// HoleName returns the name of the hole.
func (h *StatementHole) HoleName() string { return h.Name }

// FamilyName returns the family of the hole.
func (h *StatementHole) FamilyName() string { return h.Family }

// HoleName returns the name of the hole.
func (h *ExpressionHole) HoleName() string { return h.Name }

// FamilyName returns the family of the hole.
func (h *ExpressionHole) FamilyName() string { return h.Family }

// HoleName returns the name of the hole.
func (h *OpHole) HoleName() string { return h.Name }

// FamilyName returns the family of the hole.
func (h *OpHole) FamilyName() string { return h.Family }

// ----------------------------------------------------------------------------
// Precedence.

const (
	// PrecUnary is the precedence of unary operators.
	PrecUnary = 200
	// PrecMul is the precedence of multiplicative operators and operator holes.
	PrecMul = 150
	// PrecTernary is the precedence of the conditional operator.
	PrecTernary = 70
	// precAtom is higher than any operator.
	precAtom = 1000
)

var binaryPrecedence = map[string]int{
	"*": PrecMul, "/": PrecMul, "%": PrecMul,
	"+": 140, "-": 140,
	"<<": 130, ">>": 130,
	"<": 120, ">": 120, "<=": 120, ">=": 120,
	"==": 110, "!=": 110,
	"&":  100,
	"^":  95,
	"|":  93,
	"&&": 90,
	"||": 80,
	"?:": PrecTernary,
}

// BinaryPrecedence returns the precedence of a binary operator
// and false if the operator is unknown.
func BinaryPrecedence(op string) (int, bool) {
	prec, ok := binaryPrecedence[op]
	return prec, ok
}

// Precedence of a literal.
func (*Literal) Precedence() int { return precAtom }

// Precedence of an access.
func (*Access) Precedence() int { return precAtom }

// Precedence of an expression hole.
func (*ExpressionHole) Precedence() int { return precAtom }

// Precedence of the operator.
// Unknown binary operators are treated as the conditional operator.
func (o *Op) Precedence() int {
	if len(o.Args) == 1 {
		return PrecUnary
	}
	if o.Hole != nil {
		return PrecMul
	}
	prec, ok := binaryPrecedence[o.Operator]
	if !ok {
		return PrecTernary
	}
	return prec
}

// IsAtom returns true if the expression never needs parentheses.
func IsAtom(x Expr) bool {
	switch x.(type) {
	case *Access, *Literal, *ExpressionHole:
		return true
	}
	return false
}
