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
	"slices"
)

// Clone returns a deep copy of a node.
// Node identifiers are preserved. Back-references of the copy are rebuilt.
func Clone[T Node](n T) T {
	c := cloneNode(n)
	if c == nil {
		var zero T
		return zero
	}
	Link(c)
	return c.(T)
}

// CloneExpr returns a deep copy of an expression. Nil is returned for nil.
func CloneExpr(x Expr) Expr {
	if x == nil {
		return nil
	}
	return cloneExpr(x)
}

func cloneExprs(xs []Expr) []Expr {
	if xs == nil {
		return nil
	}
	cs := make([]Expr, len(xs))
	for i, x := range xs {
		if x != nil {
			cs[i] = cloneExpr(x)
		}
	}
	return cs
}

func cloneStmts(stmts []Stmt) []Stmt {
	cs := make([]Stmt, len(stmts))
	for i, stmt := range stmts {
		cs[i] = cloneStmt(stmt)
	}
	return cs
}

func cloneNode(n Node) Node {
	switch nT := n.(type) {
	case nil:
		return nil
	case *Program:
		return cloneProgram(nT)
	case Stmt:
		return cloneStmt(nT)
	case Expr:
		return cloneExpr(nT)
	case *Declaration:
		return cloneDecl(nT)
	case *Const:
		c := *nT
		return &c
	case *LoopShape:
		return cloneShape(nT)
	case *NameHole:
		c := *nT
		return &c
	case *OpHole:
		c := *nT
		return &c
	}
	panic(fmt.Sprintf("cannot clone node %T", n))
}

func cloneProgram(prog *Program) *Program {
	c := &Program{
		Info:  prog.Info,
		Decls: make([]*Declaration, len(prog.Decls)),
		Body:  cloneStmts(prog.Body),
	}
	for i, decl := range prog.Decls {
		c.Decls[i] = cloneDecl(decl)
	}
	if prog.Consts != nil {
		c.Consts = make([]*Const, len(prog.Consts))
		for i, cst := range prog.Consts {
			cc := *cst
			c.Consts[i] = &cc
		}
	}
	return c
}

func cloneDecl(decl *Declaration) *Declaration {
	c := *decl
	c.Sizes = cloneExprs(decl.Sizes)
	return &c
}

func cloneShape(shape *LoopShape) *LoopShape {
	return &LoopShape{
		Info:      shape.Info,
		Var:       cloneAccess(shape.Var),
		GreaterEq: CloneExpr(shape.GreaterEq),
		LessEq:    cloneExprs(shape.LessEq),
		Step:      CloneExpr(shape.Step),
	}
}

func cloneStmt(stmt Stmt) Stmt {
	switch stmtT := stmt.(type) {
	case *Assignment:
		return &Assignment{
			Info: stmtT.Info,
			LHS:  cloneAccess(stmtT.LHS),
			RHS:  CloneExpr(stmtT.RHS),
		}
	case *NoOp:
		return &NoOp{Info: stmtT.Info}
	case *StatementHole:
		return &StatementHole{Info: stmtT.Info, Name: stmtT.Name, Family: stmtT.Family}
	case *Loop:
		c := &Loop{
			Info:       stmtT.Info,
			LoopShapes: make([]*LoopShape, len(stmtT.LoopShapes)),
			Body:       cloneStmts(stmtT.Body),
		}
		for i, shape := range stmtT.LoopShapes {
			c.LoopShapes[i] = cloneShape(shape)
		}
		return c
	}
	panic(fmt.Sprintf("cannot clone statement %T", stmt))
}

func cloneAccess(acc *Access) *Access {
	if acc == nil {
		return nil
	}
	c := &Access{
		Info:    acc.Info,
		Var:     acc.Var,
		Indices: cloneExprs(acc.Indices),
		IsWrite: acc.IsWrite,
	}
	if acc.Hole != nil {
		h := *acc.Hole
		c.Hole = &h
	}
	return c
}

func cloneExpr(x Expr) Expr {
	switch xT := x.(type) {
	case *Literal:
		c := *xT
		return &c
	case *Access:
		return cloneAccess(xT)
	case *Op:
		c := &Op{
			Info:     xT.Info,
			Operator: xT.Operator,
			Args:     cloneExprs(xT.Args),
		}
		if xT.Hole != nil {
			h := *xT.Hole
			c.Hole = &h
		}
		return c
	case *ExpressionHole:
		c := *xT
		return &c
	}
	panic(fmt.Sprintf("cannot clone expression %T", x))
}

// ----------------------------------------------------------------------------
// Structural equality.

// Equal returns true if two nodes are structurally equal.
// Positions, identifiers and back-references are ignored.
func Equal(a, b Node) bool {
	switch aT := a.(type) {
	case nil:
		return b == nil
	case *Program:
		bT, ok := b.(*Program)
		return ok &&
			slices.EqualFunc(aT.Decls, bT.Decls, func(x, y *Declaration) bool { return Equal(x, y) }) &&
			equalStmts(aT.Body, bT.Body) &&
			slices.EqualFunc(aT.Consts, bT.Consts, func(x, y *Const) bool { return x.Name == y.Name })
	case *Declaration:
		bT, ok := b.(*Declaration)
		return ok &&
			aT.Name == bT.Name &&
			aT.Type == bT.Type &&
			aT.Local == bT.Local &&
			equalExprs(aT.Sizes, bT.Sizes)
	case *Const:
		bT, ok := b.(*Const)
		return ok && aT.Name == bT.Name
	case *Literal:
		bT, ok := b.(*Literal)
		if !ok || aT.Kind != bT.Kind {
			return false
		}
		if aT.Kind == FloatLit {
			return aT.Float == bT.Float
		}
		return aT.Int == bT.Int
	case *Access:
		bT, ok := b.(*Access)
		return ok &&
			aT.Var == bT.Var &&
			equalNameHoles(aT.Hole, bT.Hole) &&
			equalExprs(aT.Indices, bT.Indices)
	case *Op:
		bT, ok := b.(*Op)
		return ok &&
			aT.Operator == bT.Operator &&
			equalOpHoles(aT.Hole, bT.Hole) &&
			equalExprs(aT.Args, bT.Args)
	case *Assignment:
		bT, ok := b.(*Assignment)
		return ok && Equal(aT.LHS, bT.LHS) && Equal(aT.RHS, bT.RHS)
	case *NoOp:
		_, ok := b.(*NoOp)
		return ok
	case *LoopShape:
		bT, ok := b.(*LoopShape)
		return ok &&
			Equal(aT.Var, bT.Var) &&
			Equal(aT.GreaterEq, bT.GreaterEq) &&
			equalExprs(aT.LessEq, bT.LessEq) &&
			Equal(aT.Step, bT.Step)
	case *Loop:
		bT, ok := b.(*Loop)
		return ok &&
			slices.EqualFunc(aT.LoopShapes, bT.LoopShapes, func(x, y *LoopShape) bool { return Equal(x, y) }) &&
			equalStmts(aT.Body, bT.Body)
	case *NameHole:
		bT, ok := b.(*NameHole)
		return ok && equalNameHoles(aT, bT)
	case *StatementHole:
		bT, ok := b.(*StatementHole)
		return ok && aT.Name == bT.Name && aT.Family == bT.Family
	case *ExpressionHole:
		bT, ok := b.(*ExpressionHole)
		return ok && aT.Name == bT.Name && aT.Family == bT.Family
	case *OpHole:
		bT, ok := b.(*OpHole)
		return ok && equalOpHoles(aT, bT)
	}
	return false
}

func equalNameHoles(a, b *NameHole) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name == b.Name && a.Family == b.Family
}

func equalOpHoles(a, b *OpHole) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name == b.Name && a.Family == b.Family
}

func equalExprs(a, b []Expr) bool {
	return slices.EqualFunc(a, b, func(x, y Expr) bool {
		if x == nil || y == nil {
			return x == nil && y == nil
		}
		return Equal(x, y)
	})
}

func equalStmts(a, b []Stmt) bool {
	return slices.EqualFunc(a, b, func(x, y Stmt) bool { return Equal(x, y) })
}
