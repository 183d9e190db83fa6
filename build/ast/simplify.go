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
	"slices"
)

// IntValue returns the value of an expression if it is an integer literal.
func IntValue(x Expr) (int64, bool) {
	lit, ok := x.(*Literal)
	if !ok || !lit.IsInt() {
		return 0, false
	}
	return lit.Int, true
}

func isIntValue(x Expr, v int64) bool {
	got, ok := IntValue(x)
	return ok && got == v
}

func simplifyOp(op *Op) Expr {
	if op.Hole != nil {
		return op
	}
	if len(op.Args) == 1 {
		if v, ok := IntValue(op.Args[0]); ok && op.Operator == "-" {
			return &Literal{Info: op.Info, Kind: IntLit, Int: -v}
		}
		return op
	}
	if len(op.Args) != 2 {
		return op
	}
	x, y := op.Args[0], op.Args[1]
	xv, xOk := IntValue(x)
	yv, yOk := IntValue(y)
	if xOk && yOk {
		switch op.Operator {
		case "+":
			return &Literal{Info: op.Info, Kind: IntLit, Int: xv + yv}
		case "-":
			return &Literal{Info: op.Info, Kind: IntLit, Int: xv - yv}
		case "*":
			return &Literal{Info: op.Info, Kind: IntLit, Int: xv * yv}
		}
	}
	switch op.Operator {
	case "*":
		if isIntValue(x, 0) || isIntValue(y, 0) {
			return &Literal{Info: op.Info, Kind: IntLit, Int: 0}
		}
		if isIntValue(x, 1) {
			return y
		}
		if isIntValue(y, 1) {
			return x
		}
	case "+":
		if isIntValue(x, 0) {
			return y
		}
		if isIntValue(y, 0) {
			return x
		}
	case "-":
		if isIntValue(y, 0) {
			return x
		}
	}
	return op
}

var simplifier = ReplacerFuncs{
	Match: func(n Node) bool {
		_, ok := n.(*Op)
		return ok
	},
	With: func(n Node) (Node, error) {
		return simplifyOp(n.(*Op)), nil
	},
}

// Simplify removes multiplications by 0 and 1, additions and subtractions of 0,
// and folds integer arithmetic on literals.
// The program is modified in place. A single call reaches a fixed point.
func Simplify(prog *Program) (*Program, error) {
	return RewriteProgram(prog, simplifier, PostOrder)
}

// SimplifyExpr simplifies an expression. See Simplify.
func SimplifyExpr(x Expr) Expr {
	res, err := RewriteExpr(x, simplifier, PostOrder)
	if err != nil {
		// The simplifier always replaces an expression with an expression.
		panic(err)
	}
	return res
}

// BindConsts replaces scalar accesses to free variables with literals
// and removes the bound variables from the constants of the program.
// Declaration sizes are also bound. The program is modified in place.
func BindConsts(prog *Program, values map[string]Expr) (*Program, error) {
	binder := ReplacerFuncs{
		Match: func(n Node) bool {
			acc, ok := n.(*Access)
			if !ok || !acc.IsScalar() || acc.Hole != nil {
				return false
			}
			_, ok = values[acc.Var]
			return ok
		},
		With: func(n Node) (Node, error) {
			acc := n.(*Access)
			return CloneExpr(values[acc.Var]), nil
		},
	}
	res, err := RewriteProgram(prog, binder, PreOrder)
	if err != nil {
		return nil, err
	}
	res.Consts = slices.DeleteFunc(res.Consts, func(c *Const) bool {
		_, bound := values[c.Name]
		return bound
	})
	return res, nil
}

// Rename renames variables in accesses, declarations, and constants.
// The tree is modified in place.
func Rename(root Node, names map[string]string) {
	Inspect(root, func(n Node) bool {
		switch nT := n.(type) {
		case *Access:
			if to, ok := names[nT.Var]; ok && nT.Hole == nil {
				nT.Var = to
			}
		case *Declaration:
			if to, ok := names[nT.Name]; ok {
				nT.Name = to
			}
		case *Const:
			if to, ok := names[nT.Name]; ok {
				nT.Name = to
			}
		}
		return true
	})
}

// PlusOne returns x+1 without modifying x.
func PlusOne(x Expr) Expr {
	if v, ok := IntValue(x); ok {
		return NewInt(v + 1)
	}
	return NewOp("+", CloneExpr(x), NewInt(1))
}

// Merge appends a copy of another program to p.
// Declarations and constants missing from p are added.
// Merge returns false and leaves p untouched if a variable is declared
// with different numbers of dimensions in the two programs.
func (p *Program) Merge(other *Program) bool {
	cloned := Clone(other)
	for _, decl := range cloned.Decls {
		prev := p.Decl(decl.Name)
		if prev != nil && prev.NumDims() != decl.NumDims() {
			return false
		}
	}
	for _, decl := range cloned.Decls {
		if p.Decl(decl.Name) == nil {
			p.Decls = append(p.Decls, decl)
		}
	}
	for _, cst := range cloned.Consts {
		if !slices.ContainsFunc(p.Consts, func(c *Const) bool { return c.Name == cst.Name }) {
			p.Consts = append(p.Consts, cst)
		}
	}
	p.Body = append(p.Body, cloned.Body...)
	Link(p)
	return true
}
