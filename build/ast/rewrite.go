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
	"github.com/pkg/errors"
)

// Order in which a rewrite visits a node and its children.
type Order int

const (
	// PreOrder replaces a node before visiting its children.
	// The children of a replacement are not visited.
	PreOrder Order = iota
	// PostOrder replaces a node after its children have been rewritten.
	PostOrder
)

type (
	// Replacer selects and replaces nodes during a rewrite.
	Replacer interface {
		// ShouldSkip returns true to leave a node and its children untouched.
		ShouldSkip(Node) bool
		// ShouldReplace returns true if the node needs to be replaced.
		ShouldReplace(Node) bool
		// Replace returns the substitute of a node.
		Replace(Node) (Node, error)
	}

	// ReplacerFuncs implements Replacer with functions.
	// A nil Skip never skips.
	ReplacerFuncs struct {
		Skip  func(Node) bool
		Match func(Node) bool
		With  func(Node) (Node, error)
	}
)

var _ Replacer = ReplacerFuncs{}

// ShouldSkip calls Skip.
func (r ReplacerFuncs) ShouldSkip(n Node) bool {
	return r.Skip != nil && r.Skip(n)
}

// ShouldReplace calls Match.
func (r ReplacerFuncs) ShouldReplace(n Node) bool {
	return r.Match(n)
}

// Replace calls With.
func (r ReplacerFuncs) Replace(n Node) (Node, error) {
	return r.With(n)
}

type rewriter struct {
	r     Replacer
	order Order
}

// Rewrite walks a tree and substitutes the nodes selected by a replacer.
// The tree is modified in place: clone the tree first to keep the original.
// The rewritten root is returned with its back-references rebuilt.
func Rewrite(root Node, r Replacer, order Order) (Node, error) {
	rw := rewriter{r: r, order: order}
	n, err := rw.node(root)
	if err != nil {
		return nil, err
	}
	Link(n)
	return n, nil
}

// RewriteExpr rewrites an expression.
func RewriteExpr(x Expr, r Replacer, order Order) (Expr, error) {
	n, err := Rewrite(x, r, order)
	if err != nil {
		return nil, err
	}
	return asExpr(x, n)
}

// RewriteProgram rewrites a program.
func RewriteProgram(prog *Program, r Replacer, order Order) (*Program, error) {
	n, err := Rewrite(prog, r, order)
	if err != nil {
		return nil, err
	}
	res, ok := n.(*Program)
	if !ok {
		return nil, errors.Errorf("cannot replace program with %T", n)
	}
	return res, nil
}

func asExpr(orig, n Node) (Expr, error) {
	if n == nil {
		return nil, nil
	}
	x, ok := n.(Expr)
	if !ok {
		return nil, errors.Errorf("cannot replace %T with %T: expression required", orig, n)
	}
	return x, nil
}

func (rw rewriter) node(n Node) (Node, error) {
	if n == nil || rw.r.ShouldSkip(n) {
		return n, nil
	}
	if rw.order == PreOrder && rw.r.ShouldReplace(n) {
		return rw.r.Replace(n)
	}
	if err := rw.children(n); err != nil {
		return nil, err
	}
	if rw.order == PostOrder && rw.r.ShouldReplace(n) {
		return rw.r.Replace(n)
	}
	return n, nil
}

func (rw rewriter) expr(x Expr) (Expr, error) {
	if x == nil {
		return nil, nil
	}
	n, err := rw.node(x)
	if err != nil {
		return nil, err
	}
	return asExpr(x, n)
}

func (rw rewriter) exprs(xs []Expr) error {
	for i, x := range xs {
		var err error
		if xs[i], err = rw.expr(x); err != nil {
			return err
		}
	}
	return nil
}

func (rw rewriter) access(acc *Access) (*Access, error) {
	n, err := rw.node(acc)
	if err != nil {
		return nil, err
	}
	res, ok := n.(*Access)
	if !ok {
		return nil, errors.Errorf("cannot replace %s with %T: access required", acc.String(), n)
	}
	return res, nil
}

func (rw rewriter) stmts(stmts []Stmt) error {
	for i, stmt := range stmts {
		n, err := rw.node(stmt)
		if err != nil {
			return err
		}
		res, ok := n.(Stmt)
		if !ok {
			return errors.Errorf("cannot replace %T with %T: statement required", stmt, n)
		}
		stmts[i] = res
	}
	return nil
}

func (rw rewriter) children(n Node) error {
	var err error
	switch nT := n.(type) {
	case *Program:
		for i, decl := range nT.Decls {
			var res Node
			if res, err = rw.node(decl); err != nil {
				return err
			}
			d, ok := res.(*Declaration)
			if !ok {
				return errors.Errorf("cannot replace declaration %s with %T", decl.Name, res)
			}
			nT.Decls[i] = d
		}
		for i, cst := range nT.Consts {
			var res Node
			if res, err = rw.node(cst); err != nil {
				return err
			}
			c, ok := res.(*Const)
			if !ok {
				return errors.Errorf("cannot replace constant %s with %T", cst.Name, res)
			}
			nT.Consts[i] = c
		}
		return rw.stmts(nT.Body)
	case *Declaration:
		return rw.exprs(nT.Sizes)
	case *Loop:
		for i, shape := range nT.LoopShapes {
			var res Node
			if res, err = rw.node(shape); err != nil {
				return err
			}
			s, ok := res.(*LoopShape)
			if !ok {
				return errors.Errorf("cannot replace loop shape %s with %T", shape.String(), res)
			}
			nT.LoopShapes[i] = s
		}
		return rw.stmts(nT.Body)
	case *LoopShape:
		if nT.Var, err = rw.access(nT.Var); err != nil {
			return err
		}
		if nT.GreaterEq, err = rw.expr(nT.GreaterEq); err != nil {
			return err
		}
		if err = rw.exprs(nT.LessEq); err != nil {
			return err
		}
		nT.Step, err = rw.expr(nT.Step)
		return err
	case *Assignment:
		if nT.LHS, err = rw.access(nT.LHS); err != nil {
			return err
		}
		nT.RHS, err = rw.expr(nT.RHS)
		return err
	case *Access:
		return rw.exprs(nT.Indices)
	case *Op:
		return rw.exprs(nT.Args)
	case *Const, *Literal, *NoOp, *NameHole, *StatementHole, *ExpressionHole, *OpHole:
		return nil
	}
	return errors.Errorf("cannot rewrite node of type %T", n)
}

// ----------------------------------------------------------------------------
// Inspection.

// Inspect traverses a tree in pre-order (source order).
// If f returns false, the children of the node are not visited.
// Declarations and constants of a program are visited before its body.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch nT := n.(type) {
	case *Program:
		for _, decl := range nT.Decls {
			Inspect(decl, f)
		}
		for _, cst := range nT.Consts {
			Inspect(cst, f)
		}
		for _, stmt := range nT.Body {
			Inspect(stmt, f)
		}
	case *Declaration:
		inspectExprs(nT.Sizes, f)
	case *Loop:
		for _, shape := range nT.LoopShapes {
			Inspect(shape, f)
		}
		for _, stmt := range nT.Body {
			Inspect(stmt, f)
		}
	case *LoopShape:
		Inspect(nT.Var, f)
		if nT.GreaterEq != nil {
			Inspect(nT.GreaterEq, f)
		}
		inspectExprs(nT.LessEq, f)
		if nT.Step != nil {
			Inspect(nT.Step, f)
		}
	case *Assignment:
		Inspect(nT.LHS, f)
		Inspect(nT.RHS, f)
	case *Access:
		if nT.Hole != nil {
			Inspect(nT.Hole, f)
		}
		inspectExprs(nT.Indices, f)
	case *Op:
		if nT.Hole != nil {
			Inspect(nT.Hole, f)
		}
		inspectExprs(nT.Args, f)
	}
}

func inspectExprs(xs []Expr, f func(Node) bool) {
	for _, x := range xs {
		if x != nil {
			Inspect(x, f)
		}
	}
}
