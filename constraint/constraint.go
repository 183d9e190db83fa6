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

// Package constraint translates pattern expressions into solver terms.
//
// Only integer arithmetic over scalar variables is representable:
// literals, scalars of the environment, unary + and -, binary + - *,
// and divisions by a constant dividing the dividend exactly.
// Other expressions are unrepresentable. Analyses treat an unrepresentable
// expression as a worst case instead of failing.
package constraint

import (
	"go/token"
	"maps"
	"slices"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/fmterr"
	"github.com/loopgen/loopgen/solver"
	"github.com/pkg/errors"
)

// ErrUnrepresentable is returned by Require for expressions without a solver term.
var ErrUnrepresentable = errors.New("unrepresentable expression")

// Env maps the names of scalar variables to solver terms.
type Env map[string]solver.Term

// NewEnv returns an environment mapping every name to a solver variable of the same name.
func NewEnv(names ...string) Env {
	env := make(Env, len(names))
	for _, name := range names {
		env[name] = solver.V(name)
	}
	return env
}

// ScalarEnv returns an environment with a solver variable for every scalar
// accessed in the body or in the declaration sizes of a program.
func ScalarEnv(prog *ast.Program) Env {
	env := make(Env)
	add := func(n ast.Node) {
		for _, acc := range ast.Accesses(n) {
			if acc.IsScalar() && acc.Hole == nil {
				env[acc.Var] = solver.V(acc.Var)
			}
		}
	}
	for _, stmt := range prog.Body {
		add(stmt)
	}
	for _, decl := range prog.Decls {
		for _, size := range decl.Sizes {
			if size != nil {
				add(size)
			}
		}
	}
	return env
}

// With returns a copy of the environment where names are mapped to other terms.
func (env Env) With(terms map[string]solver.Term) Env {
	res := maps.Clone(env)
	if res == nil {
		res = make(Env)
	}
	maps.Copy(res, terms)
	return res
}

// Names returns the sorted names of the environment.
func (env Env) Names() []string {
	return slices.Sorted(maps.Keys(env))
}

// ExprToCExpr returns the solver term of an expression.
// False is returned if the expression is unrepresentable.
func ExprToCExpr(x ast.Expr, env Env) (solver.Term, bool) {
	switch xT := x.(type) {
	case *ast.Literal:
		if !xT.IsInt() {
			return nil, false
		}
		return solver.C(xT.Int), true
	case *ast.Access:
		if !xT.IsScalar() || xT.Hole != nil {
			return nil, false
		}
		t, ok := env[xT.Var]
		return t, ok
	case *ast.Op:
		if xT.Hole != nil {
			return nil, false
		}
		return opToCExpr(xT, env)
	}
	return nil, false
}

func opToCExpr(op *ast.Op, env Env) (solver.Term, bool) {
	args := make([]solver.Term, len(op.Args))
	for i, arg := range op.Args {
		var ok bool
		if args[i], ok = ExprToCExpr(arg, env); !ok {
			return nil, false
		}
	}
	switch len(args) {
	case 1:
		switch op.Operator {
		case "+":
			return args[0], true
		case "-":
			return solver.Neg{X: args[0]}, true
		}
	case 2:
		x, y := args[0], args[1]
		switch op.Operator {
		case "+":
			return solver.Add{X: x, Y: y}, true
		case "-":
			return solver.Sub{X: x, Y: y}, true
		case "*":
			return solver.Mul{X: x, Y: y}, true
		case "/":
			d, ok := solver.Constant(y)
			if !ok {
				return nil, false
			}
			return solver.DivExact(x, d)
		}
	}
	return nil, false
}

// Require returns the solver term of an expression or an error
// wrapping ErrUnrepresentable.
func Require(x ast.Expr, env Env) (solver.Term, error) {
	t, ok := ExprToCExpr(x, env)
	if !ok {
		return nil, errors.Wrapf(ErrUnrepresentable, "%s", x.String())
	}
	return t, nil
}

// RequireAt is Require with the position of the expression in the error.
func RequireAt(fset *token.FileSet, x ast.Expr, env Env) (solver.Term, error) {
	t, err := Require(x, env)
	if err != nil {
		return nil, fmterr.Position(fset, x, err)
	}
	return t, nil
}
