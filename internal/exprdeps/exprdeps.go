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

// Package exprdeps extracts scalar variable dependencies from pattern trees.
package exprdeps

import (
	"slices"
	"sort"

	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/build/ast"
)

func scalars(done *ordered.Map[string, *ast.Access], n ast.Node) {
	ast.Inspect(n, func(n ast.Node) bool {
		acc, ok := n.(*ast.Access)
		if !ok {
			return true
		}
		if acc.IsScalar() && acc.Hole == nil {
			if !done.Has(acc.Var) {
				done.Store(acc.Var, acc)
			}
		}
		return true
	})
}

// Scalars returns the first access to every scalar variable used in an expression,
// in order of appearance.
func Scalars(expr ast.Expr) []*ast.Access {
	done := ordered.NewMap[string, *ast.Access]()
	scalars(done, expr)
	return slices.Collect(done.Values())
}

// Names returns the names of the scalar variables used in an expression.
func Names(expr ast.Expr) []string {
	done := ordered.NewMap[string, *ast.Access]()
	scalars(done, expr)
	return slices.Collect(done.Keys())
}

// Consts returns the free scalar variables of a program sorted by name,
// that is all scalars neither declared nor used as a loop induction variable.
// Scalars used in declaration sizes are included.
func Consts(prog *ast.Program) []*ast.Const {
	bound := make(map[string]bool)
	for _, decl := range prog.Decls {
		bound[decl.Name] = true
	}
	for _, name := range ast.AllLoopVars(prog) {
		bound[name] = true
	}
	done := ordered.NewMap[string, *ast.Access]()
	for _, decl := range prog.Decls {
		for _, size := range decl.Sizes {
			if size != nil {
				scalars(done, size)
			}
		}
	}
	for _, stmt := range prog.Body {
		scalars(done, stmt)
	}
	var names []string
	for name := range done.Keys() {
		if !bound[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	consts := make([]*ast.Const, len(names))
	for i, name := range names {
		consts[i] = &ast.Const{Name: name}
	}
	return consts
}

// Infer sets the constants of a program to its free scalar variables.
func Infer(prog *ast.Program) *ast.Program {
	prog.Consts = Consts(prog)
	return prog
}
