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

package transform

import (
	"slices"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/pkg/errors"
)

// nest returns the statements executing body under the dimensions shapes.
func nest(shapes []*ast.LoopShape, body []ast.Stmt) []ast.Stmt {
	if len(shapes) == 0 {
		return body
	}
	return []ast.Stmt{ast.NewLoop(shapes, body...)}
}

// UnrollDim unrolls a dimension of a loop by a factor.
//
// The dimension is split into an unrolled dimension stepping over factor
// iterations at a time and a remainder dimension executing the last
// iterations. The dimensions after the unrolled one are copied in both.
// The loop is modified in place if it has dimensions before the unrolled
// one: they surround the unrolled and the remainder loops. Otherwise, the
// loop is replaced in its surrounding block.
//
// False is returned if the bounds of the dimension are not literals.
func UnrollDim(loop *ast.Loop, dim int, factor int64) (bool, error) {
	shape := loop.LoopShapes[dim]
	unrolledShape, remainderShape, ok := splitShape(shape, factor)
	if !ok {
		return false, nil
	}
	_, _, step, _ := literalBounds(shape)
	before, after := loop.LoopShapes[:dim], loop.LoopShapes[dim+1:]
	body := nest(cloneShapes(after), cloneStmts(loop.Body))
	var unrolledBody []ast.Stmt
	for f := range factor {
		stmts, err := shiftAll(body, shape.VarName(), f*step)
		if err != nil {
			return false, err
		}
		unrolledBody = append(unrolledBody, stmts...)
	}
	seq := []ast.Stmt{
		ast.NewLoop([]*ast.LoopShape{unrolledShape}, unrolledBody...),
		ast.NewLoop([]*ast.LoopShape{remainderShape}, body...),
	}
	if len(before) > 0 {
		loop.LoopShapes = before
		loop.Body = seq
		ast.Link(loop)
		return true, nil
	}
	surrounding := loop.Surrounding()
	if surrounding == nil {
		return false, errors.Errorf("loop %v has no surrounding block", ast.LoopVars(loop.LoopShapes))
	}
	if err := replace(surrounding, loop, seq...); err != nil {
		return false, err
	}
	ast.Link(surrounding)
	return true, nil
}

// Unroll returns a copy of a program where every loop dimension is unrolled
// by a random factor in [1, MaxFactor]. Dimensions with bounds that are not
// literals are not unrolled. Unrolling never changes the order in which
// the iterations of a loop execute.
func Unroll(prog *ast.Program, opts Options) (*ast.Program, error) {
	opts = opts.withDefaults()
	res := ast.Clone(prog)
	// Inner dimensions are unrolled first so that their copies are unrolled.
	loops := ast.Loops(res)
	slices.Reverse(loops)
	for _, loop := range loops {
		for dim := len(loop.LoopShapes) - 1; dim >= 0; dim-- {
			factor := opts.factor()
			if factor == 1 {
				continue
			}
			shape := loop.LoopShapes[dim]
			ok, err := UnrollDim(loop, dim, factor)
			if err != nil {
				return nil, err
			}
			if !ok {
				opts.Logger.Debug("cannot unroll: bounds are not literals", "dimension", shape.String())
				continue
			}
			opts.Logger.Debug("unroll", "dimension", shape.VarName(), "factor", factor)
		}
	}
	ast.Link(res)
	return res, nil
}
