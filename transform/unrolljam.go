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
	"context"
	"slices"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/depend"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// CanUnrollAndJam returns true if a dimension of a loop can be unrolled
// by a factor and its copies jammed in the body of the loop.
//
// It is the case if the dimension can be moved to the innermost position
// of the loop. Otherwise, every dependence of the loop carried along the
// dimension must have a distance of at least (factor-1)*step along that
// dimension. A dependence without a distance vector is assumed to prevent
// the transformation.
func CanUnrollAndJam(g *depend.Graph, loop *ast.Loop, dim int, factor int64) bool {
	n := len(loop.LoopShapes)
	order := slices.Concat(lo.Range(dim), lo.RangeFrom(dim+1, n-dim-1), []int{dim})
	if IsPermutable(g, loop, order) {
		return true
	}
	shape := loop.LoopShapes[dim]
	step, ok := shape.StepValue()
	if !ok {
		return false
	}
	want := (factor - 1) * step
	return lo.EveryBy(Dependences(g, loop), func(dep *depend.Dependence) bool {
		if dep.Distance == nil {
			return false
		}
		i := slices.Index(dep.LoopVars, shape.VarName())
		return i < 0 || dep.Distance[i] >= want
	})
}

// UnrollAndJamDim unrolls a dimension of a loop and jams the copies of the
// body in a single loop over the following dimensions. The dimension cannot
// be the last one of the loop.
//
// The dimension is split as by UnrollDim. The loop is modified in place if
// it has dimensions before the unrolled one. Otherwise, it is replaced in its
// surrounding block.
//
// False is returned if the bounds of the dimension are not literals or if
// the bounds of a following dimension depend on its loop variable.
func UnrollAndJamDim(loop *ast.Loop, dim int, factor int64) (bool, error) {
	if dim >= len(loop.LoopShapes)-1 {
		return false, errors.Errorf("cannot unroll and jam the last dimension %d of a loop", dim)
	}
	shape := loop.LoopShapes[dim]
	before, after := loop.LoopShapes[:dim], loop.LoopShapes[dim+1:]
	if lo.SomeBy(after, func(s *ast.LoopShape) bool { return uses(s, shape.VarName()) }) {
		return false, nil
	}
	unrolledShape, remainderShape, ok := splitShape(shape, factor)
	if !ok {
		return false, nil
	}
	_, _, step, _ := literalBounds(shape)
	var jammed []ast.Stmt
	for f := range factor {
		stmts, err := shiftAll(loop.Body, shape.VarName(), f*step)
		if err != nil {
			return false, err
		}
		jammed = append(jammed, stmts...)
	}
	seq := []ast.Stmt{
		ast.NewLoop(slices.Concat([]*ast.LoopShape{unrolledShape}, cloneShapes(after)), jammed...),
		ast.NewLoop(slices.Concat([]*ast.LoopShape{remainderShape}, cloneShapes(after)), cloneStmts(loop.Body)...),
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

// UnrollAndJam returns a copy of a program where a dimension of a loop,
// other than its last one, is unrolled by a random factor in [2, MaxFactor]
// and jammed. Loops are drawn with a probability proportional to their
// number of dimensions.
//
// ErrNoLegalTransformation is returned if no legal choice is drawn after
// MaxTries attempts.
func UnrollAndJam(ctx context.Context, prog *ast.Program, opts Options) (*ast.Program, error) {
	opts = opts.withDefaults()
	g, tagged, err := depend.Analyze(ctx, prog, opts.Analysis)
	if err != nil {
		return nil, err
	}
	if err := depend.CalculateDistanceVectors(ctx, g, opts.Analysis); err != nil {
		return nil, err
	}
	candidates := lo.Filter(ast.Loops(tagged), func(loop *ast.Loop, _ int) bool {
		return len(loop.LoopShapes) > 1
	})
	if len(candidates) == 0 || opts.MaxFactor < 2 {
		return nil, errors.Wrapf(ErrNoLegalTransformation, "no loop with more than one dimension or maximum factor %d less than 2", opts.MaxFactor)
	}
	weights := lo.Map(candidates, func(loop *ast.Loop, _ int) int { return len(loop.LoopShapes) })
	total := lo.Sum(weights)
	for range opts.MaxTries {
		loop := candidates[pick(weights, opts.Rand.IntN(total))]
		dim := opts.Rand.IntN(len(loop.LoopShapes) - 1)
		factor := 2 + opts.Rand.Int64N(opts.MaxFactor-1)
		if !CanUnrollAndJam(g, loop, dim, factor) {
			opts.Logger.Debug("illegal unroll and jam", "dimension", loop.LoopShapes[dim].VarName(), "factor", factor)
			continue
		}
		res := ast.Clone(tagged)
		target, ok := ast.FindByID(res, loop.ID()).(*ast.Loop)
		if !ok {
			return nil, errors.Errorf("loop %d not found in the copy of the program", loop.ID())
		}
		ok, err := UnrollAndJamDim(target, dim, factor)
		if err != nil {
			return nil, err
		}
		if !ok {
			opts.Logger.Debug("cannot unroll and jam: unsupported bounds", "dimension", loop.LoopShapes[dim].String())
			continue
		}
		opts.Logger.Debug("unroll and jam", "dimension", loop.LoopShapes[dim].VarName(), "factor", factor)
		ast.Link(res)
		return res, nil
	}
	return nil, errors.Wrapf(ErrNoLegalTransformation, "unroll and jam after %d tries", opts.MaxTries)
}

// uses returns true if the bounds or the step of a loop dimension read a variable.
func uses(shape *ast.LoopShape, name string) bool {
	found := false
	ast.Inspect(shape, func(n ast.Node) bool {
		if acc, ok := n.(*ast.Access); ok && acc != shape.Var && acc.Var == name {
			found = true
		}
		return !found
	})
	return found
}

// pick returns the index i such that the sum of weights[:i] is at most
// r and the sum of weights[:i+1] is greater than r.
func pick(weights []int, r int) int {
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}
