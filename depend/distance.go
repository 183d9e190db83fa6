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

package depend

import (
	"context"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/solver"
	"github.com/pkg/errors"
)

// literalValue returns the value of an expression folding to an integer literal.
func literalValue(x ast.Expr) (int64, bool) {
	return ast.IntValue(ast.SimplifyExpr(ast.CloneExpr(x)))
}

// tripRange returns the first and last values of a loop variable
// if the bounds of its loop dimension are literals.
func tripRange(shape *ast.LoopShape) (lo, hi int64, ok bool) {
	if lo, ok = literalValue(shape.GreaterEq); !ok || len(shape.LessEq) == 0 {
		return 0, 0, false
	}
	for i, x := range shape.LessEq {
		v, ok := literalValue(x)
		if !ok {
			return 0, 0, false
		}
		if i == 0 || v < hi {
			hi = v
		}
	}
	return lo, hi, true
}

// CalculateDistanceVectors computes the distance vector of every dependence
// of a graph. The distance of a dependence is the smallest number of
// iterations, in row-major order of the loops shared by its source and its
// sink, between an execution of the source and an execution of the sink.
//
// The bounds of all the shared loops must be literals. The distance of
// a dependence is left to nil if it cannot be computed. Callers must then
// assume the worst.
func CalculateDistanceVectors(ctx context.Context, g *Graph, opts Options) error {
	a := &analyzer{ctx: ctx, opts: opts.withDefaults(), env: g.env}
	for _, dep := range g.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.distance(dep); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) distance(dep *Dependence) error {
	dep.Distance = nil
	sys := a.newPairSystem(dep.Source, dep.Sink)
	if len(sys.common) != len(dep.Direction) {
		return errors.Errorf("direction vector %v does not match loop variables %v", dep.Direction, sys.common)
	}
	shapes := ast.ShapesOf(sys.commonLoops)
	widths := make([]int64, len(shapes))
	for i, shape := range shapes {
		lo, hi, ok := tripRange(shape)
		if !ok {
			a.opts.Logger.Debug("cannot compute a distance: loop bounds are not literals", "loop", shape.String())
			return nil
		}
		widths[i] = max(hi-lo+1, 1)
	}
	strides := make([]int64, len(widths))
	for i := len(widths) - 1; i >= 0; i-- {
		strides[i] = 1
		if i+1 < len(widths) {
			strides[i] = strides[i+1] * widths[i+1]
		}
	}
	fs := sys.fs
	var deltas []solver.Term
	for dim, d := range dep.Direction {
		fs = append(fs[:len(fs):len(fs)], sys.direction(dim, d))
		x := sys.common[dim]
		delta := solver.Sub{X: sys.sink.env[x], Y: sys.source.env[x]}
		deltas = append(deltas, solver.Mul{X: solver.C(strides[dim]), Y: delta})
	}
	opt, err := solver.FindMin(a.ctx, a.opts.Solver, fs, solver.Sum(deltas...))
	if errors.Is(err, solver.ErrBackend) {
		return err
	}
	if err != nil || opt.Status != solver.Sat {
		a.opts.Logger.Debug("cannot compute a distance", "dependence", dep.String(), "optimum", opt.String(), "error", err)
		return nil
	}
	dep.Distance = make([]int64, len(sys.common))
	for dim, x := range sys.common {
		dep.Distance[dim] = opt.Model.Eval(sys.sink.env[x]) - opt.Model.Eval(sys.source.env[x])
	}
	dep.LoopVars = sys.common
	return nil
}
