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

// Package transform applies random loop transformations to programs.
//
// Every transformation returns a new program and leaves its input
// untouched. Reorderings of loop dimensions (interchange, tiling,
// unroll-and-jam) are only applied when the dependences of the program
// computed by the depend package allow them. Unrolling is always legal.
package transform

import (
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/loopgen/loopgen/base/uname"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/depend"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DefaultMaxTries is the default number of random choices drawn
// before a transformation gives up.
const DefaultMaxTries = 10

// ErrNoLegalTransformation is returned when no random choice leads to
// a transformation preserving the dependences of a program.
var ErrNoLegalTransformation = errors.New("no legal transformation found")

// Options of the transformations.
type Options struct {
	// Rand draws the random choices. A randomly seeded source if nil.
	Rand *rand.Rand
	// MaxTries is the number of random choices tried by a transformation.
	// DefaultMaxTries if zero.
	MaxTries int
	// MaxFactor is the largest unroll factor or tile size.
	MaxFactor int64
	// Analysis configures the dependence analysis.
	Analysis depend.Options
	// Logger logs the applied transformations. slog.Default() if nil.
	Logger *slog.Logger
}

func (opts Options) withDefaults() Options {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = DefaultMaxTries
	}
	if opts.MaxFactor < 1 {
		opts.MaxFactor = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Analysis.Logger == nil {
		opts.Analysis.Logger = opts.Logger
	}
	return opts
}

// factor draws a factor in [1, MaxFactor].
func (opts Options) factor() int64 {
	return 1 + opts.Rand.Int64N(opts.MaxFactor)
}

// Dependences returns the dependences with both source and sink in the body of a loop.
func Dependences(g *depend.Graph, loop *ast.Loop) []*depend.Dependence {
	var stmts []ast.Stmt
	for _, assign := range ast.Assignments(loop) {
		stmts = append(stmts, assign)
	}
	return g.Among(stmts)
}

// offset returns the index in the direction vectors of the first dimension of a loop.
func offset(loop *ast.Loop) int {
	return len(ast.ShapesOf(ast.SurroundingLoops(loop)))
}

// permute returns the vector where the components [off, off+len(order))
// are reordered such that the new component off+k is the old component off+order[k].
func permute(v depend.Vector, off int, order []int) depend.Vector {
	r := slices.Clone(v)
	for k, from := range order {
		r[off+k] = v[off+from]
	}
	return r
}

// reversed returns true if the source of a dependence may execute after
// its sink: the first component that is not EQ may hold GT.
func reversed(v depend.Vector) bool {
	for _, d := range v {
		if d == depend.EQ {
			continue
		}
		return d&depend.GT != 0
	}
	return false
}

// IsPermutable returns true if the dimensions of a loop can be reordered:
// the new dimension k of the loop is the old dimension order[k].
func IsPermutable(g *depend.Graph, loop *ast.Loop, order []int) bool {
	off := offset(loop)
	return !lo.ContainsBy(Dependences(g, loop), func(dep *depend.Dependence) bool {
		if len(dep.Direction) < off+len(order) {
			return false
		}
		return reversed(permute(dep.Direction, off, order))
	})
}

// literalBounds returns the bounds and the step of a loop dimension if they
// are integer literals and if the dimension has a single upper bound.
func literalBounds(shape *ast.LoopShape) (ge, le, step int64, ok bool) {
	if len(shape.LessEq) != 1 {
		return 0, 0, 0, false
	}
	if ge, ok = ast.IntValue(ast.SimplifyExpr(ast.CloneExpr(shape.GreaterEq))); !ok {
		return 0, 0, 0, false
	}
	if le, ok = ast.IntValue(ast.SimplifyExpr(ast.CloneExpr(shape.LessEq[0]))); !ok {
		return 0, 0, 0, false
	}
	if step, ok = shape.StepValue(); !ok || step <= 0 {
		return 0, 0, 0, false
	}
	return ge, le, step, true
}

func newShape(loopVar string, ge, le, step int64) *ast.LoopShape {
	return &ast.LoopShape{
		Var:       ast.NewScalar(loopVar),
		GreaterEq: ast.NewInt(ge),
		LessEq:    []ast.Expr{ast.NewInt(le)},
		Step:      ast.NewInt(step),
	}
}

// splitShape splits a loop dimension into a dimension covering the
// iterations grouped by factor and a remainder dimension.
func splitShape(shape *ast.LoopShape, factor int64) (unrolled, remainder *ast.LoopShape, ok bool) {
	ge, le, step, ok := literalBounds(shape)
	if !ok {
		return nil, nil, false
	}
	bigStep := step * factor
	n := (le - ge + step) / bigStep
	last := ge + (n-1)*bigStep
	unrolled = newShape(shape.VarName(), ge, last, bigStep)
	remainder = newShape(shape.VarName(), last+bigStep, le, step)
	return unrolled, remainder, true
}

// shift returns a copy of a statement where loopVar is replaced by loopVar+delta.
func shift(stmt ast.Stmt, loopVar string, delta int64) (ast.Stmt, error) {
	cloned := ast.Clone(stmt)
	if delta == 0 {
		return cloned, nil
	}
	n, err := ast.Rewrite(cloned, ast.ReplacerFuncs{
		Match: func(n ast.Node) bool {
			acc, ok := n.(*ast.Access)
			return ok && acc.IsScalar() && acc.Var == loopVar
		},
		With: func(n ast.Node) (ast.Node, error) {
			return ast.NewOp("+", ast.CloneExpr(n.(*ast.Access)), ast.NewInt(delta)), nil
		},
	}, ast.PreOrder)
	if err != nil {
		return nil, err
	}
	return n.(ast.Stmt), nil
}

// shiftAll returns the copies of statements shifted by delta along loopVar.
func shiftAll(stmts []ast.Stmt, loopVar string, delta int64) ([]ast.Stmt, error) {
	shifted := make([]ast.Stmt, len(stmts))
	for i, stmt := range stmts {
		var err error
		if shifted[i], err = shift(stmt, loopVar, delta); err != nil {
			return nil, err
		}
	}
	return shifted, nil
}

func cloneShapes(shapes []*ast.LoopShape) []*ast.LoopShape {
	return lo.Map(shapes, func(s *ast.LoopShape, _ int) *ast.LoopShape { return ast.Clone(s) })
}

func cloneStmts(stmts []ast.Stmt) []ast.Stmt {
	return lo.Map(stmts, func(s ast.Stmt, _ int) ast.Stmt { return ast.Clone(s) })
}

// replace a statement of a block by a sequence of statements.
func replace(b ast.Block, old ast.Stmt, news ...ast.Stmt) error {
	var body *[]ast.Stmt
	switch bT := b.(type) {
	case *ast.Program:
		body = &bT.Body
	case *ast.Loop:
		body = &bT.Body
	default:
		return errors.Errorf("cannot replace a statement in %T", b)
	}
	i := slices.Index(*body, old)
	if i < 0 {
		return errors.Errorf("statement %s not found in its surrounding block", old.String())
	}
	*body = slices.Concat((*body)[:i:i], news, (*body)[i+1:])
	return nil
}

// reserved returns a generator of names not used in a program.
func reserved(prog *ast.Program) *uname.Unique {
	names := lo.Map(ast.Accesses(prog), func(acc *ast.Access, _ int) string { return acc.Var })
	for _, decl := range prog.Decls {
		names = append(names, decl.Name)
	}
	names = append(names, prog.ConstNames()...)
	return uname.NewReserved(slices.Values(names))
}
