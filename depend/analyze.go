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

// Package depend computes the data dependences between the array and
// scalar accesses of a program.
//
// Two accesses to the same variable, one of them being a write, depend on
// each other if a solver finds two iterations of their surrounding loops
// where their indices are equal. The relation between these iterations in
// every loop dimension shared by both accesses is a direction vector.
// Indices that cannot be translated into solver terms are assumed to
// overlap: the analysis may report dependences that do not exist,
// never the opposite.
package depend

import (
	"context"
	"log/slog"
	"slices"

	"github.com/loopgen/loopgen/base/iter"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/constraint"
	"github.com/loopgen/loopgen/solver"
	"github.com/samber/lo"
)

// Options of the analysis.
type Options struct {
	// Solver decides the dependence tests. A built-in checker if nil.
	Solver solver.Checker
	// Logger logs the tests at debug level. slog.Default() if nil.
	Logger *slog.Logger
}

func (opts Options) withDefaults() Options {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Solver == nil {
		opts.Solver = solver.NewBuiltin(solver.BuiltinOptions{Logger: opts.Logger})
	}
	return opts
}

type analyzer struct {
	ctx  context.Context
	opts Options
	// env maps the loop invariant scalars to solver variables.
	env constraint.Env
}

// invariantEnv returns the scalars of a program that are neither
// loop variables nor written by an assignment.
func invariantEnv(prog *ast.Program) constraint.Env {
	env := constraint.ScalarEnv(prog)
	for _, name := range ast.AllLoopVars(prog) {
		delete(env, name)
	}
	for _, assign := range ast.Assignments(prog) {
		if assign.LHS.IsScalar() {
			delete(env, assign.LHS.Var)
		}
	}
	return env
}

// Analyze computes the dependence graph of a program.
// The returned program is a copy of prog where every node has an identifier.
// The accesses of the dependences of the graph point into that copy.
func Analyze(ctx context.Context, prog *ast.Program, opts Options) (*Graph, *ast.Program, error) {
	tagged := ast.Clone(prog)
	ast.Link(tagged)
	ast.Tag(tagged)
	a := &analyzer{ctx: ctx, opts: opts.withDefaults(), env: invariantEnv(tagged)}
	g := newGraph(a.env)
	for _, pair := range referencePairs(tagged) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := a.analyzePair(g, pair[0], pair[1]); err != nil {
			return nil, nil, err
		}
	}
	return g, tagged, nil
}

// referencePairs returns the pairs of accesses to the same variable where at
// least one access is a write, in pre-order. An access is paired with itself.
func referencePairs(prog *ast.Program) [][2]*ast.Access {
	refs := lo.Filter(ast.Accesses(prog), func(acc *ast.Access, _ int) bool {
		_, inStmt := acc.Parent().(*ast.Assignment)
		return inStmt && acc.Hole == nil
	})
	var pairs [][2]*ast.Access
	for ref1, ref2 := range iter.Pairs(refs) {
		if ref1.Var != ref2.Var || (!ref1.IsWrite && !ref2.IsWrite) {
			continue
		}
		pairs = append(pairs, [2]*ast.Access{ref1, ref2})
	}
	return pairs
}

func (a *analyzer) analyzePair(g *Graph, ref1, ref2 *ast.Access) error {
	sys := a.newPairSystem(ref1, ref2)
	dvs, err := a.directionVectors(sys)
	if err != nil {
		return err
	}
	for _, dv := range dvs {
		for _, order := range executionOrders(sys.source, sys.sink) {
			a.addValid(g, ref1, ref2, dv, order, sys.common)
		}
		inv := dv.Negate()
		for _, order := range executionOrders(sys.sink, sys.source) {
			a.addValid(g, ref2, ref1, inv, order, sys.common)
		}
	}
	return nil
}

func (a *analyzer) addValid(g *Graph, source, sink *ast.Access, dv, order Vector, loopVars []string) {
	valid, ok := validDirection(dv, order)
	if !ok {
		return
	}
	dep := &Dependence{
		Source:    source,
		Sink:      sink,
		Direction: valid,
		LoopVars:  slices.Clone(loopVars),
	}
	if g.add(dep) {
		a.opts.Logger.Debug("dependence", "source", source.String(), "sink", sink.String(), "direction", valid.String(), "order", order.String())
	}
}

// validDirection intersects a dependence direction vector with an execution
// order vector. False is returned if the intersection is empty or if the
// source is executed after the sink.
func validDirection(dv, order Vector) (Vector, bool) {
	r, ok := dv.Intersect(order)
	if !ok || !r.LeadingLT() {
		return nil, false
	}
	return r, true
}

// side of a pair of accesses: the access with its surrounding loops and
// the solver variables of its loop variables.
type side struct {
	ref       *ast.Access
	stmt      ast.Stmt
	ancestors []ast.Block
	loops     []*ast.Loop
	env       constraint.Env
	// iterations counts the iterations of the loop variables with a step.
	iterations map[string]solver.Term
}

func (a *analyzer) newSide(ref *ast.Access, suffix string) *side {
	stmt := ref.Parent()
	s := &side{
		ref:        ref,
		stmt:       stmt,
		ancestors:  ast.Ancestors(stmt),
		loops:      ast.SurroundingLoops(stmt),
		iterations: make(map[string]solver.Term),
	}
	loopVars := make(map[string]solver.Term)
	for _, name := range ast.LoopVars(ast.ShapesOf(s.loops)) {
		loopVars[name] = solver.V(name + "_value_" + suffix)
		s.iterations[name] = solver.V(name + "_which_iteration_" + suffix)
	}
	s.env = a.env.With(loopVars)
	return s
}

// constraints returns the bound and step constraints of the loops of a side.
// Bounds that cannot be translated are left out.
func (s *side) constraints() []solver.Formula {
	var fs []solver.Formula
	for _, shape := range ast.ShapesOf(s.loops) {
		v := s.env[shape.VarName()]
		ge, geOK := constraint.ExprToCExpr(shape.GreaterEq, s.env)
		if geOK {
			fs = append(fs, solver.Le(ge, v))
		}
		for _, x := range shape.LessEq {
			if le, ok := constraint.ExprToCExpr(x, s.env); ok {
				fs = append(fs, solver.Le(v, le))
			}
		}
		step, ok := shape.StepValue()
		if !ok || step == 1 || !geOK {
			continue
		}
		k := s.iterations[shape.VarName()]
		fs = append(fs, solver.Eq(v, solver.Add{X: solver.Mul{X: solver.C(step), Y: k}, Y: ge}))
	}
	return fs
}

// subscriptEqualities returns the equality of the indices of two accesses.
// Dimensions with an index that cannot be translated are left out.
func subscriptEqualities(source, sink *side) []solver.Formula {
	var fs []solver.Formula
	for i := range min(len(source.ref.Indices), len(sink.ref.Indices)) {
		src, srcOK := constraint.ExprToCExpr(source.ref.Indices[i], source.env)
		snk, snkOK := constraint.ExprToCExpr(sink.ref.Indices[i], sink.env)
		if srcOK && snkOK {
			fs = append(fs, solver.Eq(src, snk))
		}
	}
	return fs
}

// pairSystem is the constraint system of a pair of accesses.
type pairSystem struct {
	source, sink *side
	// commonLoops surround both accesses.
	commonLoops []*ast.Loop
	// common are the variables of the loops surrounding both accesses.
	common []string
	fs     []solver.Formula
}

func commonPrefix[T comparable](a, b []T) []T {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return a[:n]
}

func (a *analyzer) newPairSystem(source, sink *ast.Access) *pairSystem {
	sys := &pairSystem{
		source: a.newSide(source, "source"),
		sink:   a.newSide(sink, "sink"),
	}
	sys.commonLoops = commonPrefix(sys.source.loops, sys.sink.loops)
	sys.common = ast.LoopVars(ast.ShapesOf(sys.commonLoops))
	sys.fs = slices.Concat(
		sys.source.constraints(),
		sys.sink.constraints(),
		subscriptEqualities(sys.source, sys.sink),
	)
	return sys
}

// direction returns the constraint of a direction in a common loop dimension.
func (sys *pairSystem) direction(dim int, d Direction) solver.Formula {
	x := sys.common[dim]
	return d.Formula(sys.source.env[x], sys.sink.env[x])
}

// satisfiable returns false if the solver proves that formulas have no solution.
func (a *analyzer) satisfiable(fs []solver.Formula) (bool, error) {
	res, err := a.opts.Solver.Check(a.ctx, fs)
	if err != nil {
		return false, err
	}
	if res.Status == solver.Unknown {
		a.opts.Logger.Warn("indeterminate dependence test: assuming a dependence", "reason", res.Reason)
	}
	return res.Status != solver.Unsat, nil
}

// directionVectors returns the direction vectors for which the indices of
// a pair of accesses can be equal. Dimensions are refined from the outermost
// to the innermost. A prefix is abandoned as soon as the constraints with
// the directions of the prefix have no solution.
func (a *analyzer) directionVectors(sys *pairSystem) ([]Vector, error) {
	var dvs []Vector
	var refine func(fs []solver.Formula, prefix Vector) error
	refine = func(fs []solver.Formula, prefix Vector) error {
		ok, err := a.satisfiable(fs)
		if err != nil || !ok {
			return err
		}
		dim := len(prefix)
		if dim == len(sys.common) {
			dvs = append(dvs, prefix)
			return nil
		}
		for _, d := range Any.Concrete() {
			next := slices.Concat(fs, []solver.Formula{sys.direction(dim, d)})
			if err := refine(next, slices.Concat(prefix, Vector{d})); err != nil {
				return err
			}
		}
		return nil
	}
	return dvs, refine(sys.fs, Vector{})
}

// trace returns the ancestors of the statement of a side followed by the statement.
func (s *side) trace(i int) ast.Stmt {
	if i < len(s.ancestors) {
		stmt, _ := s.ancestors[i].(ast.Stmt)
		return stmt
	}
	return s.stmt
}

// executionOrders returns the direction vectors of the iterations where
// the statement of a source access executes before the statement of a sink
// access. No vector is returned if the source is never executed before the sink.
func executionOrders(source, sink *side) []Vector {
	common := commonPrefix(source.ancestors, sink.ancestors)
	n := len(common)
	if n == 0 {
		return nil
	}
	ancestor := common[n-1]
	body := ancestor.Stmts()
	ordered := slices.Index(body, source.trace(n)) < slices.Index(body, sink.trace(n))
	if _, isLoop := ancestor.(*ast.Loop); !isLoop {
		if !ordered {
			return nil
		}
		return []Vector{{}}
	}
	numLoops := len(ast.ShapesOf(common))
	if ordered {
		v := slices.Repeat(Vector{Any}, numLoops)
		v[0] = LE
		return []Vector{v}
	}
	var orders []Vector
	for lt := range numLoops {
		v := slices.Concat(slices.Repeat(Vector{EQ}, lt), Vector{LT}, slices.Repeat(Vector{Any}, numLoops-1-lt))
		orders = append(orders, v)
	}
	return orders
}
