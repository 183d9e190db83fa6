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

package instance

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/constraint"
	"github.com/loopgen/loopgen/internal/exprdeps"
	"github.com/loopgen/loopgen/solver"
	"github.com/pkg/errors"
)

// DefaultMaxTries is the default number of attempts of TryCreate.
const DefaultMaxTries = 10000

// Options of TryCreate.
type Options struct {
	// Force skips the safety analysis. All array sizes must be
	// known once the free variables are bound.
	Force bool
	// MaxTries is the number of random bindings tried. DefaultMaxTries if 0.
	MaxTries int
	// Solver proves the constraints. A built-in checker if nil.
	Solver solver.Checker
	// Rand draws the values of the free variables and the element types.
	// A randomly seeded source if nil.
	Rand *rand.Rand
	// Logger logs rejected attempts at debug level and
	// indeterminate solver results at warning level. slog.Default() if nil.
	Logger *slog.Logger
}

// Stats counts the outcomes of the attempts of TryCreate.
type Stats struct {
	// Tries is the number of attempts.
	Tries int
	// Rejected counts the attempts where an access may be out of bounds.
	Rejected int
	// Empty counts the attempts where the constraints have no solution.
	Empty int
	// Indeterminate counts the attempts abandoned because the solver
	// could not decide a check.
	Indeterminate int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d tries: %d rejected, %d empty, %d indeterminate", s.Tries, s.Rejected, s.Empty, s.Indeterminate)
}

type outcome int

const (
	accepted outcome = iota
	rejected
	empty
	indeterminate
)

type creator struct {
	opts    Options
	pattern *ast.Program
	vars    *VariableMap
	types   *TypeAssignment
	// literal is the set of dimensions declared with a literal size.
	// Other declared sizes depend on free variables.
	literal map[string]bool
}

// TryCreate creates an instance of a pattern.
//
// Free variables take random values in the ranges of vars. Loop induction
// variables are only constrained by vars when a range is set for them.
// Arrays are sized with the variables A[], A[][], ... of vars as maximum
// provisional sizes, unless a size is declared.
// If types is not nil, declarations without an element type get one.
//
// A nil instance and a nil error are returned when no valid binding has
// been found after opts.MaxTries attempts.
func TryCreate(ctx context.Context, pattern *ast.Program, vars *VariableMap, types *TypeAssignment, opts Options) (*Instance, Stats, error) {
	if opts.MaxTries <= 0 {
		opts.MaxTries = DefaultMaxTries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Solver == nil {
		opts.Solver = solver.NewBuiltin(solver.BuiltinOptions{Logger: opts.Logger})
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if vars == nil {
		vars = NewVariableMap(DefaultMin, DefaultMax)
	}
	if types != nil {
		if err := types.Validate(); err != nil {
			return nil, Stats{}, err
		}
	}
	if holes := ast.Holes(pattern); len(holes) > 0 {
		return nil, Stats{}, errors.Errorf("cannot create an instance of a pattern with holes: %s", holes[0])
	}
	c := &creator{
		opts:    opts,
		pattern: exprdeps.Infer(ast.Clone(pattern)),
		vars:    vars,
		types:   types,
	}
	if err := declareArrays(c.pattern); err != nil {
		return nil, Stats{}, err
	}
	c.literal = literalDims(c.pattern)
	if opts.Force {
		inst, err := c.blind()
		return inst, Stats{Tries: 1}, err
	}
	var stats Stats
	for range opts.MaxTries {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Tries++
		inst, out, err := c.attempt(ctx)
		if err != nil {
			return nil, stats, err
		}
		switch out {
		case accepted:
			return inst, stats, nil
		case rejected:
			stats.Rejected++
		case empty:
			stats.Empty++
		case indeterminate:
			stats.Indeterminate++
		}
	}
	if stats.Indeterminate > 0 {
		opts.Logger.Warn("no instance found with indeterminate solver results", "stats", stats.String())
	}
	return nil, stats, nil
}

// bind returns a copy of the pattern with its free variables bound.
func (c *creator) bind() (*ast.Program, error) {
	prog, err := bindConsts(ast.Clone(c.pattern), c.vars, c.opts.Rand)
	if err != nil {
		return nil, err
	}
	if c.types != nil {
		if err := AssignTypes(prog, c.types, c.opts.Rand); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// blind creates an instance without analysis.
func (c *creator) blind() (*Instance, error) {
	prog, err := c.bind()
	if err != nil {
		return nil, err
	}
	bounds := ordered.NewMap[string, *ArrayAccessBound]()
	for _, decl := range prog.Decls {
		if decl.IsScalar() {
			continue
		}
		b := NewArrayAccessBound(decl.Name, decl.Local, decl.NumDims())
		for dim, size := range decl.Sizes {
			v, ok := ast.IntValue(size)
			if size == nil || !ok {
				return nil, errors.Errorf("cannot force an instance: size of dimension %d of %s is unknown", dim, decl.Name)
			}
			b.NewMin(dim, 0)
			b.NewMax(dim, v-1)
		}
		bounds.Store(decl.Name, b)
	}
	return newInstance(prog, bounds), nil
}

func literalDims(prog *ast.Program) map[string]bool {
	dims := make(map[string]bool)
	for _, decl := range prog.Decls {
		for dim, size := range decl.Sizes {
			if size == nil {
				continue
			}
			if _, ok := ast.IntValue(ast.SimplifyExpr(ast.CloneExpr(size))); ok {
				dims[DimensionVar(decl.Name, dim)] = true
			}
		}
	}
	return dims
}

// system is the constraint system of a bound pattern.
//
// Every loop has its own solver variables: loops reusing the name of an
// induction variable are independent.
type system struct {
	prog     *ast.Program
	fixed    map[string]int64
	accesses []*accessSystem
	bounds   []solver.Formula
}

// accessSystem holds the constraints of one access in the environment of
// its surrounding loops.
type accessSystem struct {
	ref *ast.Access
	env constraint.Env
	// reach constrains the loop variables to the iterations executing the access.
	reach []solver.Formula
	// indices are the translated indices. Nil if an index cannot be translated.
	indices []solver.Term
	// checked constrains the indices of dimensions with an inferred size or
	// a size depending on free variables.
	checked []solver.Formula
}

// loopSystem holds the variables of a loop and of its surrounding loops.
type loopSystem struct {
	env    constraint.Env
	shape  []solver.Formula
	parent *loopSystem
}

func (l *loopSystem) reach() []solver.Formula {
	if l == nil {
		return nil
	}
	return slices.Concat(l.parent.reach(), l.shape)
}

// provisionalSize returns the size used in the safety proof for a dimension.
func (c *creator) provisionalSize(s *system, dimVar string) int64 {
	if size, ok := s.fixed[dimVar]; ok {
		return size
	}
	return c.vars.Max(dimVar)
}

// loopVar returns the solver variable of an induction variable of the n-th loop of a program.
func loopVar(name string, n int) solver.Term {
	return solver.V(fmt.Sprintf("%s#%d", name, n))
}

func (c *creator) newLoopSystem(env constraint.Env, loop *ast.Loop, n int, parent *loopSystem) *loopSystem {
	vars := make(map[string]solver.Term)
	iterations := make(map[string]solver.Term)
	for _, name := range ast.LoopVars(loop.LoopShapes) {
		vars[name] = loopVar(name, n)
		iterations[name] = loopVar(name+"_iteration", n)
	}
	l := &loopSystem{env: env.With(vars), parent: parent}
	for _, shape := range loop.LoopShapes {
		name := shape.VarName()
		v := l.env[name]
		if c.vars.HasMin(name) {
			l.shape = append(l.shape, solver.Ge(v, solver.C(c.vars.Min(name))))
		}
		if c.vars.HasMax(name) {
			l.shape = append(l.shape, solver.Le(v, solver.C(c.vars.Max(name))))
		}
		ge, geOK := constraint.ExprToCExpr(shape.GreaterEq, l.env)
		if geOK {
			l.shape = append(l.shape, solver.Le(ge, v))
		}
		for _, x := range shape.LessEq {
			if le, ok := constraint.ExprToCExpr(x, l.env); ok {
				l.shape = append(l.shape, solver.Le(v, le))
			}
		}
		step, ok := shape.StepValue()
		if !ok || step == 1 || !geOK {
			continue
		}
		l.shape = append(l.shape, solver.Eq(v, solver.Add{X: solver.Mul{X: solver.C(step), Y: iterations[name]}, Y: ge}))
	}
	return l
}

func (c *creator) newSystem(prog *ast.Program) (*system, error) {
	fixed, err := fixedSizes(prog)
	if err != nil {
		return nil, err
	}
	s := &system{
		prog:  prog,
		fixed: fixed,
	}
	env := constraint.ScalarEnv(prog)
	loopNames := ast.AllLoopVars(prog)
	for _, name := range env.Names() {
		if slices.Contains(loopNames, name) {
			continue
		}
		v := env[name]
		s.bounds = append(s.bounds, solver.Ge(v, solver.C(c.vars.Min(name))), solver.Le(v, solver.C(c.vars.Max(name))))
	}
	loops := make(map[*ast.Loop]*loopSystem)
	for n, loop := range ast.Loops(prog) {
		var parent *loopSystem
		if outer := ast.SurroundingLoops(loop); len(outer) > 0 {
			parent = loops[outer[len(outer)-1]]
		}
		parentEnv := env
		if parent != nil {
			parentEnv = parent.env
		}
		loops[loop] = c.newLoopSystem(parentEnv, loop, n, parent)
	}
	for _, acc := range ast.Accesses(prog) {
		as := &accessSystem{ref: acc, env: env}
		if stmt := acc.Parent(); stmt != nil {
			enclosing := ast.SurroundingLoops(stmt)
			if loop, ok := stmt.(*ast.Loop); ok {
				enclosing = append(enclosing, loop)
			}
			if len(enclosing) > 0 {
				l := loops[enclosing[len(enclosing)-1]]
				as.env = l.env
				as.reach = l.reach()
			}
		}
		as.indices = make([]solver.Term, len(acc.Indices))
		for dim, index := range acc.Indices {
			t, ok := constraint.ExprToCExpr(index, as.env)
			if !ok {
				continue
			}
			as.indices[dim] = t
			dimVar := DimensionVar(acc.Var, dim)
			if c.literal[dimVar] {
				// Checked again with the access bounds.
				continue
			}
			as.checked = append(as.checked, solver.Ge(t, solver.C(0)), solver.Lt(t, solver.C(c.provisionalSize(s, dimVar))))
		}
		s.accesses = append(s.accesses, as)
	}
	return s, nil
}

// safety returns the constraints satisfied by an iteration accessing an element out of bounds.
// False is returned when no access needs to be checked.
func (s *system) safety() ([]solver.Formula, bool) {
	var outside []solver.Formula
	for _, as := range s.accesses {
		if len(as.checked) == 0 {
			continue
		}
		outside = append(outside, solver.AllOf(append(slices.Clone(as.reach), solver.Not{F: solver.AllOf(as.checked...)})...))
	}
	if len(outside) == 0 {
		return nil, false
	}
	return append(slices.Clone(s.bounds), solver.AnyOf(outside...)), true
}

// nonEmpty returns the constraints satisfied by an iteration executing at least one access.
// False is returned when an access is executed without a loop.
func (s *system) nonEmpty() ([]solver.Formula, bool) {
	var executed []solver.Formula
	for _, as := range s.accesses {
		if len(as.reach) == 0 {
			return nil, false
		}
		executed = append(executed, solver.AllOf(as.reach...))
	}
	if len(executed) == 0 {
		return nil, false
	}
	return append(slices.Clone(s.bounds), solver.AnyOf(executed...)), true
}

func (c *creator) debug(msg string, fs []solver.Formula, args ...any) {
	c.opts.Logger.Debug(msg, append(args, "constraints", solver.AllOf(fs...).String())...)
}

func (c *creator) indeterminate(step, reason string) {
	c.opts.Logger.Warn("indeterminate solver result", "step", step, "reason", reason)
}

func (c *creator) attempt(ctx context.Context) (*Instance, outcome, error) {
	prog, err := c.bind()
	if err != nil {
		return nil, 0, err
	}
	s, err := c.newSystem(prog)
	if err != nil {
		return nil, 0, err
	}
	// Safety: no iteration accesses an element outside of its array.
	if safety, ok := s.safety(); ok {
		res, err := c.opts.Solver.Check(ctx, safety)
		if err != nil {
			return nil, 0, err
		}
		switch res.Status {
		case solver.Sat:
			c.debug("access may be out of bounds", safety, "model", res.Model.String())
			return nil, rejected, nil
		case solver.Unknown:
			c.indeterminate("safety", res.Reason)
			return nil, indeterminate, nil
		}
	}
	// Non-emptiness: at least one access is executed.
	if nonEmpty, ok := s.nonEmpty(); ok {
		res, err := c.opts.Solver.Check(ctx, nonEmpty)
		if err != nil {
			return nil, 0, err
		}
		switch res.Status {
		case solver.Unsat:
			c.debug("no iteration", nonEmpty)
			return nil, empty, nil
		case solver.Unknown:
			c.indeterminate("non-emptiness", res.Reason)
			return nil, indeterminate, nil
		}
	}
	bounds, out, err := c.accessBounds(ctx, s)
	if err != nil || out != accepted {
		return nil, out, err
	}
	return newInstance(prog, bounds), accepted, nil
}

// accessBounds computes the range of indices accessed in every dimension of every array.
// Accesses never executed are left out.
func (c *creator) accessBounds(ctx context.Context, s *system) (*ordered.Map[string, *ArrayAccessBound], outcome, error) {
	bounds := ordered.NewMap[string, *ArrayAccessBound]()
	for _, decl := range s.prog.Decls {
		if decl.IsScalar() {
			continue
		}
		bounds.Store(decl.Name, NewArrayAccessBound(decl.Name, decl.Local, decl.NumDims()))
	}
	for _, as := range s.accesses {
		acc := as.ref
		b, ok := bounds.Load(acc.Var)
		if !ok {
			continue
		}
		fs := slices.Concat(s.bounds, as.reach)
		c.debug("determining array access bounds", fs, "access", acc.String())
		for dim, t := range as.indices {
			dimVar := DimensionVar(acc.Var, dim)
			size, fixed := s.fixed[dimVar]
			if t == nil {
				c.opts.Logger.Warn("cannot analyze the range of an index", "index", acc.Indices[dim].String(), "access", acc.String())
				if fixed {
					b.NewMin(dim, 0)
					b.NewMax(dim, size-1)
				} else {
					b.NewMin(dim, c.vars.DefaultMin)
					b.NewMax(dim, c.vars.DefaultMax)
				}
				continue
			}
			lo, err := solver.FindMin(ctx, c.opts.Solver, fs, t)
			if err != nil {
				return nil, 0, c.rangeError(err, "minimum", as, dim, fixed)
			}
			hi, err := solver.FindMax(ctx, c.opts.Solver, fs, t)
			if err != nil {
				return nil, 0, c.rangeError(err, "maximum", as, dim, fixed)
			}
			if lo.Status == solver.Unknown || hi.Status == solver.Unknown {
				c.indeterminate("access bounds", lo.Reason+hi.Reason)
				return nil, indeterminate, nil
			}
			if lo.Status != solver.Sat || hi.Status != solver.Sat {
				break
			}
			if fixed && (lo.Value < 0 || hi.Value >= size) {
				return nil, 0, errors.Wrapf(ErrDeclaredSizeViolated, "%s accesses [%d, %d] in dimension %d of size %d", acc, lo.Value, hi.Value, dim, size)
			}
			b.NewMin(dim, lo.Value)
			b.NewMax(dim, hi.Value)
		}
	}
	for name, b := range bounds.Iter() {
		b.SetUnaccessedToDefault()
		for dim := range b.NumDims() {
			dimVar := DimensionVar(name, dim)
			if c.literal[dimVar] {
				b.Min[dim], b.Max[dim] = 0, s.fixed[dimVar]-1
			}
		}
	}
	return bounds, accepted, nil
}

func (c *creator) rangeError(err error, what string, as *accessSystem, dim int, fixed bool) error {
	if fixed && errors.Is(err, solver.ErrUnbounded) {
		return errors.Wrapf(ErrDeclaredSizeViolated, "%s accesses an unbounded range in dimension %d", as.ref, dim)
	}
	return errors.Wrapf(err, "cannot find the %s of %s in %s", what, as.ref.Indices[dim], as.ref)
}
