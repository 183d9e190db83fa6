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

// Package generate draws random patterns from pools of arrays, constants,
// operators and loop variables.
//
// A generated pattern is a sequence of loops. Every loop has a fixed number
// of dimensions with implicit bounds and a body of assignments. An array
// index is a*x+b or a*x-b where a and b are constants and x a loop variable.
// Generated patterns are normalized: names are drawn from the pools in
// sorted order of first use, so that two patterns with the same structure
// are printed the same way.
package generate

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/loopgen/loopgen/base/iter"
	"github.com/loopgen/loopgen/base/stringseq"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/internal/exprdeps"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Array in the pool of a generator.
type Array struct {
	Name    string
	NumDims int
	// Local arrays are scratch arrays: they cannot be read before being written.
	Local bool
}

func (a Array) String() string {
	s := fmt.Sprintf("%s%s", a.Name, strings.Repeat("[]", a.NumDims))
	if a.Local {
		s = "local " + s
	}
	return s
}

// Info describes the pools and the shape of the patterns to generate.
type Info struct {
	// Arrays read and written by the statements.
	Arrays []Array
	// MulConsts are the multiplicative constants of indices.
	MulConsts []string
	// MaybeZeroMulConsts are multiplicative constants of indices that can be
	// zero. The additive constant is always added when one of them is used.
	MaybeZeroMulConsts []string
	// AddConsts are the additive constants of indices.
	AddConsts []string
	// DataConsts are scalars read by the statements.
	DataConsts []string
	// Ops are the binary operators of the right-hand sides.
	Ops []string
	// LoopVars are the loop variables.
	LoopVars []string

	// NumLoops is the number of loops of a pattern.
	NumLoops int
	// Depth is the number of dimensions of every loop.
	Depth int
	// NumStmts is the number of statements in every loop.
	NumStmts int
	// NumOps is the number of operators in every right-hand side.
	NumOps int
}

// Validate returns an error if patterns cannot be generated from the pools.
func (info *Info) Validate() error {
	switch {
	case len(info.Arrays) == 0:
		return errors.Errorf("no array to assign")
	case info.Depth > len(info.LoopVars):
		return errors.Errorf("loop depth %d greater than the number of loop variables %d", info.Depth, len(info.LoopVars))
	case info.NumOps > 0 && len(info.Ops) == 0:
		return errors.Errorf("%d operators per statement but no operator", info.NumOps)
	case info.NumLoops < 0 || info.Depth < 0 || info.NumStmts < 0 || info.NumOps < 0:
		return errors.Errorf("negative pattern shape: %d loops, depth %d, %d statements, %d operators", info.NumLoops, info.Depth, info.NumStmts, info.NumOps)
	}
	indexed := lo.SomeBy(info.Arrays, func(a Array) bool { return a.NumDims > 0 })
	if !indexed {
		return nil
	}
	switch {
	case info.Depth == 0:
		return errors.Errorf("arrays with dimensions require loops with at least one dimension")
	case len(info.MulConsts)+len(info.MaybeZeroMulConsts) == 0:
		return errors.Errorf("no multiplicative constant for indices")
	case len(info.AddConsts) == 0:
		return errors.Errorf("no additive constant for indices")
	}
	return nil
}

func (info *Info) String() string {
	var b strings.Builder
	line := func(name string, vals []string) {
		b.WriteString(name)
		b.WriteString(" = [")
		stringseq.Append(&b, slices.Values(vals), ", ")
		b.WriteString("]\n")
	}
	b.WriteString("arrays = [")
	stringseq.AppendStringer(&b, slices.Values(info.Arrays), ", ")
	b.WriteString("]\n")
	line("mul_consts", info.MulConsts)
	line("maybe_zero_mul_consts", info.MaybeZeroMulConsts)
	line("add_consts", info.AddConsts)
	line("data_consts", info.DataConsts)
	line("ops", info.Ops)
	line("loop_vars", info.LoopVars)
	fmt.Fprintf(&b, "n_loops = %d\nn_depth = %d\nn_stmts = %d\nn_ops = %d", info.NumLoops, info.Depth, info.NumStmts, info.NumOps)
	return b.String()
}

type generator struct {
	info *Info
	r    *rand.Rand
}

func pick[T any](r *rand.Rand, pool []T) T {
	return pool[r.IntN(len(pool))]
}

// index returns a*x+b or a*x-b.
func (g *generator) index(loopVars []string) ast.Expr {
	muls := slices.Concat(g.info.MulConsts, g.info.MaybeZeroMulConsts)
	a := pick(g.r, muls)
	x := pick(g.r, loopVars)
	b := pick(g.r, g.info.AddConsts)
	op := "+"
	if !slices.Contains(g.info.MaybeZeroMulConsts, a) && g.r.IntN(2) == 1 {
		op = "-"
	}
	ax := ast.NewOp("*", ast.NewScalar(a), ast.NewScalar(x))
	return ast.NewOp(op, ax, ast.NewScalar(b))
}

// access returns an access to an array, or to a data constant if data is true.
func (g *generator) access(loopVars []string, data bool) *ast.Access {
	n := len(g.info.Arrays)
	if data {
		n += len(g.info.DataConsts)
	}
	i := g.r.IntN(n)
	if i >= len(g.info.Arrays) {
		return ast.NewScalar(g.info.DataConsts[i-len(g.info.Arrays)])
	}
	array := g.info.Arrays[i]
	indices := make([]ast.Expr, array.NumDims)
	for d := range indices {
		indices[d] = g.index(loopVars)
	}
	return ast.NewAccess(array.Name, indices...)
}

// expr returns a random binary tree of numOps operators.
// Two adjacent operands are combined until a single operand remains.
func (g *generator) expr(numOps int, loopVars []string) ast.Expr {
	operands := make([]ast.Expr, numOps+1)
	for i := range operands {
		operands[i] = g.access(loopVars, true)
	}
	for len(operands) > 1 {
		i := g.r.IntN(len(operands) - 1)
		op := ast.NewOp(pick(g.r, g.info.Ops), operands[i], operands[i+1])
		operands = slices.Replace(operands, i, i+2, ast.Expr(op))
	}
	return operands[0]
}

func (g *generator) loop() *ast.Loop {
	perm := g.r.Perm(len(g.info.LoopVars))[:g.info.Depth]
	loopVars := lo.Map(perm, func(i int, _ int) string { return g.info.LoopVars[i] })
	body := make([]ast.Stmt, g.info.NumStmts)
	for i := range body {
		body[i] = ast.NewAssignment(g.access(loopVars, false), g.expr(g.info.NumOps, loopVars))
	}
	shapes := lo.Map(loopVars, func(name string, _ int) *ast.LoopShape { return ast.NewLoopShape(name) })
	return ast.NewLoop(shapes, body...)
}

func (g *generator) program() *ast.Program {
	arrays := slices.SortedFunc(slices.Values(g.info.Arrays), func(a, b Array) int {
		return strings.Compare(a.Name, b.Name)
	})
	decls := lo.Map(arrays, func(a Array, _ int) *ast.Declaration {
		return &ast.Declaration{Name: a.Name, Sizes: make([]ast.Expr, a.NumDims), Local: a.Local}
	})
	body := make([]ast.Stmt, g.info.NumLoops)
	for i := range body {
		body[i] = g.loop()
	}
	return exprdeps.Infer(ast.NewProgram(decls, body, nil))
}

// Generate draws a random pattern and normalizes it.
// The pattern may read local arrays before writing them.
func Generate(info *Info, r *rand.Rand) (*ast.Program, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	g := &generator{info: info, r: r}
	prog := g.program()
	Normalize(prog, info)
	return prog, nil
}

// HasUseBeforeDef returns true if a statement of a program reads
// a local array that no previous statement writes.
func HasUseBeforeDef(prog *ast.Program) bool {
	local := make(map[string]bool)
	for _, decl := range prog.Decls {
		local[decl.Name] = decl.Local
	}
	written := make(map[string]bool)
	undefined := func(acc *ast.Access) bool { return local[acc.Var] && !written[acc.Var] }
	for _, assign := range ast.Assignments(prog) {
		reads := [][]*ast.Access{ast.Accesses(assign.RHS)}
		for _, index := range assign.LHS.Indices {
			reads = append(reads, ast.Accesses(index))
		}
		for range iter.Filter(undefined, reads...) {
			return true
		}
		if local[assign.LHS.Var] {
			written[assign.LHS.Var] = true
		}
	}
	return false
}

// DefaultMaxTries is the default number of patterns drawn by Pattern.
const DefaultMaxTries = 10

// ErrExhausted is returned when every drawn pattern reads a local array before writing it.
var ErrExhausted = errors.New("every generated pattern uses a local array before its definition")

// Options of Pattern.
type Options struct {
	// Rand draws the patterns. A randomly seeded source if nil.
	Rand *rand.Rand
	// MaxTries is the number of patterns drawn. DefaultMaxTries if zero.
	MaxTries int
	// Logger logs rejected patterns at debug level. slog.Default() if nil.
	Logger *slog.Logger
}

// Pattern draws random patterns until one does not read a local array
// before writing it.
func Pattern(info *Info, opts Options) (*ast.Program, error) {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = DefaultMaxTries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	for range opts.MaxTries {
		prog, err := Generate(info, opts.Rand)
		if err != nil {
			return nil, err
		}
		if HasUseBeforeDef(prog) {
			opts.Logger.Debug("rejected pattern: use before definition", "pattern", prog.String())
			continue
		}
		return prog, nil
	}
	return nil, errors.Wrapf(ErrExhausted, "after %d tries", opts.MaxTries)
}
