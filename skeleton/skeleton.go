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

// Package skeleton fills the holes of pattern templates.
//
// A skeleton is a program with holes. Filling a skeleton never modifies it:
// a new skeleton is returned, and several kinds of holes can be filled
// one pass after the other, for example statements first and then the
// expressions found in the statements.
package skeleton

import (
	"fmt"
	"slices"
	"sync"

	"github.com/loopgen/loopgen/base/stringseq"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/parser"
	"github.com/loopgen/loopgen/internal/exprdeps"
	"github.com/pkg/errors"
)

// Skeleton is a program which may contain holes.
type Skeleton struct {
	prog *ast.Program
}

// New returns a skeleton owning a program.
func New(prog *ast.Program) *Skeleton {
	return &Skeleton{prog: prog}
}

// Parse parses the source of a skeleton.
func Parse(src string) (*Skeleton, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return New(prog), nil
}

// Program returns the program of the skeleton.
// The program must not be modified.
func (s *Skeleton) Program() *ast.Program {
	return s.prog
}

// Holes returns all the holes of the skeleton.
func (s *Skeleton) Holes() []ast.Hole {
	return ast.Holes(s.prog)
}

func (s *Skeleton) String() string {
	return s.prog.String()
}

func skipDecls(n ast.Node) bool {
	switch n.(type) {
	case *ast.Declaration, *ast.Const:
		return true
	}
	return false
}

func (s *Skeleton) replacer(pop *Populator) (ast.Replacer, ast.Order) {
	r := ast.ReplacerFuncs{Skip: skipDecls}
	switch pop.kind {
	case Statements:
		r.Match = func(n ast.Node) bool {
			_, ok := n.(*ast.StatementHole)
			return ok
		}
		r.With = func(n ast.Node) (ast.Node, error) {
			c, ok, err := pop.Populate(n.(*ast.StatementHole))
			if err != nil || !ok {
				return n, err
			}
			return ast.Clone(c.Node), nil
		}
		return r, ast.PreOrder
	case Expressions:
		r.Match = func(n ast.Node) bool {
			_, ok := n.(*ast.ExpressionHole)
			return ok
		}
		r.With = func(n ast.Node) (ast.Node, error) {
			c, ok, err := pop.Populate(n.(*ast.ExpressionHole))
			if err != nil || !ok {
				return n, err
			}
			return ast.Clone(c.Node), nil
		}
		return r, ast.PreOrder
	case Operations:
		r.Match = func(n ast.Node) bool {
			op, ok := n.(*ast.Op)
			return ok && op.Hole != nil
		}
		r.With = func(n ast.Node) (ast.Node, error) {
			op := n.(*ast.Op)
			c, ok, err := pop.Populate(op.Hole)
			if err != nil || !ok {
				return n, err
			}
			op.Operator = c.Text
			op.Hole = nil
			return op, nil
		}
		// Post-order to reach the holes in the operands of a filled operator.
		return r, ast.PostOrder
	}
	r.Match = func(n ast.Node) bool {
		acc, ok := n.(*ast.Access)
		return ok && acc.Hole != nil
	}
	r.With = func(n ast.Node) (ast.Node, error) {
		acc := n.(*ast.Access)
		c, ok, err := pop.Populate(acc.Hole)
		if err != nil || !ok {
			return n, err
		}
		acc.Var = c.Node.(*ast.Access).Var
		acc.Hole = nil
		return acc, nil
	}
	return r, ast.PostOrder
}

// Fill returns a new skeleton where the holes of a given kind have been filled
// with candidates of the mappings. Holes matching no mapping are left untouched.
func (s *Skeleton) Fill(kind Kind, mappings []Mapping, opts Options) (*Skeleton, error) {
	pop, err := NewPopulator(kind, mappings, opts)
	if err != nil {
		return nil, err
	}
	r, order := s.replacer(pop)
	prog, err := ast.RewriteProgram(ast.Clone(s.prog), r, order)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot fill %s", kind)
	}
	return New(exprdeps.Infer(prog)), nil
}

// FillStatements fills statement holes. Choices are parsed as statements.
func (s *Skeleton) FillStatements(mappings []Mapping, opts Options) (*Skeleton, error) {
	return s.Fill(Statements, mappings, opts)
}

// FillExpressions fills expression holes. Choices are parsed as expressions.
func (s *Skeleton) FillExpressions(mappings []Mapping, opts Options) (*Skeleton, error) {
	return s.Fill(Expressions, mappings, opts)
}

// FillOperations fills operator holes. Choices are binary operators.
func (s *Skeleton) FillOperations(mappings []Mapping, opts Options) (*Skeleton, error) {
	return s.Fill(Operations, mappings, opts)
}

// FillNames fills name holes. Choices are variable names.
func (s *Skeleton) FillNames(mappings []Mapping, opts Options) (*Skeleton, error) {
	return s.Fill(Names, mappings, opts)
}

// Pattern returns a copy of the program of the skeleton with its constants inferred.
// An error is returned if a hole remains.
func (s *Skeleton) Pattern() (*ast.Program, error) {
	holes := s.Holes()
	if len(holes) > 0 {
		return nil, errors.Errorf("skeleton has %d unfilled hole(s): %s", len(holes), stringseq.JoinStringer(slices.Values(holes), ", "))
	}
	return exprdeps.Infer(ast.Clone(s.prog)), nil
}

// ----------------------------------------------------------------------------
// Recording.

// Draw is a candidate chosen for a hole.
type Draw struct {
	Kind   Kind
	Hole   string
	Family string
	Choice string
}

func (d Draw) String() string {
	return fmt.Sprintf("%s %s <- %s", d.Family, d.Hole, d.Choice)
}

// Recorder records the draws of populators.
// A recorder can be shared by several fills.
type Recorder struct {
	mu    sync.Mutex
	draws []Draw
}

func (r *Recorder) record(d Draw) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = append(r.draws, d)
}

// Draws returns the draws recorded so far.
func (r *Recorder) Draws() []Draw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Draw{}, r.draws...)
}

// Reset removes all recorded draws.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = nil
}

func (r *Recorder) String() string {
	return stringseq.JoinStringer(slices.Values(r.Draws()), "\n")
}

// ----------------------------------------------------------------------------
// Generation.

// GeneratePatterns calls gen until n distinct patterns have been generated
// or maxTries calls have been made. Patterns are distinct if their text differs.
// Fewer than n patterns are returned when the tries are exhausted.
func GeneratePatterns(n, maxTries int, gen func() (*Skeleton, error)) ([]*ast.Program, error) {
	seen := make(map[string]bool)
	var patterns []*ast.Program
	for try := 0; try < maxTries && len(patterns) < n; try++ {
		skel, err := gen()
		if err != nil {
			return nil, err
		}
		pattern, err := skel.Pattern()
		if err != nil {
			return nil, err
		}
		text := pattern.String()
		if seen[text] {
			continue
		}
		seen[text] = true
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}
