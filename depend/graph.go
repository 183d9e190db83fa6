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
	"fmt"
	"slices"
	"strings"

	lgfmt "github.com/loopgen/loopgen/base/fmt"
	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/constraint"
	"github.com/samber/lo"
)

// Kind of a dependence.
type Kind int

const (
	// Flow is a write followed by a read.
	Flow Kind = iota
	// Anti is a read followed by a write.
	Anti
	// Output is a write followed by a write.
	Output
)

var kindStrings = [...]string{Flow: "flow", Anti: "anti", Output: "output"}

func (k Kind) String() string {
	return kindStrings[k]
}

// Dependence between two accesses to the same variable.
type Dependence struct {
	// Source is executed before Sink.
	Source, Sink *ast.Access
	// Direction has one component per loop dimension surrounding both accesses.
	Direction Vector
	// LoopVars are the variables of the dimensions of Direction.
	LoopVars []string
	// Distance is the number of iterations between the source and the sink
	// in each dimension. Nil until computed by CalculateDistanceVectors,
	// or if the distance cannot be computed.
	Distance []int64
}

// Kind returns the kind of the dependence.
func (d *Dependence) Kind() Kind {
	switch {
	case d.Source.IsWrite && d.Sink.IsWrite:
		return Output
	case d.Source.IsWrite:
		return Flow
	}
	return Anti
}

// SourceStmt returns the statement of the source access.
func (d *Dependence) SourceStmt() ast.Stmt {
	return d.Source.Parent()
}

// SinkStmt returns the statement of the sink access.
func (d *Dependence) SinkStmt() ast.Stmt {
	return d.Sink.Parent()
}

func printRef(ref *ast.Access) string {
	stmt := ast.Print(ref.Parent(), ast.Options{
		Highlight: func(acc *ast.Access) bool { return acc == ref },
	})
	return fmt.Sprintf("%s(%d)", stmt, ref.Parent().ID())
}

func (d *Dependence) String() string {
	lines := []string{
		"From: " + printRef(d.Source),
		"To:   " + printRef(d.Sink),
		"DV:   " + d.Direction.String(),
	}
	if d.LoopVars != nil {
		lines = append(lines, "LV:   ["+strings.Join(d.LoopVars, ", ")+"]")
	}
	if d.Distance != nil {
		lines = append(lines, fmt.Sprintf("|DV|: %v", d.Distance))
	}
	return strings.Join(lines, "\n")
}

type edge struct {
	source, sink ast.NodeID
}

// Graph of dependences between the statements of a program.
// Dependences are keyed by the identifiers of their source and sink statements.
//
// Two dependences are the same if they have the same source access, the
// same sink access and the same direction vector. Dependences with equal
// direction vectors between different accesses of the same statements
// are all kept.
type Graph struct {
	deps *ordered.Map[edge, []*Dependence]
	// env maps the loop invariant scalars of the analyzed program to solver variables.
	env constraint.Env
}

func newGraph(env constraint.Env) *Graph {
	return &Graph{deps: ordered.NewMap[edge, []*Dependence](), env: env}
}

// add a dependence to the graph.
// False is returned if a dependence with the same accesses and
// the same direction vector is already in the graph.
func (g *Graph) add(dep *Dependence) bool {
	key := edge{source: dep.SourceStmt().ID(), sink: dep.SinkStmt().ID()}
	deps, _ := g.deps.Load(key)
	if lo.ContainsBy(deps, func(other *Dependence) bool {
		return other.Source == dep.Source && other.Sink == dep.Sink && other.Direction.Equal(dep.Direction)
	}) {
		return false
	}
	g.deps.Store(key, append(deps, dep))
	return true
}

// All returns all the dependences of the graph in the order they have been found.
func (g *Graph) All() []*Dependence {
	return lo.Flatten(slices.Collect(g.deps.Values()))
}

func (g *Graph) filter(keep func(edge) bool) []*Dependence {
	var deps []*Dependence
	for k, ds := range g.deps.Iter() {
		if keep(k) {
			deps = append(deps, ds...)
		}
	}
	return deps
}

// From returns the dependences with a source in a statement.
func (g *Graph) From(stmt ast.Stmt) []*Dependence {
	return g.filter(func(e edge) bool { return e.source == stmt.ID() })
}

// To returns the dependences with a sink in a statement.
func (g *Graph) To(stmt ast.Stmt) []*Dependence {
	return g.filter(func(e edge) bool { return e.sink == stmt.ID() })
}

// Among returns the dependences with both their source and sink in a set of statements.
func (g *Graph) Among(stmts []ast.Stmt) []*Dependence {
	ids := lo.SliceToMap(stmts, func(s ast.Stmt) (ast.NodeID, bool) { return s.ID(), true })
	return g.filter(func(e edge) bool { return ids[e.source] && ids[e.sink] })
}

// Len returns the number of dependences in the graph.
func (g *Graph) Len() int {
	n := 0
	for deps := range g.deps.Values() {
		n += len(deps)
	}
	return n
}

func (g *Graph) String() string {
	return lgfmt.Lines(g.All())
}
