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
	"slices"
	"strings"

	"github.com/loopgen/loopgen/solver"
	"github.com/samber/lo"
)

// Direction is a set of relations between the iterations of a loop
// executing the source and the sink of a dependence.
type Direction uint8

const (
	// LT is a source executed in an earlier iteration than the sink.
	LT Direction = 1 << iota
	// EQ is a source and a sink executed in the same iteration.
	EQ
	// GT is a source executed in a later iteration than the sink.
	GT

	// LE is LT or EQ.
	LE = LT | EQ
	// Any relation.
	Any = LT | EQ | GT
)

// Concrete returns the directions of a set.
func (d Direction) Concrete() []Direction {
	return lo.Filter([]Direction{LT, EQ, GT}, func(c Direction, _ int) bool {
		return d&c != 0
	})
}

// Negate swaps LT and GT.
func (d Direction) Negate() Direction {
	r := d & EQ
	if d&LT != 0 {
		r |= GT
	}
	if d&GT != 0 {
		r |= LT
	}
	return r
}

// Formula returns the constraint between the source and the sink values of
// a loop variable for a direction.
// The direction must be concrete.
func (d Direction) Formula(source, sink solver.Term) solver.Formula {
	switch d {
	case LT:
		return solver.Lt(source, sink)
	case GT:
		return solver.Gt(source, sink)
	}
	return solver.Eq(source, sink)
}

func (d Direction) String() string {
	if d == 0 {
		return "{}"
	}
	var b strings.Builder
	if d&LT != 0 {
		b.WriteString("<")
	}
	if d&EQ != 0 {
		b.WriteString("=")
	}
	if d&GT != 0 {
		b.WriteString(">")
	}
	return b.String()
}

// Vector is a direction per loop dimension shared by the source and the sink,
// from the outermost dimension to the innermost.
type Vector []Direction

// ParseVector parses the text representation of a vector,
// for example "<,=" or "[<, =]".
func ParseVector(s string) (Vector, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return Vector{}, true
	}
	var v Vector
	for _, field := range strings.Split(s, ",") {
		var d Direction
		for _, c := range strings.TrimSpace(field) {
			switch c {
			case '<':
				d |= LT
			case '=':
				d |= EQ
			case '>':
				d |= GT
			case '*':
				d |= Any
			default:
				return nil, false
			}
		}
		if d == 0 {
			return nil, false
		}
		v = append(v, d)
	}
	return v, true
}

// Negate returns the vector of the dependence with source and sink swapped.
func (v Vector) Negate() Vector {
	return lo.Map(v, func(d Direction, _ int) Direction { return d.Negate() })
}

// Intersect returns the component-wise intersection of two vectors.
// False is returned if a component is empty.
func (v Vector) Intersect(o Vector) (Vector, bool) {
	if len(v) != len(o) {
		return nil, false
	}
	r := make(Vector, len(v))
	for i := range v {
		if r[i] = v[i] & o[i]; r[i] == 0 {
			return nil, false
		}
	}
	return r, true
}

// LeadingLT returns true if the leftmost component different from EQ is LT,
// or if all components are EQ.
// It returns false as soon as a component is not a single direction.
func (v Vector) LeadingLT() bool {
	for _, d := range v {
		switch d {
		case EQ:
			continue
		case LT:
			return true
		}
		return false
	}
	return true
}

// LoopIndependent returns true if all the components are EQ.
func (v Vector) LoopIndependent() bool {
	return lo.EveryBy(v, func(d Direction) bool { return d == EQ })
}

// CarriedBy returns the dimension carrying the dependence or -1 if the
// dependence is loop independent.
func (v Vector) CarriedBy() int {
	_, i, found := lo.FindIndexOf(v, func(d Direction) bool { return d != EQ })
	if !found {
		return -1
	}
	return i
}

// Equal returns true if two vectors have the same components.
func (v Vector) Equal(o Vector) bool {
	return slices.Equal(v, o)
}

func (v Vector) String() string {
	return "[" + strings.Join(lo.Map(v, func(d Direction, _ int) string { return d.String() }), ", ") + "]"
}
