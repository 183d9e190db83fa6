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

package solver

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/loopgen/loopgen/base/ordered"
)

type (
	// Term is an integer expression.
	Term interface {
		fmt.Stringer
		term()
	}

	// Const is an integer constant.
	Const struct {
		Value int64
	}

	// Var is an integer variable.
	Var struct {
		Name string
	}

	// Neg is the negation of a term.
	Neg struct {
		X Term
	}

	// Add is the sum of two terms.
	Add struct {
		X, Y Term
	}

	// Sub is the difference of two terms.
	Sub struct {
		X, Y Term
	}

	// Mul is the product of two terms.
	Mul struct {
		X, Y Term
	}
)

func (Const) term() {}
func (Var) term()   {}
func (Neg) term()   {}
func (Add) term()   {}
func (Sub) term()   {}
func (Mul) term()   {}

func (t Const) String() string { return strconv.FormatInt(t.Value, 10) }
func (t Var) String() string   { return t.Name }
func (t Neg) String() string   { return "-" + t.X.String() }
func (t Add) String() string   { return "(" + t.X.String() + " + " + t.Y.String() + ")" }
func (t Sub) String() string   { return "(" + t.X.String() + " - " + t.Y.String() + ")" }
func (t Mul) String() string   { return "(" + t.X.String() + " * " + t.Y.String() + ")" }

// C returns a constant term.
func C(v int64) Term {
	return Const{Value: v}
}

// V returns a variable term.
func V(name string) Term {
	return Var{Name: name}
}

// Sum returns the sum of terms, 0 if there is no term.
func Sum(ts ...Term) Term {
	if len(ts) == 0 {
		return C(0)
	}
	sum := ts[0]
	for _, t := range ts[1:] {
		sum = Add{X: sum, Y: t}
	}
	return sum
}

// CmpOp is a comparison operator.
type CmpOp int

const (
	// LT is <.
	LT CmpOp = iota
	// LE is <=.
	LE
	// EQ is ==.
	EQ
	// NE is !=.
	NE
	// GE is >=.
	GE
	// GT is >.
	GT
)

var cmpOpStrings = [...]string{LT: "<", LE: "<=", EQ: "==", NE: "!=", GE: ">=", GT: ">"}

func (op CmpOp) String() string {
	if op < LT || op > GT {
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}
	return cmpOpStrings[op]
}

// Negate returns the operator of the negated comparison.
func (op CmpOp) Negate() CmpOp {
	switch op {
	case LT:
		return GE
	case LE:
		return GT
	case EQ:
		return NE
	case NE:
		return EQ
	case GE:
		return LT
	}
	return LE
}

type (
	// Formula is a boolean combination of integer comparisons.
	Formula interface {
		fmt.Stringer
		formula()
	}

	// Cmp compares two terms.
	Cmp struct {
		Op   CmpOp
		X, Y Term
	}

	// And is true if all its arguments are. True if there is no argument.
	And struct {
		Args []Formula
	}

	// Or is true if one of its arguments is. False if there is no argument.
	Or struct {
		Args []Formula
	}

	// Not negates a formula.
	Not struct {
		F Formula
	}

	// Bool is a constant formula.
	Bool bool
)

const (
	// True is always satisfied.
	True = Bool(true)
	// False is never satisfied.
	False = Bool(false)
)

func (Cmp) formula()  {}
func (And) formula()  {}
func (Or) formula()   {}
func (Not) formula()  {}
func (Bool) formula() {}

func (f Cmp) String() string {
	return f.X.String() + " " + f.Op.String() + " " + f.Y.String()
}

func joinFormulas(fs []Formula, sep string) string {
	ss := make([]string, len(fs))
	for i, f := range fs {
		ss[i] = f.String()
	}
	return "(" + strings.Join(ss, sep) + ")"
}

func (f And) String() string { return joinFormulas(f.Args, " && ") }
func (f Or) String() string  { return joinFormulas(f.Args, " || ") }
func (f Not) String() string { return "!" + f.F.String() }
func (f Bool) String() string {
	if f {
		return "true"
	}
	return "false"
}

// Lt returns x < y.
func Lt(x, y Term) Formula { return Cmp{Op: LT, X: x, Y: y} }

// Le returns x <= y.
func Le(x, y Term) Formula { return Cmp{Op: LE, X: x, Y: y} }

// Eq returns x == y.
func Eq(x, y Term) Formula { return Cmp{Op: EQ, X: x, Y: y} }

// Ne returns x != y.
func Ne(x, y Term) Formula { return Cmp{Op: NE, X: x, Y: y} }

// Ge returns x >= y.
func Ge(x, y Term) Formula { return Cmp{Op: GE, X: x, Y: y} }

// Gt returns x > y.
func Gt(x, y Term) Formula { return Cmp{Op: GT, X: x, Y: y} }

// AllOf returns the conjunction of formulas.
func AllOf(fs ...Formula) Formula {
	if len(fs) == 1 {
		return fs[0]
	}
	return And{Args: fs}
}

// AnyOf returns the disjunction of formulas.
func AnyOf(fs ...Formula) Formula {
	if len(fs) == 1 {
		return fs[0]
	}
	return Or{Args: fs}
}

// ----------------------------------------------------------------------------
// Variables and evaluation.

func termVars(vars *ordered.Map[string, bool], t Term) {
	switch tT := t.(type) {
	case Var:
		vars.Store(tT.Name, true)
	case Neg:
		termVars(vars, tT.X)
	case Add:
		termVars(vars, tT.X)
		termVars(vars, tT.Y)
	case Sub:
		termVars(vars, tT.X)
		termVars(vars, tT.Y)
	case Mul:
		termVars(vars, tT.X)
		termVars(vars, tT.Y)
	}
}

func formulaVars(vars *ordered.Map[string, bool], f Formula) {
	switch fT := f.(type) {
	case Cmp:
		termVars(vars, fT.X)
		termVars(vars, fT.Y)
	case And:
		for _, arg := range fT.Args {
			formulaVars(vars, arg)
		}
	case Or:
		for _, arg := range fT.Args {
			formulaVars(vars, arg)
		}
	case Not:
		formulaVars(vars, fT.F)
	}
}

// Vars returns the sorted names of the variables used in formulas.
func Vars(fs ...Formula) []string {
	vars := ordered.NewMap[string, bool]()
	for _, f := range fs {
		formulaVars(vars, f)
	}
	names := slices.Collect(vars.Keys())
	slices.Sort(names)
	return names
}

// TermVars returns the sorted names of the variables used in a term.
func TermVars(t Term) []string {
	vars := ordered.NewMap[string, bool]()
	termVars(vars, t)
	names := slices.Collect(vars.Keys())
	slices.Sort(names)
	return names
}

// Model assigns values to variables.
type Model map[string]int64

// Eval evaluates a term. Missing variables evaluate to 0.
func (m Model) Eval(t Term) int64 {
	switch tT := t.(type) {
	case Const:
		return tT.Value
	case Var:
		return m[tT.Name]
	case Neg:
		return -m.Eval(tT.X)
	case Add:
		return m.Eval(tT.X) + m.Eval(tT.Y)
	case Sub:
		return m.Eval(tT.X) - m.Eval(tT.Y)
	case Mul:
		return m.Eval(tT.X) * m.Eval(tT.Y)
	}
	panic(fmt.Sprintf("unknown term type %T", t))
}

// Holds returns true if the model satisfies a formula.
func (m Model) Holds(f Formula) bool {
	switch fT := f.(type) {
	case Cmp:
		x, y := m.Eval(fT.X), m.Eval(fT.Y)
		switch fT.Op {
		case LT:
			return x < y
		case LE:
			return x <= y
		case EQ:
			return x == y
		case NE:
			return x != y
		case GE:
			return x >= y
		case GT:
			return x > y
		}
	case And:
		for _, arg := range fT.Args {
			if !m.Holds(arg) {
				return false
			}
		}
		return true
	case Or:
		for _, arg := range fT.Args {
			if m.Holds(arg) {
				return true
			}
		}
		return false
	case Not:
		return !m.Holds(fT.F)
	case Bool:
		return bool(fT)
	}
	panic(fmt.Sprintf("unknown formula type %T", f))
}

func (m Model) String() string {
	names := slices.Sorted(maps.Keys(m))
	ss := make([]string, len(names))
	for i, name := range names {
		ss[i] = fmt.Sprintf("%s=%d", name, m[name])
	}
	return "{" + strings.Join(ss, ", ") + "}"
}
