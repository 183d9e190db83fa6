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
	"strings"

	"github.com/pkg/errors"
)

var errOverflow = errors.New("coefficient overflow")

// monomial is a product of variables: the sorted names joined with a 0 byte.
// The empty monomial is the constant 1.
type monomial string

func (m monomial) vars() []string {
	if m == "" {
		return nil
	}
	return strings.Split(string(m), "\x00")
}

func (m monomial) times(o monomial) monomial {
	vars := append(m.vars(), o.vars()...)
	slices.Sort(vars)
	return monomial(strings.Join(vars, "\x00"))
}

// degrees returns the power of each variable of the monomial.
func (m monomial) degrees() map[string]int {
	degs := make(map[string]int)
	for _, v := range m.vars() {
		degs[v]++
	}
	return degs
}

// poly is a polynomial with integer coefficients.
// Monomials with a zero coefficient are never stored.
type poly map[monomial]int64

func constPoly(c int64) poly {
	if c == 0 {
		return poly{}
	}
	return poly{"": c}
}

func (p poly) constant() int64 {
	return p[""]
}

func (p poly) isConst() bool {
	for m := range p {
		if m != "" {
			return false
		}
	}
	return true
}

func (p poly) sortedMonomials() []monomial {
	return slices.Sorted(maps.Keys(p))
}

func (p poly) add(q poly) (poly, error) {
	r := make(poly, len(p)+len(q))
	maps.Copy(r, p)
	for m, c := range q {
		sum, ok := addExact(r[m], c)
		if !ok {
			return nil, errOverflow
		}
		if sum == 0 {
			delete(r, m)
		} else {
			r[m] = sum
		}
	}
	return r, nil
}

func (p poly) scale(k int64) (poly, error) {
	r := make(poly, len(p))
	if k == 0 {
		return r, nil
	}
	for m, c := range p {
		v, ok := mulExact(c, k)
		if !ok {
			return nil, errOverflow
		}
		r[m] = v
	}
	return r, nil
}

func (p poly) sub(q poly) (poly, error) {
	nq, err := q.scale(-1)
	if err != nil {
		return nil, err
	}
	return p.add(nq)
}

func (p poly) mul(q poly) (poly, error) {
	r := poly{}
	for mp, cp := range p {
		for mq, cq := range q {
			c, ok := mulExact(cp, cq)
			if !ok {
				return nil, errOverflow
			}
			var err error
			if r, err = r.add(poly{mp.times(mq): c}); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// coefOf returns the coefficient of a variable if the variable only appears
// in a monomial of degree 1.
func (p poly) coefOf(x string) (int64, bool) {
	var coef int64
	for m, c := range p {
		degs := m.degrees()
		d, ok := degs[x]
		if !ok {
			continue
		}
		if d != 1 || len(degs) != 1 {
			return 0, false
		}
		coef = c
	}
	return coef, coef != 0
}

// substitute replaces a variable by a polynomial.
func (p poly) substitute(x string, q poly) (poly, error) {
	r := poly{}
	for m, c := range p {
		term := constPoly(c)
		var rest []string
		for _, v := range m.vars() {
			if v != x {
				rest = append(rest, v)
				continue
			}
			var err error
			if term, err = term.mul(q); err != nil {
				return nil, err
			}
		}
		term, err := term.mul(poly{monomial(strings.Join(rest, "\x00")): 1})
		if err != nil {
			return nil, err
		}
		if r, err = r.add(term); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (p poly) eval(m Model) int64 {
	var sum int64
	for mono, c := range p {
		v := c
		for _, name := range mono.vars() {
			v *= m[name]
		}
		sum += v
	}
	return sum
}

func (p poly) String() string {
	if len(p) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, m := range p.sortedMonomials() {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%d", p[m])
		for _, v := range m.vars() {
			b.WriteString("*" + v)
		}
	}
	return b.String()
}

// toPoly returns the normal form of a term.
func toPoly(t Term) (poly, error) {
	switch tT := t.(type) {
	case Const:
		if isInf(tT.Value) {
			return nil, errOverflow
		}
		return constPoly(tT.Value), nil
	case Var:
		return poly{monomial(tT.Name): 1}, nil
	case Neg:
		x, err := toPoly(tT.X)
		if err != nil {
			return nil, err
		}
		return x.scale(-1)
	}
	var x, y Term
	switch tT := t.(type) {
	case Add:
		x, y = tT.X, tT.Y
	case Sub:
		x, y = tT.X, tT.Y
	case Mul:
		x, y = tT.X, tT.Y
	default:
		return nil, errors.Errorf("unknown term type %T", t)
	}
	px, err := toPoly(x)
	if err != nil {
		return nil, err
	}
	py, err := toPoly(y)
	if err != nil {
		return nil, err
	}
	switch t.(type) {
	case Add:
		return px.add(py)
	case Sub:
		return px.sub(py)
	}
	return px.mul(py)
}

// ----------------------------------------------------------------------------
// Formulas in negation normal form.

type nodeKind int

const (
	atomLE nodeKind = iota // p <= 0
	atomEQ                 // p == 0
	nodeAnd
	nodeOr
	nodeTrue
	nodeFalse
)

// node is a formula in negation normal form.
type node struct {
	kind nodeKind
	p    poly
	args []*node
}

var (
	trueNode  = &node{kind: nodeTrue}
	falseNode = &node{kind: nodeFalse}
)

func (n *node) isAtom() bool {
	return n.kind == atomLE || n.kind == atomEQ
}

func (n *node) String() string {
	switch n.kind {
	case atomLE:
		return n.p.String() + " <= 0"
	case atomEQ:
		return n.p.String() + " == 0"
	case nodeTrue:
		return "true"
	case nodeFalse:
		return "false"
	}
	ss := make([]string, len(n.args))
	for i, arg := range n.args {
		ss[i] = arg.String()
	}
	sep := " && "
	if n.kind == nodeOr {
		sep = " || "
	}
	return "(" + strings.Join(ss, sep) + ")"
}

// junction builds a conjunction or a disjunction, flattening nested
// nodes of the same kind and removing neutral elements.
func junction(kind nodeKind, args []*node) *node {
	neutral, absorbing := nodeTrue, nodeFalse
	if kind == nodeOr {
		neutral, absorbing = nodeFalse, nodeTrue
	}
	var flat []*node
	for _, arg := range args {
		switch arg.kind {
		case neutral:
			continue
		case absorbing:
			return arg
		case kind:
			flat = append(flat, arg.args...)
		default:
			flat = append(flat, arg)
		}
	}
	switch len(flat) {
	case 0:
		if kind == nodeAnd {
			return trueNode
		}
		return falseNode
	case 1:
		return flat[0]
	}
	return &node{kind: kind, args: flat}
}

// conjuncts returns the top-level conjuncts of a node.
func (n *node) conjuncts() []*node {
	if n.kind == nodeAnd {
		return n.args
	}
	return []*node{n}
}

func leAtom(p poly) *node { return &node{kind: atomLE, p: p} }

func cmpToNode(op CmpOp, d poly) (*node, error) {
	plusOne := func(p poly) (poly, error) { return p.add(constPoly(1)) }
	switch op {
	case LE:
		return leAtom(d), nil
	case EQ:
		return &node{kind: atomEQ, p: d}, nil
	case GE:
		nd, err := d.scale(-1)
		return leAtom(nd), err
	case LT:
		p, err := plusOne(d)
		return leAtom(p), err
	case GT:
		nd, err := d.scale(-1)
		if err != nil {
			return nil, err
		}
		p, err := plusOne(nd)
		return leAtom(p), err
	}
	lt, err := cmpToNode(LT, d)
	if err != nil {
		return nil, err
	}
	gt, err := cmpToNode(GT, d)
	if err != nil {
		return nil, err
	}
	return junction(nodeOr, []*node{lt, gt}), nil
}

// toNode converts a formula into negation normal form.
func toNode(f Formula, neg bool) (*node, error) {
	switch fT := f.(type) {
	case Cmp:
		d, err := toPoly(Sub{X: fT.X, Y: fT.Y})
		if err != nil {
			return nil, err
		}
		op := fT.Op
		if neg {
			op = op.Negate()
		}
		return cmpToNode(op, d)
	case Not:
		return toNode(fT.F, !neg)
	case Bool:
		if bool(fT) != neg {
			return trueNode, nil
		}
		return falseNode, nil
	}
	var args []Formula
	kind := nodeAnd
	switch fT := f.(type) {
	case And:
		args = fT.Args
	case Or:
		args = fT.Args
		kind = nodeOr
	default:
		return nil, errors.Errorf("unknown formula type %T", f)
	}
	if neg {
		if kind == nodeAnd {
			kind = nodeOr
		} else {
			kind = nodeAnd
		}
	}
	nodes := make([]*node, len(args))
	for i, arg := range args {
		var err error
		if nodes[i], err = toNode(arg, neg); err != nil {
			return nil, err
		}
	}
	return junction(kind, nodes), nil
}

// substitute replaces a variable by a polynomial in all the atoms.
func (n *node) substitute(x string, q poly) (*node, error) {
	if n.isAtom() {
		p, err := n.p.substitute(x, q)
		if err != nil {
			return nil, err
		}
		return &node{kind: n.kind, p: p}, nil
	}
	if len(n.args) == 0 {
		return n, nil
	}
	args := make([]*node, len(n.args))
	for i, arg := range n.args {
		var err error
		if args[i], err = arg.substitute(x, q); err != nil {
			return nil, err
		}
	}
	return junction(n.kind, args), nil
}

// term converts a polynomial back into a term.
func (p poly) term() Term {
	var ts []Term
	for _, m := range p.sortedMonomials() {
		var t Term
		if c := p[m]; c != 1 || m == "" {
			t = C(c)
		}
		for _, v := range m.vars() {
			if t == nil {
				t = V(v)
			} else {
				t = Mul{X: t, Y: V(v)}
			}
		}
		ts = append(ts, t)
	}
	return Sum(ts...)
}

// Constant returns the value of a term without variables.
func Constant(t Term) (int64, bool) {
	p, err := toPoly(t)
	if err != nil || !p.isConst() {
		return 0, false
	}
	return p.constant(), true
}

// DivExact returns t/d if d divides all the coefficients of t.
func DivExact(t Term, d int64) (Term, bool) {
	if d == 0 {
		return nil, false
	}
	p, err := toPoly(t)
	if err != nil {
		return nil, false
	}
	q := make(poly, len(p))
	for m, c := range p {
		if c%d != 0 {
			return nil, false
		}
		q[m] = c / d
	}
	return q.term(), true
}

// Normalize returns an equivalent term with sorted monomials and folded constants.
func Normalize(t Term) (Term, error) {
	p, err := toPoly(t)
	if err != nil {
		return nil, err
	}
	return p.term(), nil
}
