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
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultBound confines the variables of the built-in checker to [-DefaultBound, DefaultBound].
	DefaultBound = int64(1) << 32
	// DefaultMaxNodes is the default search budget of the built-in checker.
	DefaultMaxNodes = 200000

	maxBound         = inf >> 4
	maxRounds        = 64
	maxEnumerate     = 16
	maxFMConstraints = 512
)

// BuiltinOptions configures the built-in checker.
type BuiltinOptions struct {
	// Bound confines every variable to [-Bound, Bound]. DefaultBound if 0.
	Bound int64
	// MaxNodes is the number of search nodes after which the checker
	// gives up with an Unknown status. DefaultMaxNodes if 0.
	MaxNodes int
	// Timeout of a check. DefaultTimeout if 0, no timeout if negative.
	Timeout time.Duration
	// Logger logs the checks at debug level. slog.Default() if nil.
	Logger *slog.Logger
}

// Builtin is a decision procedure over bounded integers.
//
// Formulas are normalized into negation normal form over polynomial atoms.
// The search alternates bounds propagation, elimination of equalities
// with a unit coefficient, a rational infeasibility test on the linear
// atoms, case splits on disjunctions, and enumeration or bisection of
// variable domains. The search is deterministic.
type Builtin struct {
	opts BuiltinOptions
}

var _ Checker = (*Builtin)(nil)

// NewBuiltin returns a built-in checker.
func NewBuiltin(opts BuiltinOptions) *Builtin {
	if opts.Bound <= 0 {
		opts.Bound = DefaultBound
	}
	opts.Bound = min(opts.Bound, maxBound)
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builtin{opts: opts}
}

// Check the satisfiability of the conjunction of formulas.
func (b *Builtin) Check(ctx context.Context, fs []Formula) (Result, error) {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	nodes := make([]*node, len(fs))
	for i, f := range fs {
		n, err := toNode(f, false)
		if errors.Is(err, errOverflow) {
			return unknown("%v in %v", err, f), nil
		}
		if err != nil {
			return Result{}, err
		}
		nodes[i] = n
	}
	dom := make(domain)
	for _, v := range Vars(fs...) {
		dom[v] = interval{lo: -b.opts.Bound, hi: b.opts.Bound}
	}
	s := &search{ctx: ctx, opts: b.opts}
	m, status := s.solve(junction(nodeAnd, nodes), dom)
	var res Result
	switch status {
	case Sat:
		res = Result{Status: Sat, Model: m}
		for _, f := range fs {
			if !m.Holds(f) {
				res = unknown("model %v does not satisfy %v", m, f)
				break
			}
		}
	case Unsat:
		res = Result{Status: Unsat}
	default:
		res = unknown("%s", s.reason)
	}
	b.opts.Logger.Debug("builtin check", "formulas", len(fs), "vars", len(dom), "nodes", s.nodes, "result", res.String())
	return res, nil
}

// ----------------------------------------------------------------------------
// Domains.

// domain maps variables to the interval of their possible values.
type domain map[string]interval

func (d domain) get(x string) interval {
	iv, ok := d[x]
	if !ok {
		return interval{lo: -inf, hi: inf}
	}
	return iv
}

// eval returns an interval containing all the values of a polynomial.
func (d domain) eval(p poly) interval {
	var sum interval
	for m, c := range p {
		iv := interval{lo: c, hi: c}
		for v, deg := range m.degrees() {
			iv = iv.mul(d.get(v).pow(deg))
		}
		sum = sum.add(iv)
	}
	return sum
}

// closest returns the model where every variable is as close to 0 as possible.
func (d domain) closest() Model {
	m := make(Model, len(d))
	for v, iv := range d {
		m[v] = iv.closestToZero()
	}
	return m
}

// linear is the linear part of a polynomial under a domain:
// the sum of coefs[x]*x for all x, plus rest.
type linear struct {
	coefs map[string]int64
	rest  interval
}

func (d domain) linearize(p poly) linear {
	l := linear{coefs: make(map[string]int64)}
	for m, c := range p {
		iv := interval{lo: c, hi: c}
		var free []string
		for v, deg := range m.degrees() {
			div := d.get(v)
			if div.fixed() {
				iv = iv.mul(div.pow(deg))
				continue
			}
			for range deg {
				free = append(free, v)
			}
		}
		if len(free) == 1 && iv.fixed() && !isInf(iv.lo) {
			if sum, ok := addExact(l.coefs[free[0]], iv.lo); ok {
				l.coefs[free[0]] = sum
				continue
			}
		}
		l.rest = l.rest.add(d.eval(poly{m: c}))
	}
	maps.DeleteFunc(l.coefs, func(_ string, a int64) bool { return a == 0 })
	return l
}

func (l linear) negate() linear {
	neg := linear{
		coefs: make(map[string]int64, len(l.coefs)),
		rest:  interval{lo: -l.rest.hi, hi: -l.rest.lo},
	}
	for v, a := range l.coefs {
		neg.coefs[v] = -a
	}
	return neg
}

// narrowLE narrows the domain of the variables of l <= 0.
// False is returned if a domain becomes empty.
func (d domain) narrowLE(l linear) (changed, ok bool) {
	names := slices.Sorted(maps.Keys(l.coefs))
	for _, x := range names {
		a := l.coefs[x]
		low := l.rest.lo
		for _, y := range names {
			if y != x {
				low = addLo(low, d.get(y).scale(l.coefs[y]).lo)
			}
		}
		if isInf(low) {
			continue
		}
		bound := -low
		iv := d.get(x)
		if a > 0 {
			if hi := floorDiv(bound, a); hi < iv.hi {
				iv.hi = hi
				changed = true
			}
		} else {
			if lo := ceilDiv(bound, a); lo > iv.lo {
				iv.lo = lo
				changed = true
			}
		}
		if iv.empty() {
			return changed, false
		}
		d[x] = iv
	}
	return changed, true
}

// narrow narrows the domain of the variables of an atom.
func (d domain) narrow(n *node) (changed, ok bool) {
	l := d.linearize(n.p)
	changed, ok = d.narrowLE(l)
	if !ok || n.kind == atomLE {
		return changed, ok
	}
	var negChanged bool
	negChanged, ok = d.narrowLE(l.negate())
	changed = changed || negChanged
	if !ok || !l.rest.fixed() || isInf(l.rest.lo) || len(l.coefs) == 0 {
		return changed, ok
	}
	var g int64
	for _, a := range l.coefs {
		g = gcd(g, abs(a))
	}
	return changed, l.rest.lo%g == 0
}

// simplify replaces the atoms decided by the domain by true or false.
func simplify(n *node, d domain) *node {
	switch n.kind {
	case atomLE:
		iv := d.eval(n.p)
		switch {
		case iv.hi <= 0:
			return trueNode
		case iv.lo > 0:
			return falseNode
		}
		return n
	case atomEQ:
		iv := d.eval(n.p)
		switch {
		case iv.lo == 0 && iv.hi == 0:
			return trueNode
		case iv.lo > 0 || iv.hi < 0:
			return falseNode
		}
		return n
	case nodeAnd, nodeOr:
		args := make([]*node, len(n.args))
		for i, arg := range n.args {
			args[i] = simplify(arg, d)
		}
		return junction(n.kind, args)
	}
	return n
}

// propagate simplifies a node and narrows the domains until a fixpoint
// is reached. False is returned if the node is unsatisfiable.
func propagate(n *node, d domain) (*node, domain, bool) {
	d = maps.Clone(d)
	for round := 0; ; round++ {
		n = simplify(n, d)
		if n.kind == nodeFalse {
			return n, d, false
		}
		if n.kind == nodeTrue || round == maxRounds {
			return n, d, true
		}
		changed := false
		for _, c := range n.conjuncts() {
			if !c.isAtom() {
				continue
			}
			ch, ok := d.narrow(c)
			if !ok {
				return falseNode, d, false
			}
			changed = changed || ch
		}
		if !changed {
			return n, d, true
		}
	}
}

// ----------------------------------------------------------------------------
// Rational infeasibility.

// ineq is the constraint sum(coefs[x]*x) + c <= 0.
type ineq struct {
	coefs map[string]int64
	c     int64
}

// normalize divides an inequality by the gcd of its coefficients,
// rounding the constant for integer solutions.
func (q ineq) normalize() ineq {
	var g int64
	for _, a := range q.coefs {
		g = gcd(g, abs(a))
	}
	if g <= 1 {
		return q
	}
	for v, a := range q.coefs {
		q.coefs[v] = a / g
	}
	q.c = -floorDiv(-q.c, g)
	return q
}

// combine eliminates x from p and q where x has a positive coefficient in p
// and a negative one in q.
func combine(p, q ineq, x string) (ineq, bool) {
	a, b := p.coefs[x], -q.coefs[x]
	r := ineq{coefs: make(map[string]int64)}
	for _, side := range []struct {
		q ineq
		k int64
	}{{p, b}, {q, a}} {
		for v, c := range side.q.coefs {
			kc, ok := mulExact(c, side.k)
			if !ok {
				return r, false
			}
			if r.coefs[v], ok = addExact(r.coefs[v], kc); !ok {
				return r, false
			}
		}
		kc, ok := mulExact(side.q.c, side.k)
		if !ok {
			return r, false
		}
		if r.c, ok = addExact(r.c, kc); !ok {
			return r, false
		}
	}
	maps.DeleteFunc(r.coefs, func(_ string, c int64) bool { return c == 0 })
	return r.normalize(), true
}

// fourierMotzkin returns true if the system has no rational solution.
// False is returned if the system is feasible or too large to decide.
func fourierMotzkin(sys []ineq, vars []string) bool {
	for _, x := range vars {
		var pos, neg, rest []ineq
		for _, q := range sys {
			switch a := q.coefs[x]; {
			case a > 0:
				pos = append(pos, q)
			case a < 0:
				neg = append(neg, q)
			default:
				rest = append(rest, q)
			}
		}
		for _, p := range pos {
			for _, q := range neg {
				r, ok := combine(p, q, x)
				if !ok {
					return false
				}
				if len(r.coefs) == 0 {
					if r.c > 0 {
						return true
					}
					continue
				}
				rest = append(rest, r)
			}
		}
		if len(rest) > maxFMConstraints {
			return false
		}
		sys = rest
	}
	return false
}

// infeasible returns true if the linear relaxation of the top-level atoms
// of a node has no solution.
func (s *search) infeasible(n *node, d domain) bool {
	var sys []ineq
	vars := make(map[string]bool)
	add := func(q ineq) {
		for v := range q.coefs {
			vars[v] = true
		}
		sys = append(sys, q.normalize())
	}
	for _, c := range n.conjuncts() {
		if !c.isAtom() {
			continue
		}
		l := d.linearize(c.p)
		if len(l.coefs) == 0 {
			continue
		}
		if !isInf(l.rest.lo) {
			add(ineq{coefs: l.coefs, c: l.rest.lo})
		}
		if c.kind == atomEQ && !isInf(l.rest.hi) {
			neg := l.negate()
			add(ineq{coefs: neg.coefs, c: -l.rest.hi})
		}
	}
	if len(sys) < 2 {
		return false
	}
	names := slices.Sorted(maps.Keys(vars))
	for _, v := range names {
		iv := d.get(v)
		if iv.lo > -s.opts.Bound {
			sys = append(sys, ineq{coefs: map[string]int64{v: -1}, c: iv.lo})
		}
		if iv.hi < s.opts.Bound {
			sys = append(sys, ineq{coefs: map[string]int64{v: 1}, c: -iv.hi})
		}
	}
	return fourierMotzkin(sys, names)
}

// ----------------------------------------------------------------------------
// Search.

type search struct {
	ctx    context.Context
	opts   BuiltinOptions
	nodes  int
	halted bool
	reason string
}

func (s *search) stop() bool {
	if s.halted {
		return true
	}
	s.nodes++
	if s.nodes > s.opts.MaxNodes {
		s.halted = true
		s.reason = fmt.Sprintf("search budget of %d nodes exhausted", s.opts.MaxNodes)
	} else if err := s.ctx.Err(); err != nil {
		s.halted = true
		s.reason = err.Error()
	}
	return s.halted
}

func (s *search) solve(n *node, d domain) (Model, Status) {
	if s.stop() {
		return nil, Unknown
	}
	n, d, ok := propagate(n, d)
	if !ok {
		return nil, Unsat
	}
	if n.kind == nodeTrue {
		return d.closest(), Sat
	}
	if x, q, ok := pickElimination(n); ok {
		return s.eliminate(n, d, x, q)
	}
	if s.infeasible(n, d) {
		return nil, Unsat
	}
	if or := smallestOr(n); or != nil {
		return s.branchOr(n, or, d)
	}
	return s.split(n, d)
}

func polyVars(p poly) []string {
	vars := make(map[string]bool)
	for m := range p {
		for _, v := range m.vars() {
			vars[v] = true
		}
	}
	return slices.Sorted(maps.Keys(vars))
}

// pickElimination returns a variable of a top-level equality with a unit
// coefficient and the polynomial equal to that variable.
func pickElimination(n *node) (string, poly, bool) {
	for _, c := range n.conjuncts() {
		if c.kind != atomEQ {
			continue
		}
		for _, x := range polyVars(c.p) {
			a, ok := c.p.coefOf(x)
			if !ok || (a != 1 && a != -1) {
				continue
			}
			// p = a*x + r, so x = -a*r.
			r, err := c.p.add(poly{monomial(x): -a})
			if err != nil {
				continue
			}
			q, err := r.scale(-a)
			if err != nil {
				continue
			}
			return x, q, true
		}
	}
	return "", nil, false
}

func (s *search) eliminate(n *node, d domain, x string, q poly) (Model, Status) {
	sub, err := n.substitute(x, q)
	if err != nil {
		s.reason = fmt.Sprintf("cannot eliminate %s: %v", x, err)
		return nil, Unknown
	}
	iv := d.get(x)
	lo, errLo := constPoly(iv.lo).sub(q)
	hi, errHi := q.sub(constPoly(iv.hi))
	if errLo != nil || errHi != nil {
		s.reason = fmt.Sprintf("cannot bound %s: %v", x, errOverflow)
		return nil, Unknown
	}
	rest := maps.Clone(d)
	delete(rest, x)
	m, status := s.solve(junction(nodeAnd, []*node{sub, leAtom(lo), leAtom(hi)}), rest)
	if status == Sat {
		m[x] = q.eval(m)
	}
	return m, status
}

// smallestOr returns the top-level disjunction with the fewest alternatives.
func smallestOr(n *node) *node {
	var best *node
	for _, c := range n.conjuncts() {
		if c.kind != nodeOr {
			continue
		}
		if best == nil || len(c.args) < len(best.args) {
			best = c
		}
	}
	return best
}

func (s *search) branchOr(n, or *node, d domain) (Model, Status) {
	status := Unsat
	for _, alt := range or.args {
		var args []*node
		for _, c := range n.conjuncts() {
			if c == or {
				c = alt
			}
			args = append(args, c)
		}
		m, st := s.solve(junction(nodeAnd, args), d)
		switch st {
		case Sat:
			return m, Sat
		case Unknown:
			if s.halted {
				return nil, Unknown
			}
			status = Unknown
		}
	}
	return nil, status
}

// pickVar returns the free variable of the atoms with the smallest domain.
func pickVar(n *node, d domain) (string, bool) {
	vars := make(map[string]bool)
	for _, c := range n.conjuncts() {
		for _, v := range polyVars(c.p) {
			vars[v] = true
		}
	}
	best, found := "", false
	for _, v := range slices.Sorted(maps.Keys(vars)) {
		iv, ok := d[v]
		if !ok || iv.fixed() {
			continue
		}
		if !found || iv.width() < d[best].width() {
			best, found = v, true
		}
	}
	return best, found
}

func (s *search) split(n *node, d domain) (Model, Status) {
	x, ok := pickVar(n, d)
	if !ok {
		s.reason = fmt.Sprintf("cannot decide %v", n)
		return nil, Unknown
	}
	iv := d[x]
	var parts []interval
	if iv.width() < maxEnumerate {
		for v := iv.lo; v <= iv.hi; v++ {
			parts = append(parts, interval{lo: v, hi: v})
		}
		slices.SortStableFunc(parts, func(a, b interval) int {
			return cmp.Compare(abs(a.lo), abs(b.lo))
		})
	} else {
		mid := floorDiv(iv.lo+iv.hi, 2)
		left, right := interval{lo: iv.lo, hi: mid}, interval{lo: mid + 1, hi: iv.hi}
		if zero := iv.closestToZero(); zero > mid {
			left, right = right, left
		}
		parts = []interval{left, right}
	}
	status := Unsat
	for _, part := range parts {
		sub := maps.Clone(d)
		sub[x] = part
		m, st := s.solve(n, sub)
		switch st {
		case Sat:
			return m, Sat
		case Unknown:
			if s.halted {
				return nil, Unknown
			}
			status = Unknown
		}
	}
	return nil, status
}
