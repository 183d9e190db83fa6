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

package skeleton

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/parser"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrPoolExhausted is returned when a hole draws from an empty finite pool.
var ErrPoolExhausted = errors.New("candidate pool exhausted")

// Kind of hole filled by a populator.
type Kind int

const (
	// Statements fills $name:family$ holes.
	Statements Kind = iota
	// Expressions fills #name:family# holes.
	Expressions
	// Operations fills @name:family@ holes.
	Operations
	// Names fills `name:family` holes.
	Names
)

func (k Kind) String() string {
	switch k {
	case Statements:
		return "statements"
	case Expressions:
		return "expressions"
	case Operations:
		return "operations"
	case Names:
		return "names"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type (
	// ChoiceFunc returns the index of the chosen candidate among n > 0 candidates.
	ChoiceFunc func(n int) int

	// MatchFunc returns true if a hole family is filled by a mapping family.
	MatchFunc func(holeFamily, mappingFamily string) bool

	// Mapping declares the candidates of a family.
	Mapping struct {
		Family string
		// Choices are parsed according to the kind of hole being filled:
		// statements, expressions, operators, or variable names.
		Choices []string
		// Finite pools draw without replacement.
		Finite bool
		// Choose picks a candidate. Uniform if nil.
		Choose ChoiceFunc
	}

	// Candidate filling a hole.
	Candidate struct {
		// Text is the source of the candidate.
		Text string
		// Node is the parsed statement or expression.
		// Nil for operators and names.
		Node ast.Node
	}

	// Options of a populator.
	Options struct {
		// Match selects the mapping of a hole. Exact family equality if nil.
		Match MatchFunc
		// Rand is the source of the default choice functions.
		Rand *rand.Rand
		// Recorder records every draw if not nil.
		Recorder *Recorder
		// Logger logs draws at debug level. slog.Default() if nil.
		Logger *slog.Logger
	}
)

func (m Mapping) String() string {
	return fmt.Sprintf("%s = {%s}", m.Family, strings.Join(m.Choices, ","))
}

// ExactMatch is the default MatchFunc.
func ExactMatch(holeFamily, mappingFamily string) bool {
	return holeFamily == mappingFamily
}

type pool struct {
	family     string
	candidates []Candidate
	finite     bool
	choose     ChoiceFunc
}

// Populator draws candidates for holes.
// Holes sharing a name and a family receive the same candidate,
// except for holes named with the wildcard which draw independently.
type Populator struct {
	kind     Kind
	opts     Options
	pools    *ordered.Map[string, *pool]
	assigned map[string]Candidate
}

func parseCandidate(kind Kind, text string) (Candidate, error) {
	c := Candidate{Text: text}
	var err error
	switch kind {
	case Statements:
		c.Node, err = parser.ParseStmt(text)
	case Expressions:
		c.Node, err = parser.ParseExpr(text)
	case Operations:
		if prec, ok := ast.BinaryPrecedence(text); !ok || prec == ast.PrecTernary {
			err = errors.Errorf("%q is not a binary operator", text)
		}
	case Names:
		var x ast.Expr
		x, err = parser.ParseExpr(text)
		if err != nil {
			break
		}
		if acc, ok := x.(*ast.Access); !ok || !acc.IsScalar() || acc.Hole != nil {
			err = errors.Errorf("%q is not a variable name", text)
		}
	default:
		err = errors.Errorf("unknown hole kind %v", kind)
	}
	return c, err
}

// NewPopulator returns a populator drawing from the given families.
// All the errors found in the mappings are returned together.
func NewPopulator(kind Kind, mappings []Mapping, opts Options) (*Populator, error) {
	p := &Populator{
		kind:     kind,
		opts:     opts,
		pools:    ordered.NewMap[string, *pool](),
		assigned: make(map[string]Candidate),
	}
	if p.opts.Match == nil {
		p.opts.Match = ExactMatch
	}
	if p.opts.Logger == nil {
		p.opts.Logger = slog.Default()
	}
	var errs error
	for _, m := range mappings {
		if p.pools.Has(m.Family) {
			errs = multierr.Append(errs, errors.Errorf("family %s declared twice", m.Family))
			continue
		}
		pl := &pool{family: m.Family, finite: m.Finite, choose: m.Choose}
		if pl.choose == nil {
			pl.choose = p.uniform
		}
		for _, text := range m.Choices {
			c, err := parseCandidate(kind, text)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "family %s", m.Family))
				continue
			}
			pl.candidates = append(pl.candidates, c)
		}
		p.pools.Store(m.Family, pl)
	}
	if errs != nil {
		return nil, errs
	}
	return p, nil
}

func (p *Populator) uniform(n int) int {
	if p.opts.Rand == nil {
		return rand.IntN(n)
	}
	return p.opts.Rand.IntN(n)
}

func (p *Populator) find(family string) *pool {
	for pl := range p.pools.Values() {
		if p.opts.Match(family, pl.family) {
			return pl
		}
	}
	return nil
}

// Populate returns the candidate filling a hole.
// False is returned if no family matches the hole: the hole is left as is.
func (p *Populator) Populate(h ast.Hole) (Candidate, bool, error) {
	pl := p.find(h.FamilyName())
	if pl == nil {
		return Candidate{}, false, nil
	}
	key := h.HoleName() + ":" + h.FamilyName()
	wildcard := h.HoleName() == ast.Wildcard
	if !wildcard {
		if c, ok := p.assigned[key]; ok {
			return c, true, nil
		}
	}
	if len(pl.candidates) == 0 {
		return Candidate{}, false, errors.Wrapf(ErrPoolExhausted, "cannot fill %s from family %s", h.String(), pl.family)
	}
	i := pl.choose(len(pl.candidates))
	if i < 0 || i >= len(pl.candidates) {
		return Candidate{}, false, errors.Errorf("choice function of family %s returned %d for %d candidates", pl.family, i, len(pl.candidates))
	}
	c := pl.candidates[i]
	if pl.finite {
		pl.candidates = append(pl.candidates[:i:i], pl.candidates[i+1:]...)
	}
	if !wildcard {
		p.assigned[key] = c
	}
	p.opts.Logger.Debug("fill hole", "hole", h.String(), "family", pl.family, "choice", c.Text)
	if p.opts.Recorder != nil {
		p.opts.Recorder.record(Draw{Kind: p.kind, Hole: h.String(), Family: pl.family, Choice: c.Text})
	}
	return c, true, nil
}
