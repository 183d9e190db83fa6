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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Z3 checks formulas by running the z3 binary on an SMT-LIB2 script.
type Z3 struct {
	// Path to the z3 binary. "z3" (looked up in PATH) if empty.
	Path string
	// Timeout of a check. DefaultTimeout if 0.
	Timeout time.Duration
	// Logger logs the scripts at debug level. slog.Default() if nil.
	Logger *slog.Logger
}

var _ Checker = (*Z3)(nil)

func (z *Z3) path() string {
	if z.Path == "" {
		return "z3"
	}
	return z.Path
}

func (z *Z3) logger() *slog.Logger {
	if z.Logger == nil {
		return slog.Default()
	}
	return z.Logger
}

// Check runs z3 on the conjunction of formulas.
func (z *Z3) Check(ctx context.Context, fs []Formula) (Result, error) {
	timeout := z.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// Leave z3 a chance to report its own timeout before being killed.
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()
	script := Script(fs)
	secs := max(1, int((timeout+time.Second-1)/time.Second))
	cmd := exec.CommandContext(ctx, z.path(), "-in", "-smt2", fmt.Sprintf("-T:%d", secs))
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	z.logger().Debug("z3 check", "script", script, "output", stdout.String())
	if ctx.Err() != nil {
		return unknown("z3: %v", ctx.Err()), nil
	}
	status, rest, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
	switch strings.TrimSpace(status) {
	case "sat":
		m, err := parseModel(rest)
		if err != nil {
			return Result{}, errors.Wrapf(ErrBackend, "cannot parse z3 model: %v", err)
		}
		return Result{Status: Sat, Model: m}, nil
	case "unsat":
		return Result{Status: Unsat}, nil
	case "unknown", "timeout":
		return unknown("z3 returned %s", strings.TrimSpace(status)), nil
	}
	return Result{}, errors.Wrapf(ErrBackend, "%s: %v\n%s%s", z.path(), runErr, stdout.String(), stderr.String())
}

// ----------------------------------------------------------------------------
// SMT-LIB2 script.

func smtName(name string) string {
	return "|" + name + "|"
}

func smtTerm(t Term) string {
	switch tT := t.(type) {
	case Const:
		if tT.Value < 0 {
			return fmt.Sprintf("(- %d)", -tT.Value)
		}
		return strconv.FormatInt(tT.Value, 10)
	case Var:
		return smtName(tT.Name)
	case Neg:
		return "(- " + smtTerm(tT.X) + ")"
	case Add:
		return "(+ " + smtTerm(tT.X) + " " + smtTerm(tT.Y) + ")"
	case Sub:
		return "(- " + smtTerm(tT.X) + " " + smtTerm(tT.Y) + ")"
	case Mul:
		return "(* " + smtTerm(tT.X) + " " + smtTerm(tT.Y) + ")"
	}
	panic(fmt.Sprintf("unknown term type %T", t))
}

var smtOps = [...]string{LT: "<", LE: "<=", EQ: "=", NE: "distinct", GE: ">=", GT: ">"}

func smtFormulas(op string, fs []Formula) string {
	ss := make([]string, len(fs))
	for i, f := range fs {
		ss[i] = smtFormula(f)
	}
	return "(" + op + " " + strings.Join(ss, " ") + ")"
}

func smtFormula(f Formula) string {
	switch fT := f.(type) {
	case Cmp:
		return "(" + smtOps[fT.Op] + " " + smtTerm(fT.X) + " " + smtTerm(fT.Y) + ")"
	case And:
		if len(fT.Args) == 0 {
			return "true"
		}
		return smtFormulas("and", fT.Args)
	case Or:
		if len(fT.Args) == 0 {
			return "false"
		}
		return smtFormulas("or", fT.Args)
	case Not:
		return "(not " + smtFormula(fT.F) + ")"
	case Bool:
		return fT.String()
	}
	panic(fmt.Sprintf("unknown formula type %T", f))
}

// Script returns the SMT-LIB2 script checking the conjunction of formulas
// and printing the value of every variable.
func Script(fs []Formula) string {
	var b strings.Builder
	b.WriteString("(set-option :produce-models true)\n")
	vars := Vars(fs...)
	for _, v := range vars {
		fmt.Fprintf(&b, "(declare-const %s Int)\n", smtName(v))
	}
	for _, f := range fs {
		fmt.Fprintf(&b, "(assert %s)\n", smtFormula(f))
	}
	b.WriteString("(check-sat)\n")
	if len(vars) > 0 {
		names := make([]string, len(vars))
		for i, v := range vars {
			names[i] = smtName(v)
		}
		fmt.Fprintf(&b, "(get-value (%s))\n", strings.Join(names, " "))
	}
	return b.String()
}

// ----------------------------------------------------------------------------
// S-expressions.

type sexpr struct {
	atom string
	list []sexpr
	// isList distinguishes the empty list from the empty atom.
	isList bool
}

func parseSExprs(src string) ([]sexpr, error) {
	var stack [][]sexpr
	var cur []sexpr
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			stack = append(stack, cur)
			cur = nil
			i++
		case c == ')':
			if len(stack) == 0 {
				return nil, errors.Errorf("unexpected ) at offset %d", i)
			}
			list := sexpr{list: cur, isList: true}
			cur = append(stack[len(stack)-1], list)
			stack = stack[:len(stack)-1]
			i++
		case c == '|':
			end := strings.IndexByte(src[i+1:], '|')
			if end < 0 {
				return nil, errors.Errorf("unterminated symbol at offset %d", i)
			}
			cur = append(cur, sexpr{atom: src[i+1 : i+1+end]})
			i += end + 2
		case c == '"':
			end := strings.IndexByte(src[i+1:], '"')
			if end < 0 {
				return nil, errors.Errorf("unterminated string at offset %d", i)
			}
			cur = append(cur, sexpr{atom: src[i+1 : i+1+end]})
			i += end + 2
		default:
			j := i
			for j < len(src) && !strings.ContainsRune(" \t\n\r()|\"", rune(src[j])) {
				j++
			}
			cur = append(cur, sexpr{atom: src[i:j]})
			i = j
		}
	}
	if len(stack) != 0 {
		return nil, errors.Errorf("missing )")
	}
	return cur, nil
}

func (s sexpr) integer() (int64, error) {
	if !s.isList {
		return strconv.ParseInt(s.atom, 10, 64)
	}
	if len(s.list) == 2 && !s.list[0].isList && s.list[0].atom == "-" {
		v, err := s.list[1].integer()
		return -v, err
	}
	return 0, errors.Errorf("%v is not an integer", s)
}

// parseModel parses the output of a get-value command.
func parseModel(out string) (Model, error) {
	exprs, err := parseSExprs(out)
	if err != nil {
		return nil, err
	}
	m := make(Model)
	for _, e := range exprs {
		if !e.isList {
			continue
		}
		for _, pair := range e.list {
			if !pair.isList || len(pair.list) != 2 || pair.list[0].isList {
				return nil, errors.Errorf("unexpected value %v", pair)
			}
			v, err := pair.list[1].integer()
			if err != nil {
				return nil, err
			}
			m[pair.list[0].atom] = v
		}
	}
	return m, nil
}
