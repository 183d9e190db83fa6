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

package constraint_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/build/parser"
	"github.com/loopgen/loopgen/constraint"
	"github.com/loopgen/loopgen/solver"
	"github.com/pkg/errors"
)

func TestExprToCExpr(t *testing.T) {
	env := constraint.NewEnv("i", "j", "N")
	tests := []struct {
		src string
		// want is the normalized term. Empty if the expression is unrepresentable.
		want string
	}{
		{src: "i", want: "i"},
		{src: "2 * i + 1", want: "(1 + (2 * i))"},
		{src: "-i + +j", want: "((-1 * i) + j)"},
		{src: "i * j - N", want: "((-1 * N) + (i * j))"},
		{src: "(4 * i + 2) / 2", want: "(1 + (2 * i))"},
		{src: "0x10 - i", want: "(16 + (-1 * i))"},
		{src: "(2 * i + 1) / 2"},
		{src: "i / j"},
		{src: "i % 2"},
		{src: "i << 1"},
		{src: "i & 1"},
		{src: "i < j ? i : j"},
		{src: "1.5"},
		{src: "A[i]"},
		{src: "k"},
		{src: "#e#"},
		{src: "i @op@ j"},
	}
	for _, test := range tests {
		x, err := parser.ParseExpr(test.src)
		if err != nil {
			t.Fatalf("cannot parse %q: %+v", test.src, err)
		}
		term, ok := constraint.ExprToCExpr(x, env)
		if test.want == "" {
			if ok {
				t.Errorf("%s: got %v but want an unrepresentable expression", test.src, term)
			}
			continue
		}
		if !ok {
			t.Errorf("%s: unexpected unrepresentable expression", test.src)
			continue
		}
		norm, err := solver.Normalize(term)
		if err != nil {
			t.Fatalf("%s: %+v", test.src, err)
		}
		if got := norm.String(); got != test.want {
			t.Errorf("%s: got %s but want %s", test.src, got, test.want)
		}
	}
}

func TestEnvRename(t *testing.T) {
	x, err := parser.ParseExpr("i + N")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	env := constraint.NewEnv("i", "N").With(map[string]solver.Term{"i": solver.V("i_src")})
	term, ok := constraint.ExprToCExpr(x, env)
	if !ok {
		t.Fatalf("unexpected unrepresentable expression")
	}
	if diff := cmp.Diff([]string{"N", "i_src"}, solver.TermVars(term)); diff != "" {
		t.Errorf("unexpected variables (-want +got):\n%s", diff)
	}
}

func TestScalarEnv(t *testing.T) {
	prog, err := parser.Parse(`
declare A[N][];
for [(i, >=lo, <=M)] {
  A[i][j] = s;
}`)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := []string{"M", "N", "i", "j", "lo", "s"}
	if diff := cmp.Diff(want, constraint.ScalarEnv(prog).Names()); diff != "" {
		t.Errorf("unexpected environment (-want +got):\n%s", diff)
	}
}

func TestRequire(t *testing.T) {
	x, err := parser.ParseExpr("i % 2")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := constraint.Require(x, constraint.NewEnv("i")); !errors.Is(err, constraint.ErrUnrepresentable) {
		t.Errorf("got error %v but want %v", err, constraint.ErrUnrepresentable)
	}
}
