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

package parser_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/parser"
)

func TestRoundTrip(t *testing.T) {
	tests := []string{
		`declare A[100];
declare B[];
for [(i, >=1, <=99)] {
  A[i] = A[i - 1] + B[2 * i];
}`,
		`declare double A[N][M];
local t[8];
for [i, (j, >=0, <=M - 1, <=N, +=2)] {
  t[0] = 0x1f;
  A[i][j] = t[0] * 1.5;
  ;
}`,
		`declare A[];
declare s;
s = A[0] < 0 ? -A[0] : A[0] << 2 & 7;
for [i] {
  for [j] {
    s = s + !(A[i] == A[j]) || ~s != 0;
  }
}`,
		`declare A[][];
for [(i, >=#lo:bound#), k] {
  A[i][`+"`k:idx`"+`] = A[i][#_#] @op:arith@ #e#;
  $s:body$
}`,
	}
	for _, src := range tests {
		prog, err := parser.Parse(src)
		if err != nil {
			t.Errorf("cannot parse:\n%s\nerror: %+v", src, err)
			continue
		}
		got := prog.String()
		if got != src {
			t.Errorf("incorrect round trip:\ngot:\n%s\nbut want:\n%s", got, src)
			continue
		}
		again, err := parser.Parse(got)
		if err != nil {
			t.Errorf("cannot parse printed program:\n%s\nerror: %+v", got, err)
			continue
		}
		if !ast.Equal(prog, again) {
			t.Errorf("printed program is not structurally equal to the original:\n%s", got)
		}
	}
}

func TestParseConsts(t *testing.T) {
	prog, err := parser.Parse(`
declare A[N];
## comments are ignored
for [(i, <=M)] {
  A[i] = A[i] * K; ## including at the end of a line
}`)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	got := prog.ConstNames()
	want := []string{"K", "M", "N", "i_greater_eq"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected constants (-want +got):\n%s", diff)
	}
}

func TestDefaultShape(t *testing.T) {
	stmt, err := parser.ParseStmt("for [(i, +=4)] { A[i] = 0; }")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	loop, ok := stmt.(*ast.Loop)
	if !ok {
		t.Fatalf("got %T but want *ast.Loop", stmt)
	}
	shape := loop.LoopShapes[0]
	if got, want := shape.GreaterEq.String(), "i_greater_eq"; got != want {
		t.Errorf("got lower bound %s but want %s", got, want)
	}
	if got, want := len(shape.LessEq), 1; got != want {
		t.Fatalf("got %d upper bounds but want %d", got, want)
	}
	if got, want := shape.LessEq[0].String(), "i_less_eq"; got != want {
		t.Errorf("got upper bound %s but want %s", got, want)
	}
	if step, ok := shape.StepValue(); !ok || step != 4 {
		t.Errorf("got step %s but want 4", shape.Step)
	}
	acc := ast.Accesses(loop)
	if acc[0].Parent() != loop {
		t.Errorf("loop variable parent not set to the loop")
	}
}

func TestParseHoles(t *testing.T) {
	tests := []struct {
		src    string
		name   string
		family string
	}{
		{src: "`x`", name: "x", family: ast.Wildcard},
		{src: "`x:arr`", name: "x", family: "arr"},
		{src: "#e#", name: "e", family: ast.Wildcard},
		{src: "#_:cst#", name: "_", family: "cst"},
		{src: "a @o:arith@ b", name: "o", family: "arith"},
	}
	for _, test := range tests {
		x, err := parser.ParseExpr(test.src)
		if err != nil {
			t.Errorf("cannot parse %s: %+v", test.src, err)
			continue
		}
		holes := ast.Holes(x)
		if len(holes) != 1 {
			t.Errorf("%s: got %d holes but want 1", test.src, len(holes))
			continue
		}
		if got := holes[0].HoleName(); got != test.name {
			t.Errorf("%s: got hole name %q but want %q", test.src, got, test.name)
		}
		if got := holes[0].FamilyName(); got != test.family {
			t.Errorf("%s: got family %q but want %q", test.src, got, test.family)
		}
	}
}

func TestParseExprPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{src: "a+b*c", want: "a + b * c"},
		{src: "(a+b)*c", want: "(a + b) * c"},
		{src: "a-b-c", want: "(a - b) - c"},
		{src: "a-(b-c)", want: "a - (b - c)"},
		{src: "a--b", want: "a - -b"},
		{src: "a<-1", want: "a < -1"},
		{src: "a<b==c>d", want: "a < b == c > d"},
		{src: "c ? x : d ? y : z", want: "c ? x : (d ? y : z)"},
		{src: "0XFF+1", want: "0XFF + 1"},
	}
	for _, test := range tests {
		x, err := parser.ParseExpr(test.src)
		if err != nil {
			t.Errorf("cannot parse %s: %+v", test.src, err)
			continue
		}
		if got := x.String(); got != test.want {
			t.Errorf("%s: got %s but want %s", test.src, got, test.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			src:  "declare A[];\nA[0] = ;\n",
			want: "pattern:2:8: expected an expression but got \";\"",
		},
		{
			src:  "declare A[];\nfor [(>=0, i)] { A[i] = 0; }",
			want: "pattern:2:7: a loop dimension starts with its variable",
		},
		{
			src:  "declare A[];\nfor [(i, +=1, +=2)] { A[i] = 0; }",
			want: "pattern:2:15: step defined twice",
		},
		{
			src:  "declare A[];\n1 = A[0];",
			want: "pattern:2:1: cannot assign to 1",
		},
		{
			src:  "declare A[];",
			want: "a program requires at least one statement",
		},
		{
			src:  "declare A[];\nA[0] = $s;\n",
			want: "pattern:2:8: expected an expression but got \"$\"",
		},
	}
	for _, test := range tests {
		_, err := parser.Parse(test.src)
		if err == nil {
			t.Errorf("expected an error when parsing:\n%s", test.src)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("incorrect error:\ngot:  %s\nwant: %s", err.Error(), test.want)
		}
	}
}

func TestParseErrorRecovery(t *testing.T) {
	_, err := parser.Parse("declare A[];\nA[0] = ;\nA[1] = 1;\nA[2] = );\n")
	if err == nil {
		t.Fatal("expected an error")
	}
	lines := strings.Split(err.Error(), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d errors but want 2:\n%s", len(lines), err.Error())
	}
}
