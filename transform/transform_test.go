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

package transform_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/base/uname"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/parser"
	"github.com/loopgen/loopgen/depend"
	"github.com/loopgen/loopgen/transform"
	"github.com/pkg/errors"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("cannot parse:\n%s\nerror: %+v", src, err)
	}
	return prog
}

func checkProgram(t *testing.T, got *ast.Program, want string) {
	t.Helper()
	if diff := cmp.Diff(parse(t, want).String(), got.String()); diff != "" {
		t.Errorf("unexpected program (-want +got):\n%s", diff)
	}
}

func analyze(t *testing.T, src string) (*depend.Graph, *ast.Loop) {
	t.Helper()
	ctx := context.Background()
	g, tagged, err := depend.Analyze(ctx, parse(t, src), depend.Options{})
	if err != nil {
		t.Fatalf("cannot analyze:\n%s\nerror: %+v", src, err)
	}
	if err := depend.CalculateDistanceVectors(ctx, g, depend.Options{}); err != nil {
		t.Fatal(err)
	}
	return g, ast.Loops(tagged)[0]
}

const (
	// Dependence [<, >].
	antiDiagonal = `
declare A[10][10];
for [(i, >=1, <=9), (j, >=0, <=8)] {
  A[i][j] = A[i - 1][j + 1];
}`
	// Dependence [<, <].
	diagonal = `
declare A[10][10];
for [(i, >=1, <=9), (j, >=1, <=9)] {
  A[i][j] = A[i - 1][j - 1];
}`
)

func TestIsPermutable(t *testing.T) {
	tests := []struct {
		src   string
		order []int
		want  bool
	}{
		{src: antiDiagonal, order: []int{0, 1}, want: true},
		{src: antiDiagonal, order: []int{1, 0}, want: false},
		{src: diagonal, order: []int{1, 0}, want: true},
		{
			src: `
declare A[10][10];
for [(i, >=0, <=9)] {
  for [(j, >=1, <=9), (k, >=0, <=8)] {
    A[j][k] = A[j - 1][k + 1];
  }
}`,
			order: []int{1, 0},
			want:  false,
		},
		{
			src: `
declare A[10][10][10];
for [(i, >=1, <=9)] {
  for [(j, >=1, <=9), (k, >=0, <=8)] {
    A[i][j][k] = A[i - 1][j - 1][k + 1];
  }
}`,
			order: []int{1, 0},
			want:  true,
		},
	}
	for i, test := range tests {
		g, loop := analyze(t, test.src)
		// Check the innermost loop.
		if inner := ast.Loops(loop); len(inner) > 1 {
			loop = inner[len(inner)-1]
		}
		if got := transform.IsPermutable(g, loop, test.order); got != test.want {
			t.Errorf("test %d: order %v: got %v but want %v", i, test.order, got, test.want)
		}
	}
}

func TestTilableNests(t *testing.T) {
	tests := []struct {
		src  string
		want []transform.Band
	}{
		{
			src:  antiDiagonal,
			want: []transform.Band{{Start: 0, Depth: 1}, {Start: 1, Depth: 1}},
		},
		{
			src:  diagonal,
			want: []transform.Band{{Start: 0, Depth: 2}, {Start: 0, Depth: 1}, {Start: 1, Depth: 1}},
		},
	}
	for i, test := range tests {
		g, loop := analyze(t, test.src)
		if diff := cmp.Diff(test.want, transform.TilableNests(g, loop)); diff != "" {
			t.Errorf("test %d: unexpected bands (-want +got):\n%s", i, diff)
		}
	}
}

func TestCanUnrollAndJam(t *testing.T) {
	tests := []struct {
		src    string
		factor int64
		want   bool
	}{
		{src: antiDiagonal, factor: 2, want: true},
		{src: antiDiagonal, factor: 3, want: false},
		{src: diagonal, factor: 4, want: true},
		{
			src: `
declare A[][];
for [(i, >=1, <=N), (j, >=0, <=N)] {
  A[i][j] = A[i - 1][j + 1];
}`,
			factor: 2,
			want:   false,
		},
	}
	for i, test := range tests {
		g, loop := analyze(t, test.src)
		if got := transform.CanUnrollAndJam(g, loop, 0, test.factor); got != test.want {
			t.Errorf("test %d: factor %d: got %v but want %v", i, test.factor, got, test.want)
		}
	}
}

func TestTileLoop(t *testing.T) {
	prog := parse(t, `
declare A[100][100];
for [(i, >=0, <=99), (j, >=0, <=99)] {
  A[i][j] = 0;
}`)
	loop := prog.Body[0].(*ast.Loop)
	shapes, err := transform.TileLoop(loop, transform.Band{Start: 0, Depth: 2}, []int64{4, 8}, uname.New())
	if err != nil {
		t.Fatal(err)
	}
	loop.LoopShapes = shapes
	ast.Link(prog)
	checkProgram(t, prog, `
declare A[100][100];
for [(i_tile, >=0, <=99, +=4), (j_tile, >=0, <=99, +=8), (i, >=i_tile, <=99, <=i_tile + 3), (j, >=j_tile, <=99, <=j_tile + 7)] {
  A[i][j] = 0;
}`)
	if _, err := transform.TileLoop(loop, transform.Band{Start: 3, Depth: 2}, []int64{2, 2}, uname.New()); err == nil {
		t.Errorf("got no error for a band out of the loop")
	}
}

func TestUnrollDim(t *testing.T) {
	tests := []struct {
		src    string
		dim    int
		factor int64
		want   string
	}{
		{
			src: `
declare A[10];
for [(i, >=0, <=9)] {
  A[i] = A[i] + 1;
}`,
			factor: 4,
			want: `
declare A[10];
for [(i, >=0, <=4, +=4)] {
  A[i] = A[i] + 1;
  A[i + 1] = A[i + 1] + 1;
  A[i + 2] = A[i + 2] + 1;
  A[i + 3] = A[i + 3] + 1;
}
for [(i, >=8, <=9)] {
  A[i] = A[i] + 1;
}`,
		},
		{
			src: `
declare A[7][4];
declare B[4];
for [(i, >=0, <=6), (j, >=0, <=3)] {
  A[i][j] = B[j];
}`,
			factor: 2,
			want: `
declare A[7][4];
declare B[4];
for [(i, >=0, <=4, +=2)] {
  for [(j, >=0, <=3)] {
    A[i][j] = B[j];
  }
  for [(j, >=0, <=3)] {
    A[i + 1][j] = B[j];
  }
}
for [(i, >=6, <=6)] {
  for [(j, >=0, <=3)] {
    A[i][j] = B[j];
  }
}`,
		},
		{
			src: `
declare A[7][4];
declare B[4];
for [(i, >=0, <=6), (j, >=0, <=3)] {
  A[i][j] = B[j];
}`,
			dim:    1,
			factor: 2,
			want: `
declare A[7][4];
declare B[4];
for [(i, >=0, <=6)] {
  for [(j, >=0, <=2, +=2)] {
    A[i][j] = B[j];
    A[i][j + 1] = B[j + 1];
  }
  for [(j, >=4, <=3)] {
    A[i][j] = B[j];
  }
}`,
		},
	}
	for _, test := range tests {
		prog := parse(t, test.src)
		ok, err := transform.UnrollDim(prog.Body[0].(*ast.Loop), test.dim, test.factor)
		if err != nil {
			t.Fatalf("cannot unroll:\n%s\nerror: %+v", test.src, err)
		}
		if !ok {
			t.Errorf("cannot unroll:\n%s", test.src)
			continue
		}
		checkProgram(t, prog, test.want)
	}
}

func TestUnrollNonLiteral(t *testing.T) {
	prog := parse(t, `
declare A[];
for [(i, >=0, <=N)] {
  A[i] = 1;
}`)
	ok, err := transform.UnrollDim(prog.Body[0].(*ast.Loop), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("unrolled a loop with a bound that is not a literal:\n%s", prog)
	}
}

func TestUnrollAndJamDim(t *testing.T) {
	prog := parse(t, antiDiagonal)
	ok, err := transform.UnrollAndJamDim(prog.Body[0].(*ast.Loop), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("cannot unroll and jam:\n%s", prog)
	}
	checkProgram(t, prog, `
declare A[10][10];
for [(i, >=1, <=7, +=2), (j, >=0, <=8)] {
  A[i][j] = A[i - 1][j + 1];
  A[i + 1][j] = A[i + 1 - 1][j + 1];
}
for [(i, >=9, <=9), (j, >=0, <=8)] {
  A[i][j] = A[i - 1][j + 1];
}`)
	if _, err := transform.UnrollAndJamDim(prog.Body[0].(*ast.Loop), 1, 2); err == nil {
		t.Errorf("got no error when unrolling and jamming the last dimension of a loop")
	}
}

func TestUnrollAndJamTriangular(t *testing.T) {
	prog := parse(t, `
declare A[10][10];
for [(i, >=0, <=9), (j, >=0, <=i)] {
  A[i][j] = 0;
}`)
	ok, err := transform.UnrollAndJamDim(prog.Body[0].(*ast.Loop), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("unrolled and jammed a dimension bounding the next one:\n%s", prog)
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestInterchange(t *testing.T) {
	ctx := context.Background()
	prog := parse(t, antiDiagonal)
	for seed := range uint64(10) {
		got, err := transform.Interchange(ctx, prog, transform.Options{Rand: newRand(seed)})
		if err != nil {
			t.Fatal(err)
		}
		checkProgram(t, got, antiDiagonal)
	}
	prog = parse(t, diagonal)
	seen := make(map[string]bool)
	for seed := range uint64(20) {
		got, err := transform.Interchange(ctx, prog, transform.Options{Rand: newRand(seed)})
		if err != nil {
			t.Fatal(err)
		}
		seen[ast.LoopVars(ast.Loops(got)[0].LoopShapes)[0]] = true
	}
	if !seen["i"] || !seen["j"] {
		t.Errorf("got outermost loop variables %v but want both i and j", seen)
	}
	checkProgram(t, prog, diagonal)
}

func TestTile(t *testing.T) {
	prog := parse(t, `
declare A[10];
for [(i, >=0, <=9)] {
  A[i] = 0;
}`)
	got, err := transform.Tile(context.Background(), prog, transform.Options{Rand: newRand(1), MaxFactor: 2})
	if err != nil {
		t.Fatal(err)
	}
	checkProgram(t, got, `
declare A[10];
for [(i_tile, >=0, <=9, +=2), (i, >=i_tile, <=9, <=i_tile + 1)] {
  A[i] = 0;
}`)
	if _, err := transform.Tile(context.Background(), prog, transform.Options{MaxFactor: 1}); err == nil {
		t.Errorf("got no error for a maximum tile size of 1")
	}
}

func TestUnroll(t *testing.T) {
	prog := parse(t, diagonal)
	got, err := transform.Unroll(prog, transform.Options{Rand: newRand(1), MaxFactor: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !ast.Equal(prog, got) {
		t.Errorf("got\n%s\nbut want the program unchanged", got)
	}
	got, err = transform.Unroll(prog, transform.Options{Rand: newRand(1), MaxFactor: 4})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(ast.Assignments(got)); n < 1 {
		t.Errorf("got %d assignments but want at least 1", n)
	}
	checkProgram(t, prog, diagonal)
}

func TestUnrollAndJam(t *testing.T) {
	ctx := context.Background()
	got, err := transform.UnrollAndJam(ctx, parse(t, antiDiagonal), transform.Options{Rand: newRand(1), MaxFactor: 2})
	if err != nil {
		t.Fatal(err)
	}
	checkProgram(t, got, `
declare A[10][10];
for [(i, >=1, <=7, +=2), (j, >=0, <=8)] {
  A[i][j] = A[i - 1][j + 1];
  A[i + 1][j] = A[i + 1 - 1][j + 1];
}
for [(i, >=9, <=9), (j, >=0, <=8)] {
  A[i][j] = A[i - 1][j + 1];
}`)
	_, err = transform.UnrollAndJam(ctx, parse(t, `
declare A[10];
for [(i, >=0, <=9)] {
  A[i] = 0;
}`), transform.Options{MaxFactor: 4})
	if !errors.Is(err, transform.ErrNoLegalTransformation) {
		t.Errorf("got error %v but want %v", err, transform.ErrNoLegalTransformation)
	}
}
