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

package instance_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/instance"
	"github.com/loopgen/loopgen/transform"
)

const maxExecutedIterations = 1 << 20

// executor runs the loops of an instance and checks every array index
// against the declared sizes.
type executor struct {
	t        *testing.T
	sizes    map[string][]int64
	env      map[string]int64
	executed int
}

func (x *executor) eval(e ast.Expr) int64 {
	switch e := e.(type) {
	case *ast.Literal:
		if !e.IsInt() {
			x.t.Fatalf("cannot evaluate non-integer literal %s", e)
		}
		return e.Int
	case *ast.Access:
		v, ok := x.env[e.Var]
		if !e.IsScalar() || !ok {
			x.t.Fatalf("cannot evaluate access %s", e)
		}
		return v
	case *ast.Op:
		if len(e.Args) == 1 && e.Operator == "-" {
			return -x.eval(e.Args[0])
		}
		if len(e.Args) != 2 {
			x.t.Fatalf("cannot evaluate %s", e)
		}
		a, b := x.eval(e.Args[0]), x.eval(e.Args[1])
		switch e.Operator {
		case "+":
			return a + b
		case "-":
			return a - b
		case "*":
			return a * b
		case "/":
			return a / b
		case "%":
			return a % b
		}
	}
	x.t.Fatalf("cannot evaluate %s", e)
	return 0
}

func (x *executor) stmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *ast.Assignment:
			x.assign(stmt)
		case *ast.Loop:
			x.loop(stmt.LoopShapes, stmt.Body)
		case *ast.NoOp:
		default:
			x.t.Fatalf("cannot execute %T", stmt)
		}
	}
}

func (x *executor) assign(assign *ast.Assignment) {
	x.executed++
	if x.executed > maxExecutedIterations {
		x.t.Fatalf("more than %d statements executed", maxExecutedIterations)
	}
	for _, acc := range ast.Accesses(assign) {
		if acc.IsScalar() {
			continue
		}
		sizes := x.sizes[acc.Var]
		if len(sizes) != len(acc.Indices) {
			x.t.Fatalf("%s accessed with %d indices but declared with %d dimensions", acc.Var, len(acc.Indices), len(sizes))
		}
		for dim, index := range acc.Indices {
			if v := x.eval(index); v < 0 || v >= sizes[dim] {
				x.t.Errorf("%s accesses index %d in dimension %d of size %d with %v", acc, v, dim, sizes[dim], x.env)
			}
		}
	}
}

func (x *executor) loop(shapes []*ast.LoopShape, body []ast.Stmt) {
	if len(shapes) == 0 {
		x.stmts(body)
		return
	}
	shape := shapes[0]
	lo := x.eval(shape.GreaterEq)
	hi := x.eval(shape.LessEq[0])
	for _, le := range shape.LessEq[1:] {
		hi = min(hi, x.eval(le))
	}
	step := int64(1)
	if shape.Step != nil {
		step = x.eval(shape.Step)
	}
	name := shape.VarName()
	prev, shadowed := x.env[name]
	for v := lo; v <= hi; v += step {
		x.env[name] = v
		x.loop(shapes[1:], body)
	}
	delete(x.env, name)
	if shadowed {
		x.env[name] = prev
	}
}

// checkAccesses executes an instance and checks that no index is out of bounds.
func checkAccesses(t *testing.T, inst *instance.Instance) {
	t.Helper()
	x := &executor{
		t:     t,
		sizes: make(map[string][]int64),
		env:   make(map[string]int64),
	}
	for _, decl := range inst.Pattern.Decls {
		for dim, size := range decl.Sizes {
			v, ok := ast.IntValue(size)
			if !ok {
				t.Fatalf("size %s of dimension %d of %s is not a literal", size, dim, decl.Name)
			}
			x.sizes[decl.Name] = append(x.sizes[decl.Name], v)
		}
	}
	x.stmts(inst.Pattern.Body)
	if x.executed == 0 {
		t.Errorf("no statement executed in:\n%s", inst)
	}
}

// unrollFirst unrolls the first dimension of the first loop of a program.
func unrollFirst(factor int64) func(*testing.T, *ast.Program) {
	return func(t *testing.T, prog *ast.Program) {
		ok, err := transform.UnrollDim(ast.Loops(prog)[0], 0, factor)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !ok {
			t.Fatalf("cannot unroll:\n%s", prog)
		}
	}
}

func TestLoopsReusingVariables(t *testing.T) {
	tests := []struct {
		src     string
		prepare func(*testing.T, *ast.Program)
		want    map[string]bounds
	}{
		{
			src: `
declare A[];
declare B[];
for [(i, >=0, <=9)] {
  A[i] = 0;
}
for [(i, >=0, <=19)] {
  B[i] = 1;
}`,
			want: map[string]bounds{
				"A": {Min: []int64{0}, Max: []int64{9}},
				"B": {Min: []int64{0}, Max: []int64{19}},
			},
		},
		{
			src: `
declare A[];
declare B[];
for [(i, >=0, <=9)] {
  A[i] = 0;
}
for [(i, >=20, <=29)] {
  B[i] = A[i-20];
}`,
			want: map[string]bounds{
				"A": {Min: []int64{0}, Max: []int64{9}},
				"B": {Min: []int64{20}, Max: []int64{29}},
			},
		},
		{
			src: `
declare A[][];
declare B[];
for [(i, >=0, <=3)] {
  for [(j, >=0, <=2)] {
    A[i][j] = 0;
  }
}
for [(j, >=0, <=9)] {
  B[j] = A[0][0];
}`,
			want: map[string]bounds{
				"A": {Min: []int64{0, 0}, Max: []int64{3, 2}},
				"B": {Min: []int64{0}, Max: []int64{9}},
			},
		},
		{
			src: `
declare A[];
for [(i, >=0, <=9)] {
  A[i] = 0;
}`,
			prepare: unrollFirst(4),
			want: map[string]bounds{
				"A": {Min: []int64{0}, Max: []int64{9}},
			},
		},
		{
			// The remainder loop has no iteration.
			src: `
declare A[];
for [(i, >=0, <=7)] {
  A[i] = 0;
}`,
			prepare: unrollFirst(4),
			want: map[string]bounds{
				"A": {Min: []int64{0}, Max: []int64{7}},
			},
		},
		{
			src: `
declare A[];
for [(i, >=1, <=10, +=3)] {
  A[i+1] = 0;
}`,
			want: map[string]bounds{
				"A": {Min: []int64{2}, Max: []int64{11}},
			},
		},
	}
	for i, test := range tests {
		prog := mustParse(t, test.src)
		if test.prepare != nil {
			test.prepare(t, prog)
		}
		inst, stats, err := instance.TryCreate(context.Background(), prog, nil, nil, options(uint64(i)))
		if err != nil {
			t.Fatalf("test %d: %+v", i, err)
		}
		if inst == nil {
			t.Fatalf("test %d: no instance of:\n%s\nstats: %v", i, prog, stats)
		}
		got := make(map[string]bounds)
		for name := range inst.Bounds.Keys() {
			got[name] = boundsOf(inst, name)
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("test %d: unexpected bounds (-want +got):\n%s", i, diff)
		}
		checkAccesses(t, inst)
	}
}

func TestInstancesAccessWithinBounds(t *testing.T) {
	tests := []struct {
		src     string
		vars    map[string][2]int64
		prepare func(*testing.T, *ast.Program)
	}{
		{
			src: `
declare A[];
declare B[];
for [(i, >=1, <=N)] {
  A[2*i+1] = B[i-1];
}`,
			vars: map[string][2]int64{"N": {0, 30}},
		},
		{
			src: `
declare A[][];
declare B[];
for [(i, >=0, <=N-1), (j, >=i, <=N-1)] {
  A[i][j-i] = B[j];
}`,
			vars: map[string][2]int64{"N": {1, 12}},
		},
		{
			src: `
declare A[M];
for [(i, >=0, <=N, <=M-1)] {
  A[i] = 0;
}`,
			vars: map[string][2]int64{"N": {0, 40}, "M": {1, 20}},
		},
		{
			src: `
declare A[];
declare B[];
for [(i, >=0, <=N)] {
  A[i] = 0;
}
for [(i, >=N, <=2*N)] {
  B[i-N] = A[i-N];
}`,
			vars: map[string][2]int64{"N": {0, 15}},
		},
		{
			src: `
declare A[][];
for [(i, >=0, <=N), (j, >=0, <=M, +=2)] {
  A[j][i] = 0;
}
for [(j, >=0, <=M)] {
  A[0][j] = 1;
}`,
			vars: map[string][2]int64{"N": {0, 10}, "M": {0, 10}},
		},
		{
			src: `
declare A[];
declare B[];
for [(i, >=0, <=9)] {
  A[i+1] = B[i];
}`,
			prepare: unrollFirst(3),
		},
	}
	for i, test := range tests {
		vars := instance.NewVariableMap(instance.DefaultMin, instance.DefaultMax)
		for name, r := range test.vars {
			vars.SetRange(name, r[0], r[1])
		}
		for seed := range uint64(4) {
			prog := mustParse(t, test.src)
			if test.prepare != nil {
				test.prepare(t, prog)
			}
			inst, stats, err := instance.TryCreate(context.Background(), prog, vars, nil, options(seed))
			if err != nil {
				t.Fatalf("test %d seed %d: %+v", i, seed, err)
			}
			if inst == nil {
				t.Fatalf("test %d seed %d: no instance of:\n%s\nstats: %v", i, seed, prog, stats)
			}
			checkAccesses(t, inst)
		}
	}
}
