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

package ast_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/build/ast"
)

// copyLoop builds:
//
//	declare A[100];
//	declare B[];
//	for [(i, >=1, <=99)] {
//	  A[i] = A[i - 1] + B[2 * i];
//	}
func copyLoop() *ast.Program {
	i := func() ast.Expr { return ast.NewScalar("i") }
	shape := &ast.LoopShape{
		Var:       ast.NewScalar("i"),
		GreaterEq: ast.NewInt(1),
		LessEq:    []ast.Expr{ast.NewInt(99)},
		Step:      ast.NewInt(1),
	}
	assign := ast.NewAssignment(
		ast.NewAccess("A", i()),
		ast.NewOp("+",
			ast.NewAccess("A", ast.NewOp("-", i(), ast.NewInt(1))),
			ast.NewAccess("B", ast.NewOp("*", ast.NewInt(2), i())),
		),
	)
	return ast.NewProgram(
		[]*ast.Declaration{
			{Name: "A", Sizes: []ast.Expr{ast.NewInt(100)}},
			{Name: "B", Sizes: []ast.Expr{nil}},
		},
		[]ast.Stmt{ast.NewLoop([]*ast.LoopShape{shape}, assign)},
		nil,
	)
}

const copyLoopText = `declare A[100];
declare B[];
for [(i, >=1, <=99)] {
  A[i] = A[i - 1] + B[2 * i];
}`

func TestPrint(t *testing.T) {
	tests := []struct {
		desc string
		node ast.Node
		opts ast.Options
		want string
	}{
		{
			desc: "program",
			node: copyLoop(),
			want: copyLoopText,
		},
		{
			desc: "array as pointer",
			node: ast.NewAssignment(ast.NewAccess("A", ast.NewScalar("i")), ast.NewScalar("x")),
			opts: ast.Options{ArrayAsPointer: true},
			want: "(*A)[i] = x;",
		},
		{
			desc: "parenthesized operands",
			node: ast.NewOp("*", ast.NewOp("+", ast.NewScalar("a"), ast.NewScalar("b")), ast.NewScalar("c")),
			want: "(a + b) * c",
		},
		{
			desc: "same precedence",
			node: ast.NewOp("-", ast.NewScalar("a"), ast.NewOp("-", ast.NewScalar("b"), ast.NewScalar("c"))),
			want: "a - (b - c)",
		},
		{
			desc: "higher precedence operand",
			node: ast.NewOp("+", ast.NewScalar("a"), ast.NewOp("*", ast.NewScalar("b"), ast.NewScalar("c"))),
			want: "a + b * c",
		},
		{
			desc: "unary and ternary",
			node: ast.NewOp("?:",
				ast.NewOp("<", ast.NewScalar("a"), ast.NewInt(0)),
				ast.NewOp("-", ast.NewScalar("a")),
				ast.NewScalar("a")),
			want: "a < 0 ? -a : a",
		},
		{
			desc: "operator hole",
			node: &ast.Op{Hole: &ast.OpHole{Name: "op", Family: "arith"}, Args: []ast.Expr{ast.NewScalar("a"), ast.NewScalar("b")}},
			want: "a @op:arith@ b",
		},
		{
			desc: "name hole with wildcard family",
			node: &ast.Access{Hole: &ast.NameHole{Name: "x", Family: ast.Wildcard}, Indices: []ast.Expr{ast.NewScalar("i")}},
			want: "`x`[i]",
		},
		{
			desc: "statement hole",
			node: &ast.StatementHole{Name: "s", Family: "body"},
			want: "$s:body$",
		},
		{
			desc: "expression hole",
			node: &ast.ExpressionHole{Name: "_", Family: "e"},
			want: "#_:e#",
		},
		{
			desc: "default loop shape",
			node: ast.NewLoop([]*ast.LoopShape{ast.NewLoopShape("i"), ast.NewLoopShape("j")}, &ast.NoOp{}),
			want: "for [i, j] {\n  ;\n}",
		},
		{
			desc: "several upper bounds and a step",
			node: &ast.LoopShape{
				Var:       ast.NewScalar("i"),
				GreaterEq: ast.NewScalar(ast.GreaterEqName("i")),
				LessEq:    []ast.Expr{ast.NewScalar("N"), ast.NewScalar("M")},
				Step:      ast.NewInt(4),
			},
			want: "(i, <=N, <=M, +=4)",
		},
		{
			desc: "local typed declaration",
			node: &ast.Declaration{Name: "T", Type: "double", Local: true, Sizes: []ast.Expr{ast.NewScalar("N"), nil}},
			want: "local double T[N][];",
		},
		{
			desc: "hex and float literals",
			node: ast.NewOp("+", &ast.Literal{Kind: ast.HexLit, Int: 255, Text: "0xff"}, &ast.Literal{Kind: ast.FloatLit, Float: 2}),
			want: "0xff + 2.0",
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got := ast.Print(test.node, test.opts)
			if got != test.want {
				t.Errorf("got:\n%s\nbut want:\n%s", got, test.want)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	prog := copyLoop()
	read := ast.Assignments(prog)[0].RHS.(*ast.Op).Args[0].(*ast.Access)
	got := ast.Print(ast.Assignments(prog)[0], ast.Options{
		Highlight: func(acc *ast.Access) bool { return acc == read },
	})
	want := "A[i] = {A[i - 1]} + B[2 * i];"
	if got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestCloneIndependence(t *testing.T) {
	orig := copyLoop()
	ast.Tag(orig)
	cloned := ast.Clone(orig)
	if !ast.Equal(orig, cloned) {
		t.Fatalf("clone is not equal to the original:\n%s\n%s", orig, cloned)
	}
	if cloned.Body[0].ID() != orig.Body[0].ID() {
		t.Errorf("got loop id %d but want %d", cloned.Body[0].ID(), orig.Body[0].ID())
	}
	// Mutate every field of the clone.
	cloned.Decls[0].Name = "Z"
	cloned.Decls[1].Sizes[0] = ast.NewInt(3)
	loop := cloned.Body[0].(*ast.Loop)
	loop.LoopShapes[0].LessEq[0].(*ast.Literal).Int = 7
	assign := loop.Body[0].(*ast.Assignment)
	assign.LHS.Var = "Q"
	assign.RHS.(*ast.Op).Args[0].(*ast.Access).Indices[0].(*ast.Op).Operator = "+"
	loop.Body = append(loop.Body, &ast.NoOp{})

	if got := orig.String(); got != copyLoopText {
		t.Errorf("original changed by clone mutation:\n%s", got)
	}
	if ast.Equal(orig, cloned) {
		t.Errorf("mutated clone still equal to the original")
	}
}

func TestLinkAndQueries(t *testing.T) {
	prog := copyLoop()
	loop := prog.Body[0].(*ast.Loop)
	assign := loop.Body[0].(*ast.Assignment)
	if assign.Surrounding() != loop {
		t.Errorf("assignment is not surrounded by its loop")
	}
	if loop.Surrounding() != prog {
		t.Errorf("loop is not surrounded by the program")
	}
	accs := ast.Accesses(prog)
	var got []string
	for _, acc := range accs {
		s := acc.String()
		if acc.IsWrite {
			s = "W:" + s
		}
		if _, isLoop := acc.Parent().(*ast.Loop); isLoop {
			s = "L:" + s
		}
		got = append(got, s)
	}
	want := []string{"L:i", "W:A[i]", "i", "A[i - 1]", "i", "B[2 * i]", "i"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected accesses (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"i"}, ast.LoopVars(ast.ShapesOf(ast.SurroundingLoops(assign)))); diff != "" {
		t.Errorf("unexpected loop vars (-want +got):\n%s", diff)
	}
	ancestors := ast.Ancestors(assign)
	if len(ancestors) != 2 || ancestors[0] != ast.Block(prog) || ancestors[1] != ast.Block(loop) {
		t.Errorf("got ancestors %v but want [program, loop]", ancestors)
	}
	arrays, err := ast.Arrays(prog)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"i", "A", "B"}, slices.Collect(arrays.Keys())); diff != "" {
		t.Errorf("unexpected arrays (-want +got):\n%s", diff)
	}
}

func TestArraysMismatch(t *testing.T) {
	prog := ast.NewProgram(nil, []ast.Stmt{
		ast.NewAssignment(ast.NewAccess("A", ast.NewInt(0)), ast.NewAccess("A", ast.NewInt(0), ast.NewInt(1))),
	}, nil)
	if _, err := ast.Arrays(prog); err == nil {
		t.Errorf("expected an error for inconsistent dimensions")
	}
}

func TestTag(t *testing.T) {
	prog := copyLoop()
	ast.Tag(prog)
	if prog.ID() != 1 {
		t.Errorf("got program id %d but want 1", prog.ID())
	}
	seen := map[ast.NodeID]bool{}
	ast.Inspect(prog, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.Declaration, *ast.Const:
			return false
		}
		id := n.(interface{ ID() ast.NodeID }).ID()
		if id == 0 || seen[id] {
			t.Errorf("node %s has invalid or duplicate id %d", n, id)
		}
		seen[id] = true
		return true
	})
	assign := ast.Assignments(prog)[0]
	if found := ast.FindByID(prog, assign.ID()); found != assign {
		t.Errorf("FindByID(%d) = %v but want %v", assign.ID(), found, assign)
	}
}

func TestSimplify(t *testing.T) {
	x := func() ast.Expr { return ast.NewScalar("x") }
	tests := []struct {
		expr ast.Expr
		want string
	}{
		{expr: ast.NewOp("*", x(), ast.NewInt(0)), want: "0"},
		{expr: ast.NewOp("*", ast.NewInt(0), x()), want: "0"},
		{expr: ast.NewOp("*", x(), ast.NewInt(1)), want: "x"},
		{expr: ast.NewOp("*", ast.NewInt(1), x()), want: "x"},
		{expr: ast.NewOp("+", x(), ast.NewInt(0)), want: "x"},
		{expr: ast.NewOp("+", ast.NewInt(0), x()), want: "x"},
		{expr: ast.NewOp("-", x(), ast.NewInt(0)), want: "x"},
		{expr: ast.NewOp("-", ast.NewInt(0), x()), want: "0 - x"},
		{
			expr: ast.NewOp("+", ast.NewOp("*", ast.NewOp("-", ast.NewInt(3), ast.NewInt(2)), x()), ast.NewOp("*", ast.NewInt(0), ast.NewScalar("y"))),
			want: "x",
		},
		{expr: ast.NewOp("+", ast.NewOp("+", x(), ast.NewInt(1)), ast.NewInt(2)), want: "(x + 1) + 2"},
		{expr: ast.NewOp("-", ast.NewInt(4)), want: "-4"},
	}
	for _, test := range tests {
		once := ast.SimplifyExpr(ast.CloneExpr(test.expr))
		if got := once.String(); got != test.want {
			t.Errorf("simplify %s: got %s but want %s", test.expr, got, test.want)
		}
		twice := ast.SimplifyExpr(ast.CloneExpr(once))
		if !ast.Equal(once, twice) {
			t.Errorf("simplify %s is not idempotent: %s then %s", test.expr, once, twice)
		}
	}
}

func TestRewriteOrder(t *testing.T) {
	// (a + b) + c: replace every + by a literal counting the replacements.
	count := 0
	repl := ast.ReplacerFuncs{
		Match: func(n ast.Node) bool {
			op, ok := n.(*ast.Op)
			return ok && op.Operator == "+"
		},
		With: func(n ast.Node) (ast.Node, error) {
			count++
			return ast.NewInt(int64(count)), nil
		},
	}
	build := func() ast.Expr {
		return ast.NewOp("+", ast.NewOp("+", ast.NewScalar("a"), ast.NewScalar("b")), ast.NewScalar("c"))
	}
	got, err := ast.RewriteExpr(build(), repl, ast.PreOrder)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 || got.String() != "1" {
		t.Errorf("pre-order: got %s after %d replacements but want 1 after 1", got, count)
	}
	count = 0
	got, err = ast.RewriteExpr(build(), repl, ast.PostOrder)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || got.String() != "2" {
		t.Errorf("post-order: got %s after %d replacements but want 2 after 2", got, count)
	}
}

func TestRewriteTypeError(t *testing.T) {
	prog := copyLoop()
	repl := ast.ReplacerFuncs{
		Match: func(n ast.Node) bool {
			acc, ok := n.(*ast.Access)
			return ok && acc.IsWrite
		},
		With: func(ast.Node) (ast.Node, error) {
			return ast.NewInt(0), nil
		},
	}
	_, err := ast.Rewrite(prog, repl, ast.PreOrder)
	if err == nil || !strings.Contains(err.Error(), "access required") {
		t.Errorf("got error %v but want an access required error", err)
	}
}

func TestBindConsts(t *testing.T) {
	prog := ast.NewProgram(
		[]*ast.Declaration{{Name: "A", Sizes: []ast.Expr{ast.NewScalar("N")}}},
		[]ast.Stmt{ast.NewAssignment(ast.NewAccess("A", ast.NewOp("-", ast.NewScalar("N"), ast.NewInt(1))), ast.NewInt(0))},
		[]*ast.Const{{Name: "M"}, {Name: "N"}},
	)
	got, err := ast.BindConsts(prog, map[string]ast.Expr{"N": ast.NewInt(10)})
	if err != nil {
		t.Fatal(err)
	}
	want := "declare A[10];\nA[10 - 1] = 0;"
	if got.String() != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
	if diff := cmp.Diff([]string{"M"}, got.ConstNames()); diff != "" {
		t.Errorf("unexpected consts (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	prog := copyLoop()
	other := ast.NewProgram(
		[]*ast.Declaration{{Name: "A", Sizes: []ast.Expr{ast.NewInt(100)}}, {Name: "C"}},
		[]ast.Stmt{ast.NewAssignment(ast.NewScalar("C"), ast.NewAccess("A", ast.NewInt(0)))},
		nil,
	)
	if !prog.Merge(other) {
		t.Fatalf("merge failed")
	}
	if got, want := len(prog.Decls), 3; got != want {
		t.Errorf("got %d declarations but want %d", got, want)
	}
	if got := prog.Body[1].Surrounding(); got != ast.Block(prog) {
		t.Errorf("merged statement is not surrounded by the program")
	}
	mismatch := ast.NewProgram([]*ast.Declaration{{Name: "A", Sizes: []ast.Expr{nil, nil}}}, nil, nil)
	if prog.Merge(mismatch) {
		t.Errorf("merge of mismatched dimensions succeeded")
	}
}

type (
	otherStmt struct{ *ast.NoOp }
	otherExpr struct{ *ast.Literal }
)

func TestPrintUnknownKind(t *testing.T) {
	tests := []ast.Node{
		ast.NewLoop([]*ast.LoopShape{ast.NewLoopShape("i")}, otherStmt{&ast.NoOp{}}),
		ast.NewAssignment(ast.NewScalar("a"), otherExpr{ast.NewInt(1)}),
	}
	for i, node := range tests {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok {
					t.Errorf("test %d: got %v but want an error panic", i, r)
					return
				}
				if !strings.Contains(err.Error(), "internal error") {
					t.Errorf("test %d: got error %q but want an internal error", i, err)
				}
			}()
			ast.Print(node, ast.Options{})
		}()
	}
}
