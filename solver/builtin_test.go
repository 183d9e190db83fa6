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

package solver_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	s "github.com/loopgen/loopgen/solver"
)

var (
	x = s.V("x")
	y = s.V("y")
	z = s.V("z")
	n = s.V("n")
)

func TestBuiltinCheck(t *testing.T) {
	tests := []struct {
		name string
		fs   []s.Formula
		want s.Status
	}{
		{
			name: "empty",
			want: s.Sat,
		},
		{
			name: "false",
			fs:   []s.Formula{s.False},
			want: s.Unsat,
		},
		{
			name: "box",
			fs:   []s.Formula{s.Ge(x, s.C(3)), s.Le(x, s.C(5))},
			want: s.Sat,
		},
		{
			name: "empty box",
			fs:   []s.Formula{s.Ge(x, s.C(3)), s.Lt(x, s.C(3))},
			want: s.Unsat,
		},
		{
			name: "cycle",
			fs:   []s.Formula{s.Lt(x, y), s.Lt(y, z), s.Lt(z, x)},
			want: s.Unsat,
		},
		{
			name: "equalities",
			fs: []s.Formula{
				s.Eq(x, s.Add{X: y, Y: s.C(1)}),
				s.Eq(y, s.Mul{X: s.C(2), Y: z}),
				s.Eq(x, s.C(7)),
			},
			want: s.Sat,
		},
		{
			name: "parity",
			fs: []s.Formula{
				s.Eq(s.Mul{X: s.C(2), Y: x}, s.Add{X: s.Mul{X: s.C(4), Y: y}, Y: s.C(1)}),
			},
			want: s.Unsat,
		},
		{
			name: "disjunction",
			fs: []s.Formula{
				s.AnyOf(s.Lt(x, s.C(-10)), s.Gt(x, s.C(10))),
				s.Ge(x, s.C(0)),
				s.Le(x, s.C(20)),
			},
			want: s.Sat,
		},
		{
			name: "not equal",
			fs: []s.Formula{
				s.Ne(x, y),
				s.Ge(x, s.C(0)), s.Le(x, s.C(0)),
				s.Ge(y, s.C(0)), s.Le(y, s.C(0)),
			},
			want: s.Unsat,
		},
		{
			name: "negation",
			fs: []s.Formula{
				s.Not{F: s.AllOf(s.Ge(x, s.C(0)), s.Lt(x, n))},
				s.Ge(x, s.C(0)),
				s.Eq(n, s.C(100)),
			},
			want: s.Sat,
		},
		{
			name: "nonlinear",
			fs: []s.Formula{
				s.Eq(s.Mul{X: x, Y: y}, s.C(12)),
				s.Ge(x, s.C(2)), s.Le(x, s.C(5)),
				s.Gt(y, x),
			},
			want: s.Sat,
		},
		{
			name: "square",
			fs:   []s.Formula{s.Lt(s.Mul{X: x, Y: x}, s.C(0))},
			want: s.Unsat,
		},
		{
			name: "loop access in bounds",
			// 0 <= i < n, n <= 10, and A[i+1] with size 10 must be out of bounds for i = 9.
			fs: []s.Formula{
				s.Ge(x, s.C(0)), s.Lt(x, n), s.Le(n, s.C(10)),
				s.Not{F: s.Lt(s.Add{X: x, Y: s.C(1)}, s.C(10))},
			},
			want: s.Sat,
		},
	}
	checker := s.NewBuiltin(s.BuiltinOptions{})
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := checker.Check(context.Background(), test.fs)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if res.Status != test.want {
				t.Fatalf("got %v but want %v", res, test.want)
			}
			if res.Status != s.Sat {
				return
			}
			for _, f := range test.fs {
				if !res.Model.Holds(f) {
					t.Errorf("model %v does not satisfy %v", res.Model, f)
				}
			}
		})
	}
}

func TestBuiltinModelCloseToZero(t *testing.T) {
	checker := s.NewBuiltin(s.BuiltinOptions{})
	res, err := checker.Check(context.Background(), []s.Formula{
		s.Ge(x, s.C(-5)),
		s.Le(x, s.C(5)),
		s.Ge(y, s.C(3)),
	})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := s.Model{"x": 0, "y": 3}
	if diff := cmp.Diff(want, res.Model); diff != "" {
		t.Errorf("unexpected model (-want +got):\n%s", diff)
	}
}

func TestBuiltinBudget(t *testing.T) {
	checker := s.NewBuiltin(s.BuiltinOptions{MaxNodes: 3})
	res, err := checker.Check(context.Background(), []s.Formula{
		s.Eq(s.Mul{X: x, Y: y}, s.C(1000003)),
		s.Gt(x, s.C(1)),
		s.Gt(y, s.C(1)),
	})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if res.Status != s.Unknown {
		t.Errorf("got %v but want %v", res, s.Unknown)
	}
	if res.Reason == "" {
		t.Errorf("unknown result without a reason")
	}
}

func TestBuiltinCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := s.NewBuiltin(s.BuiltinOptions{})
	res, err := checker.Check(ctx, []s.Formula{s.Lt(x, y)})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if res.Status != s.Unknown {
		t.Errorf("got %v but want %v", res, s.Unknown)
	}
}
