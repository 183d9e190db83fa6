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

	s "github.com/loopgen/loopgen/solver"
)

func TestOptimize(t *testing.T) {
	// 0 <= x < n, 1 <= n <= 64: the access A[2*x+3] spans [3, 2*63+3].
	fs := []s.Formula{
		s.Ge(x, s.C(0)),
		s.Lt(x, n),
		s.Ge(n, s.C(1)),
		s.Le(n, s.C(64)),
	}
	index := s.Add{X: s.Mul{X: s.C(2), Y: x}, Y: s.C(3)}
	checker := s.NewBuiltin(s.BuiltinOptions{})
	ctx := context.Background()
	tests := []struct {
		name string
		find func(context.Context, s.Checker, []s.Formula, s.Term) (s.Optimum, error)
		want int64
	}{
		{name: "Minimize", find: s.Minimize, want: 3},
		{name: "Maximize", find: s.Maximize, want: 129},
		{name: "FindMin", find: s.FindMin, want: 3},
		{name: "FindMax", find: s.FindMax, want: 129},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opt, err := test.find(ctx, checker, fs, index)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if opt.Status != s.Sat {
				t.Fatalf("got %v but want a sat optimum", opt)
			}
			if opt.Value != test.want {
				t.Errorf("got %d but want %d", opt.Value, test.want)
			}
			if got := opt.Model.Eval(index); got != opt.Value {
				t.Errorf("model %v evaluates the objective to %d but want %d", opt.Model, got, opt.Value)
			}
		})
	}
}

func TestOptimizeUnsat(t *testing.T) {
	checker := s.NewBuiltin(s.BuiltinOptions{})
	opt, err := s.Minimize(context.Background(), checker, []s.Formula{s.Lt(x, x)}, x)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if opt.Status != s.Unsat {
		t.Errorf("got %v but want %v", opt, s.Unsat)
	}
}

func TestOptimizeBoundedDomain(t *testing.T) {
	checker := s.NewBuiltin(s.BuiltinOptions{Bound: 1000})
	opt, err := s.Minimize(context.Background(), checker, []s.Formula{s.Le(x, s.C(0))}, x)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if opt.Value != -1000 {
		t.Errorf("got %d but want %d", opt.Value, -1000)
	}
}

// stub answers Unknown after a number of checks.
type stub struct {
	checker s.Checker
	left    int
}

func (c *stub) Check(ctx context.Context, fs []s.Formula) (s.Result, error) {
	if c.left == 0 {
		return s.Result{Status: s.Unknown, Reason: "stub"}, nil
	}
	c.left--
	return c.checker.Check(ctx, fs)
}

func TestOptimizeUnknown(t *testing.T) {
	checker := &stub{checker: s.NewBuiltin(s.BuiltinOptions{}), left: 2}
	opt, err := s.FindMin(context.Background(), checker, []s.Formula{s.Ge(x, s.C(-100))}, x)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if opt.Status != s.Unknown {
		t.Errorf("got %v but want %v", opt, s.Unknown)
	}
}
