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

package lgflag_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/generate"
	"github.com/loopgen/loopgen/instance"
	"github.com/loopgen/loopgen/skeleton"
	"github.com/loopgen/loopgen/tools/lgflag"
	"github.com/spf13/pflag"
)

func newFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("test", pflag.ContinueOnError)
}

func TestStringList(t *testing.T) {
	fs := newFlagSet()
	list := lgflag.StringList(fs, "ops", "operators")
	if err := fs.Parse([]string{"--ops", "+, *", "--ops=-,,"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"+", "*", "-"}, *list); diff != "" {
		t.Errorf("unexpected list (-want +got):\n%s", diff)
	}
}

func TestRanges(t *testing.T) {
	fs := newFlagSet()
	vars := lgflag.Ranges(fs, "var", instance.NewVariableMap(0, 100), "ranges")
	if err := fs.Parse([]string{"--var", "N=10:20,M=5", "--var", "K=3:", "--var", "L=:7"}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name     string
		min, max int64
	}{
		{name: "N", min: 10, max: 20},
		{name: "M", min: 5, max: 5},
		{name: "K", min: 3, max: 100},
		{name: "L", min: 0, max: 7},
		{name: "P", min: 0, max: 100},
	}
	for _, test := range tests {
		if got := vars.Min(test.name); got != test.min {
			t.Errorf("%s: got minimum %d but want %d", test.name, got, test.min)
		}
		if got := vars.Max(test.name); got != test.max {
			t.Errorf("%s: got maximum %d but want %d", test.name, got, test.max)
		}
	}
	if vars.HasMax("K") {
		t.Errorf("K: got a maximum but want none")
	}
}

func TestFloatRanges(t *testing.T) {
	fs := newFlagSet()
	vars := lgflag.Ranges(fs, "var", instance.NewVariableMap(0, 100), "ranges")
	if err := fs.Parse([]string{"--var", "alpha=0.5:2.0,beta=1.5,N=3"}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		lo, hi float64
		ok     bool
	}{
		{name: "alpha", lo: 0.5, hi: 2, ok: true},
		{name: "beta", lo: 1.5, hi: 1.5, ok: true},
		{name: "N"},
	}
	for _, test := range tests {
		lo, hi, ok := vars.FloatRange(test.name)
		if ok != test.ok || lo != test.lo || hi != test.hi {
			t.Errorf("%s: got [%g, %g] %v but want [%g, %g] %v", test.name, lo, hi, ok, test.lo, test.hi, test.ok)
		}
	}
}

func TestRangesErrors(t *testing.T) {
	for _, value := range []string{"N", "N=", "N=a:3", "N=5:2", "=3", "x=0.5:", "x=2.5:1.0"} {
		fs := newFlagSet()
		lgflag.Ranges(fs, "var", instance.NewVariableMap(0, 100), "ranges")
		if err := fs.Parse([]string{"--var", value}); err == nil {
			t.Errorf("%q: got no error", value)
		}
	}
}

func TestTypes(t *testing.T) {
	fs := newFlagSet()
	ta := lgflag.Types(fs, "type", instance.NewTypeAssignment("int"), "types")
	if err := fs.Parse([]string{"--type", "A=float|double,B=long"}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name, typ string
		want      bool
	}{
		{name: "A", typ: "float", want: true},
		{name: "A", typ: "double", want: true},
		{name: "A", typ: "int", want: false},
		{name: "B", typ: "long", want: true},
		{name: "C", typ: "int", want: true},
	}
	for _, test := range tests {
		if got := ta.CanBe(test.name, test.typ); got != test.want {
			t.Errorf("%s can be %s: got %v but want %v", test.name, test.typ, got, test.want)
		}
	}
	fs = newFlagSet()
	lgflag.Types(fs, "type", instance.NewTypeAssignment(), "types")
	if err := fs.Parse([]string{"--type", "A=quad"}); err == nil {
		t.Errorf("A=quad: got no error")
	}
}

func TestArrays(t *testing.T) {
	fs := newFlagSet()
	arrays := lgflag.Arrays(fs, "array", "arrays")
	if err := fs.Parse([]string{"--array", "A:2,local:T:1", "--array", "s:0"}); err != nil {
		t.Fatal(err)
	}
	want := []generate.Array{
		{Name: "A", NumDims: 2},
		{Name: "T", NumDims: 1, Local: true},
		{Name: "s"},
	}
	if diff := cmp.Diff(want, *arrays); diff != "" {
		t.Errorf("unexpected arrays (-want +got):\n%s", diff)
	}
	for _, value := range []string{"A", "A:x", "A:-1", "global:T:1", ":2"} {
		if _, err := lgflag.ParseArray(value); err == nil {
			t.Errorf("%q: got no error", value)
		}
	}
}

func TestMappings(t *testing.T) {
	fs := newFlagSet()
	mappings := lgflag.Mappings(fs, "map", "mappings")
	err := fs.Parse([]string{
		"--map", "stmt=A[i] = B[i, j];|A[i] = 0;",
		"--map", "arrays!=A|B",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []skeleton.Mapping{
		{Family: "stmt", Choices: []string{"A[i] = B[i, j];", "A[i] = 0;"}},
		{Family: "arrays", Choices: []string{"A", "B"}, Finite: true},
	}
	if diff := cmp.Diff(want, *mappings, cmp.Comparer(func(a, b skeleton.ChoiceFunc) bool {
		return a == nil && b == nil
	})); diff != "" {
		t.Errorf("unexpected mappings (-want +got):\n%s", diff)
	}
	if _, err := lgflag.ParseMapping("stmt="); err == nil {
		t.Errorf("stmt=: got no error")
	}
}
