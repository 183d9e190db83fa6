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

package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/config"
	"github.com/loopgen/loopgen/solver"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(config.EnvSolver, "Z3")
	t.Setenv(config.EnvZ3, "/opt/z3/bin/z3")
	t.Setenv(config.EnvTimeoutMS, "2500")
	t.Setenv(config.EnvMaxTries, "50")
	t.Setenv(config.EnvSeed, "42")
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvArrayAsPtr, "true")
	t.Setenv(config.EnvParallelism, "2")
	got, err := config.FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	want := config.Config{
		Solver:         config.Z3,
		Z3:             "/opt/z3/bin/z3",
		Timeout:        2500 * time.Millisecond,
		MaxTries:       50,
		Seed:           42,
		LogLevel:       slog.LevelDebug,
		ArrayAsPointer: true,
		Parallelism:    2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected configuration (-want +got):\n%s", diff)
	}
	if _, ok := got.Checker(nil).(*solver.Z3); !ok {
		t.Errorf("got checker %T but want %T", got.Checker(nil), &solver.Z3{})
	}
}

func TestDefault(t *testing.T) {
	got, err := config.FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.Default(), got); diff != "" {
		t.Errorf("unexpected configuration (-want +got):\n%s", diff)
	}
	if _, ok := got.Checker(nil).(*solver.Builtin); !ok {
		t.Errorf("got checker %T but want %T", got.Checker(nil), &solver.Builtin{})
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name, value string
	}{
		{name: config.EnvSolver, value: "cvc5"},
		{name: config.EnvLogLevel, value: "chatty"},
		{name: config.EnvMaxTries, value: "-1"},
		{name: config.EnvParallelism, value: "0"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(test.name, test.value)
			if _, err := config.FromEnv(); err == nil {
				t.Errorf("%s=%s: got no error", test.name, test.value)
			}
		})
	}
}

func TestRand(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 7
	a, b := cfg.Rand(), cfg.Rand()
	for range 10 {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("got %d and %d from sources with the same seed", x, y)
		}
	}
}
