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

// Package config reads the process defaults of loopgen from the environment.
package config

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/loopgen/loopgen/instance"
	"github.com/loopgen/loopgen/solver"
	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
)

// Environment variables.
const (
	EnvSolver      = "LOOPGEN_SOLVER"
	EnvZ3          = "LOOPGEN_Z3"
	EnvTimeoutMS   = "LOOPGEN_TIMEOUT_MS"
	EnvMaxTries    = "LOOPGEN_MAX_TRIES"
	EnvSeed        = "LOOPGEN_SEED"
	EnvLogLevel    = "LOOPGEN_LOG_LEVEL"
	EnvArrayAsPtr  = "LOOPGEN_ARRAY_AS_PTR"
	EnvParallelism = "LOOPGEN_PARALLELISM"
)

const defaultParallelism = 4

// Solver backends.
const (
	Builtin = "builtin"
	Z3      = "z3"
)

// Config of a loopgen process.
type Config struct {
	// Solver is the name of the solver backend: Builtin or Z3.
	Solver string
	// Z3 is the path of the z3 binary.
	Z3 string
	// Timeout of a solver call.
	Timeout time.Duration
	// MaxTries is the number of attempts of the instantiator.
	MaxTries int
	// Seed of the random sources. Zero draws a random seed.
	Seed uint64
	// LogLevel is the minimum level of the logs.
	LogLevel slog.Level
	// ArrayAsPointer prints array parameters as pointers.
	ArrayAsPointer bool
	// Parallelism is the number of jobs run concurrently by batch commands.
	Parallelism int
}

// Default returns the configuration used when no environment variable is set.
func Default() Config {
	return Config{
		Solver:      Builtin,
		Timeout:     solver.DefaultTimeout,
		MaxTries:    instance.DefaultMaxTries,
		LogLevel:    slog.LevelInfo,
		Parallelism: defaultParallelism,
	}
}

// ParseLevel parses a log level name: debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, errors.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// FromEnv returns the default configuration overridden by the environment.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.Solver = strings.ToLower(env.Str(EnvSolver, cfg.Solver))
	cfg.Z3 = env.Str(EnvZ3, cfg.Z3)
	cfg.Timeout = time.Duration(env.Int(EnvTimeoutMS, int(cfg.Timeout/time.Millisecond))) * time.Millisecond
	cfg.MaxTries = env.Int(EnvMaxTries, cfg.MaxTries)
	cfg.Seed = uint64(env.Int(EnvSeed, 0))
	cfg.ArrayAsPointer = env.Bool(EnvArrayAsPtr)
	cfg.Parallelism = env.Int(EnvParallelism, cfg.Parallelism)
	if env.Has(EnvLogLevel) {
		level, err := ParseLevel(env.Str(EnvLogLevel))
		if err != nil {
			return cfg, errors.Wrapf(err, "cannot read %s", EnvLogLevel)
		}
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// Validate returns an error if a field has an invalid value.
func (cfg Config) Validate() error {
	switch {
	case cfg.Solver != Builtin && cfg.Solver != Z3:
		return errors.Errorf("unknown solver %q: want %q or %q", cfg.Solver, Builtin, Z3)
	case cfg.Timeout <= 0:
		return errors.Errorf("invalid solver timeout %v", cfg.Timeout)
	case cfg.MaxTries <= 0:
		return errors.Errorf("invalid number of tries %d", cfg.MaxTries)
	case cfg.Parallelism <= 0:
		return errors.Errorf("invalid parallelism %d", cfg.Parallelism)
	}
	return nil
}

// Checker returns the solver configured by cfg.
func (cfg Config) Checker(logger *slog.Logger) solver.Checker {
	if cfg.Solver == Z3 {
		return &solver.Z3{Path: cfg.Z3, Timeout: cfg.Timeout, Logger: logger}
	}
	return solver.NewBuiltin(solver.BuiltinOptions{Timeout: cfg.Timeout, Logger: logger})
}

// Rand returns a random source seeded by cfg.
// A random seed is drawn if the seed of cfg is zero.
func (cfg Config) Rand() *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed))
}
