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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/build/parser"
	"github.com/loopgen/loopgen/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// stdin is the name of the standard input in reports.
const stdin = "-"

type app struct {
	cfg    config.Config
	logger *slog.Logger
	in     io.Reader
	out    io.Writer

	flags struct {
		solver   string
		z3       string
		timeout  time.Duration
		maxTries int
		seed     uint64
		logLevel string
		asPtr    bool
		parallel int
	}
}

func newRoot() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "loopgen",
		Short:             "Generate and transform loop patterns",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.solver, "solver", config.Builtin, "solver backend: builtin or z3")
	pf.StringVar(&a.flags.z3, "z3", "", "path of the z3 binary")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "timeout of a solver call")
	pf.IntVar(&a.flags.maxTries, "max_tries", 0, "number of attempts of the instantiator")
	pf.Uint64Var(&a.flags.seed, "seed", 0, "seed of the random sources (0 for a random seed)")
	pf.StringVar(&a.flags.logLevel, "log_level", "info", "minimum level of the logs: debug, info, warn or error")
	pf.BoolVar(&a.flags.asPtr, "array_as_pointer", false, "print array accesses as dereferenced pointers")
	pf.IntVar(&a.flags.parallel, "parallel", 0, "number of files or patterns processed concurrently")
	root.AddCommand(
		a.fmtCmd(),
		a.fillCmd(),
		a.instanceCmd(),
		a.depsCmd(),
		a.transformCmd("interchange", "Permute the dimensions of loops", interchange),
		a.transformCmd("tile", "Tile completely permutable loop bands", tile),
		a.transformCmd("unroll", "Unroll loops", unroll),
		a.transformCmd("unrolljam", "Unroll an outer dimension and jam the copies", unrollAndJam),
		a.generateCmd(),
	)
	return root
}

// setup reads the configuration from the environment and overrides it with
// the flags set on the command line.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	fs := cmd.Flags()
	if fs.Changed("solver") {
		cfg.Solver = a.flags.solver
	}
	if fs.Changed("z3") {
		cfg.Z3 = a.flags.z3
	}
	if fs.Changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if fs.Changed("max_tries") {
		cfg.MaxTries = a.flags.maxTries
	}
	if fs.Changed("seed") {
		cfg.Seed = a.flags.seed
	}
	if fs.Changed("log_level") {
		if cfg.LogLevel, err = config.ParseLevel(a.flags.logLevel); err != nil {
			return err
		}
	}
	if fs.Changed("array_as_pointer") {
		cfg.ArrayAsPointer = a.flags.asPtr
	}
	if fs.Changed("parallel") {
		cfg.Parallelism = a.flags.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	a.in = cmd.InOrStdin()
	a.out = cmd.OutOrStdout()
	return nil
}

func (a *app) printOptions() ast.Options {
	return ast.Options{ArrayAsPointer: a.cfg.ArrayAsPointer}
}

func (a *app) print(n ast.Node) string {
	return ast.Print(n, a.printOptions())
}

// rand returns the random source of the i-th job.
// Jobs draw from distinct sources derived from the configured seed.
func (a *app) rand(i int) *rand.Rand {
	if a.cfg.Seed == 0 {
		return a.cfg.Rand()
	}
	cfg := a.cfg
	cfg.Seed += uint64(i)
	return cfg.Rand()
}

// source is the text of a pattern and the name of the file it comes from.
type source struct {
	name string
	text string
}

func (a *app) sources(args []string) ([]source, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == stdin) {
		text, err := io.ReadAll(a.in)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read the standard input")
		}
		return []source{{name: stdin, text: string(text)}}, nil
	}
	srcs := make([]source, len(args))
	for i, name := range args {
		text, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read pattern")
		}
		srcs[i] = source{name: filepath.Clean(name), text: string(text)}
	}
	return srcs, nil
}

func (src source) parse() (*ast.Program, error) {
	return parser.Parse(src.text)
}

// forEach runs f on every source with at most cfg.Parallelism concurrent jobs.
// The outputs of f are written in the order of the sources, separated by an
// empty line. Every job runs to completion: the errors of all the jobs are
// returned together.
func (a *app) forEach(ctx context.Context, args []string, f func(ctx context.Context, i int, src source) (string, error)) error {
	srcs, err := a.sources(args)
	if err != nil {
		return err
	}
	outs := make([]string, len(srcs))
	errs := make([]error, len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallelism)
	for i, src := range srcs {
		g.Go(func() error {
			out, err := f(ctx, i, src)
			if err != nil {
				errs[i] = errors.Wrapf(err, "%s", src.name)
				return nil
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sep := ""
	for i, out := range outs {
		if errs[i] != nil {
			continue
		}
		if _, err := fmt.Fprint(a.out, sep, out, "\n"); err != nil {
			return err
		}
		sep = "\n"
	}
	return multierr.Combine(errs...)
}
