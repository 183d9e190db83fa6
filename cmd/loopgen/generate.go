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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loopgen/loopgen/base/sync"
	"github.com/loopgen/loopgen/generate"
	"github.com/loopgen/loopgen/tools/lgflag"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/mod/sumdb/dirhash"
	"golang.org/x/sync/errgroup"
)

// patternExt is the extension of the pattern files written by generate.
const patternExt = ".lg"

func (a *app) generateCmd() *cobra.Command {
	info := &generate.Info{}
	var (
		count int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random patterns",
		Long: `Generate random patterns from pools of arrays, constants, operators and
loop variables. Duplicated patterns are dropped.

Arrays are given as name:dims or local:name:dims.
If --out is set, every pattern is written to its own file in the directory
and the checksum of the directory is printed.`,
		Args: cobra.NoArgs,
	}
	fs := cmd.Flags()
	arrays := lgflag.Arrays(fs, "array", "arrays of the patterns")
	mulConsts := lgflag.StringList(fs, "mul", "multiplicative constants of indices")
	zeroConsts := lgflag.StringList(fs, "maybe_zero_mul", "multiplicative constants of indices which can be zero")
	addConsts := lgflag.StringList(fs, "add", "additive constants of indices")
	dataConsts := lgflag.StringList(fs, "data", "scalars read by the statements")
	ops := lgflag.StringList(fs, "ops", "binary operators of the statements (default +,*)")
	loopVars := lgflag.StringList(fs, "loop_vars", "loop variables (default i,j,k)")
	fs.IntVar(&info.NumLoops, "loops", 1, "number of loops per pattern")
	fs.IntVar(&info.Depth, "depth", 2, "number of dimensions per loop")
	fs.IntVar(&info.NumStmts, "stmts", 2, "number of statements per loop")
	fs.IntVar(&info.NumOps, "num_ops", 1, "number of operators per statement")
	fs.IntVar(&count, "n", 1, "number of patterns to draw")
	fs.StringVar(&out, "out", "", "directory where the patterns are written")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		info.Arrays = *arrays
		info.MulConsts = *mulConsts
		info.MaybeZeroMulConsts = *zeroConsts
		info.AddConsts = *addConsts
		info.DataConsts = *dataConsts
		info.Ops = *ops
		if len(info.Ops) == 0 {
			info.Ops = []string{"+", "*"}
		}
		info.LoopVars = *loopVars
		if len(info.LoopVars) == 0 {
			info.LoopVars = []string{"i", "j", "k"}
		}
		if err := info.Validate(); err != nil {
			return err
		}
		a.logger.Debug("generating patterns", "info", info.String())
		patterns, err := a.generate(cmd, info, count)
		if err != nil {
			return err
		}
		if out == "" {
			_, err := fmt.Fprintln(a.out, strings.Join(patterns, "\n\n"))
			return err
		}
		return a.writePatterns(out, patterns)
	}
	return cmd
}

// generate draws count patterns concurrently and returns the distinct ones
// sorted by their text.
func (a *app) generate(cmd *cobra.Command, info *generate.Info, count int) ([]string, error) {
	var seen sync.Map[string, int]
	errs := make([]error, count)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(a.cfg.Parallelism)
	for i := range count {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			prog, err := generate.Pattern(info, generate.Options{
				Rand:   a.rand(i),
				Logger: a.logger,
			})
			if err != nil {
				errs[i] = errors.Wrapf(err, "pattern %d", i)
				return nil
			}
			if first, loaded := seen.LoadOrStore(a.print(prog), i); loaded {
				a.logger.Debug("duplicated pattern", "pattern", i, "first", first)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	patterns := seen.SortedKeys()
	if len(patterns) < count {
		a.logger.Info("dropped duplicated patterns", "drawn", count, "distinct", len(patterns))
	}
	return patterns, nil
}

func (a *app) writePatterns(dir string, patterns []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cannot create output directory")
	}
	for i, pattern := range patterns {
		name := filepath.Join(dir, fmt.Sprintf("pattern%04d%s", i, patternExt))
		if err := os.WriteFile(name, []byte(pattern+"\n"), 0o644); err != nil {
			return errors.Wrap(err, "cannot write pattern")
		}
	}
	sum, err := dirhash.HashDir(dir, "loopgen", dirhash.Hash1)
	if err != nil {
		return errors.Wrapf(err, "cannot compute the checksum of %s", dir)
	}
	a.logger.Info("wrote patterns", "dir", dir, "patterns", len(patterns))
	_, err = fmt.Fprintln(a.out, sum)
	return err
}
