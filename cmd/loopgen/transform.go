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

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/depend"
	"github.com/loopgen/loopgen/transform"
	"github.com/spf13/cobra"
)

type transformFunc func(context.Context, *ast.Program, transform.Options) (*ast.Program, error)

var (
	interchange  transformFunc = transform.Interchange
	tile         transformFunc = transform.Tile
	unrollAndJam transformFunc = transform.UnrollAndJam
)

func unroll(_ context.Context, prog *ast.Program, opts transform.Options) (*ast.Program, error) {
	return transform.Unroll(prog, opts)
}

func (a *app) transformCmd(name, short string, f transformFunc) *cobra.Command {
	var (
		maxTries  int
		maxFactor int64
	)
	cmd := &cobra.Command{
		Use:   name + " [file...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.forEach(cmd.Context(), args, func(ctx context.Context, i int, src source) (string, error) {
				prog, err := src.parse()
				if err != nil {
					return "", err
				}
				logger := a.logger.With("file", src.name, "transformation", name)
				res, err := f(ctx, prog, transform.Options{
					Rand:      a.rand(i),
					MaxTries:  maxTries,
					MaxFactor: maxFactor,
					Analysis:  depend.Options{Solver: a.cfg.Checker(logger), Logger: logger},
					Logger:    logger,
				})
				if err != nil {
					return "", err
				}
				return a.print(res), nil
			})
		},
	}
	cmd.Flags().IntVar(&maxTries, "tries", transform.DefaultMaxTries, "number of random choices tried per loop")
	cmd.Flags().Int64Var(&maxFactor, "max_factor", 4, "largest unroll factor or tile size")
	return cmd
}
