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

	lgfmt "github.com/loopgen/loopgen/base/fmt"
	"github.com/loopgen/loopgen/depend"
	"github.com/spf13/cobra"
)

func (a *app) depsCmd() *cobra.Command {
	var distance, number bool
	cmd := &cobra.Command{
		Use:   "deps [file...]",
		Short: "Print the data dependences of patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.forEach(cmd.Context(), args, func(ctx context.Context, _ int, src source) (string, error) {
				prog, err := src.parse()
				if err != nil {
					return "", err
				}
				opts := depend.Options{Solver: a.cfg.Checker(a.logger), Logger: a.logger.With("file", src.name)}
				g, tagged, err := depend.Analyze(ctx, prog, opts)
				if err != nil {
					return "", err
				}
				if distance {
					if err := depend.CalculateDistanceVectors(ctx, g, opts); err != nil {
						return "", err
					}
				}
				out := a.print(tagged)
				if number {
					out = lgfmt.Number(out)
				}
				if g.Len() == 0 {
					return out + "\n\nno dependence", nil
				}
				return out + "\n\n" + g.String(), nil
			})
		},
	}
	cmd.Flags().BoolVar(&distance, "distance", false, "compute the distance vectors")
	cmd.Flags().BoolVar(&number, "number", false, "number the lines of the patterns")
	return cmd
}
