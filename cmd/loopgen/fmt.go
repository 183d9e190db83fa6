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
	"github.com/spf13/cobra"
)

func (a *app) fmtCmd() *cobra.Command {
	var simplify bool
	cmd := &cobra.Command{
		Use:   "fmt [file...]",
		Short: "Parse patterns and print them in canonical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.forEach(cmd.Context(), args, func(_ context.Context, _ int, src source) (string, error) {
				prog, err := src.parse()
				if err != nil {
					return "", err
				}
				if simplify {
					if prog, err = ast.Simplify(prog); err != nil {
						return "", err
					}
				}
				return a.print(prog), nil
			})
		},
	}
	cmd.Flags().BoolVar(&simplify, "simplify", false, "remove neutral operations and fold literal arithmetic")
	return cmd
}
