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
	"strings"

	"github.com/loopgen/loopgen/skeleton"
	"github.com/loopgen/loopgen/tools/lgflag"
	"github.com/spf13/cobra"
)

func (a *app) fillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill [file...]",
		Short: "Fill the holes of skeletons",
		Long: `Fill the holes of skeletons with the candidates of families.

A family is given as family=choice|choice|... and can be repeated.
A family name ending with ! draws its candidates without replacement.
Statement holes are filled first, then expressions, operators and names.`,
	}
	fs := cmd.Flags()
	stmts := lgflag.Mappings(fs, "stmt", "family of statements")
	exprs := lgflag.Mappings(fs, "expr", "family of expressions")
	ops := lgflag.Mappings(fs, "op", "family of operators")
	names := lgflag.Mappings(fs, "name", "family of variable names")
	n := fs.Int("n", 1, "number of distinct patterns to generate per skeleton")
	tries := fs.Int("tries", 100, "number of fills tried per requested pattern")
	record := fs.Bool("record", false, "log the candidate drawn for every hole")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		passes := []struct {
			kind     skeleton.Kind
			mappings []skeleton.Mapping
		}{
			{kind: skeleton.Statements, mappings: *stmts},
			{kind: skeleton.Expressions, mappings: *exprs},
			{kind: skeleton.Operations, mappings: *ops},
			{kind: skeleton.Names, mappings: *names},
		}
		return a.forEach(cmd.Context(), args, func(_ context.Context, i int, src source) (string, error) {
			skel, err := skeleton.Parse(src.text)
			if err != nil {
				return "", err
			}
			opts := skeleton.Options{Rand: a.rand(i), Logger: a.logger}
			if *record {
				opts.Recorder = &skeleton.Recorder{}
			}
			gen := func() (*skeleton.Skeleton, error) {
				filled := skel
				var err error
				for _, pass := range passes {
					if len(pass.mappings) == 0 {
						continue
					}
					if filled, err = filled.Fill(pass.kind, pass.mappings, opts); err != nil {
						return nil, err
					}
				}
				if opts.Recorder != nil {
					a.logger.Info("filled skeleton", "file", src.name, "draws", opts.Recorder.String())
					opts.Recorder.Reset()
				}
				return filled, nil
			}
			patterns, err := skeleton.GeneratePatterns(*n, *n * *tries, gen)
			if err != nil {
				return "", err
			}
			if len(patterns) < *n {
				a.logger.Warn("fewer distinct patterns than requested", "file", src.name, "got", len(patterns), "want", *n)
			}
			out := make([]string, len(patterns))
			for i, pattern := range patterns {
				out[i] = a.print(pattern)
			}
			return strings.Join(out, "\n\n"), nil
		})
	}
	return cmd
}
