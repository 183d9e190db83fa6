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
	"slices"

	"github.com/loopgen/loopgen/base/tmpl"
	"github.com/loopgen/loopgen/instance"
	"github.com/loopgen/loopgen/tools/lgflag"
	"github.com/spf13/cobra"
)

const instanceReport = `// {{.File}}: {{.Stats}}
{{- if .Found}}
{{.Pattern}}
{{- range .Arrays}}
// Array {{.}}
{{- end}}
{{- if .Footprint}}
// footprint: {{.Footprint}} bytes
{{- end}}
{{- else}}
// no instance found
{{- end}}`

type instanceData struct {
	File      string
	Stats     instance.Stats
	Found     bool
	Pattern   string
	Arrays    []string
	Footprint int64
}

func (a *app) instanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance [file...]",
		Short: "Bind the free variables of patterns and size their arrays",
		Long: `Bind the free variables of patterns to random values and size their
arrays such that no access is out of bounds.

Ranges are given as name=value, name=min:max, name=min: or name=:max.
Bounds with a decimal point, as in alpha=0.5:2.0, bind a data constant to a
floating-point value.
Array dimensions are named A[], A[][], ...
Element types are drawn among float, double and int unless set by --type.`,
	}
	fs := cmd.Flags()
	vars := lgflag.Ranges(fs, "var", instance.NewVariableMap(instance.DefaultMin, instance.DefaultMax), "range of a variable")
	ta := lgflag.Types(fs, "type", instance.NewTypeAssignment(), "element types of a variable: name=type|type|...")
	force := fs.Bool("force", false, "skip the safety analysis")
	withTypes := fs.Bool("types", false, "assign element types and report the footprint")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		report, err := tmpl.New("instance", instanceReport)
		if err != nil {
			return err
		}
		var types *instance.TypeAssignment
		if *withTypes || cmd.Flags().Changed("type") {
			types = ta
		}
		return a.forEach(cmd.Context(), args, func(ctx context.Context, i int, src source) (string, error) {
			pattern, err := src.parse()
			if err != nil {
				return "", err
			}
			inst, stats, err := instance.TryCreate(ctx, pattern, vars.Clone(), types, instance.Options{
				Force:    *force,
				MaxTries: a.cfg.MaxTries,
				Solver:   a.cfg.Checker(a.logger),
				Rand:     a.rand(i),
				Logger:   a.logger.With("file", src.name),
			})
			if err != nil {
				return "", err
			}
			data, err := a.instanceData(src.name, inst, stats, types != nil)
			if err != nil {
				return "", err
			}
			return tmpl.Execute(report, data)
		})
	}
	return cmd
}

func (a *app) instanceData(name string, inst *instance.Instance, stats instance.Stats, footprint bool) (*instanceData, error) {
	data := &instanceData{File: name, Stats: stats}
	if inst == nil {
		return data, nil
	}
	data.Found = true
	data.Pattern = a.print(inst.Pattern)
	for _, name := range slices.Sorted(inst.Bounds.Keys()) {
		data.Arrays = append(data.Arrays, inst.Bound(name).String())
	}
	if footprint {
		total, err := inst.TotalFootprint()
		if err != nil {
			return nil, err
		}
		data.Footprint = total
	}
	return data, nil
}
