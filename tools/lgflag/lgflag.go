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

// Package lgflag provides flag types for loopgen tools.
package lgflag

import (
	"strconv"
	"strings"

	"github.com/loopgen/loopgen/generate"
	"github.com/loopgen/loopgen/instance"
	"github.com/loopgen/loopgen/skeleton"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// splitList splits a list and drops empty values.
func splitList(values string, sep string) []string {
	var list []string
	for _, value := range strings.Split(values, sep) {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		list = append(list, value)
	}
	return list
}

// cut splits name=value.
func cut(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", errors.Errorf("invalid value %q: want name=value", s)
	}
	return name, strings.TrimSpace(value), nil
}

type stringList struct {
	list *[]string
}

func (sl *stringList) String() string {
	return strings.Join(*sl.list, ",")
}

func (sl *stringList) Set(values string) error {
	*sl.list = append(*sl.list, splitList(values, ",")...)
	return nil
}

func (sl *stringList) Type() string {
	return "strings"
}

// StringList returns a flag to pass a list of string from the command line.
func StringList(fs *pflag.FlagSet, name, doc string) *[]string {
	var list []string
	fs.Var(&stringList{&list}, name, doc)
	return &list
}

type ranges struct {
	vars *instance.VariableMap
	set  []string
}

func parseBound(s string) (int64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, errors.Errorf("invalid bound %q", s)
	}
	return v, true, nil
}

func (r *ranges) String() string {
	return strings.Join(r.set, ",")
}

func isFloat(s string) bool {
	return strings.Contains(s, ".")
}

// setFloat sets a floating-point range. Both bounds are required.
func (r *ranges) setFloat(name, lo, hi string) error {
	lower, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return errors.Errorf("variable %s: invalid bound %q", name, lo)
	}
	upper, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return errors.Errorf("variable %s: invalid bound %q", name, hi)
	}
	if lower > upper {
		return errors.Errorf("variable %s: empty range [%g, %g]", name, lower, upper)
	}
	r.vars.SetFloatRange(name, lower, upper)
	return nil
}

// Set parses N=5, N=1:10, N=1: or N=:10.
// Bounds with a decimal point set a floating-point range: N=0.5:2.0 or N=1.5.
func (r *ranges) Set(values string) error {
	for _, value := range splitList(values, ",") {
		name, bounds, err := cut(value)
		if err != nil {
			return err
		}
		lo, hi, isRange := strings.Cut(bounds, ":")
		if !isRange {
			hi = lo
		}
		if isFloat(lo) || isFloat(hi) {
			if err := r.setFloat(name, lo, hi); err != nil {
				return err
			}
			r.set = append(r.set, value)
			continue
		}
		lower, hasMin, err := parseBound(lo)
		if err != nil {
			return errors.Wrapf(err, "variable %s", name)
		}
		upper, hasMax, err := parseBound(hi)
		if err != nil {
			return errors.Wrapf(err, "variable %s", name)
		}
		if !hasMin && !hasMax {
			return errors.Errorf("variable %s: no bound in %q", name, bounds)
		}
		if hasMin && hasMax && lower > upper {
			return errors.Errorf("variable %s: empty range [%d, %d]", name, lower, upper)
		}
		if hasMin {
			r.vars.SetMin(name, lower)
		}
		if hasMax {
			r.vars.SetMax(name, upper)
		}
		r.set = append(r.set, value)
	}
	return nil
}

func (r *ranges) Type() string {
	return "ranges"
}

// Ranges returns a flag setting the ranges of variables in a variable map.
// A range is name=value, name=min:max, name=min: or name=:max.
// Floating-point ranges have a decimal point in their bounds.
func Ranges(fs *pflag.FlagSet, name string, vars *instance.VariableMap, doc string) *instance.VariableMap {
	fs.Var(&ranges{vars: vars}, name, doc)
	return vars
}

type types struct {
	ta  *instance.TypeAssignment
	set []string
}

func (t *types) String() string {
	return strings.Join(t.set, ",")
}

// Set parses A=float or A=float|double.
func (t *types) Set(values string) error {
	for _, value := range splitList(values, ",") {
		name, choices, err := cut(value)
		if err != nil {
			return err
		}
		list := splitList(choices, "|")
		if len(list) == 0 {
			return errors.Errorf("variable %s: no element type", name)
		}
		for _, typ := range list {
			if _, err := instance.DataType(typ); err != nil {
				return errors.Wrapf(err, "variable %s", name)
			}
		}
		t.ta.SetChoices(name, list...)
		t.set = append(t.set, value)
	}
	return nil
}

func (t *types) Type() string {
	return "types"
}

// Types returns a flag setting the element type choices of variables.
func Types(fs *pflag.FlagSet, name string, ta *instance.TypeAssignment, doc string) *instance.TypeAssignment {
	fs.Var(&types{ta: ta}, name, doc)
	return ta
}

type arrays struct {
	list *[]generate.Array
}

func (a *arrays) String() string {
	ss := make([]string, len(*a.list))
	for i, array := range *a.list {
		ss[i] = array.String()
	}
	return strings.Join(ss, ",")
}

// ParseArray parses an array of a generator pool: A:2 is an array A with two
// dimensions and local:T:1 a local array T with one dimension.
func ParseArray(s string) (generate.Array, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var array generate.Array
	if len(parts) == 3 {
		if parts[0] != "local" {
			return array, errors.Errorf("invalid array %q: want local:name:dims", s)
		}
		array.Local = true
		parts = parts[1:]
	}
	if len(parts) != 2 || parts[0] == "" {
		return array, errors.Errorf("invalid array %q: want name:dims", s)
	}
	array.Name = parts[0]
	numDims, err := strconv.Atoi(parts[1])
	if err != nil || numDims < 0 {
		return array, errors.Errorf("invalid number of dimensions in %q", s)
	}
	array.NumDims = numDims
	return array, nil
}

func (a *arrays) Set(values string) error {
	for _, value := range splitList(values, ",") {
		array, err := ParseArray(value)
		if err != nil {
			return err
		}
		*a.list = append(*a.list, array)
	}
	return nil
}

func (a *arrays) Type() string {
	return "arrays"
}

// Arrays returns a flag to pass the array pool of a generator.
func Arrays(fs *pflag.FlagSet, name, doc string) *[]generate.Array {
	var list []generate.Array
	fs.Var(&arrays{&list}, name, doc)
	return &list
}

type mappings struct {
	list *[]skeleton.Mapping
}

func (m *mappings) String() string {
	ss := make([]string, len(*m.list))
	for i, mapping := range *m.list {
		ss[i] = mapping.String()
	}
	return strings.Join(ss, " ")
}

// ParseMapping parses family=choice|choice|... into a mapping.
// A family ending with ! is a finite pool.
// Choices are separated by | since statements and expressions may contain commas.
func ParseMapping(s string) (skeleton.Mapping, error) {
	family, choices, err := cut(s)
	if err != nil {
		return skeleton.Mapping{}, err
	}
	m := skeleton.Mapping{Family: family}
	if strings.HasSuffix(family, "!") {
		m.Family = strings.TrimSuffix(family, "!")
		m.Finite = true
	}
	m.Choices = splitList(choices, "|")
	if len(m.Choices) == 0 {
		return m, errors.Errorf("family %s: no choice", m.Family)
	}
	return m, nil
}

// Set appends one mapping: a single flag value is never split on commas.
func (m *mappings) Set(value string) error {
	mapping, err := ParseMapping(value)
	if err != nil {
		return err
	}
	*m.list = append(*m.list, mapping)
	return nil
}

func (m *mappings) Type() string {
	return "mapping"
}

// Mappings returns a repeatable flag to pass the families filling the holes of a skeleton.
func Mappings(fs *pflag.FlagSet, name, doc string) *[]skeleton.Mapping {
	var list []skeleton.Mapping
	fs.Var(&mappings{&list}, name, doc)
	return &list
}
