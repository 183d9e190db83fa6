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

package instance

import (
	"math/rand/v2"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/pkg/errors"
)

// dataTypes maps element type names to data types.
var dataTypes = map[string]dtype.DataType{
	"float":    dtype.Float32,
	"double":   dtype.Float64,
	"int":      dtype.Int32,
	"long":     dtype.Int64,
	"unsigned": dtype.Uint32,
	"bool":     dtype.Bool,
}

// DefaultTypes are the element types chosen when a variable has no type choices.
var DefaultTypes = []string{"float", "double", "int"}

// DataType returns the data type of an element type name.
func DataType(name string) (dtype.DataType, error) {
	dt, ok := dataTypes[name]
	if !ok {
		return dtype.Invalid, errors.Errorf("unknown element type %q", name)
	}
	return dt, nil
}

// TypeAssignment stores the possible element types of variables.
type TypeAssignment struct {
	defaults []string
	choices  map[string][]string
}

// NewTypeAssignment returns a type assignment choosing among default types
// for variables without choices. DefaultTypes is used if no default is given.
func NewTypeAssignment(defaults ...string) *TypeAssignment {
	if len(defaults) == 0 {
		defaults = DefaultTypes
	}
	return &TypeAssignment{
		defaults: slices.Clone(defaults),
		choices:  make(map[string][]string),
	}
}

// Set fixes the element type of a variable.
func (ta *TypeAssignment) Set(name, typ string) {
	ta.choices[name] = []string{typ}
}

// SetChoices sets the possible element types of a variable.
func (ta *TypeAssignment) SetChoices(name string, types ...string) {
	ta.choices[name] = slices.Clone(types)
}

// CanBe returns true if a variable can have a given element type.
func (ta *TypeAssignment) CanBe(name, typ string) bool {
	return slices.Contains(ta.candidates(name), typ)
}

func (ta *TypeAssignment) candidates(name string) []string {
	if types, ok := ta.choices[name]; ok && len(types) > 0 {
		return types
	}
	return ta.defaults
}

// Get returns an element type for a variable, chosen uniformly among its candidates.
func (ta *TypeAssignment) Get(name string, r *rand.Rand) string {
	types := ta.candidates(name)
	if len(types) == 1 {
		return types[0]
	}
	return types[r.IntN(len(types))]
}

// Validate checks that every candidate type has a known data type.
func (ta *TypeAssignment) Validate() error {
	check := func(types []string) error {
		for _, typ := range types {
			if _, err := DataType(typ); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(ta.defaults); err != nil {
		return err
	}
	for _, types := range ta.choices {
		if err := check(types); err != nil {
			return err
		}
	}
	return nil
}

// AssignTypes sets the type of the declarations of a program without a type.
// A declaration is added for every accessed variable that is neither declared
// nor a loop induction variable. The program is modified in place.
func AssignTypes(prog *ast.Program, ta *TypeAssignment, r *rand.Rand) error {
	arrays, err := ast.Arrays(prog)
	if err != nil {
		return err
	}
	loopVars := ast.AllLoopVars(prog)
	for name, dims := range arrays.Iter() {
		if prog.Decl(name) != nil || slices.Contains(loopVars, name) || dims == 0 {
			continue
		}
		prog.Decls = append(prog.Decls, &ast.Declaration{Name: name, Sizes: make([]ast.Expr, dims)})
	}
	for _, decl := range prog.Decls {
		if decl.Type == "" {
			decl.Type = ta.Get(decl.Name, r)
		}
	}
	return nil
}
