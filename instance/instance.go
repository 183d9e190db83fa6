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

// Package instance binds the free variables of a pattern and sizes its arrays.
//
// An instance is created by drawing a random value for every free variable,
// then proving with a solver that every array access stays within the
// bounds of its array for every iteration of the loops. Arrays without a
// declared size are sized by the range of indices actually accessed.
package instance

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/base/stringseq"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/pkg/errors"
)

// ErrDeclaredSizeViolated is returned when an access reaches beyond
// the declared size of an array.
var ErrDeclaredSizeViolated = errors.New("declared array size violated")

// Instance is a pattern with all its free variables bound and all its arrays sized.
type Instance struct {
	// Pattern is the program with literal array sizes and no free variable.
	Pattern *ast.Program
	// Bounds of the arrays, in declaration order.
	Bounds *ordered.Map[string, *ArrayAccessBound]
}

func newInstance(pattern *ast.Program, bounds *ordered.Map[string, *ArrayAccessBound]) *Instance {
	for name, bound := range bounds.Iter() {
		decl := pattern.Decl(name)
		for dim, size := range bound.Sizes() {
			if decl.Sizes[dim] == nil {
				decl.Sizes[dim] = ast.NewInt(size)
			}
		}
	}
	return &Instance{Pattern: pattern, Bounds: bounds}
}

// Bound returns the bound of an array or nil.
func (inst *Instance) Bound(name string) *ArrayAccessBound {
	b, _ := inst.Bounds.Load(name)
	return b
}

// Clone returns a deep copy of the instance.
func (inst *Instance) Clone() *Instance {
	bounds := ordered.NewMap[string, *ArrayAccessBound]()
	for name, b := range inst.Bounds.Iter() {
		bounds.Store(name, b.Clone())
	}
	return &Instance{Pattern: ast.Clone(inst.Pattern), Bounds: bounds}
}

// Footprint returns the number of bytes of every array of the instance.
// Every declaration needs an element type (see AssignTypes).
func (inst *Instance) Footprint() (*ordered.Map[string, int64], error) {
	fp := ordered.NewMap[string, int64]()
	for name, b := range inst.Bounds.Iter() {
		decl := inst.Pattern.Decl(name)
		if decl.Type == "" {
			return nil, errors.Errorf("array %s has no element type", name)
		}
		dt, err := DataType(decl.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "array %s", name)
		}
		fp.Store(name, b.NumElements()*int64(dtype.Sizeof(dt)))
	}
	return fp, nil
}

// TotalFootprint returns the number of bytes of all the arrays of the instance.
func (inst *Instance) TotalFootprint() (int64, error) {
	fp, err := inst.Footprint()
	if err != nil {
		return 0, err
	}
	var total int64
	for size := range fp.Values() {
		total += size
	}
	return total, nil
}

func (inst *Instance) String() string {
	var b strings.Builder
	b.WriteString(inst.Pattern.String())
	names := slices.Sorted(inst.Bounds.Keys())
	if len(names) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	stringseq.Append(&b, func(yield func(string) bool) {
		for _, name := range names {
			if !yield(fmt.Sprintf("Array %s", inst.Bound(name))) {
				return
			}
		}
	}, "\n")
	return b.String()
}

// bindConsts replaces the free variables of a pattern by random values drawn
// in their range. The pattern is modified in place.
func bindConsts(pattern *ast.Program, vars *VariableMap, r *rand.Rand) (*ast.Program, error) {
	values := make(map[string]ast.Expr, len(pattern.Consts))
	for _, name := range pattern.ConstNames() {
		if lo, hi, ok := vars.FloatRange(name); ok {
			if lo > hi {
				return nil, errors.Errorf("empty range [%g, %g] for variable %s", lo, hi, name)
			}
			values[name] = &ast.Literal{Kind: ast.FloatLit, Float: lo + r.Float64()*(hi-lo)}
			continue
		}
		lo, hi := vars.Min(name), vars.Max(name)
		if lo > hi {
			return nil, errors.Errorf("empty range [%d, %d] for variable %s", lo, hi, name)
		}
		values[name] = ast.NewInt(lo + r.Int64N(hi-lo+1))
	}
	bound, err := ast.BindConsts(pattern, values)
	if err != nil {
		return nil, err
	}
	for _, decl := range bound.Decls {
		for i, size := range decl.Sizes {
			if size != nil {
				decl.Sizes[i] = ast.SimplifyExpr(size)
			}
		}
	}
	return bound, nil
}

// declareArrays adds a declaration with inferred sizes for every array
// accessed without a declaration.
func declareArrays(prog *ast.Program) error {
	arrays, err := ast.Arrays(prog)
	if err != nil {
		return err
	}
	for name, dims := range arrays.Iter() {
		if dims == 0 {
			continue
		}
		decl := prog.Decl(name)
		if decl == nil {
			prog.Decls = append(prog.Decls, &ast.Declaration{Name: name, Sizes: make([]ast.Expr, dims)})
			continue
		}
		if decl.NumDims() != dims {
			return errors.Errorf("array %s declared with %d dimensions but accessed with %d", name, decl.NumDims(), dims)
		}
	}
	return nil
}

// fixedSizes returns the declared sizes of the dimensions of a bound pattern.
// A dimension without a declared size is absent from the map.
func fixedSizes(prog *ast.Program) (map[string]int64, error) {
	sizes := make(map[string]int64)
	for _, decl := range prog.Decls {
		for dim, size := range decl.Sizes {
			if size == nil {
				continue
			}
			v, ok := ast.IntValue(size)
			if !ok {
				return nil, errors.Errorf("size %s of dimension %d of %s is not an integer constant", size, dim, decl.Name)
			}
			sizes[DimensionVar(decl.Name, dim)] = v
		}
	}
	return sizes, nil
}
