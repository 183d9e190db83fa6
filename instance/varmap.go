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
	"fmt"
	"slices"
	"strings"

	"github.com/loopgen/loopgen/base/ordered"
)

const (
	// DefaultMin is the default minimum value of a variable.
	DefaultMin = 0
	// DefaultMax is the default maximum value of a variable.
	DefaultMax = 999
)

// DimensionVar returns the name of the variable storing the size
// of a dimension of an array: A[] for the first dimension of A,
// A[][] for the second, etc.
func DimensionVar(name string, dim int) string {
	return name + strings.Repeat("[]", dim+1)
}

type limit struct {
	min, max       int64
	hasMin, hasMax bool

	// isFloat is set for variables bound to floating-point literals.
	isFloat            bool
	floatMin, floatMax float64
}

// VariableMap stores the range of values of variables.
// Variables without a range use the default range.
//
// Variables take integer values unless a floating-point range is set with
// SetFloatRange. Floating-point variables can only be used in data
// expressions: loop bounds, indices and array sizes are integers.
type VariableMap struct {
	DefaultMin, DefaultMax int64

	limits *ordered.Map[string, limit]
}

// NewVariableMap returns a variable map with a given default range.
func NewVariableMap(defaultMin, defaultMax int64) *VariableMap {
	return &VariableMap{
		DefaultMin: defaultMin,
		DefaultMax: defaultMax,
		limits:     ordered.NewMap[string, limit](),
	}
}

func (m *VariableMap) update(name string, f func(*limit)) {
	l, _ := m.limits.Load(name)
	f(&l)
	m.limits.Store(name, l)
}

// SetMin sets the minimum value of a variable.
func (m *VariableMap) SetMin(name string, v int64) {
	m.update(name, func(l *limit) { l.min, l.hasMin, l.isFloat = v, true, false })
}

// SetMax sets the maximum value of a variable.
func (m *VariableMap) SetMax(name string, v int64) {
	m.update(name, func(l *limit) { l.max, l.hasMax, l.isFloat = v, true, false })
}

// SetRange sets the minimum and maximum values of a variable.
func (m *VariableMap) SetRange(name string, lo, hi int64) {
	m.SetMin(name, lo)
	m.SetMax(name, hi)
}

// SetFloatRange sets the floating-point range of a variable.
// It replaces the integer range of the variable.
func (m *VariableMap) SetFloatRange(name string, lo, hi float64) {
	m.limits.Store(name, limit{isFloat: true, floatMin: lo, floatMax: hi})
}

// FloatRange returns the floating-point range of a variable.
// False is returned if the variable takes integer values.
func (m *VariableMap) FloatRange(name string) (lo, hi float64, ok bool) {
	l, found := m.limits.Load(name)
	if !found || !l.isFloat {
		return 0, 0, false
	}
	return l.floatMin, l.floatMax, true
}

// SetValue fixes the value of a variable.
func (m *VariableMap) SetValue(name string, v int64) {
	m.SetRange(name, v, v)
}

// Remove removes the range of a variable.
func (m *VariableMap) Remove(name string) {
	m.limits.Delete(name)
}

// HasMin returns true if a minimum has been set for a variable.
func (m *VariableMap) HasMin(name string) bool {
	l, ok := m.limits.Load(name)
	return ok && l.hasMin
}

// HasMax returns true if a maximum has been set for a variable.
func (m *VariableMap) HasMax(name string) bool {
	l, ok := m.limits.Load(name)
	return ok && l.hasMax
}

// Min returns the minimum value of a variable.
func (m *VariableMap) Min(name string) int64 {
	if l, ok := m.limits.Load(name); ok && l.hasMin {
		return l.min
	}
	return m.DefaultMin
}

// Max returns the maximum value of a variable.
func (m *VariableMap) Max(name string) int64 {
	if l, ok := m.limits.Load(name); ok && l.hasMax {
		return l.max
	}
	return m.DefaultMax
}

// Clone returns a copy of the map.
func (m *VariableMap) Clone() *VariableMap {
	return &VariableMap{
		DefaultMin: m.DefaultMin,
		DefaultMax: m.DefaultMax,
		limits:     m.limits.Clone(),
	}
}

func bound(v int64, ok bool) string {
	if !ok {
		return "_"
	}
	return fmt.Sprint(v)
}

func (m *VariableMap) String() string {
	names := slices.Sorted(m.limits.Keys())
	lines := make([]string, len(names))
	for i, name := range names {
		l, _ := m.limits.Load(name)
		if l.isFloat {
			lines[i] = fmt.Sprintf("Variable %s range [%g, %g]", name, l.floatMin, l.floatMax)
			continue
		}
		lines[i] = fmt.Sprintf("Variable %s range [%s, %s]", name, bound(l.min, l.hasMin), bound(l.max, l.hasMax))
	}
	return strings.Join(lines, "\n")
}
