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
)

// ArrayAccessBound is the range of indices accessed in every dimension of an array.
type ArrayAccessBound struct {
	Name  string
	Local bool
	// Min and Max are the inclusive bounds of the accessed indices of each dimension.
	Min, Max []int64

	hasMin, hasMax []bool
}

// NewArrayAccessBound returns a bound with no accessed index.
func NewArrayAccessBound(name string, local bool, numDims int) *ArrayAccessBound {
	return &ArrayAccessBound{
		Name:   name,
		Local:  local,
		Min:    make([]int64, numDims),
		Max:    make([]int64, numDims),
		hasMin: make([]bool, numDims),
		hasMax: make([]bool, numDims),
	}
}

// NumDims returns the number of dimensions of the array.
func (b *ArrayAccessBound) NumDims() int {
	return len(b.Min)
}

// NewMin lowers the minimum index of a dimension.
func (b *ArrayAccessBound) NewMin(dim int, index int64) {
	if !b.hasMin[dim] || index < b.Min[dim] {
		b.Min[dim], b.hasMin[dim] = index, true
	}
}

// NewMax raises the maximum index of a dimension.
func (b *ArrayAccessBound) NewMax(dim int, index int64) {
	if !b.hasMax[dim] || index > b.Max[dim] {
		b.Max[dim], b.hasMax[dim] = index, true
	}
}

// SetUnaccessedToDefault sets the bounds of dimensions never accessed.
// A missing bound takes the value of the other bound of its dimension, or 0.
func (b *ArrayAccessBound) SetUnaccessedToDefault() {
	for dim := range b.Min {
		switch {
		case !b.hasMin[dim] && !b.hasMax[dim]:
			b.Min[dim], b.Max[dim] = 0, 0
		case !b.hasMin[dim]:
			b.Min[dim] = b.Max[dim]
		case !b.hasMax[dim]:
			b.Max[dim] = b.Min[dim]
		}
		b.hasMin[dim], b.hasMax[dim] = true, true
	}
}

// Sizes returns the number of elements of every dimension: the maximum index plus one.
func (b *ArrayAccessBound) Sizes() []int64 {
	sizes := make([]int64, len(b.Max))
	for i, m := range b.Max {
		sizes[i] = m + 1
	}
	return sizes
}

// NumElements returns the total number of elements of the array.
func (b *ArrayAccessBound) NumElements() int64 {
	n := int64(1)
	for _, size := range b.Sizes() {
		n *= size
	}
	return n
}

// Clone returns a copy of the bound.
func (b *ArrayAccessBound) Clone() *ArrayAccessBound {
	return &ArrayAccessBound{
		Name:   b.Name,
		Local:  b.Local,
		Min:    slices.Clone(b.Min),
		Max:    slices.Clone(b.Max),
		hasMin: slices.Clone(b.hasMin),
		hasMax: slices.Clone(b.hasMax),
	}
}

// String returns the array with its sizes, for example A[10][5].
func (b *ArrayAccessBound) String() string {
	var s strings.Builder
	s.WriteString(b.Name)
	for _, size := range b.Sizes() {
		fmt.Fprintf(&s, "[%d]", size)
	}
	return s.String()
}

// Ranges returns the accessed ranges of the array, for example A[0:9][0:0].
func (b *ArrayAccessBound) Ranges() string {
	var s strings.Builder
	s.WriteString(b.Name)
	for dim := range b.Min {
		fmt.Fprintf(&s, "[%d:%d]", b.Min[dim], b.Max[dim])
	}
	return s.String()
}
