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

// Package fmt provides utility methods for building string representations of loopgen objects.
package fmt

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// SpacesPerIndent is the number of spaces used for one level of indentation.
const SpacesPerIndent = 2

// Number adds a number prefix to all lines in a string.
func Number(x string) string {
	lines := slices.Collect(strings.Lines(x))
	numDigits := int(math.Log10(float64(len(lines)))) + 1
	fmtString := fmt.Sprintf("%%0%dd %%s", numDigits)
	var s strings.Builder
	for i, line := range lines {
		s.WriteString(fmt.Sprintf(fmtString, i+1, line))
	}
	return s.String()
}

// Prefix returns the whitespace for a given indentation depth.
func Prefix(depth int) string {
	return strings.Repeat(" ", depth*SpacesPerIndent)
}

// IndentSkip skips some lines and indent the rest by depth levels.
func IndentSkip(skip, depth int, x string) string {
	prefix := Prefix(depth)
	var y strings.Builder
	n := 0
	for line := range strings.Lines(x) {
		if n >= skip && strings.TrimSpace(line) != "" {
			y.WriteString(prefix)
		}
		y.WriteString(line)
		n++
	}
	return y.String()
}

// Indent the given string by one level.
func Indent(x string) string {
	return IndentSkip(0, 1, x)
}

// Lines joins the string representation of a list of elements,
// one element per line.
func Lines[T fmt.Stringer](xs []T) string {
	ss := make([]string, len(xs))
	for i, x := range xs {
		ss[i] = x.String()
	}
	return strings.Join(ss, "\n")
}
