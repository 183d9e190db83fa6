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
// Package stringseq writes iterator sequences as strings.
package stringseq

import (
	"fmt"
	"iter"
	"strings"
)

// AppendFunc appends f applied to every element of seq to a builder.
// sep is written between elements.
func AppendFunc[T any](b *strings.Builder, seq iter.Seq[T], sep string, f func(T) string) {
	first := true
	for item := range seq {
		if !first {
			b.WriteString(sep)
		}
		b.WriteString(f(item))
		first = false
	}
}

// Append appends the strings of seq to a builder, separated by sep.
func Append(b *strings.Builder, seq iter.Seq[string], sep string) {
	AppendFunc(b, seq, sep, func(s string) string { return s })
}

// AppendStringer appends the string representations of seq to a builder, separated by sep.
func AppendStringer[T fmt.Stringer](b *strings.Builder, seq iter.Seq[T], sep string) {
	AppendFunc(b, seq, sep, func(x T) string { return x.String() })
}

// JoinStringer joins the string representations of seq, separated by sep.
func JoinStringer[T fmt.Stringer](seq iter.Seq[T], sep string) string {
	var b strings.Builder
	AppendStringer(&b, seq, sep)
	return b.String()
}
