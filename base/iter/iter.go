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
// Package iter provides iterators over the accesses and statements of patterns.
package iter

import "iter"

// All iterates over the elements of several slices in order.
func All[T any](slices ...[]T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, slice := range slices {
			for _, el := range slice {
				if !yield(el) {
					return
				}
			}
		}
	}
}

// Filter iterates over the elements of several slices for which keep returns true.
func Filter[T any](keep func(T) bool, slices ...[]T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for el := range All(slices...) {
			if keep(el) && !yield(el) {
				return
			}
		}
	}
}

// Pairs iterates over all pairs (s[i], s[j]) with i <= j.
// An element is paired with itself.
func Pairs[T any](s []T) iter.Seq2[T, T] {
	return func(yield func(T, T) bool) {
		for i := range s {
			for j := i; j < len(s); j++ {
				if !yield(s[i], s[j]) {
					return
				}
			}
		}
	}
}
