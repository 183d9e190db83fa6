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
package stringseq_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/loopgen/loopgen/base/stringseq"
)

type name string

func (n name) String() string { return "<" + string(n) + ">" }

func TestAppend(t *testing.T) {
	var b strings.Builder
	stringseq.Append(&b, slices.Values([]string{"i", "j", "k"}), ", ")
	if got, want := b.String(), "i, j, k"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got, want := stringseq.JoinStringer(slices.Values([]name{"A", "B"}), "\n"), "<A>\n<B>"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got := stringseq.JoinStringer(slices.Values([]name{}), ","); got != "" {
		t.Errorf("got %q but want an empty string", got)
	}
}
