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

package fmt_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	lgfmt "github.com/loopgen/loopgen/base/fmt"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		txt  string
		want string
	}{
		{
			txt: `
declare A[];
A[0] = 1;
`,
			want: `
1 declare A[];
2 A[0] = 1;
`,
		},
		{
			txt: `
L1
L2
L3
L4
L5
L6
L7
L8
L9
L10
`,
			want: `
01 L1
02 L2
03 L3
04 L4
05 L5
06 L6
07 L7
08 L8
09 L9
10 L10
`,
		},
	}
	for _, test := range tests {
		got := lgfmt.Number(strings.TrimSpace(test.txt))
		want := strings.TrimSpace(test.want)
		if got != want {
			t.Errorf("got:\n%s\nbut want:\n%s\ndiff:\n%s", got, want, cmp.Diff(got, want))
		}
	}
}

func TestIndent(t *testing.T) {
	got := lgfmt.IndentSkip(1, 1, "for [i] {\nA[i] = 0;\n\n}")
	want := "for [i] {\n  A[i] = 0;\n\n  }"
	if got != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
	if got, want := lgfmt.Prefix(2), "    "; got != want {
		t.Errorf("got prefix %q but want %q", got, want)
	}
}
