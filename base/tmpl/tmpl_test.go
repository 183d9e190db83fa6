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

package tmpl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/base/tmpl"
)

type report struct {
	Name  string
	Stmts []string
	Body  string
}

func TestIterateTmpl(t *testing.T) {
	tp, err := tmpl.New("report", `{{.Name}}: {{join .Stmts "; "}}
{{indent .Body}}`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.IterateTmpl([]report{
		{Name: "L0", Stmts: []string{"A[i] = 0", "B[i] = A[i]"}, Body: "for [i]"},
		{Name: "L1", Body: "for [j]"},
	}, tp)
	if err != nil {
		t.Fatal(err)
	}
	want := "L0: A[i] = 0; B[i] = A[i]\n  for [i]\nL1: \n  for [j]"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	if _, err := tmpl.New("bad", "{{.Name"); err == nil {
		t.Errorf("got no parse error")
	}
	tp, err := tmpl.New("missing", "{{.Missing}}")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpl.Execute(tp, report{}); err == nil {
		t.Errorf("got no execution error")
	}
}
