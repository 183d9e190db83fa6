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

package ordered_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loopgen/loopgen/base/ordered"
)

type entry struct {
	K string
	V int
}

func collect(m *ordered.Map[string, int]) []entry {
	var got []entry
	for k, v := range m.Iter() {
		got = append(got, entry{K: k, V: v})
	}
	return got
}

func TestMap(t *testing.T) {
	tests := []struct {
		entries []entry
		deleted []string
		want    []entry
	}{
		{
			entries: []entry{
				{K: "i", V: 1},
				{K: "j", V: 2},
				{K: "k", V: 3},
			},
			want: []entry{
				{K: "i", V: 1},
				{K: "j", V: 2},
				{K: "k", V: 3},
			},
		},
		{
			entries: []entry{
				{K: "i", V: 1},
				{K: "j", V: 2},
				{K: "i", V: 3},
			},
			want: []entry{
				{K: "i", V: 3},
				{K: "j", V: 2},
			},
		},
		{
			entries: []entry{
				{K: "i", V: 1},
				{K: "j", V: 2},
				{K: "k", V: 3},
			},
			deleted: []string{"j", "unknown"},
			want: []entry{
				{K: "i", V: 1},
				{K: "k", V: 3},
			},
		},
		{
			entries: []entry{
				{K: "N", V: 1},
				{K: "N", V: 2},
			},
			deleted: []string{"N"},
		},
	}
	for ti, test := range tests {
		m := ordered.NewMap[string, int]()
		for _, entry := range test.entries {
			m.Store(entry.K, entry.V)
		}
		for _, k := range test.deleted {
			m.Delete(k)
		}
		if m.Size() != len(test.want) {
			t.Errorf("test %d: map has %d entries but want %d", ti, m.Size(), len(test.want))
			continue
		}
		m = m.Clone()
		if diff := cmp.Diff(test.want, collect(m)); diff != "" {
			t.Errorf("test %d: unexpected entries (-want +got):\n%s", ti, diff)
		}
		gotKeys := slices.Collect(m.Keys())
		var wantKeys []string
		var wantValues []int
		for _, e := range test.want {
			wantKeys = append(wantKeys, e.K)
			wantValues = append(wantValues, e.V)
		}
		if !cmp.Equal(gotKeys, wantKeys) {
			t.Errorf("test %d: got keys %v but want %v", ti, gotKeys, wantKeys)
		}
		if gotValues := slices.Collect(m.Values()); !cmp.Equal(gotValues, wantValues) {
			t.Errorf("test %d: got values %v but want %v", ti, gotValues, wantValues)
		}
	}
}

func TestLoadOrStore(t *testing.T) {
	m := ordered.NewMap[string, int]()
	if v, loaded := m.LoadOrStore("i", 4); loaded || v != 4 {
		t.Errorf("first LoadOrStore: got %d,%v but want 4,false", v, loaded)
	}
	if v, loaded := m.LoadOrStore("i", 5); !loaded || v != 4 {
		t.Errorf("second LoadOrStore: got %d,%v but want 4,true", v, loaded)
	}
	if !m.Has("i") || m.Has("j") {
		t.Errorf("Has: got i:%v j:%v but want i:true j:false", m.Has("i"), m.Has("j"))
	}
}
