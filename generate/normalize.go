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

package generate

import (
	"slices"
	"strings"

	"github.com/loopgen/loopgen/base/ordered"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/internal/exprdeps"
	"github.com/samber/lo"
)

// renameToOrder maps the names of used, in order, to the sorted names of pool.
func renameToOrder(names map[string]string, used []string, pool []string) {
	sorted := slices.Sorted(slices.Values(pool))
	for i, name := range used {
		names[name] = sorted[i]
	}
}

// usage returns the names of a pool in order of first use in a program.
func usage(prog *ast.Program, pool []string) []string {
	in := make(map[string]bool, len(pool))
	for _, name := range pool {
		in[name] = true
	}
	used := ordered.NewMap[string, bool]()
	for _, stmt := range prog.Body {
		for _, acc := range ast.Accesses(stmt) {
			if in[acc.Var] {
				used.Store(acc.Var, true)
			}
		}
	}
	return slices.Collect(used.Keys())
}

func normalizeLoopVars(prog *ast.Program, info *Info) {
	loopVars := make(map[string]string)
	renameToOrder(loopVars, ast.AllLoopVars(prog), info.LoopVars)
	names := make(map[string]string)
	for from, to := range loopVars {
		names[from] = to
		names[ast.GreaterEqName(from)] = ast.GreaterEqName(to)
		names[ast.LessEqName(from)] = ast.LessEqName(to)
	}
	ast.Rename(prog, names)
}

type arrayKind struct {
	numDims int
	local   bool
}

func normalizeArrays(prog *ast.Program, info *Info) {
	kinds := make(map[string]arrayKind)
	pools := make(map[arrayKind][]string)
	for _, a := range info.Arrays {
		k := arrayKind{numDims: a.NumDims, local: a.Local}
		kinds[a.Name] = k
		pools[k] = append(pools[k], a.Name)
	}
	used := usage(prog, lo.Map(info.Arrays, func(a Array, _ int) string { return a.Name }))
	prog.Decls = slices.DeleteFunc(prog.Decls, func(decl *ast.Declaration) bool {
		return !slices.Contains(used, decl.Name)
	})
	usedByKind := make(map[arrayKind][]string)
	for _, name := range used {
		k := kinds[name]
		usedByKind[k] = append(usedByKind[k], name)
	}
	names := make(map[string]string)
	for k, used := range usedByKind {
		renameToOrder(names, used, pools[k])
	}
	ast.Rename(prog, names)
}

// Normalize renames the loop variables, arrays and constants of a pattern
// generated from info. Every pool is renamed independently: the names of a
// pool used by the pattern are replaced by the first names of the pool in
// sorted order, in order of first use. Unused arrays and constants are
// removed. Declarations and constants are sorted by name.
func Normalize(prog *ast.Program, info *Info) {
	normalizeLoopVars(prog, info)
	normalizeArrays(prog, info)
	for _, pool := range [][]string{
		info.MulConsts,
		info.MaybeZeroMulConsts,
		info.AddConsts,
		info.DataConsts,
	} {
		names := make(map[string]string)
		renameToOrder(names, usage(prog, pool), pool)
		ast.Rename(prog, names)
	}
	slices.SortFunc(prog.Decls, func(a, b *ast.Declaration) int {
		return strings.Compare(a.Name, b.Name)
	})
	exprdeps.Infer(prog)
}
