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

package transform

import (
	"context"
	"slices"

	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/depend"
)

// Reorder the dimensions of a loop: the new dimension k is the old dimension order[k].
func Reorder(loop *ast.Loop, order []int) {
	shapes := slices.Clone(loop.LoopShapes)
	for k, from := range order {
		loop.LoopShapes[k] = shapes[from]
	}
}

// boundsAllow returns true if no dimension of a reordered loop has bounds
// reading the variable of a dimension that comes after it.
func boundsAllow(loop *ast.Loop, order []int) bool {
	for k, from := range order {
		for _, later := range order[k+1:] {
			if uses(loop.LoopShapes[from], loop.LoopShapes[later].VarName()) {
				return false
			}
		}
	}
	return true
}

// Interchange returns a copy of a program where the dimensions of every loop
// are randomly reordered. Only orders preserving the dependences are applied.
// A loop keeps its order if no legal order is drawn after MaxTries attempts.
func Interchange(ctx context.Context, prog *ast.Program, opts Options) (*ast.Program, error) {
	opts = opts.withDefaults()
	g, tagged, err := depend.Analyze(ctx, prog, opts.Analysis)
	if err != nil {
		return nil, err
	}
	return interchange(g, tagged, opts), nil
}

func interchange(g *depend.Graph, tagged *ast.Program, opts Options) *ast.Program {
	// Legality is decided on the analyzed program: the dependences of a
	// loop refer to the dimensions of its surrounding loops before they
	// are reordered.
	orders := make(map[ast.NodeID][]int)
	for _, loop := range ast.Loops(tagged) {
		for range opts.MaxTries {
			order := opts.Rand.Perm(len(loop.LoopShapes))
			if boundsAllow(loop, order) && IsPermutable(g, loop, order) {
				orders[loop.ID()] = order
				break
			}
		}
	}
	res := ast.Clone(tagged)
	for _, loop := range ast.Loops(res) {
		order, ok := orders[loop.ID()]
		if !ok {
			continue
		}
		opts.Logger.Debug("interchange", "loop", ast.LoopVars(loop.LoopShapes), "order", order)
		Reorder(loop, order)
	}
	ast.Link(res)
	return res
}
