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
	"fmt"

	"github.com/loopgen/loopgen/base/uname"
	"github.com/loopgen/loopgen/build/ast"
	"github.com/loopgen/loopgen/depend"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Band is a sequence of consecutive dimensions of a loop.
type Band struct {
	Start, Depth int
}

func (b Band) String() string {
	return fmt.Sprintf("[%d:%d]", b.Start, b.Start+b.Depth)
}

// IsCompletelyPermutable returns true if the dimensions of a band of a loop
// can be reordered in any order. Dependences carried by a dimension before
// the band do not constrain the band. Other dependences must not have a
// component holding GT in the band.
func IsCompletelyPermutable(g *depend.Graph, loop *ast.Loop, band Band) bool {
	off := offset(loop)
	return lo.EveryBy(Dependences(g, loop), func(dep *depend.Dependence) bool {
		dv := dep.Direction
		carried := dv.CarriedBy()
		if carried >= 0 && carried < off+band.Start {
			return true
		}
		for _, d := range dv[off+band.Start : off+band.Start+band.Depth] {
			if d&depend.GT != 0 {
				return false
			}
		}
		return true
	})
}

// TilableNests returns the completely permutable bands of a loop,
// from the deepest to the shallowest.
func TilableNests(g *depend.Graph, loop *ast.Loop) []Band {
	var bands []Band
	n := len(loop.LoopShapes)
	for depth := n; depth > 0; depth-- {
		for start := 0; start+depth <= n; start++ {
			band := Band{Start: start, Depth: depth}
			if IsCompletelyPermutable(g, loop, band) {
				bands = append(bands, band)
			}
		}
	}
	return bands
}

// independentBounds returns true if the bounds of the dimensions of a band
// do not read the loop variables of the band.
func independentBounds(loop *ast.Loop, band Band) bool {
	shapes := loop.LoopShapes[band.Start : band.Start+band.Depth]
	for _, shape := range shapes {
		for _, other := range shapes {
			if uses(shape, other.VarName()) {
				return false
			}
		}
	}
	return true
}

// TileLoop returns the dimensions of a loop where a band is tiled.
// Every dimension of the band is split into a dimension iterating over tiles
// and a dimension iterating inside a tile. The tile dimensions come first.
// Tile loop variables are named by names.
func TileLoop(loop *ast.Loop, band Band, sizes []int64, names *uname.Unique) ([]*ast.LoopShape, error) {
	if len(sizes) != band.Depth {
		return nil, errors.Errorf("got %d tile sizes for band %s", len(sizes), band)
	}
	if band.Start < 0 || band.Start+band.Depth > len(loop.LoopShapes) {
		return nil, errors.Errorf("band %s out of the %d dimensions of the loop", band, len(loop.LoopShapes))
	}
	end := band.Start + band.Depth
	var tiles, points []*ast.LoopShape
	for i, shape := range loop.LoopShapes[band.Start:end] {
		tileVar := names.Name(shape.VarName() + "_tile")
		tileStep := ast.SimplifyExpr(ast.NewOp("*", ast.CloneExpr(shape.Step), ast.NewInt(sizes[i])))

		tile := ast.Clone(shape)
		tile.Var = ast.NewScalar(tileVar)
		tile.Step = tileStep
		tiles = append(tiles, tile)

		point := ast.Clone(shape)
		point.GreaterEq = ast.NewScalar(tileVar)
		last := ast.NewOp("+", ast.NewScalar(tileVar), ast.NewOp("-", ast.CloneExpr(tileStep), ast.NewInt(1)))
		point.LessEq = append(point.LessEq, ast.SimplifyExpr(last))
		points = append(points, point)
	}
	shapes := cloneShapes(loop.LoopShapes[:band.Start])
	shapes = append(shapes, tiles...)
	shapes = append(shapes, points...)
	shapes = append(shapes, cloneShapes(loop.LoopShapes[end:])...)
	return shapes, nil
}

// Tile returns a copy of a program where a random completely permutable
// band of every loop is tiled with random tile sizes in [2, MaxFactor].
// Loops without a band are left untouched. MaxFactor must be at least 2.
func Tile(ctx context.Context, prog *ast.Program, opts Options) (*ast.Program, error) {
	opts = opts.withDefaults()
	if opts.MaxFactor < 2 {
		return nil, errors.Errorf("maximum tile size %d is less than 2", opts.MaxFactor)
	}
	g, tagged, err := depend.Analyze(ctx, prog, opts.Analysis)
	if err != nil {
		return nil, err
	}
	type choice struct {
		band  Band
		sizes []int64
	}
	choices := make(map[ast.NodeID]choice)
	for _, loop := range ast.Loops(tagged) {
		bands := lo.Filter(TilableNests(g, loop), func(b Band, _ int) bool {
			return independentBounds(loop, b)
		})
		if len(bands) == 0 {
			continue
		}
		band := bands[opts.Rand.IntN(len(bands))]
		sizes := make([]int64, band.Depth)
		for i := range sizes {
			sizes[i] = 2 + opts.Rand.Int64N(opts.MaxFactor-1)
		}
		choices[loop.ID()] = choice{band: band, sizes: sizes}
	}
	res := ast.Clone(tagged)
	names := reserved(res)
	for _, loop := range ast.Loops(res) {
		c, ok := choices[loop.ID()]
		if !ok {
			continue
		}
		shapes, err := TileLoop(loop, c.band, c.sizes, names)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("tile", "loop", ast.LoopVars(loop.LoopShapes), "band", c.band.String(), "sizes", c.sizes)
		loop.LoopShapes = shapes
	}
	ast.Link(res)
	return res, nil
}
