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

package ast

import (
	"slices"

	"github.com/loopgen/loopgen/base/ordered"
	"github.com/pkg/errors"
)

func (n *Info) info() *Info {
	return n
}

type infoNode interface {
	info() *Info
}

// Link rebuilds the back-references of a tree:
// the surrounding block of every statement,
// the parent statement and the write flag of every access.
func Link(n Node) {
	switch nT := n.(type) {
	case *Program:
		linkBody(nT, nT.Body)
	case *Loop:
		for _, shape := range nT.LoopShapes {
			setParent(shape, nT, nil)
		}
		linkBody(nT, nT.Body)
	case *Assignment:
		setParent(nT.LHS, nT, nT.LHS)
		setParent(nT.RHS, nT, nT.LHS)
	}
}

func linkBody(b Block, stmts []Stmt) {
	for _, stmt := range stmts {
		stmt.setSurrounding(b)
		Link(stmt)
	}
}

func setParent(n Node, parent Stmt, lhs *Access) {
	if n == nil {
		return
	}
	Inspect(n, func(n Node) bool {
		acc, ok := n.(*Access)
		if !ok {
			return true
		}
		acc.parent = parent
		acc.IsWrite = acc == lhs
		return true
	})
}

// Tag assigns identifiers to all the nodes of a tree except
// declarations and constants, in pre-order starting at 1.
// Identifiers are preserved by Clone.
func Tag(root Node) {
	next := NodeID(0)
	Inspect(root, func(n Node) bool {
		switch n.(type) {
		case *Declaration, *Const:
			return false
		}
		if in, ok := n.(infoNode); ok {
			next++
			in.info().id = next
		}
		return true
	})
}

// FindByID returns the node with the given identifier or nil if none can be found.
func FindByID(root Node, id NodeID) Node {
	var found Node
	Inspect(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if in, ok := n.(infoNode); ok && in.info().id == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// ----------------------------------------------------------------------------
// Queries.

func collect[T Node](root Node, skipDecls bool) []T {
	var all []T
	Inspect(root, func(n Node) bool {
		switch n.(type) {
		case *Declaration, *Const:
			if skipDecls {
				return false
			}
		}
		if nT, ok := n.(T); ok {
			all = append(all, nT)
		}
		return true
	})
	return all
}

// Accesses returns all the accesses of a tree in pre-order,
// including accesses in indices and loop shapes.
// Declarations are ignored.
func Accesses(root Node) []*Access {
	return collect[*Access](root, true)
}

// Assignments returns all the assignments of a tree in source order.
func Assignments(root Node) []*Assignment {
	return collect[*Assignment](root, true)
}

// Loops returns all the loops of a tree in pre-order.
func Loops(root Node) []*Loop {
	return collect[*Loop](root, true)
}

// StatementHoles returns all the statement holes of a tree.
func StatementHoles(root Node) []*StatementHole {
	return collect[*StatementHole](root, true)
}

// Holes returns all the holes of a tree.
func Holes(root Node) []Hole {
	return collect[Hole](root, false)
}

// Ancestors returns the blocks surrounding a statement,
// from the outermost (usually a program) to the innermost.
func Ancestors(stmt Stmt) []Block {
	var blocks []Block
	for b := stmt.Surrounding(); b != nil; b = b.Surrounding() {
		blocks = append(blocks, b)
	}
	slices.Reverse(blocks)
	return blocks
}

// SurroundingLoops returns the loops surrounding a statement,
// from the outermost to the innermost.
func SurroundingLoops(stmt Stmt) []*Loop {
	var loops []*Loop
	for _, b := range Ancestors(stmt) {
		if loop, ok := b.(*Loop); ok {
			loops = append(loops, loop)
		}
	}
	return loops
}

// ShapesOf returns the loop dimensions of a list of blocks.
func ShapesOf[T Block](blocks []T) []*LoopShape {
	var shapes []*LoopShape
	for _, b := range blocks {
		shapes = append(shapes, b.Shapes()...)
	}
	return shapes
}

// LoopVars returns the names of the induction variables of a list of loop dimensions.
func LoopVars(shapes []*LoopShape) []string {
	vars := make([]string, len(shapes))
	for i, shape := range shapes {
		vars[i] = shape.VarName()
	}
	return vars
}

// AllLoopVars returns the names of all induction variables of a tree, without duplicate.
func AllLoopVars(root Node) []string {
	seen := ordered.NewMap[string, bool]()
	for _, loop := range Loops(root) {
		for _, name := range LoopVars(loop.LoopShapes) {
			seen.Store(name, true)
		}
	}
	return slices.Collect(seen.Keys())
}

// Arrays returns the number of dimensions of every variable accessed in a tree,
// in order of first access.
// An error is returned if a variable is accessed with different numbers of dimensions.
func Arrays(root Node) (*ordered.Map[string, int], error) {
	arrays := ordered.NewMap[string, int]()
	for _, acc := range Accesses(root) {
		if acc.Hole != nil {
			continue
		}
		prev, loaded := arrays.LoadOrStore(acc.Var, len(acc.Indices))
		if loaded && prev != len(acc.Indices) {
			return nil, errors.Errorf("variable %s accessed with %d and %d dimensions", acc.Var, prev, len(acc.Indices))
		}
	}
	return arrays, nil
}

// StmtIndex returns the position of a statement in the body of a block or -1.
func StmtIndex(b Block, stmt Stmt) int {
	return slices.IndexFunc(b.Stmts(), func(s Stmt) bool { return s == stmt })
}
