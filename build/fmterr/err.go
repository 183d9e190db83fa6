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

// Package fmterr formats errors attached to a position in pattern source.
package fmterr

import (
	"fmt"
	"go/token"
	"runtime/debug"

	"github.com/pkg/errors"
)

type (
	// Node is anything with a position in a pattern source.
	Node interface {
		Pos() token.Pos
	}

	// At is a raw position usable as a Node.
	At token.Pos

	// ErrorWithPos is an error attached to a position in pattern source.
	ErrorWithPos interface {
		error
		FSet() *token.FileSet
		Pos() token.Pos
		Err() error
	}

	errorWithPos struct {
		fset *token.FileSet
		pos  token.Pos
		err  error
	}
)

// Pos returns the position.
func (a At) Pos() token.Pos {
	return token.Pos(a)
}

// Position attaches a position to an error.
func Position(fset *token.FileSet, src Node, err error) ErrorWithPos {
	return errorWithPos{
		fset: fset,
		pos:  src.Pos(),
		err:  err,
	}
}

// Errorf returns a formatted error at a given position.
func Errorf(fset *token.FileSet, src Node, format string, a ...any) error {
	return Position(fset, src, errors.Errorf(format, a...))
}

// Internal wraps an error to signal an internal failure of loopgen.
func Internal(err error) error {
	return fmt.Errorf("loopgen internal error. This is a bug. Error:\n%+v", err)
}

// Internalf returns an internal error at a given position.
func Internalf(fset *token.FileSet, src Node, format string, a ...any) error {
	return Internal(Errorf(fset, src, format, a...))
}

func (err errorWithPos) Error() (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = fmt.Sprintf("recovered from panic when building error message: %T:\n%v", err.err, string(debug.Stack()))
	}()
	if err.fset == nil || !err.pos.IsValid() {
		return err.err.Error()
	}
	return PosString(err.fset, err.pos) + " " + err.err.Error()
}

// Unwrap returns the error without position.
func (err errorWithPos) Unwrap() error {
	return err.err
}

// Format the error.
func (err errorWithPos) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// FSet returns the fileset in which the position is defined.
func (err errorWithPos) FSet() *token.FileSet {
	return err.fset
}

// Pos returns the position of the error.
func (err errorWithPos) Pos() token.Pos {
	return err.pos
}

// Err returns the error without position.
func (err errorWithPos) Err() error {
	return err.err
}

// PosString returns a string location.
func PosString(fset *token.FileSet, pos token.Pos) string {
	return fset.Position(pos).String() + ":"
}

// PrefixWith returns a function to prefix errors with a formatted string.
func PrefixWith(s string, o ...any) func(err error) error {
	return func(err error) error {
		return fmt.Errorf("%s%w", fmt.Sprintf(s, o...), err)
	}
}
