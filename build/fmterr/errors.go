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

package fmterr

import (
	"fmt"
	"go/token"
	"strings"
)

type (
	// Errors is a list of errors.
	Errors struct {
		errs []error
	}

	// Appender appends positioned errors to a list
	// within the context of a FileSet.
	Appender struct {
		errors *Errors
		fset   *token.FileSet
		max    int
	}
)

// NewAppender returns a new appender adding errors to the list.
// The appender stops recording errors after max errors. No limit is applied if max <= 0.
func (errs *Errors) NewAppender(fset *token.FileSet, max int) *Appender {
	return &Appender{errors: errs, fset: fset, max: max}
}

// Append an error to the list. Always returns false.
func (errs *Errors) Append(err error) bool {
	errs.errs = append(errs.errs, err)
	return false
}

// Empty returns true if the list is empty.
func (errs *Errors) Empty() bool {
	return errs == nil || len(errs.errs) == 0
}

// Errors returns the list of errors.
func (errs *Errors) Errors() []error {
	if errs == nil {
		return nil
	}
	return append([]error{}, errs.errs...)
}

// ToError returns nil if the list is empty, the list otherwise.
func (errs *Errors) ToError() error {
	if errs.Empty() {
		return nil
	}
	if len(errs.errs) == 1 {
		return errs.errs[0]
	}
	return errs
}

func (errs *Errors) Error() string {
	ss := make([]string, len(errs.errs))
	for i, err := range errs.errs {
		ss[i] = err.Error()
	}
	return strings.Join(ss, "\n")
}

// Unwrap returns all the errors in the list.
func (errs *Errors) Unwrap() []error {
	return errs.Errors()
}

// Format the list of errors, one per line.
func (errs *Errors) Format(s fmt.State, verb rune) {
	flag := ""
	if s.Flag('+') {
		flag = "+"
	}
	for i, e := range errs.errs {
		if i > 0 {
			fmt.Fprint(s, "\n")
		}
		fmt.Fprintf(s, "%"+flag+string(verb), e)
	}
}

// Full returns true if no more errors can be recorded.
func (app *Appender) Full() bool {
	return app.max > 0 && len(app.errors.errs) >= app.max
}

// Append an error. Always returns false.
func (app *Appender) Append(err error) bool {
	if app.Full() {
		return false
	}
	return app.errors.Append(err)
}

// AppendAt appends an error at a given position. Always returns false.
func (app *Appender) AppendAt(node Node, err error) bool {
	return app.Append(Position(app.fset, node, err))
}

// Appendf appends a formatted error at a given position. Always returns false.
func (app *Appender) Appendf(node Node, format string, a ...any) bool {
	return app.Append(Errorf(app.fset, node, format, a...))
}

// FSet returns the fileset used to build the errors.
func (app *Appender) FSet() *token.FileSet {
	return app.fset
}

// Errors returns the list of errors or nil if no error has been recorded.
func (app *Appender) Errors() *Errors {
	if app.errors.Empty() {
		return nil
	}
	return app.errors
}
