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
	"io"

	"github.com/pkg/errors"
)

type withStackTrace struct {
	err error
}

func format(err error, s fmt.State, verb rune) {
	switch verb {
	case 'v', 'w':
		if !s.Flag('+') {
			io.WriteString(s, err.Error())
			return
		}
		io.WriteString(s, err.Error())
		var st interface {
			StackTrace() errors.StackTrace
		}
		if errors.As(err, &st) {
			fmt.Fprintf(s, "\nError generated at:%+v\n", st.StackTrace())
		}
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

// ToStackTraceError returns an error printing the stack trace
// of where it was created when formatted with %+v.
func ToStackTraceError(err error) error {
	if err == nil {
		return nil
	}
	return withStackTrace{err: err}
}

func (err withStackTrace) Unwrap() error {
	return err.err
}

func (err withStackTrace) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

func (err withStackTrace) Error() string {
	return err.err.Error()
}
