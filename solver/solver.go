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

// Package solver decides the satisfiability of integer constraints.
//
// Constraints are built from integer terms and comparisons. A Checker
// returns whether a conjunction of formulas is satisfiable together with
// a witness model. Two checkers are provided: a built-in bounded-integer
// decision procedure and a backend running the z3 binary.
//
// A checker may fail to decide. The Unknown status is never a proof:
// callers decide how to treat it.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout is the default timeout of a single check.
const DefaultTimeout = 10 * time.Second

// ErrBackend is returned when a backend fails to run.
var ErrBackend = errors.New("solver backend failure")

// Status of a satisfiability check.
type Status int

const (
	// Unknown means that the checker could not decide.
	Unknown Status = iota
	// Sat means that a model satisfying all the formulas exists.
	Sat
	// Unsat means that no model satisfies all the formulas.
	Unsat
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result of a satisfiability check.
type Result struct {
	Status Status
	// Model satisfies all the formulas when Status is Sat.
	Model Model
	// Reason explains an Unknown status.
	Reason string
}

func (r Result) String() string {
	switch r.Status {
	case Sat:
		return "sat " + r.Model.String()
	case Unknown:
		return "unknown: " + r.Reason
	}
	return r.Status.String()
}

// Checker checks the satisfiability of a conjunction of formulas.
type Checker interface {
	// Check returns the status of the conjunction of formulas.
	// An error is returned only if the checker failed to run.
	Check(ctx context.Context, fs []Formula) (Result, error)
}

// unknown returns an Unknown result.
func unknown(format string, a ...any) Result {
	return Result{Status: Unknown, Reason: fmt.Sprintf(format, a...)}
}
