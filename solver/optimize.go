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

package solver

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// ErrUnbounded is returned when an objective has no optimum.
var ErrUnbounded = errors.New("objective is unbounded")

const maxProbes = 48

// Optimum is the result of an optimization.
type Optimum struct {
	Status Status
	// Value of the objective in Model when Status is Sat.
	Value int64
	Model Model
	// Reason explains an Unknown status.
	Reason string
}

func (o Optimum) String() string {
	switch o.Status {
	case Sat:
		return fmt.Sprintf("optimum %d at %v", o.Value, o.Model)
	case Unknown:
		return "unknown: " + o.Reason
	}
	return o.Status.String()
}

func bounded(fs []Formula, f Formula) []Formula {
	return append(slices.Clip(fs), f)
}

// Minimize returns the minimum value of an objective subject to formulas.
// The status is Unsat if the formulas are unsatisfiable and Unknown if
// a check could not be decided.
func Minimize(ctx context.Context, c Checker, fs []Formula, obj Term) (Optimum, error) {
	res, err := c.Check(ctx, fs)
	if err != nil {
		return Optimum{}, err
	}
	if res.Status != Sat {
		return Optimum{Status: res.Status, Reason: res.Reason}, nil
	}
	best, model := res.Model.Eval(obj), res.Model
	// Probe exponentially further steps below the best value.
	lo, found := int64(0), false
	for probe := range maxProbes {
		bound := best - int64(1)<<probe
		if bound <= -inf {
			break
		}
		res, err := c.Check(ctx, bounded(fs, Le(obj, C(bound))))
		if err != nil {
			return Optimum{}, err
		}
		switch res.Status {
		case Unknown:
			return Optimum{Status: Unknown, Reason: res.Reason}, nil
		case Sat:
			best, model = res.Model.Eval(obj), res.Model
			continue
		}
		lo, found = bound+1, true
		break
	}
	if !found {
		return Optimum{}, errors.Wrapf(ErrUnbounded, "cannot minimize %v", obj)
	}
	// Binary search between the lower bound and the best value.
	for lo < best {
		mid := lo + (best-lo)/2
		res, err := c.Check(ctx, bounded(fs, Le(obj, C(mid))))
		if err != nil {
			return Optimum{}, err
		}
		switch res.Status {
		case Unknown:
			return Optimum{Status: Unknown, Reason: res.Reason}, nil
		case Sat:
			best, model = res.Model.Eval(obj), res.Model
		default:
			lo = mid + 1
		}
	}
	return Optimum{Status: Sat, Value: best, Model: model}, nil
}

// Maximize returns the maximum value of an objective subject to formulas.
func Maximize(ctx context.Context, c Checker, fs []Formula, obj Term) (Optimum, error) {
	opt, err := Minimize(ctx, c, fs, Neg{X: obj})
	if err != nil {
		return opt, err
	}
	opt.Value = -opt.Value
	return opt, nil
}

// verify checks that no model goes beyond an optimum.
func verify(ctx context.Context, c Checker, fs []Formula, opt Optimum, beyond Formula) (Optimum, error) {
	if opt.Status != Sat {
		return opt, nil
	}
	res, err := c.Check(ctx, bounded(fs, beyond))
	if err != nil {
		return Optimum{}, err
	}
	switch res.Status {
	case Unsat:
		return opt, nil
	case Sat:
		return Optimum{}, errors.Errorf("optimum %d is not optimal: %v satisfies %v", opt.Value, res.Model, beyond)
	}
	return Optimum{Status: Unknown, Reason: "cannot verify optimum: " + res.Reason}, nil
}

// FindMin minimizes an objective and checks that no smaller value
// satisfies the formulas.
func FindMin(ctx context.Context, c Checker, fs []Formula, obj Term) (Optimum, error) {
	opt, err := Minimize(ctx, c, fs, obj)
	if err != nil {
		return opt, err
	}
	return verify(ctx, c, fs, opt, Lt(obj, C(opt.Value)))
}

// FindMax maximizes an objective and checks that no larger value
// satisfies the formulas.
func FindMax(ctx context.Context, c Checker, fs []Formula, obj Term) (Optimum, error) {
	opt, err := Maximize(ctx, c, fs, obj)
	if err != nil {
		return opt, err
	}
	return verify(ctx, c, fs, opt, Gt(obj, C(opt.Value)))
}
