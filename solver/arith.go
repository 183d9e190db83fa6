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
	"golang.org/x/exp/constraints"
)

// inf is the saturation limit of interval arithmetic.
// Any value beyond is treated as infinite. The sum of two values
// in [-inf, inf] never overflows an int64.
const inf = int64(1) << 62

func abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func gcd[T constraints.Integer](a, b T) T {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// floorDiv returns a/b rounded towards negative infinity.
func floorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ceilDiv returns a/b rounded towards positive infinity.
func ceilDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}

func isInf(v int64) bool {
	return v >= inf || v <= -inf
}

func clamp(v int64) int64 {
	switch {
	case v >= inf:
		return inf
	case v <= -inf:
		return -inf
	}
	return v
}

// addLo adds two lower bounds: -inf wins over +inf.
func addLo(a, b int64) int64 {
	switch {
	case a <= -inf || b <= -inf:
		return -inf
	case a >= inf || b >= inf:
		return inf
	}
	return clamp(a + b)
}

// addHi adds two upper bounds: +inf wins over -inf.
func addHi(a, b int64) int64 {
	switch {
	case a >= inf || b >= inf:
		return inf
	case a <= -inf || b <= -inf:
		return -inf
	}
	return clamp(a + b)
}

// satMul multiplies two values, saturating to ±inf.
func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	if isInf(a) || isInf(b) || abs(a) > inf/abs(b) {
		if neg {
			return -inf
		}
		return inf
	}
	return clamp(a * b)
}

// mulExact multiplies two values and reports an overflow beyond inf.
func mulExact(a, b int64) (int64, bool) {
	r := satMul(a, b)
	return r, !isInf(r)
}

// addExact adds two values and reports an overflow beyond inf.
func addExact(a, b int64) (int64, bool) {
	if isInf(a) || isInf(b) {
		return 0, false
	}
	r := clamp(a + b)
	return r, !isInf(r)
}

// interval is an inclusive range of integers. Empty if lo > hi.
type interval struct {
	lo, hi int64
}

func (iv interval) empty() bool {
	return iv.lo > iv.hi
}

func (iv interval) fixed() bool {
	return iv.lo == iv.hi
}

// width returns the number of values minus one, saturated.
func (iv interval) width() int64 {
	return addHi(iv.hi, -iv.lo)
}

func (iv interval) add(o interval) interval {
	return interval{lo: addLo(iv.lo, o.lo), hi: addHi(iv.hi, o.hi)}
}

func (iv interval) scale(c int64) interval {
	a, b := satMul(iv.lo, c), satMul(iv.hi, c)
	if a > b {
		a, b = b, a
	}
	return interval{lo: a, hi: b}
}

func (iv interval) mul(o interval) interval {
	res := interval{lo: inf, hi: -inf}
	for _, x := range [2]int64{iv.lo, iv.hi} {
		for _, y := range [2]int64{o.lo, o.hi} {
			p := satMul(x, y)
			res.lo = min(res.lo, p)
			res.hi = max(res.hi, p)
		}
	}
	return res
}

// pow returns the interval of x^k for x in the interval, k > 0.
func (iv interval) pow(k int) interval {
	r := iv
	for range k - 1 {
		r = r.mul(iv)
	}
	if k%2 == 0 && r.lo < 0 {
		r.lo = 0
	}
	return r
}

// closestToZero returns the value of the interval with the smallest magnitude.
func (iv interval) closestToZero() int64 {
	switch {
	case iv.lo > 0:
		return iv.lo
	case iv.hi < 0:
		return iv.hi
	}
	return 0
}
