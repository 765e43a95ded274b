// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/cmp"
)

// assertNonZero constrains v != 0. A zero secret or nonce would make the
// derived commitments trivially forgeable, so circuits reject it outright.
func assertNonZero(api frontend.API, v frontend.Variable) {
	api.AssertIsEqual(api.IsZero(v), 0)
}

// assertInClosedRange constrains min <= v <= max for small constant bounds.
func assertInClosedRange(api frontend.API, v frontend.Variable, min, max int) {
	api.AssertIsLessOrEqual(min, v)
	api.AssertIsLessOrEqual(v, max)
}

// isGreaterThan returns 1 if a > b and 0 otherwise.
func isGreaterThan(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.Sub(1, cmp.IsLessOrEqual(api, a, b))
}

// isLessThan returns 1 if a < b and 0 otherwise.
func isLessThan(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return cmp.IsLess(api, a, b)
}
