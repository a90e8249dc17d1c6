// Package bounds maps the user's box-constrained search space to the unit
// cube the engine works in, and folds stray coordinates back into range.
package bounds

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// Normalizer is an affine map between the user space defined by lower/upper
// bound vectors and the normalized unit cube [0,1]^D. It is a pure
// transform; both directions allocate a fresh vector.
type Normalizer struct {
	lower []float64
	span  []float64
}

// NewNormalizer validates the bound vectors and builds the map. It returns
// an InvalidBoundsError when the lengths differ, any bound is non-finite, or
// any lower bound is not strictly below its upper bound.
func NewNormalizer(lower, upper []float64) (*Normalizer, error) {
	if len(lower) == 0 {
		return nil, &optimization.InvalidBoundsError{Index: -1, Reason: "empty bound vectors"}
	}
	if len(lower) != len(upper) {
		return nil, &optimization.InvalidBoundsError{Index: -1, Reason: "lower and upper lengths differ"}
	}
	for i := range lower {
		if math.IsNaN(lower[i]) || math.IsInf(lower[i], 0) ||
			math.IsNaN(upper[i]) || math.IsInf(upper[i], 0) {
			return nil, &optimization.InvalidBoundsError{Index: i, Reason: "non-finite bound"}
		}
		if lower[i] >= upper[i] {
			return nil, &optimization.InvalidBoundsError{Index: i, Reason: "lower bound not below upper bound"}
		}
	}

	span := make([]float64, len(lower))
	floats.SubTo(span, upper, lower)
	return &Normalizer{
		lower: append([]float64(nil), lower...),
		span:  span,
	}, nil
}

// Dim returns the dimensionality of the space.
func (n *Normalizer) Dim() int {
	return len(n.lower)
}

// ToUnit maps a user-space vector into the unit cube.
func (n *Normalizer) ToUnit(x []float64) []float64 {
	u := make([]float64, len(x))
	floats.SubTo(u, x, n.lower)
	floats.Div(u, n.span)
	return u
}

// FromUnit maps a unit-cube vector back into user space.
func (n *Normalizer) FromUnit(u []float64) []float64 {
	x := make([]float64, len(u))
	floats.MulTo(x, u, n.span)
	floats.Add(x, n.lower)
	return x
}

// Fold reflects v back into [lo, hi], folding at each boundary until the
// value lands in range. Reflection avoids the boundary pile-up that hard
// clamping produces.
func Fold(v, lo, hi float64) float64 {
	if lo >= hi {
		return lo
	}
	span := hi - lo
	for v < lo || v > hi {
		if v < lo {
			v = lo + (lo - v)
		} else {
			v = hi - (v - hi)
		}
		// A wildly out-of-range value can oscillate; wrap it into one
		// period first so the loop terminates quickly.
		if v < lo-span || v > hi+span {
			v = lo + math.Mod(math.Abs(v-lo), 2*span)
		}
	}
	return v
}

// FoldUnit reflects every coordinate of u into [0,1] in place and returns u.
func FoldUnit(u []float64) []float64 {
	for i, v := range u {
		u[i] = Fold(v, 0, 1)
	}
	return u
}
