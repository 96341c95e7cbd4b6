package cobyqa

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// eps is the machine epsilon used throughout the mixed absolute/relative
// tolerances mandated by the swap-update, merit-comparison, and
// interpolation-consistency checks.
const eps = 2.220446049250313e-16

// tiny is the smallest normalized positive float64, used as the guard
// against division by (near) zero in the merit function and the swap
// update, exactly as in the reference implementation.
const tiny = 2.2250738585072014e-308

// maxAbs returns the maximum absolute value of s, or 0 for an empty slice.
func maxAbs(s []float64) float64 {
	m := 0.0
	for _, v := range s {
		a := math.Abs(v)
		if a > m {
			m = a
		}
	}
	return m
}

// maxAbsDense returns the maximum absolute value of every entry of the
// rows×cols matrix read through at, or 1 if it has no entries.
func maxAbsDense(rows, cols int, at func(i, j int) float64) float64 {
	if rows == 0 || cols == 0 {
		return 1
	}
	best := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a := math.Abs(at(i, j))
			if a > best {
				best = a
			}
		}
	}
	return best
}

// dot is a thin wrapper over floats.Dot kept local so call sites read like
// plain inner-product notation.
func dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// axpy computes dst += alpha*x, returning dst.
func axpy(dst []float64, alpha float64, x []float64) []float64 {
	floats.AddScaled(dst, alpha, x)
	return dst
}

// scaled returns a new slice equal to alpha*x.
func scaled(alpha float64, x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	floats.Scale(alpha, y)
	return y
}

// sub returns a new slice equal to a-b.
func sub(a, b []float64) []float64 {
	y := make([]float64, len(a))
	copy(y, a)
	floats.Sub(y, b)
	return y
}

// add returns a new slice equal to a+b.
func add(a, b []float64) []float64 {
	y := make([]float64, len(a))
	copy(y, a)
	floats.Add(y, b)
	return y
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
