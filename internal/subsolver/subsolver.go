// Package subsolver implements the constrained-QP subproblem oracles
// consumed by the trust-region iteration: trust-region
// minimization of a quadratic over a box (BVTCG), the same with additional
// linearized linear constraints (LCTCG), a convex piecewise-quadratic
// penalty minimization in a box and ball (CPQP), a Lagrange-polynomial line
// search for geometry improvement (BVLAG), and a constrained Cauchy step
// (BVCS). They are external collaborators of the core solver — the
// trust-region iteration never inspects their internals, only the step
// each one returns — so they are implemented here with simple, robust
// projected-gradient and conjugate-gradient iterations rather than
// Powell's original Fortran recursions.
package subsolver

import (
	"gonum.org/v1/gonum/floats"
)

// HessProd computes the product of a quadratic's Hessian with a vector.
type HessProd func(x []float64) []float64

// clampBox projects x onto the box [xl, xu] in place.
func clampBox(x, xl, xu []float64) {
	for i := range x {
		if x[i] < xl[i] {
			x[i] = xl[i]
		} else if x[i] > xu[i] {
			x[i] = xu[i]
		}
	}
}

// clampBall scales x down, if necessary, so that ||x|| <= radius.
func clampBall(x []float64, radius float64) {
	if radius <= 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}
	n := floats.Norm(x, 2)
	if n > radius {
		floats.Scale(radius/n, x)
	}
}

func normOf(x []float64) float64 { return floats.Norm(x, 2) }

func zeros(n int) []float64 { return make([]float64, n) }

func clone(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	return y
}

// boundedStepLength returns the largest theta in [0, max] such that
// x+theta*d stays within [xl,xu], componentwise.
func boundedStepLength(x, d, xl, xu []float64, max float64) float64 {
	theta := max
	for i := range x {
		if d[i] > 0 {
			t := (xu[i] - x[i]) / d[i]
			if t < theta {
				theta = t
			}
		} else if d[i] < 0 {
			t := (xl[i] - x[i]) / d[i]
			if t < theta {
				theta = t
			}
		}
	}
	if theta < 0 {
		theta = 0
	}
	return theta
}

func isZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}
