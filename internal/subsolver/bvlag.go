package subsolver

import "math"

// BVLAG selects a step from xpt[kopt] towards one of the other
// interpolation points, chosen among those chords to maximize a
// lower bound on the absolute value of the klag-th Lagrange polynomial,
// subject to the box bounds and a trust-region radius delta.
//
// glag is the gradient of the klag-th Lagrange polynomial at xpt[kopt]; the
// polynomial is approximated to first order along each candidate chord,
// which is exact enough to rank candidate directions (the true value is
// recomputed by the caller via the beta/vlag machinery once a step is
// chosen). alpha is unused beyond conditioning the caller's comparison and
// is accepted only to match the oracle's contract.
func BVLAG(xpt [][]float64, kopt, klag int, glag, xl, xu []float64, delta, alpha float64) []float64 {
	n := len(xl)
	x0 := xpt[kopt]
	base := 0.0
	if klag == kopt {
		base = 1.0
	}

	best := zeros(n)
	bestVal := math.Abs(base)

	for j := range xpt {
		if j == kopt {
			continue
		}
		d := subVec(xpt[j], x0)
		nrm := normOf(d)
		if nrm == 0 {
			continue
		}
		unit := scale(1/nrm, d)
		tmax := boundedStepLength(zeros(n), unit, subVec(xl, x0), subVec(xu, x0), delta)
		if tmax <= 0 {
			continue
		}
		slope := dot(glag, unit)
		t := tmax
		if slope < 0 {
			t = -tmax
			t = math.Max(t, -boundedStepLength(zeros(n), scale(-1, unit), subVec(xl, x0), subVec(xu, x0), delta))
		}
		val := math.Abs(base + t*slope)
		if val > bestVal {
			bestVal = val
			best = scale(t, unit)
		}
	}
	clampBox(best, subVec(xl, x0), subVec(xu, x0))
	clampBall(best, delta)
	return best
}

func scale(alpha float64, x []float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		y[i] = alpha * x[i]
	}
	return y
}
