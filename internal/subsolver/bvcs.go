package subsolver

import "math"

// CurvFunc evaluates the curvature of a quadratic function along a
// direction, i.e. d.(H*d) for the quadratic's Hessian H.
type CurvFunc func(d []float64) float64

// BVCS computes a constrained Cauchy step for the Lagrange polynomial with
// gradient g and curvature function curv at xpt[kopt], subject to the box
// bounds and a trust-region radius delta. It tries the steepest-ascent
// direction of the polynomial in both signs (since the polynomial's
// absolute value, not its value, is what geometry improvement cares about)
// and returns whichever step yields the larger |step deviation|, along
// with that value.
func BVCS(xpt [][]float64, kopt int, g []float64, curv CurvFunc, xl, xu []float64, delta float64) ([]float64, float64) {
	n := len(xl)
	x0 := xpt[kopt]
	boxLo := subVec(xl, x0)
	boxHi := subVec(xu, x0)

	bestStep := zeros(n)
	bestVal := 0.0
	for _, sign := range []float64{1, -1} {
		d := scale(sign, g)
		nrm := normOf(d)
		if nrm == 0 {
			continue
		}
		unit := scale(1/nrm, d)
		tmax := boundedStepLength(zeros(n), unit, boxLo, boxHi, delta)
		if tmax <= 0 {
			continue
		}
		slope := dot(g, unit)
		c := curv(unit)
		t := tmax
		if c > 0 {
			tStar := -slope / c
			if tStar > 0 && tStar < tmax {
				t = tStar
			}
		}
		val := t*slope + 0.5*t*t*c
		if math.Abs(val) > math.Abs(bestVal) {
			bestVal = val
			bestStep = scale(t, unit)
		}
	}
	clampBox(bestStep, boxLo, boxHi)
	clampBall(bestStep, delta)
	return bestStep, bestVal
}
