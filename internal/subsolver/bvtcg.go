package subsolver

import "math"

// BVTCG computes an approximate solution to
//
//	min   g.(x-x0) + 1/2 (x-x0).Hv(x-x0)
//	s.t.  xl <= x <= xu,  ||x-x0|| <= delta
//
// returning the step x-x0. It runs truncated conjugate gradient in the
// step variable, started at zero, and stops (truncates) the moment a bound
// of the box, the trust-region ball, or a direction of non-positive
// curvature is met — the box-constrained analogue of Steihaug-Toint CG.
func BVTCG(x0, g []float64, hv HessProd, xl, xu []float64, delta float64) []float64 {
	n := len(x0)
	step := zeros(n)
	if delta <= 0 {
		return step
	}
	boxLo := subVec(xl, x0)
	boxHi := subVec(xu, x0)

	resid := clone(g)
	dir := make([]float64, n)
	for i := range dir {
		dir[i] = -resid[i]
	}
	rsOld := dot(resid, resid)
	if rsOld == 0 {
		return step
	}
	for iter := 0; iter < 2*n+10; iter++ {
		hd := hv(dir)
		curv := dot(dir, hd)

		thetaBox := boundedStepLength(step, dir, boxLo, boxHi, math.Inf(1))
		thetaBall := ballStepLength(step, dir, delta)
		thetaMax := math.Min(thetaBox, thetaBall)

		if curv <= 0 {
			axpyInto(step, thetaMax, dir)
			break
		}

		alpha := rsOld / curv
		if alpha > thetaMax {
			axpyInto(step, thetaMax, dir)
			break
		}
		axpyInto(step, alpha, dir)
		axpyInto(resid, alpha, hd)
		rsNew := dot(resid, resid)
		if rsNew < 1e-28 {
			break
		}
		beta := rsNew / rsOld
		for i := range dir {
			dir[i] = -resid[i] + beta*dir[i]
		}
		rsOld = rsNew
	}
	clampBox(step, boxLo, boxHi)
	clampBall(step, delta)
	return step
}

func subVec(a, b []float64) []float64 {
	y := make([]float64, len(a))
	for i := range a {
		y[i] = a[i] - b[i]
	}
	return y
}

func axpyInto(dst []float64, alpha float64, x []float64) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func addVec(a, b []float64) []float64 {
	y := make([]float64, len(a))
	for i := range a {
		y[i] = a[i] + b[i]
	}
	return y
}

// ballStepLength returns the largest theta >= 0 such that
// ||step + theta*dir|| <= delta.
func ballStepLength(step, dir []float64, delta float64) float64 {
	a := dot(dir, dir)
	if a == 0 {
		return math.Inf(1)
	}
	b := 2 * dot(step, dir)
	c := dot(step, step) - delta*delta
	disc := b*b - 4*a*c
	if disc < 0 {
		disc = 0
	}
	return (-b + math.Sqrt(disc)) / (2 * a)
}
