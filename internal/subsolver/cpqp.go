package subsolver

import "math"

// CPQP computes an approximate minimizer, in step form (x-x0), of the
// convex piecewise-quadratic penalty
//
//	1/2 ||max(0, Aub*x - bub)||^2 + 1/2 ||Aeq*x - beq||^2
//
// subject to xl <= x <= xu and ||x-x0|| <= delta. It is the convex inner
// solve behind the Byrd-Omojokun normal step: the objective
// is smooth and convex (max(0,.)^2 is C^1), so projected gradient descent
// with a halving line search converges reliably without needing an
// active-set QP solver.
func CPQP(x0 []float64, aub [][]float64, bub []float64, aeq [][]float64, beq []float64, xl, xu []float64, delta float64) []float64 {
	n := len(x0)
	if delta <= 0 {
		return zeros(n)
	}
	boxLo := subVec(xl, x0)
	boxHi := subVec(xu, x0)

	penalty := func(step []float64) (float64, []float64) {
		x := addVec(x0, step)
		val := 0.0
		grad := zeros(n)
		for i, row := range aub {
			r := dot(row, x) - bub[i]
			if r > 0 {
				val += 0.5 * r * r
				axpyInto(grad, r, row)
			}
		}
		for i, row := range aeq {
			r := dot(row, x) - beq[i]
			val += 0.5 * r * r
			axpyInto(grad, r, row)
		}
		return val, grad
	}

	step := zeros(n)
	if len(aub) == 0 && len(aeq) == 0 {
		return step
	}
	val, grad := penalty(step)
	if val == 0 {
		return step
	}
	lip := lipschitzEstimate(aub, aeq)
	stepSize := 1.0
	if lip > 0 {
		stepSize = 1.0 / lip
	}
	for iter := 0; iter < 200; iter++ {
		trial := clone(step)
		axpyInto(trial, -stepSize, grad)
		clampBox(trial, boxLo, boxHi)
		clampBall(trial, delta)
		newVal, newGrad := penalty(trial)
		if newVal <= val-1e-14 || math.Abs(newVal-val) < 1e-15 {
			step = trial
			if math.Abs(val-newVal) < 1e-14*math.Max(1, val) {
				val = newVal
				break
			}
			val, grad = newVal, newGrad
			stepSize *= 1.1
			continue
		}
		stepSize *= 0.5
		if stepSize < 1e-16 {
			break
		}
	}
	return step
}

// lipschitzEstimate returns a crude Lipschitz constant for the gradient of
// the penalty function, used only to pick a stable initial step size for
// the projected-gradient iteration.
func lipschitzEstimate(aub, aeq [][]float64) float64 {
	s := 0.0
	for _, row := range aub {
		s += dot(row, row)
	}
	for _, row := range aeq {
		s += dot(row, row)
	}
	if s == 0 {
		return 1
	}
	return s
}
