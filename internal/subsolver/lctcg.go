package subsolver

import "math"

// LCTCG computes an approximate solution to
//
//	min   g.(x-x0) + 1/2 (x-x0).Hv(x-x0)
//	s.t.  xl <= x <= xu,  Aub*x <= bub,  Aeq*x = beq,  ||x-x0|| <= delta
//
// returning the step x-x0. The equality rows are enforced by projecting
// the search direction onto their null space at every iteration (via the
// normal equations, since the equality count is always small relative to
// n in practice); the inequality rows are treated as additional linear
// bounds on the step length, exactly like the box bounds of BVTCG.
func LCTCG(x0, g []float64, hv HessProd, aub [][]float64, bub []float64, aeq [][]float64, beq []float64, xl, xu []float64, delta float64) []float64 {
	n := len(x0)
	step := zeros(n)
	if delta <= 0 {
		return step
	}
	boxLo := subVec(xl, x0)
	boxHi := subVec(xu, x0)

	proj := nullSpaceProjector(aeq, n)

	resid := clone(g)
	proj(resid)
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
		proj(hd)
		curv := dot(dir, hd)

		thetaMax := boundedStepLength(step, dir, boxLo, boxHi, math.Inf(1))
		thetaMax = math.Min(thetaMax, ballStepLength(step, dir, delta))
		thetaMax = math.Min(thetaMax, linearStepLength(x0, step, dir, aub, bub))

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
		proj(resid)
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

// linearStepLength returns the largest theta >= 0 such that every
// inequality row a.(x0+step+theta*dir) <= b remains satisfied.
func linearStepLength(x0, step, dir []float64, aub [][]float64, bub []float64) float64 {
	theta := math.Inf(1)
	x := addVec(x0, step)
	for i, row := range aub {
		ad := dot(row, dir)
		if ad <= 0 {
			continue
		}
		slack := bub[i] - dot(row, x)
		t := slack / ad
		if t < theta {
			theta = t
		}
	}
	if theta < 0 {
		theta = 0
	}
	return theta
}

// nullSpaceProjector returns a function that projects a vector onto the
// null space of aeq in place, i.e. removes the component of v along
// range(Aeq^T), via the normal-equations solve of the small (meq x meq)
// Gram system Aeq*Aeq^T.
func nullSpaceProjector(aeq [][]float64, n int) func(v []float64) {
	meq := len(aeq)
	if meq == 0 {
		return func(v []float64) {}
	}
	gram := make([][]float64, meq)
	for i := range gram {
		gram[i] = make([]float64, meq)
		for j := 0; j < meq; j++ {
			gram[i][j] = dot(aeq[i], aeq[j])
		}
		gram[i][i] += 1e-12
	}
	return func(v []float64) {
		rhs := make([]float64, meq)
		for i := range rhs {
			rhs[i] = dot(aeq[i], v)
		}
		lambda := solveSymmetric(gram, rhs)
		for i, row := range aeq {
			axpyInto(v, -lambda[i], row)
		}
	}
}

// solveSymmetric solves a*x = b for a small symmetric positive-definite
// system by Gauss-Jordan elimination with partial pivoting; meq is small
// (at most the number of active linear/equality constraints) so this is
// never a bottleneck.
func solveSymmetric(a [][]float64, b []float64) []float64 {
	n := len(b)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = append(append([]float64{}, a[i]...), b[i])
	}
	for col := 0; col < n; col++ {
		piv := col
		best := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > best {
				best = math.Abs(aug[r][col])
				piv = r
			}
		}
		aug[col], aug[piv] = aug[piv], aug[col]
		if aug[col][col] == 0 {
			continue
		}
		pivVal := aug[col][col]
		for j := col; j <= n; j++ {
			aug[col][j] /= pivVal
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = aug[i][n]
	}
	return x
}
