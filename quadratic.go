package cobyqa

import "gonum.org/v1/gonum/mat"

// Quadratic represents a quadratic function of n variables constructed by
// underdetermined (least Frobenius-norm) interpolation on a moving point
// set. Its Hessian is stored in split form: an implicit
// part pq, indexed by interpolation points, and an optional explicit part
// hq that starts absent (interpreted as the zero matrix) and is populated
// only once a swap update or an origin shift requires it.
//
// A Quadratic carries no reference to the factorization or point set that
// produced it — every method that
// needs xpt, kopt, B, or Z receives them as arguments.
type Quadratic struct {
	gq []float64   // n: gradient at the expansion point
	pq []float64   // npt: implicit Hessian weights
	hq *mat.Dense  // n x n explicit Hessian; nil means zero
}

// newQuadraticFromValues builds the least-Frobenius-norm quadratic
// interpolating fval (length npt) on the interpolation set described by
// (b, z, idz).
func newQuadraticFromValues(b, z *mat.Dense, idz int, fval []float64) *Quadratic {
	npt, n := b.Dims()
	npt -= n // b has shape (npt+n, n)
	gq := make([]float64, n)
	for j := 0; j < n; j++ {
		col := mat.Col(nil, j, b.Slice(0, npt, 0, n))
		gq[j] = dot(col, fval)
	}
	return &Quadratic{gq: gq, pq: omegaProduct(z, idz, fval)}
}

// newQuadraticLagrange builds the k-th Lagrange polynomial of the
// interpolation set: the quadratic whose value is 1 at xpt[k] and 0 at
// every other interpolation point.
func newQuadraticLagrange(b, z *mat.Dense, idz, k int) *Quadratic {
	n := b.RawRowView(k)
	gq := make([]float64, len(n))
	copy(gq, n)
	return &Quadratic{gq: gq, pq: omegaProductIndex(z, idz, k)}
}

// hqOrZero returns hq, allocating and returning a fresh zero matrix if hq
// is absent, without mutating the receiver.
func (q *Quadratic) hqOrZero(n int) *mat.Dense {
	if q.hq == nil {
		return mat.NewDense(n, n, nil)
	}
	return q.hq
}

// Eval evaluates the quadratic at x, given the interpolation points xpt
// (npt x n) and the index kopt of the point defining the expansion point.
func (q *Quadratic) Eval(x []float64, xpt *mat.Dense, kopt int) float64 {
	delta := sub(x, xpt.RawRowView(kopt))
	val := dot(q.gq, delta)
	npt, _ := xpt.Dims()
	for k := 0; k < npt; k++ {
		xd := dot(xpt.RawRowView(k), delta)
		val += 0.5 * q.pq[k] * xd * xd
	}
	if q.hq != nil {
		val += 0.5 * quadForm(q.hq, delta)
	}
	return val
}

// Hessp returns the product of the quadratic's Hessian with x, given the
// interpolation points.
func (q *Quadratic) Hessp(x []float64, xpt *mat.Dense) []float64 {
	npt, n := xpt.Dims()
	hx := make([]float64, n)
	for k := 0; k < npt; k++ {
		row := xpt.RawRowView(k)
		coef := q.pq[k] * dot(row, x)
		axpy(hx, coef, row)
	}
	if q.hq != nil {
		axpy(hx, 1, matVec(q.hq, x))
	}
	return hx
}

// Grad returns the gradient of the quadratic at x.
func (q *Quadratic) Grad(x []float64, xpt *mat.Dense, kopt int) []float64 {
	delta := sub(x, xpt.RawRowView(kopt))
	return add(q.gq, q.Hessp(delta, xpt))
}

// Hess returns the full dense Hessian matrix of the quadratic.
func (q *Quadratic) Hess(xpt *mat.Dense) *mat.Dense {
	npt, n := xpt.Dims()
	h := mat.NewDense(n, n, nil)
	if q.hq != nil {
		h.Copy(q.hq)
	}
	for k := 0; k < npt; k++ {
		addOuterScaled(h, q.pq[k], xpt.RawRowView(k), xpt.RawRowView(k))
	}
	return h
}

// Curv returns the curvature x.(H*x) of the quadratic along x.
func (q *Quadratic) Curv(x []float64, xpt *mat.Dense) float64 {
	npt, _ := xpt.Dims()
	c := 0.0
	for k := 0; k < npt; k++ {
		xd := dot(xpt.RawRowView(k), x)
		c += q.pq[k] * xd * xd
	}
	if q.hq != nil {
		c += quadForm(q.hq, x)
	}
	return c
}

// ShiftExpansionPoint re-expresses the quadratic around xpt[kopt]+step
// instead of xpt[kopt];
// the constant term is never stored, so this only updates the gradient.
func (q *Quadratic) ShiftExpansionPoint(step []float64, xpt *mat.Dense) {
	axpy(q.gq, 1, q.Hessp(step, xpt))
}

// ShiftInterpolationPoints updates the quadratic's explicit Hessian to
// account for an origin shift that moves every interpolation point by
// -xpt[kopt]: the implicit part is unaffected (it is
// expressed relative to the, now-shifted, points themselves), so only the
// explicit part picks up the symmetric correction derived from pq.
func (q *Quadratic) ShiftInterpolationPoints(xpt *mat.Dense, kopt int) {
	npt, n := xpt.Dims()
	xk := xpt.RawRowView(kopt)
	temp := make([]float64, n)
	for k := 0; k < npt; k++ {
		row := xpt.RawRowView(k)
		hrow := make([]float64, n)
		for i := range hrow {
			hrow[i] = row[i] - 0.5*xk[i]
		}
		axpy(temp, q.pq[k], hrow)
	}
	h := q.hqOrZero(n)
	addOuterScaled(h, 1, temp, xk)
	addOuterScaled(h, 1, xk, temp)
	q.hq = h
}

// Update applies the incremental Powell update of step 7: the
// implicit contribution of the outgoing point knew is absorbed into the
// explicit Hessian, pq[knew] is reset, and diff*omega is distributed across
// pq and gq.
func (q *Quadratic) Update(xpt *mat.Dense, kopt int, xold []float64, b, z *mat.Dense, idz, knew int, diff float64) {
	npt, n := xpt.Dims()
	omega := omegaProductIndex(z, idz, knew)

	h := q.hqOrZero(n)
	addOuterScaled(h, q.pq[knew], xold, xold)
	q.hq = h

	q.pq[knew] = 0
	for k := 0; k < npt; k++ {
		q.pq[k] += diff * omega[k]
	}

	xk := xpt.RawRowView(kopt)
	temp := make([]float64, npt)
	for k := 0; k < npt; k++ {
		temp[k] = omega[k] * dot(xpt.RawRowView(k), xk)
	}
	bRow := b.RawRowView(knew)
	correction := make([]float64, n)
	copy(correction, bRow)
	for k := 0; k < npt; k++ {
		axpy(correction, temp[k], xpt.RawRowView(k))
	}
	axpy(q.gq, diff, correction)
}

// quadForm returns x.(A*x) for a square dense matrix A.
func quadForm(a *mat.Dense, x []float64) float64 {
	return dot(x, matVec(a, x))
}

// matVec returns A*x for a square dense matrix A.
func matVec(a *mat.Dense, x []float64) []float64 {
	n, _ := a.Dims()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = dot(a.RawRowView(i), x)
	}
	return y
}

// addOuterScaled adds alpha*u*v^T to m in place.
func addOuterScaled(m *mat.Dense, alpha float64, u, v []float64) {
	for i, ui := range u {
		if ui == 0 {
			continue
		}
		coef := alpha * ui
		for j, vj := range v {
			m.Set(i, j, m.At(i, j)+coef*vj)
		}
	}
}
