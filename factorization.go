package cobyqa

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/derivfree/cobyqa/internal/linalg"
)

// kktFactor is the inverse-KKT factorization that parameterizes the
// least-Frobenius-norm quadratic models.
// The implicit npt×npt block of H⁻¹ is Z·J·Zᵀ, with J the idz-signed
// diagonal; the remaining npt+n columns (by symmetry, also rows) are B.
type kktFactor struct {
	B   *mat.Dense // (npt+n) x n
	Z   *mat.Dense // npt x (npt-n-1)
	idz int
}

// alpha returns Ω_kk = (Z J Zᵀ)_kk, the diagonal entry of the implicit
// npt-block used throughout the swap update and the geometry step.
func (f *kktFactor) alpha(k int) float64 {
	return omegaProductIndex(f.Z, f.idz, k)[k]
}

// buildFactorization constructs a fresh (B, Z, idz) for the interpolation
// geometry xpt (npt x n), independent of any previous factorization. It is
// used once, at initialization; the swap and origin-shift updates instead
// revise an existing factorization in place (see (*kktFactor).swap and
// (*kktFactor).shiftOrigin), since a from-scratch rebuild after every
// accepted point is far more expensive than Powell's rank-one update.
//
// The result satisfies the factorization invariant (the leading npt block
// equal to Z·J·Zᵀ, the remaining columns equal to B, idz counting the
// negative entries of the signature). It is derived directly from the
// bordered-KKT system that defines least-Frobenius-norm quadratic
// interpolation:
//
//	[[Φ, W], [Wᵀ, 0]] [p; c, g] = [fval; 0]
//
// with Φ_ij = ½(xpt_i·xpt_j)², W = [1, xpt]. Z spans an orthonormal basis
// of null(Wᵀ) rescaled so that ZᵀΦZ is a ±1 diagonal (its eigendecomposition
// supplies both the rescaling and idz), and B is read off the standard
// bordered-inverse block formula for this kind of saddle-point system.
func buildFactorization(xpt *mat.Dense) (*mat.Dense, *mat.Dense, int, error) {
	npt, n := xpt.Dims()
	nz := npt - n - 1

	w := mat.NewDense(npt, n+1, nil)
	for i := 0; i < npt; i++ {
		w.Set(i, 0, 1)
		for j := 0; j < n; j++ {
			w.Set(i, j+1, xpt.At(i, j))
		}
	}

	var qr mat.QR
	qr.Factorize(w)
	var q mat.Dense
	qr.QTo(&q)
	nullBasis := q.Slice(0, npt, n+1, npt) // npt x nz

	gram := mat.NewDense(npt, npt, nil)
	gram.Mul(xpt, xpt.T())
	phi := mat.NewDense(npt, npt, nil)
	for i := 0; i < npt; i++ {
		for j := 0; j < npt; j++ {
			v := gram.At(i, j)
			phi.Set(i, j, 0.5*v*v)
		}
	}

	var reduced mat.Dense
	reduced.Mul(phi, nullBasis)
	var reducedSq mat.Dense
	reducedSq.Mul(nullBasis.T(), &reduced)
	reducedSym := mat.NewSymDense(nz, nil)
	for i := 0; i < nz; i++ {
		for j := i; j < nz; j++ {
			v := 0.5 * (reducedSq.At(i, j) + reducedSq.At(j, i))
			reducedSym.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(reducedSym, true); !ok {
		return nil, nil, 0, &RestartIterationError{Reason: "eigendecomposition of reduced interpolation matrix failed"}
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, nz)
	for i := range order {
		order[i] = i
	}
	// stable partition: negative eigenvalues first, preserving relative
	// order, matching the "first idz columns are negative" convention.
	negIdx, posIdx := make([]int, 0, nz), make([]int, 0, nz)
	for _, i := range order {
		if vals[i] < 0 {
			negIdx = append(negIdx, i)
		} else {
			posIdx = append(posIdx, i)
		}
	}
	idz := len(negIdx)
	perm := append(negIdx, posIdx...)

	z := mat.NewDense(npt, nz, nil)
	jdiag := mat.NewDense(nz, nz, nil)
	for col, src := range perm {
		lambda := vals[src]
		scale := 1 / sqrtAbs(lambda)
		for row := 0; row < npt; row++ {
			var s float64
			for k := 0; k < nz; k++ {
				s += nullBasis.At(row, k) * vecs.At(k, src)
			}
			z.Set(row, col, s*scale)
		}
		jdiag.Set(col, col, math.Copysign(1, lambda))
	}

	// p = Z·J·Zᵀ, the leading npt×npt block of the inverse.
	p := mat.NewDense(npt, npt, nil)
	var pt mat.Dense
	pt.Mul(z, jdiag)
	p.Mul(&pt, z.T())

	var pPhi mat.Dense
	pPhi.Mul(p, phi)

	wtw := mat.NewDense(n+1, n+1, nil)
	wtw.Mul(w.T(), w)
	var wtwInv mat.Dense
	if err := wtwInv.Inverse(wtw); err != nil {
		return nil, nil, 0, &RestartIterationError{Reason: "singular interpolation geometry"}
	}

	ident := mat.NewDense(npt, npt, nil)
	for i := 0; i < npt; i++ {
		ident.Set(i, i, 1)
	}
	var iMinusPPhi mat.Dense
	iMinusPPhi.Sub(ident, &pPhi)
	var t mat.Dense
	t.Mul(&iMinusPPhi, w)
	t.Mul(&t, &wtwInv)

	var phiPMinusI mat.Dense
	phiPMinusI.Sub(&pPhi, ident)
	var wtPhi mat.Dense
	wtPhi.Mul(w.T(), phi)
	wtPhi.Mul(&wtPhi, &phiPMinusI)
	var m mat.Dense
	m.Mul(&wtPhi, w)
	m.Mul(&m, &wtwInv)
	m.Mul(&wtwInv, &m)

	b := mat.NewDense(npt+n, n, nil)
	for i := 0; i < npt; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, t.At(i, j+1))
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(npt+i, j, m.At(i+1, j+1))
		}
	}

	return b, z, idz, nil
}

func sqrtAbs(x float64) float64 {
	return math.Sqrt(math.Abs(x))
}

// betaVlag computes the Lagrange-polynomial values vlag (length npt+n)
// and the scalar beta for a trial displacement step from xpt[kopt].
func (f *kktFactor) betaVlag(step []float64, xpt *mat.Dense, kopt int) (float64, []float64) {
	npt, n := xpt.Dims()
	xi := xpt.RawRowView(kopt)

	c := make([]float64, npt)
	for k := 0; k < npt; k++ {
		xk := xpt.RawRowView(k)
		xd := dot(xk, step)
		xxi := dot(xk, xi)
		c[k] = xd * (0.5*xd + xxi)
	}

	t := make([]float64, f.Z.RawMatrix().Cols)
	for j := range t {
		col := mat.Col(nil, j, f.Z)
		t[j] = dot(col, c)
	}
	applyJ(t, f.idz)

	vlag := make([]float64, npt+n)
	for k := 0; k < npt; k++ {
		row := f.B.RawRowView(k)
		zrow := f.Z.RawRowView(k)
		vlag[k] = dot(row, step) + dot(zrow, t)
	}
	vlag[kopt] += 1

	for i := 0; i < n; i++ {
		col := mat.Col(nil, i, f.B.Slice(0, npt, 0, n))
		vlag[npt+i] = dot(col, c)
	}
	for i := 0; i < n; i++ {
		row := f.B.RawRowView(npt + i)
		vlag[npt+i] += dot(row, step)
	}

	dxi := dot(step, xi)
	ssq := dot(step, step)
	xisq := dot(xi, xi)
	beta := 0.0
	for j, v := range t {
		sign := 1.0
		if j < f.idz {
			sign = -1.0
		}
		beta += sign * v * v
	}
	beta += dxi*dxi + ssq*(xisq+2*dxi+0.5*ssq)
	beta -= dot(vlag[npt:], step)

	return beta, vlag
}

// selectKNew picks the interpolation point to discard when none is
// forced, maximizing |sigma_k| * ||xpt_k - xpt_kopt||^4, with sigma_k = alpha_k*beta + vlag_k^2.
func (f *kktFactor) selectKNew(beta float64, vlag []float64, xpt *mat.Dense, kopt int) int {
	npt, _ := xpt.Dims()
	xk := xpt.RawRowView(kopt)
	best := -1
	bestScore := -1.0
	for k := 0; k < npt; k++ {
		alpha := f.alpha(k)
		sigma := alpha*beta + vlag[k]*vlag[k]
		d := sub(xpt.RawRowView(k), xk)
		dsq := dot(d, d)
		score := absFloat(sigma) * dsq * dsq
		if score > bestScore {
			bestScore = score
			best = k
		}
	}
	return best
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// swap replaces interpolation point knew by xopt+step, updating (B, Z,
// idz) in place by the rank-one Givens update of Powell's inverse-KKT
// factorization update (the swap update this package names as its
// central algorithm) rather than rebuilding the factorization from
// scratch: zmat's knew-th row is first zeroed out (except its pivot and
// idz columns) by a sequence of Givens rotations, the scalar denominator
// sigma is formed from the resulting pivot columns, and both zmat and
// bmat are then updated from sigma, beta, and vlag alone. Computing diff
// = fnew - q_old(xopt+step) for each Quadratic's incremental update is
// the caller's responsibility; swap itself only owns the factorization.
// It fails with ErrNumericBreakdown when the denominator sigma
// underflows; the Givens rotations already applied to zmat by then only
// mix columns of equal sign in J, so Z·J·Zᵀ, B and idz are unchanged.
func (f *kktFactor) swap(beta float64, vlagIn []float64, knew int) error {
	npt, nz := f.Z.Dims()
	_, n := f.B.Dims()
	vlag := append([]float64(nil), vlagIn...)

	jdz := 0
	for j := 1; j < nz; j++ {
		switch {
		case j == f.idz:
			jdz = f.idz
		case f.Z.At(knew, j) != 0:
			cval := f.Z.At(knew, jdz)
			sval := f.Z.At(knew, j)
			linalg.Givens(f.Z, cval, sval, j, jdz, linalg.Columns)
			f.Z.Set(knew, j, 0)
		}
	}

	scala := f.Z.At(knew, 0)
	if f.idz != 0 {
		scala = -scala
	}
	scalb := 0.0
	if jdz != 0 {
		scalb = f.Z.At(knew, jdz)
	}
	omega := make([]float64, npt)
	for i := 0; i < npt; i++ {
		omega[i] = scala*f.Z.At(i, 0) + scalb*f.Z.At(i, jdz)
	}
	alpha := omega[knew]
	tau := vlag[knew]
	sigma := alpha*beta + tau*tau
	vlag[knew]--

	bmax := maxAbsDense(npt+n, n, f.B.At)
	zmax := maxAbsDense(npt, nz, f.Z.At)
	if absFloat(sigma) < tiny*maxFloat(bmax, zmax) {
		return ErrNumericBreakdown
	}

	reduce := false
	hval := math.Sqrt(absFloat(sigma))
	if jdz == 0 {
		scala = tau / hval
		scalb = f.Z.At(knew, 0) / hval
		for i := 0; i < npt; i++ {
			f.Z.Set(i, 0, scala*f.Z.At(i, 0)-scalb*vlag[i])
		}
		if sigma < 0 {
			if f.idz == 0 {
				f.idz = 1
			} else {
				reduce = true
			}
		}
	} else {
		kdz := 0
		if beta >= 0 {
			kdz = jdz
		}
		jdz -= kdz
		zKnewJdz := f.Z.At(knew, jdz)
		tempa := zKnewJdz * beta / sigma
		tempb := zKnewJdz * tau / sigma
		temp := f.Z.At(knew, kdz)
		scala = 1 / math.Sqrt(absFloat(beta)*temp*temp+tau*tau)
		scalb = scala * hval
		for i := 0; i < npt; i++ {
			v := tau*f.Z.At(i, kdz) - temp*vlag[i]
			f.Z.Set(i, kdz, v*scala)
		}
		for i := 0; i < npt; i++ {
			v := f.Z.At(i, jdz) - tempa*omega[i] - tempb*vlag[i]
			f.Z.Set(i, jdz, v*scalb)
		}
		if sigma <= 0 {
			if beta < 0 {
				f.idz++
			} else {
				reduce = true
			}
		}
	}
	if reduce {
		f.idz--
		for i := 0; i < npt; i++ {
			a, b := f.Z.At(i, 0), f.Z.At(i, f.idz)
			f.Z.Set(i, 0, b)
			f.Z.Set(i, f.idz, a)
		}
	}

	bsav := append([]float64(nil), f.B.RawRowView(knew)...)
	for j := 0; j < n; j++ {
		cosv := (alpha*vlag[npt+j] - tau*bsav[j]) / sigma
		sinv := (tau*vlag[npt+j] + beta*bsav[j]) / sigma
		for i := 0; i < npt; i++ {
			f.B.Set(i, j, f.B.At(i, j)+cosv*vlag[i]-sinv*omega[i])
		}
		for i := 0; i <= j; i++ {
			v := f.B.At(npt+i, j) + cosv*vlag[npt+i] - sinv*bsav[i]
			f.B.Set(npt+i, j, v)
		}
		for i := 0; i <= j; i++ {
			f.B.Set(npt+j, i, f.B.At(npt+i, j))
		}
	}

	return nil
}

// shiftOrigin updates B in place for the translation of every
// interpolation point by -xopt; Z and idz are unaffected, since a pure
// translation of the whole point set leaves the null space of W (and so
// the signature captured by idz) unchanged. xpt must still hold the
// pre-translation interpolation points, and xopt their kopt-th row.
func (f *kktFactor) shiftOrigin(xpt *mat.Dense, xopt []float64) {
	npt, n := xpt.Dims()
	_, nz := f.Z.Dims()
	xoptsq := dot(xopt, xopt)
	qoptsq := 0.25 * xoptsq

	updt := make([]float64, npt)
	hxpt := mat.NewDense(npt, n, nil)
	for k := 0; k < npt; k++ {
		row := xpt.RawRowView(k)
		updt[k] = dot(row, xopt) - 0.5*xoptsq
		for j := 0; j < n; j++ {
			hxpt.Set(k, j, row[j]-0.5*xopt[j])
		}
	}

	for k := 0; k < npt; k++ {
		brow := f.B.RawRowView(k)
		hrow := hxpt.RawRowView(k)
		step := make([]float64, n)
		for j := 0; j < n; j++ {
			step[j] = updt[k]*hrow[j] + qoptsq*xopt[j]
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				f.B.Set(npt+i, j, f.B.At(npt+i, j)+brow[i]*step[j]+step[i]*brow[j])
			}
		}
	}

	colSum := make([]float64, nz)
	for k := 0; k < npt; k++ {
		for c := 0; c < nz; c++ {
			colSum[c] += f.Z.At(k, c)
		}
	}
	temp2 := mat.NewDense(n, nz, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < nz; c++ {
			v := qoptsq * xopt[i] * colSum[c]
			for k := 0; k < npt; k++ {
				v += hxpt.At(k, i) * f.Z.At(k, c) * updt[k]
			}
			temp2.Set(i, c, v)
		}
	}

	for c := 0; c < nz; c++ {
		sign := 1.0
		if c < f.idz {
			sign = -1.0
		}
		for row := 0; row < npt; row++ {
			zv := f.Z.At(row, c)
			for col := 0; col < n; col++ {
				f.B.Set(row, col, f.B.At(row, col)+sign*zv*temp2.At(col, c))
			}
		}
		for row := 0; row < n; row++ {
			tv := temp2.At(row, c)
			for col := 0; col < n; col++ {
				f.B.Set(npt+row, col, f.B.At(npt+row, col)+sign*tv*temp2.At(col, c))
			}
		}
	}
}
