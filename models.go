package cobyqa

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/derivfree/cobyqa/internal/subsolver"
)

// Models owns the interpolation set, the factorization, and one standard
// and one alternative quadratic per function (objective plus every
// nonlinear constraint), and mediates updates, resets, geometry
// improvement, and residual computation.
type Models struct {
	n, npt                   int
	mlub, mleq, mnlub, mnleq int

	xl, xu []float64
	aub    *mat.Dense
	bub    []float64
	aeq    *mat.Dense
	beq    []float64

	pts  *pointSet
	fact *kktFactor

	objStd, objAlt *Quadratic
	cubStd, cubAlt []*Quadratic
	ceqStd, ceqAlt []*Quadratic

	fun ObjectiveFunc
	cub ConstraintFunc
	ceq ConstraintFunc

	nfev int
	opts resolvedOptions
}

// newModels constructs the initial interpolation set, factorization, and
// quadratics. Bounds, linear-constraint data, and x0 are
// given in the caller's original coordinates; newModels performs the
// origin adjustment and stores everything relative to the resulting
// xbase.
func newModels(fun ObjectiveFunc, cub, ceq ConstraintFunc, x0, xl, xu []float64, aub *mat.Dense, bub []float64, aeq *mat.Dense, beq []float64, opts resolvedOptions) (*Models, error) {
	n := len(x0)
	npt := opts.npt
	rhobeg := opts.rhobeg

	xbase := make([]float64, n)
	for i := range x0 {
		v := x0[i]
		if v < xl[i] {
			v = xl[i]
		}
		if v > xu[i] {
			v = xu[i]
		}
		if v-xl[i] < rhobeg && xl[i] < xu[i] {
			if xu[i]-xl[i] <= rhobeg {
				v = xl[i]
			} else {
				v = xl[i] + rhobeg
			}
		} else if xu[i]-v < rhobeg && xl[i] < xu[i] {
			v = xu[i] - rhobeg
		}
		xbase[i] = v
	}

	shiftedXl := sub(xl, xbase)
	shiftedXu := sub(xu, xbase)

	var mlub, mleq int
	var shiftedBub, shiftedBeq []float64
	if aub != nil {
		mlub, _ = aub.Dims()
		shiftedBub = make([]float64, mlub)
		for i := 0; i < mlub; i++ {
			shiftedBub[i] = bub[i] - dot(aub.RawRowView(i), xbase)
		}
	}
	if aeq != nil {
		mleq, _ = aeq.Dims()
		shiftedBeq = make([]float64, mleq)
		for i := 0; i < mleq; i++ {
			shiftedBeq[i] = beq[i] - dot(aeq.RawRowView(i), xbase)
		}
	}

	xpt := initialLayout(n, npt, shiftedXl, shiftedXu, rhobeg)

	m := &Models{
		n: n, npt: npt,
		mlub: mlub, mleq: mleq,
		xl: shiftedXl, xu: shiftedXu,
		aub: aub, bub: shiftedBub,
		aeq: aeq, beq: shiftedBeq,
		fun: fun, cub: cub, ceq: ceq,
		opts: opts,
	}

	fval := make([]float64, npt)
	var cvalub, cvaleq *mat.Dense
	mnlub, mnleq := 0, 0
	rval := make([]float64, npt)
	for k := 0; k < npt; k++ {
		x := add(xbase, xpt.RawRowView(k))
		fval[k] = fun(x)
		var cu, ce []float64
		if cub != nil {
			cu = cub(x)
		}
		if ceq != nil {
			ce = ceq(x)
		}
		if k == 0 {
			mnlub, mnleq = len(cu), len(ce)
			cvalub = mat.NewDense(npt, maxInt(mnlub, 0), nil)
			cvaleq = mat.NewDense(npt, maxInt(mnleq, 0), nil)
		}
		cvalub.SetRow(k, cu)
		cvaleq.SetRow(k, ce)
		rval[k] = resid(xpt.RawRowView(k), aub, m.bub, aeq, m.beq, cu, ce, shiftedXl, shiftedXu)
	}
	m.mnlub, m.mnleq = mnlub, mnleq
	m.nfev = npt

	m.pts = &pointSet{xbase: xbase, xpt: xpt, fval: fval, cvalub: cvalub, cvaleq: cvaleq, rval: rval}

	b, z, idz, err := buildFactorization(xpt)
	if err != nil {
		return nil, err
	}
	m.fact = &kktFactor{B: b, Z: z, idz: idz}

	m.objStd = newQuadraticFromValues(b, z, idz, fval)
	m.objAlt = newQuadraticFromValues(b, z, idz, fval)
	m.cubStd = make([]*Quadratic, mnlub)
	m.cubAlt = make([]*Quadratic, mnlub)
	for i := 0; i < mnlub; i++ {
		col := mat.Col(nil, i, cvalub)
		m.cubStd[i] = newQuadraticFromValues(b, z, idz, col)
		m.cubAlt[i] = newQuadraticFromValues(b, z, idz, col)
	}
	m.ceqStd = make([]*Quadratic, mnleq)
	m.ceqAlt = make([]*Quadratic, mnleq)
	for i := 0; i < mnleq; i++ {
		col := mat.Col(nil, i, cvaleq)
		m.ceqStd[i] = newQuadraticFromValues(b, z, idz, col)
		m.ceqAlt[i] = newQuadraticFromValues(b, z, idz, col)
	}

	kopt := 0
	bestF, bestR := fval[0], rval[0]
	tol := 10 * eps * float64(npt) * math.Max(1, math.Abs(bestF))
	for k := 1; k < npt; k++ {
		if fval[k] < bestF-tol || (math.Abs(fval[k]-bestF) <= tol && rval[k] < bestR) {
			kopt, bestF, bestR = k, fval[k], rval[k]
		}
	}
	m.pts.kopt = kopt

	xk := xpt.RawRowView(kopt)
	for _, q := range m.allQuadratics() {
		q.ShiftExpansionPoint(xk, xpt)
	}

	return m, nil
}

// initialLayout builds the closed-form initial interpolation displacements:
// the origin, axis stencils of magnitude rhobeg, a second displacement per
// axis, and coordinate-pair points reusing the already chosen axis steps.
func initialLayout(n, npt int, xl, xu []float64, rhobeg float64) *mat.Dense {
	xpt := mat.NewDense(npt, n, nil)
	for k := 1; k <= n && k < npt; k++ {
		col := k - 1
		step := rhobeg
		if xu[col] <= rhobeg {
			step = -rhobeg
		}
		xpt.Set(k, col, step)
	}
	for k := n + 1; k <= 2*n && k < npt; k++ {
		col := k - n - 1
		first := xpt.At(k-n, col)
		step := -rhobeg
		if xl[col] >= -rhobeg {
			step = rhobeg
		}
		if step == first {
			if xu[col]-first >= rhobeg {
				step = 2 * rhobeg
			} else if xl[col]-first <= -rhobeg {
				step = -2 * rhobeg
			}
		}
		xpt.Set(k, col, step)
	}
	for k := 2*n + 1; k < npt; k++ {
		shift := (k - 2*n - 1) / n
		ipt := (k - 2*n - 1) - shift*n
		jpt := (ipt + shift) % n
		xpt.Set(k, ipt, xpt.At(ipt+1, ipt))
		xpt.Set(k, jpt, xpt.At(jpt+1, jpt))
	}
	return xpt
}

func (m *Models) allQuadratics() []*Quadratic {
	all := make([]*Quadratic, 0, 2+2*m.mnlub+2*m.mnleq)
	all = append(all, m.objStd, m.objAlt)
	all = append(all, m.cubStd...)
	all = append(all, m.cubAlt...)
	all = append(all, m.ceqStd...)
	all = append(all, m.ceqAlt...)
	return all
}

// Type classifies the problem by its most specific constraint structure
//, following the upstream solver's CUTEst-style letters.
func (m *Models) Type() ProblemType {
	tol := 10 * eps * float64(m.n)
	fixed := true
	bounded := false
	for i := 0; i < m.n; i++ {
		gap := m.xu[i] - m.xl[i]
		if math.IsInf(m.xl[i], -1) && math.IsInf(m.xu[i], 1) {
			fixed = false
			continue
		}
		bounded = true
		if gap > tol*math.Max(1, math.Abs(m.xu[i])) {
			fixed = false
		}
	}
	switch {
	case m.mnlub > 0 || m.mnleq > 0:
		return TypeOther
	case fixed && bounded:
		return TypeFixed
	case m.mlub > 0 || m.mleq > 0:
		return TypeLinear
	case bounded:
		return TypeBound
	default:
		return TypeUnconstrained
	}
}

// xopt returns the true coordinates (not the displacement) of the
// incumbent point.
func (m *Models) xopt() []float64 { return m.pts.xAt(m.pts.kopt) }

// betaVlag exposes the factorization's beta/vlag computation for a trial
// step from the incumbent.
func (m *Models) betaVlag(step []float64) (float64, []float64) {
	return m.fact.betaVlag(step, m.pts.xpt, m.pts.kopt)
}

// update replaces interpolation point knew (selected automatically when
// knew < 0) with xopt+step: the factorization is updated incrementally,
// and every quadratic is updated (standard incrementally, alternative
// from scratch). It leaves all state unchanged and returns
// ErrNumericBreakdown if the swap's denominator underflows.
func (m *Models) update(step []float64, knew int, fnew float64, cubNew, ceqNew []float64) error {
	beta, vlag := m.betaVlag(step)
	if knew < 0 {
		knew = m.fact.selectKNew(beta, vlag, m.pts.xpt, m.pts.kopt)
	}

	xopt := m.pts.xpt.RawRowView(m.pts.kopt)
	newRow := add(xopt, step)

	oldRow := append([]float64{}, m.pts.xpt.RawRowView(knew)...)

	kopt := m.pts.kopt
	fbase := m.pts.fval[kopt]
	diffs := make([]float64, 0, 2+m.mnlub+m.mnleq)
	diffs = append(diffs, fnew-(m.objStd.Eval(newRow, m.pts.xpt, kopt)+fbase))
	for i, v := range cubNew {
		base := mat.Col(nil, i, m.pts.cvalub)[kopt]
		diffs = append(diffs, v-(m.cubStd[i].Eval(newRow, m.pts.xpt, kopt)+base))
	}
	for i, v := range ceqNew {
		base := mat.Col(nil, i, m.pts.cvaleq)[kopt]
		diffs = append(diffs, v-(m.ceqStd[i].Eval(newRow, m.pts.xpt, kopt)+base))
	}

	if err := m.fact.swap(beta, vlag, knew); err != nil {
		return err
	}
	m.pts.xpt.SetRow(knew, newRow)

	idx := 0
	m.objStd.Update(m.pts.xpt, kopt, oldRow, m.fact.B, m.fact.Z, m.fact.idz, knew, diffs[idx])
	idx++
	for i := range m.cubStd {
		m.cubStd[i].Update(m.pts.xpt, kopt, oldRow, m.fact.B, m.fact.Z, m.fact.idz, knew, diffs[idx])
		idx++
	}
	for i := range m.ceqStd {
		m.ceqStd[i].Update(m.pts.xpt, kopt, oldRow, m.fact.B, m.fact.Z, m.fact.idz, knew, diffs[idx])
		idx++
	}

	m.pts.fval[knew] = fnew
	m.pts.cvalub.SetRow(knew, cubNew)
	m.pts.cvaleq.SetRow(knew, ceqNew)
	m.pts.rval[knew] = resid(newRow, m.aub, m.bub, m.aeq, m.beq, cubNew, ceqNew, m.xl, m.xu)
	m.nfev++

	m.objAlt = newQuadraticFromValues(m.fact.B, m.fact.Z, m.fact.idz, m.pts.fval)
	m.objAlt.ShiftExpansionPoint(m.pts.xpt.RawRowView(kopt), m.pts.xpt)
	for i := range m.cubAlt {
		col := mat.Col(nil, i, m.pts.cvalub)
		m.cubAlt[i] = newQuadraticFromValues(m.fact.B, m.fact.Z, m.fact.idz, col)
		m.cubAlt[i].ShiftExpansionPoint(m.pts.xpt.RawRowView(kopt), m.pts.xpt)
	}
	for i := range m.ceqAlt {
		col := mat.Col(nil, i, m.pts.cvaleq)
		m.ceqAlt[i] = newQuadraticFromValues(m.fact.B, m.fact.Z, m.fact.idz, col)
		m.ceqAlt[i].ShiftExpansionPoint(m.pts.xpt.RawRowView(kopt), m.pts.xpt)
	}

	return nil
}

// setKOpt reassigns the incumbent index, re-expanding every quadratic
// about the new point (used when a merit re-comparison after penalty
// doubling moves the incumbent).
func (m *Models) setKOpt(kopt int) {
	if kopt == m.pts.kopt {
		return
	}
	old := m.pts.xopt()
	m.pts.kopt = kopt
	newXk := m.pts.xopt()
	step := sub(newXk, old)
	for _, q := range m.allQuadratics() {
		q.ShiftExpansionPoint(step, m.pts.xpt)
	}
}

// shiftOrigin applies when ||xopt||^2 >= 10*delta^2: every stored point is
// translated by -xopt, B is updated in place for the translated geometry
// (Z and idz are unaffected by a pure translation), each quadratic's
// explicit Hessian absorbs the translation, and xbase absorbs the shift.
func (m *Models) shiftOrigin(delta float64) error {
	xi := append([]float64{}, m.pts.xpt.RawRowView(m.pts.kopt)...)
	xisq := dot(xi, xi)
	if xisq < 10*delta*delta {
		return nil
	}

	kopt := m.pts.kopt
	for _, q := range m.allQuadratics() {
		q.ShiftInterpolationPoints(m.pts.xpt, kopt)
	}
	m.fact.shiftOrigin(m.pts.xpt, xi)

	shifted := mat.DenseCopyOf(m.pts.xpt)
	rows, _ := shifted.Dims()
	for k := 0; k < rows; k++ {
		row := shifted.RawRowView(k)
		axpy(row, -1, xi)
	}
	m.pts.xpt = shifted

	if m.aub != nil {
		for i := range m.bub {
			m.bub[i] -= dot(m.aub.RawRowView(i), xi)
		}
	}
	if m.aeq != nil {
		for i := range m.beq {
			m.beq[i] -= dot(m.aeq.RawRowView(i), xi)
		}
	}
	axpy(m.xl, -1, xi)
	axpy(m.xu, -1, xi)
	axpy(m.pts.xbase, 1, xi)

	return nil
}

// resetModels rebuilds the alternative models from the current point
// values; it is used by the driver after a
// sequence of geometry steps to resynchronize model quality.
func (m *Models) resetModels() {
	b, z, idz := m.fact.B, m.fact.Z, m.fact.idz
	kopt := m.pts.kopt
	xk := m.pts.xpt.RawRowView(kopt)

	m.objAlt = newQuadraticFromValues(b, z, idz, m.pts.fval)
	m.objAlt.ShiftExpansionPoint(xk, m.pts.xpt)
	for i := range m.cubAlt {
		col := mat.Col(nil, i, m.pts.cvalub)
		m.cubAlt[i] = newQuadraticFromValues(b, z, idz, col)
		m.cubAlt[i].ShiftExpansionPoint(xk, m.pts.xpt)
	}
	for i := range m.ceqAlt {
		col := mat.Col(nil, i, m.pts.cvaleq)
		m.ceqAlt[i] = newQuadraticFromValues(b, z, idz, col)
		m.ceqAlt[i].ShiftExpansionPoint(xk, m.pts.xpt)
	}
}

// improveGeometry picks a displacement intended to improve the
// well-poisedness of the interpolation set at index knew:
// a line step along a chord (bvlag) and a constrained Cauchy step (bvcs)
// are both evaluated against the Lagrange polynomial for knew, and
// whichever yields the larger |vlag[knew]^2 + alpha*beta| is returned.
func (m *Models) improveGeometry(knew int, delta float64) []float64 {
	kopt := m.pts.kopt
	lag := newQuadraticLagrange(m.fact.B, m.fact.Z, m.fact.idz, knew)
	alpha := m.fact.alpha(knew)
	lag.ShiftExpansionPoint(m.pts.xpt.RawRowView(kopt), m.pts.xpt)
	glag := lag.Grad(m.pts.xpt.RawRowView(kopt), m.pts.xpt, kopt)

	xptRows := denseToRows(m.pts.xpt)
	lineStep := subsolver.BVLAG(xptRows, kopt, knew, glag, m.xl, m.xu, delta, alpha)

	curv := func(d []float64) float64 { return lag.Curv(d, m.pts.xpt) }
	cauchyStep, _ := subsolver.BVCS(xptRows, kopt, glag, curv, m.xl, m.xu, delta)

	scoreOf := func(step []float64) float64 {
		beta, vlag := m.betaVlag(step)
		v := vlag[knew]
		return absFloat(v*v + alpha*beta)
	}

	if scoreOf(lineStep) >= scoreOf(cauchyStep) {
		return lineStep
	}
	return cauchyStep
}

func denseToRows(d *mat.Dense) [][]float64 {
	r, _ := d.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = d.RawRowView(i)
	}
	return rows
}

// checkModels reports, for debug mode, the largest amount by which an
// interpolation residual (across the objective and every constraint
// model) exceeds its tolerance 10*sqrt(eps)*npt*max(1,||vals||inf); 0 or
// negative means every residual is within tolerance. It never alters
// control flow.
func (m *Models) checkModels() float64 {
	worst := 0.0
	kopt := m.pts.kopt
	fopt := m.pts.fval[kopt]
	tolBase := 10 * math.Sqrt(eps) * float64(m.npt)
	check := func(q *Quadratic, vals []float64, base float64) {
		tol := tolBase * math.Max(1, maxAbs(vals))
		for k := 0; k < m.npt; k++ {
			got := q.Eval(m.pts.xpt.RawRowView(k), m.pts.xpt, kopt) + base
			d := absFloat(got-vals[k]) - tol
			if d > worst {
				worst = d
			}
		}
	}
	check(m.objStd, m.pts.fval, fopt)
	for i := range m.cubStd {
		col := mat.Col(nil, i, m.pts.cvalub)
		check(m.cubStd[i], col, col[kopt])
	}
	for i := range m.ceqStd {
		col := mat.Col(nil, i, m.pts.cvaleq)
		check(m.ceqStd[i], col, col[kopt])
	}
	return worst
}
