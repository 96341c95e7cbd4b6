package cobyqa

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/derivfree/cobyqa/internal/linalg"
	"github.com/derivfree/cobyqa/internal/subsolver"
)

// penaltyState holds the penalty parameters and Lagrange-multiplier
// estimates used only by the merit function.
type penaltyState struct {
	muIneq, muEq float64
	lamLub       []float64 // linear inequality
	lamLeq       []float64 // linear equality
	lamNub       []float64 // nonlinear inequality
	lamNeq       []float64 // nonlinear equality
}

// Solver drives the trust-region iteration: it owns the penalty state,
// the incumbent index (via Models), merit evaluation, the composite step,
// the multiplier update, and the penalty update; it delegates model
// maintenance entirely to Models.
type Solver struct {
	models *Models
	pen    penaltyState
	opts   resolvedOptions

	// pendingKnew holds the point selected by PrepareModelStep for the
	// following ModelStep call; -1 means none is pending.
	pendingKnew int
	// lastIsGeom and lastKnew record which kind of step (and, for a
	// geometry step, which point) produced the displacement most
	// recently returned by TrustRegionStep/ModelStep, so that Update can
	// recover them without the caller repeating the choice.
	lastIsGeom bool
	lastKnew   int
}

// New constructs a Solver for the given objective, starting point,
// bounds, optional linear constraints (aub/bub, aeq/beq may be nil), and
// optional nonlinear constraints (cub/ceq may be nil). Keys in opts.Extra
// make New fail when opts.Debug is set; otherwise they are ignored after a
// warning through opts.Logger.
func New(fun ObjectiveFunc, x0, xl, xu []float64, aub *mat.Dense, bub []float64, aeq *mat.Dense, beq []float64, cub, ceq ConstraintFunc, opts Options) (*Solver, error) {
	n := len(x0)
	resolved := opts.resolve(n, xl, xu)
	if len(opts.Extra) > 0 {
		keys := make([]string, 0, len(opts.Extra))
		for k := range opts.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if opts.Debug {
			return nil, fmt.Errorf("cobyqa: unknown options %v", keys)
		}
		resolved.logf("cobyqa: ignoring unknown options %v", keys)
	}

	models, err := newModels(fun, cub, ceq, x0, xl, xu, aub, bub, aeq, beq, resolved)
	if err != nil {
		return nil, err
	}

	s := &Solver{
		models: models,
		opts:   resolved,
		pen: penaltyState{
			lamLub: make([]float64, models.mlub),
			lamLeq: make([]float64, models.mleq),
			lamNub: make([]float64, models.mnlub),
			lamNeq: make([]float64, models.mnleq),
		},
		pendingKnew: -1,
		lastKnew:    -1,
	}
	return s, nil
}

// KOpt returns the index of the incumbent interpolation point.
func (s *Solver) KOpt() int { return s.models.pts.kopt }

// XOpt returns the incumbent point in the caller's original coordinates.
func (s *Solver) XOpt() []float64 { return s.models.pts.xAt(s.models.pts.kopt) }

// FOpt returns the objective value at the incumbent.
func (s *Solver) FOpt() float64 { return s.models.pts.fval[s.models.pts.kopt] }

// MaxCV returns the incumbent's constraint-violation residual.
func (s *Solver) MaxCV() float64 { return s.models.pts.rval[s.models.pts.kopt] }

// Type classifies the problem.
func (s *Solver) Type() ProblemType { return s.models.Type() }

// ResetModels rebuilds the alternative models from the current point
// values.
func (s *Solver) ResetModels() { s.models.resetModels() }

// errNoModelStepPrepared is returned by ModelStep when called without a
// preceding PrepareModelStep.
var errNoModelStepPrepared = &noModelStepPreparedError{}

type noModelStepPreparedError struct{}

func (*noModelStepPreparedError) Error() string {
	return "cobyqa: ModelStep called without PrepareModelStep"
}

// ShiftOrigin applies if the incumbent has drifted far enough from the
// current origin; it is idempotent when not triggered. It returns an
// error for symmetry with the solver's other state-mutating methods,
// even though the current rank-one update of the factorization cannot
// itself fail.
func (s *Solver) ShiftOrigin(delta float64) error { return s.models.shiftOrigin(delta) }

// muActive reports whether the penalty term for mu should be included in
// the merit function, guarding against division by (near) zero.
func muActive(mu float64, lamSets ...[]float64) bool {
	maxLam := 1.0
	for _, l := range lamSets {
		if m := maxAbs(l); m > maxLam {
			maxLam = m
		}
	}
	return absFloat(mu) >= tiny*maxLam
}

// meritValue evaluates the augmented-Lagrangian merit function given the
// objective value and the constraint values at a point, where
// linIneq/linEq are Aub*x-bub and Aeq*x-beq respectively.
func (s *Solver) meritValue(f float64, linIneq, nlIneq, linEq, nlEq []float64) float64 {
	phi := f
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.Inf(1)
	}
	if muActive(s.pen.muIneq, s.pen.lamLub, s.pen.lamNub) {
		for i, r := range linIneq {
			v := r + s.pen.lamLub[i]/s.pen.muIneq
			if v > 0 {
				phi += 0.5 * s.pen.muIneq * v * v
			}
		}
		for i, c := range nlIneq {
			v := c + s.pen.lamNub[i]/s.pen.muIneq
			if v > 0 {
				phi += 0.5 * s.pen.muIneq * v * v
			}
		}
	}
	if muActive(s.pen.muEq, s.pen.lamLeq, s.pen.lamNeq) {
		for i, r := range linEq {
			v := r + s.pen.lamLeq[i]/s.pen.muEq
			phi += 0.5 * s.pen.muEq * v * v
		}
		for i, c := range nlEq {
			v := c + s.pen.lamNeq[i]/s.pen.muEq
			phi += 0.5 * s.pen.muEq * v * v
		}
	}
	return phi
}

func (s *Solver) linIneqResid(xDisp []float64) []float64 {
	m := s.models
	if m.aub == nil {
		return nil
	}
	rows, _ := m.aub.Dims()
	r := make([]float64, rows)
	for i := 0; i < rows; i++ {
		r[i] = dot(m.aub.RawRowView(i), xDisp) - m.bub[i]
	}
	return r
}

func (s *Solver) linEqResid(xDisp []float64) []float64 {
	m := s.models
	if m.aeq == nil {
		return nil
	}
	rows, _ := m.aeq.Dims()
	r := make([]float64, rows)
	for i := 0; i < rows; i++ {
		r[i] = dot(m.aeq.RawRowView(i), xDisp) - m.beq[i]
	}
	return r
}

// meritAt evaluates the true merit at a trial displacement, calling the
// user's objective/constraint functions.
func (s *Solver) meritAt(xDisp []float64) (float64, float64, []float64, []float64) {
	m := s.models
	x := add(m.pts.xbase, xDisp)
	f := m.fun(x)
	var cu, ce []float64
	if m.cub != nil {
		cu = m.cub(x)
	}
	if m.ceq != nil {
		ce = m.ceq(x)
	}
	phi := s.meritValue(f, s.linIneqResid(xDisp), cu, s.linEqResid(xDisp), ce)
	return phi, f, cu, ce
}

// modelMeritAt evaluates the model-predicted merit at a trial
// displacement from the incumbent, without calling the user's functions.
func (s *Solver) modelMeritAt(step []float64) float64 {
	m := s.models
	kopt := m.pts.kopt
	x := add(m.pts.xpt.RawRowView(kopt), step)
	f := m.objStd.Eval(x, m.pts.xpt, kopt) + m.pts.fval[kopt]
	cu := make([]float64, m.mnlub)
	for i := range cu {
		base := mat.Col(nil, i, m.pts.cvalub)[kopt]
		cu[i] = m.cubStd[i].Eval(x, m.pts.xpt, kopt) + base
	}
	ce := make([]float64, m.mnleq)
	for i := range ce {
		base := mat.Col(nil, i, m.pts.cvaleq)[kopt]
		ce[i] = m.ceqStd[i].Eval(x, m.pts.xpt, kopt) + base
	}
	return s.meritValue(f, s.linIneqResid(x), cu, s.linEqResid(x), ce)
}

// lessMerit implements strict tiebreaker: point A beats B
// if phiA < phiB, or if the penalty coefficients are negligible, the
// merit values are equal to tolerance, and A has the smaller residual.
func (s *Solver) lessMerit(phiA, rvalA, phiB, rvalB float64) bool {
	if phiA < phiB {
		return true
	}
	tol := 10 * eps * float64(s.models.npt) * math.Max(1, math.Abs(phiB))
	if math.Max(s.pen.muIneq, s.pen.muEq) < tol && math.Abs(phiA-phiB) <= tol {
		return rvalA < rvalB
	}
	return false
}

// getBestPoint recomputes the incumbent by comparing the merit of every
// interpolation point with a plain strict comparison (no residual
// tiebreak, unlike the initial selection in newModels), and returns whether
// the incumbent changed.
func (s *Solver) getBestPoint() bool {
	m := s.models
	kopt := m.pts.kopt
	bestPhi := s.modelMeritAtPoint(kopt)
	best := kopt
	for k := 0; k < m.npt; k++ {
		if k == kopt {
			continue
		}
		phi := s.modelMeritAtPoint(k)
		if phi < bestPhi {
			bestPhi = phi
			best = k
		}
	}
	if best != kopt {
		m.setKOpt(best)
		return true
	}
	return false
}

func (s *Solver) modelMeritAtPoint(k int) float64 {
	m := s.models
	f := m.pts.fval[k]
	cu := mat.Row(nil, k, m.pts.cvalub)
	ce := mat.Row(nil, k, m.pts.cvaleq)
	x := m.pts.xpt.RawRowView(k)
	return s.meritValue(f, s.linIneqResid(x), cu, s.linEqResid(x), ce)
}

// lagGrad returns the gradient of the Lagrangian (objective plus
// multiplier-weighted constraints) at xopt+step.
func (s *Solver) lagGrad(step []float64) []float64 {
	m := s.models
	kopt := m.pts.kopt
	x := add(m.pts.xpt.RawRowView(kopt), step)
	g := m.objStd.Grad(x, m.pts.xpt, kopt)
	if m.aub != nil {
		rows, _ := m.aub.Dims()
		for i := 0; i < rows; i++ {
			axpy(g, s.pen.lamLub[i], m.aub.RawRowView(i))
		}
	}
	if m.aeq != nil {
		rows, _ := m.aeq.Dims()
		for i := 0; i < rows; i++ {
			axpy(g, s.pen.lamLeq[i], m.aeq.RawRowView(i))
		}
	}
	for i, q := range m.cubStd {
		axpy(g, s.pen.lamNub[i], q.Grad(x, m.pts.xpt, kopt))
	}
	for i, q := range m.ceqStd {
		axpy(g, s.pen.lamNeq[i], q.Grad(x, m.pts.xpt, kopt))
	}
	return g
}

// lagHessp returns the Hessian-vector product of the Lagrangian along d.
func (s *Solver) lagHessp(d []float64) []float64 {
	m := s.models
	hv := m.objStd.Hessp(d, m.pts.xpt)
	for i, q := range m.cubStd {
		axpy(hv, s.pen.lamNub[i], q.Hessp(d, m.pts.xpt))
	}
	for i, q := range m.ceqStd {
		axpy(hv, s.pen.lamNeq[i], q.Hessp(d, m.pts.xpt))
	}
	return hv
}

func boxRelative(xl, xu, xk []float64) ([]float64, []float64) {
	return sub(xl, xk), sub(xu, xk)
}

// TrustRegionStep computes the Byrd-Omojokun composite step: a normal
// step reducing linearized constraint violation, followed by a
// tangential step reducing the linearized Lagrangian within the
// remaining trust-region budget.
func (s *Solver) TrustRegionStep(delta float64) ([]float64, error) {
	m := s.models
	kopt := m.pts.kopt
	xk := m.pts.xpt.RawRowView(kopt)
	n := m.n

	boxLo, boxHi := boxRelative(m.xl, m.xu, xk)

	aub, bub := s.linearizedIneq(kopt)
	aeq, beq := s.linearizedEq(kopt)

	const nsf = 0.8
	normalRadius := nsf * delta / math.Sqrt2
	x0 := make([]float64, n)
	normalStep := subsolver.CPQP(x0, aub, bub, aeq, beq, boxLo, boxHi, normalRadius)

	ssq := dot(normalStep, normalStep)
	rem := delta*delta/2 - ssq
	if rem < 0 {
		rem = 0
	}
	tangentRadius := math.Sqrt(rem)

	g := s.lagGrad(normalStep)

	var tangentialStep []float64
	if len(aub) > 0 || len(aeq) > 0 {
		tangentialStep = subsolver.LCTCG(normalStep, g, s.lagHessp, aub, bub, aeq, beq, boxLo, boxHi, tangentRadius)
	} else {
		tangentialStep = subsolver.BVTCG(normalStep, g, s.lagHessp, boxLo, boxHi, tangentRadius)
	}

	s.lastIsGeom = false
	s.lastKnew = -1
	return add(normalStep, tangentialStep), nil
}

// linearizedIneq stacks the active linear inequality rows with the
// linearized nonlinear inequality rows at the incumbent. A row is treated as active when its
// residual at the incumbent exceeds -rhoend, so violated rows are included.
func (s *Solver) linearizedIneq(kopt int) ([][]float64, []float64) {
	m := s.models
	xk := m.pts.xpt.RawRowView(kopt)
	var a [][]float64
	var b []float64
	if m.aub != nil {
		rows, _ := m.aub.Dims()
		for i := 0; i < rows; i++ {
			row := m.aub.RawRowView(i)
			r := dot(row, xk) - m.bub[i]
			if r > -s.opts.rhoend {
				a = append(a, row)
				b = append(b, -r) // slack relative to xk: a.step <= -r
			}
		}
	}
	for i, q := range m.cubStd {
		col := mat.Col(nil, i, m.pts.cvalub)
		val := col[kopt]
		if val > -s.opts.rhoend {
			grad := q.Grad(xk, m.pts.xpt, kopt)
			a = append(a, grad)
			b = append(b, -val)
		}
	}
	return a, b
}

func (s *Solver) linearizedEq(kopt int) ([][]float64, []float64) {
	m := s.models
	xk := m.pts.xpt.RawRowView(kopt)
	var a [][]float64
	var b []float64
	if m.aeq != nil {
		rows, _ := m.aeq.Dims()
		for i := 0; i < rows; i++ {
			row := m.aeq.RawRowView(i)
			r := dot(row, xk) - m.beq[i]
			a = append(a, row)
			b = append(b, -r)
		}
	}
	for i, q := range m.ceqStd {
		col := mat.Col(nil, i, m.pts.cvaleq)
		val := col[kopt]
		grad := q.Grad(xk, m.pts.xpt, kopt)
		a = append(a, grad)
		b = append(b, -val)
	}
	return a, b
}

// PrepareTrustRegionStep only clears any point pending from a previous
// PrepareModelStep, since the caller has switched back to the trust-region
// branch of the iteration; the composite step itself is fully determined
// by the current incumbent and delta, which TrustRegionStep recomputes.
func (s *Solver) PrepareTrustRegionStep() {
	s.pendingKnew = -1
}

// PrepareModelStep selects the interpolation point farthest from the
// incumbent, provided its squared distance exceeds delta^2; if every point
// already lies within delta of the incumbent, no replacement is needed and
// the pending selection is cleared. The choice is recorded for the
// following ModelStep/Update pair.
func (s *Solver) PrepareModelStep(delta float64) {
	m := s.models
	kopt := m.pts.kopt
	xk := m.pts.xpt.RawRowView(kopt)
	worst := -1
	worstDist := delta * delta
	for k := 0; k < m.npt; k++ {
		if k == kopt {
			continue
		}
		d := sub(m.pts.xpt.RawRowView(k), xk)
		dsq := dot(d, d)
		if dsq > worstDist {
			worstDist = dsq
			worst = k
		}
	}
	s.pendingKnew = worst
}

// ModelStep computes a geometry-improvement displacement for the point
// chosen by the most recent PrepareModelStep call.
func (s *Solver) ModelStep(delta float64) ([]float64, error) {
	if s.pendingKnew < 0 {
		return nil, errNoModelStepPrepared
	}
	knew := s.pendingKnew
	step := s.models.improveGeometry(knew, delta)
	s.lastIsGeom = true
	s.lastKnew = knew
	return step, nil
}

// Update evaluates the objective/constraints at the trial step, updates
// the interpolation set, and recomputes the penalty state and incumbent.
// Whether the step came from TrustRegionStep or ModelStep (and, for the
// latter, which point it targets) is recovered from the state those
// calls recorded; ratio is always -1 for a geometry step, since there is
// no trust-region-step merit prediction to compare the true reduction
// against.
func (s *Solver) Update(step []float64) (float64, float64, error) {
	m := s.models
	kopt := m.pts.kopt
	knew := -1
	isGeom := s.lastIsGeom
	if isGeom {
		knew = s.lastKnew
	}
	s.lastIsGeom = false
	s.lastKnew = -1
	s.pendingKnew = -1

	phiIncBefore := s.modelMeritAtPoint(kopt)
	modelPhiTrial := s.modelMeritAt(step)

	phiTrialTrue, fnew, cuNew, ceNew := s.meritAt(add(m.pts.xpt.RawRowView(kopt), step))

	for modelPhiTrial > phiIncBefore+10*eps*float64(m.npt)*math.Max(1, math.Abs(phiIncBefore)) {
		changed := s.doublePenalty()
		if !changed {
			break
		}
		if s.getBestPoint() {
			return 0, 0, &RestartIterationError{Reason: "penalty doubling changed incumbent"}
		}
		phiIncBefore = s.modelMeritAtPoint(kopt)
		modelPhiTrial = s.modelMeritAt(step)
	}

	if err := m.update(step, knew, fnew, cuNew, ceNew); err != nil {
		return 0, 0, err
	}

	s.updateMultipliers()

	ratio := -1.0
	if !isGeom {
		denom := phiIncBefore - modelPhiTrial
		if absFloat(denom) > tiny {
			ratio = (phiIncBefore - phiTrialTrue) / denom
		}
	}

	s.getBestPoint()

	if s.opts.Debug {
		if d := m.checkModels(); d > 0 {
			s.opts.logf("interpolation residual exceeds tolerance by %.3e after update", d)
		}
	}

	return s.modelMeritAtPoint(m.pts.kopt), ratio, nil
}

// doublePenalty doubles (or activates from zero to one) the penalty
// coefficients whose constraint set is nonempty, called when the trial
// step's model-predicted merit fails to improve on the incumbent's. It
// returns whether anything changed.
func (s *Solver) doublePenalty() bool {
	m := s.models
	changed := false
	if m.mlub > 0 || m.mnlub > 0 {
		if s.pen.muIneq == 0 {
			s.pen.muIneq = 1
		} else {
			s.pen.muIneq *= 2
		}
		changed = true
	}
	if m.mleq > 0 || m.mnleq > 0 {
		if s.pen.muEq == 0 {
			s.pen.muEq = 1
		} else {
			s.pen.muEq *= 2
		}
		changed = true
	}
	return changed
}

// ReducePenaltyCoefficients implements penalty reduction, called between
// major iterations: mu is reset to (fmax-fmin)/spread when the constraint
// spread is admissible, else set to zero.
func (s *Solver) ReducePenaltyCoefficients() {
	m := s.models
	fmax, fmin := m.pts.fval[0], m.pts.fval[0]
	for _, v := range m.pts.fval {
		if v > fmax {
			fmax = v
		}
		if v < fmin {
			fmin = v
		}
	}
	spread := fmax - fmin

	reduce := func(mu *float64, columns func(i int) (cmin, cmax float64), count int, isEq bool) {
		if count == 0 {
			*mu = 0
			return
		}
		minSpread := math.Inf(1)
		admissible := true
		for i := 0; i < count; i++ {
			cmin, cmax := columns(i)
			iub := cmin < 2*cmax
			ok := iub
			if isEq {
				ok = iub || cmin < 0.5*cmax
			}
			if !ok {
				admissible = false
				break
			}
			spreadCol := cmax - cmin
			if spreadCol < minSpread {
				minSpread = spreadCol
			}
		}
		if admissible && minSpread > 0 {
			*mu = spread / minSpread
		} else {
			*mu = 0
		}
	}

	ineqCols := m.mlub + m.mnlub
	reduce(&s.pen.muIneq, func(i int) (float64, float64) { return s.columnSpreadIneq(i) }, ineqCols, false)
	eqCols := m.mleq + m.mnleq
	reduce(&s.pen.muEq, func(i int) (float64, float64) { return s.columnSpreadEq(i) }, eqCols, true)
}

func (s *Solver) columnSpreadIneq(i int) (float64, float64) {
	m := s.models
	var vals []float64
	if i < m.mlub {
		vals = make([]float64, m.npt)
		for k := 0; k < m.npt; k++ {
			vals[k] = dot(m.aub.RawRowView(i), m.pts.xpt.RawRowView(k)) - m.bub[i]
		}
	} else {
		vals = mat.Col(nil, i-m.mlub, m.pts.cvalub)
	}
	return minMax(vals)
}

func (s *Solver) columnSpreadEq(i int) (float64, float64) {
	m := s.models
	var vals []float64
	if i < m.mleq {
		vals = make([]float64, m.npt)
		for k := 0; k < m.npt; k++ {
			vals[k] = math.Abs(dot(m.aeq.RawRowView(i), m.pts.xpt.RawRowView(k)) - m.beq[i])
		}
	} else {
		col := mat.Col(nil, i-m.mleq, m.pts.cvaleq)
		vals = make([]float64, len(col))
		for j, v := range col {
			vals[j] = math.Abs(v)
		}
	}
	return minMax(vals)
}

func minMax(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// updateMultipliers re-estimates the Lagrange multipliers by solving the
// NNLS problem of "Multiplier update": the stacked
// Jacobian of active linear/nonlinear inequality rows and all
// linear/nonlinear equality rows, against -grad(objective).
func (s *Solver) updateMultipliers() {
	m := s.models
	kopt := m.pts.kopt
	xk := m.pts.xpt.RawRowView(kopt)
	gobj := m.objStd.Grad(xk, m.pts.xpt, kopt)

	ineqRows, ineqIdxLub, ineqIdxNub := s.activeInequalityJacobian(kopt)
	eqA, eqCountLeq := s.equalityJacobian(kopt)

	rows := append(append([][]float64{}, ineqRows...), eqA...)
	if len(rows) == 0 {
		for i := range s.pen.lamLub {
			s.pen.lamLub[i] = 0
		}
		for i := range s.pen.lamNub {
			s.pen.lamNub[i] = 0
		}
		for i := range s.pen.lamLeq {
			s.pen.lamLeq[i] = 0
		}
		for i := range s.pen.lamNeq {
			s.pen.lamNeq[i] = 0
		}
		return
	}

	n := m.n
	amat := mat.NewDense(len(rows), n, nil)
	for i, r := range rows {
		amat.SetRow(i, r)
	}
	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = -gobj[i]
	}
	jt := mat.NewDense(n, len(rows), nil)
	jt.Copy(amat.T())

	lambda, err := linalg.NNLS(jt, rhs, len(ineqRows))
	if err != nil {
		return
	}

	for i := range s.pen.lamLub {
		s.pen.lamLub[i] = 0
	}
	for i := range s.pen.lamNub {
		s.pen.lamNub[i] = 0
	}
	for j, idx := range ineqIdxLub {
		s.pen.lamLub[idx] = lambda[j]
	}
	for j, idx := range ineqIdxNub {
		s.pen.lamNub[idx] = lambda[len(ineqIdxLub)+j]
	}
	offset := len(ineqRows)
	for i := 0; i < eqCountLeq; i++ {
		s.pen.lamLeq[i] = lambda[offset+i]
	}
	for i := 0; i < len(s.pen.lamNeq); i++ {
		s.pen.lamNeq[i] = lambda[offset+eqCountLeq+i]
	}
}

// activeInequalityJacobian returns the stacked rows of active linear and
// nonlinear inequality constraints at the incumbent, plus the original
// indices of each contributing row (for unpacking NNLS multipliers).
func (s *Solver) activeInequalityJacobian(kopt int) ([][]float64, []int, []int) {
	m := s.models
	xk := m.pts.xpt.RawRowView(kopt)
	var rows [][]float64
	var idxLub, idxNub []int
	if m.aub != nil {
		r, _ := m.aub.Dims()
		for i := 0; i < r; i++ {
			row := m.aub.RawRowView(i)
			if dot(row, xk)-m.bub[i] > -s.opts.rhoend {
				rows = append(rows, row)
				idxLub = append(idxLub, i)
			}
		}
	}
	for i, q := range m.cubStd {
		col := mat.Col(nil, i, m.pts.cvalub)
		if col[kopt] > -s.opts.rhoend {
			rows = append(rows, q.Grad(xk, m.pts.xpt, kopt))
			idxNub = append(idxNub, i)
		}
	}
	return rows, idxLub, idxNub
}

func (s *Solver) equalityJacobian(kopt int) ([][]float64, int) {
	m := s.models
	xk := m.pts.xpt.RawRowView(kopt)
	var rows [][]float64
	if m.aeq != nil {
		r, _ := m.aeq.Dims()
		for i := 0; i < r; i++ {
			rows = append(rows, m.aeq.RawRowView(i))
		}
	}
	leqCount := len(rows)
	for _, q := range m.ceqStd {
		rows = append(rows, q.Grad(xk, m.pts.xpt, kopt))
	}
	return rows, leqCount
}
