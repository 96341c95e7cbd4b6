package cobyqa

import "gonum.org/v1/gonum/mat"

// pointSet is the interpolation-set store: the matrix of point
// displacements from xbase, per-point function/constraint values, and the
// residual of each point.
type pointSet struct {
	xbase []float64 // n
	xpt   *mat.Dense // npt x n, displacements from xbase
	fval  []float64 // npt

	// cvalub/cvaleq hold, per row k, the nonlinear inequality/equality
	// constraint values at xpt[k]; a problem with no nonlinear
	// constraints of a kind has zero columns.
	cvalub *mat.Dense // npt x mnlub
	cvaleq *mat.Dense // npt x mnleq

	rval []float64 // npt
	kopt int
}

func newPointSet(n, npt, mnlub, mnleq int) *pointSet {
	return &pointSet{
		xbase:  make([]float64, n),
		xpt:    mat.NewDense(npt, n, nil),
		fval:   make([]float64, npt),
		cvalub: mat.NewDense(npt, maxInt(mnlub, 0), nil),
		cvaleq: mat.NewDense(npt, maxInt(mnleq, 0), nil),
		rval:   make([]float64, npt),
		kopt:   0,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// npt returns the number of interpolation points.
func (p *pointSet) npt() int {
	r, _ := p.xpt.Dims()
	return r
}

// n returns the problem dimension.
func (p *pointSet) n() int {
	_, c := p.xpt.Dims()
	return c
}

// xopt returns the incumbent displacement xpt[kopt].
func (p *pointSet) xopt() []float64 {
	return p.xpt.RawRowView(p.kopt)
}

// xAt returns x_base + xpt[k], the true coordinates of point k.
func (p *pointSet) xAt(k int) []float64 {
	return add(p.xbase, p.xpt.RawRowView(k))
}

// setRow overwrites the k-th row of xpt.
func (p *pointSet) setRow(k int, x []float64) {
	p.xpt.SetRow(k, x)
}

// resid computes the residual of a point given its displacement step,
// nonlinear constraint values at the point, and the (already
// origin-shifted) linear constraint data and bounds:
//
//	rval = max(Aub*x-bub, cub, |Aeq*x-beq|, |ceq|, x-xu, xl-x, 0)
func resid(x []float64, aub *mat.Dense, bub []float64, aeq *mat.Dense, beq []float64, cub, ceq, xl, xu []float64) float64 {
	r := 0.0
	if aub != nil {
		rows, _ := aub.Dims()
		for i := 0; i < rows; i++ {
			v := dot(aub.RawRowView(i), x) - bub[i]
			if v > r {
				r = v
			}
		}
	}
	for _, v := range cub {
		if v > r {
			r = v
		}
	}
	if aeq != nil {
		rows, _ := aeq.Dims()
		for i := 0; i < rows; i++ {
			v := dot(aeq.RawRowView(i), x) - beq[i]
			if v < 0 {
				v = -v
			}
			if v > r {
				r = v
			}
		}
	}
	for _, v := range ceq {
		if v < 0 {
			v = -v
		}
		if v > r {
			r = v
		}
	}
	for i, v := range x {
		if d := v - xu[i]; d > r {
			r = d
		}
		if d := xl[i] - v; d > r {
			r = d
		}
	}
	return r
}
