package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxNNLSIterations bounds the coordinate-descent sweeps performed by
// NNLS. It is generous enough that realistic multiplier problems (at most a
// few dozen constraints) converge long before the limit is reached.
var MaxNNLSIterations = 500

// NNLS solves min ||A*x - b||^2 subject to x[0:k] >= 0 (the remaining
// components of x, if any, are unconstrained). It implements the
// sequential coordinate-wise algorithm of Franc, Hlavac & Navara (2005),
// generalized to a partially-constrained x as required by the Lagrange
// multiplier least-squares problem of (only the inequality
// block of the multiplier vector is sign-constrained).
//
// A has shape (m, n); b has length m; 0 <= k <= n.
func NNLS(A *mat.Dense, b []float64, k int) ([]float64, error) {
	m, n := A.Dims()
	if len(b) != m {
		return nil, errDimMismatch
	}
	if k < 0 || k > n {
		return nil, errBadK
	}

	h := mat.NewDense(n, n, nil)
	h.Mul(A.T(), A)
	f := make([]float64, n)
	for j := 0; j < n; j++ {
		col := mat.Col(nil, j, A)
		s := 0.0
		for i := 0; i < m; i++ {
			s += col[i] * b[i]
		}
		f[j] = -s
	}

	x := make([]float64, n)
	// Running residual Ax - b in coefficient space: we maintain g = H*x + f
	// incrementally instead of recomputing it every sweep.
	g := make([]float64, n)
	copy(g, f)

	for iter := 0; iter < MaxNNLSIterations; iter++ {
		maxMove := 0.0
		for j := 0; j < n; j++ {
			hjj := h.At(j, j)
			if hjj <= 0 {
				continue
			}
			xjOld := x[j]
			xjNew := xjOld - g[j]/hjj
			if j < k && xjNew < 0 {
				xjNew = 0
			}
			delta := xjNew - xjOld
			if delta == 0 {
				continue
			}
			x[j] = xjNew
			for i := 0; i < n; i++ {
				g[i] += h.At(i, j) * delta
			}
			if math.Abs(delta) > maxMove {
				maxMove = math.Abs(delta)
			}
		}
		if maxMove < 1e-12 {
			break
		}
	}
	return x, nil
}

var errDimMismatch = dimError{"linalg: NNLS: A and b have incompatible shapes"}
var errBadK = dimError{"linalg: NNLS: k out of range"}

type dimError struct{ msg string }

func (e dimError) Error() string { return e.msg }
