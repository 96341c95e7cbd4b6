// Package linalg collects the small dense-linear-algebra primitives shared
// by the interpolation-set factorization and the constrained-QP subproblem
// solvers: a Givens column/row rotation and a coordinate-descent NNLS
// solve. Both are named directly in the external-interfaces contract of
// the core trust-region solver; the swap update uses Givens and the
// multiplier update uses NNLS.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Side selects whether Givens rotates two columns or two rows of a matrix.
type Side int

const (
	// Columns rotates column j1 and column j2.
	Columns Side = iota
	// Rows rotates row j1 and row j2.
	Rows
)

// Givens applies, in place, the plane rotation built from (c, s) to columns
// j1 and j2 of m (or rows, if side is Rows). The rotation is normalized
// internally, so c and s need not already satisfy c^2+s^2=1 — callers pass
// the raw entries that define the rotation (as the swap update does,
// passing two matrix entries directly). If c and s are both zero, m is left
// unchanged.
//
// For side == Columns, entry (i, j1) and (i, j2) of m become, for every row
// i:
//
//	m[i,j1] = cosv*m[i,j1] - sinv*m[i,j2]
//	m[i,j2] = sinv*m[i,j1] + cosv*m[i,j2]
//
// with cosv = c/r, sinv = s/r, r = hypot(c, s). Rows follow the transposed
// convention.
func Givens(m *mat.Dense, c, s float64, j1, j2 int, side Side) {
	r := math.Hypot(c, s)
	if r == 0 {
		return
	}
	cosv := c / r
	sinv := s / r
	rows, cols := m.Dims()
	switch side {
	case Columns:
		for i := 0; i < rows; i++ {
			a := m.At(i, j1)
			b := m.At(i, j2)
			m.Set(i, j1, cosv*a-sinv*b)
			m.Set(i, j2, sinv*a+cosv*b)
		}
	case Rows:
		for j := 0; j < cols; j++ {
			a := m.At(j1, j)
			b := m.At(j2, j)
			m.Set(j1, j, cosv*a-sinv*b)
			m.Set(j2, j, sinv*a+cosv*b)
		}
	}
}
