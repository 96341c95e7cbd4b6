package cobyqa

import "gonum.org/v1/gonum/mat"

// omegaProduct returns p = Omega * fval, where Omega = Z * J * Z^T and J is
// the signature diagonal diag(-1,...,-1,+1,...,+1) with idz leading
// negative entries.
func omegaProduct(z *mat.Dense, idz int, fval []float64) []float64 {
	npt, ncol := z.Dims()
	t := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		col := mat.Col(nil, j, z)
		t[j] = dot(col, fval)
	}
	applyJ(t, idz)
	p := make([]float64, npt)
	for k := 0; k < npt; k++ {
		row := z.RawRowView(k)
		p[k] = dot(row, t)
	}
	return p
}

// omegaProductIndex is omegaProduct specialized to fval = e_k, the k-th
// standard basis vector — used to build the k-th Lagrange polynomial
// without materializing the full unit vector.
func omegaProductIndex(z *mat.Dense, idz, k int) []float64 {
	npt, ncol := z.Dims()
	t := make([]float64, ncol)
	copy(t, z.RawRowView(k))
	applyJ(t, idz)
	p := make([]float64, npt)
	for i := 0; i < npt; i++ {
		row := z.RawRowView(i)
		p[i] = dot(row, t)
	}
	return p
}

// applyJ negates the first idz components of t in place, realizing the
// signature matrix J = diag(-1,...,-1 [idz times], +1,...,+1).
func applyJ(t []float64, idz int) {
	for i := 0; i < idz; i++ {
		t[i] = -t[i]
	}
}
