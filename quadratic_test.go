package cobyqa

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestQuadraticGradMatchesFiniteDifference(t *testing.T) {
	n := 3
	xpt := simplexPoints(n)
	npt, _ := xpt.Dims()
	b, z, idz, err := buildFactorization(xpt)
	if err != nil {
		t.Fatalf("buildFactorization: %v", err)
	}

	fval := make([]float64, npt)
	for k := range fval {
		xk := xpt.RawRowView(k)
		fval[k] = dot(xk, xk) + 2*xk[0] - xk[1]
	}
	q := newQuadraticFromValues(b, z, idz, fval)

	kopt := 0
	x := []float64{0.3, -0.2, 0.1}
	grad := q.Grad(x, xpt, kopt)

	const hStep = 1e-6
	for i := 0; i < n; i++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += hStep
		xm[i] -= hStep
		fd := (q.Eval(xp, xpt, kopt) - q.Eval(xm, xpt, kopt)) / (2 * hStep)
		if math.Abs(fd-grad[i]) > 1e-4 {
			t.Errorf("component %d: finite-difference grad=%g, analytic=%g", i, fd, grad[i])
		}
	}
}

func TestQuadraticLagrangeInterpolatesUnitVector(t *testing.T) {
	n := 2
	xpt := simplexPoints(n)
	npt, _ := xpt.Dims()
	b, z, idz, err := buildFactorization(xpt)
	if err != nil {
		t.Fatalf("buildFactorization: %v", err)
	}

	// Eval carries no constant term and measures values relative to
	// xpt[kopt]; with kopt = 0 (the origin, where gq is taken) it returns
	// the Lagrange value at xpt[k] minus its value at xpt[0].
	for j := 0; j < npt; j++ {
		lag := newQuadraticLagrange(b, z, idz, j)
		for k := 0; k < npt; k++ {
			want := 0.0
			if k == j {
				want = 1.0
			}
			if j == 0 {
				want -= 1.0
			}
			got := lag.Eval(xpt.RawRowView(k), xpt, 0)
			if math.Abs(got-want) > 1e-6 {
				t.Errorf("Lagrange[%d] at point %d = %g, want %g", j, k, got, want)
			}
		}
	}
}

func TestQuadraticHessAndHesspAgree(t *testing.T) {
	n := 3
	xpt := simplexPoints(n)
	npt, _ := xpt.Dims()
	b, z, idz, err := buildFactorization(xpt)
	if err != nil {
		t.Fatalf("buildFactorization: %v", err)
	}
	fval := make([]float64, npt)
	for k := range fval {
		xk := xpt.RawRowView(k)
		fval[k] = dot(xk, xk)
	}
	q := newQuadraticFromValues(b, z, idz, fval)

	h := q.Hess(xpt)
	x := []float64{0.5, -1.0, 0.25}
	viaHessp := q.Hessp(x, xpt)
	viaMatVec := matVec(h, x)
	for i := range viaHessp {
		if math.Abs(viaHessp[i]-viaMatVec[i]) > 1e-8 {
			t.Errorf("Hessp[%d]=%g, Hess*x=%g", i, viaHessp[i], viaMatVec[i])
		}
	}
}

func TestAddOuterScaledSymmetric(t *testing.T) {
	m := mat.NewDense(2, 2, nil)
	addOuterScaled(m, 2, []float64{1, 2}, []float64{1, 2})
	want := [][]float64{{2, 4}, {4, 8}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if m.At(i, j) != want[i][j] {
				t.Errorf("m[%d][%d]=%g, want %g", i, j, m.At(i, j), want[i][j])
			}
		}
	}
}
