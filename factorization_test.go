package cobyqa

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// simplexPoints returns the 2n+1 interpolation points made of the origin
// followed by the steps +e_i and then -e_i along each axis, the layout
// initialLayout produces for unbounded variables with rhobeg = 1.
func simplexPoints(n int) *mat.Dense {
	npt := 2*n + 1
	xpt := mat.NewDense(npt, n, nil)
	for i := 0; i < n; i++ {
		xpt.Set(i+1, i, 1)
		xpt.Set(n+i+1, i, -1)
	}
	return xpt
}

func TestBuildFactorizationInvariant(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		xpt := simplexPoints(n)
		npt, _ := xpt.Dims()

		b, z, idz, err := buildFactorization(xpt)
		if err != nil {
			t.Fatalf("n=%d: buildFactorization: %v", n, err)
		}

		// W = [1, xpt] must be annihilated by Z from the left: Z^T W == 0,
		// since Z spans the null space of W^T.
		w := mat.NewDense(npt, n+1, nil)
		for i := 0; i < npt; i++ {
			w.Set(i, 0, 1)
			for j := 0; j < n; j++ {
				w.Set(i, j+1, xpt.At(i, j))
			}
		}
		var zt mat.Dense
		zt.Mul(z.T(), w)
		if maxAbsDenseOf(&zt) > 1e-8 {
			t.Errorf("n=%d: Z^T*W not zero, max=%g", n, maxAbsDenseOf(&zt))
		}

		if idz < 0 || idz > npt-n-1 {
			t.Errorf("n=%d: idz=%d out of range [0,%d]", n, idz, npt-n-1)
		}

		br, bc := b.Dims()
		if br != npt+n || bc != n {
			t.Errorf("n=%d: B has shape %dx%d, want %dx%d", n, br, bc, npt+n, n)
		}
	}
}

func maxAbsDenseOf(m *mat.Dense) float64 {
	r, c := m.Dims()
	best := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := math.Abs(m.At(i, j)); v > best {
				best = v
			}
		}
	}
	return best
}

func TestBuildFactorizationDegenerateGeometry(t *testing.T) {
	n := 2
	// Every point shares the same second coordinate, so W = [1, xpt] has a
	// zero column and rank < n+1: the bordered system is singular and
	// should be reported rather than silently returning a bad factorization.
	xpt := mat.NewDense(5, n, []float64{
		0, 0,
		1, 0,
		-1, 0,
		2, 0,
		-2, 0,
	})
	_, _, _, err := buildFactorization(xpt)
	if err == nil {
		t.Fatalf("expected an error for degenerate geometry, got nil")
	}
}

func TestKktFactorAlphaMatchesOmegaDiagonal(t *testing.T) {
	n := 3
	xpt := simplexPoints(n)
	npt, _ := xpt.Dims()
	b, z, idz, err := buildFactorization(xpt)
	if err != nil {
		t.Fatalf("buildFactorization: %v", err)
	}
	f := &kktFactor{B: b, Z: z, idz: idz}
	for k := 0; k < npt; k++ {
		want := omegaProductIndex(z, idz, k)[k]
		got := f.alpha(k)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("alpha(%d) = %g, want %g", k, got, want)
		}
	}
}
