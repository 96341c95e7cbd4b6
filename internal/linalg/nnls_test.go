package linalg

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNNLSUnconstrainedMatchesLeastSquares(t *testing.T) {
	// A well-conditioned square system with k=0 (no sign constraints)
	// should recover the exact solution of A*x=b.
	a := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	b := []float64{4, 9}
	x, err := NNLS(a, b, 0)
	if err != nil {
		t.Fatalf("NNLS: %v", err)
	}
	want := []float64{2, 3}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-6 {
			t.Errorf("x[%d] = %g, want %g", i, x[i], want[i])
		}
	}
}

func TestNNLSEnforcesNonnegativity(t *testing.T) {
	// min (x+2)^2 unconstrained has minimizer x=-2; constrained to x>=0 it
	// must clamp to 0.
	a := mat.NewDense(1, 1, []float64{1})
	b := []float64{-2}
	x, err := NNLS(a, b, 1)
	if err != nil {
		t.Fatalf("NNLS: %v", err)
	}
	if x[0] < 0 {
		t.Errorf("x[0] = %g, want >= 0", x[0])
	}
	if math.Abs(x[0]) > 1e-6 {
		t.Errorf("x[0] = %g, want 0", x[0])
	}
}

func TestNNLSPartialConstraint(t *testing.T) {
	// First component constrained nonnegative, second free: minimizing
	// (x0+1)^2 + (x1+1)^2 independently should clamp x0 to 0 and leave x1
	// free at -1.
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	b := []float64{-1, -1}
	x, err := NNLS(a, b, 1)
	if err != nil {
		t.Fatalf("NNLS: %v", err)
	}
	if math.Abs(x[0]) > 1e-6 {
		t.Errorf("x[0] = %g, want 0 (clamped)", x[0])
	}
	if math.Abs(x[1]-(-1)) > 1e-6 {
		t.Errorf("x[1] = %g, want -1 (unconstrained)", x[1])
	}
}

func TestNNLSDimensionMismatch(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	_, err := NNLS(a, []float64{1}, 0)
	if err == nil {
		t.Fatal("expected a dimension-mismatch error")
	}
}

func TestNNLSBadK(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	_, err := NNLS(a, []float64{1, 1}, 3)
	if err == nil {
		t.Fatal("expected a bad-k error")
	}
}
