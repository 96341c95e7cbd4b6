package subsolver

import (
	"math"
	"testing"
)

func diagonalHessProd(diag []float64) HessProd {
	return func(d []float64) []float64 {
		y := make([]float64, len(d))
		for i, v := range d {
			y[i] = diag[i] * v
		}
		return y
	}
}

func TestBVTCGUnconstrainedFindsNewtonPoint(t *testing.T) {
	x0 := []float64{0, 0}
	g := []float64{4, 6}
	hv := diagonalHessProd([]float64{2, 3})
	xl := []float64{math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1)}

	step := BVTCG(x0, g, hv, xl, xu, 10)
	// Unconstrained minimizer of g.s + 1/2 s.Hv(s) is s = -H^-1 g = (-2, -2).
	want := []float64{-2, -2}
	for i := range want {
		if math.Abs(step[i]-want[i]) > 1e-6 {
			t.Errorf("step[%d] = %g, want %g", i, step[i], want[i])
		}
	}
}

func TestBVTCGRespectsBoxBounds(t *testing.T) {
	x0 := []float64{0, 0}
	g := []float64{4, 6}
	hv := diagonalHessProd([]float64{2, 3})
	xl := []float64{-0.5, math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1)}

	step := BVTCG(x0, g, hv, xl, xu, 10)
	if step[0] < xl[0]-1e-9 {
		t.Errorf("step[0] = %g violates lower bound %g", step[0], xl[0])
	}
}

func TestBVTCGRespectsTrustRegionRadius(t *testing.T) {
	x0 := []float64{0, 0, 0}
	g := []float64{1, 1, 1}
	hv := diagonalHessProd([]float64{1, 1, 1})
	xl := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}

	delta := 0.1
	step := BVTCG(x0, g, hv, xl, xu, delta)
	norm := math.Sqrt(dot(step, step))
	if norm > delta+1e-9 {
		t.Errorf("||step|| = %g exceeds trust-region radius %g", norm, delta)
	}
}

func TestBVTCGZeroRadiusReturnsZero(t *testing.T) {
	x0 := []float64{1, 1}
	g := []float64{1, 1}
	hv := diagonalHessProd([]float64{1, 1})
	xl := []float64{math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1)}

	step := BVTCG(x0, g, hv, xl, xu, 0)
	for i, v := range step {
		if v != 0 {
			t.Errorf("step[%d] = %g, want 0 for zero radius", i, v)
		}
	}
}
