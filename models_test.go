package cobyqa

import (
	"math"
	"testing"
)

func sphereModels(t *testing.T, n int) *Models {
	t.Helper()
	fun := func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return s
	}
	x0 := make([]float64, n)
	xl := make([]float64, n)
	xu := make([]float64, n)
	for i := range x0 {
		x0[i] = 1
		xl[i] = math.Inf(-1)
		xu[i] = math.Inf(1)
	}
	opts := Options{}.resolve(n, xl, xu)
	m, err := newModels(fun, nil, nil, x0, xl, xu, nil, nil, nil, nil, opts)
	if err != nil {
		t.Fatalf("newModels: %v", err)
	}
	return m
}

func TestNewModelsInterpolatesExactly(t *testing.T) {
	m := sphereModels(t, 3)
	if d := m.checkModels(); d > 1e-6 {
		t.Errorf("interpolation residual too large: %g", d)
	}
}

func TestModelsTypeClassification(t *testing.T) {
	n := 2
	fun := func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] }
	x0 := []float64{0.5, 0.5}

	unconstrained := []float64{math.Inf(-1), math.Inf(-1)}
	unconstrainedU := []float64{math.Inf(1), math.Inf(1)}
	opts := Options{}.resolve(n, unconstrained, unconstrainedU)
	m, err := newModels(fun, nil, nil, x0, unconstrained, unconstrainedU, nil, nil, nil, nil, opts)
	if err != nil {
		t.Fatalf("newModels: %v", err)
	}
	if got := m.Type(); got != TypeUnconstrained {
		t.Errorf("Type() = %v, want %v", got, TypeUnconstrained)
	}

	xl := []float64{0, 0}
	xu := []float64{2, 2}
	opts = Options{}.resolve(n, xl, xu)
	m, err = newModels(fun, nil, nil, x0, xl, xu, nil, nil, nil, nil, opts)
	if err != nil {
		t.Fatalf("newModels: %v", err)
	}
	if got := m.Type(); got != TypeBound {
		t.Errorf("Type() = %v, want %v", got, TypeBound)
	}
}

func TestModelsXoptIsTrueCoordinates(t *testing.T) {
	m := sphereModels(t, 2)
	xopt := m.xopt()
	disp := m.pts.xopt()
	for i := range xopt {
		if math.Abs(xopt[i]-(m.pts.xbase[i]+disp[i])) > 1e-12 {
			t.Errorf("xopt[%d] does not equal xbase+displacement", i)
		}
	}
}

func TestShiftOriginPreservesIncumbentTrueCoordinates(t *testing.T) {
	m := sphereModels(t, 3)
	before := m.xopt()

	if err := m.shiftOrigin(1e-10); err != nil {
		t.Fatalf("shiftOrigin: %v", err)
	}

	after := m.xopt()
	for i := range before {
		if math.Abs(before[i]-after[i]) > 1e-8 {
			t.Errorf("true incumbent coordinate moved under origin shift: before=%v after=%v", before, after)
		}
	}
	if d := m.checkModels(); d > 1e-5 {
		t.Errorf("interpolation residual too large after origin shift: %g", d)
	}
}

func TestResetModelsLeavesStandardModelIntact(t *testing.T) {
	m := sphereModels(t, 2)
	before := m.checkModels()
	m.resetModels()
	after := m.checkModels()
	if math.Abs(before-after) > 1e-9 {
		t.Errorf("resetModels changed the standard-model residual: before=%g after=%g", before, after)
	}
}
