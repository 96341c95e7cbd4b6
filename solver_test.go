package cobyqa

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// driveToConvergence runs a reduced form of the cmd/cobyqa-bench loop
// (trust-region steps only: no geometry steps and no penalty reduction)
// for at most maxIter iterations, returning the index of the iteration at
// which delta reached rhoend, or maxIter if it never did.
func driveToConvergence(t *testing.T, s *Solver, maxIter int, rhoend float64) int {
	t.Helper()
	delta := 1.0
	it := 0
	for ; it < maxIter; it++ {
		s.PrepareTrustRegionStep()
		step, err := s.TrustRegionStep(delta)
		if err != nil {
			t.Fatalf("TrustRegionStep: %v", err)
		}

		_, ratio, err := s.Update(step)
		if err != nil {
			var restart *RestartIterationError
			if errors.As(err, &restart) {
				continue
			}
			if errors.Is(err, ErrNumericBreakdown) {
				delta *= 0.5
				continue
			}
			t.Fatalf("Update: %v", err)
		}

		switch {
		case ratio >= 0.7:
			delta = math.Min(2*delta, 10)
		case ratio >= 0.1:
		default:
			delta *= 0.5
		}

		if err := s.ShiftOrigin(delta); err != nil {
			t.Fatalf("ShiftOrigin: %v", err)
		}

		if delta <= rhoend {
			break
		}
	}
	return it
}

func TestSolverSphereConverges(t *testing.T) {
	x0 := []float64{1, 1, 1}
	xl := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	fun := func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return s
	}

	s, err := New(fun, x0, xl, xu, nil, nil, nil, nil, nil, nil, Options{RhoEnd: 1e-5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	driveToConvergence(t, s, 2000, 1e-5)

	if s.FOpt() > 1e-6 {
		t.Errorf("FOpt() = %g, want close to 0", s.FOpt())
	}
	for i, v := range s.XOpt() {
		if math.Abs(v) > 1e-2 {
			t.Errorf("XOpt()[%d] = %g, want close to 0", i, v)
		}
	}
	if s.Type() != TypeUnconstrained {
		t.Errorf("Type() = %v, want %v", s.Type(), TypeUnconstrained)
	}
}

func TestSolverBoundConstrainedSphereRespectsBounds(t *testing.T) {
	n := 3
	x0 := []float64{1, 1, 1}
	xl := []float64{0.5, 0.5, 0.5}
	xu := []float64{10, 10, 10}
	fun := func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return s
	}

	s, err := New(fun, x0, xl, xu, nil, nil, nil, nil, nil, nil, Options{RhoEnd: 1e-5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	driveToConvergence(t, s, 2000, 1e-5)

	xopt := s.XOpt()
	for i := 0; i < n; i++ {
		if xopt[i] < xl[i]-1e-6 || xopt[i] > xu[i]+1e-6 {
			t.Errorf("XOpt()[%d] = %g, out of bounds [%g,%g]", i, xopt[i], xl[i], xu[i])
		}
	}
	for i := 0; i < n; i++ {
		if math.Abs(xopt[i]-0.5) > 1e-2 {
			t.Errorf("XOpt()[%d] = %g, want close to the active lower bound 0.5", i, xopt[i])
		}
	}
	if s.Type() != TypeBound {
		t.Errorf("Type() = %v, want %v", s.Type(), TypeBound)
	}
}

func TestSolverLinearEqualityConstraint(t *testing.T) {
	n := 3
	x0 := []float64{0.5, 0.3, 0.2}
	xl := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	aeq := mat.NewDense(1, n, []float64{1, 1, 1})
	beq := []float64{1}
	fun := func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return s
	}

	s, err := New(fun, x0, xl, xu, nil, nil, aeq, beq, nil, nil, Options{RhoEnd: 1e-5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	driveToConvergence(t, s, 2000, 1e-5)

	xopt := s.XOpt()
	sum := xopt[0] + xopt[1] + xopt[2]
	if math.Abs(sum-1) > 1e-2 {
		t.Errorf("sum(XOpt()) = %g, want close to 1 (equality constraint)", sum)
	}
	want := 1.0 / 3.0
	for i, v := range xopt {
		if math.Abs(v-want) > 5e-2 {
			t.Errorf("XOpt()[%d] = %g, want close to %g", i, v, want)
		}
	}
}

func TestModelStepWithoutPrepareErrors(t *testing.T) {
	x0 := []float64{1, 1}
	xl := []float64{math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1)}
	fun := func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] }

	s, err := New(fun, x0, xl, xu, nil, nil, nil, nil, nil, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.PrepareTrustRegionStep() // clears any pending geometry point
	if _, err := s.ModelStep(1.0); err == nil {
		t.Fatal("expected an error calling ModelStep without PrepareModelStep")
	}
}

func TestMuActiveGuardsZeroPenalty(t *testing.T) {
	if muActive(0, nil, nil) {
		t.Error("muActive(0, nil, nil) should be false")
	}
	if !muActive(1, nil, nil) {
		t.Error("muActive(1, nil, nil) should be true")
	}
}

func TestLessMeritStrictlyBetter(t *testing.T) {
	x0 := []float64{1, 1}
	xl := []float64{math.Inf(-1), math.Inf(-1)}
	xu := []float64{math.Inf(1), math.Inf(1)}
	fun := func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] }
	s, err := New(fun, x0, xl, xu, nil, nil, nil, nil, nil, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !s.lessMerit(1.0, 0.0, 2.0, 0.0) {
		t.Error("strictly smaller merit should be better")
	}
	if s.lessMerit(2.0, 0.0, 1.0, 0.0) {
		t.Error("strictly larger merit should not be better")
	}
}
