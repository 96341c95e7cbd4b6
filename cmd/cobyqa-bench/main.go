// The cobyqa-bench program drives the cobyqa Solver to convergence on one
// of a handful of built-in test problems and reports the result. It is the
// outer driver the core package deliberately leaves out: the iteration
// counter, the trust-region radius schedule, and the decision of when to
// take a geometry step instead of a trust-region step.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/derivfree/cobyqa"
)

func main() {
	name := flag.String("problem", "sphere", "built-in problem: sphere, rosenbrock5, bound-sphere, linear-ineq, linear-eq, nonlinear-eq")
	maxfev := flag.Int("maxfev", 0, "value for Options.MaxFev (0 uses the solver default); neither the solver nor this driver stops on it")
	rhoend := flag.Float64("rhoend", 1e-6, "terminal trust-region radius")
	verbose := flag.Bool("v", false, "log every accepted/rejected iterate")
	flag.Parse()

	prob, ok := problems[*name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown problem %q\n", *name)
		flag.Usage()
		os.Exit(2)
	}

	opts := cobyqa.Options{RhoEnd: *rhoend}
	if *maxfev > 0 {
		opts.MaxFev = *maxfev
	}
	if *verbose {
		opts.Logger = stdLogger{}
		opts.Debug = true
	}

	s, err := prob.build(opts)
	if err != nil {
		log.Fatalf("construct: %v", err)
	}

	result, err := run(s, *rhoend, *verbose)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("problem:   %s\n", *name)
	fmt.Printf("type:      %s\n", s.Type())
	fmt.Printf("xopt:      %.6f\n", s.XOpt())
	fmt.Printf("fopt:      %.10g\n", s.FOpt())
	fmt.Printf("maxcv:     %.3g\n", s.MaxCV())
	fmt.Printf("nit:       %d\n", result.iterations)
	fmt.Printf("status:    %s\n", result.status)
}

type stdLogger struct{}

func (stdLogger) Printf(format string, args ...any) { log.Printf(format, args...) }

// runResult summarizes why the outer loop stopped.
type runResult struct {
	iterations int
	status     string
}

// run drives s to convergence with a generic ratio-test radius schedule:
// delta doubles (capped at 10) when the ratio is at least 0.7, is kept
// when it is at least 0.1, and is halved otherwise. When the trust-region
// step is shorter than half of delta, a geometry step is computed and
// used instead if it is longer. The loop stops once delta <= rhoend.
func run(s *cobyqa.Solver, rhoend float64, verbose bool) (runResult, error) {
	const maxIter = 20000

	// The solver does not expose its resolved rhobeg, so the loop starts
	// from delta = 1 and stops once delta has shrunk to rhoend.
	delta := 1.0

	for it := 0; it < maxIter; it++ {
		s.PrepareTrustRegionStep()
		step, err := s.TrustRegionStep(delta)
		if err != nil {
			return runResult{it, "trust-region step failed"}, err
		}

		if norm(step) < 0.5*delta {
			s.PrepareModelStep(delta)
			geomStep, gerr := s.ModelStep(delta)
			if gerr == nil && norm(geomStep) > norm(step) {
				step = geomStep
			}
		}

		_, ratio, err := s.Update(step)
		switch {
		case err == cobyqa.ErrNumericBreakdown:
			delta *= 0.5
			continue
		case err != nil:
			if _, ok := err.(*cobyqa.RestartIterationError); ok {
				continue
			}
			return runResult{it, "update failed"}, err
		}

		switch {
		case ratio >= 0.7:
			delta = math.Min(2*delta, 10)
		case ratio >= 0.1:
			// keep delta
		default:
			delta *= 0.5
		}

		if err := s.ShiftOrigin(delta); err != nil {
			return runResult{it, "origin shift failed"}, err
		}

		if it%50 == 0 {
			s.ReducePenaltyCoefficients()
		}

		if verbose {
			log.Printf("iter=%d delta=%.3e fopt=%.6g maxcv=%.3g ratio=%.3f", it, delta, s.FOpt(), s.MaxCV(), ratio)
		}

		if delta <= rhoend {
			return runResult{it, "converged"}, nil
		}
	}
	return runResult{maxIter, "iteration limit reached"}, nil
}

func norm(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s)
}

// problem bundles one of the built-in test problems' construction.
type problem struct {
	build func(opts cobyqa.Options) (*cobyqa.Solver, error)
}

var problems = map[string]problem{
	"sphere": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 3
		x0 := []float64{1, 1, 1}
		xl, xu := infBounds(n)
		f := func(x []float64) float64 {
			s := 0.0
			for _, v := range x {
				s += v * v
			}
			return s
		}
		return cobyqa.New(f, x0, xl, xu, nil, nil, nil, nil, nil, nil, opts)
	}},
	"rosenbrock5": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 5
		x0 := make([]float64, n)
		for i := range x0 {
			x0[i] = -1
		}
		xl, xu := infBounds(n)
		f := func(x []float64) float64 {
			s := 0.0
			for i := 0; i < len(x)-1; i++ {
				d1 := x[i+1] - x[i]*x[i]
				d2 := 1 - x[i]
				s += 100*d1*d1 + d2*d2
			}
			return s
		}
		return cobyqa.New(f, x0, xl, xu, nil, nil, nil, nil, nil, nil, opts)
	}},
	"bound-sphere": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 5
		xl := []float64{0, 1, 2, 3, 4}
		xu := []float64{10, 10, 10, 10, 10}
		x0 := []float64{1, 1, 1, 1, 1}
		f := func(x []float64) float64 {
			s := 0.0
			for i, v := range x {
				d := v - float64(i)
				s += d * d
			}
			return s
		}
		return cobyqa.New(f, x0, xl, xu, nil, nil, nil, nil, nil, nil, opts)
	}},
	"linear-ineq": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 2
		x0 := []float64{0, 0}
		xl, xu := infBounds(n)
		aub := mat.NewDense(1, n, []float64{1, 1})
		bub := []float64{1}
		f := func(x []float64) float64 {
			return x[0]*x[0] + x[1]*x[1] - 2*x[0] - 2*x[1]
		}
		return cobyqa.New(f, x0, xl, xu, aub, bub, nil, nil, nil, nil, opts)
	}},
	"linear-eq": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 3
		x0 := []float64{0.5, 0.3, 0.2}
		xl, xu := infBounds(n)
		aeq := mat.NewDense(1, n, []float64{1, 1, 1})
		beq := []float64{1}
		f := func(x []float64) float64 {
			s := 0.0
			for _, v := range x {
				s += v * v
			}
			return s
		}
		return cobyqa.New(f, x0, xl, xu, nil, nil, aeq, beq, nil, nil, opts)
	}},
	"nonlinear-eq": {build: func(opts cobyqa.Options) (*cobyqa.Solver, error) {
		n := 3
		x0 := []float64{0.5, 0.3, 0.2}
		xl, xu := infBounds(n)
		ceq := func(x []float64) []float64 {
			s := -1.0
			for _, v := range x {
				s += v
			}
			return []float64{s}
		}
		f := func(x []float64) float64 {
			s := 0.0
			for _, v := range x {
				s += v * v
			}
			return s
		}
		return cobyqa.New(f, x0, xl, xu, nil, nil, nil, nil, nil, ceq, opts)
	}},
}

func infBounds(n int) ([]float64, []float64) {
	xl := make([]float64, n)
	xu := make([]float64, n)
	for i := range xl {
		xl[i] = math.Inf(-1)
		xu[i] = math.Inf(1)
	}
	return xl, xu
}
