// Package cobyqa implements a derivative-free trust-region method for
// constrained nonlinear optimization.
//
// The solver minimizes a scalar objective f(x) over x in R^n subject to
// bound, linear, and nonlinear constraints, using only function values —
// no gradients or Hessians are required from the caller. Progress is driven
// by quadratic models built by underdetermined (least Frobenius-norm)
// interpolation on a moving set of sample points, combined with a
// Byrd-Omojokun composite trust-region step.
//
// The Solver type exposes the interpolation-model machinery and the
// trust-region iteration; it does not itself implement the outer
// convergence loop (evaluation budgets, stopping tests) or the
// general-purpose constrained-QP subproblem solvers it calls into — see
// the internal/subsolver package for those, and cmd/cobyqa-bench for a
// minimal driver loop.
package cobyqa
