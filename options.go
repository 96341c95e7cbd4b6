package cobyqa

import "math"

// Logger receives debug-mode interpolation-consistency warnings. The zero
// value of Options leaves it nil, which silences all diagnostics; callers
// that want them wire in log.New(os.Stderr, "", 0) or any type satisfying
// this interface.
type Logger interface {
	Printf(format string, args ...any)
}

// Options configures a Solver. Every field has a documented
// default applied by resolve when left at its zero value, following
// gonum/optimize's Settings pattern of computing derived defaults lazily
// rather than mutating the caller's struct.
type Options struct {
	// RhoBeg is the initial trust-region radius. Default: max(1, RhoEnd),
	// clamped to at most half the smallest bound gap.
	RhoBeg float64
	// RhoEnd is the terminal trust-region radius. Default: 1e-6, clamped
	// to at most RhoBeg.
	RhoEnd float64
	// Npt is the interpolation-set size. Default: 2n+1, coerced into
	// [n+2, (n+1)(n+2)/2].
	Npt int
	// MaxFev is the objective-evaluation budget. Default:
	// max(500n, Npt+1), coerced to be greater than Npt. The value is
	// resolved but not enforced by the Solver; the driving loop owns
	// stopping.
	MaxFev int
	// Target is the objective value at or below which a driver may stop.
	// Default: -Inf. The Solver resolves it but does not consult it.
	Target float64
	// Debug enables the interpolation-residual check after every update,
	// reported through Logger, and makes New reject keys in Extra. No
	// other invariant of the factorization or the models is checked.
	Debug bool
	// Scale is accepted for parity with the upstream solver's "scale"
	// option but is not read: variables are never rescaled.
	Scale bool
	// Disp is accepted for parity with the upstream solver's "disp"
	// option but is not read: evaluations are not logged.
	Disp bool
	// Logger receives debug diagnostics and the warning about ignored
	// Extra keys. Nil means silent.
	Logger Logger
	// Extra holds option keys with no typed field, kept only for parity
	// with the upstream solver's duck-typed option dict; ordinary callers
	// never need it. New rejects any key in it when Debug is set and
	// otherwise ignores the keys after a warning through Logger.
	Extra map[string]any
}

// resolvedOptions holds the post-clamping derived fields alongside the
// options that produced them.
type resolvedOptions struct {
	Options
	rhobeg float64
	rhoend float64
	npt    int
	maxfev int
}

func (o Options) resolve(n int, xl, xu []float64) resolvedOptions {
	r := resolvedOptions{Options: o}

	rhoend := o.RhoEnd
	if rhoend <= 0 {
		rhoend = 1e-6
	}
	rhobeg := o.RhoBeg
	if rhobeg <= 0 {
		rhobeg = math.Max(1, rhoend)
	}
	if rhobeg < rhoend {
		rhobeg = rhoend
	}
	minGap := math.Inf(1)
	for i := 0; i < n; i++ {
		gap := xu[i] - xl[i]
		if gap < minGap {
			minGap = gap
		}
	}
	if !math.IsInf(minGap, 1) {
		rhobeg = math.Min(rhobeg, 0.5*minGap)
	}
	r.rhobeg = rhobeg
	r.rhoend = math.Min(rhoend, rhobeg)

	npt := o.Npt
	if npt <= 0 {
		npt = 2*n + 1
	}
	lo := n + 2
	hi := (n + 1) * (n + 2) / 2
	r.npt = clampInt(npt, lo, hi)

	maxfev := o.MaxFev
	if maxfev <= 0 {
		maxfev = int(math.Max(float64(500*n), float64(r.npt+1)))
	}
	if maxfev <= r.npt {
		maxfev = r.npt + 1
	}
	r.maxfev = maxfev

	// The zero value doubles as "unset" here, matching Go's usual
	// zero-default convention; a caller who genuinely wants to stop at
	// f == 0 should pass a value an ulp below zero instead.
	if o.Target == 0 {
		r.Target = math.Inf(-1)
	}
	return r
}

func (o *resolvedOptions) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
