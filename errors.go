package cobyqa

import "errors"

// ErrNumericBreakdown is returned by Update when the denominator of the
// interpolation-set swap-update formula underflows. The caller should
// shrink the trust-region radius and retry with a fresh step; the solver's
// state is left unchanged (the swap is never partially applied).
var ErrNumericBreakdown = errors.New("cobyqa: denominator underflow in interpolation swap update")

// RestartIterationError is returned by Update when doubling the penalty
// coefficients changed the incumbent point mid-update. It is a control
// signal, not a failure: the caller should re-derive the step from
// PrepareTrustRegionStep/PrepareModelStep rather than counting it against
// an evaluation or failure budget.
type RestartIterationError struct {
	// Reason describes why the restart was triggered.
	Reason string
}

func (e *RestartIterationError) Error() string {
	if e.Reason == "" {
		return "cobyqa: iteration restart required (incumbent point changed)"
	}
	return "cobyqa: iteration restart required: " + e.Reason
}

// Is reports whether target is also a *RestartIterationError, so that
// callers can use errors.Is(err, &RestartIterationError{}) without caring
// about the Reason field.
func (e *RestartIterationError) Is(target error) bool {
	_, ok := target.(*RestartIterationError)
	return ok
}
