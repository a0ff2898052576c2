package dynamo

import "errors"

// Domain errors shared across the simulation packages.
var (
	// ErrInvalidTime indicates a NaN, infinite or negative timestamp.
	ErrInvalidTime = errors.New("dynamo: invalid time")

	// ErrDimensionMismatch indicates arrays whose lengths disagree.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)

// StepError wraps an error with the step at which it happened.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return e.Wrapped.Error()
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
