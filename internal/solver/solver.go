// Package solver integrates a compiled model over requested timepoints under
// the non-negativity floor policy.
//
// The floor is a monotone guard on the derivative, not a hard clamp on the
// state: when a species is already at or below zero, its derivative is never
// allowed to be negative. Adaptive steppers may still visit small negative
// states between accepted steps; the guarantee is only that the model never
// computes a derivative that drives a non-positive quantity further down.
package solver

import (
	"errors"
	"fmt"
	"math"

	"cytoflux/internal/compile"
)

var (
	// ErrStepTooSmall indicates the adaptive timestep underflowed while
	// trying to meet the error tolerance.
	ErrStepTooSmall = errors.New("solver: adaptive timestep below minimum")

	// ErrNonFinite indicates the state picked up a NaN or Inf.
	ErrNonFinite = errors.New("solver: state is not finite")

	// ErrBadTimepoints indicates a timepoint vector that is empty or not
	// strictly increasing.
	ErrBadTimepoints = errors.New("solver: timepoints must be strictly increasing")
)

// IntegrationError wraps a numerical failure with the time it occurred at.
// It is recoverable at the sweep level: one sample's failure never aborts a
// batch.
type IntegrationError struct {
	Time    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%v at t=%g", e.Wrapped, e.Time)
}

func (e *IntegrationError) Unwrap() error { return e.Wrapped }

// System computes dst = dX/dt at state x and time t. dst and x have the
// model's species dimension.
type System func(dst, x []float64, t float64)

// Floored binds a compiled model to a parameter vector and applies the
// non-negativity floor, yielding the right-hand side handed to an
// integrator. params is captured by reference; callers pass a copy when the
// original may change.
func Floored(m *compile.Model, params []float64) System {
	return func(dst, x []float64, t float64) {
		m.EvaluateInto(dst, x, params)
		for i := range dst {
			if x[i] <= 0 && dst[i] < 0 {
				dst[i] = 0
			}
		}
	}
}

// Integrator produces one trajectory row per requested timepoint.
type Integrator interface {
	Integrate(sys System, x0 []float64, timepoints []float64) ([][]float64, error)
}

func checkTimepoints(tps []float64) error {
	if len(tps) == 0 {
		return ErrBadTimepoints
	}
	for i := 1; i < len(tps); i++ {
		if tps[i] <= tps[i-1] {
			return ErrBadTimepoints
		}
	}
	return nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
