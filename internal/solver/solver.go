// Package solver integrates phase vector fields over time.
//
// A [Solver] turns a field into a forward operator:
//
//	forward := solver.NewFixedGrid(solver.RK4Step, 100).Forward(f)
//	x1, err := forward(t0, t1, x0)
//
// forward(t0, t0, x0) == x0, and both time directions are supported: the
// step size takes the sign of t1-t0, so forward(t1, t0, x1) undoes
// forward(t0, t1, x0) up to integration error. The reverse-mode adjoint
// pass relies on this.
//
// [Dynamical] integrates until a [StopCondition] fires instead of to a fixed
// end time, reporting the stopping boundary in a [Result].
package solver

import (
	"errors"
	"fmt"

	"neurode/internal/phase"
)

// Domain errors for integration.
var (
	// ErrDiverged indicates the state picked up NaN or Inf values.
	ErrDiverged = errors.New("solver: state diverged (NaN or Inf)")

	// ErrStepTooSmall indicates adaptive step control pushed the step below
	// its minimum without meeting the tolerance.
	ErrStepTooSmall = errors.New("solver: adaptive step below minimum")
)

// SolveError wraps an integration failure with the step and time at which it
// occurred.
type SolveError struct {
	Step int
	Time float64
	Err  error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f): %v", e.Step, e.Time, e.Err)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}

// ForwardFunc advances a phase point from t0 to t1 along a field.
type ForwardFunc func(t0, t1 float64, x0 phase.Point) (phase.Point, error)

// Solver produces a forward operator for a field.
type Solver interface {
	Forward(f phase.VectorField) ForwardFunc
}

// StepFunc is the pluggable stepping primitive: one integration step of size
// dt starting at (t, x). dt may be negative.
type StepFunc func(f phase.VectorField, t float64, x phase.Point, dt float64) phase.Point

// EulerStep advances by the explicit Euler rule.
func EulerStep(f phase.VectorField, t float64, x phase.Point, dt float64) phase.Point {
	return phase.AXPY(dt, f.Derive(t, x), x)
}

// RK4Step advances by the classical fourth-order Runge-Kutta rule.
func RK4Step(f phase.VectorField, t float64, x phase.Point, dt float64) phase.Point {
	k1 := f.Derive(t, x)
	k2 := f.Derive(t+dt/2, phase.AXPY(dt/2, k1, x))
	k3 := f.Derive(t+dt/2, phase.AXPY(dt/2, k2, x))
	k4 := f.Derive(t+dt, phase.AXPY(dt, k3, x))
	incr := phase.Combine([]float64{1, 2, 2, 1}, []phase.Point{k1, k2, k3, k4})
	return phase.AXPY(dt/6, incr, x)
}
