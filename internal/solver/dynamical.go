package solver

import "neurode/internal/phase"

// StopCondition decides when a dynamical integration halts. Two terminal
// outcomes exist: the elapsed horizon exceeds MaxTime (checked first), or
// the field magnitude drops below RelaxTol (the system relaxed).
type StopCondition struct {
	MaxTime  float64
	RelaxTol float64
}

// Check inspects the step boundary (t1, x1) of an integration that started
// at t0. The first matching outcome wins: timeout, then relaxation.
func (c StopCondition) Check(f phase.VectorField, t0, t1 float64, x1 phase.Point) (stop, relaxed bool) {
	if t1-t0 > c.MaxTime {
		return true, false
	}
	if f.Derive(t1, x1).MaxAbs() < c.RelaxTol {
		return true, true
	}
	return false, false
}

// Result is the outcome of a dynamical integration: the stopping boundary
// and whether the system relaxed before the horizon ran out.
type Result struct {
	Time    float64
	State   phase.Point
	Relaxed bool
}

// RelaxTime returns the stopping time if the system relaxed, -1 if the
// horizon was exhausted first. Callers must treat -1 as "did not relax".
func (r Result) RelaxTime() float64 {
	if r.Relaxed {
		return r.Time
	}
	return -1
}

// DynamicalForwardFunc integrates from t0 until the stop condition fires.
type DynamicalForwardFunc func(t0 float64, x0 phase.Point) (Result, error)

// Dynamical integrates with a fixed step until its StopCondition fires.
// Each Forward call is self-contained; no state is shared between
// integrations.
type Dynamical struct {
	step StepFunc
	dt   float64
	stop StopCondition
}

func NewDynamical(step StepFunc, dt float64, stop StopCondition) *Dynamical {
	if dt <= 0 {
		dt = 0.01
	}
	return &Dynamical{step: step, dt: dt, stop: stop}
}

func (s *Dynamical) Forward(f phase.VectorField) DynamicalForwardFunc {
	return func(t0 float64, x0 phase.Point) (Result, error) {
		t := t0
		x := x0
		for i := 0; ; i++ {
			x1 := s.step(f, t, x, s.dt)
			t1 := t + s.dt
			if !x1.IsValid() {
				return Result{}, &SolveError{Step: i, Time: t1, Err: ErrDiverged}
			}
			if stop, relaxed := s.stop.Check(f, t0, t1, x1); stop {
				return Result{Time: t1, State: x1, Relaxed: relaxed}, nil
			}
			t, x = t1, x1
		}
	}
}
