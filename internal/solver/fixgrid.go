package solver

import "neurode/internal/phase"

// FixedGrid integrates on a uniform grid of n steps between t0 and t1 using
// a pluggable step primitive.
type FixedGrid struct {
	step StepFunc
	n    int
}

func NewFixedGrid(step StepFunc, n int) *FixedGrid {
	if n <= 0 {
		n = 1
	}
	return &FixedGrid{step: step, n: n}
}

func (s *FixedGrid) Forward(f phase.VectorField) ForwardFunc {
	return func(t0, t1 float64, x0 phase.Point) (phase.Point, error) {
		if t1 == t0 {
			return x0.Clone(), nil
		}
		dt := (t1 - t0) / float64(s.n)
		x := x0
		for i := 0; i < s.n; i++ {
			t := t0 + float64(i)*dt
			x = s.step(f, t, x, dt)
			if !x.IsValid() {
				return phase.Point{}, &SolveError{Step: i, Time: t + dt, Err: ErrDiverged}
			}
		}
		return x, nil
	}
}
