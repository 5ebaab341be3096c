package solver

import (
	"math"

	"neurode/internal/phase"
	"neurode/internal/tensor"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is an adaptive Dormand-Prince integrator. The step size shrinks until
// the local error estimate meets Tol; ErrStepTooSmall if MinStep is reached
// first.
type RK45 struct {
	Tol      float64
	InitStep float64
	MinStep  float64

	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		Tol:      1e-6,
		InitStep: 0.01,
		MinStep:  1e-10,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (s *RK45) Forward(f phase.VectorField) ForwardFunc {
	return func(t0, t1 float64, x0 phase.Point) (phase.Point, error) {
		if t1 == t0 {
			return x0.Clone(), nil
		}
		dir := 1.0
		if t1 < t0 {
			dir = -1.0
		}
		t := t0
		x := x0
		dt := dir * s.InitStep
		step := 0
		for (t1-t)*dir > 0 {
			if (t+dt-t1)*dir > 0 {
				dt = t1 - t
			}
			xNew, errMax := s.attempt(f, t, x, dt)
			errRatio := errMax / s.Tol

			if errRatio <= 1 {
				if !xNew.IsValid() {
					return phase.Point{}, &SolveError{Step: step, Time: t + dt, Err: ErrDiverged}
				}
				t += dt
				x = xNew
				step++
				if errRatio > 0 {
					dt *= math.Min(s.maxScale, s.safety*math.Pow(errRatio, -0.2))
				} else {
					dt *= s.maxScale
				}
			} else {
				dt *= math.Max(s.minScale, s.safety*math.Pow(errRatio, -0.25))
				if math.Abs(dt) < s.MinStep {
					return phase.Point{}, &SolveError{Step: step, Time: t, Err: ErrStepTooSmall}
				}
			}
		}
		return x, nil
	}
}

// attempt takes one trial step of size dt and returns the fifth-order result
// together with the scaled local error estimate.
func (s *RK45) attempt(f phase.VectorField, t float64, x phase.Point, dt float64) (phase.Point, float64) {
	k1 := f.Derive(t, x)
	k2 := f.Derive(t+a2*dt, phase.AXPY(dt*b21, k1, x))
	k3 := f.Derive(t+a3*dt, phase.AXPY(dt, phase.Combine([]float64{b31, b32}, []phase.Point{k1, k2}), x))
	k4 := f.Derive(t+a4*dt, phase.AXPY(dt, phase.Combine([]float64{b41, b42, b43}, []phase.Point{k1, k2, k3}), x))
	k5 := f.Derive(t+a5*dt, phase.AXPY(dt, phase.Combine([]float64{b51, b52, b53, b54}, []phase.Point{k1, k2, k3, k4}), x))
	k6 := f.Derive(t+dt, phase.AXPY(dt, phase.Combine([]float64{b61, b62, b63, b64, b65}, []phase.Point{k1, k2, k3, k4, k5}), x))

	xNew := phase.AXPY(dt, phase.Combine([]float64{c1, c3, c4, c5, c6}, []phase.Point{k1, k3, k4, k5, k6}), x)
	k7 := f.Derive(t+dt, xNew)

	errEst := phase.Combine([]float64{dc1, dc3, dc4, dc5, dc6, dc7}, []phase.Point{k1, k3, k4, k5, k6, k7}).Scale(dt)

	scale := phase.Zip(x, k1, func(xv, kv *tensor.Dense) *tensor.Dense {
		out := tensor.ZerosLike(xv)
		for i := range out.Data {
			out.Data[i] = math.Abs(xv.Data[i]) + math.Abs(dt*kv.Data[i]) + 1e-10
		}
		return out
	})
	ratio := phase.Zip(errEst, scale, func(ev, sv *tensor.Dense) *tensor.Dense {
		out := tensor.ZerosLike(ev)
		for i := range out.Data {
			out.Data[i] = ev.Data[i] / sv.Data[i]
		}
		return out
	})
	return xNew, ratio.MaxAbs()
}
