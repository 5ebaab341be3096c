// Package fields provides concrete phase vector fields: fixed analytic
// fields for validation and trainable networks for fitting.
package fields

import (
	"neurode/internal/adjoint"
	"neurode/internal/autodiff"
	"neurode/internal/tensor"
)

// Decay is the field dz/dt = -rate * z. It has no trainable parameters and
// relaxes toward the origin, which makes it the reference field for stop
// condition behavior.
type Decay struct {
	Rate float64
}

func NewDecay(rate float64) *Decay {
	return &Decay{Rate: rate}
}

func (d *Decay) DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value {
	out := make([]*autodiff.Value, len(state))
	for i, z := range state {
		out[i] = autodiff.Scale(z, -d.Rate)
	}
	return out
}

func (d *Decay) Params() []*autodiff.Variable { return nil }

// ScalarLinear is the field dz/dt = θ z with a trainable scalar θ. Its flow
// has the closed form z(t1) = z(t0) exp(θ (t1-t0)), which pins down the
// parameter gradient exactly.
type ScalarLinear struct {
	Theta *autodiff.Variable
}

func NewScalarLinear(theta float64) *ScalarLinear {
	return &ScalarLinear{Theta: autodiff.NewVariable("theta", tensor.Scalar(theta))}
}

func (s *ScalarLinear) DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value {
	th := tp.Var(s.Theta)
	out := make([]*autodiff.Value, len(state))
	for i, z := range state {
		out[i] = autodiff.ScaleBy(z, th)
	}
	return out
}

func (s *ScalarLinear) Params() []*autodiff.Variable {
	return []*autodiff.Variable{s.Theta}
}

var _ adjoint.Network = (*Decay)(nil)
var _ adjoint.Network = (*ScalarLinear)(nil)
