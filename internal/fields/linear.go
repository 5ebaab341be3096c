package fields

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"neurode/internal/autodiff"
	"neurode/internal/tensor"
)

// Linear is the field dz/dt = A z with a fixed square matrix A and no
// trainable parameters. Its flow has the closed form
// z(t1) = exp(A (t1-t0)) z(t0), used as the analytic reference for
// finite-difference checks.
type Linear struct {
	A *tensor.Dense
}

func NewLinear(a *tensor.Dense) (*Linear, error) {
	if len(a.Shape) != 2 || a.Shape[0] != a.Shape[1] {
		return nil, fmt.Errorf("fields: linear field needs a square matrix, got shape %v", a.Shape)
	}
	return &Linear{A: a}, nil
}

// Oscillator returns the 2D rotation field A = [[0, 1], [-1, 0]], whose flow
// is cos/sin on the two components.
func Oscillator() *Linear {
	a, _ := tensor.FromSlice([]float64{0, 1, -1, 0}, 2, 2)
	return &Linear{A: a}
}

func (l *Linear) DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value {
	a := autodiff.Constant(l.A)
	out := make([]*autodiff.Value, len(state))
	for i, z := range state {
		out[i] = autodiff.MatVec(a, z)
	}
	return out
}

func (l *Linear) Params() []*autodiff.Variable { return nil }

// Solution evaluates the analytic flow exp(A dt) x0.
func (l *Linear) Solution(dt float64, x0 *tensor.Dense) *tensor.Dense {
	n := l.A.Shape[0]
	scaled := mat.NewDense(n, n, l.A.Scale(dt).Data)
	var expm mat.Dense
	expm.Exp(scaled)

	v := mat.NewVecDense(n, x0.Data)
	var out mat.VecDense
	out.MulVec(&expm, v)

	res, _ := tensor.FromSlice(append([]float64(nil), out.RawVector().Data...), n)
	return res
}
