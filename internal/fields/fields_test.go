package fields

import (
	"math"
	"testing"

	"neurode/internal/autodiff"
	"neurode/internal/tensor"
)

func evalField(net interface {
	DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value
}, t float64, state *tensor.Dense) *tensor.Dense {
	outs := net.DeriveGraph(autodiff.NewTape(), t, []*autodiff.Value{autodiff.Constant(state)})
	return outs[0].Data()
}

func TestDecayDerivative(t *testing.T) {
	d := NewDecay(2.0)
	out := evalField(d, 0, tensor.Vector(1, -3))
	if out.Data[0] != -2 || out.Data[1] != 6 {
		t.Errorf("got %v, expected [-2 6]", out.Data)
	}
	if d.Params() != nil {
		t.Error("decay has no parameters")
	}
}

func TestScalarLinearDerivative(t *testing.T) {
	s := NewScalarLinear(0.5)
	out := evalField(s, 0, tensor.Vector(2, 4))
	if out.Data[0] != 1 || out.Data[1] != 2 {
		t.Errorf("got %v, expected [1 2]", out.Data)
	}
	if len(s.Params()) != 1 {
		t.Fatalf("expected 1 parameter, got %d", len(s.Params()))
	}
}

func TestOscillatorDerivative(t *testing.T) {
	o := Oscillator()
	out := evalField(o, 0, tensor.Vector(3, 4))
	if out.Data[0] != 4 || out.Data[1] != -3 {
		t.Errorf("got %v, expected [4 -3]", out.Data)
	}
}

func TestOscillatorSolution(t *testing.T) {
	// exp(At) for the rotation generator is a plane rotation
	o := Oscillator()
	x0 := tensor.Vector(1, 0)

	for _, dt := range []float64{0.3, 1.0, math.Pi} {
		sol := o.Solution(dt, x0)
		if math.Abs(sol.Data[0]-math.Cos(dt)) > 1e-10 {
			t.Errorf("dt=%.2f: got %f, expected %f", dt, sol.Data[0], math.Cos(dt))
		}
		if math.Abs(sol.Data[1]-(-math.Sin(dt))) > 1e-10 {
			t.Errorf("dt=%.2f: got %f, expected %f", dt, sol.Data[1], -math.Sin(dt))
		}
	}
}

func TestNewLinearRejectsNonSquare(t *testing.T) {
	a, _ := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if _, err := NewLinear(a); err == nil {
		t.Error("expected error for non-square matrix")
	}
	if _, err := NewLinear(tensor.Vector(1, 2)); err == nil {
		t.Error("expected error for rank-1 input")
	}
}

func TestMLPShapeAndDeterminism(t *testing.T) {
	m1 := NewMLP(3, 8, 42)
	m2 := NewMLP(3, 8, 42)

	x := tensor.Vector(0.1, -0.2, 0.3)
	out1 := evalField(m1, 0, x)
	out2 := evalField(m2, 0, x)

	if out1.NumElements() != 3 {
		t.Fatalf("mlp output dim: got %v", out1.Shape)
	}
	if !out1.IsValid() {
		t.Fatal("mlp produced non-finite output")
	}
	for i := range out1.Data {
		if out1.Data[i] != out2.Data[i] {
			t.Errorf("same seed should give same output, differ at %d", i)
			break
		}
	}

	if len(m1.Params()) != 4 {
		t.Errorf("mlp parameters: got %d, expected 4", len(m1.Params()))
	}
}

func TestMLPGradientFlowsToParams(t *testing.T) {
	m := NewMLP(2, 4, 7)
	tp := autodiff.NewTape()
	outs := m.DeriveGraph(tp, 0, []*autodiff.Value{autodiff.Constant(tensor.Vector(0.5, -0.5))})

	if err := autodiff.Backward(autodiff.Sum(outs[0]), tensor.Scalar(1)); err != nil {
		t.Fatalf("backward: %v", err)
	}
	tp.Accumulate()

	touched := 0
	for _, p := range m.Params() {
		if p.Grad != nil {
			touched++
		}
	}
	if touched == 0 {
		t.Error("no parameter received a gradient")
	}
}
