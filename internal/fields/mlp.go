package fields

import (
	"fmt"
	"math"
	"math/rand"

	"neurode/internal/autodiff"
	"neurode/internal/tensor"
)

// MLP is a trainable two-layer network field over a single rank-1 state
// leaf: dz/dt = W2 tanh(W1 z + b1) + b2.
type MLP struct {
	W1, B1 *autodiff.Variable
	W2, B2 *autodiff.Variable
	dim    int
}

// NewMLP builds an MLP field for states of the given dimension, with
// weights drawn from a scaled normal distribution.
func NewMLP(dim, hidden int, seed int64) *MLP {
	rng := rand.New(rand.NewSource(seed))
	return &MLP{
		W1:  autodiff.NewVariable("w1", randTensor(rng, math.Sqrt(1/float64(dim)), hidden, dim)),
		B1:  autodiff.NewVariable("b1", tensor.New(hidden)),
		W2:  autodiff.NewVariable("w2", randTensor(rng, math.Sqrt(1/float64(hidden)), dim, hidden)),
		B2:  autodiff.NewVariable("b2", tensor.New(dim)),
		dim: dim,
	}
}

func randTensor(rng *rand.Rand, scale float64, shape ...int) *tensor.Dense {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64() * scale
	}
	return t
}

func (m *MLP) DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value {
	if len(state) != 1 {
		panic(fmt.Sprintf("fields: mlp field wants a single state leaf, got %d", len(state)))
	}
	z := state[0]
	h := autodiff.Tanh(autodiff.Add(autodiff.MatVec(tp.Var(m.W1), z), tp.Var(m.B1)))
	return []*autodiff.Value{autodiff.Add(autodiff.MatVec(tp.Var(m.W2), h), tp.Var(m.B2))}
}

func (m *MLP) Params() []*autodiff.Variable {
	return []*autodiff.Variable{m.W1, m.B1, m.W2, m.B2}
}
