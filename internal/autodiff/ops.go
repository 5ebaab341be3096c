package autodiff

import (
	"math"

	"neurode/internal/tensor"
)

// Add returns a + b elementwise.
func Add(a, b *Value) *Value {
	return &Value{
		data:   a.data.Add(b.data),
		inputs: []*Value{a, b},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g, g}
		},
	}
}

// Sub returns a - b elementwise.
func Sub(a, b *Value) *Value {
	return &Value{
		data:   a.data.Sub(b.data),
		inputs: []*Value{a, b},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g, g.Neg()}
		},
	}
}

// Neg returns -a.
func Neg(a *Value) *Value {
	return &Value{
		data:   a.data.Neg(),
		inputs: []*Value{a},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g.Neg()}
		},
	}
}

// Scale returns c * a for a constant c.
func Scale(a *Value, c float64) *Value {
	return &Value{
		data:   a.data.Scale(c),
		inputs: []*Value{a},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g.Scale(c)}
		},
	}
}

// Mul returns a * b elementwise.
func Mul(a, b *Value) *Value {
	return &Value{
		data:   a.data.MulElem(b.data),
		inputs: []*Value{a, b},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g.MulElem(b.data), g.MulElem(a.data)}
		},
	}
}

// MatVec returns m @ x for a rank-2 m and rank-1 x.
// d(m@x)/dm = g ⊗ x, d(m@x)/dx = gᵀ m.
func MatVec(m, x *Value) *Value {
	return &Value{
		data:   tensor.MatVec(m.data, x.data),
		inputs: []*Value{m, x},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{tensor.Outer(g, x.data), tensor.VecMat(g, m.data)}
		},
	}
}

// ScaleBy returns a scaled by the scalar value s (broadcast multiply).
func ScaleBy(a, s *Value) *Value {
	sv := s.data.Value()
	return &Value{
		data:   a.data.Scale(sv),
		inputs: []*Value{a, s},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g.Scale(sv), tensor.Scalar(g.MulElem(a.data).Sum())}
		},
	}
}

// Sum reduces a to a scalar.
func Sum(a *Value) *Value {
	return &Value{
		data:   tensor.Scalar(a.data.Sum()),
		inputs: []*Value{a},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{tensor.OnesLike(a.data).Scale(g.Value())}
		},
	}
}

// Tanh applies tanh elementwise.
func Tanh(a *Value) *Value {
	out := a.data.Apply(math.Tanh)
	return &Value{
		data:   out,
		inputs: []*Value{a},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			d := out.Apply(func(y float64) float64 { return 1 - y*y })
			return []*tensor.Dense{g.MulElem(d)}
		},
	}
}

// Sin applies sin elementwise.
func Sin(a *Value) *Value {
	return &Value{
		data:   a.data.Apply(math.Sin),
		inputs: []*Value{a},
		backward: func(g *tensor.Dense) []*tensor.Dense {
			return []*tensor.Dense{g.MulElem(a.data.Apply(math.Cos))}
		},
	}
}
