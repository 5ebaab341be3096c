package tensor

import (
	"fmt"
	"math"
)

// Dense is a dense float64 tensor: a shape plus flat row-major data.
type Dense struct {
	Shape []int
	Data  []float64
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New returns a zero-filled tensor with the given shape.
func New(shape ...int) *Dense {
	return &Dense{Shape: append([]int(nil), shape...), Data: make([]float64, numElements(shape))}
}

// FromSlice wraps data in a tensor of the given shape.
func FromSlice(data []float64, shape ...int) (*Dense, error) {
	if numElements(shape) != len(data) {
		return nil, fmt.Errorf("tensor: shape %v has %d elements, data has %d", shape, numElements(shape), len(data))
	}
	return &Dense{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Scalar returns a rank-0 tensor holding v.
func Scalar(v float64) *Dense {
	return &Dense{Shape: []int{}, Data: []float64{v}}
}

// Vector returns a rank-1 tensor holding vs.
func Vector(vs ...float64) *Dense {
	return &Dense{Shape: []int{len(vs)}, Data: append([]float64(nil), vs...)}
}

func ZerosLike(t *Dense) *Dense {
	return New(t.Shape...)
}

func OnesLike(t *Dense) *Dense {
	out := New(t.Shape...)
	for i := range out.Data {
		out.Data[i] = 1
	}
	return out
}

func (t *Dense) NumElements() int { return len(t.Data) }

func (t *Dense) Clone() *Dense {
	c := New(t.Shape...)
	copy(c.Data, t.Data)
	return c
}

// Value returns the sole element of a scalar tensor.
func (t *Dense) Value() float64 {
	if len(t.Data) != 1 {
		panic(fmt.Sprintf("tensor: Value on non-scalar shape %v", t.Shape))
	}
	return t.Data[0]
}

func (t *Dense) SameShape(other *Dense) bool {
	if len(t.Shape) != len(other.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

func (t *Dense) mustMatch(other *Dense, op string) {
	if !t.SameShape(other) {
		panic(fmt.Sprintf("tensor: %s shape mismatch %v vs %v", op, t.Shape, other.Shape))
	}
}

func (t *Dense) Add(other *Dense) *Dense {
	t.mustMatch(other, "add")
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] + other.Data[i]
	}
	return out
}

func (t *Dense) Sub(other *Dense) *Dense {
	t.mustMatch(other, "sub")
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] - other.Data[i]
	}
	return out
}

func (t *Dense) MulElem(other *Dense) *Dense {
	t.mustMatch(other, "mul")
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] * other.Data[i]
	}
	return out
}

func (t *Dense) Scale(factor float64) *Dense {
	out := New(t.Shape...)
	for i := range t.Data {
		out.Data[i] = t.Data[i] * factor
	}
	return out
}

func (t *Dense) Neg() *Dense {
	return t.Scale(-1)
}

// AddScaled accumulates factor*other into t in place.
func (t *Dense) AddScaled(factor float64, other *Dense) {
	t.mustMatch(other, "addscaled")
	for i := range t.Data {
		t.Data[i] += factor * other.Data[i]
	}
}

func (t *Dense) Sum() float64 {
	s := 0.0
	for _, v := range t.Data {
		s += v
	}
	return s
}

// MatVec computes m @ v for a rank-2 m and rank-1 v.
func MatVec(m, v *Dense) *Dense {
	if len(m.Shape) != 2 || len(v.Shape) != 1 || m.Shape[1] != v.Shape[0] {
		panic(fmt.Sprintf("tensor: matvec shapes %v x %v", m.Shape, v.Shape))
	}
	rows, cols := m.Shape[0], m.Shape[1]
	out := New(rows)
	for i := 0; i < rows; i++ {
		s := 0.0
		for j := 0; j < cols; j++ {
			s += m.Data[i*cols+j] * v.Data[j]
		}
		out.Data[i] = s
	}
	return out
}

// VecMat computes v @ m, the transpose counterpart of MatVec.
func VecMat(v, m *Dense) *Dense {
	if len(m.Shape) != 2 || len(v.Shape) != 1 || m.Shape[0] != v.Shape[0] {
		panic(fmt.Sprintf("tensor: vecmat shapes %v x %v", v.Shape, m.Shape))
	}
	rows, cols := m.Shape[0], m.Shape[1]
	out := New(cols)
	for j := 0; j < cols; j++ {
		s := 0.0
		for i := 0; i < rows; i++ {
			s += v.Data[i] * m.Data[i*cols+j]
		}
		out.Data[j] = s
	}
	return out
}

// Outer computes the outer product a ⊗ b as a rank-2 tensor.
func Outer(a, b *Dense) *Dense {
	if len(a.Shape) != 1 || len(b.Shape) != 1 {
		panic(fmt.Sprintf("tensor: outer shapes %v x %v", a.Shape, b.Shape))
	}
	out := New(a.Shape[0], b.Shape[0])
	for i, av := range a.Data {
		for j, bv := range b.Data {
			out.Data[i*b.Shape[0]+j] = av * bv
		}
	}
	return out
}

func (t *Dense) Norm() float64 {
	s := 0.0
	for _, v := range t.Data {
		s += v * v
	}
	return math.Sqrt(s)
}

func (t *Dense) MaxAbs() float64 {
	m := 0.0
	for _, v := range t.Data {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func (t *Dense) IsValid() bool {
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Apply returns a new tensor with fn applied elementwise.
func (t *Dense) Apply(fn func(float64) float64) *Dense {
	out := New(t.Shape...)
	for i, v := range t.Data {
		out.Data[i] = fn(v)
	}
	return out
}
