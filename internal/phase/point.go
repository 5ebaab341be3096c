// Package phase defines the state space of a continuous-depth network:
// tree-shaped phase points, the vector field contract, and the canonical
// flatten/unflatten pair used at the autodiff boundary.
//
//   - [Point]: tree of tensors (a single leaf, or an ordered list of subtrees)
//   - [VectorField]: dx/dt = f(t, x), the quantity being integrated
//   - [Structure]: shape skeleton for round-tripping a Point through a flat
//     leaf sequence
//
// Points used together (states, derivatives, adjoints, cotangents) must share
// structure leaf for leaf.
package phase

import (
	"math"

	"neurode/internal/tensor"
)

// Point is a tree-shaped container of tensors. A Point is either a leaf
// (Leaf non-nil) or an internal node with ordered Children.
type Point struct {
	Leaf     *tensor.Dense
	Children []Point
}

// LeafOf wraps a single tensor as a leaf point.
func LeafOf(t *tensor.Dense) Point {
	return Point{Leaf: t}
}

// TreeOf builds an internal node from ordered subtrees.
func TreeOf(children ...Point) Point {
	return Point{Children: children}
}

func (p Point) IsLeaf() bool { return p.Leaf != nil }

func (p Point) Clone() Point {
	if p.IsLeaf() {
		return Point{Leaf: p.Leaf.Clone()}
	}
	out := Point{Children: make([]Point, len(p.Children))}
	for i, c := range p.Children {
		out.Children[i] = c.Clone()
	}
	return out
}

// Map applies fn to every leaf, preserving structure.
func (p Point) Map(fn func(*tensor.Dense) *tensor.Dense) Point {
	if p.IsLeaf() {
		return Point{Leaf: fn(p.Leaf)}
	}
	out := Point{Children: make([]Point, len(p.Children))}
	for i, c := range p.Children {
		out.Children[i] = c.Map(fn)
	}
	return out
}

// Zip applies fn leafwise across two points of identical structure.
func Zip(a, b Point, fn func(x, y *tensor.Dense) *tensor.Dense) Point {
	if a.IsLeaf() {
		return Point{Leaf: fn(a.Leaf, b.Leaf)}
	}
	out := Point{Children: make([]Point, len(a.Children))}
	for i := range a.Children {
		out.Children[i] = Zip(a.Children[i], b.Children[i], fn)
	}
	return out
}

func (p Point) Add(other Point) Point {
	return Zip(p, other, func(x, y *tensor.Dense) *tensor.Dense { return x.Add(y) })
}

func (p Point) Scale(factor float64) Point {
	return p.Map(func(t *tensor.Dense) *tensor.Dense { return t.Scale(factor) })
}

func (p Point) Neg() Point {
	return p.Scale(-1)
}

// Combine returns sum_i coeffs[i]*points[i], leafwise. All points must share
// structure; the base point decides the output shapes.
func Combine(coeffs []float64, points []Point) Point {
	out := points[0].Map(func(t *tensor.Dense) *tensor.Dense {
		return t.Scale(coeffs[0])
	})
	for i := 1; i < len(points); i++ {
		c := coeffs[i]
		out = Zip(out, points[i], func(x, y *tensor.Dense) *tensor.Dense {
			acc := x.Clone()
			acc.AddScaled(c, y)
			return acc
		})
	}
	return out
}

// AXPY returns x + a*y without mutating either point.
func AXPY(a float64, y, x Point) Point {
	return Zip(x, y, func(xv, yv *tensor.Dense) *tensor.Dense {
		acc := xv.Clone()
		acc.AddScaled(a, yv)
		return acc
	})
}

func (p Point) IsValid() bool {
	if p.IsLeaf() {
		return p.Leaf.IsValid()
	}
	for _, c := range p.Children {
		if !c.IsValid() {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest absolute value over all leaves.
func (p Point) MaxAbs() float64 {
	if p.IsLeaf() {
		return p.Leaf.MaxAbs()
	}
	m := 0.0
	for _, c := range p.Children {
		if v := c.MaxAbs(); v > m {
			m = v
		}
	}
	return m
}

// Norm returns the Euclidean norm over all leaves.
func (p Point) Norm() float64 {
	return math.Sqrt(normSq(p))
}

func normSq(p Point) float64 {
	if p.IsLeaf() {
		n := p.Leaf.Norm()
		return n * n
	}
	acc := 0.0
	for _, c := range p.Children {
		acc += normSq(c)
	}
	return acc
}

// VectorField maps (time, state) to the state derivative. The output point
// shares the input's structure. Divergence (NaN/Inf) is detected by the
// solver loop, not by the field.
type VectorField interface {
	Derive(t float64, x Point) Point
}

// FieldFunc adapts a plain function to VectorField.
type FieldFunc func(t float64, x Point) Point

func (f FieldFunc) Derive(t float64, x Point) Point { return f(t, x) }
