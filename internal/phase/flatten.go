package phase

import (
	"errors"
	"fmt"

	"neurode/internal/tensor"
)

// ErrShapeMismatch indicates a point does not match the structure it is being
// reassembled against. This is fatal at the autodiff boundary.
var ErrShapeMismatch = errors.New("phase: point structure mismatch")

// Structure records the tree skeleton and leaf shapes of a Point so a flat
// leaf sequence can be reassembled into the original tree.
type Structure struct {
	LeafShape []int // set when this node is a leaf
	leaf      bool
	Children  []Structure
}

func (s Structure) IsLeaf() bool { return s.leaf }

// NumLeaves returns the number of leaves under s.
func (s Structure) NumLeaves() int {
	if s.leaf {
		return 1
	}
	n := 0
	for _, c := range s.Children {
		n += c.NumLeaves()
	}
	return n
}

// Equal reports whether two structures share skeleton and leaf shapes.
func (s Structure) Equal(other Structure) bool {
	if s.leaf != other.leaf {
		return false
	}
	if s.leaf {
		if len(s.LeafShape) != len(other.LeafShape) {
			return false
		}
		for i := range s.LeafShape {
			if s.LeafShape[i] != other.LeafShape[i] {
				return false
			}
		}
		return true
	}
	if len(s.Children) != len(other.Children) {
		return false
	}
	for i := range s.Children {
		if !s.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Flatten decomposes p into its leaf tensors in depth-first order, together
// with the structure needed to reassemble them.
func Flatten(p Point) ([]*tensor.Dense, Structure) {
	var leaves []*tensor.Dense
	s := flattenInto(p, &leaves)
	return leaves, s
}

func flattenInto(p Point, leaves *[]*tensor.Dense) Structure {
	if p.IsLeaf() {
		*leaves = append(*leaves, p.Leaf)
		return Structure{leaf: true, LeafShape: append([]int(nil), p.Leaf.Shape...)}
	}
	s := Structure{Children: make([]Structure, len(p.Children))}
	for i, c := range p.Children {
		s.Children[i] = flattenInto(c, leaves)
	}
	return s
}

// Unflatten reassembles leaves into a Point matching s. The leaf count and
// every leaf shape must match; otherwise ErrShapeMismatch.
func Unflatten(s Structure, leaves []*tensor.Dense) (Point, error) {
	if got, want := len(leaves), s.NumLeaves(); got != want {
		return Point{}, fmt.Errorf("%w: %d leaves, structure wants %d", ErrShapeMismatch, got, want)
	}
	p, _, err := unflatten(s, leaves)
	if err != nil {
		return Point{}, err
	}
	return p, nil
}

func unflatten(s Structure, leaves []*tensor.Dense) (Point, []*tensor.Dense, error) {
	if s.leaf {
		t := leaves[0]
		if !shapeEqual(t.Shape, s.LeafShape) {
			return Point{}, nil, fmt.Errorf("%w: leaf shape %v, structure wants %v", ErrShapeMismatch, t.Shape, s.LeafShape)
		}
		return Point{Leaf: t}, leaves[1:], nil
	}
	p := Point{Children: make([]Point, len(s.Children))}
	var err error
	for i, c := range s.Children {
		p.Children[i], leaves, err = unflatten(c, leaves)
		if err != nil {
			return Point{}, nil, err
		}
	}
	return p, leaves, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// StructureOf returns the structure of p without flattening it.
func StructureOf(p Point) Structure {
	if p.IsLeaf() {
		return Structure{leaf: true, LeafShape: append([]int(nil), p.Leaf.Shape...)}
	}
	s := Structure{Children: make([]Structure, len(p.Children))}
	for i, c := range p.Children {
		s.Children[i] = StructureOf(c)
	}
	return s
}
