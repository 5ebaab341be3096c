package phase

import (
	"errors"
	"testing"

	"github.com/onsi/gomega"

	"neurode/internal/tensor"
)

func nested() Point {
	// depth-2 tree with mixed leaf shapes
	m, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
	return TreeOf(
		LeafOf(tensor.Vector(1, 2, 3)),
		TreeOf(
			LeafOf(m),
			LeafOf(tensor.Scalar(7)),
		),
	)
}

func TestFlattenRoundTrip(t *testing.T) {
	g := gomega.NewWithT(t)

	p := nested()
	leaves, structure := Flatten(p)

	g.Expect(leaves).To(gomega.HaveLen(3))
	g.Expect(structure.NumLeaves()).To(gomega.Equal(3))

	back, err := Unflatten(structure, leaves)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(StructureOf(back).Equal(structure)).To(gomega.BeTrue())

	backLeaves, _ := Flatten(back)
	for i := range leaves {
		g.Expect(backLeaves[i].Data).To(gomega.Equal(leaves[i].Data))
	}
}

func TestUnflattenMismatch(t *testing.T) {
	g := gomega.NewWithT(t)

	_, structure := Flatten(nested())

	_, err := Unflatten(structure, []*tensor.Dense{tensor.Scalar(1)})
	g.Expect(errors.Is(err, ErrShapeMismatch)).To(gomega.BeTrue())

	wrong := []*tensor.Dense{tensor.Vector(1, 2), tensor.Vector(1), tensor.Scalar(0)}
	_, err = Unflatten(structure, wrong)
	g.Expect(errors.Is(err, ErrShapeMismatch)).To(gomega.BeTrue())
}

func TestPointArithmetic(t *testing.T) {
	g := gomega.NewWithT(t)

	a := TreeOf(LeafOf(tensor.Vector(1, 2)), LeafOf(tensor.Scalar(3)))
	b := TreeOf(LeafOf(tensor.Vector(10, 20)), LeafOf(tensor.Scalar(30)))

	sum := a.Add(b)
	g.Expect(sum.Children[0].Leaf.Data).To(gomega.Equal([]float64{11, 22}))
	g.Expect(sum.Children[1].Leaf.Value()).To(gomega.Equal(33.0))

	scaled := a.Scale(2)
	g.Expect(scaled.Children[0].Leaf.Data).To(gomega.Equal([]float64{2, 4}))

	neg := a.Neg()
	g.Expect(neg.Children[1].Leaf.Value()).To(gomega.Equal(-3.0))

	// operands untouched
	g.Expect(a.Children[0].Leaf.Data).To(gomega.Equal([]float64{1, 2}))
}

func TestCombine(t *testing.T) {
	g := gomega.NewWithT(t)

	p1 := LeafOf(tensor.Vector(1, 0))
	p2 := LeafOf(tensor.Vector(0, 1))
	p3 := LeafOf(tensor.Vector(1, 1))

	out := Combine([]float64{1, 2, 3}, []Point{p1, p2, p3})
	g.Expect(out.Leaf.Data).To(gomega.Equal([]float64{4, 5}))
}

func TestAXPY(t *testing.T) {
	g := gomega.NewWithT(t)

	x := LeafOf(tensor.Vector(1, 2))
	y := LeafOf(tensor.Vector(10, 10))

	out := AXPY(0.1, y, x)
	g.Expect(out.Leaf.Data).To(gomega.Equal([]float64{2, 3}))
	g.Expect(x.Leaf.Data).To(gomega.Equal([]float64{1, 2}))
}

func TestNorms(t *testing.T) {
	g := gomega.NewWithT(t)

	p := TreeOf(LeafOf(tensor.Vector(3)), LeafOf(tensor.Vector(4)))
	g.Expect(p.Norm()).To(gomega.BeNumerically("~", 5.0, 1e-12))
	g.Expect(p.MaxAbs()).To(gomega.Equal(4.0))
}

func TestStructureEqual(t *testing.T) {
	g := gomega.NewWithT(t)

	s1 := StructureOf(nested())
	s2 := StructureOf(nested())
	g.Expect(s1.Equal(s2)).To(gomega.BeTrue())

	flat := StructureOf(LeafOf(tensor.Vector(1, 2, 3)))
	g.Expect(s1.Equal(flat)).To(gomega.BeFalse())
}
