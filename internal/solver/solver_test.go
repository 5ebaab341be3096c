package solver_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/tensor"
)

// dz/dt = -z
var decay = phase.FieldFunc(func(t float64, x phase.Point) phase.Point {
	return x.Neg()
})

// dz/dt = [z1, -z0], flow is cos/sin
var oscillator = phase.FieldFunc(func(t float64, x phase.Point) phase.Point {
	z := x.Leaf
	return phase.LeafOf(tensor.Vector(z.Data[1], -z.Data[0]))
})

var _ = Describe("FixedGrid", func() {
	It("returns the initial point unchanged when t1 == t0", func() {
		s := solver.NewFixedGrid(solver.RK4Step, 50)
		x0 := phase.LeafOf(tensor.Vector(1, 2))

		x1, err := s.Forward(decay)(0.5, 0.5, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x1.Leaf.Data).To(Equal([]float64{1, 2}))

		x1.Leaf.Data[0] = 99
		Expect(x0.Leaf.Data[0]).To(Equal(1.0), "result must not alias the input")
	})

	It("matches cos/sin on the oscillator with RK4", func() {
		s := solver.NewFixedGrid(solver.RK4Step, 100)
		x0 := phase.LeafOf(tensor.Vector(1, 0))

		x1, err := s.Forward(oscillator)(0, 1, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x1.Leaf.Data[0]).To(BeNumerically("~", math.Cos(1), 1e-6))
		Expect(x1.Leaf.Data[1]).To(BeNumerically("~", -math.Sin(1), 1e-6))
	})

	It("is first-order accurate with Euler", func() {
		s := solver.NewFixedGrid(solver.EulerStep, 1000)
		x0 := phase.LeafOf(tensor.Scalar(1))

		x1, err := s.Forward(decay)(0, 1, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x1.Leaf.Value()).To(BeNumerically("~", math.Exp(-1), 1e-3))
	})

	It("undoes a forward solve when the time arguments are swapped", func() {
		s := solver.NewFixedGrid(solver.RK4Step, 200)
		forward := s.Forward(oscillator)
		x0 := phase.LeafOf(tensor.Vector(0.7, -0.3))

		x1, err := forward(0, 2, x0)
		Expect(err).NotTo(HaveOccurred())

		back, err := forward(2, 0, x1)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.Leaf.Data[0]).To(BeNumerically("~", 0.7, 1e-8))
		Expect(back.Leaf.Data[1]).To(BeNumerically("~", -0.3, 1e-8))
	})

	It("integrates tree-shaped states leaf for leaf", func() {
		s := solver.NewFixedGrid(solver.RK4Step, 100)
		x0 := phase.TreeOf(
			phase.LeafOf(tensor.Vector(1, 2)),
			phase.LeafOf(tensor.Scalar(4)),
		)

		x1, err := s.Forward(decay)(0, 1, x0)
		Expect(err).NotTo(HaveOccurred())
		e := math.Exp(-1)
		Expect(x1.Children[0].Leaf.Data[0]).To(BeNumerically("~", 1*e, 1e-8))
		Expect(x1.Children[0].Leaf.Data[1]).To(BeNumerically("~", 2*e, 1e-8))
		Expect(x1.Children[1].Leaf.Value()).To(BeNumerically("~", 4*e, 1e-8))
	})

	It("reports divergence with the failing step and time", func() {
		blowup := phase.FieldFunc(func(t float64, x phase.Point) phase.Point {
			return x.Map(func(l *tensor.Dense) *tensor.Dense { return l.MulElem(l) })
		})
		s := solver.NewFixedGrid(solver.EulerStep, 10)
		x0 := phase.LeafOf(tensor.Scalar(1e200))

		_, err := s.Forward(blowup)(0, 1, x0)
		Expect(errors.Is(err, solver.ErrDiverged)).To(BeTrue())

		var se *solver.SolveError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Step).To(Equal(0))
	})
})

var _ = Describe("RK45", func() {
	It("meets its tolerance on the decay field", func() {
		s := solver.NewRK45()
		x0 := phase.LeafOf(tensor.Scalar(1))

		x1, err := s.Forward(decay)(0, 1, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x1.Leaf.Value()).To(BeNumerically("~", math.Exp(-1), 1e-5))
	})

	It("integrates backward in time", func() {
		s := solver.NewRK45()
		x1 := phase.LeafOf(tensor.Scalar(math.Exp(-1)))

		x0, err := s.Forward(decay)(1, 0, x1)
		Expect(err).NotTo(HaveOccurred())
		Expect(x0.Leaf.Value()).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("tracks the oscillator over a full period", func() {
		s := solver.NewRK45()
		x0 := phase.LeafOf(tensor.Vector(1, 0))

		x1, err := s.Forward(oscillator)(0, 2*math.Pi, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x1.Leaf.Data[0]).To(BeNumerically("~", 1.0, 1e-4))
		Expect(x1.Leaf.Data[1]).To(BeNumerically("~", 0.0, 1e-4))
	})
})

var _ = Describe("Dynamical", func() {
	It("relaxes the decay field at the expected time", func() {
		stop := solver.StopCondition{MaxTime: 10.0, RelaxTol: 1e-3}
		dyn := solver.NewDynamical(solver.RK4Step, 0.001, stop)
		x0 := phase.LeafOf(tensor.Scalar(1))

		res, err := dyn.Forward(decay)(0, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Relaxed).To(BeTrue())

		// |f| = e^{-t} drops below 1e-3 at t = ln(1000)
		Expect(res.RelaxTime()).To(BeNumerically("~", math.Log(1000), 0.01))
		Expect(res.State.Leaf.Value()).To(BeNumerically("~", 1e-3, 1e-4))
	})

	It("reports -1 when the horizon runs out first", func() {
		stop := solver.StopCondition{MaxTime: 0.5, RelaxTol: 1e-3}
		dyn := solver.NewDynamical(solver.RK4Step, 0.01, stop)
		x0 := phase.LeafOf(tensor.Scalar(1))

		res, err := dyn.Forward(decay)(0, x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Relaxed).To(BeFalse())
		Expect(res.RelaxTime()).To(Equal(-1.0))
		Expect(res.Time).To(BeNumerically("~", 0.5, 0.02))
	})

	It("checks the horizon before relaxation", func() {
		still := phase.FieldFunc(func(t float64, x phase.Point) phase.Point {
			return phase.LeafOf(tensor.ZerosLike(x.Leaf))
		})
		stop := solver.StopCondition{MaxTime: 0.005, RelaxTol: 1e-3}
		dyn := solver.NewDynamical(solver.RK4Step, 0.01, stop)

		res, err := dyn.Forward(still)(0, phase.LeafOf(tensor.Scalar(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Relaxed).To(BeFalse(), "timeout wins even when the field is already still")
	})
})
