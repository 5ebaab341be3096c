// Package adjoint computes gradients of ODE solutions by the adjoint
// sensitivity method: instead of differentiating through the solver's steps,
// it integrates an augmented system backward in time.
//
// The augmented state bundles [state, adjoint, grad_accum_1, ...]: the
// original phase point, the costate da/dt = -(∂f/∂z)ᵀa, and one gradient
// accumulator per network parameter. A single augmented field definition
// serves both directions because the adjoint is negated before the
// vector-Jacobian product, so the backward pass is just a forward solve with
// swapped time arguments.
package adjoint

import (
	"fmt"

	"neurode/internal/autodiff"
	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/tensor"
)

// Network is a phase vector field the autodiff engine can differentiate.
// DeriveGraph evaluates the field over lifted state leaves (the flattened
// form of a phase point) and returns output leaves in the same order;
// parameters are bound through tp so their gradients can be requested.
type Network interface {
	DeriveGraph(tp *autodiff.Tape, t float64, state []*autodiff.Value) []*autodiff.Value
	Params() []*autodiff.Variable
}

func lift(leaves []*tensor.Dense) []*autodiff.Value {
	vals := make([]*autodiff.Value, len(leaves))
	for i, l := range leaves {
		vals[i] = autodiff.Constant(l)
	}
	return vals
}

func evalGraph(net Network, t float64, x phase.Point) (phase.Point, []*autodiff.Value, []*autodiff.Value, *autodiff.Tape) {
	leaves, structure := phase.Flatten(x)
	in := lift(leaves)
	tp := autodiff.NewTape()
	outs := net.DeriveGraph(tp, t, in)
	outLeaves := make([]*tensor.Dense, len(outs))
	for i, o := range outs {
		outLeaves[i] = o.Data()
	}
	y, err := phase.Unflatten(structure, outLeaves)
	if err != nil {
		// The field contract requires output structure == input structure.
		panic(fmt.Sprintf("adjoint: network broke the field contract: %v", err))
	}
	return y, in, outs, tp
}

// Field adapts a Network to a plain phase.VectorField by evaluating its
// graph and discarding it.
func Field(net Network) phase.VectorField {
	return phase.FieldFunc(func(t float64, x phase.Point) phase.Point {
		y, _, _, _ := evalGraph(net, t, x)
		return y
	})
}

// Augment builds the augmented vector field over [state, adjoint, g_1..g_k]:
//
//	aug_f(t, [z, a, g...]) = [f(t,z), vjp_z, vjp_θ1, ..., vjp_θk]
//
// where the vector-Jacobian products are taken against the negated adjoint.
// Parameters that do not influence the output receive zero derivatives.
func Augment(net Network, params []*autodiff.Variable) phase.VectorField {
	return phase.FieldFunc(func(t float64, aug phase.Point) phase.Point {
		state := aug.Children[0]
		adj := aug.Children[1]

		y, in, outs, tp := evalGraph(net, t, state)

		negAdj, _ := phase.Flatten(adj.Neg())

		wrt := make([]*autodiff.Value, 0, len(in)+len(params))
		wrt = append(wrt, in...)
		for _, p := range params {
			wrt = append(wrt, tp.Var(p))
		}
		grads, err := autodiff.VJP(outs, negAdj, wrt)
		if err != nil {
			panic(fmt.Sprintf("adjoint: vjp failed: %v", err))
		}

		vjpState, err := phase.Unflatten(phase.StructureOf(state), grads[:len(in)])
		if err != nil {
			panic(fmt.Sprintf("adjoint: vjp structure mismatch: %v", err))
		}

		children := make([]phase.Point, 0, 2+len(params))
		children = append(children, y, vjpState)
		for i := range params {
			children = append(children, phase.LeafOf(grads[len(in)+i]))
		}
		return phase.TreeOf(children...)
	})
}

// BackwardFunc recovers, from a final state and final loss gradient, the
// initial state, the loss gradient with respect to it, and the loss
// gradients with respect to the parameters.
type BackwardFunc func(t0, t1 float64, finalState, finalGrad phase.Point) (initState, initGrad phase.Point, paramGrads []*tensor.Dense, err error)

// ReverseModeDerivative composes a base solver with the augmented dynamics.
// The returned backward operator integrates the augmented system from t1
// down to t0; any solver failure propagates and no partial results are
// returned. Gradients are exact under exact integration of the continuous
// adjoint equations.
func ReverseModeDerivative(slv solver.Solver, net Network, params []*autodiff.Variable) BackwardFunc {
	forward := slv.Forward(Augment(net, params))

	return func(t0, t1 float64, finalState, finalGrad phase.Point) (phase.Point, phase.Point, []*tensor.Dense, error) {
		if !phase.StructureOf(finalState).Equal(phase.StructureOf(finalGrad)) {
			return phase.Point{}, phase.Point{}, nil,
				fmt.Errorf("%w: final loss gradient does not match final state", phase.ErrShapeMismatch)
		}

		children := make([]phase.Point, 0, 2+len(params))
		children = append(children, finalState, finalGrad)
		for _, p := range params {
			children = append(children, phase.LeafOf(tensor.ZerosLike(p.Value)))
		}

		// Swapped time arguments: integrating the augmented field from t1 to
		// t0 runs the adjoint system backward in time.
		augInit, err := forward(t1, t0, phase.TreeOf(children...))
		if err != nil {
			return phase.Point{}, phase.Point{}, nil, err
		}

		initState := augInit.Children[0]
		initGrad := augInit.Children[1]
		paramGrads := make([]*tensor.Dense, len(params))
		for i := range params {
			paramGrads[i] = augInit.Children[2+i].Leaf
		}
		return initState, initGrad, paramGrads, nil
	}
}
