// Package node exposes ODE solutions as single differentiable operations.
//
// A node function F(t0, t1, x0) is the end point of the flow of a phase
// vector field. Applying one inside an autodiff graph registers a custom
// backward rule that runs the adjoint method (an independent backward-time
// solve) instead of letting the engine differentiate through the solver's
// internal steps.
//
// Phase points are tree-shaped; they cross the registration boundary as a
// flat leaf sequence plus the structure needed to reassemble them, and the
// upstream cotangent is reassembled against the output structure before the
// backward solve.
package node

import (
	"fmt"

	"neurode/internal/adjoint"
	"neurode/internal/autodiff"
	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/tensor"
)

// Function is a static-horizon node function: both integration bounds are
// supplied by the caller.
type Function struct {
	slv     solver.Solver
	net     adjoint.Network
	forward solver.ForwardFunc
}

func New(slv solver.Solver, net adjoint.Network) *Function {
	return &Function{
		slv:     slv,
		net:     net,
		forward: slv.Forward(adjoint.Field(net)),
	}
}

// Forward integrates from t0 to t1 without registering a gradient rule.
func (fn *Function) Forward(t0, t1 float64, x0 phase.Point) (phase.Point, error) {
	return fn.forward(t0, t1, x0)
}

// Apply runs the forward solve on the phase point assembled from leaves and
// registers the adjoint backward rule. The returned values are the flattened
// leaves of the solution, in the same order as the input.
func (fn *Function) Apply(t0, t1 float64, structure phase.Structure, leaves []*autodiff.Value) ([]*autodiff.Value, error) {
	x0, err := assemble(structure, leaves)
	if err != nil {
		return nil, err
	}
	y, err := fn.forward(t0, t1, x0)
	if err != nil {
		return nil, err
	}
	return register(fn.slv, fn.net, t0, t1, structure, leaves, y)
}

// ApplyPoint lifts a constant phase point and applies the node function,
// returning the output leaves and the structure to reassemble them.
func (fn *Function) ApplyPoint(t0, t1 float64, x0 phase.Point) ([]*autodiff.Value, phase.Structure, error) {
	leaves, structure := liftPoint(x0)
	outs, err := fn.Apply(t0, t1, structure, leaves)
	return outs, structure, err
}

// DynamicalFunction is a node function whose end time is not fixed a priori:
// integration runs until the stop condition fires, and the recorded stopping
// time becomes the backward pass's end time. The stopping time itself is
// treated as a constant during differentiation.
type DynamicalFunction struct {
	dyn     *solver.Dynamical
	slv     solver.Solver
	net     adjoint.Network
	forward solver.DynamicalForwardFunc
}

// NewDynamical pairs a dynamical solver for the forward pass with a base
// solver for the backward pass.
func NewDynamical(dyn *solver.Dynamical, slv solver.Solver, net adjoint.Network) *DynamicalFunction {
	return &DynamicalFunction{
		dyn:     dyn,
		slv:     slv,
		net:     net,
		forward: dyn.Forward(adjoint.Field(net)),
	}
}

// Forward integrates from t0 until the stop condition fires.
func (fn *DynamicalFunction) Forward(t0 float64, x0 phase.Point) (solver.Result, error) {
	return fn.forward(t0, x0)
}

// Apply runs the dynamical forward solve and registers the adjoint backward
// rule over the recorded horizon [t0, result.Time].
func (fn *DynamicalFunction) Apply(t0 float64, structure phase.Structure, leaves []*autodiff.Value) (solver.Result, []*autodiff.Value, error) {
	x0, err := assemble(structure, leaves)
	if err != nil {
		return solver.Result{}, nil, err
	}
	res, err := fn.forward(t0, x0)
	if err != nil {
		return solver.Result{}, nil, err
	}
	outs, err := register(fn.slv, fn.net, t0, res.Time, structure, leaves, res.State)
	if err != nil {
		return solver.Result{}, nil, err
	}
	return res, outs, nil
}

// ApplyPoint lifts a constant phase point and applies the dynamical node
// function.
func (fn *DynamicalFunction) ApplyPoint(t0 float64, x0 phase.Point) (solver.Result, []*autodiff.Value, phase.Structure, error) {
	leaves, structure := liftPoint(x0)
	res, outs, err := fn.Apply(t0, structure, leaves)
	return res, outs, structure, err
}

func liftPoint(x phase.Point) ([]*autodiff.Value, phase.Structure) {
	tensors, structure := phase.Flatten(x)
	leaves := make([]*autodiff.Value, len(tensors))
	for i, t := range tensors {
		leaves[i] = autodiff.Constant(t)
	}
	return leaves, structure
}

func assemble(structure phase.Structure, leaves []*autodiff.Value) (phase.Point, error) {
	datas := make([]*tensor.Dense, len(leaves))
	for i, l := range leaves {
		datas[i] = l.Data()
	}
	return phase.Unflatten(structure, datas)
}

// register attaches the adjoint backward rule to the solution y. On gradient
// request, the upstream cotangent leaves are reassembled against the output
// structure and handed to the reverse-mode derivative over [t0, t1].
func register(slv solver.Solver, net adjoint.Network, t0, t1 float64, structure phase.Structure, leaves []*autodiff.Value, y phase.Point) ([]*autodiff.Value, error) {
	yLeaves, yStruct := phase.Flatten(y)
	if !yStruct.Equal(structure) {
		return nil, fmt.Errorf("%w: solution structure does not match input", phase.ErrShapeMismatch)
	}
	params := net.Params()

	outs := autodiff.Custom(leaves, params, yLeaves, func(cots []*tensor.Dense) ([]*tensor.Dense, []*tensor.Dense, error) {
		gradPt, err := phase.Unflatten(yStruct, cots)
		if err != nil {
			return nil, nil, err
		}
		backward := adjoint.ReverseModeDerivative(slv, net, params)
		_, initGrad, paramGrads, err := backward(t0, t1, y, gradPt)
		if err != nil {
			return nil, nil, err
		}
		inGrads, _ := phase.Flatten(initGrad)
		return inGrads, paramGrads, nil
	})
	return outs, nil
}
