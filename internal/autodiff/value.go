package autodiff

import (
	"fmt"

	"neurode/internal/tensor"
)

// Value is a node in the computation graph: a tensor plus the edges and
// backward closure needed for the reverse sweep.
type Value struct {
	data     *tensor.Dense
	inputs   []*Value
	backward func(grad *tensor.Dense) []*tensor.Dense
	grad     *tensor.Dense

	rule      *customRule
	ruleIndex int
}

// Constant wraps a tensor as a graph leaf.
func Constant(t *tensor.Dense) *Value {
	return &Value{data: t}
}

// Data returns the tensor held by v.
func (v *Value) Data() *tensor.Dense { return v.data }

// Grad returns the cotangent accumulated on v by the last backward sweep, or
// nil if none reached it.
func (v *Value) Grad() *tensor.Dense { return v.grad }

func (v *Value) accumulate(g *tensor.Dense) {
	if v.grad == nil {
		v.grad = g.Clone()
		return
	}
	v.grad = v.grad.Add(g)
}

// topo returns the nodes reachable from roots in topological order, inputs
// before consumers.
func topo(roots []*Value) []*Value {
	var order []*Value
	seen := make(map[*Value]bool)
	var visit func(v *Value)
	visit = func(v *Value) {
		if seen[v] {
			return
		}
		seen[v] = true
		for _, in := range v.inputs {
			visit(in)
		}
		order = append(order, v)
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

// Backward seeds out with cotangent and propagates gradients to every
// reachable node.
func Backward(out *Value, cotangent *tensor.Dense) error {
	return BackwardMulti([]*Value{out}, []*tensor.Dense{cotangent})
}

// BackwardMulti runs one reverse sweep from several roots at once. Each
// cotangent must match its root's shape. Custom rules fire exactly once,
// after the cotangents of all their reachable outputs have been gathered;
// unreachable outputs contribute zeros.
func BackwardMulti(outs []*Value, cotangents []*tensor.Dense) error {
	if len(outs) != len(cotangents) {
		return fmt.Errorf("autodiff: %d roots, %d cotangents", len(outs), len(cotangents))
	}
	order := topo(outs)
	for _, v := range order {
		v.grad = nil
	}

	pending := make(map[*customRule]int)
	cots := make(map[*customRule][]*tensor.Dense)
	for _, v := range order {
		if v.rule != nil {
			pending[v.rule]++
			if cots[v.rule] == nil {
				cots[v.rule] = make([]*tensor.Dense, len(v.rule.outputs))
			}
		}
	}

	for i, o := range outs {
		if !o.data.SameShape(cotangents[i]) {
			return fmt.Errorf("autodiff: cotangent shape %v does not match output shape %v",
				cotangents[i].Shape, o.data.Shape)
		}
		o.accumulate(cotangents[i])
	}

	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if v.rule != nil {
			r := v.rule
			if v.grad != nil {
				cots[r][v.ruleIndex] = v.grad
			}
			pending[r]--
			if pending[r] == 0 {
				if err := fireRule(r, cots[r]); err != nil {
					return err
				}
			}
			continue
		}
		if v.grad == nil || v.backward == nil {
			continue
		}
		inGrads := v.backward(v.grad)
		for j, in := range v.inputs {
			if inGrads[j] != nil {
				in.accumulate(inGrads[j])
			}
		}
	}
	return nil
}

// VJP computes vector-Jacobian products: it seeds outs with cotangents, runs
// the reverse sweep, and returns the gradient for each wrt value. Inputs that
// do not influence the outputs yield zeros of their own shape, never an
// error.
func VJP(outs []*Value, cotangents []*tensor.Dense, wrt []*Value) ([]*tensor.Dense, error) {
	if err := BackwardMulti(outs, cotangents); err != nil {
		return nil, err
	}
	grads := make([]*tensor.Dense, len(wrt))
	for i, w := range wrt {
		if w.grad != nil {
			grads[i] = w.grad
		} else {
			grads[i] = tensor.ZerosLike(w.data)
		}
	}
	return grads, nil
}
