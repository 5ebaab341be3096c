package autodiff

import "neurode/internal/tensor"

// CustomBackward is a user-supplied backward rule. It receives the cotangent
// of every registered output and returns cotangents for the registered
// inputs and gradients for the registered variables, positionally. A nil
// entry means no gradient flows to that input; variable gradients are
// accumulated into Variable.Grad by the engine.
type CustomBackward func(cotangents []*tensor.Dense) (inputGrads, varGrads []*tensor.Dense, err error)

type customRule struct {
	inputs  []*Value
	vars    []*Variable
	outputs []*Value
	back    CustomBackward
}

// Custom registers a backward rule for outputs produced outside the graph.
// The returned values stand in for the outputs; when a backward sweep
// reaches them, the engine gathers their cotangents and calls back once
// instead of differentiating through whatever computed the outputs.
func Custom(inputs []*Value, vars []*Variable, outputs []*tensor.Dense, back CustomBackward) []*Value {
	r := &customRule{
		inputs: inputs,
		vars:   vars,
		back:   back,
	}
	outs := make([]*Value, len(outputs))
	for i, t := range outputs {
		outs[i] = &Value{
			data:      t,
			inputs:    inputs,
			rule:      r,
			ruleIndex: i,
		}
	}
	r.outputs = outs
	return outs
}

func fireRule(r *customRule, cots []*tensor.Dense) error {
	for i, c := range cots {
		if c == nil {
			cots[i] = tensor.ZerosLike(r.outputs[i].data)
		}
	}
	inGrads, varGrads, err := r.back(cots)
	if err != nil {
		return err
	}
	for i, in := range r.inputs {
		if i < len(inGrads) && inGrads[i] != nil {
			in.accumulate(inGrads[i])
		}
	}
	for i, p := range r.vars {
		if i < len(varGrads) && varGrads[i] != nil {
			p.AccumulateGrad(varGrads[i])
		}
	}
	return nil
}
