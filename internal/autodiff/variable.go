package autodiff

import "neurode/internal/tensor"

// Variable is a named trainable tensor. Its gradient accumulates across
// backward sweeps until ZeroGrad.
type Variable struct {
	Name  string
	Value *tensor.Dense
	Grad  *tensor.Dense
}

func NewVariable(name string, value *tensor.Dense) *Variable {
	return &Variable{Name: name, Value: value}
}

// AccumulateGrad adds g into the variable's gradient, allocating it on first
// use.
func (p *Variable) AccumulateGrad(g *tensor.Dense) {
	if p.Grad == nil {
		p.Grad = tensor.ZerosLike(p.Value)
	}
	p.Grad.AddScaled(1, g)
}

func (p *Variable) ZeroGrad() {
	p.Grad = nil
}

// Tape binds variables to graph leaves for one forward evaluation. Each
// variable maps to a single leaf per tape, so a parameter used twice in a
// graph receives one summed gradient.
type Tape struct {
	leaves map[*Variable]*Value
	order  []*Variable
}

func NewTape() *Tape {
	return &Tape{leaves: make(map[*Variable]*Value)}
}

// Var returns the leaf bound to p on this tape, creating it on first use.
func (tp *Tape) Var(p *Variable) *Value {
	if v, ok := tp.leaves[p]; ok {
		return v
	}
	v := Constant(p.Value)
	tp.leaves[p] = v
	tp.order = append(tp.order, p)
	return v
}

// Watched returns the variables bound on this tape, in first-use order.
func (tp *Tape) Watched() []*Variable {
	return tp.order
}

// Accumulate moves leaf gradients from the last backward sweep into
// Variable.Grad for every watched variable.
func (tp *Tape) Accumulate() {
	for _, p := range tp.order {
		if g := tp.leaves[p].grad; g != nil {
			p.AccumulateGrad(g)
		}
	}
}
