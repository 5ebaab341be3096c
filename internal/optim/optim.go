// Package optim provides gradient-descent optimizers over autodiff
// variables.
package optim

import (
	"math"

	"neurode/internal/autodiff"
)

// Optimizer updates variables in place from their accumulated gradients.
type Optimizer interface {
	Step(params []*autodiff.Variable)
}

// ZeroGrads clears the gradient of every variable.
func ZeroGrads(params []*autodiff.Variable) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LR float64
}

func NewSGD(lr float64) *SGD {
	return &SGD{LR: lr}
}

func (s *SGD) Step(params []*autodiff.Variable) {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		p.Value.AddScaled(-s.LR, p.Grad)
	}
}

// Adam implements the Adam update rule with bias correction.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	t int
	m map[*autodiff.Variable][]float64
	v map[*autodiff.Variable][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[*autodiff.Variable][]float64),
		v:     make(map[*autodiff.Variable][]float64),
	}
}

func (a *Adam) Step(params []*autodiff.Variable) {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		n := p.Value.NumElements()
		if a.m[p] == nil {
			a.m[p] = make([]float64, n)
			a.v[p] = make([]float64, n)
		}
		m, v := a.m[p], a.v[p]
		for j := 0; j < n; j++ {
			g := p.Grad.Data[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.Value.Data[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
}
