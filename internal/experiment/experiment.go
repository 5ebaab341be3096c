// Package experiment wires fields, solvers, and node functions into named
// runnable setups: trajectory integration, dynamical relaxation, and
// gradient-based fitting of trainable fields.
package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"neurode/internal/adjoint"
	"neurode/internal/autodiff"
	"neurode/internal/node"
	"neurode/internal/optim"
	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/tensor"
)

// Config describes one experiment. Field-specific knobs (Rate, Theta,
// Hidden) are read only by the field that needs them.
type Config struct {
	Field  string
	Solver string

	T0, T1    float64
	Steps     int
	Tolerance float64
	InitState []float64
	Samples   int

	Rate   float64
	Theta  float64
	Hidden int
	Seed   int64

	// Dynamical-horizon settings.
	Dynamical bool
	Dt        float64
	MaxTime   float64
	RelaxTol  float64
}

func (c Config) gridSteps() int {
	if c.Steps <= 0 {
		return 100
	}
	return c.Steps
}

func (c Config) samples() int {
	if c.Samples <= 0 {
		return 100
	}
	return c.Samples
}

// Result holds a sampled trajectory and, for dynamical runs, the stopping
// outcome.
type Result struct {
	Times  []float64
	States [][]float64

	Relaxed   bool
	RelaxTime float64
}

// Experiment binds a field and a solver resolved from a Config.
type Experiment struct {
	cfg Config
	net adjoint.Network
	slv solver.Solver
}

func New(cfg Config, reg *Registry) (*Experiment, error) {
	if len(cfg.InitState) == 0 {
		return nil, fmt.Errorf("experiment: empty initial state")
	}
	net, err := reg.Field(cfg.Field, cfg)
	if err != nil {
		return nil, err
	}
	slv, err := reg.Solver(cfg.Solver, cfg)
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, net: net, slv: slv}, nil
}

// Network returns the experiment's field, e.g. for training or plotting.
func (e *Experiment) Network() adjoint.Network { return e.net }

func (e *Experiment) initPoint() phase.Point {
	return phase.LeafOf(tensor.Vector(e.cfg.InitState...))
}

// Run integrates the field over [T0, T1], sampling the trajectory on a
// uniform grid. Dynamical configs instead integrate until the stop condition
// fires and sample up to the stopping time.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.cfg.Dynamical {
		return e.runDynamical(ctx)
	}
	return e.sampleTrajectory(ctx, e.cfg.T0, e.cfg.T1)
}

func (e *Experiment) runDynamical(ctx context.Context) (*Result, error) {
	stop := solver.StopCondition{MaxTime: e.cfg.MaxTime, RelaxTol: e.cfg.RelaxTol}
	dyn := solver.NewDynamical(solver.RK4Step, e.cfg.Dt, stop)
	fn := node.NewDynamical(dyn, e.slv, e.net)

	res, err := fn.Forward(e.cfg.T0, e.initPoint())
	if err != nil {
		return nil, err
	}

	out, err := e.sampleTrajectory(ctx, e.cfg.T0, res.Time)
	if err != nil {
		return nil, err
	}
	out.Relaxed = res.Relaxed
	out.RelaxTime = res.RelaxTime()
	return out, nil
}

func (e *Experiment) sampleTrajectory(ctx context.Context, t0, t1 float64) (*Result, error) {
	fn := node.New(e.slv, e.net)
	n := e.cfg.samples()
	dt := (t1 - t0) / float64(n)

	res := &Result{
		Times:     make([]float64, 0, n+1),
		States:    make([][]float64, 0, n+1),
		RelaxTime: -1,
	}

	x := e.initPoint()
	record := func(t float64, p phase.Point) {
		res.Times = append(res.Times, t)
		res.States = append(res.States, append([]float64(nil), p.Leaf.Data...))
	}
	record(t0, x)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		ta := t0 + float64(i)*dt
		tb := t0 + float64(i+1)*dt
		next, err := fn.Forward(ta, tb, x)
		if err != nil {
			return nil, err
		}
		x = next
		record(tb, x)
	}
	return res, nil
}

// TrainConfig controls fitting a trainable field to a reference field's
// flow.
type TrainConfig struct {
	Target string
	Epochs int
	Batch  int
	LR     float64
	Seed   int64
}

// TrainResult records the loss curve.
type TrainResult struct {
	Loss []float64
}

// Train fits the experiment's field so its node function reproduces the
// reference field's end states. Every epoch draws a batch of initial
// states, integrates both fields over [T0, T1], and descends the mean
// squared error; gradients flow through the adjoint backward rule.
func (e *Experiment) Train(ctx context.Context, tcfg TrainConfig, reg *Registry) (*TrainResult, error) {
	params := e.net.Params()
	if len(params) == 0 {
		return nil, fmt.Errorf("experiment: field %q has no trainable parameters", e.cfg.Field)
	}
	target, err := reg.Field(tcfg.Target, e.cfg)
	if err != nil {
		return nil, err
	}

	dim := len(e.cfg.InitState)
	batch := tcfg.Batch
	if batch <= 0 {
		batch = 8
	}
	lr := tcfg.LR
	if lr == 0 {
		lr = 0.05
	}

	modelFn := node.New(e.slv, e.net)
	targetFn := node.New(e.slv, target)
	opt := optim.NewAdam(lr)
	rng := rand.New(rand.NewSource(tcfg.Seed))

	out := &TrainResult{Loss: make([]float64, 0, tcfg.Epochs)}
	for epoch := 0; epoch < tcfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		var loss *autodiff.Value
		for b := 0; b < batch; b++ {
			x0 := tensor.New(dim)
			for i := range x0.Data {
				x0.Data[i] = rng.NormFloat64()
			}
			pt := phase.LeafOf(x0)

			want, err := targetFn.Forward(e.cfg.T0, e.cfg.T1, pt)
			if err != nil {
				return nil, err
			}
			outs, _, err := modelFn.ApplyPoint(e.cfg.T0, e.cfg.T1, pt)
			if err != nil {
				return nil, err
			}

			diff := autodiff.Sub(outs[0], autodiff.Constant(want.Leaf))
			sq := autodiff.Sum(autodiff.Mul(diff, diff))
			if loss == nil {
				loss = sq
			} else {
				loss = autodiff.Add(loss, sq)
			}
		}
		loss = autodiff.Scale(loss, 1/float64(batch))

		optim.ZeroGrads(params)
		if err := autodiff.Backward(loss, tensor.Scalar(1)); err != nil {
			return nil, err
		}
		opt.Step(params)
		out.Loss = append(out.Loss, loss.Data().Value())
	}
	return out, nil
}
