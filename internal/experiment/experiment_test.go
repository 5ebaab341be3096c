package experiment

import (
	"context"
	"math"
	"testing"
)

func decayConfig() Config {
	return Config{
		Field:     "decay",
		Solver:    "rk4",
		T0:        0,
		T1:        2,
		Steps:     50,
		InitState: []float64{1.0},
		Samples:   20,
		Rate:      1.0,
	}
}

func TestRegistryLookups(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"decay", "oscillator", "scalar_linear", "mlp"} {
		cfg := decayConfig()
		cfg.Field = name
		if _, err := reg.Field(name, cfg); err != nil {
			t.Errorf("field %q: %v", name, err)
		}
	}
	if _, err := reg.Field("nope", decayConfig()); err == nil {
		t.Error("expected error for unknown field")
	}

	for _, name := range []string{"euler", "rk4", "rk45"} {
		if _, err := reg.Solver(name, decayConfig()); err != nil {
			t.Errorf("solver %q: %v", name, err)
		}
	}
	if _, err := reg.Solver("nope", decayConfig()); err == nil {
		t.Error("expected error for unknown solver")
	}

	if got := reg.ListFields(); len(got) != 4 {
		t.Errorf("fields listed: %v", got)
	}
	if got := reg.ListSolvers(); len(got) != 3 {
		t.Errorf("solvers listed: %v", got)
	}
}

func TestRunSamplesAnalyticFlow(t *testing.T) {
	exp, err := New(decayConfig(), NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Times) != 21 || len(res.States) != 21 {
		t.Fatalf("expected 21 samples, got %d", len(res.Times))
	}
	if res.RelaxTime != -1 {
		t.Errorf("static run should report relax time -1, got %f", res.RelaxTime)
	}

	for i, tm := range res.Times {
		want := math.Exp(-tm)
		if math.Abs(res.States[i][0]-want) > 1e-5 {
			t.Errorf("t=%.2f: got %f, expected %f", tm, res.States[i][0], want)
		}
	}
}

func TestRunEmptyInitState(t *testing.T) {
	cfg := decayConfig()
	cfg.InitState = nil
	if _, err := New(cfg, NewRegistry()); err == nil {
		t.Error("expected error for empty initial state")
	}
}

func TestRunCancellation(t *testing.T) {
	exp, err := New(decayConfig(), NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exp.Run(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestRunDynamicalRelaxes(t *testing.T) {
	cfg := decayConfig()
	cfg.Dynamical = true
	cfg.Dt = 0.005
	cfg.MaxTime = 10.0
	cfg.RelaxTol = 1e-3

	exp, err := New(cfg, NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Relaxed {
		t.Fatal("decay should relax")
	}
	if math.Abs(res.RelaxTime-math.Log(1000)) > 0.02 {
		t.Errorf("relax time: got %f, expected about %f", res.RelaxTime, math.Log(1000))
	}
	if got := res.Times[len(res.Times)-1]; math.Abs(got-res.RelaxTime) > 1e-9 {
		t.Errorf("trajectory should end at the stopping time, got %f", got)
	}
}

func TestTrainReducesLoss(t *testing.T) {
	cfg := Config{
		Field:     "scalar_linear",
		Solver:    "rk4",
		T0:        0,
		T1:        0.5,
		Steps:     20,
		InitState: []float64{1.0},
		Theta:     0.3,
		Rate:      1.0,
	}
	exp, err := New(cfg, NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tcfg := TrainConfig{Target: "decay", Epochs: 40, Batch: 4, LR: 0.1, Seed: 1}
	res, err := exp.Train(context.Background(), tcfg, NewRegistry())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(res.Loss) != 40 {
		t.Fatalf("loss curve length: got %d", len(res.Loss))
	}
	first, last := res.Loss[0], res.Loss[len(res.Loss)-1]
	if last >= first {
		t.Errorf("loss did not decrease: %f -> %f", first, last)
	}
}

func TestTrainRejectsParameterFreeField(t *testing.T) {
	exp, err := New(decayConfig(), NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = exp.Train(context.Background(), TrainConfig{Target: "oscillator", Epochs: 1}, NewRegistry())
	if err == nil {
		t.Error("expected error for field without parameters")
	}
}
