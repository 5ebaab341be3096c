package storage

import (
	"math"
	"testing"

	"neurode/internal/experiment"
)

func testResult() *experiment.Result {
	return &experiment.Result{
		Times:     []float64{0, 0.5, 1.0},
		States:    [][]float64{{1, 0}, {0.877, -0.479}, {0.540, -0.841}},
		Relaxed:   true,
		RelaxTime: 1.0,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runID, err := store.Save("oscillator", "rk4", 0, 42, testResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	meta, err := store.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.Field != "oscillator" || meta.Solver != "rk4" {
		t.Errorf("metadata: got %+v", meta)
	}
	if meta.Seed != 42 {
		t.Errorf("seed: got %d", meta.Seed)
	}
	if !meta.Relaxed || meta.RelaxTime != 1.0 {
		t.Errorf("stop outcome: got relaxed=%v t=%f", meta.Relaxed, meta.RelaxTime)
	}
	if meta.T1 != 1.0 {
		t.Errorf("t1 should be the last sample time, got %f", meta.T1)
	}
}

func TestLoadStates(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := store.Save("oscillator", "rk4", 0, 1, testResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	states, times, err := store.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(states) != 3 || len(times) != 3 {
		t.Fatalf("expected 3 rows, got %d states %d times", len(states), len(times))
	}
	if math.Abs(states[1][1]-(-0.479)) > 1e-6 {
		t.Errorf("state value: got %f", states[1][1])
	}
	if times[2] != 1.0 {
		t.Errorf("time value: got %f", times[2])
	}
}

func TestSaveTrainingAndLoadLoss(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	res := &experiment.TrainResult{Loss: []float64{1.5, 0.8, 0.3}}
	runID, err := store.SaveTraining("mlp", "rk4", 7, res)
	if err != nil {
		t.Fatalf("save training: %v", err)
	}

	meta, err := store.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(meta.FinalLoss-0.3) > 1e-12 {
		t.Errorf("final loss: got %f", meta.FinalLoss)
	}

	loss, err := store.LoadLoss(runID)
	if err != nil {
		t.Fatalf("load loss: %v", err)
	}
	if len(loss) != 3 || loss[0] != 1.5 {
		t.Errorf("loss curve: got %v", loss)
	}
}

func TestList(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	if _, err := store.Save("decay", "euler", 0, 1, testResult()); err != nil {
		t.Fatalf("save: %v", err)
	}
	runs, err = store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].Field != "decay" {
		t.Errorf("listed runs: %+v", runs)
	}
}

func TestListMissingDir(t *testing.T) {
	store := New(t.TempDir() + "/does-not-exist")
	runs, err := store.List()
	if err != nil {
		t.Fatalf("list should tolerate a missing base dir: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestLoadUnknownRun(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Load("missing_123"); err == nil {
		t.Error("expected error for unknown run")
	}
}
