// Package storage persists experiment runs: metadata as JSON, trajectories
// and loss curves as CSV, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"neurode/internal/experiment"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Field     string    `json:"field"`
	Solver    string    `json:"solver"`
	Timestamp time.Time `json:"timestamp"`
	T0        float64   `json:"t0"`
	T1        float64   `json:"t1"`
	Seed      int64     `json:"seed"`
	Relaxed   bool      `json:"relaxed,omitempty"`
	RelaxTime float64   `json:"relax_time,omitempty"`
	FinalLoss float64   `json:"final_loss,omitempty"`
}

// Save writes one run directory with metadata.json and states.csv, returning
// the run id.
func (s *Store) Save(field, solverName string, t0 float64, seed int64, result *experiment.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", field, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	t1 := t0
	if len(result.Times) > 0 {
		t1 = result.Times[len(result.Times)-1]
	}
	meta := RunMetadata{
		ID:        runID,
		Field:     field,
		Solver:    solverName,
		Timestamp: time.Now(),
		T0:        t0,
		T1:        t1,
		Seed:      seed,
		Relaxed:   result.Relaxed,
		RelaxTime: result.RelaxTime,
	}
	if err := s.writeMetadata(runDir, meta); err != nil {
		return "", err
	}
	if err := writeStatesCSV(filepath.Join(runDir, "states.csv"), result.Times, result.States); err != nil {
		return "", err
	}
	return runID, nil
}

// SaveTraining writes a training run: metadata.json plus loss.csv.
func (s *Store) SaveTraining(field, solverName string, seed int64, result *experiment.TrainResult) (string, error) {
	runID := fmt.Sprintf("train_%s_%d", field, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Field:     field,
		Solver:    solverName,
		Timestamp: time.Now(),
		Seed:      seed,
	}
	if n := len(result.Loss); n > 0 {
		meta.FinalLoss = result.Loss[n-1]
	}
	if err := s.writeMetadata(runDir, meta); err != nil {
		return "", err
	}
	if err := writeLossCSV(filepath.Join(runDir, "loss.csv"), result.Loss); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeMetadata(runDir string, meta RunMetadata) error {
	f, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeStatesCSV(path string, times []float64, states [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(states) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range states[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeLossCSV(path string, loss []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"epoch", "loss"}); err != nil {
		return err
	}
	for i, v := range loss {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(v, 'g', 8, 64)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads a run's trajectory back from states.csv.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		times = append(times, t)
		states = append(states, state)
	}
	return states, times, nil
}

// LoadLoss reads a training run's loss curve from loss.csv.
func (s *Store) LoadLoss(runID string) ([]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "loss.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	loss := make([]float64, 0, len(records))
	for i := 1; i < len(records); i++ {
		if len(records[i]) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(records[i][1], 64)
		if err != nil {
			continue
		}
		loss = append(loss, v)
	}
	return loss, nil
}
