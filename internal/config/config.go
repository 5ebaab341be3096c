package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultT1       = 1.0
	DefaultSteps    = 100
	DefaultSamples  = 100
	DefaultDt       = 0.01
	DefaultMaxTime  = 10.0
	DefaultRelaxTol = 1e-3
	DefaultEpochs   = 200
	DefaultLR       = 0.05
)

type Config struct {
	Field     string    `yaml:"field"`
	Solver    string    `yaml:"solver"`
	T0        float64   `yaml:"t0"`
	T1        float64   `yaml:"t1"`
	Steps     int       `yaml:"steps"`
	Tolerance float64   `yaml:"tolerance"`
	InitState []float64 `yaml:"init_state"`
	Samples   int       `yaml:"samples"`
	Seed      int64     `yaml:"seed"`

	FieldParams FieldConfig     `yaml:"field_params"`
	Dynamical   DynamicalConfig `yaml:"dynamical"`
	Train       TrainConfig     `yaml:"train"`
}

type FieldConfig struct {
	Rate   float64 `yaml:"rate"`
	Theta  float64 `yaml:"theta"`
	Hidden int     `yaml:"hidden"`
}

type DynamicalConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Dt       float64 `yaml:"dt"`
	MaxTime  float64 `yaml:"max_time"`
	RelaxTol float64 `yaml:"relax_tol"`
}

type TrainConfig struct {
	Target string  `yaml:"target"`
	Epochs int     `yaml:"epochs"`
	Batch  int     `yaml:"batch"`
	LR     float64 `yaml:"lr"`
}

func DefaultConfig() *Config {
	return &Config{
		Field:     "decay",
		Solver:    "rk4",
		T0:        0,
		T1:        DefaultT1,
		Steps:     DefaultSteps,
		Samples:   DefaultSamples,
		InitState: []float64{1.0},
		FieldParams: FieldConfig{
			Rate:   1.0,
			Theta:  0.5,
			Hidden: 16,
		},
		Dynamical: DynamicalConfig{
			Dt:       DefaultDt,
			MaxTime:  DefaultMaxTime,
			RelaxTol: DefaultRelaxTol,
		},
		Train: TrainConfig{
			Target: "oscillator",
			Epochs: DefaultEpochs,
			LR:     DefaultLR,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
