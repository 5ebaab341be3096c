package config

var Presets = map[string]*Config{
	"decay": {
		Field: "decay", Solver: "rk4", T1: 3.0, Steps: 100,
		InitState:   []float64{1.0},
		FieldParams: FieldConfig{Rate: 1.0},
	},
	"oscillator": {
		Field: "oscillator", Solver: "rk4", T1: 6.2832, Steps: 200,
		InitState: []float64{1.0, 0.0},
	},
	"relaxation": {
		Field: "decay", Solver: "rk4", T1: 1.0, Steps: 100,
		InitState:   []float64{1.0},
		FieldParams: FieldConfig{Rate: 1.0},
		Dynamical:   DynamicalConfig{Enabled: true, Dt: 0.01, MaxTime: 10.0, RelaxTol: 1e-3},
	},
	"fit-oscillator": {
		Field: "mlp", Solver: "rk4", T1: 1.0, Steps: 20,
		InitState:   []float64{1.0, 0.0},
		FieldParams: FieldConfig{Hidden: 16},
		Train:       TrainConfig{Target: "oscillator", Epochs: 200, Batch: 8, LR: 0.05},
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
