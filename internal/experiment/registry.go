package experiment

import (
	"fmt"
	"sort"

	"neurode/internal/adjoint"
	"neurode/internal/fields"
	"neurode/internal/solver"
)

// Registry maps names from config files and CLI flags to field and solver
// constructors.
type Registry struct {
	fields  map[string]func(cfg Config) (adjoint.Network, error)
	solvers map[string]func(cfg Config) (solver.Solver, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		fields:  make(map[string]func(cfg Config) (adjoint.Network, error)),
		solvers: make(map[string]func(cfg Config) (solver.Solver, error)),
	}

	r.fields["decay"] = func(cfg Config) (adjoint.Network, error) {
		rate := cfg.Rate
		if rate == 0 {
			rate = 1.0
		}
		return fields.NewDecay(rate), nil
	}
	r.fields["oscillator"] = func(cfg Config) (adjoint.Network, error) {
		return fields.Oscillator(), nil
	}
	r.fields["scalar_linear"] = func(cfg Config) (adjoint.Network, error) {
		return fields.NewScalarLinear(cfg.Theta), nil
	}
	r.fields["mlp"] = func(cfg Config) (adjoint.Network, error) {
		dim := len(cfg.InitState)
		if dim == 0 {
			return nil, fmt.Errorf("experiment: mlp field needs init_state to fix the dimension")
		}
		hidden := cfg.Hidden
		if hidden == 0 {
			hidden = 16
		}
		return fields.NewMLP(dim, hidden, cfg.Seed), nil
	}

	r.solvers["euler"] = func(cfg Config) (solver.Solver, error) {
		return solver.NewFixedGrid(solver.EulerStep, cfg.gridSteps()), nil
	}
	r.solvers["rk4"] = func(cfg Config) (solver.Solver, error) {
		return solver.NewFixedGrid(solver.RK4Step, cfg.gridSteps()), nil
	}
	r.solvers["rk45"] = func(cfg Config) (solver.Solver, error) {
		s := solver.NewRK45()
		if cfg.Tolerance > 0 {
			s.Tol = cfg.Tolerance
		}
		return s, nil
	}

	return r
}

func (r *Registry) Field(name string, cfg Config) (adjoint.Network, error) {
	fn, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("experiment: unknown field %q", name)
	}
	return fn(cfg)
}

func (r *Registry) Solver(name string, cfg Config) (solver.Solver, error) {
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("experiment: unknown solver %q", name)
	}
	return fn(cfg)
}

func (r *Registry) ListFields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
