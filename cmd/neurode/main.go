package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"neurode/internal/adjoint"
	"neurode/internal/autodiff"
	"neurode/internal/config"
	"neurode/internal/experiment"
	"neurode/internal/node"
	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/storage"
	"neurode/internal/tensor"
	"neurode/internal/tui"
	"neurode/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	fieldName  string
	solverName string
	t0, t1     float64
	steps      int
	initState  []float64
	seed       int64

	rate  float64
	theta float64

	dynamical bool
	dt        float64
	maxTime   float64
	relaxTol  float64

	epochs int
	batch  int
	lr     float64
	target string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "neurode",
		Short: "continuous-depth network lab: ODE flows and adjoint gradients",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".neurode", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate a field and record the trajectory",
		RunE:  runField,
	}
	addFieldFlags(runCmd)
	runCmd.Flags().BoolVar(&dynamical, "dynamical", false, "integrate until the stop condition fires")
	runCmd.Flags().Float64Var(&dt, "dt", 0.01, "dynamical step size")
	runCmd.Flags().Float64Var(&maxTime, "max-time", 10.0, "dynamical horizon")
	runCmd.Flags().Float64Var(&relaxTol, "relax-tol", 1e-3, "relaxation tolerance")

	gradCmd := &cobra.Command{
		Use:   "grad",
		Short: "adjoint gradients vs finite differences",
		RunE:  gradCheck,
	}
	addFieldFlags(gradCmd)

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "fit a trainable field to a reference flow",
		RunE:  trainField,
	}
	addFieldFlags(trainCmd)
	trainCmd.Flags().IntVar(&epochs, "epochs", 200, "training epochs")
	trainCmd.Flags().IntVar(&batch, "batch", 8, "batch size")
	trainCmd.Flags().Float64Var(&lr, "lr", 0.05, "learning rate")
	trainCmd.Flags().StringVar(&target, "target", "oscillator", "reference field")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch an integration evolve",
		RunE:  runLive,
	}
	addFieldFlags(liveCmd)
	liveCmd.Flags().Float64Var(&dt, "dt", 0.005, "step size")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(runCmd, gradCmd, trainCmd, liveCmd, listCmd, plotCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset configuration")
	cmd.Flags().StringVar(&fieldName, "field", "decay", "phase vector field")
	cmd.Flags().StringVar(&solverName, "solver", "rk4", "ode solver")
	cmd.Flags().Float64Var(&t0, "t0", 0, "start time")
	cmd.Flags().Float64Var(&t1, "t1", 1.0, "end time")
	cmd.Flags().IntVar(&steps, "steps", 100, "fixed-grid steps")
	cmd.Flags().Float64SliceVar(&initState, "x0", []float64{1.0}, "initial state")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().Float64Var(&rate, "rate", 1.0, "decay rate")
	cmd.Flags().Float64Var(&theta, "theta", 0.5, "scalar linear coefficient")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if preset == "" && configFile == "" {
		cfg.Field = fieldName
		cfg.Solver = solverName
		cfg.T0 = t0
		cfg.T1 = t1
		cfg.Steps = steps
		cfg.InitState = initState
		cfg.Seed = seed
		cfg.FieldParams.Rate = rate
		cfg.FieldParams.Theta = theta
		cfg.Dynamical.Enabled = dynamical
		cfg.Dynamical.Dt = dt
		cfg.Dynamical.MaxTime = maxTime
		cfg.Dynamical.RelaxTol = relaxTol
		cfg.Train.Target = target
		cfg.Train.Epochs = epochs
		cfg.Train.Batch = batch
		cfg.Train.LR = lr
	}
	return cfg, nil
}

func experimentConfig(cfg *config.Config) experiment.Config {
	return experiment.Config{
		Field:     cfg.Field,
		Solver:    cfg.Solver,
		T0:        cfg.T0,
		T1:        cfg.T1,
		Steps:     cfg.Steps,
		Tolerance: cfg.Tolerance,
		InitState: cfg.InitState,
		Samples:   cfg.Samples,
		Rate:      cfg.FieldParams.Rate,
		Theta:     cfg.FieldParams.Theta,
		Hidden:    cfg.FieldParams.Hidden,
		Seed:      cfg.Seed,
		Dynamical: cfg.Dynamical.Enabled,
		Dt:        cfg.Dynamical.Dt,
		MaxTime:   cfg.Dynamical.MaxTime,
		RelaxTol:  cfg.Dynamical.RelaxTol,
	}
}

func runField(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(experimentConfig(cfg), reg)
	if err != nil {
		return err
	}
	result, err := exp.Run(context.Background())
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	runID, err := store.Save(cfg.Field, cfg.Solver, cfg.T0, cfg.Seed, result)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("run %s", runID)))
	fmt.Print(viz.PlotTrajectory(result.Times, result.States, 10))
	if cfg.Dynamical.Enabled {
		if result.Relaxed {
			fmt.Printf("relaxed at t=%.4f\n", result.RelaxTime)
		} else {
			fmt.Println("horizon exhausted without relaxing (relax_time = -1)")
		}
	}
	return nil
}

func gradCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(experimentConfig(cfg), reg)
	if err != nil {
		return err
	}
	net := exp.Network()

	slv := solver.NewFixedGrid(solver.RK4Step, cfg.Steps)
	fn := node.New(slv, net)

	x0 := tensor.Vector(cfg.InitState...)
	pt := phase.LeafOf(x0)
	leaves := []*autodiff.Value{autodiff.Constant(x0)}
	structure := phase.StructureOf(pt)

	outs, err := fn.Apply(cfg.T0, cfg.T1, structure, leaves)
	if err != nil {
		return err
	}
	loss := autodiff.Sum(outs[0])
	for _, p := range net.Params() {
		p.ZeroGrad()
	}
	if err := autodiff.Backward(loss, tensor.Scalar(1)); err != nil {
		return err
	}
	adjointGrad := leaves[0].Grad()

	// central finite differences on L(x0) = sum(F(t0, t1, x0))
	const h = 1e-5
	sumAt := func(x *tensor.Dense) (float64, error) {
		y, err := fn.Forward(cfg.T0, cfg.T1, phase.LeafOf(x))
		if err != nil {
			return 0, err
		}
		return y.Leaf.Sum(), nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "component\tadjoint\tfinite-diff\tabs err")
	for i := range x0.Data {
		plus := x0.Clone()
		plus.Data[i] += h
		minus := x0.Clone()
		minus.Data[i] -= h
		lp, err := sumAt(plus)
		if err != nil {
			return err
		}
		lm, err := sumAt(minus)
		if err != nil {
			return err
		}
		fd := (lp - lm) / (2 * h)
		ad := adjointGrad.Data[i]
		fmt.Fprintf(w, "x0[%d]\t%.8f\t%.8f\t%.2e\n", i, ad, fd, abs(ad-fd))
	}
	for _, p := range net.Params() {
		if p.Grad == nil {
			continue
		}
		for i := range p.Grad.Data {
			fmt.Fprintf(w, "%s[%d]\t%.8f\t\t\n", p.Name, i, p.Grad.Data[i])
		}
	}
	return w.Flush()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func trainField(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Field == "decay" {
		cfg.Field = "mlp" // the default field has no parameters to train
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(experimentConfig(cfg), reg)
	if err != nil {
		return err
	}

	tcfg := experiment.TrainConfig{
		Target: cfg.Train.Target,
		Epochs: cfg.Train.Epochs,
		Batch:  cfg.Train.Batch,
		LR:     cfg.Train.LR,
		Seed:   cfg.Seed,
	}
	result, err := exp.Train(context.Background(), tcfg, reg)
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	runID, err := store.SaveTraining(cfg.Field, cfg.Solver, cfg.Seed, result)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("training run %s", runID)))
	fmt.Print(viz.PlotLoss(result.Loss, 10))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(experimentConfig(cfg), reg)
	if err != nil {
		return err
	}
	field := adjoint.Field(exp.Network())
	x0 := phase.LeafOf(tensor.Vector(cfg.InitState...))
	return tui.Run(field, cfg.Field, solver.RK4Step, cfg.T0, x0, dt)
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tfield\tsolver\ttimestamp")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Field, r.Solver, r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if loss, err := store.LoadLoss(args[0]); err == nil && len(loss) > 0 {
		fmt.Print(viz.PlotLoss(loss, 10))
		return nil
	}
	states, times, err := store.LoadStates(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%s (%s / %s)", meta.ID, meta.Field, meta.Solver)))
	fmt.Print(viz.PlotTrajectory(times, states, 10))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
