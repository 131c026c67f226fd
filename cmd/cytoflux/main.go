package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cytoflux/internal/bio"
	"cytoflux/internal/config"
	"cytoflux/internal/expr"
	"cytoflux/internal/model"
	"cytoflux/internal/quash"
	"cytoflux/internal/render"
	"cytoflux/internal/store"
)

var (
	dataDir    string
	verbose    bool
	configFile string

	start     float64
	end       float64
	steps     int
	threshold float64
	doQuash   bool

	sampleIdx  int
	plotWidth  int
	plotHeight int
	maxPlots   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cytoflux",
		Short: "cell therapy ODE model compiler and sweep runner",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "print the demo model's species and parameter orderings",
		RunE:  describeModel,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the demo model and plot the result",
		RunE:  runModel,
	}
	runCmd.Flags().Float64Var(&start, "start", config.DefaultStart, "first timepoint")
	runCmd.Flags().Float64Var(&end, "end", config.DefaultEnd, "last timepoint")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of timepoints")
	runCmd.Flags().BoolVar(&doQuash, "quash", false, "enforce extinction of the therapeutic cells")
	runCmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThreshold, "extinction threshold")
	runCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	runCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	runCmd.Flags().IntVar(&maxPlots, "max-plots", 6, "maximum plots to draw")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a Latin Hypercube parameter sweep",
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "sweep config file (yaml)")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default sweep config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved sweep runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one sample of a saved sweep run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&sampleIdx, "sample", 0, "sample index")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().IntVar(&maxPlots, "max-plots", 6, "maximum plots to draw")

	rootCmd.AddCommand(describeCmd, runCmd, sweepCmd, initCmd, listCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// demoModel is a two-compartment CAR-T scenario: therapeutic cells with one
// activation state migrating between blood and tumor, a logistic tumor cell
// population, and one secreted cytokine.
func demoModel(log *zap.Logger, opts ...model.Option) (*model.Model, error) {
	l := bio.NewLayer(log)
	opts = append(opts, model.WithLogger(log))
	l.AddCompartment("blood")
	l.AddCompartment("tumor")
	l.LinkCompartments("blood", "tumor")

	l.AddTxCell("cart", "activated")
	l.AddCells("tumorcell", "tumor", true)
	l.AddCytokine("il6")

	resting := bio.StateAssign{"activated": false}
	active := bio.StateAssign{"activated": true}

	if err := l.SetTxDaughterState("cart", active); err != nil {
		return nil, err
	}
	rate := expr.Mul(expr.NewParam("k_activate", 0.01), l.TxState("cart", resting), l.Cells("tumorcell"))
	if err := l.AddTxStateLink("cart", resting, active, rate); err != nil {
		return nil, err
	}
	if err := l.AddTxKillTarget("cart", "tumorcell", active); err != nil {
		return nil, err
	}
	if err := l.AddTxCytokineLink("cart", "il6", bio.Secrete, active); err != nil {
		return nil, err
	}

	entities, edges := l.Compose()
	m, err := model.New(entities, edges, opts...)
	if err != nil {
		return nil, err
	}

	defaults := map[string]float64{
		"k_mig_blood_to_tumor": 0.5,
		"k_mig_tumor_to_blood": 0.1,
		"k_death":              0.05,
		"k_proliferation":      0.3,
		"k_activate":           0.01,
		"k_kill":               0.02,
		"k_secrete":            0.1,
		"k_cell_prolif":        0.05,
		"k_cell_carrycap":      1e5,
		"k_diffuse":            0.2,
		"k_degrade":            0.5,
	}
	for name, v := range defaults {
		if err := m.SetParam(name, v); err != nil {
			return nil, err
		}
	}

	restingBlood := expr.EntityID{Kind: bio.KindTxCell, Name: "cart", Compartment: "blood", State: "activated=0"}
	tumor := expr.EntityID{Kind: bio.KindCell, Name: "tumorcell", Compartment: "tumor"}
	if err := m.SetInitial(restingBlood, 100); err != nil {
		return nil, err
	}
	if err := m.SetInitial(tumor, 1e4); err != nil {
		return nil, err
	}
	return m, nil
}

func speciesNames(m *model.Model) []string {
	ids := m.Species()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return names
}

// cartGroup collects every therapeutic cell species into one extinction
// group.
func cartGroup(m *model.Model) (quash.Group, error) {
	var members []expr.EntityID
	for _, id := range m.Species() {
		if id.Kind == bio.KindTxCell {
			members = append(members, id)
		}
	}
	return m.GroupOf("cart", members...)
}

func describeModel(cmd *cobra.Command, args []string) error {
	m, err := demoModel(zap.NewNop())
	if err != nil {
		return err
	}
	fmt.Print(m.DescribeArgs())
	return nil
}

func runModel(cmd *cobra.Command, args []string) error {
	log, err := logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	m, err := demoModel(log, model.WithQuashThreshold(threshold))
	if err != nil {
		return err
	}

	tps := config.Timepoints{Start: start, End: end, Steps: steps}.Vector()

	began := time.Now()
	var rows [][]float64
	if doQuash {
		group, err := cartGroup(m)
		if err != nil {
			return err
		}
		rows, err = m.Quash(tps, []quash.Group{group})
		if err != nil {
			return err
		}
	} else {
		rows, err = m.Integrate(tps)
		if err != nil {
			return err
		}
	}

	fmt.Println(render.Field("elapsed", time.Since(began).Round(time.Millisecond)))
	fmt.Println(render.Field("timepoints", len(rows)))
	fmt.Println()
	fmt.Print(render.Trajectory(speciesNames(m), rows, plotWidth, plotHeight, maxPlots))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	log, err := logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.DefaultConfig()
	if configFile != "" {
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
	}

	m, err := demoModel(log,
		model.WithSeed(cfg.Seed),
		model.WithQuashThreshold(cfg.Threshold),
		model.WithSolverTolerance(cfg.Tolerance),
	)
	if err != nil {
		return err
	}

	for name, v := range cfg.Fixed {
		if err := m.SetSearchRange(name, v, v); err != nil {
			return err
		}
	}
	for name, r := range cfg.Ranges {
		if err := m.SetSearchRange(name, r.Lo, r.Hi); err != nil {
			return err
		}
	}
	for _, pin := range cfg.Pins {
		if err := m.Pin(pin...); err != nil {
			return err
		}
	}

	var groups []quash.Group
	for name, idStrs := range cfg.Quash {
		ids, err := resolveIDs(m, idStrs)
		if err != nil {
			return err
		}
		g, err := m.GroupOf(name, ids...)
		if err != nil {
			return err
		}
		groups = append(groups, g)
	}

	samples := m.GenerateSamples(cfg.Samples)
	tps := cfg.Timepoints.Vector()

	fmt.Println(render.Header("sweep"))
	fmt.Println(render.Field("samples", len(samples)))
	fmt.Println(render.Field("workers", cfg.Workers))

	began := time.Now()
	results := m.RunSweep(samples, tps, cfg.Workers, groups)
	elapsed := time.Since(began)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveSweep(speciesNames(m), tps, results)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	fmt.Println(render.Field("elapsed", elapsed.Round(time.Millisecond)))
	fmt.Println(render.Field("run id", runID))
	fmt.Println(render.Status(len(results)-failed, failed))
	return nil
}

// resolveIDs maps species identifier strings from the config back to the
// model's canonical species.
func resolveIDs(m *model.Model, strs []string) ([]expr.EntityID, error) {
	byName := make(map[string]expr.EntityID)
	for _, id := range m.Species() {
		byName[id.String()] = id
	}
	ids := make([]expr.EntityID, 0, len(strs))
	for _, s := range strs {
		id, ok := byName[s]
		if !ok {
			return nil, fmt.Errorf("unknown species in quash group: %s", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSAMPLES\tFAILURES\tSPECIES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Created.Format("2006-01-02 15:04:05"),
			run.Samples,
			run.Failures,
			len(run.Species),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	_, rows, err := st.LoadTrajectory(runID, sampleIdx)
	if err != nil {
		return err
	}

	fmt.Println(render.Field("run", meta.ID))
	fmt.Println(render.Field("sample", sampleIdx))
	fmt.Println()
	fmt.Print(render.Trajectory(meta.Species, rows, plotWidth, plotHeight, maxPlots))
	return nil
}
