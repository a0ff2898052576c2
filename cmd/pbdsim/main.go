package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/pbdsim/internal/automation"
	"github.com/san-kum/pbdsim/internal/cache"
	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/experiment"
	"github.com/san-kum/pbdsim/internal/export"
	"github.com/san-kum/pbdsim/internal/optim"
	"github.com/san-kum/pbdsim/internal/storage"
	"github.com/san-kum/pbdsim/internal/store"
	"github.com/san-kum/pbdsim/internal/stream"
	"github.com/san-kum/pbdsim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	fixedDt    float64
	duration   float64
	iterations int
	noBake     bool
	outFile    string
	addr       string
	theme      string
	atTime     float64
	svgWidth   int
	svgHeight  int
	paramName  string
	paramMin   float64
	paramMax   float64
	numSteps   int
	numTrials  int
	perturb    float64
	seed       int64
	metricName string
	gridFlags  []string
)

var logger = slog.Default()

func main() {
	rootCmd := &cobra.Command{
		Use:   "pbdsim",
		Short: "position based rope simulation lab",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			viz.SetTheme(theme)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pbdsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "cyberpunk", "tui theme")

	sceneFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "hanging", "use preset configuration")
		cmd.Flags().Float64Var(&fixedDt, "dt", config.DefaultFixedDt, "fixed timestep")
		cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
		cmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "solver iterations")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "bake a scene and store the run",
		RunE:  runSimulation,
	}
	sceneFlags(runCmd)
	runCmd.Flags().BoolVar(&noBake, "no-bake", false, "simulate without recording a cache")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scene with live visualization",
		RunE:  runLive,
	}
	sceneFlags(liveCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "simulate in real time, streaming frames over a websocket and metrics for prometheus",
		RunE:  serve,
	}
	sceneFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	playCmd := &cobra.Command{
		Use:   "play [run_id]",
		Short: "replay a stored run's cache",
		Args:  cobra.ExactArgs(1),
		RunE:  playRun,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	infoCmd := &cobra.Command{
		Use:   "info [run_id]",
		Short: "show run details",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot particle heights over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run's cache to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run's cache to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				names := make([]string, len(cfg.Ropes))
				for i, r := range cfg.Ropes {
					names[i] = r.Name
				}
				fmt.Printf("  %-10s %s\n", p, strings.Join(names, ", "))
			}
		},
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a run's cached frame as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().Float64Var(&atTime, "at", 0, "cache time to render")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter over a range",
		RunE:  runSweep,
	}
	sceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&paramName, "param", "damping", fmt.Sprintf("parameter %v", config.ParamNames()))
	sweepCmd.Flags().Float64Var(&paramMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&paramMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "steps", 5, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run trials with randomly perturbed ropes",
		RunE:  runMonteCarlo,
	}
	sceneFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&numTrials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.05, "max offset per control point axis")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search parameters minimizing a metric",
		RunE:  runTune,
	}
	sceneFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridFlags, "grid", nil, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "energy_drift", "metric to minimize")

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, playCmd, listCmd, infoCmd, plotCmd,
		exportJSONCmd, exportCSVCmd, exportSVGCmd, presetsCmd, scenarioCmd, sweepCmd, monteCarloCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the preset or config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if cmd.Flags().Changed("dt") {
		cfg.Solver.FixedDt = fixedDt
	}
	if cmd.Flags().Changed("time") {
		cfg.Solver.Duration = duration
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Solver.Iterations = iterations
	}
	return cfg, cfg.Validate()
}

func sceneName() string {
	if configFile != "" {
		return strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}
	return preset
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	scene, err := experiment.Build(ctx, cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}
	defer scene.Close()

	name := sceneName()
	fmt.Printf("running %s simulation...\n", name)
	start := time.Now()

	run := scene.Bake
	if noBake {
		run = scene.Simulate
	}
	result, err := run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(name, cfg, result, scene.Cache)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d  steps: %d  cached: %d\n", result.Frames, result.Steps, scene.Cache.FrameCount())
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, n := range names {
		fmt.Printf("  %s: %.6f\n", n, m[n])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scene, err := experiment.Build(cmd.Context(), cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}
	defer scene.Close()
	return viz.Run(scene, sceneName())
}

// openRun rebuilds a stored run's scene around its saved cache.
func openRun(ctx context.Context, runID string) (*experiment.Scene, error) {
	st := storage.New(dataDir)
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return nil, err
	}
	c, err := st.LoadCache(runID)
	if err != nil {
		return nil, err
	}
	return experiment.Build(ctx, cfg, experiment.WithCache(c), experiment.WithLogger(logger))
}

func playRun(cmd *cobra.Command, args []string) error {
	scene, err := openRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer scene.Close()
	if scene.Cache.FrameCount() == 0 {
		return fmt.Errorf("run %s has no cached frames", args[0])
	}
	scene.Baker.SetPlaying(true)
	return viz.Run(scene, args[0])
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	scene, err := experiment.Build(ctx, cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}
	defer scene.Close()

	hub := stream.NewHub(logger)
	hub.Attach(scene.Driver)
	exporter := stream.NewExporter(hub)
	exporter.Attach(scene.Driver)
	srv := &http.Server{Addr: addr, Handler: stream.Mux(hub, exporter)}

	go func() {
		frame := time.Duration(cfg.FrameDelta() * float64(time.Second))
		ticker := time.NewTicker(frame)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				if cfg.Solver.MaxFrameDelta > 0 && dt > cfg.Solver.MaxFrameDelta {
					dt = cfg.Solver.MaxFrameDelta
				}
				last = now
				scene.Driver.Frame(dt)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("streaming", "addr", addr, "path", "/ws", "metrics", "/metrics")
	fmt.Printf("streaming %s on ws://%s/ws (metrics at /metrics)\n", sceneName(), addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tDT\tROPES\tFRAMES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.FixedDt,
			len(run.Ropes),
			run.Cached,
		)
	}
	return w.Flush()
}

func runInfo(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Width(14)
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	var b strings.Builder
	b.WriteString(title.Render(meta.ID) + "\n\n")
	row := func(k, v string) { b.WriteString(label.Render(k) + v + "\n") }
	row("name", meta.Name)
	row("created", meta.Timestamp.Format(time.RFC3339))
	row("fixed dt", fmt.Sprintf("%.4fs", meta.FixedDt))
	row("frame rate", fmt.Sprintf("%.0f", meta.FrameRate))
	row("duration", fmt.Sprintf("%.2fs", meta.Duration))
	row("capacity", fmt.Sprintf("%d", meta.Capacity))
	row("ropes", strings.Join(meta.Ropes, ", "))
	row("frames", fmt.Sprintf("%d (%d steps)", meta.Frames, meta.Steps))
	row("cached", fmt.Sprintf("%d", meta.Cached))

	names := make([]string, 0, len(meta.Metrics))
	for n := range meta.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		row(n, fmt.Sprintf("%.6f", meta.Metrics[n]))
	}

	fmt.Println(box.Render(strings.TrimRight(b.String(), "\n")))
	return nil
}

// plotRun charts the height of each rope's first tracked particles.
func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	c, err := st.LoadCache(args[0])
	if err != nil {
		return err
	}
	if c.FrameCount() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("frames: %d\n\n", c.FrameCount())

	first := c.Frame(0)
	const maxPlots = 4
	tracked := []int{}
	step := max(1, first.Len()/maxPlots)
	for i := first.Len() - 1; i >= 0 && len(tracked) < maxPlots; i -= step {
		tracked = append(tracked, first.Indices[i])
	}

	for _, idx := range tracked {
		data := heights(c, idx)
		if len(data) < 2 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("particle %d height", idx)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func heights(c *cache.Cache, index int) []float64 {
	out := make([]float64, 0, c.FrameCount())
	for i := 0; i < c.FrameCount(); i++ {
		if p, ok := c.Frame(i).Position(index); ok {
			out = append(out, p.Y)
		}
	}
	return out
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	c, err := st.LoadCache(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return store.ExportJSONStdout(meta.Name, c, meta.Metrics)
	}
	if err := store.ExportJSON(outFile, meta.Name, c, meta.Metrics); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	c, err := st.LoadCache(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return store.WriteCSV(os.Stdout, c)
	}
	if err := store.ExportCSV(outFile, c); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	scene, err := openRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer scene.Close()
	if err := scene.Baker.PlaybackFrame(atTime); err != nil {
		return err
	}
	if outFile == "" {
		return export.WriteSceneSVG(os.Stdout, scene, svgWidth, svgHeight)
	}
	if err := export.ExportSceneSVG(outFile, scene, svgWidth, svgHeight); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	results, err := automation.RunScenario(cmd.Context(), sc, st, logger)
	for i, r := range results {
		fmt.Printf("%d. %s: %d frames, %.2fs", i+1, r.Name, r.Result.Frames, r.Result.Time)
		if r.RunID != "" {
			fmt.Printf(" (run %s)", r.RunID)
		}
		fmt.Println()
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:      cfg,
		ParamName: paramName,
		ParamMin:  paramMin,
		ParamMax:  paramMax,
		NumSteps:  numSteps,
	}, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tENERGY DRIFT\tMAX SPEED\tSTABLE\n", strings.ToUpper(paramName))
	drift := make([]float64, len(results))
	for i, r := range results {
		drift[i] = r.Metrics["energy_drift"]
		fmt.Fprintf(w, "%.4f\t%.6f\t%.4f\t%v\n", r.ParamValue, drift[i], r.Metrics["max_speed"], r.Stable)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(drift) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(drift, asciigraph.Height(8), asciigraph.Caption("energy drift vs "+paramName)))
	}
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:         cfg,
		Perturbation: perturb,
		NumTrials:    numTrials,
		Seed:         seed,
	}, logger)
	if err != nil {
		return err
	}
	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d  stable: %d  unstable: %d\n", len(results), stable, unstable)
	return nil
}

// parseGrid reads name=v1,v2,... flags.
func parseGrid(flags []string) ([]string, [][]float64, error) {
	var names []string
	var ranges [][]float64
	for _, f := range flags {
		name, list, ok := strings.Cut(f, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid grid %q, expected name=v1,v2", f)
		}
		var vals []float64
		for _, v := range strings.Split(list, ",") {
			x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			vals = append(vals, x)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridFlags)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one --grid is required")
	}

	g := optim.NewGridSearch(names, ranges)
	g.SetLogger(logger)
	best, val, err := g.Search(cmd.Context(), cfg, metricName)
	if err != nil {
		return err
	}
	fmt.Printf("best %s: %.6f\n", metricName, val)
	for _, n := range names {
		fmt.Printf("  %s = %g\n", n, best[n])
	}
	return nil
}
