package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/nova"
)

const engineName = "chipmunk"

var (
	cfgFile     string
	dt          float64
	duration    float64
	broadphase  string
	sampleEvery int
	jsonOut     string
	progress    bool
	bodyIdx     int
	fields      string
	rayFrom     string
	rayTo       string
	raySteps    int
	benchRuns   int
	divBody     string
	divEps      float64
	svgOut      string
	tuneMetric  string
	tuneParams  []string
	mcTrials    int
	mcJitter    float64
	mcSeed      uint64

	log = zap.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "novasim",
		Short:         "2D rigid body scenes on a native physics engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd); err != nil {
				return err
			}
			l, err := newLogger(viper.GetString("log_level"))
			if err != nil {
				return err
			}
			log = l
			nova.SetLogger(log)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "settings file (default $HOME/.novasim/config.yaml)")
	pf.String("data", ".novasim", "data directory")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("data", pf.Lookup("data"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and store the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runScene,
	}
	sceneFlags(runCmd)
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 1, "store every nth step")
	runCmd.Flags().BoolVar(&progress, "progress", false, "show a progress line while running")
	runCmd.Flags().StringVar(&jsonOut, "json", "", "also export the run to this JSON file")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	_ = viper.BindPFlag("metrics_addr", runCmd.Flags().Lookup("metrics-addr"))

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	sceneFlags(liveCmd)

	rayCmd := &cobra.Command{
		Use:   "raycast [scene]",
		Short: "cast a ray through a scene",
		Args:  cobra.ExactArgs(1),
		RunE:  runRaycast,
	}
	sceneFlags(rayCmd)
	rayCmd.Flags().StringVar(&rayFrom, "from", "", "ray start x,y (default from scene)")
	rayCmd.Flags().StringVar(&rayTo, "to", "", "ray end x,y (default from scene)")
	rayCmd.Flags().IntVar(&raySteps, "steps", 0, "steps to simulate before casting")
	rayCmd.Flags().StringVar(&svgOut, "svg", "", "also write the drawing to this SVG file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot body state over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&bodyIdx, "body", 0, "body index in the run")
	plotCmd.Flags().StringVar(&fields, "fields", "x,y", "comma separated fields: x, y, angle, vx, vy, omega")
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "also write the body's path to this SVG file")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a body trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&bodyIdx, "body", 0, "body index in the run")
	analyzeCmd.Flags().StringVar(&fields, "field", "x", "field to analyze")

	divCmd := &cobra.Command{
		Use:   "divergence [scene]",
		Short: "separation rate of two nearby copies of a scene",
		Args:  cobra.ExactArgs(1),
		RunE:  runDivergence,
	}
	sceneFlags(divCmd)
	divCmd.Flags().StringVar(&divBody, "body", "", "body to perturb (default first dynamic body)")
	divCmd.Flags().Float64Var(&divEps, "eps", 1e-6, "initial displacement")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				sc := config.GetPreset(name)
				fmt.Printf("  %-10s %d bodies, %d constraints\n", name, len(sc.Bodies), len(sc.Constraints))
			}
			return nil
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "step timing per broadphase",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScene,
	}
	sceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchRuns, "runs", 4, "concurrent runs per broadphase")

	watchCmd := &cobra.Command{
		Use:   "watch [scene.yaml]",
		Short: "re-run a scene file whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE:  watchScene,
	}
	sceneFlags(watchCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune [scene]",
		Short: "grid search solver settings for the lowest metric",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneScene,
	}
	sceneFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimize")
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", []string{"iterations=5,10,20"}, "name=v1,v2,... (dt, iterations, substeps, damping)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [script.yaml]",
		Short: "run and store every step of a scenario script",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	mcCmd := &cobra.Command{
		Use:   "montecarlo [scene]",
		Short: "run jittered copies of a scene and count stable outcomes",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	sceneFlags(mcCmd)
	mcCmd.Flags().IntVar(&mcTrials, "trials", 16, "number of trials")
	mcCmd.Flags().Float64Var(&mcJitter, "jitter", 0.05, "largest position offset per axis")
	mcCmd.Flags().Uint64Var(&mcSeed, "seed", 1, "random seed")

	rootCmd.AddCommand(scenarioCmd, mcCmd)
	rootCmd.AddCommand(runCmd, liveCmd, rayCmd, listCmd, plotCmd, analyzeCmd, divCmd,
		exportJSONCmd, presetsCmd, benchCmd, watchCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sceneFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&broadphase, "broadphase", "", "override broadphase: bvh, spatial_hash, brute_force")
}

// initConfig layers the settings file and NOVASIM_* env vars under the flags.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".novasim"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("novasim")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadScene resolves arg as a preset name or a YAML file and applies the
// flags the user set.
func loadScene(cmd *cobra.Command, arg string) (*config.Scene, error) {
	var sc *config.Scene
	if p := config.GetPreset(arg); p != nil {
		sc = p
	} else if _, err := os.Stat(arg); err == nil {
		if sc, err = config.Load(arg); err != nil {
			return nil, fmt.Errorf("load %s: %w", arg, err)
		}
	} else {
		return nil, fmt.Errorf("unknown scene %q: not a file or preset (%s)", arg, strings.Join(config.ListPresets(), ", "))
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		sc.Dt = dt
	}
	if flags.Changed("time") {
		sc.Duration = duration
	}
	if flags.Changed("broadphase") {
		sc.Broadphase = broadphase
	}
	return sc, sc.Validate()
}

func newEngine() *chipmunk.Engine {
	return chipmunk.New(chipmunk.WithLogger(log.Named("chipmunk")))
}

func builder(e *chipmunk.Engine, sc *config.Scene) func() (*scene.World, error) {
	return func() (*scene.World, error) {
		return scene.Build(e, sc, log)
	}
}
