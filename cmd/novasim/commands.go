package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/san-kum/novabind/internal/analysis"
	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/export"
	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/optim"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/internal/storage"
	"github.com/san-kum/novabind/internal/telemetry"
	"github.com/san-kum/novabind/internal/tui"
	"github.com/san-kum/novabind/internal/viz"
	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/nova"
)

func openStore() (*storage.Store, error) {
	st := storage.New(viper.GetString("data"))
	return st, st.Init()
}

func runScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, info, err := simulate(ctx, sc)
	if err != nil {
		return err
	}

	runID, err := st.Save(info, result)
	if err != nil {
		return err
	}
	if jsonOut != "" {
		if err := storage.ExportJSON(jsonOut, info, result); err != nil {
			return err
		}
	}

	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}
	fmt.Println()

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	if err := viz.MetricsTable(os.Stdout, names, result.Metrics); err != nil {
		return err
	}
	if n := len(result.Profiles); n > 0 {
		fmt.Println("\nlast step:")
		return viz.ProfileTable(os.Stdout, result.Profiles[n-1])
	}
	return nil
}

// simulate builds sc on a fresh engine and runs it to completion or until
// ctx is cancelled. A cancelled run still returns its partial result.
func simulate(ctx context.Context, sc *config.Scene) (*sim.Result, storage.RunInfo, error) {
	e := newEngine()
	w, err := scene.Build(e, sc, log)
	if err != nil {
		return nil, storage.RunInfo{}, err
	}
	defer w.Close()

	r := sim.New(log)
	for _, m := range metrics.Defaults(sc.Gravity) {
		r.AddMetric(m)
	}

	if addr := viper.GetString("metrics_addr"); addr != "" {
		col := telemetry.NewCollector(sc.Name, e)
		reg := prometheus.NewRegistry()
		reg.MustRegister(col)
		r.AddMetric(col)

		srv := &http.Server{Addr: addr, Handler: telemetry.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", addr))
	}

	bp, err := w.Space.Broadphase()
	if err != nil {
		return nil, storage.RunInfo{}, err
	}
	info := storage.RunInfo{
		Scene:      sc.Name,
		Engine:     engineName,
		Broadphase: bp.String(),
		Dt:         sc.Dt,
		Duration:   sc.Duration,
	}

	fmt.Printf("running %s (%d bodies, %s)...\n", sc.Name, w.Space.BodyCount(), bp)
	var bar *tui.Progress
	if progress {
		bar = tui.NewProgress(os.Stdout, sc.Name, sc.Duration, 30)
		r.AddObserver(bar)
		bar.Start()
	}
	start := time.Now()
	cfg := sim.Config{Dt: sc.Dt, Duration: sc.Duration, SampleEvery: sampleEvery, ValidateState: true}
	result, err := r.Run(ctx, w, cfg)
	if bar != nil {
		bar.Stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, info, err
	}
	fmt.Printf("completed in %v\n", time.Since(start))
	return result, info, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	return viz.RunsTable(os.Stdout, runs)
}

func loadBody(runID string) (*storage.RunMetadata, [][]float64, []float64, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	if bodyIdx < 0 || bodyIdx >= len(meta.Bodies) {
		return nil, nil, nil, fmt.Errorf("body index %d out of range, run has %d bodies", bodyIdx, len(meta.Bodies))
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, states, times, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, states, _, err := loadBody(args[0])
	if err != nil {
		return err
	}
	body := meta.Bodies[bodyIdx]

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(states))

	for _, field := range strings.Split(fields, ",") {
		field = strings.TrimSpace(field)
		data, err := storage.Column(states, bodyIdx, field)
		if err != nil {
			return err
		}
		fmt.Println(viz.Plot(data, 10, 80, body+"."+field))
		fmt.Println()
	}

	if svgOut != "" {
		xs, _ := storage.Column(states, bodyIdx, "x")
		ys, _ := storage.Column(states, bodyIdx, "y")
		path := make([]nova.Vec2, min(len(xs), len(ys)))
		for i := range path {
			path[i] = nova.V(xs[i], ys[i])
		}
		if err := writeFile(svgOut, func(f io.Writer) error {
			return export.WriteTrajectorySVG(f, path, 800, 600, "#ff00ff")
		}); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgOut)
	}
	return nil
}

var velocityOf = map[string]string{"x": "vx", "y": "vy", "angle": "omega"}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadBody(args[0])
	if err != nil {
		return err
	}
	if len(times) < 4 {
		return fmt.Errorf("run %s: need at least 4 samples, have %d", meta.ID, len(times))
	}
	field := strings.TrimSpace(fields)
	data, err := storage.Column(states, bodyIdx, field)
	if err != nil {
		return err
	}
	sampleDt := times[1] - times[0]

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("series: %s.%s\n\n", meta.Bodies[bodyIdx], field)

	ps := analysis.PowerSpectrum(data)
	fmt.Println(viz.Plot(ps, 15, 80, "power spectrum"))
	fmt.Println()

	freq := analysis.DominantFrequency(data, sampleDt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1/freq)
	}
	b := analysis.Bands(ps)
	fmt.Printf("band energy: low %.3g  mid %.3g  high %.3g\n", b.Low, b.Mid, b.High)

	if vf, ok := velocityOf[field]; ok {
		vel, err := storage.Column(states, bodyIdx, vf)
		if err != nil {
			return err
		}
		fmt.Printf("\nphase portrait (%s, %s):\n", field, vf)
		fmt.Print(analysis.NewPhasePortrait(data, vel).ToASCII(60, 20))
	}
	return nil
}

func runDivergence(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	body := divBody
	if body == "" {
		for _, bc := range sc.Bodies {
			bi, err := bc.Init()
			if err == nil && bi.Kind == native.BodyDynamic {
				body = bc.Name
				break
			}
		}
	}
	if body == "" {
		return fmt.Errorf("scene %s has no dynamic body", sc.Name)
	}

	rate, err := analysis.Divergence(builder(newEngine(), sc), body, divEps, sc.Dt, sc.Duration)
	if err != nil {
		return err
	}
	fmt.Printf("scene: %s\n", sc.Name)
	fmt.Printf("perturbed: %s by %g\n", body, divEps)
	fmt.Printf("divergence rate: %.4f 1/s\n", rate)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, result, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}
	return storage.WriteJSON(os.Stdout, meta.RunInfo, result)
}

func parseParam(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("--param %q: want name=v1,v2", s)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("--param %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return strings.TrimSpace(name), vals, nil
}

func tuneScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	var (
		names  []string
		ranges [][]float64
	)
	for _, p := range tuneParams {
		name, vals, err := parseParam(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	g, err := optim.NewGridSearch(names, ranges, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, trials, err := g.Search(ctx, sc,
		engineFactory,
		func(sc *config.Scene) []sim.Metric { return metrics.Defaults(sc.Gravity) },
		tuneMetric)

	rows := make([][]string, 0, len(trials))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(t.Params[n], 'g', -1, 64))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, fmt.Sprintf("%.6g", t.Value))
		}
		rows = append(rows, row)
	}
	if terr := viz.Table(os.Stdout, append(slices.Clone(names), tuneMetric), rows); terr != nil {
		return terr
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nbest %s = %.6g at %v\n", tuneMetric, best.Value, best.Params)
	return nil
}
