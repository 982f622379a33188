package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/export"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/internal/tui"
	"github.com/san-kum/novabind/internal/viz"
	"github.com/san-kum/novabind/nova"
)

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	return tui.Run(builder(newEngine(), sc), log)
}

func parseVec(s string) (nova.Vec2, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nova.Vec2{}, fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nova.Vec2{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nova.Vec2{}, err
	}
	return nova.V(x, y), nil
}

func rayEnds(sc *config.Scene) (from, to nova.Vec2, err error) {
	if sc.Ray != nil {
		from, to = sc.Ray.From, sc.Ray.To
	} else if rayFrom == "" || rayTo == "" {
		return from, to, fmt.Errorf("scene %s has no ray, pass --from and --to", sc.Name)
	}
	if rayFrom != "" {
		if from, err = parseVec(rayFrom); err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
	}
	if rayTo != "" {
		if to, err = parseVec(rayTo); err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
	}
	return from, to, nil
}

func runRaycast(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	from, to, err := rayEnds(sc)
	if err != nil {
		return err
	}

	w, err := scene.Build(newEngine(), sc, log)
	if err != nil {
		return err
	}
	defer w.Close()

	for i := 0; i < raySteps; i++ {
		if err := w.Space.Step(sc.Dt); err != nil {
			return err
		}
	}

	hits, err := w.Space.CastRay(from, to)
	if err != nil {
		return err
	}

	names := make(map[*nova.RigidBody]string)
	for name, b := range w.Bodies() {
		names[b] = name
	}

	c := viz.NewCanvas(60, 16)
	box, ok := viz.Bounds(w)
	if !ok {
		box = nova.AABB{Min: from, Max: from}
	}
	box = box.Union(nova.AABB{Min: from, Max: from}).Union(nova.AABB{Min: to, Max: to})
	cam := viz.Fit(c, box)
	if err := viz.DrawWorld(c, cam, w); err != nil {
		return err
	}
	viz.DrawRay(c, cam, from, to, hits)
	fmt.Print(c.String())
	if svgOut != "" {
		if err := writeFile(svgOut, func(f io.Writer) error {
			return export.WriteCanvasSVG(f, c, 4, "#00ffff")
		}); err != nil {
			return err
		}
	}

	fmt.Printf("\nray %v -> %v: %d hits\n", from, to, len(hits))
	if len(hits) == 0 {
		return nil
	}
	return viz.HitsTable(os.Stdout, hits, func(b *nova.RigidBody) string { return names[b] })
}

func benchScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be positive, got %d", benchRuns)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("benchmarking %s: %d runs x %.1fs per broadphase\n\n", sc.Name, benchRuns, sc.Duration)
	cfg := sim.Config{Dt: sc.Dt, Duration: sc.Duration, SampleEvery: sc.Steps() + 1}

	var rows [][]string
	for _, bp := range []string{"bvh", "spatial_hash", "brute_force"} {
		variant := *sc
		variant.Broadphase = bp
		ens := sim.NewEnsemble(sim.New(log), benchRuns, func(int) (*scene.World, error) {
			return scene.Build(newEngine(), &variant, log)
		})

		start := time.Now()
		results, err := ens.Run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", bp, err)
		}
		elapsed := time.Since(start)

		steps := 0
		var stepTime time.Duration
		for _, r := range results {
			steps += r.StepsTaken
			for _, p := range r.Profiles {
				stepTime += p.Step
			}
		}
		mean := time.Duration(0)
		if steps > 0 {
			mean = stepTime / time.Duration(steps)
		}
		rows = append(rows, []string{
			bp,
			strconv.Itoa(steps),
			mean.String(),
			elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.0f", float64(steps)/elapsed.Seconds()),
		})

		if len(results) > 0 {
			series := make([]float64, len(results[0].Profiles))
			for i, p := range results[0].Profiles {
				series[i] = float64(p.Step.Microseconds())
			}
			fmt.Println(viz.Plot(series, 6, 60, bp+" step time (us)"))
			fmt.Println()
		}
	}
	return viz.Table(os.Stdout, []string{"Broadphase", "Steps", "Mean step", "Wall", "Steps/s"}, rows)
}

// watchScene runs the scene file once, then again on every save.
func watchScene(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rerun := func() {
		sc, err := loadScene(cmd, path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return
		}
		result, _, err := simulate(ctx, sc)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return
		}
		fmt.Printf("steps: %d\n", result.StepsTaken)
		for name, v := range result.Metrics {
			fmt.Printf("  %s: %.6f\n", name, v)
		}
	}

	rerun()
	fmt.Printf("\nwatching %s (ctrl+c to stop)\n", path)

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			now := time.Now()
			if now.Sub(last) < 100*time.Millisecond {
				continue
			}
			last = now
			log.Debug("scene changed", zap.String("path", path), zap.Stringer("op", event.Op))
			fmt.Printf("\n%s changed, re-running\n", filepath.Base(path))
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				return err
			}
			log.Warn("watch overflow", zap.Error(err))
		}
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
