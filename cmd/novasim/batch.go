package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/san-kum/novabind/internal/automation"
	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/internal/storage"
	"github.com/san-kum/novabind/internal/viz"
	"github.com/san-kum/novabind/native"
)

func engineFactory() native.Engine { return newEngine() }

func runScenario(cmd *cobra.Command, args []string) error {
	s, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %d steps\n", s.Name, len(s.Steps))
	results, runErr := automation.RunScenario(ctx, s, engineFactory,
		func(sc *config.Scene) []sim.Metric { return metrics.Defaults(sc.Gravity) }, log)

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		info := storage.RunInfo{
			Scene:      r.Scene.Name,
			Engine:     engineName,
			Broadphase: r.Scene.Broadphase,
			Dt:         r.Scene.Dt,
			Duration:   r.Scene.Duration,
		}
		id, err := st.Save(info, r.Result)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			id,
			r.Scene.Name,
			strconv.Itoa(r.Result.StepsTaken),
			fmt.Sprintf("%.4g", r.Result.Metrics["energy_drift"]),
		})
	}
	if err := viz.Table(os.Stdout, []string{"Run", "Scene", "Steps", "Energy drift"}, rows); err != nil {
		return err
	}
	return runErr
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("monte carlo %s: %d trials, jitter %g\n", sc.Name, mcTrials, mcJitter)
	results, err := automation.RunMonteCarlo(ctx, automation.MonteCarloConfig{
		Scene:        sc,
		Perturbation: mcJitter,
		Trials:       mcTrials,
		Seed:         mcSeed,
	}, engineFactory, log)
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("stable: %d  unstable: %d\n", stable, unstable)
	fmt.Println(viz.ProgressBar(float64(stable)/float64(len(results)), 40))
	return nil
}
