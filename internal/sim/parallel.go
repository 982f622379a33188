package sim

import (
	"context"
	"sync"

	"github.com/san-kum/novabind/internal/scene"
)

// Ensemble runs independent worlds concurrently. Each run gets its own world
// from build, so no native state is shared between goroutines.
type Ensemble struct {
	base    *Runner
	build   func(idx int) (*scene.World, error)
	numRuns int
}

func NewEnsemble(r *Runner, numRuns int, build func(idx int) (*scene.World, error)) *Ensemble {
	return &Ensemble{base: r, build: build, numRuns: numRuns}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			w, err := e.build(idx)
			if err != nil {
				errs[idx] = err
				return
			}
			defer w.Close()

			runner := New(e.base.log)
			results[idx], errs[idx] = runner.Run(ctx, w, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
