package smt

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool races NumWorkers independently seeded solver instances on the same
// query: the only parallelism in the tracer is within a single SMT check,
// where N racing workers compete on the same goal and the first decisive
// result wins. There is no portable cross-platform process-fork primitive
// in Go, so racing workers are goroutines coordinated with
// golang.org/x/sync/errgroup rather than separate processes (see
// DESIGN.md), degrading gracefully to a single effective worker when
// NumWorkers is 1.
type Pool struct {
	NumWorkers int
}

// NewPool returns a Pool with NumWorkers workers, defaulting to the number
// of CPUs when n <= 0, matching the --parallel-solving-num-processes flag's
// default.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Pool{NumWorkers: n}
}

type raceOutcome struct {
	res   Result
	model Model
	core  []TrackedName
	err   error
}

// Race runs newSolver N times concurrently, each asserting preds then
// calling CheckSat with a distinct seed derived from base+workerIndex. The
// first worker to return a definite Sat or Unsat wins; the context passed
// to the others is cancelled.
func (p *Pool) Race(
	ctx context.Context,
	newSolver Factory,
	assertAll func(s Solver) error,
	timeout time.Duration,
	baseSeed int64,
) (Result, Model, []TrackedName, error) {

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceOutcome, p.NumWorkers)
	g, gctx := errgroup.WithContext(raceCtx)

	for i := 0; i < p.NumWorkers; i++ {
		workerSeed := baseSeed + int64(i)
		g.Go(func() error {
			solver, err := newSolver()
			if err != nil {
				results <- raceOutcome{err: err}
				return nil
			}
			defer solver.Close()

			if err := assertAll(solver); err != nil {
				results <- raceOutcome{err: err}
				return nil
			}

			res, err := solver.CheckSat(gctx, timeout, workerSeed)
			if err != nil {
				results <- raceOutcome{err: err}
				return nil
			}
			if res == Unknown {
				results <- raceOutcome{res: Unknown}
				return nil
			}

			var model Model
			var core []TrackedName
			if res == Sat {
				model, _ = solver.Model()
			} else {
				core, _ = solver.UnsatCore()
			}
			results <- raceOutcome{res: res, model: model, core: core}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var sawUnknown bool
	var lastErr error
	remaining := p.NumWorkers
	for outcome := range results {
		remaining--
		switch {
		case outcome.err != nil:
			lastErr = outcome.err
		case outcome.res == Sat || outcome.res == Unsat:
			cancel()
			return outcome.res, outcome.model, outcome.core, nil
		case outcome.res == Unknown:
			sawUnknown = true
		}
		if remaining == 0 {
			break
		}
	}

	if sawUnknown {
		return Unknown, nil, nil, nil
	}
	return Unknown, nil, nil, lastErr
}
