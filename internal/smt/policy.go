package smt

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy implements the solver retry budget: attempt count bounded by
// MaxTries, starting at an initial timeout and multiplying up to a max; on
// Unknown, reshuffle assertion order and reseed (unless DisableRandomization)
// and retry.
type Policy struct {
	InitialTimeout       time.Duration
	TimeoutMultiplier    float64
	TimeoutMax           time.Duration
	MaxTries             int
	DisableRandomization bool
	ExitOnUnknown        bool

	Log          *logrus.Logger
	LogToStderr  bool
	rng          *rand.Rand
}

// NewPolicy builds a Policy from the raw seconds/multiplier/max settings
// used by config.Settings.
func NewPolicy(initialSeconds int, multiplier float64, maxSeconds, maxTries int, disableRandom, exitOnUnknown bool, log *logrus.Logger) *Policy {
	return &Policy{
		InitialTimeout:       time.Duration(initialSeconds) * time.Second,
		TimeoutMultiplier:    multiplier,
		TimeoutMax:           time.Duration(maxSeconds) * time.Second,
		MaxTries:             maxTries,
		DisableRandomization: disableRandom,
		ExitOnUnknown:        exitOnUnknown,
		Log:                  log,
		rng:                  rand.New(rand.NewSource(1)),
	}
}

// ErrSolverUnknown is returned by Run when every attempt in the budget
// reported Unknown and ExitOnUnknown is set.
type ErrSolverUnknown struct{}

func (ErrSolverUnknown) Error() string { return "solver_result_unknown" }

// Run executes check up to MaxTries times with escalating timeouts and
// reseeding, stopping early on a definite Sat/Unsat. attempt is the seed
// passed through to the solver for assertion-order shuffling.
func (p *Policy) Run(ctx context.Context, check func(ctx context.Context, timeout time.Duration, seed int64) (Result, error)) (Result, error) {
	timeout := p.InitialTimeout
	var lastErr error

	for attempt := 0; attempt < p.MaxTries; attempt++ {
		seed := int64(attempt)
		if !p.DisableRandomization {
			seed = p.rng.Int63()
		}

		if p.Log != nil && p.LogToStderr {
			p.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"timeout": timeout,
				"seed":    seed,
			}).Debug("solving attempt")
		} else if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"timeout": timeout,
			}).Debug("solving attempt")
		}

		res, err := check(ctx, timeout, seed)
		if err != nil {
			lastErr = err
			continue
		}
		if res != Unknown {
			return res, nil
		}

		timeout = time.Duration(math.Min(
			float64(p.TimeoutMax),
			float64(timeout)*p.TimeoutMultiplier,
		))
	}

	if p.ExitOnUnknown {
		return Unknown, ErrSolverUnknown{}
	}
	return Unknown, lastErr
}
