package smt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/value"
)

// fakeSolver is a Solver test double whose CheckSat result and error are
// fixed at construction, used to drive Pool.Race without a real backend.
type fakeSolver struct {
	result Result
	err    error
	model  Model
	core   []TrackedName
}

func (s *fakeSolver) Assert(pred value.Value) error                { return nil }
func (s *fakeSolver) AssertTracked(pred value.Value, n TrackedName) error { return nil }
func (s *fakeSolver) Push()                                        {}
func (s *fakeSolver) Pop()                                          {}
func (s *fakeSolver) CheckSat(ctx context.Context, timeout time.Duration, seed int64) (Result, error) {
	return s.result, s.err
}
func (s *fakeSolver) Model() (Model, error)               { return s.model, nil }
func (s *fakeSolver) UnsatCore() ([]TrackedName, error)   { return s.core, nil }
func (s *fakeSolver) Close()                              {}

func TestNewPoolDefaultsToNumCPU(t *testing.T) {
	t.Parallel()

	p := NewPool(0)
	require.Greater(t, p.NumWorkers, 0)

	p2 := NewPool(4)
	require.Equal(t, 4, p2.NumWorkers)
}

func TestRaceSingleWorkerSat(t *testing.T) {
	t.Parallel()

	p := &Pool{NumWorkers: 1}
	res, model, _, err := p.Race(context.Background(),
		func() (Solver, error) { return &fakeSolver{result: Sat, model: Model{"x": []byte{1}}}, nil },
		func(s Solver) error { return nil },
		time.Second, 0)
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	require.Equal(t, Model{"x": []byte{1}}, model)
}

func TestRaceAllUnknownReturnsUnknown(t *testing.T) {
	t.Parallel()

	p := &Pool{NumWorkers: 3}
	res, _, _, err := p.Race(context.Background(),
		func() (Solver, error) { return &fakeSolver{result: Unknown}, nil },
		func(s Solver) error { return nil },
		time.Second, 0)
	require.NoError(t, err)
	require.Equal(t, Unknown, res)
}

func TestRaceOneDecisiveAmongUnknownsWins(t *testing.T) {
	t.Parallel()

	var i int
	p := &Pool{NumWorkers: 3}
	res, _, core, err := p.Race(context.Background(),
		func() (Solver, error) {
			i++
			if i == 2 {
				return &fakeSolver{result: Unsat, core: []TrackedName{"assert_at_line_1"}}, nil
			}
			return &fakeSolver{result: Unknown}, nil
		},
		func(s Solver) error { return nil },
		time.Second, 0)
	require.NoError(t, err)
	require.Equal(t, Unsat, res)
	require.Equal(t, []TrackedName{"assert_at_line_1"}, core)
}

func TestRaceAllErrorsPropagatesLastError(t *testing.T) {
	t.Parallel()

	boom := errors.New("z3 unavailable")
	p := &Pool{NumWorkers: 2}
	res, _, _, err := p.Race(context.Background(),
		func() (Solver, error) { return nil, boom },
		func(s Solver) error { return nil },
		time.Second, 0)
	require.Equal(t, Unknown, res)
	require.ErrorIs(t, err, boom)
}

func TestRaceAssertAllErrorCountsAsWorkerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad assertion")
	p := &Pool{NumWorkers: 1}
	_, _, _, err := p.Race(context.Background(),
		func() (Solver, error) { return &fakeSolver{result: Sat}, nil },
		func(s Solver) error { return boom },
		time.Second, 0)
	require.ErrorIs(t, err, boom)
}
