// Package smt implements the SMT backend: lowering of
// symbolic values into SMT terms, the solver pool, timeout/retry policy,
// incremental vs reset mode, and tracked-assertion mapping for error-code
// attribution.
package smt

import (
	"context"
	"time"

	"github.com/dgpv/bsst/internal/value"
)

// Result is the three-valued outcome of a satisfiability check.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

// Model is a satisfying assignment, keyed by value identity.
type Model map[value.ID][]byte

// TrackedName is the name under which a published enforcement's negation is
// asserted, so that an unsat core can be mapped back to an error-kind tag.
type TrackedName string

// Solver abstracts over assert/push/pop/check-sat/get-model/get-unsat-core
// so incremental and reset backends share one surface.
type Solver interface {
	// Assert adds pred as a hard constraint.
	Assert(pred value.Value) error
	// AssertTracked adds pred as a constraint tracked under name, enabling
	// unsat-core attribution.
	AssertTracked(pred value.Value, name TrackedName) error
	// Push opens a new assertion scope (no-op for reset-mode solvers).
	Push()
	// Pop closes the most recently opened scope.
	Pop()
	// CheckSat runs one attempt bounded by timeout, returning Unknown on
	// timeout or solver-reported unknown.
	CheckSat(ctx context.Context, timeout time.Duration, seed int64) (Result, error)
	// Model returns the last satisfying assignment, valid only after
	// CheckSat returned Sat.
	Model() (Model, error)
	// UnsatCore returns the tracked names implicated in the last Unsat
	// result.
	UnsatCore() ([]TrackedName, error)
	// Close releases backend resources.
	Close()
}

// Factory constructs a fresh Solver instance, one per reset-mode check or
// one per path in incremental mode.
type Factory func() (Solver, error)
