// Package pathexplorer implements depth-first fork/prune/
// recurse/merge algorithm: it walks the tokenized script once per path,
// dispatching each opcode through an opcode.Table, forking the context at
// every branching transfer function, pruning children an SMT check proves
// unreachable, and lifting shared enforcements to the parent once all of a
// fork's children have completed.
package pathexplorer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgpv/bsst/internal/assert"
	"github.com/dgpv/bsst/internal/config"
	bsstctx "github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/dynstack"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/opcode"
	"github.com/dgpv/bsst/internal/scriptnum"
	"github.com/dgpv/bsst/internal/smt"
	"github.com/dgpv/bsst/internal/token"
	"github.com/dgpv/bsst/internal/value"
)

// Path is one completed leaf of the explored tree.
type Path struct {
	Ctx    *bsstctx.Context
	Failed bool
}

// Explorer owns everything needed to walk one script: the opcode dispatch
// table, settings, plugin hooks, and (when Z3Enabled) a solver factory and
// retry policy.
type Explorer struct {
	Settings *config.Settings
	Table    opcode.Table
	Hooks    assert.Hooks

	SolverFactory smt.Factory
	Policy        *smt.Policy

	Paths []Path
}

// Run walks toks from the beginning with a fresh root context, returning
// every completed path once the whole tree has been explored.
func (e *Explorer) Run(arena *value.Arena, toks []token.Token) ([]Path, error) {
	root := bsstctx.New(arena)
	if e.SolverFactory != nil {
		s, err := e.SolverFactory()
		if err != nil {
			return nil, fmt.Errorf("building root solver: %w", err)
		}
		root.SolverState = solverFrame{s}
	}
	if err := e.walk(root, toks, 0); err != nil {
		return nil, err
	}
	if err := e.markAlwaysTrueEnforcements(); err != nil {
		return nil, err
	}
	if err := e.sampleModelValues(); err != nil {
		return nil, err
	}
	return e.Paths, nil
}

// solverFrame adapts an smt.Solver to context.SolverFrame. Fork is a no-op
// identity in reset mode (the default): each branch re-derives its solver
// from the accumulated path predicate at check time rather than carrying a
// live incremental handle, matching "In reset mode (default),
// each check creates a fresh solver, re-asserts the accumulated predicates
// of the current path, and discards the instance."
type solverFrame struct{ smt.Solver }

func (f solverFrame) Fork() bsstctx.SolverFrame { return f }

func (e *Explorer) solverOf(ctx *bsstctx.Context) smt.Solver {
	if sf, ok := ctx.SolverState.(solverFrame); ok {
		return sf.Solver
	}
	return nil
}

// walk dispatches tokens[i:] against ctx, recursing into any forks a
// transfer function produces, and appends completed leaves to e.Paths.
func (e *Explorer) walk(ctx *bsstctx.Context, toks []token.Token, i int) error {
	for i < len(toks) {
		tok := toks[i]
		ctx.PC = i
		ctx.Line = tok.Line
		pos := bsstctx.Position{PC: i, Line: tok.Line}

		switch tok.Kind {
		case token.KindLiteral:
			lit := tok.Literal
			if e.Hooks.Pushdata != nil {
				out, err := e.Hooks.Pushdata(ctx, lit)
				if err != nil {
					return err
				}
				lit = out
			}
			ctx.Push(ctx.Arena.Lit(lit), pos)
			i++
			continue

		case token.KindPlaceholder:
			ctx.Push(ctx.Arena.Placeholder(strings.TrimPrefix(tok.Text, "$")), pos)
			i++
			continue

		case token.KindComment:
			if err := e.applyComment(ctx, tok); err != nil {
				return err
			}
			i++
			continue
		}

		// KindOpcode.
		name := tok.Text
		fn, known := e.Table[name]
		if !known {
			ctx.Fail(pos, errtag.WithOpcode(name, "unknown or disabled opcode").Tag(),
				fmt.Sprintf("%s is not a recognized or enabled opcode", name))
			e.finish(ctx)
			return nil
		}

		if e.Hooks.PreOpcode != nil {
			if err := e.Hooks.PreOpcode(ctx, name); err != nil {
				return err
			}
		}

		forks, err := fn(ctx, e.Settings, pos, nil)
		if err != nil {
			return err
		}

		if e.Hooks.PostOpcode != nil {
			if err := e.Hooks.PostOpcode(ctx, name); err != nil {
				return err
			}
		}

		if ctx.Failed() {
			e.finish(ctx)
			return nil
		}

		if e.Settings.DoProgressiveZ3Checks && e.solverOf(ctx) != nil {
			if unsat, failTag, err := e.checkFeasible(ctx); err != nil {
				return err
			} else if unsat {
				ctx.Fail(pos, failTag, "path predicate became unsatisfiable after this opcode")
				e.finish(ctx)
				return nil
			}
		}

		for _, f := range forks {
			if e.Settings.Z3Enabled && e.solverOf(f.Ctx) != nil {
				unsat, failTag, err := e.checkFeasible(f.Ctx)
				if err != nil {
					return err
				}
				if unsat {
					f.Ctx.Fail(pos, failTag, fmt.Sprintf("branch %q is statically unreachable", f.Label))
					e.finish(f.Ctx)
					continue
				}
			}
			if err := e.walk(f.Ctx, toks, i+1); err != nil {
				return err
			}
		}

		i++
	}

	if err := e.finalize(ctx); err != nil {
		return err
	}
	e.finish(ctx)
	return nil
}

func (e *Explorer) applyComment(ctx *bsstctx.Context, tok token.Token) error {
	c, ok := assert.ParseComment(tok.Comment, tok.Line)
	if !ok {
		if e.Hooks.PluginComment != nil {
			_, err := e.Hooks.PluginComment(ctx, tok.Comment, tok.Line)
			return err
		}
		return nil
	}

	switch c.Kind {
	case assert.CommentDataRef:
		return assert.BindReference(ctx, c.Target)
	case assert.CommentAssert:
		if e.solverOf(ctx) == nil {
			return assert.ApplyAssert(context.Background(), c, ctx, nil, nil, false)
		}
		return assert.ApplyAssert(context.Background(), c, ctx, e.solverOf(ctx), e.Policy, true)
	case assert.CommentAssume:
		return assert.ApplyAssume(c, ctx)
	}
	return nil
}

// finalize implements "Finalization": after the last opcode,
// if is-incomplete-script=false and cleanstack-flag=true, require exactly
// one item on the stack and publish BOOL(top) as the terminal enforcement.
func (e *Explorer) finalize(ctx *bsstctx.Context) error {
	if ctx.Failed() {
		return nil
	}
	if e.Hooks.PreFinalize != nil {
		if err := e.Hooks.PreFinalize(ctx); err != nil {
			return err
		}
	}

	if !e.Settings.IsIncompleteScript {
		if e.Settings.CleanStackFlag && ctx.Depth() != 1 {
			ctx.Fail(bsstctx.Position{PC: ctx.PC, Line: ctx.Line},
				errtag.New(errtag.CheckBranchConditionInvalid, "cleanstack violation").Tag(),
				"script did not leave exactly one item on the stack")
			return nil
		}
		if top, ok := ctx.Top(); ok {
			pred := ctx.Arena.Op(value.KindBool, "", top)
			if b, known := top.Bool(); known && !b {
				ctx.Fail(bsstctx.Position{PC: ctx.PC, Line: ctx.Line},
					errtag.New(errtag.CheckBranchConditionInvalid, "final result is false").Tag(),
					"script finished with a statically false top-of-stack element")
				return nil
			}
			ctx.Publish(pred, bsstctx.Position{PC: ctx.PC, Line: ctx.Line}, 0)
		}
	}

	if e.Hooks.PostFinalize != nil {
		if err := e.Hooks.PostFinalize(ctx); err != nil {
			return err
		}
	}
	ctx.Seal()
	return nil
}

func (e *Explorer) finish(ctx *bsstctx.Context) {
	if ctx.Failed() && e.Hooks.ScriptFailure != nil {
		e.Hooks.ScriptFailure(ctx)
	}
	e.Paths = append(e.Paths, Path{Ctx: ctx, Failed: ctx.Failed()})
}

// checkFeasible asserts ctx's accumulated path predicate and assumptions
// against a fresh solver and reports whether the result is unsat, along
// with the error tag an unsat core attributes the contradiction to.
func (e *Explorer) checkFeasible(ctx *bsstctx.Context) (bool, string, error) {
	s, err := e.SolverFactory()
	if err != nil {
		return false, "", err
	}
	defer s.Close()

	if ctx.PathPredicate != nil {
		if err := s.Assert(ctx.PathPredicate); err != nil {
			return false, "", err
		}
	}
	for _, a := range ctx.Assumptions {
		if err := s.Assert(a); err != nil {
			return false, "", err
		}
	}
	for idx, enf := range ctx.Enforcements {
		name := smt.TrackedName(fmt.Sprintf("enf_%d_%d", ctx.PC, idx))
		if err := s.AssertTracked(enf.Predicate, name); err != nil {
			return false, "", err
		}
	}

	res, err := e.Policy.Run(context.Background(), func(ctx context.Context, timeout time.Duration, seed int64) (smt.Result, error) {
		return s.CheckSat(ctx, timeout, seed)
	})
	if err != nil {
		if _, ok := err.(smt.ErrSolverUnknown); ok {
			return false, "", nil
		}
		return false, "", err
	}
	if res != smt.Unsat {
		return false, "", nil
	}

	if e.Settings.DisableErrorCodeTrackingWithZ3 {
		return true, errtag.New(errtag.UntrackedConstraintCheckFailed, "path predicate unsatisfiable").Tag(), nil
	}
	core, _ := s.UnsatCore()
	if len(core) == 0 {
		return true, errtag.New(errtag.UntrackedConstraintCheckFailed, "path predicate unsatisfiable").Tag(), nil
	}
	return true, string(core[0]), nil
}

// markAlwaysTrueEnforcements implements enforcement marking: an
// enforcement proven true under just its own path's predicate is a
// candidate for the always-true marker, but only keeps it once the same
// enforcement (by predicate and position) is present, and individually
// provable, on every other valid path too — lifted to the parent. A
// candidate that doesn't survive lifting falls back to the weaker
// path-local marker instead, when mark-path-local-always-true-enforcements
// asks for it; otherwise it loses the marker entirely.
func (e *Explorer) markAlwaysTrueEnforcements() error {
	if !e.Settings.CheckAlwaysTrueEnforcements || !e.Settings.Z3Enabled || e.SolverFactory == nil {
		return nil
	}

	var valid []Path
	for _, p := range e.Paths {
		if p.Failed {
			continue
		}
		valid = append(valid, p)
		for i := range p.Ctx.Enforcements {
			taut, err := e.checkTautology(p.Ctx, p.Ctx.Enforcements[i].Predicate)
			if err != nil {
				return err
			}
			if taut {
				p.Ctx.Enforcements[i].Flags |= bsstctx.FlagAlwaysTrue
			}
		}
	}
	if len(valid) == 0 {
		return nil
	}

	total := map[string]int{}
	taut := map[string]int{}
	for _, p := range valid {
		for _, enf := range p.Ctx.Enforcements {
			key := enforcementKey(enf)
			total[key]++
			if enf.Flags&bsstctx.FlagAlwaysTrue != 0 {
				taut[key]++
			}
		}
	}

	for _, p := range valid {
		for i := range p.Ctx.Enforcements {
			enf := &p.Ctx.Enforcements[i]
			if enf.Flags&bsstctx.FlagAlwaysTrue == 0 {
				continue
			}
			key := enforcementKey(*enf)
			if total[key] == len(valid) && taut[key] == len(valid) {
				continue
			}
			enf.Flags &^= bsstctx.FlagAlwaysTrue
			if e.Settings.MarkPathLocalAlwaysTrueEnforcements {
				enf.Flags |= bsstctx.FlagPathLocalAlwaysTrue
			}
		}
	}
	return nil
}

func enforcementKey(e bsstctx.Enforcement) string {
	return fmt.Sprintf("%s@%d:%d", e.Predicate.Display(false), e.Position.PC, e.Position.Line)
}

// checkTautology reports whether pred holds unconditionally given ctx's
// accumulated path predicate and assumptions: asserting pred's negation
// alongside them and finding unsat means the path predicate alone forces
// pred true.
func (e *Explorer) checkTautology(ctx *bsstctx.Context, pred value.Value) (bool, error) {
	s, err := e.SolverFactory()
	if err != nil {
		return false, err
	}
	defer s.Close()

	if ctx.PathPredicate != nil {
		if err := s.Assert(ctx.PathPredicate); err != nil {
			return false, err
		}
	}
	for _, a := range ctx.Assumptions {
		if err := s.Assert(a); err != nil {
			return false, err
		}
	}
	neg := ctx.Arena.Op(value.KindNot, "", pred)
	if err := s.Assert(neg); err != nil {
		return false, err
	}

	res, err := e.Policy.Run(context.Background(), func(ctx context.Context, timeout time.Duration, seed int64) (smt.Result, error) {
		return s.CheckSat(ctx, timeout, seed)
	})
	if err != nil {
		if _, ok := err.(smt.ErrSolverUnknown); ok {
			return false, nil
		}
		return false, err
	}
	return res == smt.Unsat, nil
}

// sampleModelValues implements model-value reporting: for each valid path's
// final stack expressions, sample up to N distinct satisfying assignments
// with dynstack's solver-driven enumerator (the same one PICK/ROLL/
// CHECKMULTISIG use for their own dynamic arguments), and cache both the
// sampled values and their encoded-size set on the context for the reporter
// to render. An expression whose display name matches a
// produce-model-values-for glob gets its N from the glob's ":N" suffix (the
// run's max-samples-for-dynamic-stack-access otherwise) and is eligible to
// have its raw value set printed; every other expression is sampled only
// far enough to report its observed size set when
// report-model-value-sizes is set.
func (e *Explorer) sampleModelValues() error {
	s := e.Settings
	if !s.Z3Enabled || e.SolverFactory == nil || (!s.ProduceModelValues && !s.ReportModelValueSizes) {
		return nil
	}

	for _, p := range e.Paths {
		if p.Failed {
			continue
		}
		ctx := p.Ctx
		for _, v := range ctx.Stack {
			name := v.Display(false)
			if _, done := ctx.ModelValues[name]; done {
				continue
			}
			n, matched := matchModelValueGlob(s.ProduceModelValuesFor, name)
			if !matched && !s.ReportModelValueSizes {
				continue
			}
			if n <= 0 {
				n = s.MaxSamplesForDynamicStackAccess
			}

			solver, err := e.solverForPathPredicate(ctx)
			if err != nil {
				return err
			}
			sampler := &dynstack.Sampler{Policy: e.Policy, Max: n}
			values, _, err := sampler.Sample(context.Background(), solver, ctx.Arena, v)
			solver.Close()
			if err != nil {
				return err
			}
			if len(values) == 0 {
				continue
			}

			var sizes []int
			if s.ReportModelValueSizes {
				sizes = make([]int, len(values))
				for i, val := range values {
					sizes[i] = len(scriptnum.New(val).Bytes())
				}
			}
			if s.SortModelValues {
				sortValuesAndSizes(values, sizes)
			}
			ctx.ModelValues[name] = bsstctx.ModelValueSample{Values: values, Sizes: sizes, Matched: matched}
		}
	}
	return nil
}

// solverForPathPredicate builds a solver primed with ctx's accumulated path
// predicate and assumptions, matching the assertion set
// dynstack.Hook.solverForPath and checkTautology both use.
func (e *Explorer) solverForPathPredicate(ctx *bsstctx.Context) (smt.Solver, error) {
	s, err := e.SolverFactory()
	if err != nil {
		return nil, err
	}
	if ctx.PathPredicate != nil {
		if err := s.Assert(ctx.PathPredicate); err != nil {
			s.Close()
			return nil, err
		}
	}
	for _, a := range ctx.Assumptions {
		if err := s.Assert(a); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// matchModelValueGlob checks name against each "glob[:N]" entry, returning
// the first match's N (defaulting to the run's dynamic-stack-access sample
// budget when the entry carries no ":N" suffix).
func matchModelValueGlob(entries []string, name string) (int, bool) {
	for _, entry := range entries {
		pattern, n := splitGlobEntry(entry)
		if ok, _ := filepath.Match(pattern, name); ok {
			return n, true
		}
	}
	return 0, false
}

func splitGlobEntry(entry string) (string, int) {
	if idx := strings.LastIndex(entry, ":"); idx >= 0 {
		if n, err := strconv.Atoi(entry[idx+1:]); err == nil && n > 0 {
			return entry[:idx], n
		}
	}
	return entry, 0
}

// sortValuesAndSizes sorts values ascending, permuting sizes (when present)
// to stay aligned with the value each entry describes.
func sortValuesAndSizes(values []int64, sizes []int) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	sortedValues := make([]int64, len(values))
	var sortedSizes []int
	if sizes != nil {
		sortedSizes = make([]int, len(sizes))
	}
	for i, j := range idx {
		sortedValues[i] = values[j]
		if sizes != nil {
			sortedSizes[i] = sizes[j]
		}
	}
	copy(values, sortedValues)
	if sizes != nil {
		copy(sizes, sortedSizes)
	}
}
