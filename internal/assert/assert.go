package assert

import (
	"context"
	"fmt"
	"strings"
	"time"

	bsstctx "github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/smt"
	"github.com/dgpv/bsst/internal/value"
)

// Comment classifies one recognized `bsst-*` comment form, parsed out of a
// token.Token's Comment field by the path explorer before being handed to
// this package.
type Comment struct {
	Kind      CommentKind
	Line      int
	SizeBytes int // -size qualifier, 0 if absent
	Target    string // named target inside (...), empty means "top of stack"
	PlaceholderName string // for bsst-assume($name):
	Body      string
}

type CommentKind int

const (
	CommentDataRef CommentKind = iota
	CommentAssert
	CommentAssume
)

// ParseComment recognizes the three comment forms:
// "=>name", "bsst-assert[-size]<(target)>: expr", "bsst-assume[-size]($name): expr".
func ParseComment(text string, line int) (Comment, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "=>") {
		return Comment{Kind: CommentDataRef, Line: line, Target: strings.TrimPrefix(text, "=>")}, true
	}

	if rest, ok := cutPrefixWord(text, "bsst-assert"); ok {
		size, rest := cutSize(rest)
		target, body, ok := splitTargetBody(rest)
		if !ok {
			return Comment{}, false
		}
		return Comment{Kind: CommentAssert, Line: line, SizeBytes: size, Target: target, Body: body}, true
	}

	if rest, ok := cutPrefixWord(text, "bsst-assume"); ok {
		size, rest := cutSize(rest)
		target, body, ok := splitTargetBody(rest)
		if !ok {
			return Comment{}, false
		}
		return Comment{Kind: CommentAssume, Line: line, SizeBytes: size, PlaceholderName: strings.TrimPrefix(target, "$"), Body: body}, true
	}

	return Comment{}, false
}

func cutPrefixWord(text, word string) (string, bool) {
	if !strings.HasPrefix(text, word) {
		return "", false
	}
	return text[len(word):], true
}

func cutSize(rest string) (int, string) {
	if !strings.HasPrefix(rest, "-") {
		return 0, rest
	}
	rest = rest[1:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "-" + rest
	}
	n := 0
	fmt.Sscanf(rest[:i], "%d", &n)
	return n, rest[i:]
}

func splitTargetBody(rest string) (target, body string, ok bool) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		close := strings.Index(rest, ")")
		if close < 0 {
			return "", "", false
		}
		target = rest[1:close]
		rest = rest[close+1:]
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", false
	}
	return target, strings.TrimSpace(rest[1:]), true
}

// BindReference implements the `// =>name` data-reference form: binds name
// to the value currently on top of ctx's stack. If the same name would be
// bound to a structurally different value on this path, an apostrophe
// suffix disambiguates the later binding.
func BindReference(ctx *bsstctx.Context, name string) error {
	top, ok := ctx.Top()
	if !ok {
		return fmt.Errorf("=>%s: stack is empty", name)
	}
	finalName := name
	for {
		existing, bound := ctx.DataRefs[finalName]
		if !bound || existing.CanonicalString() == top.CanonicalString() {
			break
		}
		finalName += "'"
	}
	ctx.DataRefs[finalName] = ctx.Arena.Ref(finalName, top)
	return nil
}

// resolveTarget returns the value a comment's Target names: the current
// stack top when empty, or the bound reference/placeholder it names.
func resolveTarget(ctx *bsstctx.Context, target string) (value.Value, error) {
	if target == "" {
		top, ok := ctx.Top()
		if !ok {
			return nil, fmt.Errorf("assertion target is empty stack")
		}
		return top, nil
	}
	if strings.HasPrefix(target, "$") {
		return ctx.Arena.Placeholder(strings.TrimPrefix(target, "$")), nil
	}
	if v, ok := ctx.DataRefs[target]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unknown assertion target %q", target)
}

// ApplyAssert implements the assertion rule: check feasibility of
// violating the constraint first; if violation is feasible, fail the path
// with assertion_failed_at_line_<N>; otherwise adopt the constraint as an
// ordinary enforcement. A later contradiction involving it is reported like
// any other enforcement's (the path explorer's checkFeasible tags it with
// the first unsat-core name, enf_<pc>_<idx>); no check_assertion_at_line_<N>
// tag is produced.
func ApplyAssert(ctx context.Context, c Comment, pc *bsstctx.Context, solver smt.Solver, policy *smt.Policy, z3Enabled bool) error {
	expr, err := ParseExpr(c.Body)
	if err != nil {
		return err
	}
	target, err := resolveTarget(pc, c.Target)
	if err != nil {
		return err
	}
	pred := expr.ToPredicate(pc.Arena, target)

	if z3Enabled {
		negated := pc.Arena.Op(value.KindNot, "", pred)
		if pc.PathPredicate != nil {
			negated = pc.Arena.Op(value.KindBoolAnd, "", pc.PathPredicate, negated)
		}
		solver.Push()
		_ = solver.Assert(negated)
		res, err := policy.Run(ctx, func(ctx context.Context, timeout time.Duration, seed int64) (smt.Result, error) {
			return solver.CheckSat(ctx, timeout, seed)
		})
		solver.Pop()
		if err != nil {
			return err
		}
		if res == smt.Sat {
			pc.Fail(bsstctx.Position{PC: pc.PC, Line: c.Line},
				errtag.WithLine(errtag.AssertionFailedAtLine, c.Line, "assertion can be violated").Tag(),
				fmt.Sprintf("bsst-assert at line %d can be violated under the current path", c.Line))
			return nil
		}
	}

	pc.Publish(pred, bsstctx.Position{PC: pc.PC, Line: c.Line}, 0)
	return nil
}

// ApplyAssume implements the assumption rule: attach the
// constraint to the named placeholder on this path, with no
// prior-feasibility check. A conflict surfaces only when the path explorer
// finds the path's assumptions and enforcements unsatisfiable, tagged like
// any other such failure; no check_assumption_at_line_<N> tag is produced.
func ApplyAssume(c Comment, pc *bsstctx.Context) error {
	expr, err := ParseExpr(c.Body)
	if err != nil {
		return err
	}
	placeholder := pc.Arena.Placeholder(c.PlaceholderName)
	pred := expr.ToPredicate(pc.Arena, placeholder)
	pc.Assumptions = append(pc.Assumptions, pred)
	return nil
}
