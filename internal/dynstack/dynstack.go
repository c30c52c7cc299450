// Package dynstack implements the dynamic stack access algorithm
// for PICK, ROLL, and CHECKMULTISIG(VERIFY) when their index/count arguments
// are not statically known: solver-driven distinct-sample enumeration,
// per-sample path forking, and the "was not explored" terminal label for
// samples left unexplored once the budget runs out. It registers itself
// into an opcode.Table rather than living inside package opcode because it
// needs a live solver handle, which opcode's other transfer functions
// deliberately don't carry (keeping arithmetic/logic/crypto lowering
// solver-agnostic, per internal/smt's own backend-isolation style).
package dynstack

import (
	"context"
	"fmt"
	"time"

	"github.com/dgpv/bsst/internal/config"
	bsstctx "github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/opcode"
	"github.com/dgpv/bsst/internal/scriptnum"
	"github.com/dgpv/bsst/internal/smt"
	"github.com/dgpv/bsst/internal/value"
)

// Sampler asks a solver for up to max distinct satisfying assignments of
// target under the assertions already pushed on s: add the current path
// predicate, iteratively solve, pin a new distinct value, and repeat.
type Sampler struct {
	Policy *smt.Policy
	Max    int
}

// Sample returns the distinct satisfying values found (as script numbers)
// and whether more values remained feasible when the budget ran out.
func (sm *Sampler) Sample(ctx context.Context, s smt.Solver, arena *value.Arena, target value.Value) ([]int64, bool, error) {
	var found []int64

	for len(found) < sm.Max {
		s.Push()
		for _, k := range found {
			neq := arena.Op(value.KindNumNotEqual, "", target, arena.Lit(scriptnum.New(k).Bytes()))
			if err := s.Assert(neq); err != nil {
				s.Pop()
				return found, false, err
			}
		}

		res, err := sm.Policy.Run(ctx, func(ctx context.Context, timeout time.Duration, seed int64) (smt.Result, error) {
			return s.CheckSat(ctx, timeout, seed)
		})
		if err != nil {
			s.Pop()
			return found, false, err
		}
		if res != smt.Sat {
			s.Pop()
			return found, res == smt.Unknown, nil
		}

		model, err := s.Model()
		if err != nil {
			s.Pop()
			return found, false, err
		}
		raw, ok := model[target.Identity()]
		s.Pop()
		if !ok {
			break
		}
		n, ok := scriptnum.Decode(raw, 0, false)
		if !ok {
			break
		}
		k, ok := n.Int64()
		if !ok {
			break
		}
		found = append(found, k)
	}

	// Budget exhausted; probe once more to see whether a value beyond the
	// sampled set remains feasible, for the "was not explored" label.
	s.Push()
	for _, k := range found {
		neq := arena.Op(value.KindNumNotEqual, "", target, arena.Lit(scriptnum.New(k).Bytes()))
		if err := s.Assert(neq); err != nil {
			s.Pop()
			return found, false, err
		}
	}
	res, err := sm.Policy.Run(ctx, func(ctx context.Context, timeout time.Duration, seed int64) (smt.Result, error) {
		return s.CheckSat(ctx, timeout, seed)
	})
	s.Pop()
	if err != nil {
		return found, false, err
	}
	return found, res != smt.Unsat, nil
}

// Hook carries the solver/sampler handle needed by the transfer functions
// this package registers.
type Hook struct {
	// NewSolverForPath builds a fresh solver carrying no assertions; each
	// sampling call asserts the calling path's own accumulated predicate
	// and assumptions into it before sampling, so a single Hook can serve
	// every path in the tree without tracking per-path solver state itself.
	NewSolverForPath func() (smt.Solver, error)
	Sampler          *Sampler
}

// solverForPath builds a solver and loads ctx's accumulated path predicate
// and assumptions into it, matching the assertion set
// pathexplorer.Explorer.checkFeasible uses for branch-pruning checks.
func (h *Hook) solverForPath(ctx *bsstctx.Context) (smt.Solver, error) {
	s, err := h.NewSolverForPath()
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

// sample runs the solver-driven enumeration for target and fails ctx with a
// standard message if z3 is disabled or no value satisfies it. The returned
// bool reports whether sampling produced something usable; on false the
// caller should stop, having already recorded the failure.
func (h *Hook) sample(ctx *bsstctx.Context, pos bsstctx.Position, z3Enabled bool, opname, argname string, target value.Value) ([]int64, bool, bool, error) {
	if !z3Enabled {
		ctx.Fail(pos, errtag.New(errtag.CheckOpcodeInvalid, "cannot analyze dynamic stack access without solver").Tag(),
			"cannot analyze dynamic stack access without solver")
		return nil, false, false, nil
	}
	solver, err := h.solverForPath(ctx)
	if err != nil {
		return nil, false, false, err
	}
	values, moreLeft, err := h.Sampler.Sample(context.Background(), solver, ctx.Arena, target)
	solver.Close()
	if err != nil {
		return nil, false, false, err
	}
	if len(values) == 0 {
		ctx.Fail(pos, errtag.WithOpcode(opname, "no feasible "+argname).Tag(), opname+": "+argname+" has no satisfying assignment")
		return nil, false, false, nil
	}
	return values, moreLeft, true, nil
}

// Register adds PICK, ROLL, CHECKMULTISIG, CHECKMULTISIGVERIFY to t, backed
// by h. cmd/bsst calls it for every run, passing whether z3 is enabled;
// without z3 a statically known index or count still works, and a symbolic
// one fails the path. A Table built by opcode.Default() alone has no
// entries for these four opcodes.
func Register(t opcode.Table, h *Hook, z3Enabled bool) {
	t["OP_PICK"] = dynIndexOp("PICK", h, z3Enabled, func(ctx *bsstctx.Context, pos bsstctx.Position, k int64) bool {
		if k < 0 {
			return false
		}
		ctx.EnsureDepth(int(k) + 1)
		idx := len(ctx.Stack) - 1 - int(k)
		ctx.Push(ctx.Stack[idx], pos)
		return true
	})
	t["OP_ROLL"] = dynIndexOp("ROLL", h, z3Enabled, func(ctx *bsstctx.Context, pos bsstctx.Position, k int64) bool {
		if k < 0 {
			return false
		}
		ctx.EnsureDepth(int(k) + 1)
		idx := len(ctx.Stack) - 1 - int(k)
		v := ctx.Stack[idx]
		ctx.Stack = append(append([]value.Value(nil), ctx.Stack[:idx]...), ctx.Stack[idx+1:]...)
		ctx.Push(v, pos)
		return true
	})

	t["OP_CHECKMULTISIG"] = checkMultisigOp(h, z3Enabled, false)
	t["OP_CHECKMULTISIGVERIFY"] = checkMultisigOp(h, z3Enabled, true)
}

// checkMultisigOp implements CHECKMULTISIG(VERIFY). When num_keys and/or
// num_sigs are not statically known, each is sampled and every sampled
// combination forks its own child path, mirroring dynIndexOp's per-sample
// fork for PICK/ROLL: the first sampled value continues in the parent
// context, every later one forks a fresh child. When is-incomplete-script
// is set, a budget-exhausted sample set appends one more child, immediately
// failed, labelled as the unexplored remainder.
func checkMultisigOp(h *Hook, z3Enabled bool, verify bool) opcode.TransferFunc {
	return func(ctx *bsstctx.Context, s *config.Settings, pos bsstctx.Position, _ []byte) ([]opcode.Fork, error) {
		numKeysV, _ := ctx.Pop()

		if numKeys, staticKeys := numKeysV.ScriptNum(); staticKeys {
			keysCount, _ := numKeys.Int64()
			return checkMultisigWithKeys(h, z3Enabled, verify, ctx, s, pos, keysCount)
		}

		values, moreLeft, ok, err := h.sample(ctx, pos, z3Enabled, "CHECKMULTISIG", "num_keys", numKeysV)
		if err != nil || !ok {
			return nil, err
		}

		// base is ctx before any sample is applied; every later sample and
		// the unexplored child fork from it.
		base := ctx.Fork()
		var forks []opcode.Fork
		first := true
		for _, keysCount := range values {
			child := ctx
			if !first {
				child = base.Fork()
			}
			first = false
			eqK := ctx.Arena.Op(value.KindNumEqual, "", numKeysV, ctx.Arena.Lit(scriptnum.New(keysCount).Bytes()))
			child.AddBranch(bsstctx.BranchStep{
				Opcode: "CHECKMULTISIG", Position: pos, Condition: eqK,
				Label: fmt.Sprintf("CHECKMULTISIG %s @ %d:L%d : num_keys = %d", numKeysV.Display(false), pos.PC, pos.Line, keysCount),
			})
			childForks, err := checkMultisigWithKeys(h, z3Enabled, verify, child, s, pos, keysCount)
			if err != nil {
				return nil, err
			}
			if child != ctx {
				forks = append(forks, opcode.Fork{Ctx: child, Label: child.BranchTrail[len(child.BranchTrail)-1].Label})
			}
			forks = append(forks, childForks...)
		}

		if s.IsIncompleteScript && moreLeft {
			next := values[len(values)-1] + 1
			unexplored := base.Fork()
			unexplored.Fail(pos, "", fmt.Sprintf("CHECKMULTISIG %s @ %d:L%d : num_keys : %d, ... (was not explored)", numKeysV.Display(false), pos.PC, pos.Line, next))
			forks = append(forks, opcode.Fork{Ctx: unexplored, Label: "was not explored"})
		}

		return forks, nil
	}
}

// checkMultisigWithKeys continues CHECKMULTISIG once num_keys is pinned to a
// concrete value on this path: pop and validate the pubkeys, then resolve
// num_sigs (sampling and forking again if it's not statically known).
func checkMultisigWithKeys(h *Hook, z3Enabled bool, verify bool, ctx *bsstctx.Context, s *config.Settings, pos bsstctx.Position, keysCount int64) ([]opcode.Fork, error) {
	if keysCount < 0 {
		ctx.Fail(pos, errtag.WithOpcode("CHECKMULTISIG", "num_keys out of range").Tag(), "CHECKMULTISIG: num_keys is negative")
		return nil, nil
	}
	ctx.EnsureDepth(int(keysCount))
	pubkeys := make([]value.Value, keysCount)
	for i := int64(0); i < keysCount; i++ {
		v, _ := ctx.Pop()
		pubkeys[keysCount-1-i] = v
	}
	for _, pk := range pubkeys {
		if pkBytes, known := pk.Bytes(); known {
			if err := opcode.ValidatePubKeyEncoding(pkBytes, s); err != nil {
				ctx.Fail(pos, errtag.WithOpcode("CHECKMULTISIG", err.Error()).Tag(), "CHECKMULTISIG: "+err.Error())
				return nil, nil
			}
		}
	}

	numSigsV, _ := ctx.Pop()

	if numSigs, staticSigs := numSigsV.ScriptNum(); staticSigs {
		sigsCount, _ := numSigs.Int64()
		return checkMultisigFinish(verify, ctx, s, pos, keysCount, sigsCount, pubkeys)
	}

	values, moreLeft, ok, err := h.sample(ctx, pos, z3Enabled, "CHECKMULTISIG", "num_sigs", numSigsV)
	if err != nil || !ok {
		return nil, err
	}

	// base is ctx before any sample is applied; every later sample and the
	// unexplored child fork from it.
	base := ctx.Fork()
	var forks []opcode.Fork
	first := true
	for _, sigsCount := range values {
		child := ctx
		if !first {
			child = base.Fork()
		}
		first = false
		eqS := ctx.Arena.Op(value.KindNumEqual, "", numSigsV, ctx.Arena.Lit(scriptnum.New(sigsCount).Bytes()))
		child.AddBranch(bsstctx.BranchStep{
			Opcode: "CHECKMULTISIG", Position: pos, Condition: eqS,
			Label: fmt.Sprintf("CHECKMULTISIG %s @ %d:L%d : num_sigs = %d", numSigsV.Display(false), pos.PC, pos.Line, sigsCount),
		})
		childForks, err := checkMultisigFinish(verify, child, s, pos, keysCount, sigsCount, pubkeys)
		if err != nil {
			return nil, err
		}
		if child != ctx {
			forks = append(forks, opcode.Fork{Ctx: child, Label: child.BranchTrail[len(child.BranchTrail)-1].Label})
		}
		forks = append(forks, childForks...)
	}

	if s.IsIncompleteScript && moreLeft {
		next := values[len(values)-1] + 1
		unexplored := base.Fork()
		unexplored.Fail(pos, "", fmt.Sprintf("CHECKMULTISIG %s @ %d:L%d : num_sigs : %d, ... (was not explored)", numSigsV.Display(false), pos.PC, pos.Line, next))
		forks = append(forks, opcode.Fork{Ctx: unexplored, Label: "was not explored"})
	}

	return forks, nil
}

// checkMultisigFinish pops the signatures and the dummy element once both
// num_keys and num_sigs are pinned to concrete values, builds the
// CHECKMULTISIG result node, and applies the trailing VERIFY when asked.
func checkMultisigFinish(verify bool, ctx *bsstctx.Context, s *config.Settings, pos bsstctx.Position, keysCount, sigsCount int64, pubkeys []value.Value) ([]opcode.Fork, error) {
	if sigsCount < 0 || sigsCount > keysCount {
		ctx.Fail(pos, errtag.WithOpcode("CHECKMULTISIG", "num_sigs out of range").Tag(), "CHECKMULTISIG: num_sigs exceeds num_keys or is negative")
		return nil, nil
	}
	ctx.EnsureDepth(int(sigsCount))
	sigs := make([]value.Value, sigsCount)
	for i := int64(0); i < sigsCount; i++ {
		v, _ := ctx.Pop()
		sigs[sigsCount-1-i] = v
	}

	dummy, _ := ctx.Pop()
	if s.NullDummyFlag {
		if b, known := dummy.Bytes(); known && len(b) != 0 {
			ctx.Fail(pos, errtag.WithOpcode("CHECKMULTISIG", "nulldummy violation").Tag(), "CHECKMULTISIG: dummy element is not empty (nulldummy-flag)")
			return nil, nil
		}
	}

	operands := append(append([]value.Value(nil), sigs...), pubkeys...)
	result := ctx.Arena.Op(value.KindCheckMultiSig, fmt.Sprintf("%d-of-%d", sigsCount, keysCount), operands...)
	ctx.Push(result, pos)

	if verify {
		verifyTopDyn(ctx, pos, "CHECKMULTISIGVERIFY")
	}
	return nil, nil
}

// verifyTopDyn mirrors opcode.verifyTop's semantics without importing an
// unexported helper across package boundaries.
func verifyTopDyn(ctx *bsstctx.Context, pos bsstctx.Position, opname string) {
	top, _ := ctx.Pop()
	pred := ctx.Arena.Op(value.KindBool, "", top)
	if b, known := top.Bool(); known && !b {
		ctx.Fail(pos, errtag.WithOpcode(opname, "verify failed").Tag(), opname+": operand is statically false")
		return
	}
	ctx.Publish(pred, pos, 0)
}

// dynIndexOp implements the shared shape of PICK/ROLL: pop n, if static
// behave directly, else sample and fork one child per sampled k. Reading
// below the bottom of the stack is handled by apply itself via
// context.Context.EnsureDepth, so this only rejects a negative sampled
// index (apply returns false).
func dynIndexOp(opname string, h *Hook, z3Enabled bool, apply func(ctx *bsstctx.Context, pos bsstctx.Position, k int64) bool) opcode.TransferFunc {
	return func(ctx *bsstctx.Context, s *config.Settings, pos bsstctx.Position, _ []byte) ([]opcode.Fork, error) {
		n, _ := ctx.Pop()

		if num, known := n.ScriptNum(); known {
			k, _ := num.Int64()
			if !apply(ctx, pos, k) {
				ctx.Fail(pos, errtag.WithOpcode(opname, "index out of range").Tag(), opname+": index is negative")
			}
			return nil, nil
		}

		values, moreLeft, ok, err := h.sample(ctx, pos, z3Enabled, opname, "index", n)
		if err != nil || !ok {
			return nil, err
		}

		// base is ctx before any sample is applied; every later sample and
		// the unexplored child fork from it.
		base := ctx.Fork()
		var forks []opcode.Fork
		first := true
		for _, k := range values {
			child := ctx
			if !first {
				child = base.Fork()
			}
			first = false
			eqK := ctx.Arena.Op(value.KindNumEqual, "", n, ctx.Arena.Lit(scriptnum.New(k).Bytes()))
			child.AddBranch(bsstctx.BranchStep{
				Opcode: opname, Position: pos, Condition: eqK,
				Label: fmt.Sprintf("%s %s @ %d:L%d : %d", opname, n.Display(false), pos.PC, pos.Line, k),
			})
			if !apply(child, pos, k) {
				child.Fail(pos, errtag.WithOpcode(opname, "index out of range").Tag(), opname+": sampled index is negative")
			}
			if child != ctx {
				forks = append(forks, opcode.Fork{Ctx: child, Label: child.BranchTrail[len(child.BranchTrail)-1].Label})
			}
		}

		if s.IsIncompleteScript && moreLeft {
			next := values[len(values)-1] + 1
			unexplored := base.Fork()
			unexplored.Fail(pos, "", fmt.Sprintf("%s %s @ %d:L%d : %d, ... (was not explored)", opname, n.Display(false), pos.PC, pos.Line, next))
			forks = append(forks, opcode.Fork{Ctx: unexplored, Label: "was not explored"})
		}

		return forks, nil
	}
}
