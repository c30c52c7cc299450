// Package opcode implements the per-opcode transfer functions: one
// entry per opcode category, each consuming operands off a context.Context's
// data/alt stack, building value.Value nodes in the shared arena, publishing
// enforcements, and optionally forking the context for branches or dynamic
// stack samples. The dispatch table mirrors an opcodeArray-style jump table,
// but keyed by opcode name rather than a fixed byte since this tracer's
// opcode set spans the base, witness-v0, tapscript and Elements-extended
// families in one table.
package opcode

import (
	"fmt"
	"strings"

	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/value"
)

// Fork is one extra child context returned by a transfer function that
// splits execution, with the label of the branch it takes. Opcodes that
// don't branch return none; IF/NOTIF return one (the False edge, while ctx
// continues as the True edge), and internal/dynstack returns one per sample
// after the first, plus an optional failed "was not explored" child.
type Fork struct {
	Ctx   *context.Context
	Label string
}

// TransferFunc is the per-opcode contract: given the
// executing context (already positioned at the opcode), immediate data (nil
// for opcodes with none) and settings, mutate ctx in place and return any
// additional forked children beyond ctx itself. A non-nil error is an engine
// bug (a case the dispatch loop should abort on), not a script failure —
// script failures are recorded via ctx.Fail and leave err nil.
type TransferFunc func(ctx *context.Context, s *config.Settings, pos context.Position, immediate []byte) ([]Fork, error)

// Table is the opcode-name-keyed dispatch table.
type Table map[string]TransferFunc

// Default builds the dispatch table covering categories.
// Dynamic-stack-access opcodes (PICK, ROLL, CHECKMULTISIG(VERIFY)) are
// registered by internal/dynstack.Register, which cmd/bsst calls after this
// table is built, since they need a solver handle this package doesn't
// carry.
func Default() Table {
	t := make(Table)
	registerArithmetic(t)
	registerBitwise(t)
	registerBranching(t)
	registerStack(t)
	registerCrypto(t)
	registerAsset(t)
	gateReenabledOpcodes(t)
	return t
}

// reenabledByDefaultOpcodes lists opcodes the base script interpreter
// retired (they'd be OP_SUCCESSx there); this tracer carries them the way
// Elements script does, live unconditionally under --is-elements and
// otherwise only when named in --explicitly-enabled-opcodes.
var reenabledByDefaultOpcodes = []string{
	"OP_CAT", "OP_SUBSTR", "OP_LEFT", "OP_RIGHT", "OP_INVERT", "OP_MUL",
}

func gateReenabledOpcodes(t Table) {
	for _, name := range reenabledByDefaultOpcodes {
		fn, ok := t[name]
		if !ok {
			continue
		}
		t[name] = gateOpcode(name, fn)
	}
}

func gateOpcode(name string, fn TransferFunc) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, immediate []byte) ([]Fork, error) {
		if !s.IsElements && !explicitlyEnabled(s, name) {
			ctx.Fail(pos, errtag.WithOpcode(name, "opcode is disabled").Tag(),
				fmt.Sprintf("%s is disabled outside --is-elements unless named in --explicitly-enabled-opcodes", name))
			return nil, nil
		}
		return fn(ctx, s, pos, immediate)
	}
}

func explicitlyEnabled(s *config.Settings, name string) bool {
	short := strings.TrimPrefix(name, "OP_")
	for _, e := range s.ExplicitlyEnabledOpcodes {
		e = strings.ToUpper(strings.TrimPrefix(e, "OP_"))
		if e == short {
			return true
		}
	}
	return false
}

// popN pops n values off the stack top-first reversed into source order
// (so result[0] was pushed earliest of the n popped). Always succeeds:
// context.Pop draws a fresh witness for any item reached below the
// modeled stack's bottom (the bool result is kept for callers that still
// guard on it).
func popN(ctx *context.Context, n int) ([]value.Value, bool) {
	out := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, _ := ctx.Pop()
		out[i] = v
	}
	return out, true
}

func failArity(ctx *context.Context, pos context.Position, opcode string) {
	ctx.Fail(pos, errtag.WithOpcode(opcode, "not enough items on stack").Tag(),
		fmt.Sprintf("%s requires more items than are on the stack", opcode))
}

// verifyTop pops the top and publishes BOOL(top) as an enforcement; on
// static-false it fails the path immediately ("Comparison+
// verify pairs").
func verifyTop(ctx *context.Context, s *config.Settings, pos context.Position, opcode string) {
	top, ok := ctx.Pop()
	if !ok {
		failArity(ctx, pos, opcode)
		return
	}
	pred := ctx.Arena.Op(value.KindBool, "", top)
	if b, known := top.Bool(); known && !b {
		ctx.Fail(pos, errtag.WithOpcode(opcode, "verify failed").Tag(),
			fmt.Sprintf("%s: operand is statically false", opcode))
		return
	}
	ctx.Publish(pred, pos, 0)
}
