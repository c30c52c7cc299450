package opcode

import (
	"fmt"

	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/value"
)

// registerBranching wires IF/NOTIF, which fork the context into two, one
// with predicate BOOL(top) and one with its negation, and descend each;
// IFDUP and VERIFY are registered here too and do not fork.
// The path explorer (internal/pathexplorer) is the one that actually
// recurses into both forks; this transfer function's job is only to
// produce them plus their branch-trail labels.
func registerBranching(t Table) {
	t["OP_IF"] = ifLike("IF", false)
	t["OP_NOTIF"] = ifLike("NOTIF", true)

	t["OP_IFDUP"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Top()
		if !ok {
			failArity(ctx, pos, "IFDUP")
			return nil, nil
		}
		if b, known := top.Bool(); known && !b {
			return nil, nil
		}
		ctx.Push(top, pos)
		return nil, nil
	}

	t["OP_VERIFY"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		verifyTop(ctx, s, pos, "VERIFY")
		return nil, nil
	}
}

// ifLike builds IF (negate=false) or NOTIF (negate=true). MINIMALIF requires
// the popped top to be exactly empty or 0x01 when minimalif-flag is set.
func ifLike(opcode string, negate bool) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, _ := ctx.Pop()

		if s.MinimalIfFlag {
			if b, known := top.Bytes(); known {
				if len(b) > 1 || (len(b) == 1 && b[0] != 1) {
					ctx.Fail(pos, errtag.WithOpcode(opcode, "minimalif violation").Tag(),
						fmt.Sprintf("%s operand is not minimally encoded (minimalif-flag)", opcode))
					return nil, nil
				}
			}
		}

		cond := ctx.Arena.Op(value.KindBool, "", top)
		trueCond, falseCond := cond, ctx.Arena.Op(value.KindNot, "", cond)
		if negate {
			trueCond, falseCond = falseCond, trueCond
		}

		if b, known := top.Bool(); known {
			if (b && !negate) || (!b && negate) {
				ctx.AddBranch(context.BranchStep{Opcode: opcode, Position: pos, Condition: nil,
					Label: fmt.Sprintf("%s @ %d:L%d : True", opcode, pos.PC, pos.Line)})
				return nil, nil
			}
			ctx.AddBranch(context.BranchStep{Opcode: opcode, Position: pos, Condition: nil,
				Label: fmt.Sprintf("%s @ %d:L%d : False", opcode, pos.PC, pos.Line)})
			return nil, nil
		}

		trueChild := ctx
		falseChild := ctx.Fork()

		trueChild.AddBranch(context.BranchStep{Opcode: opcode, Position: pos, Condition: trueCond,
			Label: fmt.Sprintf("%s @ %d:L%d : True", opcode, pos.PC, pos.Line)})
		falseChild.AddBranch(context.BranchStep{Opcode: opcode, Position: pos, Condition: falseCond,
			Label: fmt.Sprintf("%s @ %d:L%d : False", opcode, pos.PC, pos.Line)})

		return []Fork{{Ctx: falseChild, Label: "False"}}, nil
	}
}
