package opcode

import (
	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/scriptnum"
	"github.com/dgpv/bsst/internal/value"
)

// binaryArith builds the 2-operand ADD/SUB/MUL family: pop two operands,
// push the operator node, and fold to a literal when both operands are
// statically known script numbers. Operand byte-length limits are not
// enforced: script numbers are decoded here without a width bound.
func binaryArith(kind value.Kind, fold func(a, b scriptnum.Num) scriptnum.Num) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, string(kind))
			return nil, nil
		}
		if an, aok := ops[0].ScriptNum(); aok {
			if bn, bok := ops[1].ScriptNum(); bok {
				ctx.Push(ctx.Arena.Lit(fold(an, bn).Bytes()), pos)
				return nil, nil
			}
		}
		ctx.Push(ctx.Arena.Op(kind, "", ops[0], ops[1]), pos)
		return nil, nil
	}
}

func unaryArith(kind value.Kind, fold func(a scriptnum.Num) scriptnum.Num) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Pop()
		if !ok {
			failArity(ctx, pos, string(kind))
			return nil, nil
		}
		if n, known := top.ScriptNum(); known {
			ctx.Push(ctx.Arena.Lit(fold(n).Bytes()), pos)
			return nil, nil
		}
		ctx.Push(ctx.Arena.Op(kind, "", top), pos)
		return nil, nil
	}
}

// comparison builds a 2-operand comparison node, boolean-valued. Paired
// *VERIFY opcodes are registered separately, wrapping the base form with
// verifyTop.
func comparison(kind value.Kind, fold func(a, b scriptnum.Num) bool) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, string(kind))
			return nil, nil
		}
		if an, aok := ops[0].ScriptNum(); aok {
			if bn, bok := ops[1].ScriptNum(); bok {
				ctx.Push(litBool(ctx, fold(an, bn)), pos)
				return nil, nil
			}
		}
		ctx.Push(ctx.Arena.Op(kind, "", ops[0], ops[1]), pos)
		return nil, nil
	}
}

func litBool(ctx *context.Context, b bool) value.Value {
	if b {
		return ctx.Arena.Lit([]byte{1})
	}
	return ctx.Arena.Lit(nil)
}

func registerArithmetic(t Table) {
	t["OP_1ADD"] = unaryArith(value.KindAdd, func(a scriptnum.Num) scriptnum.Num { return a.Add(scriptnum.New(1)) })
	t["OP_1SUB"] = unaryArith(value.KindSub, func(a scriptnum.Num) scriptnum.Num { return a.Sub(scriptnum.New(1)) })
	t["OP_NEGATE"] = unaryArith(value.KindSub, func(a scriptnum.Num) scriptnum.Num { return a.Neg() })
	t["OP_ABS"] = unaryArith(value.KindSub, func(a scriptnum.Num) scriptnum.Num {
		if a.Sign() < 0 {
			return a.Neg()
		}
		return a
	})
	t["OP_NOT"] = unaryArith(value.KindNot, func(a scriptnum.Num) scriptnum.Num {
		if a.Sign() == 0 {
			return scriptnum.New(1)
		}
		return scriptnum.New(0)
	})
	t["OP_0NOTEQUAL"] = unaryArith(value.KindNot, func(a scriptnum.Num) scriptnum.Num {
		if a.Sign() != 0 {
			return scriptnum.New(1)
		}
		return scriptnum.New(0)
	})

	t["OP_ADD"] = binaryArith(value.KindAdd, func(a, b scriptnum.Num) scriptnum.Num { return a.Add(b) })
	t["OP_SUB"] = binaryArith(value.KindSub, func(a, b scriptnum.Num) scriptnum.Num { return a.Sub(b) })
	t["OP_MUL"] = binaryArith(value.KindMul, func(a, b scriptnum.Num) scriptnum.Num { return a.Mul(b) })

	t["OP_BOOLAND"] = comparison(value.KindBoolAnd, func(a, b scriptnum.Num) bool { return a.Sign() != 0 && b.Sign() != 0 })
	t["OP_BOOLOR"] = comparison(value.KindBoolOr, func(a, b scriptnum.Num) bool { return a.Sign() != 0 || b.Sign() != 0 })
	t["OP_NUMEQUAL"] = comparison(value.KindNumEqual, func(a, b scriptnum.Num) bool { return a.Cmp(b) == 0 })
	t["OP_NUMNOTEQUAL"] = comparison(value.KindNumNotEqual, func(a, b scriptnum.Num) bool { return a.Cmp(b) != 0 })
	t["OP_LESSTHAN"] = comparison(value.KindLessThan, func(a, b scriptnum.Num) bool { return a.Cmp(b) < 0 })
	t["OP_GREATERTHAN"] = comparison(value.KindGreaterThan, func(a, b scriptnum.Num) bool { return a.Cmp(b) > 0 })
	t["OP_LESSTHANOREQUAL"] = comparison(value.KindLessThanOrEqual, func(a, b scriptnum.Num) bool { return a.Cmp(b) <= 0 })
	t["OP_GREATERTHANOREQUAL"] = comparison(value.KindGreaterThanEqual, func(a, b scriptnum.Num) bool { return a.Cmp(b) >= 0 })

	t["OP_MIN"] = binaryArith(value.KindMin, func(a, b scriptnum.Num) scriptnum.Num {
		if a.Cmp(b) <= 0 {
			return a
		}
		return b
	})
	t["OP_MAX"] = binaryArith(value.KindMax, func(a, b scriptnum.Num) scriptnum.Num {
		if a.Cmp(b) >= 0 {
			return a
		}
		return b
	})

	t["OP_NUMEQUALVERIFY"] = withVerify(t["OP_NUMEQUAL"], "NUMEQUALVERIFY")

	t["OP_WITHIN"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 3)
		if !ok {
			failArity(ctx, pos, "WITHIN")
			return nil, nil
		}
		x, lo, hi := ops[0], ops[1], ops[2]
		if xn, xok := x.ScriptNum(); xok {
			if lon, lok := lo.ScriptNum(); lok {
				if hin, hok := hi.ScriptNum(); hok {
					ctx.Push(litBool(ctx, xn.Cmp(lon) >= 0 && xn.Cmp(hin) < 0), pos)
					return nil, nil
				}
			}
		}
		ctx.Push(ctx.Arena.Op(value.KindWithin, "", x, lo, hi), pos)
		return nil, nil
	}
}

// withVerify wraps a comparison/boolean-producing transfer function with an
// immediate VERIFY, implementing the *VERIFY opcode family's "behaves as
// comparator followed by VERIFY" rule.
func withVerify(base TransferFunc, opcode string) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, imm []byte) ([]Fork, error) {
		forks, err := base(ctx, s, pos, imm)
		if err != nil || ctx.Failed() {
			return forks, err
		}
		verifyTop(ctx, s, pos, opcode)
		return forks, nil
	}
}
