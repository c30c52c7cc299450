package opcode

import (
	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/scriptnum"
	"github.com/dgpv/bsst/internal/value"
)

// registerStack wires the fixed-arity stack shuffling opcodes: straightforward
// permutations with length preconditions, no operator nodes constructed
// since these opcodes only rearrange existing values.
func registerStack(t Table) {
	t["OP_DROP"] = shuffle(1, "DROP", func(ctx *context.Context, pos context.Position, v []value.Value) {})
	t["OP_2DROP"] = shuffle(2, "2DROP", func(ctx *context.Context, pos context.Position, v []value.Value) {})

	t["OP_DUP"] = shuffle(1, "DUP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[0], pos)
		ctx.Push(v[0], pos)
	})
	t["OP_2DUP"] = shuffle(2, "2DUP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
	})
	t["OP_3DUP"] = shuffle(3, "3DUP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		for _, e := range v {
			ctx.Push(e, pos)
		}
		for _, e := range v {
			ctx.Push(e, pos)
		}
	})

	t["OP_SWAP"] = shuffle(2, "SWAP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[1], pos)
		ctx.Push(v[0], pos)
	})
	t["OP_2SWAP"] = shuffle(4, "2SWAP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[2], pos)
		ctx.Push(v[3], pos)
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
	})

	t["OP_OVER"] = shuffle(2, "OVER", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
		ctx.Push(v[0], pos)
	})
	t["OP_2OVER"] = shuffle(4, "2OVER", func(ctx *context.Context, pos context.Position, v []value.Value) {
		for _, e := range v {
			ctx.Push(e, pos)
		}
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
	})

	t["OP_ROT"] = shuffle(3, "ROT", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[1], pos)
		ctx.Push(v[2], pos)
		ctx.Push(v[0], pos)
	})
	t["OP_2ROT"] = shuffle(6, "2ROT", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[2], pos)
		ctx.Push(v[3], pos)
		ctx.Push(v[4], pos)
		ctx.Push(v[5], pos)
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
	})

	t["OP_NIP"] = shuffle(2, "NIP", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[1], pos)
	})
	t["OP_TUCK"] = shuffle(2, "TUCK", func(ctx *context.Context, pos context.Position, v []value.Value) {
		ctx.Push(v[1], pos)
		ctx.Push(v[0], pos)
		ctx.Push(v[1], pos)
	})

	t["OP_TOALTSTACK"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Pop()
		if !ok {
			failArity(ctx, pos, "TOALTSTACK")
			return nil, nil
		}
		ctx.AltStack = append(ctx.AltStack, top)
		return nil, nil
	}
	t["OP_FROMALTSTACK"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		if len(ctx.AltStack) == 0 {
			failArity(ctx, pos, "FROMALTSTACK")
			return nil, nil
		}
		top := ctx.AltStack[len(ctx.AltStack)-1]
		ctx.AltStack = ctx.AltStack[:len(ctx.AltStack)-1]
		ctx.Push(top, pos)
		return nil, nil
	}

	t["OP_DEPTH"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ctx.Push(ctx.Arena.Lit(scriptnum.New(int64(ctx.Depth())).Bytes()), pos)
		return nil, nil
	}

	for n := 1; n <= 16; n++ {
		n := n
		t[opNName(n)] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
			ctx.Push(ctx.Arena.Lit(scriptnum.New(int64(n)).Bytes()), pos)
			return nil, nil
		}
	}
	t["OP_0"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ctx.Push(ctx.Arena.Lit(nil), pos)
		return nil, nil
	}
	t["OP_1NEGATE"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ctx.Push(ctx.Arena.Lit(scriptnum.New(-1).Bytes()), pos)
		return nil, nil
	}
}

// shuffle pops exactly n values (oldest first) and hands them to rearrange,
// which pushes back whatever permutation the opcode defines; a no-op body
// implements the various *DROP opcodes.
func shuffle(n int, opcode string, rearrange func(ctx *context.Context, pos context.Position, v []value.Value)) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, n)
		if !ok {
			failArity(ctx, pos, opcode)
			return nil, nil
		}
		rearrange(ctx, pos, ops)
		return nil, nil
	}
}

func opNName(n int) string {
	names := [...]string{"", "OP_1", "OP_2", "OP_3", "OP_4", "OP_5", "OP_6", "OP_7", "OP_8",
		"OP_9", "OP_10", "OP_11", "OP_12", "OP_13", "OP_14", "OP_15", "OP_16"}
	return names[n]
}
