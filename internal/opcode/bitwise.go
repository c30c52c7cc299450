package opcode

import (
	"bytes"

	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/scriptnum"
	"github.com/dgpv/bsst/internal/value"
)

// byteBinary folds two byte-string operands when both are statically known,
// otherwise builds kind's operator node.
func byteBinary(kind value.Kind, fold func(a, b []byte) ([]byte, bool)) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, string(kind))
			return nil, nil
		}
		if ab, aok := ops[0].Bytes(); aok {
			if bb, bok := ops[1].Bytes(); bok {
				if out, folded := fold(ab, bb); folded {
					ctx.Push(ctx.Arena.Lit(out), pos)
					return nil, nil
				}
			}
		}
		ctx.Push(ctx.Arena.Op(kind, "", ops[0], ops[1]), pos)
		return nil, nil
	}
}

func registerBitwise(t Table) {
	t["OP_CAT"] = byteBinary(value.KindCat, func(a, b []byte) ([]byte, bool) {
		return append(append([]byte(nil), a...), b...), true
	})

	t["OP_EQUAL"] = byteBinary(value.KindEqual, func(a, b []byte) ([]byte, bool) {
		if bytes.Equal(a, b) {
			return []byte{1}, true
		}
		return nil, true
	})
	t["OP_EQUALVERIFY"] = withVerify(t["OP_EQUAL"], "EQUALVERIFY")

	t["OP_AND"] = byteBinary(value.KindAnd, func(a, b []byte) ([]byte, bool) {
		if len(a) != len(b) {
			return nil, false
		}
		out := make([]byte, len(a))
		for i := range a {
			out[i] = a[i] & b[i]
		}
		return out, true
	})
	t["OP_OR"] = byteBinary(value.KindOr, func(a, b []byte) ([]byte, bool) {
		if len(a) != len(b) {
			return nil, false
		}
		out := make([]byte, len(a))
		for i := range a {
			out[i] = a[i] | b[i]
		}
		return out, true
	})
	t["OP_XOR"] = byteBinary(value.KindXor, func(a, b []byte) ([]byte, bool) {
		if len(a) != len(b) {
			return nil, false
		}
		out := make([]byte, len(a))
		for i := range a {
			out[i] = a[i] ^ b[i]
		}
		return out, true
	})

	t["OP_INVERT"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Pop()
		if !ok {
			failArity(ctx, pos, "INVERT")
			return nil, nil
		}
		if b, known := top.Bytes(); known {
			out := make([]byte, len(b))
			for i, by := range b {
				out[i] = ^by
			}
			ctx.Push(ctx.Arena.Lit(out), pos)
			return nil, nil
		}
		ctx.Push(ctx.Arena.Op(value.KindInvert, "", top), pos)
		return nil, nil
	}

	t["OP_SIZE"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Top()
		if !ok {
			failArity(ctx, pos, "SIZE")
			return nil, nil
		}
		if b, known := top.Bytes(); known {
			ctx.Push(ctx.Arena.Lit(scriptnum.New(int64(len(b))).Bytes()), pos)
			return nil, nil
		}
		ctx.Push(ctx.Arena.Op(value.KindSize, "", top), pos)
		return nil, nil
	}

	t["OP_SUBSTR"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 3)
		if !ok {
			failArity(ctx, pos, "SUBSTR")
			return nil, nil
		}
		src, begin, size := ops[0], ops[1], ops[2]
		if sb, sok := src.Bytes(); sok {
			if bn, bok := begin.ScriptNum(); bok {
				if sn, szok := size.ScriptNum(); szok {
					start, _ := bn.Int64()
					length, _ := sn.Int64()
					if start >= 0 && length >= 0 && start+length <= int64(len(sb)) {
						ctx.Push(ctx.Arena.Lit(append([]byte(nil), sb[start:start+length]...)), pos)
						return nil, nil
					}
					ctx.Fail(pos, errtag.WithOpcode("SUBSTR", "range out of bounds").Tag(), "SUBSTR range exceeds the source string")
					return nil, nil
				}
			}
		}
		ctx.Push(ctx.Arena.Op(value.KindSubstr, "", src, begin, size), pos)
		return nil, nil
	}

	t["OP_LEFT"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, "LEFT")
			return nil, nil
		}
		src, size := ops[0], ops[1]
		if sb, sok := src.Bytes(); sok {
			if sn, szok := size.ScriptNum(); szok {
				n, _ := sn.Int64()
				if n >= 0 && n <= int64(len(sb)) {
					ctx.Push(ctx.Arena.Lit(append([]byte(nil), sb[:n]...)), pos)
					return nil, nil
				}
				ctx.Fail(pos, errtag.WithOpcode("LEFT", "size out of bounds").Tag(), "LEFT size exceeds the source string")
				return nil, nil
			}
		}
		ctx.Push(ctx.Arena.Op(value.KindLeft, "", src, size), pos)
		return nil, nil
	}

	t["OP_RIGHT"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, "RIGHT")
			return nil, nil
		}
		src, size := ops[0], ops[1]
		if sb, sok := src.Bytes(); sok {
			if sn, szok := size.ScriptNum(); szok {
				n, _ := sn.Int64()
				if n >= 0 && n <= int64(len(sb)) {
					ctx.Push(ctx.Arena.Lit(append([]byte(nil), sb[int64(len(sb))-n:]...)), pos)
					return nil, nil
				}
				ctx.Fail(pos, errtag.WithOpcode("RIGHT", "size out of bounds").Tag(), "RIGHT size exceeds the source string")
				return nil, nil
			}
		}
		ctx.Push(ctx.Arena.Op(value.KindRight, "", src, size), pos)
		return nil, nil
	}
}
