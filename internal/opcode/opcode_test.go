package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/context"
)

func TestGatedOpcodeDisabledByDefault(t *testing.T) {
	t.Parallel()

	table := Default()
	ctx, s := newCtx()

	ctx.Push(ctx.Arena.Lit([]byte("a")), context.Position{})
	ctx.Push(ctx.Arena.Lit([]byte("b")), context.Position{})

	_, err := table["OP_CAT"](ctx, s, context.Position{PC: 1}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed(), "OP_CAT must be disabled outside --is-elements with no explicit enable")
}

func TestGatedOpcodeEnabledUnderIsElements(t *testing.T) {
	t.Parallel()

	table := Default()
	ctx, s := newCtx()
	s.IsElements = true

	ctx.Push(ctx.Arena.Lit([]byte("a")), context.Position{})
	ctx.Push(ctx.Arena.Lit([]byte("b")), context.Position{})

	_, err := table["OP_CAT"](ctx, s, context.Position{PC: 1}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed())

	top, ok := ctx.Top()
	require.True(t, ok)
	b, known := top.Bytes()
	require.True(t, known)
	require.Equal(t, []byte("ab"), b)
}

func TestGatedOpcodeEnabledViaExplicitList(t *testing.T) {
	t.Parallel()

	table := Default()
	ctx, s := newCtx()
	s.ExplicitlyEnabledOpcodes = []string{"cat"}

	ctx.Push(ctx.Arena.Lit([]byte("a")), context.Position{})
	ctx.Push(ctx.Arena.Lit([]byte("b")), context.Position{})

	_, err := table["OP_CAT"](ctx, s, context.Position{PC: 1}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed())
}

func TestGatedOpcodeExplicitListIsCaseAndPrefixInsensitive(t *testing.T) {
	t.Parallel()

	variants := []string{"OP_MUL", "op_mul", "MUL", "mul"}
	for _, v := range variants {
		v := v
		t.Run(v, func(t *testing.T) {
			t.Parallel()
			_, s := newCtx()
			s.ExplicitlyEnabledOpcodes = []string{v}
			require.True(t, explicitlyEnabled(s, "OP_MUL"))
		})
	}
}

func TestUngatedOpcodeUnaffected(t *testing.T) {
	t.Parallel()

	table := Default()
	ctx, s := newCtx()

	ctx.Push(ctx.Arena.Lit([]byte{0x02}), context.Position{})
	ctx.Push(ctx.Arena.Lit([]byte{0x03}), context.Position{})

	_, err := table["OP_ADD"](ctx, s, context.Position{PC: 1}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed(), "OP_ADD is not in the gated set and must run unconditionally")
}
