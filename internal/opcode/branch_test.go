package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/context"
)

func TestRegisterBranchingAddsOpcodes(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	for _, name := range []string{"OP_IF", "OP_NOTIF", "OP_IFDUP", "OP_VERIFY"} {
		require.Contains(t, table, name)
	}
}

func TestIfStaticTrueTakesNoForkAndRecordsTrueLabel(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit([]byte{1}), context.Position{})

	forks, err := table["OP_IF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.Nil(t, forks)
	require.Len(t, ctx.BranchTrail, 1)
	require.Contains(t, ctx.BranchTrail[0].Label, "True")
}

func TestIfStaticFalseTakesNoForkAndRecordsFalseLabel(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit(nil), context.Position{})

	forks, err := table["OP_IF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.Nil(t, forks)
	require.Contains(t, ctx.BranchTrail[0].Label, "False")
}

func TestNotifNegatesStaticCondition(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit([]byte{1}), context.Position{})

	_, err := table["OP_NOTIF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.Contains(t, ctx.BranchTrail[0].Label, "False", "NOTIF on a true operand takes the false edge")
}

func TestIfSymbolicConditionForksOneChild(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.NextWitness(), context.Position{})

	forks, err := table["OP_IF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.Len(t, forks, 1)
	require.Equal(t, "False", forks[0].Label)
	require.Contains(t, ctx.BranchTrail[0].Label, "True", "the parent context continues as the true child")
	require.Contains(t, forks[0].Ctx.BranchTrail[0].Label, "False")
	require.NotSame(t, ctx, forks[0].Ctx)
}

func TestIfMinimalIfFlagRejectsNonMinimalOperand(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	s.MinimalIfFlag = true
	ctx.Push(ctx.Arena.Lit([]byte{0x02}), context.Position{})

	_, err := table["OP_IF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed())
}

func TestIfOnEmptyStackDrawsAWitnessCondition(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()

	forks, err := table["OP_IF"](ctx, s, context.Position{PC: 1, Line: 1}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed(), "the missing condition is drawn from the incoming witness stack")
	require.Len(t, forks, 1, "a witness condition is symbolic, so IF forks")
	require.Equal(t, 1, ctx.WitnessUsed)
}

func TestIfDupDuplicatesTruthyTop(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit([]byte{1}), context.Position{})

	_, err := table["OP_IFDUP"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, ctx.Depth())
}

func TestIfDupSkipsOnStaticFalse(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit(nil), context.Position{})

	_, err := table["OP_IFDUP"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, ctx.Depth())
}

func TestVerifyFailsOnStaticFalse(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.Arena.Lit(nil), context.Position{})

	_, err := table["OP_VERIFY"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed())
}

func TestVerifyPublishesEnforcementOnSymbolicOperand(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerBranching(table)
	ctx, s := newCtx()
	ctx.Push(ctx.NextWitness(), context.Position{})

	_, err := table["OP_VERIFY"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed())
	require.Len(t, ctx.Enforcements, 1)
}
