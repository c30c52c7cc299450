package smt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/value"
)

func TestBvWidthForBytesClampsToMaxElement(t *testing.T) {
	t.Parallel()

	require.Equal(t, 8, bvWidthForBytes(0), "zero or negative widths floor to one byte")
	require.Equal(t, 8, bvWidthForBytes(-5))
	require.Equal(t, 32, bvWidthForBytes(4))
	require.Equal(t, maxElementBytes*8, bvWidthForBytes(maxElementBytes+100))
}

func TestPlanForBoolKinds(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	op := arena.Op(value.KindNumEqual, "", arena.Lit([]byte{1}), arena.Lit([]byte{2}))
	plan := planFor(op, sortInt)
	require.Equal(t, sortBool, plan.sort)
}

func TestPlanForArithmeticKinds(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	op := arena.Op(value.KindAdd, "", arena.Lit([]byte{1}), arena.Lit([]byte{2}))
	plan := planFor(op, sortBool)
	require.Equal(t, sortInt, plan.sort)
}

func TestPlanForByteManipulationKinds(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	op := arena.Op(value.KindCat, "", arena.Lit([]byte{1}), arena.Lit([]byte{2}))
	plan := planFor(op, sortBool)
	require.Equal(t, sortBitVec, plan.sort)
}

func TestPlanForNonOperatorUsesHint(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	lit := arena.Lit([]byte{1})
	plan := planFor(lit, sortBitVec)
	require.Equal(t, sortBitVec, plan.sort)

	plan2 := planFor(lit, sortInt)
	require.Equal(t, sortInt, plan2.sort)
}

func TestDescribeUnsupportedIncludesKind(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	op := arena.Op(value.KindMin, "", arena.Lit([]byte{1}), arena.Lit([]byte{2}))
	require.Contains(t, describeUnsupported(op), "MIN")
}
