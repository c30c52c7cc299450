package txmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/value"
)

func TestIntrospectBuildsIntrospectNode(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	m := New(arena, Bounds{MaxTxSize: 1000, MaxNumInputs: 10, MaxNumOutputs: 10})

	v := m.Introspect(FieldOutputValue, 2, "amount")
	op, ok := v.(*value.Op)
	require.True(t, ok)
	require.Equal(t, value.KindIntrospect, op.Kind())
	require.Len(t, op.Operands(), 1)
	require.True(t, strings.Contains(op.CanonicalString(), string(FieldOutputValue)+"/amount"))
}

func TestIntrospectInterningSameFieldIndexSubTag(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	m := New(arena, Bounds{})

	a := m.Introspect(FieldInputSequence, 1, "seq")
	b := m.Introspect(FieldInputSequence, 1, "seq")
	require.Same(t, a, b, "identical field/index/subtag must intern to the same node")
}

func TestIntrospectDistinguishesIndex(t *testing.T) {
	t.Parallel()

	arena := value.NewArena()
	m := New(arena, Bounds{})

	a := m.Introspect(FieldInputSequence, 1, "seq")
	b := m.Introspect(FieldInputSequence, 2, "seq")
	require.NotEqual(t, a.CanonicalString(), b.CanonicalString())
}

func TestEncodeIndexMinimalData(t *testing.T) {
	t.Parallel()

	cases := []struct {
		i    int
		want []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{-1, []byte{0x81}},
		{255, []byte{0xff, 0x00}},
		{256, []byte{0x00, 0x01}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, encodeIndex(tc.i), "i=%d", tc.i)
	}
}
