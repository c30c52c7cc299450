package assert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	bsstctx "github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/value"
)

func TestMergePushdataChainsInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	h1 := Hooks{Pushdata: func(ctx *bsstctx.Context, raw []byte) ([]byte, error) {
		order = append(order, "h1")
		return append(raw, 'a'), nil
	}}
	h2 := Hooks{Pushdata: func(ctx *bsstctx.Context, raw []byte) ([]byte, error) {
		order = append(order, "h2")
		return append(raw, 'b'), nil
	}}

	merged := Merge(h1, h2)
	out, err := merged.Pushdata(nil, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []string{"h1", "h2"}, order)
	require.Equal(t, []byte("xab"), out)
}

func TestMergePushdataStopsOnError(t *testing.T) {
	t.Parallel()

	failing := errors.New("plugin rejected data")
	var secondCalled bool
	h1 := Hooks{Pushdata: func(ctx *bsstctx.Context, raw []byte) ([]byte, error) {
		return nil, failing
	}}
	h2 := Hooks{Pushdata: func(ctx *bsstctx.Context, raw []byte) ([]byte, error) {
		secondCalled = true
		return raw, nil
	}}

	merged := Merge(h1, h2)
	_, err := merged.Pushdata(nil, []byte("x"))
	require.ErrorIs(t, err, failing)
	require.False(t, secondCalled)
}

func TestMergePreOpcodeChains(t *testing.T) {
	t.Parallel()

	var calls []string
	h1 := Hooks{PreOpcode: func(ctx *bsstctx.Context, name string) error {
		calls = append(calls, "h1:"+name)
		return nil
	}}
	h2 := Hooks{PreOpcode: func(ctx *bsstctx.Context, name string) error {
		calls = append(calls, "h2:"+name)
		return nil
	}}

	merged := Merge(h1, h2)
	err := merged.PreOpcode(nil, "OP_DUP")
	require.NoError(t, err)
	require.Equal(t, []string{"h1:OP_DUP", "h2:OP_DUP"}, calls)
}

func TestMergeScriptFailureCallsAllEvenAfterNilHooks(t *testing.T) {
	t.Parallel()

	var called int
	h1 := Hooks{}
	h2 := Hooks{ScriptFailure: func(ctx *bsstctx.Context) { called++ }}

	merged := Merge(h1, h2)
	merged.ScriptFailure(bsstctx.New(value.NewArena()))
	require.Equal(t, 1, called)
}

func TestMergeReportStartEndChain(t *testing.T) {
	t.Parallel()

	var calls []string
	h1 := Hooks{ReportStart: func() { calls = append(calls, "start1") }}
	h2 := Hooks{ReportStart: func() { calls = append(calls, "start2") }, ReportEnd: func() { calls = append(calls, "end2") }}

	merged := Merge(h1, h2)
	merged.ReportStart()
	merged.ReportEnd()
	require.Equal(t, []string{"start1", "start2", "end2"}, calls)
}

func TestMergeWithNoHooksIsSafeToCall(t *testing.T) {
	t.Parallel()

	merged := Merge()
	out, err := merged.Pushdata(nil, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("x"), out)

	require.NoError(t, merged.PreOpcode(nil, "OP_DUP"))
	merged.ScriptFailure(nil)
	merged.ReportStart()
}
